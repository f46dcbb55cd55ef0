// Package bus provides a bounded, zero-copy, sequence-ordered delivery
// channel from audio capture to inference, plus the lock-free pipeline
// counters that observe it.
package bus

import (
	"context"
	"log/slog"
	"sync/atomic"
)

const (
	// SampleRate is the pipeline-wide PCM sample rate.
	SampleRate = 16000

	// ChunkDurationMs is the nominal duration of one audio chunk.
	ChunkDurationMs = 50

	// ChunkSamples is the number of samples in one nominal chunk.
	ChunkSamples = SampleRate * ChunkDurationMs / 1000

	// DefaultCapacityMs is the default bus buffer capacity.
	DefaultCapacityMs = 1500

	// SilenceInjectionMs is the duration of the silence window injected
	// into a streaming worker after a VAD speech-to-silence transition.
	SilenceInjectionMs = 100

	// SilenceInjectionSamples is SilenceInjectionMs worth of samples.
	SilenceInjectionSamples = SampleRate * SilenceInjectionMs / 1000

	minChannelCapacity = 8
)

// Chunk is an immutable slice of captured audio moving on the bus: a
// monotonic sequence number, a capture timestamp, the sample rate, and a
// shared sample slice. Chunks are never mutated after creation; copies
// only clone the slice header, not its backing array.
type Chunk struct {
	Seq        uint64
	TsMs       int64
	SampleRate uint32
	Samples    []float32
}

// DurationMs is the duration of this chunk's samples.
func (c Chunk) DurationMs() uint64 {
	if c.SampleRate == 0 {
		return 0
	}
	return uint64(len(c.Samples)) * 1000 / uint64(c.SampleRate)
}

// Config configures channel capacity for a Bus.
type Config struct {
	// CapacityMs is the target buffered duration.
	CapacityMs uint32
	// ChunkSizeMs is the expected chunk duration, used to convert
	// CapacityMs into a channel depth.
	ChunkSizeMs uint32
}

// DefaultConfig returns the standard 1.5s buffer of 50ms chunks.
func DefaultConfig() Config {
	return Config{CapacityMs: DefaultCapacityMs, ChunkSizeMs: ChunkDurationMs}
}

func (c Config) channelCapacity() int {
	if c.ChunkSizeMs == 0 {
		return 32
	}
	capacity := int(c.CapacityMs / c.ChunkSizeMs)
	if capacity < minChannelCapacity {
		return minChannelCapacity
	}
	return capacity
}

// Sender is the producer half of a Bus. It may be cloned freely; all
// clones share the same sequence counter and drop counter.
type Sender struct {
	ch          chan Chunk
	seqCounter  *atomic.Uint64
	dropped     *atomic.Uint64
}

// Send enqueues a chunk without blocking. If the channel is full, the new
// chunk is dropped (drop-newest policy) and the drop counter is
// incremented; every 10th drop is logged.
func (s Sender) Send(tsMs int64, sampleRate uint32, samples []float32) bool {
	seq := s.seqCounter.Add(1) - 1
	chunk := Chunk{Seq: seq, TsMs: tsMs, SampleRate: sampleRate, Samples: samples}

	select {
	case s.ch <- chunk:
		return true
	default:
		dropped := s.dropped.Add(1)
		if dropped%10 == 1 {
			slog.Warn("audio bus full, dropping chunk", slog.Uint64("dropped", dropped), slog.Uint64("seq", seq))
		}
		return false
	}
}

// SendAsync blocks until the chunk is enqueued or done is closed (e.g. a
// context.Context's Done channel), returning false in the latter case.
// Callers that must never drop (e.g. a file-based ingest replaying a
// fixture at real time) use this instead of Send.
func (s Sender) SendAsync(tsMs int64, sampleRate uint32, samples []float32, done <-chan struct{}) bool {
	seq := s.seqCounter.Add(1) - 1
	chunk := Chunk{Seq: seq, TsMs: tsMs, SampleRate: sampleRate, Samples: samples}

	select {
	case s.ch <- chunk:
		return true
	case <-done:
		return false
	}
}

// DroppedChunks returns the number of chunks dropped so far.
func (s Sender) DroppedChunks() uint64 {
	return s.dropped.Load()
}

// ResetDroppedChunks zeroes the drop counter.
func (s Sender) ResetDroppedChunks() {
	s.dropped.Store(0)
}

// CurrentSeq returns the next sequence number that will be assigned.
func (s Sender) CurrentSeq() uint64 {
	return s.seqCounter.Load()
}

// Receiver is the single consumer half of a Bus.
type Receiver struct {
	ch           chan Chunk
	lastSeq      uint64
	haveLastSeq  bool
	gapsDetected uint64
}

// Recv awaits the next chunk, or returns (Chunk{}, false) on channel
// closure (clean EOF).
func (r *Receiver) Recv() (Chunk, bool) {
	chunk, ok := <-r.ch
	if !ok {
		return Chunk{}, false
	}
	r.noteSeq(chunk.Seq)
	return chunk, true
}

// TryRecv returns the next chunk without blocking, or (Chunk{}, false) if
// none is immediately available.
func (r *Receiver) TryRecv() (Chunk, bool) {
	select {
	case chunk, ok := <-r.ch:
		if !ok {
			return Chunk{}, false
		}
		r.noteSeq(chunk.Seq)
		return chunk, true
	default:
		return Chunk{}, false
	}
}

// RecvCtx awaits the next chunk, cancellation, or channel closure,
// whichever comes first. Cancellation is checked first so a listener
// loop exits promptly even when chunks are arriving continuously.
func (r *Receiver) RecvCtx(ctx context.Context) (Chunk, bool) {
	select {
	case <-ctx.Done():
		return Chunk{}, false
	default:
	}

	select {
	case <-ctx.Done():
		return Chunk{}, false
	case chunk, ok := <-r.ch:
		if !ok {
			return Chunk{}, false
		}
		r.noteSeq(chunk.Seq)
		return chunk, true
	}
}

func (r *Receiver) noteSeq(seq uint64) {
	if r.haveLastSeq && seq > r.lastSeq+1 {
		r.gapsDetected += seq - r.lastSeq - 1
	}
	r.lastSeq = seq
	r.haveLastSeq = true
}

// GapsDetected returns the total number of missing sequence numbers seen.
func (r *Receiver) GapsDetected() uint64 {
	return r.gapsDetected
}

// DrainToLatest synchronously drains all buffered chunks and returns only
// the newest, for coarse catch-up after lag.
func (r *Receiver) DrainToLatest() (Chunk, bool) {
	var latest Chunk
	found := false
	for {
		chunk, ok := r.TryRecv()
		if !ok {
			break
		}
		latest = chunk
		found = true
	}
	return latest, found
}

// Bus is a bounded MPSC channel of audio chunks with a shared monotonic
// sequence counter and drop counter.
type Bus struct {
	sender   Sender
	receiver *Receiver
	taken    bool
}

// New builds a Bus with the default configuration.
func New() *Bus {
	return WithConfig(DefaultConfig())
}

// WithConfig builds a Bus with a custom channel capacity.
func WithConfig(cfg Config) *Bus {
	capacity := cfg.channelCapacity()
	ch := make(chan Chunk, capacity)

	return &Bus{
		sender: Sender{
			ch:         ch,
			seqCounter: new(atomic.Uint64),
			dropped:    new(atomic.Uint64),
		},
		receiver: &Receiver{ch: ch},
	}
}

// Sender returns a clone of the bus's sender.
func (b *Bus) Sender() Sender {
	return b.sender
}

// TakeReceiver returns the receiver exactly once; subsequent calls return
// (nil, false).
func (b *Bus) TakeReceiver() (*Receiver, bool) {
	if b.taken {
		return nil, false
	}
	b.taken = true
	return b.receiver, true
}

// Close closes the underlying channel, which propagates as a clean EOF
// (Recv returning ok=false) to the receiver.
func (b *Bus) Close() {
	close(b.sender.ch)
}
