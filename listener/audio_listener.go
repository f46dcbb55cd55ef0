// Package listener glues the audio bus to the streaming transcriber and
// inference worker, and reacts to VAD silence with turn prediction and
// confirmed batch re-transcription.
package listener

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/localstt/streamstt/bus"
	"github.com/localstt/streamstt/engine"
	"github.com/localstt/streamstt/streaming"
	"github.com/localstt/streamstt/worker"
)

// AudioListener consumes the audio bus and routes chunks either through a
// streaming InferenceWorker or through the batch coordinator for
// non-streaming engines. It is restartable: each Start call creates a
// fresh cancellation scope so a prior Stop can never leak into a new run.
type AudioListener struct {
	receiver    *bus.Receiver
	status      *bus.Status
	transcriber *streaming.Transcriber
	emitter     Emitter

	streamWorker *worker.Worker // nil when running against a batch-only engine
	batchEngine  engine.SttEngine
	turnListener *TurnListener // notified on every VAD silence pulse, may be nil

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	done    chan struct{}
}

// New builds an AudioListener driven by receiver, updating status and
// emitting events through emitter. Exactly one of streamWorker or
// batchEngine should be non-nil. turnListener may be nil if turn
// prediction and confirmed batch re-transcription are not wanted.
func New(receiver *bus.Receiver, status *bus.Status, transcriber *streaming.Transcriber, emitter Emitter, streamWorker *worker.Worker, batchEngine engine.SttEngine, turnListener *TurnListener) *AudioListener {
	return &AudioListener{
		receiver:     receiver,
		status:       status,
		transcriber:  transcriber,
		emitter:      emitter,
		streamWorker: streamWorker,
		batchEngine:  batchEngine,
		turnListener: turnListener,
	}
}

// Start begins consuming the bus on a new goroutine with a fresh
// cancellation scope. Calling Start while already running is a no-op.
func (l *AudioListener) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true
	l.done = make(chan struct{})

	go l.run(runCtx, l.done)
}

// Stop cancels the current run and blocks until its goroutine exits.
func (l *AudioListener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel := l.cancel
	done := l.done
	l.mu.Unlock()

	cancel()
	<-done
}

func (l *AudioListener) run(ctx context.Context, done chan struct{}) {
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		close(done)
	}()

	for {
		chunk, ok := l.receiver.RecvCtx(ctx)
		if !ok {
			return
		}
		l.handleChunk(ctx, chunk)
	}
}

func (l *AudioListener) handleChunk(ctx context.Context, chunk bus.Chunk) {
	lagMs := time.Now().UnixMilli() - chunk.TsMs
	l.status.RecordChunk(chunk.Seq, lagMs)

	l.transcriber.AddSamples(chunk.Samples)

	if l.streamWorker != nil {
		l.handleStreamingChunk(chunk)
		return
	}
	if l.batchEngine != nil {
		l.runBatchCoordinator(ctx, chunk)
	}
}

func (l *AudioListener) handleStreamingChunk(chunk bus.Chunk) {
	if l.transcriber.TakeSilenceInjectionPending() {
		l.emitter.Emit(Event{Name: EventVADSilence, Payload: VADSilencePayload{
			TsMs:             chunk.TsMs,
			BufferDurationMs: l.transcriber.BufferDurationMs(),
		}})
		l.streamWorker.SubmitSilence(bus.SilenceInjectionMs)
		if l.turnListener != nil {
			l.turnListener.Notify(chunk.TsMs, l.transcriber.BufferDurationMs())
		}
	}

	result := l.streamWorker.SubmitChunk(chunk.Samples)
	if result.Err != nil {
		slog.Error("streaming inference failed", slog.String("err", result.Err.Error()))
		return
	}

	// The InferenceWorker's own endpoint detection (InferenceResult.
	// CommittedDelta) is authoritative when it fires: the engine itself
	// has decided the utterance is over, so that text is committed
	// directly rather than waiting on the word-stability IoU commit path
	// below, which exists for engines whose hypothesis never gets a
	// decisive endpoint signal.
	if result.Inference.CommittedDelta != "" {
		l.transcriber.CommitSegmentText(result.Inference.CommittedDelta)
		l.emitter.Emit(Event{Name: EventStreamCommit, Payload: StreamCommitPayload{Text: result.Inference.CommittedDelta, TsMs: chunk.TsMs}})
	} else {
		l.transcriber.UpdateWords(result.Words)

		if l.transcriber.ShouldCommit() {
			alignment := l.transcriber.AnalyzeWords()
			l.transcriber.Commit(alignment)
			if delta, ok := l.transcriber.TakeLastCommittedDelta(); ok {
				l.emitter.Emit(Event{Name: EventStreamCommit, Payload: StreamCommitPayload{Text: delta, TsMs: chunk.TsMs}})
			}
		}
	}

	main, tail := l.transcriber.BuildFullDisplayText()
	l.emitter.Emit(Event{Name: EventStreamResult, Payload: StreamResultPayload{
		Text:             main,
		VolatileText:     tail,
		IsPartial:        result.Inference.IsPartial,
		BufferDurationMs: l.transcriber.BufferDurationMs(),
	}})
}
