package bus

import (
	"math"
	"sync/atomic"
)

// StatusSnapshot is a point-in-time copy of Status's counters.
type StatusSnapshot struct {
	ChunksProcessed uint64
	ChunksDropped   uint64
	GapsDetected    uint64
	LastSeq         uint64
	LagMs           int64
	RealTimeFactor  float64
	InferenceCount  uint64
	LastInferenceMs int64
}

// Status holds lock-free counters describing pipeline health: throughput,
// lag behind wall clock, gaps in the sequence stream, and decode
// real-time-factor. Every field is an atomic so producer, worker and
// reporting goroutines can update and read it concurrently without a
// mutex.
type Status struct {
	chunksProcessed atomic.Uint64
	chunksDropped   atomic.Uint64
	gapsDetected    atomic.Uint64
	lastSeq         atomic.Uint64
	lagMs           atomic.Int64
	rtfBits         atomic.Uint64
	inferenceCount  atomic.Uint64
	lastInferenceMs atomic.Int64
}

// NewStatus returns a zeroed Status.
func NewStatus() *Status {
	return &Status{}
}

// RecordChunk records that a chunk with the given sequence number was
// consumed, and updates the lag estimate (wall-clock-now minus the
// chunk's capture timestamp, in milliseconds).
func (s *Status) RecordChunk(seq uint64, lagMs int64) {
	s.chunksProcessed.Add(1)
	s.lastSeq.Store(seq)
	s.lagMs.Store(lagMs)
}

// RecordDrop records a dropped chunk.
func (s *Status) RecordDrop() {
	s.chunksDropped.Add(1)
}

// RecordGap records a detected sequence-number gap of the given size.
func (s *Status) RecordGap(size uint64) {
	s.gapsDetected.Add(size)
}

// RecordInference records one decode pass: the wall-clock milliseconds it
// took and the audio milliseconds it covered, from which the real-time
// factor (processing-time / audio-time) is derived. A real-time factor
// below 1.0 means the engine is keeping up with live audio.
func (s *Status) RecordInference(wallMs, audioMs int64) {
	s.inferenceCount.Add(1)
	s.lastInferenceMs.Store(wallMs)

	if audioMs <= 0 {
		return
	}
	rtf := float64(wallMs) / float64(audioMs)
	s.rtfBits.Store(math.Float64bits(rtf))
}

// Snapshot returns a consistent-enough point-in-time copy of all counters.
// Individual fields may interleave under concurrent writers, which is
// acceptable for a monitoring read.
func (s *Status) Snapshot() StatusSnapshot {
	return StatusSnapshot{
		ChunksProcessed: s.chunksProcessed.Load(),
		ChunksDropped:   s.chunksDropped.Load(),
		GapsDetected:    s.gapsDetected.Load(),
		LastSeq:         s.lastSeq.Load(),
		LagMs:           s.lagMs.Load(),
		RealTimeFactor:  math.Float64frombits(s.rtfBits.Load()),
		InferenceCount:  s.inferenceCount.Load(),
		LastInferenceMs: s.lastInferenceMs.Load(),
	}
}

// Reset zeroes every counter, for reuse across recording sessions.
func (s *Status) Reset() {
	s.chunksProcessed.Store(0)
	s.chunksDropped.Store(0)
	s.gapsDetected.Store(0)
	s.lastSeq.Store(0)
	s.lagMs.Store(0)
	s.rtfBits.Store(0)
	s.inferenceCount.Store(0)
	s.lastInferenceMs.Store(0)
}
