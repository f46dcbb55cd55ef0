// Package engine defines the collaborator contracts the pipeline drives:
// a batch engine that transcribes a finished span of audio, and an
// optional streaming refinement that pushes word-level hypotheses as
// audio arrives.
package engine

import (
	"context"

	"github.com/localstt/streamstt/words"
)

// Segment is one span of finished, engine-produced text, with
// buffer-relative millisecond timing.
type Segment struct {
	Text    string
	StartMs int64
	EndMs   int64
}

// SttEngine transcribes a finished span of audio in one shot. Every
// concrete engine (Azure Cognitive Services, whisper.cpp, ...) must
// implement this; streaming engines implement StreamingEngine in
// addition.
type SttEngine interface {
	// Transcribe runs inference over samples and returns the resulting
	// segments along with the detected language, if known.
	Transcribe(ctx context.Context, samples []float32) ([]Segment, string, error)

	// Destroy releases the engine's resources. Called exactly once, when
	// the pipeline shuts down.
	Destroy() error
}

// StreamingEngine is implemented by engines that can refine a hypothesis
// incrementally as audio arrives, rather than only on a finished span.
type StreamingEngine interface {
	SttEngine

	// AcceptChunk feeds new samples into the engine's live decode stream
	// and returns its current word-level hypothesis, if any changed.
	AcceptChunk(samples []float32) ([]words.TimedWord, error)

	// AcceptSilence injects synthetic silence, used to nudge the decoder
	// across an endpoint once VAD confirms a turn boundary.
	AcceptSilence(durationMs int) error

	// ResetStream discards in-flight decode state without destroying the
	// engine, so a new utterance starts from a clean slate.
	ResetStream() error

	// Endpoint reports whether the engine's own endpoint detector fired
	// since the last call, returning the finalized text an InferenceWorker
	// should commit. ok is false when no endpoint has been reached yet.
	Endpoint() (text string, ok bool)
}

// Kind identifies which concrete engine a Config selects.
type Kind string

const (
	KindAzure      Kind = "azure"
	KindWhisperCpp Kind = "whispercpp"
)

// IsValid reports whether k is a recognized engine kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindAzure, KindWhisperCpp:
		return true
	default:
		return false
	}
}

// IsStreaming reports whether engines of this kind implement
// StreamingEngine. Used to decide whether the pipeline routes audio
// through the streaming worker path or the batch-on-commit path.
func (k Kind) IsStreaming() bool {
	return k == KindAzure
}
