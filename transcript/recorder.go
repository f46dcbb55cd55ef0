package transcript

import (
	"sync"

	"github.com/localstt/streamstt/listener"
)

// Recorder accumulates committed text deltas emitted during a live
// session into a renderable Transcription, standing in for the post-call
// segment list the teacher's batch job received directly from its STT
// API. This is a feature the distilled spec does not ask for but the
// teacher's well-tested output writers assume exists, so a live pipeline
// needs some way to build one incrementally.
type Recorder struct {
	mu               sync.Mutex
	speaker          string
	language         string
	sessionStartTsMs int64
	lastEndTS        int64
	segments         []Segment
}

// NewRecorder returns a Recorder for a single-speaker session starting at
// sessionStartTsMs (wall-clock epoch milliseconds), against which every
// subsequent commit event's ts_ms is made relative.
func NewRecorder(speaker, language string, sessionStartTsMs int64) *Recorder {
	return &Recorder{
		speaker:          speaker,
		language:         language,
		sessionStartTsMs: sessionStartTsMs,
	}
}

// HandleEvent appends a new Segment for every stream_commit event;
// all other event kinds are ignored.
func (r *Recorder) HandleEvent(event listener.Event) {
	if event.Name != listener.EventStreamCommit {
		return
	}
	payload, ok := event.Payload.(listener.StreamCommitPayload)
	if !ok || payload.Text == "" {
		return
	}

	relTs := payload.TsMs - r.sessionStartTsMs
	if relTs < 0 {
		relTs = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.segments = append(r.segments, Segment{
		Text:    payload.Text,
		StartTS: r.lastEndTS,
		EndTS:   relTs,
	})
	r.lastEndTS = relTs
}

// Transcription returns a snapshot of everything recorded so far as a
// single-track Transcription, ready for WebVTT or Text rendering.
func (r *Recorder) Transcription() Transcription {
	r.mu.Lock()
	defer r.mu.Unlock()

	segments := make([]Segment, len(r.segments))
	copy(segments, r.segments)

	return Transcription{{
		Speaker:  r.speaker,
		Language: r.language,
		Segments: segments,
	}}
}
