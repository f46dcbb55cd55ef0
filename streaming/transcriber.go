// Package streaming composes the audio buffer, VAD state machine, and word
// tracker into the public streaming-transcription contract consumed by the
// audio listener and worker layers.
package streaming

import (
	"github.com/localstt/streamstt/audio"
	"github.com/localstt/streamstt/vad"
	"github.com/localstt/streamstt/words"
)

// TranscribeThreshold is how much new audio (in samples) must accumulate
// before a periodic (non-forced) transcription runs.
const TranscribeThreshold = 200 * audio.SampleRate / 1000 // 200ms

// Transcriber coordinates AudioBuffer, vad.State and words.Tracker behind a
// single session-scoped handle. It owns all three exclusively; none are
// shared outside of it.
type Transcriber struct {
	buffer *audio.Buffer
	vad    *vad.State
	words  *words.Tracker
}

// New builds a Transcriber with VAD disabled (time-based commits only).
func New() *Transcriber {
	return &Transcriber{
		buffer: audio.New(),
		vad:    vad.New(),
		words:  words.New(),
	}
}

// NewWithVAD builds a Transcriber backed by the given VAD state, allowing
// the caller to configure a real detector and/or a batch-engine commit
// floor of 1 instead of the streaming default of 2.
func NewWithVAD(v *vad.State) *Transcriber {
	return &Transcriber{
		buffer: audio.New(),
		vad:    v,
		words:  words.New(),
	}
}

// AddSamples appends samples to the buffer and runs them through VAD.
func (t *Transcriber) AddSamples(samples []float32) {
	t.buffer.Push(samples)
	t.vad.Process(samples)
}

// Buffer returns the current logical buffer contents (no copy).
func (t *Transcriber) Buffer() []float32 {
	return t.buffer.Samples()
}

// BufferDurationMs returns the total elapsed audio duration, including
// anything already trimmed.
func (t *Transcriber) BufferDurationMs() uint64 {
	return t.buffer.TotalDurationMs()
}

func (t *Transcriber) bufferEndAbsMs() uint64 {
	return t.buffer.TimestampOffsetMs() + t.buffer.CurrentDurationMs()
}

// HasSpeechEnd reports whether VAD detected a pending speech end.
func (t *Transcriber) HasSpeechEnd() bool {
	return t.vad.HasSpeechEnd()
}

// NeedsTurnPrediction reports whether a pending speech end still needs a
// turn-prediction verdict.
func (t *Transcriber) NeedsTurnPrediction() bool {
	return t.vad.NeedsTurnPrediction()
}

// ClearSpeechEnd clears the VAD speech-end flag.
func (t *Transcriber) ClearSpeechEnd() {
	t.vad.ClearSpeechEnd()
}

// SetTurnPrediction records a turn-prediction verdict for the pending
// speech end.
func (t *Transcriber) SetTurnPrediction(p vad.TurnPrediction) {
	t.vad.SetTurnPrediction(p)
}

// TakeLastTurnPrediction returns and clears the last turn prediction.
func (t *Transcriber) TakeLastTurnPrediction() (vad.TurnPrediction, bool) {
	return t.vad.TakeLastTurnPrediction()
}

// TakeLastTurnEndMs returns and clears the last confirmed turn-boundary
// timestamp.
func (t *Transcriber) TakeLastTurnEndMs() (uint64, bool) {
	return t.vad.TakeLastTurnEndMs()
}

// TakeSilenceInjectionPending returns and clears the one-shot silence
// injection flag.
func (t *Transcriber) TakeSilenceInjectionPending() bool {
	return t.vad.TakeSilenceInjectionPending()
}

// ShouldTranscribe reports whether enough new audio (or a forced
// post-silence decode) warrants running inference now.
func (t *Transcriber) ShouldTranscribe() bool {
	if !t.vad.ShouldTranscribe() {
		return false
	}
	if t.vad.ShouldForceTranscribe() {
		return true
	}
	return t.buffer.HasNewAudio(TranscribeThreshold)
}

// MarkTranscribed records that a transcription pass ran at the current
// buffer length.
func (t *Transcriber) MarkTranscribed() {
	t.buffer.MarkTranscribed()
	t.vad.MarkTranscribed()
}

// UpdateWords aligns a new hypothesis against tracked words.
func (t *Transcriber) UpdateWords(newWords []words.TimedWord) {
	t.words.Update(newWords, t.buffer.TimestampOffsetMs())
}

// ShouldCommit reports whether stable words should be committed now: VAD
// says so, or the buffer has simply grown past the time-based threshold.
func (t *Transcriber) ShouldCommit() bool {
	if t.vad.ShouldCommit() {
		return true
	}
	return t.buffer.ExceedsCommitThreshold()
}

// AnalyzeWords returns the current alignment result (the committable
// prefix of tracked words).
func (t *Transcriber) AnalyzeWords() words.AlignmentResult {
	return t.words.Analyze(t.bufferEndAbsMs())
}

// Commit commits the given alignment, trims or clears the buffer
// accordingly, clears the VAD speech-end flag, and — on a semantic turn
// end — arms the next append for a paragraph break and records the turn
// boundary.
func (t *Transcriber) Commit(alignment words.AlignmentResult) {
	bufferEnd := t.bufferEndAbsMs()
	isSemanticTurnEnd := t.vad.IsSemanticTurnEnd()

	t.words.Commit(alignment, bufferEnd)

	if alignment.TrimFromMs != nil {
		t.buffer.TrimFromMs(*alignment.TrimFromMs)
	} else {
		t.buffer.Clear()
	}

	t.vad.ClearSpeechEnd()

	if isSemanticTurnEnd {
		t.words.SetParagraphBreakPending()
		t.vad.SetLastTurnEndMs(t.words.CommittedEndMs())
	}
}

// CommitSegmentText commits segment text directly (for engines without
// word-level timing), clearing the buffer unconditionally.
func (t *Transcriber) CommitSegmentText(text string) {
	isSemanticTurnEnd := t.vad.IsSemanticTurnEnd()

	t.words.CommitText(text)
	t.buffer.Clear()
	t.vad.ClearSpeechEnd()

	if isSemanticTurnEnd {
		t.words.SetParagraphBreakPending()
	}
}

// CommittedText returns the append-only committed text accumulated so far.
func (t *Transcriber) CommittedText() string {
	return t.words.CommittedText()
}

// BuildDisplayText builds committed text plus stabilized tracked words.
func (t *Transcriber) BuildDisplayText() string {
	return t.words.BuildDisplayText(t.bufferEndAbsMs())
}

// BuildFullDisplayText returns (main, volatileTail) so a caller can render
// the tail with a distinct style.
func (t *Transcriber) BuildFullDisplayText() (string, string) {
	return t.words.BuildFullDisplayText(t.bufferEndAbsMs())
}

// TakeLastCommittedDelta returns and clears the text committed on the most
// recent Commit/CommitSegmentText call.
func (t *Transcriber) TakeLastCommittedDelta() (string, bool) {
	return t.words.TakeLastCommittedDelta()
}

// Reset restores the Transcriber to pristine state without reallocating
// its owned subsystems.
func (t *Transcriber) Reset() {
	t.buffer.Reset()
	t.vad.Reset()
	t.words.Reset()
}

// ClearWordCache drops tracked words while leaving committed state intact.
func (t *Transcriber) ClearWordCache() {
	t.words.ClearCache()
}

// VADSettings returns the current VAD detector settings.
func (t *Transcriber) VADSettings() vad.Settings {
	return t.vad.Settings()
}

// SetVADSettings updates and reinitializes the VAD detector.
func (t *Transcriber) SetVADSettings(settings vad.Settings) {
	t.vad.SetSettings(settings)
	t.vad.Reinitialize()
}
