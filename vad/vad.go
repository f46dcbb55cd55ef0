// Package vad tracks voice-activity and semantic turn-end state for a
// single streaming transcription session.
//
// VadState itself never touches a model: it is a pure state machine driven
// by SpeechStart/SpeechEnd edges from a collaborator (see the silero
// sub-package for a concrete detector) and by turn predictions supplied by
// the caller.
package vad

// Event is an edge reported by a voice-activity detector collaborator.
type Event int

const (
	// SpeechStart marks the beginning of a speech segment.
	SpeechStart Event = iota
	// SpeechEnd marks the end of a speech segment (onset of silence).
	SpeechEnd
)

// Detector is the collaborator boundary for a voice-activity detector: fed
// raw samples, it reports the speech/silence edges found within them.
type Detector interface {
	Process(samples []float32) ([]Event, error)
	Reset() error
}

// TurnPrediction is the semantic end-of-turn verdict for a pending silence.
type TurnPrediction struct {
	Probability float32
	Threshold   float32
}

// IsComplete reports whether the prediction judges the utterance finished.
func (p TurnPrediction) IsComplete() bool {
	return p.Probability >= p.Threshold
}

// Settings configures the underlying Detector. Changing settings takes
// effect on the next Reinitialize call.
type Settings struct {
	SampleRate           int
	WindowSize           int
	Threshold            float32
	MinSilenceDurationMs int
	SpeechPadMs          int
}

// DefaultSettings mirrors the tuning used by the collaborator detector in
// the source pipeline (512-sample windows at 16kHz for fine-grained edges).
func DefaultSettings() Settings {
	return Settings{
		SampleRate:           16000,
		WindowSize:           512,
		Threshold:            0.5,
		MinSilenceDurationMs: 350,
		SpeechPadMs:          200,
	}
}

// NewDetectorFunc builds a Detector from Settings. State is kept as a
// constructor function (rather than a direct dependency on one detector
// implementation) so VadState stays decoupled from any particular backend.
type NewDetectorFunc func(Settings) (Detector, error)

// State is the VAD state machine coordinating one streaming session.
//
// State transitions:
//
//	idle          --SpeechStart-->     inSpeech
//	inSpeech      --SpeechEnd-->       pendingSilence
//	pendingSilence --turn(complete)--> pendingSilence (committed)
//	pendingSilence --turn(incomplete)--> inSpeech (cancel pending)
//	pendingSilence --SpeechStart-->    inSpeech (cancel pending)
//	any           --reset-->           idle
type State struct {
	newDetector NewDetectorFunc
	detector    Detector
	settings    Settings

	inSpeech                    bool
	speechEndPending            bool
	speechEndTurnChecked        bool
	speechEndTranscriptionCount uint8
	lastTurnPrediction          *TurnPrediction
	lastTurnEndMs               *uint64
	silenceInjectionPending     bool

	// commitFloor is the minimum post-silence transcription count required
	// before ShouldCommit reports true. The source encodes 2 for streaming
	// engines (let the decoder re-evaluate once more after silence) and 1
	// for batch engines; callers pick by setting this directly.
	commitFloor uint8
}

// New builds a State with no detector (VAD disabled; time-based commits
// only) and the streaming commit floor of 2.
func New() *State {
	return &State{commitFloor: 2}
}

// NewWithDetector builds a State backed by a Detector constructor. If
// construction fails, VAD degrades to disabled (time-based commits only).
func NewWithDetector(newDetector NewDetectorFunc, settings Settings) *State {
	s := &State{newDetector: newDetector, settings: settings, commitFloor: 2}
	if detector, err := newDetector(settings); err == nil {
		s.detector = detector
	}
	return s
}

// SetCommitFloor overrides the post-silence transcription-count floor used
// by ShouldCommit. Streaming engines should use 2, batch engines 1.
func (s *State) SetCommitFloor(floor uint8) {
	s.commitFloor = floor
}

// Settings returns the currently configured Detector settings.
func (s *State) Settings() Settings {
	return s.settings
}

// SetSettings updates the settings. Takes effect on the next Reinitialize.
func (s *State) SetSettings(settings Settings) {
	s.settings = settings
}

// Reinitialize rebuilds the Detector with the current settings and resets
// all flags, as required whenever VAD sensitivity changes mid-session.
func (s *State) Reinitialize() {
	if s.newDetector != nil {
		s.detector, _ = s.newDetector(s.settings)
	}
	s.clearAll()
}

// IsEnabled reports whether a Detector is attached.
func (s *State) IsEnabled() bool {
	return s.detector != nil
}

// InSpeech reports whether the state machine currently believes speech is
// in progress.
func (s *State) InSpeech() bool {
	return s.inSpeech
}

// Process feeds samples through the Detector and folds any edges into
// state. A Detector error degrades silently to time-based commits only
// (the pipeline never unwinds on a VAD hiccup).
func (s *State) Process(samples []float32) {
	if s.detector == nil {
		return
	}

	events, err := s.detector.Process(samples)
	if err != nil {
		return
	}

	for _, event := range events {
		switch event {
		case SpeechStart:
			s.inSpeech = true
			s.speechEndPending = false
			s.speechEndTranscriptionCount = 0
			s.speechEndTurnChecked = false
		case SpeechEnd:
			s.inSpeech = false
			if !s.speechEndPending {
				s.speechEndPending = true
				s.speechEndTranscriptionCount = 0
				s.speechEndTurnChecked = false
				s.silenceInjectionPending = true
			}
		}
	}
}

// HasSpeechEnd reports whether a speech-end is currently pending.
func (s *State) HasSpeechEnd() bool {
	return s.speechEndPending
}

// NeedsTurnPrediction reports whether a pending speech-end still needs a
// turn-prediction verdict.
func (s *State) NeedsTurnPrediction() bool {
	return s.speechEndPending && !s.speechEndTurnChecked
}

// SetTurnPrediction records the verdict for the pending speech-end. An
// incomplete prediction cancels the pending silence, treating it as a
// mid-utterance pause rather than a turn end.
func (s *State) SetTurnPrediction(prediction TurnPrediction) {
	s.lastTurnPrediction = &prediction
	s.speechEndTurnChecked = true

	if !prediction.IsComplete() {
		s.inSpeech = true
		s.speechEndPending = false
		s.speechEndTranscriptionCount = 0
		s.speechEndTurnChecked = false
	}
}

// IsSemanticTurnEnd reports whether the currently pending silence was
// confirmed as a true end-of-turn by the last turn prediction.
func (s *State) IsSemanticTurnEnd() bool {
	return s.speechEndPending && s.lastTurnPrediction != nil && s.lastTurnPrediction.IsComplete()
}

// SetLastTurnEndMs records the absolute timestamp of a confirmed turn
// boundary.
func (s *State) SetLastTurnEndMs(endMs uint64) {
	s.lastTurnEndMs = &endMs
}

// TakeLastTurnEndMs returns and clears the last recorded turn-boundary
// timestamp.
func (s *State) TakeLastTurnEndMs() (uint64, bool) {
	if s.lastTurnEndMs == nil {
		return 0, false
	}
	ms := *s.lastTurnEndMs
	s.lastTurnEndMs = nil
	return ms, true
}

// TakeSilenceInjectionPending returns and clears the one-shot silence
// injection flag set on the first SpeechEnd of a silence run.
func (s *State) TakeSilenceInjectionPending() bool {
	pending := s.silenceInjectionPending
	s.silenceInjectionPending = false
	return pending
}

// TakeLastTurnPrediction returns and clears the last turn prediction.
func (s *State) TakeLastTurnPrediction() (TurnPrediction, bool) {
	if s.lastTurnPrediction == nil {
		return TurnPrediction{}, false
	}
	p := *s.lastTurnPrediction
	s.lastTurnPrediction = nil
	return p, true
}

// ShouldTranscribe reports whether the caller should run inference now:
// VAD disabled, in speech, or a speech end is pending.
func (s *State) ShouldTranscribe() bool {
	if !s.IsEnabled() {
		return true
	}
	return s.inSpeech || s.speechEndPending
}

// ShouldForceTranscribe reports whether this is the first post-silence
// decode, which must run regardless of the caller's periodic threshold.
func (s *State) ShouldForceTranscribe() bool {
	return s.speechEndPending && s.speechEndTranscriptionCount == 0
}

// MarkTranscribed increments the post-silence decode counter (saturating).
func (s *State) MarkTranscribed() {
	if !s.speechEndPending {
		return
	}
	if s.speechEndTranscriptionCount < 255 {
		s.speechEndTranscriptionCount++
	}
}

// ShouldCommit reports whether the caller should commit stable text now,
// based purely on VAD state (time-based thresholds are a separate,
// caller-owned concern).
func (s *State) ShouldCommit() bool {
	return s.speechEndPending && s.speechEndTranscriptionCount >= s.commitFloor
}

// ClearSpeechEnd clears the pending speech-end state after a commit.
func (s *State) ClearSpeechEnd() {
	s.speechEndPending = false
	s.speechEndTurnChecked = false
	s.speechEndTranscriptionCount = 0
}

func (s *State) clearAll() {
	s.inSpeech = false
	s.speechEndPending = false
	s.speechEndTurnChecked = false
	s.speechEndTranscriptionCount = 0
	s.lastTurnPrediction = nil
	s.lastTurnEndMs = nil
	s.silenceInjectionPending = false
}

// Reset reinitializes the detector (if any) and clears all flags, for a
// fresh recording session.
func (s *State) Reset() {
	s.clearAll()
	if s.detector != nil {
		_ = s.detector.Reset()
	}
}
