package vad

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultStateHasNoDetector(t *testing.T) {
	s := New()
	require.False(t, s.IsEnabled())
	require.False(t, s.InSpeech())
	require.False(t, s.HasSpeechEnd())
	require.False(t, s.NeedsTurnPrediction())
}

func TestShouldTranscribeWhenDisabled(t *testing.T) {
	s := New()
	require.True(t, s.ShouldTranscribe())
}

type scriptedDetector struct {
	events []Event
}

func (d *scriptedDetector) Process(samples []float32) ([]Event, error) {
	events := d.events
	d.events = nil
	return events, nil
}

func (d *scriptedDetector) Reset() error { return nil }

func newScriptedState(events ...Event) *State {
	d := &scriptedDetector{events: events}
	s := NewWithDetector(func(Settings) (Detector, error) { return d, nil }, DefaultSettings())
	return s
}

func TestSpeechEndPendingOnce(t *testing.T) {
	s := newScriptedState(SpeechEnd)
	s.Process(nil)
	require.True(t, s.HasSpeechEnd())
	require.True(t, s.TakeSilenceInjectionPending())
	require.False(t, s.TakeSilenceInjectionPending(), "flag is one-shot")

	// A second SpeechEnd while pending is ignored (no reset of the count).
	s.MarkTranscribed()
	s.detector.(*scriptedDetector).events = []Event{SpeechEnd}
	s.Process(nil)
	require.EqualValues(t, 1, s.speechEndTranscriptionCount)
}

func TestClearSpeechEnd(t *testing.T) {
	s := New()
	s.speechEndPending = true
	s.speechEndTurnChecked = true
	s.speechEndTranscriptionCount = 2

	s.ClearSpeechEnd()

	require.False(t, s.HasSpeechEnd())
	require.False(t, s.NeedsTurnPrediction())
}

func TestTurnPredictionCancelsSpeechEnd(t *testing.T) {
	s := New()
	s.speechEndPending = true

	s.SetTurnPrediction(TurnPrediction{Probability: 0.3, Threshold: 0.5})

	require.False(t, s.HasSpeechEnd())
	require.EqualValues(t, 0, s.speechEndTranscriptionCount)
}

func TestTurnPredictionKeepsSpeechEnd(t *testing.T) {
	s := New()
	s.speechEndPending = true

	s.SetTurnPrediction(TurnPrediction{Probability: 0.7, Threshold: 0.5})

	require.True(t, s.HasSpeechEnd())
	require.True(t, s.IsSemanticTurnEnd())
}

func TestShouldForceTranscribeOnce(t *testing.T) {
	s := New()
	s.speechEndPending = true

	require.True(t, s.ShouldForceTranscribe())
	s.MarkTranscribed()
	require.False(t, s.ShouldForceTranscribe())
}

func TestShouldCommitRespectsFloor(t *testing.T) {
	s := New()
	s.SetCommitFloor(2)
	s.speechEndPending = true

	require.False(t, s.ShouldCommit())
	s.MarkTranscribed()
	require.False(t, s.ShouldCommit())
	s.MarkTranscribed()
	require.True(t, s.ShouldCommit())
}

func TestResetClearsEverything(t *testing.T) {
	s := New()
	s.inSpeech = true
	s.speechEndPending = true
	s.silenceInjectionPending = true

	s.Reset()

	require.False(t, s.InSpeech())
	require.False(t, s.HasSpeechEnd())
	require.False(t, s.TakeSilenceInjectionPending())
}
