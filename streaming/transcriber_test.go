package streaming

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/localstt/streamstt/words"
)

func TestAddSamples(t *testing.T) {
	tr := New()
	tr.AddSamples(make([]float32, 1000))
	require.Len(t, tr.Buffer(), 1000)
}

func TestBuildDisplayTextOutsideTail(t *testing.T) {
	tr := New()
	tr.AddSamples(make([]float32, 32000)) // 2s, outside the 600ms tail window

	tr.UpdateWords([]words.TimedWord{
		{Text: "Hello", StartMs: 0, EndMs: 500},
		{Text: "world", StartMs: 500, EndMs: 1000},
	})

	require.Equal(t, "Hello world", tr.BuildDisplayText())
}

func TestResetClearsAllState(t *testing.T) {
	tr := New()
	tr.AddSamples(make([]float32, 1000))

	tr.Reset()

	require.Empty(t, tr.Buffer())
	require.Empty(t, tr.CommittedText())
}

func TestShouldTranscribeWithoutVAD(t *testing.T) {
	tr := New()
	// VAD disabled -> should_transcribe is gated purely by new-audio threshold.
	require.False(t, tr.ShouldTranscribe())
	tr.AddSamples(make([]float32, TranscribeThreshold))
	require.True(t, tr.ShouldTranscribe())
	tr.MarkTranscribed()
	require.False(t, tr.ShouldTranscribe())
}
