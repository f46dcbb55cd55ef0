package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushAndSamples(t *testing.T) {
	b := New()
	b.Push([]float32{1, 2, 3})
	require.Equal(t, []float32{1, 2, 3}, b.Samples())
}

func TestDurationCalculation(t *testing.T) {
	b := New()
	b.Push(make([]float32, 16000))
	require.EqualValues(t, 1000, b.CurrentDurationMs())
	require.EqualValues(t, 1000, b.TotalDurationMs())
}

func TestTrimUpdatesOffset(t *testing.T) {
	b := New()
	b.Push(make([]float32, 32000))

	b.TrimFromMs(1000)

	require.EqualValues(t, 1000, b.TimestampOffsetMs())
	require.EqualValues(t, 1000, b.CurrentDurationMs())
	require.EqualValues(t, 2000, b.TotalDurationMs())
}

func TestClearPreservesTotalDuration(t *testing.T) {
	b := New()
	b.Push(make([]float32, 16000))

	b.Clear()

	require.Empty(t, b.Samples())
	require.EqualValues(t, 1000, b.TotalDurationMs())
	require.EqualValues(t, 1000, b.TimestampOffsetMs())
}

func TestResetClearsEverything(t *testing.T) {
	b := New()
	b.Push(make([]float32, 16000))
	b.TrimFromMs(500)

	b.Reset()

	require.Empty(t, b.Samples())
	require.EqualValues(t, 0, b.TimestampOffsetMs())
	require.EqualValues(t, 0, b.TotalDurationMs())
}

func TestMaxBufferCapTrimsOldest(t *testing.T) {
	b := New()
	b.Push(make([]float32, MaxBufferSamples+8000))
	require.LessOrEqual(t, len(b.Samples()), MaxBufferSamples)
	require.Greater(t, b.TimestampOffsetMs(), uint64(0))
}

func TestHasNewAudio(t *testing.T) {
	b := New()
	b.Push(make([]float32, 100))
	require.True(t, b.HasNewAudio(100))
	require.False(t, b.HasNewAudio(101))

	b.MarkTranscribed()
	require.False(t, b.HasNewAudio(1))

	b.Push(make([]float32, 50))
	require.True(t, b.HasNewAudio(50))
}

func TestCompactionHappensPastThreshold(t *testing.T) {
	b := New()
	// Push well past MaxBufferSamples so start_cursor crosses
	// compactThreshold and compact() physically reclaims memory.
	b.Push(make([]float32, MaxBufferSamples+compactThreshold+8000))
	require.LessOrEqual(t, len(b.Samples()), MaxBufferSamples)
	require.Greater(t, b.TimestampOffsetMs(), uint64(0))
}
