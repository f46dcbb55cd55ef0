package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localstt/streamstt/words"
)

type fakeRecognizer struct {
	mu         sync.Mutex
	chunks     [][]float32
	silences   []int
	resets     int
	closed     bool
	nextWords  []words.TimedWord
	failChunks bool

	endpointText string
	endpointOK   bool
}

func (f *fakeRecognizer) AcceptChunk(samples []float32) ([]words.TimedWord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failChunks {
		return nil, errors.New("boom")
	}
	f.chunks = append(f.chunks, samples)
	return f.nextWords, nil
}

func (f *fakeRecognizer) AcceptSilence(durationMs int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silences = append(f.silences, durationMs)
	return nil
}

func (f *fakeRecognizer) ResetStream() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

// Endpoint returns and clears the endpoint fixture set by a test, so each
// configured endpoint fires exactly once.
func (f *fakeRecognizer) Endpoint() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.endpointOK {
		return "", false
	}
	text := f.endpointText
	f.endpointText, f.endpointOK = "", false
	return text, true
}

func (f *fakeRecognizer) Destroy() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestSubmitChunkReturnsWords(t *testing.T) {
	rec := &fakeRecognizer{nextWords: []words.TimedWord{{Text: "hi", StartMs: 0, EndMs: 100}}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(ctx, rec)
	result := w.SubmitChunk([]float32{1, 2, 3})

	require.NoError(t, result.Err)
	require.Equal(t, rec.nextWords, result.Words)
	require.True(t, result.Inference.IsPartial)
	require.Empty(t, result.Inference.CommittedDelta)
	require.Equal(t, "hi", result.Inference.PartialText)
}

func TestSubmitChunkCommitsOnEndpoint(t *testing.T) {
	rec := &fakeRecognizer{nextWords: []words.TimedWord{{Text: "hi", StartMs: 0, EndMs: 100}}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(ctx, rec)
	result := w.SubmitChunk(make([]float32, 800))
	require.NoError(t, result.Err)
	require.True(t, result.Inference.IsPartial)

	rec.mu.Lock()
	rec.endpointText, rec.endpointOK = "hi there", true
	rec.mu.Unlock()

	result = w.SubmitChunk(make([]float32, 800))
	require.NoError(t, result.Err)
	require.False(t, result.Inference.IsPartial)
	require.Equal(t, "hi there", result.Inference.CommittedDelta)
	require.Equal(t, "hi there", result.Inference.CommittedText)
	require.Empty(t, result.Inference.PartialText)
	require.Zero(t, result.Inference.BufferDurationMs)

	rec.mu.Lock()
	require.Equal(t, 1, rec.resets, "endpoint must trigger a stream reset")
	rec.mu.Unlock()

	// A later commit appends to the accumulator rather than replacing it.
	rec.mu.Lock()
	rec.endpointText, rec.endpointOK = "friend", true
	rec.mu.Unlock()
	result = w.SubmitChunk(make([]float32, 800))
	require.Equal(t, "hi there friend", result.Inference.CommittedText)
}

func TestSubmitResetClearsAccumulator(t *testing.T) {
	rec := &fakeRecognizer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(ctx, rec)
	rec.mu.Lock()
	rec.endpointText, rec.endpointOK = "done", true
	rec.mu.Unlock()
	w.SubmitChunk(make([]float32, 800))

	result := w.SubmitReset()
	require.NoError(t, result.Err)
	require.True(t, result.Inference.IsPartial)
	require.Empty(t, result.Inference.CommittedDelta)

	next := w.SubmitChunk(make([]float32, 800))
	require.Empty(t, next.Inference.CommittedText, "reset must clear the committed accumulator")
}

func TestSubmitSilenceAndReset(t *testing.T) {
	rec := &fakeRecognizer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(ctx, rec)
	require.NoError(t, w.SubmitSilence(100).Err)
	require.NoError(t, w.SubmitReset().Err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []int{100}, rec.silences)
	require.Equal(t, 1, rec.resets)
}

func TestLatestResultCache(t *testing.T) {
	rec := &fakeRecognizer{nextWords: []words.TimedWord{{Text: "ok", StartMs: 0, EndMs: 50}}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(ctx, rec)
	_, ok := w.LatestResult()
	require.False(t, ok)

	w.SubmitChunk([]float32{1})

	latest, ok := w.LatestResult()
	require.True(t, ok)
	require.Equal(t, rec.nextWords, latest.Words)
}

func TestRecognizerClosedOnCancel(t *testing.T) {
	rec := &fakeRecognizer{}
	ctx, cancel := context.WithCancel(context.Background())

	New(ctx, rec)
	cancel()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.closed
	}, time.Second, 5*time.Millisecond)
}

func TestChunkErrorPropagates(t *testing.T) {
	rec := &fakeRecognizer{failChunks: true}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(ctx, rec)
	result := w.SubmitChunk([]float32{1})
	require.Error(t, result.Err)
}

func TestDrainOnShutdownFailsQueuedRequests(t *testing.T) {
	rec := &fakeRecognizer{}
	ctx, cancel := context.WithCancel(context.Background())

	w := New(ctx, rec)
	cancel()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.closed
	}, time.Second, 5*time.Millisecond)

	reply := make(chan Result, 1)
	ok := w.Submit(Request{Kind: KindChunk, Reply: reply})
	if ok {
		select {
		case res := <-reply:
			require.Error(t, res.Err)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for drained reply")
		}
	}
}
