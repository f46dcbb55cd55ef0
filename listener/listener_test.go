package listener

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localstt/streamstt/bus"
	"github.com/localstt/streamstt/engine"
	"github.com/localstt/streamstt/streaming"
	"github.com/localstt/streamstt/words"
	"github.com/localstt/streamstt/worker"
)

type listenerFakeRecognizer struct{}

func (listenerFakeRecognizer) AcceptChunk(_ []float32) ([]words.TimedWord, error) {
	return []words.TimedWord{{Text: "hi", StartMs: 0, EndMs: 100}}, nil
}

func (listenerFakeRecognizer) AcceptSilence(_ int) error { return nil }
func (listenerFakeRecognizer) ResetStream() error        { return nil }
func (listenerFakeRecognizer) Endpoint() (string, bool)  { return "", false }
func (listenerFakeRecognizer) Destroy() error            { return nil }

type spyEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (s *spyEmitter) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *spyEmitter) find(name string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type fakeBatchEngine struct {
	mu       sync.Mutex
	segments []engine.Segment
	calls    int
}

func (f *fakeBatchEngine) Transcribe(_ context.Context, _ []float32) ([]engine.Segment, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.segments, "en", nil
}

func (f *fakeBatchEngine) Destroy() error { return nil }

func (f *fakeBatchEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSegmentsToWordsSplitsEvenly(t *testing.T) {
	segs := []engine.Segment{{Text: "hello world", StartMs: 0, EndMs: 1000}}
	ws := segmentsToWords(segs)
	require.Len(t, ws, 2)
	require.Equal(t, "hello", ws[0].Text)
	require.Equal(t, "world", ws[1].Text)
	require.EqualValues(t, 1000, ws[1].EndMs)
}

func TestAudioListenerBatchPathEmitsStreamResult(t *testing.T) {
	b := bus.New()
	recv, _ := b.TakeReceiver()
	sender := b.Sender()

	tr := streaming.New()
	emitter := &spyEmitter{}
	eng := &fakeBatchEngine{segments: []engine.Segment{{Text: "hi there", StartMs: 0, EndMs: 400}}}

	al := New(recv, bus.NewStatus(), tr, emitter, nil, eng, nil)

	ctx, cancel := context.WithCancel(context.Background())
	al.Start(ctx)

	sender.Send(time.Now().UnixMilli(), bus.SampleRate, make([]float32, streaming.TranscribeThreshold))

	require.Eventually(t, func() bool {
		return len(emitter.find(EventStreamResult)) > 0
	}, time.Second, 5*time.Millisecond)

	require.GreaterOrEqual(t, eng.callCount(), 1)

	cancel()
	al.Stop()
}

func TestAudioListenerStreamingPathEmitsStreamResult(t *testing.T) {
	b := bus.New()
	recv, _ := b.TakeReceiver()
	sender := b.Sender()

	tr := streaming.New()
	emitter := &spyEmitter{}

	rec := listenerFakeRecognizer{}
	wctx, wcancel := context.WithCancel(context.Background())
	defer wcancel()
	wk := worker.New(wctx, rec)

	al := New(recv, bus.NewStatus(), tr, emitter, wk, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	al.Start(ctx)
	defer func() {
		cancel()
		al.Stop()
	}()

	sender.Send(time.Now().UnixMilli(), bus.SampleRate, make([]float32, 160))

	require.Eventually(t, func() bool {
		return len(emitter.find(EventStreamResult)) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestTurnListenerEmitsPredictionAndConfirmedCommit(t *testing.T) {
	tr := streaming.New()
	tr.AddSamples(make([]float32, 16000))
	tr.UpdateWords([]words.TimedWord{{Text: "hello", StartMs: 0, EndMs: 400}})

	emitter := &spyEmitter{}
	eng := &fakeBatchEngine{segments: []engine.Segment{{Text: "confirmed text", StartMs: 0, EndMs: 500}}}
	predictor := alwaysCompletePredictor{}

	tl := NewTurnListener(tr, predictor, emitter, eng)

	ctx, cancel := context.WithCancel(context.Background())
	tl.Start(ctx)
	defer func() {
		cancel()
		tl.Stop()
	}()

	tl.Notify(time.Now().UnixMilli(), 500)

	require.Eventually(t, func() bool {
		return len(emitter.find(EventTurnPrediction)) > 0 && len(emitter.find(EventStreamCommit)) > 0
	}, time.Second, 5*time.Millisecond)

	commits := emitter.find(EventStreamCommit)
	payload := commits[0].Payload.(StreamCommitPayload)
	require.Equal(t, "confirmed text", payload.Text)
}

type alwaysCompletePredictor struct{}

func (alwaysCompletePredictor) PredictEndpoint(_ []float32, _ uint64) (float32, error) {
	return 1.0, nil
}
