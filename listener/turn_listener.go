package listener

import (
	"context"
	"log/slog"
	"sync"

	"github.com/localstt/streamstt/audio"
	"github.com/localstt/streamstt/engine"
	"github.com/localstt/streamstt/streaming"
	"github.com/localstt/streamstt/vad"
)

// turnTrigger is one VAD-silence notice queued for the TurnListener.
type turnTrigger struct {
	tsMs             int64
	bufferDurationMs uint64
}

// TurnListener reacts to VAD silence notices (queued by AudioListener
// rather than delivered through a generic event bus, to avoid the
// overhead of a full pub/sub layer for a single internal subscriber): it
// runs turn-boundary prediction and, for non-streaming engines, performs
// a confirmed final re-transcription of the whole buffer so the pipeline
// commits clean final text at a detected turn boundary instead of
// waiting on the slower time-based commit threshold.
type TurnListener struct {
	transcriber *streaming.Transcriber
	predictor   vad.TurnPredictor
	emitter     Emitter
	batchEngine engine.SttEngine // nil when a streaming worker already owns commits

	notify chan turnTrigger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	done    chan struct{}
}

// NewTurnListener builds a TurnListener. predictor may be nil to disable
// turn-boundary prediction entirely (silence notices are then only used
// to drive confirmed re-transcription, if batchEngine is set). batchEngine
// should be nil when a streaming worker is already responsible for
// commits, so the TurnListener never double-commits the same audio.
func NewTurnListener(transcriber *streaming.Transcriber, predictor vad.TurnPredictor, emitter Emitter, batchEngine engine.SttEngine) *TurnListener {
	return &TurnListener{
		transcriber: transcriber,
		predictor:   predictor,
		emitter:     emitter,
		batchEngine: batchEngine,
		notify:      make(chan turnTrigger, 8),
	}
}

// Start begins processing silence notices on a new goroutine with a fresh
// cancellation scope.
func (tl *TurnListener) Start(ctx context.Context) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	tl.cancel = cancel
	tl.running = true
	tl.done = make(chan struct{})

	go tl.run(runCtx, tl.done)
}

// Stop cancels the current run and blocks until its goroutine exits.
func (tl *TurnListener) Stop() {
	tl.mu.Lock()
	if !tl.running {
		tl.mu.Unlock()
		return
	}
	cancel := tl.cancel
	done := tl.done
	tl.mu.Unlock()

	cancel()
	<-done
}

// Notify queues a VAD silence notice without blocking the caller; if the
// queue is full the notice is dropped, since a subsequent notice will
// cover the same (or a later) buffer state.
func (tl *TurnListener) Notify(tsMs int64, bufferDurationMs uint64) {
	select {
	case tl.notify <- turnTrigger{tsMs: tsMs, bufferDurationMs: bufferDurationMs}:
	default:
	}
}

func (tl *TurnListener) run(ctx context.Context, done chan struct{}) {
	defer func() {
		tl.mu.Lock()
		tl.running = false
		tl.mu.Unlock()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case trigger := <-tl.notify:
			tl.handle(ctx, trigger)
		}
	}
}

func (tl *TurnListener) handle(ctx context.Context, trigger turnTrigger) {
	if tl.predictor != nil {
		// The silence duration a real turn model would want is not tracked
		// explicitly here; the uncommitted buffer span is used as a proxy,
		// since in the silence-notice path it largely consists of trailing
		// silence after the last committed word.
		buf := tl.transcriber.Buffer()
		uncommittedMs := uint64(len(buf)) * 1000 / uint64(audio.SampleRate)
		prob, err := tl.predictor.PredictEndpoint(buf, uncommittedMs)
		if err != nil {
			slog.Error("turn prediction failed", slog.String("err", err.Error()))
		} else {
			prediction := vad.TurnPrediction{Probability: prob, Threshold: 0.5}
			tl.transcriber.SetTurnPrediction(prediction)
			tl.emitter.Emit(Event{Name: EventTurnPrediction, Payload: TurnPredictionPayload{
				Probability: prediction.Probability,
				Threshold:   prediction.Threshold,
				IsComplete:  prediction.IsComplete(),
				TsMs:        trigger.tsMs,
			}})
		}
	}

	if tl.batchEngine == nil {
		return
	}

	segments, _, err := tl.batchEngine.Transcribe(ctx, tl.transcriber.Buffer())
	if err != nil {
		slog.Error("confirmed batch re-transcription failed", slog.String("err", err.Error()))
		return
	}

	text := joinSegments(segments)
	tl.transcriber.CommitSegmentText(text)

	if delta, ok := tl.transcriber.TakeLastCommittedDelta(); ok {
		tl.emitter.Emit(Event{Name: EventStreamCommit, Payload: StreamCommitPayload{Text: delta, TsMs: trigger.tsMs}})
	}

	main, tail := tl.transcriber.BuildFullDisplayText()
	tl.emitter.Emit(Event{Name: EventStreamResult, Payload: StreamResultPayload{
		Text:             main,
		VolatileText:     tail,
		IsPartial:        false,
		BufferDurationMs: tl.transcriber.BufferDurationMs(),
	}})
}

func joinSegments(segments []engine.Segment) string {
	var texts []string
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}
	return joinNonEmpty(texts)
}

func joinNonEmpty(parts []string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}
