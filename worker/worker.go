// Package worker runs ASR inference on a single dedicated goroutine so a
// non-thread-safe recognizer handle is never touched concurrently, while
// producers and consumers interact with it purely through channels.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/localstt/streamstt/audio"
	"github.com/localstt/streamstt/words"
)

// Recognizer is the minimal decode contract a worker drives. A single
// Recognizer instance is owned exclusively by one Worker goroutine for its
// entire lifetime; implementations need not be safe for concurrent use.
type Recognizer interface {
	// AcceptChunk feeds samples to the recognizer's internal decode
	// stream and returns the current hypothesis, if any.
	AcceptChunk(samples []float32) ([]words.TimedWord, error)

	// AcceptSilence injects synthetic silence, used to nudge a streaming
	// decoder across an endpoint after VAD confirms a turn boundary.
	AcceptSilence(durationMs int) error

	// ResetStream discards in-flight decode state and starts fresh,
	// without destroying the underlying model.
	ResetStream() error

	// Endpoint reports whether the recognizer's own endpoint detector has
	// fired since the last call, returning the finalized text the worker
	// should commit. ok is false when no endpoint has been reached yet,
	// in which case the worker keeps treating the hypothesis as volatile.
	Endpoint() (text string, ok bool)

	// Destroy releases the recognizer's resources. Called exactly once,
	// when the worker goroutine exits.
	Destroy() error
}

// Request is one unit of work submitted to a Worker's goroutine.
type Request struct {
	// Kind selects which operation to run.
	Kind RequestKind
	// Samples is the audio for KindChunk.
	Samples []float32
	// SilenceMs is the duration for KindInjectSilence.
	SilenceMs int
	// Reply receives exactly one Result for this request.
	Reply chan<- Result
}

// RequestKind enumerates the operations a Worker accepts.
type RequestKind int

const (
	// KindChunk runs a decode pass over new audio.
	KindChunk RequestKind = iota
	// KindInjectSilence feeds synthetic silence into the decode stream.
	KindInjectSilence
	// KindReset discards in-flight decode state.
	KindReset
)

// InferenceResult is the worker's per-chunk decode summary: the
// append-only committed text accumulated across endpoints so far, the
// current volatile hypothesis, and how much undecided audio is still
// buffered. CommittedDelta carries the text just committed on this
// request; it is empty on every request that did not cross an endpoint.
type InferenceResult struct {
	CommittedText    string
	PartialText      string
	IsPartial        bool
	BufferDurationMs uint64
	CommittedDelta   string
}

// Result is the outcome of one Request.
type Result struct {
	Words     []words.TimedWord
	Inference InferenceResult
	Err       error
}

// Worker drives a Recognizer from a single dedicated goroutine. Callers
// submit Requests and read the matching Result from the reply channel
// they provide; the latest result is also cached for callers that only
// care about the most recent hypothesis.
//
// Worker owns the session-level accumulator (committedText, totalSamples)
// itself, mirroring the inference_loop closure in
// _examples/original_source/crates/sherpa/src/worker.rs: the recognizer
// only ever sees one utterance's worth of decode state and reports when
// it has reached an endpoint, while the worker is what remembers
// everything committed so far and how much audio has piled up since.
type Worker struct {
	requests   chan Request
	recognizer Recognizer

	// committedText and totalSamples are touched only from the run
	// goroutine, never concurrently, so they need no lock of their own.
	committedText string
	totalSamples  uint64

	mu        sync.Mutex
	latest    Result
	hasLatest bool
}

// New spawns a Worker goroutine owning recognizer exclusively. The
// goroutine exits, destroying recognizer, when ctx is cancelled.
func New(ctx context.Context, recognizer Recognizer) *Worker {
	w := &Worker{
		requests:   make(chan Request, 8),
		recognizer: recognizer,
	}
	go w.run(ctx)
	return w
}

func (w *Worker) run(ctx context.Context) {
	defer func() {
		if err := w.recognizer.Destroy(); err != nil {
			slog.Error("recognizer destroy failed", slog.String("err", err.Error()))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.drain(ctx.Err())
			return
		case req, ok := <-w.requests:
			if !ok {
				return
			}
			w.handle(req)
		}
	}
}

func (w *Worker) handle(req Request) {
	var result Result

	switch req.Kind {
	case KindChunk:
		result = w.handleChunk(req.Samples)
	case KindInjectSilence:
		err := w.recognizer.AcceptSilence(req.SilenceMs)
		result = Result{Err: err}
	case KindReset:
		result = w.handleReset()
	default:
		result = Result{Err: fmt.Errorf("worker: unknown request kind %d", req.Kind)}
	}

	if result.Err != nil {
		slog.Error("inference worker request failed", slog.Int("kind", int(req.Kind)), slog.String("err", result.Err.Error()))
	}

	w.mu.Lock()
	w.latest = result
	w.hasLatest = true
	w.mu.Unlock()

	if req.Reply != nil {
		req.Reply <- result
	}
}

// handleChunk feeds samples to the recognizer, then checks whether it has
// reached an endpoint. On endpoint it appends the finalized text to the
// committed accumulator, resets the sample counter, and resets the
// recognizer's in-flight decode stream so the next utterance starts
// clean — the same commit-then-reset sequence worker.rs runs around
// SherpaOnnxOnlineStreamIsEndpoint / SherpaOnnxOnlineStreamReset.
func (w *Worker) handleChunk(samples []float32) Result {
	ws, err := w.recognizer.AcceptChunk(samples)
	if err != nil {
		return Result{Err: err}
	}
	w.totalSamples += uint64(len(samples))

	inf := InferenceResult{
		CommittedText:    w.committedText,
		PartialText:      wordsToText(ws),
		IsPartial:        true,
		BufferDurationMs: w.bufferDurationMs(),
	}

	if delta, ok := w.recognizer.Endpoint(); ok {
		delta = strings.TrimSpace(delta)
		if delta != "" {
			if w.committedText == "" {
				w.committedText = delta
			} else {
				w.committedText += " " + delta
			}
			w.totalSamples = 0
			if resetErr := w.recognizer.ResetStream(); resetErr != nil {
				slog.Error("recognizer stream reset failed", slog.String("err", resetErr.Error()))
			}

			inf.CommittedText = w.committedText
			inf.CommittedDelta = delta
			inf.PartialText = ""
			inf.IsPartial = false
			inf.BufferDurationMs = 0
		}
	}

	return Result{Words: ws, Inference: inf}
}

// handleReset clears the committed accumulator along with the recognizer's
// own stream state, for an explicit full-session reset.
func (w *Worker) handleReset() Result {
	err := w.recognizer.ResetStream()
	w.committedText = ""
	w.totalSamples = 0
	return Result{Err: err, Inference: InferenceResult{IsPartial: true}}
}

// bufferDurationMs converts the accumulated, not-yet-committed sample
// count into milliseconds at the pipeline's fixed sample rate.
func (w *Worker) bufferDurationMs() uint64 {
	return w.totalSamples * 1000 / uint64(audio.SampleRate)
}

// wordsToText flattens a word-level hypothesis into a plain string for
// InferenceResult.PartialText.
func wordsToText(ws []words.TimedWord) string {
	if len(ws) == 0 {
		return ""
	}
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// drain fails any requests still queued when the worker shuts down, so no
// caller blocks forever waiting on a reply that will never arrive.
func (w *Worker) drain(cause error) {
	for {
		select {
		case req, ok := <-w.requests:
			if !ok {
				return
			}
			if req.Reply != nil {
				req.Reply <- Result{Err: cause}
			}
		default:
			return
		}
	}
}

// Submit enqueues req without waiting for a reply; the caller reads req.Reply
// itself. Returns false if the worker has already shut down.
func (w *Worker) Submit(req Request) bool {
	select {
	case w.requests <- req:
		return true
	default:
		return false
	}
}

// SubmitChunk submits a decode request and blocks for its result.
func (w *Worker) SubmitChunk(samples []float32) Result {
	reply := make(chan Result, 1)
	if !w.Submit(Request{Kind: KindChunk, Samples: samples, Reply: reply}) {
		return Result{Err: fmt.Errorf("worker: request queue full")}
	}
	return <-reply
}

// SubmitSilence submits a silence-injection request and blocks for its
// result.
func (w *Worker) SubmitSilence(durationMs int) Result {
	reply := make(chan Result, 1)
	if !w.Submit(Request{Kind: KindInjectSilence, SilenceMs: durationMs, Reply: reply}) {
		return Result{Err: fmt.Errorf("worker: request queue full")}
	}
	return <-reply
}

// SubmitReset submits a stream-reset request and blocks for its result.
func (w *Worker) SubmitReset() Result {
	reply := make(chan Result, 1)
	if !w.Submit(Request{Kind: KindReset, Reply: reply}) {
		return Result{Err: fmt.Errorf("worker: request queue full")}
	}
	return <-reply
}

// LatestResult returns the most recently completed result, if any.
func (w *Worker) LatestResult() (Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasLatest {
		return Result{}, false
	}
	return w.latest, true
}
