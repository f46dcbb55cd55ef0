package azure

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"

	"github.com/localstt/streamstt/engine"
	"github.com/localstt/streamstt/words"
)

// StreamAdapter bridges Azure's continuous-recognition event callbacks
// (SessionStarted/Recognizing/Recognized, as wired in
// apis/azure/speech_recognizer.go's TranscribeAsync) to the synchronous,
// one-call-per-chunk surface worker.Recognizer and engine.StreamingEngine
// both expect. The teacher's own TranscribeAsync takes a whole
// `<-chan []float32` and returns a result channel; InferenceWorker instead
// drives one AcceptChunk per 50ms audio chunk and wants the current
// hypothesis back synchronously, so this type keeps the teacher's
// recognizer plumbing internally and exposes the narrower surface. See
// DESIGN.md for why this deviates from the teacher's channel-shaped API.
//
// Azure's SDK does not report word-level timestamps on Recognizing
// (partial) events, only on the final Recognized result. To still satisfy
// the TimedWord contract words.Tracker needs for alignment, the latest
// partial text is split on whitespace and each word is assigned an even
// share of the elapsed time since the current utterance began — an
// approximation, not true word timing; see DESIGN.md.
//
// Recognized is Azure's own authoritative utterance-boundary event (unlike
// Recognizing, which is a non-final, continuously-revised guess). It is
// the endpoint signal Endpoint() surfaces to the InferenceWorker: on each
// Recognized event the finalized text latches into endpointText and
// uttStartedAt rebaselines, so currentHypothesis's elapsed-time word-timing
// approximation never grows past one utterance.
type StreamAdapter struct {
	sr *SpeechRecognizer

	mu              sync.Mutex
	recognizer      *speech.SpeechRecognizer
	audioConf       *audio.AudioConfig
	stream          *audio.PushAudioInputStream
	uttStartedAt    time.Time
	latestText      string
	endpointText    string
	endpointLatched bool
}

// NewStreamAdapter starts a continuous-recognition session over a push
// audio stream that AcceptChunk feeds incrementally.
func NewStreamAdapter(sr *SpeechRecognizer) (*StreamAdapter, error) {
	a := &StreamAdapter{sr: sr}
	if err := a.openSession(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *StreamAdapter) openSession() error {
	recognizer, audioConf, stream, err := a.sr.newSession()
	if err != nil {
		return err
	}

	recognizer.Recognizing(func(event speech.SpeechRecognitionEventArgs) {
		defer event.Close()
		a.mu.Lock()
		a.latestText = event.Result.Text
		a.mu.Unlock()
	})
	recognizer.Recognized(func(event speech.SpeechRecognitionEventArgs) {
		defer event.Close()
		if len(event.Result.Text) == 0 {
			return
		}
		slog.Debug("azure stream: utterance recognized", slog.String("text", event.Result.Text))

		a.mu.Lock()
		a.endpointText = event.Result.Text
		a.endpointLatched = true
		// Rebaseline for the next utterance now, rather than waiting for
		// AcceptChunk to notice: Recognized can fire between chunks, and
		// leaving uttStartedAt alone would let currentHypothesis's
		// elapsed-time approximation keep growing across utterances.
		a.uttStartedAt = time.Now()
		a.latestText = ""
		a.mu.Unlock()
	})

	if err := <-recognizer.StartContinuousRecognitionAsync(); err != nil {
		recognizer.Close()
		audioConf.Close()
		stream.CloseStream()
		return fmt.Errorf("azure: failed to start streaming recognizer: %w", err)
	}

	a.recognizer = recognizer
	a.audioConf = audioConf
	a.stream = stream
	a.uttStartedAt = time.Now()
	a.latestText = ""
	return nil
}

func (a *StreamAdapter) closeSession() {
	if a.stream != nil {
		a.stream.CloseStream()
	}
	if a.recognizer != nil {
		if err := <-a.recognizer.StopContinuousRecognitionAsync(); err != nil {
			slog.Error("azure: failed to stop recognizer", slog.String("err", err.Error()))
		}
		a.recognizer.Close()
	}
	if a.audioConf != nil {
		a.audioConf.Close()
	}
	a.recognizer, a.audioConf, a.stream = nil, nil, nil
}

// AcceptChunk implements worker.Recognizer / engine.StreamingEngine: it
// writes samples to the live push stream and returns the latest partial
// hypothesis the Recognizing handler captured.
func (a *StreamAdapter) AcceptChunk(samples []float32) ([]words.TimedWord, error) {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()
	if stream == nil {
		return nil, fmt.Errorf("azure: stream is not open")
	}

	if err := stream.Write(f32PCMToWAV(samples, a.sr.cfg.SampleRate)); err != nil {
		return nil, fmt.Errorf("azure: failed to write audio chunk: %w", err)
	}

	return a.currentHypothesis(), nil
}

// currentHypothesis approximates per-word timing for the latest partial
// recognition text, as documented on StreamAdapter.
func (a *StreamAdapter) currentHypothesis() []words.TimedWord {
	a.mu.Lock()
	text := strings.TrimSpace(a.latestText)
	startedAt := a.uttStartedAt
	a.mu.Unlock()

	if text == "" {
		return nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	elapsedMs := uint64(time.Since(startedAt).Milliseconds())
	perWordMs := elapsedMs / uint64(len(tokens))
	if perWordMs == 0 {
		perWordMs = 1
	}

	out := make([]words.TimedWord, len(tokens))
	for i, tok := range tokens {
		out[i] = words.TimedWord{
			Text:    tok,
			StartMs: uint64(i) * perWordMs,
			EndMs:   uint64(i+1) * perWordMs,
		}
	}
	return out
}

// AcceptSilence implements worker.Recognizer / engine.StreamingEngine. It
// writes a flat silence window so Azure's own endpointer can close out
// the current utterance, mirroring VadState's silence-injection pulse.
func (a *StreamAdapter) AcceptSilence(durationMs int) error {
	a.mu.Lock()
	stream := a.stream
	rate := a.sr.cfg.SampleRate
	a.mu.Unlock()
	if stream == nil {
		return fmt.Errorf("azure: stream is not open")
	}

	n := durationMs * rate / 1000
	if n <= 0 {
		return nil
	}
	if err := stream.Write(f32PCMToWAV(make([]float32, n), rate)); err != nil {
		return fmt.Errorf("azure: failed to inject silence: %w", err)
	}
	return nil
}

// ResetStream implements worker.Recognizer / engine.StreamingEngine: it
// tears down and re-opens the continuous-recognition session so the next
// utterance starts from a clean decode state. InferenceWorker calls this
// from its own goroutine once Endpoint reports a finalized utterance, so
// this never runs re-entrantly from inside an Azure SDK event callback.
func (a *StreamAdapter) ResetStream() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeSession()
	return a.openSession()
}

// Endpoint implements worker.Recognizer / engine.StreamingEngine: it
// reports whether Azure's own Recognized event has fired since the last
// call, returning the finalized utterance text and clearing the latch so
// each endpoint is reported exactly once.
func (a *StreamAdapter) Endpoint() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.endpointLatched {
		return "", false
	}
	text := a.endpointText
	a.endpointText, a.endpointLatched = "", false
	return text, true
}

// Transcribe implements engine.SttEngine by delegating to a fresh batch
// session on the underlying SpeechRecognizer, so a StreamAdapter can also
// serve VAD-confirmed re-transcription without tearing down the live
// stream.
func (a *StreamAdapter) Transcribe(ctx context.Context, samples []float32) ([]engine.Segment, string, error) {
	return a.sr.Transcribe(ctx, samples)
}

// Destroy implements worker.Recognizer / engine.SttEngine.
func (a *StreamAdapter) Destroy() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeSession()
	return nil
}
