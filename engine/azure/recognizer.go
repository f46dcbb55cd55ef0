// Package azure adapts github.com/Microsoft/cognitive-services-speech-sdk-go
// into the engine.SttEngine / engine.StreamingEngine collaborator
// contracts, grounded on apis/azure/speech_recognizer.go's push-audio-
// stream continuous recognizer.
package azure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"

	"github.com/localstt/streamstt/engine"
)

// Config configures one Azure Cognitive Services Speech subscription.
type Config struct {
	SpeechKey    string
	SpeechRegion string
	Language     string
	DataDir      string
	SampleRate   int
}

// IsValid reports whether cfg has everything needed to reach the service.
func (c Config) IsValid() error {
	if c.SpeechKey == "" {
		return fmt.Errorf("azure: SpeechKey should not be empty")
	}
	if c.SpeechRegion == "" {
		return fmt.Errorf("azure: SpeechRegion should not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("azure: DataDir should not be empty")
	}
	return nil
}

// SpeechRecognizer implements engine.SttEngine using Azure's batch
// continuous-recognition flow: write the whole clip to a push stream,
// close it, and collect every Recognized event until end-of-stream.
type SpeechRecognizer struct {
	cfg          Config
	speechConfig *speech.SpeechConfig
}

// New validates cfg and builds the shared SpeechConfig every recognition
// session (batch or streaming) is created from.
func New(cfg Config) (*SpeechRecognizer, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("azure: failed to validate config: %w", err)
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}

	speechConfig, err := speech.NewSpeechConfigFromSubscription(cfg.SpeechKey, cfg.SpeechRegion)
	if err != nil {
		return nil, fmt.Errorf("azure: failed to create speech config: %w", err)
	}
	if cfg.Language != "" {
		if err := speechConfig.SetSpeechRecognitionLanguage(cfg.Language); err != nil {
			return nil, fmt.Errorf("azure: failed to set recognition language: %w", err)
		}
	}
	if err := speechConfig.SetProperty(common.SpeechLogFilename, filepath.Join(cfg.DataDir, "azure.log")); err != nil {
		return nil, fmt.Errorf("azure: failed to set log property: %w", err)
	}

	return &SpeechRecognizer{cfg: cfg, speechConfig: speechConfig}, nil
}

func (s *SpeechRecognizer) newSession() (*speech.SpeechRecognizer, *audio.AudioConfig, *audio.PushAudioInputStream, error) {
	audioStream, err := audio.CreatePushAudioInputStream()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("azure: failed to create audio stream: %w", err)
	}

	audioConfig, err := audio.NewAudioConfigFromStreamInput(audioStream)
	if err != nil {
		audioStream.CloseStream()
		return nil, nil, nil, fmt.Errorf("azure: failed to create audio config: %w", err)
	}

	recognizer, err := speech.NewSpeechRecognizerFromConfig(s.speechConfig, audioConfig)
	if err != nil {
		audioConfig.Close()
		audioStream.CloseStream()
		return nil, nil, nil, fmt.Errorf("azure: failed to create speech recognizer: %w", err)
	}

	recognizer.SessionStarted(func(event speech.SessionEventArgs) {
		defer event.Close()
		slog.Debug("azure session started", slog.String("sessionID", event.SessionID))
	})
	recognizer.Canceled(func(event speech.SpeechRecognitionCanceledEventArgs) {
		defer event.Close()
		slog.Debug("azure session canceled", slog.String("details", event.ErrorDetails))
	})

	return recognizer, audioConfig, audioStream, nil
}

// Transcribe implements engine.SttEngine: it feeds the whole clip through
// a fresh recognition session and waits for every Recognized event, or
// end-of-stream, or a generous timeout, whichever comes first.
func (s *SpeechRecognizer) Transcribe(ctx context.Context, samples []float32) ([]engine.Segment, string, error) {
	inputDuration := time.Duration(len(samples)) * time.Second / time.Duration(s.cfg.SampleRate)

	recognizer, audioConfig, audioStream, err := s.newSession()
	if err != nil {
		return nil, "", err
	}
	defer func() {
		audioStream.CloseStream()
		audioConfig.Close()
		recognizer.Close()
	}()

	resultsCh := make(chan speech.SpeechRecognitionResult, 8)
	errCh := make(chan error, 1)
	eosCh := make(chan struct{})

	recognizer.Recognized(func(event speech.SpeechRecognitionEventArgs) {
		defer event.Close()
		switch {
		case event.Result.Reason == common.NoMatch:
			slog.Debug("azure: no match")
		case event.Result.Reason == common.Canceled:
			slog.Debug("azure: recognized event canceled")
		case len(event.Result.Text) == 0:
			slog.Debug("azure: empty recognition result")
		default:
			resultsCh <- event.Result
		}
	})
	recognizer.Canceled(func(event speech.SpeechRecognitionCanceledEventArgs) {
		defer event.Close()
		if event.Reason == common.EndOfStream {
			close(eosCh)
		} else if event.Reason == common.Error {
			errCh <- errors.New(event.ErrorDetails)
		}
	})

	if err := <-recognizer.StartContinuousRecognitionAsync(); err != nil {
		return nil, "", fmt.Errorf("azure: failed to start recognizer: %w", err)
	}
	defer func() {
		if err := <-recognizer.StopContinuousRecognitionAsync(); err != nil {
			slog.Error("azure: failed to stop recognizer", slog.String("err", err.Error()))
		}
	}()

	if err := audioStream.Write(f32PCMToWAV(samples, s.cfg.SampleRate)); err != nil {
		return nil, "", fmt.Errorf("azure: failed to write audio data: %w", err)
	}
	audioStream.CloseStream()

	timeout := max(inputDuration*2, 10*time.Second)
	timeoutCh := time.After(timeout)

	var segments []engine.Segment
	for {
		select {
		case <-ctx.Done():
			return segments, "", ctx.Err()
		case result := <-resultsCh:
			segments = append(segments, engine.Segment{
				Text:    result.Text,
				StartMs: int64(result.Offset.Seconds() * 1000),
				EndMs:   int64((result.Offset.Seconds() + result.Duration.Seconds()) * 1000),
			})
		case <-timeoutCh:
			return nil, "", fmt.Errorf("azure: timed out waiting for transcription")
		case err := <-errCh:
			return nil, "", fmt.Errorf("azure: transcription failed: %w", err)
		case <-eosCh:
			return segments, "", nil
		}
	}
}

// Destroy implements engine.SttEngine.
func (s *SpeechRecognizer) Destroy() error {
	if s.speechConfig != nil {
		s.speechConfig.Close()
		s.speechConfig = nil
	}
	return nil
}
