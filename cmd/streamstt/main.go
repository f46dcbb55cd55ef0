// Command streamstt is the process entrypoint: it wires configuration,
// logging, the audio bus, an STT engine, the streaming transcriber, and
// the audio/turn listeners together into one running pipeline, adapted
// from cmd/transcriber/main.go's process bootstrap (log file + stdout
// dual-writer, env-driven config, signal-driven shutdown) but built
// around a long-running local session instead of a one-shot call job.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/localstt/streamstt/bus"
	"github.com/localstt/streamstt/config"
	"github.com/localstt/streamstt/engine"
	"github.com/localstt/streamstt/engine/azure"
	"github.com/localstt/streamstt/engine/whispercpp"
	"github.com/localstt/streamstt/ingest/webrtctrack"
	"github.com/localstt/streamstt/listener"
	"github.com/localstt/streamstt/streaming"
	"github.com/localstt/streamstt/transcript"
	"github.com/localstt/streamstt/vad"
	"github.com/localstt/streamstt/vad/silero"
	"github.com/localstt/streamstt/worker"
)

const stopTimeout = 10 * time.Second

func slogReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		source, ok := a.Value.Any().(*slog.Source)
		if ok && source != nil {
			source.File = filepath.Base(source.File)
		}
	}
	return a
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load config", slog.String("err", err.Error()))
		os.Exit(1)
	}
	cfg.SetDefaults()

	if cfg.DataDir == "" {
		cfg.DataDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		slog.Error("failed to create data dir", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logFile, err := os.Create(filepath.Join(cfg.DataDir, "streamstt.log"))
	if err != nil {
		slog.Error("failed to create log file", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer logFile.Close()

	logWriter := io.MultiWriter(os.Stdout, logFile)
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelInfo,
		ReplaceAttr: slogReplaceAttr,
	}))
	slog.SetDefault(logger)

	if err := cfg.IsValid(); err != nil {
		slog.Error("invalid config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("pipeline exited with error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	sttEngine, streamingEngine, err := newEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer func() {
		if err := sttEngine.Destroy(); err != nil {
			slog.Error("failed to destroy engine", slog.String("err", err.Error()))
		}
	}()

	audioBus := bus.WithConfig(bus.Config{
		CapacityMs:  uint32(cfg.BusCapacityMs),
		ChunkSizeMs: uint32(cfg.ChunkDurationMs),
	})
	status := bus.NewStatus()

	vadState := newVADState(cfg)
	if streamingEngine != nil {
		vadState.SetCommitFloor(2)
	} else {
		vadState.SetCommitFloor(1)
	}
	transcriber := streaming.NewWithVAD(vadState)

	events := make(chan listener.Event, 64)
	emitter := listener.NewChannelEmitter(events)
	recorder := transcript.NewRecorder("me", cfg.Language, time.Now().UnixMilli())
	go consumeEvents(events, recorder)

	var streamWorker *worker.Worker
	var batchEngine engine.SttEngine
	if streamingEngine != nil {
		streamWorker = worker.New(ctx, streamingEngine)
	} else {
		batchEngine = sttEngine
	}

	var predictor vad.TurnPredictor
	if cfg.TurnDetectionEnabled {
		predictor = vad.NewSilenceDurationPredictor(cfg.TurnSaturateMs)
	}

	var turnBatchEngine engine.SttEngine
	if streamWorker == nil {
		turnBatchEngine = sttEngine
	}
	turnListener := listener.NewTurnListener(transcriber, predictor, emitter, turnBatchEngine)
	turnListener.Start(ctx)
	defer turnListener.Stop()

	receiver, ok := audioBus.TakeReceiver()
	if !ok {
		return fmt.Errorf("audio bus receiver already taken")
	}
	audioListener := listener.New(receiver, status, transcriber, emitter, streamWorker, batchEngine, turnListener)
	audioListener.Start(ctx)
	defer audioListener.Stop()

	httpServer := newSignalingServer(cfg.SignalingAddr, audioBus.Sender())
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("signaling server exited with error", slog.String("err", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down signaling server", slog.String("err", err.Error()))
		}
	}()

	slog.Info("streamstt pipeline running",
		slog.String("engine", string(cfg.Engine)), slog.String("signalingAddr", cfg.SignalingAddr))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-sig
	slog.Info("received shutdown signal, stopping pipeline")

	audioBus.Close()
	return nil
}

// newSignalingServer builds the HTTP signaling endpoint a WebRTC caller
// posts its SDP offer to in order to start streaming audio into sender.
// One webrtctrack.Session (and therefore one ingestion track) is created
// per request; a production deployment would want to track and tear down
// sessions on disconnect, but a single local session is this pipeline's
// only supported topology.
func newSignalingServer(addr string, sender bus.Sender) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/offer", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to read offer: %v", err), http.StatusBadRequest)
			return
		}

		session, err := webrtctrack.NewSession(sender)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to create session: %v", err), http.StatusInternalServerError)
			return
		}

		answer, err := session.HandleOffer(string(body))
		if err != nil {
			session.Close()
			http.Error(w, fmt.Sprintf("failed to handle offer: %v", err), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/sdp")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(answer))
	})

	return &http.Server{Addr: addr, Handler: mux}
}

func newEngine(cfg config.Config) (engine.SttEngine, engine.StreamingEngine, error) {
	switch cfg.Engine {
	case engine.KindWhisperCpp:
		ctx, err := whispercpp.New(whispercpp.Config{
			ModelFile:  filepath.Join(cfg.ModelsDir, "ggml-base.en.bin"),
			NumThreads: cfg.NumThreads,
			Language:   cfg.Language,
		})
		if err != nil {
			return nil, nil, err
		}
		return ctx, nil, nil
	case engine.KindAzure:
		recognizer, err := azure.New(azure.Config{
			SpeechKey:    cfg.AzureSpeechKey,
			SpeechRegion: cfg.AzureSpeechRegion,
			Language:     cfg.Language,
			DataDir:      cfg.DataDir,
			SampleRate:   cfg.SampleRate,
		})
		if err != nil {
			return nil, nil, err
		}
		streamAdapter, err := azure.NewStreamAdapter(recognizer)
		if err != nil {
			return nil, nil, err
		}
		return streamAdapter, streamAdapter, nil
	default:
		return nil, nil, fmt.Errorf("unsupported engine %q", cfg.Engine)
	}
}

func newVADState(cfg config.Config) *vad.State {
	if !cfg.VADEnabled {
		return vad.New()
	}

	modelPath := filepath.Join(cfg.ModelsDir, "silero_vad.onnx")
	settings := vad.Settings{
		SampleRate:           cfg.SampleRate,
		WindowSize:           512,
		Threshold:            cfg.VADThreshold,
		MinSilenceDurationMs: cfg.VADMinSilenceDurationMs,
		SpeechPadMs:          cfg.VADSpeechPadMs,
	}
	return vad.NewWithDetector(silero.NewFunc(modelPath), settings)
}

func consumeEvents(events <-chan listener.Event, recorder *transcript.Recorder) {
	for event := range events {
		slog.Debug("pipeline event", slog.String("name", event.Name), slog.Any("payload", event.Payload))
		recorder.HandleEvent(event)
	}
}
