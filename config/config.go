// Package config holds pipeline tuning configuration: sample rate and
// chunk sizing, VAD and commit thresholds, and engine selection. It
// follows the same SetDefaults/IsValid/ToEnv/FromEnv shape the teacher's
// job config uses, applied here to a long-running pipeline instead of a
// one-shot call-transcription job.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/localstt/streamstt/engine"
)

const (
	SampleRateDefault              = 16000
	ChunkDurationMsDefault         = 50
	BusCapacityMsDefault           = 1500
	NumThreadsDefault              = 2
	EngineDefault                  = engine.KindWhisperCpp
	LanguageDefault                = "en"
	VADEnabledDefault              = true
	VADThresholdDefault            = 0.5
	VADMinSilenceDurationMsDefault = 350
	VADSpeechPadMsDefault          = 200
	TurnDetectionEnabledDefault    = false
	TurnSaturateMsDefault          = 1000
	SignalingAddrDefault           = ":8080"
)

// Config is the top-level pipeline configuration: audio ingestion sizing,
// engine selection, and VAD/turn-detection tuning.
type Config struct {
	// Audio ingestion
	SampleRate      int
	ChunkDurationMs int
	BusCapacityMs   int
	NumThreads      int

	// Engine selection
	Engine            engine.Kind
	Language          string
	DataDir           string
	ModelsDir         string
	AzureSpeechKey    string
	AzureSpeechRegion string

	// VAD tuning
	VADEnabled              bool
	VADThreshold            float32
	VADMinSilenceDurationMs int
	VADSpeechPadMs          int

	// Turn detection tuning
	TurnDetectionEnabled bool
	TurnSaturateMs       uint64

	// SignalingAddr is the listen address for the HTTP WebRTC offer/answer
	// signaling endpoint audio producers connect through.
	SignalingAddr string
}

// SetDefaults fills in every unset field with its documented default.
func (cfg *Config) SetDefaults() {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = SampleRateDefault
	}
	if cfg.ChunkDurationMs == 0 {
		cfg.ChunkDurationMs = ChunkDurationMsDefault
	}
	if cfg.BusCapacityMs == 0 {
		cfg.BusCapacityMs = BusCapacityMsDefault
	}
	if cfg.NumThreads == 0 {
		cfg.NumThreads = max(1, min(NumThreadsDefault, runtime.NumCPU()))
	}
	if cfg.Engine == "" {
		cfg.Engine = EngineDefault
	}
	if cfg.Language == "" {
		cfg.Language = LanguageDefault
	}
	if cfg.VADThreshold == 0 {
		cfg.VADThreshold = VADThresholdDefault
	}
	if cfg.VADMinSilenceDurationMs == 0 {
		cfg.VADMinSilenceDurationMs = VADMinSilenceDurationMsDefault
	}
	if cfg.VADSpeechPadMs == 0 {
		cfg.VADSpeechPadMs = VADSpeechPadMsDefault
	}
	if cfg.TurnSaturateMs == 0 {
		cfg.TurnSaturateMs = TurnSaturateMsDefault
	}
	if cfg.SignalingAddr == "" {
		cfg.SignalingAddr = SignalingAddrDefault
	}
}

// IsValid validates the configuration, checking engine-specific
// requirements (Azure credentials, data directories) only for the
// selected engine.
func (cfg Config) IsValid() error {
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("SampleRate must be positive")
	}
	if cfg.ChunkDurationMs <= 0 {
		return fmt.Errorf("ChunkDurationMs must be positive")
	}
	if cfg.NumThreads < 1 || cfg.NumThreads > runtime.NumCPU() {
		return fmt.Errorf("NumThreads should be in the range [1, %d]", runtime.NumCPU())
	}
	if !cfg.Engine.IsValid() {
		return fmt.Errorf("Engine value is not valid")
	}
	if cfg.Language == "" {
		return fmt.Errorf("Language cannot be empty")
	}

	switch cfg.Engine {
	case engine.KindAzure:
		if cfg.AzureSpeechKey == "" {
			return fmt.Errorf("AzureSpeechKey cannot be empty when Engine is %q", engine.KindAzure)
		}
		if cfg.AzureSpeechRegion == "" {
			return fmt.Errorf("AzureSpeechRegion cannot be empty when Engine is %q", engine.KindAzure)
		}
	case engine.KindWhisperCpp:
		if cfg.ModelsDir == "" {
			return fmt.Errorf("ModelsDir cannot be empty when Engine is %q", engine.KindWhisperCpp)
		}
	}

	if cfg.VADThreshold < 0 || cfg.VADThreshold > 1 {
		return fmt.Errorf("VADThreshold must be in the range [0, 1]")
	}
	if cfg.VADMinSilenceDurationMs < 0 {
		return fmt.Errorf("VADMinSilenceDurationMs cannot be negative")
	}

	return nil
}

// ToEnv renders the configuration as KEY=value pairs, mirroring the
// teacher's environment-variable transport for spawning a subprocess.
func (cfg Config) ToEnv() []string {
	return []string{
		fmt.Sprintf("SAMPLE_RATE=%d", cfg.SampleRate),
		fmt.Sprintf("CHUNK_DURATION_MS=%d", cfg.ChunkDurationMs),
		fmt.Sprintf("BUS_CAPACITY_MS=%d", cfg.BusCapacityMs),
		fmt.Sprintf("NUM_THREADS=%d", cfg.NumThreads),
		fmt.Sprintf("ENGINE=%s", cfg.Engine),
		fmt.Sprintf("LANGUAGE=%s", cfg.Language),
		fmt.Sprintf("DATA_DIR=%s", cfg.DataDir),
		fmt.Sprintf("MODELS_DIR=%s", cfg.ModelsDir),
		fmt.Sprintf("AZURE_SPEECH_KEY=%s", cfg.AzureSpeechKey),
		fmt.Sprintf("AZURE_SPEECH_REGION=%s", cfg.AzureSpeechRegion),
		fmt.Sprintf("VAD_ENABLED=%t", cfg.VADEnabled),
		fmt.Sprintf("VAD_THRESHOLD=%f", cfg.VADThreshold),
		fmt.Sprintf("VAD_MIN_SILENCE_DURATION_MS=%d", cfg.VADMinSilenceDurationMs),
		fmt.Sprintf("VAD_SPEECH_PAD_MS=%d", cfg.VADSpeechPadMs),
		fmt.Sprintf("TURN_DETECTION_ENABLED=%t", cfg.TurnDetectionEnabled),
		fmt.Sprintf("TURN_SATURATE_MS=%d", cfg.TurnSaturateMs),
		fmt.Sprintf("SIGNALING_ADDR=%s", cfg.SignalingAddr),
	}
}

// FromEnv loads configuration from the process environment.
func FromEnv() (Config, error) {
	var cfg Config

	cfg.SampleRate, _ = strconv.Atoi(os.Getenv("SAMPLE_RATE"))
	cfg.ChunkDurationMs, _ = strconv.Atoi(os.Getenv("CHUNK_DURATION_MS"))
	cfg.BusCapacityMs, _ = strconv.Atoi(os.Getenv("BUS_CAPACITY_MS"))
	cfg.NumThreads, _ = strconv.Atoi(os.Getenv("NUM_THREADS"))

	if val := os.Getenv("ENGINE"); val != "" {
		cfg.Engine = engine.Kind(val)
	}
	cfg.Language = os.Getenv("LANGUAGE")
	cfg.DataDir = os.Getenv("DATA_DIR")
	cfg.ModelsDir = os.Getenv("MODELS_DIR")
	cfg.AzureSpeechKey = os.Getenv("AZURE_SPEECH_KEY")
	cfg.AzureSpeechRegion = os.Getenv("AZURE_SPEECH_REGION")

	cfg.VADEnabled = VADEnabledDefault
	if val := os.Getenv("VAD_ENABLED"); val != "" {
		cfg.VADEnabled, _ = strconv.ParseBool(val)
	}
	if val := os.Getenv("VAD_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 32); err == nil {
			cfg.VADThreshold = float32(f)
		}
	}
	cfg.VADMinSilenceDurationMs, _ = strconv.Atoi(os.Getenv("VAD_MIN_SILENCE_DURATION_MS"))
	cfg.VADSpeechPadMs, _ = strconv.Atoi(os.Getenv("VAD_SPEECH_PAD_MS"))

	cfg.TurnDetectionEnabled, _ = strconv.ParseBool(os.Getenv("TURN_DETECTION_ENABLED"))
	if val := os.Getenv("TURN_SATURATE_MS"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			cfg.TurnSaturateMs = n
		}
	}

	cfg.SignalingAddr = os.Getenv("SIGNALING_ADDR")

	return cfg, nil
}
