package vad

// TurnPredictor estimates, from the current audio buffer, the probability
// that a speaker has finished their turn rather than merely pausing. It
// is the collaborator boundary `spec.md`'s Open Question #2 asks for: a
// seam a real semantic end-of-turn model can occupy, with a heuristic
// stand-in until one is wired up.
type TurnPredictor interface {
	// PredictEndpoint returns the probability (0..1) that samples end a
	// turn, given the silence duration already observed since the last
	// detected speech.
	PredictEndpoint(samples []float32, silenceDurationMs uint64) (float32, error)
}

// SilenceDurationPredictor is a heuristic TurnPredictor: it ignores
// waveform content entirely and returns a probability derived purely from
// how long silence has already lasted, saturating at 1.0 past SaturateMs.
// This stands in for a real neural turn-detection model
// (`original_source/crates/smart-turn`), which is out of scope here.
type SilenceDurationPredictor struct {
	// SaturateMs is the silence duration at which probability reaches 1.0.
	SaturateMs uint64
}

// NewSilenceDurationPredictor returns a predictor that saturates at
// saturateMs of continuous silence.
func NewSilenceDurationPredictor(saturateMs uint64) SilenceDurationPredictor {
	if saturateMs == 0 {
		saturateMs = 1000
	}
	return SilenceDurationPredictor{SaturateMs: saturateMs}
}

// PredictEndpoint implements TurnPredictor.
func (p SilenceDurationPredictor) PredictEndpoint(_ []float32, silenceDurationMs uint64) (float32, error) {
	if silenceDurationMs >= p.SaturateMs {
		return 1.0, nil
	}
	return float32(silenceDurationMs) / float32(p.SaturateMs), nil
}
