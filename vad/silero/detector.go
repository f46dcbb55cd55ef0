// Package silero adapts github.com/streamer45/silero-vad-go into the
// vad.Detector collaborator contract. The upstream library analyzes a
// complete clip and returns speech segments in seconds
// (speech.Segment.SpeechStartAt/SpeechEndAt); vad.Detector instead wants
// SpeechStart/SpeechEnd edges reported per incoming chunk. This package
// bridges the two, grounded on the segment-conversion helpers in
// call/live_captions.go (convertToSegmentSamples, removeShortSpeeches).
//
// call/live_captions.go never runs the detector over an isolated tick: it
// accumulates several seconds of samples into a window and only calls
// sd.Detect on the whole window, resetting the model between windows, not
// between ticks. Process here follows the same shape — samples accumulate
// into an internal window across calls, and the window is analyzed (and
// the model reset) only once it reaches windowCapMs — because Transcriber
// calls Process once per ~50ms bus chunk, far too little context on its
// own for MinSilenceDurationMs/SpeechPadMs (both tuned in the
// hundreds-of-ms range) to mean anything.
package silero

import (
	"fmt"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/localstt/streamstt/vad"
)

// MinSpeechSamples discards speech segments shorter than this many samples
// at 16kHz (1000ms), matching minSpeechLengthSamples in the teacher.
const MinSpeechSamples = 1000 * vad.DefaultSettings().SampleRate / 1000

// windowCapMs bounds how much audio accumulates before the window is
// analyzed and the model reset, keeping per-window detect cost bounded
// while still giving MinSilenceDurationMs/SpeechPadMs enough context to be
// meaningful across several chunks.
const windowCapMs = 2000

// Detector wraps one speech.Detector instance. It is not safe for
// concurrent use; VadState drives a single Detector from a single
// streaming session.
type Detector struct {
	sd       *speech.Detector
	settings vad.Settings

	window   []float32
	inSpeech bool
}

// New builds a Detector from settings, creating the underlying silero
// ONNX model at modelPath.
func New(modelPath string, settings vad.Settings) (*Detector, error) {
	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            modelPath,
		SampleRate:           settings.SampleRate,
		WindowSize:           settings.WindowSize,
		Threshold:            settings.Threshold,
		MinSilenceDurationMs: settings.MinSilenceDurationMs,
		SpeechPadMs:          settings.SpeechPadMs,
	})
	if err != nil {
		return nil, fmt.Errorf("silero: failed to create speech detector: %w", err)
	}

	return &Detector{sd: sd, settings: settings}, nil
}

// NewFunc returns a vad.NewDetectorFunc bound to modelPath, suitable for
// vad.NewWithDetector.
func NewFunc(modelPath string) vad.NewDetectorFunc {
	return func(settings vad.Settings) (vad.Detector, error) {
		return New(modelPath, settings)
	}
}

// Process implements vad.Detector. It appends samples to an accumulating
// window and, once the window reaches windowCapMs of audio, runs the
// model once over the whole window and resets it — never mid-window — so
// the tuned silence/pad thresholds get the multi-chunk context they need
// instead of being applied to one isolated chunk at a time. Calls that
// only buffer (window still below cap) report no events.
func (d *Detector) Process(samples []float32) ([]vad.Event, error) {
	d.window = append(d.window, samples...)

	capSamples := windowCapMs * d.settings.SampleRate / 1000
	if capSamples < d.settings.WindowSize {
		capSamples = d.settings.WindowSize
	}
	if len(d.window) < capSamples {
		return nil, nil
	}

	segments, err := d.sd.Detect(d.window)
	if err != nil {
		return nil, fmt.Errorf("silero: detect failed: %w", err)
	}
	segments = removeShortSpeeches(segments, d.settings.SampleRate)

	nowInSpeech := d.inSpeech
	var events []vad.Event

	for _, seg := range segments {
		startSample := int(seg.SpeechStartAt * float64(d.settings.SampleRate))
		endSample := int(seg.SpeechEndAt * float64(d.settings.SampleRate))

		if !nowInSpeech && startSample <= len(d.window) {
			events = append(events, vad.SpeechStart)
			nowInSpeech = true
		}
		if nowInSpeech && endSample > 0 && endSample < len(d.window) {
			events = append(events, vad.SpeechEnd)
			nowInSpeech = false
		}
	}

	d.inSpeech = nowInSpeech
	d.window = d.window[:0]
	if err := d.sd.Reset(); err != nil {
		return events, fmt.Errorf("silero: failed to reset detector: %w", err)
	}
	return events, nil
}

// Reset implements vad.Detector.
func (d *Detector) Reset() error {
	d.inSpeech = false
	d.window = d.window[:0]
	if err := d.sd.Reset(); err != nil {
		return fmt.Errorf("silero: failed to reset detector: %w", err)
	}
	return nil
}

// Destroy releases the underlying ONNX runtime session.
func (d *Detector) Destroy() error {
	if d.sd == nil {
		return fmt.Errorf("silero: detector is not initialized")
	}
	if err := d.sd.Destroy(); err != nil {
		return fmt.Errorf("silero: failed to destroy detector: %w", err)
	}
	d.sd = nil
	return nil
}

// removeShortSpeeches drops segments shorter than MinSpeechSamples,
// adapted from removeShortSpeeches in call/live_captions.go (there it
// flips a segmentSamples.Silence flag in place; here it filters directly
// since speech.Segment carries only speech spans, not silence gaps).
func removeShortSpeeches(segments []speech.Segment, sampleRate int) []speech.Segment {
	out := segments[:0]
	for _, seg := range segments {
		lengthSamples := int((seg.SpeechEndAt - seg.SpeechStartAt) * float64(sampleRate))
		if lengthSamples >= MinSpeechSamples {
			out = append(out, seg)
		}
	}
	return out
}
