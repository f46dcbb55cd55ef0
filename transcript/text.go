package transcript

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
)

// TextCompactOptions configures how adjacent segments from the same
// speaker are joined when rendering plain text.
type TextCompactOptions struct {
	SilenceThresholdMs   int
	MaxSegmentDurationMs int
}

func (o *TextCompactOptions) SetDefaults() {
	o.SilenceThresholdMs = 2000
	o.MaxSegmentDurationMs = 10000
}

func (o *TextCompactOptions) IsEmpty() bool {
	return o == nil || *o == TextCompactOptions{}
}

// TextOptions configures Transcription.Text.
type TextOptions struct {
	CompactOptions TextCompactOptions
}

func (o *TextOptions) SetDefaults() {
	o.CompactOptions.SetDefaults()
}

func (o *TextOptions) IsValid() error {
	if o.CompactOptions.SilenceThresholdMs <= 0 {
		return fmt.Errorf("SilenceThresholdMs should be a positive number")
	}
	if o.CompactOptions.MaxSegmentDurationMs <= 0 {
		return fmt.Errorf("MaxSegmentDurationMs should be a positive number")
	}
	return nil
}

func (o *TextOptions) IsEmpty() bool {
	return o.CompactOptions.IsEmpty()
}

func (o *TextOptions) ToEnv() []string {
	return []string{
		fmt.Sprintf("TEXT_COMPACT_SILENCE_THRESHOLD_MS=%d", o.CompactOptions.SilenceThresholdMs),
		fmt.Sprintf("TEXT_COMPACT_MAX_SEGMENT_DURATION_MS=%d", o.CompactOptions.MaxSegmentDurationMs),
	}
}

func (o *TextOptions) FromEnv() {
	o.CompactOptions.SilenceThresholdMs, _ = strconv.Atoi(os.Getenv("TEXT_COMPACT_SILENCE_THRESHOLD_MS"))
	o.CompactOptions.MaxSegmentDurationMs, _ = strconv.Atoi(os.Getenv("TEXT_COMPACT_MAX_SEGMENT_DURATION_MS"))
}

func (o *TextOptions) ToMap() map[string]any {
	return map[string]any{
		"text_compact_silence_threshold_ms":    o.CompactOptions.SilenceThresholdMs,
		"text_compact_max_segment_duration_ms": o.CompactOptions.MaxSegmentDurationMs,
	}
}

func (o *TextOptions) FromMap(m map[string]any) {
	switch v := m["text_compact_silence_threshold_ms"].(type) {
	case int:
		o.CompactOptions.SilenceThresholdMs = v
	case float64:
		o.CompactOptions.SilenceThresholdMs = int(v)
	}

	switch v := m["text_compact_max_segment_duration_ms"].(type) {
	case int:
		o.CompactOptions.MaxSegmentDurationMs = v
	case float64:
		o.CompactOptions.MaxSegmentDurationMs = int(v)
	}
}

// compactSegments joins adjacent same-speaker segments separated by less
// than SilenceThresholdMs of pause, as long as the running duration of
// the joined group stays under MaxSegmentDurationMs.
func compactSegments(segments []namedSegment, opts TextCompactOptions) []namedSegment {
	if len(segments) < 2 {
		return segments
	}

	out := []namedSegment{segments[0]}

	for i := 1; i < len(segments); i++ {
		curr := segments[i]
		prev := segments[i-1]

		if curr.Speaker == prev.Speaker &&
			int(curr.StartTS-prev.EndTS) < opts.SilenceThresholdMs &&
			int(curr.StartTS-out[len(out)-1].StartTS) < opts.MaxSegmentDurationMs {

			out[len(out)-1].Text += " " + curr.Text
			out[len(out)-1].EndTS = curr.EndTS
		} else {
			out = append(out, curr)
		}
	}

	slog.Debug("compact done", slog.Int("inLen", len(segments)), slog.Int("outLen", len(out)))

	return out
}

// Text writes t as plain text, one speaker turn per block.
func (t Transcription) Text(w io.Writer, opts TextOptions) error {
	segments := t.interleave()

	if !opts.CompactOptions.IsEmpty() {
		segments = compactSegments(segments, opts.CompactOptions)
	}

	for i, s := range segments {
		s.sanitize()

		nl := "\n"
		if i == 0 {
			nl = ""
		}
		if _, err := fmt.Fprintf(w, "%s%v -> %v\n", nl, vttTS(s.StartTS, false), vttTS(s.EndTS, false)); err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n", s.Speaker, s.Text); err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
	}

	return nil
}
