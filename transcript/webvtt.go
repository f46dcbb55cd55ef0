package transcript

import (
	"fmt"
	"html"
	"io"
	"os"
	"strconv"
)

// WebVTTOptions configures Transcription.WebVTT.
type WebVTTOptions struct {
	OmitSpeaker bool
}

func (o *WebVTTOptions) IsValid() error {
	return nil
}

func (o *WebVTTOptions) IsEmpty() bool {
	return o == nil || *o == WebVTTOptions{}
}

func (o *WebVTTOptions) SetDefaults() {
	o.OmitSpeaker = false
}

func (o *WebVTTOptions) FromEnv() {
	o.OmitSpeaker, _ = strconv.ParseBool(os.Getenv("WEBVTT_OMIT_SPEAKER"))
}

func (o *WebVTTOptions) ToEnv() []string {
	return []string{
		fmt.Sprintf("WEBVTT_OMIT_SPEAKER=%t", o.OmitSpeaker),
	}
}

func (o *WebVTTOptions) FromMap(m map[string]any) {
	o.OmitSpeaker, _ = m["webvtt_omit_speaker"].(bool)
}

func (o *WebVTTOptions) ToMap() map[string]any {
	return map[string]any{
		"webvtt_omit_speaker": o.OmitSpeaker,
	}
}

// WebVTT writes t as a WebVTT file.
func (t Transcription) WebVTT(w io.Writer, opts WebVTTOptions) error {
	if _, err := fmt.Fprintf(w, "WEBVTT\n"); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}

	for _, s := range t.interleave() {
		s.sanitize(html.EscapeString)

		if _, err := fmt.Fprintf(w, "\n%s --> %s\n", vttTS(s.StartTS, true), vttTS(s.EndTS, true)); err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}

		tmpl := "<v %[1]s>(%[1]s) %[2]s\n"
		if opts.OmitSpeaker {
			tmpl = "%[2]s\n"
		}
		if _, err := fmt.Fprintf(w, tmpl, s.Speaker, s.Text); err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
	}

	return nil
}
