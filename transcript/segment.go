package transcript

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	segmentSanitizationSpacesRE  = regexp.MustCompile(`\s+`)
	segmentSanitizationSpecialRE = regexp.MustCompile(`[^\s\d\pL\pN.]`)
)

// namedSegment pairs a Segment with the speaker (track) it came from, so
// segments from every track can be merged into one chronological stream.
type namedSegment struct {
	Segment
	Speaker string
}

// sanitize strips unwanted characters and collapses whitespace. Any
// escFns are applied afterward, in order, to the text and speaker fields
// (e.g. html.EscapeString for WebVTT output).
func (ns *namedSegment) sanitize(escFns ...func(string) string) {
	ns.Speaker = segmentSanitizationSpecialRE.ReplaceAllString(ns.Speaker, "")

	ns.Text = strings.TrimSpace(ns.Text)
	ns.Speaker = strings.TrimSpace(ns.Speaker)
	ns.Text = segmentSanitizationSpacesRE.ReplaceAllString(ns.Text, " ")
	ns.Speaker = segmentSanitizationSpacesRE.ReplaceAllString(ns.Speaker, " ")

	for _, esc := range escFns {
		ns.Text = esc(ns.Text)
		ns.Speaker = esc(ns.Speaker)
	}
}

// interleave merges every track's segments into one chronological stream.
func (t Transcription) interleave() []namedSegment {
	var nss []namedSegment

	for _, trackTr := range t {
		for _, s := range trackTr.Segments {
			nss = append(nss, namedSegment{Segment: s, Speaker: trackTr.Speaker})
		}
	}

	sort.Slice(nss, func(i, j int) bool {
		return nss[i].StartTS < nss[j].StartTS
	})

	return nss
}

// vttTS converts ts milliseconds into the 00:00:00(.000) format.
func vttTS(ts int64, withMs bool) string {
	sMs := int64(1000)
	mMs := 60 * sMs
	hMs := 60 * mMs

	h := ts / hMs
	m := (ts - (h * hMs)) / mMs

	if withMs {
		s := ((ts - (h * hMs)) - m*mMs) / sMs
		ms := ((ts - (h * hMs)) - m*mMs) - s*sMs
		return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
	}

	s := int64(math.Round(float64((ts-(h*hMs))-m*mMs) / float64(sMs)))
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
