// Package words aligns successive ASR hypotheses by timestamp overlap and
// tracks word stability so a streaming transcriber knows which prefix of a
// hypothesis is safe to commit as final text.
package words

import (
	"strings"
	"unicode"
)

const (
	// MinStabilityCount is the number of consecutive matching decodes a
	// word needs before it is eligible to commit.
	MinStabilityCount uint8 = 2

	// MinTimestampIoU is the minimum intersection-over-union between a
	// tracked word's timing and a new hypothesis word's timing for the two
	// to be considered the same word across decodes.
	MinTimestampIoU float32 = 0.3

	// CommitWindowMs is the trailing region of the buffer, counted back
	// from its end, whose words are still considered in flux and
	// ineligible to commit.
	CommitWindowMs uint64 = 500

	// DisplayTailMs is how close to the buffer end a word must be before
	// it is hidden from the display text unless already stable.
	DisplayTailMs uint64 = 600

	// TrimPaddingMs is subtracted from the first uncommitted word's start
	// to compute the buffer trim point, giving a small safety margin.
	TrimPaddingMs uint64 = 50
)

// TimedWord is a word hypothesis with buffer-relative timing, as reported
// by the ASR collaborator for a single decode.
type TimedWord struct {
	Text    string
	StartMs uint64
	EndMs   uint64
}

// TrackedWord is a word under stability tracking, with absolute timing.
type TrackedWord struct {
	Text      string
	StartMs   uint64
	EndMs     uint64
	Stability uint8
	ID        uint64
}

// AlignmentResult is the outcome of Analyze: the committable prefix and
// where the buffer may be safely trimmed.
type AlignmentResult struct {
	StableText      string
	StableWordCount int
	StableEndMs     uint64
	TrimFromMs      *uint64
}

// Tracker maintains word identity and stability across successive
// transcription hypotheses, and the append-only committed-text
// accumulator.
type Tracker struct {
	trackedWords []TrackedWord
	nextWordID   uint64

	committedText     strings.Builder
	committedEndMs    uint64
	lastCommittedText string
	hasCommittedDelta bool

	paragraphBreakPending bool
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// CommittedText returns the append-only accumulated committed text.
func (t *Tracker) CommittedText() string {
	return t.committedText.String()
}

// CommittedEndMs returns the absolute end timestamp of the last committed
// word or segment.
func (t *Tracker) CommittedEndMs() uint64 {
	return t.committedEndMs
}

// SetParagraphBreakPending requests that the next non-empty append be
// preceded by a paragraph break instead of a single space.
func (t *Tracker) SetParagraphBreakPending() {
	t.paragraphBreakPending = true
}

// Update aligns newWords against the currently tracked words and replaces
// the tracked list with the aligned result. An empty hypothesis while
// words are already tracked is treated as a transient model glitch and
// ignored, preserving existing tracking.
func (t *Tracker) Update(newWords []TimedWord, timestampOffsetMs uint64) {
	if len(newWords) == 0 && len(t.trackedWords) > 0 {
		return
	}
	t.trackedWords = t.alignAndTrack(newWords, timestampOffsetMs)
}

// Analyze determines which tracked words are stable enough to commit given
// the buffer's current absolute end timestamp.
func (t *Tracker) Analyze(bufferEndAbsMs uint64) AlignmentResult {
	committable := t.committableWords(bufferEndAbsMs)

	var pieces []string
	for _, w := range committable {
		if trimmed := strings.TrimSpace(w.Text); trimmed != "" {
			pieces = append(pieces, trimmed)
		}
	}
	stableText := strings.Join(pieces, " ")

	var stableEndMs uint64
	if len(committable) > 0 {
		stableEndMs = committable[len(committable)-1].EndMs
	}

	var trimFromMs *uint64
	for _, w := range t.trackedWords {
		if w.Stability < MinStabilityCount || w.EndMs > stableEndMs {
			trim := saturatingSub(w.StartMs, TrimPaddingMs)
			trimFromMs = &trim
			break
		}
	}

	return AlignmentResult{
		StableText:      stableText,
		StableWordCount: len(committable),
		StableEndMs:     stableEndMs,
		TrimFromMs:      trimFromMs,
	}
}

// Commit appends the alignment's stable text to the committed accumulator,
// advances committedEndMs, and drops committed words from tracking (or
// clears tracking entirely if no uncommitted word remains).
func (t *Tracker) Commit(alignment AlignmentResult, bufferEndAbsMs uint64) {
	committedIDs := make(map[uint64]struct{})
	for _, w := range t.committableWords(bufferEndAbsMs) {
		committedIDs[w.ID] = struct{}{}
	}

	if alignment.StableText != "" {
		t.appendCommitted(strings.TrimSpace(alignment.StableText))
	}

	// Only ever advance: a round with nothing newly stable must not pull
	// committedEndMs backwards below what a previous round already fixed.
	if alignment.StableEndMs > t.committedEndMs {
		t.committedEndMs = alignment.StableEndMs
	}

	if alignment.TrimFromMs != nil {
		kept := t.trackedWords[:0]
		for _, w := range t.trackedWords {
			if _, committed := committedIDs[w.ID]; !committed {
				kept = append(kept, w)
			}
		}
		t.trackedWords = kept
	} else {
		t.trackedWords = nil
	}
}

// CommitText appends segment text directly, for engines that return
// segments without word-level timing. Tracking is cleared unconditionally.
func (t *Tracker) CommitText(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	t.appendCommitted(trimmed)
	t.trackedWords = nil
}

func (t *Tracker) appendCommitted(piece string) {
	t.lastCommittedText = piece
	t.hasCommittedDelta = true

	if t.paragraphBreakPending && t.committedText.Len() > 0 {
		t.committedText.WriteString("\n\n")
		t.paragraphBreakPending = false
	} else if t.committedText.Len() > 0 {
		t.committedText.WriteByte(' ')
	}
	t.committedText.WriteString(piece)
}

// BuildDisplayText builds committed text plus any tracked word that has
// reached stability or aged past the display tail window.
func (t *Tracker) BuildDisplayText(bufferEndAbsMs uint64) string {
	displayCutoff := saturatingSub(bufferEndAbsMs, DisplayTailMs)

	var pieces []string
	for _, w := range t.trackedWords {
		if w.EndMs <= t.committedEndMs {
			continue
		}
		if w.Stability >= MinStabilityCount || w.EndMs <= displayCutoff {
			if trimmed := strings.TrimSpace(w.Text); trimmed != "" {
				pieces = append(pieces, trimmed)
			}
		}
	}
	partial := strings.Join(pieces, " ")

	committed := t.committedText.String()
	switch {
	case committed == "":
		return partial
	case partial == "":
		return committed
	case t.paragraphBreakPending:
		return committed + "\n\n" + partial
	default:
		return committed + " " + partial
	}
}

// BuildFullDisplayText returns (main, tail): main is the same as
// BuildDisplayText, tail is the volatile words too recent to display yet.
func (t *Tracker) BuildFullDisplayText(bufferEndAbsMs uint64) (string, string) {
	displayCutoff := saturatingSub(bufferEndAbsMs, DisplayTailMs)
	main := t.BuildDisplayText(bufferEndAbsMs)

	var pieces []string
	for _, w := range t.trackedWords {
		if w.EndMs > t.committedEndMs && w.Stability < MinStabilityCount && w.EndMs > displayCutoff {
			if trimmed := strings.TrimSpace(w.Text); trimmed != "" {
				pieces = append(pieces, trimmed)
			}
		}
	}

	return main, strings.Join(pieces, " ")
}

// TakeLastCommittedDelta returns and clears the text committed on the most
// recent Commit/CommitText call.
func (t *Tracker) TakeLastCommittedDelta() (string, bool) {
	if !t.hasCommittedDelta {
		return "", false
	}
	delta := t.lastCommittedText
	t.hasCommittedDelta = false
	t.lastCommittedText = ""
	if delta == "" {
		return "", false
	}
	return delta, true
}

// Reset clears all state for a new recording session.
func (t *Tracker) Reset() {
	t.trackedWords = nil
	t.nextWordID = 0
	t.committedText.Reset()
	t.committedEndMs = 0
	t.lastCommittedText = ""
	t.hasCommittedDelta = false
	t.paragraphBreakPending = false
}

// ClearCache drops tracked words while leaving committed state alone; kept
// for API parity with callers that expect an explicit cache-clear seam.
func (t *Tracker) ClearCache() {
	t.trackedWords = nil
}

func (t *Tracker) committableWords(bufferEndAbsMs uint64) []TrackedWord {
	commitCutoff := saturatingSub(bufferEndAbsMs, CommitWindowMs)

	var out []TrackedWord
	for _, w := range t.trackedWords {
		if w.Stability >= MinStabilityCount && w.EndMs <= commitCutoff {
			out = append(out, w)
			continue
		}
		break
	}
	return out
}

func (t *Tracker) alignAndTrack(newWords []TimedWord, timestampOffsetMs uint64) []TrackedWord {
	result := make([]TrackedWord, 0, len(newWords))
	used := make([]bool, len(t.trackedWords))

	for _, nw := range newWords {
		absStart := nw.StartMs + timestampOffsetMs
		absEnd := nw.EndMs + timestampOffsetMs

		bestIdx := -1
		bestIoU := float32(0)
		for i, prev := range t.trackedWords {
			if used[i] {
				continue
			}
			iou := computeIoU(prev.StartMs, prev.EndMs, absStart, absEnd)
			if iou >= MinTimestampIoU && iou > bestIoU {
				bestIdx = i
				bestIoU = iou
			}
		}

		var tracked TrackedWord
		if bestIdx >= 0 {
			used[bestIdx] = true
			prev := t.trackedWords[bestIdx]
			if wordsMatch(prev.Text, nw.Text) {
				tracked = TrackedWord{
					Text:      nw.Text,
					StartMs:   absStart,
					EndMs:     absEnd,
					Stability: saturatingAddU8(prev.Stability, 1),
					ID:        prev.ID,
				}
			} else {
				tracked = TrackedWord{
					Text:      nw.Text,
					StartMs:   absStart,
					EndMs:     absEnd,
					Stability: 1,
					ID:        prev.ID,
				}
			}
		} else {
			tracked = TrackedWord{
				Text:      nw.Text,
				StartMs:   absStart,
				EndMs:     absEnd,
				Stability: 1,
				ID:        t.nextWordID,
			}
			t.nextWordID++
		}

		result = append(result, tracked)
	}

	return result
}

func computeIoU(aStart, aEnd, bStart, bEnd uint64) float32 {
	interStart := aStart
	if bStart > interStart {
		interStart = bStart
	}
	interEnd := aEnd
	if bEnd < interEnd {
		interEnd = bEnd
	}

	if interStart >= interEnd {
		return 0
	}

	intersection := float32(interEnd - interStart)
	union := float32(aEnd-aStart+bEnd-bStart) - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func normalizeText(text string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func wordsMatch(a, b string) bool {
	normA, normB := normalizeText(a), normalizeText(b)

	if normA == "" && normB == "" {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	if normA == "" || normB == "" {
		return false
	}
	return normA == normB
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

func saturatingAddU8(a, b uint8) uint8 {
	sum := int(a) + int(b)
	if sum > 255 {
		return 255
	}
	return uint8(sum)
}
