package listener

import (
	"context"
	"log/slog"
	"strings"

	"github.com/localstt/streamstt/bus"
	"github.com/localstt/streamstt/engine"
	"github.com/localstt/streamstt/words"
)

// runBatchCoordinator drives the non-streaming path: samples have already
// been added to the transcriber by handleChunk. When enough new audio has
// accumulated, it runs inference on the full current buffer, feeds the
// result back through word tracking for stability-based commit, and
// always emits a partial stream_result.
func (l *AudioListener) runBatchCoordinator(ctx context.Context, chunk bus.Chunk) {
	if l.transcriber.TakeSilenceInjectionPending() {
		l.emitter.Emit(Event{Name: EventVADSilence, Payload: VADSilencePayload{
			TsMs:             chunk.TsMs,
			BufferDurationMs: l.transcriber.BufferDurationMs(),
		}})
		if l.turnListener != nil {
			l.turnListener.Notify(chunk.TsMs, l.transcriber.BufferDurationMs())
		}
	}

	if !l.transcriber.ShouldTranscribe() {
		return
	}

	segments, _, err := l.batchEngine.Transcribe(ctx, l.transcriber.Buffer())
	if err != nil {
		slog.Error("batch inference failed", slog.String("err", err.Error()))
		return
	}
	l.transcriber.MarkTranscribed()

	l.transcriber.UpdateWords(segmentsToWords(segments))

	if l.transcriber.ShouldCommit() {
		alignment := l.transcriber.AnalyzeWords()
		l.transcriber.Commit(alignment)
		if delta, ok := l.transcriber.TakeLastCommittedDelta(); ok {
			l.emitter.Emit(Event{Name: EventStreamCommit, Payload: StreamCommitPayload{Text: delta, TsMs: chunk.TsMs}})
		}
	}

	main, tail := l.transcriber.BuildFullDisplayText()
	l.emitter.Emit(Event{Name: EventStreamResult, Payload: StreamResultPayload{
		Text:             main,
		VolatileText:     tail,
		IsPartial:        true,
		BufferDurationMs: l.transcriber.BufferDurationMs(),
	}})
}

// segmentsToWords synthesizes per-word timing for engines (whisper.cpp)
// that return only segment-level timestamps, by splitting each segment's
// duration evenly across its whitespace-delimited words.
func segmentsToWords(segments []engine.Segment) []words.TimedWord {
	var out []words.TimedWord
	for _, seg := range segments {
		parts := strings.Fields(seg.Text)
		if len(parts) == 0 {
			continue
		}

		span := seg.EndMs - seg.StartMs
		if span < 0 {
			span = 0
		}
		step := span / int64(len(parts))

		for i, text := range parts {
			start := seg.StartMs + int64(i)*step
			end := start + step
			if i == len(parts)-1 {
				end = seg.StartMs + span
			}
			out = append(out, words.TimedWord{
				Text:    text,
				StartMs: uint64(start),
				EndMs:   uint64(end),
			})
		}
	}
	return out
}
