package transcript

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/localstt/streamstt/listener"
)

func TestLanguageDefaultsToEnglish(t *testing.T) {
	var tr Transcription
	require.Equal(t, "en", tr.Language())

	tr = Transcription{{Language: "fr"}}
	require.Equal(t, "fr", tr.Language())
}

func TestWebVTTRendersInterleavedSegments(t *testing.T) {
	tr := Transcription{
		{Speaker: "Alice", Segments: []Segment{{Text: "hello", StartTS: 0, EndTS: 1000}}},
	}

	var buf bytes.Buffer
	var opts WebVTTOptions
	opts.SetDefaults()

	require.NoError(t, tr.WebVTT(&buf, opts))
	require.Contains(t, buf.String(), "WEBVTT")
	require.Contains(t, buf.String(), "hello")
	require.Contains(t, buf.String(), "00:00:00.000 --> 00:00:01.000")
}

func TestWebVTTOmitsSpeaker(t *testing.T) {
	tr := Transcription{
		{Speaker: "Alice", Segments: []Segment{{Text: "hi", StartTS: 0, EndTS: 500}}},
	}

	var buf bytes.Buffer
	require.NoError(t, tr.WebVTT(&buf, WebVTTOptions{OmitSpeaker: true}))
	require.NotContains(t, buf.String(), "Alice")
}

func TestTextCompactsAdjacentSegments(t *testing.T) {
	tr := Transcription{
		{Speaker: "Alice", Segments: []Segment{
			{Text: "hello", StartTS: 0, EndTS: 500},
			{Text: "world", StartTS: 600, EndTS: 1000},
		}},
	}

	var opts TextOptions
	opts.SetDefaults()

	var buf bytes.Buffer
	require.NoError(t, tr.Text(&buf, opts))
	require.Equal(t, 1, bytesCount(buf.String(), "Alice"))
	require.Contains(t, buf.String(), "hello world")
}

func bytesCount(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}

func TestRecorderBuildsTranscriptionFromCommits(t *testing.T) {
	rec := NewRecorder("local", "en", 1000)

	rec.HandleEvent(listener.Event{Name: listener.EventStreamCommit, Payload: listener.StreamCommitPayload{Text: "hello", TsMs: 1500}})
	rec.HandleEvent(listener.Event{Name: listener.EventStreamCommit, Payload: listener.StreamCommitPayload{Text: "world", TsMs: 2200}})
	rec.HandleEvent(listener.Event{Name: listener.EventStreamResult, Payload: listener.StreamResultPayload{}})

	tr := rec.Transcription()
	require.Len(t, tr, 1)
	require.Len(t, tr[0].Segments, 2)
	require.Equal(t, "hello", tr[0].Segments[0].Text)
	require.EqualValues(t, 500, tr[0].Segments[0].EndTS)
	require.Equal(t, "world", tr[0].Segments[1].Text)
	require.EqualValues(t, 500, tr[0].Segments[1].StartTS)
	require.EqualValues(t, 1200, tr[0].Segments[1].EndTS)
}

func TestRecorderIgnoresEmptyCommits(t *testing.T) {
	rec := NewRecorder("local", "en", 0)
	rec.HandleEvent(listener.Event{Name: listener.EventStreamCommit, Payload: listener.StreamCommitPayload{Text: "", TsMs: 100}})

	tr := rec.Transcription()
	require.Empty(t, tr[0].Segments)
}
