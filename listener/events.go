package listener

// Event is a JSON-encodable payload the pipeline emits on a named
// channel. The front-end (or a test spy) subscribes to these by Name.
type Event struct {
	Name    string
	Payload any
}

const (
	EventStreamResult     = "stt:stream_result"
	EventStreamCommit     = "stt:stream_commit"
	EventVADSilence       = "stt:vad_silence"
	EventTurnPrediction   = "stt:turn_prediction"
	EventDownloadProgress = "stt:download-progress"
)

// StreamResultPayload is the payload of EventStreamResult.
type StreamResultPayload struct {
	Text             string `json:"text"`
	VolatileText     string `json:"volatile_text"`
	IsPartial        bool   `json:"is_partial"`
	BufferDurationMs uint64 `json:"buffer_duration_ms"`
}

// StreamCommitPayload is the payload of EventStreamCommit.
type StreamCommitPayload struct {
	Text string `json:"text"`
	TsMs int64  `json:"ts_ms"`
}

// VADSilencePayload is the payload of EventVADSilence.
type VADSilencePayload struct {
	TsMs             int64  `json:"ts_ms"`
	BufferDurationMs uint64 `json:"buffer_duration_ms"`
}

// TurnPredictionPayload is the payload of EventTurnPrediction.
type TurnPredictionPayload struct {
	Probability float32 `json:"probability"`
	Threshold   float32 `json:"threshold"`
	IsComplete  bool    `json:"is_complete"`
	TsMs        int64   `json:"ts_ms"`
}

// DownloadProgressPayload is the payload of EventDownloadProgress.
type DownloadProgressPayload struct {
	ModelID string  `json:"model_id"`
	Percent float64 `json:"percent"`
}

// Emitter delivers events to whatever sink the host wires up (stdout,
// a websocket, a test spy). Implementations must not block the caller
// for long; a typical implementation forwards onto a buffered channel.
type Emitter interface {
	Emit(event Event)
}

// ChannelEmitter is the simplest Emitter: it forwards every event onto a
// channel, dropping the event if the channel is full, so a slow or absent
// subscriber never stalls the pipeline. Dropped events are not logged or
// counted.
type ChannelEmitter struct {
	ch chan<- Event
}

// NewChannelEmitter wraps ch as an Emitter.
func NewChannelEmitter(ch chan<- Event) ChannelEmitter {
	return ChannelEmitter{ch: ch}
}

// Emit implements Emitter.
func (e ChannelEmitter) Emit(event Event) {
	select {
	case e.ch <- event:
	default:
	}
}
