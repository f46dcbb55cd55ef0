// Package webrtctrack adapts a pion/webrtc remote Opus track into a
// bus.AudioBus producer, grounded on processLiveTrack/handleTrack in
// call/tracks.go. The teacher muxes raw RTP payloads into an OGG file for
// later batch processing; this ingestion path instead decodes every
// packet immediately and pushes fixed-duration PCM chunks onto the bus,
// since the pipeline here is live rather than post-call.
//
// Standardized on github.com/pion/webrtc/v4 (the teacher's call package
// imports v3 while its go.mod also requires v4 transitively through
// pion/interceptor — v4 is kept here since it's the actively maintained
// major version and the one the rest of the dependency graph already
// resolves to; see DESIGN.md).
package webrtctrack

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"

	"github.com/localstt/streamstt/bus"
	"github.com/localstt/streamstt/opus"
)

const (
	// InputSampleRate is Opus's usual WebRTC encode rate; libopus decodes
	// directly down to OutputSampleRate without a separate resample pass.
	InputSampleRate  = 48000
	OutputSampleRate = bus.SampleRate

	// outputFrameSize is one 20ms Opus frame's worth of decoded samples at
	// OutputSampleRate, the default WebRTC Opus packetization interval.
	outputFrameSize = 20 * OutputSampleRate / 1000

	// samplesPerMsIn is the RTP clock rate in samples per millisecond.
	// audioGapThreshold and rtpTSWrapAroundThreshold mirror the receive-time
	// gap and RTP timestamp wraparound thresholds in call/tracks.go.
	samplesPerMsIn           = InputSampleRate / 1000
	audioGapThreshold        = time.Second
	rtpTSWrapAroundThreshold = InputSampleRate
)

// TrackRemote is the minimal read surface a webrtc.TrackRemote offers,
// adapted from call/interfaces.go's trackRemote so Producer does not
// depend on pion/webrtc directly (only on pion/rtp + pion/interceptor,
// which define the packet and attribute types ReadRTP returns).
type TrackRemote interface {
	ID() string
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Producer reads Opus RTP packets from a TrackRemote, decodes them to
// mono 16kHz PCM, and pushes them onto a bus.Sender with wall-clock
// capture timestamps.
type Producer struct {
	track  TrackRemote
	sender bus.Sender
	dec    *opus.Decoder
}

// New builds a Producer decoding track's Opus payloads and publishing
// chunks on sender.
func New(track TrackRemote, sender bus.Sender) (*Producer, error) {
	dec, err := opus.NewDecoder(OutputSampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("webrtctrack: failed to create opus decoder: %w", err)
	}
	return &Producer{track: track, sender: sender, dec: dec}, nil
}

// Run reads RTP packets until the track closes or ctx-style done is
// closed, decoding and publishing each non-empty packet as one chunk.
// Out-of-order packets (except RTP timestamp wraparound) are dropped
// rather than reordered, matching call/tracks.go's policy.
func (p *Producer) Run(done <-chan struct{}) error {
	defer func() {
		if err := p.dec.Destroy(); err != nil {
			slog.Error("webrtctrack: failed to destroy decoder", slog.String("err", err.Error()), slog.String("trackID", p.track.ID()))
		}
	}()

	pcmBuf := make([]float32, outputFrameSize)
	var prevArrivalTime time.Time
	var prevRTPTimestamp uint32
	var haveFirst bool

	for {
		select {
		case <-done:
			return nil
		default:
		}

		pkt, _, readErr := p.track.ReadRTP()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("webrtctrack: failed to read RTP packet: %w", readErr)
		}

		if len(pkt.Payload) == 0 {
			continue
		}

		if haveFirst && pkt.Timestamp < prevRTPTimestamp {
			hasWrappedAround := math.MaxUint32-prevRTPTimestamp < rtpTSWrapAroundThreshold
			if !hasWrappedAround {
				slog.Debug("webrtctrack: dropping out of order packet", slog.String("trackID", p.track.ID()))
				continue
			}
		}

		if haveFirst {
			if receiveGap := time.Since(prevArrivalTime); receiveGap > audioGapThreshold {
				slog.Debug("webrtctrack: receive gap detected",
					slog.Duration("receiveGap", receiveGap), slog.String("trackID", p.track.ID()))
			}
		}

		prevArrivalTime = time.Now()
		prevRTPTimestamp = pkt.Timestamp
		haveFirst = true

		n, err := p.dec.Decode(pkt.Payload, pcmBuf)
		if err != nil {
			slog.Error("webrtctrack: failed to decode opus payload",
				slog.String("err", err.Error()), slog.String("trackID", p.track.ID()))
			continue
		}

		samples := make([]float32, n)
		copy(samples, pcmBuf[:n])

		tsMs := time.Now().UnixMilli()
		p.sender.Send(tsMs, OutputSampleRate, samples)
	}
}
