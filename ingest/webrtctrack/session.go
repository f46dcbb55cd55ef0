package webrtctrack

import (
	"fmt"
	"log/slog"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/localstt/streamstt/bus"
)

// Session owns one receive-only WebRTC peer connection: it answers a
// remote SDP offer and feeds each incoming Opus audio track to its own
// Producer writing onto sender. Grounded on
// webrtcStreamer.createPeerConnection/setupPeerEventHandlers (Opus codec
// registration, default interceptors, OnTrack) from the retrieved
// rapida-ai assistant-api example, trimmed to receive-only (no local
// track, no ICE-candidate signaling channel — answered with a
// non-trickle offer/answer exchange instead of the gRPC-bidi-stream
// signaling that example uses).
type Session struct {
	pc     *webrtc.PeerConnection
	sender bus.Sender
	done   chan struct{}
}

// NewSession builds a Session backed by a fresh receive-only peer
// connection, ready to accept an SDP offer via HandleOffer.
func NewSession(sender bus.Sender) (*Session, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: InputSampleRate,
			Channels:  1,
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("webrtctrack: failed to register opus codec: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("webrtctrack: failed to register interceptors: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithInterceptorRegistry(registry))

	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("webrtctrack: failed to create peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("webrtctrack: failed to add recvonly audio transceiver: %w", err)
	}

	s := &Session{pc: pc, sender: sender, done: make(chan struct{})}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		slog.Info("webrtctrack: remote audio track received", slog.String("trackID", track.ID()))

		producer, err := New(track, s.sender)
		if err != nil {
			slog.Error("webrtctrack: failed to create producer", slog.String("err", err.Error()))
			return
		}
		go func() {
			if err := producer.Run(s.done); err != nil {
				slog.Error("webrtctrack: producer exited with error", slog.String("err", err.Error()))
			}
		}()
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Info("webrtctrack: connection state changed", slog.String("state", state.String()))
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			s.Close()
		}
	})

	return s, nil
}

// HandleOffer applies a remote SDP offer, waits for ICE gathering to
// finish (non-trickle exchange, simplest for a single request/response
// signaling call) and returns the local SDP answer.
func (s *Session) HandleOffer(offerSDP string) (string, error) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("webrtctrack: failed to set remote description: %w", err)
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("webrtctrack: failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("webrtctrack: failed to set local description: %w", err)
	}
	<-gatherComplete

	local := s.pc.LocalDescription()
	if local == nil {
		return "", fmt.Errorf("webrtctrack: local description unexpectedly nil after gathering")
	}
	return local.SDP, nil
}

// Close tears down the peer connection and stops every producer goroutine
// it spawned. Safe to call more than once.
func (s *Session) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.pc.Close()
}
