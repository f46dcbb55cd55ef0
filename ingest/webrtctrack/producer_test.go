package webrtctrack

import (
	"io"
	"testing"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"

	"github.com/localstt/streamstt/bus"
)

type fakeTrack struct {
	id      string
	packets []*rtp.Packet
	idx     int
}

func (f *fakeTrack) ID() string { return f.id }

func (f *fakeTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	if f.idx >= len(f.packets) {
		return nil, nil, io.EOF
	}
	pkt := f.packets[f.idx]
	f.idx++
	return pkt, nil, nil
}

func TestProducerSkipsEmptyPacketsAndStopsOnEOF(t *testing.T) {
	track := &fakeTrack{
		id: "track1",
		packets: []*rtp.Packet{
			{Header: rtp.Header{Timestamp: 1000}, Payload: nil},
			{Header: rtp.Header{Timestamp: 1960}, Payload: []byte{0xde, 0xad, 0xbe, 0xef}},
		},
	}

	b := bus.New()
	p, err := New(track, b.Sender())
	require.NoError(t, err)

	done := make(chan struct{})
	err = p.Run(done)
	require.NoError(t, err)
}

func TestProducerExitsOnDone(t *testing.T) {
	track := &fakeTrack{id: "track1"}
	b := bus.New()
	p, err := New(track, b.Sender())
	require.NoError(t, err)

	done := make(chan struct{})
	close(done)
	require.NoError(t, p.Run(done))
}
