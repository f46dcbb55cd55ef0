package webrtctrack

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/localstt/streamstt/bus"
)

func TestNewSessionAndClose(t *testing.T) {
	b := bus.New()

	session, err := NewSession(b.Sender())
	require.NoError(t, err)
	require.NotNil(t, session)

	require.NoError(t, session.Close())
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	b := bus.New()

	session, err := NewSession(b.Sender())
	require.NoError(t, err)

	require.NoError(t, session.Close())
	// A second Close should not panic on an already-closed done channel,
	// even though closing an already-closed PeerConnection may itself
	// return an error from pion.
	_ = session.Close()
}

func TestHandleOfferRejectsInvalidSDP(t *testing.T) {
	b := bus.New()

	session, err := NewSession(b.Sender())
	require.NoError(t, err)
	defer session.Close()

	_, err = session.HandleOffer("not a valid sdp offer")
	require.Error(t, err)
}
