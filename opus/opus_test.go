package opus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDecoderAndDestroy(t *testing.T) {
	dec, err := NewDecoder(16000, 1)
	require.NoError(t, err)
	require.NotNil(t, dec)

	require.NoError(t, dec.Destroy())
}

func TestDecodeRejectsEmptyInput(t *testing.T) {
	dec, err := NewDecoder(16000, 1)
	require.NoError(t, err)
	defer dec.Destroy()

	samples := make([]float32, 320)

	_, err = dec.Decode(nil, samples)
	require.Error(t, err)

	_, err = dec.Decode([]byte{1, 2, 3}, nil)
	require.Error(t, err)
}

func TestDecodeRejectsMismatchedChannelCapacity(t *testing.T) {
	dec, err := NewDecoder(16000, 2)
	require.NoError(t, err)
	defer dec.Destroy()

	// Capacity 3 does not divide evenly by 2 channels.
	samples := make([]float32, 0, 3)
	samples = samples[:3]

	_, err = dec.Decode([]byte{1, 2, 3}, samples)
	require.Error(t, err)
}

func TestDestroyTwiceFails(t *testing.T) {
	dec, err := NewDecoder(16000, 1)
	require.NoError(t, err)
	require.NoError(t, dec.Destroy())
	require.Error(t, dec.Destroy())
}

func TestDecodeAfterDestroyFails(t *testing.T) {
	dec, err := NewDecoder(16000, 1)
	require.NoError(t, err)
	require.NoError(t, dec.Destroy())

	samples := make([]float32, 320)
	_, err = dec.Decode([]byte{1, 2, 3}, samples)
	require.Error(t, err)
}
