package vad

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSilenceDurationPredictorSaturates(t *testing.T) {
	p := NewSilenceDurationPredictor(1000)

	prob, err := p.PredictEndpoint(nil, 0)
	require.NoError(t, err)
	require.InDelta(t, 0.0, prob, 0.001)

	prob, err = p.PredictEndpoint(nil, 500)
	require.NoError(t, err)
	require.InDelta(t, 0.5, prob, 0.001)

	prob, err = p.PredictEndpoint(nil, 2000)
	require.NoError(t, err)
	require.InDelta(t, 1.0, prob, 0.001)
}

func TestNewSilenceDurationPredictorDefault(t *testing.T) {
	p := NewSilenceDurationPredictor(0)
	require.EqualValues(t, 1000, p.SaturateMs)
}
