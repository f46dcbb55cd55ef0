package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindIsValid(t *testing.T) {
	require.True(t, KindAzure.IsValid())
	require.True(t, KindWhisperCpp.IsValid())
	require.False(t, Kind("fake").IsValid())
}

func TestKindIsStreaming(t *testing.T) {
	require.True(t, KindAzure.IsStreaming())
	require.False(t, KindWhisperCpp.IsStreaming())
}
