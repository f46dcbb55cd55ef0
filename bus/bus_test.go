package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecvCtxCancellationIsBiased(t *testing.T) {
	b := New()
	recv, _ := b.TakeReceiver()
	sender := b.Sender()
	sender.Send(0, SampleRate, []float32{1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := recv.RecvCtx(ctx)
	require.False(t, ok, "a cancelled context must win even when a chunk is already buffered")
}

func TestRecvCtxDeliversChunk(t *testing.T) {
	b := New()
	recv, _ := b.TakeReceiver()
	sender := b.Sender()
	sender.Send(5, SampleRate, []float32{9})

	ctx := context.Background()
	chunk, ok := recv.RecvCtx(ctx)
	require.True(t, ok)
	require.EqualValues(t, 9, chunk.Samples[0])
}

func TestSendRecvRoundTrip(t *testing.T) {
	b := New()
	recv, ok := b.TakeReceiver()
	require.True(t, ok)

	sender := b.Sender()
	samples := []float32{1, 2, 3}
	require.True(t, sender.Send(1000, SampleRate, samples))

	chunk, ok := recv.Recv()
	require.True(t, ok)
	require.EqualValues(t, 0, chunk.Seq)
	require.Equal(t, samples, chunk.Samples)
}

func TestTakeReceiverOnlyOnce(t *testing.T) {
	b := New()
	_, ok := b.TakeReceiver()
	require.True(t, ok)

	_, ok = b.TakeReceiver()
	require.False(t, ok)
}

func TestZeroCopySharing(t *testing.T) {
	b := New()
	recv, _ := b.TakeReceiver()
	sender := b.Sender()

	samples := make([]float32, 4)
	sender.Send(0, SampleRate, samples)

	chunk, _ := recv.Recv()
	samples[0] = 42 // mutate the original backing array
	require.EqualValues(t, 42, chunk.Samples[0], "chunk must alias the caller's backing array, not copy it")
}

func TestSeqMonotonic(t *testing.T) {
	b := WithConfig(Config{CapacityMs: 1000, ChunkSizeMs: 50})
	recv, _ := b.TakeReceiver()
	sender := b.Sender()

	for i := 0; i < 5; i++ {
		sender.Send(int64(i), SampleRate, []float32{float32(i)})
	}

	for i := uint64(0); i < 5; i++ {
		chunk, ok := recv.Recv()
		require.True(t, ok)
		require.Equal(t, i, chunk.Seq)
	}
}

func TestDropNewestWhenFull(t *testing.T) {
	b := WithConfig(Config{CapacityMs: 100, ChunkSizeMs: 50}) // capacity 2, clamped up to minChannelCapacity
	sender := b.Sender()

	for i := 0; i < minChannelCapacity; i++ {
		require.True(t, sender.Send(0, SampleRate, nil))
	}
	require.False(t, sender.Send(0, SampleRate, nil), "send past capacity must be dropped, not block")
	require.EqualValues(t, 1, sender.DroppedChunks())
}

func TestGapDetection(t *testing.T) {
	b := WithConfig(Config{CapacityMs: 1000, ChunkSizeMs: 50})
	recv, _ := b.TakeReceiver()
	sender := b.Sender()

	sender.Send(0, SampleRate, nil) // seq 0
	sender.CurrentSeq()             // no-op, just exercising the accessor
	// Manually skip a sequence number by sending through a fresh sender
	// sharing the same counters, simulating a chunk lost upstream of the bus.
	sender2 := sender
	sender2.seqCounter.Add(1) // burn seq 1 without sending it
	sender.Send(0, SampleRate, nil) // seq 2

	first, ok := recv.Recv()
	require.True(t, ok)
	require.EqualValues(t, 0, first.Seq)

	second, ok := recv.Recv()
	require.True(t, ok)
	require.EqualValues(t, 2, second.Seq)
	require.EqualValues(t, 1, recv.GapsDetected())
}

func TestDrainToLatest(t *testing.T) {
	b := WithConfig(Config{CapacityMs: 1000, ChunkSizeMs: 50})
	recv, _ := b.TakeReceiver()
	sender := b.Sender()

	for i := 0; i < 3; i++ {
		sender.Send(int64(i), SampleRate, []float32{float32(i)})
	}

	latest, ok := recv.DrainToLatest()
	require.True(t, ok)
	require.EqualValues(t, 2, latest.Seq)

	_, ok = recv.TryRecv()
	require.False(t, ok, "drain must consume everything buffered")
}

func TestCloseSignalsCleanEOF(t *testing.T) {
	b := New()
	recv, _ := b.TakeReceiver()
	b.Close()

	_, ok := recv.Recv()
	require.False(t, ok)
}

func TestChunkDurationMs(t *testing.T) {
	c := Chunk{SampleRate: SampleRate, Samples: make([]float32, SampleRate/2)}
	require.EqualValues(t, 500, c.DurationMs())
}

func TestStatusSnapshotAndReset(t *testing.T) {
	s := NewStatus()
	s.RecordChunk(7, 120)
	s.RecordDrop()
	s.RecordGap(3)
	s.RecordInference(50, 100)

	snap := s.Snapshot()
	require.EqualValues(t, 1, snap.ChunksProcessed)
	require.EqualValues(t, 1, snap.ChunksDropped)
	require.EqualValues(t, 3, snap.GapsDetected)
	require.EqualValues(t, 7, snap.LastSeq)
	require.EqualValues(t, 120, snap.LagMs)
	require.InDelta(t, 0.5, snap.RealTimeFactor, 0.001)
	require.EqualValues(t, 1, snap.InferenceCount)
	require.EqualValues(t, 50, snap.LastInferenceMs)

	s.Reset()
	require.Zero(t, s.Snapshot())
}
