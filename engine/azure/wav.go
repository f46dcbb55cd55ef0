package azure

import "encoding/binary"

// f32PCMToWAV wraps f32 samples in a 16-bit PCM mono WAV container, the
// wire format the Azure push-audio-stream client accepts, adapted
// verbatim from apis/azure/wav.go.
func f32PCMToWAV(samples []float32, sampleRate int) []byte {
	const (
		headerLen  = 44
		bitDepth   = 16
		numChannel = 1
	)

	wav := make([]byte, headerLen+len(samples)*2)
	pcm := wav[headerLen:]

	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:], uint32(len(wav)-8))
	copy(wav[8:12], "WAVE")
	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:], 16)
	binary.LittleEndian.PutUint16(wav[20:], 1)
	binary.LittleEndian.PutUint16(wav[22:], numChannel)
	binary.LittleEndian.PutUint32(wav[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(wav[28:], uint32(sampleRate*bitDepth*numChannel/8))
	binary.LittleEndian.PutUint16(wav[32:], uint16(bitDepth*numChannel/8))
	binary.LittleEndian.PutUint16(wav[34:], uint16(bitDepth))
	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:], uint32(len(samples)*2))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s*32768.0))
	}

	return wav
}
