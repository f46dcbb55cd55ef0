// Package opus provides a cgo Opus decoder for RTP track payloads,
// adapted from opus/opus.go. Only decode is kept: the pipeline ingests
// audio, it never encodes or re-streams it, so the teacher's Encoder (used
// there to mux recorded audio back out) has no caller in this module —
// see DESIGN.md.
package opus

/*
#cgo linux LDFLAGS: -l:libopus.a -lm
#cgo darwin LDFLAGS: -lopus
#include <opus.h>
*/
import "C"

import (
	"fmt"
)

// Decoder wraps one libopus decoder instance. Not safe for concurrent use.
type Decoder struct {
	dec      *C.OpusDecoder
	rate     int
	channels int
}

// NewDecoder creates a decoder for the given sample rate and channel
// count. libopus supports decoding directly at 16kHz even though the
// encoder on the sending side ran at 48kHz, which is how the ingestion
// path avoids a separate resampling step.
func NewDecoder(rate, channels int) (*Decoder, error) {
	var d Decoder
	var errCode C.int

	d.dec = C.opus_decoder_create(C.int(rate), C.int(channels), &errCode)
	d.rate = rate
	d.channels = channels

	if errCode != 0 {
		return nil, fmt.Errorf("opus: failed to create decoder: %d", errCode)
	}
	return &d, nil
}

// Decode writes the decoded samples into samples (sized to its capacity)
// and returns how many were produced.
func (d *Decoder) Decode(data []byte, samples []float32) (int, error) {
	if d.dec == nil {
		return 0, fmt.Errorf("opus: decoder is not initialized")
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("opus: data should not be empty")
	}
	if len(samples) == 0 {
		return 0, fmt.Errorf("opus: samples should not be empty")
	}
	if cap(samples)%d.channels != 0 {
		return 0, fmt.Errorf("opus: invalid samples capacity")
	}

	ret := int(C.opus_decode_float(d.dec, (*C.uchar)(&data[0]), C.int(len(data)),
		(*C.float)(&samples[0]), C.int(cap(samples)/d.channels), 0))
	if ret < 0 {
		return 0, fmt.Errorf("opus: decode failed with code %d", ret)
	}
	return ret, nil
}

// Destroy releases the decoder's resources.
func (d *Decoder) Destroy() error {
	if d.dec == nil {
		return fmt.Errorf("opus: decoder is not initialized")
	}
	C.opus_decoder_destroy(d.dec)
	d.dec = nil
	return nil
}
