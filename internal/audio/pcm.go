// Package audio converts wire-format audio bytes into PCM samples for the
// diarization lane. Container/codec decoding beyond raw PCM is handled by
// external collaborators upstream of this service.
package audio

import "encoding/binary"

// Decoder converts audio chunk bytes into float32 PCM samples in [-1, 1].
type Decoder interface {
	Decode(chunk []byte) []float32
}

// PCM16Decoder interprets LINEAR16 little-endian mono bytes. Chunks may be
// split at arbitrary byte boundaries; an odd trailing byte is carried over
// into the next call.
type PCM16Decoder struct {
	leftover    byte
	hasLeftover bool
}

// NewPCM16Decoder creates a decoder for 16-bit little-endian mono PCM.
func NewPCM16Decoder() *PCM16Decoder {
	return &PCM16Decoder{}
}

func (d *PCM16Decoder) Decode(chunk []byte) []float32 {
	if len(chunk) == 0 {
		return nil
	}

	buf := chunk
	if d.hasLeftover {
		buf = make([]byte, 0, len(chunk)+1)
		buf = append(buf, d.leftover)
		buf = append(buf, chunk...)
		d.hasLeftover = false
	}

	n := len(buf) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(buf[2*i:]))
		samples[i] = float32(s) / 32768.0
	}

	if len(buf)%2 == 1 {
		d.leftover = buf[len(buf)-1]
		d.hasLeftover = true
	}
	return samples
}
