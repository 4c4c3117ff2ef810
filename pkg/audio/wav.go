package audio

import (
	"bytes"
	"fmt"

	"github.com/go-audio/wav"
)

// decodeWAV reads a PCM WAV file and returns its samples downmixed to mono
// together with the source sample rate.
func decodeWAV(data []byte) ([]int16, int, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: invalid wav header", ErrUnsupportedFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read wav pcm: %v", ErrUnsupportedFormat, err)
	}
	channels := int(d.NumChans)
	if channels == 0 {
		channels = 1
	}
	samples := Downmix(scaleTo16(buf.Data, int(d.BitDepth)), channels)
	return samples, int(d.SampleRate), nil
}

// scaleTo16 rescales integer PCM of the given bit depth to 16-bit range.
func scaleTo16(data []int, bitDepth int) []int {
	switch {
	case bitDepth == 8:
		// 8-bit WAV is unsigned.
		for i, v := range data {
			data[i] = (v - 128) << 8
		}
	case bitDepth > 16:
		shift := uint(bitDepth - 16)
		for i, v := range data {
			data[i] = v >> shift
		}
	}
	return data
}
