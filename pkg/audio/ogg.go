package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"layeh.com/gopus"
)

const (
	opusSampleRate = 48000

	// opusMaxFrameSize is the largest Opus frame (120 ms at 48 kHz).
	opusMaxFrameSize = 5760

	oggHeaderLen = 27
)

// errNotOpus marks an Ogg stream carrying a codec other than Opus (Vorbis,
// Speex). The decoder falls back to ffmpeg for those.
var errNotOpus = errors.New("audio: ogg stream is not opus")

// oggPackets splits an Ogg bitstream into its logical packets. Only the first
// logical stream is returned; pages of other serial numbers are skipped.
func oggPackets(data []byte) ([][]byte, error) {
	var (
		packets [][]byte
		partial []byte
		serial  uint32
		haveSer bool
	)
	for off := 0; off < len(data); {
		if len(data)-off < oggHeaderLen || !bytes.Equal(data[off:off+4], []byte("OggS")) {
			return nil, fmt.Errorf("%w: bad ogg page at offset %d", ErrUnsupportedFormat, off)
		}
		hdr := data[off : off+oggHeaderLen]
		pageSerial := binary.LittleEndian.Uint32(hdr[14:18])
		nsegs := int(hdr[26])
		segTable := off + oggHeaderLen
		if segTable+nsegs > len(data) {
			return nil, fmt.Errorf("%w: truncated ogg segment table", ErrUnsupportedFormat)
		}
		body := segTable + nsegs
		size := 0
		for _, l := range data[segTable:body] {
			size += int(l)
		}
		if body+size > len(data) {
			return nil, fmt.Errorf("%w: truncated ogg page", ErrUnsupportedFormat)
		}

		if !haveSer {
			serial, haveSer = pageSerial, true
		}
		if pageSerial == serial {
			pos := body
			for _, l := range data[segTable:body] {
				partial = append(partial, data[pos:pos+int(l)]...)
				pos += int(l)
				// A lacing value below 255 terminates the packet.
				if l < 255 {
					packets = append(packets, partial)
					partial = nil
				}
			}
		}
		off = body + size
	}
	return packets, nil
}

// decodeOggOpus decodes an Ogg/Opus file (the format of Discord and Telegram
// voice messages) into mono samples at 48 kHz.
func decodeOggOpus(data []byte) ([]int16, int, error) {
	packets, err := oggPackets(data)
	if err != nil {
		return nil, 0, err
	}
	if len(packets) < 2 || !bytes.HasPrefix(packets[0], []byte("OpusHead")) {
		return nil, 0, errNotOpus
	}
	head := packets[0]
	if len(head) < 19 {
		return nil, 0, fmt.Errorf("%w: short OpusHead", ErrUnsupportedFormat)
	}
	channels := int(head[9])
	if channels < 1 || channels > 2 {
		return nil, 0, fmt.Errorf("%w: %d-channel opus", ErrUnsupportedFormat, channels)
	}
	preSkip := int(binary.LittleEndian.Uint16(head[10:12]))

	dec, err := gopus.NewDecoder(opusSampleRate, channels)
	if err != nil {
		return nil, 0, fmt.Errorf("audio: create opus decoder: %w", err)
	}

	// packets[1] is OpusTags.
	var interleaved []int
	for _, pkt := range packets[2:] {
		if len(pkt) == 0 {
			continue
		}
		pcm, err := dec.Decode(pkt, opusMaxFrameSize, false)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: opus packet: %v", ErrUnsupportedFormat, err)
		}
		for _, s := range pcm {
			interleaved = append(interleaved, int(s))
		}
	}

	mono := Downmix(interleaved, channels)
	if preSkip < len(mono) {
		mono = mono[preSkip:]
	} else {
		mono = nil
	}
	return mono, opusSampleRate, nil
}
