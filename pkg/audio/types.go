// Package audio normalises user-submitted recordings into the 16 kHz mono PCM
// that every transcription backend accepts.
//
// A [Decoder] sniffs the container from the leading bytes, decodes WAV and
// Ogg/Opus natively and shells out to ffmpeg for everything else (m4a, mp3,
// webm, flac). The result is a [Clip] that owns a temporary WAV file; callers
// must Close it on every exit path.
package audio

import (
	"bytes"
	"mime"
	"strings"
)

// SampleRate is the sample rate of every decoded [Clip].
const SampleRate = 16000

// Container identifies an audio file format.
type Container string

const (
	ContainerUnknown Container = ""
	ContainerWAV     Container = "wav"
	ContainerOgg     Container = "ogg"
	ContainerMP3     Container = "mp3"
	ContainerMP4     Container = "mp4"
	ContainerFLAC    Container = "flac"
	ContainerWebM    Container = "webm"
	ContainerAAC     Container = "aac"
)

// String implements fmt.Stringer.
func (c Container) String() string {
	if c == ContainerUnknown {
		return "unknown"
	}
	return string(c)
}

// Sniff detects the container from the magic bytes at the start of data.
// It returns [ContainerUnknown] when nothing matches.
func Sniff(data []byte) Container {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return ContainerWAV
	case bytes.HasPrefix(data, []byte("OggS")):
		return ContainerOgg
	case bytes.HasPrefix(data, []byte("fLaC")):
		return ContainerFLAC
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return ContainerWebM
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return ContainerMP4
	case bytes.HasPrefix(data, []byte("ID3")):
		return ContainerMP3
	case len(data) >= 2 && data[0] == 0xFF && (data[1]&0xF6) == 0xF0:
		// ADTS sync word with layer bits 00.
		return ContainerAAC
	case len(data) >= 2 && data[0] == 0xFF && (data[1]&0xE0) == 0xE0:
		return ContainerMP3
	}
	return ContainerUnknown
}

// ContainerFromMIME maps a declared media type (as sent by chat platforms) to
// a container. Parameters such as "; codecs=opus" are ignored.
func ContainerFromMIME(mimeType string) Container {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	switch mt {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return ContainerWAV
	case "audio/ogg", "audio/opus", "application/ogg":
		return ContainerOgg
	case "audio/mpeg", "audio/mp3":
		return ContainerMP3
	case "audio/mp4", "audio/m4a", "audio/x-m4a", "video/mp4":
		return ContainerMP4
	case "audio/flac", "audio/x-flac":
		return ContainerFLAC
	case "audio/webm", "video/webm":
		return ContainerWebM
	case "audio/aac", "audio/x-aac":
		return ContainerAAC
	}
	return ContainerUnknown
}
