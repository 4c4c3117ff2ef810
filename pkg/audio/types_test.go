package audio_test

import (
	"testing"

	"github.com/MrWong99/clubnote/pkg/audio"
)

func TestSniff(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want audio.Container
	}{
		{"wav", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), audio.ContainerWAV},
		{"ogg", []byte("OggS\x00\x02"), audio.ContainerOgg},
		{"flac", []byte("fLaC\x00"), audio.ContainerFLAC},
		{"webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}, audio.ContainerWebM},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A "), audio.ContainerMP4},
		{"mp3 id3", []byte("ID3\x04\x00"), audio.ContainerMP3},
		{"mp3 frame", []byte{0xFF, 0xFB, 0x90, 0x00}, audio.ContainerMP3},
		{"aac adts", []byte{0xFF, 0xF1, 0x50, 0x80}, audio.ContainerAAC},
		{"text", []byte("hello world"), audio.ContainerUnknown},
		{"empty", nil, audio.ContainerUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := audio.Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContainerFromMIME(t *testing.T) {
	t.Parallel()
	tests := map[string]audio.Container{
		"audio/ogg; codecs=opus": audio.ContainerOgg,
		"audio/x-m4a":            audio.ContainerMP4,
		"audio/mpeg":             audio.ContainerMP3,
		"AUDIO/WAV":              audio.ContainerWAV,
		"image/png":              audio.ContainerUnknown,
		"":                       audio.ContainerUnknown,
	}
	for in, want := range tests {
		if got := audio.ContainerFromMIME(in); got != want {
			t.Errorf("ContainerFromMIME(%q) = %q, want %q", in, got, want)
		}
	}
}
