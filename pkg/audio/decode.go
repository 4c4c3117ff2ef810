package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// ErrUnsupportedFormat is returned when input audio cannot be normalised.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// Decoder turns uploaded audio bytes into a [Clip]. It is safe for concurrent
// use.
type Decoder struct {
	ffmpegPath string
	tempDir    string
}

// DecoderOption configures a [Decoder].
type DecoderOption func(*Decoder)

// WithFFmpegPath sets the ffmpeg executable used for containers that are not
// decoded natively. Defaults to "ffmpeg" looked up in PATH.
func WithFFmpegPath(path string) DecoderOption {
	return func(d *Decoder) {
		if path != "" {
			d.ffmpegPath = path
		}
	}
}

// WithTempDir sets the directory for temporary files. Defaults to os.TempDir.
func WithTempDir(dir string) DecoderOption {
	return func(d *Decoder) { d.tempDir = dir }
}

// NewDecoder returns a Decoder with the given options applied.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{ffmpegPath: "ffmpeg"}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Decode normalises data into a 16 kHz mono [Clip] backed by a temporary WAV
// file. The sniffed container wins over declared, which is only consulted
// when the magic bytes are not recognised.
//
// Any failure to interpret the input wraps [ErrUnsupportedFormat]. No
// temporary file outlives a failed call.
func (d *Decoder) Decode(ctx context.Context, data []byte, declared Container) (*Clip, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnsupportedFormat)
	}
	c := Sniff(data)
	if c == ContainerUnknown {
		c = declared
	}

	var (
		samples []int16
		rate    int
		err     error
	)
	switch c {
	case ContainerUnknown:
		return nil, fmt.Errorf("%w: unrecognised container", ErrUnsupportedFormat)
	case ContainerWAV:
		samples, rate, err = decodeWAV(data)
	case ContainerOgg:
		samples, rate, err = decodeOggOpus(data)
		if errors.Is(err, errNotOpus) {
			slog.Debug("ogg stream is not opus, falling back to ffmpeg")
			return d.decodeExternal(ctx, data, c)
		}
	default:
		return d.decodeExternal(ctx, data, c)
	}
	if err != nil {
		return nil, err
	}

	clip := NewClip(Resample(samples, rate, SampleRate), c)
	if err := clip.Persist(d.tempDir); err != nil {
		clip.Close()
		return nil, err
	}
	return clip, nil
}

func (d *Decoder) decodeExternal(ctx context.Context, data []byte, c Container) (*Clip, error) {
	path, err := d.ffmpegDecode(ctx, data, c)
	if err != nil {
		return nil, err
	}
	clip := &Clip{Source: c, path: path}
	clip.track(path)

	wavData, err := os.ReadFile(path)
	if err != nil {
		clip.Close()
		return nil, fmt.Errorf("audio: read ffmpeg output: %w", err)
	}
	samples, rate, err := decodeWAV(wavData)
	if err != nil {
		clip.Close()
		return nil, err
	}
	clip.Samples = Resample(samples, rate, SampleRate)
	return clip, nil
}
