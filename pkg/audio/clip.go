package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// Clip is a decoded recording: 16 kHz mono PCM plus the temporary WAV file it
// was written to. A Clip owns its temporary files until Close is called.
type Clip struct {
	// Samples holds signed 16-bit mono samples at [SampleRate].
	Samples []int16

	// Source is the container the clip was decoded from.
	Source Container

	path  string
	temps []string
	once  sync.Once
	err   error
}

// NewClip wraps already-normalised samples. The returned clip has no backing
// file until [Clip.Persist] is called.
func NewClip(samples []int16, source Container) *Clip {
	return &Clip{Samples: samples, Source: source}
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	return time.Duration(len(c.Samples)) * time.Second / SampleRate
}

// Path returns the backing WAV file, or "" if the clip was never persisted.
func (c *Clip) Path() string { return c.path }

// Float32 returns the samples scaled to [-1, 1], as expected by whisper.cpp.
func (c *Clip) Float32() []float32 {
	out := make([]float32, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// WAV encodes the clip as a RIFF/WAV byte slice.
func (c *Clip) WAV() ([]byte, error) {
	ws := &writerseeker.WriterSeeker{}
	if err := encodeWAV(ws, c.Samples); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(ws.Reader())
	if err != nil {
		return nil, fmt.Errorf("audio: read wav buffer: %w", err)
	}
	return data, nil
}

// Persist writes the clip to a new file in dir (os.TempDir when empty) and
// records it for removal on Close.
func (c *Clip) Persist(dir string) error {
	f, err := createTemp(dir, "clip", ".wav")
	if err != nil {
		return err
	}
	c.track(f.Name())
	if err := encodeWAV(f, c.Samples); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audio: close %s: %w", f.Name(), err)
	}
	c.path = f.Name()
	return nil
}

func (c *Clip) track(path string) { c.temps = append(c.temps, path) }

// Close removes every temporary file owned by the clip. It is safe to call
// more than once; later calls return the first result.
func (c *Clip) Close() error {
	c.once.Do(func() {
		var errs []error
		for _, p := range c.temps {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
		c.err = errors.Join(errs...)
	})
	return c.err
}

func encodeWAV(w io.WriteSeeker, samples []int16) error {
	enc := wav.NewEncoder(w, SampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalise wav: %w", err)
	}
	return nil
}
