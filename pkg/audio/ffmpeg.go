package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ffmpegDecode transcodes data through ffmpeg into a 16 kHz mono WAV file.
// The input file is removed before returning; the output path is returned for
// the caller to own.
func (d *Decoder) ffmpegDecode(ctx context.Context, data []byte, c Container) (string, error) {
	bin, err := exec.LookPath(d.ffmpegPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s requires ffmpeg: %v", ErrUnsupportedFormat, c, err)
	}

	in, err := createTemp(d.tempDir, "upload", "."+string(c))
	if err != nil {
		return "", err
	}
	defer os.Remove(in.Name())
	if _, err := in.Write(data); err != nil {
		in.Close()
		return "", fmt.Errorf("audio: write upload: %w", err)
	}
	if err := in.Close(); err != nil {
		return "", fmt.Errorf("audio: close upload: %w", err)
	}

	out := tempPath(d.tempDir, "clip", ".wav")

	// ffmpeg -y -i input -ac 1 -ar 16000 -f wav output
	cmd := exec.CommandContext(ctx, bin,
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-y", "-i", in.Name(),
		"-ac", "1", "-ar", strconv.Itoa(SampleRate),
		"-f", "wav",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(out)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: ffmpeg: %v: %s", ErrUnsupportedFormat, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func tempPath(dir, prefix, ext string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, prefix+"-"+uuid.NewString()+ext)
}

func createTemp(dir, prefix, ext string) (*os.File, error) {
	p := tempPath(dir, prefix, ext)
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audio: create temp file: %w", err)
	}
	return f, nil
}
