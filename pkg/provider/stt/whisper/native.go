// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/provider/stt"
	"github.com/MrWong99/clubnote/pkg/types"
)

var _ stt.Transcriber = (*NativeProvider)(nil)

// NativeProvider implements stt.Transcriber using whisper.cpp Go bindings.
// The model is loaded once and shared; every call gets its own context.
type NativeProvider struct {
	model    whisperlib.Model
	language string
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the default language code. Defaults to "auto".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative loads the ggml model at modelPath. The caller must call Close
// when the provider is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p := &NativeProvider{model: model, language: "auto"}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe runs in-process inference on clip. Token timestamps are enabled
// so each segment carries word timings for the aligner.
func (p *NativeProvider) Transcribe(ctx context.Context, clip *audio.Clip, opts stt.Options) (*stt.Result, error) {
	if stt.Silent(clip) {
		return nil, stt.ErrNoSpeech
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = p.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using auto", "language", lang, "error", err)
		_ = wctx.SetLanguage("auto")
	}
	wctx.SetTokenTimestamps(true)

	if err := wctx.Process(clip.Float32(), continueWhile(ctx), nil, nil); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var segments []types.Segment
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		out := types.Segment{Start: seg.Start, End: seg.End, Text: seg.Text}
		for _, tok := range seg.Tokens {
			if isSpecialToken(tok.Text) {
				continue
			}
			out.Words = append(out.Words, types.Word{
				Text:        strings.TrimSpace(tok.Text),
				Start:       tok.Start,
				End:         tok.End,
				Probability: float64(tok.P),
			})
		}
		segments = append(segments, out)
	}

	detected := lang
	if lang == "auto" {
		detected = wctx.DetectedLanguage()
	}
	return stt.Finalize(segments, stt.NormalizeLanguage(detected))
}

// continueWhile returns an encoder callback that aborts inference once ctx
// is done. whisper.cpp calls it before encoding each 30 s window, so a
// cancelled run stops within one window.
func continueWhile(ctx context.Context) whisperlib.EncoderBeginCallback {
	return func() bool { return ctx.Err() == nil }
}

// isSpecialToken reports whether text is a whisper control token such as
// "[_BEG_]" or "<|endoftext|>".
func isSpecialToken(text string) bool {
	t := strings.TrimSpace(text)
	return t == "" || strings.HasPrefix(t, "[_") || strings.HasPrefix(t, "<|")
}
