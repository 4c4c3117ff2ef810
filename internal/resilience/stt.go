package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/provider/stt"
)

// STTFallback is an [stt.Transcriber] backed by a [Chain] of speech
// recognisers. A clip without speech is an answer, so [stt.ErrNoSpeech]
// ends the walk without counting as a failure.
type STTFallback struct {
	chain *Chain[stt.Transcriber]
}

var _ stt.Transcriber = (*STTFallback)(nil)

// NewSTTFallback starts a chain with primary as the preferred recogniser.
func NewSTTFallback(primary stt.Transcriber, name string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{chain: NewChain[stt.Transcriber]("stt", cfg).Add(name, primary)}
}

// AddFallback appends t behind the recognisers already registered.
func (f *STTFallback) AddFallback(name string, t stt.Transcriber) {
	f.chain.Add(name, t)
}

// States exposes the breaker state of every recogniser.
func (f *STTFallback) States() map[string]State { return f.chain.States() }

func (f *STTFallback) Transcribe(ctx context.Context, clip *audio.Clip, opts stt.Options) (*stt.Result, error) {
	silent := false
	res, err := Call(ctx, f.chain, nil, func(ctx context.Context, t stt.Transcriber) (*stt.Result, error) {
		r, err := t.Transcribe(ctx, clip, opts)
		if errors.Is(err, stt.ErrNoSpeech) {
			silent = true
			return nil, nil
		}
		return r, err
	})
	switch {
	case err != nil:
		return nil, err
	case silent:
		return nil, stt.ErrNoSpeech
	}
	return res, nil
}
