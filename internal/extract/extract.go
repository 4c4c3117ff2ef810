// Package extract turns transcripts and images into structured artifacts
// with a language model: meeting-note summaries, form specifications and
// calendar events.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/clubnote/internal/observe"
	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/pkg/provider/llm"
	"github.com/MrWong99/clubnote/pkg/types"
)

// ErrNoInput is returned by [Extractor.Summarize] when there is neither
// transcript text nor an image.
var ErrNoInput = errors.New("extract: no transcript or image")

// DefaultMaxLines bounds a rendered summary.
const DefaultMaxLines = 20

// Option configures an [Extractor].
type Option func(*Extractor)

// WithMaxLines overrides [DefaultMaxLines].
func WithMaxLines(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxLines = n
		}
	}
}

// WithTemperature sets the sampling temperature for every request.
func WithTemperature(t float64) Option {
	return func(e *Extractor) { e.temperature = t }
}

// WithMetrics records stage durations on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// Extractor produces artifacts from a single LLM. It is safe for concurrent
// use.
type Extractor struct {
	llm         llm.Provider
	maxLines    int
	temperature float64
	metrics     *observe.Metrics
}

// New returns an Extractor backed by p.
func New(p llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{llm: p, maxLines: DefaultMaxLines, temperature: 0.2}
	for _, o := range opts {
		o(e)
	}
	return e
}

// complete sends one user message. Model failures come back as fatal
// extract-stage upstream errors.
func (e *Extractor) complete(ctx context.Context, system, prompt string, img *types.Image, asJSON bool) (string, error) {
	msg := types.Message{Role: "user", Content: prompt}
	if img != nil {
		msg.Images = []types.Image{*img}
	}
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Temperature:  e.temperature,
		Messages:     []types.Message{msg},
		JSON:         asJSON,
	})
	if err != nil {
		return "", pipeline.Fatal(pipeline.StageExtract, pipeline.Upstream("llm", err))
	}
	return resp.Content, nil
}

func malformed(what string, err error) error {
	return pipeline.Fatal(pipeline.StageExtract, fmt.Errorf("%w: %s: %w", pipeline.ErrExtraction, what, err))
}
