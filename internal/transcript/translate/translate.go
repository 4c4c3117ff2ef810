// Package translate converts transcript segments into a target presentation
// language.
//
// The [LLM] translator batches segment texts into a JSON array and asks the
// model to return an array of the same length, so segment boundaries and
// speaker labels survive translation untouched.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/pkg/provider/llm"
	"github.com/MrWong99/clubnote/pkg/types"
)

// Translator rewrites segment texts from source into target. Implementations
// return segments in the same order and count as the input.
type Translator interface {
	Translate(ctx context.Context, segments []types.Segment, source, target string) ([]types.Segment, error)
}

// SameLanguage reports whether a and b share a base language, so "zh" and
// "zh-TW" match. Script differences are left to the script normalizer.
// Unparseable tags only match when equal.
func SameLanguage(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	ta, errA := language.Parse(a)
	tb, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	ba, _ := ta.Base()
	bb, _ := tb.Base()
	return ba == bb
}

// DisplayName returns an English name for tag suitable for a prompt, with
// an explicit script for Chinese.
func DisplayName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if base, _ := t.Base(); base.String() == "zh" {
		s, _ := t.Script()
		if s.String() == "Hans" {
			return "Simplified Chinese"
		}
		return "Traditional Chinese"
	}
	if name := display.English.Tags().Name(t); name != "" {
		return name
	}
	return tag
}

const defaultBatchSize = 40

const systemPrompt = `You translate meeting transcripts.

You receive a JSON array of strings. Translate every element into %s.
Keep names, numbers, code and URLs unchanged. Do not merge, split, reorder or drop elements.
Respond with ONLY a JSON array of strings with exactly %d elements (no markdown, no prose).`

// Option configures an [LLM] translator.
type Option func(*LLM)

// WithBatchSize sets how many segments go into one model request.
func WithBatchSize(n int) Option {
	return func(l *LLM) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithTemperature sets the sampling temperature. Default: 0.1.
func WithTemperature(t float64) Option {
	return func(l *LLM) { l.temperature = t }
}

// LLM translates with a language model. It is safe for concurrent use.
type LLM struct {
	llm         llm.Provider
	batchSize   int
	temperature float64
}

var _ Translator = (*LLM)(nil)

// NewLLM returns a translator backed by p.
func NewLLM(p llm.Provider, opts ...Option) *LLM {
	l := &LLM{llm: p, batchSize: defaultBatchSize, temperature: 0.1}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Translate makes one attempt per batch. Text already in the target language
// is returned unchanged without contacting the model. Failures wrap
// [pipeline.ErrTranslation].
func (l *LLM) Translate(ctx context.Context, segments []types.Segment, source, target string) ([]types.Segment, error) {
	out := slices.Clone(segments)
	if SameLanguage(source, target) || len(segments) == 0 {
		return out, nil
	}
	name := DisplayName(target)

	for start := 0; start < len(out); start += l.batchSize {
		end := min(start+l.batchSize, len(out))
		texts := make([]string, 0, end-start)
		for _, s := range out[start:end] {
			texts = append(texts, s.Text)
		}
		translated, err := l.batch(ctx, texts, name)
		if err != nil {
			return nil, err
		}
		for i, txt := range translated {
			out[start+i].Text = txt
			out[start+i].Language = target
		}
	}
	return out, nil
}

func (l *LLM) batch(ctx context.Context, texts []string, targetName string) ([]string, error) {
	payload, err := json.Marshal(texts)
	if err != nil {
		return nil, fmt.Errorf("translate: %w: %v", pipeline.ErrTranslation, err)
	}
	resp, err := l.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(systemPrompt, targetName, len(texts)),
		Temperature:  l.temperature,
		Messages:     []types.Message{{Role: "user", Content: string(payload)}},
	})
	if err != nil {
		return nil, fmt.Errorf("translate: %w: %w", pipeline.ErrTranslation, pipeline.Upstream("llm", err))
	}
	var got []string
	if err := llm.DecodeJSON(resp.Content, &got); err != nil {
		return nil, fmt.Errorf("translate: %w: %w", pipeline.ErrTranslation, err)
	}
	if len(got) != len(texts) {
		return nil, fmt.Errorf("translate: %w: model returned %d elements for %d", pipeline.ErrTranslation, len(got), len(texts))
	}
	return got, nil
}
