package resilience

import (
	"context"

	"github.com/MrWong99/clubnote/pkg/provider/llm"
	"github.com/MrWong99/clubnote/pkg/types"
)

// LLMFallback is an [llm.Provider] backed by a [Chain] of language models.
// A request carrying poster images only goes to models that can see.
type LLMFallback struct {
	chain *Chain[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback starts a chain with primary as the preferred model.
func NewLLMFallback(primary llm.Provider, name string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{chain: NewChain[llm.Provider]("llm", cfg).Add(name, primary)}
}

// AddFallback appends p behind the models already registered.
func (f *LLMFallback) AddFallback(name string, p llm.Provider) {
	f.chain.Add(name, p)
}

// States exposes the breaker state of every model.
func (f *LLMFallback) States() map[string]State { return f.chain.States() }

func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var blind func(llm.Provider) bool
	if hasImages(req.Messages) {
		blind = func(p llm.Provider) bool { return !p.Capabilities().SupportsVision }
	}
	return Call(ctx, f.chain, blind, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities describes the primary model.
func (f *LLMFallback) Capabilities() types.ModelCapabilities {
	if p, ok := f.chain.Primary(); ok {
		return p.Capabilities()
	}
	return types.ModelCapabilities{}
}

func hasImages(msgs []types.Message) bool {
	for _, m := range msgs {
		if len(m.Images) > 0 {
			return true
		}
	}
	return false
}
