// Package anyllm provides a universal LLM provider backed by
// github.com/mozilla-ai/any-llm-go. It is the default backend for the note,
// form and promo generators and supports Gemini, OpenAI, Anthropic, Ollama,
// DeepSeek, Mistral, Groq, llama.cpp and llamafile.
//
// Usage:
//
//	p, err := anyllm.New("gemini", "gemini-1.5-flash", anyllmlib.WithAPIKey("..."))
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/clubnote/pkg/provider/llm"
	"github.com/MrWong99/clubnote/pkg/types"
)

// jsonInstruction stands in for a JSON mode, which not every backend behind
// any-llm offers.
const jsonInstruction = "Reply with exactly one JSON object and nothing else."

// Provider implements llm.Provider by wrapping github.com/mozilla-ai/any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

var _ llm.Provider = (*Provider)(nil)

// New creates a new Provider backed by the given LLM provider name.
//
// opts are any-llm-go configuration options (anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). Without an API key option the backend reads the
// usual environment variable (GEMINI_API_KEY, OPENAI_API_KEY, ...).
func New(providerName string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("anyllm: completion: no messages")
	}
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: empty choices in response")
	}

	result := &llm.CompletionResponse{
		Content: resp.Choices[0].Message.ContentString(),
	}
	if resp.Usage != nil {
		result.Usage = llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	return modelCapabilities(p.model)
}

func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	messages := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	system := req.SystemPrompt
	if req.JSON {
		system = strings.TrimSpace(system + "\n" + jsonInstruction)
	}
	if system != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: system,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m))
	}

	params := anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}

// convertMessage maps a types.Message onto any-llm's message. Messages with
// images become multi-part content with data-URL image parts.
func convertMessage(m types.Message) anyllmlib.Message {
	if len(m.Images) == 0 {
		return anyllmlib.Message{Role: m.Role, Content: m.Content}
	}

	parts := make([]anyllmlib.ContentPart, 0, len(m.Images)+1)
	if m.Content != "" {
		parts = append(parts, anyllmlib.ContentPart{Type: "text", Text: m.Content})
	}
	for _, img := range m.Images {
		parts = append(parts, anyllmlib.ContentPart{
			Type:     "image_url",
			ImageURL: &anyllmlib.ImageURL{URL: img.DataURL()},
		})
	}
	return anyllmlib.Message{Role: m.Role, Content: parts}
}

// capabilityRule matches model names by prefix or substring.
type capabilityRule struct {
	match    func(model string) bool
	window   int
	maxOut   int
	noVision bool
}

func prefix(p string) func(string) bool   { return func(m string) bool { return strings.HasPrefix(m, p) } }
func contains(s string) func(string) bool { return func(m string) bool { return strings.Contains(m, s) } }

// capabilityRules is ordered most-specific first.
var capabilityRules = []capabilityRule{
	{match: prefix("gpt-4o"), window: 128_000, maxOut: 16_384},
	{match: prefix("gpt-4.1"), window: 1_047_576, maxOut: 32_768},
	{match: prefix("gpt-4-turbo"), window: 128_000, maxOut: 4_096},
	{match: prefix("gpt-4"), window: 8_192, maxOut: 4_096, noVision: true},
	{match: prefix("gpt-3.5-turbo"), window: 16_385, maxOut: 4_096, noVision: true},
	{match: prefix("claude"), window: 200_000, maxOut: 8_192},
	{match: contains("gemini-1.5-pro"), window: 2_097_152, maxOut: 8_192},
	{match: contains("gemini"), window: 1_048_576, maxOut: 8_192},
	{match: prefix("deepseek"), window: 64_000, maxOut: 8_192, noVision: true},
	{match: contains("llava"), window: 4_096, maxOut: 2_048},
}

// modelCapabilities returns ModelCapabilities for known model families.
// Unknown models get a conservative text-only default.
func modelCapabilities(model string) types.ModelCapabilities {
	lower := strings.ToLower(model)
	for _, r := range capabilityRules {
		if r.match(lower) {
			return types.ModelCapabilities{
				ContextWindow:   r.window,
				MaxOutputTokens: r.maxOut,
				SupportsVision:  !r.noVision,
			}
		}
	}
	return types.ModelCapabilities{ContextWindow: 32_000, MaxOutputTokens: 4_096}
}
