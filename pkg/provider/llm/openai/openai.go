// Package openai talks to the OpenAI chat-completions API through the
// official SDK. Any server speaking the same protocol (LiteLLM, vLLM, a
// corporate proxy) works through [WithBaseURL].
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/clubnote/pkg/provider/llm"
	"github.com/MrWong99/clubnote/pkg/types"
)

// Provider is an [llm.Provider] for one OpenAI model.
type Provider struct {
	client oai.Client
	model  string
	caps   types.ModelCapabilities
}

var _ llm.Provider = (*Provider)(nil)

// Option adjusts the SDK client.
type Option func(*[]option.RequestOption)

// WithBaseURL points the client at another OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithBaseURL(url)) }
}

// WithOrganization sends the OpenAI-Organization header.
func WithOrganization(org string) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithOrganization(org)) }
}

// WithTimeout bounds each HTTP request, retries included.
func WithTimeout(d time.Duration) Option {
	return func(o *[]option.RequestOption) {
		*o = append(*o, option.WithHTTPClient(&http.Client{Timeout: d}))
	}
}

// WithMaxRetries sets how often the SDK retries 429 and 5xx answers.
func WithMaxRetries(n int) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithMaxRetries(n)) }
}

// New returns a provider for model authenticated with apiKey.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	switch {
	case apiKey == "":
		return nil, errors.New("openai: api key is required")
	case model == "":
		return nil, errors.New("openai: model is required")
	}
	ro := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		o(&ro)
	}
	return &Provider{client: oai.NewClient(ro...), model: model, caps: capabilities(model)}, nil
}

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.params(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *oai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai: %s: status %d: %w", p.model, apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("openai: %s: %w", p.model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: %s: reply has no choices", p.model)
	}
	return &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (p *Provider) Capabilities() types.ModelCapabilities { return p.caps }

// capabilities knows the model families the bot is deployed with. Anything
// newer than gpt-4 without a suffix is assumed to see images.
func capabilities(model string) types.ModelCapabilities {
	m := strings.ToLower(model)
	if m == "gpt-4" || strings.HasPrefix(m, "gpt-4-0") || strings.HasPrefix(m, "gpt-3.5") {
		return types.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096}
	}
	caps := types.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384, SupportsVision: true}
	if strings.HasPrefix(m, "gpt-4.1") {
		caps.ContextWindow, caps.MaxOutputTokens = 1_047_576, 32_768
	}
	return caps
}

func (p *Provider) params(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	msgs := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oai.SystemMessage(req.SystemPrompt))
	}
	for i, m := range req.Messages {
		msg, err := message(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, fmt.Errorf("openai: message %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}

	out := oai.ChatCompletionNewParams{Model: shared.ChatModel(p.model), Messages: msgs}
	if req.Temperature != 0 {
		out.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		out.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.JSON {
		out.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return out, nil
}

// message converts one chat turn. Poster images travel inline as data URLs.
func message(m types.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case "system":
		return oai.SystemMessage(m.Content), nil
	case "assistant":
		return oai.AssistantMessage(m.Content), nil
	case "user":
	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("role %q not supported", m.Role)
	}
	if len(m.Images) == 0 {
		return oai.UserMessage(m.Content), nil
	}
	var parts []oai.ChatCompletionContentPartUnionParam
	if m.Content != "" {
		parts = append(parts, oai.TextContentPart(m.Content))
	}
	for _, img := range m.Images {
		parts = append(parts, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{URL: img.DataURL()}))
	}
	return oai.UserMessage(parts), nil
}
