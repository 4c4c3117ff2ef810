package anyllm

import (
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/clubnote/pkg/provider/llm"
	"github.com/MrWong99/clubnote/pkg/types"
)

func TestConvertMessage_TextOnly(t *testing.T) {
	t.Parallel()
	got := convertMessage(types.Message{Role: "user", Content: "Hello!"})
	if got.Role != "user" {
		t.Errorf("expected role user, got %q", got.Role)
	}
	if got.ContentString() != "Hello!" {
		t.Errorf("expected content %q, got %q", "Hello!", got.ContentString())
	}
}

func TestConvertMessage_WithImage(t *testing.T) {
	t.Parallel()
	got := convertMessage(types.Message{
		Role:    "user",
		Content: "describe",
		Images:  []types.Image{{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}},
	})
	parts, ok := got.Content.([]anyllmlib.ContentPart)
	if !ok {
		t.Fatalf("expected multi-part content, got %T", got.Content)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0].Type != "text" || parts[0].Text != "describe" {
		t.Errorf("unexpected text part: %+v", parts[0])
	}
	if parts[1].ImageURL == nil || !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("unexpected image part: %+v", parts[1])
	}
}

func TestDataURL_DefaultMIME(t *testing.T) {
	t.Parallel()
	got := types.Image{Data: []byte("abc")}.DataURL()
	if got != "data:image/jpeg;base64,YWJj" {
		t.Errorf("DataURL = %q", got)
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "gemini-1.5-flash"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "be brief",
		Messages:     []types.Message{{Role: "user", Content: "hi"}},
		MaxTokens:    2000,
	})
	if params.Model != "gemini-1.5-flash" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 || params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Fatalf("expected system + user messages, got %+v", params.Messages)
	}
	if params.Temperature != nil {
		t.Errorf("zero temperature should leave provider default, got %v", *params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 2000 {
		t.Errorf("MaxTokens not propagated")
	}
}

func TestBuildParams_JSON(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "gemini-2.0-flash"}

	tests := []struct {
		name   string
		system string
		want   string
	}{
		{name: "with system prompt", system: "Design a feedback form.", want: "Design a feedback form.\n" + jsonInstruction},
		{name: "without system prompt", want: jsonInstruction},
	}
	for _, tc := range tests {
		params := p.buildParams(llm.CompletionRequest{
			SystemPrompt: tc.system,
			Messages:     []types.Message{{Role: "user", Content: "Transcript: ..."}},
			JSON:         true,
		})
		if got, _ := params.Messages[0].Content.(string); params.Messages[0].Role != anyllmlib.RoleSystem || got != tc.want {
			t.Errorf("%s: system message = %+v, want %q", tc.name, params.Messages[0], tc.want)
		}
	}
}

func TestModelCapabilities(t *testing.T) {
	t.Parallel()
	tests := []struct {
		model      string
		wantVision bool
		wantWindow int
	}{
		{"gpt-4o-mini", true, 128_000},
		{"gpt-4", false, 8_192},
		{"claude-3-5-sonnet-latest", true, 200_000},
		{"gemini-1.5-pro", true, 2_097_152},
		{"gemini-1.5-flash", true, 1_048_576},
		{"mystery-model", false, 32_000},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			t.Parallel()
			caps := modelCapabilities(tt.model)
			if caps.SupportsVision != tt.wantVision {
				t.Errorf("SupportsVision = %v, want %v", caps.SupportsVision, tt.wantVision)
			}
			if caps.ContextWindow != tt.wantWindow {
				t.Errorf("ContextWindow = %d, want %d", caps.ContextWindow, tt.wantWindow)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("", "m"); err == nil {
		t.Error("expected error for empty provider name")
	}
	if _, err := New("openai", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("bogus", "m"); err == nil {
		t.Error("expected error for unsupported provider")
	}
}
