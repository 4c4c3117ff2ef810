package translate_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/internal/transcript/translate"
	"github.com/MrWong99/clubnote/pkg/provider/llm"
	llmmock "github.com/MrWong99/clubnote/pkg/provider/llm/mock"
	"github.com/MrWong99/clubnote/pkg/types"
)

func TestSameLanguage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b string
		want bool
	}{
		{"zh", "zh-TW", true},
		{"zh-Hant", "zh-TW", true},
		{"en", "en-US", true},
		{"en", "zh-TW", false},
		{"ja", "zh", false},
		{"??", "??", true},
		{"??", "en", false},
	}
	for _, tc := range tests {
		if got := translate.SameLanguage(tc.a, tc.b); got != tc.want {
			t.Errorf("SameLanguage(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"zh-TW":   "Traditional Chinese",
		"zh-Hant": "Traditional Chinese",
		"zh-Hans": "Simplified Chinese",
		"zh-CN":   "Simplified Chinese",
		"en":      "English",
	}
	for tag, want := range tests {
		if got := translate.DisplayName(tag); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", tag, got, want)
		}
	}
}

func TestLLM_Translate(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "```json\n[\"大家好\", \"今天講資料庫\"]\n```",
	}}
	tr := translate.NewLLM(p)

	in := []types.Segment{
		{Text: "hello everyone", Speaker: "SPEAKER_00", Language: "en"},
		{Text: "today we cover databases", Speaker: "SPEAKER_01", Language: "en"},
	}
	got, err := tr.Translate(context.Background(), in, "en", "zh-TW")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got[1].Text != "今天講資料庫" || got[1].Speaker != "SPEAKER_01" || got[1].Language != "zh-TW" {
		t.Errorf("seg[1] = %+v", got[1])
	}
	if in[0].Text != "hello everyone" {
		t.Error("input mutated")
	}
	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if !strings.Contains(calls[0].Req.SystemPrompt, "Traditional Chinese") {
		t.Errorf("system prompt missing target: %q", calls[0].Req.SystemPrompt)
	}
}

func TestLLM_Translate_SameLanguageSkipsModel(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteErr: errors.New("must not be called")}
	in := []types.Segment{{Text: "大家好"}}

	got, err := translate.NewLLM(p).Translate(context.Background(), in, "zh", "zh-TW")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got[0].Text != "大家好" {
		t.Errorf("text = %q, want unchanged", got[0].Text)
	}
	if len(p.Calls()) != 0 {
		t.Error("model was called for same-language input")
	}
}

func TestLLM_Translate_Batches(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{Responses: []llmmock.Result{
		{Response: &llm.CompletionResponse{Content: `["一","二"]`}},
		{Response: &llm.CompletionResponse{Content: `["三"]`}},
	}}
	in := []types.Segment{{Text: "one"}, {Text: "two"}, {Text: "three"}}

	got, err := translate.NewLLM(p, translate.WithBatchSize(2)).Translate(context.Background(), in, "en", "zh-TW")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got[2].Text != "三" {
		t.Errorf("seg[2] = %q", got[2].Text)
	}
	if len(p.Calls()) != 2 {
		t.Errorf("calls = %d, want 2", len(p.Calls()))
	}
}

func TestLLM_Translate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		p    *llmmock.Provider
	}{
		{"upstream", &llmmock.Provider{CompleteErr: errors.New("quota")}},
		{"not json", &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "翻譯如下：大家好"}}},
		{"count mismatch", &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: `["a","b"]`}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := translate.NewLLM(tc.p).Translate(context.Background(), []types.Segment{{Text: "hi"}}, "en", "zh-TW")
			if !errors.Is(err, pipeline.ErrTranslation) {
				t.Errorf("err = %v, want ErrTranslation", err)
			}
		})
	}
}
