package extract_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/clubnote/internal/extract"
	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/pkg/provider/llm"
	"github.com/MrWong99/clubnote/pkg/provider/llm/mock"
	"github.com/MrWong99/clubnote/pkg/types"
)

func reply(s string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Content: s}
}

func TestSummarize_PromptVariants(t *testing.T) {
	t.Parallel()

	img := &types.Image{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"}

	tests := []struct {
		name       string
		transcript string
		img        *types.Image
		wantPrefix string
		wantImages int
		wantText   bool
	}{
		{name: "transcript only", transcript: "今天介紹 Go", wantPrefix: "根據以下課程逐字稿。", wantText: true},
		{name: "image only", img: img, wantPrefix: "根據課程的相關圖片。", wantImages: 1},
		{name: "both", transcript: "今天介紹 Go", img: img, wantPrefix: "根據以下課程逐字稿及相關圖片。", wantImages: 1, wantText: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &mock.Provider{CompleteResponse: reply("# 筆記\n- Go")}
			e := extract.New(p)

			got, err := e.Summarize(context.Background(), tt.transcript, tt.img)
			if err != nil {
				t.Fatalf("Summarize: %v", err)
			}
			if got.Markdown != "# 筆記\n- Go" {
				t.Errorf("Markdown = %q", got.Markdown)
			}

			calls := p.Calls()
			if len(calls) != 1 {
				t.Fatalf("calls = %d, want 1", len(calls))
			}
			msg := calls[0].Req.Messages[0]
			if !strings.HasPrefix(msg.Content, tt.wantPrefix) {
				t.Errorf("prompt = %q, want prefix %q", msg.Content, tt.wantPrefix)
			}
			if !strings.Contains(msg.Content, "不可超過20行") {
				t.Errorf("prompt does not carry the line bound: %q", msg.Content)
			}
			if got := strings.Contains(msg.Content, tt.transcript) && tt.transcript != ""; got != tt.wantText {
				t.Errorf("prompt contains transcript = %v, want %v", got, tt.wantText)
			}
			if len(msg.Images) != tt.wantImages {
				t.Errorf("images = %d, want %d", len(msg.Images), tt.wantImages)
			}
		})
	}
}

func TestSummarize_NoInput(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{}
	_, err := extract.New(p).Summarize(context.Background(), "   ", nil)
	if !errors.Is(err, extract.ErrNoInput) {
		t.Fatalf("err = %v, want ErrNoInput", err)
	}
	if len(p.Calls()) != 0 {
		t.Error("model must not be called without input")
	}
}

func TestSummarize_UpstreamFailure(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteErr: errors.New("quota")}
	_, err := extract.New(p).Summarize(context.Background(), "text", nil)
	var ue *pipeline.UpstreamError
	if !errors.As(err, &ue) || ue.Service != "llm" {
		t.Fatalf("err = %v, want llm UpstreamError", err)
	}
	if !pipeline.IsFatal(err) || pipeline.FailedStage(err) != pipeline.StageExtract {
		t.Errorf("err = %v, want fatal extract stage error", err)
	}
}

func TestBound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "fenced markdown", in: "```markdown\n# T\n- a\n```", max: 20, want: "# T\n- a"},
		{name: "nested fence removed", in: "# T\n```go\nfmt.Println()\n```\n- a", max: 20, want: "# T\nfmt.Println()\n- a"},
		{name: "blank runs collapse", in: "\n\n# T\n\n\n\n- a\n\n", max: 20, want: "# T\n\n- a"},
		{name: "truncated", in: "1\n2\n3\n4", max: 2, want: "1\n2"},
		{name: "no trailing blank after cut", in: "1\n\n2", max: 2, want: "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extract.Bound(tt.in, tt.max); got != tt.want {
				t.Errorf("Bound(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestSummarize_BoundsLines(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("- item\n", 40)
	p := &mock.Provider{CompleteResponse: reply(long)}
	got, err := extract.New(p, extract.WithMaxLines(5)).Summarize(context.Background(), "text", nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if n := len(strings.Split(got.Markdown, "\n")); n != 5 {
		t.Errorf("lines = %d, want 5", n)
	}
}

const goodForm = "```json\n" + `{"title":"社課回饋","documentTitle":"社課回饋","questions":[
{"index":0,"title":"你的名字","kind":"shortAnswer"},
{"index":1,"title":"滿意度","kind":"singleChoice","options":["滿意","普通","不滿意"]}]}` + "\n```"

func TestExtractForm(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteResponse: reply(goodForm)}
	spec, err := extract.New(p).ExtractForm(context.Background(), "第一題問名字，第二題問滿意度，選項有滿意普通不滿意")
	if err != nil {
		t.Fatalf("ExtractForm: %v", err)
	}
	if spec.Title != "社課回饋" || spec.DocumentTitle != spec.Title {
		t.Errorf("titles = %q/%q", spec.Title, spec.DocumentTitle)
	}
	if len(spec.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(spec.Questions))
	}
	if q := spec.Questions[1]; q.Kind != extract.SingleChoice || len(q.Options) != 3 {
		t.Errorf("questions[1] = %+v", q)
	}
}

func TestExtractForm_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		out  string
	}{
		{name: "prose", out: "Sure! Here is your form."},
		{name: "truncated json", out: `{"title":"x","documentTitle":"x","questions":[`},
		{name: "unknown field", out: `{"title":"x","documentTitle":"x","questions":[{"index":0,"title":"q","kind":"shortAnswer"}],"extra":1}`},
		{name: "title mismatch", out: `{"title":"x","documentTitle":"y","questions":[{"index":0,"title":"q","kind":"shortAnswer"}]}`},
		{name: "sparse index", out: `{"title":"x","documentTitle":"x","questions":[{"index":1,"title":"q","kind":"shortAnswer"}]}`},
		{name: "bad kind", out: `{"title":"x","documentTitle":"x","questions":[{"index":0,"title":"q","kind":"checkbox"}]}`},
		{name: "choice without options", out: `{"title":"x","documentTitle":"x","questions":[{"index":0,"title":"q","kind":"singleChoice"}]}`},
		{name: "no questions", out: `{"title":"x","documentTitle":"x","questions":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &mock.Provider{CompleteResponse: reply(tt.out)}
			spec, err := extract.New(p).ExtractForm(context.Background(), "transcript")
			if spec != nil {
				t.Errorf("spec = %+v, want nil", spec)
			}
			if !errors.Is(err, pipeline.ErrExtraction) {
				t.Fatalf("err = %v, want ErrExtraction", err)
			}
			if !pipeline.IsFatal(err) {
				t.Error("extraction errors must be fatal")
			}
		})
	}
}

func TestExtractEvent(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteResponse: reply(`{"time":"20250101T020000Z/20250101T040000Z","location":"台北","title":"Kickoff","content":"歡迎參加"}`)}
	ev, err := extract.New(p).ExtractEvent(context.Background(), types.Image{Data: []byte{1}, MIMEType: "image/png"})
	if err != nil {
		t.Fatalf("ExtractEvent: %v", err)
	}
	want := extract.Event{Time: "20250101T020000Z/20250101T040000Z", Location: "台北", Title: "Kickoff", Content: "歡迎參加"}
	if *ev != want {
		t.Errorf("event = %+v, want %+v", *ev, want)
	}
	if imgs := p.Calls()[0].Req.Messages[0].Images; len(imgs) != 1 {
		t.Errorf("images = %d, want 1", len(imgs))
	}
}

func TestExtractEvent_Errors(t *testing.T) {
	t.Parallel()

	if _, err := extract.New(&mock.Provider{}).ExtractEvent(context.Background(), types.Image{}); !errors.Is(err, extract.ErrNoInput) {
		t.Errorf("empty image: err = %v, want ErrNoInput", err)
	}

	p := &mock.Provider{CompleteResponse: reply("not json")}
	if _, err := extract.New(p).ExtractEvent(context.Background(), types.Image{Data: []byte{1}}); !errors.Is(err, pipeline.ErrExtraction) {
		t.Errorf("prose: err = %v, want ErrExtraction", err)
	}
}
