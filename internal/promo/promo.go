// Package promo generates bilingual event promotion copy from six
// space-delimited fields.
package promo

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/pkg/provider/llm"
	"github.com/MrWong99/clubnote/pkg/types"
)

// Prompt asks the user for the six promo fields.
const Prompt = "請依序輸入並以空白鍵隔開：主辦單位 時間 地點 活動名稱 活動內容 費用"

// Usage is shown when the payload does not have six fields.
const Usage = "請輸入有效命令，例如： 主辦單位 時間 地點 活動名稱 活動內容 費用"

// Fields is one parsed promo request.
type Fields struct {
	Organizer   string
	Time        string
	Location    string
	EventName   string
	Description string
	Fee         string
}

// Parse splits text into at most six fields. Anything past the fifth
// separator belongs to Fee. Fewer than six fields is an [pipeline.InputError].
func Parse(text string) (Fields, error) {
	parts := strings.Fields(text)
	if len(parts) < 6 {
		return Fields{}, &pipeline.InputError{
			Prompt: Usage,
			Reason: fmt.Sprintf("promo payload has %d fields, want 6", len(parts)),
		}
	}
	return Fields{
		Organizer:   parts[0],
		Time:        parts[1],
		Location:    parts[2],
		EventName:   parts[3],
		Description: parts[4],
		Fee:         strings.Join(parts[5:], " "),
	}, nil
}

// Map returns the fields keyed as they are stored in chat history.
func (f Fields) Map() map[string]string {
	return map[string]string{
		"organizer":   f.Organizer,
		"time":        f.Time,
		"location":    f.Location,
		"event_name":  f.EventName,
		"description": f.Description,
		"fee":         f.Fee,
	}
}

var freeFee = regexp.MustCompile(`(?i)^(?:nt\$|\$)?\s*0+(?:\.0+)?\s*(?:元|nt|ntd|twd)?$|^(?:免費|free|無|不用錢)$`)

// IsFree reports whether fee means the event costs nothing.
func IsFree(fee string) bool {
	return freeFee.MatchString(strings.TrimSpace(fee))
}

// Normalizer rewrites facility names into canonical codes.
type Normalizer interface {
	Normalize(text string) string
}

// Promo is generated copy in both languages.
type Promo struct {
	Chinese string
	English string
}

// String renders the chat reply.
func (p *Promo) String() string {
	return "文宣內容:\n【中文】\n" + p.Chinese + "\n\n【English】\n" + p.English
}

// Generator writes promo copy. It is safe for concurrent use.
type Generator struct {
	llm       llm.Provider
	locations Normalizer
}

// NewGenerator returns a Generator. locations rewrites the English
// section's venue; nil leaves it as typed.
func NewGenerator(p llm.Provider, locations Normalizer) *Generator {
	return &Generator{llm: p, locations: locations}
}

// Generate produces both sections concurrently. The Chinese section keeps the
// venue as typed; the English one uses its canonical building code.
func (g *Generator) Generate(ctx context.Context, f Fields) (*Promo, error) {
	enLocation := f.Location
	if g.locations != nil {
		enLocation = g.locations.Normalize(f.Location)
	}

	var out Promo
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		s, err := g.complete(ctx, chinesePrompt(f, f.Location))
		if err != nil {
			return fmt.Errorf("promo: chinese: %w", err)
		}
		out.Chinese = s
		return nil
	})
	eg.Go(func() error {
		s, err := g.complete(ctx, englishPrompt(f, enLocation))
		if err != nil {
			return fmt.Errorf("promo: english: %w", err)
		}
		out.English = s
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		Temperature: 0.8,
		Messages:    []types.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", pipeline.Upstream("llm", err)
	}
	return strings.TrimSpace(llm.StripCodeFence(resp.Content)), nil
}

func chinesePrompt(f Fields, location string) string {
	var b strings.Builder
	b.WriteString("使用以下資料生成中文宣傳文宣：\n一定要包含以下內容:\n")
	fmt.Fprintf(&b, "主辦單位: %s\n活動時間: %s\n活動地點: %s\n活動名稱: %s\n活動內容: %s\n費用: %s\n",
		f.Organizer, f.Time, location, f.EventName, f.Description, f.Fee)
	if IsFree(f.Fee) {
		b.WriteString("這個活動完全免費，請在文案中特別強調免費。\n")
	}
	b.WriteString("強調大家可以學到或體驗到什麼東西，以及一個相關的有趣的笑話，才能吸引大家參加。\n只輸出文案本身，不要使用 markdown。")
	return b.String()
}

func englishPrompt(f Fields, location string) string {
	var b strings.Builder
	b.WriteString("Write an English promotional post for this event. It must include:\n")
	fmt.Fprintf(&b, "Organizer: %s\nTime: %s\nLocation: %s\nEvent: %s\nDescription: %s\nFee: %s\n",
		f.Organizer, f.Time, location, f.EventName, f.Description, f.Fee)
	if IsFree(f.Fee) {
		b.WriteString("The event is completely FREE. Emphasise that it is free.\n")
	}
	b.WriteString("Highlight what attendees will learn or experience and add one short related joke. Output only the post, no markdown.")
	return b.String()
}
