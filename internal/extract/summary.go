package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/clubnote/internal/observe"
	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/pkg/types"
)

// NoteSummary is a markdown meeting note.
type NoteSummary struct {
	Markdown string
}

const (
	promptTranscript = "根據以下課程逐字稿。撰寫一份本課程的重點筆記。\n重點筆記應以markdown格式撰寫，且不可超過%d行。\n課程逐字稿：\n"
	promptImage      = "根據課程的相關圖片。撰寫一份本課程的重點筆記。\n重點筆記應以markdown格式撰寫，且不可超過%d行。"
	promptBoth       = "根據以下課程逐字稿及相關圖片。撰寫一份本課程的重點筆記。\n重點筆記應以markdown格式撰寫，且不可超過%d行。\n課程逐字稿：\n"
)

// Summarize writes a note from transcript, image or both. The prompt variant
// follows whichever inputs are present; with neither it fails with
// [ErrNoInput] before contacting the model.
func (e *Extractor) Summarize(ctx context.Context, transcript string, img *types.Image) (_ *NoteSummary, err error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" && img == nil {
		return nil, pipeline.Fatal(pipeline.StageExtract, ErrNoInput)
	}

	ctx, done := observe.StartStage(ctx, e.metrics, pipeline.StageExtract)
	defer func() { done(err, "") }()

	var prompt string
	switch {
	case img == nil:
		prompt = fmt.Sprintf(promptTranscript, e.maxLines) + transcript
	case transcript == "":
		prompt = fmt.Sprintf(promptImage, e.maxLines)
	default:
		prompt = fmt.Sprintf(promptBoth, e.maxLines) + transcript
	}

	out, err := e.complete(ctx, "", prompt, img, false)
	if err != nil {
		return nil, err
	}
	return &NoteSummary{Markdown: Bound(out, e.maxLines)}, nil
}

// Bound flattens model markdown for chat display: fence lines are dropped so
// no nested block survives, runs of blank lines collapse to one and the
// result is cut to at most maxLines lines.
func Bound(md string, maxLines int) string {
	var (
		out   []string
		blank bool
	)
	for line := range strings.Lines(md) {
		line = strings.TrimRight(line, " \t\r\n")
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if maxLines > 0 && len(out) > maxLines {
		out = out[:maxLines]
		for len(out) > 0 && out[len(out)-1] == "" {
			out = out[:len(out)-1]
		}
	}
	return strings.Join(out, "\n")
}
