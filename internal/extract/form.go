package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/clubnote/internal/observe"
	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/pkg/provider/llm"
)

// QuestionKind selects the form widget for a question.
type QuestionKind string

const (
	ShortAnswer  QuestionKind = "shortAnswer"
	SingleChoice QuestionKind = "singleChoice"
)

// IsValid reports whether k is a known kind.
func (k QuestionKind) IsValid() bool {
	return k == ShortAnswer || k == SingleChoice
}

// Question is one form item.
type Question struct {
	Index   int          `json:"index"`
	Title   string       `json:"title"`
	Kind    QuestionKind `json:"kind"`
	Options []string     `json:"options,omitempty"`
}

// FormSpec describes a form to publish. Indices are dense from 0 and
// DocumentTitle always equals Title.
type FormSpec struct {
	Title         string     `json:"title"`
	DocumentTitle string     `json:"documentTitle"`
	Questions     []Question `json:"questions"`
}

// Validate checks the structural rules of a FormSpec.
func (f *FormSpec) Validate() error {
	var errs []error
	if strings.TrimSpace(f.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if f.DocumentTitle != f.Title {
		errs = append(errs, fmt.Errorf("documentTitle %q does not match title %q", f.DocumentTitle, f.Title))
	}
	if len(f.Questions) == 0 {
		errs = append(errs, errors.New("at least one question is required"))
	}
	for i, q := range f.Questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		if q.Index != i {
			errs = append(errs, fmt.Errorf("%s.index is %d, want %d", prefix, q.Index, i))
		}
		if strings.TrimSpace(q.Title) == "" {
			errs = append(errs, fmt.Errorf("%s.title is required", prefix))
		}
		switch q.Kind {
		case ShortAnswer:
			if len(q.Options) > 0 {
				errs = append(errs, fmt.Errorf("%s: shortAnswer must not have options", prefix))
			}
		case SingleChoice:
			if len(q.Options) < 2 {
				errs = append(errs, fmt.Errorf("%s: singleChoice needs at least two options", prefix))
			}
			for j, o := range q.Options {
				if strings.TrimSpace(o) == "" {
					errs = append(errs, fmt.Errorf("%s.options[%d] is empty", prefix, j))
				}
			}
		default:
			errs = append(errs, fmt.Errorf("%s.kind %q is invalid; valid values: shortAnswer, singleChoice", prefix, q.Kind))
		}
	}
	return errors.Join(errs...)
}

const formSystemPrompt = `You design questionnaires from spoken instructions.

Read the transcript and list every question the speaker wants on the form, in the order they are mentioned.
A question is "singleChoice" when the speaker enumerates discrete options, otherwise "shortAnswer".
Write titles and options in the language of the transcript.

Respond with ONLY one JSON object, no markdown and no prose:
{"title": "...", "documentTitle": "<same as title>", "questions": [{"index": 0, "title": "...", "kind": "shortAnswer"}, {"index": 1, "title": "...", "kind": "singleChoice", "options": ["...", "..."]}]}`

// ExtractForm derives a [FormSpec] from transcript. Output that is not the
// exact JSON shape, or that fails [FormSpec.Validate], is a fatal error
// wrapping [pipeline.ErrExtraction]; no partial spec is returned.
func (e *Extractor) ExtractForm(ctx context.Context, transcript string) (_ *FormSpec, err error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, pipeline.Fatal(pipeline.StageExtract, ErrNoInput)
	}

	ctx, done := observe.StartStage(ctx, e.metrics, pipeline.StageExtract)
	defer func() { done(err, "") }()

	out, err := e.complete(ctx, formSystemPrompt, "Transcript:\n"+transcript, nil, true)
	if err != nil {
		return nil, err
	}
	var spec FormSpec
	if err := llm.DecodeJSON(out, &spec); err != nil {
		return nil, malformed("form", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, malformed("form", err)
	}
	return &spec, nil
}
