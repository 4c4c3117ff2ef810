package pipeline_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/MrWong99/clubnote/internal/pipeline"
)

func TestStageError_Unwrap(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("run: %w", pipeline.Fatal(pipeline.StageDecode, fmt.Errorf("audio: %w", pipeline.ErrUnsupportedFormat)))

	if !errors.Is(err, pipeline.ErrUnsupportedFormat) {
		t.Error("errors.Is did not reach the sentinel")
	}
	var se *pipeline.StageError
	if !errors.As(err, &se) {
		t.Fatal("errors.As did not find the StageError")
	}
	if se.Stage != pipeline.StageDecode || !se.Fatal {
		t.Errorf("StageError = %+v", se)
	}
	if got := pipeline.FailedStage(err); got != pipeline.StageDecode {
		t.Errorf("FailedStage = %q", got)
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"fatal stage", pipeline.Fatal(pipeline.StageExtract, pipeline.ErrExtraction), true},
		{"degraded stage", pipeline.Degraded(pipeline.StageTranscribe, pipeline.ErrTranscription), false},
		{"input", &pipeline.InputError{Prompt: "請先提供錄音檔"}, false},
		{"plain", errors.New("boom"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := pipeline.IsFatal(tc.err); got != tc.want {
				t.Errorf("IsFatal = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUpstream_NoDoubleWrap(t *testing.T) {
	t.Parallel()
	inner := pipeline.Upstream("forms", errors.New("503"))
	outer := pipeline.Upstream("llm", inner)
	if outer != inner {
		t.Errorf("Upstream rewrapped an UpstreamError: %v", outer)
	}
	var ue *pipeline.UpstreamError
	if !errors.As(outer, &ue) || ue.Service != "forms" {
		t.Errorf("service = %v, want forms", ue)
	}
	if pipeline.Upstream("x", nil) != nil {
		t.Error("Upstream(nil) != nil")
	}
}

func TestInputError_Message(t *testing.T) {
	t.Parallel()
	err := &pipeline.InputError{Prompt: "請輸入有效命令", Reason: "promo payload has 3 fields"}
	if err.Error() != "input: promo payload has 3 fields" {
		t.Errorf("Error() = %q", err.Error())
	}
}
