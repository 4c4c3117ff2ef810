// Package pipeline defines the error taxonomy shared by the
// audio-to-knowledge stages and the session dispatcher.
//
// Stages wrap their failures in [StageError] or [UpstreamError]; the
// dispatcher classifies them with [errors.As] to pick a reply and to decide
// whether the session resets.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/provider/stt"
)

// Stage names used in [StageError].
const (
	StageDecode     = "decode"
	StageTranscribe = "transcribe"
	StageAlign      = "align"
	StageDiarize    = "diarize"
	StageNormalize  = "normalize"
	StageTranslate  = "translate"
	StageExtract    = "extract"
	StagePublish    = "publish"
)

var (
	// ErrUnsupportedFormat means the audio could not be normalized.
	ErrUnsupportedFormat = audio.ErrUnsupportedFormat

	// ErrTranscription means transcription produced no usable text.
	ErrTranscription = stt.ErrNoSpeech

	// ErrTranslation means the translator failed after its retry.
	ErrTranslation = errors.New("translation failed")

	// ErrExtraction means a model returned output that could not be parsed
	// into the requested artifact.
	ErrExtraction = errors.New("extraction failed")

	// ErrTimeout means a run exceeded its deadline.
	ErrTimeout = errors.New("pipeline run timed out")
)

// InputError reports malformed or insufficient user input. It is recovered
// locally with a corrective prompt and never changes session state.
type InputError struct {
	// Prompt is the corrective reply shown to the user.
	Prompt string
	// Reason is logged, never shown.
	Reason string
}

func (e *InputError) Error() string {
	if e.Reason != "" {
		return "input: " + e.Reason
	}
	return "input: " + e.Prompt
}

// StageError wraps a failure of one pipeline stage.
type StageError struct {
	Stage string
	// Fatal stages abort the run and reset the session. Non-fatal ones let
	// the run continue in a degraded mode.
	Fatal bool
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// UpstreamError wraps a failure of an external model or API.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Fatal wraps err as a fatal [StageError].
func Fatal(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Fatal: true, Err: err}
}

// Degraded wraps err as a non-fatal [StageError].
func Degraded(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// Upstream wraps err as an [UpstreamError] unless it already is one.
func Upstream(service string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Service: service, Err: err}
}

// IsFatal reports whether err aborts a run. Errors that are neither stage
// nor input errors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Fatal
	}
	var ie *InputError
	return !errors.As(err, &ie)
}

// FailedStage returns the stage name carried by err, or "".
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
