// Package stt defines the Transcriber interface for batch Speech-to-Text
// backends.
//
// A Transcriber takes a whole decoded recording and returns time-stamped
// segments plus the detected spoken language. Backends that report word
// timings fill [types.Segment.Words], which the aligner uses to tighten
// segment boundaries.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/types"
)

// ErrNoSpeech is returned when a recording yields no usable segments, either
// because it is silent or because the backend only produced non-speech
// markers such as "[BLANK_AUDIO]".
var ErrNoSpeech = errors.New("stt: no speech recognised")

// DefaultSilenceRMS is the whole-clip RMS energy (16-bit PCM units) below which
// a recording is treated as silent without contacting the backend.
const DefaultSilenceRMS = 150.0

// Options tunes a single transcription.
type Options struct {
	// Language is the ISO 639-1 code to force. Empty lets the backend detect it.
	Language string
}

// Result is a completed transcription.
type Result struct {
	// Language is the ISO 639-1 code of the detected (or forced) language.
	Language string

	// Segments are ordered by start time. Every segment carries Language.
	Segments []types.Segment
}

// Text joins all segment texts with single spaces.
func (r *Result) Text() string {
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

// Transcriber converts a decoded recording into text segments.
type Transcriber interface {
	// Transcribe returns [ErrNoSpeech] (possibly wrapped) when the clip holds no
	// recognisable speech.
	Transcribe(ctx context.Context, clip *audio.Clip, opts Options) (*Result, error)
}

// Silent reports whether clip is too quiet to be worth transcribing.
func Silent(clip *audio.Clip) bool {
	return clip == nil || len(clip.Samples) == 0 || audio.RMS(clip.Samples) < DefaultSilenceRMS
}

// markerRe matches segments that consist only of a bracketed non-speech
// annotation, e.g. "[BLANK_AUDIO]", "(music)" or "[ Silence ]".
var markerRe = regexp.MustCompile(`^\s*(\[[^\]]*\]|\([^)]*\)|\*[^*]*\*)\s*$`)

// Finalize trims segment texts, drops empty and marker-only segments and
// stamps every segment with lang. It returns [ErrNoSpeech] when nothing is
// left.
func Finalize(segments []types.Segment, lang string) (*Result, error) {
	out := make([]types.Segment, 0, len(segments))
	for _, s := range segments {
		s.Text = strings.TrimSpace(strings.ReplaceAll(s.Text, "[BLANK_AUDIO]", ""))
		if s.Text == "" || markerRe.MatchString(s.Text) {
			continue
		}
		s.Language = lang
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, ErrNoSpeech
	}
	return &Result{Language: lang, Segments: out}, nil
}
