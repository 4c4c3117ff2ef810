// Package transcript turns a decoded recording into an ordered, speaker
// labelled, script-normalized and translated [Transcript].
//
// The [Pipeline] runs Transcriber → Aligner → Diarizer → ScriptNormalizer →
// Translator. Only transcription can abort a run; every later stage degrades
// to a documented fallback instead of failing.
package transcript

import (
	"strings"

	"github.com/MrWong99/clubnote/pkg/types"
)

// SkippedMarker prefixes a rendered transcript whose translation failed.
const SkippedMarker = "[translation skipped]"

// Transcript is the product of one pipeline run.
type Transcript struct {
	// Language is the detected source language (ISO 639-1).
	Language string

	// TargetLanguage is the presentation language requested for the run.
	TargetLanguage string

	// Segments are ordered, non-overlapping and speaker labelled.
	Segments []types.Segment

	// TranslationSkipped is set when the translator gave up and Segments
	// still hold source-language text.
	TranslationSkipped bool
}

// Empty reports whether the transcript holds no speech.
func (t *Transcript) Empty() bool {
	if t == nil {
		return true
	}
	for _, s := range t.Segments {
		if strings.TrimSpace(s.Text) != "" {
			return false
		}
	}
	return true
}

// Speakers returns distinct speaker labels in order of first appearance.
func (t *Transcript) Speakers() []string {
	if t == nil {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, s := range t.Segments {
		if s.Speaker != "" && !seen[s.Speaker] {
			seen[s.Speaker] = true
			out = append(out, s.Speaker)
		}
	}
	return out
}

// Render formats the transcript as plain lines. With more than one speaker
// each line is prefixed "SPEAKER_xx: ".
func (t *Transcript) Render() string {
	if t.Empty() {
		return ""
	}
	multi := len(t.Speakers()) > 1
	var b strings.Builder
	if t.TranslationSkipped {
		b.WriteString(SkippedMarker)
		b.WriteByte('\n')
	}
	for _, s := range t.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if multi {
			b.WriteString(s.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}
