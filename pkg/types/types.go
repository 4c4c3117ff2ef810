// Package types defines the shared types used across clubnote packages.
//
// These types are the common vocabulary of the speech providers, the transcript
// stages and the model-backed extractors. Each package keeps its own domain
// types; only data that crosses package boundaries lives here.
package types

import (
	"encoding/base64"
	"time"
)

// Word is a single recognised word with its timing inside the recording.
type Word struct {
	Text  string
	Start time.Duration
	End   time.Duration

	// Probability is the recogniser's confidence (0.0–1.0). Zero when unknown.
	Probability float64
}

// Segment is one time-stamped stretch of transcribed speech.
//
// Segments are ordered by Start. Before alignment two segments may overlap;
// after alignment they never do and Start/End are monotonic.
type Segment struct {
	Start time.Duration
	End   time.Duration

	// Text is the recognised speech content.
	Text string

	// Speaker is the diarization label (e.g. "SPEAKER_00"). Empty until a
	// diarizer has run.
	Speaker string

	// Language is the BCP-47-ish language tag of this segment ("zh", "en").
	Language string

	// Words holds word-level timings when the recogniser reports them.
	Words []Word
}

// Duration returns End-Start, clamped at zero.
func (s Segment) Duration() time.Duration {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// Image is an image attachment passed to a vision-capable model.
type Image struct {
	// Data holds the raw encoded bytes (PNG, JPEG, ...).
	Data []byte

	// MIMEType is the media type of Data, e.g. "image/png".
	MIMEType string
}

// DataURL encodes the image as an RFC 2397 data URL. An empty MIME type
// defaults to image/jpeg.
func (i Image) DataURL() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Images are attached to user messages for vision models. Providers that
	// cannot handle images reject messages carrying them.
	Images []Image
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool
}
