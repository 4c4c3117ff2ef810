// Package chat defines the transport-neutral events and replies exchanged
// between chat adapters and the dispatcher.
package chat

import (
	"context"
	"strings"
)

// Kind is the content type of an inbound event.
type Kind string

const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// Event is one inbound user message.
type Event struct {
	// User is the platform-scoped user id. Sessions are keyed by it.
	User string

	Kind Kind

	// Text is set for KindText.
	Text string

	// Data holds the attachment bytes for KindAudio and KindImage.
	Data []byte

	// MIMEType is the media type the platform declared for Data.
	MIMEType string
}

// QuickReply is a suggested answer a transport can render as a button.
// Selecting it sends Text back as a text event.
type QuickReply struct {
	Label string
	Text  string
}

// Reply is the single answer to an [Event].
type Reply struct {
	Text string

	// URL is set when the result is a link (form or calendar).
	URL string

	QuickReplies []QuickReply
}

// String flattens the reply for transports without rich formatting.
func (r Reply) String() string {
	parts := make([]string, 0, 2)
	if r.Text != "" {
		parts = append(parts, r.Text)
	}
	if r.URL != "" {
		parts = append(parts, r.URL)
	}
	return strings.Join(parts, "\n")
}

// Handler answers inbound events. Implementations must be safe for
// concurrent use.
type Handler interface {
	Handle(ctx context.Context, ev Event) Reply
}

// HandlerFunc adapts a function to [Handler].
type HandlerFunc func(ctx context.Context, ev Event) Reply

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) Reply { return f(ctx, ev) }

// KindFromMIME classifies an attachment by its media type. Unknown types
// are reported as ok=false.
func KindFromMIME(mime string) (Kind, bool) {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "audio/"), mime == "video/webm", mime == "video/mp4", mime == "application/ogg":
		return KindAudio, true
	case strings.HasPrefix(mime, "image/"):
		return KindImage, true
	}
	return "", false
}
