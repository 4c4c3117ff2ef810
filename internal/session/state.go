package session

import (
	"errors"
	"fmt"

	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/types"
)

// Mode is the collection flow a user is in.
type Mode string

const (
	ModeIdle           Mode = "idle"
	ModeCollectingNote Mode = "collecting_note"
	ModeCollectingForm Mode = "collecting_form"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeIdle, ModeCollectingNote, ModeCollectingForm:
		return true
	}
	return false
}

// Awaiting is an optional sub-state independent of Mode.
type Awaiting string

const (
	AwaitingNone    Awaiting = ""
	AwaitingKeyword Awaiting = "awaiting_keyword"
)

// Audio is a user upload waiting to be decoded.
type Audio struct {
	Data []byte
	// Declared is the container the transport claimed; the decoder sniffs
	// the bytes first.
	Declared audio.Container
}

// Session is one user's conversation state. The zero value is idle.
type Session struct {
	Mode     Mode
	Audio    *Audio
	Image    *types.Image
	Awaiting Awaiting
}

// Idle reports whether nothing is being collected.
func (s *Session) Idle() bool {
	return s.Mode == "" || s.Mode == ModeIdle
}

// HasPending reports whether audio or an image is buffered.
func (s *Session) HasPending() bool {
	return s.Audio != nil || s.Image != nil
}

// Reset returns the session to idle and drops every buffered input.
func (s *Session) Reset() {
	*s = Session{Mode: ModeIdle}
}

// Start enters mode with nothing pending. Any previous flow is discarded.
func (s *Session) Start(mode Mode) {
	*s = Session{Mode: mode}
}

// Take hands the buffered inputs to the caller and resets the session.
func (s *Session) Take() (*Audio, *types.Image) {
	a, img := s.Audio, s.Image
	s.Reset()
	return a, img
}

// ErrInvariant is wrapped by every [InvariantError].
var ErrInvariant = errors.New("session invariant violated")

// InvariantError describes an impossible session state.
type InvariantError struct {
	Mode   Mode
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("session: mode %q: %s", e.Mode, e.Reason)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Validate checks the session's structural invariants.
func (s *Session) Validate() error {
	if s.Mode != "" && !s.Mode.IsValid() {
		return &InvariantError{Mode: s.Mode, Reason: "unknown mode"}
	}
	if s.Idle() && s.HasPending() {
		return &InvariantError{Mode: s.Mode, Reason: "idle session holds pending input"}
	}
	if s.Mode == ModeCollectingForm && s.Image != nil {
		return &InvariantError{Mode: s.Mode, Reason: "form flow holds an image"}
	}
	if s.Awaiting != AwaitingNone && s.Awaiting != AwaitingKeyword {
		return &InvariantError{Mode: s.Mode, Reason: fmt.Sprintf("unknown awaiting field %q", s.Awaiting)}
	}
	return nil
}
