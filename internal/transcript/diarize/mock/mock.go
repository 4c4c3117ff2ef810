// Package mock provides a test double for the diarize.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/clubnote/internal/transcript/diarize"
	"github.com/MrWong99/clubnote/pkg/audio"
)

// Provider is a mock implementation of diarize.Provider.
type Provider struct {
	mu sync.Mutex

	// Turns is returned by Diarize when Err is nil.
	Turns []diarize.Turn

	// Err, if non-nil, is returned by Diarize.
	Err error

	calls int
}

// Diarize records the call and returns Turns, Err.
func (p *Provider) Diarize(_ context.Context, _ *audio.Clip) ([]diarize.Turn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.Turns, p.Err
}

// CallCount returns the number of Diarize calls so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Reset clears the call counter.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = 0
}

var _ diarize.Provider = (*Provider)(nil)
