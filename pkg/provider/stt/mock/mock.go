// Package mock provides a test double for the stt.Transcriber interface.
//
//	tr := &mock.Transcriber{Result: &stt.Result{Language: "zh", Segments: segs}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	Ctx  context.Context
	Clip *audio.Clip
	Opts stt.Options
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result *stt.Result

	// Err, if non-nil, is returned by Transcribe.
	Err error

	// Block, if set, makes Transcribe wait until ctx is done or Block is
	// closed. Used to exercise timeouts.
	Block chan struct{}

	// TranscribeCalls records every invocation in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns Result, Err.
func (m *Transcriber) Transcribe(ctx context.Context, clip *audio.Clip, opts stt.Options) (*stt.Result, error) {
	m.mu.Lock()
	m.TranscribeCalls = append(m.TranscribeCalls, TranscribeCall{Ctx: ctx, Clip: clip, Opts: opts})
	block, res, err := m.Block, m.Result, m.Err
	m.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-block:
		}
	}
	return res, err
}

// CallCount returns the number of Transcribe calls so far.
func (m *Transcriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.TranscribeCalls)
}

// Reset clears all recorded calls.
func (m *Transcriber) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranscribeCalls = nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
