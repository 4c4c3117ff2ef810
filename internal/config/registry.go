package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/clubnote/internal/transcript/align"
	"github.com/MrWong99/clubnote/internal/transcript/diarize"
	"github.com/MrWong99/clubnote/pkg/provider/llm"
	"github.com/MrWong99/clubnote/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	llm      map[string]func(ProviderEntry) (llm.Provider, error)
	stt      map[string]func(ProviderEntry) (stt.Transcriber, error)
	diarizer map[string]func(ProviderEntry) (diarize.Provider, error)
	aligner  map[string]func(ProviderEntry) (align.Aligner, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:      make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt:      make(map[string]func(ProviderEntry) (stt.Transcriber, error)),
		diarizer: make(map[string]func(ProviderEntry) (diarize.Provider, error)),
		aligner:  make(map[string]func(ProviderEntry) (align.Aligner, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers a transcriber factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterDiarizer registers a diarization provider factory under name.
func (r *Registry) RegisterDiarizer(name string, factory func(ProviderEntry) (diarize.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diarizer[name] = factory
}

// RegisterAligner registers an aligner factory under name.
func (r *Registry) RegisterAligner(name string, factory func(ProviderEntry) (align.Aligner, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aligner[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

// CreateSTT instantiates a transcriber using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Transcriber, error) {
	return create(r, r.stt, "stt", entry)
}

// CreateDiarizer instantiates a diarizer using the factory registered under entry.Name.
func (r *Registry) CreateDiarizer(entry ProviderEntry) (diarize.Provider, error) {
	return create(r, r.diarizer, "diarizer", entry)
}

// CreateAligner instantiates an aligner using the factory registered under entry.Name.
func (r *Registry) CreateAligner(entry ProviderEntry) (align.Aligner, error) {
	return create(r, r.aligner, "aligner", entry)
}

func create[T any](r *Registry, factories map[string]func(ProviderEntry) (T, error), kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := factories[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}
