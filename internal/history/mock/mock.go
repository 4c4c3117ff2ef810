// Package mock provides a recording test double for history.Store.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/clubnote/internal/history"
)

// PutCall records one Put.
type PutCall struct {
	Key, Field, Value string
}

// Store wraps an in-memory store and records calls. Set the Err fields to
// force failures.
type Store struct {
	mu    sync.Mutex
	inner *history.MemStore

	GetErr    error
	PutErr    error
	DeleteErr error

	Puts    []PutCall
	Deletes []string
}

var _ history.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{inner: history.NewMemStore()}
}

// Get implements history.Store.
func (s *Store) Get(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	err := s.GetErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.inner.Get(ctx, key)
}

// Put implements history.Store.
func (s *Store) Put(ctx context.Context, key, field, value string) error {
	s.mu.Lock()
	s.Puts = append(s.Puts, PutCall{Key: key, Field: field, Value: value})
	err := s.PutErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.inner.Put(ctx, key, field, value)
}

// Delete implements history.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.Deletes = append(s.Deletes, key)
	err := s.DeleteErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.inner.Delete(ctx, key)
}

// DeletedKeys returns a copy of the keys passed to Delete.
func (s *Store) DeletedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Deletes...)
}
