package session

import (
	"context"
	"errors"
	"sync"
)

// entry pairs a session with the lock that serialises its mutations.
type entry struct {
	mu   sync.Mutex
	sess Session
	// refs counts holders and waiters so idle entries can be dropped.
	refs int
}

// Store keeps one [Session] per user. Mutations for one user are serialised;
// different users never contend beyond a short map lookup.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Update runs fn on the user's session as one transaction. fn sees the
// latest state and its mutations are visible to the next caller in full.
//
// Update blocks until the user's lock is free or ctx is done. A session
// that fails [Session.Validate] after fn returns is reset to idle and the
// validation error returned alongside fn's error.
func (s *Store) Update(ctx context.Context, user string, fn func(*Session) error) error {
	e := s.acquire(user)
	defer s.release(user, e)

	locked := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(locked)
	}()
	select {
	case <-locked:
	case <-ctx.Done():
		// The goroutine still takes the lock; hand it straight back.
		go func() {
			<-locked
			e.mu.Unlock()
		}()
		return ctx.Err()
	}
	defer e.mu.Unlock()

	err := fn(&e.sess)
	if verr := e.sess.Validate(); verr != nil {
		e.sess.Reset()
		if err == nil {
			return verr
		}
		return errors.Join(err, verr)
	}
	return err
}

// Get returns a copy of the user's session.
func (s *Store) Get(user string) Session {
	e := s.acquire(user)
	defer s.release(user, e)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

// Len returns the number of tracked users. Idle users are not tracked.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) acquire(user string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[user]
	if !ok {
		e = &entry{sess: Session{Mode: ModeIdle}}
		s.entries[user] = e
	}
	e.refs++
	return e
}

// release drops the entry once nobody holds it and it is idle, so the map
// only tracks users mid-flow.
func (s *Store) release(user string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refs--
	if e.refs > 0 {
		return
	}
	if e.mu.TryLock() {
		idle := e.sess.Idle() && !e.sess.HasPending() && e.sess.Awaiting == AwaitingNone
		e.mu.Unlock()
		if idle {
			delete(s.entries, user)
		}
	}
}
