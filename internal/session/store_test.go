package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/clubnote/internal/session"
	"github.com/MrWong99/clubnote/pkg/types"
)

func TestStore_UpdatePersists(t *testing.T) {
	t.Parallel()

	s := session.NewStore()
	ctx := context.Background()

	err := s.Update(ctx, "u1", func(sess *session.Session) error {
		sess.Start(session.ModeCollectingNote)
		sess.Audio = &session.Audio{Data: []byte{1}}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got := s.Get("u1")
	if got.Mode != session.ModeCollectingNote || got.Audio == nil {
		t.Errorf("Get = %+v", got)
	}
	if other := s.Get("u2"); !other.Idle() {
		t.Errorf("unrelated user = %+v, want idle", other)
	}
}

func TestStore_InvariantViolationResets(t *testing.T) {
	t.Parallel()

	s := session.NewStore()
	err := s.Update(context.Background(), "u", func(sess *session.Session) error {
		sess.Mode = session.ModeIdle
		sess.Image = &types.Image{Data: []byte{1}}
		return nil
	})
	if !errors.Is(err, session.ErrInvariant) {
		t.Fatalf("err = %v, want ErrInvariant", err)
	}
	if got := s.Get("u"); got.HasPending() || !got.Idle() {
		t.Errorf("session = %+v, want reset to idle", got)
	}
}

func TestStore_FnErrorKeepsMutation(t *testing.T) {
	t.Parallel()

	s := session.NewStore()
	boom := errors.New("boom")
	err := s.Update(context.Background(), "u", func(sess *session.Session) error {
		sess.Start(session.ModeCollectingForm)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if got := s.Get("u"); got.Mode != session.ModeCollectingForm {
		t.Errorf("mode = %q", got.Mode)
	}
}

func TestStore_SerialisesPerUser(t *testing.T) {
	t.Parallel()

	s := session.NewStore()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, "same", func(sess *session.Session) error {
				mu.Lock()
				inside++
				maxSeen = max(maxSeen, inside)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Errorf("max concurrent updates for one user = %d, want 1", maxSeen)
	}
}

func TestStore_DifferentUsersRunInParallel(t *testing.T) {
	t.Parallel()

	s := session.NewStore()
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = s.Update(ctx, "slow", func(*session.Session) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan struct{})
	go func() {
		_ = s.Update(ctx, "fast", func(*session.Session) error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("update for another user blocked behind a slow one")
	}
	close(release)
}

func TestStore_UpdateHonoursContext(t *testing.T) {
	t.Parallel()

	s := session.NewStore()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.Update(context.Background(), "u", func(*session.Session) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := s.Update(ctx, "u", func(*session.Session) error { called = true; return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if called {
		t.Error("fn ran without the lock")
	}
	close(release)

	// The lock must be usable again afterwards.
	if err := s.Update(context.Background(), "u", func(*session.Session) error { return nil }); err != nil {
		t.Errorf("Update after cancel: %v", err)
	}
}

func TestStore_DropsIdleUsers(t *testing.T) {
	t.Parallel()

	s := session.NewStore()
	ctx := context.Background()
	_ = s.Update(ctx, "a", func(sess *session.Session) error { sess.Start(session.ModeCollectingNote); return nil })
	_ = s.Update(ctx, "b", func(*session.Session) error { return nil })
	if n := s.Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
	_ = s.Update(ctx, "a", func(sess *session.Session) error { sess.Reset(); return nil })
	if n := s.Len(); n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
}
