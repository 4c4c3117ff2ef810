// Package historytest holds a behavioural suite every history.Store must
// pass.
package historytest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/MrWong99/clubnote/internal/history"
)

// Run exercises s. The store must start empty.
func Run(t *testing.T, s history.Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx, history.ChatKey("nobody"))
	if err != nil {
		t.Fatalf("Get(missing): %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("Get(missing) = %v, want empty non-nil map", got)
	}

	key := history.ChatKey("u1")
	if err := history.PutAll(ctx, s, key, map[string]string{"organizer": "ACM", "fee": "Free"}); err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	if err := s.Put(ctx, key, "fee", "0"); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	if err := s.Put(ctx, history.StateKey("u1"), "step", "awaiting_keyword"); err != nil {
		t.Fatalf("Put state: %v", err)
	}

	got, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 || got["organizer"] != "ACM" || got["fee"] != "0" {
		t.Errorf("Get = %v, want organizer=ACM fee=0", got)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := s.Get(ctx, key); len(got) != 0 {
		t.Errorf("after Delete Get = %v, want empty", got)
	}
	if got, _ := s.Get(ctx, history.StateKey("u1")); got["step"] != "awaiting_keyword" {
		t.Errorf("Delete removed an unrelated key: %v", got)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("Delete(missing): %v", err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Put(ctx, history.ChatKey("racer"), fmt.Sprintf("f%d", i), "v"); err != nil {
				t.Errorf("concurrent Put: %v", err)
			}
		}()
	}
	wg.Wait()
	if got, _ := s.Get(ctx, history.ChatKey("racer")); len(got) != 8 {
		t.Errorf("concurrent puts stored %d fields, want 8", len(got))
	}
}
