// Package history stores per-user chat history as key/field/value records.
//
// Keys follow the "chat/<user>" and "state/<user>" layout; see [ChatKey] and
// [StateKey]. Implementations must be safe for concurrent use.
package history

import (
	"context"
	"errors"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("history: store closed")

// Store is the chat-history collaborator.
type Store interface {
	// Get returns all fields stored under key. A missing key yields an empty,
	// non-nil map and no error.
	Get(ctx context.Context, key string) (map[string]string, error)

	// Put sets one field under key, overwriting any previous value.
	Put(ctx context.Context, key, field, value string) error

	// Delete removes key and all its fields. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error
}

// ChatKey is where promo fields and other conversation data live.
func ChatKey(user string) string { return "chat/" + user }

// StateKey is where the persisted conversation step lives.
func StateKey(user string) string { return "state/" + user }

// PutAll writes every field of values under key, stopping at the first error.
func PutAll(ctx context.Context, s Store, key string, values map[string]string) error {
	for field, value := range values {
		if err := s.Put(ctx, key, field, value); err != nil {
			return err
		}
	}
	return nil
}
