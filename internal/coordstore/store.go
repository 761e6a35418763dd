// Package coordstore defines the contract over the shared coordination
// store: a key-value space with atomic conditional writes plus ordered,
// append-only logs with blocking tail reads. It is the only state shared
// between request handlers, in this process or any other.
package coordstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the backing store cannot be reached. Operations
// wrap it so callers can test with errors.Is.
var ErrUnavailable = errors.New("coordination store unavailable")

// EntryID identifies an entry within a single log. The store assigns ids in
// append order; they increase monotonically and are unique per log. The
// first entry of a log has id 1.
type EntryID uint64

// Entry is one record of an append-only log.
type Entry struct {
	ID     EntryID
	Fields map[string]string
}

// TailEntry pairs a log entry with the log it arrived on.
type TailEntry struct {
	LogKey string
	Entry  Entry
}

// Store is the coordination boundary. All operations honor ctx cancellation.
type Store interface {
	// SetNX sets key to value only if the key is absent and reports whether
	// the write happened. The check and the write are a single atomic
	// operation at the store.
	SetNX(ctx context.Context, key, value string) (bool, error)

	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put unconditionally sets key to value.
	Put(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Append adds one entry to the log identified by logKey and returns the
	// id the store assigned to it. Appends to the same log are serialized by
	// the store; the assigned order is authoritative.
	Append(ctx context.Context, logKey string, fields map[string]string) (EntryID, error)

	// ReadRange returns every entry of logKey with id >= from, in append
	// order. A log that does not exist yet reads as empty.
	ReadRange(ctx context.Context, logKey string, from EntryID) ([]Entry, error)

	// Tail blocks until at least one entry newer than its log's cursor
	// exists on any of the listed logs, then returns all such entries. The
	// cursor value is the id of the last entry already seen (0 for none).
	// On timeout it returns an empty result and a nil error. Cancelling ctx
	// unblocks the call.
	Tail(ctx context.Context, cursors map[string]EntryID, timeout time.Duration) ([]TailEntry, error)

	// Close releases the underlying store resources.
	Close() error
}
