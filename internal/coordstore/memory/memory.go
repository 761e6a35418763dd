// Package memory provides an in-process coordstore.Store backing. It exists
// so the orchestration pipeline can be exercised without an on-disk store;
// it implements the same atomicity and ordering guarantees under a single
// mutex.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/avolkhov/mxchat-server/internal/coordstore"
)

// Store is a mutex-guarded, map-backed coordination store.
type Store struct {
	mu     sync.Mutex
	kv     map[string]string
	logs   map[string][]coordstore.Entry
	notify chan struct{} // closed and replaced on every append
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		kv:     make(map[string]string),
		logs:   make(map[string][]coordstore.Entry),
		notify: make(chan struct{}),
	}
}

// SetNX sets key only if absent.
func (s *Store) SetNX(_ context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kv[key]; ok {
		return false, nil
	}
	s.kv[key] = value
	return true, nil
}

// Get returns the value for key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.kv[key]
	return v, ok, nil
}

// Put unconditionally sets key.
func (s *Store) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}

// Append adds one entry to logKey and wakes any tailing readers.
func (s *Store) Append(_ context.Context, logKey string, fields map[string]string) (coordstore.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	entries := s.logs[logKey]
	entry := coordstore.Entry{ID: coordstore.EntryID(len(entries) + 1), Fields: copied}
	s.logs[logKey] = append(entries, entry)

	close(s.notify)
	s.notify = make(chan struct{})

	return entry.ID, nil
}

// ReadRange returns entries of logKey with id >= from.
func (s *Store) ReadRange(_ context.Context, logKey string, from coordstore.EntryID) ([]coordstore.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rangeLocked(logKey, from), nil
}

func (s *Store) rangeLocked(logKey string, from coordstore.EntryID) []coordstore.Entry {
	entries := s.logs[logKey]
	var out []coordstore.Entry
	for _, e := range entries {
		if e.ID >= from {
			out = append(out, e)
		}
	}
	return out
}

// Tail blocks until a log listed in cursors grows past its cursor, the
// timeout elapses, or ctx is cancelled.
func (s *Store) Tail(ctx context.Context, cursors map[string]coordstore.EntryID, timeout time.Duration) ([]coordstore.TailEntry, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		var out []coordstore.TailEntry
		for logKey, after := range cursors {
			for _, e := range s.rangeLocked(logKey, after+1) {
				out = append(out, coordstore.TailEntry{LogKey: logKey, Entry: e})
			}
		}
		wake := s.notify
		s.mu.Unlock()

		if len(out) > 0 {
			return out, nil
		}

		select {
		case <-wake:
		case <-deadline.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close is a no-op for the in-memory backing.
func (s *Store) Close() error { return nil }
