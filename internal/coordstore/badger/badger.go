// Package badger backs coordstore.Store with an embedded BadgerDB. The
// conditional set and the log append each run inside a single serializable
// transaction, which is what gives concurrent orchestrators their
// at-most-one-winner and gap-free ordering guarantees.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
	"github.com/rs/zerolog"

	"github.com/avolkhov/mxchat-server/internal/coordstore"
)

// tailPollInterval bounds how stale a tail can get if a watch notification
// is lost between the initial scan and the subscription becoming active.
const tailPollInterval = 250 * time.Millisecond

// Store implements coordstore.Store on a BadgerDB instance.
type Store struct {
	db  *badgerdb.DB
	log *zerolog.Logger
}

// Open opens (or creates) a store at dir.
func Open(dir string, logger *zerolog.Logger) (*Store, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &Store{db: db, log: logger}, nil
}

// OpenInMemory opens a store that lives entirely in memory. Used by tests.
func OpenInMemory(logger *zerolog.Logger) (*Store, error) {
	opts := badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	return &Store{db: db, log: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Internal key layout. KV keys, log entries and log sequence counters share
// one keyspace under distinct prefixes.
func kvKey(key string) []byte {
	return []byte("kv:" + key)
}

func seqKey(logKey string) []byte {
	return []byte("seq:" + logKey)
}

func entryPrefix(logKey string) []byte {
	return []byte("log:" + logKey + ":")
}

func entryKey(logKey string, id coordstore.EntryID) []byte {
	return fmt.Appendf(nil, "log:%s:%020d", logKey, uint64(id))
}

// update runs fn in a read-write transaction, retrying on commit conflicts.
// Conflicts are how badger serializes concurrent appends to the same log.
func (s *Store) update(fn func(txn *badgerdb.Txn) error) error {
	for {
		err := s.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
		s.log.Debug().Msg("badger txn conflict, retrying")
	}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(coordstore.ErrUnavailable, err))
}

// SetNX sets key only if absent, atomically.
func (s *Store) SetNX(ctx context.Context, key, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var set bool
	err := s.update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(kvKey(key))
		switch {
		case err == nil:
			set = false
			return nil
		case errors.Is(err, badgerdb.ErrKeyNotFound):
			set = true
			return txn.Set(kvKey(key), []byte(value))
		default:
			return err
		}
	})
	if err != nil {
		return false, storeErr("setnx "+key, err)
	}
	return set, nil
}

// Get returns the value for key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	var value string
	var found bool
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(kvKey(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error {
			value = string(v)
			return nil
		})
	})
	if err != nil {
		return "", false, storeErr("get "+key, err)
	}
	return value, found, nil
}

// Put unconditionally sets key.
func (s *Store) Put(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.update(func(txn *badgerdb.Txn) error {
		return txn.Set(kvKey(key), []byte(value))
	})
	if err != nil {
		return storeErr("put "+key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.update(func(txn *badgerdb.Txn) error {
		return txn.Delete(kvKey(key))
	})
	if err != nil {
		return storeErr("delete "+key, err)
	}
	return nil
}

// Append writes one entry and advances the log's sequence counter in the
// same transaction, so assigned ids are contiguous per log.
func (s *Store) Append(ctx context.Context, logKey string, fields map[string]string) (coordstore.EntryID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return 0, fmt.Errorf("marshal entry fields: %w", err)
	}

	var id coordstore.EntryID
	err = s.update(func(txn *badgerdb.Txn) error {
		var last uint64
		item, err := txn.Get(seqKey(logKey))
		switch {
		case err == nil:
			if err := item.Value(func(v []byte) error {
				last, err = strconv.ParseUint(string(v), 10, 64)
				return err
			}); err != nil {
				return err
			}
		case errors.Is(err, badgerdb.ErrKeyNotFound):
			last = 0
		default:
			return err
		}

		id = coordstore.EntryID(last + 1)
		if err := txn.Set(seqKey(logKey), []byte(strconv.FormatUint(uint64(id), 10))); err != nil {
			return err
		}
		return txn.Set(entryKey(logKey, id), data)
	})
	if err != nil {
		return 0, storeErr("append "+logKey, err)
	}
	return id, nil
}

// ReadRange returns entries of logKey with id >= from, in append order.
func (s *Store) ReadRange(ctx context.Context, logKey string, from coordstore.EntryID) ([]coordstore.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if from == 0 {
		from = 1
	}

	var out []coordstore.Entry
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		prefix := entryPrefix(logKey)
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(entryKey(logKey, from)); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.Key()
			id, err := strconv.ParseUint(string(key[len(prefix):]), 10, 64)
			if err != nil {
				return fmt.Errorf("malformed entry key %q: %w", key, err)
			}
			var fields map[string]string
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &fields)
			}); err != nil {
				return err
			}
			out = append(out, coordstore.Entry{ID: coordstore.EntryID(id), Fields: fields})
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("read range "+logKey, err)
	}
	return out, nil
}

// Tail blocks until any listed log grows past its cursor, the timeout
// elapses, or ctx is cancelled. It watches the logs' key prefixes via the
// database's change subscription and re-scans on every notification.
func (s *Store) Tail(ctx context.Context, cursors map[string]coordstore.EntryID, timeout time.Duration) ([]coordstore.TailEntry, error) {
	out, err := s.collect(ctx, cursors)
	if err != nil || len(out) > 0 {
		return out, err
	}
	if timeout <= 0 {
		return nil, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	matches := make([]pb.Match, 0, len(cursors))
	for logKey := range cursors {
		matches = append(matches, pb.Match{Prefix: entryPrefix(logKey)})
	}

	notify := make(chan struct{}, 1)
	subDone := make(chan error, 1)
	go func() {
		subDone <- s.db.Subscribe(waitCtx, func(_ *badgerdb.KVList) error {
			select {
			case notify <- struct{}{}:
			default:
			}
			return nil
		}, matches)
	}()

	// Appends racing the subscription start are caught by the poll ticker.
	poll := time.NewTicker(tailPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-notify:
		case <-poll.C:
		case err := <-subDone:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return nil, storeErr("tail subscribe", err)
			}
			// Timeout: one final scan, then report empty.
			return s.collect(ctx, cursors)
		}

		out, err := s.collect(ctx, cursors)
		if err != nil || len(out) > 0 {
			return out, err
		}
	}
}

func (s *Store) collect(ctx context.Context, cursors map[string]coordstore.EntryID) ([]coordstore.TailEntry, error) {
	var out []coordstore.TailEntry
	for logKey, after := range cursors {
		entries, err := s.ReadRange(ctx, logKey, after+1)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			out = append(out, coordstore.TailEntry{LogKey: logKey, Entry: e})
		}
	}
	return out, nil
}
