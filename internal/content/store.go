// Package content provides the immutable, content-addressed blob store
// for hrönir text, backed by BadgerDB.
//
// A hrönir's identity is the domain-separated SHA-256 of its text, so
// storage is naturally idempotent: writing the same text twice is a
// no-op, and nothing is ever mutated or deleted.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/hronir/internal/canon"
)

// Config holds configuration for the blob store.
type Config struct {
	// Dir is the directory for BadgerDB files. Ignored when InMemory.
	Dir string

	// InMemory enables in-memory mode (no disk persistence). For tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns the production configuration for a directory.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests: no disk I/O, no
// fsync.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store is the content-addressed hrönir blob store.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, fmt.Errorf("content store: directory required")
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("content store: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreText writes a hrönir and returns its content-addressed id.
// Writing text that already exists returns the same id without touching
// the existing record; blobs are immutable by construction.
func (s *Store) StoreText(ctx context.Context, text []byte) (canon.HronirID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(text) == 0 {
		return "", fmt.Errorf("content store: empty text")
	}
	id := canon.ContentID(text)
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(id))
		if err == nil {
			return nil // already stored, identical by construction
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set([]byte(id), text)
	})
	if err != nil {
		return "", fmt.Errorf("content store: store text: %w", err)
	}
	return id, nil
}

// GetText returns the text of a hrönir, or nil when unknown.
func (s *Store) GetText(ctx context.Context, id canon.HronirID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("content store: get text: %w", err)
	}
	return out, nil
}

// Exists reports whether a hrönir is stored.
func (s *Store) Exists(ctx context.Context, id canon.HronirID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("content store: exists: %w", err)
	}
	return found, nil
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
