package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Queries runs against either, so the same data-access code serves both
// autocommit calls and serialized transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries is the data-access surface of the store. Obtain one from
// Store.Q for autocommit reads, or inside Store.WithTx for transactional
// multi-step operations.
type Queries struct {
	db dbtx
}

// Store owns the SQLite database.
type Store struct {
	db *sql.DB
	q  *Queries
}

// Open creates or opens a SQLite database at the given path. Applies
// required pragmas and the schema automatically; safe to call on an
// existing database. Use ":memory:" for tests.
//
// Configuration:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - foreign key enforcement
//   - single-writer connection pool (SQLite has one writer anyway)
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}

	// One connection: avoids SQLITE_BUSY and, for :memory:, keeps every
	// caller on the same database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, q: &Queries{db: db}}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Q returns the autocommit query surface.
func (s *Store) Q() *Queries {
	return s.q
}

// WithTx runs fn inside a single serializable transaction. Every
// multi-step engine operation (qualification, session start, session
// commit, cascade) must go through here: the all-or-nothing guarantee is
// what makes the consumed-set check and the ledger append race-free.
//
// The transaction is rolled back if fn returns an error or panics.
func (s *Store) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NextSeq advances and returns the persisted logical clock. All event
// ordering (votes, transactions) uses this counter, never wall time.
func (q *Queries) NextSeq(ctx context.Context) (int64, error) {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO seq_clock (id, seq) VALUES (1, 1)
		ON CONFLICT(id) DO UPDATE SET seq = seq + 1
	`)
	if err != nil {
		return 0, fmt.Errorf("advance seq: %w", err)
	}
	var seq int64
	if err := q.db.QueryRowContext(ctx, `SELECT seq FROM seq_clock WHERE id = 1`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read seq: %w", err)
	}
	return seq, nil
}

// CurrentSeq returns the logical clock without advancing it. Zero when
// the clock has never ticked.
func (q *Queries) CurrentSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := q.db.QueryRowContext(ctx, `SELECT seq FROM seq_clock WHERE id = 1`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read seq: %w", err)
	}
	return seq, nil
}
