package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

type (
	txclock struct {
		ts   time.Time
		trid int64
	}

	// Store keeps the node profile: identity, contacts and settings.
	Store struct {
		db   *sql.DB
		trid int64
	}

	ops struct {
		err        error
		tx         *sql.Tx
		clock      txclock
		autocommit bool
		closed     bool
	}

	Ops interface {
		Err() error
		ExecContext(context.Context, string, ...any) (sql.Result, error)
		QueryContext(context.Context, string, ...any) (*sql.Rows, error)
		QueryRowContext(context.Context, string, ...any) *sql.Row
		KV() KVOps
		Identity() IdentityOps
		Contacts() ContactOps
		Commit() error
		Rollback() error
		Close() error
		Fail(error)
	}
)

func OpenMemory() (*Store, error) {
	s := &Store{}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("store: unable to create database: %w", err)
	}
	// every connection to :memory: is a different database
	db.SetMaxOpenConns(1)
	s.db = db
	return s, s.openDB()
}

// Open the profile database under dir, creating it if needed
func Open(dir string) (*Store, error) {
	s := &Store{}
	var err error
	dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	mainfile := filepath.Join(dir, "db", "main.sqlite")
	err = os.MkdirAll(filepath.Dir(mainfile), 0700)
	if err != nil {
		return nil, fmt.Errorf("store: unable to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", mainfile)
	if err != nil {
		return nil, fmt.Errorf("store: unable to create database file: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db
	return s, s.openDB()
}

func (s *Store) Ops(autocommit bool) Ops {
	tx, err := s.db.Begin()
	if err != nil {
		return &ops{err: err, closed: true}
	}
	return &ops{
		tx:         tx,
		autocommit: autocommit,
		clock: txclock{
			ts:   time.Now(),
			trid: atomic.AddInt64(&s.trid, 1),
		},
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) openDB() error {
	err := initDB(s.db)
	if err != nil {
		return fmt.Errorf("store: unable to initialize database: %w", err)
	}
	return nil
}
