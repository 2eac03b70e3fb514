// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

// Package store manages the hewn store directory and its database.
//
// The store directory holds expression term files and a blob area of
// NAR-packed subtrees. The database tracks which paths are installed
// with which content ids and memoizes normalisation through the
// successor index.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"zombiezen.com/go/log"
	"zombiezen.com/go/nix"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitemigration"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Store provides access to a store directory and its database.
type Store struct {
	dir string
	db  *sqlitemigration.Pool
}

// Open opens the store rooted at dir with its database at dbPath.
// The directory and the database are created as needed.
// Callers are responsible for calling [Store.Close] on the returned store.
func Open(dir string, dbPath string) *Store {
	return &Store{
		dir: dir,
		db: sqlitemigration.NewPool(dbPath, loadSchema(), sqlitemigration.Options{
			Flags:       sqlite.OpenCreate | sqlite.OpenReadWrite,
			PrepareConn: prepareConn,
			OnStartMigrate: func() {
				log.Debugf(context.Background(), "Migrating store database...")
			},
			OnReady: func() {
				log.Debugf(context.Background(), "Store database ready")
			},
			OnError: func(err error) {
				log.Errorf(context.Background(), "Store database migration: %v", err)
			},
		}),
	}
}

// Dir returns the store directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Close releases the store's database connections.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) conn(ctx context.Context) (*sqlite.Conn, func(), error) {
	conn, err := s.db.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	return conn, func() { s.db.Put(conn) }, nil
}

func prepareConn(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode = wal;", nil); err != nil {
		return err
	}
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA foreign_keys = on;", nil); err != nil {
		return err
	}
	return nil
}

//go:embed sql/*.sql
//go:embed sql/schema/*.sql
var rawSQLFiles embed.FS

func sqlFiles() fs.FS {
	sub, err := fs.Sub(rawSQLFiles, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

var schemaState struct {
	init   sync.Once
	schema sqlitemigration.Schema
	err    error
}

func loadSchema() sqlitemigration.Schema {
	schemaState.init.Do(func() {
		for i := 1; ; i++ {
			migration, err := fs.ReadFile(sqlFiles(), fmt.Sprintf("schema/%02d.sql", i))
			if errors.Is(err, fs.ErrNotExist) {
				break
			}
			if err != nil {
				schemaState.err = err
				return
			}
			schemaState.schema.Migrations = append(schemaState.schema.Migrations, string(migration))
		}
	})

	if schemaState.err != nil {
		panic(schemaState.err)
	}
	return schemaState.schema
}

// An Error reports a failed store operation.
type Error struct {
	// Op names the failing operation, like "write term" or "expand".
	Op string
	// Path is the store path or id string involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func storeError(op string, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}

// idKey is the canonical database key for an id.
func idKey(id nix.Hash) string {
	return id.String()
}
