// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"hewn.build/pkg/expr"
	"hewn.build/pkg/internal/osutil"
	"zombiezen.com/go/nix"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// termExt is the filename extension for stored expression terms.
const termExt = ".hewn"

// TermFromID resolves id to a stored expression.
// It returns the parsed expression and the path of its term file.
func (s *Store) TermFromID(ctx context.Context, id nix.Hash) (expr.Expression, string, error) {
	path, err := s.PathForID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", storeError("read term", idKey(id), err)
	}
	e, err := expr.Parse(data)
	if err != nil {
		return nil, "", storeError("read term", path, err)
	}
	return e, path, nil
}

// WriteTerm stores the canonical serialization of e
// under a file name derived from its id and the given suffix,
// and registers the path under the id.
// Writing the same expression twice is not an error.
func (s *Store) WriteTerm(ctx context.Context, e expr.Expression, suffix string) (nix.Hash, string, error) {
	data := e.AppendTo(nil)
	id := expr.Hash(e)
	path := filepath.Join(s.dir, id.RawBase32()+suffix+termExt)

	if err := osutil.MkdirPerm(s.dir, 0o755); err != nil {
		return nix.Hash{}, "", storeError("write term", path, err)
	}
	if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
		if err := osutil.WriteFilePerm(path, data, 0o444); err != nil {
			return nix.Hash{}, "", storeError("write term", path, err)
		}
	} else if err != nil {
		return nix.Hash{}, "", storeError("write term", path, err)
	}
	if err := s.RegisterPath(ctx, path, id); err != nil {
		return nix.Hash{}, "", err
	}
	return id, path, nil
}

// RegisterPath records that the subtree at path has the given content id.
// Re-registering a path overwrites its previous content id.
func (s *Store) RegisterPath(ctx context.Context, path string, contentID nix.Hash) error {
	conn, done, err := s.conn(ctx)
	if err != nil {
		return storeError("register path", path, err)
	}
	defer done()
	err = sqlitex.ExecuteFS(conn, sqlFiles(), "upsert_path.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":path":       path,
			":content_id": idKey(contentID),
		},
	})
	return storeError("register path", path, err)
}

// PathContentID returns the content id registered for path.
// ok is false if the path is not registered.
func (s *Store) PathContentID(ctx context.Context, path string) (id nix.Hash, ok bool, err error) {
	conn, done, err := s.conn(ctx)
	if err != nil {
		return nix.Hash{}, false, storeError("query path", path, err)
	}
	defer done()
	var idStr string
	err = sqlitex.ExecuteFS(conn, sqlFiles(), "path_content_id.sql", &sqlitex.ExecOptions{
		Named: map[string]any{":path": path},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			idStr = stmt.GetText("content_id")
			ok = true
			return nil
		},
	})
	if err != nil {
		return nix.Hash{}, false, storeError("query path", path, err)
	}
	if !ok {
		return nix.Hash{}, false, nil
	}
	id, err = expr.ParseID(idStr)
	if err != nil {
		return nix.Hash{}, false, storeError("query path", path, err)
	}
	return id, true, nil
}

// PathForID returns a path registered with the given content id.
func (s *Store) PathForID(ctx context.Context, id nix.Hash) (string, error) {
	conn, done, err := s.conn(ctx)
	if err != nil {
		return "", storeError("resolve id", idKey(id), err)
	}
	defer done()
	var path string
	found := false
	err = sqlitex.ExecuteFS(conn, sqlFiles(), "content_id_path.sql", &sqlitex.ExecOptions{
		Named: map[string]any{":content_id": idKey(id)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			path = stmt.GetText("path")
			found = true
			return nil
		},
	})
	if err != nil {
		return "", storeError("resolve id", idKey(id), err)
	}
	if !found {
		return "", storeError("resolve id", idKey(id), errNotRegistered)
	}
	return path, nil
}

var errNotRegistered = errors.New("id not registered")

// PathExists reports whether path exists on the filesystem.
func (s *Store) PathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Delete removes path from the filesystem and drops its registration.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return storeError("delete", path, err)
	}
	conn, done, err := s.conn(ctx)
	if err != nil {
		return storeError("delete", path, err)
	}
	defer done()
	err = sqlitex.ExecuteFS(conn, sqlFiles(), "delete_path.sql", &sqlitex.ExecOptions{
		Named: map[string]any{":path": path},
	})
	return storeError("delete", path, err)
}
