// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package store

import (
	"context"

	"hewn.build/pkg/expr"
	"zombiezen.com/go/nix"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// RegisterSuccessor records that normalising the expression under id
// produced the expression under succ.
// A later registration for the same id replaces the earlier one.
func (s *Store) RegisterSuccessor(ctx context.Context, id, succ nix.Hash) error {
	conn, done, err := s.conn(ctx)
	if err != nil {
		return storeError("register successor", idKey(id), err)
	}
	defer done()
	err = sqlitex.ExecuteFS(conn, sqlFiles(), "upsert_successor.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":id":        idKey(id),
			":successor": idKey(succ),
		},
	})
	return storeError("register successor", idKey(id), err)
}

// QuerySuccessor returns the recorded successor of id, if any.
func (s *Store) QuerySuccessor(ctx context.Context, id nix.Hash) (succ nix.Hash, ok bool, err error) {
	conn, done, err := s.conn(ctx)
	if err != nil {
		return nix.Hash{}, false, storeError("query successor", idKey(id), err)
	}
	defer done()
	var succStr string
	err = sqlitex.ExecuteFS(conn, sqlFiles(), "successor.sql", &sqlitex.ExecOptions{
		Named: map[string]any{":id": idKey(id)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			succStr = stmt.GetText("successor")
			ok = true
			return nil
		},
	})
	if err != nil {
		return nix.Hash{}, false, storeError("query successor", idKey(id), err)
	}
	if !ok {
		return nix.Hash{}, false, nil
	}
	succ, err = expr.ParseID(succStr)
	if err != nil {
		return nix.Hash{}, false, storeError("query successor", idKey(id), err)
	}
	return succ, true, nil
}
