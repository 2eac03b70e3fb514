// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"hewn.build/pkg/expr"
	"zombiezen.com/go/nix"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Run statuses recorded in the build journal.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// A Run is a journal entry for one top-level normalisation.
type Run struct {
	ID        uuid.UUID
	ExprID    nix.Hash
	StartedAt time.Time
	EndedAt   time.Time
	Status    string
}

// StartRun opens a journal entry for a normalisation of the given expression.
func (s *Store) StartRun(ctx context.Context, exprID nix.Hash) (uuid.UUID, error) {
	runID, err := uuid.NewRandom()
	if err != nil {
		return uuid.UUID{}, storeError("start run", idKey(exprID), err)
	}
	conn, done, err := s.conn(ctx)
	if err != nil {
		return uuid.UUID{}, storeError("start run", idKey(exprID), err)
	}
	defer done()
	err = sqlitex.ExecuteFS(conn, sqlFiles(), "insert_run.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":id":         runID.String(),
			":expr_id":    idKey(exprID),
			":started_at": time.Now().UnixMilli(),
		},
	})
	if err != nil {
		return uuid.UUID{}, storeError("start run", idKey(exprID), err)
	}
	return runID, nil
}

// FinishRun closes a journal entry with the given status.
func (s *Store) FinishRun(ctx context.Context, runID uuid.UUID, status string) error {
	conn, done, err := s.conn(ctx)
	if err != nil {
		return storeError("finish run", runID.String(), err)
	}
	defer done()
	err = sqlitex.ExecuteFS(conn, sqlFiles(), "finish_run.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":id":       runID.String(),
			":ended_at": time.Now().UnixMilli(),
			":status":   status,
		},
	})
	return storeError("finish run", runID.String(), err)
}

// RecentRuns lists journal entries, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	conn, done, err := s.conn(ctx)
	if err != nil {
		return nil, storeError("list runs", "", err)
	}
	defer done()
	var runs []Run
	err = sqlitex.ExecuteFS(conn, sqlFiles(), "recent_runs.sql", &sqlitex.ExecOptions{
		Named: map[string]any{":limit": limit},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			run := Run{
				StartedAt: time.UnixMilli(stmt.GetInt64("started_at")),
				Status:    stmt.GetText("status"),
			}
			var err error
			if run.ID, err = uuid.Parse(stmt.GetText("id")); err != nil {
				return err
			}
			if run.ExprID, err = expr.ParseID(stmt.GetText("expr_id")); err != nil {
				return err
			}
			if ended := stmt.GetInt64("ended_at"); ended != 0 {
				run.EndedAt = time.UnixMilli(ended)
			}
			runs = append(runs, run)
			return nil
		},
	})
	if err != nil {
		return nil, storeError("list runs", "", err)
	}
	return runs, nil
}
