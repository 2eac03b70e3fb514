// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"hewn.build/pkg/expr"
	"hewn.build/pkg/internal/testcontext"
	"zombiezen.com/go/nix"
)

func newTestStore(tb testing.TB) *Store {
	tb.Helper()
	dir := tb.TempDir()
	s := Open(filepath.Join(dir, "store"), filepath.Join(dir, "db.sqlite"))
	tb.Cleanup(func() {
		if err := s.Close(); err != nil {
			tb.Error("close store:", err)
		}
	})
	return s
}

func TestWriteTerm(t *testing.T) {
	ctx, cancel := testcontext.New(t)
	defer cancel()
	s := newTestStore(t)

	want := expr.Include{ID: testID("input")}
	id, path, err := s.WriteTerm(ctx, want, "")
	if err != nil {
		t.Fatal(err)
	}
	if wantID := expr.Hash(want); !id.Equal(wantID) {
		t.Errorf("WriteTerm id = %v; want %v", id, wantID)
	}
	if !strings.HasPrefix(filepath.Base(path), id.RawBase32()) {
		t.Errorf("term file %s does not start with %s", path, id.RawBase32())
	}
	if !strings.HasSuffix(path, ".hewn") {
		t.Errorf("term file %s does not end with .hewn", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if wantData := want.AppendTo(nil); string(data) != string(wantData) {
		t.Errorf("term file contents = %q; want %q", data, wantData)
	}

	// Writing the same term again must succeed and yield the same path.
	id2, path2, err := s.WriteTerm(ctx, want, "")
	if err != nil {
		t.Fatal(err)
	}
	if !id2.Equal(id) || path2 != path {
		t.Errorf("second WriteTerm = (%v, %s); want (%v, %s)", id2, path2, id, path)
	}

	got, gotPath, err := s.TermFromID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != path {
		t.Errorf("TermFromID path = %s; want %s", gotPath, path)
	}
	if diff := cmp.Diff(expr.Expression(want), got); diff != "" {
		t.Errorf("TermFromID (-want +got):\n%s", diff)
	}
}

func TestTermFromIDMissing(t *testing.T) {
	ctx, cancel := testcontext.New(t)
	defer cancel()
	s := newTestStore(t)

	_, _, err := s.TermFromID(ctx, testID("nowhere"))
	if err == nil {
		t.Fatal("TermFromID of unregistered id did not fail")
	}
	var storeErr *Error
	if !errors.As(err, &storeErr) {
		t.Errorf("TermFromID error = %T; want *store.Error", err)
	}
}

func TestRegisterPath(t *testing.T) {
	ctx, cancel := testcontext.New(t)
	defer cancel()
	s := newTestStore(t)

	const path = "/hewn/store/widget"
	id := testID("widget")
	if _, ok, err := s.PathContentID(ctx, path); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Error("PathContentID reported an unregistered path")
	}
	if err := s.RegisterPath(ctx, path, id); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.PathContentID(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !got.Equal(id) {
		t.Errorf("PathContentID = (%v, %t); want (%v, true)", got, ok, id)
	}

	// Re-registration with a new id wins.
	id2 := testID("widget-v2")
	if err := s.RegisterPath(ctx, path, id2); err != nil {
		t.Fatal(err)
	}
	got, ok, err = s.PathContentID(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !got.Equal(id2) {
		t.Errorf("PathContentID after update = (%v, %t); want (%v, true)", got, ok, id2)
	}
}

func TestDelete(t *testing.T) {
	ctx, cancel := testcontext.New(t)
	defer cancel()
	s := newTestStore(t)

	path := filepath.Join(t.TempDir(), "victim")
	if err := os.WriteFile(path, []byte("bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterPath(ctx, path, testID("victim")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, path); err != nil {
		t.Fatal(err)
	}
	if s.PathExists(path) {
		t.Errorf("%s still exists after Delete", path)
	}
	if _, ok, err := s.PathContentID(ctx, path); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Error("path still registered after Delete")
	}
}

func TestImportExpand(t *testing.T) {
	ctx, cancel := testcontext.New(t)
	defer cancel()
	s := newTestStore(t)

	src := filepath.Join(t.TempDir(), "tree")
	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "greeting.txt"), []byte("Hello, World!\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("greeting.txt", filepath.Join(src, "link")); err != nil {
		t.Fatal(err)
	}

	id, err := s.ImportPath(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	wantID, err := HashPath(src)
	if err != nil {
		t.Fatal(err)
	}
	if !id.Equal(wantID) {
		t.Errorf("ImportPath id = %v; want %v", id, wantID)
	}
	if got, ok, err := s.PathContentID(ctx, src); err != nil || !ok || !got.Equal(id) {
		t.Errorf("PathContentID(src) = (%v, %t, %v); want (%v, true, nil)", got, ok, err, id)
	}

	// Importing the same tree again yields the same id.
	id2, err := s.ImportPath(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	if !id2.Equal(id) {
		t.Errorf("second ImportPath id = %v; want %v", id2, id)
	}

	target := filepath.Join(t.TempDir(), "expanded")
	if err := s.ExpandID(ctx, id, target); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(target, "greeting.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "Hello, World!\n" {
		t.Errorf("expanded greeting.txt = %q; want %q", got, "Hello, World!\n")
	}
	if dst, err := os.Readlink(filepath.Join(target, "link")); err != nil || dst != "greeting.txt" {
		t.Errorf("expanded link = (%q, %v); want (%q, nil)", dst, err, "greeting.txt")
	}
	expandedID, err := HashPath(target)
	if err != nil {
		t.Fatal(err)
	}
	if !expandedID.Equal(id) {
		t.Errorf("expanded tree hashes to %v; want %v", expandedID, id)
	}

	// Expanding over an existing target is a no-op.
	if err := s.ExpandID(ctx, id, target); err != nil {
		t.Fatal(err)
	}

	if err := s.ExpandID(ctx, testID("absent"), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("ExpandID of an absent blob did not fail")
	}
}

func TestSuccessors(t *testing.T) {
	ctx, cancel := testcontext.New(t)
	defer cancel()
	s := newTestStore(t)

	id := testID("drv")
	succ := testID("slice")
	if _, ok, err := s.QuerySuccessor(ctx, id); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Error("QuerySuccessor reported an unregistered successor")
	}
	if err := s.RegisterSuccessor(ctx, id, succ); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.QuerySuccessor(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !got.Equal(succ) {
		t.Errorf("QuerySuccessor = (%v, %t); want (%v, true)", got, ok, succ)
	}

	succ2 := testID("slice-v2")
	if err := s.RegisterSuccessor(ctx, id, succ2); err != nil {
		t.Fatal(err)
	}
	got, ok, err = s.QuerySuccessor(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !got.Equal(succ2) {
		t.Errorf("QuerySuccessor after update = (%v, %t); want (%v, true)", got, ok, succ2)
	}
}

func TestRuns(t *testing.T) {
	ctx, cancel := testcontext.New(t)
	defer cancel()
	s := newTestStore(t)

	exprID := testID("top")
	runID, err := s.StartRun(ctx, exprID)
	if err != nil {
		t.Fatal(err)
	}
	runs, err := s.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != runID || runs[0].Status != RunRunning {
		t.Errorf("RecentRuns = %v; want single running entry %v", runs, runID)
	}

	if err := s.FinishRun(ctx, runID, RunSucceeded); err != nil {
		t.Fatal(err)
	}
	runs, err = s.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != RunSucceeded {
		t.Errorf("RecentRuns after finish = %v; want single succeeded entry", runs)
	}
	if !runs[0].ExprID.Equal(exprID) {
		t.Errorf("run expression id = %v; want %v", runs[0].ExprID, exprID)
	}
	if runs[0].EndedAt.IsZero() {
		t.Error("finished run has zero end time")
	}
}

func testID(label string) nix.Hash {
	h := nix.NewHasher(nix.SHA256)
	h.WriteString(label)
	return h.SumHash()
}
