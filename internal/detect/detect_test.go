// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package detect

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"hewn.build/pkg/sets"
)

func sortedElems(s *sets.Sorted[string]) []string {
	return slices.Collect(s.All())
}

var refFinderGoldens = []struct {
	s      string
	search []string
	want   []string
}{
	{"", nil, nil},
	{"", []string{""}, []string{""}},
	{"foo", []string{""}, []string{""}},
	{"foo", []string{"f"}, []string{"f"}},
	{"foo", []string{"o"}, []string{"o"}},

	{"foo", []string{"foo"}, []string{"foo"}},
	{"xfoo", []string{"foo"}, []string{"foo"}},
	{"fooy", []string{"foo"}, []string{"foo"}},
	{"xfooy", []string{"foo"}, []string{"foo"}},
	{"bar", []string{"foo"}, nil},

	{"foo", []string{"f", "foo"}, []string{"f", "foo"}},
	{"foo", []string{"o", "foo"}, []string{"foo", "o"}},

	{"foo", []string{"foo", "bar"}, []string{"foo"}},
	{"bar", []string{"foo", "bar"}, []string{"bar"}},
	{"foobar", []string{"foo", "bar"}, []string{"bar", "foo"}},
	{"fofoo", []string{"foo"}, []string{"foo"}},
	{"aaa", []string{"aa"}, []string{"aa"}},
}

func TestRefFinder(t *testing.T) {
	for _, test := range refFinderGoldens {
		rf := NewRefFinder(slices.Values(test.search))
		if n, err := rf.Write([]byte(test.s)); n != len(test.s) || err != nil {
			t.Errorf("Write(%q) = %d, %v; want %d, <nil>", test.s, n, err, len(test.s))
		}
		got := sortedElems(rf.Found())
		if diff := cmp.Diff(test.want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("search %q in %q (-want +got):\n%s", test.search, test.s, diff)
		}
	}
}

func TestRefFinderSplitWrites(t *testing.T) {
	// Occurrences must be found across write boundaries.
	rf := NewRefFinder(slices.Values([]string{"needle"}))
	for _, chunk := range []string{"hay nee", "d", "le hay"} {
		if _, err := rf.WriteString(chunk); err != nil {
			t.Fatal(err)
		}
	}
	if got := sortedElems(rf.Found()); !slices.Equal(got, []string{"needle"}) {
		t.Errorf("Found() = %q; want [needle]", got)
	}
}

func TestScanPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "data"), []byte("refers to /hewn/store/dep1 here"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/hewn/store/dep2", filepath.Join(dir, "sub", "link")); err != nil {
		t.Fatal(err)
	}

	search := []string{"/hewn/store/dep1", "/hewn/store/dep2", "/hewn/store/dep3", "sub"}
	got, err := ScanPath(dir, slices.Values(search))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/hewn/store/dep1", "/hewn/store/dep2", "sub"}
	if diff := cmp.Diff(want, sortedElems(got)); diff != "" {
		t.Errorf("ScanPath (-want +got):\n%s", diff)
	}
}
