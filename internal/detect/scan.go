// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package detect

import (
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"hewn.build/pkg/sets"
)

// ScanPath walks the subtree at path
// and reports which of the search strings occur in it.
// Regular file contents, symlink targets, and directory entry names
// are all searched.
func ScanPath(path string, search iter.Seq[string]) (*sets.Sorted[string], error) {
	rf := NewRefFinder(search)
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != path {
			rf.WriteString(d.Name())
		}
		switch d.Type() {
		case 0:
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			_, err = io.Copy(rf, f)
			f.Close()
			if err != nil {
				return err
			}
		case fs.ModeSymlink:
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			rf.WriteString(target)
		case fs.ModeDir:
		default:
			return fmt.Errorf("scan %s: unsupported file type %v", p, d.Type())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rf.Found(), nil
}
