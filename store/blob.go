// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"hewn.build/pkg/internal/osutil"
	"zombiezen.com/go/log"
	"zombiezen.com/go/nix"
	"zombiezen.com/go/nix/nar"
)

// blobDirName is the subdirectory of the store directory
// that holds NAR-packed subtrees.
const blobDirName = ".blob"

func (s *Store) blobPath(id nix.Hash) string {
	return filepath.Join(s.dir, blobDirName, id.RawBase32()+".nar")
}

// HashPath returns the content id of the subtree at path:
// the SHA-256 hash of its NAR serialization.
func HashPath(path string) (nix.Hash, error) {
	h := nix.NewHasher(nix.SHA256)
	if err := nar.DumpPath(h, path); err != nil {
		return nix.Hash{}, storeError("hash path", path, err)
	}
	return h.SumHash(), nil
}

// ImportPath packs the subtree at path into the blob area
// and registers path under the resulting content id.
// Importing the same content twice is not an error.
func (s *Store) ImportPath(ctx context.Context, path string) (nix.Hash, error) {
	if err := osutil.MkdirPerm(s.dir, 0o755); err != nil {
		return nix.Hash{}, storeError("import", path, err)
	}
	if err := osutil.MkdirPerm(filepath.Join(s.dir, blobDirName), 0o755); err != nil {
		return nix.Hash{}, storeError("import", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Join(s.dir, blobDirName), "import-*.nar")
	if err != nil {
		return nix.Hash{}, storeError("import", path, err)
	}
	defer func() {
		if tmp != nil {
			name := tmp.Name()
			tmp.Close()
			if err := os.Remove(name); err != nil {
				log.Warnf(ctx, "Unable to remove blob temp file: %v", err)
			}
		}
	}()

	h := nix.NewHasher(nix.SHA256)
	if err := nar.DumpPath(io.MultiWriter(h, tmp), path); err != nil {
		return nix.Hash{}, storeError("import", path, err)
	}
	if err := tmp.Close(); err != nil {
		tmp = nil
		return nix.Hash{}, storeError("import", path, err)
	}
	id := h.SumHash()

	dst := s.blobPath(id)
	if _, err := os.Lstat(dst); errors.Is(err, os.ErrNotExist) {
		if err := os.Rename(tmp.Name(), dst); err != nil {
			return nix.Hash{}, storeError("import", path, err)
		}
		tmp = nil
	} else if err != nil {
		return nix.Hash{}, storeError("import", path, err)
	} else {
		// Blob already present. Drop the duplicate.
		name := tmp.Name()
		tmp = nil
		if err := os.Remove(name); err != nil {
			log.Warnf(ctx, "Unable to remove blob temp file: %v", err)
		}
	}

	if err := s.RegisterPath(ctx, path, id); err != nil {
		return nix.Hash{}, err
	}
	log.Debugf(ctx, "Imported %s as %v", path, id)
	return id, nil
}

// ExpandID unpacks the blob stored under id at target.
// If target already exists, ExpandID leaves it alone.
func (s *Store) ExpandID(ctx context.Context, id nix.Hash, target string) error {
	if _, err := os.Lstat(target); err == nil {
		log.Debugf(ctx, "Expand %v: %s already present", id, target)
		return s.RegisterPath(ctx, target, id)
	} else if !errors.Is(err, os.ErrNotExist) {
		return storeError("expand", target, err)
	}

	f, err := os.Open(s.blobPath(id))
	if err != nil {
		return storeError("expand", idKey(id), err)
	}
	defer f.Close()
	if err := extractNAR(target, f); err != nil {
		return storeError("expand", target, err)
	}
	log.Debugf(ctx, "Expanded %v at %s", id, target)
	return s.RegisterPath(ctx, target, id)
}

// extractNAR extracts a NAR file to the local filesystem at the given path.
func extractNAR(dst string, r io.Reader) error {
	nr := nar.NewReader(r)
	for {
		hdr, err := nr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		p := filepath.Join(dst, filepath.FromSlash(hdr.Path))
		switch typ := hdr.Mode.Type(); typ {
		case 0:
			perm := os.FileMode(0o644)
			if hdr.Mode&0o111 != 0 {
				perm = 0o755
			}
			f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
			if err != nil {
				return err
			}
			_, err = io.Copy(f, nr)
			err2 := f.Close()
			if err != nil {
				return err
			}
			if err2 != nil {
				return err2
			}
		case fs.ModeDir:
			if err := os.Mkdir(p, 0o755); err != nil {
				return err
			}
		case fs.ModeSymlink:
			if err := os.Symlink(hdr.LinkTarget, p); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unhandled type %v", typ)
		}
	}
}
