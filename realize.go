// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package hewn

import (
	"context"

	"hewn.build/pkg/expr"
	"zombiezen.com/go/log"
)

// Realize materialises every element of slice
// at its declared path with its declared content id.
//
// An element whose path is already installed with the right content id
// is left alone.
// A path occupied by different content,
// or by content the store has no registration for,
// is reported as a [*PathObstructedError] and nothing is expanded.
func (eng *Engine) Realize(ctx context.Context, slice *expr.Slice) error {
	if len(slice.Elems) == 0 {
		return &EmptySliceError{}
	}

	missing := false
	for _, elem := range slice.Elems {
		if !eng.Store.PathExists(elem.Path) {
			missing = true
			continue
		}
		id, ok, err := eng.Store.PathContentID(ctx, elem.Path)
		if err != nil {
			return err
		}
		if !ok {
			return &PathObstructedError{Path: elem.Path, Want: elem.ContentID}
		}
		if !id.Equal(elem.ContentID) {
			return &PathObstructedError{Path: elem.Path, Want: elem.ContentID, Got: id}
		}
	}
	if !missing {
		log.Debugf(ctx, "Slice already installed (%d elements)", len(slice.Elems))
		return nil
	}

	for _, elem := range slice.Elems {
		if err := eng.Store.ExpandID(ctx, elem.ContentID, elem.Path); err != nil {
			return err
		}
	}
	log.Debugf(ctx, "Installed %d elements", len(slice.Elems))
	return nil
}
