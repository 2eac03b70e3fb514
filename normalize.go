// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package hewn

import (
	"context"

	"hewn.build/pkg/expr"
	"hewn.build/pkg/internal/detect"
	"hewn.build/pkg/sets"
	"zombiezen.com/go/log"
	"zombiezen.com/go/nix"
)

// Normalize rewrites the expression stored under id to its normal form.
//
// A Slice is already normal.
// An Include is chased to the expression it names.
// A Derive runs its builder after its inputs have been
// normalised and realised, and the resulting slice
// is persisted and memoized through the successor index,
// so later normalisations of the same expression skip the build.
func (eng *Engine) Normalize(ctx context.Context, id nix.Hash) (*expr.Slice, error) {
	id, e, err := eng.chaseSuccessors(ctx, id)
	if err != nil {
		return nil, err
	}
	e, err = eng.resolveIncludes(ctx, e)
	if err != nil {
		return nil, err
	}

	switch e := e.(type) {
	case *expr.Slice:
		return e, nil
	case *expr.Derive:
		return eng.normalizeDerive(ctx, id, e)
	default:
		return nil, &expr.BadTermError{
			Term: string(e.AppendTo(nil)),
			Msg:  "expression is not normalisable",
		}
	}
}

// chaseSuccessors follows the successor index from id
// to the most rewritten expression whose term is still readable.
// It returns the final id and its parsed term.
func (eng *Engine) chaseSuccessors(ctx context.Context, id nix.Hash) (nix.Hash, expr.Expression, error) {
	e, _, err := eng.Store.TermFromID(ctx, id)
	if err != nil {
		return nix.Hash{}, nil, err
	}
	visited := sets.New(id.String())
	for {
		succ, ok, err := eng.Store.QuerySuccessor(ctx, id)
		if err != nil {
			return nix.Hash{}, nil, err
		}
		if !ok {
			return id, e, nil
		}
		if visited.Has(succ.String()) {
			log.Debugf(ctx, "Successor cycle at %v; using last good expression %v", succ, id)
			return id, e, nil
		}
		visited.Add(succ.String())
		succExpr, _, err := eng.Store.TermFromID(ctx, succ)
		if err != nil {
			// A successor whose term cannot be read is a cache miss.
			log.Debugf(ctx, "Successor %v of %v unusable (%v); rebuilding", succ, id, err)
			return id, e, nil
		}
		id, e = succ, succExpr
	}
}

// resolveIncludes loads through Include indirections until
// the expression has another shape.
func (eng *Engine) resolveIncludes(ctx context.Context, e expr.Expression) (expr.Expression, error) {
	visited := sets.New[string]()
	for {
		inc, ok := e.(expr.Include)
		if !ok {
			return e, nil
		}
		if visited.Has(inc.ID.String()) {
			return nil, &expr.BadTermError{Term: inc.ID.String(), Msg: "include cycle"}
		}
		visited.Add(inc.ID.String())
		var err error
		e, _, err = eng.Store.TermFromID(ctx, inc.ID)
		if err != nil {
			return nil, err
		}
	}
}

// normalizeDerive builds the outputs of a Derive expression
// whose id (after successor chasing) is deriveID.
func (eng *Engine) normalizeDerive(ctx context.Context, deriveID nix.Hash, drv *expr.Derive) (*expr.Slice, error) {
	if drv.Platform != eng.Platform {
		return nil, &PlatformError{Want: drv.Platform, Got: eng.Platform}
	}

	// Normalise and realise every input in declared order.
	// Elements are deduplicated by content id.
	var inputElems []expr.SliceElem
	seenInputs := sets.New[string]()
	for _, inID := range drv.Inputs {
		inSlice, err := eng.Normalize(ctx, inID)
		if err != nil {
			return nil, err
		}
		if err := eng.Realize(ctx, inSlice); err != nil {
			return nil, err
		}
		for _, elem := range inSlice.Elems {
			if !seenInputs.Has(elem.ContentID.String()) {
				seenInputs.Add(elem.ContentID.String())
				inputElems = append(inputElems, elem)
			}
		}
	}

	// Bindings are applied in order, so later entries win.
	env := make(map[string]string)
	for _, b := range drv.Bindings {
		env[b.Name] = b.Value
	}

	for _, out := range drv.Outputs {
		if eng.Store.PathExists(out.Path) {
			return nil, &OutputObstructedError{Path: out.Path}
		}
	}

	if err := eng.RunBuilder(ctx, drv.Builder, env); err != nil {
		return nil, err
	}

	slice := &expr.Slice{}
	for _, out := range drv.Outputs {
		if !eng.Store.PathExists(out.Path) {
			return nil, &IncompleteError{Builder: drv.Builder, Output: out.Path}
		}
		if err := eng.Store.RegisterPath(ctx, out.Path, out.ContentID); err != nil {
			return nil, err
		}
		refs, err := eng.scanReferences(ctx, out.Path, inputElems)
		if err != nil {
			return nil, err
		}
		slice.Roots = append(slice.Roots, out.ContentID)
		slice.Elems = append(slice.Elems, expr.SliceElem{
			Path:      out.Path,
			ContentID: out.ContentID,
			Refs:      refs,
		})
	}
	slice.Elems = append(slice.Elems, inputElems...)

	sliceID, _, err := eng.Store.WriteTerm(ctx, slice, "-s-"+deriveID.RawBase32())
	if err != nil {
		return nil, err
	}
	if err := eng.Store.RegisterSuccessor(ctx, deriveID, sliceID); err != nil {
		return nil, err
	}
	log.Infof(ctx, "Normalised %v to %v", deriveID, sliceID)
	return slice, nil
}

// scanReferences searches the output subtree at outPath
// for occurrences of the input elements' paths
// and returns the content ids of the referenced elements,
// sorted and without duplicates.
func (eng *Engine) scanReferences(ctx context.Context, outPath string, inputElems []expr.SliceElem) ([]nix.Hash, error) {
	if len(inputElems) == 0 {
		return nil, nil
	}
	byPath := make(map[string]nix.Hash, len(inputElems))
	for _, elem := range inputElems {
		byPath[elem.Path] = elem.ContentID
	}
	found, err := detect.ScanPath(outPath, func(yield func(string) bool) {
		for _, elem := range inputElems {
			if !yield(elem.Path) {
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	refIDs := sets.NewSorted[string]()
	for path := range found.All() {
		refIDs.Add(byPath[path].String())
	}
	var refs []nix.Hash
	for idStr := range refIDs.All() {
		ref, err := expr.ParseID(idStr)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if len(refs) > 0 {
		log.Debugf(ctx, "Output %s references %d of %d inputs", outPath, len(refs), len(inputElems))
	}
	return refs, nil
}
