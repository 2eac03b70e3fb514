// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package expr

import (
	"hewn.build/pkg/internal/aterm"
)

// MarshalText returns the canonical ATerm serialization of the expression.
func MarshalText(e Expression) ([]byte, error) {
	return e.AppendTo(nil), nil
}

// AppendTo implements [Expression].
func (inc Include) AppendTo(dst []byte) []byte {
	dst = aterm.AppendAtom(dst, "Include")
	dst = aterm.AppendString(dst, inc.ID.String())
	dst = append(dst, ')')
	return dst
}

// AppendTo implements [Expression].
func (drv *Derive) AppendTo(dst []byte) []byte {
	dst = aterm.AppendAtom(dst, "Derive")
	dst = append(dst, '[')
	for i, out := range drv.Outputs {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, '(')
		dst = aterm.AppendString(dst, out.Path)
		dst = append(dst, ',')
		dst = aterm.AppendString(dst, out.ContentID.String())
		dst = append(dst, ')')
	}
	dst = append(dst, ']', ',', '[')
	for i, in := range drv.Inputs {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = aterm.AppendString(dst, in.String())
	}
	dst = append(dst, ']', ',')
	dst = aterm.AppendString(dst, drv.Builder)
	dst = append(dst, ',')
	dst = aterm.AppendString(dst, drv.Platform)
	dst = append(dst, ',', '[')
	for i, b := range drv.Bindings {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, '(')
		dst = aterm.AppendString(dst, b.Name)
		dst = append(dst, ',')
		dst = aterm.AppendString(dst, b.Value)
		dst = append(dst, ')')
	}
	dst = append(dst, ']', ')')
	return dst
}

// AppendTo implements [Expression].
func (sl *Slice) AppendTo(dst []byte) []byte {
	dst = aterm.AppendAtom(dst, "Slice")
	dst = append(dst, '[')
	for i, root := range sl.Roots {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = aterm.AppendString(dst, root.String())
	}
	dst = append(dst, ']', ',', '[')
	for i, elem := range sl.Elems {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, '(')
		dst = aterm.AppendString(dst, elem.Path)
		dst = append(dst, ',')
		dst = aterm.AppendString(dst, elem.ContentID.String())
		dst = append(dst, ',', '[')
		for j, ref := range elem.Refs {
			if j > 0 {
				dst = append(dst, ',')
			}
			dst = aterm.AppendString(dst, ref.String())
		}
		dst = append(dst, ']', ')')
	}
	dst = append(dst, ']', ')')
	return dst
}
