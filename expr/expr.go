// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

// Package expr provides the typed view over persisted hewn expressions.
//
// An expression has exactly three shapes:
// an [Include] names another expression by its content id,
// a [Derive] is a build recipe,
// and a [Slice] is a normal form describing an installable closure.
// Expressions are serialized in ATerm text format
// and identified by the SHA-256 hash of their canonical serialization.
package expr

import (
	"fmt"

	"zombiezen.com/go/nix"
)

// HashType is the hash algorithm used for expression ids and content ids.
const HashType = nix.SHA256

// An Expression is one of [Include], [*Derive], or [*Slice].
type Expression interface {
	// AppendTo appends the expression's canonical ATerm serialization to dst.
	AppendTo(dst []byte) []byte

	isExpression()
}

// Include is an indirection:
// its logical value is the expression stored under ID.
type Include struct {
	ID nix.Hash
}

func (inc Include) isExpression() {}

// Derive is a build recipe.
type Derive struct {
	// Outputs declares the store paths the builder must produce
	// and the content ids they will be registered under.
	Outputs []Output
	// Inputs lists ids of expressions whose normal forms
	// must be installed before the build.
	Inputs []nix.Hash
	// Builder is the absolute path of the program to run.
	Builder string
	// Platform must match the host's platform tag exactly.
	Platform string
	// Bindings become the builder's environment, applied in order.
	// Later entries win on duplicate names.
	Bindings []Binding
}

func (drv *Derive) isExpression() {}

// Output is a declared builder output.
type Output struct {
	Path      string
	ContentID nix.Hash
}

// Binding is a single environment variable for a builder.
type Binding struct {
	Name  string
	Value string
}

// Slice is the normal form of an expression:
// a set of store paths, their content ids, and their reference graph.
type Slice struct {
	// Roots designates the content ids of the slice's outputs.
	Roots []nix.Hash
	// Elems lists every element of the closure.
	Elems []SliceElem
}

func (sl *Slice) isExpression() {}

// SliceElem is a single element of a slice's closure.
type SliceElem struct {
	Path      string
	ContentID nix.Hash
	// Refs holds content ids of other elements in the same slice
	// that this element references.
	Refs []nix.Hash
}

// ParseID parses the canonical string form of an expression or content id.
// Malformed input is reported as a [*BadTermError].
func ParseID(s string) (nix.Hash, error) {
	h, err := nix.ParseHash(s)
	if err != nil {
		return nix.Hash{}, &BadTermError{Term: s, Msg: "not an id"}
	}
	return h, nil
}

// Hash returns the expression's id:
// the SHA-256 hash of its canonical serialization.
// Structurally equal expressions have equal ids.
func Hash(e Expression) nix.Hash {
	h := nix.NewHasher(HashType)
	h.Write(e.AppendTo(nil))
	return h.SumHash()
}

// A BadTermError reports a term that does not parse to an expected shape.
type BadTermError struct {
	// Term is the printed form of the offending term or fragment.
	Term string
	// Msg describes the expected shape.
	Msg string
}

func (e *BadTermError) Error() string {
	return fmt.Sprintf("%s, in `%s`", e.Msg, e.Term)
}
