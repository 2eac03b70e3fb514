// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

// Package hewn normalises and realises build expressions
// against a content-addressed store.
//
// An expression is normalised by rewriting it to a [expr.Slice]:
// Include nodes are chased through the store,
// Derive nodes run their builder program
// after their inputs have been normalised and realised,
// and the resulting slice is memoized through the store's successor index.
// Realising a slice materialises every element
// at its declared path with its declared content id.
package hewn

import (
	"io"
	"os"

	"hewn.build/pkg/store"
)

// An Engine normalises and realises expressions.
type Engine struct {
	// Store provides terms, blobs, and the path and successor indices.
	Store *store.Store
	// Platform is the host platform tag that Derive expressions
	// are matched against, like "x86_64-linux".
	Platform string
	// LogDir is the directory that receives the builder output log.
	LogDir string
	// BuildDir is where builders' private working directories are created.
	// If empty, [os.TempDir] is used.
	BuildDir string
	// BuildOutput optionally mirrors builder output.
	// If nil, builder output goes to [os.Stderr] in addition to the log.
	BuildOutput io.Writer
}

func (eng *Engine) buildOutput() io.Writer {
	if eng.BuildOutput == nil {
		return os.Stderr
	}
	return eng.BuildOutput
}

func (eng *Engine) buildDir() string {
	if eng.BuildDir == "" {
		return os.TempDir()
	}
	return eng.BuildDir
}
