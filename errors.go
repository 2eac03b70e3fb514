// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package hewn

import (
	"fmt"

	"zombiezen.com/go/nix"
)

// A PlatformError reports a Derive expression
// whose platform tag does not match the host.
type PlatformError struct {
	Want string
	Got  string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("a %s is required to build, but I am a %s", e.Want, e.Got)
}

// An OutputObstructedError reports a declared builder output path
// that already existed before the build started.
type OutputObstructedError struct {
	Path string
}

func (e *OutputObstructedError) Error() string {
	return fmt.Sprintf("output path %s obstructed by an existing file", e.Path)
}

// A PathObstructedError reports a slice element path
// that is occupied by content with a different id.
type PathObstructedError struct {
	Path string
	// Want is the content id the slice declares for the path.
	Want nix.Hash
	// Got is the content id registered for the path,
	// or the zero hash if the path is unregistered.
	Got nix.Hash
}

func (e *PathObstructedError) Error() string {
	if e.Got.IsZero() {
		return fmt.Sprintf("path %s exists but is not registered", e.Path)
	}
	return fmt.Sprintf("path %s has id %v, but %v is required", e.Path, e.Got, e.Want)
}

// A BuildError reports a builder program
// that could not be started or exited unsuccessfully.
type BuildError struct {
	Builder string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("builder %s: %v", e.Builder, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// An IncompleteError reports a builder
// that exited successfully without producing a declared output.
type IncompleteError struct {
	Builder string
	Output  string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("builder %s did not create %s", e.Builder, e.Output)
}

// An EmptySliceError reports an attempt to realise a slice with no elements.
type EmptySliceError struct{}

func (e *EmptySliceError) Error() string {
	return "cannot realise an empty slice"
}
