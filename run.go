// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package hewn

import (
	"context"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	"hewn.build/pkg/internal/osutil"
	"zombiezen.com/go/log"
)

// runLogName is the file in the engine's log directory
// that accumulates builder output.
const runLogName = "run.log"

// RunBuilder executes a builder program in a fresh private working directory.
//
// The child's argument vector is exactly the base name of the builder
// and its environment is exactly env, sorted by name.
// Nothing is inherited from the engine's own environment.
// The builder's standard output and standard error
// are appended to the run log and mirrored to the engine's output writer.
// RunBuilder blocks until the builder exits.
// A launch failure or a non-zero exit is reported as a [*BuildError].
func (eng *Engine) RunBuilder(ctx context.Context, builder string, env map[string]string) error {
	if err := os.MkdirAll(eng.buildDir(), 0o755); err != nil {
		return &BuildError{Builder: builder, Err: err}
	}
	buildDir, err := os.MkdirTemp(eng.buildDir(), "hewn-build-*")
	if err != nil {
		return &BuildError{Builder: builder, Err: err}
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := os.RemoveAll(buildDir); err != nil {
			log.Warnf(cleanupCtx, "Cleanup build directory: %v", err)
		} else {
			log.Debugf(cleanupCtx, "Removed build directory %s", buildDir)
		}
	}()
	if err := os.Chmod(buildDir, 0o777); err != nil {
		return &BuildError{Builder: builder, Err: err}
	}
	if err := osutil.MakeExecutable(builder); err != nil {
		return &BuildError{Builder: builder, Err: err}
	}

	logFile, err := eng.openRunLog()
	if err != nil {
		return &BuildError{Builder: builder, Err: err}
	}
	defer logFile.Close()
	output := io.MultiWriter(logFile, eng.buildOutput())

	c := exec.CommandContext(ctx, builder)
	c.Args = []string{filepath.Base(builder)}
	setCancelFunc(c)
	// A nil Env would make the child inherit this process's environment.
	c.Env = make([]string, 0, len(env))
	for _, name := range slices.Sorted(maps.Keys(env)) {
		c.Env = append(c.Env, name+"="+env[name])
	}
	c.Dir = buildDir
	c.Stdout = output
	c.Stderr = output

	log.Infof(ctx, "Running %s...", builder)
	if err := c.Run(); err != nil {
		return &BuildError{Builder: builder, Err: err}
	}
	return nil
}

func (eng *Engine) openRunLog() (*os.File, error) {
	if err := os.MkdirAll(eng.LogDir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(eng.LogDir, runLogName), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}
