// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

//go:build !unix

package hewn

import "os/exec"

func setCancelFunc(c *exec.Cmd) {}
