// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package hewn

import (
	"os"
	"testing"

	"zombiezen.com/go/log/testlog"
)

func TestMain(m *testing.M) {
	testlog.Main(nil)
	os.Exit(m.Run())
}
