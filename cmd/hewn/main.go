// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"hewn.build/pkg/internal/system"
	"zombiezen.com/go/bass/sigterm"
	"zombiezen.com/go/log"
)

type globalConfig struct {
	storeDir string
	dbPath   string
	logDir   string
	platform string
}

func main() {
	rootCommand := &cobra.Command{
		Use:           "hewn",
		Short:         "purely functional builds",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	g := &globalConfig{
		storeDir: os.Getenv("HEWN_STORE"),
		dbPath:   os.Getenv("HEWN_DB"),
		logDir:   os.Getenv("HEWN_LOG_DIR"),
		platform: system.Current(),
	}
	if g.storeDir == "" {
		g.storeDir = "/hewn/store"
	}

	rootCommand.PersistentFlags().StringVar(&g.storeDir, "store", g.storeDir, "`path` to store directory")
	rootCommand.PersistentFlags().StringVar(&g.dbPath, "db", g.dbPath, "`path` to store database")
	rootCommand.PersistentFlags().StringVar(&g.logDir, "log-dir", g.logDir, "`path` to builder log directory")
	rootCommand.PersistentFlags().StringVar(&g.platform, "system", g.platform, "platform `tag` to build for")
	showDebug := rootCommand.PersistentFlags().Bool("debug", false, "show debugging output")

	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogging(*showDebug)
		if g.dbPath == "" {
			g.dbPath = filepath.Join(g.storeDir, ".hewn.db")
		}
		if g.logDir == "" {
			g.logDir = filepath.Join(g.storeDir, ".log")
		}
		return nil
	}

	rootCommand.AddCommand(
		newNormalizeCommand(g),
		newAddCommand(g),
		newWriteCommand(g),
		newPrintCommand(g),
		newLogCommand(g),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), sigterm.Signals()...)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err != nil {
		initLogging(*showDebug)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
}

var initLogOnce sync.Once

func initLogging(showDebug bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if showDebug {
			minLogLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "hewn: ", log.StdFlags, nil),
		})
	})
}
