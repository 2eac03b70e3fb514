// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"hewn.build/pkg"
	"hewn.build/pkg/expr"
	"hewn.build/pkg/store"
	"zombiezen.com/go/log"
)

func newNormalizeCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "normalize ID [...]",
		Short:                 "normalise and realise expressions",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runNormalize(cmd.Context(), g, args)
	}
	return c
}

func runNormalize(ctx context.Context, g *globalConfig, args []string) error {
	s := store.Open(g.storeDir, g.dbPath)
	defer func() {
		if err := s.Close(); err != nil {
			log.Errorf(ctx, "%v", err)
		}
	}()
	eng := &hewn.Engine{
		Store:    s,
		Platform: g.platform,
		LogDir:   g.logDir,
	}

	for _, arg := range args {
		id, err := expr.ParseID(arg)
		if err != nil {
			return err
		}
		runID, err := s.StartRun(ctx, id)
		if err != nil {
			return err
		}
		slice, err := eng.Normalize(ctx, id)
		if err == nil {
			err = eng.Realize(ctx, slice)
		}
		status := store.RunSucceeded
		if err != nil {
			status = store.RunFailed
		}
		if finishErr := s.FinishRun(ctx, runID, status); finishErr != nil {
			log.Errorf(ctx, "%v", finishErr)
		}
		if err != nil {
			return err
		}
		for _, root := range slice.Roots {
			fmt.Println(root)
		}
	}
	return nil
}
