// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"hewn.build/pkg/store"
)

func newLogCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "log",
		Short:                 "list recent build runs",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	limit := c.Flags().Int("limit", 20, "maximum `number` of runs to list")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runLog(cmd.Context(), g, *limit)
	}
	return c
}

func runLog(ctx context.Context, g *globalConfig, limit int) error {
	s := store.Open(g.storeDir, g.dbPath)
	defer closeStore(ctx, s)
	runs, err := s.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tDURATION\tEXPRESSION")
	for _, run := range runs {
		duration := "-"
		if !run.EndedAt.IsZero() {
			duration = run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n",
			run.StartedAt.Format(time.RFC3339), run.Status, duration, run.ExprID)
	}
	return w.Flush()
}
