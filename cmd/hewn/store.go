// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"hewn.build/pkg/expr"
	"hewn.build/pkg/store"
	"zombiezen.com/go/log"
)

func newAddCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "add PATH",
		Short:                 "import a file or directory into the store",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runAdd(cmd.Context(), g, args[0])
	}
	return c
}

func runAdd(ctx context.Context, g *globalConfig, path string) error {
	s := store.Open(g.storeDir, g.dbPath)
	defer closeStore(ctx, s)
	id, err := s.ImportPath(ctx, path)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func newWriteCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "write [FILE]",
		Short:                 "store an expression term",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MaximumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		file := ""
		if len(args) > 0 {
			file = args[0]
		}
		return runWrite(cmd.Context(), g, file)
	}
	return c
}

func runWrite(ctx context.Context, g *globalConfig, file string) error {
	var src []byte
	var err error
	if file != "" {
		src, err = os.ReadFile(file)
	} else {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Reading expression from terminal; finish with Ctrl-D.")
		}
		src, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return err
	}
	e, err := expr.Parse(src)
	if err != nil {
		return err
	}

	s := store.Open(g.storeDir, g.dbPath)
	defer closeStore(ctx, s)
	id, path, err := s.WriteTerm(ctx, e, "")
	if err != nil {
		return err
	}
	log.Debugf(ctx, "Stored term at %s", path)
	fmt.Println(id)
	return nil
}

func newPrintCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "print ID",
		Short:                 "print a stored expression term",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runPrint(cmd.Context(), g, args[0])
	}
	return c
}

func runPrint(ctx context.Context, g *globalConfig, arg string) error {
	id, err := expr.ParseID(arg)
	if err != nil {
		return err
	}
	s := store.Open(g.storeDir, g.dbPath)
	defer closeStore(ctx, s)
	e, _, err := s.TermFromID(ctx, id)
	if err != nil {
		return err
	}
	os.Stdout.Write(append(e.AppendTo(nil), '\n'))
	return nil
}

func closeStore(ctx context.Context, s *store.Store) {
	if err := s.Close(); err != nil {
		log.Errorf(ctx, "%v", err)
	}
}
