// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The minidump tool writes minidumps of running processes and explores
// the result.
// Run "minidump help" for a list of commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"golang.org/x/minidump/minidump"
)

// version is set by the linker.
var version = "devel"

var (
	cfgFile  string
	logLevel string

	cfg = minidump.DefaultConfig()
	log = logrus.New()
)

func main() {
	root := &cobra.Command{
		Use:   "minidump",
		Short: "Capture and explore minidumps",
		Long: `minidump captures a snapshot of a running process (threads, registers,
stacks, loaded modules and selected memory) and writes it as a minidump
that crash analysis tools can read. It can also summarize and browse the
dumps it writes.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML configuration `file`")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log `level` (panic, fatal, error, warn, info, debug, trace)")

	root.AddCommand(
		dumpCommand(),
		inspectCommand(),
		shellCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "minidump %s\n", version)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		exitf("%v\n", err)
	}
}

// setup loads the configuration and sets the log level.
func setup(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		var err error
		if cfg, err = minidump.LoadConfig(cfgFile); err != nil {
			return err
		}
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if level != "" {
		l, err := logrus.ParseLevel(level)
		if err != nil {
			return err
		}
		log.SetLevel(l)
	}
	log.SetOutput(os.Stderr)
	return nil
}

func exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
