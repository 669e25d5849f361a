// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"golang.org/x/minidump/minidump"
	"golang.org/x/minidump/target"
)

func dumpCommand() *cobra.Command {
	var (
		pid       int
		output    string
		extra     []string
		crashTID  int
		sig       uint32
		faultAddr string
		compress  bool
	)
	cmd := &cobra.Command{
		Use:   "dump --pid PID [-o FILE|-]",
		Short: "Write a minidump of a running process",
		Long: `dump stops every thread of the process, saves its state and lets it
continue. The dump goes to PID.dmp unless -o names another file, or "-"
for standard output.

If the process has crashed, --crash-tid names the faulting thread and
--signal and --fault-addr describe the fault; the dump then carries an
exception stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dumpConfig(cfg, extra, compress)
			if err != nil {
				return err
			}

			var crash *target.CrashContext
			if cmd.Flags().Changed("crash-tid") {
				crash = &target.CrashContext{Pid: pid, ThreadID: crashTID, ExceptionCode: sig}
				if faultAddr != "" {
					a, err := strconv.ParseUint(faultAddr, 0, 64)
					if err != nil {
						return fmt.Errorf("bad fault address %q", faultAddr)
					}
					crash.ExceptionAddress = a
				}
			}

			w := minidump.NewWriter(&c)
			w.Log = log
			var res *minidump.Result
			switch output {
			case "-":
				if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
					return errors.New("refusing to write a binary dump to a terminal")
				}
				res, err = w.Dump(cmd.Context(), pid, crash, os.Stdout)
			default:
				if output == "" {
					output = fmt.Sprintf("%d.dmp", pid)
					if c.Output.Compress {
						output += ".zst"
					}
				}
				res, err = w.DumpFile(cmd.Context(), pid, crash, output)
			}
			if err != nil {
				return err
			}
			where := output
			if where == "-" {
				where = "standard output"
			}
			fmt.Fprintf(os.Stderr, "wrote %d bytes to %s: %d streams, %d threads\n", res.Size, where, len(res.Streams), res.Threads)
			for _, o := range res.Omissions {
				fmt.Fprintf(os.Stderr, "omitted %s\n", o)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&pid, "pid", "p", 0, "process to dump")
	f.StringVarP(&output, "output", "o", "", "output `file`, or - for standard output")
	f.StringArrayVar(&extra, "extra", nil, "also save the memory at `addr:size` (repeatable)")
	f.IntVar(&crashTID, "crash-tid", 0, "id of the thread that crashed")
	f.Uint32Var(&sig, "signal", 0, "signal number or exception code of the crash")
	f.StringVar(&faultAddr, "fault-addr", "", "faulting address")
	f.BoolVar(&compress, "compress", false, "zstd-compress the dump")
	cmd.MarkFlagRequired("pid")
	return cmd
}

// dumpConfig returns a copy of base with the command-line memory ranges
// and compression applied. base is not modified.
func dumpConfig(base minidump.Config, extra []string, compress bool) (minidump.Config, error) {
	c := base
	c.Memory.Extra = slices.Clone(base.Memory.Extra)
	for _, s := range extra {
		r, err := parseRange(s)
		if err != nil {
			return minidump.Config{}, err
		}
		c.Memory.Extra = append(c.Memory.Extra, r)
	}
	if compress {
		c.Output.Compress = true
	}
	return c, nil
}

// parseRange parses addr:size, each in any base strconv accepts.
func parseRange(s string) (minidump.Range, error) {
	addr, size, ok := strings.Cut(s, ":")
	if !ok {
		return minidump.Range{}, fmt.Errorf("bad memory range %q, want addr:size", s)
	}
	a, err := strconv.ParseUint(addr, 0, 64)
	if err != nil {
		return minidump.Range{}, fmt.Errorf("bad address in %q: %v", s, err)
	}
	n, err := strconv.ParseUint(size, 0, 64)
	if err != nil || n == 0 {
		return minidump.Range{}, fmt.Errorf("bad size in %q", s)
	}
	return minidump.Range{Address: a, Size: n}, nil
}
