// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"golang.org/x/minidump/format"
	"golang.org/x/minidump/minidump"
)

func shellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell FILE",
		Short: "Browse a minidump interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := minidump.Open(args[0])
			if err != nil {
				return err
			}
			return runShell(r)
		},
	}
}

type shellCmd struct {
	usage string
	run   func(w io.Writer, r *minidump.Reader, args []string) error
}

var shellCmds = map[string]shellCmd{
	"overview": {"overview", noArgs(printOverview)},
	"streams":  {"streams", noArgs(printStreams)},
	"threads":  {"threads", noArgs(printThreads)},
	"modules":  {"modules", noArgs(printModules)},
	"memory":   {"memory", noArgs(printMemory)},
	"read":     {"read ADDR [COUNT]", shellRead},
	"regs":     {"regs TID", shellRegs},
	"stream":   {"stream NAME", shellStream},
}

func noArgs(f func(io.Writer, *minidump.Reader) error) func(io.Writer, *minidump.Reader, []string) error {
	return func(w io.Writer, r *minidump.Reader, args []string) error {
		return f(w, r)
	}
}

func runShell(r *minidump.Reader) error {
	var items []readline.PrefixCompleterInterface
	for _, name := range []string{"overview", "streams", "threads", "modules", "memory", "read", "regs", "stream", "help", "quit"} {
		items = append(items, readline.PcItem(name))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "(minidump) ",
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	out := rl.Stdout()
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "quit", "exit":
			return nil
		case "help":
			t := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, c := range []string{"overview", "streams", "threads", "modules", "memory", "read", "regs", "stream"} {
				fmt.Fprintf(t, "  %s\n", shellCmds[c].usage)
			}
			fmt.Fprintf(t, "  quit\n")
			t.Flush()
			continue
		}
		c, ok := shellCmds[args[0]]
		if !ok {
			fmt.Fprintf(out, "unknown command %q; try help\n", args[0])
			continue
		}
		if err := c.run(out, r, args[1:]); err != nil {
			fmt.Fprintf(out, "%s: %v\n", args[0], err)
		}
	}
}

var errUsage = errors.New("bad arguments")

func shellRead(w io.Writer, r *minidump.Reader, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	addr, err := strconv.ParseUint(args[0], 16, 64)
	if err != nil {
		return fmt.Errorf("can't parse %s as an address", args[0])
	}
	n := 256
	if len(args) == 2 {
		if n, err = strconv.Atoi(args[1]); err != nil || n <= 0 {
			return fmt.Errorf("can't parse %s as a byte count", args[1])
		}
	}
	return hexdump(w, r, addr, n)
}

func shellRegs(w io.Writer, r *minidump.Reader, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	tid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("can't parse %s as a thread id", args[0])
	}
	threads, err := r.Threads()
	if err != nil {
		return err
	}
	for _, th := range threads {
		if th.ID != uint32(tid) {
			continue
		}
		if th.Context == nil {
			return fmt.Errorf("thread %d has no readable registers", tid)
		}
		printRegs(w, th.Context)
		return nil
	}
	return fmt.Errorf("no thread %d", tid)
}

func printRegs(w io.Writer, c format.CPUContext) {
	t := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	switch c := c.(type) {
	case *format.ContextAMD64:
		for _, r := range []struct {
			name string
			v    uint64
		}{
			{"rax", c.Rax}, {"rbx", c.Rbx}, {"rcx", c.Rcx}, {"rdx", c.Rdx},
			{"rsi", c.Rsi}, {"rdi", c.Rdi}, {"rbp", c.Rbp}, {"rsp", c.Rsp},
			{"r8", c.R8}, {"r9", c.R9}, {"r10", c.R10}, {"r11", c.R11},
			{"r12", c.R12}, {"r13", c.R13}, {"r14", c.R14}, {"r15", c.R15},
			{"rip", c.Rip}, {"eflags", uint64(c.EFlags)},
		} {
			fmt.Fprintf(t, "%s\t%#016x\n", r.name, r.v)
		}
	case *format.ContextARM64:
		for i, x := range c.X {
			fmt.Fprintf(t, "x%d\t%#016x\n", i, x)
		}
		fmt.Fprintf(t, "sp\t%#016x\npc\t%#016x\ncpsr\t%#08x\n", c.Sp, c.Pc, c.Cpsr)
	case *format.ContextX86:
		fmt.Fprintf(t, "eax\t%#08x\nebx\t%#08x\necx\t%#08x\nedx\t%#08x\n", c.Eax, c.Ebx, c.Ecx, c.Edx)
		fmt.Fprintf(t, "esi\t%#08x\nedi\t%#08x\nebp\t%#08x\nesp\t%#08x\n", c.Esi, c.Edi, c.Ebp, c.Esp)
		fmt.Fprintf(t, "eip\t%#08x\neflags\t%#08x\n", c.Eip, c.EFlags)
	default:
		fmt.Fprintf(t, "pc\t%#x\nsp\t%#x\n", c.PC(), c.SP())
	}
	t.Flush()
}

// shellStream prints a raw stream, such as linux_maps, as text.
func shellStream(w io.Writer, r *minidump.Reader, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	typ, err := format.ParseStreamType(args[0])
	if err != nil {
		return err
	}
	b, ok := r.Stream(typ)
	if !ok {
		return fmt.Errorf("no %v stream", typ)
	}
	s := strings.ReplaceAll(string(b), "\x00", "\n")
	fmt.Fprint(w, s)
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(w)
	}
	return nil
}
