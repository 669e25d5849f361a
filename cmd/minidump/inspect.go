// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"golang.org/x/minidump/arch"
	"golang.org/x/minidump/format"
	"golang.org/x/minidump/minidump"
)

func inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarize a minidump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := minidump.Open(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, f := range []func(io.Writer, *minidump.Reader) error{
				printOverview, printStreams, printThreads, printModules, printMemory,
			} {
				if err := f(w, r); err != nil {
					return err
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
}

func printOverview(w io.Writer, r *minidump.Reader) error {
	t := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	h := r.Header
	fmt.Fprintf(t, "size\t%d bytes\n", r.Size())
	fmt.Fprintf(t, "time\t%s\n", time.Unix(int64(h.TimeDateStamp), 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(t, "flags\t%#x\n", h.Flags)
	fmt.Fprintf(t, "streams\t%d\n", h.NumberOfStreams)
	if si, version, err := r.SystemInfo(); err == nil {
		name := fmt.Sprintf("processor(%d)", si.ProcessorArchitecture)
		if a, ok := arch.ForProcessor(si.ProcessorArchitecture); ok {
			name = a.Name
		}
		fmt.Fprintf(t, "arch\t%s\n", name)
		fmt.Fprintf(t, "os\t%s\n", version)
		fmt.Fprintf(t, "cpus\t%d\n", si.NumberOfProcessors)
		if v := si.X86Vendor(); v != "" && (si.ProcessorArchitecture == arch.ProcessorAMD64 || si.ProcessorArchitecture == arch.ProcessorX86) {
			fmt.Fprintf(t, "vendor\t%s\n", v)
		}
	}
	if m, err := r.MiscInfo(); err == nil {
		fmt.Fprintf(t, "pid\t%d\n", m.ProcessID)
	}
	if e, err := r.Exception(); err == nil {
		fmt.Fprintf(t, "crash\tthread %d code %#x address %#x\n", e.ThreadID, e.ExceptionRecord.ExceptionCode, e.ExceptionRecord.ExceptionAddress)
	}
	return t.Flush()
}

func printStreams(w io.Writer, r *minidump.Reader) error {
	t := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(t, "type\trva\tsize\t stream\n")
	for _, d := range r.Directory {
		fmt.Fprintf(t, "%#x\t%#x\t%d\t %s\n", uint32(d.StreamType), d.Location.RVA, d.Location.DataSize, d.StreamType)
	}
	return t.Flush()
}

func printThreads(w io.Writer, r *minidump.Reader) error {
	threads, err := r.Threads()
	if err != nil {
		return err
	}
	names, _ := r.ThreadNames()
	t := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(t, "tid\tpc\tsp\tstack\tstack size\t name\n")
	for _, th := range threads {
		var pc, sp uint64
		if th.Context != nil {
			pc, sp = th.Context.PC(), th.Context.SP()
		}
		fmt.Fprintf(t, "%d\t%#x\t%#x\t%#x\t%d\t %s\n", th.ID, pc, sp, th.Stack.StartOfMemoryRange, th.Stack.Memory.DataSize, names[th.ID])
	}
	return t.Flush()
}

// moduleID formats the identifier carried by a CodeView record.
func moduleID(cv []byte) string {
	if len(cv) == 0 {
		return "-"
	}
	sig, id, err := format.ParseCVRecord(cv)
	if err != nil {
		return "?"
	}
	if sig == format.CVSignaturePDB70 && len(id) == 20 {
		return hex.EncodeToString(id[:16]) + fmt.Sprintf("-%d", uint32(id[16])|uint32(id[17])<<8|uint32(id[18])<<16|uint32(id[19])<<24)
	}
	return hex.EncodeToString(id)
}

func printModules(w io.Writer, r *minidump.Reader) error {
	mods, err := r.Modules()
	if err != nil {
		return err
	}
	t := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(t, "base\tsize\tid\tpath\n")
	for _, m := range mods {
		fmt.Fprintf(t, "%#x\t%#x\t%s\t%s\n", m.Base, m.Size, moduleID(m.CodeView), m.Name)
	}
	return t.Flush()
}

func printMemory(w io.Writer, r *minidump.Reader) error {
	mem, err := r.MemoryList()
	if err != nil {
		return err
	}
	t := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(t, "start\tend\tsize\trva\t\n")
	var total uint64
	for _, d := range mem {
		n := uint64(d.Memory.DataSize)
		fmt.Fprintf(t, "%#x\t%#x\t%d\t%#x\t\n", d.StartOfMemoryRange, d.StartOfMemoryRange+n, n, d.Memory.RVA)
		total += n
	}
	fmt.Fprintf(t, "\t\t%d\t\t\n", total)
	return t.Flush()
}

// hexdump prints n bytes of saved memory at addr, 16 to a line.
func hexdump(w io.Writer, r *minidump.Reader, addr uint64, n int) error {
	b, err := r.ReadMemory(addr, n)
	if err != nil {
		return err
	}
	for i := 0; i < len(b); i += 16 {
		line := b[i:min(i+16, len(b))]
		fmt.Fprintf(w, "%016x: % x\n", addr+uint64(i), line)
	}
	if len(b) < n {
		fmt.Fprintf(w, "(only %d of %d bytes saved)\n", len(b), n)
	}
	return nil
}
