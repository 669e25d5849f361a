// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"golang.org/x/minidump/format"
	"golang.org/x/minidump/minidump"
	"golang.org/x/minidump/target/targettest"
)

func TestParseRange(t *testing.T) {
	r, err := parseRange("0x7f0000001000:4096")
	if err != nil {
		t.Fatal(err)
	}
	if r.Address != 0x7f0000001000 || r.Size != 4096 {
		t.Errorf("parseRange = %v", r)
	}
	for _, bad := range []string{"", "0x1000", "zz:10", "0x1000:0", "0x1000:-1"} {
		if _, err := parseRange(bad); err == nil {
			t.Errorf("parseRange(%q) succeeded", bad)
		}
	}
}

func TestDumpConfigCopies(t *testing.T) {
	base := minidump.DefaultConfig()
	base.Memory.Extra = make([]minidump.Range, 1, 4)
	base.Memory.Extra[0] = minidump.Range{Address: 0x1000, Size: 16}
	shared := base.Memory.Extra[:2]

	c, err := dumpConfig(base, []string{"0x2000:32"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Memory.Extra) != 2 || c.Memory.Extra[1] != (minidump.Range{Address: 0x2000, Size: 32}) {
		t.Errorf("extra ranges = %v", c.Memory.Extra)
	}
	if !c.Output.Compress || base.Output.Compress {
		t.Errorf("compress = %v, base compress = %v", c.Output.Compress, base.Output.Compress)
	}
	if len(base.Memory.Extra) != 1 || shared[1] != (minidump.Range{}) {
		t.Errorf("base ranges changed: %v, spare slot %v", base.Memory.Extra, shared[1])
	}
	if _, err := dumpConfig(base, []string{"bad"}, false); err == nil {
		t.Errorf("dumpConfig accepted a bad range")
	}
}

func TestModuleID(t *testing.T) {
	var guid [16]byte
	guid[0] = 0xab
	if got := moduleID(format.CVRecordPDB70(guid, 3, "app.pdb")); got != "ab000000000000000000000000000000-3" {
		t.Errorf("pdb id %q", got)
	}
	if got := moduleID(format.CVRecordELF([]byte{1, 2, 3})); got != "010203" {
		t.Errorf("elf id %q", got)
	}
	if got := moduleID(nil); got != "-" {
		t.Errorf("missing id %q", got)
	}
}

func testDump(t *testing.T) *minidump.Reader {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	w := &minidump.Writer{Backend: targettest.NewBackend(targettest.NewProcess()), Log: logger}
	data, _, err := w.Capture(context.Background(), targettest.PID, nil)
	if err != nil {
		t.Fatal(err)
	}
	r, err := minidump.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestPrint(t *testing.T) {
	r := testDump(t)
	var b bytes.Buffer
	for _, f := range []func(io.Writer, *minidump.Reader) error{printOverview, printThreads, printModules, printStreams} {
		if err := f(&b, r); err != nil {
			t.Fatal(err)
		}
	}
	out := b.String()
	for _, want := range []string{"amd64", "GenuineIntel", "/usr/bin/app", "worker", "thread_list", "a1b2c3d4e5f60718"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestShellCommands(t *testing.T) {
	r := testDump(t)
	var b bytes.Buffer
	if err := shellRegs(&b, r, []string{"102"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "rip") {
		t.Errorf("regs output:\n%s", b.String())
	}
	b.Reset()
	sp := uint64(targettest.StackBase + targettest.StackSize - targettest.StackInUse)
	if err := hexdump(&b, r, sp, 32); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(b.String(), "\n"); n != 2 {
		t.Errorf("hexdump of 32 bytes printed %d lines", n)
	}
	b.Reset()
	if err := shellStream(&b, r, []string{"linux_cmd_line"}); err != nil {
		t.Fatal(err)
	}
	if b.String() != "/usr/bin/app\n--serve\n" {
		t.Errorf("cmdline stream printed as %q", b.String())
	}
	if err := shellRegs(&b, r, []string{"999"}); err == nil {
		t.Errorf("regs of a missing thread succeeded")
	}
	if err := shellRead(&b, r, nil); err != errUsage {
		t.Errorf("read without arguments: %v", err)
	}
}
