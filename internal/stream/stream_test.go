// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"golang.org/x/minidump/format"
	"golang.org/x/minidump/internal/dumpbuf"
	"golang.org/x/minidump/target"
	"golang.org/x/minidump/target/targettest"
)

// snapshot builds a snapshot of the fixture process by hand.
func snapshot(t *testing.T) *Snapshot {
	t.Helper()
	p := targettest.NewProcess()
	snap := &Snapshot{
		Pid:       p.PID,
		Arch:      p.Architecture,
		System:    &p.Info,
		Modules:   p.ModuleList,
		Mappings:  p.MappingList,
		StartTime: p.Started,
	}
	for _, th := range p.ThreadList {
		sp := th.Context.SP()
		snap.Threads = append(snap.Threads, target.ThreadInfo{
			ID:      th.ID,
			Context: th.Context,
			Name:    th.Name,
			Stack:   target.ReadRegion(p, sp, targettest.StackInUse),
		})
	}
	return snap
}

func decode[T any](t *testing.T, b []byte, loc format.Location) T {
	t.Helper()
	var v T
	if int(loc.End()) > len(b) {
		t.Fatalf("location %v past end of %d-byte buffer", loc, len(b))
	}
	if err := binary.Read(bytes.NewReader(b[loc.RVA:loc.End()]), binary.LittleEndian, &v); err != nil {
		t.Fatalf("can't decode %T at %v: %v", v, loc, err)
	}
	return v
}

// list decodes a count-prefixed list stream.
func list[T any](t *testing.T, b []byte, loc format.Location) []T {
	t.Helper()
	n := binary.LittleEndian.Uint32(b[loc.RVA:])
	items := make([]T, n)
	if err := binary.Read(bytes.NewReader(b[loc.RVA+4:loc.End()]), binary.LittleEndian, items); err != nil {
		t.Fatalf("can't decode list of %d: %v", n, err)
	}
	return items
}

func write(t *testing.T, s *Session, typ format.StreamType) format.Location {
	t.Helper()
	for _, w := range Writers(s.snap) {
		if w.Type == typ {
			d, err := w.Write(s)
			if err != nil {
				t.Fatalf("writing %v: %v", typ, err)
			}
			if d.StreamType != typ {
				t.Fatalf("directory entry for %v has type %v", typ, d.StreamType)
			}
			return d.Location
		}
	}
	t.Fatalf("no writer for %v", typ)
	return format.Location{}
}

func TestThreadList(t *testing.T) {
	snap := snapshot(t)
	buf := dumpbuf.New(0)
	s := NewSession(buf, snap)
	loc := write(t, s, format.ThreadListStream)
	b := buf.Bytes()

	if loc.End() != uint64(len(b)) {
		t.Errorf("thread index is not the last thing written")
	}
	threads := list[format.Thread](t, b, loc)
	if len(threads) != len(targettest.ThreadIDs) {
		t.Fatalf("got %d threads, want %d", len(threads), len(targettest.ThreadIDs))
	}
	for i, th := range threads {
		want := snap.Threads[i]
		if int(th.ThreadID) != want.ID {
			t.Errorf("thread %d id = %d, want %d", i, th.ThreadID, want.ID)
		}
		c, err := format.DecodeContext(want.Context.Processor(), b[th.ThreadContext.RVA:th.ThreadContext.End()])
		if err != nil {
			t.Fatalf("thread %d: %v", i, err)
		}
		if c.PC() != want.Context.PC() || c.SP() != want.Context.SP() {
			t.Errorf("thread %d context pc %#x sp %#x", i, c.PC(), c.SP())
		}
		if th.Stack.StartOfMemoryRange != want.Stack.Start {
			t.Errorf("thread %d stack at %#x, want %#x", i, th.Stack.StartOfMemoryRange, want.Stack.Start)
		}
		if got := b[th.Stack.Memory.RVA:th.Stack.Memory.End()]; !bytes.Equal(got, want.Stack.Data) {
			t.Errorf("thread %d stack bytes differ", i)
		}
	}
}

func TestThreadListSkipsThreadWithoutRegisters(t *testing.T) {
	snap := snapshot(t)
	snap.Threads[1].Context = nil
	s := NewSession(dumpbuf.New(0), snap)
	loc := write(t, s, format.ThreadListStream)
	if threads := list[format.Thread](t, s.buf.Bytes(), loc); len(threads) != 2 {
		t.Errorf("got %d threads, want 2", len(threads))
	}
	if len(s.Omissions()) != 1 {
		t.Errorf("omissions = %v", s.Omissions())
	}

	snap.Threads = nil
	w := Writers(snap)[0]
	if _, err := w.Write(NewSession(dumpbuf.New(0), snap)); !errors.Is(err, errNoThreads) {
		t.Errorf("empty thread list: got %v", err)
	}
}

func TestMemorySharedBetweenStreams(t *testing.T) {
	snap := snapshot(t)
	// Application memory inside thread 0's stack is not stored again;
	// a heap range is.
	stack := snap.Threads[0].Stack
	snap.Memory = []target.MemoryRegion{
		{Start: stack.Start + 16, Length: 32, Data: stack.Data[16:48]},
		{Start: targettest.HeapBase, Length: 64, Data: make([]byte, 64)},
	}
	buf := dumpbuf.New(0)
	s := NewSession(buf, snap)
	tl := write(t, s, format.ThreadListStream)
	ml := write(t, s, format.MemoryListStream)
	b := buf.Bytes()

	threads := list[format.Thread](t, b, tl)
	mem := list[format.MemoryDescriptor](t, b, ml)
	if len(mem) != len(threads)+1 {
		t.Fatalf("memory list has %d entries, want %d", len(mem), len(threads)+1)
	}
	for i, th := range threads {
		if mem[i] != th.Stack {
			t.Errorf("memory entry %d = %+v, thread stack = %+v", i, mem[i], th.Stack)
		}
	}
	if mem[len(mem)-1].StartOfMemoryRange != targettest.HeapBase {
		t.Errorf("last memory entry at %#x", mem[len(mem)-1].StartOfMemoryRange)
	}
}

func TestMemoryListOrderIndependent(t *testing.T) {
	snap := snapshot(t)
	buf := dumpbuf.New(0)
	s := NewSession(buf, snap)
	ml := write(t, s, format.MemoryListStream)
	tl := write(t, s, format.ThreadListStream)
	b := buf.Bytes()
	mem := list[format.MemoryDescriptor](t, b, ml)
	threads := list[format.Thread](t, b, tl)
	for i, th := range threads {
		if mem[i] != th.Stack {
			t.Errorf("thread %d stack not shared with memory list", i)
		}
	}
}

func TestSystemInfo(t *testing.T) {
	snap := snapshot(t)
	buf := dumpbuf.New(0)
	s := NewSession(buf, snap)
	loc := write(t, s, format.SystemInfoStream)
	if loc.DataSize != 56 {
		t.Errorf("system info size = %d", loc.DataSize)
	}
	b := buf.Bytes()
	si := decode[format.SystemInfo](t, b, loc)
	if si.ProcessorArchitecture != snap.Arch.Processor || si.PlatformID != format.PlatformLinux {
		t.Errorf("arch %d platform %#x", si.ProcessorArchitecture, si.PlatformID)
	}
	if si.MajorVersion != 6 || si.MinorVersion != 8 || si.NumberOfProcessors != 4 {
		t.Errorf("version %d.%d, %d cpus", si.MajorVersion, si.MinorVersion, si.NumberOfProcessors)
	}
	if si.X86Vendor() != "GenuineIntel" || si.CPU[4] != 0xbfebfbff {
		t.Errorf("cpu vendor %q features %#x", si.X86Vendor(), si.CPU[4])
	}
	if family := si.CPU[3] >> 8 & 0xf; family != 6 {
		t.Errorf("cpuid family = %d", family)
	}
	if si.CSDVersionRVA < loc.RVA+loc.DataSize {
		t.Errorf("version string at %#x overlaps the record", si.CSDVersionRVA)
	}
	csd, err := format.DecodeString(b[si.CSDVersionRVA:])
	if err != nil || csd != snap.System.OSVersion {
		t.Errorf("version string = %q, %v", csd, err)
	}

	snap.System = nil
	snap.SystemErr = errors.New("uname failed")
	if _, err := writeSystemInfo(NewSession(dumpbuf.New(0), snap)); err != snap.SystemErr {
		t.Errorf("missing system info: got %v", err)
	}
}

func TestCPUIDVersion(t *testing.T) {
	// Family 0x19 model 0x21 stepping 2 (Zen 3) encodes as 0x00a20f12.
	if v := cpuidVersion(0x19, 0x21, 2); v != 0x00a20f12 {
		t.Errorf("cpuidVersion = %#x", v)
	}
	if v := cpuidVersion(6, 158, 10); v != 0x000906ea {
		t.Errorf("cpuidVersion = %#x", v)
	}
}

func TestException(t *testing.T) {
	snap := snapshot(t)
	snap.Crash = &target.CrashContext{
		Pid:              snap.Pid,
		ThreadID:         targettest.ThreadIDs[1],
		ExceptionCode:    11,
		ExceptionFlags:   1,
		ExceptionAddress: 0xdead,
		Parameters:       make([]uint64, 20),
	}
	buf := dumpbuf.New(0)
	s := NewSession(buf, snap)
	tl := write(t, s, format.ThreadListStream)
	ex := write(t, s, format.ExceptionStream)
	b := buf.Bytes()
	threads := list[format.Thread](t, b, tl)
	e := decode[format.ExceptionInfo](t, b, ex)
	if e.ThreadID != uint32(targettest.ThreadIDs[1]) || e.ExceptionRecord.ExceptionCode != 11 || e.ExceptionRecord.ExceptionAddress != 0xdead {
		t.Errorf("exception = %+v", e)
	}
	if e.ThreadContext != threads[1].ThreadContext {
		t.Errorf("exception context %v, thread context %v", e.ThreadContext, threads[1].ThreadContext)
	}
	if e.ExceptionRecord.NumberParameters != format.MaxExceptionParameters {
		t.Errorf("%d parameters kept", e.ExceptionRecord.NumberParameters)
	}

	// A crashing thread that could not be suspended still gets an
	// exception stream from the handler's registers.
	snap.Crash.ThreadID = 999
	snap.Crash.Context = &format.ContextAMD64{Rip: 0x1234}
	if _, err := writeException(NewSession(dumpbuf.New(0), snap)); err != nil {
		t.Errorf("exception from handler context: %v", err)
	}
	snap.Crash.Context = nil
	if _, err := writeException(NewSession(dumpbuf.New(0), snap)); err == nil {
		t.Errorf("exception without any registers accepted")
	}
}

func TestModuleList(t *testing.T) {
	snap := snapshot(t)
	snap.Modules = append(snap.Modules, target.ModuleInfo{Base: 0x10000, Size: 0x1000, Path: `C:\app\app.exe`, IDKind: target.PDBGUID, ID: make([]byte, 16), Age: 2})
	snap.Modules = append(snap.Modules, target.ModuleInfo{Base: 0x20000, Size: 0x1000, Path: "/anon"})
	buf := dumpbuf.New(0)
	s := NewSession(buf, snap)
	loc := write(t, s, format.ModuleListStream)
	b := buf.Bytes()
	mods := list[format.Module](t, b, loc)
	if len(mods) != 4 {
		t.Fatalf("got %d modules", len(mods))
	}
	for i, m := range mods {
		want := snap.Modules[i]
		name, err := format.DecodeString(b[m.ModuleNameRVA:])
		if err != nil || name != want.Path {
			t.Errorf("module %d name %q, %v", i, name, err)
		}
		if m.BaseOfImage != want.Base || uint64(m.SizeOfImage) != want.Size {
			t.Errorf("module %d range %#x+%#x", i, m.BaseOfImage, m.SizeOfImage)
		}
	}
	sig, id, err := format.ParseCVRecord(b[mods[0].CVRecord.RVA:mods[0].CVRecord.End()])
	if err != nil || sig != format.CVSignatureELF || !bytes.Equal(id, snap.Modules[0].ID) {
		t.Errorf("ELF codeview: %#x %x %v", sig, id, err)
	}
	cv := b[mods[2].CVRecord.RVA:mods[2].CVRecord.End()]
	if !bytes.HasSuffix(cv, []byte("app.exe\x00")) {
		t.Errorf("PDB codeview name: %q", cv[24:])
	}
	if mods[3].CVRecord.DataSize != 0 {
		t.Errorf("module without id has a codeview record")
	}
	if len(s.Omissions()) != 1 {
		t.Errorf("omissions = %v", s.Omissions())
	}
}

func TestMemoryInfoList(t *testing.T) {
	snap := snapshot(t)
	buf := dumpbuf.New(0)
	s := NewSession(buf, snap)
	loc := write(t, s, format.MemoryInfoListStream)
	b := buf.Bytes()
	hdr := decode[format.MemoryInfoListHeader](t, b, format.Location{DataSize: format.MemoryInfoListHeaderSize, RVA: loc.RVA})
	if hdr.NumberOfEntries != uint64(len(snap.Mappings)) || hdr.SizeOfEntry != format.MemoryInfoSize {
		t.Fatalf("header = %+v", hdr)
	}
	if want := format.MemoryInfoListHeaderSize + len(snap.Mappings)*format.MemoryInfoSize; int(loc.DataSize) != want {
		t.Errorf("stream size %d, want %d", loc.DataSize, want)
	}
	first := decode[format.MemoryInfo](t, b, format.Location{DataSize: format.MemoryInfoSize, RVA: loc.RVA + format.MemoryInfoListHeaderSize})
	if first.BaseAddress != targettest.TextBase || first.Protect != format.MemoryProtectExecuteRead || first.Type != format.MemoryTypeImage {
		t.Errorf("first entry = %+v", first)
	}
}

func TestThreadNames(t *testing.T) {
	snap := snapshot(t)
	snap.Threads[2].Name = ""
	buf := dumpbuf.New(0)
	s := NewSession(buf, snap)
	loc := write(t, s, format.ThreadNamesStream)
	b := buf.Bytes()
	names := list[format.ThreadName](t, b, loc)
	if len(names) != 2 {
		t.Fatalf("got %d names", len(names))
	}
	name, err := format.DecodeString(b[names[1].RVAOfThreadName:])
	if err != nil || name != "worker" || names[1].ThreadID != uint32(targettest.ThreadIDs[1]) {
		t.Errorf("name 1 = %q (%d), %v", name, names[1].ThreadID, err)
	}
}

func TestWritersApply(t *testing.T) {
	snap := snapshot(t)
	snap.Files = []File{{Type: format.LinuxMapsStream, Data: []byte("maps")}}
	types := map[format.StreamType]bool{}
	for _, w := range Writers(snap) {
		types[w.Type] = true
	}
	if types[format.ExceptionStream] {
		t.Errorf("exception writer without a crash")
	}
	for _, want := range []format.StreamType{format.ThreadListStream, format.SystemInfoStream, format.MemoryInfoListStream, format.ThreadNamesStream, format.LinuxMapsStream, format.MiscInfoStream, format.BreakpadInfoStream} {
		if !types[want] {
			t.Errorf("no writer for %v", want)
		}
	}

	snap.Crash = &target.CrashContext{ThreadID: targettest.ThreadIDs[0]}
	snap.Mappings = nil
	for i := range snap.Threads {
		snap.Threads[i].Name = ""
	}
	types = map[format.StreamType]bool{}
	for _, w := range Writers(snap) {
		types[w.Type] = true
	}
	if !types[format.ExceptionStream] || types[format.MemoryInfoListStream] {
		t.Errorf("writers = %v", types)
	}
}

func TestMiscAndBreakpadInfo(t *testing.T) {
	snap := snapshot(t)
	snap.Crash = &target.CrashContext{ThreadID: 102}
	buf := dumpbuf.New(0)
	s := NewSession(buf, snap)
	loc := write(t, s, format.MiscInfoStream)
	mi := decode[format.MiscInfo](t, buf.Bytes(), loc)
	if mi.SizeOfInfo != 24 || mi.ProcessID != targettest.PID || mi.Flags1 != format.MiscInfoProcessID|format.MiscInfoProcessTimes {
		t.Errorf("misc info = %+v", mi)
	}
	if mi.ProcessCreateTime != uint32(targettest.StartTime.Unix()) {
		t.Errorf("create time = %d", mi.ProcessCreateTime)
	}
	loc = write(t, s, format.BreakpadInfoStream)
	bi := decode[format.BreakpadInfo](t, buf.Bytes(), loc)
	if bi.Validity != format.BreakpadInfoRequestingThreadIDValid || bi.RequestingThreadID != 102 {
		t.Errorf("breakpad info = %+v", bi)
	}
}
