// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/minidump/arch"
	"golang.org/x/minidump/format"
)

// A Reader gives access to the streams of a minidump held in memory. It
// only depends on packages format and arch, so it checks the writer's output
// rather than sharing its assumptions.
type Reader struct {
	Header    format.Header
	Directory []format.Directory

	data []byte
}

// Open reads the minidump in the named file. Compressed dumps are
// decompressed.
func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse checks the header and directory of a minidump. Compressed dumps
// are decompressed.
func Parse(data []byte) (*Reader, error) {
	if IsCompressed(data) {
		var err error
		if data, err = Decompress(data); err != nil {
			return nil, fmt.Errorf("decompressing: %w", err)
		}
	}
	r := &Reader{data: data}
	if len(data) < format.HeaderSize {
		return nil, fmt.Errorf("file too short for header: %d bytes", len(data))
	}
	if err := decode(data, &r.Header); err != nil {
		return nil, err
	}
	if r.Header.Signature != format.Signature {
		return nil, fmt.Errorf("bad signature %#x", r.Header.Signature)
	}
	if r.Header.Version&0xffff != format.Version&0xffff {
		return nil, fmt.Errorf("unsupported version %#x", r.Header.Version)
	}
	if uint64(r.Header.NumberOfStreams)*format.DirectorySize > uint64(len(data)) {
		return nil, fmt.Errorf("directory of %d streams exceeds file", r.Header.NumberOfStreams)
	}
	dir := format.Location{
		RVA:      r.Header.StreamDirectoryRVA,
		DataSize: r.Header.NumberOfStreams * format.DirectorySize,
	}
	b, err := r.bytes(dir)
	if err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}
	r.Directory = make([]format.Directory, r.Header.NumberOfStreams)
	if err := decode(b, r.Directory); err != nil {
		return nil, err
	}
	for _, d := range r.Directory {
		if _, err := r.bytes(d.Location); err != nil {
			return nil, fmt.Errorf("%v stream: %w", d.StreamType, err)
		}
	}
	return r, nil
}

// Size returns the size of the uncompressed dump.
func (r *Reader) Size() int {
	return len(r.data)
}

var errTruncated = errors.New("record truncated")

func (r *Reader) bytes(loc format.Location) ([]byte, error) {
	if loc.End() > uint64(len(r.data)) {
		return nil, fmt.Errorf("%v beyond end of file %#x", loc, len(r.data))
	}
	return r.data[loc.RVA:loc.End()], nil
}

func decode(b []byte, v interface{}) error {
	if n := binary.Size(v); n < 0 || n > len(b) {
		return errTruncated
	}
	return binary.Read(bytes.NewReader(b), binary.LittleEndian, v)
}

// list decodes a uint32 count followed by that many records.
func list[T any](b []byte) ([]T, error) {
	if len(b) < 4 {
		return nil, errTruncated
	}
	n := binary.LittleEndian.Uint32(b)
	var zero T
	if uint64(n)*uint64(binary.Size(&zero)) > uint64(len(b)-4) {
		return nil, fmt.Errorf("list of %d entries exceeds stream", n)
	}
	items := make([]T, n)
	if err := decode(b[4:], items); err != nil {
		return nil, err
	}
	return items, nil
}

// Stream returns the payload of the first stream of type t.
func (r *Reader) Stream(t format.StreamType) ([]byte, bool) {
	for _, d := range r.Directory {
		if d.StreamType == t {
			b, err := r.bytes(d.Location)
			return b, err == nil
		}
	}
	return nil, false
}

func (r *Reader) stream(t format.StreamType) ([]byte, error) {
	b, ok := r.Stream(t)
	if !ok {
		return nil, fmt.Errorf("no %v stream", t)
	}
	return b, nil
}

func (r *Reader) string(rva uint32) (string, error) {
	if uint64(rva) >= uint64(len(r.data)) {
		return "", fmt.Errorf("string at %#x beyond end of file", rva)
	}
	return format.DecodeString(r.data[rva:])
}

// SystemInfo returns the system info record and its OS version string.
func (r *Reader) SystemInfo() (*format.SystemInfo, string, error) {
	b, err := r.stream(format.SystemInfoStream)
	if err != nil {
		return nil, "", err
	}
	si := new(format.SystemInfo)
	if err := decode(b, si); err != nil {
		return nil, "", err
	}
	version, err := r.string(si.CSDVersionRVA)
	if err != nil {
		return nil, "", fmt.Errorf("os version: %w", err)
	}
	return si, version, nil
}

// processor returns the processor the dump was taken on.
func (r *Reader) processor() uint16 {
	si, _, err := r.SystemInfo()
	if err != nil {
		return arch.ProcessorUnknown
	}
	return si.ProcessorArchitecture
}

// A Thread is a decoded thread list entry.
type Thread struct {
	ID    uint32
	Stack format.MemoryDescriptor
	// Context is nil if the register record couldn't be decoded.
	Context format.CPUContext
}

// Threads decodes the thread list.
func (r *Reader) Threads() ([]Thread, error) {
	b, err := r.stream(format.ThreadListStream)
	if err != nil {
		return nil, err
	}
	ts, err := list[format.Thread](b)
	if err != nil {
		return nil, err
	}
	proc := r.processor()
	threads := make([]Thread, len(ts))
	for i, t := range ts {
		threads[i] = Thread{ID: t.ThreadID, Stack: t.Stack}
		raw, err := r.bytes(t.ThreadContext)
		if err != nil {
			return nil, fmt.Errorf("thread %d: %w", t.ThreadID, err)
		}
		threads[i].Context, _ = format.DecodeContext(proc, raw)
	}
	return threads, nil
}

// A Module is a decoded module list entry.
type Module struct {
	Base          uint64
	Size          uint32
	Name          string
	TimeDateStamp uint32
	Checksum      uint32
	// CodeView is the raw CodeView record. See format.ParseCVRecord.
	CodeView []byte
}

// Modules decodes the module list.
func (r *Reader) Modules() ([]Module, error) {
	b, err := r.stream(format.ModuleListStream)
	if err != nil {
		return nil, err
	}
	ms, err := list[format.Module](b)
	if err != nil {
		return nil, err
	}
	mods := make([]Module, len(ms))
	for i, m := range ms {
		mods[i] = Module{
			Base:          m.BaseOfImage,
			Size:          m.SizeOfImage,
			TimeDateStamp: m.TimeDateStamp,
			Checksum:      m.Checksum,
		}
		if mods[i].Name, err = r.string(m.ModuleNameRVA); err != nil {
			return nil, fmt.Errorf("module at %#x: %w", m.BaseOfImage, err)
		}
		if m.CVRecord.DataSize > 0 {
			if mods[i].CodeView, err = r.bytes(m.CVRecord); err != nil {
				return nil, fmt.Errorf("module %s: %w", mods[i].Name, err)
			}
		}
	}
	return mods, nil
}

// MemoryList decodes the memory list.
func (r *Reader) MemoryList() ([]format.MemoryDescriptor, error) {
	b, err := r.stream(format.MemoryListStream)
	if err != nil {
		return nil, err
	}
	return list[format.MemoryDescriptor](b)
}

// Memory returns the bytes saved for d.
func (r *Reader) Memory(d format.MemoryDescriptor) ([]byte, error) {
	return r.bytes(d.Memory)
}

// ReadMemory returns up to n saved bytes of the inferior starting at
// addr. The result is shorter than n if the saved region ends first.
func (r *Reader) ReadMemory(addr uint64, n int) ([]byte, error) {
	ds, err := r.MemoryList()
	if err != nil {
		return nil, err
	}
	for _, d := range ds {
		start := d.StartOfMemoryRange
		if addr < start || addr-start >= uint64(d.Memory.DataSize) {
			continue
		}
		b, err := r.Memory(d)
		if err != nil {
			return nil, err
		}
		b = b[addr-start:]
		if len(b) > n {
			b = b[:n]
		}
		return b, nil
	}
	return nil, fmt.Errorf("address %#x not in dump", addr)
}

// Exception decodes the exception stream.
func (r *Reader) Exception() (*format.ExceptionInfo, error) {
	b, err := r.stream(format.ExceptionStream)
	if err != nil {
		return nil, err
	}
	e := new(format.ExceptionInfo)
	if err := decode(b, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ThreadNames decodes the thread names stream.
func (r *Reader) ThreadNames() (map[uint32]string, error) {
	b, err := r.stream(format.ThreadNamesStream)
	if err != nil {
		return nil, err
	}
	ns, err := list[format.ThreadName](b)
	if err != nil {
		return nil, err
	}
	names := make(map[uint32]string, len(ns))
	for _, n := range ns {
		if n.RVAOfThreadName > uint64(len(r.data)) {
			return nil, fmt.Errorf("name of thread %d beyond end of file", n.ThreadID)
		}
		if names[n.ThreadID], err = r.string(uint32(n.RVAOfThreadName)); err != nil {
			return nil, fmt.Errorf("name of thread %d: %w", n.ThreadID, err)
		}
	}
	return names, nil
}

// MemoryInfo decodes the memory info list.
func (r *Reader) MemoryInfo() ([]format.MemoryInfo, error) {
	b, err := r.stream(format.MemoryInfoListStream)
	if err != nil {
		return nil, err
	}
	var hdr format.MemoryInfoListHeader
	if err := decode(b, &hdr); err != nil {
		return nil, err
	}
	if hdr.SizeOfHeader < format.MemoryInfoListHeaderSize || hdr.SizeOfEntry < format.MemoryInfoSize {
		return nil, fmt.Errorf("memory info sizes %d/%d too small", hdr.SizeOfHeader, hdr.SizeOfEntry)
	}
	b = b[min(int(hdr.SizeOfHeader), len(b)):]
	if hdr.NumberOfEntries > uint64(len(b))/uint64(hdr.SizeOfEntry) {
		return nil, fmt.Errorf("memory info list of %d entries exceeds stream", hdr.NumberOfEntries)
	}
	infos := make([]format.MemoryInfo, hdr.NumberOfEntries)
	for i := range infos {
		if err := decode(b[uint64(i)*uint64(hdr.SizeOfEntry):], &infos[i]); err != nil {
			return nil, err
		}
	}
	return infos, nil
}

// MiscInfo decodes the misc info stream.
func (r *Reader) MiscInfo() (*format.MiscInfo, error) {
	b, err := r.stream(format.MiscInfoStream)
	if err != nil {
		return nil, err
	}
	m := new(format.MiscInfo)
	if err := decode(b, m); err != nil {
		return nil, err
	}
	return m, nil
}

// BreakpadInfo decodes the breakpad info stream.
func (r *Reader) BreakpadInfo() (*format.BreakpadInfo, error) {
	b, err := r.stream(format.BreakpadInfoStream)
	if err != nil {
		return nil, err
	}
	bi := new(format.BreakpadInfo)
	if err := decode(b, bi); err != nil {
		return nil, err
	}
	return bi, nil
}
