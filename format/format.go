// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package format defines the fixed-layout records of the minidump file
// format. Every record is little-endian and packed; the Go structs below
// are laid out so that encoding/binary reads and writes them byte for
// byte as they appear on disk.
//
// The layout follows the Microsoft MINIDUMP_* definitions plus the
// breakpad extension streams (see breakpad's minidump_format.h).
package format

import "fmt"

const (
	Signature = 0x504d444d // "MDMP" read as a little-endian uint32
	Version   = 0x0000a793
)

// HeaderSize is the encoded size of Header.
const HeaderSize = 32

// DirectorySize is the encoded size of Directory.
const DirectorySize = 12

// Header is the record at offset 0 of every minidump.
type Header struct {
	Signature          uint32
	Version            uint32
	NumberOfStreams    uint32
	StreamDirectoryRVA uint32
	Checksum           uint32
	TimeDateStamp      uint32
	Flags              uint64
}

// A Location describes where a record lives in the file: DataSize bytes
// starting at offset RVA.
type Location struct {
	DataSize uint32
	RVA      uint32
}

// End returns the offset of the byte just beyond the location.
func (l Location) End() uint64 {
	return uint64(l.RVA) + uint64(l.DataSize)
}

func (l Location) String() string {
	return fmt.Sprintf("[%#x+%#x]", l.RVA, l.DataSize)
}

// Directory is one entry of the stream directory.
type Directory struct {
	StreamType StreamType
	Location   Location
}

// MemoryDescriptor ties a range of target memory to the bytes that hold
// its contents in the file.
type MemoryDescriptor struct {
	StartOfMemoryRange uint64
	Memory             Location
}

// StreamType is the type of the StreamType field of a directory entry.
type StreamType uint32

const (
	UnusedStream             StreamType = 0
	ThreadListStream         StreamType = 3
	ModuleListStream         StreamType = 4
	MemoryListStream         StreamType = 5
	ExceptionStream          StreamType = 6
	SystemInfoStream         StreamType = 7
	ThreadExListStream       StreamType = 8
	Memory64ListStream       StreamType = 9
	CommentStreamA           StreamType = 10
	CommentStreamW           StreamType = 11
	HandleDataStream         StreamType = 12
	UnloadedModuleListStream StreamType = 14
	MiscInfoStream           StreamType = 15
	MemoryInfoListStream     StreamType = 16
	ThreadInfoListStream     StreamType = 17
	ThreadNamesStream        StreamType = 24

	// Breakpad extension streams.
	BreakpadInfoStream    StreamType = 0x47670001
	AssertionInfoStream   StreamType = 0x47670002
	LinuxCPUInfoStream    StreamType = 0x47670003
	LinuxProcStatusStream StreamType = 0x47670004
	LinuxLSBReleaseStream StreamType = 0x47670005
	LinuxCmdLineStream    StreamType = 0x47670006
	LinuxEnvironStream    StreamType = 0x47670007
	LinuxAuxvStream       StreamType = 0x47670008
	LinuxMapsStream       StreamType = 0x47670009
	LinuxDSODebugStream   StreamType = 0x4767000a
)

var streamNames = map[StreamType]string{
	UnusedStream:             "unused",
	ThreadListStream:         "thread_list",
	ModuleListStream:         "module_list",
	MemoryListStream:         "memory_list",
	ExceptionStream:          "exception",
	SystemInfoStream:         "system_info",
	ThreadExListStream:       "thread_ex_list",
	Memory64ListStream:       "memory64_list",
	CommentStreamA:           "comment_a",
	CommentStreamW:           "comment_w",
	HandleDataStream:         "handle_data",
	UnloadedModuleListStream: "unloaded_module_list",
	MiscInfoStream:           "misc_info",
	MemoryInfoListStream:     "memory_info_list",
	ThreadInfoListStream:     "thread_info_list",
	ThreadNamesStream:        "thread_names",
	BreakpadInfoStream:       "breakpad_info",
	AssertionInfoStream:      "assertion_info",
	LinuxCPUInfoStream:       "linux_cpu_info",
	LinuxProcStatusStream:    "linux_proc_status",
	LinuxLSBReleaseStream:    "linux_lsb_release",
	LinuxCmdLineStream:       "linux_cmd_line",
	LinuxEnvironStream:       "linux_environ",
	LinuxAuxvStream:          "linux_auxv",
	LinuxMapsStream:          "linux_maps",
	LinuxDSODebugStream:      "linux_dso_debug",
}

func (t StreamType) String() string {
	if s, ok := streamNames[t]; ok {
		return s
	}
	return fmt.Sprintf("stream(%#x)", uint32(t))
}

// ParseStreamType returns the stream type with the given name, as
// printed by StreamType.String.
func ParseStreamType(name string) (StreamType, error) {
	for t, s := range streamNames {
		if s == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown stream type %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (t StreamType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *StreamType) UnmarshalText(b []byte) error {
	v, err := ParseStreamType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// FileFlags is the type of the Flags field of Header.
type FileFlags uint64

const (
	FileNormal             FileFlags = 0x00000000
	FileWithDataSegs       FileFlags = 0x00000001
	FileWithFullMemory     FileFlags = 0x00000002
	FileWithFullMemoryInfo FileFlags = 0x00000800
	FileWithThreadInfo     FileFlags = 0x00001000
)
