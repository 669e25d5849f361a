// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package format

// Thread is an entry in the ThreadList stream.
type Thread struct {
	ThreadID      uint32
	SuspendCount  uint32
	PriorityClass uint32
	Priority      uint32
	Teb           uint64
	Stack         MemoryDescriptor
	ThreadContext Location
}

// VSFixedFileInfo is the version resource of a module.
type VSFixedFileInfo struct {
	Signature        uint32
	StructVersion    uint32
	FileVersionHi    uint32
	FileVersionLo    uint32
	ProductVersionHi uint32
	ProductVersionLo uint32
	FileFlagsMask    uint32
	FileFlags        uint32
	FileOS           uint32
	FileType         uint32
	FileSubtype      uint32
	FileDateHi       uint32
	FileDateLo       uint32
}

// Module is an entry in the ModuleList stream.
type Module struct {
	BaseOfImage   uint64
	SizeOfImage   uint32
	Checksum      uint32
	TimeDateStamp uint32
	ModuleNameRVA uint32
	VersionInfo   VSFixedFileInfo
	CVRecord      Location
	MiscRecord    Location
	Reserved0     uint64
	Reserved1     uint64
}

// Platform identifiers for SystemInfo.PlatformID.
const (
	PlatformWin32NT = 2
	PlatformMacOSX  = 0x8101
	PlatformIOS     = 0x8102
	PlatformLinux   = 0x8201
	PlatformSolaris = 0x8202
	PlatformAndroid = 0x8203
	PlatformFuchsia = 0x8206
)

// SystemInfo is the payload of the SystemInfo stream.
//
// CPU holds the CPU_INFORMATION union: for x86 and amd64 it is the three
// vendor id words followed by the version, feature and AMD extended
// feature words; for other processors it is two 64-bit feature words.
type SystemInfo struct {
	ProcessorArchitecture uint16
	ProcessorLevel        uint16
	ProcessorRevision     uint16
	NumberOfProcessors    uint8
	ProductType           uint8
	MajorVersion          uint32
	MinorVersion          uint32
	BuildNumber           uint32
	PlatformID            uint32
	CSDVersionRVA         uint32
	SuiteMask             uint16
	Reserved2             uint16
	CPU                   [6]uint32
}

// SetX86CPU fills the x86 variant of the CPU union. The vendor string is
// split into the EBX, EDX, ECX words returned by CPUID leaf 0.
func (s *SystemInfo) SetX86CPU(vendor string, version, features, amdFeatures uint32) {
	var v [12]byte
	copy(v[:], vendor)
	for i := 0; i < 3; i++ {
		s.CPU[i] = uint32(v[4*i]) | uint32(v[4*i+1])<<8 | uint32(v[4*i+2])<<16 | uint32(v[4*i+3])<<24
	}
	s.CPU[3] = version
	s.CPU[4] = features
	s.CPU[5] = amdFeatures
}

// X86Vendor returns the vendor string stored by SetX86CPU.
func (s *SystemInfo) X86Vendor() string {
	var v []byte
	for i := 0; i < 3; i++ {
		w := s.CPU[i]
		v = append(v, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	for len(v) > 0 && v[len(v)-1] == 0 {
		v = v[:len(v)-1]
	}
	return string(v)
}

// SetProcessorFeatures fills the non-x86 variant of the CPU union.
func (s *SystemInfo) SetProcessorFeatures(f0, f1 uint64) {
	s.CPU = [6]uint32{uint32(f0), uint32(f0 >> 32), uint32(f1), uint32(f1 >> 32), 0, 0}
}

// MaxExceptionParameters is the capacity of ExceptionRecord.ExceptionInformation.
const MaxExceptionParameters = 15

// ExceptionRecord describes the fault that triggered the dump. On Linux
// the code is the signal number, the flags are si_code and the address
// is si_addr.
type ExceptionRecord struct {
	ExceptionCode        uint32
	ExceptionFlags       uint32
	ExceptionRecord      uint64
	ExceptionAddress     uint64
	NumberParameters     uint32
	_                    uint32
	ExceptionInformation [MaxExceptionParameters]uint64
}

// ExceptionInfo is the payload of the Exception stream.
type ExceptionInfo struct {
	ThreadID        uint32
	_               uint32
	ExceptionRecord ExceptionRecord
	ThreadContext   Location
}

// Encoded sizes of MemoryInfoListHeader and MemoryInfo.
const (
	MemoryInfoListHeaderSize = 16
	MemoryInfoSize           = 48
)

// MemoryInfoListHeader precedes the entries of the MemoryInfoList stream.
type MemoryInfoListHeader struct {
	SizeOfHeader    uint32
	SizeOfEntry     uint32
	NumberOfEntries uint64
}

// MemoryInfo is an entry in the MemoryInfoList stream.
type MemoryInfo struct {
	BaseAddress       uint64
	AllocationBase    uint64
	AllocationProtect MemoryProtection
	_                 uint32
	RegionSize        uint64
	State             MemoryState
	Protect           MemoryProtection
	Type              MemoryType
	_                 uint32
}

// MemoryState is the type of the State field of MemoryInfo.
type MemoryState uint32

const (
	MemoryStateCommit  MemoryState = 0x1000
	MemoryStateReserve MemoryState = 0x2000
	MemoryStateFree    MemoryState = 0x10000
)

// MemoryType is the type of the Type field of MemoryInfo.
type MemoryType uint32

const (
	MemoryTypePrivate MemoryType = 0x20000
	MemoryTypeMapped  MemoryType = 0x40000
	MemoryTypeImage   MemoryType = 0x1000000
)

// MemoryProtection is the type of the Protect fields of MemoryInfo.
type MemoryProtection uint32

const (
	MemoryProtectNoAccess         MemoryProtection = 0x01
	MemoryProtectReadOnly         MemoryProtection = 0x02
	MemoryProtectReadWrite        MemoryProtection = 0x04
	MemoryProtectWriteCopy        MemoryProtection = 0x08
	MemoryProtectExecute          MemoryProtection = 0x10
	MemoryProtectExecuteRead      MemoryProtection = 0x20
	MemoryProtectExecuteReadWrite MemoryProtection = 0x40
	MemoryProtectExecuteWriteCopy MemoryProtection = 0x80
	MemoryProtectPageGuard        MemoryProtection = 0x100
)

// ThreadName is an entry in the ThreadNames stream. The name is an
// MDString at RVAOfThreadName.
type ThreadName struct {
	ThreadID        uint32
	RVAOfThreadName uint64
}

// Validity bits of BreakpadInfo.
const (
	BreakpadInfoDumpThreadIDValid       = 1 << 0
	BreakpadInfoRequestingThreadIDValid = 1 << 1
)

// BreakpadInfo is the payload of the BreakpadInfo stream: which thread
// produced the dump and which thread asked for it.
type BreakpadInfo struct {
	Validity           uint32
	DumpThreadID       uint32
	RequestingThreadID uint32
}

// Flags1 bits of MiscInfo.
const (
	MiscInfoProcessID    = 1 << 0
	MiscInfoProcessTimes = 1 << 1
)

// MiscInfo is the payload of the MiscInfo stream.
type MiscInfo struct {
	SizeOfInfo        uint32
	Flags1            uint32
	ProcessID         uint32
	ProcessCreateTime uint32
	ProcessUserTime   uint32
	ProcessKernelTime uint32
}
