// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package format

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/minidump/arch"
)

// A CPUContext is a thread register set in one of the fixed minidump
// layouts. Implementations are pointers to fixed-size structs, so they
// can be handed to encoding/binary directly.
type CPUContext interface {
	// Processor returns the arch.Processor* identifier of the layout.
	Processor() uint16
	PC() uint64
	SP() uint64
}

// Uint128 is a 128-bit vector register, low half first.
type Uint128 struct {
	Low  uint64
	High uint64
}

// Context flag bits. The architecture bit must always be set.
const (
	ContextFlagAMD64     = 0x00100000
	ContextAMD64Control  = ContextFlagAMD64 | 0x01
	ContextAMD64Integer  = ContextFlagAMD64 | 0x02
	ContextAMD64Segments = ContextFlagAMD64 | 0x04
	ContextAMD64Float    = ContextFlagAMD64 | 0x08
	ContextAMD64Debug    = ContextFlagAMD64 | 0x10
	ContextAMD64Full     = ContextAMD64Control | ContextAMD64Integer | ContextAMD64Float
	ContextAMD64All      = ContextAMD64Full | ContextAMD64Segments | ContextAMD64Debug
	ContextFlagX86       = 0x00010000
	ContextX86Control    = ContextFlagX86 | 0x01
	ContextX86Integer    = ContextFlagX86 | 0x02
	ContextX86Segments   = ContextFlagX86 | 0x04
	ContextX86Float      = ContextFlagX86 | 0x08
	ContextX86Extended   = ContextFlagX86 | 0x20
	ContextX86Full       = ContextX86Control | ContextX86Integer | ContextX86Segments
	ContextFlagARM64     = 0x00400000
	ContextARM64Control  = ContextFlagARM64 | 0x01
	ContextARM64Integer  = ContextFlagARM64 | 0x02
	ContextARM64Float    = ContextFlagARM64 | 0x04
	ContextARM64Full     = ContextARM64Control | ContextARM64Integer | ContextARM64Float
)

// ContextAMD64 is the amd64 register set. FltSave holds the 512-byte
// FXSAVE image (the same layout as Linux user_fpregs_struct).
type ContextAMD64 struct {
	P1Home, P2Home, P3Home, P4Home, P5Home, P6Home uint64

	ContextFlags uint32
	MxCsr        uint32

	SegCs, SegDs, SegEs, SegFs, SegGs, SegSs uint16
	EFlags                                   uint32

	Dr0, Dr1, Dr2, Dr3, Dr6, Dr7 uint64

	Rax, Rcx, Rdx, Rbx, Rsp, Rbp, Rsi, Rdi uint64
	R8, R9, R10, R11, R12, R13, R14, R15   uint64
	Rip                                    uint64

	FltSave [512]byte

	VectorRegister [26]Uint128
	VectorControl  uint64

	DebugControl         uint64
	LastBranchToRip      uint64
	LastBranchFromRip    uint64
	LastExceptionToRip   uint64
	LastExceptionFromRip uint64
}

func (c *ContextAMD64) Processor() uint16 { return arch.ProcessorAMD64 }
func (c *ContextAMD64) PC() uint64        { return c.Rip }
func (c *ContextAMD64) SP() uint64        { return c.Rsp }

// ContextARM64 is the arm64 register set. X holds x0 through x30
// (x29 is the frame pointer, x30 the link register).
type ContextARM64 struct {
	ContextFlags uint32
	Cpsr         uint32
	X            [31]uint64
	Sp           uint64
	Pc           uint64
	V            [32]Uint128
	Fpcr         uint32
	Fpsr         uint32
	Bcr          [8]uint32
	Bvr          [8]uint64
	Wcr          [2]uint32
	Wvr          [2]uint64
}

func (c *ContextARM64) Processor() uint16 { return arch.ProcessorARM64 }
func (c *ContextARM64) PC() uint64        { return c.Pc }
func (c *ContextARM64) SP() uint64        { return c.Sp }

// FloatingSaveAreaX86 is the x87 state of a ContextX86.
type FloatingSaveAreaX86 struct {
	ControlWord   uint32
	StatusWord    uint32
	TagWord       uint32
	ErrorOffset   uint32
	ErrorSelector uint32
	DataOffset    uint32
	DataSelector  uint32
	RegisterArea  [80]byte
	Cr0NpxState   uint32
}

// ContextX86 is the 32-bit x86 register set.
type ContextX86 struct {
	ContextFlags uint32

	Dr0, Dr1, Dr2, Dr3, Dr6, Dr7 uint32

	FloatSave FloatingSaveAreaX86

	SegGs, SegFs, SegEs, SegDs uint32

	Edi, Esi, Ebx, Edx, Ecx, Eax uint32

	Ebp, Eip, SegCs, EFlags, Esp, SegSs uint32

	ExtendedRegisters [512]byte
}

func (c *ContextX86) Processor() uint16 { return arch.ProcessorX86 }
func (c *ContextX86) PC() uint64        { return uint64(c.Eip) }
func (c *ContextX86) SP() uint64        { return uint64(c.Esp) }

// NewContext returns an empty register set for the given processor.
func NewContext(processor uint16) (CPUContext, error) {
	switch processor {
	case arch.ProcessorAMD64:
		return &ContextAMD64{ContextFlags: ContextAMD64Full}, nil
	case arch.ProcessorARM64:
		return &ContextARM64{ContextFlags: ContextARM64Full}, nil
	case arch.ProcessorX86:
		return &ContextX86{ContextFlags: ContextX86Full}, nil
	}
	return nil, fmt.Errorf("no context layout for processor %#x", processor)
}

// DecodeContext decodes a register set of the given processor from raw.
func DecodeContext(processor uint16, raw []byte) (CPUContext, error) {
	c, err := NewContext(processor)
	if err != nil {
		return nil, err
	}
	if n := binary.Size(c); len(raw) < n {
		return nil, fmt.Errorf("context record is %d bytes, want %d", len(raw), n)
	}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, c); err != nil {
		return nil, err
	}
	return c, nil
}
