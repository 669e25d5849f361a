// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arch contains architecture-specific definitions for the
// processes a minidump can describe.
package arch

import (
	"encoding/binary"
)

// Processor architecture identifiers as stored in the minidump
// system info stream.
const (
	ProcessorX86     = 0
	ProcessorARM     = 5
	ProcessorAMD64   = 9
	ProcessorARM64   = 12
	ProcessorUnknown = 0xffff
)

// Architecture defines the architecture-specific details for a given machine.
type Architecture struct {
	// Name is the GOARCH spelling of the architecture.
	Name string
	// IntSize is the size of the int type, in bytes.
	IntSize int
	// PointerSize is the size of a pointer, in bytes.
	PointerSize int
	// ByteOrder is the byte order for ints and pointers.
	ByteOrder binary.ByteOrder
	// RedZone is the number of bytes below the stack pointer that
	// leaf functions may use without moving it.
	RedZone uint64
	// Processor is the minidump processor architecture identifier.
	Processor uint16
}

func (a *Architecture) Int(buf []byte) int64 {
	return int64(a.Uint(buf))
}

func (a *Architecture) Uint(buf []byte) uint64 {
	if len(buf) != a.IntSize {
		panic("bad IntSize")
	}
	switch a.IntSize {
	case 4:
		return uint64(a.ByteOrder.Uint32(buf[:4]))
	case 8:
		return a.ByteOrder.Uint64(buf[:8])
	}
	panic("no IntSize")
}

func (a *Architecture) Uintptr(buf []byte) uint64 {
	if len(buf) != a.PointerSize {
		panic("bad PointerSize")
	}
	switch a.PointerSize {
	case 4:
		return uint64(a.ByteOrder.Uint32(buf[:4]))
	case 8:
		return a.ByteOrder.Uint64(buf[:8])
	}
	panic("no PointerSize")
}

var AMD64 = Architecture{
	Name:        "amd64",
	IntSize:     8,
	PointerSize: 8,
	ByteOrder:   binary.LittleEndian,
	RedZone:     128,
	Processor:   ProcessorAMD64,
}

var X86 = Architecture{
	Name:        "386",
	IntSize:     4,
	PointerSize: 4,
	ByteOrder:   binary.LittleEndian,
	Processor:   ProcessorX86,
}

var ARM64 = Architecture{
	Name:        "arm64",
	IntSize:     8,
	PointerSize: 8,
	ByteOrder:   binary.LittleEndian,
	RedZone:     128,
	Processor:   ProcessorARM64,
}

var ARM = Architecture{
	Name:        "arm",
	IntSize:     4,
	PointerSize: 4,
	ByteOrder:   binary.LittleEndian,
	Processor:   ProcessorARM,
}

// ForGOARCH returns the architecture named by a GOARCH value.
func ForGOARCH(goarch string) (*Architecture, bool) {
	switch goarch {
	case "amd64":
		return &AMD64, true
	case "386":
		return &X86, true
	case "arm64":
		return &ARM64, true
	case "arm":
		return &ARM, true
	}
	return nil, false
}

// ForProcessor returns the architecture with the given minidump
// processor identifier.
func ForProcessor(p uint16) (*Architecture, bool) {
	for _, a := range []*Architecture{&AMD64, &X86, &ARM64, &ARM} {
		if a.Processor == p {
			return a, true
		}
	}
	return nil, false
}
