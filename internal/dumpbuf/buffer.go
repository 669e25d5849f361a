// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dumpbuf implements the in-memory image of a minidump under
// construction.
//
// A Buffer only grows at its end. Space can be reserved before its
// contents are known and patched later, but nothing is ever inserted in
// front of bytes that were already handed out, so every Location stays
// valid for the life of the Buffer. Empty spans get the zero Location,
// so every RVA handed out lies inside the buffer.
//
// Patching a span with data of a different size, or a span that was
// never handed out, is a programming error and panics.
package dumpbuf

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/minidump/format"
)

// ErrTooLarge is returned when an append would move the end of the
// buffer past what a 32-bit RVA can address.
var ErrTooLarge = errors.New("dump exceeds 4 GiB")

// A Buffer is an append-only byte image of a minidump file.
type Buffer struct {
	data []byte
	max  uint64 // largest permitted length
}

// New returns an empty Buffer with room for sizeHint bytes.
func New(sizeHint int) *Buffer {
	return &Buffer{data: make([]byte, 0, sizeHint), max: math.MaxUint32}
}

// Len returns the current length of the buffer, which is also the RVA the
// next append will receive.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the buffer contents. The slice aliases the buffer and is
// only valid until the next append.
func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) grow(n int) (format.Location, error) {
	if n < 0 || uint64(len(b.data))+uint64(n) > b.max {
		return format.Location{}, fmt.Errorf("appending %d bytes at %#x: %w", n, len(b.data), ErrTooLarge)
	}
	if n == 0 {
		return format.Location{}, nil
	}
	loc := format.Location{DataSize: uint32(n), RVA: uint32(len(b.data))}
	b.data = append(b.data, make([]byte, n)...)
	return loc, nil
}

// Reserve appends n zero bytes and returns their location.
func (b *Buffer) Reserve(n int) (format.Location, error) {
	return b.grow(n)
}

// Append appends p and returns its location.
func (b *Buffer) Append(p []byte) (format.Location, error) {
	loc, err := b.grow(len(p))
	if err != nil {
		return loc, err
	}
	copy(b.data[loc.RVA:], p)
	return loc, nil
}

// Patch overwrites the span at loc with p. The span must lie inside the
// buffer and p must be exactly loc.DataSize bytes.
func (b *Buffer) Patch(loc format.Location, p []byte) {
	if uint64(len(p)) != uint64(loc.DataSize) {
		panic(fmt.Sprintf("dumpbuf: patch of %d bytes into %d-byte span at %#x", len(p), loc.DataSize, loc.RVA))
	}
	if loc.End() > uint64(len(b.data)) {
		panic(fmt.Sprintf("dumpbuf: patch span %v beyond end %#x", loc, len(b.data)))
	}
	copy(b.data[loc.RVA:], p)
}

// Slice returns the bytes at loc.
func (b *Buffer) Slice(loc format.Location) []byte {
	if loc.End() > uint64(len(b.data)) {
		panic(fmt.Sprintf("dumpbuf: span %v beyond end %#x", loc, len(b.data)))
	}
	return b.data[loc.RVA:loc.End()]
}
