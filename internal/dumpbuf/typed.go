// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dumpbuf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/minidump/format"
)

// encode returns the packed little-endian encoding of v, which must be a
// fixed-size value, a pointer to one, or a slice of them.
func encode(v interface{}) []byte {
	n := binary.Size(v)
	if n < 0 {
		panic(fmt.Sprintf("dumpbuf: %T has no fixed size", v))
	}
	var buf bytes.Buffer
	buf.Grow(n)
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		panic(fmt.Sprintf("dumpbuf: encoding %T: %v", v, err))
	}
	return buf.Bytes()
}

// A Handle is a reserved span holding one record of type T.
type Handle[T any] struct {
	b   *Buffer
	loc format.Location
}

// Reserve appends space for one T and returns a handle for filling it in
// once its value is known.
func Reserve[T any](b *Buffer) (Handle[T], error) {
	var zero T
	n := binary.Size(&zero)
	if n < 0 {
		panic(fmt.Sprintf("dumpbuf: %T has no fixed size", zero))
	}
	loc, err := b.Reserve(n)
	return Handle[T]{b: b, loc: loc}, err
}

// Location returns the span of the reserved record.
func (h Handle[T]) Location() format.Location {
	return h.loc
}

// Set writes v into the reserved span.
func (h Handle[T]) Set(v T) {
	h.b.Patch(h.loc, encode(&v))
}

// Write appends one fixed-layout record. v may be a value or a pointer.
func Write(b *Buffer, v interface{}) (format.Location, error) {
	return b.Append(encode(v))
}

// WriteArray appends items back to back and returns one location
// spanning all of them.
func WriteArray[T any](b *Buffer, items []T) (format.Location, error) {
	if len(items) == 0 {
		return format.Location{}, nil
	}
	return b.Append(encode(items))
}

// WriteList appends a uint32 element count followed by items, the shape
// of the thread, module and memory list streams.
func WriteList[T any](b *Buffer, items []T) (format.Location, error) {
	p := binary.LittleEndian.AppendUint32(nil, uint32(len(items)))
	if len(items) > 0 {
		p = append(p, encode(items)...)
	}
	return b.Append(p)
}

// WriteString appends s as an MDString.
func WriteString(b *Buffer, s string) (format.Location, error) {
	return b.Append(format.EncodeString(s))
}

// WriteHeaderArray appends a fixed header followed by items, the shape of
// the memory info list stream, and returns one location spanning both.
func WriteHeaderArray[H, T any](b *Buffer, hdr H, items []T) (format.Location, error) {
	p := encode(&hdr)
	if len(items) > 0 {
		p = append(p, encode(items)...)
	}
	return b.Append(p)
}

// PatchArray overwrites the span at loc, previously reserved for
// len(items) records, with items.
func PatchArray[T any](b *Buffer, loc format.Location, items []T) {
	if len(items) == 0 {
		b.Patch(loc, nil)
		return
	}
	b.Patch(loc, encode(items))
}
