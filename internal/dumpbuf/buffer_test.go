// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dumpbuf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"golang.org/x/minidump/format"
)

func TestAppendIsMonotonic(t *testing.T) {
	b := New(0)
	l1, err := b.Append([]byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	l2, err := b.Reserve(5)
	if err != nil {
		t.Fatal(err)
	}
	l3, err := b.Append([]byte{1})
	if err != nil {
		t.Fatal(err)
	}
	want := []format.Location{{DataSize: 3, RVA: 0}, {DataSize: 5, RVA: 3}, {DataSize: 1, RVA: 8}}
	for i, got := range []format.Location{l1, l2, l3} {
		if got != want[i] {
			t.Errorf("location %d = %v, want %v", i, got, want[i])
		}
	}
	if b.Len() != 9 {
		t.Errorf("Len() = %d, want 9", b.Len())
	}
	b.Patch(l2, []byte("hello"))
	if got := string(b.Bytes()); got != "abchello\x01" {
		t.Errorf("contents after patch = %q", got)
	}
}

func expectPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	f()
}

func TestPatchMismatchPanics(t *testing.T) {
	b := New(0)
	loc, _ := b.Reserve(4)
	expectPanic(t, "short patch", func() { b.Patch(loc, []byte{1, 2}) })
	expectPanic(t, "long patch", func() { b.Patch(loc, []byte{1, 2, 3, 4, 5}) })
	expectPanic(t, "patch past end", func() { b.Patch(format.Location{DataSize: 4, RVA: 2}, []byte{1, 2, 3, 4}) })
}

func TestEmptySpans(t *testing.T) {
	b := New(0)
	if _, err := b.Append([]byte("abcd")); err != nil {
		t.Fatal(err)
	}
	arr, err := WriteArray[uint32](b, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := b.Reserve(0)
	if err != nil {
		t.Fatal(err)
	}
	app, err := b.Append(nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, loc := range []format.Location{arr, res, app} {
		if loc != (format.Location{}) {
			t.Errorf("empty span %d = %v, want the zero location", i, loc)
		}
	}
	if b.Len() != 4 {
		t.Errorf("Len() = %d after empty appends, want 4", b.Len())
	}
	PatchArray[uint32](b, arr, nil)
}

func TestTooLarge(t *testing.T) {
	b := New(0)
	b.max = 8
	if _, err := b.Append(make([]byte, 6)); err != nil {
		t.Fatal(err)
	}
	_, err := b.Reserve(3)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Reserve past limit: got %v, want ErrTooLarge", err)
	}
	if b.Len() != 6 {
		t.Errorf("failed append changed length to %d", b.Len())
	}
}

type pair struct {
	A uint32
	B uint64
}

func TestReserveThenSet(t *testing.T) {
	b := New(0)
	b.Append([]byte{0xff})
	h, err := Reserve[pair](b)
	if err != nil {
		t.Fatal(err)
	}
	if h.Location() != (format.Location{DataSize: 12, RVA: 1}) {
		t.Fatalf("reserved %v", h.Location())
	}
	if _, err := WriteString(b, "x"); err != nil {
		t.Fatal(err)
	}
	h.Set(pair{A: 7, B: 9})
	var got pair
	binary.Read(bytes.NewReader(b.Slice(h.Location())), binary.LittleEndian, &got)
	if got != (pair{7, 9}) {
		t.Errorf("patched value = %+v", got)
	}
}

func TestWriteList(t *testing.T) {
	b := New(0)
	loc, err := WriteList(b, []pair{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatal(err)
	}
	if loc.DataSize != 4+2*12 {
		t.Errorf("list size = %d", loc.DataSize)
	}
	if n := binary.LittleEndian.Uint32(b.Slice(loc)); n != 2 {
		t.Errorf("count = %d", n)
	}
	loc, err = WriteList[pair](b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if loc.DataSize != 4 {
		t.Errorf("empty list size = %d, want 4", loc.DataSize)
	}
	arr, _ := WriteArray(b, []uint32{1, 2, 3})
	if arr.DataSize != 12 {
		t.Errorf("array size = %d", arr.DataSize)
	}
}

func TestWriteHeaderArray(t *testing.T) {
	b := New(0)
	loc, err := WriteHeaderArray(b, format.MemoryInfoListHeader{SizeOfHeader: 16, SizeOfEntry: 48, NumberOfEntries: 2}, make([]format.MemoryInfo, 2))
	if err != nil {
		t.Fatal(err)
	}
	if loc.DataSize != 16+2*48 {
		t.Errorf("size = %d, want %d", loc.DataSize, 16+2*48)
	}
}
