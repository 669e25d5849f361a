// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"golang.org/x/minidump/format"
	"golang.org/x/minidump/internal/dumpbuf"
	"golang.org/x/minidump/target"
)

// covers reports whether d already holds all of r's bytes.
func covers(d format.MemoryDescriptor, r *target.MemoryRegion) bool {
	return d.StartOfMemoryRange <= r.Start &&
		r.End() <= d.StartOfMemoryRange+uint64(d.Memory.DataSize)
}

// writeMemoryList writes the thread stacks followed by the application
// memory, then the descriptor array. A region whose bytes are already
// in the list is not repeated.
func writeMemoryList(s *Session) (format.Location, error) {
	var ds []format.MemoryDescriptor
	add := func(r *target.MemoryRegion) error {
		if len(r.Data) == 0 {
			return nil
		}
		for _, d := range ds {
			if covers(d, r) {
				return nil
			}
		}
		d, _, err := s.memory(r)
		if err != nil {
			return err
		}
		ds = append(ds, d)
		return nil
	}
	for i := range s.snap.Threads {
		if err := add(&s.snap.Threads[i].Stack); err != nil {
			return format.Location{}, err
		}
	}
	for i := range s.snap.Memory {
		if err := add(&s.snap.Memory[i]); err != nil {
			return format.Location{}, err
		}
	}
	return dumpbuf.WriteList(s.buf, ds)
}

// writeMemoryInfoList describes every mapping of the address space.
func writeMemoryInfoList(s *Session) (format.Location, error) {
	if s.snap.MappingsErr != nil {
		return format.Location{}, s.snap.MappingsErr
	}
	infos := make([]format.MemoryInfo, len(s.snap.Mappings))
	for i, m := range s.snap.Mappings {
		state := format.MemoryStateCommit
		if m.Perm() == 0 {
			state = format.MemoryStateReserve
		}
		infos[i] = format.MemoryInfo{
			BaseAddress:       m.Min(),
			AllocationBase:    m.Min(),
			AllocationProtect: m.Protection(),
			RegionSize:        m.Size(),
			State:             state,
			Protect:           m.Protection(),
			Type:              m.Type(),
		}
	}
	hdr := format.MemoryInfoListHeader{
		SizeOfHeader:    format.MemoryInfoListHeaderSize,
		SizeOfEntry:     format.MemoryInfoSize,
		NumberOfEntries: uint64(len(infos)),
	}
	return dumpbuf.WriteHeaderArray(s.buf, hdr, infos)
}
