// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stream encodes the streams of a minidump from a snapshot of a
// process. Each stream has a Writer; writers are independent of each
// other and may run in any order. They share a Session, which owns the
// output buffer and makes sure memory and register records needed by
// several streams are written once.
package stream

import (
	"fmt"
	"time"

	"golang.org/x/minidump/arch"
	"golang.org/x/minidump/format"
	"golang.org/x/minidump/internal/dumpbuf"
	"golang.org/x/minidump/target"
)

// A Snapshot is everything collected from a process. Fields for which
// collection failed are nil and the matching Err field says why.
type Snapshot struct {
	Pid  int
	Arch *arch.Architecture

	System    *target.SystemInfo
	SystemErr error

	// Threads holds the threads whose registers were captured, in
	// enumeration order.
	Threads []target.ThreadInfo

	Modules    []target.ModuleInfo
	ModulesErr error

	Mappings    []*target.Mapping
	MappingsErr error

	// Memory holds application-supplied regions and the memory around
	// the crashing instruction.
	Memory []target.MemoryRegion

	Crash *target.CrashContext

	Files     []File
	StartTime time.Time
}

// A File is an OS file stored verbatim as a stream.
type File struct {
	Type format.StreamType
	Data []byte
}

// thread returns the captured thread tid, or nil.
func (s *Snapshot) thread(tid int) *target.ThreadInfo {
	for i := range s.Threads {
		if s.Threads[i].ID == tid {
			return &s.Threads[i]
		}
	}
	return nil
}

// An Omission is a piece of a stream that was left out.
type Omission struct {
	Stream format.StreamType
	What   string
	Err    error
}

func (o Omission) String() string {
	return fmt.Sprintf("%v: %s: %v", o.Stream, o.What, o.Err)
}

type regionKey struct {
	start uint64
	size  int
}

// A Session is the state shared by the writers of one dump.
type Session struct {
	buf  *dumpbuf.Buffer
	snap *Snapshot

	regions   map[regionKey]format.MemoryDescriptor
	contexts  map[int]format.Location
	omissions []Omission
}

// NewSession returns a session writing snap into buf.
func NewSession(buf *dumpbuf.Buffer, snap *Snapshot) *Session {
	return &Session{
		buf:      buf,
		snap:     snap,
		regions:  map[regionKey]format.MemoryDescriptor{},
		contexts: map[int]format.Location{},
	}
}

// Omissions returns what the writers left out so far.
func (s *Session) Omissions() []Omission {
	return s.omissions
}

func (s *Session) omit(t format.StreamType, what string, err error) {
	s.omissions = append(s.omissions, Omission{Stream: t, What: what, Err: err})
}

// memory writes the bytes of r, or finds where they were already written.
// It reports false for a region with no bytes.
func (s *Session) memory(r *target.MemoryRegion) (format.MemoryDescriptor, bool, error) {
	if len(r.Data) == 0 {
		return format.MemoryDescriptor{StartOfMemoryRange: r.Start}, false, nil
	}
	k := regionKey{r.Start, len(r.Data)}
	if d, ok := s.regions[k]; ok {
		return d, true, nil
	}
	loc, err := s.buf.Append(r.Data)
	if err != nil {
		return format.MemoryDescriptor{}, false, err
	}
	d := format.MemoryDescriptor{StartOfMemoryRange: r.Start, Memory: loc}
	s.regions[k] = d
	return d, true, nil
}

// context writes the register record of thread t once.
func (s *Session) context(t *target.ThreadInfo) (format.Location, error) {
	if loc, ok := s.contexts[t.ID]; ok {
		return loc, nil
	}
	if t.Context == nil {
		return format.Location{}, fmt.Errorf("thread %d has no registers", t.ID)
	}
	loc, err := dumpbuf.Write(s.buf, t.Context)
	if err != nil {
		return format.Location{}, err
	}
	s.contexts[t.ID] = loc
	return loc, nil
}

// A Writer produces one stream.
type Writer struct {
	Type format.StreamType

	applies func(*Snapshot) bool
	write   func(*Session) (format.Location, error)
}

// Applies reports whether the stream has anything to record for snap.
// Writers that don't apply get no directory slot.
func (w *Writer) Applies(snap *Snapshot) bool {
	return w.applies == nil || w.applies(snap)
}

// Write appends the stream to the session's buffer and returns its
// directory entry.
func (w *Writer) Write(s *Session) (format.Directory, error) {
	loc, err := w.write(s)
	if err != nil {
		return format.Directory{}, err
	}
	return format.Directory{StreamType: w.Type, Location: loc}, nil
}

// Writers returns the writers for every stream type that can be
// produced from snap, in directory order.
func Writers(snap *Snapshot) []*Writer {
	ws := []*Writer{
		{Type: format.ThreadListStream, write: writeThreadList},
		{Type: format.ModuleListStream, write: writeModuleList},
		{Type: format.MemoryListStream, write: writeMemoryList},
		{Type: format.ExceptionStream, write: writeException, applies: hasCrash},
		{Type: format.SystemInfoStream, write: writeSystemInfo},
		{Type: format.MiscInfoStream, write: writeMiscInfo},
		{Type: format.MemoryInfoListStream, write: writeMemoryInfoList, applies: hasMappings},
		{Type: format.ThreadNamesStream, write: writeThreadNames, applies: hasThreadNames},
		{Type: format.BreakpadInfoStream, write: writeBreakpadInfo},
	}
	for _, f := range snap.Files {
		f := f
		ws = append(ws, &Writer{
			Type:  f.Type,
			write: func(s *Session) (format.Location, error) {
				return s.buf.Append(f.Data)
			},
		})
	}
	var out []*Writer
	for _, w := range ws {
		if w.Applies(snap) {
			out = append(out, w)
		}
	}
	return out
}

func hasCrash(snap *Snapshot) bool {
	return snap.Crash != nil
}

func hasMappings(snap *Snapshot) bool {
	return snap.Mappings != nil || snap.MappingsErr != nil
}

func hasThreadNames(snap *Snapshot) bool {
	for _, t := range snap.Threads {
		if t.Name != "" {
			return true
		}
	}
	return false
}
