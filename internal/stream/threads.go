// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"errors"
	"fmt"

	"golang.org/x/minidump/format"
	"golang.org/x/minidump/internal/dumpbuf"
)

var errNoThreads = errors.New("no thread was captured")

// writeThreadList writes each thread's registers and stack, then the
// index of thread records pointing at them.
func writeThreadList(s *Session) (format.Location, error) {
	if len(s.snap.Threads) == 0 {
		return format.Location{}, errNoThreads
	}
	threads := make([]format.Thread, 0, len(s.snap.Threads))
	for i := range s.snap.Threads {
		t := &s.snap.Threads[i]
		ctx, err := s.context(t)
		if err != nil {
			s.omit(format.ThreadListStream, fmt.Sprintf("thread %d", t.ID), err)
			continue
		}
		stack, _, err := s.memory(&t.Stack)
		if err != nil {
			return format.Location{}, err
		}
		threads = append(threads, format.Thread{
			ThreadID:      uint32(t.ID),
			Stack:         stack,
			ThreadContext: ctx,
		})
	}
	if len(threads) == 0 {
		return format.Location{}, errNoThreads
	}
	return dumpbuf.WriteList(s.buf, threads)
}

// writeThreadNames writes each name, then the index of thread name
// records.
func writeThreadNames(s *Session) (format.Location, error) {
	var names []format.ThreadName
	for _, t := range s.snap.Threads {
		if t.Name == "" {
			continue
		}
		loc, err := dumpbuf.WriteString(s.buf, t.Name)
		if err != nil {
			return format.Location{}, err
		}
		names = append(names, format.ThreadName{ThreadID: uint32(t.ID), RVAOfThreadName: uint64(loc.RVA)})
	}
	return dumpbuf.WriteList(s.buf, names)
}
