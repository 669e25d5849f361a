// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"fmt"

	"golang.org/x/minidump/format"
	"golang.org/x/minidump/internal/dumpbuf"
	"golang.org/x/minidump/target"
)

// writeException records the fault and points at the faulting thread's
// registers, sharing the record written for the thread list.
func writeException(s *Session) (format.Location, error) {
	c := s.snap.Crash
	t := s.snap.thread(c.ThreadID)
	if t == nil {
		if c.Context == nil {
			return format.Location{}, fmt.Errorf("crashing thread %d was not captured", c.ThreadID)
		}
		t = &target.ThreadInfo{ID: c.ThreadID, Context: c.Context}
	}
	ctx, err := s.context(t)
	if err != nil {
		return format.Location{}, err
	}
	rec := format.ExceptionInfo{
		ThreadID: uint32(c.ThreadID),
		ExceptionRecord: format.ExceptionRecord{
			ExceptionCode:    c.ExceptionCode,
			ExceptionFlags:   c.ExceptionFlags,
			ExceptionAddress: c.ExceptionAddress,
		},
		ThreadContext: ctx,
	}
	params := c.Parameters
	if len(params) > format.MaxExceptionParameters {
		params = params[:format.MaxExceptionParameters]
		s.omit(format.ExceptionStream, "parameters", fmt.Errorf("%d of %d kept", len(params), len(c.Parameters)))
	}
	rec.ExceptionRecord.NumberParameters = uint32(len(params))
	copy(rec.ExceptionRecord.ExceptionInformation[:], params)
	return dumpbuf.Write(s.buf, &rec)
}
