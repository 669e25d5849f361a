// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"encoding/binary"

	"golang.org/x/minidump/format"
	"golang.org/x/minidump/internal/dumpbuf"
)

func writeMiscInfo(s *Session) (format.Location, error) {
	rec := format.MiscInfo{
		Flags1:    format.MiscInfoProcessID,
		ProcessID: uint32(s.snap.Pid),
	}
	rec.SizeOfInfo = uint32(binary.Size(rec))
	if !s.snap.StartTime.IsZero() {
		rec.Flags1 |= format.MiscInfoProcessTimes
		rec.ProcessCreateTime = uint32(s.snap.StartTime.Unix())
	}
	return dumpbuf.Write(s.buf, &rec)
}

// writeBreakpadInfo records which thread asked for the dump. The dump
// is always taken from outside the process, so there is no dumping
// thread to report.
func writeBreakpadInfo(s *Session) (format.Location, error) {
	var rec format.BreakpadInfo
	if c := s.snap.Crash; c != nil {
		rec.Validity |= format.BreakpadInfoRequestingThreadIDValid
		rec.RequestingThreadID = uint32(c.ThreadID)
	}
	return dumpbuf.Write(s.buf, &rec)
}
