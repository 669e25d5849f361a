// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"fmt"
	"math"
	"path"
	"strings"

	"golang.org/x/minidump/format"
	"golang.org/x/minidump/internal/dumpbuf"
	"golang.org/x/minidump/target"
)

// codeView returns the CodeView record identifying m, or nil.
func codeView(m *target.ModuleInfo) []byte {
	switch m.IDKind {
	case target.ELFBuildID:
		return format.CVRecordELF(m.ID)
	case target.PDBGUID, target.MachOUUID:
		var guid [16]byte
		copy(guid[:], m.ID)
		name := m.DebugFile
		if name == "" {
			name = baseName(m.Path)
		}
		return format.CVRecordPDB70(guid, m.Age, name)
	}
	return nil
}

// baseName is path.Base for both slash conventions.
func baseName(p string) string {
	if i := strings.LastIndexByte(p, '\\'); i >= 0 {
		return p[i+1:]
	}
	return path.Base(p)
}

// writeModuleList writes each module's name and CodeView record, then
// the module index.
func writeModuleList(s *Session) (format.Location, error) {
	if s.snap.ModulesErr != nil {
		return format.Location{}, s.snap.ModulesErr
	}
	mods := make([]format.Module, 0, len(s.snap.Modules))
	for i := range s.snap.Modules {
		m := &s.snap.Modules[i]
		name, err := dumpbuf.WriteString(s.buf, m.Path)
		if err != nil {
			return format.Location{}, err
		}
		rec := format.Module{
			BaseOfImage:   m.Base,
			SizeOfImage:   uint32(m.Size),
			Checksum:      m.Checksum,
			TimeDateStamp: m.TimeDateStamp,
			ModuleNameRVA: name.RVA,
		}
		if m.Size > math.MaxUint32 {
			rec.SizeOfImage = math.MaxUint32
			s.omit(format.ModuleListStream, m.Path, fmt.Errorf("size %#x truncated", m.Size))
		}
		if cv := codeView(m); cv != nil {
			if rec.CVRecord, err = s.buf.Append(cv); err != nil {
				return format.Location{}, err
			}
		} else {
			s.omit(format.ModuleListStream, m.Path, fmt.Errorf("no build id"))
		}
		mods = append(mods, rec)
	}
	return dumpbuf.WriteList(s.buf, mods)
}
