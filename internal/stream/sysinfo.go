// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"errors"

	"golang.org/x/minidump/arch"
	"golang.org/x/minidump/format"
	"golang.org/x/minidump/internal/dumpbuf"
)

var errNoSystemInfo = errors.New("no system information")

// cpuidVersion packs family, model and stepping the way CPUID leaf 1
// reports them in EAX.
func cpuidVersion(family, model, stepping uint32) uint32 {
	v := stepping&0xf | (model&0xf)<<4 | (model>>4&0xf)<<16
	if family > 0xf {
		v |= 0xf<<8 | ((family-0xf)&0xff)<<20
	} else {
		v |= family << 8
	}
	return v
}

// writeSystemInfo reserves the fixed record, writes the OS version
// string after it, and then fills the record in with the string's
// offset.
func writeSystemInfo(s *Session) (format.Location, error) {
	si := s.snap.System
	if si == nil {
		if s.snap.SystemErr != nil {
			return format.Location{}, s.snap.SystemErr
		}
		return format.Location{}, errNoSystemInfo
	}
	h, err := dumpbuf.Reserve[format.SystemInfo](s.buf)
	if err != nil {
		return format.Location{}, err
	}
	csd, err := dumpbuf.WriteString(s.buf, si.OSVersion)
	if err != nil {
		return format.Location{}, err
	}
	rec := format.SystemInfo{
		ProcessorArchitecture: arch.ProcessorUnknown,
		ProcessorLevel:        uint16(si.CPUFamily),
		ProcessorRevision:     uint16(si.CPUModel<<8 | si.CPUStepping&0xff),
		MajorVersion:          si.MajorVersion,
		MinorVersion:          si.MinorVersion,
		BuildNumber:           si.BuildNumber,
		PlatformID:            si.Platform,
		CSDVersionRVA:         csd.RVA,
	}
	if n := si.NumberOfProcessors; n > 255 {
		rec.NumberOfProcessors = 255
	} else {
		rec.NumberOfProcessors = uint8(n)
	}
	if si.Arch != nil {
		rec.ProcessorArchitecture = si.Arch.Processor
	}
	switch rec.ProcessorArchitecture {
	case arch.ProcessorX86, arch.ProcessorAMD64:
		rec.SetX86CPU(si.CPUVendor, cpuidVersion(si.CPUFamily, si.CPUModel, si.CPUStepping), uint32(si.CPUFeatures), 0)
	default:
		rec.SetProcessorFeatures(si.CPUFeatures, 0)
	}
	h.Set(rec)
	return h.Location(), nil
}
