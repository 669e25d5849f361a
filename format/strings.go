// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package format

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// EncodeString returns s as an MDString: a uint32 byte length (not
// counting the terminator) followed by UTF-16LE code units and a
// two-byte NUL.
func EncodeString(s string) []byte {
	u := utf16.Encode([]rune(s))
	b := make([]byte, 4+2*len(u)+2)
	binary.LittleEndian.PutUint32(b, uint32(2*len(u)))
	for i, c := range u {
		binary.LittleEndian.PutUint16(b[4+2*i:], c)
	}
	return b
}

// DecodeString decodes the MDString at the start of b.
func DecodeString(b []byte) (string, error) {
	if len(b) < 4 {
		return "", fmt.Errorf("string header truncated")
	}
	n := binary.LittleEndian.Uint32(b)
	if n%2 != 0 || uint64(n) > uint64(len(b)-4) {
		return "", fmt.Errorf("string of %d bytes exceeds %d available", n, len(b)-4)
	}
	u := make([]uint16, n/2)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(b[4+2*i:])
	}
	return string(utf16.Decode(u)), nil
}

// CodeView record signatures.
const (
	CVSignatureELF   = 0x4270454c // "BpEL"
	CVSignaturePDB70 = 0x53445352 // "RSDS"
)

// CVRecordELF returns a breakpad CvInfoELF record carrying an ELF build id.
func CVRecordELF(buildID []byte) []byte {
	b := make([]byte, 4, 4+len(buildID))
	binary.LittleEndian.PutUint32(b, CVSignatureELF)
	return append(b, buildID...)
}

// CVRecordPDB70 returns a CodeView PDB 7.0 record. The GUID is stored
// in its in-memory byte order.
func CVRecordPDB70(guid [16]byte, age uint32, pdbName string) []byte {
	b := make([]byte, 24, 24+len(pdbName)+1)
	binary.LittleEndian.PutUint32(b, CVSignaturePDB70)
	copy(b[4:20], guid[:])
	binary.LittleEndian.PutUint32(b[20:], age)
	b = append(b, pdbName...)
	return append(b, 0)
}

// ParseCVRecord returns the signature and identifier bytes of a CodeView
// record: the build id for ELF records, the GUID followed by the age
// for PDB70 records.
func ParseCVRecord(b []byte) (sig uint32, id []byte, err error) {
	if len(b) < 4 {
		return 0, nil, fmt.Errorf("codeview record truncated")
	}
	sig = binary.LittleEndian.Uint32(b)
	switch sig {
	case CVSignatureELF:
		return sig, b[4:], nil
	case CVSignaturePDB70:
		if len(b) < 24 {
			return sig, nil, fmt.Errorf("pdb70 record truncated")
		}
		return sig, b[4:24], nil
	}
	return sig, nil, fmt.Errorf("unknown codeview signature %#x", sig)
}
