// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import (
	"errors"
	"fmt"

	"golang.org/x/minidump/format"
)

// ErrTimeout is returned when a capture runs past its deadline.
var ErrTimeout = errors.New("capture deadline exceeded")

// An AttachError reports that the target process could not be attached.
// Err wraps target.ErrNoProcess or target.ErrPermission when the cause
// is known.
type AttachError struct {
	Pid int
	Err error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("attaching to process %d: %v", e.Pid, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// A StreamError reports the failure of a mandatory stream.
type StreamError struct {
	Type format.StreamType
	Err  error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("writing %v stream: %v", e.Type, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// A SinkError reports that the finished dump could not be written out.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("writing dump: %v", e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
