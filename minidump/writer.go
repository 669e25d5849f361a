// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package minidump takes snapshots of live processes and writes them as
// minidumps.
//
// A capture stops the target, reads everything it needs, lets the target
// run again and only then encodes the dump. The encoded dump is built in
// memory and handed to the output in a single write, so a failed capture
// never leaves a partial file behind.
//
// Most failures only make the dump smaller: a thread that cannot be
// stopped, a page that cannot be read or a stream that cannot be built
// is left out and reported in Result.Omissions. A capture fails as a
// whole only if the process cannot be attached, a mandatory stream
// cannot be written (see StreamsConfig), the deadline passes or the
// output cannot be written.
package minidump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"golang.org/x/minidump/format"
	"golang.org/x/minidump/internal/dumpbuf"
	"golang.org/x/minidump/internal/stream"
	"golang.org/x/minidump/target"
)

// State is the progress of a capture.
type State int

const (
	Idle State = iota
	Attached
	Suspended
	Collected
	StreamsWritten
	Finalized
	Failed
)

var stateNames = [...]string{
	Idle:           "idle",
	Attached:       "attached",
	Suspended:      "suspended",
	Collected:      "collected",
	StreamsWritten: "streams written",
	Finalized:      "finalized",
	Failed:         "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// An Omission is a piece of the dump that was left out.
type Omission struct {
	Stream format.StreamType
	What   string
	Err    error
}

func (o Omission) String() string {
	return fmt.Sprintf("%v: %s: %v", o.Stream, o.What, o.Err)
}

// Result describes a successful capture.
type Result struct {
	// Streams lists the directory entries of the dump, in order.
	Streams []format.Directory

	// Omissions lists what was left out.
	Omissions []Omission

	// Threads is the number of threads in the thread list.
	Threads int

	// Size is the number of bytes written to the output, after
	// compression.
	Size int

	// Time is the capture time recorded in the header.
	Time time.Time
}

// A Writer captures minidumps. The zero value captures native processes
// with the default configuration. A Writer may be used for several
// captures, but not for two at once against the same process.
type Writer struct {
	// Backend attaches to processes. If nil, target.Native() is used.
	Backend target.Backend

	// Config is the capture configuration. If nil, DefaultConfig() is
	// used.
	Config *Config

	// Log receives progress and omissions. If nil, the logrus standard
	// logger is used.
	Log logrus.FieldLogger

	// Now returns the capture time. If nil, time.Now is used.
	Now func() time.Time
}

// NewWriter returns a Writer for native processes.
func NewWriter(cfg *Config) *Writer {
	return &Writer{
		Backend: target.Native(),
		Config:  cfg,
		Log:     logrus.StandardLogger(),
		Now:     time.Now,
	}
}

func (w *Writer) backend() target.Backend {
	if w.Backend == nil {
		return target.Native()
	}
	return w.Backend
}

func (w *Writer) logger() logrus.FieldLogger {
	if w.Log == nil {
		return logrus.StandardLogger()
	}
	return w.Log
}

func (w *Writer) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

func (w *Writer) config() *Config {
	if w.Config == nil {
		cfg := DefaultConfig()
		return &cfg
	}
	return w.Config
}

// Capture takes a snapshot of process pid and returns it encoded as a
// minidump. crash describes the fault that triggered the capture; it is
// nil when a healthy process is being dumped.
//
// The process is resumed and detached before Capture returns, whether it
// succeeds, fails or panics.
func (w *Writer) Capture(ctx context.Context, pid int, crash *target.CrashContext) ([]byte, *Result, error) {
	c := &capture{
		cfg:   w.config(),
		crash: crash,
		log:   w.logger().WithField("pid", pid),
		time:  w.now(),
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if c.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Deadline)
		defer cancel()
	}
	data, err := c.run(ctx, w.backend(), pid)
	if err != nil {
		c.to(Failed)
		c.log.WithError(err).Error("capture failed")
		return nil, nil, err
	}
	res := &Result{
		Streams:   c.dirs,
		Omissions: c.omissions,
		Threads:   len(c.snap.Threads),
		Size:      len(data),
		Time:      c.time,
	}
	c.log.WithFields(logrus.Fields{
		"streams":   len(res.Streams),
		"threads":   res.Threads,
		"omissions": len(res.Omissions),
		"bytes":     len(data),
	}).Info("captured minidump")
	return data, res, nil
}

// Dump captures process pid and writes the minidump to out in a single
// Write call. Nothing is written if the capture fails.
func (w *Writer) Dump(ctx context.Context, pid int, crash *target.CrashContext, out io.Writer) (*Result, error) {
	data, res, err := w.encode(ctx, pid, crash)
	if err != nil {
		return nil, err
	}
	n, err := out.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return nil, &SinkError{Err: err}
	}
	return res, nil
}

// DumpFile captures process pid into the file path. The file is replaced
// atomically; see WriteFile.
func (w *Writer) DumpFile(ctx context.Context, pid int, crash *target.CrashContext, path string) (*Result, error) {
	data, res, err := w.encode(ctx, pid, crash)
	if err != nil {
		return nil, err
	}
	if err := WriteFile(path, data); err != nil {
		return nil, &SinkError{Err: err}
	}
	return res, nil
}

// encode is Capture followed by the configured output encoding.
func (w *Writer) encode(ctx context.Context, pid int, crash *target.CrashContext) ([]byte, *Result, error) {
	data, res, err := w.Capture(ctx, pid, crash)
	if err != nil {
		return nil, nil, err
	}
	if w.config().Output.Compress {
		data, err = Compress(data)
		if err != nil {
			return nil, nil, &SinkError{Err: err}
		}
		res.Size = len(data)
	}
	return data, res, nil
}

// capture is the state of one capture.
type capture struct {
	cfg   *Config
	crash *target.CrashContext
	log   logrus.FieldLogger
	time  time.Time
	state State

	proc      target.Process
	suspended []int // in suspension order

	snap      stream.Snapshot
	buf       *dumpbuf.Buffer
	header    dumpbuf.Handle[format.Header]
	dirs      []format.Directory
	omissions []Omission
}

func (c *capture) to(s State) {
	c.log.WithFields(logrus.Fields{"from": c.state, "state": s}).Debug("state change")
	c.state = s
}

func (c *capture) omit(t format.StreamType, what string, err error) {
	c.omissions = append(c.omissions, Omission{Stream: t, What: what, Err: err})
	c.log.WithError(err).WithField("stream", t).Warnf("omitting %s", what)
}

func expired(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return nil
}

func (c *capture) run(ctx context.Context, b target.Backend, pid int) ([]byte, error) {
	proc, err := b.Attach(pid)
	if err != nil {
		return nil, &AttachError{Pid: pid, Err: err}
	}
	c.proc = proc
	defer c.release()
	c.to(Attached)

	if err := c.suspend(ctx); err != nil {
		return nil, err
	}
	c.to(Suspended)
	if err := c.collect(ctx); err != nil {
		return nil, err
	}
	// Everything needed is in the snapshot; let the target go before
	// encoding.
	c.release()
	c.to(Collected)

	dir, err := c.writeStreams()
	if err != nil {
		return nil, err
	}
	c.to(StreamsWritten)
	c.finalize(dir)
	c.to(Finalized)
	return c.buf.Bytes(), nil
}

// release resumes the suspended threads and detaches. Failures are
// logged and otherwise ignored. It is safe to call more than once.
func (c *capture) release() {
	p := c.proc
	if p == nil {
		return
	}
	c.proc = nil
	for i := len(c.suspended) - 1; i >= 0; i-- {
		tid := c.suspended[i]
		if err := p.Resume(tid); err != nil {
			c.log.WithError(err).WithField("tid", tid).Warn("can't resume thread")
		}
	}
	if err := p.Detach(); err != nil {
		c.log.WithError(err).Warn("can't detach")
	}
	c.log.Debug("released process")
}

// suspend stops every thread it can. Threads that can't be stopped in
// time are left out.
func (c *capture) suspend(ctx context.Context) error {
	tids, err := c.proc.Threads()
	if err != nil {
		c.omit(format.ThreadListStream, "thread enumeration", err)
		tids = nil
		if c.crash != nil {
			tids = []int{c.crash.ThreadID}
		}
	}
	for _, tid := range tids {
		if err := expired(ctx); err != nil {
			return err
		}
		if err := c.suspendThread(ctx, tid); err != nil {
			c.omit(format.ThreadListStream, fmt.Sprintf("thread %d", tid), fmt.Errorf("suspending: %w", err))
			continue
		}
		c.suspended = append(c.suspended, tid)
	}
	c.log.WithField("threads", len(c.suspended)).Debug("suspended")
	return expired(ctx)
}

func (c *capture) suspendThread(ctx context.Context, tid int) error {
	if d := c.cfg.SuspendTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return c.proc.Suspend(ctx, tid)
}

// collect reads everything the streams need from the stopped process.
func (c *capture) collect(ctx context.Context) error {
	p := c.proc
	s := &c.snap
	s.Pid = p.Pid()
	s.Arch = p.Arch()
	s.Crash = c.crash

	var mm *target.MemoryMap
	s.Mappings, s.MappingsErr = p.Mappings()
	if s.MappingsErr == nil {
		var err error
		if mm, err = target.NewMemoryMap(s.Mappings); err != nil {
			c.log.WithError(err).Warn("unusable memory map")
			mm = nil
		}
	}

	for _, tid := range c.suspended {
		if err := expired(ctx); err != nil {
			return err
		}
		t, err := c.thread(tid, mm)
		if err != nil {
			c.omit(format.ThreadListStream, fmt.Sprintf("thread %d", tid), err)
			continue
		}
		s.Threads = append(s.Threads, t)
	}

	s.Modules, s.ModulesErr = p.Modules()
	s.System, s.SystemErr = p.SystemInfo()
	c.memory(mm)

	if fs, ok := p.(target.FileStreamer); ok {
		for _, t := range fs.FileStreams() {
			if c.cfg.disabled(t) {
				continue
			}
			data, err := fs.FileStream(t)
			if err != nil {
				c.omit(t, "file", err)
				continue
			}
			s.Files = append(s.Files, stream.File{Type: t, Data: data})
		}
	}
	if st, ok := p.(target.StartTimer); ok {
		if t, err := st.StartTime(); err == nil {
			s.StartTime = t
		} else {
			c.log.WithError(err).Debug("no start time")
		}
	}
	return expired(ctx)
}

// thread captures the registers, stack and name of a suspended thread.
func (c *capture) thread(tid int, mm *target.MemoryMap) (target.ThreadInfo, error) {
	t := target.ThreadInfo{ID: tid}
	regs, err := c.proc.Context(tid)
	if c.crash != nil && c.crash.ThreadID == tid && c.crash.Context != nil {
		// The registers at the fault, not those of the signal handler.
		regs, err = c.crash.Context, nil
	}
	if err != nil {
		return t, fmt.Errorf("reading registers: %w", err)
	}
	t.Context = regs
	t.Stack = c.stack(regs.SP(), mm)
	if t.Stack.Status != target.RegionComplete {
		c.omit(format.MemoryListStream, fmt.Sprintf("stack of thread %d", tid), t.Stack.Err)
	}
	if n, ok := c.proc.(target.ThreadNamer); ok {
		if name, err := n.ThreadName(tid); err == nil {
			t.Name = name
		}
	}
	return t, nil
}

var errNoStack = errors.New("stack pointer outside any mapping")

// stack reads a thread's stack from below sp, including the red zone,
// up to the end of the mapping holding sp or Stack.MaxBytes, whichever
// comes first.
func (c *capture) stack(sp uint64, mm *target.MemoryMap) target.MemoryRegion {
	start := sp
	if a := c.snap.Arch; a != nil && start >= a.RedZone {
		start -= a.RedZone
	}
	end := start + c.cfg.Stack.MaxBytes
	if end < start {
		end = ^uint64(0)
	}
	if mm != nil {
		m := mm.Find(sp)
		if m == nil {
			return target.MemoryRegion{Start: sp, Status: target.RegionFailed, Err: errNoStack}
		}
		if start < m.Min() {
			start = m.Min()
		}
		if m.Max() < end {
			end = m.Max()
		}
	}
	return target.ReadRegion(c.proc, start, end-start)
}

// memory reads the application-supplied ranges and the code around the
// crashing instruction.
func (c *capture) memory(mm *target.MemoryMap) {
	for _, r := range c.cfg.Memory.Extra {
		size := r.Size
		if max := c.cfg.Memory.MaxRegionBytes; max > 0 && size > max {
			c.omit(format.MemoryListStream, fmt.Sprintf("memory %v", r), fmt.Errorf("truncated to %d bytes", max))
			size = max
		}
		c.addMemory(fmt.Sprintf("memory %v", r), target.ReadRegion(c.proc, r.Address, size))
	}

	w := c.cfg.Memory.InstructionWindow
	if c.crash == nil || w == 0 {
		return
	}
	regs := c.crash.Context
	for _, t := range c.snap.Threads {
		if t.ID == c.crash.ThreadID {
			regs = t.Context
		}
	}
	if regs == nil {
		return
	}
	pc := regs.PC()
	start := uint64(0)
	if pc > w/2 {
		start = pc - w/2
	}
	end := start + w
	if end < start {
		end = ^uint64(0)
	}
	if m := mm.Find(pc); m != nil {
		if start < m.Min() {
			start = m.Min()
		}
		if m.Max() < end {
			end = m.Max()
		}
	}
	c.addMemory("instruction memory", target.ReadRegion(c.proc, start, end-start))
}

func (c *capture) addMemory(what string, r target.MemoryRegion) {
	if r.Status != target.RegionComplete {
		c.omit(format.MemoryListStream, what, r.Err)
	}
	if len(r.Data) > 0 {
		c.snap.Memory = append(c.snap.Memory, r)
	}
}

// sizeHint guesses the size of the dump, to avoid regrowing the buffer.
func (c *capture) sizeHint() int {
	n := 4 << 10
	for _, t := range c.snap.Threads {
		n += len(t.Stack.Data) + 2<<10
	}
	for _, r := range c.snap.Memory {
		n += len(r.Data)
	}
	for _, f := range c.snap.Files {
		n += len(f.Data)
	}
	return n
}

// writeStreams lays out the header and a directory slot for every
// stream that applies, then writes the streams. It returns the location
// of the directory.
func (c *capture) writeStreams() (format.Location, error) {
	c.buf = dumpbuf.New(c.sizeHint())
	var err error
	if c.header, err = dumpbuf.Reserve[format.Header](c.buf); err != nil {
		return format.Location{}, err
	}
	var writers []*stream.Writer
	for _, sw := range stream.Writers(&c.snap) {
		if c.cfg.disabled(sw.Type) {
			continue
		}
		writers = append(writers, sw)
	}
	dir, err := c.buf.Reserve(len(writers) * format.DirectorySize)
	if err != nil {
		return format.Location{}, err
	}

	sess := stream.NewSession(c.buf, &c.snap)
	for _, sw := range writers {
		d, err := sw.Write(sess)
		if err != nil {
			if c.cfg.mandatory(sw.Type) {
				return format.Location{}, &StreamError{Type: sw.Type, Err: err}
			}
			c.omit(sw.Type, "stream", err)
			continue
		}
		c.log.WithFields(logrus.Fields{"stream": sw.Type, "size": d.Location.DataSize}).Debug("wrote stream")
		c.dirs = append(c.dirs, d)
	}
	for _, o := range sess.Omissions() {
		c.omit(o.Stream, o.What, o.Err)
	}
	return dir, nil
}

// finalize fills in the directory and the header.
func (c *capture) finalize(dir format.Location) {
	slots := make([]format.Directory, int(dir.DataSize)/format.DirectorySize)
	copy(slots, c.dirs)
	dumpbuf.PatchArray(c.buf, dir, slots)

	var flags format.FileFlags
	for _, d := range c.dirs {
		if d.StreamType == format.MemoryInfoListStream {
			flags |= format.FileWithFullMemoryInfo
		}
	}
	c.header.Set(format.Header{
		Signature:          format.Signature,
		Version:            format.Version,
		NumberOfStreams:    uint32(len(c.dirs)),
		StreamDirectoryRVA: dir.RVA,
		TimeDateStamp:      uint32(c.time.Unix()),
		Flags:              uint64(flags),
	})
}
