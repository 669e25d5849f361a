// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testenv provides live processes for tests to inspect.
//
// A test binary that wants a live target calls RunChild from TestMain.
// StartChild then starts a second copy of the binary, which runs the
// function passed to RunChild and waits, instead of running tests.
package testenv

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"testing"
)

const (
	childEnv   = "GO_MINIDUMP_TEST_CHILD"
	readyLine  = "ready\n"
	ptraceFile = "/proc/sys/kernel/yama/ptrace_scope"
)

// RunChild runs f and then waits for its parent to close standard input,
// if the process was started by StartChild. Otherwise it does nothing.
//
// The parent may inspect the child as soon as f returns, so f must not
// return before the state it sets up is in place. The value returned by
// f is kept alive while the child waits.
func RunChild(f func() any) {
	if os.Getenv(childEnv) == "" {
		return
	}
	result := f()
	os.Stdout.WriteString(readyLine)
	io.Copy(io.Discard, os.Stdin)
	runtime.KeepAlive(result)
	os.Exit(0)
}

// StartChild starts a copy of the test binary running the function given
// to RunChild and returns its pid once that function has returned. The
// child exits at the end of the test.
func StartChild(t testing.TB) int {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Skipf("can't find test binary: %v", err)
	}
	cmd := exec.Command(exe, "-test.run=^$")
	cmd.Env = append(os.Environ(), childEnv+"=1")
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("can't start child: %v", err)
	}
	t.Cleanup(func() {
		stdin.Close()
		cmd.Wait()
	})
	line, err := bufio.NewReader(stdout).ReadString('\n')
	if err != nil || line != readyLine {
		t.Fatalf("child did not start: %q, %v", line, err)
	}
	return cmd.Process.Pid
}

// MustHavePtrace skips t unless the host lets a process trace its
// children.
func MustHavePtrace(t testing.TB) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skipf("skipping on %s: no ptrace", runtime.GOOS)
	}
	if b, err := os.ReadFile(ptraceFile); err == nil && strings.TrimSpace(string(b)) == "3" {
		t.Skipf("skipping: %s forbids ptrace", ptraceFile)
	}
}
