// Package pty encapsulates the platform PTY primitive: opening a
// master/slave pair, spawning a shell under it, and exposing
// read/write/resize/kill.
package pty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/shlex"

	"termrt/internal/apperr"
)

// ErrWriteTimeout is returned by Write when the child isn't reading its
// stdin and the kernel PTY buffer fills up.
var ErrWriteTimeout = fmt.Errorf("pty write timed out")

const writeTimeout = 3 * time.Second

// Handle owns a PTY master, the spawned child, and serializes writes so
// exactly one writer is active on the handle at any instant.
type Handle struct {
	ptm *os.File
	cmd *exec.Cmd

	writeMu sync.Mutex // at most one writer at a time

	closeOnce sync.Once
}

// Spawn opens a master/slave PTY pair at the given dimensions and starts
// shell under it with cwd and env. shell may itself carry arguments (e.g.
// "/bin/bash -l"), split into argv via shlex.
func Spawn(shell, cwd string, cols, rows uint16, env map[string]string) (*Handle, error) {
	argv, err := shlex.Split(shell)
	if err != nil || len(argv) == 0 {
		return nil, apperr.Pty("spawn", fmt.Errorf("invalid shell command %q", shell))
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cwd
	cmd.Env = mergeEnv(os.Environ(), env)

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, apperr.Pty("spawn", err)
	}

	return &Handle{ptm: ptm, cmd: cmd}, nil
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(extra))
	for _, e := range base {
		key := e
		if idx := strings.IndexByte(e, '='); idx >= 0 {
			key = e[:idx]
		}
		if _, override := extra[key]; !override {
			out = append(out, e)
		}
	}
	for k, v := range extra {
		out = append(out, k+"="+v)
	}
	return out
}

// Write appends to the master, serialized against concurrent writers.
// Partial writes are possible; the returned count is what the kernel
// actually accepted. Fails with a timeout error if the child isn't
// draining its stdin within writeTimeout (the PTY buffer is full).
func (h *Handle) Write(p []byte) (int, error) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := h.ptm.Write(p)
		ch <- result{n, err}
	}()

	timer := time.NewTimer(writeTimeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.n, r.err
	case <-timer.C:
		return 0, ErrWriteTimeout
	}
}

// Read reads available bytes from the master. Once the child has exited it
// returns io.EOF; Linux reports a closed slave side as EIO, which Read
// translates to io.EOF.
func (h *Handle) Read(buf []byte) (int, error) {
	n, err := h.ptm.Read(buf)
	if errors.Is(err, syscall.EIO) {
		err = io.EOF
	}
	return n, err
}

// Resize updates the kernel's notion of the PTY window size.
func (h *Handle) Resize(cols, rows uint16) error {
	if err := pty.Setsize(h.ptm, &pty.Winsize{Cols: cols, Rows: rows}); err != nil {
		return apperr.Pty("resize", err)
	}
	return nil
}

// Pid returns the child process id, or 0 if unknown.
func (h *Handle) Pid() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Wait blocks until the child exits and returns its error (nil on a clean
// exit), mirroring exec.Cmd.Wait.
func (h *Handle) Wait() error {
	return h.cmd.Wait()
}

// Kill sends a termination signal to the child if it's still alive.
func (h *Handle) Kill() {
	if h.cmd != nil && h.cmd.Process != nil {
		h.cmd.Process.Kill()
	}
}

// Release closes the master end and kills the child if still running. Safe
// to call more than once.
func (h *Handle) Release() {
	h.closeOnce.Do(func() {
		h.Kill()
		h.ptm.Close()
	})
}
