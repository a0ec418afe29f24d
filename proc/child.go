//go:build !windows && !wasm

// Package proc wraps a spawned external command with a
// cancellation-aware, signal-aware wait loop: a child's exit races
// against the caller's cancellation token, with cancellation checked
// first so a host can always interrupt a runaway command promptly.
package proc

import (
	"context"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// WaitOutcome is the reason ChildProcess.Wait returned.
type WaitOutcome int

const (
	// Completed means the child exited on its own; Result holds its
	// status.
	Completed WaitOutcome = iota
	// Stopped means the child was suspended (SIGTSTP/SIGSTOP) and has
	// not yet completed.
	Stopped
	// Cancelled means the caller's cancellation token fired before the
	// child exited; ChildProcess sent it SIGINT and gave up waiting.
	Cancelled
)

// Result is the outcome of a completed wait: exit code, whether the
// process was killed by a signal, and resource usage if the platform
// reports it.
type Result struct {
	Pid        int
	ExitCode   int
	Signaled   bool
	Signal     unix.Signal
	UserTime   time.Duration
	SystemTime time.Duration
}

// ChildProcess wraps a live child's pid so callers can wait on it with a
// cancellation token without blocking a goroutine past the point the
// caller stops caring, grounded on the reference implementation's
// tokio::select!{biased; ...} wait loop.
type ChildProcess struct {
	pid int
}

// New wraps an already-started process.
func New(pid int) *ChildProcess { return &ChildProcess{pid: pid} }

// Pid returns the child's process id.
func (c *ChildProcess) Pid() int { return c.pid }

// Wait blocks until the child exits, is stopped, or ctx is cancelled,
// whichever happens first. Cancellation is checked with highest priority:
// if ctx is already done when Wait is called, it returns Cancelled
// immediately without polling the child at all, mirroring the "biased"
// select ordering in the reference implementation.
func (c *ChildProcess) Wait(ctx context.Context) (WaitOutcome, Result, error) {
	select {
	case <-ctx.Done():
		c.interrupt()
		return Cancelled, Result{}, ctx.Err()
	default:
	}

	type waitMsg struct {
		res     Result
		err     error
		stopped bool
	}
	done := make(chan waitMsg, 1)
	go func() {
		var status unix.WaitStatus
		var rusage unix.Rusage
		_, err := unix.Wait4(c.pid, &status, unix.WUNTRACED, &rusage)
		if err != nil {
			done <- waitMsg{err: err}
			return
		}
		done <- waitMsg{stopped: status.Stopped(), res: Result{
			Pid:        c.pid,
			ExitCode:   status.ExitStatus(),
			Signaled:   status.Signaled(),
			Signal:     status.Signal(),
			UserTime:   time.Duration(rusage.Utime.Nano()) * time.Nanosecond,
			SystemTime: time.Duration(rusage.Stime.Nano()) * time.Nanosecond,
		}}
	}()

	for {
		select {
		case <-ctx.Done():
			c.interrupt()
			// Give the child a moment to die from the interrupt before
			// giving up on it entirely; if it doesn't, the caller sees
			// Cancelled and the wait goroutine above is left to finish
			// reaping it asynchronously.
			select {
			case msg := <-done:
				return Completed, msg.res, msg.err
			case <-time.After(50 * time.Millisecond):
				return Cancelled, Result{}, ctx.Err()
			}
		case msg := <-done:
			if msg.err != nil {
				return Completed, Result{}, msg.err
			}
			if msg.stopped {
				return Stopped, msg.res, nil
			}
			return Completed, msg.res, nil
		}
	}
}

func (c *ChildProcess) interrupt() {
	_ = unix.Kill(c.pid, unix.SIGINT)
}

// Kill sends SIGKILL, for callers that need immediate, non-negotiable
// termination rather than the cooperative SIGINT Wait sends on
// cancellation.
func (c *ChildProcess) Kill() error {
	return unix.Kill(c.pid, unix.SIGKILL)
}

// Signal sends an arbitrary signal to the child.
func (c *ChildProcess) Signal(sig os.Signal) error {
	s, ok := sig.(unix.Signal)
	if !ok {
		return os.ErrInvalid
	}
	return unix.Kill(c.pid, s)
}
