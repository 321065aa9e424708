//go:build linux

// Package tty controls which process group owns the shell's terminal.
package tty

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/josephlewis42/gosh/core/logger"
)

// Terminal is the shell's controlling terminal.
type Terminal struct {
	fd    int
	modes *term.State
}

// New wraps the terminal open on f.
func New(f *os.File) *Terminal {
	return &Terminal{fd: int(f.Fd())}
}

// IsTerminal reports whether the descriptor is a terminal at all.
func (t *Terminal) IsTerminal() bool {
	return term.IsTerminal(t.fd)
}

// Foreground returns the terminal's foreground process group.
func (t *Terminal) Foreground() (int, error) {
	pgid, err := unix.IoctlGetInt(t.fd, unix.TIOCGPGRP)
	if err != nil {
		return 0, fmt.Errorf("tcgetpgrp: %w", err)
	}
	return pgid, nil
}

// SetForeground makes pgid the terminal's foreground process group.
//
// The kernel sends SIGTTOU to a background process that does this unless the
// signal is blocked, so it is blocked on the calling thread for the duration.
func (t *Terminal) SetForeground(pgid int) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var block, old unix.Sigset_t
	sigsetAdd(&block, unix.SIGTTOU)
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &block, &old); err != nil {
		return fmt.Errorf("block SIGTTOU: %w", err)
	}
	defer unix.PthreadSigmask(unix.SIG_SETMASK, &old, nil)

	logger.Debugf("terminal %d: foreground group %d", t.fd, pgid)
	if err := unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid); err != nil {
		return fmt.Errorf("tcsetpgrp %d: %w", pgid, err)
	}
	return nil
}

// TakeOwnership puts the shell in its own process group and gives that group
// the terminal.
func (t *Terminal) TakeOwnership() error {
	pid := unix.Getpid()
	// A session leader is already a group leader and may not move.
	if unix.Getpgrp() != pid {
		if err := unix.Setpgid(0, 0); err != nil {
			return fmt.Errorf("setpgid: %w", err)
		}
	}
	return t.SetForeground(pid)
}

// SaveModes remembers the current terminal modes.
func (t *Terminal) SaveModes() error {
	state, err := term.GetState(t.fd)
	if err != nil {
		return err
	}
	t.modes = state
	return nil
}

// RestoreModes puts back the modes from the last SaveModes, undoing anything
// a foreground job left behind.
func (t *Terminal) RestoreModes() error {
	if t.modes == nil {
		return nil
	}
	return term.Restore(t.fd, t.modes)
}

func sigsetAdd(set *unix.Sigset_t, sig unix.Signal) {
	bits := uint(unsafe.Sizeof(set.Val[0])) * 8
	n := uint(sig) - 1
	set.Val[n/bits] |= 1 << (n % bits)
}
