// Package wait reaps the shell's jobs.
//
// A foreground wait blocks on one process group until every process in it
// has been reaped or one of them stops. A background wait polls every job
// without blocking and reports the ones that changed. Both record statuses
// in the job table and report through the shell's error stream.
package wait

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/josephlewis42/gosh/core/jobs"
	"github.com/josephlewis42/gosh/core/logger"
	"github.com/josephlewis42/gosh/core/params"
	"github.com/josephlewis42/gosh/core/tty"
)

// Sys is the kernel interface the waiter uses.
type Sys interface {
	Wait4(pid int, ws *unix.WaitStatus, options int) (int, error)
	Kill(pid int, sig unix.Signal) error
}

// OS is the real kernel.
type OS struct{}

var _ Sys = OS{}

// Wait4 implements Sys.Wait4.
func (OS) Wait4(pid int, ws *unix.WaitStatus, options int) (int, error) {
	return unix.Wait4(pid, ws, options, nil)
}

// Kill implements Sys.Kill.
func (OS) Kill(pid int, sig unix.Signal) error {
	return unix.Kill(pid, sig)
}

// Terminal is the terminal a foreground job is handed.
type Terminal interface {
	SetForeground(pgid int) error
	SaveModes() error
	RestoreModes() error
}

var _ Terminal = (*tty.Terminal)(nil)

// Waiter waits on the jobs in a table.
type Waiter struct {
	Sys    Sys
	Jobs   *jobs.Table
	Params *params.Params
	// Stderr receives job notices. Defaults to os.Stderr.
	Stderr io.Writer

	// Terminal is the shell's controlling terminal when it is interactive,
	// nil otherwise. Foreground jobs are given the terminal and it is
	// handed back to ShellPgid when they finish or stop.
	Terminal  Terminal
	ShellPgid int
}

// New creates a non-interactive waiter on the real kernel.
func New(table *jobs.Table, p *params.Params) *Waiter {
	return &Waiter{Sys: OS{}, Jobs: table, Params: p}
}

func (w *Waiter) stderr() io.Writer {
	if w.Stderr == nil {
		return os.Stderr
	}
	return w.Stderr
}

func (w *Waiter) notice(jid jobs.ID, state string) {
	fmt.Fprintf(w.stderr(), "[%d] %s\n", jid, state)
}

// ForegroundJob waits on job jid in the foreground.
func (w *Waiter) ForegroundJob(jid jobs.ID) error {
	pgid, err := w.Jobs.Group(jid)
	if err != nil {
		return err
	}
	return w.Foreground(pgid)
}

// Foreground continues process group pgid, gives it the terminal and waits
// until all of its processes have exited or one of them stops. $? is set
// from the job's last status.
func (w *Waiter) Foreground(pgid int) error {
	jid, err := w.Jobs.FindByGroup(pgid)
	if err != nil {
		return fmt.Errorf("wait: %w", err)
	}

	if err := w.Sys.Kill(-pgid, unix.SIGCONT); err != nil {
		if errors.Is(err, unix.ESRCH) {
			fmt.Fprintf(w.stderr(), "gosh: job [%d] no longer exists\n", jid)
			_ = w.Jobs.ForgetGroup(pgid)
		}
		return fmt.Errorf("continue job [%d]: %w", jid, err)
	}

	if w.Terminal != nil {
		if err := w.Terminal.SaveModes(); err != nil {
			logger.Debugf("save terminal modes: %v", err)
		}
		defer w.reclaimTerminal()
		if err := w.Terminal.SetForeground(pgid); err != nil {
			switch {
			case errors.Is(err, unix.EPERM):
				fmt.Fprintf(w.stderr(), "gosh: process group %d does not belong to this session\n", pgid)
			case errors.Is(err, unix.EINVAL):
				fmt.Fprintf(w.stderr(), "gosh: invalid process group %d\n", pgid)
			}
			return err
		}
	}

	for {
		var ws unix.WaitStatus
		pid, err := w.Sys.Wait4(-pgid, &ws, unix.WUNTRACED)
		switch {
		case err == nil:
			logger.Debugf("job [%d]: pid %d status %#x", jid, pid, uint32(ws))
			if err := w.Jobs.RecordStatus(jid, ws); err != nil {
				return err
			}
			if ws.Stopped() {
				w.notice(jid, "Stopped")
				w.Params.Status = params.StatusOf(ws)
				return nil
			}

		case errors.Is(err, unix.ECHILD):
			last, err := w.Jobs.LastStatus(jid)
			if err != nil {
				return err
			}
			logger.Debugf("job [%d]: done", jid)
			w.Params.Status = params.StatusOf(last)
			return w.Jobs.ForgetGroup(pgid)

		case errors.Is(err, unix.EINTR):
			continue

		default:
			return fmt.Errorf("wait for job [%d]: %w", jid, err)
		}
	}
}

func (w *Waiter) reclaimTerminal() {
	if err := w.Terminal.SetForeground(w.ShellPgid); err != nil {
		fmt.Fprintf(w.stderr(), "gosh: reclaim terminal: %v\n", err)
	}
	if err := w.Terminal.RestoreModes(); err != nil {
		logger.Debugf("restore terminal modes: %v", err)
	}
}

// Background reaps whatever the shell's jobs have done since the last call
// without blocking, reporting jobs that stopped or finished.
func (w *Waiter) Background() error {
	var errs []error
	for _, j := range w.Jobs.Snapshot() {
		if err := w.drain(j); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Waiter) drain(j jobs.Job) error {
	for {
		var ws unix.WaitStatus
		pid, err := w.Sys.Wait4(-j.Pgid, &ws, unix.WNOHANG|unix.WUNTRACED)
		switch {
		case err == nil && pid == 0:
			return nil

		case err == nil:
			logger.Debugf("job [%d]: pid %d status %#x", j.ID, pid, uint32(ws))
			if err := w.Jobs.RecordStatus(j.ID, ws); err != nil {
				return err
			}
			if ws.Stopped() {
				w.notice(j.ID, "Stopped")
				return nil
			}

		case errors.Is(err, unix.ECHILD):
			last, err := w.Jobs.LastStatus(j.ID)
			if err != nil {
				return err
			}
			if last.Signaled() {
				w.notice(j.ID, "Terminated")
			} else {
				w.notice(j.ID, "Done")
			}
			return w.Jobs.ForgetGroup(j.Pgid)

		case errors.Is(err, unix.EINTR):
			continue

		default:
			return fmt.Errorf("wait for job [%d]: %w", j.ID, err)
		}
	}
}

// Resume continues job jid in the background.
func (w *Waiter) Resume(jid jobs.ID) error {
	pgid, err := w.Jobs.Group(jid)
	if err != nil {
		return err
	}
	if err := w.Sys.Kill(-pgid, unix.SIGCONT); err != nil {
		if errors.Is(err, unix.ESRCH) {
			_ = w.Jobs.ForgetGroup(pgid)
		}
		return fmt.Errorf("continue job [%d]: %w", jid, err)
	}
	return w.Jobs.RecordStatus(jid, 0)
}
