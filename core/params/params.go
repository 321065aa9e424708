// Package params holds the shell's special parameters.
package params

import (
	"strconv"

	"golang.org/x/sys/unix"
)

// Params are the values behind $?, $! and $$.
type Params struct {
	// Status is $?, the status of the last foreground command.
	Status int `json:"status"`
	// BgPid is $!, the pid of the last process started in the background or
	// mid-pipeline. Zero when none has been.
	BgPid int `json:"bg_pid"`
	// ShellPid is $$.
	ShellPid int `json:"shell_pid"`
}

// New creates the parameters for the running shell.
func New() *Params {
	return &Params{ShellPid: unix.Getpid()}
}

// StatusOf translates a wait status into a shell status: the exit code, or
// 128 plus the terminating or stopping signal.
func StatusOf(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	case ws.Stopped():
		return 128 + int(ws.StopSignal())
	}
	return 0
}

// Pairs renders the parameters as name=value pairs for expansion.
func (p *Params) Pairs() []string {
	out := []string{
		"?=" + strconv.Itoa(p.Status),
		"$=" + strconv.Itoa(p.ShellPid),
	}
	if p.BgPid != 0 {
		out = append(out, "!="+strconv.Itoa(p.BgPid))
	}
	return out
}
