package runner

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/moby/sys/reexec"

	"github.com/josephlewis42/gosh/commands"
	"github.com/josephlewis42/gosh/core/command"
	"github.com/josephlewis42/gosh/core/logger"
	"github.com/josephlewis42/gosh/core/redir"
	"github.com/josephlewis42/gosh/core/vars"
)

// execErrors are the exec failures that belong to the command rather than
// the shell: the child is replaced by a stand-in that reports them.
var execErrors = []error{
	syscall.ENOENT,
	syscall.EACCES,
	syscall.ENOEXEC,
	syscall.ENOTDIR,
	syscall.ELOOP,
	syscall.EISDIR,
	syscall.ETXTBSY,
	syscall.E2BIG,
}

func isExecError(err error) bool {
	for _, target := range execErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// forkExec starts argv0 with the descriptors of fds in process group pgid, a
// new group if pgid is 0.
func forkExec(path string, argv, env []string, fds *redir.Table, pgid int) (int, error) {
	attr := &syscall.ProcAttr{
		Env:   env,
		Files: fds.ProcFiles(),
		Sys: &syscall.SysProcAttr{
			Setpgid: true,
			Pgid:    pgid,
		},
	}
	pid, err := syscall.ForkExec(path, argv, attr)
	if err != nil {
		return 0, err
	}
	logger.Debugf("spawned %q as pid %d (group %d)", argv[0], pid, pgid)
	return pid, nil
}

// standIn spawns a child that prints msg and exits with status, with the
// pipeline's descriptors but none of the command's redirections.
func (e *Executor) standIn(streams redir.Streams, pgid, status int, msg string) (int, error) {
	fds, err := redir.ApplyProcess(streams, nil)
	if err != nil {
		return 0, err
	}
	defer fds.Close()

	argv, err := encodeArgv(standInChildName, standInPayload{Message: msg, Status: status})
	if err != nil {
		return 0, err
	}
	return forkExec(reexec.Self(), argv, e.sh.Vars().Environ(), fds, pgid)
}

// spawnBuiltin runs a builtin in a copy of the shell.
func (e *Executor) spawnBuiltin(inv *command.Invocation, streams redir.Streams, pgid int) (int, error) {
	fds, err := redir.ApplyProcess(streams, inv.Redirs)
	if err != nil {
		return e.standIn(streams, pgid, StatusRedirect, "gosh: "+err.Error())
	}
	defer fds.Close()

	argv, err := encodeArgv(builtinChildName, builtinPayload{
		Args:    inv.Args,
		Assigns: inv.Assigns,
		Vars:    e.sh.Vars().Snapshot(),
		Jobs:    e.sh.Jobs().Snapshot(),
		Params:  *e.sh.Params(),
	})
	if err != nil {
		return 0, err
	}
	return forkExec(reexec.Self(), argv, e.sh.Vars().Environ(), fds, pgid)
}

// spawnExternal runs a program found on the search path.
func (e *Executor) spawnExternal(inv *command.Invocation, streams redir.Streams, pgid int) (int, error) {
	name := inv.Name()

	searchPath, ok := e.sh.Vars().Lookup(commands.EnvPath)
	if !ok {
		searchPath = e.DefaultPath
	}
	path, err := lookPath(e.Fs, name, searchPath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return e.standIn(streams, pgid, StatusNotFound, fmt.Sprintf("gosh: %s: not found", name))
		}
		return e.standIn(streams, pgid, StatusNotFound, fmt.Sprintf("gosh: %s: %v", name, err))
	}

	fds, err := redir.ApplyProcess(streams, inv.Redirs)
	if err != nil {
		return e.standIn(streams, pgid, StatusRedirect, "gosh: "+err.Error())
	}
	defer fds.Close()

	pid, err := forkExec(path, inv.Args, childEnv(e.sh.Vars().Environ(), inv.Assigns), fds, pgid)
	if err != nil && isExecError(err) {
		return e.standIn(streams, pgid, StatusNotFound, fmt.Sprintf("gosh: %s: %v", name, err))
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return pid, nil
}

// childEnv is env with the assignments exported on top.
func childEnv(env []string, assigns []command.Assignment) []string {
	if len(assigns) == 0 {
		return env
	}
	merged := vars.NewStoreFromEnvList(env)
	for _, a := range assigns {
		if err := merged.Set(a.Name, a.Value); err == nil {
			merged.Export(a.Name)
		}
	}
	return merged.Environ()
}
