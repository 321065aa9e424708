// Package runner executes command lists: it spawns pipeline stages in their
// process group, wires pipes and redirections, runs builtins inside the
// shell when it can and hands foreground jobs to the waiter.
package runner

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/josephlewis42/gosh/commands"
	"github.com/josephlewis42/gosh/core/command"
	"github.com/josephlewis42/gosh/core/expand"
	"github.com/josephlewis42/gosh/core/jobs"
	"github.com/josephlewis42/gosh/core/logger"
	"github.com/josephlewis42/gosh/core/redir"
)

// Shell statuses set by the executor itself.
const (
	StatusRedirect = 1
	StatusNotFound = 127
)

// Shell is the shell an executor runs commands for.
type Shell interface {
	commands.Shell
	ExitRequested() bool
}

// Executor runs command lists.
type Executor struct {
	sh       Shell
	expander *expand.Expander

	// Stdio holds the shell's own standard descriptors. Nil entries mean
	// os.Stdin, os.Stdout and os.Stderr.
	Stdio [3]*os.File
	// DefaultPath is searched for commands when PATH is unset.
	DefaultPath string
	// Fs is used to find commands on the search path.
	Fs afero.Fs
}

// New creates an executor for sh.
func New(sh Shell) *Executor {
	return &Executor{
		sh:       sh,
		expander: &expand.Expander{Vars: sh.Vars(), Params: sh.Params()},
		Fs:       afero.NewOsFs(),
	}
}

func (e *Executor) stderr() io.Writer {
	if e.Stdio[2] != nil {
		return e.Stdio[2]
	}
	return os.Stderr
}

// pipeline is the state carried from one stage of a pipeline to the next.
type pipeline struct {
	// upstream is the read end of the previous stage's pipe, owned by the
	// executor until the stage reading it has been started.
	upstream *os.File
	// pgid is the pipeline's process group, 0 until its first process exists.
	pgid int
	jid  jobs.ID
}

func (p pipeline) release() {
	if p.upstream != nil {
		p.upstream.Close()
	}
}

// Run executes list. Errors that only affect one command are reported and
// reflected in $?; an error is returned only when the rest of the list can't
// run.
func (e *Executor) Run(list command.List) error {
	for _, stages := range list.Pipelines() {
		if err := e.runPipeline(stages); err != nil {
			return err
		}
		if e.sh.ExitRequested() {
			logger.Debugf("exit requested, skipping the rest of the list")
			return nil
		}
	}
	return nil
}

func (e *Executor) runPipeline(stages command.List) error {
	if len(stages) == 0 {
		return nil
	}
	source := stages.Source()
	background := stages[len(stages)-1].Ctrl == command.Background
	var p pipeline
	for _, cmd := range stages {
		inv, err := e.expander.Command(cmd)
		if err != nil {
			fmt.Fprintf(e.stderr(), "gosh: %v\n", err)
			e.abandon(p, background)
			e.sh.Params().Status = 1
			return nil
		}

		p, err = e.step(p, inv, source)
		if err != nil {
			p.release()
			return err
		}
		if e.sh.ExitRequested() {
			break
		}
	}
	// Only a list ending in | leaves a pipe behind.
	p.release()
	return nil
}

// abandon gives up on a partly started pipeline. Stages already running
// lose the reader of their output pipe. A foreground pipeline is waited for;
// a background one is announced and left for the background reap.
func (e *Executor) abandon(p pipeline, background bool) {
	p.release()
	if p.pgid == 0 {
		return
	}
	if background {
		fmt.Fprintf(e.stderr(), "[%d] %d\n", p.jid, p.pgid)
		return
	}
	if err := e.sh.Waiter().Foreground(p.pgid); err != nil {
		fmt.Fprintf(e.stderr(), "gosh: %v\n", err)
	}
}

// step runs one command of a pipeline and returns the state for the next.
func (e *Executor) step(p pipeline, inv *command.Invocation, source string) (pipeline, error) {
	upstream := p.upstream
	defer func() {
		if upstream != nil {
			upstream.Close()
		}
	}()

	next := pipeline{pgid: p.pgid, jid: p.jid}
	var downstream *os.File
	if inv.Ctrl == command.Pipe {
		r, w, err := os.Pipe()
		if err != nil {
			return e.fail(fmt.Errorf("pipe: %w", err))
		}
		next.upstream, downstream = r, w
		defer downstream.Close()
	}

	streams := redir.Streams{Base: e.Stdio, Upstream: upstream, Downstream: downstream}

	b, isBuiltin := commands.Null, true
	if name := inv.Name(); name != "" {
		b, isBuiltin = commands.Lookup(name)
	}

	if isBuiltin && inv.Ctrl == command.Seq && upstream == nil {
		e.runInProcess(b, inv, streams)
		return pipeline{}, nil
	}

	var pid int
	var err error
	if isBuiltin {
		pid, err = e.spawnBuiltin(inv, streams, next.pgid)
	} else {
		pid, err = e.spawnExternal(inv, streams, next.pgid)
	}
	if err != nil {
		next.release()
		return e.fail(err)
	}

	next, err = place(e.sh.Jobs(), next, pid, source)
	if err != nil {
		next.release()
		return e.fail(err)
	}

	params := e.sh.Params()
	switch inv.Ctrl {
	case command.Seq:
		if err := e.sh.Waiter().Foreground(next.pgid); err != nil {
			params.Status = StatusNotFound
			return pipeline{}, err
		}
		return pipeline{}, nil

	case command.Background:
		params.BgPid, params.Status = pid, 0
		fmt.Fprintf(e.stderr(), "[%d] %d\n", next.jid, next.pgid)
		return pipeline{}, nil
	}

	params.BgPid, params.Status = pid, 0
	return next, nil
}

// fail records a setup failure that ends the list.
func (e *Executor) fail(err error) (pipeline, error) {
	e.sh.Params().Status = 1
	return pipeline{}, err
}

// runInProcess runs a builtin inside the shell against a virtual descriptor
// table.
func (e *Executor) runInProcess(b commands.Builtin, inv *command.Invocation, streams redir.Streams) {
	params := e.sh.Params()

	fds, err := redir.ApplyVirtual(streams, inv.Redirs)
	if err != nil {
		fmt.Fprintf(e.stderr(), "gosh: %v\n", err)
		params.Status = StatusRedirect
		return
	}
	defer fds.Close()

	for _, a := range inv.Assigns {
		if err := e.sh.Vars().Set(a.Name, a.Value); err != nil {
			fmt.Fprintf(fds.Stderr(), "gosh: %v\n", err)
			params.Status = 1
			return
		}
	}

	logger.Debugf("builtin %q in process", inv.Args)
	if err := b.Main(e.sh, inv.Args, fds); err != nil {
		report(fds.Stderr(), err)
		params.Status = StatusNotFound
		return
	}
	params.Status = 0
}
