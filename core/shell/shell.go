package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/josephlewis42/gosh/commands"
	"github.com/josephlewis42/gosh/core/command"
	"github.com/josephlewis42/gosh/core/config"
	"github.com/josephlewis42/gosh/core/jobs"
	"github.com/josephlewis42/gosh/core/logger"
	"github.com/josephlewis42/gosh/core/params"
	"github.com/josephlewis42/gosh/core/parse"
	"github.com/josephlewis42/gosh/core/runner"
	"github.com/josephlewis42/gosh/core/signals"
	"github.com/josephlewis42/gosh/core/tty"
	"github.com/josephlewis42/gosh/core/vars"
	"github.com/josephlewis42/gosh/core/wait"
)

// StatusSyntax is $? after a line that doesn't parse.
const StatusSyntax = 2

// Options are the shell's outside world.
type Options struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
	// Environ is the initial environment, os.Environ() if nil.
	Environ []string
}

// Shell holds the state of one shell session.
type Shell struct {
	config *config.Configuration

	vars     *vars.Store
	jobs     *jobs.Table
	params   *params.Params
	waiter   *wait.Waiter
	executor *runner.Executor
	parser   *parse.Parser
	signals  *signals.Discipline
	terminal *tty.Terminal

	stdin  *os.File
	stdout *os.File
	stderr *os.File

	color bool

	// foreground is the group that owned the terminal before the shell took
	// it, 0 if the shell never did.
	foreground int

	exitRequested bool
	exitCode      int
}

var _ runner.Shell = (*Shell)(nil)

// New creates a shell configured by cfg.
func New(cfg *config.Configuration, opts Options) *Shell {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ()
	}

	s := &Shell{
		config:   cfg,
		vars:     vars.NewStoreFromEnvList(opts.Environ),
		jobs:     jobs.NewTable(),
		params:   params.New(),
		parser:   parse.New(),
		terminal: tty.New(opts.Stdin),
		stdin:    opts.Stdin,
		stdout:   opts.Stdout,
		stderr:   opts.Stderr,
	}

	for _, kv := range cfg.Environ() {
		s.importVar(kv)
	}
	if _, ok := s.vars.Lookup(commands.EnvPWD); !ok {
		if wd, err := os.Getwd(); err == nil {
			s.vars.Set(commands.EnvPWD, wd)
			s.vars.Export(commands.EnvPWD)
		}
	}

	switch cfg.Color {
	case config.ModeAlways:
		s.color = true
	case config.ModeAuto:
		s.color = s.terminal.IsTerminal()
	}

	s.waiter = wait.New(s.jobs, s.params)
	s.waiter.Stderr = s.stderr

	s.executor = runner.New(s)
	s.executor.Stdio = [3]*os.File{s.stdin, s.stdout, s.stderr}
	s.executor.DefaultPath = cfg.DefaultPath
	return s
}

func (s *Shell) importVar(kv string) {
	env := vars.NewStoreFromEnvList([]string{kv})
	for _, v := range env.Snapshot() {
		if err := s.vars.Set(v.Name, v.Value); err != nil {
			logger.Debugf("config env: %v", err)
			continue
		}
		s.vars.Export(v.Name)
	}
}

func (s *Shell) Vars() *vars.Store { return s.vars }
func (s *Shell) Jobs() *jobs.Table { return s.jobs }
func (s *Shell) Params() *params.Params { return s.params }
func (s *Shell) Waiter() *wait.Waiter { return s.waiter }

// RequestExit implements commands.Shell.RequestExit.
func (s *Shell) RequestExit(code int) {
	s.exitRequested, s.exitCode = true, code
}

// ExitRequested implements runner.Shell.ExitRequested.
func (s *Shell) ExitRequested() bool {
	return s.exitRequested
}

// IsTerminal reports whether the shell's input is a terminal.
func (s *Shell) IsTerminal() bool {
	return s.terminal.IsTerminal()
}

// RunString runs a command string, as for sh -c.
func (s *Shell) RunString(command string) int {
	return s.Run(strings.NewReader(command))
}

// Run runs the commands read from r without line editing.
func (s *Shell) Run(r io.Reader) int {
	s.signals = signals.Init()
	defer s.signals.Restore()
	s.signals.EnableInterrupt(unix.SIGINT)

	src := newPlainSource(r, s.signals)
	defer src.Close()
	return s.loop(src)
}

// Interactive runs the read-eval loop on the terminal with line editing and
// job control.
func (s *Shell) Interactive() int {
	s.signals = signals.Init()
	defer s.signals.Restore()

	if err := s.takeTerminal(); err != nil {
		fmt.Fprintf(s.stderr, "gosh: %v\n", err)
	} else {
		defer s.releaseTerminal()
	}

	src, err := newEditorSource(s.stdin, s.stdout, s.stderr, s.prompt, s.terminal.IsTerminal)
	if err != nil {
		fmt.Fprintf(s.stderr, "gosh: %v\n", err)
		return 1
	}
	defer src.Close()
	return s.loop(src)
}

func (s *Shell) takeTerminal() error {
	if !s.terminal.IsTerminal() {
		return nil
	}
	previous, err := s.terminal.Foreground()
	if err != nil {
		return err
	}
	if err := s.terminal.TakeOwnership(); err != nil {
		return err
	}
	s.foreground = previous
	s.waiter.Terminal = s.terminal
	s.waiter.ShellPgid = unix.Getpgrp()
	logger.Debugf("took the terminal from group %d", previous)
	return nil
}

func (s *Shell) releaseTerminal() {
	if s.foreground == 0 || s.foreground == unix.Getpgrp() {
		return
	}
	if err := s.terminal.SetForeground(s.foreground); err != nil {
		logger.Debugf("give the terminal back: %v", err)
	}
}

// loop reads and runs lines until input ends or exit is requested. It
// returns the shell's exit status.
func (s *Shell) loop(src lineSource) int {
	var pending string
	for !s.exitRequested {
		if pending == "" {
			s.reap()
		}

		line, err := src.ReadLine(pending != "")
		switch {
		case errors.Is(err, ErrInterrupted):
			pending = ""
			continue
		case errors.Is(err, io.EOF):
			if pending != "" {
				s.Eval(pending)
			}
			if s.exitRequested {
				return s.exitCode
			}
			return s.params.Status
		case err != nil:
			fmt.Fprintf(s.stderr, "gosh: %v\n", err)
			return 1
		}

		text := pending + line
		list, err := s.parser.Line(text)
		if parse.Incomplete(err) {
			pending = text + "\n"
			continue
		}
		pending = ""
		s.run(list, err)
	}
	return s.exitCode
}

// Eval parses and runs one complete input.
func (s *Shell) Eval(text string) {
	s.run(s.parser.Line(text))
}

func (s *Shell) run(list command.List, err error) {
	if err != nil {
		fmt.Fprintf(s.stderr, "gosh: %v\n", err)
		s.params.Status = StatusSyntax
		return
	}
	if len(list) == 0 {
		return
	}
	if err := s.executor.Run(list); err != nil {
		fmt.Fprintf(s.stderr, "gosh: %v\n", err)
	}
}

// reap reports on background jobs.
func (s *Shell) reap() {
	if err := s.waiter.Background(); err != nil {
		fmt.Fprintf(s.stderr, "gosh: %v\n", err)
	}
}
