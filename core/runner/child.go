package runner

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/moby/sys/reexec"
	"sigs.k8s.io/yaml"

	"github.com/josephlewis42/gosh/commands"
	"github.com/josephlewis42/gosh/core/command"
	"github.com/josephlewis42/gosh/core/jobs"
	"github.com/josephlewis42/gosh/core/params"
	"github.com/josephlewis42/gosh/core/redir"
	"github.com/josephlewis42/gosh/core/vars"
	"github.com/josephlewis42/gosh/core/wait"
)

// Names the shell re-executes itself under. Go can't run code between fork
// and exec, so a builtin that needs its own process, or a child that only
// has to report a failure, is a fresh copy of the shell in one of these
// modes.
const (
	builtinChildName = "gosh-builtin"
	standInChildName = "gosh-stand-in"
)

func init() {
	reexec.Register(builtinChildName, builtinChild)
	reexec.Register(standInChildName, standInChild)
}

// builtinPayload is the state a forked builtin needs, passed in argv.
type builtinPayload struct {
	Args    []string             `json:"args"`
	Assigns []command.Assignment `json:"assigns,omitempty"`
	Vars    []vars.Var           `json:"vars,omitempty"`
	Jobs    []jobs.Job           `json:"jobs,omitempty"`
	Params  params.Params        `json:"params"`
}

// standInPayload describes a child that prints a message and exits.
type standInPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func encodeArgv(name string, payload interface{}) ([]string, error) {
	out, err := yaml.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return []string{name, string(out)}, nil
}

func decodeArgv(payload interface{}) {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "gosh: %s: bad invocation\n", os.Args[0])
		os.Exit(2)
	}
	if err := yaml.UnmarshalStrict([]byte(os.Args[1]), payload); err != nil {
		fmt.Fprintf(os.Stderr, "gosh: %s: %v\n", os.Args[0], err)
		os.Exit(2)
	}
}

// childShell is the shell state a forked builtin sees: a copy of the
// parent's at the time of the fork.
type childShell struct {
	vars   *vars.Store
	jobs   *jobs.Table
	params *params.Params
	waiter *wait.Waiter

	exitRequested bool
	exitCode      int
}

var _ commands.Shell = (*childShell)(nil)

func (c *childShell) Vars() *vars.Store { return c.vars }
func (c *childShell) Jobs() *jobs.Table { return c.jobs }
func (c *childShell) Params() *params.Params { return c.params }
func (c *childShell) Waiter() *wait.Waiter { return c.waiter }
func (c *childShell) RequestExit(code int) { c.exitRequested, c.exitCode = true, code }

func builtinChild() {
	var p builtinPayload
	decodeArgv(&p)
	os.Exit(runBuiltinChild(p))
}

func runBuiltinChild(p builtinPayload) int {
	sh := &childShell{
		vars:   vars.NewStore(),
		jobs:   jobs.NewTable(),
		params: &p.Params,
	}
	sh.vars.Restore(p.Vars)
	sh.jobs.Restore(p.Jobs)
	sh.waiter = wait.New(sh.jobs, sh.params)

	b := commands.Null
	if len(p.Args) > 0 {
		found, ok := commands.Lookup(p.Args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "gosh: %s: not a builtin\n", p.Args[0])
			return StatusNotFound
		}
		b = found
	}

	for _, a := range p.Assigns {
		if err := sh.vars.Set(a.Name, a.Value); err != nil {
			fmt.Fprintf(os.Stderr, "gosh: %v\n", err)
			return StatusNotFound
		}
	}

	// Nothing is redirected: the parent already arranged the descriptors
	// this process started with.
	fds, err := redir.ApplyVirtual(redir.Streams{}, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gosh: %v\n", err)
		return StatusRedirect
	}
	defer fds.Close()

	if err := b.Main(sh, p.Args, fds); err != nil {
		report(fds.Stderr(), err)
		return StatusNotFound
	}
	if sh.exitRequested {
		return sh.exitCode
	}
	return 0
}

func standInChild() {
	var p standInPayload
	decodeArgv(&p)
	fmt.Fprintln(os.Stderr, p.Message)
	os.Exit(p.Status)
}

// report prints a builtin's error unless the builtin already did.
func report(w io.Writer, err error) {
	var usage *commands.ErrUsage
	if errors.As(err, &usage) {
		return
	}
	fmt.Fprintf(w, "gosh: %v\n", err)
}
