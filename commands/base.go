// Package commands holds the shell's builtin commands.
//
// Builtins run inside the shell when they are the whole of a foreground
// command and in a forked copy of the shell otherwise. Either way they do
// all of their I/O through the descriptor table they are given.
package commands

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	getopt "github.com/pborman/getopt/v2"
	"golang.org/x/term"

	"github.com/josephlewis42/gosh/core/jobs"
	"github.com/josephlewis42/gosh/core/params"
	"github.com/josephlewis42/gosh/core/redir"
	"github.com/josephlewis42/gosh/core/vars"
	"github.com/josephlewis42/gosh/core/wait"
)

// Shell is the shell state builtins may read and change.
type Shell interface {
	Vars() *vars.Store
	Jobs() *jobs.Table
	Params() *params.Params
	Waiter() *wait.Waiter
	// RequestExit asks the shell to exit with code once the current
	// command finishes.
	RequestExit(code int)
}

// Builtin is a command implemented by the shell itself. A non-nil error
// gives the command a failing status.
type Builtin interface {
	Main(sh Shell, args []string, fds *redir.Table) error
}

// BuiltinFunc adapts a function to Builtin.
type BuiltinFunc func(sh Shell, args []string, fds *redir.Table) error

// Main implements Builtin.Main.
func (f BuiltinFunc) Main(sh Shell, args []string, fds *redir.Table) error {
	return f(sh, args, fds)
}

var _ Builtin = (BuiltinFunc)(nil)

// AllBuiltins holds every registered builtin by name.
var AllBuiltins = make(map[string]Builtin)

// Null runs for commands that only assign variables.
var Null Builtin = BuiltinFunc(func(Shell, []string, *redir.Table) error { return nil })

// Lookup finds a builtin by name.
func Lookup(name string) (Builtin, bool) {
	b, ok := AllBuiltins[name]
	return b, ok
}

// Names lists the builtins in sorted order.
func Names() []string {
	var out []string
	for name := range AllBuiltins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func addBuiltin(name string, b BuiltinFunc) {
	AllBuiltins[name] = b
}

// ErrUsage is returned when a builtin is invoked with bad arguments.
type ErrUsage struct {
	Name string
	Err  error
}

func (e *ErrUsage) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *ErrUsage) Unwrap() error {
	return e.Err
}

// SimpleCommand handles flag parsing and help for a builtin.
type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run parses args and, if that worked and help wasn't asked for, calls the
// callback.
func (s *SimpleCommand) Run(args []string, fds *redir.Table, callback func() error) error {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	if err := opts.Getopt(args, nil); err != nil {
		fmt.Fprintf(fds.Stderr(), "%s: %s\n\n", args[0], err)
		s.PrintHelp(fds.Stderr())
		return &ErrUsage{Name: args[0], Err: err}
	}

	if *s.ShowHelp {
		s.PrintHelp(fds.Stdout())
		return nil
	}

	return callback()
}

const (
	colorAlways = "always"
	colorAuto   = "auto"
	colorNever  = "never"
)

var (
	ColorBoldBlue  = color.New(color.FgBlue, color.Bold)
	ColorBoldGreen = color.New(color.FgGreen, color.Bold)
	ColorBoldRed   = color.New(color.FgRed, color.Bold)
)

// ColorPrinter colors output when asked to, or when it goes to a terminal.
type ColorPrinter struct {
	value *string
	out   io.Writer
}

// Init adds the --color flag and remembers where output goes.
func (c *ColorPrinter) Init(flags *getopt.Set, out io.Writer) {
	c.out = out
	c.value = flags.EnumLong(
		"color",
		rune(0), // No short flag.
		[]string{colorAlways, colorAuto, colorNever},
		colorAuto,
		"colorize the output (always|auto|never)")
}

// ShouldColor reports whether output should be colored.
func (c *ColorPrinter) ShouldColor() bool {
	switch {
	case *c.value == colorNever:
		return false
	case *c.value == colorAlways:
		return true
	default:
		f, ok := c.out.(*os.File)
		return ok && term.IsTerminal(int(f.Fd()))
	}
}

// Sprintf formats with color when ShouldColor allows it.
func (c *ColorPrinter) Sprintf(col *color.Color, format string, a ...interface{}) string {
	if c.ShouldColor() {
		// color.NoColor is decided from os.Stdout, which may not be where
		// this output is going.
		forced := *col
		forced.EnableColor()
		return forced.Sprintf(format, a...)
	}
	return fmt.Sprintf(format, a...)
}
