// Package expand performs word expansion on parsed commands.
package expand

import (
	"fmt"

	shexpand "mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/gosh/core/command"
	"github.com/josephlewis42/gosh/core/params"
	"github.com/josephlewis42/gosh/core/redir"
	"github.com/josephlewis42/gosh/core/vars"
)

// Expander expands words against the shell's variables and parameters.
// Tilde expansion, parameter expansion, field splitting and quote removal
// are supported; command substitution is an error and globbing is not
// done.
type Expander struct {
	Vars   *vars.Store
	Params *params.Params
}

func (e *Expander) config(extra []command.Assignment) *shexpand.Config {
	pairs := append(e.Vars.Pairs(), e.Params.Pairs()...)
	for _, a := range extra {
		pairs = append(pairs, a.Name+"="+a.Value)
	}
	return &shexpand.Config{Env: shexpand.ListEnviron(pairs...)}
}

// Command expands cmd into an invocation. cmd is not modified.
func (e *Expander) Command(cmd *command.Command) (*command.Invocation, error) {
	inv := &command.Invocation{Ctrl: cmd.Ctrl}

	// Later assignments see earlier ones.
	for _, a := range cmd.Assigns {
		value, err := e.literal(e.config(inv.Assigns), a.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name, err)
		}
		inv.Assigns = append(inv.Assigns, command.Assignment{Name: a.Name, Value: value})
	}

	cfg := e.config(nil)
	args, err := shexpand.Fields(cfg, cmd.Words...)
	if err != nil {
		return nil, err
	}
	inv.Args = args

	for _, r := range cmd.Redirs {
		target, err := e.literal(cfg, r.Target)
		if err != nil {
			return nil, err
		}
		inv.Redirs = append(inv.Redirs, redir.Redirection{Op: r.Op, N: r.N, Target: target})
	}
	return inv, nil
}

func (e *Expander) literal(cfg *shexpand.Config, w *syntax.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	return shexpand.Literal(cfg, w)
}
