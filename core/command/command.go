// Package command holds the parsed and expanded forms of a simple command.
package command

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/gosh/core/redir"
)

// Ctrl is the operator that ends a command.
type Ctrl int

const (
	Seq        Ctrl = iota // ;
	Background             // &
	Pipe                   // |
)

func (c Ctrl) String() string {
	switch c {
	case Background:
		return "&"
	case Pipe:
		return "|"
	}
	return ";"
}

// Assign is a NAME=value prefix as written.
type Assign struct {
	Name  string
	Value *syntax.Word // nil for NAME=
}

// Redir is a redirection as written.
type Redir struct {
	Op     redir.Op
	N      int
	Target *syntax.Word
}

// Command is one simple command as parsed. It is never modified after the
// parser returns it.
type Command struct {
	Words   []*syntax.Word
	Assigns []Assign
	Redirs  []Redir
	Ctrl    Ctrl
}

// Source renders the command back to shell text.
func (c *Command) Source() string {
	var parts []string
	for _, a := range c.Assigns {
		parts = append(parts, a.Name+"="+wordSource(a.Value))
	}
	for _, w := range c.Words {
		parts = append(parts, wordSource(w))
	}
	for _, r := range c.Redirs {
		parts = append(parts, redir.Redirection{Op: r.Op, N: r.N, Target: wordSource(r.Target)}.String())
	}
	return strings.Join(parts, " ")
}

func wordSource(w *syntax.Word) string {
	if w == nil {
		return ""
	}
	var sb strings.Builder
	syntax.NewPrinter().Print(&sb, w)
	return sb.String()
}

// List is the commands of one input line, in order.
type List []*Command

// Pipelines splits the list at every operator other than |.
func (l List) Pipelines() []List {
	var out []List
	var cur List
	for _, c := range l {
		cur = append(cur, c)
		if c.Ctrl != Pipe {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// Source renders a pipeline, e.g. "sleep 1 | cat &".
func (l List) Source() string {
	var sb strings.Builder
	for i, c := range l {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(c.Source())
		if c.Ctrl != Seq || i < len(l)-1 {
			sb.WriteString(" " + c.Ctrl.String())
		}
	}
	return sb.String()
}

// Assignment is an expanded NAME=value.
type Assignment struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Invocation is a command after expansion.
type Invocation struct {
	Args    []string
	Assigns []Assignment
	Redirs  []redir.Redirection
	Ctrl    Ctrl
}

// Name is the command name, or "" for an assignment-only command.
func (inv *Invocation) Name() string {
	if len(inv.Args) == 0 {
		return ""
	}
	return inv.Args[0]
}
