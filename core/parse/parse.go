// Package parse turns a line of shell input into a command list.
//
// The grammar is POSIX sh restricted to simple commands joined by ;, & and |.
// Everything else the parser understands (compound commands, && and ||,
// functions, here-documents) is rejected with an error naming the construct.
package parse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/gosh/core/command"
	"github.com/josephlewis42/gosh/core/logger"
	"github.com/josephlewis42/gosh/core/redir"
)

var redirOps = map[syntax.RedirOperator]redir.Op{
	syntax.RdrIn:    redir.Read,
	syntax.RdrOut:   redir.Write,
	syntax.AppOut:   redir.Append,
	syntax.RdrInOut: redir.ReadWrite,
	syntax.ClbOut:   redir.Clobber,
	syntax.DplIn:    redir.DupIn,
	syntax.DplOut:   redir.DupOut,
}

// Parser parses shell input.
type Parser struct {
	p *syntax.Parser
}

// New creates a POSIX sh parser.
func New() *Parser {
	return &Parser{p: syntax.NewParser(syntax.Variant(syntax.LangPOSIX))}
}

// Line parses one line of input.
func (p *Parser) Line(line string) (command.List, error) {
	return p.Parse(strings.NewReader(line), "")
}

// Parse parses a whole input. name is used in error messages.
func (p *Parser) Parse(r io.Reader, name string) (command.List, error) {
	file, err := p.p.Parse(r, name)
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}

	var list command.List
	for _, stmt := range file.Stmts {
		pipeline, err := flatten(stmt)
		if err != nil {
			return nil, err
		}
		ctrl := command.Seq
		if stmt.Background {
			ctrl = command.Background
		}
		pipeline[len(pipeline)-1].Ctrl = ctrl
		list = append(list, pipeline...)
	}
	return list, nil
}

// Incomplete reports whether err came from input that ended mid-construct,
// like an unterminated quote.
func Incomplete(err error) bool {
	var perr syntax.ParseError
	return errors.As(err, &perr) && perr.Incomplete
}

// flatten turns a statement into its pipeline stages, every stage but the
// last ending in |.
func flatten(stmt *syntax.Stmt) ([]*command.Command, error) {
	switch {
	case stmt.Negated:
		return nil, unsupported(stmt, "!")
	case stmt.Coprocess:
		return nil, unsupported(stmt, "coprocesses")
	}

	bin, ok := stmt.Cmd.(*syntax.BinaryCmd)
	if !ok {
		cmd, err := simple(stmt)
		if err != nil {
			return nil, err
		}
		return []*command.Command{cmd}, nil
	}

	switch bin.Op {
	case syntax.Pipe:
	case syntax.AndStmt, syntax.OrStmt:
		return nil, unsupported(stmt, "&& and ||")
	default:
		return nil, unsupported(stmt, bin.Op.String())
	}
	if len(stmt.Redirs) > 0 {
		return nil, unsupported(stmt, "redirecting a whole pipeline")
	}

	left, err := flatten(bin.X)
	if err != nil {
		return nil, err
	}
	right, err := flatten(bin.Y)
	if err != nil {
		return nil, err
	}
	if bin.X.Background || bin.Y.Background {
		return nil, unsupported(stmt, "& inside a pipeline")
	}
	left[len(left)-1].Ctrl = command.Pipe
	return append(left, right...), nil
}

func simple(stmt *syntax.Stmt) (*command.Command, error) {
	cmd := &command.Command{}

	switch x := stmt.Cmd.(type) {
	case nil:
		// A bare redirection like "> file".
	case *syntax.CallExpr:
		for _, as := range x.Assigns {
			if as.Append || as.Index != nil || as.Array != nil || as.Naked {
				return nil, unsupported(as, "this kind of assignment")
			}
			cmd.Assigns = append(cmd.Assigns, command.Assign{Name: as.Name.Value, Value: as.Value})
		}
		cmd.Words = x.Args
	default:
		return nil, unsupported(stmt, describe(x))
	}

	for _, r := range stmt.Redirs {
		op, ok := redirOps[r.Op]
		if !ok {
			return nil, unsupported(r, r.Op.String())
		}
		n := op.DefaultFd()
		if r.N != nil {
			v, err := strconv.Atoi(r.N.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: bad descriptor %q", r.Pos(), r.N.Value)
			}
			n = v
		}
		cmd.Redirs = append(cmd.Redirs, command.Redir{Op: op, N: n, Target: r.Word})
	}
	return cmd, nil
}

func describe(cmd syntax.Command) string {
	switch cmd.(type) {
	case *syntax.IfClause:
		return "if"
	case *syntax.WhileClause:
		return "loops"
	case *syntax.ForClause:
		return "for"
	case *syntax.CaseClause:
		return "case"
	case *syntax.Block:
		return "{ }"
	case *syntax.Subshell:
		return "( )"
	case *syntax.FuncDecl:
		return "functions"
	}
	return fmt.Sprintf("%T", cmd)
}

func unsupported(node syntax.Node, what string) error {
	if logger.Debug.Writer() != io.Discard {
		buf := &bytes.Buffer{}
		syntax.DebugPrint(buf, node)
		logger.Debugf("unsupported syntax: %s", buf.String())
	}
	return fmt.Errorf("%s: %s is not supported", node.Pos(), what)
}
