// Package redir applies I/O redirection operators to descriptor tables.
//
// Two kinds of table are built from the same engine: process tables, which
// describe the descriptors a spawned child starts with, and virtual tables,
// which builtins running inside the shell consult instead of the shell's own
// descriptors.
package redir

import (
	"fmt"
	"os"
	"strconv"
)

// Op is a redirection operator.
type Op int

const (
	Read      Op = iota // <
	Write               // >
	Append              // >>
	ReadWrite           // <>
	Clobber             // >|
	DupIn               // <&
	DupOut              // >&
)

var opNames = map[Op]string{
	Read:      "<",
	Write:     ">",
	Append:    ">>",
	ReadWrite: "<>",
	Clobber:   ">|",
	DupIn:     "<&",
	DupOut:    ">&",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Flags returns the open(2) flags used when the operator opens a file.
//
// The duplicate operators open a file only when their operand is not a
// descriptor number, in which case they behave like < and >.
func (o Op) Flags() int {
	switch o {
	case Read, DupIn:
		return os.O_RDONLY
	case Write, DupOut:
		return os.O_WRONLY | os.O_CREATE | os.O_EXCL
	case Append:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case ReadWrite:
		return os.O_RDWR | os.O_CREATE
	case Clobber:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	return os.O_RDONLY
}

// DefaultFd is the descriptor an operator targets when no number precedes it.
func (o Op) DefaultFd() int {
	switch o {
	case Read, DupIn, ReadWrite:
		return 0
	}
	return 1
}

// IsDup reports whether the operator is n>&m or n<&m.
func (o Op) IsDup() bool {
	return o == DupIn || o == DupOut
}

// Redirection is one operator with its target descriptor and operand.
type Redirection struct {
	Op Op
	// N is the descriptor being redirected.
	N int
	// Target is a filename, a descriptor number for the dup operators, or "-".
	Target string
}

func (r Redirection) String() string {
	return fmt.Sprintf("%d%s%s", r.N, r.Op, r.Target)
}

// fdNumber parses a dup operand as a descriptor. Anything that isn't a
// complete non-negative decimal int is not a descriptor.
func fdNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}
