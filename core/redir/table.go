package redir

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/josephlewis42/gosh/core/logger"
)

// closedFd in a ProcFiles slice tells the child to close that descriptor.
const closedFd = ^uintptr(0)

// maxFd caps descriptor numbers when RLIMIT_NOFILE is unlimited or can't be
// read. It is the kernel's default fs.nr_open.
const maxFd = 1 << 20

// fdLimit is one more than the largest descriptor a redirection may target.
func fdLimit() int {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil || lim.Cur > maxFd {
		return maxFd
	}
	return int(lim.Cur)
}

// Streams are the descriptors a table starts from.
type Streams struct {
	// Base holds the shell's own 0, 1 and 2. Nil entries default to
	// os.Stdin, os.Stdout and os.Stderr.
	Base [3]*os.File

	// Upstream is the read end of the previous pipeline stage, if any.
	Upstream *os.File
	// Downstream is the write end feeding the next pipeline stage, if any.
	Downstream *os.File
}

func (s Streams) base(fd int) *os.File {
	if s.Base[fd] != nil {
		return s.Base[fd]
	}
	switch fd {
	case 0:
		return os.Stdin
	case 1:
		return os.Stdout
	}
	return os.Stderr
}

// Record is a table entry as seen from outside the package.
type Record struct {
	// Pseudo is the descriptor the command sees.
	Pseudo int
	// Real is the shell-side descriptor backing it, or -1 if closed.
	Real int
}

type entry struct {
	fd   int
	file *os.File // nil once explicitly closed
}

// Table maps the descriptors a command sees to descriptors owned by the
// table. There is at most one entry per descriptor; redirecting a
// descriptor again replaces its entry in place and closing it keeps the
// entry, marked closed. Descriptors without an entry resolve to the shell's
// own 0, 1 and 2.
//
// Every real descriptor in a table is a private duplicate. Close releases
// them all.
type Table struct {
	kind    string
	streams Streams
	entries []entry
}

// ApplyProcess builds the descriptor table for a child process: upstream
// on 0, downstream on 1, then the redirections in order. The table must be
// closed once the child has been spawned.
func ApplyProcess(s Streams, rs []Redirection) (*Table, error) {
	return build("process", s, rs)
}

// ApplyVirtual builds the overlay table a builtin uses for all of its I/O.
// The shell's real descriptors are never modified.
func ApplyVirtual(s Streams, rs []Redirection) (*Table, error) {
	return build("virtual", s, rs)
}

func build(kind string, s Streams, rs []Redirection) (*Table, error) {
	t := &Table{kind: kind, streams: s}
	if err := t.seed(0, s.Upstream); err != nil {
		t.Close()
		return nil, err
	}
	if err := t.seed(1, s.Downstream); err != nil {
		t.Close()
		return nil, err
	}
	for _, r := range rs {
		if err := t.apply(r); err != nil {
			t.Close()
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) seed(fd int, f *os.File) error {
	if f == nil {
		return nil
	}
	dup, err := dupFile(f)
	if err != nil {
		return err
	}
	t.set(fd, dup)
	return nil
}

func (t *Table) apply(r Redirection) error {
	if r.N < 0 || r.N >= fdLimit() {
		return fmt.Errorf("%d: %w", r.N, unix.EBADF)
	}
	if r.Op.IsDup() {
		if r.Target == "-" {
			logger.Debugf("%s redir: close %d", t.kind, r.N)
			t.closeFd(r.N)
			return nil
		}
		if m, ok := fdNumber(r.Target); ok {
			src, err := t.resolve(m)
			if err != nil {
				return fmt.Errorf("%d: %w", m, err)
			}
			dup, err := dupFile(src)
			if err != nil {
				return fmt.Errorf("%d: %w", m, err)
			}
			logger.Debugf("%s redir: dup %d onto %d", t.kind, m, r.N)
			t.set(r.N, dup)
			return nil
		}
		// Not a descriptor number: treat the operand as a file name, as if
		// a plain < or > had been written.
	}

	logger.Debugf("%s redir: open %q with flags %#x onto %d", t.kind, r.Target, r.Op.Flags(), r.N)
	f, err := os.OpenFile(r.Target, r.Op.Flags(), 0o777)
	if err != nil {
		return err
	}
	t.set(r.N, f)
	return nil
}

func (t *Table) find(fd int) *entry {
	for i := range t.entries {
		if t.entries[i].fd == fd {
			return &t.entries[i]
		}
	}
	return nil
}

// set gives fd to f, releasing whatever fd held before.
func (t *Table) set(fd int, f *os.File) {
	if e := t.find(fd); e != nil {
		if e.file != nil {
			e.file.Close()
		}
		e.file = f
		return
	}
	t.entries = append(t.entries, entry{fd: fd, file: f})
}

func (t *Table) closeFd(fd int) {
	if e := t.find(fd); e != nil {
		if e.file != nil {
			e.file.Close()
		}
		e.file = nil
		return
	}
	t.entries = append(t.entries, entry{fd: fd})
}

// resolve finds the file a descriptor refers to.
func (t *Table) resolve(fd int) (*os.File, error) {
	if e := t.find(fd); e != nil {
		if e.file == nil {
			return nil, unix.EBADF
		}
		return e.file, nil
	}
	if fd >= 0 && fd <= 2 {
		return t.streams.base(fd), nil
	}
	return nil, unix.EBADF
}

// File returns the file backing descriptor fd.
func (t *Table) File(fd int) (*os.File, error) {
	f, err := t.resolve(fd)
	if err != nil {
		return nil, &os.PathError{Op: "fd", Path: fmt.Sprint(fd), Err: err}
	}
	return f, nil
}

// Stdin is the reader for descriptor 0.
func (t *Table) Stdin() io.Reader {
	if f, err := t.File(0); err == nil {
		return f
	}
	return badFd{}
}

// Stdout is the writer for descriptor 1.
func (t *Table) Stdout() io.Writer {
	if f, err := t.File(1); err == nil {
		return f
	}
	return badFd{}
}

// Stderr is the writer for descriptor 2.
func (t *Table) Stderr() io.Writer {
	if f, err := t.File(2); err == nil {
		return f
	}
	return badFd{}
}

// Records lists the table's entries in the order they were created.
func (t *Table) Records() []Record {
	out := make([]Record, 0, len(t.entries))
	for _, e := range t.entries {
		r := Record{Pseudo: e.fd, Real: -1}
		if e.file != nil {
			r.Real = int(e.file.Fd())
		}
		out = append(out, r)
	}
	return out
}

// ProcFiles returns the descriptor list for syscall.ProcAttr.Files: index i
// is the descriptor the child gets as i. Closed descriptors, and any above 2
// without an entry, are closed in the child.
func (t *Table) ProcFiles() []uintptr {
	n := 3
	for _, e := range t.entries {
		if e.fd+1 > n {
			n = e.fd + 1
		}
	}
	files := make([]uintptr, n)
	for i := range files {
		files[i] = closedFd
		if i <= 2 {
			files[i] = t.streams.base(i).Fd()
		}
	}
	for _, e := range t.entries {
		if e.file == nil {
			files[e.fd] = closedFd
			continue
		}
		files[e.fd] = e.file.Fd()
	}
	return files
}

// Close releases every descriptor the table owns. It is safe to call more
// than once.
func (t *Table) Close() error {
	if t == nil {
		return nil
	}
	var errs []error
	for i := range t.entries {
		if f := t.entries[i].file; f != nil {
			if err := f.Close(); err != nil {
				errs = append(errs, err)
			}
			t.entries[i].file = nil
		}
	}
	t.entries = nil
	return errors.Join(errs...)
}

// dupFile duplicates f into a new close-on-exec descriptor owned by the
// returned file.
func dupFile(f *os.File) (*os.File, error) {
	fd, err := unix.FcntlInt(f.Fd(), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, os.NewSyscallError("fcntl", err)
	}
	return os.NewFile(uintptr(fd), f.Name()), nil
}

// badFd stands in for a closed descriptor.
type badFd struct{}

func (badFd) Read([]byte) (int, error)  { return 0, unix.EBADF }
func (badFd) Write([]byte) (int, error) { return 0, unix.EBADF }
