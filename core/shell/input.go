package shell

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/abiosoft/readline"
	"golang.org/x/sys/unix"

	"github.com/josephlewis42/gosh/core/signals"
)

// ErrInterrupted is returned by a read cut short by SIGINT or ^C.
var ErrInterrupted = errors.New("interrupted")

// lineSource produces command lines. continued is set while the previous
// line was unfinished.
type lineSource interface {
	ReadLine(continued bool) (string, error)
	Close() error
}

type lineResult struct {
	line string
	err  error
}

// plainSource reads lines from a file or pipe. A pump goroutine does the
// reading so a blocked read can be abandoned when an interrupt arrives.
type plainSource struct {
	lines     chan lineResult
	signals   *signals.Discipline
	done      chan struct{}
	closeOnce sync.Once
}

func newPlainSource(r io.Reader, d *signals.Discipline) *plainSource {
	src := &plainSource{
		lines:   make(chan lineResult),
		signals: d,
		done:    make(chan struct{}),
	}
	go src.pump(bufio.NewReader(r))
	return src
}

func (p *plainSource) pump(r *bufio.Reader) {
	defer close(p.lines)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			select {
			case p.lines <- lineResult{line: strings.TrimSuffix(line, "\n")}:
			case <-p.done:
				return
			}
		}
		if err != nil {
			select {
			case p.lines <- lineResult{err: err}:
			case <-p.done:
			}
			return
		}
	}
}

func (p *plainSource) ReadLine(bool) (string, error) {
	ctx := context.Background()
	if p.signals != nil {
		var cancel context.CancelFunc
		ctx, cancel = p.signals.Interruptible(ctx)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		return "", ErrInterrupted
	case res, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	}
}

func (p *plainSource) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// editorSource reads lines from the terminal with line editing.
type editorSource struct {
	rl     *readline.Instance
	input  *gatedInput
	prompt func() string
}

func newEditorSource(stdin *os.File, stdout, stderr io.Writer, prompt func() string, isTerminal func() bool) (*editorSource, error) {
	input := newGatedInput(stdin)
	cfg := &readline.Config{
		Stdin:        input,
		Stdout:       stdout,
		Stderr:       stderr,
		HistoryLimit: -1,

		FuncIsTerminal: isTerminal,
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	return &editorSource{rl: rl, input: input, prompt: prompt}, nil
}

func (e *editorSource) ReadLine(continued bool) (string, error) {
	if continued {
		e.rl.SetPrompt(ContinuationPrompt)
	} else {
		e.rl.SetPrompt(e.prompt())
	}

	e.input.Open()
	line, err := e.rl.Readline()
	e.input.Shut()

	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrInterrupted
	}
	return line, err
}

func (e *editorSource) Close() error {
	e.input.Close()
	return e.rl.Close()
}

// gatedInput is the editor's view of the terminal. It reads only while the
// shell is waiting for a command line so a foreground job gets everything
// typed while it runs, and the shell never reads from the terminal while
// another group owns it.
type gatedInput struct {
	f *os.File

	mu     sync.Mutex
	cond   *sync.Cond
	open   bool
	closed bool
}

func newGatedInput(f *os.File) *gatedInput {
	g := &gatedInput{f: f}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Open lets reads through.
func (g *gatedInput) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = true
	g.cond.Broadcast()
}

// Shut holds reads until the next Open.
func (g *gatedInput) Shut() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = false
}

// wait blocks until the gate is open, reporting false once closed.
func (g *gatedInput) wait() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for !g.open && !g.closed {
		g.cond.Wait()
	}
	return !g.closed
}

func (g *gatedInput) isOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

func (g *gatedInput) Read(p []byte) (int, error) {
	fd := int32(g.f.Fd())
	for {
		if !g.wait() {
			return 0, io.EOF
		}
		// Poll in short slices so a Shut is noticed before anything is read.
		fds := []unix.PollFd{{Fd: fd, Events: unix.POLLIN}}
		n, err := unix.Poll(fds, 100)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			return 0, err
		case n == 0 || !g.isOpen():
			continue
		}
		return g.f.Read(p)
	}
}

func (g *gatedInput) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.cond.Broadcast()
	return nil
}
