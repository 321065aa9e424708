// Package signals manages the dispositions of the terminal control signals
// for the shell process.
//
// The shell must survive SIGINT, SIGTSTP and SIGTTOU while the programs it
// starts receive them with whatever disposition the shell itself inherited.
// A signal that was ignored at startup stays ignored, and children inherit
// that. Any other signal is caught into a sink that discards it. The Go
// runtime resets caught signals to their default action in a forked child
// before exec, so children get the default behavior without any work
// between fork and exec.
package signals

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/josephlewis42/gosh/core/logger"
)

// Control are the terminal control signals the shell manages.
var Control = []os.Signal{unix.SIGTSTP, unix.SIGINT, unix.SIGTTOU}

// Discipline is the installed signal handling for the shell.
type Discipline struct {
	ignoredAtStart map[os.Signal]bool
	sink           chan os.Signal
	interrupts     chan os.Signal
}

// Init records the startup disposition of each control signal and makes
// the shell immune to all of them.
func Init() *Discipline {
	d := &Discipline{
		ignoredAtStart: make(map[os.Signal]bool),
		sink:           make(chan os.Signal, 8),
		interrupts:     make(chan os.Signal, 1),
	}
	go func() {
		for range d.sink {
		}
	}()

	mask, haveMask := kernelIgnored()
	for _, sig := range Control {
		if haveMask {
			d.ignoredAtStart[sig] = mask&(1<<(uint(sig.(unix.Signal))-1)) != 0
		} else {
			d.ignoredAtStart[sig] = signal.Ignored(sig)
		}
		d.install(sig)
	}
	return d
}

// kernelIgnored reads the process's ignored signal mask. The runtime leaves
// SIGTSTP and SIGTTOU alone until a package asks for them, so this is the
// inherited disposition; signal.Ignored only knows about inherited ignores
// for SIGHUP and SIGINT.
func kernelIgnored() (uint64, bool) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if hex, ok := strings.CutPrefix(scanner.Text(), "SigIgn:"); ok {
			mask, err := strconv.ParseUint(strings.TrimSpace(hex), 16, 64)
			return mask, err == nil
		}
	}
	return 0, false
}

func (d *Discipline) install(sig os.Signal) {
	if d.ignoredAtStart[sig] {
		logger.Debugf("signal %v: ignored at startup, keeping it ignored", sig)
		signal.Ignore(sig)
		return
	}
	logger.Debugf("signal %v: discarding", sig)
	signal.Notify(d.sink, sig)
}

// Ignore makes the shell discard sig.
func (d *Discipline) Ignore(sig os.Signal) {
	signal.Notify(d.sink, sig)
}

// EnableInterrupt delivers sig to the Interrupts channel as well as keeping
// the shell immune to it.
func (d *Discipline) EnableInterrupt(sig os.Signal) {
	signal.Notify(d.sink, sig)
	signal.Notify(d.interrupts, sig)
}

// Interrupts receives the signals passed to EnableInterrupt.
func (d *Discipline) Interrupts() <-chan os.Signal {
	return d.interrupts
}

// Interruptible returns a context that is cancelled when an interrupt
// arrives. The caller must call the returned cancel function.
func (d *Discipline) Interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-d.interrupts:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Restore puts every control signal back to its startup disposition.
func (d *Discipline) Restore() {
	signal.Stop(d.interrupts)
	signal.Stop(d.sink)
	for _, sig := range Control {
		signal.Reset(sig)
		if d.ignoredAtStart[sig] {
			signal.Ignore(sig)
		}
	}
}

// IgnoredAtStart reports whether sig was ignored when Init ran.
func (d *Discipline) IgnoredAtStart(sig os.Signal) bool {
	return d.ignoredAtStart[sig]
}
