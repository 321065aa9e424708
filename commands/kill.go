package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/josephlewis42/gosh/core/redir"
)

// Kill sends a signal to jobs or processes.
func Kill(sh Shell, args []string, fds *redir.Table) error {
	cmd := &SimpleCommand{
		Use:   "kill [-s SIGNAL | -SIGNAL] pid | %job ... or kill -l",
		Short: "Send a signal to a job.",
	}
	sigName := cmd.Flags().String('s', "TERM", "name or number of the signal to send")
	list := cmd.Flags().Bool('l', "list the signal names")

	return cmd.Run(signalShorthand(args), fds, func() error {
		if *list {
			var names []string
			for i := 1; i < 32; i++ {
				if name := unix.SignalName(unix.Signal(i)); name != "" {
					names = append(names, strings.TrimPrefix(name, "SIG"))
				}
			}
			fmt.Fprintln(fds.Stdout(), strings.Join(names, " "))
			return nil
		}

		sig, err := parseSignal(*sigName)
		if err != nil {
			return fmt.Errorf("kill: %w", err)
		}
		operands := cmd.Flags().Args()
		if len(operands) == 0 {
			return errors.New("kill: no process or job given")
		}

		var errs []error
		for _, op := range operands {
			if err := signalTarget(sh, op, sig); err != nil {
				errs = append(errs, fmt.Errorf("kill: %s: %w", op, err))
			}
		}
		return errors.Join(errs...)
	})
}

// signalTarget sends sig to a process, or to every process of a job. A
// stopped job is continued so it can act on the signal.
func signalTarget(sh Shell, target string, sig unix.Signal) error {
	sys := sh.Waiter().Sys
	if !strings.HasPrefix(target, "%") {
		pid, err := strconv.Atoi(target)
		if err != nil {
			return errors.New("arguments must be process or job IDs")
		}
		return sys.Kill(pid, sig)
	}

	jid, err := parseJobSpec(sh.Jobs(), []string{target})
	if err != nil {
		return err
	}
	j, err := find(sh.Jobs(), jid)
	if err != nil {
		return err
	}
	if err := sys.Kill(-j.Pgid, sig); err != nil {
		return err
	}
	if j.Status.Stopped() && sig != unix.SIGCONT {
		return sys.Kill(-j.Pgid, unix.SIGCONT)
	}
	return nil
}

// signalShorthand rewrites kill -9 and kill -TERM as kill -s 9 and
// kill -s TERM.
func signalShorthand(args []string) []string {
	if len(args) < 2 || len(args[1]) < 2 || args[1][0] != '-' {
		return args
	}
	switch args[1] {
	case "-s", "-l", "-h", "--help", "--":
		return args
	}
	if _, err := parseSignal(args[1][1:]); err != nil {
		return args
	}
	out := []string{args[0], "-s", args[1][1:]}
	return append(out, args[2:]...)
}

func parseSignal(spec string) (unix.Signal, error) {
	if n, err := strconv.Atoi(spec); err == nil {
		if n <= 0 || n > 64 {
			return 0, fmt.Errorf("%s: invalid signal number", spec)
		}
		return unix.Signal(n), nil
	}

	name := strings.ToUpper(spec)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig := unix.SignalNum(name); sig != 0 {
		return sig, nil
	}
	return 0, fmt.Errorf("%s: invalid signal specification", spec)
}

func init() {
	addBuiltin("kill", Kill)
}
