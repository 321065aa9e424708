package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/josephlewis42/gosh/core/jobs"
	"github.com/josephlewis42/gosh/core/redir"
)

// parseJobSpec resolves %N, N, %% and %+ to a job id. No operand means the
// current job.
func parseJobSpec(table *jobs.Table, operands []string) (jobs.ID, error) {
	switch len(operands) {
	case 0:
		return table.Current()
	case 1:
	default:
		return 0, errors.New("too many arguments")
	}

	spec := operands[0]
	if spec == "%%" || spec == "%+" {
		return table.Current()
	}
	n, err := strconv.Atoi(strings.TrimPrefix(spec, "%"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: no such job", spec)
	}
	jid := jobs.ID(n)
	if _, err := table.Group(jid); err != nil {
		return 0, err
	}
	return jid, nil
}

// Jobs lists the shell's jobs.
func Jobs(sh Shell, args []string, fds *redir.Table) error {
	cmd := &SimpleCommand{
		Use:   "jobs [-l]",
		Short: "Display status of jobs.",
	}
	long := cmd.Flags().Bool('l', "also show process group ids")
	printer := &ColorPrinter{}
	printer.Init(cmd.Flags(), fds.Stdout())

	return cmd.Run(args, fds, func() error {
		w := fds.Stdout()
		for _, j := range sh.Jobs().Snapshot() {
			state := fmt.Sprintf("%-12s", j.State())
			switch {
			case j.Status.Stopped():
				state = printer.Sprintf(ColorBoldRed, "%s", state)
			case j.State() == "Running":
				state = printer.Sprintf(ColorBoldGreen, "%s", state)
			}

			if *long {
				fmt.Fprintf(w, "[%d] %d %s %s\n", j.ID, j.Pgid, state, j.Command)
			} else {
				fmt.Fprintf(w, "[%d] %s %s\n", j.ID, state, j.Command)
			}
		}
		return nil
	})
}

// Fg moves a job to the foreground and waits for it.
func Fg(sh Shell, args []string, fds *redir.Table) error {
	cmd := &SimpleCommand{
		Use:   "fg [JOB]",
		Short: "Move a job to the foreground.",
	}

	return cmd.Run(args, fds, func() error {
		jid, err := parseJobSpec(sh.Jobs(), cmd.Flags().Args())
		if err != nil {
			return fmt.Errorf("fg: %w", err)
		}
		j, err := find(sh.Jobs(), jid)
		if err != nil {
			return fmt.Errorf("fg: %w", err)
		}
		fmt.Fprintln(fds.Stdout(), strings.TrimSuffix(j.Command, " &"))
		if err := sh.Waiter().ForegroundJob(jid); err != nil {
			return fmt.Errorf("fg: %w", err)
		}
		return nil
	})
}

// Bg resumes a stopped job in the background.
func Bg(sh Shell, args []string, fds *redir.Table) error {
	cmd := &SimpleCommand{
		Use:   "bg [JOB]",
		Short: "Move a job to the background.",
	}

	return cmd.Run(args, fds, func() error {
		jid, err := parseJobSpec(sh.Jobs(), cmd.Flags().Args())
		if err != nil {
			return fmt.Errorf("bg: %w", err)
		}
		j, err := find(sh.Jobs(), jid)
		if err != nil {
			return fmt.Errorf("bg: %w", err)
		}
		if err := sh.Waiter().Resume(jid); err != nil {
			return fmt.Errorf("bg: %w", err)
		}
		fmt.Fprintf(fds.Stdout(), "[%d] %s\n", jid, j.Command)
		return nil
	})
}

func find(table *jobs.Table, jid jobs.ID) (jobs.Job, error) {
	for _, j := range table.Snapshot() {
		if j.ID == jid {
			return j, nil
		}
	}
	return jobs.Job{}, fmt.Errorf("%%%d: %w", jid, jobs.ErrNoJob)
}

func init() {
	addBuiltin("jobs", Jobs)
	addBuiltin("fg", Fg)
	addBuiltin("bg", Bg)
}
