// Package jobs tracks the shell's jobs: one per pipeline, identified by a
// small job id and by the pipeline's process group.
//
// The table is only touched from the read-eval loop's goroutine and is not
// safe for concurrent use.
package jobs

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sys/unix"

	"github.com/josephlewis42/gosh/core/logger"
	"github.com/josephlewis42/gosh/core/params"
)

// ID is a job number as shown to the user, e.g. the 1 in "[1] 4242".
type ID int

// ErrNoJob is returned when a job id or process group isn't in the table.
var ErrNoJob = errors.New("no such job")

// Job is a pipeline the shell has started.
type Job struct {
	ID      ID              `json:"id"`
	Pgid    int             `json:"pgid"`
	Status  unix.WaitStatus `json:"status"`
	Command string          `json:"command"`
}

// State describes the job's last known status.
func (j Job) State() string {
	switch {
	case j.Status.Stopped():
		return "Stopped"
	case j.Status.Signaled():
		return "Terminated"
	case j.Status.Exited() && j.Status != 0:
		return fmt.Sprintf("Done(%d)", j.Status.ExitStatus())
	}
	return "Running"
}

func (j Job) String() string {
	return fmt.Sprintf("[%d] %-12s %s", j.ID, j.State(), j.Command)
}

// Table maps job ids to process groups.
type Table struct {
	jobs map[ID]*Job
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{jobs: make(map[ID]*Job)}
}

// Register adds a job for process group pgid. The new id is one more than the
// largest live id, so ids are reused once every later job is gone.
func (t *Table) Register(pgid int, command string) (ID, error) {
	if pgid <= 0 {
		return 0, fmt.Errorf("register job: invalid process group %d", pgid)
	}
	if _, err := t.FindByGroup(pgid); err == nil {
		return 0, fmt.Errorf("register job: process group %d already has a job", pgid)
	}

	var id ID = 1
	for existing := range t.jobs {
		if existing >= id {
			id = existing + 1
		}
	}
	t.jobs[id] = &Job{ID: id, Pgid: pgid, Command: command}
	logger.Debugf("job [%d] registered for group %d: %s", id, pgid, command)
	logger.RecordJob(logger.JobEvent{Kind: logger.EventJobStarted, Job: int(id), Pgid: pgid, Command: command})
	return id, nil
}

// FindByGroup returns the job for process group pgid.
func (t *Table) FindByGroup(pgid int) (ID, error) {
	for id, j := range t.jobs {
		if j.Pgid == pgid {
			return id, nil
		}
	}
	return 0, fmt.Errorf("process group %d: %w", pgid, ErrNoJob)
}

// Group returns the process group of job jid.
func (t *Table) Group(jid ID) (int, error) {
	j, ok := t.jobs[jid]
	if !ok {
		return 0, fmt.Errorf("%%%d: %w", jid, ErrNoJob)
	}
	return j.Pgid, nil
}

// RecordStatus stores the latest raw wait status of one of the job's
// processes.
func (t *Table) RecordStatus(jid ID, ws unix.WaitStatus) error {
	j, ok := t.jobs[jid]
	if !ok {
		return fmt.Errorf("%%%d: %w", jid, ErrNoJob)
	}
	j.Status = ws
	if ws.Stopped() {
		logger.RecordJob(logger.JobEvent{
			Kind:    logger.EventJobStopped,
			Job:     int(jid),
			Pgid:    j.Pgid,
			Command: j.Command,
			Status:  int(ws.StopSignal()),
		})
	}
	return nil
}

// LastStatus returns the status last recorded for job jid.
func (t *Table) LastStatus(jid ID) (unix.WaitStatus, error) {
	j, ok := t.jobs[jid]
	if !ok {
		return 0, fmt.Errorf("%%%d: %w", jid, ErrNoJob)
	}
	return j.Status, nil
}

// ForgetGroup removes the job for process group pgid.
func (t *Table) ForgetGroup(pgid int) error {
	jid, err := t.FindByGroup(pgid)
	if err != nil {
		return err
	}
	j := t.jobs[jid]
	delete(t.jobs, jid)
	logger.Debugf("job [%d] forgotten", jid)
	logger.RecordJob(logger.JobEvent{
		Kind:    logger.EventJobFinished,
		Job:     int(jid),
		Pgid:    pgid,
		Command: j.Command,
		Status:  params.StatusOf(j.Status),
	})
	return nil
}

// Snapshot copies the table's jobs in id order.
func (t *Table) Snapshot() []Job {
	out := make([]Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// Restore replaces the table's contents with a snapshot.
func (t *Table) Restore(snap []Job) {
	t.jobs = make(map[ID]*Job, len(snap))
	for i := range snap {
		j := snap[i]
		t.jobs[j.ID] = &j
	}
}

// Current returns the job fg and bg act on by default: the highest id.
func (t *Table) Current() (ID, error) {
	snap := t.Snapshot()
	if len(snap) == 0 {
		return 0, fmt.Errorf("current job: %w", ErrNoJob)
	}
	return snap[len(snap)-1].ID, nil
}
