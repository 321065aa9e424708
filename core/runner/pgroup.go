package runner

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/josephlewis42/gosh/core/jobs"
	"github.com/josephlewis42/gosh/core/logger"
)

// joinGroup puts pid into process group pgid from the parent. The child
// does the same before exec; whichever runs second is a no-op. EACCES means
// the child has already exec'd and placed itself, so it isn't an error.
func joinGroup(pid, pgid int) error {
	err := unix.Setpgid(pid, pgid)
	switch {
	case err == nil:
	case errors.Is(err, unix.EACCES):
		logger.Debugf("setpgid(%d, %d): child already exec'd", pid, pgid)
	default:
		return fmt.Errorf("setpgid(%d, %d): %w", pid, pgid, err)
	}
	logger.Debugf("pid %d joined group %d", pid, pgid)
	return nil
}

// place puts a freshly spawned process into the pipeline's group, starting
// the group and its job when pid is the pipeline's first process.
func place(table *jobs.Table, p pipeline, pid int, source string) (pipeline, error) {
	first := p.pgid == 0
	if first {
		p.pgid = pid
	}
	if err := joinGroup(pid, p.pgid); err != nil {
		return p, err
	}
	if first {
		jid, err := table.Register(p.pgid, source)
		if err != nil {
			return p, err
		}
		p.jid = jid
	}
	return p, nil
}
