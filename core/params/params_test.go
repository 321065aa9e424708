package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

// Raw wait statuses as the kernel encodes them.
func exited(code int) unix.WaitStatus { return unix.WaitStatus(code << 8) }
func signaled(sig unix.Signal) unix.WaitStatus { return unix.WaitStatus(sig) }
func stopped(sig unix.Signal) unix.WaitStatus { return unix.WaitStatus(int(sig)<<8 | 0x7f) }

func TestStatusOf(t *testing.T) {
	cases := map[string]struct {
		ws       unix.WaitStatus
		expected int
	}{
		"exit 0":  {exited(0), 0},
		"exit 3":  {exited(3), 3},
		"sigterm": {signaled(unix.SIGTERM), 143},
		"sigkill": {signaled(unix.SIGKILL), 137},
		"stopped": {stopped(unix.SIGTSTP), 148},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, StatusOf(tc.ws))
		})
	}
}

func TestPairs(t *testing.T) {
	p := &Params{Status: 2, ShellPid: 10}
	assert.Equal(t, []string{"?=2", "$=10"}, p.Pairs())

	p.BgPid = 11
	assert.Equal(t, []string{"?=2", "$=10", "!=11"}, p.Pairs())
}

func TestNew(t *testing.T) {
	assert.Equal(t, unix.Getpid(), New().ShellPid)
}
