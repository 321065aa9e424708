package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestKill(t *testing.T) {
	cases := map[string]struct {
		args    []string
		kills   []int
		signals []unix.Signal
	}{
		"default-term": {
			args:    []string{"kill", "123"},
			kills:   []int{123},
			signals: []unix.Signal{unix.SIGTERM},
		},
		"number": {
			args:    []string{"kill", "-9", "123"},
			kills:   []int{123},
			signals: []unix.Signal{unix.SIGKILL},
		},
		"name": {
			args:    []string{"kill", "-HUP", "123", "456"},
			kills:   []int{123, 456},
			signals: []unix.Signal{unix.SIGHUP, unix.SIGHUP},
		},
		"s-flag": {
			args:    []string{"kill", "-s", "sigint", "123"},
			kills:   []int{123},
			signals: []unix.Signal{unix.SIGINT},
		},
		"running-job": {
			args:    []string{"kill", "%1"},
			kills:   []int{-100},
			signals: []unix.Signal{unix.SIGTERM},
		},
		"stopped-job-continued": {
			args:    []string{"kill", "%2"},
			kills:   []int{-200, -200},
			signals: []unix.Signal{unix.SIGTERM, unix.SIGCONT},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			sh := newTestShell()
			withJobs(sh)

			_, err := run(t, sh, BuiltinFunc(Kill), tc.args...)
			require.NoError(t, err)

			sys := sh.waiter.Sys.(*fakeSys)
			assert.Equal(t, tc.kills, sys.kills)
			assert.Equal(t, tc.signals, sys.signals)
		})
	}
}

func TestKillErrors(t *testing.T) {
	cases := map[string][]string{
		"no-operands": {"kill"},
		"bad-signal":  {"kill", "-s", "NOPE", "1"},
		"bad-pid":     {"kill", "abc"},
		"no-job":      {"kill", "%9"},
	}

	for tn, args := range cases {
		t.Run(tn, func(t *testing.T) {
			sh := newTestShell()
			withJobs(sh)

			_, err := run(t, sh, BuiltinFunc(Kill), args...)
			assert.Error(t, err)
			assert.Empty(t, sh.waiter.Sys.(*fakeSys).kills)
		})
	}
}

func TestKillList(t *testing.T) {
	out, err := run(t, newTestShell(), BuiltinFunc(Kill), "kill", "-l")
	require.NoError(t, err)
	assert.Contains(t, out, "HUP INT QUIT")
	assert.Contains(t, out, "TERM")
}

func TestParseSignal(t *testing.T) {
	for spec, want := range map[string]unix.Signal{
		"9":       unix.SIGKILL,
		"TERM":    unix.SIGTERM,
		"sigterm": unix.SIGTERM,
		"SIGCONT": unix.SIGCONT,
	} {
		got, err := parseSignal(spec)
		assert.NoError(t, err, spec)
		assert.Equal(t, want, got, spec)
	}

	for _, spec := range []string{"0", "65", "BOGUS", ""} {
		_, err := parseSignal(spec)
		assert.Error(t, err, spec)
	}
}
