package runner

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/moby/sys/reexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/josephlewis42/gosh/core/command"
	"github.com/josephlewis42/gosh/core/jobs"
	"github.com/josephlewis42/gosh/core/params"
	"github.com/josephlewis42/gosh/core/parse"
	"github.com/josephlewis42/gosh/core/vars"
	"github.com/josephlewis42/gosh/core/wait"
)

func TestMain(m *testing.M) {
	if reexec.Init() {
		return
	}
	os.Exit(m.Run())
}

// countingSys counts completed wait4 calls.
type countingSys struct {
	wait.OS
	events int
}

func (c *countingSys) Wait4(pid int, ws *unix.WaitStatus, options int) (int, error) {
	got, err := c.OS.Wait4(pid, ws, options)
	if !errors.Is(err, unix.EINTR) {
		c.events++
	}
	return got, err
}

type testShell struct {
	vars   *vars.Store
	jobs   *jobs.Table
	params *params.Params
	waiter *wait.Waiter
	sys    *countingSys

	exitRequested bool
	exitCode      int
}

func (s *testShell) Vars() *vars.Store { return s.vars }
func (s *testShell) Jobs() *jobs.Table { return s.jobs }
func (s *testShell) Params() *params.Params { return s.params }
func (s *testShell) Waiter() *wait.Waiter { return s.waiter }
func (s *testShell) RequestExit(code int) { s.exitRequested, s.exitCode = true, code }
func (s *testShell) ExitRequested() bool { return s.exitRequested }

type fixture struct {
	sh     *testShell
	exec   *Executor
	dir    string
	stdout *os.File
	stderr *os.File
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	sh := &testShell{
		vars:   vars.NewStoreFromEnvList([]string{"PATH=" + os.Getenv("PATH")}),
		jobs:   jobs.NewTable(),
		params: params.New(),
		sys:    &countingSys{},
	}
	sh.vars.Set("DIR", dir)
	sh.vars.Set("OUT", filepath.Join(dir, "out"))

	f := &fixture{sh: sh, dir: dir}
	f.stdout = tempFile(t, dir, "stdout")
	f.stderr = tempFile(t, dir, "stderr")
	stdin, err := os.Open(os.DevNull)
	require.NoError(t, err)
	t.Cleanup(func() { stdin.Close() })

	sh.waiter = &wait.Waiter{Sys: sh.sys, Jobs: sh.jobs, Params: sh.params, Stderr: f.stderr}
	f.exec = New(sh)
	f.exec.Stdio = [3]*os.File{stdin, f.stdout, f.stderr}
	return f
}

func tempFile(t *testing.T, dir, name string) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func (f *fixture) run(t *testing.T, line string) error {
	t.Helper()
	list, err := parse.New().Line(line)
	require.NoError(t, err)
	return f.exec.Run(list)
}

func (f *fixture) read(t *testing.T, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(f.dir, name))
	require.NoError(t, err)
	return string(content)
}

func openFds(t *testing.T) int {
	t.Helper()
	ents, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd:", err)
	}
	return len(ents)
}

func statFds(t *testing.T) [3]unix.Stat_t {
	t.Helper()
	var out [3]unix.Stat_t
	for fd := range out {
		require.NoError(t, unix.Fstat(fd, &out[fd]))
	}
	return out
}

func TestPipelineSharesGroup(t *testing.T) {
	f := newFixture(t)
	stage := func(n int) string {
		return `sh -c 'read -r pid comm state ppid pgrp rest </proc/$$/stat; echo ` +
			strconv.Itoa(n) + ` $$ $pgrp' >>$OUT`
	}

	require.NoError(t, f.run(t, stage(1)+" | "+stage(2)+" | "+stage(3)))

	lines := strings.Split(strings.TrimSpace(f.read(t, "out")), "\n")
	require.Len(t, lines, 3)
	sort.Strings(lines)

	pids := map[string]bool{}
	var groups []string
	for _, line := range lines {
		fields := strings.Fields(line)
		require.Len(t, fields, 3, line)
		pids[fields[1]] = true
		groups = append(groups, fields[2])
	}
	assert.Len(t, pids, 3, "three processes")
	firstPid := strings.Fields(lines[0])[1]
	assert.Equal(t, []string{firstPid, firstPid, firstPid}, groups, "group is the first stage's pid")
	assert.NotEqual(t, strconv.Itoa(unix.Getpgrp()), firstPid)
	assert.Empty(t, f.sh.jobs.Snapshot())
	assert.Equal(t, 0, f.sh.params.Status)
}

func TestPipelineWaitEvents(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, "true | true | true"))
	// Three reaps and the final ECHILD.
	assert.Equal(t, 4, f.sh.sys.events)
}

func TestPipelineData(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, `echo hello | cat | tr a-z A-Z >$OUT`))
	assert.Equal(t, "HELLO\n", f.read(t, "out"))
}

func TestNoDescriptorLeak(t *testing.T) {
	f := newFixture(t)
	before := openFds(t)

	require.NoError(t, f.run(t, "echo hi | cat | cat >/dev/null"))
	require.NoError(t, f.run(t, "nosuchcommand-gosh | cat <nosuchfile; echo x 3>$OUT | cat"))
	assert.Equal(t, before, openFds(t))
}

func TestBuiltinRunsInProcess(t *testing.T) {
	f := newFixture(t)
	old, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(old) })

	require.NoError(t, f.run(t, "cd $DIR"))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, f.dir, wd)
	assert.Empty(t, f.sh.jobs.Snapshot())
	assert.Zero(t, f.sh.sys.events, "nothing was spawned")
	assert.Equal(t, f.dir, f.sh.vars.Get("PWD"))
}

func TestForkedBuiltin(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, "echo forked | cat >$OUT"))
	assert.Equal(t, "forked\n", f.read(t, "out"))

	cases := map[string]int{
		"exit 3 &":             3,
		"cd /nonexistent &":    StatusNotFound,
		"echo ok >/dev/null &": 0,
	}
	for line, expected := range cases {
		t.Run(line, func(t *testing.T) {
			require.NoError(t, f.run(t, line))
			snap := f.sh.jobs.Snapshot()
			require.Len(t, snap, 1)

			require.NoError(t, f.sh.waiter.Foreground(snap[0].Pgid))
			assert.Equal(t, expected, f.sh.params.Status)
			assert.False(t, f.sh.exitRequested, "a forked exit only ends the child")
		})
	}
}

func TestVirtualRedirectionsLeaveShellAlone(t *testing.T) {
	f := newFixture(t)
	realFds := statFds(t)
	before := openFds(t)

	require.NoError(t, f.run(t, "echo hi >$OUT 2>&1 <&-"))

	assert.Equal(t, "hi\n", f.read(t, "out"))
	assert.Empty(t, f.read(t, "stdout"))
	assert.Empty(t, f.read(t, "stderr"))
	after := statFds(t)
	for fd := range realFds {
		assert.Equal(t, realFds[fd].Ino, after[fd].Ino, "descriptor %d", fd)
	}
	assert.Equal(t, before, openFds(t))

	// The shell's own stdout still works afterwards.
	require.NoError(t, f.run(t, "echo again"))
	assert.Equal(t, "again\n", f.read(t, "stdout"))
}

func TestExternalDupLeavesShellAlone(t *testing.T) {
	f := newFixture(t)
	realFds := statFds(t)

	require.NoError(t, f.run(t, `sh -c 'echo out; echo err >&2' >$OUT 2>&1`))

	assert.Equal(t, "out\nerr\n", f.read(t, "out"))
	assert.Empty(t, f.read(t, "stdout"))
	assert.Empty(t, f.read(t, "stderr"))
	after := statFds(t)
	for fd := range realFds {
		assert.Equal(t, realFds[fd].Ino, after[fd].Ino, "descriptor %d", fd)
	}
}

func TestDupFallbackCreatesFile(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, "true >& $DIR/badtoken"))
	require.NoError(t, f.run(t, "echo x >& $DIR/builtin-badtoken"))

	_, err := os.Stat(filepath.Join(f.dir, "badtoken"))
	assert.NoError(t, err)
	assert.Equal(t, "x\n", f.read(t, "builtin-badtoken"))
}

func TestBackgroundJob(t *testing.T) {
	f := newFixture(t)

	start := time.Now()
	require.NoError(t, f.run(t, "sleep 0.2 &"))
	assert.Less(t, time.Since(start), 2*time.Second, "background job blocked the shell")

	snap := f.sh.jobs.Snapshot()
	require.Len(t, snap, 1)
	pgid := snap[0].Pgid
	assert.Equal(t, pgid, f.sh.params.BgPid)
	assert.Equal(t, "[1] "+strconv.Itoa(pgid)+"\n", f.read(t, "stderr"))

	deadline := time.Now().Add(10 * time.Second)
	for len(f.sh.jobs.Snapshot()) > 0 && time.Now().Before(deadline) {
		require.NoError(t, f.sh.waiter.Background())
		time.Sleep(20 * time.Millisecond)
	}
	assert.Empty(t, f.sh.jobs.Snapshot())
	assert.Equal(t, "[1] "+strconv.Itoa(pgid)+"\n[1] Done\n", f.read(t, "stderr"))
}

func TestBackgroundTerminated(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, "sleep 30 &"))
	pgid := f.sh.params.BgPid
	require.NoError(t, unix.Kill(-pgid, unix.SIGTERM))

	deadline := time.Now().Add(10 * time.Second)
	for len(f.sh.jobs.Snapshot()) > 0 && time.Now().Before(deadline) {
		require.NoError(t, f.sh.waiter.Background())
		time.Sleep(20 * time.Millisecond)
	}
	assert.Contains(t, f.read(t, "stderr"), "[1] Terminated\n")
}

func TestCommandNotFound(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, "nosuchcommand-gosh arg"))
	assert.Equal(t, StatusNotFound, f.sh.params.Status)
	assert.Equal(t, "gosh: nosuchcommand-gosh: not found\n", f.read(t, "stderr"))
	assert.Empty(t, f.sh.jobs.Snapshot())
}

func TestRedirectionFailure(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, "cat <$DIR/missing"))
	assert.Equal(t, StatusRedirect, f.sh.params.Status)
	assert.Contains(t, f.read(t, "stderr"), "missing")

	require.NoError(t, f.run(t, "echo never <$DIR/missing"))
	assert.Equal(t, StatusRedirect, f.sh.params.Status)
	assert.Empty(t, f.read(t, "stdout"), "builtin must not run")

	require.NoError(t, f.run(t, "echo x >$DIR/stdout"))
	assert.Equal(t, StatusRedirect, f.sh.params.Status, "> refuses to overwrite")
}

func TestRedirectionDescriptorOutOfRange(t *testing.T) {
	f := newFixture(t)

	start := time.Now()
	require.NoError(t, f.run(t, "sh -c : 1152921504606846976>>/dev/null; echo after >$OUT"))
	assert.Equal(t, "after\n", f.read(t, "out"), "the rest of the list still runs")
	assert.Contains(t, f.read(t, "stderr"), "gosh: 1152921504606846976: bad file descriptor\n")

	require.NoError(t, f.run(t, "sh -c : 50000000>>/dev/null"))
	assert.Equal(t, StatusRedirect, f.sh.params.Status)

	require.NoError(t, f.run(t, "echo x 50000000>/dev/null"))
	assert.Equal(t, StatusRedirect, f.sh.params.Status)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, f.sh.jobs.Snapshot())
}

func TestAssignments(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, `A=1 sh -c 'echo $A' >$OUT`))
	assert.Equal(t, "1\n", f.read(t, "out"))
	_, set := f.sh.vars.Lookup("A")
	assert.False(t, set, "assignment to an external command is temporary")

	require.NoError(t, f.run(t, "B=2 :"))
	assert.Equal(t, "2", f.sh.vars.Get("B"))
	assert.NotContains(t, f.sh.vars.Environ(), "B=2")

	require.NoError(t, f.run(t, "C=3"))
	assert.Equal(t, "3", f.sh.vars.Get("C"))
	assert.Equal(t, 0, f.sh.params.Status)
}

func TestStatusParameter(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, `sh -c 'exit 5'; echo $? >$OUT`))
	assert.Equal(t, "5\n", f.read(t, "out"))

	require.NoError(t, f.run(t, `sh -c 'kill -TERM $$'`))
	assert.Equal(t, 128+int(unix.SIGTERM), f.sh.params.Status)
}

func TestExitStopsList(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, "exit 4; echo after >$OUT"))
	assert.True(t, f.sh.exitRequested)
	assert.Equal(t, 4, f.sh.exitCode)
	_, err := os.Stat(filepath.Join(f.dir, "out"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExpansionErrorSkipsPipeline(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, "echo $(date) | cat; echo ok >$OUT"))
	assert.Equal(t, "ok\n", f.read(t, "out"))
	assert.Contains(t, f.read(t, "stderr"), "gosh: ")
}

func TestExpansionErrorInBackgroundPipeline(t *testing.T) {
	f := newFixture(t)

	start := time.Now()
	require.NoError(t, f.run(t, "sleep 5 | echo $(date) &"))
	assert.Less(t, time.Since(start), 2*time.Second, "abandoned background pipeline blocked the shell")
	assert.Equal(t, 1, f.sh.params.Status)

	snap := f.sh.jobs.Snapshot()
	require.Len(t, snap, 1, "started stages stay a job")
	pgid := snap[0].Pgid
	assert.Contains(t, f.read(t, "stderr"), "[1] "+strconv.Itoa(pgid)+"\n")

	require.NoError(t, unix.Kill(-pgid, unix.SIGTERM))
	deadline := time.Now().Add(10 * time.Second)
	for len(f.sh.jobs.Snapshot()) > 0 && time.Now().Before(deadline) {
		require.NoError(t, f.sh.waiter.Background())
		time.Sleep(20 * time.Millisecond)
	}
	assert.Empty(t, f.sh.jobs.Snapshot())
	assert.Contains(t, f.read(t, "stderr"), "[1] Terminated\n")
}

func TestChildEnv(t *testing.T) {
	env := childEnv([]string{"A=1", "B=2"}, nil)
	assert.Equal(t, []string{"A=1", "B=2"}, env)

	env = childEnv([]string{"A=1", "B=2"}, []command.Assignment{{Name: "B", Value: "3"}, {Name: "C", Value: ""}})
	assert.Equal(t, []string{"A=1", "B=3", "C="}, env)
}
