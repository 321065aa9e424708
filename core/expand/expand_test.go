package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephlewis42/gosh/core/command"
	"github.com/josephlewis42/gosh/core/params"
	"github.com/josephlewis42/gosh/core/parse"
	"github.com/josephlewis42/gosh/core/redir"
	"github.com/josephlewis42/gosh/core/vars"
)

func newExpander() *Expander {
	store := vars.NewStore()
	store.Set("HOME", "/home/gosh")
	store.Set("GREETING", "hello world")
	store.Set("EMPTY", "")
	return &Expander{
		Vars:   store,
		Params: &params.Params{Status: 3, BgPid: 77, ShellPid: 42},
	}
}

func expandLine(t *testing.T, line string) *command.Invocation {
	t.Helper()
	list, err := parse.New().Line(line)
	require.NoError(t, err)
	require.Len(t, list, 1)

	inv, err := newExpander().Command(list[0])
	require.NoError(t, err)
	return inv
}

func TestArgs(t *testing.T) {
	cases := map[string][]string{
		`echo a b`:              {"echo", "a", "b"},
		`echo $GREETING`:        {"echo", "hello", "world"},
		`echo "$GREETING"`:      {"echo", "hello world"},
		`echo '$GREETING'`:      {"echo", "$GREETING"},
		`echo $EMPTY x`:         {"echo", "x"},
		`echo "$EMPTY"`:         {"echo", ""},
		`echo $? $! $$`:         {"echo", "3", "77", "42"},
		`echo ~ ~/x`:            {"echo", "/home/gosh", "/home/gosh/x"},
		`echo *.nothing-globs`:  {"echo", "*.nothing-globs"},
		`echo ${MISSING:-dflt}`: {"echo", "dflt"},
	}

	for line, expected := range cases {
		t.Run(line, func(t *testing.T) {
			assert.Equal(t, expected, expandLine(t, line).Args)
		})
	}
}

func TestAssignments(t *testing.T) {
	inv := expandLine(t, `A=1 B=$A C="$GREETING" D= env`)

	assert.Equal(t, []command.Assignment{
		{Name: "A", Value: "1"},
		{Name: "B", Value: "1"},
		{Name: "C", Value: "hello world"},
		{Name: "D", Value: ""},
	}, inv.Assigns)
	assert.Equal(t, []string{"env"}, inv.Args)
}

func TestRedirections(t *testing.T) {
	inv := expandLine(t, `cmd >"$HOME/out file" 2>&1 <~/in &`)

	assert.Equal(t, []redir.Redirection{
		{Op: redir.Write, N: 1, Target: "/home/gosh/out file"},
		{Op: redir.DupOut, N: 2, Target: "1"},
		{Op: redir.Read, N: 0, Target: "/home/gosh/in"},
	}, inv.Redirs)
	assert.Equal(t, command.Background, inv.Ctrl)
}

func TestCommandUnchanged(t *testing.T) {
	list, err := parse.New().Line(`echo $GREETING`)
	require.NoError(t, err)
	before := list.Source()

	_, err = newExpander().Command(list[0])
	require.NoError(t, err)
	assert.Equal(t, before, list.Source())
}

func TestCommandSubstitutionUnsupported(t *testing.T) {
	list, err := parse.New().Line("echo $(date)")
	require.NoError(t, err)

	_, err = newExpander().Command(list[0])
	assert.Error(t, err)
}
