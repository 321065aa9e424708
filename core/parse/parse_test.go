package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephlewis42/gosh/core/command"
	"github.com/josephlewis42/gosh/core/redir"
)

func ctrls(list command.List) []command.Ctrl {
	var out []command.Ctrl
	for _, c := range list {
		out = append(out, c.Ctrl)
	}
	return out
}

func TestLineControlOperators(t *testing.T) {
	cases := map[string][]command.Ctrl{
		"":                         nil,
		"# just a comment":         nil,
		"ls":                       {command.Seq},
		"ls;":                      {command.Seq},
		"sleep 10 &":               {command.Background},
		"a | b | c":                {command.Pipe, command.Pipe, command.Seq},
		"a | b & c; d | e &":       {command.Pipe, command.Background, command.Seq, command.Pipe, command.Background},
		"a\nb":                     {command.Seq, command.Seq},
		"echo 'a | b' \"c ; d\" &": {command.Background},
	}

	for line, expected := range cases {
		t.Run(line, func(t *testing.T) {
			list, err := New().Line(line)
			require.NoError(t, err)
			assert.Equal(t, expected, ctrls(list))
		})
	}
}

func TestLineSource(t *testing.T) {
	list, err := New().Line("A=1 B= cmd x 'y z' <in 2>&1 >>log | wc -l &")
	require.NoError(t, err)
	require.Len(t, list, 2)

	first := list[0]
	assert.Len(t, first.Assigns, 2)
	assert.Equal(t, "A", first.Assigns[0].Name)
	assert.Nil(t, first.Assigns[1].Value)
	assert.Equal(t, "A=1 B= cmd x 'y z' 0<in 2>&1 1>>log", first.Source())
	assert.Equal(t, "A=1 B= cmd x 'y z' 0<in 2>&1 1>>log | wc -l &", list.Source())
}

func TestRedirectionDefaults(t *testing.T) {
	list, err := New().Line("cmd <a >b >>c <>d >|e <&3 >&- 5>f")
	require.NoError(t, err)
	require.Len(t, list, 1)

	type got struct {
		Op redir.Op
		N  int
	}
	var redirs []got
	for _, r := range list[0].Redirs {
		redirs = append(redirs, got{r.Op, r.N})
	}
	assert.Equal(t, []got{
		{redir.Read, 0},
		{redir.Write, 1},
		{redir.Append, 1},
		{redir.ReadWrite, 0},
		{redir.Clobber, 1},
		{redir.DupIn, 0},
		{redir.DupOut, 1},
		{redir.Write, 5},
	}, redirs)
}

func TestBareRedirection(t *testing.T) {
	list, err := New().Line(">out")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Words)
	assert.Len(t, list[0].Redirs, 1)
}

func TestUnsupported(t *testing.T) {
	cases := map[string]string{
		"a && b":                 "&& and ||",
		"a || b":                 "&& and ||",
		"! a":                    "!",
		"if a; then b; fi":       "if",
		"while a; do b; done":    "loops",
		"for x in a; do b; done": "for",
		"{ a; }":                 "{ }",
		"(a)":                    "( )",
		"f() { a; }":             "functions",
		"cat <<EOF\nx\nEOF":      "<<",
	}

	for line, what := range cases {
		t.Run(line, func(t *testing.T) {
			_, err := New().Line(line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), what)
		})
	}
}

func TestSyntaxError(t *testing.T) {
	_, err := New().Line("echo 'unterminated")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
	assert.True(t, Incomplete(err))

	_, err = New().Line("a | | b")
	require.Error(t, err)
	assert.False(t, Incomplete(err))
}
