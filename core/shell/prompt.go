package shell

import (
	"os"
	"os/user"
	"strings"

	"github.com/fatih/color"

	"github.com/josephlewis42/gosh/commands"
)

const (
	EnvUser = "USER"

	// ContinuationPrompt is shown while a command line is unfinished.
	ContinuationPrompt = "> "
)

// promptInfo is what a prompt can show.
type promptInfo struct {
	User  string
	Host  string
	Dir   string
	Home  string
	Root  bool
	Color bool
}

func (s *Shell) promptInfo() promptInfo {
	info := promptInfo{
		User:  s.vars.Get(EnvUser),
		Dir:   s.vars.Get(commands.EnvPWD),
		Home:  s.vars.Get(commands.EnvHome),
		Root:  os.Geteuid() == 0,
		Color: s.color,
	}
	if info.User == "" {
		if u, err := user.Current(); err == nil {
			info.User = u.Username
		}
	}
	if host, err := os.Hostname(); err == nil {
		info.Host = strings.SplitN(host, ".", 2)[0]
	}
	if info.Dir == "" {
		info.Dir, _ = os.Getwd()
	}
	return info
}

// prompt renders the primary prompt, $PS1 if set and the configured one
// otherwise.
func (s *Shell) prompt() string {
	ps1, ok := s.vars.Lookup(commands.EnvPrompt)
	if !ok {
		ps1 = s.config.Prompt
	}
	return renderPrompt(ps1, s.promptInfo())
}

// renderPrompt expands \u, \h, \w and \$ in ps1.
func renderPrompt(ps1 string, info promptInfo) string {
	paint := func(c *color.Color, text string) string {
		if !info.Color {
			return text
		}
		forced := *c
		forced.EnableColor()
		return forced.Sprint(text)
	}

	dir := info.Dir
	if info.Home != "" && (dir == info.Home || strings.HasPrefix(dir, info.Home+"/")) {
		dir = "~" + strings.TrimPrefix(dir, info.Home)
	}
	sigil := "$"
	if info.Root {
		sigil = "#"
	}

	return strings.NewReplacer(
		`\u`, paint(commands.ColorBoldGreen, info.User),
		`\h`, paint(commands.ColorBoldGreen, info.Host),
		`\w`, paint(commands.ColorBoldBlue, dir),
		`\$`, sigil,
	).Replace(ps1)
}
