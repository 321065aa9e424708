package main

import (
	"github.com/moby/sys/reexec"

	"github.com/josephlewis42/gosh/cmd"
)

func main() {
	// Forked builtins run the shell binary again; they never reach the CLI.
	if reexec.Init() {
		return
	}
	cmd.Execute()
}
