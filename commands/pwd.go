package commands

import (
	"fmt"
	"os"

	"github.com/josephlewis42/gosh/core/redir"
)

// Pwd prints the shell's working directory.
func Pwd(sh Shell, args []string, fds *redir.Table) error {
	cmd := &SimpleCommand{
		Use:   "pwd",
		Short: "Print the name of the current working directory.",
	}

	return cmd.Run(args, fds, func() error {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("pwd: %w", err)
		}
		_, err = fmt.Fprintln(fds.Stdout(), wd)
		return err
	})
}

func init() {
	addBuiltin("pwd", Pwd)
}
