package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/josephlewis42/gosh/core/redir"
)

const (
	EnvHome   = "HOME"
	EnvPWD    = "PWD"
	EnvOldPWD = "OLDPWD"
	EnvPath   = "PATH"
	EnvPrompt = "PS1"
)

// Cd changes the shell's working directory.
func Cd(sh Shell, args []string, fds *redir.Table) error {
	cmd := &SimpleCommand{
		Use:   "cd [DIR | -]",
		Short: "Change the shell working directory, HOME by default.",
	}

	return cmd.Run(args, fds, func() error {
		operands := cmd.Flags().Args()
		var dir string
		switch len(operands) {
		case 0:
			dir = sh.Vars().Get(EnvHome)
			if dir == "" {
				return errors.New("cd: HOME not set")
			}
		case 1:
			dir = operands[0]
		default:
			return errors.New("cd: too many arguments")
		}

		if dir == "-" {
			dir = sh.Vars().Get(EnvOldPWD)
			if dir == "" {
				return errors.New("cd: OLDPWD not set")
			}
			fmt.Fprintln(fds.Stdout(), dir)
		}

		old, _ := os.Getwd()
		if err := os.Chdir(dir); err != nil {
			return fmt.Errorf("cd: %w", err)
		}
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("cd: %w", err)
		}
		if old != "" {
			sh.Vars().Set(EnvOldPWD, old)
		}
		return sh.Vars().Set(EnvPWD, wd)
	})
}

// Exit asks the shell to exit, with $? by default.
func Exit(sh Shell, args []string, fds *redir.Table) error {
	code := sh.Params().Status
	switch len(args) {
	case 1:
	case 2:
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("exit: %s: numeric argument required", args[1])
		}
		code = n & 0xff
	default:
		return errors.New("exit: too many arguments")
	}
	sh.RequestExit(code)
	return nil
}

// Export marks variables for export to commands the shell runs.
func Export(sh Shell, args []string, fds *redir.Table) error {
	cmd := &SimpleCommand{
		Use:   "export [-p] [NAME[=VALUE] ...]",
		Short: "Set export attribute for shell variables.",
	}
	list := cmd.Flags().Bool('p', "list all exported variables")

	return cmd.Run(args, fds, func() error {
		operands := cmd.Flags().Args()
		if *list || len(operands) == 0 {
			for _, pair := range sh.Vars().Environ() {
				name, value, _ := strings.Cut(pair, "=")
				fmt.Fprintf(fds.Stdout(), "export %s=%s\n", name, strconv.Quote(value))
			}
			return nil
		}

		var errs []error
		for _, op := range operands {
			name, value, hasValue := strings.Cut(op, "=")
			if hasValue {
				if err := sh.Vars().Set(name, value); err != nil {
					errs = append(errs, fmt.Errorf("export: %w", err))
					continue
				}
			}
			if err := sh.Vars().Export(name); err != nil {
				errs = append(errs, fmt.Errorf("export: %w", err))
			}
		}
		return errors.Join(errs...)
	})
}

// Unset removes shell variables.
func Unset(sh Shell, args []string, fds *redir.Table) error {
	cmd := &SimpleCommand{
		Use:   "unset [-v] [NAME ...]",
		Short: "Unset values of shell variables.",
	}
	cmd.Flags().Bool('v', "treat NAME as a variable")

	return cmd.Run(args, fds, func() error {
		for _, name := range cmd.Flags().Args() {
			sh.Vars().Unset(name)
		}
		return nil
	})
}

// Help lists the builtins.
func Help(sh Shell, args []string, fds *redir.Table) error {
	w := fds.Stdout()
	fmt.Fprintln(w, "gosh, a job control shell")
	fmt.Fprintln(w, "These shell commands are defined internally. Type `NAME --help' to find out")
	fmt.Fprintln(w, "more about the command `NAME'.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Builtins:")
	fmt.Fprintln(w)
	_, err := fmt.Fprintln(w, strings.Join(Names(), "\n"))
	return err
}

// Colon does nothing, successfully.
func Colon(Shell, []string, *redir.Table) error {
	return nil
}

func init() {
	addBuiltin("cd", Cd)
	addBuiltin("exit", Exit)
	addBuiltin("export", Export)
	addBuiltin("unset", Unset)
	addBuiltin("help", Help)
	addBuiltin(":", Colon)
	addBuiltin("true", Colon)
}
