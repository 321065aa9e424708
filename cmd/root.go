package cmd

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/josephlewis42/gosh/core/config"
	"github.com/josephlewis42/gosh/core/logger"
	"github.com/josephlewis42/gosh/core/shell"
)

var (
	cfgPath string
	debug   bool

	commandString    string
	forceInteractive bool

	// exitCode is the status the process exits with once cobra returns.
	exitCode int
)

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "gosh")
}

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(afero.NewOsFs(), cfgPath)

	if errors.Is(err, fs.ErrPermission) {
		log.Println("Couldn't read config: check the permissions of", cfgPath)
	}

	return configuration, err
}

// addShellFlags registers the flags that choose where commands come from.
func addShellFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&commandString, "command", "c", "", "run the commands in the string and exit")
	flags.BoolVarP(&forceInteractive, "interactive", "i", false, "run interactively even if input isn't a terminal")
	// Everything after the script name belongs to the script.
	flags.SetInterspersed(false)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gosh [flags] [script]",
	Short: "A POSIX job-control shell",
	Long: `gosh runs simple commands joined by ;, & and |, with redirections,
process groups for every pipeline and the jobs, fg and bg builtins.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if debug || cfg.Debug {
			logger.EnableDebug(cmd.ErrOrStderr())
		}
		if cfg.EventLog != "" {
			logFd, err := cfg.OpenEventLog(afero.NewOsFs())
			if err != nil {
				return err
			}
			defer logFd.Close()
			logger.Events = logger.NewJSONLinesEventLog(logFd)
		}

		sh := shell.New(cfg, shell.Options{})
		switch {
		case cmd.Flags().Changed("command"):
			exitCode = sh.RunString(commandString)

		case len(args) == 1:
			script, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer script.Close()
			exitCode = sh.Run(script)

		case interactive(cfg, sh):
			exitCode = sh.Interactive()

		default:
			exitCode = sh.Run(os.Stdin)
		}
		return nil
	},
}

func interactive(cfg *config.Configuration, sh *shell.Shell) bool {
	if forceInteractive {
		return true
	}
	switch cfg.Interactive {
	case config.ModeAlways:
		return true
	case config.ModeNever:
		return false
	}
	return sh.IsTerminal()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigDir(), "config path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "trace redirections, spawns and waits to stderr")
	addShellFlags(rootCmd.Flags())
}
