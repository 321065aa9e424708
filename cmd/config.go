package cmd

import (
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

// configCmd prints the configuration the shell would run with
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Load, validate and print the effective configuration.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
