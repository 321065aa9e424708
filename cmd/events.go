package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/josephlewis42/gosh/core/logger"
)

// eventsCmd summarizes a job event log
var eventsCmd = &cobra.Command{
	Use:   "events EVENTS.log",
	Short: "Summarize a job event log.",
	Long:  `Reads a log written through the event_log setting and reports which commands ran, stopped and how they finished.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		fd, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		var report logger.Report
		if err := logger.ReadJSONLinesLog(fd, func(ev *structpb.Struct) {
			report.Update(ev)
		}); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
