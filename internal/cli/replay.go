package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Drain the offline intent queue once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApplication(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.close()

		results, err := app.queue.Drain(cmd.Context())
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "queue empty")
			return nil
		}
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s  %s\n", r.IntentID, r.Status, r.Message)
		}
		return nil
	},
}
