package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suivoice/atm/internal/logger"
	"github.com/suivoice/atm/internal/state"
)

var intentsLimit int

var intentsCmd = &cobra.Command{
	Use:   "intents",
	Short: "List recent offline intents",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := state.Open(cfg.Database, *logger.Get())
		if err != nil {
			return err
		}
		defer store.Close()

		intents, err := store.RecentIntents(cmd.Context(), intentsLimit)
		if err != nil {
			return err
		}
		if len(intents) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no intents recorded")
			return nil
		}

		for _, it := range intents {
			line := fmt.Sprintf("%s  %-10s  %-16s  %s", it.Timestamp.Format("2006-01-02 15:04:05"), it.Status, it.FunctionName, string(it.Args))
			if it.Error != "" {
				line += "  error: " + it.Error
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	intentsCmd.Flags().IntVar(&intentsLimit, "limit", 20, "Maximum number of intents to list")
}
