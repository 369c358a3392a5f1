package cmd

import (
	"fmt"

	"github.com/mfulz/linegeist/internal/configloader"
	"github.com/mfulz/linegeist/internal/format"
	"github.com/mfulz/linegeist/internal/history"
	"github.com/spf13/cobra"
)

var historyLimit int

// HistoryCmd lists recently sent messages.
var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently sent messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.History.Path == "" {
			return fmt.Errorf("history is disabled; set history.path in the config")
		}

		store, err := history.Open(configloader.ResolveSiblingPath(cfg.Path, cfg.History.Path))
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No messages sent yet.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%s  %-9s %-6s %s\n",
				e.SentAt.Local().Format("2006-01-02 15:04:05"), e.Backend, e.Kind, format.Truncate(e.Text, 60))
		}
		return nil
	},
}

func init() {
	HistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of messages to show")
}
