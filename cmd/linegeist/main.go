// Command linegeist is a chat-style line client. It reads input lines, runs
// the segments that start with a command sigil and sends the rest through the
// configured network backend.
package main

import (
	"fmt"
	"os"

	"github.com/mfulz/linegeist/cmd/linegeist/cmd"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "linegeist",
	Short: "Chat line dispatcher",
	Long: `linegeist splits input lines on ';', executes segments that start with a
registered sigil as commands and formats and sends everything else.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cmd.BindPersistentFlags(rootCmd)

	rootCmd.AddCommand(cmd.RunCmd)
	rootCmd.AddCommand(cmd.SendCmd)
	rootCmd.AddCommand(cmd.HistoryCmd)
	rootCmd.AddCommand(cmd.SigilsCmd)
	rootCmd.AddCommand(cmd.RelayCmd)
}
