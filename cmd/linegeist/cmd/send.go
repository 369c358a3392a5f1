package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

// SendCmd dispatches a single line given on the command line.
var SendCmd = &cobra.Command{
	Use:   "send <line>",
	Short: "Dispatch a single line and exit",
	Long: `Dispatches one line. Multiple arguments are joined with spaces, so
quoting the line is only needed to protect ';' from the shell.

Examples:
  linegeist send '/me waves;hello everyone'
  linegeist send -m only_format '/not a command'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		return s.HandleLine(cmd.Context(), strings.Join(args, " "))
	},
}
