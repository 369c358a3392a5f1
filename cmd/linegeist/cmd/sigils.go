package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SigilsCmd prints the effective sigil set after config and flags.
var SigilsCmd = &cobra.Command{
	Use:   "sigils",
	Short: "Show the effective command sigils",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		d := s.Dispatcher
		fmt.Fprintf(cmd.OutOrStdout(), "mode=%s order=%s sigils=%s\n", d.Mode(), d.Order(), strings.Join(d.Sigils(), " "))
		return nil
	},
}
