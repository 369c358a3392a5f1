package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mfulz/linegeist/internal/logging"
	"github.com/spf13/cobra"
)

var inputFile string

// RunCmd reads input lines and dispatches them until EOF or a signal.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch lines from stdin or a file",
	Long: `Reads one line at a time and dispatches it.

Examples:
  linegeist run
  linegeist run --file script.txt --order commands_first
  echo '/me waves;hello' | linegeist run -b stream`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if inputFile != "" {
			f, err := os.Open(inputFile)
			if err != nil {
				return fmt.Errorf("failed to open input: %w", err)
			}
			defer f.Close()
			in = f
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Run blocks in Read on stdin, so a signal must not wait for the next line.
		errc := make(chan error, 1)
		go func() { errc <- s.Run(ctx, in) }()
		select {
		case err = <-errc:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if errors.Is(err, context.Canceled) {
			logging.Log.Infof("[linegeist] Termination signal received. Exiting.")
			return nil
		}
		return err
	},
}

func init() {
	RunCmd.Flags().StringVarP(&inputFile, "file", "f", "", "Read lines from file instead of stdin")
}
