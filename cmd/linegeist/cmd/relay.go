package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mfulz/linegeist/internal/format"
	"github.com/mfulz/linegeist/internal/logging"
	"github.com/mfulz/linegeist/internal/relay"
	"github.com/mfulz/linegeist/protocol"
	"github.com/spf13/cobra"
)

var relayListen string

// RelayCmd serves a local endpoint for the stream backend and prints every
// message it receives.
var RelayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run a local endpoint for the stream backend",
	Long: `Listens on the configured relay socket and prints every received message.

Examples:
  linegeist relay
  linegeist relay --listen 127.0.0.1:7070
  linegeist run -b stream   # in another terminal`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if relayListen != "" {
			cfg.Relay.Network, cfg.Relay.Address = "tcp", relayListen
		}

		ln, err := relay.Listen(cfg.Relay)
		if err != nil {
			return err
		}

		var mu sync.Mutex
		out := cmd.OutOrStdout()
		srv := relay.NewServer(cfg.Relay, func(_ context.Context, msg *protocol.Message) error {
			mu.Lock()
			defer mu.Unlock()
			_, err := fmt.Fprintln(out, format.RenderPlain(msg))
			return err
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := srv.Serve(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logging.Log.Infof("[relay] Termination signal received. Exiting.")
		return nil
	},
}

func init() {
	RelayCmd.Flags().StringVarP(&relayListen, "listen", "l", "", "Listen on a tcp host:port instead of the configured socket")
}
