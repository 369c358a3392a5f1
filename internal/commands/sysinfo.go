package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/mfulz/linegeist/interfaces/icommand"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"
)

type sysinfoCommand struct{}

func (sysinfoCommand) Name() string { return "sysinfo" }

func (sysinfoCommand) Build(env *icommand.Env) *cobra.Command {
	var send bool
	cmd := &cobra.Command{
		Use:   "sysinfo [--send]",
		Short: "Show host uptime, load and memory; --send posts it to the channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := sysinfoText(cmd.Context())
			if err != nil {
				return err
			}
			if !send {
				cmd.Println(text)
				return nil
			}
			msg, _, err := env.Line.FormatAndSend(cmd.Context(), text)
			if err != nil {
				return err
			}
			cmd.Printf("sent %s\n", msg.ID)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&send, "send", "s", false, "Send the summary as a message")
	return cmd
}

// sysinfoText collects a one-line host summary. Load and memory are
// optional; some platforms do not report them.
func sysinfoText(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("host info: %w", err)
	}
	text := fmt.Sprintf("%s (%s %s) up %s", info.Hostname, info.Platform, info.PlatformVersion, formatUptime(info.Uptime))

	if avg, err := load.AvgWithContext(ctx); err == nil {
		text += fmt.Sprintf(", load %.2f %.2f %.2f", avg.Load1, avg.Load5, avg.Load15)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		text += fmt.Sprintf(", mem %.0f%%", vm.UsedPercent)
	}
	return text, nil
}

func formatUptime(seconds uint64) string {
	d := time.Duration(seconds) * time.Second
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dh%dm", hours, mins)
}
