package commands

import (
	"fmt"
	"strings"

	"github.com/mfulz/linegeist/interfaces/icommand"
	"github.com/spf13/cobra"
)

func init() {
	icommand.Register(helpCommand{})
	icommand.Register(echoCommand{})
	icommand.Register(meCommand{})
	icommand.Register(sigilCommand{})
	icommand.Register(sysinfoCommand{})
}

type helpCommand struct{}

func (helpCommand) Name() string { return "help" }

func (helpCommand) Build(env *icommand.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "help",
		Short: "List available commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println("Available commands: " + strings.Join(env.Commands(), ", "))
			return nil
		},
	}
}

type echoCommand struct{}

func (echoCommand) Name() string { return "echo" }

// echo sends its arguments verbatim, sigils included. "/echo /help" posts the
// literal text instead of running help.
func (echoCommand) Build(env *icommand.Env) *cobra.Command {
	return &cobra.Command{
		Use:                "echo <text...>",
		Short:              "Send text as a message without interpreting it",
		Args:               cobra.MinimumNArgs(1),
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, receipt, err := env.Line.FormatAndSend(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			cmd.Printf("sent %s via %s\n", msg.ID, receipt.Backend)
			return nil
		},
	}
}

type meCommand struct{}

func (meCommand) Name() string { return "me" }

func (meCommand) Build(env *icommand.Env) *cobra.Command {
	return &cobra.Command{
		Use:                "me <action...>",
		Short:              "Send an action message",
		Args:               cobra.MinimumNArgs(1),
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if env.SendAction == nil {
				return fmt.Errorf("actions are not supported by this session")
			}
			receipt, err := env.SendAction(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			cmd.Printf("sent %s via %s\n", receipt.MessageID, receipt.Backend)
			return nil
		},
	}
}

type sigilCommand struct{}

func (sigilCommand) Name() string { return "sigil" }

func (sigilCommand) Build(env *icommand.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "sigil [character]",
		Short: "Register a command sigil, or list them without argument",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Println("Sigils: " + strings.Join(env.Line.Sigils(), " "))
				return nil
			}
			present, err := env.Line.RegisterSigil(args[0])
			if err != nil {
				return &usageError{err: err}
			}
			if present {
				cmd.Printf("sigil %q already registered\n", args[0])
			} else {
				cmd.Printf("sigil %q registered\n", args[0])
			}
			return nil
		},
	}
}
