// Package cmd provides the subcommands of the linegeist binary.
package cmd

import (
	"strings"

	"github.com/mfulz/linegeist/interfaces"
	"github.com/mfulz/linegeist/internal/config"
	"github.com/mfulz/linegeist/internal/logging"
	"github.com/mfulz/linegeist/internal/session"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	modeName    string
	orderName   string
	sigils      []string
	backendName string
	strict      bool
)

// BindPersistentFlags attaches the flags shared by every subcommand.
func BindPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $LINEGEIST_CONFIG, ~/.linegeist/linegeist/config.yaml, /etc/linegeist/config.yaml)")
	root.PersistentFlags().StringVarP(&modeName, "mode", "m", "", "Interpretation mode: default, only_command, only_format")
	root.PersistentFlags().StringVarP(&orderName, "order", "o", "", "Interpretation order: as_written, commands_first, messages_first")
	root.PersistentFlags().StringArrayVarP(&sigils, "sigil", "s", nil, "Command sigil, repeatable; replaces the configured set")
	root.PersistentFlags().StringVarP(&backendName, "backend", "b", "", "Send backend: "+strings.Join(interfaces.BackendNames(), ", "))
	root.PersistentFlags().BoolVar(&strict, "strict", false, "Stop on the first malformed input line")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if modeName != "" {
		cfg.Dispatcher.Mode = modeName
	}
	if orderName != "" {
		cfg.Dispatcher.Order = orderName
	}
	if len(sigils) > 0 {
		cfg.Dispatcher.Sigils = sigils
	}
	if backendName != "" {
		cfg.Network.Backend = backendName
	}
	if strict {
		cfg.Dispatcher.Strict = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openSession(opts ...session.Option) (*session.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := session.New(cfg, opts...)
	if err != nil {
		logging.Log.Errorf("[linegeist] %v", err)
		return nil, err
	}
	return s, nil
}
