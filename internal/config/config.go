// Package config provides loading and parsing of the linegeist configuration
// file using Viper. It defines the full configuration schema and exposes
// functions to access it at runtime.
package config

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/mfulz/linegeist/dispatch"
	"github.com/mfulz/linegeist/internal/configloader"
	"github.com/mfulz/linegeist/internal/logging"
	"github.com/spf13/viper"
)

// Config represents the full structure of the linegeist configuration file.
type Config struct {
	Dispatcher DispatcherConfig          `mapstructure:"dispatcher"`
	Identity   IdentityConfig            `mapstructure:"identity"`
	Network    NetworkConfig             `mapstructure:"network"`
	Backends   map[string]map[string]any `mapstructure:"backends"`
	Macros     string                    `mapstructure:"macros"`
	History    HistoryConfig             `mapstructure:"history"`
	Relay      RelayConfig               `mapstructure:"relay"`
	Logger     logging.Config            `mapstructure:"log"`

	// Path is the file the config was read from, empty for defaults only.
	Path string `mapstructure:"-"`
}

// DispatcherConfig holds the line interpretation policy.
type DispatcherConfig struct {
	Mode   string   `mapstructure:"mode"`   // "default", "only_command", "only_format"
	Order  string   `mapstructure:"order"`  // "as_written", "commands_first", "messages_first"
	Sigils []string `mapstructure:"sigils"` // single characters marking commands
	Strict bool     `mapstructure:"strict"` // stop reading input on a malformed line
}

// IdentityConfig describes the local user.
type IdentityConfig struct {
	Nick string `mapstructure:"nick"`
}

// NetworkConfig selects the send backend.
type NetworkConfig struct {
	Backend string `mapstructure:"backend"` // registered backend name, e.g. "stream"
}

// HistoryConfig configures the sent-message log.
type HistoryConfig struct {
	Path string `mapstructure:"path"` // sqlite file; empty disables history
}

// RelayConfig configures the local relay endpoint served by "linegeist relay".
type RelayConfig struct {
	Network string            `mapstructure:"network"` // "unix" or "tcp"
	Address string            `mapstructure:"address"`
	Users   map[string]string `mapstructure:"users"` // user -> token; empty accepts anyone
}

// Interp parses the dispatcher section into typed values.
func (c *Config) Interp() (dispatch.InterpMode, dispatch.InterpOrder, error) {
	mode, err := dispatch.ParseInterpMode(c.Dispatcher.Mode)
	if err != nil {
		return 0, 0, err
	}
	order, err := dispatch.ParseInterpOrder(c.Dispatcher.Order)
	if err != nil {
		return 0, 0, err
	}
	return mode, order, nil
}

// BackendOptions returns the options block for the selected backend.
func (c *Config) BackendOptions() map[string]any {
	if opts, ok := c.Backends[c.Network.Backend]; ok && opts != nil {
		return opts
	}
	return map[string]any{}
}

// Validate checks the values that viper cannot type-check.
func (c *Config) Validate() error {
	if _, _, err := c.Interp(); err != nil {
		return err
	}
	for _, s := range c.Dispatcher.Sigils {
		if utf8.RuneCountInString(s) != 1 {
			return fmt.Errorf("%w: sigil %q must be a single character", dispatch.ErrInvalidArgument, s)
		}
	}
	if c.Network.Backend == "" {
		return errors.New("network.backend must not be empty")
	}
	if c.Relay.Network != "unix" && c.Relay.Network != "tcp" {
		return fmt.Errorf("relay.network must be unix or tcp, got %q", c.Relay.Network)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dispatcher.mode", dispatch.ModeDefault.String())
	v.SetDefault("dispatcher.order", dispatch.OrderAsWritten.String())
	v.SetDefault("dispatcher.sigils", []string{"/"})
	v.SetDefault("dispatcher.strict", false)
	v.SetDefault("identity.nick", "geist")
	v.SetDefault("network.backend", "stdout")
	v.SetDefault("macros", "")
	v.SetDefault("history.path", "")
	v.SetDefault("relay.network", "unix")
	v.SetDefault("relay.address", "/tmp/linegeist.sock")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.to_stderr", true)
}

// Read parses the config at path. An empty path yields the defaults.
func Read(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadConfig resolves, reads and registers the linegeist configuration and
// re-initializes logging from its log section. An explicit path must exist;
// without one a missing file falls back to defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		if resolved, err := configloader.ResolveConfigPath("linegeist", "config.yaml"); err == nil {
			path = resolved
		}
	}

	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	configloader.ReplaceConfig(&cfg.Logger)
	if err := logging.Init(); err != nil {
		return nil, fmt.Errorf("[linegeist] Failed to init logger: %v", err)
	}
	if cfg.Path == "" {
		logging.Log.Debugf("[config] no config file found, using defaults")
	} else {
		logging.Log.Debugf("[config] loaded %s", cfg.Path)
	}

	configloader.ReplaceConfig(cfg)
	return cfg, nil
}
