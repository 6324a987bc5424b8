package extension

import "time"

// Config holds the Bazaar extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.bazaar" or "bazaar" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// EscrowAccount is the account that holds listed assets
	// (default: "bazaar:escrow").
	EscrowAccount string `json:"escrow_account" mapstructure:"escrow_account" yaml:"escrow_account"`

	// Currency is the settlement currency prices must be quoted in
	// (default: "gas").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// PluginTimeout bounds each plugin hook invocation (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EscrowAccount: "bazaar:escrow",
		Currency:      "gas",
		PluginTimeout: 5 * time.Second,
	}
}
