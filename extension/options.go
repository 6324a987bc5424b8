package extension

import (
	"time"

	"github.com/xraph/bazaar"
	"github.com/xraph/bazaar/plugin"
	"github.com/xraph/bazaar/store"
)

// Option configures the Bazaar Forge extension.
type Option func(*Extension)

// WithStore sets the store for the bazaar engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithBazaarOption passes a bazaar.Option through to the underlying engine.
func WithBazaarOption(opt bazaar.Option) Option {
	return func(e *Extension) {
		e.bazaarOpts = append(e.bazaarOpts, opt)
	}
}

// WithPlugin registers a bazaar plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.bazaarOpts = append(e.bazaarOpts, bazaar.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithEscrowAccount sets the marketplace escrow account.
func WithEscrowAccount(account string) Option {
	return func(e *Extension) { e.config.EscrowAccount = account }
}

// WithCurrency sets the settlement currency.
func WithCurrency(currency string) Option {
	return func(e *Extension) { e.config.Currency = currency }
}

// WithPluginTimeout bounds each plugin hook invocation.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}
