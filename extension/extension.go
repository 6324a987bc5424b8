// Package extension provides the Forge extension adapter for Bazaar.
//
// It implements the forge.Extension interface to integrate Bazaar
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.bazaar" or "bazaar" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/bazaar"
	"github.com/xraph/bazaar/store"
	"github.com/xraph/bazaar/store/memory"
	"github.com/xraph/bazaar/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "bazaar"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Marketplace ledger for subscription-gated assets"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Bazaar as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *bazaar.Bazaar
	store      store.Store
	bazaarOpts []bazaar.Option
}

// New creates a new Bazaar Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Bazaar instance.
// This is nil until Register is called.
func (e *Extension) Engine() *bazaar.Bazaar { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = bazaar.New(e.store, e.buildBazaarOpts()...)

	return vessel.Provide(fapp.Container(), func() (*bazaar.Bazaar, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("bazaar: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	defer e.MarkStopped()
	if e.engine != nil {
		return e.engine.Stop()
	}
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("bazaar: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildBazaarOpts constructs bazaar.Option values from the resolved config.
// Pass-through options are appended last so they win.
func (e *Extension) buildBazaarOpts() []bazaar.Option {
	opts := make([]bazaar.Option, 0, len(e.bazaarOpts)+3)
	opts = append(opts,
		bazaar.WithEscrowAccount(types.Account(e.config.EscrowAccount)),
		bazaar.WithCurrency(e.config.Currency),
		bazaar.WithPluginTimeout(e.config.PluginTimeout),
	)
	return append(opts, e.bazaarOpts...)
}

// --- Config loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("bazaar: configuration is required but not found in config files; " +
				"ensure 'extensions.bazaar' or 'bazaar' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("bazaar: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("escrow_account", e.config.EscrowAccount),
		forge.F("currency", e.config.Currency),
		forge.F("plugin_timeout", e.config.PluginTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.bazaar", "bazaar"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("bazaar: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("bazaar: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.EscrowAccount == "" {
		cfg.EscrowAccount = defaults.EscrowAccount
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.PluginTimeout <= 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML takes precedence for valued fields; programmatic values fill gaps and
// programmatic bool flags override when true.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.EscrowAccount == "" {
		yamlConfig.EscrowAccount = programmaticConfig.EscrowAccount
	}
	if yamlConfig.Currency == "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	return mergeWithDefaults(yamlConfig)
}
