package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/market"
	"github.com/xraph/bazaar/social"
	"github.com/xraph/bazaar/subscription"
	"github.com/xraph/bazaar/types"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration so emitting an
// event never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                []OnInit
	onShutdown            []OnShutdown
	onAssetCreated        []OnAssetCreated
	onAssetLiked          []OnAssetLiked
	onAssetDisliked       []OnAssetDisliked
	onAssetListed         []OnAssetListed
	onAssetPurchased      []OnAssetPurchased
	onPaymentSettled      []OnPaymentSettled
	onPaymentFailed       []OnPaymentFailed
	onSubscriptionUpdated []OnSubscriptionUpdated
	onProfileRegistered   []OnProfileRegistered
	onFollowed            []OnFollowed
	onUnfollowed          []OnUnfollowed
	onRollback            []OnRollback
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout. Non-positive values restore the
// default.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d <= 0 {
		d = DefaultTimeout
	}
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return errors.New("plugin: nil plugin")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var names []string

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		names = append(names, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		names = append(names, "OnShutdown")
	}
	if v, ok := p.(OnAssetCreated); ok {
		r.onAssetCreated = append(r.onAssetCreated, v)
		names = append(names, "OnAssetCreated")
	}
	if v, ok := p.(OnAssetLiked); ok {
		r.onAssetLiked = append(r.onAssetLiked, v)
		names = append(names, "OnAssetLiked")
	}
	if v, ok := p.(OnAssetDisliked); ok {
		r.onAssetDisliked = append(r.onAssetDisliked, v)
		names = append(names, "OnAssetDisliked")
	}
	if v, ok := p.(OnAssetListed); ok {
		r.onAssetListed = append(r.onAssetListed, v)
		names = append(names, "OnAssetListed")
	}
	if v, ok := p.(OnAssetPurchased); ok {
		r.onAssetPurchased = append(r.onAssetPurchased, v)
		names = append(names, "OnAssetPurchased")
	}
	if v, ok := p.(OnPaymentSettled); ok {
		r.onPaymentSettled = append(r.onPaymentSettled, v)
		names = append(names, "OnPaymentSettled")
	}
	if v, ok := p.(OnPaymentFailed); ok {
		r.onPaymentFailed = append(r.onPaymentFailed, v)
		names = append(names, "OnPaymentFailed")
	}
	if v, ok := p.(OnSubscriptionUpdated); ok {
		r.onSubscriptionUpdated = append(r.onSubscriptionUpdated, v)
		names = append(names, "OnSubscriptionUpdated")
	}
	if v, ok := p.(OnProfileRegistered); ok {
		r.onProfileRegistered = append(r.onProfileRegistered, v)
		names = append(names, "OnProfileRegistered")
	}
	if v, ok := p.(OnFollowed); ok {
		r.onFollowed = append(r.onFollowed, v)
		names = append(names, "OnFollowed")
	}
	if v, ok := p.(OnUnfollowed); ok {
		r.onUnfollowed = append(r.onUnfollowed, v)
		names = append(names, "OnUnfollowed")
	}
	if v, ok := p.(OnRollback); ok {
		r.onRollback = append(r.onRollback, v)
		names = append(names, "OnRollback")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", names,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", hooks(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", hooks(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitAssetCreated emits an asset created event.
func (r *Registry) EmitAssetCreated(ctx context.Context, a *asset.Asset) {
	emit(ctx, r, "OnAssetCreated", hooks(r, &r.onAssetCreated), func(p OnAssetCreated) error {
		return p.OnAssetCreated(ctx, a.Clone())
	})
}

// EmitAssetLiked emits an asset liked event.
func (r *Registry) EmitAssetLiked(ctx context.Context, assetID, likes uint64) {
	emit(ctx, r, "OnAssetLiked", hooks(r, &r.onAssetLiked), func(p OnAssetLiked) error {
		return p.OnAssetLiked(ctx, assetID, likes)
	})
}

// EmitAssetDisliked emits an asset disliked event.
func (r *Registry) EmitAssetDisliked(ctx context.Context, assetID, likes uint64) {
	emit(ctx, r, "OnAssetDisliked", hooks(r, &r.onAssetDisliked), func(p OnAssetDisliked) error {
		return p.OnAssetDisliked(ctx, assetID, likes)
	})
}

// EmitAssetListed emits an asset listed event.
func (r *Registry) EmitAssetListed(ctx context.Context, l *market.Listing) {
	emit(ctx, r, "OnAssetListed", hooks(r, &r.onAssetListed), func(p OnAssetListed) error {
		return p.OnAssetListed(ctx, l)
	})
}

// EmitAssetPurchased emits an asset purchased event.
func (r *Registry) EmitAssetPurchased(ctx context.Context, pur *market.Purchase) {
	emit(ctx, r, "OnAssetPurchased", hooks(r, &r.onAssetPurchased), func(p OnAssetPurchased) error {
		return p.OnAssetPurchased(ctx, pur)
	})
}

// EmitPaymentSettled emits a payment settled event.
func (r *Registry) EmitPaymentSettled(ctx context.Context, s *market.Settlement) {
	emit(ctx, r, "OnPaymentSettled", hooks(r, &r.onPaymentSettled), func(p OnPaymentSettled) error {
		return p.OnPaymentSettled(ctx, s)
	})
}

// EmitPaymentFailed emits a payment failed event.
func (r *Registry) EmitPaymentFailed(ctx context.Context, s *market.Settlement, cause error) {
	emit(ctx, r, "OnPaymentFailed", hooks(r, &r.onPaymentFailed), func(p OnPaymentFailed) error {
		return p.OnPaymentFailed(ctx, s, cause)
	})
}

// EmitSubscriptionUpdated emits a subscription update.
func (r *Registry) EmitSubscriptionUpdated(ctx context.Context, u subscription.Update) {
	emit(ctx, r, "OnSubscriptionUpdated", hooks(r, &r.onSubscriptionUpdated), func(p OnSubscriptionUpdated) error {
		return p.OnSubscriptionUpdated(ctx, u)
	})
}

// EmitProfileRegistered emits a profile registered event.
func (r *Registry) EmitProfileRegistered(ctx context.Context, prof *social.Profile) {
	emit(ctx, r, "OnProfileRegistered", hooks(r, &r.onProfileRegistered), func(p OnProfileRegistered) error {
		return p.OnProfileRegistered(ctx, prof)
	})
}

// EmitFollowed emits a followed event.
func (r *Registry) EmitFollowed(ctx context.Context, follower, followee types.Account) {
	emit(ctx, r, "OnFollowed", hooks(r, &r.onFollowed), func(p OnFollowed) error {
		return p.OnFollowed(ctx, follower, followee)
	})
}

// EmitUnfollowed emits an unfollowed event.
func (r *Registry) EmitUnfollowed(ctx context.Context, follower, followee types.Account) {
	emit(ctx, r, "OnUnfollowed", hooks(r, &r.onUnfollowed), func(p OnUnfollowed) error {
		return p.OnUnfollowed(ctx, follower, followee)
	})
}

// EmitRollback emits a rollback event.
func (r *Registry) EmitRollback(ctx context.Context, op string, cause, undoErr error) {
	emit(ctx, r, "OnRollback", hooks(r, &r.onRollback), func(p OnRollback) error {
		return p.OnRollback(ctx, op, cause, undoErr)
	})
}

// hooks reads a cached hook list under the read lock.
func hooks[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

func emit[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, fn func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the marketplace.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
