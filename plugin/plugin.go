// Package plugin provides an extensible plugin system for Bazaar.
// Plugins hook into lifecycle events; every hook runs after the call that
// triggered it has committed.
package plugin

import (
	"context"

	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/market"
	"github.com/xraph/bazaar/social"
	"github.com/xraph/bazaar/subscription"
	"github.com/xraph/bazaar/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Asset hooks
// ──────────────────────────────────────────────────

// OnAssetCreated is called with a snapshot of every newly minted asset.
type OnAssetCreated interface {
	Plugin
	OnAssetCreated(ctx context.Context, a *asset.Asset) error
}

// OnAssetLiked is called after a like with the new counter value.
type OnAssetLiked interface {
	Plugin
	OnAssetLiked(ctx context.Context, assetID, likes uint64) error
}

// OnAssetDisliked is called after a dislike with the new counter value.
type OnAssetDisliked interface {
	Plugin
	OnAssetDisliked(ctx context.Context, assetID, likes uint64) error
}

// ──────────────────────────────────────────────────
// Marketplace hooks
// ──────────────────────────────────────────────────

// OnAssetListed is called when an asset moves into escrow.
type OnAssetListed interface {
	Plugin
	OnAssetListed(ctx context.Context, l *market.Listing) error
}

// OnAssetPurchased is called when a purchase grants a subscription.
type OnAssetPurchased interface {
	Plugin
	OnAssetPurchased(ctx context.Context, p *market.Purchase) error
}

// OnPaymentSettled is called after value was released to a seller.
type OnPaymentSettled interface {
	Plugin
	OnPaymentSettled(ctx context.Context, s *market.Settlement) error
}

// OnPaymentFailed is called when a settlement failed and the purchase was
// rolled back.
type OnPaymentFailed interface {
	Plugin
	OnPaymentFailed(ctx context.Context, s *market.Settlement, err error) error
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionUpdated is called on every renew and cancel.
type OnSubscriptionUpdated interface {
	Plugin
	OnSubscriptionUpdated(ctx context.Context, u subscription.Update) error
}

// ──────────────────────────────────────────────────
// Social graph hooks
// ──────────────────────────────────────────────────

// OnProfileRegistered is called when an account registers.
type OnProfileRegistered interface {
	Plugin
	OnProfileRegistered(ctx context.Context, p *social.Profile) error
}

// OnFollowed is called when a new follow edge is created.
type OnFollowed interface {
	Plugin
	OnFollowed(ctx context.Context, follower, followee types.Account) error
}

// OnUnfollowed is called when a follow edge is removed.
type OnUnfollowed interface {
	Plugin
	OnUnfollowed(ctx context.Context, follower, followee types.Account) error
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnRollback is called when a call failed after writing and its writes were
// undone. undoErr is non-nil when the undo itself failed.
type OnRollback interface {
	Plugin
	OnRollback(ctx context.Context, op string, cause, undoErr error) error
}
