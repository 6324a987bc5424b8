// Package store defines the persistence contract for Bazaar: three keyed
// tables (assets, subscriptions, profiles with their follow edges) and
// three monotonically increasing counters.
package store

import (
	"context"

	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/social"
	"github.com/xraph/bazaar/subscription"
)

// Counter names persisted by every backend.
const (
	CounterAssetID = "asset_id"
	CounterListed  = "listed"
	CounterUserID  = "user_id"
)

// Counters persists named unsigned counters. Counter returns 0 for names
// that were never set.
type Counters interface {
	Counter(ctx context.Context, name string) (uint64, error)
	SetCounter(ctx context.Context, name string, value uint64) error
}

// Store is the unified storage interface for all Bazaar state. The engine
// is its only writer and serializes calls, so backends need only make each
// individual method atomic.
type Store interface {
	asset.Store
	subscription.Store
	social.Store
	Counters

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
