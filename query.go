package bazaar

import (
	"context"
	"slices"

	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/query"
)

// ──────────────────────────────────────────────────
// Query projections
// ──────────────────────────────────────────────────

// ForSale returns every asset currently held by escrow, in id order.
func (b *Bazaar) ForSale(ctx context.Context) ([]*asset.Asset, error) {
	return b.project(ctx, asset.ListOpts{Owner: b.escrow.String()}, query.ForSale(b.escrow))
}

// SubscribedByCaller returns the assets the caller subscribes to, in id
// order. Each asset appears once regardless of repeated purchases.
func (b *Bazaar) SubscribedByCaller(ctx context.Context) ([]*asset.Asset, error) {
	caller, err := b.caller(ctx)
	if err != nil {
		return nil, err
	}
	return b.project(ctx, asset.ListOpts{}, query.SubscribedBy(caller))
}

// OwnedByCaller returns the assets the caller owns, in id order. Listed
// assets are owned by escrow and therefore excluded.
func (b *Bazaar) OwnedByCaller(ctx context.Context) ([]*asset.Asset, error) {
	caller, err := b.caller(ctx)
	if err != nil {
		return nil, err
	}
	return b.project(ctx, asset.ListOpts{Owner: caller.String()}, query.OwnedBy(caller))
}

// GetByID returns the asset with the given id as a one-element slice, or
// an empty slice when it does not exist.
func (b *Bazaar) GetByID(ctx context.Context, assetID uint64) ([]*asset.Asset, error) {
	if err := b.enter(ctx); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	a, err := b.store.GetAsset(ctx, assetID)
	if err != nil {
		if IsNotFound(err) {
			return []*asset.Asset{}, nil
		}
		return nil, err
	}
	return query.Collect(query.Filter(slices.Values([]*asset.Asset{a}), query.ByID(assetID))), nil
}

func (b *Bazaar) project(ctx context.Context, opts asset.ListOpts, pred query.Predicate) ([]*asset.Asset, error) {
	if err := b.enter(ctx); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	all, err := b.store.ListAssets(ctx, opts)
	if err != nil {
		return nil, err
	}
	return query.Collect(query.Filter(slices.Values(all), pred)), nil
}
