package bazaar

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/bazaar/subscription"
)

// ──────────────────────────────────────────────────
// Subscription clock
// ──────────────────────────────────────────────────

// Renew extends the subscription window of an asset by duration and returns
// the new expiration. A fresh subscription starts at now; an existing one
// stacks onto its previous expiration even if that lies in the past.
func (b *Bazaar) Renew(ctx context.Context, assetID, duration, now uint64) (uint64, error) {
	if err := b.enter(ctx); err != nil {
		return 0, err
	}

	var out outbox
	defer out.flush()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.getAsset(ctx, assetID); err != nil {
		return 0, err
	}

	current, err := b.store.GetExpiration(ctx, assetID)
	if err != nil {
		return 0, err
	}

	next, err := subscription.Extend(assetID, current, duration, now, b.renewal)
	switch {
	case errors.Is(err, subscription.ErrNotRenewable):
		return 0, fmt.Errorf("%w: asset %d", ErrNotRenewable, assetID)
	case errors.Is(err, subscription.ErrOverflow):
		return 0, fmt.Errorf("%w: expiration of asset %d", ErrOverflow, assetID)
	case err != nil:
		return 0, err
	}

	if err := b.store.SetExpiration(ctx, assetID, next); err != nil {
		return 0, err
	}

	b.logger.Debug("subscription renewed",
		"asset_id", assetID,
		"expiration", next,
	)

	update := subscription.Update{AssetID: assetID, Expiration: next}
	out.add(func() { b.plugins.EmitSubscriptionUpdated(ctx, update) })
	return next, nil
}

// CancelSubscription resets the expiration of an asset to 0. Unknown assets
// have nothing to reset; the update is still announced.
func (b *Bazaar) CancelSubscription(ctx context.Context, assetID uint64) error {
	if err := b.enter(ctx); err != nil {
		return err
	}

	var out outbox
	defer out.flush()

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.getAsset(ctx, assetID)
	switch {
	case err == nil:
		if err := b.store.SetExpiration(ctx, assetID, 0); err != nil {
			return err
		}
	case !IsNotFound(err):
		return err
	}

	b.logger.Debug("subscription canceled", "asset_id", assetID)

	out.add(func() { b.plugins.EmitSubscriptionUpdated(ctx, subscription.Update{AssetID: assetID}) })
	return nil
}

// ExpiresAt returns the expiration of an asset's subscription, 0 if none.
func (b *Bazaar) ExpiresAt(ctx context.Context, assetID uint64) (uint64, error) {
	if err := b.enter(ctx); err != nil {
		return 0, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.store.GetExpiration(ctx, assetID)
}
