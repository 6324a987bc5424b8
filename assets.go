package bazaar

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/store"
	"github.com/xraph/bazaar/types"
)

// ──────────────────────────────────────────────────
// Asset registry
// ──────────────────────────────────────────────────

// CreateAsset mints a new asset owned by the caller and returns its id.
// The caller becomes seller, owner and first subscriber; likes start at 1.
func (b *Bazaar) CreateAsset(ctx context.Context, metadataRef, title, description string) (uint64, error) {
	caller, err := b.caller(ctx)
	if err != nil {
		return 0, err
	}

	var out outbox
	defer out.flush()

	b.mu.Lock()
	defer b.mu.Unlock()

	prev, next, err := b.nextCounter(ctx, store.CounterAssetID)
	if err != nil {
		return 0, err
	}

	a := &asset.Asset{
		Entity:      types.NewEntity(b.now()),
		ID:          next,
		Seller:      caller,
		Owner:       caller,
		Price:       types.Zero(b.currency),
		Subscribers: []types.Account{caller},
		Likes:       1,
		Title:       title,
		Description: description,
		MetadataRef: metadataRef,
	}

	tx := b.begin("create_asset", &out)
	if err := tx.setCounter(ctx, store.CounterAssetID, prev, next); err != nil {
		return 0, err
	}
	if err := b.store.CreateAsset(ctx, a); err != nil {
		return 0, tx.rollback(ctx, err)
	}

	b.logger.Debug("asset created",
		"asset_id", a.ID,
		"seller", a.Seller,
	)

	out.add(func() { b.plugins.EmitAssetCreated(ctx, a) })
	return a.ID, nil
}

// GetAsset returns a snapshot of an asset.
func (b *Bazaar) GetAsset(ctx context.Context, assetID uint64) (*asset.Asset, error) {
	if err := b.enter(ctx); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.getAsset(ctx, assetID)
}

func (b *Bazaar) getAsset(ctx context.Context, assetID uint64) (*asset.Asset, error) {
	a, err := b.store.GetAsset(ctx, assetID)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrAssetNotFound, assetID)
		}
		return nil, err
	}
	return a, nil
}

// Like increments an asset's like counter.
func (b *Bazaar) Like(ctx context.Context, assetID uint64) error {
	if err := b.enter(ctx); err != nil {
		return err
	}

	var out outbox
	defer out.flush()

	b.mu.Lock()
	defer b.mu.Unlock()

	a, err := b.getAsset(ctx, assetID)
	if err != nil {
		return err
	}

	likes, carry := bits.Add64(a.Likes, 1, 0)
	if carry != 0 {
		return fmt.Errorf("%w: likes on asset %d", ErrOverflow, assetID)
	}
	a.Likes = likes
	a.Touch(b.now())

	if err := b.store.UpdateAsset(ctx, a); err != nil {
		return err
	}

	out.add(func() { b.plugins.EmitAssetLiked(ctx, assetID, likes) })
	return nil
}

// Dislike decrements an asset's like counter. It fails with ErrUnderflow
// when the counter is already zero.
func (b *Bazaar) Dislike(ctx context.Context, assetID uint64) error {
	if err := b.enter(ctx); err != nil {
		return err
	}

	var out outbox
	defer out.flush()

	b.mu.Lock()
	defer b.mu.Unlock()

	a, err := b.getAsset(ctx, assetID)
	if err != nil {
		return err
	}

	likes, borrow := bits.Sub64(a.Likes, 1, 0)
	if borrow != 0 {
		return fmt.Errorf("%w: likes on asset %d", ErrUnderflow, assetID)
	}
	a.Likes = likes
	a.Touch(b.now())

	if err := b.store.UpdateAsset(ctx, a); err != nil {
		return err
	}

	out.add(func() { b.plugins.EmitAssetDisliked(ctx, assetID, likes) })
	return nil
}
