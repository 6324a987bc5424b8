package bazaar

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/market"
	"github.com/xraph/bazaar/store"
	"github.com/xraph/bazaar/types"
)

// ──────────────────────────────────────────────────
// Escrow / marketplace
// ──────────────────────────────────────────────────

// ListForSale moves an asset into escrow at the given price and returns the
// marketplace-wide listed count. Only the current owner may list.
func (b *Bazaar) ListForSale(ctx context.Context, assetID uint64, price types.Money) (uint64, error) {
	caller, err := b.caller(ctx)
	if err != nil {
		return 0, err
	}
	if err := b.validatePrice(price); err != nil {
		return 0, err
	}
	price = types.New(price.Amount, price.Currency)

	var out outbox
	defer out.flush()

	b.mu.Lock()
	defer b.mu.Unlock()

	a, err := b.getAsset(ctx, assetID)
	if err != nil {
		return 0, err
	}
	if a.Owner != caller {
		return 0, fmt.Errorf("%w: %s does not own asset %d", ErrUnauthorized, caller, assetID)
	}

	prev, listed, err := b.nextCounter(ctx, store.CounterListed)
	if err != nil {
		return 0, err
	}

	now := b.now()
	a.Owner = b.escrow
	a.Price = price
	a.Touch(now)

	tx := b.begin("list_for_sale", &out)
	if err := tx.setCounter(ctx, store.CounterListed, prev, listed); err != nil {
		return 0, err
	}
	if err := b.store.UpdateAsset(ctx, a); err != nil {
		return 0, tx.rollback(ctx, err)
	}

	b.logger.Debug("asset listed",
		"asset_id", assetID,
		"price", price.String(),
		"listed", listed,
	)

	listing := &market.Listing{
		ID:          id.NewListingID(),
		AssetID:     assetID,
		Seller:      caller,
		Price:       price,
		ListedCount: listed,
		ListedAt:    now,
	}
	out.add(func() { b.plugins.EmitAssetListed(ctx, listing) })
	return listed, nil
}

// Purchase buys a subscription on an escrowed asset. The payment must match
// the listed price exactly. The caller is recorded as a subscriber before
// the payment is released to the seller; if settlement fails the asset is
// restored and ErrPaymentFailed is returned. Ownership stays with escrow.
func (b *Bazaar) Purchase(ctx context.Context, assetID uint64, payment types.Money) error {
	caller, err := b.caller(ctx)
	if err != nil {
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
	if !a.ListedBy(b.escrow) {
		return fmt.Errorf("%w: asset %d", ErrNotForSale, assetID)
	}
	if payment = types.New(payment.Amount, payment.Currency); !payment.Equal(a.Price) {
		return fmt.Errorf("%w: paid %s, price %s", ErrPriceMismatch, payment, a.Price)
	}

	before := a.Clone()
	a.Subscribers = append(a.Subscribers, caller)
	a.Touch(b.now())

	tx := b.begin("purchase", &out)
	if err := b.store.UpdateAsset(ctx, a); err != nil {
		return err
	}
	tx.onUndo(func(ctx context.Context) error {
		return b.store.UpdateAsset(ctx, before)
	})

	settlement := &market.Settlement{
		ID:      id.NewPaymentID(),
		AssetID: assetID,
		Payer:   caller,
		Payee:   a.Seller,
		Amount:  payment,
	}

	err = b.callOut(ctx, func(ctx context.Context) error {
		return b.payer.Transfer(ctx, market.Transfer{
			From:   caller,
			To:     a.Seller,
			Amount: payment,
		})
	})
	if err != nil {
		rerr := tx.rollback(ctx, fmt.Errorf("%w: %w", ErrPaymentFailed, err))
		out.add(func() { b.plugins.EmitPaymentFailed(ctx, settlement, err) })
		return rerr
	}
	settlement.SettledAt = b.now()

	b.logger.Debug("asset purchased",
		"asset_id", assetID,
		"buyer", caller,
		"amount", payment.String(),
	)

	purchase := &market.Purchase{
		AssetID:     assetID,
		Buyer:       caller,
		Amount:      payment,
		Subscribers: len(a.Subscribers),
	}
	out.add(func() { b.plugins.EmitAssetPurchased(ctx, purchase) })
	out.add(func() { b.plugins.EmitPaymentSettled(ctx, settlement) })
	return nil
}

func (b *Bazaar) validatePrice(price types.Money) error {
	if !price.IsPositive() {
		return ValidationError{Field: "price", Message: "must be positive"}
	}
	if !strings.EqualFold(price.Currency, b.currency) {
		return ValidationError{
			Field:   "price",
			Message: fmt.Sprintf("currency %q, marketplace trades in %q", price.Currency, b.currency),
		}
	}
	return nil
}
