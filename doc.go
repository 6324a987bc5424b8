// Package bazaar provides a marketplace ledger for non-fungible,
// subscription-gated assets.
//
// Bazaar is designed as a library, not a service. It is a single
// authoritative state machine that executes one call at a time; every call
// either commits all of its writes or fails without a trace. It provides:
//
//   - An asset registry with sequential ids, subscriber lists and likes
//   - Escrowed listings with exact-price purchases and seller settlement
//   - Stacking subscription windows with overflow-checked arithmetic
//   - A follower/following graph with idempotent follows
//   - Lazy, id-ordered query projections over the asset set
//   - Lifecycle hooks for audit trails and metrics
//
// # Quick Start
//
// Create a bazaar instance with your preferred store:
//
//	import (
//	    "github.com/xraph/bazaar"
//	    "github.com/xraph/bazaar/store/memory"
//	)
//
//	b := bazaar.New(memory.New(),
//	    bazaar.WithEscrowAccount("market"),
//	    bazaar.WithCurrency("gas"),
//	)
//	if err := b.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Stop()
//
// # Callers
//
// Identity is established by the hosting environment and carried in the
// context:
//
//	ctx = bazaar.WithCaller(ctx, "alice")
//	assetID, err := b.CreateAsset(ctx, "ipfs://meta", "Ticket", "Front row")
//
// # Marketplace
//
// Listing hands custody to the escrow account. Purchases must pay the
// listed price exactly and grant a subscription; the asset stays in escrow
// so it can be bought any number of times:
//
//	listed, err := b.ListForSale(aliceCtx, assetID, bazaar.GAS(100))
//	err = b.Purchase(bobCtx, assetID, bazaar.GAS(100))
//
// The payment is released to the seller through a market.Payer only after
// the purchase has been recorded. A failing payer rolls the purchase back
// and yields ErrPaymentFailed. Calls made back into the engine from inside
// a payer fail with ErrReentrantCall.
//
// # Subscriptions
//
// Renewals stack onto the existing expiration, never onto the current
// time, so a lapsed window keeps its original end as the base:
//
//	exp, err := b.Renew(ctx, assetID, 1000, now) // now+1000
//	exp, err = b.Renew(ctx, assetID, 500, later) // now+1500
//
// Expirations are advisory; nothing expires automatically.
package bazaar
