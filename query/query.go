// Package query provides read-only projections over the asset set. Each
// projection is a lazy filter; nothing is materialized until collected.
package query

import (
	"iter"
	"slices"

	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/types"
)

// Predicate selects assets.
type Predicate func(*asset.Asset) bool

// Filter yields the assets of seq matching every predicate.
func Filter(seq iter.Seq[*asset.Asset], preds ...Predicate) iter.Seq[*asset.Asset] {
	return func(yield func(*asset.Asset) bool) {
		for a := range seq {
			if matches(a, preds) && !yield(a) {
				return
			}
		}
	}
}

// ForSale selects assets held by escrow.
func ForSale(escrow types.Account) Predicate {
	return func(a *asset.Asset) bool { return a.Owner == escrow }
}

// SubscribedBy selects assets whose subscribers include account. An asset
// subscribed several times by the same account still matches once.
func SubscribedBy(account types.Account) Predicate {
	return func(a *asset.Asset) bool { return a.HasSubscriber(account) }
}

// OwnedBy selects assets owned by account.
func OwnedBy(account types.Account) Predicate {
	return func(a *asset.Asset) bool { return a.Owner == account }
}

// ByID selects the asset with the given id.
func ByID(assetID uint64) Predicate {
	return func(a *asset.Asset) bool { return a.ID == assetID }
}

// Collect materializes seq in ascending id order. The result grows with the
// number of matches and is never nil.
func Collect(seq iter.Seq[*asset.Asset]) []*asset.Asset {
	out := make([]*asset.Asset, 0)
	for a := range seq {
		out = append(out, a.Clone())
	}
	slices.SortFunc(out, func(x, y *asset.Asset) int {
		switch {
		case x.ID < y.ID:
			return -1
		case x.ID > y.ID:
			return 1
		default:
			return 0
		}
	})
	return out
}

func matches(a *asset.Asset, preds []Predicate) bool {
	for _, p := range preds {
		if !p(a) {
			return false
		}
	}
	return true
}
