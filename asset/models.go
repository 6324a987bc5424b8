// Package asset defines the canonical asset record held by the registry.
package asset

import (
	"slices"

	"github.com/xraph/bazaar/types"
)

// Asset is a sellable, subscribable item.
//
// Seller never changes after creation. Owner is the creator until the asset
// is listed, then the marketplace escrow account. Subscribers is append-only
// and may hold the same account more than once.
type Asset struct {
	types.Entity
	ID          uint64          `json:"id"`
	Seller      types.Account   `json:"seller"`
	Owner       types.Account   `json:"owner"`
	Price       types.Money     `json:"price"`
	Subscribers []types.Account `json:"subscribers"`
	Likes       uint64          `json:"likes"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	MetadataRef string          `json:"metadata_ref"`
}

// Clone returns a deep copy so callers never share the subscriber slice
// with the store.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	c := *a
	c.Subscribers = slices.Clone(a.Subscribers)
	return &c
}

// ListedBy reports whether the asset is currently held by escrow.
func (a *Asset) ListedBy(escrow types.Account) bool {
	return a.Owner == escrow && a.Price.IsPositive()
}

// HasSubscriber reports whether account appears in Subscribers.
func (a *Asset) HasSubscriber(account types.Account) bool {
	return slices.Contains(a.Subscribers, account)
}
