// Package market holds marketplace records and the payment collaborators
// the engine settles through.
package market

import (
	"time"

	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/types"
)

// Listing records one transfer of an asset into escrow.
type Listing struct {
	ID          id.ID         `json:"id"`
	AssetID     uint64        `json:"asset_id"`
	Seller      types.Account `json:"seller"`
	Price       types.Money   `json:"price"`
	ListedCount uint64        `json:"listed_count"`
	ListedAt    time.Time     `json:"listed_at"`
}

// Purchase records a granted subscription on an escrowed asset.
type Purchase struct {
	AssetID     uint64        `json:"asset_id"`
	Buyer       types.Account `json:"buyer"`
	Amount      types.Money   `json:"amount"`
	Subscribers int           `json:"subscribers"`
}

// Settlement records a payment released to a seller.
type Settlement struct {
	ID        id.ID         `json:"id"`
	AssetID   uint64        `json:"asset_id"`
	Payer     types.Account `json:"payer"`
	Payee     types.Account `json:"payee"`
	Amount    types.Money   `json:"amount"`
	SettledAt time.Time     `json:"settled_at"`
}
