package asset

import "context"

// Store persists assets. Get returns an error matching bazaar.ErrNotFound
// for ids that were never created.
type Store interface {
	CreateAsset(ctx context.Context, a *Asset) error
	GetAsset(ctx context.Context, assetID uint64) (*Asset, error)
	UpdateAsset(ctx context.Context, a *Asset) error
	ListAssets(ctx context.Context, opts ListOpts) ([]*Asset, error)
}

// ListOpts narrows ListAssets. Results are always in ascending id order.
type ListOpts struct {
	Owner  string
	Limit  int
	Offset int
}
