package subscription

import "context"

// Store persists expirations keyed by asset id. GetExpiration returns 0 for
// assets that never had a subscription.
type Store interface {
	GetExpiration(ctx context.Context, assetID uint64) (uint64, error)
	SetExpiration(ctx context.Context, assetID, expiration uint64) error
}
