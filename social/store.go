package social

import (
	"context"

	"github.com/xraph/bazaar/types"
)

// Store persists profiles and follow edges.
//
// CreateProfile fails with an error matching bazaar.ErrAlreadyExists when
// the account already has a profile. AddFollow and RemoveFollow are
// idempotent and report whether the graph changed.
type Store interface {
	CreateProfile(ctx context.Context, p *Profile) error
	GetProfile(ctx context.Context, userID uint64) (*Profile, error)
	GetProfileByAccount(ctx context.Context, account types.Account) (*Profile, error)
	ListProfiles(ctx context.Context, opts ListOpts) ([]*Profile, error)

	AddFollow(ctx context.Context, f *Follow) (bool, error)
	RemoveFollow(ctx context.Context, follower, followee types.Account) (bool, error)
	ListFollowers(ctx context.Context, account types.Account) ([]types.Account, error)
	ListFollowing(ctx context.Context, account types.Account) ([]types.Account, error)
}

// ListOpts paginates ListProfiles in ascending user id order.
type ListOpts struct {
	Limit  int
	Offset int
}
