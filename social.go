package bazaar

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/xraph/bazaar/social"
	"github.com/xraph/bazaar/store"
	"github.com/xraph/bazaar/types"
)

// ──────────────────────────────────────────────────
// Social graph
// ──────────────────────────────────────────────────

// Register creates a profile for the caller and returns its user id along
// with the caller's balance in the marketplace currency.
func (b *Bazaar) Register(ctx context.Context) (uint64, types.Money, error) {
	caller, err := b.caller(ctx)
	if err != nil {
		return 0, types.Money{}, err
	}

	var out outbox
	defer out.flush()

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err = b.store.GetProfileByAccount(ctx, caller)
	switch {
	case err == nil:
		return 0, types.Money{}, fmt.Errorf("%w: profile for %s", ErrAlreadyExists, caller)
	case !IsNotFound(err):
		return 0, types.Money{}, err
	}

	var balance types.Money
	err = b.callOut(ctx, func(ctx context.Context) error {
		var berr error
		balance, berr = b.balances.BalanceOf(ctx, caller, b.currency)
		return berr
	})
	if err != nil {
		return 0, types.Money{}, fmt.Errorf("bazaar: balance of %s: %w", caller, err)
	}

	prev, userID, err := b.nextCounter(ctx, store.CounterUserID)
	if err != nil {
		return 0, types.Money{}, err
	}

	p := &social.Profile{
		Entity:    types.NewEntity(b.now()),
		UserID:    userID,
		Account:   caller,
		Followers: []types.Account{},
		Following: []types.Account{},
	}

	tx := b.begin("register", &out)
	if err := tx.setCounter(ctx, store.CounterUserID, prev, userID); err != nil {
		return 0, types.Money{}, err
	}
	if err := b.store.CreateProfile(ctx, p); err != nil {
		return 0, types.Money{}, tx.rollback(ctx, err)
	}

	b.logger.Debug("profile registered",
		"user_id", userID,
		"account", caller,
	)

	out.add(func() { b.plugins.EmitProfileRegistered(ctx, p) })
	return userID, balance, nil
}

// Follow makes the caller follow target. Both accounts must be registered.
// Following an account twice is a no-op.
func (b *Bazaar) Follow(ctx context.Context, target types.Account) error {
	caller, err := b.caller(ctx)
	if err != nil {
		return err
	}

	var out outbox
	defer out.flush()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.requireProfiles(ctx, caller, target); err != nil {
		return err
	}

	changed, err := b.store.AddFollow(ctx, &social.Follow{
		Follower:  caller,
		Followee:  target,
		CreatedAt: b.now(),
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	b.logger.Debug("account followed",
		"follower", caller,
		"followee", target,
	)

	out.add(func() { b.plugins.EmitFollowed(ctx, caller, target) })
	return nil
}

// Unfollow removes the caller from target's followers. Removing a follow
// that does not exist is a no-op.
func (b *Bazaar) Unfollow(ctx context.Context, target types.Account) error {
	caller, err := b.caller(ctx)
	if err != nil {
		return err
	}

	var out outbox
	defer out.flush()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.requireProfiles(ctx, caller, target); err != nil {
		return err
	}

	changed, err := b.store.RemoveFollow(ctx, caller, target)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	b.logger.Debug("account unfollowed",
		"follower", caller,
		"followee", target,
	)

	out.add(func() { b.plugins.EmitUnfollowed(ctx, caller, target) })
	return nil
}

// GetProfile returns a profile by user id.
func (b *Bazaar) GetProfile(ctx context.Context, userID uint64) (*social.Profile, error) {
	if err := b.enter(ctx); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	p, err := b.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, profileErr(err, fmt.Sprintf("user %d", userID))
	}
	return sortProfile(p), nil
}

// GetProfileByAccount returns the profile registered for account.
func (b *Bazaar) GetProfileByAccount(ctx context.Context, account types.Account) (*social.Profile, error) {
	if err := b.enter(ctx); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	p, err := b.store.GetProfileByAccount(ctx, account)
	if err != nil {
		return nil, profileErr(err, account.String())
	}
	return sortProfile(p), nil
}

// Followers returns the accounts following account, sorted.
func (b *Bazaar) Followers(ctx context.Context, account types.Account) ([]types.Account, error) {
	return b.edges(ctx, account, b.store.ListFollowers)
}

// Following returns the accounts account follows, sorted.
func (b *Bazaar) Following(ctx context.Context, account types.Account) ([]types.Account, error) {
	return b.edges(ctx, account, b.store.ListFollowing)
}

func (b *Bazaar) edges(ctx context.Context, account types.Account, list func(context.Context, types.Account) ([]types.Account, error)) ([]types.Account, error) {
	if err := b.enter(ctx); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.requireProfiles(ctx, account); err != nil {
		return nil, err
	}

	accounts, err := list(ctx, account)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []types.Account{}
	}
	slices.Sort(accounts)
	return accounts, nil
}

func (b *Bazaar) requireProfiles(ctx context.Context, accounts ...types.Account) error {
	for _, a := range accounts {
		if a.IsZero() {
			return ValidationError{Field: "account", Message: "must not be empty"}
		}
		if _, err := b.store.GetProfileByAccount(ctx, a); err != nil {
			return profileErr(err, a.String())
		}
	}
	return nil
}

func profileErr(err error, what string) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, what)
	}
	return err
}

func sortProfile(p *social.Profile) *social.Profile {
	if p.Followers == nil {
		p.Followers = []types.Account{}
	}
	if p.Following == nil {
		p.Following = []types.Account{}
	}
	slices.Sort(p.Followers)
	slices.Sort(p.Following)
	return p
}
