// Package memory provides an in-process Store. It is the default backend
// for tests and single-node deployments that snapshot state elsewhere.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/xraph/bazaar"
	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/social"
	"github.com/xraph/bazaar/store"
	"github.com/xraph/bazaar/types"
)

var _ store.Store = (*Store)(nil)

// Store keeps all state in maps guarded by a single lock. Values are
// copied on the way in and out so callers never alias stored records.
type Store struct {
	mu     sync.RWMutex
	closed bool

	// Asset storage
	assets map[uint64]*asset.Asset

	// Subscription storage
	expirations map[uint64]uint64

	// Profile storage
	profiles  map[uint64]*social.Profile
	byAccount map[types.Account]uint64

	// Follow edges, indexed both ways
	following map[types.Account]map[types.Account]*social.Follow
	followers map[types.Account]map[types.Account]*social.Follow

	counters map[string]uint64
}

// New creates an empty memory store.
func New() *Store {
	return &Store{
		assets:      make(map[uint64]*asset.Asset),
		expirations: make(map[uint64]uint64),
		profiles:    make(map[uint64]*social.Profile),
		byAccount:   make(map[types.Account]uint64),
		following:   make(map[types.Account]map[types.Account]*social.Follow),
		followers:   make(map[types.Account]map[types.Account]*social.Follow),
		counters:    make(map[string]uint64),
	}
}

// ──────────────────────────────────────────────────
// Asset Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAsset(_ context.Context, a *asset.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return bazaar.ErrStoreClosed
	}
	if _, exists := s.assets[a.ID]; exists {
		return fmt.Errorf("%w: asset %d", bazaar.ErrAlreadyExists, a.ID)
	}
	s.assets[a.ID] = a.Clone()
	return nil
}

func (s *Store) GetAsset(_ context.Context, assetID uint64) (*asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bazaar.ErrStoreClosed
	}
	if a, ok := s.assets[assetID]; ok {
		return a.Clone(), nil
	}
	return nil, bazaar.ErrAssetNotFound
}

func (s *Store) UpdateAsset(_ context.Context, a *asset.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return bazaar.ErrStoreClosed
	}
	if _, exists := s.assets[a.ID]; !exists {
		return bazaar.ErrAssetNotFound
	}
	s.assets[a.ID] = a.Clone()
	return nil
}

func (s *Store) ListAssets(_ context.Context, opts asset.ListOpts) ([]*asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bazaar.ErrStoreClosed
	}

	ids := slices.Sorted(maps.Keys(s.assets))
	result := make([]*asset.Asset, 0, len(ids))
	for _, assetID := range ids {
		a := s.assets[assetID]
		if opts.Owner == "" || string(a.Owner) == opts.Owner {
			result = append(result, a.Clone())
		}
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Subscription Store
// ──────────────────────────────────────────────────

func (s *Store) GetExpiration(_ context.Context, assetID uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, bazaar.ErrStoreClosed
	}
	return s.expirations[assetID], nil
}

func (s *Store) SetExpiration(_ context.Context, assetID, expiration uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return bazaar.ErrStoreClosed
	}
	s.expirations[assetID] = expiration
	return nil
}

// ──────────────────────────────────────────────────
// Social Store
// ──────────────────────────────────────────────────

func (s *Store) CreateProfile(_ context.Context, p *social.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return bazaar.ErrStoreClosed
	}
	if _, exists := s.byAccount[p.Account]; exists {
		return fmt.Errorf("%w: profile for %s", bazaar.ErrAlreadyExists, p.Account)
	}
	if _, exists := s.profiles[p.UserID]; exists {
		return fmt.Errorf("%w: user %d", bazaar.ErrAlreadyExists, p.UserID)
	}

	c := *p
	c.Followers = nil
	c.Following = nil
	s.profiles[p.UserID] = &c
	s.byAccount[p.Account] = p.UserID
	return nil
}

func (s *Store) GetProfile(_ context.Context, userID uint64) (*social.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bazaar.ErrStoreClosed
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, bazaar.ErrProfileNotFound
	}
	return s.hydrate(p), nil
}

func (s *Store) GetProfileByAccount(_ context.Context, account types.Account) (*social.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bazaar.ErrStoreClosed
	}
	userID, ok := s.byAccount[account]
	if !ok {
		return nil, bazaar.ErrProfileNotFound
	}
	return s.hydrate(s.profiles[userID]), nil
}

func (s *Store) ListProfiles(_ context.Context, opts social.ListOpts) ([]*social.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bazaar.ErrStoreClosed
	}

	ids := slices.Sorted(maps.Keys(s.profiles))
	result := make([]*social.Profile, 0, len(ids))
	for _, userID := range ids {
		result = append(result, s.hydrate(s.profiles[userID]))
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) AddFollow(_ context.Context, f *social.Follow) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, bazaar.ErrStoreClosed
	}
	if _, exists := s.following[f.Follower][f.Followee]; exists {
		return false, nil
	}

	edge := *f
	link(s.following, f.Follower, f.Followee, &edge)
	link(s.followers, f.Followee, f.Follower, &edge)
	return true, nil
}

func (s *Store) RemoveFollow(_ context.Context, follower, followee types.Account) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, bazaar.ErrStoreClosed
	}
	if _, exists := s.following[follower][followee]; !exists {
		return false, nil
	}

	unlink(s.following, follower, followee)
	unlink(s.followers, followee, follower)
	return true, nil
}

func (s *Store) ListFollowers(_ context.Context, account types.Account) ([]types.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bazaar.ErrStoreClosed
	}
	return slices.Sorted(maps.Keys(s.followers[account])), nil
}

func (s *Store) ListFollowing(_ context.Context, account types.Account) ([]types.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bazaar.ErrStoreClosed
	}
	return slices.Sorted(maps.Keys(s.following[account])), nil
}

// ──────────────────────────────────────────────────
// Counters
// ──────────────────────────────────────────────────

func (s *Store) Counter(_ context.Context, name string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, bazaar.ErrStoreClosed
	}
	return s.counters[name], nil
}

func (s *Store) SetCounter(_ context.Context, name string, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return bazaar.ErrStoreClosed
	}
	s.counters[name] = value
	return nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return bazaar.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Helper functions

func (s *Store) hydrate(p *social.Profile) *social.Profile {
	c := *p
	c.Followers = slices.Sorted(maps.Keys(s.followers[p.Account]))
	c.Following = slices.Sorted(maps.Keys(s.following[p.Account]))
	return &c
}

func link(idx map[types.Account]map[types.Account]*social.Follow, from, to types.Account, f *social.Follow) {
	m, ok := idx[from]
	if !ok {
		m = make(map[types.Account]*social.Follow)
		idx[from] = m
	}
	m[to] = f
}

func unlink(idx map[types.Account]map[types.Account]*social.Follow, from, to types.Account) {
	delete(idx[from], to)
	if len(idx[from]) == 0 {
		delete(idx, from)
	}
}

func paginate[T any](items []T, offset, limit int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}
