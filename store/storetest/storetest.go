// Package storetest holds the conformance suite every store backend runs.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/bazaar"
	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/social"
	"github.com/xraph/bazaar/store"
	"github.com/xraph/bazaar/types"
)

// Factory returns a fresh, migrated, empty store.
type Factory func(t *testing.T) store.Store

// Run exercises a backend against the store.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("Assets", func(t *testing.T) { testAssets(t, newStore(t)) })
	t.Run("ListAssets", func(t *testing.T) { testListAssets(t, newStore(t)) })
	t.Run("Expirations", func(t *testing.T) { testExpirations(t, newStore(t)) })
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
	t.Run("Follows", func(t *testing.T) { testFollows(t, newStore(t)) })
	t.Run("Counters", func(t *testing.T) { testCounters(t, newStore(t)) })
}

func newAsset(assetID uint64, owner types.Account) *asset.Asset {
	return &asset.Asset{
		Entity:      types.NewEntity(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		ID:          assetID,
		Seller:      owner,
		Owner:       owner,
		Price:       types.Zero("gas"),
		Subscribers: []types.Account{owner},
		Likes:       1,
		Title:       "Ticket",
		Description: "Front row",
		MetadataRef: "ipfs://meta",
	}
}

func testAssets(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.GetAsset(ctx, 1); !errors.Is(err, bazaar.ErrNotFound) {
		t.Fatalf("GetAsset(missing) error = %v, want ErrNotFound", err)
	}

	a := newAsset(1, "alice")
	if err := s.CreateAsset(ctx, a); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	if err := s.CreateAsset(ctx, newAsset(1, "bob")); !errors.Is(err, bazaar.ErrAlreadyExists) {
		t.Errorf("duplicate CreateAsset error = %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetAsset(ctx, 1)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if got.Title != "Ticket" || got.Owner != "alice" || got.Likes != 1 || got.MetadataRef != "ipfs://meta" {
		t.Errorf("GetAsset = %+v", got)
	}
	if len(got.Subscribers) != 1 || got.Subscribers[0] != "alice" {
		t.Errorf("Subscribers = %v, want [alice]", got.Subscribers)
	}

	// Returned values must not alias stored state.
	got.Subscribers[0] = "mallory"
	again, err := s.GetAsset(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if again.Subscribers[0] != "alice" {
		t.Error("mutating a returned asset changed the store")
	}

	again.Owner = "escrow"
	again.Price = types.GAS(100)
	again.Subscribers = append(again.Subscribers, "bob", "bob")
	again.Likes = 7
	if err := s.UpdateAsset(ctx, again); err != nil {
		t.Fatalf("UpdateAsset: %v", err)
	}

	updated, err := s.GetAsset(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Owner != "escrow" || !updated.Price.Equal(types.GAS(100)) || updated.Likes != 7 {
		t.Errorf("updated asset = %+v", updated)
	}
	if want := []types.Account{"alice", "bob", "bob"}; !equalAccounts(updated.Subscribers, want) {
		t.Errorf("Subscribers = %v, want %v", updated.Subscribers, want)
	}

	if err := s.UpdateAsset(ctx, newAsset(99, "alice")); !errors.Is(err, bazaar.ErrNotFound) {
		t.Errorf("UpdateAsset(missing) error = %v, want ErrNotFound", err)
	}
}

func testListAssets(t *testing.T, s store.Store) {
	ctx := context.Background()

	// Insert out of order to check ordering.
	for _, id := range []uint64{3, 1, 4, 2} {
		owner := types.Account("alice")
		if id%2 == 0 {
			owner = "bob"
		}
		if err := s.CreateAsset(ctx, newAsset(id, owner)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		opts asset.ListOpts
		want []uint64
	}{
		{"all", asset.ListOpts{}, []uint64{1, 2, 3, 4}},
		{"owner", asset.ListOpts{Owner: "bob"}, []uint64{2, 4}},
		{"limit", asset.ListOpts{Limit: 2}, []uint64{1, 2}},
		{"offset", asset.ListOpts{Offset: 3}, []uint64{4}},
		{"past end", asset.ListOpts{Offset: 10}, nil},
		{"unknown owner", asset.ListOpts{Owner: "carol"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListAssets(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListAssets: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListAssets len = %d, want %d", len(got), len(tt.want))
			}
			for i, a := range got {
				if a.ID != tt.want[i] {
					t.Errorf("ListAssets[%d].ID = %d, want %d", i, a.ID, tt.want[i])
				}
			}
		})
	}
}

func testExpirations(t *testing.T, s store.Store) {
	ctx := context.Background()

	got, err := s.GetExpiration(ctx, 1)
	if err != nil || got != 0 {
		t.Fatalf("GetExpiration(unset) = %d, %v; want 0, nil", got, err)
	}

	if err := s.SetExpiration(ctx, 1, 1500); err != nil {
		t.Fatalf("SetExpiration: %v", err)
	}
	if err := s.SetExpiration(ctx, 1, 2500); err != nil {
		t.Fatalf("SetExpiration overwrite: %v", err)
	}
	if got, _ := s.GetExpiration(ctx, 1); got != 2500 {
		t.Errorf("GetExpiration = %d, want 2500", got)
	}

	if err := s.SetExpiration(ctx, 1, 0); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.GetExpiration(ctx, 1); got != 0 {
		t.Errorf("GetExpiration after reset = %d, want 0", got)
	}
}

func testProfiles(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if _, err := s.GetProfileByAccount(ctx, "alice"); !errors.Is(err, bazaar.ErrNotFound) {
		t.Fatalf("GetProfileByAccount(missing) error = %v", err)
	}

	for i, acct := range []types.Account{"alice", "bob", "carol"} {
		p := &social.Profile{Entity: types.NewEntity(now), UserID: uint64(i + 1), Account: acct}
		if err := s.CreateProfile(ctx, p); err != nil {
			t.Fatalf("CreateProfile(%s): %v", acct, err)
		}
	}

	dup := &social.Profile{Entity: types.NewEntity(now), UserID: 9, Account: "alice"}
	if err := s.CreateProfile(ctx, dup); !errors.Is(err, bazaar.ErrAlreadyExists) {
		t.Errorf("duplicate CreateProfile error = %v, want ErrAlreadyExists", err)
	}

	p, err := s.GetProfile(ctx, 2)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Account != "bob" {
		t.Errorf("GetProfile(2).Account = %s, want bob", p.Account)
	}
	if _, err := s.GetProfile(ctx, 42); !errors.Is(err, bazaar.ErrNotFound) {
		t.Errorf("GetProfile(missing) error = %v", err)
	}

	p, err = s.GetProfileByAccount(ctx, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if p.UserID != 3 {
		t.Errorf("GetProfileByAccount(carol).UserID = %d, want 3", p.UserID)
	}

	all, err := s.ListProfiles(ctx, social.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].UserID != 1 || all[2].UserID != 3 {
		t.Errorf("ListProfiles = %d profiles", len(all))
	}

	page, err := s.ListProfiles(ctx, social.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].Account != "bob" {
		t.Errorf("ListProfiles page = %v", page)
	}
}

func testFollows(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, acct := range []types.Account{"alice", "bob", "carol"} {
		p := &social.Profile{Entity: types.NewEntity(now), UserID: uint64(i + 1), Account: acct}
		if err := s.CreateProfile(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	follow := func(from, to types.Account) bool {
		t.Helper()
		changed, err := s.AddFollow(ctx, &social.Follow{Follower: from, Followee: to, CreatedAt: now})
		if err != nil {
			t.Fatalf("AddFollow(%s, %s): %v", from, to, err)
		}
		return changed
	}

	if !follow("alice", "bob") {
		t.Error("first AddFollow reported no change")
	}
	if follow("alice", "bob") {
		t.Error("repeated AddFollow reported a change")
	}
	follow("carol", "bob")
	follow("bob", "alice")

	followers, err := s.ListFollowers(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if want := []types.Account{"alice", "carol"}; !equalAccounts(followers, want) {
		t.Errorf("ListFollowers(bob) = %v, want %v", followers, want)
	}

	following, err := s.ListFollowing(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if want := []types.Account{"bob"}; !equalAccounts(following, want) {
		t.Errorf("ListFollowing(alice) = %v, want %v", following, want)
	}

	p, err := s.GetProfileByAccount(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !equalAccounts(p.Followers, []types.Account{"alice", "carol"}) || !equalAccounts(p.Following, []types.Account{"alice"}) {
		t.Errorf("profile edges = followers %v following %v", p.Followers, p.Following)
	}

	changed, err := s.RemoveFollow(ctx, "alice", "bob")
	if err != nil || !changed {
		t.Fatalf("RemoveFollow = %v, %v; want true, nil", changed, err)
	}
	changed, err = s.RemoveFollow(ctx, "alice", "bob")
	if err != nil || changed {
		t.Errorf("repeated RemoveFollow = %v, %v; want false, nil", changed, err)
	}

	followers, _ = s.ListFollowers(ctx, "bob")
	if want := []types.Account{"carol"}; !equalAccounts(followers, want) {
		t.Errorf("ListFollowers(bob) after remove = %v, want %v", followers, want)
	}
	following, _ = s.ListFollowing(ctx, "alice")
	if len(following) != 0 {
		t.Errorf("ListFollowing(alice) after remove = %v, want empty", following)
	}
}

func testCounters(t *testing.T, s store.Store) {
	ctx := context.Background()

	for _, name := range []string{store.CounterAssetID, store.CounterListed, store.CounterUserID} {
		got, err := s.Counter(ctx, name)
		if err != nil || got != 0 {
			t.Fatalf("Counter(%s) = %d, %v; want 0, nil", name, got, err)
		}
	}

	if err := s.SetCounter(ctx, store.CounterAssetID, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCounter(ctx, store.CounterAssetID, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCounter(ctx, store.CounterListed, 5); err != nil {
		t.Fatal(err)
	}

	if got, _ := s.Counter(ctx, store.CounterAssetID); got != 2 {
		t.Errorf("Counter(asset_id) = %d, want 2", got)
	}
	if got, _ := s.Counter(ctx, store.CounterListed); got != 5 {
		t.Errorf("Counter(listed) = %d, want 5", got)
	}

	// Rolling a counter back is a plain write.
	if err := s.SetCounter(ctx, store.CounterAssetID, 1); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Counter(ctx, store.CounterAssetID); got != 1 {
		t.Errorf("Counter(asset_id) after rollback = %d, want 1", got)
	}
}

func equalAccounts(got, want []types.Account) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
