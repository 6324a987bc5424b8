package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/social"
	"github.com/xraph/bazaar/types"
)

// Unsigned ledger values are stored bit-for-bit in INTEGER columns.
// Ordering by id is exact below 2^63.

// ==================== Asset models ====================

type assetModel struct {
	grove.BaseModel `grove:"table:bazaar_assets"`

	ID            int64           `grove:"id,pk"`
	Seller        string          `grove:"seller"`
	Owner         string          `grove:"owner"`
	PriceAmount   int64           `grove:"price_amount"`
	PriceCurrency string          `grove:"price_currency"`
	Subscribers   json.RawMessage `grove:"subscribers"`
	Likes         int64           `grove:"likes"`
	Title         string          `grove:"title"`
	Description   string          `grove:"description"`
	MetadataRef   string          `grove:"metadata_ref"`
	CreatedAt     time.Time       `grove:"created_at"`
	UpdatedAt     time.Time       `grove:"updated_at"`
}

func toAssetModel(a *asset.Asset) (*assetModel, error) {
	subs := a.Subscribers
	if subs == nil {
		subs = []types.Account{}
	}
	raw, err := json.Marshal(subs)
	if err != nil {
		return nil, fmt.Errorf("bazaar/sqlite: encode subscribers: %w", err)
	}

	return &assetModel{
		ID:            int64(a.ID),
		Seller:        string(a.Seller),
		Owner:         string(a.Owner),
		PriceAmount:   int64(a.Price.Amount),
		PriceCurrency: a.Price.Currency,
		Subscribers:   raw,
		Likes:         int64(a.Likes),
		Title:         a.Title,
		Description:   a.Description,
		MetadataRef:   a.MetadataRef,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}, nil
}

func fromAssetModel(m *assetModel) (*asset.Asset, error) {
	var subs []types.Account
	if len(m.Subscribers) > 0 {
		if err := json.Unmarshal(m.Subscribers, &subs); err != nil {
			return nil, fmt.Errorf("bazaar/sqlite: decode subscribers of asset %d: %w", m.ID, err)
		}
	}

	return &asset.Asset{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          uint64(m.ID),
		Seller:      types.Account(m.Seller),
		Owner:       types.Account(m.Owner),
		Price:       types.New(uint64(m.PriceAmount), m.PriceCurrency),
		Subscribers: subs,
		Likes:       uint64(m.Likes),
		Title:       m.Title,
		Description: m.Description,
		MetadataRef: m.MetadataRef,
	}, nil
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:bazaar_subscriptions"`

	AssetID    int64     `grove:"asset_id,pk"`
	Expiration int64     `grove:"expiration"`
	UpdatedAt  time.Time `grove:"updated_at"`
}

// ==================== Social models ====================

type profileModel struct {
	grove.BaseModel `grove:"table:bazaar_profiles"`

	UserID    int64     `grove:"user_id,pk"`
	Account   string    `grove:"account"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toProfileModel(p *social.Profile) *profileModel {
	return &profileModel{
		UserID:    int64(p.UserID),
		Account:   string(p.Account),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func fromProfileModel(m *profileModel) *social.Profile {
	return &social.Profile{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		UserID:  uint64(m.UserID),
		Account: types.Account(m.Account),
	}
}

type followModel struct {
	grove.BaseModel `grove:"table:bazaar_follows"`

	Follower  string    `grove:"follower,pk"`
	Followee  string    `grove:"followee,pk"`
	CreatedAt time.Time `grove:"created_at"`
}

// ==================== Counter models ====================

type counterModel struct {
	grove.BaseModel `grove:"table:bazaar_counters"`

	Name      string    `grove:"name,pk"`
	Value     int64     `grove:"value"`
	UpdatedAt time.Time `grove:"updated_at"`
}
