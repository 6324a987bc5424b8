package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/social"
	"github.com/xraph/bazaar/types"
)

// Unsigned ledger values are stored bit-for-bit as BSON int64.

// ==================== Asset models ====================

type assetModel struct {
	grove.BaseModel `grove:"table:bazaar_assets"`

	ID            int64     `grove:"id,pk"          bson:"_id"`
	Seller        string    `grove:"seller"         bson:"seller"`
	Owner         string    `grove:"owner"          bson:"owner"`
	PriceAmount   int64     `grove:"price_amount"   bson:"price_amount"`
	PriceCurrency string    `grove:"price_currency" bson:"price_currency"`
	Subscribers   []string  `grove:"subscribers"    bson:"subscribers"`
	Likes         int64     `grove:"likes"          bson:"likes"`
	Title         string    `grove:"title"          bson:"title"`
	Description   string    `grove:"description"    bson:"description"`
	MetadataRef   string    `grove:"metadata_ref"   bson:"metadata_ref"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"     bson:"updated_at"`
}

func toAssetModel(a *asset.Asset) *assetModel {
	subs := make([]string, len(a.Subscribers))
	for i, s := range a.Subscribers {
		subs[i] = string(s)
	}

	return &assetModel{
		ID:            int64(a.ID),
		Seller:        string(a.Seller),
		Owner:         string(a.Owner),
		PriceAmount:   int64(a.Price.Amount),
		PriceCurrency: a.Price.Currency,
		Subscribers:   subs,
		Likes:         int64(a.Likes),
		Title:         a.Title,
		Description:   a.Description,
		MetadataRef:   a.MetadataRef,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func fromAssetModel(m *assetModel) *asset.Asset {
	subs := make([]types.Account, len(m.Subscribers))
	for i, s := range m.Subscribers {
		subs[i] = types.Account(s)
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
	}
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:bazaar_subscriptions"`

	AssetID    int64     `grove:"asset_id,pk" bson:"_id"`
	Expiration int64     `grove:"expiration"  bson:"expiration"`
	UpdatedAt  time.Time `grove:"updated_at"  bson:"updated_at"`
}

// ==================== Social models ====================

type profileModel struct {
	grove.BaseModel `grove:"table:bazaar_profiles"`

	UserID    int64     `grove:"user_id,pk" bson:"_id"`
	Account   string    `grove:"account"    bson:"account"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
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

// followModel is keyed by "follower\x00followee" so the pair is unique.
type followModel struct {
	grove.BaseModel `grove:"table:bazaar_follows"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	Follower  string    `grove:"follower"   bson:"follower"`
	Followee  string    `grove:"followee"   bson:"followee"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
}

func followKey(follower, followee types.Account) string {
	return string(follower) + "\x00" + string(followee)
}

// ==================== Counter models ====================

type counterModel struct {
	grove.BaseModel `grove:"table:bazaar_counters"`

	Name      string    `grove:"name,pk"    bson:"_id"`
	Value     int64     `grove:"value"      bson:"value"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}
