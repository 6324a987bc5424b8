package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/bazaar"
	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/social"
	bazaarstore "github.com/xraph/bazaar/store"
	"github.com/xraph/bazaar/types"
)

// Collection name constants.
const (
	colAssets        = "bazaar_assets"
	colSubscriptions = "bazaar_subscriptions"
	colProfiles      = "bazaar_profiles"
	colFollows       = "bazaar_follows"
	colCounters      = "bazaar_counters"
)

// compile-time interface check
var _ bazaarstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all bazaar collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("bazaar/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Asset Store ====================

func (s *Store) CreateAsset(ctx context.Context, a *asset.Asset) error {
	_, err := s.mdb.NewInsert(toAssetModel(a)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: asset %d", bazaar.ErrAlreadyExists, a.ID)
		}
		return fmt.Errorf("bazaar/mongo: create asset: %w", err)
	}
	return nil
}

func (s *Store) GetAsset(ctx context.Context, assetID uint64) (*asset.Asset, error) {
	var m assetModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": int64(assetID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bazaar.ErrAssetNotFound
		}
		return nil, fmt.Errorf("bazaar/mongo: get asset: %w", err)
	}
	return fromAssetModel(&m), nil
}

func (s *Store) UpdateAsset(ctx context.Context, a *asset.Asset) error {
	m := toAssetModel(a)

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bazaar/mongo: update asset: %w", err)
	}
	if res.MatchedCount() == 0 {
		return bazaar.ErrAssetNotFound
	}
	return nil
}

func (s *Store) ListAssets(ctx context.Context, opts asset.ListOpts) ([]*asset.Asset, error) {
	var models []assetModel

	filter := bson.M{}
	if opts.Owner != "" {
		filter["owner"] = opts.Owner
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bazaar/mongo: list assets: %w", err)
	}

	result := make([]*asset.Asset, len(models))
	for i := range models {
		result[i] = fromAssetModel(&models[i])
	}
	return result, nil
}

// ==================== Subscription Store ====================

func (s *Store) GetExpiration(ctx context.Context, assetID uint64) (uint64, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": int64(assetID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("bazaar/mongo: get expiration: %w", err)
	}
	return uint64(m.Expiration), nil
}

func (s *Store) SetExpiration(ctx context.Context, assetID, expiration uint64) error {
	m := &subscriptionModel{
		AssetID:    int64(assetID),
		Expiration: int64(expiration),
		UpdatedAt:  now(),
	}

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.AssetID}).
		SetUpdate(bson.M{"$set": bson.M{
			"expiration": m.Expiration,
			"updated_at": m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bazaar/mongo: set expiration: %w", err)
	}
	return nil
}

// ==================== Social Store ====================

func (s *Store) CreateProfile(ctx context.Context, p *social.Profile) error {
	_, err := s.mdb.NewInsert(toProfileModel(p)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: profile for %s", bazaar.ErrAlreadyExists, p.Account)
		}
		return fmt.Errorf("bazaar/mongo: create profile: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID uint64) (*social.Profile, error) {
	var m profileModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": int64(userID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bazaar.ErrProfileNotFound
		}
		return nil, fmt.Errorf("bazaar/mongo: get profile: %w", err)
	}
	return s.hydrate(ctx, fromProfileModel(&m))
}

func (s *Store) GetProfileByAccount(ctx context.Context, account types.Account) (*social.Profile, error) {
	var m profileModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"account": string(account)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bazaar.ErrProfileNotFound
		}
		return nil, fmt.Errorf("bazaar/mongo: get profile by account: %w", err)
	}
	return s.hydrate(ctx, fromProfileModel(&m))
}

func (s *Store) ListProfiles(ctx context.Context, opts social.ListOpts) ([]*social.Profile, error) {
	var models []profileModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bazaar/mongo: list profiles: %w", err)
	}

	result := make([]*social.Profile, len(models))
	for i := range models {
		p, err := s.hydrate(ctx, fromProfileModel(&models[i]))
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) AddFollow(ctx context.Context, f *social.Follow) (bool, error) {
	m := &followModel{
		ID:        followKey(f.Follower, f.Followee),
		Follower:  string(f.Follower),
		Followee:  string(f.Followee),
		CreatedAt: f.CreatedAt,
	}
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("bazaar/mongo: add follow: %w", err)
	}
	return true, nil
}

func (s *Store) RemoveFollow(ctx context.Context, follower, followee types.Account) (bool, error) {
	res, err := s.mdb.NewDelete((*followModel)(nil)).
		Filter(bson.M{"_id": followKey(follower, followee)}).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("bazaar/mongo: remove follow: %w", err)
	}
	return res.DeletedCount() > 0, nil
}

func (s *Store) ListFollowers(ctx context.Context, account types.Account) ([]types.Account, error) {
	models, err := s.follows(ctx, bson.M{"followee": string(account)}, "follower")
	if err != nil {
		return nil, fmt.Errorf("bazaar/mongo: list followers: %w", err)
	}

	result := make([]types.Account, len(models))
	for i := range models {
		result[i] = types.Account(models[i].Follower)
	}
	return result, nil
}

func (s *Store) ListFollowing(ctx context.Context, account types.Account) ([]types.Account, error) {
	models, err := s.follows(ctx, bson.M{"follower": string(account)}, "followee")
	if err != nil {
		return nil, fmt.Errorf("bazaar/mongo: list following: %w", err)
	}

	result := make([]types.Account, len(models))
	for i := range models {
		result[i] = types.Account(models[i].Followee)
	}
	return result, nil
}

// ==================== Counters ====================

func (s *Store) Counter(ctx context.Context, name string) (uint64, error) {
	var m counterModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": name}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("bazaar/mongo: get counter %s: %w", name, err)
	}
	return uint64(m.Value), nil
}

func (s *Store) SetCounter(ctx context.Context, name string, value uint64) error {
	m := &counterModel{
		Name:      name,
		Value:     int64(value),
		UpdatedAt: now(),
	}

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": name}).
		SetUpdate(bson.M{"$set": bson.M{
			"value":      m.Value,
			"updated_at": m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bazaar/mongo: set counter %s: %w", name, err)
	}
	return nil
}

// ==================== Helpers ====================

func (s *Store) follows(ctx context.Context, filter bson.M, sortKey string) ([]followModel, error) {
	var models []followModel
	err := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: sortKey, Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return models, nil
}

func (s *Store) hydrate(ctx context.Context, p *social.Profile) (*social.Profile, error) {
	followers, err := s.ListFollowers(ctx, p.Account)
	if err != nil {
		return nil, err
	}
	following, err := s.ListFollowing(ctx, p.Account)
	if err != nil {
		return nil, err
	}
	p.Followers = followers
	p.Following = following
	return p, nil
}

func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all bazaar collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAssets: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "subscribers", Value: 1}}},
		},
		colSubscriptions: {},
		colProfiles: {
			{
				Keys:    bson.D{{Key: "account", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colFollows: {
			{Keys: bson.D{{Key: "follower", Value: 1}, {Key: "followee", Value: 1}}},
			{Keys: bson.D{{Key: "followee", Value: 1}, {Key: "follower", Value: 1}}},
		},
		colCounters: {},
	}
}
