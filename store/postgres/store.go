package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/bazaar"
	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/social"
	bazaarstore "github.com/xraph/bazaar/store"
	"github.com/xraph/bazaar/types"
)

// compile-time interface check
var _ bazaarstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("bazaar/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bazaar/postgres: migration failed: %w", err)
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
	if _, err := s.GetAsset(ctx, a.ID); err == nil {
		return fmt.Errorf("%w: asset %d", bazaar.ErrAlreadyExists, a.ID)
	} else if !bazaar.IsNotFound(err) {
		return err
	}

	m, err := toAssetModel(a)
	if err != nil {
		return err
	}
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bazaar/postgres: create asset: %w", err)
	}
	return nil
}

func (s *Store) GetAsset(ctx context.Context, assetID uint64) (*asset.Asset, error) {
	m := new(assetModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", int64(assetID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bazaar.ErrAssetNotFound
		}
		return nil, fmt.Errorf("bazaar/postgres: get asset: %w", err)
	}
	return fromAssetModel(m)
}

func (s *Store) UpdateAsset(ctx context.Context, a *asset.Asset) error {
	m, err := toAssetModel(a)
	if err != nil {
		return err
	}
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("bazaar/postgres: update asset: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return bazaar.ErrAssetNotFound
	}
	return nil
}

func (s *Store) ListAssets(ctx context.Context, opts asset.ListOpts) ([]*asset.Asset, error) {
	var models []assetModel
	q := s.pg.NewSelect(&models)

	if opts.Owner != "" {
		q = q.Where("owner = $1", opts.Owner)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bazaar/postgres: list assets: %w", err)
	}

	result := make([]*asset.Asset, len(models))
	for i := range models {
		a, err := fromAssetModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// ==================== Subscription Store ====================

func (s *Store) GetExpiration(ctx context.Context, assetID uint64) (uint64, error) {
	m := new(subscriptionModel)
	err := s.pg.NewSelect(m).
		Where("asset_id = $1", int64(assetID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("bazaar/postgres: get expiration: %w", err)
	}
	return uint64(m.Expiration), nil
}

func (s *Store) SetExpiration(ctx context.Context, assetID, expiration uint64) error {
	m := &subscriptionModel{
		AssetID:    int64(assetID),
		Expiration: int64(expiration),
		UpdatedAt:  now(),
	}
	_, err := s.pg.NewInsert(m).
		OnConflict("(asset_id) DO UPDATE").
		Set("expiration = EXCLUDED.expiration").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bazaar/postgres: set expiration: %w", err)
	}
	return nil
}

// ==================== Social Store ====================

func (s *Store) CreateProfile(ctx context.Context, p *social.Profile) error {
	var taken int64
	err := s.pg.NewRaw(`
		SELECT COUNT(*) FROM bazaar_profiles WHERE user_id = $1 OR account = $2
	`, int64(p.UserID), string(p.Account)).Scan(ctx, &taken)
	if err != nil {
		return fmt.Errorf("bazaar/postgres: check profile: %w", err)
	}
	if taken > 0 {
		return fmt.Errorf("%w: profile for %s", bazaar.ErrAlreadyExists, p.Account)
	}

	if _, err := s.pg.NewInsert(toProfileModel(p)).Exec(ctx); err != nil {
		return fmt.Errorf("bazaar/postgres: create profile: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID uint64) (*social.Profile, error) {
	m := new(profileModel)
	err := s.pg.NewSelect(m).
		Where("user_id = $1", int64(userID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bazaar.ErrProfileNotFound
		}
		return nil, fmt.Errorf("bazaar/postgres: get profile: %w", err)
	}
	return s.hydrate(ctx, fromProfileModel(m))
}

func (s *Store) GetProfileByAccount(ctx context.Context, account types.Account) (*social.Profile, error) {
	m := new(profileModel)
	err := s.pg.NewSelect(m).
		Where("account = $1", string(account)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bazaar.ErrProfileNotFound
		}
		return nil, fmt.Errorf("bazaar/postgres: get profile by account: %w", err)
	}
	return s.hydrate(ctx, fromProfileModel(m))
}

func (s *Store) ListProfiles(ctx context.Context, opts social.ListOpts) ([]*social.Profile, error) {
	var models []profileModel
	q := s.pg.NewSelect(&models)

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("user_id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bazaar/postgres: list profiles: %w", err)
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
		Follower:  string(f.Follower),
		Followee:  string(f.Followee),
		CreatedAt: f.CreatedAt,
	}
	res, err := s.pg.NewInsert(m).
		OnConflict("(follower, followee) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("bazaar/postgres: add follow: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) RemoveFollow(ctx context.Context, follower, followee types.Account) (bool, error) {
	res, err := s.pg.NewDelete((*followModel)(nil)).
		Where("follower = $1", string(follower)).
		Where("followee = $2", string(followee)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("bazaar/postgres: remove follow: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) ListFollowers(ctx context.Context, account types.Account) ([]types.Account, error) {
	var models []followModel
	err := s.pg.NewSelect(&models).
		Where("followee = $1", string(account)).
		OrderExpr("follower ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bazaar/postgres: list followers: %w", err)
	}

	result := make([]types.Account, len(models))
	for i := range models {
		result[i] = types.Account(models[i].Follower)
	}
	return result, nil
}

func (s *Store) ListFollowing(ctx context.Context, account types.Account) ([]types.Account, error) {
	var models []followModel
	err := s.pg.NewSelect(&models).
		Where("follower = $1", string(account)).
		OrderExpr("followee ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bazaar/postgres: list following: %w", err)
	}

	result := make([]types.Account, len(models))
	for i := range models {
		result[i] = types.Account(models[i].Followee)
	}
	return result, nil
}

// ==================== Counters ====================

func (s *Store) Counter(ctx context.Context, name string) (uint64, error) {
	m := new(counterModel)
	err := s.pg.NewSelect(m).
		Where("name = $1", name).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("bazaar/postgres: get counter %s: %w", name, err)
	}
	return uint64(m.Value), nil
}

func (s *Store) SetCounter(ctx context.Context, name string, value uint64) error {
	m := &counterModel{
		Name:      name,
		Value:     int64(value),
		UpdatedAt: now(),
	}
	_, err := s.pg.NewInsert(m).
		OnConflict("(name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bazaar/postgres: set counter %s: %w", name, err)
	}
	return nil
}

// ==================== Helpers ====================

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

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
