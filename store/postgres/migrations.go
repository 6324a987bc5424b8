package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Bazaar store.
var Migrations = migrate.NewGroup("bazaar")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_bazaar_assets",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bazaar_assets (
    id             BIGINT PRIMARY KEY,
    seller         TEXT NOT NULL,
    owner          TEXT NOT NULL,
    price_amount   BIGINT NOT NULL DEFAULT 0,
    price_currency TEXT NOT NULL DEFAULT '',
    subscribers    JSONB NOT NULL DEFAULT '[]',
    likes          BIGINT NOT NULL DEFAULT 0,
    title          TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    metadata_ref   TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_bazaar_assets_owner ON bazaar_assets (owner, id);
CREATE INDEX IF NOT EXISTS idx_bazaar_assets_subscribers ON bazaar_assets USING GIN (subscribers);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bazaar_assets`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bazaar_subscriptions",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bazaar_subscriptions (
    asset_id   BIGINT PRIMARY KEY,
    expiration BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bazaar_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bazaar_profiles",
			Version: "20260301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bazaar_profiles (
    user_id    BIGINT PRIMARY KEY,
    account    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bazaar_profiles_account ON bazaar_profiles (account);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bazaar_profiles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bazaar_follows",
			Version: "20260301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bazaar_follows (
    follower   TEXT NOT NULL,
    followee   TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (follower, followee)
);

CREATE INDEX IF NOT EXISTS idx_bazaar_follows_followee ON bazaar_follows (followee, follower);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bazaar_follows`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bazaar_counters",
			Version: "20260301000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bazaar_counters (
    name       TEXT PRIMARY KEY,
    value      BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bazaar_counters`)
				return err
			},
		},
	)
}
