package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Bazaar store (SQLite).
var Migrations = migrate.NewGroup("bazaar")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_bazaar_assets",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bazaar_assets (
    id             INTEGER PRIMARY KEY,
    seller         TEXT NOT NULL,
    owner          TEXT NOT NULL,
    price_amount   INTEGER NOT NULL DEFAULT 0,
    price_currency TEXT NOT NULL DEFAULT '',
    subscribers    TEXT NOT NULL DEFAULT '[]',
    likes          INTEGER NOT NULL DEFAULT 0,
    title          TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    metadata_ref   TEXT NOT NULL DEFAULT '',
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_bazaar_assets_owner ON bazaar_assets (owner, id);
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
    asset_id   INTEGER PRIMARY KEY,
    expiration INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
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
    user_id    INTEGER PRIMARY KEY,
    account    TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
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
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
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
    value      INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
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
