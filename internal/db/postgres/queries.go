// Package postgres — queries.go: миграции схемы.
// SQL встроен в код, применённые версии записываются в schema_migrations.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{1, migration001Accounts},
	{2, migration002Catalog},
	{3, migration003Tasks},
	{4, migration004Ledger},
}

// Migrate создаёт таблицу schema_migrations и применяет все новые миграции по порядку.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы миграций: %w", err)
	}

	for _, m := range migrations {
		applied, err := execMigrationSQL(ctx, pool, m.version, m.sql)
		if err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		if applied {
			log.Infof("Миграция %d применена", m.version)
		}
	}
	return nil
}

// execMigrationSQL выполняет одну миграцию в транзакции.
// Уже применённая миграция пропускается (applied=false).
func execMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки миграции: %w", err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return false, fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return false, fmt.Errorf("ошибка записи версии миграции: %w", err)
	}

	return true, tx.Commit(ctx)
}

var migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    user_id TEXT PRIMARY KEY,
    points_balance BIGINT NOT NULL DEFAULT 0 CHECK (points_balance >= 0),
    total_earned BIGINT NOT NULL DEFAULT 0,
    total_spent BIGINT NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0 CHECK (current_streak >= 0),
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_streak ON accounts(last_activity_date) WHERE current_streak > 0;

CREATE TABLE IF NOT EXISTS plants (
    user_id TEXT PRIMARY KEY REFERENCES accounts(user_id),
    growth_points BIGINT NOT NULL DEFAULT 0 CHECK (growth_points >= 0),
    growth_level INTEGER NOT NULL DEFAULT 1,
    health INTEGER NOT NULL DEFAULT 100 CHECK (health BETWEEN 0 AND 100),
    last_watered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_decay_date DATE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_plants_last_watered ON plants(last_watered_at) WHERE health > 0;
`

var migration002Catalog = `
CREATE TABLE IF NOT EXISTS badges (
    id TEXT PRIMARY KEY,
    name VARCHAR(128) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon_ref TEXT NOT NULL DEFAULT '',
    criteria TEXT NOT NULL DEFAULT '',
    points_required BIGINT NOT NULL CHECK (points_required >= 0)
);
CREATE TABLE IF NOT EXISTS account_badges (
    user_id TEXT NOT NULL REFERENCES accounts(user_id),
    badge_id TEXT NOT NULL,
    earned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, badge_id)
);
CREATE TABLE IF NOT EXISTS store_items (
    id TEXT PRIMARY KEY,
    name VARCHAR(128) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    cost BIGINT NOT NULL CHECK (cost >= 0),
    category VARCHAR(32) NOT NULL DEFAULT '',
    rarity VARCHAR(16) NOT NULL DEFAULT 'common',
    image_ref TEXT NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS inventory_items (
    user_id TEXT NOT NULL REFERENCES accounts(user_id),
    item_id TEXT NOT NULL,
    acquired_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, item_id)
);
`

var migration003Tasks = `
CREATE TABLE IF NOT EXISTS daily_tasks (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES accounts(user_id),
    description TEXT NOT NULL,
    category VARCHAR(32) NOT NULL,
    points_value BIGINT NOT NULL,
    assigned_date DATE NOT NULL,
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_daily_tasks_user_date ON daily_tasks(user_id, assigned_date);
`

var migration004Ledger = `
CREATE TABLE IF NOT EXISTS transactions (
    seq BIGSERIAL PRIMARY KEY,
    id TEXT UNIQUE NOT NULL,
    user_id TEXT NOT NULL REFERENCES accounts(user_id),
    kind VARCHAR(8) NOT NULL,
    amount BIGINT NOT NULL CHECK (amount > 0),
    transaction_type VARCHAR(32) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, seq DESC);
`
