// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/unclebandit/squdy-backend/internal/config"
)

// Open connects to Postgres and pings it
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	logger.Info("connecting to database",
		zap.String("host", cfg.Host),
		zap.String("name", cfg.Name),
		zap.String("user", cfg.User),
	)

	conn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("✅ connected to database")
	return conn, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
    id                SERIAL PRIMARY KEY,
    contract_id       BIGINT NOT NULL UNIQUE,
    name              TEXT NOT NULL,
    slug              TEXT NOT NULL UNIQUE,
    description       TEXT NOT NULL DEFAULT '',
    image_url         TEXT NOT NULL DEFAULT '',
    soft_cap          NUMERIC(78, 18) NOT NULL,
    hard_cap          NUMERIC(78, 18) NOT NULL,
    ticket_amount     NUMERIC(78, 18) NOT NULL,
    current_amount    NUMERIC(78, 18) NOT NULL DEFAULT 0,
    total_burned      NUMERIC(78, 18) NOT NULL DEFAULT 0,
    start_date        TIMESTAMPTZ NOT NULL,
    end_date          TIMESTAMPTZ NOT NULL,
    status            TEXT NOT NULL DEFAULT 'pending',
    participant_count INT NOT NULL DEFAULT 0,
    prizes            JSONB NOT NULL DEFAULT '[]',
    winners           JSONB NOT NULL DEFAULT '[]',
    draw_seed         TEXT NOT NULL DEFAULT '',
    select_tx_hash    TEXT NOT NULL DEFAULT '',
    burn_tx_hash      TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ,
    CHECK (hard_cap > soft_cap),
    CHECK (end_date > start_date),
    CHECK (current_amount <= hard_cap)
);

CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns (status);

CREATE TABLE IF NOT EXISTS participants (
    id             SERIAL PRIMARY KEY,
    campaign_id    INT NOT NULL REFERENCES campaigns (id) ON DELETE CASCADE,
    wallet_address TEXT NOT NULL,
    staked_amount  NUMERIC(78, 18) NOT NULL DEFAULT 0,
    ticket_count   BIGINT NOT NULL DEFAULT 0,
    social_tasks   JSONB NOT NULL DEFAULT '{}',
    is_winner      BOOLEAN NOT NULL DEFAULT FALSE,
    prize_index    INT,
    last_tx_hash   TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (campaign_id, wallet_address)
);
`

// Migrate creates the schema if it does not exist yet
func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
