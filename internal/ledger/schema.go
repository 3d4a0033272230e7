package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the PostgreSQL tables backing PostgresLedger. Every statement is
// idempotent so Migrate can run on each start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS token_params (
        id                 SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
        creator            BYTEA NOT NULL,
        marketing_wallet   BYTEA NOT NULL,
        airdrop_start_time BIGINT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS token_state (
        id                SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
        total_supply      NUMERIC(78, 0) NOT NULL DEFAULT 0,
        disbursement_pool NUMERIC(78, 0) NOT NULL DEFAULT 0
    )`,
	`INSERT INTO token_state (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS balances (
        account BYTEA PRIMARY KEY,
        amount  NUMERIC(78, 0) NOT NULL CHECK (amount >= 0)
    )`,
	`CREATE TABLE IF NOT EXISTS fee_exemptions (
        account BYTEA PRIMARY KEY
    )`,
	`CREATE TABLE IF NOT EXISTS privileged_accounts (
        seq     BIGSERIAL PRIMARY KEY,
        account BYTEA NOT NULL UNIQUE
    )`,
	`CREATE TABLE IF NOT EXISTS airdrops (
        account BYTEA PRIMARY KEY,
        amount  NUMERIC(78, 0) NOT NULL CHECK (amount >= 0)
    )`,
}

// Migrate creates the ledger tables if they do not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
