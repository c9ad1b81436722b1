package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/radlabs/rampd/pkg/config"
)

type DBManager struct {
	Pool *pgxpool.Pool
}

func New(cfg *config.DatabaseConfig) (*DBManager, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &DBManager{Pool: pool}, nil
}

// EnsureSchema creates the tables this service needs if they are missing.
// Idempotent, so every process runs it on startup.
func (dm *DBManager) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS receipts (
			transfer_id TEXT PRIMARY KEY,
			digest      TEXT NOT NULL,
			status      TEXT NOT NULL,
			ts          BIGINT NOT NULL,
			body        JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS receipts_digest_idx ON receipts (digest)`,
		`CREATE TABLE IF NOT EXISTS sys_state (
			key   TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_wallets (
			email        TEXT PRIMARY KEY,
			address      TEXT NOT NULL DEFAULT '',
			mnemonic_enc TEXT NOT NULL DEFAULT '',
			registered   BOOLEAN NOT NULL DEFAULT FALSE,
			paypal_email TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range ddl {
		if _, err := dm.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (dm *DBManager) ShutDown() {
	if dm.Pool != nil {
		dm.Pool.Close()
	}
}
