package syscacherepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/radlabs/rampd/internal/infrastructure/database"
)

// Schema:
//
//	CREATE TABLE sys_state (
//	    key   TEXT PRIMARY KEY,
//	    value BIGINT NOT NULL
//	);
type sysCacheRepository struct {
	db     *database.DBManager
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) ISysCacheRepository {
	return &sysCacheRepository{
		db:     db,
		logger: logger.With().Str("component", "sys_cache_repo").Logger(),
	}
}

func (r *sysCacheRepository) GetUint64(ctx context.Context, key string) (uint64, bool, error) {
	var value int64
	err := r.db.Pool.QueryRow(ctx, `SELECT value FROM sys_state WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read sys state %q: %w", key, err)
	}
	return uint64(value), true, nil
}

// PutUint64 records the identifier only if no other writer got there first:
// concurrent first-time provisioning races converge on the first recorded
// value instead of flapping between ids.
func (r *sysCacheRepository) PutUint64(ctx context.Context, key string, value uint64) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO sys_state (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING`,
		key, int64(value))
	if err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("Failed to write sys state")
		return fmt.Errorf("write sys state %q: %w", key, err)
	}
	return nil
}
