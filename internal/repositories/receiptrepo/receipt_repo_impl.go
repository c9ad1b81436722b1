package receiptrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/radlabs/rampd/internal/domain"
	"github.com/radlabs/rampd/internal/infrastructure/database"
)

// Schema:
//
//	CREATE TABLE receipts (
//	    transfer_id TEXT PRIMARY KEY,
//	    digest      TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    ts          BIGINT NOT NULL,
//	    body        JSONB NOT NULL
//	);
//	CREATE INDEX receipts_digest_idx ON receipts (digest);
type receiptRepository struct {
	db     *database.DBManager
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IReceiptRepository {
	return &receiptRepository{
		db:     db,
		logger: logger.With().Str("component", "receipt_repo").Logger(),
	}
}

// Save upserts keyed by transfer id, so retries of the same submission merge
// instead of duplicating. The digest column serves the secondary lookup.
func (r *receiptRepository) Save(ctx context.Context, rec *domain.StoredReceipt) error {
	body, err := json.Marshal(rec.Receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt body: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO receipts (transfer_id, digest, status, ts, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transfer_id)
		DO UPDATE SET digest = EXCLUDED.digest,
		              status = EXCLUDED.status,
		              ts = EXCLUDED.ts,
		              body = EXCLUDED.body`,
		rec.TransferID, rec.DigestHex, string(rec.Status), rec.Timestamp, body)
	if err != nil {
		r.logger.Error().Err(err).Str("transfer_id", rec.TransferID).Msg("Failed to save receipt")
		return fmt.Errorf("save receipt: %w", err)
	}

	return nil
}

func (r *receiptRepository) LoadByID(ctx context.Context, transferID string) (*domain.StoredReceipt, error) {
	return r.load(ctx, `SELECT transfer_id, digest, status, ts, body FROM receipts WHERE transfer_id = $1`, transferID)
}

func (r *receiptRepository) LoadByDigest(ctx context.Context, digestHex string) (*domain.StoredReceipt, error) {
	return r.load(ctx, `SELECT transfer_id, digest, status, ts, body FROM receipts WHERE digest = $1`, digestHex)
}

func (r *receiptRepository) load(ctx context.Context, query, key string) (*domain.StoredReceipt, error) {
	var (
		rec    domain.StoredReceipt
		status string
		body   []byte
	)
	err := r.db.Pool.QueryRow(ctx, query, key).
		Scan(&rec.TransferID, &rec.DigestHex, &status, &rec.Timestamp, &body)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("key", key).Msg("Failed to load receipt")
		return nil, fmt.Errorf("load receipt: %w", err)
	}

	rec.Status = domain.ReceiptStatus(status)
	rec.Receipt = &domain.Receipt{}
	if err := json.Unmarshal(body, rec.Receipt); err != nil {
		return nil, fmt.Errorf("decode receipt body: %w", err)
	}
	return &rec, nil
}
