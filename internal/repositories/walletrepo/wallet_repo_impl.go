package walletrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/radlabs/rampd/internal/domain/interfaces"
	"github.com/radlabs/rampd/internal/infrastructure/database"
)

// Schema:
//
//	CREATE TABLE user_wallets (
//	    email        TEXT PRIMARY KEY,
//	    address      TEXT NOT NULL DEFAULT '',
//	    mnemonic_enc TEXT NOT NULL DEFAULT '',
//	    registered   BOOLEAN NOT NULL DEFAULT FALSE,
//	    paypal_email TEXT NOT NULL DEFAULT ''
//	);
type walletRepository struct {
	db     *database.DBManager
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IWalletRepository {
	return &walletRepository{
		db:     db,
		logger: logger.With().Str("component", "wallet_repo").Logger(),
	}
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *walletRepository) Get(ctx context.Context, email string) (*interfaces.UserWallet, error) {
	var w interfaces.UserWallet
	err := r.db.Pool.QueryRow(ctx, `
		SELECT email, address, mnemonic_enc, registered, paypal_email
		FROM user_wallets WHERE email = $1`, normEmail(email)).
		Scan(&w.Email, &w.Address, &w.MnemonicEnc, &w.Registered, &w.PayPalEmail)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("email", email).Msg("Failed to get wallet record")
		return nil, fmt.Errorf("get wallet record: %w", err)
	}
	return &w, nil
}

// Upsert merges: empty incoming fields keep the stored value, so a writer
// updating only the PayPal link cannot erase the mnemonic written by the
// provisioning path.
func (r *walletRepository) Upsert(ctx context.Context, w *interfaces.UserWallet) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO user_wallets (email, address, mnemonic_enc, registered, paypal_email)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email)
		DO UPDATE SET
		    address      = COALESCE(NULLIF(EXCLUDED.address, ''), user_wallets.address),
		    mnemonic_enc = COALESCE(NULLIF(EXCLUDED.mnemonic_enc, ''), user_wallets.mnemonic_enc),
		    registered   = EXCLUDED.registered OR user_wallets.registered,
		    paypal_email = COALESCE(NULLIF(EXCLUDED.paypal_email, ''), user_wallets.paypal_email)`,
		normEmail(w.Email), w.Address, w.MnemonicEnc, w.Registered, w.PayPalEmail)
	if err != nil {
		r.logger.Error().Err(err).Str("email", w.Email).Msg("Failed to upsert wallet record")
		return fmt.Errorf("upsert wallet record: %w", err)
	}
	return nil
}
