package walletrepo

import (
	"context"

	"github.com/radlabs/rampd/internal/domain/interfaces"
)

// IWalletRepository stores per-user wallet records keyed by email. Writes
// merge field-by-field so concurrent writers cannot clobber unrelated
// columns.
type IWalletRepository interface {
	Get(ctx context.Context, email string) (*interfaces.UserWallet, error)
	Upsert(ctx context.Context, w *interfaces.UserWallet) error
}
