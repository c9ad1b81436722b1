package receiptrepo

import (
	"context"

	"github.com/radlabs/rampd/internal/domain"
)

// IReceiptRepository mirrors full receipts off-chain under two lookup keys:
// the ledger transfer id and the content digest.
type IReceiptRepository interface {
	Save(ctx context.Context, rec *domain.StoredReceipt) error
	LoadByID(ctx context.Context, transferID string) (*domain.StoredReceipt, error)
	LoadByDigest(ctx context.Context, digestHex string) (*domain.StoredReceipt, error)
}
