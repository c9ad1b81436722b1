package rampservice

import (
	"context"

	"github.com/radlabs/rampd/internal/domain"
	"github.com/radlabs/rampd/internal/domain/interfaces"
)

// IRampService is the fiat-to-stablecoin orchestrator. MintAndTransfer is the
// single write path; everything else reads back what it produced.
type IRampService interface {
	// Quote snapshots the live conversion rate for a USD amount without
	// touching the ledger.
	Quote(ctx context.Context, usd string) (*domain.SpotQuote, error)

	// CreatePaymentOrder starts a processor checkout order for the given USD
	// amount and returns its approval link.
	CreatePaymentOrder(ctx context.Context, usd string) (*domain.PaymentOrder, error)

	// MintAndTransfer runs the full conversion: market-buy on the venue,
	// asset and opt-in provisioning, receipt encoding, on-chain transfer,
	// bounded confirmation wait, then best-effort receipt persistence.
	MintAndTransfer(ctx context.Context, req *domain.MintRequest) (*domain.TransferResult, error)

	// History lists the address's confirmed asset transfers, newest first,
	// with any ramp notes decoded.
	History(ctx context.Context, address string) ([]domain.TransferSummary, error)

	// ReceiptByID and ReceiptByDigest resolve the off-chain mirror of a
	// receipt from either lookup key. Both return (nil, nil) when absent.
	ReceiptByID(ctx context.Context, transferID string) (*domain.StoredReceipt, error)
	ReceiptByDigest(ctx context.Context, digestHex string) (*domain.StoredReceipt, error)

	// WalletFor resolves the managed wallet for a user, provisioning and
	// funding a fresh one on first use.
	WalletFor(ctx context.Context, email string) (*interfaces.UserWallet, error)
}
