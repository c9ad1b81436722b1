package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/radlabs/rampd/internal/domain"
)

type CreateAssetParams struct {
	Creator   domain.Account
	Total     uint64
	Decimals  uint32
	UnitName  string
	AssetName string
}

type TransferParams struct {
	Sender   domain.Account
	Receiver string
	AssetID  uint64
	Amount   uint64
	Note     []byte
}

// LedgerClient is the ledger-node boundary the orchestrator consumes.
type LedgerClient interface {
	// CreateAsset provisions the target asset and returns its id once the
	// creation transaction confirms.
	CreateAsset(ctx context.Context, p CreateAssetParams) (uint64, error)

	// HasAssetHolding probes whether address is opted in to assetID. The
	// probe is best-effort: a failed lookup is reported as "absent", not as
	// an error, so callers treat absence as "attempt the opt-in".
	HasAssetHolding(ctx context.Context, address string, assetID uint64) (bool, error)

	// OptIn registers the account to hold assetID (zero-amount self transfer).
	OptIn(ctx context.Context, account domain.Account, assetID uint64) error

	// SubmitAssetTransfer signs and submits the value transfer with the note
	// payload attached, returning the transaction id without waiting for
	// confirmation.
	SubmitAssetTransfer(ctx context.Context, p TransferParams) (string, error)

	// WaitForConfirmation polls the pending pool up to the configured bound.
	// Returns domain.ErrConfirmationTimeout when the bound is exceeded and
	// domain.ErrSubmissionRejected on a pool error.
	WaitForConfirmation(ctx context.Context, txid string) error

	// FundAccount sends amount microAlgos from the treasury (LocalNet only).
	FundAccount(ctx context.Context, to string, amount uint64) error
}

// IndexerClient reads confirmed asset transfers back from the chain.
type IndexerClient interface {
	SearchAssetTransfers(ctx context.Context, address string, assetID uint64) ([]domain.ChainTransfer, error)
}

// ExchangeClient is the centralized-exchange boundary.
type ExchangeClient interface {
	// SpotQuote snapshots the live book for converting usd into the base asset.
	SpotQuote(ctx context.Context, usd decimal.Decimal) (*domain.SpotQuote, error)

	// MarketBuy spends quoteAmount of the quote asset on a MARKET order and
	// returns the raw fill record.
	MarketBuy(ctx context.Context, quoteAmount string) (*domain.ExchangeOrder, error)

	// TradingSymbol resolves the tradable stable pair in use.
	TradingSymbol(ctx context.Context) (string, error)
}

// PaymentProcessor is the fiat boundary: checkout orders for the inbound leg
// and payouts for the outbound leg.
type PaymentProcessor interface {
	CreateOrder(ctx context.Context, amount, currency, description string) (*domain.PaymentOrder, error)
	CaptureOrder(ctx context.Context, orderID string) (*domain.PaymentOrder, error)
	CreatePayout(ctx context.Context, receiverEmail, amount, currency, note string) (*domain.Payout, error)
}

// ReceiptStore mirrors full receipts off-chain, locatable by transfer id and
// by content digest.
type ReceiptStore interface {
	Save(ctx context.Context, rec *domain.StoredReceipt) error
	LoadByID(ctx context.Context, transferID string) (*domain.StoredReceipt, error)
	LoadByDigest(ctx context.Context, digestHex string) (*domain.StoredReceipt, error)
}

// SysCache is durable process-wide state: asset id, registry app id. A fresh
// process re-reads it before deciding to provision.
type SysCache interface {
	GetUint64(ctx context.Context, key string) (uint64, bool, error)
	PutUint64(ctx context.Context, key string, value uint64) error
}

// UserWallet is the stored per-user wallet record. The mnemonic is sealed
// before it reaches the store.
type UserWallet struct {
	Email       string
	Address     string
	MnemonicEnc string
	Registered  bool
	PayPalEmail string
}

// WalletStore persists per-user wallet records with merge semantics keyed by
// email, so concurrent writers cannot clobber unrelated fields.
type WalletStore interface {
	Get(ctx context.Context, email string) (*UserWallet, error)
	Upsert(ctx context.Context, w *UserWallet) error
}

// WalletRegistry is the on-chain key->value box store, modeled as an opaque
// external service: 32-byte key (hashed user id) to 32-byte value (address).
type WalletRegistry interface {
	Put(ctx context.Context, key [32]byte, value [32]byte) error
	Get(ctx context.Context, key [32]byte) ([32]byte, bool, error)
}

// StatusBroadcaster pushes transfer state-machine updates to subscribers.
// Implementations must never block the transfer path.
type StatusBroadcaster interface {
	Broadcast(update *domain.StatusUpdate)
}
