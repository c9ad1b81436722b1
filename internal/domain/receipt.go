package domain

// NoteNamespace tags every on-chain note this service emits so indexers can
// tell ramp receipts apart from unrelated payloads.
const NoteNamespace = "rad/ramp-receipt"

// NoteSchemaVersion is bumped whenever the compact note layout changes.
const NoteSchemaVersion = 1

// Receipt is the full record of one fiat -> stablecoin value movement.
// It is immutable once hashed: the content digest is defined over the exact
// canonical serialization, so every field must be final before digesting.
type Receipt struct {
	Payer      PartyRef     `json:"payer"`
	Recipient  PartyRef     `json:"recipient"`
	Payment    PaymentInfo  `json:"payment"`
	Exchange   ExchangeInfo `json:"exchange"`
	VenueOrder VenueOrder   `json:"venue_order"`
	Asset      AssetInfo    `json:"asset"`
	Timestamp  int64        `json:"ts"`
}

// PartyRef identifies one side of the movement. Email identifies users of
// this service, Wallet is a ledger address, PayPal is the optional secondary
// payment-processor identity.
type PartyRef struct {
	Email  string `json:"email,omitempty"`
	Wallet string `json:"wallet,omitempty"`
	PayPal string `json:"paypal,omitempty"`
}

type PaymentInfo struct {
	Kind       string `json:"kind"`
	USD        string `json:"usd"`
	USDTSpent  string `json:"usdt_spent"`
	USDCBought string `json:"usdc_bought"`
	OrderID    string `json:"order_id,omitempty"`
}

type ExchangeInfo struct {
	Name           string `json:"name"`
	Venue          string `json:"venue"`
	Symbol         string `json:"symbol"`
	EffectivePrice string `json:"effective_price_usdt_per_usdc"`
}

// VenueOrder carries the raw exchange fill fields. Informational only; the
// compact on-chain form may redact it entirely.
type VenueOrder struct {
	OrderID       int64  `json:"orderId,omitempty"`
	ClientOrderID string `json:"clientOrderId,omitempty"`
	Status        string `json:"status,omitempty"`
	TransactTime  int64  `json:"transactTime,omitempty"`
	ExecutedQty   string `json:"executedQty,omitempty"`
	CumQuoteQty   string `json:"cummulativeQuoteQty,omitempty"`
	Side          string `json:"side,omitempty"`
	Type          string `json:"type,omitempty"`
}

type AssetInfo struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	Decimals uint32 `json:"decimals"`
}

type ReceiptStatus string

const (
	// ReceiptConfirmed means the ledger confirmed the transfer carrying this
	// receipt's note.
	ReceiptConfirmed ReceiptStatus = "confirmed"
	// ReceiptIndeterminate means the transfer was submitted but confirmation
	// did not arrive within the polling bound. It may still land later.
	ReceiptIndeterminate ReceiptStatus = "indeterminate"
)

// StoredReceipt is the off-chain mirror of a receipt, locatable both by the
// ledger transfer id and by the content digest embedded in the on-chain note.
type StoredReceipt struct {
	TransferID string        `json:"transfer_id"`
	DigestHex  string        `json:"digest"`
	Status     ReceiptStatus `json:"status"`
	Timestamp  int64         `json:"ts"`
	Receipt    *Receipt      `json:"receipt"`
}
