package domain

import "crypto/ed25519"

// Account is a ledger signing identity. The treasury account's key is shared
// read-only across requests; user account keys are resolved per request.
type Account struct {
	Address string
	Key     ed25519.PrivateKey
}

type TransferState string

const (
	StateStarted          TransferState = "started"
	StateAssetReady       TransferState = "asset_ready"
	StateOptedIn          TransferState = "opted_in"
	StateNoteEncoded      TransferState = "note_encoded"
	StateSubmitted        TransferState = "submitted"
	StateConfirmed        TransferState = "confirmed"
	StateFailed           TransferState = "failed"
	StateReceiptPersisted TransferState = "receipt_persisted"
)

// MintRequest is one fiat-to-stablecoin conversion request.
type MintRequest struct {
	Email           string `json:"email"`
	USD             string `json:"usd" binding:"required"`
	ToWallet        string `json:"to_wallet"`
	RecipientPayPal string `json:"recipient_paypal_email"`
	ExternalOrderID string `json:"order_id"`
}

// TransferResult reports a completed mint-and-transfer. Amounts are the
// canonical minor-units integer plus the scale, never floats.
type TransferResult struct {
	TransferID       string `json:"txid"`
	AssetID          uint64 `json:"asset_id"`
	AmountMinorUnits uint64 `json:"amount_min_units"`
	Decimals         uint32 `json:"decimals"`
	AmountUSDC       string `json:"amount_usdc"`
	DigestHex        string `json:"digest"`
}

// TransferSummary is one row of an address's on-chain transfer history.
type TransferSummary struct {
	TransferID string         `json:"txid"`
	RoundTime  int64          `json:"ts"`
	Direction  string         `json:"direction"` // IN or OUT
	Amount     string         `json:"amount"`
	Asset      AssetInfo      `json:"asset"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	Note       map[string]any `json:"note,omitempty"`
}

// ChainTransfer is a raw asset transfer as reported by the chain indexer.
type ChainTransfer struct {
	TxID      string
	RoundTime int64
	Sender    string
	Receiver  string
	Amount    uint64
	Note      []byte
}

// StatusUpdate is pushed to websocket subscribers as a transfer request walks
// its state machine.
type StatusUpdate struct {
	Type      string        `json:"type"`
	RequestID string        `json:"request_id"`
	State     TransferState `json:"state"`
	Message   string        `json:"message,omitempty"`
	Timestamp int64         `json:"timestamp"`
}
