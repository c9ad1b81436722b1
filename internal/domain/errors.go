package domain

import "errors"

// Request-fatal error kinds. All abort the transfer request and surface to
// the boundary layer; only ErrPersistenceWrite is swallowed internally, since
// by then the on-chain transfer already happened and is authoritative.
var (
	// ErrInvalidAmount rejects malformed decimal input before any I/O.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidAddress rejects malformed ledger addresses before any I/O.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrAssetProvisioning means the ledger rejected asset creation. The
	// asset-id cache is left empty so a later request re-attempts.
	ErrAssetProvisioning = errors.New("asset provisioning failed")

	// ErrOptIn means the ledger rejected the asset opt-in.
	ErrOptIn = errors.New("asset opt-in failed")

	// ErrSubmissionRejected means the ledger rejected the signed transfer:
	// insufficient balance, bad signature, oversized note, not opted in.
	ErrSubmissionRejected = errors.New("transfer submission rejected")

	// ErrConfirmationTimeout means the transfer was submitted but not
	// confirmed within the polling bound. Indeterminate, not failed: the
	// transfer may still land in a later round.
	ErrConfirmationTimeout = errors.New("transfer confirmation timed out")

	// ErrUpstreamExchange means the exchange call failed or returned a zero
	// fill. No ledger side effects have occurred yet.
	ErrUpstreamExchange = errors.New("upstream exchange error")

	// ErrUpstreamPayment means the payment processor rejected or failed an
	// order capture, so the conversion never starts.
	ErrUpstreamPayment = errors.New("upstream payment processor error")

	// ErrPersistenceWrite means the off-chain receipt mirror failed to save.
	// Logged only, never surfaced, never retried synchronously.
	ErrPersistenceWrite = errors.New("receipt persistence failed")
)
