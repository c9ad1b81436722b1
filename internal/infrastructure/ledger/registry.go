package ledger

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/rs/zerolog"

	"github.com/radlabs/rampd/internal/domain"
)

// RegistryClient talks to the on-chain wallet registry application: a single
// box store mapping 32-byte keys (hashed user ids) to 32-byte values (raw
// ledger addresses). The contract itself is an external collaborator; only
// its put/get surface matters here.
type RegistryClient struct {
	algod  *AlgodClient
	appID  uint64
	admin  domain.Account
	logger zerolog.Logger
}

func NewRegistryClient(algod *AlgodClient, appID uint64, admin domain.Account, logger zerolog.Logger) *RegistryClient {
	return &RegistryClient{
		algod:  algod,
		appID:  appID,
		admin:  admin,
		logger: logger.With().Str("component", "wallet_registry").Logger(),
	}
}

// Put writes key -> value through an admin-signed application call carrying
// the box reference the contract needs.
func (r *RegistryClient) Put(ctx context.Context, key [32]byte, value [32]byte) error {
	sp, err := r.algod.suggestedFlatParams(ctx)
	if err != nil {
		return err
	}

	sender, err := types.DecodeAddress(r.admin.Address)
	if err != nil {
		return fmt.Errorf("decode admin address: %w", err)
	}

	txn, err := transaction.MakeApplicationNoOpTxWithBoxes(
		r.appID,
		[][]byte{[]byte("register"), key[:], value[:]},
		nil, nil, nil,
		[]types.AppBoxReference{{AppID: r.appID, Name: key[:]}},
		sp,
		sender,
		nil,
		types.Digest{},
		[32]byte{},
		types.ZeroAddress,
	)
	if err != nil {
		return fmt.Errorf("build registry call: %w", err)
	}

	txid, stx, err := crypto.SignTransaction(r.admin.Key, txn)
	if err != nil {
		return fmt.Errorf("sign registry call: %w", err)
	}
	if _, err := r.algod.client.SendRawTransaction(stx).Do(ctx); err != nil {
		return fmt.Errorf("submit registry call: %w", err)
	}
	if err := r.algod.WaitForConfirmation(ctx, txid); err != nil {
		return err
	}

	r.logger.Info().Str("txid", txid).Msg("Registered wallet mapping on-chain")
	return nil
}

// Get reads the box directly, no application call needed.
func (r *RegistryClient) Get(ctx context.Context, key [32]byte) ([32]byte, bool, error) {
	box, err := r.algod.client.GetApplicationBoxByName(r.appID, key[:]).Do(ctx)
	if err != nil {
		// Absent box and transport failure are indistinguishable here; both
		// read as "not registered" and callers re-register best-effort.
		return [32]byte{}, false, nil
	}
	if len(box.Value) != 32 {
		return [32]byte{}, false, fmt.Errorf("registry box has %d bytes, want 32", len(box.Value))
	}
	var value [32]byte
	copy(value[:], box.Value)
	return value, true, nil
}
