package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/rs/zerolog"

	"github.com/radlabs/rampd/internal/domain"
	"github.com/radlabs/rampd/internal/domain/interfaces"
	"github.com/radlabs/rampd/pkg/config"
)

// AlgodClient wraps the algod REST API behind the ledger boundary the
// orchestrator consumes: flat-fee params, asset provisioning, opt-in probes,
// signed transfers and bounded confirmation polling.
type AlgodClient struct {
	client   *algod.Client
	cfg      *config.LedgerConfig
	treasury domain.Account
	logger   zerolog.Logger
}

func NewAlgodClient(cfg *config.LedgerConfig, treasury domain.Account, logger zerolog.Logger) (*AlgodClient, error) {
	client, err := algod.MakeClient(cfg.AlgodURL, cfg.AlgodToken)
	if err != nil {
		return nil, fmt.Errorf("algod client: %w", err)
	}
	return &AlgodClient{
		client:   client,
		cfg:      cfg,
		treasury: treasury,
		logger:   logger.With().Str("component", "algod_client").Logger(),
	}, nil
}

// suggestedFlatParams requests current params and pins a flat fee of at
// least the network minimum (1000 microAlgos on every known network).
func (c *AlgodClient) suggestedFlatParams(ctx context.Context) (types.SuggestedParams, error) {
	sp, err := c.client.SuggestedParams().Do(ctx)
	if err != nil {
		return types.SuggestedParams{}, fmt.Errorf("suggested params: %w", err)
	}
	fee := c.cfg.MinFlatFee
	if sp.MinFee > fee {
		fee = sp.MinFee
	}
	sp.FlatFee = true
	sp.Fee = types.MicroAlgos(fee)
	return sp, nil
}

func (c *AlgodClient) CreateAsset(ctx context.Context, p interfaces.CreateAssetParams) (uint64, error) {
	sp, err := c.suggestedFlatParams(ctx)
	if err != nil {
		return 0, err
	}

	txn, err := transaction.MakeAssetCreateTxn(
		p.Creator.Address,
		nil,
		sp,
		p.Total,
		p.Decimals,
		false,
		p.Creator.Address, p.Creator.Address, p.Creator.Address, p.Creator.Address,
		p.UnitName,
		p.AssetName,
		"",
		"",
	)
	if err != nil {
		return 0, fmt.Errorf("build asset create txn: %w", err)
	}

	txid, stx, err := crypto.SignTransaction(p.Creator.Key, txn)
	if err != nil {
		return 0, fmt.Errorf("sign asset create txn: %w", err)
	}
	if _, err := c.client.SendRawTransaction(stx).Do(ctx); err != nil {
		return 0, fmt.Errorf("submit asset create txn: %w", err)
	}
	if err := c.WaitForConfirmation(ctx, txid); err != nil {
		return 0, err
	}

	info, _, err := c.client.PendingTransactionInformation(txid).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("asset create result: %w", err)
	}
	c.logger.Info().
		Uint64("asset_id", info.AssetIndex).
		Str("unit", p.UnitName).
		Str("txid", txid).
		Msg("Created asset")
	return info.AssetIndex, nil
}

// HasAssetHolding treats fetch-succeeds as opted-in. algod answers 404 for
// accounts without the holding, so a failed lookup reads as "absent"; that
// makes the probe best-effort and leaves a documented race window where two
// processes may both attempt the opt-in. The ledger treats the duplicate as
// a harmless zero-amount self transfer.
func (c *AlgodClient) HasAssetHolding(ctx context.Context, address string, assetID uint64) (bool, error) {
	_, err := c.client.AccountAssetInformation(address, assetID).Do(ctx)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (c *AlgodClient) OptIn(ctx context.Context, account domain.Account, assetID uint64) error {
	sp, err := c.suggestedFlatParams(ctx)
	if err != nil {
		return err
	}

	// Opt-in is a zero-amount transfer to self.
	txn, err := transaction.MakeAssetTransferTxn(account.Address, account.Address, 0, nil, sp, "", assetID)
	if err != nil {
		return fmt.Errorf("build opt-in txn: %w", err)
	}

	txid, stx, err := crypto.SignTransaction(account.Key, txn)
	if err != nil {
		return fmt.Errorf("sign opt-in txn: %w", err)
	}
	if _, err := c.client.SendRawTransaction(stx).Do(ctx); err != nil {
		return fmt.Errorf("submit opt-in txn: %w", err)
	}
	if err := c.WaitForConfirmation(ctx, txid); err != nil {
		return err
	}

	c.logger.Info().
		Str("address", account.Address).
		Uint64("asset_id", assetID).
		Str("txid", txid).
		Msg("Opted account in to asset")
	return nil
}

func (c *AlgodClient) SubmitAssetTransfer(ctx context.Context, p interfaces.TransferParams) (string, error) {
	sp, err := c.suggestedFlatParams(ctx)
	if err != nil {
		return "", err
	}

	txn, err := transaction.MakeAssetTransferTxn(p.Sender.Address, p.Receiver, p.Amount, p.Note, sp, "", p.AssetID)
	if err != nil {
		return "", fmt.Errorf("build transfer txn: %w", err)
	}

	txid, stx, err := crypto.SignTransaction(p.Sender.Key, txn)
	if err != nil {
		return "", fmt.Errorf("sign transfer txn: %w", err)
	}
	if _, err := c.client.SendRawTransaction(stx).Do(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSubmissionRejected, err)
	}

	c.logger.Info().
		Str("txid", txid).
		Str("receiver", p.Receiver).
		Uint64("asset_id", p.AssetID).
		Uint64("amount", p.Amount).
		Int("note_bytes", len(p.Note)).
		Msg("Submitted asset transfer")
	return txid, nil
}

// WaitForConfirmation polls the pending pool a bounded number of times. A
// pool error means the ledger rejected the transaction; exhausting the bound
// means the outcome is indeterminate and is surfaced as a timeout, distinct
// from rejection.
func (c *AlgodClient) WaitForConfirmation(ctx context.Context, txid string) error {
	for i := 0; i < c.cfg.ConfirmPolls; i++ {
		info, _, err := c.client.PendingTransactionInformation(txid).Do(ctx)
		if err == nil {
			if info.PoolError != "" {
				return fmt.Errorf("%w: %s", domain.ErrSubmissionRejected, info.PoolError)
			}
			if info.ConfirmedRound > 0 {
				c.logger.Debug().
					Str("txid", txid).
					Uint64("round", info.ConfirmedRound).
					Msg("Transaction confirmed")
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrConfirmationTimeout, ctx.Err())
		case <-time.After(c.cfg.ConfirmInterval):
		}
	}
	return fmt.Errorf("%w: %s not confirmed after %d polls", domain.ErrConfirmationTimeout, txid, c.cfg.ConfirmPolls)
}

// FundAccount pays microAlgos from the treasury. LocalNet starter funds for
// freshly provisioned wallets.
func (c *AlgodClient) FundAccount(ctx context.Context, to string, amount uint64) error {
	sp, err := c.suggestedFlatParams(ctx)
	if err != nil {
		return err
	}

	txn, err := transaction.MakePaymentTxn(c.treasury.Address, to, amount, nil, "", sp)
	if err != nil {
		return fmt.Errorf("build payment txn: %w", err)
	}

	txid, stx, err := crypto.SignTransaction(c.treasury.Key, txn)
	if err != nil {
		return fmt.Errorf("sign payment txn: %w", err)
	}
	if _, err := c.client.SendRawTransaction(stx).Do(ctx); err != nil {
		return fmt.Errorf("submit payment txn: %w", err)
	}
	if err := c.WaitForConfirmation(ctx, txid); err != nil {
		return err
	}

	c.logger.Info().
		Str("to", to).
		Uint64("amount", amount).
		Str("txid", txid).
		Msg("Funded account")
	return nil
}
