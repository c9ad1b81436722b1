package rampservice

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"regexp"
	"time"

	algocrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/radlabs/rampd/internal/domain"
	"github.com/radlabs/rampd/internal/domain/interfaces"
	"github.com/radlabs/rampd/internal/receipt"
	"github.com/radlabs/rampd/internal/repositories/receiptrepo"
	"github.com/radlabs/rampd/internal/repositories/syscacherepo"
	"github.com/radlabs/rampd/internal/repositories/walletrepo"
	"github.com/radlabs/rampd/pkg/config"
	"github.com/radlabs/rampd/pkg/minorunits"
	"github.com/radlabs/rampd/pkg/secrets"
)

// usdPattern admits whole dollars with at most two decimal places. Validated
// before any I/O so a malformed amount never reaches the venue.
var usdPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

type rampService struct {
	cfg         *config.Config
	ledger      interfaces.LedgerClient
	indexer     interfaces.IndexerClient
	exchange    interfaces.ExchangeClient
	payments    interfaces.PaymentProcessor
	receipts    receiptrepo.IReceiptRepository
	sysCache    syscacherepo.ISysCacheRepository
	wallets     walletrepo.IWalletRepository
	registry    interfaces.WalletRegistry
	box         *secrets.Box
	broadcaster interfaces.StatusBroadcaster
	treasury    domain.Account
	logger      zerolog.Logger
}

func NewRampService(
	cfg *config.Config,
	ledger interfaces.LedgerClient,
	indexer interfaces.IndexerClient,
	exchange interfaces.ExchangeClient,
	payments interfaces.PaymentProcessor,
	receipts receiptrepo.IReceiptRepository,
	sysCache syscacherepo.ISysCacheRepository,
	wallets walletrepo.IWalletRepository,
	registry interfaces.WalletRegistry,
	box *secrets.Box,
	broadcaster interfaces.StatusBroadcaster,
	treasury domain.Account,
	logger zerolog.Logger,
) IRampService {
	return &rampService{
		cfg:         cfg,
		ledger:      ledger,
		indexer:     indexer,
		exchange:    exchange,
		payments:    payments,
		receipts:    receipts,
		sysCache:    sysCache,
		wallets:     wallets,
		registry:    registry,
		box:         box,
		broadcaster: broadcaster,
		treasury:    treasury,
		logger:      logger.With().Str("component", "ramp_service").Logger(),
	}
}

func (s *rampService) Quote(ctx context.Context, usd string) (*domain.SpotQuote, error) {
	if !usdPattern.MatchString(usd) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, usd)
	}
	amount, err := decimal.NewFromString(usd)
	if err != nil || amount.IsZero() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, usd)
	}

	quote, err := s.exchange.SpotQuote(ctx, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamExchange, err)
	}
	return quote, nil
}

func (s *rampService) MintAndTransfer(ctx context.Context, req *domain.MintRequest) (*domain.TransferResult, error) {
	requestID := uuid.New().String()
	logger := s.logger.With().Str("request_id", requestID).Logger()

	if !usdPattern.MatchString(req.USD) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, req.USD)
	}
	s.notify(requestID, domain.StateStarted, "")

	recipient, recipientAccount, err := s.resolveRecipient(ctx, req)
	if err != nil {
		s.notify(requestID, domain.StateFailed, err.Error())
		return nil, err
	}

	// A supplied order id is an approved checkout order: capture it before
	// spending anything on the venue. Without one the payment leg is treated
	// as settled out-of-band, which is how the demo usually runs.
	if req.ExternalOrderID != "" && s.payments != nil {
		order, err := s.payments.CaptureOrder(ctx, req.ExternalOrderID)
		if err != nil {
			err = fmt.Errorf("%w: capture order %s: %v", domain.ErrUpstreamPayment, req.ExternalOrderID, err)
			s.notify(requestID, domain.StateFailed, err.Error())
			return nil, err
		}
		if order.Status != "COMPLETED" {
			err = fmt.Errorf("%w: order %s captured with status %s", domain.ErrUpstreamPayment, order.ID, order.Status)
			s.notify(requestID, domain.StateFailed, err.Error())
			return nil, err
		}
		logger.Info().Str("order_id", order.ID).Msg("Captured payment order")
	}

	// Pre-trade quote is informational only; a dead ticker must not block the
	// conversion.
	usdDec, _ := decimal.NewFromString(req.USD)
	if quote, err := s.exchange.SpotQuote(ctx, usdDec); err != nil {
		logger.Warn().Err(err).Msg("Pre-trade quote unavailable")
	} else {
		logger.Info().
			Str("symbol", quote.Symbol).
			Str("mid", quote.Price.Mid).
			Msg("Pre-trade quote")
	}

	order, executedQty, err := s.buyStablecoin(ctx, req.USD)
	if err != nil {
		s.notify(requestID, domain.StateFailed, err.Error())
		return nil, err
	}
	logger.Info().
		Int64("order_id", order.OrderID).
		Str("executed_qty", executedQty).
		Str("quote_spent", order.CumQuoteQty).
		Msg("Venue order filled")

	assetID, err := s.ensureAsset(ctx)
	if err != nil {
		s.notify(requestID, domain.StateFailed, err.Error())
		return nil, err
	}
	s.notify(requestID, domain.StateAssetReady, "")

	if err := s.ensureOptIns(ctx, assetID, recipient, recipientAccount); err != nil {
		s.notify(requestID, domain.StateFailed, err.Error())
		return nil, err
	}
	s.notify(requestID, domain.StateOptedIn, "")

	rec := s.buildReceipt(req, recipient, order, executedQty, assetID)
	digest, err := receipt.Digest(rec)
	if err != nil {
		s.notify(requestID, domain.StateFailed, err.Error())
		return nil, err
	}
	note, err := receipt.CompactNote(rec, digest, s.cfg.Ramp.NoteBudgetBytes)
	if err != nil {
		s.notify(requestID, domain.StateFailed, err.Error())
		return nil, err
	}
	s.notify(requestID, domain.StateNoteEncoded, "")

	amount, err := minorunits.ToMinorUnits(executedQty, s.cfg.Asset.Decimals)
	if err != nil {
		err = fmt.Errorf("%w: executed quantity %q", domain.ErrInvalidAmount, executedQty)
		s.notify(requestID, domain.StateFailed, err.Error())
		return nil, err
	}

	txid, err := s.ledger.SubmitAssetTransfer(ctx, interfaces.TransferParams{
		Sender:   s.treasury,
		Receiver: recipient,
		AssetID:  assetID,
		Amount:   amount,
		Note:     note,
	})
	if err != nil {
		s.notify(requestID, domain.StateFailed, err.Error())
		return nil, err
	}
	s.notify(requestID, domain.StateSubmitted, txid)

	digestHex := fmt.Sprintf("%x", digest)
	stored := &domain.StoredReceipt{
		TransferID: txid,
		DigestHex:  digestHex,
		Status:     domain.ReceiptConfirmed,
		Timestamp:  rec.Timestamp,
		Receipt:    rec,
	}

	if err := s.ledger.WaitForConfirmation(ctx, txid); err != nil {
		if errors.Is(err, domain.ErrConfirmationTimeout) {
			// The transfer may still land in a later round, so mirror the
			// receipt as indeterminate before giving up on this request.
			stored.Status = domain.ReceiptIndeterminate
			s.persistReceipt(ctx, requestID, stored, logger)
		}
		s.notify(requestID, domain.StateFailed, err.Error())
		return nil, err
	}
	s.notify(requestID, domain.StateConfirmed, txid)
	logger.Info().Str("txid", txid).Uint64("amount", amount).Msg("Transfer confirmed")

	s.persistReceipt(ctx, requestID, stored, logger)
	s.payoutRecipient(ctx, req, logger)

	return &domain.TransferResult{
		TransferID:       txid,
		AssetID:          assetID,
		AmountMinorUnits: amount,
		Decimals:         s.cfg.Asset.Decimals,
		AmountUSDC:       minorunits.Format(amount, s.cfg.Asset.Decimals),
		DigestHex:        digestHex,
	}, nil
}

// buyStablecoin places the MARKET order and normalizes the fill quantity. A
// zero executedQty with populated fills happens on some venue builds; the
// fill sum is authoritative then.
func (s *rampService) buyStablecoin(ctx context.Context, usd string) (*domain.ExchangeOrder, string, error) {
	order, err := s.exchange.MarketBuy(ctx, usd)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrUpstreamExchange, err)
	}

	executed, err := decimal.NewFromString(order.ExecutedQty)
	if err != nil {
		executed = decimal.Zero
	}
	if executed.IsZero() {
		for _, fill := range order.Fills {
			q, err := decimal.NewFromString(fill.Qty)
			if err != nil {
				continue
			}
			executed = executed.Add(q)
		}
	}
	if executed.IsZero() {
		return nil, "", fmt.Errorf("%w: order %d reported zero executed quantity", domain.ErrUpstreamExchange, order.OrderID)
	}
	return order, executed.String(), nil
}

// ensureAsset resolves the target asset id, creating the asset exactly once
// per deployment. The durable cache is first-writer-wins, so a lost creation
// race re-reads the winner's id instead of using its own.
func (s *rampService) ensureAsset(ctx context.Context) (uint64, error) {
	if id, ok, err := s.sysCache.GetUint64(ctx, syscacherepo.KeyAssetID); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrAssetProvisioning, err)
	} else if ok {
		return id, nil
	}

	id, err := s.ledger.CreateAsset(ctx, interfaces.CreateAssetParams{
		Creator:   s.treasury,
		Total:     s.cfg.Asset.Total,
		Decimals:  s.cfg.Asset.Decimals,
		UnitName:  s.cfg.Asset.UnitName,
		AssetName: s.cfg.Asset.Name,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrAssetProvisioning, err)
	}

	if err := s.sysCache.PutUint64(ctx, syscacherepo.KeyAssetID, id); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrAssetProvisioning, err)
	}
	if winner, ok, err := s.sysCache.GetUint64(ctx, syscacherepo.KeyAssetID); err == nil && ok && winner != id {
		s.logger.Warn().
			Uint64("created", id).
			Uint64("cached", winner).
			Msg("Lost asset creation race, using cached id")
		return winner, nil
	}

	s.logger.Info().Uint64("asset_id", id).Str("name", s.cfg.Asset.Name).Msg("Created asset")
	return id, nil
}

// ensureOptIns makes sure both legs of the transfer can hold the asset. The
// treasury opt-in only matters right after asset creation; the recipient
// opt-in needs their key, so externally owned addresses are probed instead.
func (s *rampService) ensureOptIns(ctx context.Context, assetID uint64, recipient string, recipientAccount *domain.Account) error {
	if held, _ := s.ledger.HasAssetHolding(ctx, s.treasury.Address, assetID); !held {
		if err := s.ledger.OptIn(ctx, s.treasury, assetID); err != nil {
			return fmt.Errorf("%w: treasury: %v", domain.ErrOptIn, err)
		}
	}

	if held, _ := s.ledger.HasAssetHolding(ctx, recipient, assetID); held {
		return nil
	}
	if recipientAccount == nil {
		return fmt.Errorf("%w: recipient %s is not opted in and its key is not managed here", domain.ErrOptIn, recipient)
	}
	if err := s.ledger.OptIn(ctx, *recipientAccount, assetID); err != nil {
		return fmt.Errorf("%w: recipient: %v", domain.ErrOptIn, err)
	}
	return nil
}

// resolveRecipient picks the destination address: an explicit wallet wins,
// otherwise the user's managed wallet is provisioned on first use. The
// returned account is non-nil only when this service holds the signing key.
func (s *rampService) resolveRecipient(ctx context.Context, req *domain.MintRequest) (string, *domain.Account, error) {
	if req.ToWallet != "" {
		if _, err := types.DecodeAddress(req.ToWallet); err != nil {
			return "", nil, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, req.ToWallet)
		}
		return req.ToWallet, nil, nil
	}
	if req.Email == "" {
		return "", nil, fmt.Errorf("%w: either email or to_wallet is required", domain.ErrInvalidAddress)
	}

	wallet, err := s.WalletFor(ctx, req.Email)
	if err != nil {
		return "", nil, err
	}
	account, err := s.accountFor(wallet)
	if err != nil {
		return "", nil, err
	}
	return wallet.Address, account, nil
}

// WalletFor returns the user's managed wallet, creating, funding and
// registering a fresh one when none exists yet.
func (s *rampService) WalletFor(ctx context.Context, email string) (*interfaces.UserWallet, error) {
	wallet, err := s.wallets.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}

	account := algocrypto.GenerateAccount()
	mn, err := mnemonic.FromPrivateKey(account.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("derive mnemonic: %w", err)
	}
	sealed, err := s.box.Seal(mn)
	if err != nil {
		return nil, err
	}

	wallet = &interfaces.UserWallet{
		Email:       email,
		Address:     account.Address.String(),
		MnemonicEnc: sealed,
	}
	if err := s.wallets.Upsert(ctx, wallet); err != nil {
		return nil, err
	}

	// Fresh accounts need a minimum balance before they can opt in.
	if err := s.ledger.FundAccount(ctx, wallet.Address, s.cfg.Ledger.FundAmount); err != nil {
		return nil, fmt.Errorf("fund wallet %s: %w", wallet.Address, err)
	}

	s.registerWallet(ctx, email, account.Address)
	s.logger.Info().Str("email", email).Str("address", wallet.Address).Msg("Provisioned user wallet")
	return wallet, nil
}

// registerWallet mirrors the email->address mapping into the on-chain
// registry. Best effort; the mapping is re-attempted on the next provisioning
// of the same user if it fails here.
func (s *rampService) registerWallet(ctx context.Context, email string, address types.Address) {
	if s.registry == nil {
		return
	}
	key := sha256.Sum256([]byte(email))
	var value [32]byte
	copy(value[:], address[:])

	if _, found, _ := s.registry.Get(ctx, key); found {
		return
	}
	if err := s.registry.Put(ctx, key, value); err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("On-chain wallet registration failed")
		return
	}
	wallet, err := s.wallets.Get(ctx, email)
	if err != nil || wallet == nil {
		return
	}
	wallet.Registered = true
	if err := s.wallets.Upsert(ctx, wallet); err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("Recording registration flag failed")
	}
}

func (s *rampService) accountFor(wallet *interfaces.UserWallet) (*domain.Account, error) {
	mn, err := s.box.Open(wallet.MnemonicEnc)
	if err != nil {
		return nil, err
	}
	key, err := mnemonic.ToPrivateKey(mn)
	if err != nil {
		return nil, fmt.Errorf("restore wallet key: %w", err)
	}
	return &domain.Account{Address: wallet.Address, Key: key}, nil
}

func (s *rampService) buildReceipt(req *domain.MintRequest, recipient string, order *domain.ExchangeOrder, executedQty string, assetID uint64) *domain.Receipt {
	spent, err := decimal.NewFromString(order.CumQuoteQty)
	if err != nil {
		spent = decimal.Zero
	}
	executed, _ := decimal.NewFromString(executedQty)

	effectivePrice := ""
	if !executed.IsZero() {
		effectivePrice = spent.Div(executed).StringFixed(6)
	}

	return &domain.Receipt{
		Payer: domain.PartyRef{
			Email: req.Email,
		},
		Recipient: domain.PartyRef{
			Email:  req.Email,
			Wallet: recipient,
			PayPal: req.RecipientPayPal,
		},
		Payment: domain.PaymentInfo{
			Kind:       "paypal_sandbox",
			USD:        req.USD,
			USDTSpent:  order.CumQuoteQty,
			USDCBought: executedQty,
			OrderID:    req.ExternalOrderID,
		},
		Exchange: domain.ExchangeInfo{
			Name:           "binance",
			Venue:          "spot-testnet",
			Symbol:         order.Symbol,
			EffectivePrice: effectivePrice,
		},
		VenueOrder: domain.VenueOrder{
			OrderID:       order.OrderID,
			ClientOrderID: order.ClientOrderID,
			Status:        order.Status,
			TransactTime:  order.TransactTime,
			ExecutedQty:   order.ExecutedQty,
			CumQuoteQty:   order.CumQuoteQty,
			Side:          order.Side,
			Type:          order.Type,
		},
		Asset: domain.AssetInfo{
			ID:       assetID,
			Name:     s.cfg.Asset.Name,
			Unit:     s.cfg.Asset.UnitName,
			Decimals: s.cfg.Asset.Decimals,
		},
		Timestamp: time.Now().Unix(),
	}
}

// persistReceipt mirrors the receipt off-chain. The on-chain transfer is
// authoritative by the time this runs, so a failed write is logged and
// swallowed rather than failing the request.
func (s *rampService) persistReceipt(ctx context.Context, requestID string, stored *domain.StoredReceipt, logger zerolog.Logger) {
	if err := s.receipts.Save(ctx, stored); err != nil {
		logger.Error().
			Err(fmt.Errorf("%w: %v", domain.ErrPersistenceWrite, err)).
			Str("txid", stored.TransferID).
			Msg("Receipt mirror write failed")
		return
	}
	if stored.Status == domain.ReceiptConfirmed {
		s.notify(requestID, domain.StateReceiptPersisted, stored.DigestHex)
	}
}

func (s *rampService) CreatePaymentOrder(ctx context.Context, usd string) (*domain.PaymentOrder, error) {
	if !usdPattern.MatchString(usd) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, usd)
	}
	if s.payments == nil {
		return nil, fmt.Errorf("%w: payment processor not configured", domain.ErrUpstreamPayment)
	}

	order, err := s.payments.CreateOrder(ctx, usd, "USD", "USDC-DEV top-up")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamPayment, err)
	}
	return order, nil
}

// payoutRecipient runs the optional outbound fiat leg after the on-chain
// transfer is settled. Best effort: the transfer is already authoritative, so
// a payout failure is logged for manual follow-up instead of failing the
// request.
func (s *rampService) payoutRecipient(ctx context.Context, req *domain.MintRequest, logger zerolog.Logger) {
	if req.RecipientPayPal == "" || s.payments == nil {
		return
	}
	payout, err := s.payments.CreatePayout(ctx, req.RecipientPayPal, req.USD, "USD", "rampd transfer payout")
	if err != nil {
		logger.Error().Err(err).Str("receiver", req.RecipientPayPal).Msg("Recipient payout failed")
		return
	}
	logger.Info().
		Str("batch_id", payout.BatchID).
		Str("batch_status", payout.BatchStatus).
		Msg("Recipient payout submitted")
}

func (s *rampService) History(ctx context.Context, address string) ([]domain.TransferSummary, error) {
	if _, err := types.DecodeAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, address)
	}

	assetID, ok, err := s.sysCache.GetUint64(ctx, syscacherepo.KeyAssetID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// No asset provisioned yet means there is nothing to list.
		return []domain.TransferSummary{}, nil
	}

	transfers, err := s.indexer.SearchAssetTransfers(ctx, address, assetID)
	if err != nil {
		return nil, err
	}

	asset := domain.AssetInfo{
		ID:       assetID,
		Name:     s.cfg.Asset.Name,
		Unit:     s.cfg.Asset.UnitName,
		Decimals: s.cfg.Asset.Decimals,
	}

	summaries := make([]domain.TransferSummary, 0, len(transfers))
	for _, tx := range transfers {
		direction := "OUT"
		if tx.Receiver == address {
			direction = "IN"
		}
		summary := domain.TransferSummary{
			TransferID: tx.TxID,
			RoundTime:  tx.RoundTime,
			Direction:  direction,
			Amount:     minorunits.Format(tx.Amount, asset.Decimals),
			Asset:      asset,
			From:       tx.Sender,
			To:         tx.Receiver,
		}
		if len(tx.Note) > 0 {
			if note, ok := receipt.ParseNote(tx.Note); ok {
				summary.Note = note
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *rampService) ReceiptByID(ctx context.Context, transferID string) (*domain.StoredReceipt, error) {
	return s.receipts.LoadByID(ctx, transferID)
}

func (s *rampService) ReceiptByDigest(ctx context.Context, digestHex string) (*domain.StoredReceipt, error) {
	return s.receipts.LoadByDigest(ctx, digestHex)
}

func (s *rampService) notify(requestID string, state domain.TransferState, message string) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(&domain.StatusUpdate{
		Type:      "transfer_status",
		RequestID: requestID,
		State:     state,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}
