package rampservice

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	algocrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radlabs/rampd/internal/domain"
	"github.com/radlabs/rampd/internal/domain/interfaces"
	"github.com/radlabs/rampd/internal/repositories/syscacherepo"
	"github.com/radlabs/rampd/pkg/config"
	"github.com/radlabs/rampd/pkg/secrets"
)

type fakeLedger struct {
	holdings      map[string]bool
	createdAssets int
	assetID       uint64
	createErr     error
	optIns        []string
	optInErr      error
	submitted     []interfaces.TransferParams
	submitErr     error
	confirmErr    error
	funded        map[string]uint64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		holdings: map[string]bool{},
		assetID:  4242,
		funded:   map[string]uint64{},
	}
}

func (f *fakeLedger) CreateAsset(ctx context.Context, p interfaces.CreateAssetParams) (uint64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.createdAssets++
	return f.assetID, nil
}

func (f *fakeLedger) HasAssetHolding(ctx context.Context, address string, assetID uint64) (bool, error) {
	return f.holdings[address], nil
}

func (f *fakeLedger) OptIn(ctx context.Context, account domain.Account, assetID uint64) error {
	if f.optInErr != nil {
		return f.optInErr
	}
	f.optIns = append(f.optIns, account.Address)
	f.holdings[account.Address] = true
	return nil
}

func (f *fakeLedger) SubmitAssetTransfer(ctx context.Context, p interfaces.TransferParams) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, p)
	return "TX-1", nil
}

func (f *fakeLedger) WaitForConfirmation(ctx context.Context, txid string) error {
	return f.confirmErr
}

func (f *fakeLedger) FundAccount(ctx context.Context, to string, amount uint64) error {
	f.funded[to] += amount
	return nil
}

type fakeExchange struct {
	order      *domain.ExchangeOrder
	orderErr   error
	quoteCalls int
	buyCalls   int
}

func (f *fakeExchange) SpotQuote(ctx context.Context, usd decimal.Decimal) (*domain.SpotQuote, error) {
	f.quoteCalls++
	return &domain.SpotQuote{USD: usd.String(), Symbol: "USDCUSDT", Price: domain.QuotePrices{Mid: "1.0001"}}, nil
}

func (f *fakeExchange) MarketBuy(ctx context.Context, quoteAmount string) (*domain.ExchangeOrder, error) {
	f.buyCalls++
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return f.order, nil
}

func (f *fakeExchange) TradingSymbol(ctx context.Context) (string, error) {
	return "USDCUSDT", nil
}

type fakeIndexer struct {
	transfers []domain.ChainTransfer
}

func (f *fakeIndexer) SearchAssetTransfers(ctx context.Context, address string, assetID uint64) ([]domain.ChainTransfer, error) {
	return f.transfers, nil
}

type fakeReceipts struct {
	byID     map[string]*domain.StoredReceipt
	byDigest map[string]*domain.StoredReceipt
	saveErr  error
}

func newFakeReceipts() *fakeReceipts {
	return &fakeReceipts{byID: map[string]*domain.StoredReceipt{}, byDigest: map[string]*domain.StoredReceipt{}}
}

func (f *fakeReceipts) Save(ctx context.Context, rec *domain.StoredReceipt) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.byID[rec.TransferID] = rec
	f.byDigest[rec.DigestHex] = rec
	return nil
}

func (f *fakeReceipts) LoadByID(ctx context.Context, transferID string) (*domain.StoredReceipt, error) {
	return f.byID[transferID], nil
}

func (f *fakeReceipts) LoadByDigest(ctx context.Context, digestHex string) (*domain.StoredReceipt, error) {
	return f.byDigest[digestHex], nil
}

type fakeSysCache struct {
	values map[string]uint64
}

func (f *fakeSysCache) GetUint64(ctx context.Context, key string) (uint64, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeSysCache) PutUint64(ctx context.Context, key string, value uint64) error {
	if _, ok := f.values[key]; !ok {
		f.values[key] = value
	}
	return nil
}

type fakeWallets struct {
	byEmail map[string]*interfaces.UserWallet
}

func (f *fakeWallets) Get(ctx context.Context, email string) (*interfaces.UserWallet, error) {
	return f.byEmail[email], nil
}

func (f *fakeWallets) Upsert(ctx context.Context, w *interfaces.UserWallet) error {
	f.byEmail[w.Email] = w
	return nil
}

type fakeRegistry struct {
	entries map[[32]byte][32]byte
}

func (f *fakeRegistry) Put(ctx context.Context, key [32]byte, value [32]byte) error {
	f.entries[key] = value
	return nil
}

func (f *fakeRegistry) Get(ctx context.Context, key [32]byte) ([32]byte, bool, error) {
	v, ok := f.entries[key]
	return v, ok, nil
}

type fakePayments struct {
	captured    []string
	captureErr  error
	orderStatus string
	payouts     []string
}

func (f *fakePayments) CreateOrder(ctx context.Context, amount, currency, description string) (*domain.PaymentOrder, error) {
	return &domain.PaymentOrder{ID: "ORDER-1", Status: "CREATED", ApproveURL: "https://example.test/approve"}, nil
}

func (f *fakePayments) CaptureOrder(ctx context.Context, orderID string) (*domain.PaymentOrder, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	f.captured = append(f.captured, orderID)
	status := f.orderStatus
	if status == "" {
		status = "COMPLETED"
	}
	return &domain.PaymentOrder{ID: orderID, Status: status}, nil
}

func (f *fakePayments) CreatePayout(ctx context.Context, receiverEmail, amount, currency, note string) (*domain.Payout, error) {
	f.payouts = append(f.payouts, receiverEmail)
	return &domain.Payout{BatchID: "BATCH-1", BatchStatus: "PENDING"}, nil
}

type fakeBroadcaster struct {
	states []domain.TransferState
}

func (f *fakeBroadcaster) Broadcast(update *domain.StatusUpdate) {
	f.states = append(f.states, update.State)
}

type fixture struct {
	svc         IRampService
	ledger      *fakeLedger
	exchange    *fakeExchange
	indexer     *fakeIndexer
	payments    *fakePayments
	receipts    *fakeReceipts
	sysCache    *fakeSysCache
	wallets     *fakeWallets
	registry    *fakeRegistry
	broadcaster *fakeBroadcaster
	treasury    domain.Account
	cfg         *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	treasuryAcct := algocrypto.GenerateAccount()
	f := &fixture{
		ledger:   newFakeLedger(),
		exchange: &fakeExchange{order: filledOrder("9.87000000", "10.00000000")},
		payments: &fakePayments{},
		indexer:  &fakeIndexer{},
		receipts: newFakeReceipts(),
		sysCache: &fakeSysCache{values: map[string]uint64{}},
		wallets:  &fakeWallets{byEmail: map[string]*interfaces.UserWallet{}},
		registry: &fakeRegistry{entries: map[[32]byte][32]byte{}},
		treasury: domain.Account{Address: treasuryAcct.Address.String(), Key: treasuryAcct.PrivateKey},
	}
	f.broadcaster = &fakeBroadcaster{}
	f.cfg = &config.Config{
		Asset:  config.AssetConfig{Name: "USDC-DEV", UnitName: "USDCd", Decimals: 6, Total: 10_000_000_000_000},
		Ramp:   config.RampConfig{NoteBudgetBytes: 1024},
		Ledger: config.LedgerConfig{FundAmount: 5_000_000},
	}
	f.svc = NewRampService(
		f.cfg, f.ledger, f.indexer, f.exchange, f.payments, f.receipts, f.sysCache,
		f.wallets, f.registry, secrets.NewBox("test-enc-key"), f.broadcaster,
		f.treasury, zerolog.Nop(),
	)
	return f
}

func filledOrder(executed, quoteSpent string) *domain.ExchangeOrder {
	return &domain.ExchangeOrder{
		Symbol:      "USDCUSDT",
		OrderID:     12345,
		ExecutedQty: executed,
		CumQuoteQty: quoteSpent,
		Status:      "FILLED",
		Side:        "BUY",
		Type:        "MARKET",
	}
}

func externalRecipient(t *testing.T, f *fixture) string {
	t.Helper()
	acct := algocrypto.GenerateAccount()
	addr := acct.Address.String()
	f.ledger.holdings[addr] = true
	return addr
}

func TestMintAndTransfer(t *testing.T) {
	f := newFixture(t)
	recipient := externalRecipient(t, f)
	f.ledger.holdings[f.treasury.Address] = true

	result, err := f.svc.MintAndTransfer(context.Background(), &domain.MintRequest{
		USD:      "10.00",
		ToWallet: recipient,
	})
	require.NoError(t, err)

	assert.Equal(t, "TX-1", result.TransferID)
	assert.Equal(t, uint64(4242), result.AssetID)
	assert.Equal(t, uint64(9_870_000), result.AmountMinorUnits)
	assert.Equal(t, uint32(6), result.Decimals)
	assert.Equal(t, "9.870000", result.AmountUSDC)
	assert.Len(t, result.DigestHex, 64)

	require.Len(t, f.ledger.submitted, 1)
	submitted := f.ledger.submitted[0]
	assert.Equal(t, f.treasury.Address, submitted.Sender.Address)
	assert.Equal(t, recipient, submitted.Receiver)
	assert.Equal(t, uint64(9_870_000), submitted.Amount)
	assert.LessOrEqual(t, len(submitted.Note), 1024)

	var note map[string]any
	require.NoError(t, json.Unmarshal(submitted.Note, &note))
	assert.Equal(t, domain.NoteNamespace, note["k"])
	assert.Equal(t, result.DigestHex[:32], note["h"])

	stored := f.receipts.byID["TX-1"]
	require.NotNil(t, stored)
	assert.Equal(t, domain.ReceiptConfirmed, stored.Status)
	assert.Same(t, stored, f.receipts.byDigest[result.DigestHex])
	assert.Equal(t, "1.013171", stored.Receipt.Exchange.EffectivePrice)
	assert.Equal(t, "10.00", stored.Receipt.Payment.USD)

	assert.Equal(t, []domain.TransferState{
		domain.StateStarted,
		domain.StateAssetReady,
		domain.StateOptedIn,
		domain.StateNoteEncoded,
		domain.StateSubmitted,
		domain.StateConfirmed,
		domain.StateReceiptPersisted,
	}, f.broadcaster.states)
}

func TestMintAndTransferInvalidAmount(t *testing.T) {
	f := newFixture(t)

	for _, usd := range []string{"", "ten", "10.123", "-5", "1,000"} {
		_, err := f.svc.MintAndTransfer(context.Background(), &domain.MintRequest{USD: usd, ToWallet: "X"})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "usd=%q", usd)
	}
	assert.Zero(t, f.exchange.buyCalls)
	assert.Empty(t, f.ledger.submitted)
}

func TestMintAndTransferCachedAssetSkipsCreation(t *testing.T) {
	f := newFixture(t)
	f.sysCache.values[syscacherepo.KeyAssetID] = 777
	recipient := externalRecipient(t, f)
	f.ledger.holdings[f.treasury.Address] = true

	result, err := f.svc.MintAndTransfer(context.Background(), &domain.MintRequest{USD: "10.00", ToWallet: recipient})
	require.NoError(t, err)

	assert.Equal(t, uint64(777), result.AssetID)
	assert.Zero(t, f.ledger.createdAssets)
}

func TestMintAndTransferFirstRunProvisionsAsset(t *testing.T) {
	f := newFixture(t)
	recipient := externalRecipient(t, f)

	result, err := f.svc.MintAndTransfer(context.Background(), &domain.MintRequest{USD: "10.00", ToWallet: recipient})
	require.NoError(t, err)

	assert.Equal(t, uint64(4242), result.AssetID)
	assert.Equal(t, 1, f.ledger.createdAssets)
	assert.Equal(t, uint64(4242), f.sysCache.values[syscacherepo.KeyAssetID])
	// Fresh asset means the treasury was not opted in yet.
	assert.Contains(t, f.ledger.optIns, f.treasury.Address)
}

func TestMintAndTransferFillsFallback(t *testing.T) {
	f := newFixture(t)
	f.exchange.order = filledOrder("0.00000000", "10.00000000")
	f.exchange.order.Fills = []domain.OrderFill{
		{Price: "1.013", Qty: "4.87"},
		{Price: "1.013", Qty: "5.00"},
	}
	recipient := externalRecipient(t, f)
	f.ledger.holdings[f.treasury.Address] = true

	result, err := f.svc.MintAndTransfer(context.Background(), &domain.MintRequest{USD: "10.00", ToWallet: recipient})
	require.NoError(t, err)
	assert.Equal(t, uint64(9_870_000), result.AmountMinorUnits)
}

func TestMintAndTransferZeroFill(t *testing.T) {
	f := newFixture(t)
	f.exchange.order = filledOrder("0.00000000", "10.00000000")
	recipient := externalRecipient(t, f)

	_, err := f.svc.MintAndTransfer(context.Background(), &domain.MintRequest{USD: "10.00", ToWallet: recipient})
	assert.ErrorIs(t, err, domain.ErrUpstreamExchange)
	assert.Empty(t, f.ledger.submitted)
}

func TestMintAndTransferConfirmationTimeout(t *testing.T) {
	f := newFixture(t)
	f.ledger.confirmErr = domain.ErrConfirmationTimeout
	recipient := externalRecipient(t, f)
	f.ledger.holdings[f.treasury.Address] = true

	_, err := f.svc.MintAndTransfer(context.Background(), &domain.MintRequest{USD: "10.00", ToWallet: recipient})
	require.ErrorIs(t, err, domain.ErrConfirmationTimeout)

	// The transfer may still land later, so the mirror records it as
	// indeterminate instead of dropping it.
	stored := f.receipts.byID["TX-1"]
	require.NotNil(t, stored)
	assert.Equal(t, domain.ReceiptIndeterminate, stored.Status)
	assert.Equal(t, domain.StateFailed, f.broadcaster.states[len(f.broadcaster.states)-1])
}

func TestMintAndTransferPersistenceFailureSwallowed(t *testing.T) {
	f := newFixture(t)
	f.receipts.saveErr = errors.New("store down")
	recipient := externalRecipient(t, f)
	f.ledger.holdings[f.treasury.Address] = true

	result, err := f.svc.MintAndTransfer(context.Background(), &domain.MintRequest{USD: "10.00", ToWallet: recipient})
	require.NoError(t, err)
	assert.Equal(t, "TX-1", result.TransferID)
	assert.NotContains(t, f.broadcaster.states, domain.StateReceiptPersisted)
}

func TestMintAndTransferExternalRecipientNotOptedIn(t *testing.T) {
	f := newFixture(t)
	acct := algocrypto.GenerateAccount()
	f.ledger.holdings[f.treasury.Address] = true

	_, err := f.svc.MintAndTransfer(context.Background(), &domain.MintRequest{USD: "10.00", ToWallet: acct.Address.String()})
	assert.ErrorIs(t, err, domain.ErrOptIn)
	assert.Empty(t, f.ledger.submitted)
}

func TestMintAndTransferProvisionsManagedWallet(t *testing.T) {
	f := newFixture(t)
	f.ledger.holdings[f.treasury.Address] = true

	result, err := f.svc.MintAndTransfer(context.Background(), &domain.MintRequest{
		Email: "user@example.com",
		USD:   "10.00",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(9_870_000), result.AmountMinorUnits)

	wallet := f.wallets.byEmail["user@example.com"]
	require.NotNil(t, wallet)
	assert.NotEmpty(t, wallet.Address)
	assert.NotEmpty(t, wallet.MnemonicEnc)
	assert.True(t, wallet.Registered)
	assert.Equal(t, uint64(5_000_000), f.ledger.funded[wallet.Address])
	// The managed wallet's key is held here, so the opt-in happened inline.
	assert.Contains(t, f.ledger.optIns, wallet.Address)
	assert.Equal(t, wallet.Address, f.ledger.submitted[0].Receiver)
	assert.Len(t, f.registry.entries, 1)
}

func TestWalletForIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.WalletFor(context.Background(), "user@example.com")
	require.NoError(t, err)
	second, err := f.svc.WalletFor(context.Background(), "user@example.com")
	require.NoError(t, err)

	assert.Equal(t, first.Address, second.Address)
	assert.Equal(t, uint64(5_000_000), f.ledger.funded[first.Address])
}

func TestMintAndTransferCapturesPaymentOrder(t *testing.T) {
	f := newFixture(t)
	recipient := externalRecipient(t, f)
	f.ledger.holdings[f.treasury.Address] = true

	_, err := f.svc.MintAndTransfer(context.Background(), &domain.MintRequest{
		USD:             "10.00",
		ToWallet:        recipient,
		ExternalOrderID: "ORDER-77",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ORDER-77"}, f.payments.captured)
}

func TestMintAndTransferCaptureFailureAbortsBeforeBuy(t *testing.T) {
	f := newFixture(t)
	f.payments.captureErr = errors.New("order not approved")
	recipient := externalRecipient(t, f)

	_, err := f.svc.MintAndTransfer(context.Background(), &domain.MintRequest{
		USD:             "10.00",
		ToWallet:        recipient,
		ExternalOrderID: "ORDER-77",
	})
	assert.ErrorIs(t, err, domain.ErrUpstreamPayment)
	assert.Zero(t, f.exchange.buyCalls)
	assert.Empty(t, f.ledger.submitted)
}

func TestMintAndTransferPaysOutRecipient(t *testing.T) {
	f := newFixture(t)
	recipient := externalRecipient(t, f)
	f.ledger.holdings[f.treasury.Address] = true

	_, err := f.svc.MintAndTransfer(context.Background(), &domain.MintRequest{
		USD:             "10.00",
		ToWallet:        recipient,
		RecipientPayPal: "merchant@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"merchant@example.com"}, f.payments.payouts)
}

func TestCreatePaymentOrder(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.CreatePaymentOrder(context.Background(), "10.00")
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", order.ID)
	assert.NotEmpty(t, order.ApproveURL)

	_, err = f.svc.CreatePaymentOrder(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)

	quote, err := f.svc.Quote(context.Background(), "25.50")
	require.NoError(t, err)
	assert.Equal(t, "USDCUSDT", quote.Symbol)

	_, err = f.svc.Quote(context.Background(), "not-a-number")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Quote(context.Background(), "0")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.sysCache.values[syscacherepo.KeyAssetID] = 4242

	me := algocrypto.GenerateAccount().Address.String()
	other := algocrypto.GenerateAccount().Address.String()
	note := []byte(`{"k":"rad/ramp-receipt","v":1,"h":"deadbeef"}`)

	f.indexer.transfers = []domain.ChainTransfer{
		{TxID: "TX-IN", RoundTime: 100, Sender: other, Receiver: me, Amount: 9_870_000, Note: note},
		{TxID: "TX-OUT", RoundTime: 90, Sender: me, Receiver: other, Amount: 1_000_000, Note: []byte("not json")},
	}

	history, err := f.svc.History(context.Background(), me)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, "IN", history[0].Direction)
	assert.Equal(t, "9.870000", history[0].Amount)
	require.NotNil(t, history[0].Note)
	assert.Equal(t, "deadbeef", history[0].Note["h"])

	assert.Equal(t, "OUT", history[1].Direction)
	assert.Equal(t, "1.000000", history[1].Amount)
	assert.Nil(t, history[1].Note)
}

func TestHistoryWithoutAsset(t *testing.T) {
	f := newFixture(t)
	me := algocrypto.GenerateAccount().Address.String()

	history, err := f.svc.History(context.Background(), me)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryInvalidAddress(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.History(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}
