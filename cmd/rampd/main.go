package main

import (
	"context"

	algocrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"

	"github.com/radlabs/rampd/internal/application/rampservice"
	"github.com/radlabs/rampd/internal/domain"
	"github.com/radlabs/rampd/internal/domain/interfaces"
	"github.com/radlabs/rampd/internal/infrastructure/chainindex"
	"github.com/radlabs/rampd/internal/infrastructure/database"
	"github.com/radlabs/rampd/internal/infrastructure/exchange"
	"github.com/radlabs/rampd/internal/infrastructure/ledger"
	"github.com/radlabs/rampd/internal/infrastructure/paypal"
	"github.com/radlabs/rampd/internal/repositories/receiptrepo"
	"github.com/radlabs/rampd/internal/repositories/syscacherepo"
	"github.com/radlabs/rampd/internal/repositories/walletrepo"
	"github.com/radlabs/rampd/internal/server"
	"github.com/radlabs/rampd/internal/server/websocket"
	"github.com/radlabs/rampd/pkg/config"
	"github.com/radlabs/rampd/pkg/logger"
	"github.com/radlabs/rampd/pkg/secrets"
)

func main() {
	logger := logger.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	treasury, err := treasuryAccount(cfg.Ledger.TreasuryMnemonic)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to restore treasury account")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.ShutDown()

	if err := db.EnsureSchema(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	receiptRepo := receiptrepo.New(db, logger)
	sysCacheRepo := syscacherepo.New(db, logger)
	walletRepo := walletrepo.New(db, logger)

	algodClient, err := ledger.NewAlgodClient(&cfg.Ledger, treasury, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build ledger client")
	}
	indexerClient := chainindex.NewIndexerClient(&cfg.Indexer, logger)
	binanceClient := exchange.NewBinanceClient(&cfg.Exchange, logger)

	var payments interfaces.PaymentProcessor
	if cfg.PayPal.ClientID != "" {
		payments = paypal.NewClient(&cfg.PayPal, logger)
	} else {
		logger.Warn().Msg("PayPal credentials not configured, payment legs disabled")
	}

	registryAppID := cfg.Ledger.RegistryAppID
	if registryAppID == 0 {
		if id, ok, err := sysCacheRepo.GetUint64(context.Background(), syscacherepo.KeyRegistryAppID); err == nil && ok {
			registryAppID = id
		}
	}
	var registry interfaces.WalletRegistry
	if registryAppID != 0 {
		registry = ledger.NewRegistryClient(algodClient, registryAppID, treasury, logger)
	} else {
		logger.Warn().Msg("Wallet registry app id not configured, on-chain registration disabled")
	}

	hub := websocket.NewHub(logger)

	rampSvc := rampservice.NewRampService(
		cfg,
		algodClient,
		indexerClient,
		binanceClient,
		payments,
		receiptRepo,
		sysCacheRepo,
		walletRepo,
		registry,
		secrets.NewBox(cfg.Security.MnemonicEncKey),
		hub,
		treasury,
		logger,
	)

	srv := server.New(cfg, rampSvc, db, hub, logger)
	srv.Start()
}

func treasuryAccount(mn string) (domain.Account, error) {
	key, err := mnemonic.ToPrivateKey(mn)
	if err != nil {
		return domain.Account{}, err
	}
	account, err := algocrypto.AccountFromPrivateKey(key)
	if err != nil {
		return domain.Account{}, err
	}
	return domain.Account{Address: account.Address.String(), Key: key}, nil
}
