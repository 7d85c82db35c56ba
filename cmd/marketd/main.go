package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nft-marketplace/backend/internal/chain"
	"github.com/nft-marketplace/backend/internal/config"
	"github.com/nft-marketplace/backend/internal/db"
	"github.com/nft-marketplace/backend/internal/events"
	apphttp "github.com/nft-marketplace/backend/internal/http"
	"github.com/nft-marketplace/backend/internal/http/handlers"
	"github.com/nft-marketplace/backend/internal/ipfs"
	"github.com/nft-marketplace/backend/internal/listings"
	"github.com/nft-marketplace/backend/internal/metrics"
	"github.com/nft-marketplace/backend/internal/redemption"
	"github.com/nft-marketplace/backend/internal/repositories"
	"github.com/nft-marketplace/backend/internal/services"
	"github.com/nft-marketplace/backend/internal/txexec"
	"github.com/nft-marketplace/backend/internal/wallet"
	"github.com/nft-marketplace/backend/migrations"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)
	if !cfg.ContractAddressValid() {
		log.Fatal("CONTRACT_ADDRESS is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.Registry()

	// Chain
	client, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatal("failed to connect to rpc", zap.Error(err))
	}
	defer client.Close()

	// Wallet
	var (
		provider wallet.Provider
		signer   chain.Signer
	)
	if cfg.KeystoreDir != "" {
		ks, err := wallet.OpenKeystore(cfg.KeystoreDir)
		if err != nil {
			log.Fatal("failed to open keystore", zap.Error(err))
		}
		kp := wallet.NewKeystoreProvider(ks, cfg.KeystoreAccount, cfg.KeystorePassphrase, client)
		provider, signer = kp, kp
	}
	session := wallet.NewSession(provider, log)

	market, err := chain.NewMarketplace(common.HexToAddress(cfg.ContractAddress), client, signer,
		big.NewInt(cfg.ChainID), cfg.TxPollInterval, log)
	if err != nil {
		log.Fatal("failed to bind marketplace contract", zap.Error(err))
	}

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis is optional; without it events stay in-process and rate limiting is off.
	var (
		rdb        *redis.Client
		publisher  events.Publisher
		subscriber events.Subscriber
	)
	if cfg.RedisURL != "" {
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, log)
		subscriber = events.NewRedisSubscriber(rdb, log)
	} else {
		bus := events.NewBus()
		publisher, subscriber = bus, bus
	}

	// Repositories
	auditRepo := repositories.NewAuditRepo(pool)
	redemptionRepo := repositories.NewRedemptionRepo(pool)

	var source listings.Source = listings.NewContractSource(market, cfg.IPFSGateway)
	if cfg.ListingSource == config.SourceIndex {
		source = repositories.NewListingIndexRepo(pool, cfg.IPFSGateway)
	}
	log.Info("listing source", zap.String("backing", cfg.ListingSource))
	repo := listings.NewRepository(source, log, m)

	// Services
	executor := txexec.NewExecutor(market, session, txexec.Config{
		GasLimit:       cfg.GasLimit,
		ConfirmTimeout: cfg.TxConfirmTimeout,
	}, log, m)
	pinata := ipfs.NewPinataClient(cfg.PinataAPIURL, cfg.PinataAPIKey, cfg.PinataSecretKey, cfg.PinataTimeout, log)

	marketService := services.NewMarketService(session, repo, executor, market, pinata, auditRepo, publisher, m, log)
	redemptionService := services.NewRedemptionService(session, repo, redemption.NewStore(), executor, redemptionRepo, auditRepo, publisher, m, log)

	// Handlers
	walletHandler := handlers.NewWalletHandler(marketService, cfg, log)
	listingHandler := handlers.NewListingHandler(marketService, cfg.MaxUploadBytes, log)
	redemptionHandler := handlers.NewRedemptionHandler(redemptionService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, session, log)

	// Start WS hub
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to subscribe ws hub", zap.Error(err))
	}

	// Fiber app
	app := apphttp.NewApp(cfg, log)

	apphttp.SetupRouter(app, cfg, log, rdb, m, session, walletHandler, listingHandler, redemptionHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting marketplace daemon",
		zap.String("addr", addr),
		zap.String("contract", cfg.ContractAddress),
		zap.Int64("chain_id", cfg.ChainID),
	)
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
