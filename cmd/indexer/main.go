package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nft-marketplace/backend/internal/chain"
	"github.com/nft-marketplace/backend/internal/config"
	"github.com/nft-marketplace/backend/internal/db"
	"github.com/nft-marketplace/backend/internal/events"
	"github.com/nft-marketplace/backend/internal/indexer"
	"github.com/nft-marketplace/backend/internal/listings"
	"github.com/nft-marketplace/backend/internal/metrics"
	"github.com/nft-marketplace/backend/internal/repositories"
	"github.com/nft-marketplace/backend/migrations"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Listing indexer mirrors the marketplace contract into Postgres so the API
// can serve listings without scanning the chain (LISTING_SOURCE=index).

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)
	if !cfg.ContractAddressValid() {
		log.Fatal("CONTRACT_ADDRESS is required")
	}
	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL is required for the indexer cursor")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatal("failed to connect to rpc", zap.Error(err))
	}
	defer client.Close()

	// read-only binding, no signer
	market, err := chain.NewMarketplace(common.HexToAddress(cfg.ContractAddress), client, nil,
		big.NewInt(cfg.ChainID), cfg.TxPollInterval, log)
	if err != nil {
		log.Fatal("failed to bind marketplace contract", zap.Error(err))
	}

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	m := metrics.Registry()
	ix := indexer.New(
		listings.NewContractSource(market, cfg.IPFSGateway),
		repositories.NewListingIndexRepo(pool, cfg.IPFSGateway),
		indexer.NewRedisCursor(rdb),
		events.NewRedisPublisher(rdb, log),
		m,
		log,
	)

	// Metrics endpoint
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	go func() {
		addr := fmt.Sprintf(":%s", cfg.IndexerMetricsPort)
		if err := app.Listen(addr); err != nil {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	defer app.Shutdown()

	log.Info("listing indexer started",
		zap.String("contract", cfg.ContractAddress),
		zap.Duration("interval", cfg.IndexerPollInterval),
	)

	runTick(ctx, ix, log)

	ticker := time.NewTicker(cfg.IndexerPollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runTick(ctx, ix, log)
		case <-sigCh:
			log.Info("shutting down listing indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runTick(ctx context.Context, ix *indexer.Indexer, log *zap.Logger) {
	if _, err := ix.Tick(ctx); err != nil {
		log.Error("poll cycle failed", zap.Error(err))
	}
}
