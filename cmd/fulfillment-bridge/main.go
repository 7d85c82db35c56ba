package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nft-marketplace/backend/internal/config"
	"github.com/nft-marketplace/backend/internal/db"
	"github.com/nft-marketplace/backend/internal/events"
	"github.com/nft-marketplace/backend/internal/fulfillment"
	"github.com/nft-marketplace/backend/internal/repositories"
	"go.uber.org/zap"
)

// Fulfillment bridge hands confirmed redemptions to the fulfillment webhook.
// It reacts to redemption_confirmed events and sweeps pending records on a
// timer so nothing is lost while it is down.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if cfg.FulfillmentWebhookURL == "" {
		log.Fatal("FULFILLMENT_WEBHOOK_URL is required")
	}
	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL is required to receive redemption events")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	bridge := fulfillment.NewBridge(
		repositories.NewRedemptionRepo(pool),
		cfg.FulfillmentWebhookURL,
		15*time.Second,
		events.NewRedisPublisher(rdb, log),
		log,
	)

	subscriber := events.NewRedisSubscriber(rdb, log)
	if err := subscriber.Subscribe(ctx, events.StreamMarket, bridge.Handle(ctx)); err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	log.Info("fulfillment-bridge started", zap.Duration("sweep_interval", cfg.FulfillmentPollInterval))

	sweep := func() {
		n, err := bridge.Sweep(ctx)
		if err != nil {
			log.Error("sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			log.Info("forwarded redemptions", zap.Int("count", n))
		}
	}
	sweep()

	ticker := time.NewTicker(cfg.FulfillmentPollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			sweep()
		case <-sigCh:
			log.Info("shutting down fulfillment-bridge")
			cancel()
			return
		}
	}
}
