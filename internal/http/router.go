package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nft-marketplace/backend/internal/config"
	"github.com/nft-marketplace/backend/internal/http/handlers"
	"github.com/nft-marketplace/backend/internal/metrics"
	"github.com/nft-marketplace/backend/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewApp builds the fiber app for the daemon. Values bound from a request
// are kept in redemption drafts, so fiber must not hand out strings that
// alias its reused buffers.
func NewApp(cfg *config.Config, log *zap.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		BodyLimit:    cfg.MaxUploadBytes + 1<<20,
		ErrorHandler: handlers.ErrorHandler(log),
		Immutable:    true,
	})
}

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	m *metrics.Market,
	session middleware.AddressSource,
	walletHandler *handlers.WalletHandler,
	listingHandler *handlers.ListingHandler,
	redemptionHandler *handlers.RedemptionHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log, m))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "wallet_connected": session.CurrentAddress() != ""})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))

	// Public reads
	api.Post("/wallet/connect", walletHandler.Connect)
	api.Get("/listings", listingHandler.ListListings)
	api.Get("/listings/:id", listingHandler.GetListing)
	api.Get("/listings/:id/size-preferences", listingHandler.GetSizePreferences)
	api.Get("/listings/:id/history", listingHandler.History)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, session, log))

	// Wallet
	protected.Get("/wallet", walletHandler.GetWallet)
	protected.Delete("/wallet", walletHandler.Disconnect)

	// Listings
	protected.Post("/listings/refresh", listingHandler.Refresh)
	protected.Post("/listings", listingHandler.ListExisting)
	protected.Post("/listings/create", listingHandler.CreateAndList)
	protected.Post("/listings/:id/buy", listingHandler.Buy)
	protected.Post("/listings/:id/relist", listingHandler.Relist)
	protected.Put("/listings/:id/size-preferences", listingHandler.SetSizePreferences)

	// Redemptions
	protected.Post("/redemptions", redemptionHandler.Start)
	protected.Get("/redemptions/:id", redemptionHandler.Get)
	protected.Delete("/redemptions/:id", redemptionHandler.Abandon)
	protected.Put("/redemptions/:id/size", redemptionHandler.SelectSize)
	protected.Put("/redemptions/:id/shipping", redemptionHandler.SetShipping)
	protected.Post("/redemptions/:id/next", redemptionHandler.Next)
	protected.Post("/redemptions/:id/back", redemptionHandler.Back)
	protected.Post("/redemptions/:id/confirm", redemptionHandler.Confirm)
	protected.Post("/redemptions/:id/persist", redemptionHandler.RetryPersist)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
