package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/nft-marketplace/backend/internal/auth"
	"github.com/nft-marketplace/backend/internal/config"
	"github.com/nft-marketplace/backend/internal/models"
	"go.uber.org/zap"
)

const CtxAddress = "address"

// AddressSource reports the wallet address the daemon is currently bound to.
type AddressSource interface {
	CurrentAddress() string
}

// AuthMiddleware accepts a bearer token only while its address is still the
// connected account. A token issued before an account switch is rejected.
func AuthMiddleware(cfg *config.Config, session AddressSource, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		current := session.CurrentAddress()
		if current == "" || models.NormalizeAddress(claims.Address) != current {
			log.Debug("token address no longer connected",
				zap.String("token_address", claims.Address),
				zap.String("current", current),
			)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "wallet account changed, reconnect"})
		}

		c.Locals(CtxAddress, current)
		return c.Next()
	}
}

func GetAddress(c *fiber.Ctx) string {
	addr, _ := c.Locals(CtxAddress).(string)
	return addr
}
