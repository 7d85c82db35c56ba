package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nft-marketplace/backend/internal/metrics"
	"go.uber.org/zap"
)

func LoggerMiddleware(log *zap.Logger, m *metrics.Market) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		latency := time.Since(start)

		reqID, _ := c.Locals(CtxRequestID).(string)
		log.Info("request",
			zap.String("request_id", reqID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", c.IP()),
		)
		// route pattern keeps label cardinality bounded
		m.ObserveRequest(c.Method(), c.Route().Path, status, latency)

		return err
	}
}
