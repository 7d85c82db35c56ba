package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nft-marketplace/backend/internal/http/dto"
	"github.com/nft-marketplace/backend/internal/middleware"
	"github.com/nft-marketplace/backend/internal/models"
	"github.com/nft-marketplace/backend/internal/txexec"
	"go.uber.org/zap"
)

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidationFailed):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrNotEligible), errors.Is(err, models.ErrTxReverted):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInsufficientFunds):
		return fiber.StatusPaymentRequired
	case errors.Is(err, models.ErrConnectionRejected):
		return fiber.StatusUnauthorized
	case errors.Is(err, models.ErrTxRejected):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrTxTimeout):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, models.ErrRepositoryUnavailable), errors.Is(err, models.ErrUploadFailed):
		return fiber.StatusBadGateway
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := StatusFor(err)
	resp := dto.ErrorResponse{
		Error:     err.Error(),
		Kind:      txexec.KindName(err),
		RequestID: middleware.GetRequestID(c),
	}
	var txErr *txexec.Error
	if errors.As(err, &txErr) {
		resp.Reason = txErr.Reason
		resp.TxHash = txErr.Hash
	}
	if status == fiber.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		resp.Error = "internal error"
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error:     msg,
		Kind:      txexec.KindName(models.ErrValidationFailed),
		RequestID: middleware.GetRequestID(c),
	})
}

func listingIDParam(c *fiber.Ctx, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	return id, err == nil
}

func draftIDParam(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

// ErrorHandler is the fiber fallback for errors returned by handlers.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(code).JSON(dto.ErrorResponse{
			Error:     err.Error(),
			RequestID: middleware.GetRequestID(c),
		})
	}
}
