package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nft-marketplace/backend/internal/http/dto"
	"github.com/nft-marketplace/backend/internal/models"
	"github.com/nft-marketplace/backend/internal/services"
	"go.uber.org/zap"
)

type RedemptionHandler struct {
	redemptions *services.RedemptionService
	log         *zap.Logger
}

func NewRedemptionHandler(redemptions *services.RedemptionService, log *zap.Logger) *RedemptionHandler {
	return &RedemptionHandler{redemptions: redemptions, log: log}
}

// Start opens the redemption wizard for an owned listing.
// POST /redemptions
func (h *RedemptionHandler) Start(c *fiber.Ctx) error {
	var req dto.StartRedemptionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	draft, err := h.redemptions.Start(c.UserContext(), req.ListingID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.RedemptionResponse{Draft: draft})
}

// GET /redemptions/:id
func (h *RedemptionHandler) Get(c *fiber.Ctx) error {
	return h.step(c, h.redemptions.Draft)
}

// DELETE /redemptions/:id
func (h *RedemptionHandler) Abandon(c *fiber.Ctx) error {
	id, ok := draftIDParam(c)
	if !ok {
		return badRequest(c, "invalid redemption id")
	}
	if err := h.redemptions.Abandon(id); err != nil {
		return writeError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PUT /redemptions/:id/size
func (h *RedemptionHandler) SelectSize(c *fiber.Ctx) error {
	var req dto.SelectSizeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.step(c, func(id uuid.UUID) (models.RedemptionDraft, error) {
		return h.redemptions.SelectSize(id, req.Size)
	})
}

// PUT /redemptions/:id/shipping
func (h *RedemptionHandler) SetShipping(c *fiber.Ctx) error {
	var req dto.ShippingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.step(c, func(id uuid.UUID) (models.RedemptionDraft, error) {
		return h.redemptions.SetShipping(id, req.Address())
	})
}

// POST /redemptions/:id/next
func (h *RedemptionHandler) Next(c *fiber.Ctx) error {
	return h.step(c, h.redemptions.Next)
}

// POST /redemptions/:id/back
func (h *RedemptionHandler) Back(c *fiber.Ctx) error {
	return h.step(c, h.redemptions.Back)
}

// Confirm submits the redeem transaction from the payment step.
// POST /redemptions/:id/confirm
func (h *RedemptionHandler) Confirm(c *fiber.Ctx) error {
	id, ok := draftIDParam(c)
	if !ok {
		return badRequest(c, "invalid redemption id")
	}
	draft, res, err := h.redemptions.Confirm(c.UserContext(), id)
	if err != nil && draft.Step != models.StepConfirmed {
		return writeError(c, h.log, err)
	}

	resp := dto.RedemptionResponse{Draft: draft, TxHash: res.Hash}
	if err != nil {
		h.log.Warn("redemption confirmed but not stored", zap.String("draft_id", id.String()), zap.Error(err))
		resp.PersistError = err.Error()
		return c.Status(fiber.StatusAccepted).JSON(resp)
	}
	return c.JSON(resp)
}

// RetryPersist stores the details of a confirmed redemption again.
// POST /redemptions/:id/persist
func (h *RedemptionHandler) RetryPersist(c *fiber.Ctx) error {
	return h.step(c, func(id uuid.UUID) (models.RedemptionDraft, error) {
		return h.redemptions.RetryPersist(c.UserContext(), id)
	})
}

func (h *RedemptionHandler) step(c *fiber.Ctx, fn func(uuid.UUID) (models.RedemptionDraft, error)) error {
	id, ok := draftIDParam(c)
	if !ok {
		return badRequest(c, "invalid redemption id")
	}
	draft, err := fn(id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.RedemptionResponse{Draft: draft})
}
