package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nft-marketplace/backend/internal/auth"
	"github.com/nft-marketplace/backend/internal/config"
	"github.com/nft-marketplace/backend/internal/http/dto"
	"github.com/nft-marketplace/backend/internal/services"
	"go.uber.org/zap"
)

type WalletHandler struct {
	market *services.MarketService
	cfg    *config.Config
	log    *zap.Logger
}

func NewWalletHandler(market *services.MarketService, cfg *config.Config, log *zap.Logger) *WalletHandler {
	return &WalletHandler{market: market, cfg: cfg, log: log}
}

// Connect runs the wallet handshake and issues a token bound to the account.
// POST /wallet/connect
func (h *WalletHandler) Connect(c *fiber.Ctx) error {
	address, err := h.market.Connect(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, address, h.cfg.JWTExpiration)
	if err != nil {
		return writeError(c, h.log, err)
	}

	resp := dto.WalletResponse{Address: address, Token: token}
	if balance, ok := h.market.Balance(); ok {
		resp.Balance = balance
	}
	return c.JSON(resp)
}

// GetWallet returns the connected account and its last known balance.
// GET /wallet
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	resp := dto.WalletResponse{Address: h.market.CurrentAddress()}
	if balance, ok := h.market.Balance(); ok {
		resp.Balance = balance
	}
	return c.JSON(resp)
}

// Disconnect forgets the connected account. Outstanding tokens stop working.
// DELETE /wallet
func (h *WalletHandler) Disconnect(c *fiber.Ctx) error {
	h.market.Disconnect()
	return c.JSON(dto.SuccessResponse{OK: true})
}
