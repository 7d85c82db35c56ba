package handlers

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/nft-marketplace/backend/internal/http/dto"
	"github.com/nft-marketplace/backend/internal/listings"
	"github.com/nft-marketplace/backend/internal/models"
	"github.com/nft-marketplace/backend/internal/services"
	"go.uber.org/zap"
)

var allowedImageExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true,
}

type ListingHandler struct {
	market    *services.MarketService
	maxUpload int
	log       *zap.Logger
}

func NewListingHandler(market *services.MarketService, maxUpload int, log *zap.Logger) *ListingHandler {
	return &ListingHandler{market: market, maxUpload: maxUpload, log: log}
}

// ListListings returns a filtered view of the listings.
// GET /listings?filter=available|owned|all&address=0x..&fresh=true
func (h *ListingHandler) ListListings(c *fiber.Ctx) error {
	address := c.Query("address")
	if address == "" {
		address = h.market.CurrentAddress()
	}
	filter, ok := listings.ParseFilter(c.Query("filter"), address)
	if !ok {
		return badRequest(c, "filter must be one of available, owned, all")
	}

	items, err := h.market.Listings(c.UserContext(), filter, c.QueryBool("fresh", false))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(h.listingsResponse(items))
}

// Refresh rescans the contract.
// POST /listings/refresh
func (h *ListingHandler) Refresh(c *fiber.Ctx) error {
	items, err := h.market.Refresh(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(h.listingsResponse(items))
}

// GetListing reads one listing fresh from the contract.
// GET /listings/:id
func (h *ListingHandler) GetListing(c *fiber.Ctx) error {
	id, ok := listingIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	l, err := h.market.Listing(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.NewListingResponse(l, h.market.CurrentAddress()))
}

// Buy purchases a listing at its listed price.
// POST /listings/:id/buy
func (h *ListingHandler) Buy(c *fiber.Ctx) error {
	id, ok := listingIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	res, err := h.market.Buy(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.TxResponse{TxHash: res.Hash, Block: res.Block})
}

// Relist puts an owned listing back on sale.
// POST /listings/:id/relist
func (h *ListingHandler) Relist(c *fiber.Ctx) error {
	id, ok := listingIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	var req dto.RelistRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.market.Relist(c.UserContext(), id, req.Price)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(dto.TxResponse{TxHash: res.Hash, Block: res.Block})
}

// ListExisting puts an already minted NFT on sale.
// POST /listings
func (h *ListingHandler) ListExisting(c *fiber.Ctx) error {
	var req dto.ListExistingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.market.List(c.UserContext(), services.ListParams{
		NFTContract: req.NFTContract,
		TokenID:     req.TokenID,
		Price:       req.Price,
		ImageRef:    req.ImageRef,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.TxResponse{TxHash: res.Hash, Block: res.Block})
}

// CreateAndList pins an uploaded image and lists a new token for it.
// POST /listings/create (multipart: image, price)
func (h *ListingHandler) CreateAndList(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "image file is required")
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExt[ext] {
		return badRequest(c, fmt.Sprintf("unsupported image type %q", ext))
	}
	if h.maxUpload > 0 && file.Size > int64(h.maxUpload) {
		return badRequest(c, "image too large")
	}

	f, err := file.Open()
	if err != nil {
		return writeError(c, h.log, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if len(data) == 0 {
		return badRequest(c, "image file is empty")
	}

	res, cid, err := h.market.CreateAndList(c.UserContext(), filepath.Base(file.Filename), data, c.FormValue("price"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.TxResponse{TxHash: res.Hash, Block: res.Block, CID: cid})
}

// GetSizePreferences reads the sizes stored for a listing.
// GET /listings/:id/size-preferences
func (h *ListingHandler) GetSizePreferences(c *fiber.Ctx) error {
	id, ok := listingIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	prefs, stored, err := h.market.SizePreferences(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SizePreferencesResponse{
		ListingID:   id,
		Stored:      stored,
		ShirtSize:   prefs.ShirtSize,
		TrouserSize: prefs.TrouserSize,
	})
}

// SetSizePreferences stores sizes for an owned listing on chain.
// PUT /listings/:id/size-preferences
func (h *ListingHandler) SetSizePreferences(c *fiber.Ctx) error {
	id, ok := listingIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	var req dto.SizePreferencesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.market.SetSizePreferences(c.UserContext(), id, models.SizePreferences{
		ShirtSize:   strings.ToUpper(strings.TrimSpace(req.ShirtSize)),
		TrouserSize: strings.TrimSpace(req.TrouserSize),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.TxResponse{TxHash: res.Hash, Block: res.Block})
}

// History lists the recorded actions on a listing.
// GET /listings/:id/history?limit=50&offset=0
func (h *ListingHandler) History(c *fiber.Ctx) error {
	id, ok := listingIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := h.market.History(c.UserContext(), id, limit, c.QueryInt("offset", 0))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}

func (h *ListingHandler) listingsResponse(items []models.Listing) dto.ListingsResponse {
	address := h.market.CurrentAddress()
	out := dto.ListingsResponse{Items: make([]dto.ListingResponse, 0, len(items)), Total: len(items)}
	for _, l := range items {
		out.Items = append(out.Items, dto.NewListingResponse(l, address))
	}
	if snap := h.market.Snapshot(); snap != nil {
		out.RefreshedAt = snap.RefreshedAt
	}
	return out
}
