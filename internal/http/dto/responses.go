package dto

import (
	"time"

	"github.com/nft-marketplace/backend/internal/listings"
	"github.com/nft-marketplace/backend/internal/models"
	"github.com/nft-marketplace/backend/internal/rbac"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Reason    string `json:"reason,omitempty"`
	TxHash    string `json:"tx_hash,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type WalletResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance,omitempty"` // decimal ether
	Token   string `json:"token,omitempty"`
}

// ListingResponse carries wei as a decimal string so clients do not lose
// precision.
type ListingResponse struct {
	ID          uint64         `json:"id"`
	NFTContract string         `json:"nft_contract"`
	TokenID     string         `json:"token_id"`
	PriceWei    string         `json:"price_wei"`
	Price       string         `json:"price"`
	ImageRef    string         `json:"image_ref"`
	ImageURL    string         `json:"image_url"`
	Seller      string         `json:"seller"`
	Buyer       string         `json:"buyer"`
	Sold        bool           `json:"sold"`
	Redeemed    bool           `json:"redeemed"`
	Class       listings.Class `json:"class"`
	Actions     []string       `json:"actions"`
}

// NewListingResponse renders l as seen by address.
func NewListingResponse(l models.Listing, address string) ListingResponse {
	wei := "0"
	if l.PriceWei != nil {
		wei = l.PriceWei.String()
	}
	return ListingResponse{
		ID:          l.ID,
		NFTContract: l.NFTContract,
		TokenID:     l.TokenID,
		PriceWei:    wei,
		Price:       l.Price,
		ImageRef:    l.ImageRef,
		ImageURL:    l.ImageURL,
		Seller:      l.Seller,
		Buyer:       l.Buyer,
		Sold:        l.Sold,
		Redeemed:    l.Redeemed,
		Class:       listings.Classify(l, address),
		Actions:     rbac.Permissions(l, address),
	}
}

type ListingsResponse struct {
	Items       []ListingResponse `json:"items"`
	Total       int               `json:"total"`
	RefreshedAt time.Time         `json:"refreshed_at,omitempty"`
}

type TxResponse struct {
	TxHash string `json:"tx_hash"`
	Block  uint64 `json:"block"`
	CID    string `json:"cid,omitempty"`
}

type SizePreferencesResponse struct {
	ListingID   uint64 `json:"listing_id"`
	Stored      bool   `json:"stored"`
	ShirtSize   string `json:"shirt_size,omitempty"`
	TrouserSize string `json:"trouser_size,omitempty"`
}

// RedemptionResponse reports the wizard state. PersistError is set when the
// redeem transaction confirmed but the details could not be stored yet.
type RedemptionResponse struct {
	Draft        models.RedemptionDraft `json:"draft"`
	TxHash       string                 `json:"tx_hash,omitempty"`
	PersistError string                 `json:"persist_error,omitempty"`
}
