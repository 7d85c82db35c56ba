package models

import (
	"math/big"
	"strings"
)

// ZeroAddress is the buyer value the contract reports for unsold listings.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Listing is a read-only snapshot of one record of the marketplace contract.
type Listing struct {
	ID          uint64   `json:"id"`
	NFTContract string   `json:"nft_contract"`
	TokenID     string   `json:"token_id"`
	PriceWei    *big.Int `json:"price_wei"`
	Price       string   `json:"price"` // decimal ether
	ImageRef    string   `json:"image_ref"`
	ImageCID    string   `json:"image_cid"`
	ImageURL    string   `json:"image_url"`
	Seller      string   `json:"seller"`
	Buyer       string   `json:"buyer"`
	Sold        bool     `json:"sold"`
	Redeemed    bool     `json:"redeemed"`
}

// OwnedBy reports whether address bought this listing.
func (l Listing) OwnedBy(address string) bool {
	if address == "" {
		return false
	}
	return l.Sold && strings.EqualFold(l.Buyer, address)
}

// NormalizeAddress lower-cases an account address for comparison.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// SizePreferences are the per-listing garment sizes stored by the contract.
type SizePreferences struct {
	ShirtSize   string `json:"shirt_size"`
	TrouserSize string `json:"trouser_size"`
}
