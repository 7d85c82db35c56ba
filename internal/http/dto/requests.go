package dto

import "github.com/nft-marketplace/backend/internal/models"

// Request bodies bind from JSON or from form posts; the form names match
// the JSON ones.

// ListExistingRequest puts an already minted NFT on sale.
type ListExistingRequest struct {
	NFTContract string `json:"nft_contract" form:"nft_contract"`
	TokenID     string `json:"token_id" form:"token_id"`
	Price       string `json:"price" form:"price"`         // decimal ether
	ImageRef    string `json:"image_ref" form:"image_ref"` // ipfs:// URI or bare CID
}

type RelistRequest struct {
	Price string `json:"price" form:"price"`
}

type SizePreferencesRequest struct {
	ShirtSize   string `json:"shirt_size" form:"shirt_size"`
	TrouserSize string `json:"trouser_size" form:"trouser_size"`
}

type StartRedemptionRequest struct {
	ListingID uint64 `json:"listing_id" form:"listing_id"`
}

type SelectSizeRequest struct {
	Size string `json:"size" form:"size"`
}

type ShippingRequest struct {
	Name       string `json:"name" form:"name"`
	Street     string `json:"street" form:"street"`
	City       string `json:"city" form:"city"`
	Region     string `json:"region" form:"region"`
	PostalCode string `json:"postal_code" form:"postal_code"`
	Country    string `json:"country" form:"country"`
	Email      string `json:"email" form:"email"`
	Phone      string `json:"phone,omitempty" form:"phone"`
}

func (r ShippingRequest) Address() models.ShippingAddress {
	return models.ShippingAddress{
		Name:       r.Name,
		Street:     r.Street,
		City:       r.City,
		Region:     r.Region,
		PostalCode: r.PostalCode,
		Country:    r.Country,
		Email:      r.Email,
		Phone:      r.Phone,
	}
}
