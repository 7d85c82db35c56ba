package models

import (
	"time"

	"github.com/google/uuid"
)

// Redemption wizard steps
const (
	StepSizeSelect = "size_select"
	StepShipping   = "shipping"
	StepPayment    = "payment"
	StepConfirmed  = "confirmed"
)

// Valid step transitions: from -> []to
var ValidStepTransitions = map[string][]string{
	StepSizeSelect: {StepShipping},
	StepShipping:   {StepSizeSelect, StepPayment},
	StepPayment:    {StepShipping, StepConfirmed},
	StepConfirmed:  {},
}

func IsValidStepTransition(from, to string) bool {
	allowed, ok := ValidStepTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Garment sizes offered by the redemption wizard.
var Sizes = []string{"XS", "S", "M", "L", "XL", "XXL"}

// Trouser sizes offered by the size preference form.
var TrouserSizes = []string{"28", "30", "32", "34", "36", "38", "40"}

func IsValidSize(size string) bool {
	return contains(Sizes, size)
}

func IsValidTrouserSize(size string) bool {
	return contains(TrouserSizes, size)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

type ShippingAddress struct {
	Name       string `json:"name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
}

// RedemptionDraft is the wizard state for one listing. It lives only in memory
// until the redeem transaction confirms.
type RedemptionDraft struct {
	ID        uuid.UUID       `json:"id"`
	ListingID uint64          `json:"listing_id"`
	Owner     string          `json:"owner"`
	Step      string          `json:"step"`
	Size      string          `json:"size,omitempty"`
	Shipping  ShippingAddress `json:"shipping"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RedemptionRecord is what gets handed to the fulfillment store once the
// chain has marked the listing redeemed.
type RedemptionRecord struct {
	ID        uuid.UUID       `json:"id"`
	ListingID uint64          `json:"listing_id"`
	Owner     string          `json:"owner"`
	Size      string          `json:"size"`
	Shipping  ShippingAddress `json:"shipping"`
	TxHash    string          `json:"tx_hash,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
