package rbac

import (
	"testing"

	"github.com/nft-marketplace/backend/internal/listings"
	"github.com/nft-marketplace/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

const me = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestPermissions(t *testing.T) {
	tests := []struct {
		name    string
		listing models.Listing
		address string
		want    []string
	}{
		{"disconnected", models.Listing{}, "", []string{}},
		{"available", models.Listing{Buyer: models.ZeroAddress}, me, []string{PermBuy}},
		{"owned", models.Listing{Sold: true, Buyer: me}, me, []string{PermRelist, PermRedeem, PermSetSizePreferences}},
		{"owned and redeemed", models.Listing{Sold: true, Buyer: me, Redeemed: true}, me, []string{PermRelist, PermSetSizePreferences}},
		{"sold to other", models.Listing{Sold: true, Buyer: "0xbb"}, me, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Permissions(tt.listing, tt.address))
		})
	}
}

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(listings.ClassAvailable, PermBuy))
	assert.False(t, HasPermission(listings.ClassAvailable, PermRedeem))
	assert.False(t, HasPermission(listings.Class("unknown"), PermBuy))
}
