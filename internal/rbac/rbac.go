package rbac

import (
	"github.com/nft-marketplace/backend/internal/listings"
	"github.com/nft-marketplace/backend/internal/models"
)

// Permission constants
const (
	PermBuy                = "buy"
	PermRelist             = "relist"
	PermRedeem             = "redeem"
	PermSetSizePreferences = "set_size_preferences"
)

// ClassPermissions defines what the connected wallet can do with a listing
// of each class. The contract has the final word; this only drives what a
// client offers.
var ClassPermissions = map[listings.Class][]string{
	listings.ClassAvailable: {PermBuy},
	listings.ClassOwned: {
		PermRelist, PermRedeem, PermSetSizePreferences,
	},
	listings.ClassSoldToOther: {},
}

// HasPermission checks if a class carries a specific permission.
func HasPermission(class listings.Class, permission string) bool {
	perms, ok := ClassPermissions[class]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// Permissions lists the actions address may take on l. Nothing is allowed
// without a connected wallet, and a redeemed listing cannot be redeemed again.
func Permissions(l models.Listing, address string) []string {
	if address == "" {
		return []string{}
	}
	class := listings.Classify(l, address)
	out := make([]string, 0, len(ClassPermissions[class]))
	for _, p := range ClassPermissions[class] {
		if p == PermRedeem && l.Redeemed {
			continue
		}
		out = append(out, p)
	}
	return out
}
