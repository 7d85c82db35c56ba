package listings

import (
	"strings"

	"github.com/nft-marketplace/backend/internal/models"
)

type FilterKind string

const (
	FilterAll       FilterKind = "all"
	FilterAvailable FilterKind = "available"
	FilterOwned     FilterKind = "owned"
)

// Filter selects a view over a snapshot.
type Filter struct {
	Kind    FilterKind
	Address string
}

func All() Filter { return Filter{Kind: FilterAll} }

// Available keeps unsold listings.
func Available() Filter { return Filter{Kind: FilterAvailable} }

// OwnedBy keeps sold listings bought by address. An empty address matches
// nothing.
func OwnedBy(address string) Filter {
	return Filter{Kind: FilterOwned, Address: models.NormalizeAddress(address)}
}

// ParseFilter maps the query parameter form onto a Filter. Owned views need
// the caller's address.
func ParseFilter(kind, address string) (Filter, bool) {
	switch FilterKind(strings.ToLower(strings.TrimSpace(kind))) {
	case "", FilterAvailable:
		return Available(), true
	case FilterOwned:
		return OwnedBy(address), true
	case FilterAll:
		return All(), true
	}
	return Filter{}, false
}

func (f Filter) Match(l models.Listing) bool {
	switch f.Kind {
	case FilterAvailable:
		return !l.Sold
	case FilterOwned:
		return l.OwnedBy(f.Address)
	case FilterAll:
		return true
	}
	return false
}

// Apply returns the matching listings in their original order. The input is
// never modified.
func (f Filter) Apply(items []models.Listing) []models.Listing {
	out := make([]models.Listing, 0, len(items))
	for _, l := range items {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	return out
}

type Class string

const (
	ClassAvailable   Class = "available"
	ClassOwned       Class = "owned"
	ClassSoldToOther Class = "sold_to_other"
)

// Classify places a listing in exactly one class relative to address.
func Classify(l models.Listing, address string) Class {
	if !l.Sold {
		return ClassAvailable
	}
	if l.OwnedBy(address) {
		return ClassOwned
	}
	return ClassSoldToOther
}
