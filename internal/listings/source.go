package listings

import (
	"context"

	"github.com/nft-marketplace/backend/internal/ipfs"
	"github.com/nft-marketplace/backend/internal/models"
)

// Source is anything that can enumerate listings by index: the contract
// itself or the Postgres mirror kept by the indexer.
type Source interface {
	Count(ctx context.Context) (uint64, error)
	Get(ctx context.Context, index uint64) (models.Listing, error)
}

// PagedSource returns consecutive listings in one read. The Postgres mirror
// implements it; the contract is always read one index at a time.
type PagedSource interface {
	Source
	Range(ctx context.Context, offset, limit uint64) ([]models.Listing, error)
}

// ContractReader is the read side of chain.Marketplace.
type ContractReader interface {
	ListingCount(ctx context.Context) (uint64, error)
	Listing(ctx context.Context, index uint64) (models.Listing, error)
}

// ContractSource reads listings straight from the marketplace contract and
// fills the display URL from the configured gateway.
type ContractSource struct {
	reader  ContractReader
	gateway string
}

func NewContractSource(reader ContractReader, gateway string) *ContractSource {
	return &ContractSource{reader: reader, gateway: gateway}
}

func (s *ContractSource) Count(ctx context.Context) (uint64, error) {
	return s.reader.ListingCount(ctx)
}

func (s *ContractSource) Get(ctx context.Context, index uint64) (models.Listing, error) {
	l, err := s.reader.Listing(ctx, index)
	if err != nil {
		return models.Listing{}, err
	}
	l.ImageURL = ipfs.GatewayURL(s.gateway, l.ImageRef)
	return l, nil
}
