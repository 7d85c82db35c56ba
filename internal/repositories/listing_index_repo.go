package repositories

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nft-marketplace/backend/internal/chain"
	"github.com/nft-marketplace/backend/internal/ipfs"
	"github.com/nft-marketplace/backend/internal/models"
)

// ListingIndexRepo is the Postgres mirror of the marketplace contract kept
// by the indexer. It can back the listing repository in place of the
// contract.
type ListingIndexRepo struct {
	pool    *pgxpool.Pool
	gateway string
}

func NewListingIndexRepo(pool *pgxpool.Pool, gateway string) *ListingIndexRepo {
	return &ListingIndexRepo{pool: pool, gateway: gateway}
}

func (r *ListingIndexRepo) Upsert(ctx context.Context, l models.Listing) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO listings_index (listing_id, nft_contract, token_id, seller, buyer, price_wei, image_ref, sold, redeemed, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (listing_id) DO UPDATE
		SET nft_contract = EXCLUDED.nft_contract, token_id = EXCLUDED.token_id,
		    seller = EXCLUDED.seller, buyer = EXCLUDED.buyer, price_wei = EXCLUDED.price_wei,
		    image_ref = EXCLUDED.image_ref, sold = EXCLUDED.sold, redeemed = EXCLUDED.redeemed,
		    indexed_at = now()
	`, int64(l.ID), l.NFTContract, l.TokenID, l.Seller, l.Buyer, weiString(l.PriceWei), l.ImageRef, l.Sold, l.Redeemed)
	if err != nil {
		return fmt.Errorf("upsert listing %d: %w", l.ID, err)
	}
	return nil
}

// Count is the number of mirrored listings. The indexer writes indices in
// order, so they are contiguous from zero.
func (r *ListingIndexRepo) Count(ctx context.Context) (uint64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM listings_index`).Scan(&n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func (r *ListingIndexRepo) Get(ctx context.Context, index uint64) (models.Listing, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT listing_id, nft_contract, token_id, seller, buyer, price_wei, image_ref, sold, redeemed
		FROM listings_index WHERE listing_id = $1
	`, int64(index))
	l, err := r.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Listing{}, fmt.Errorf("%w: listing %d", models.ErrNotFound, index)
	}
	return l, err
}

// Range returns up to limit listings starting at offset, ordered by id.
func (r *ListingIndexRepo) Range(ctx context.Context, offset, limit uint64) ([]models.Listing, error) {
	if limit == 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT listing_id, nft_contract, token_id, seller, buyer, price_wei, image_ref, sold, redeemed
		FROM listings_index WHERE listing_id >= $1
		ORDER BY listing_id ASC LIMIT $2
	`, int64(offset), int64(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Listing
	for rows.Next() {
		l, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// OpenIDs lists listings whose state can still change on chain.
func (r *ListingIndexRepo) OpenIDs(ctx context.Context) ([]uint64, error) {
	rows, err := r.pool.Query(ctx, `SELECT listing_id FROM listings_index WHERE NOT redeemed ORDER BY listing_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, uint64(id))
	}
	return ids, rows.Err()
}

func (r *ListingIndexRepo) scan(row pgx.Row) (models.Listing, error) {
	var (
		id    int64
		price string
		l     models.Listing
	)
	if err := row.Scan(&id, &l.NFTContract, &l.TokenID, &l.Seller, &l.Buyer, &price, &l.ImageRef, &l.Sold, &l.Redeemed); err != nil {
		return models.Listing{}, err
	}
	l.ID = uint64(id)
	return hydrateListing(l, price, r.gateway)
}

// hydrateListing fills the derived fields of a mirrored row.
func hydrateListing(l models.Listing, priceWei, gateway string) (models.Listing, error) {
	wei, ok := new(big.Int).SetString(priceWei, 10)
	if !ok {
		return models.Listing{}, fmt.Errorf("listing %d: corrupt price %q", l.ID, priceWei)
	}
	l.PriceWei = wei
	l.Price = chain.FormatEther(wei)
	l.ImageCID = ipfs.Resolve(l.ImageRef)
	l.ImageURL = ipfs.GatewayURL(gateway, l.ImageRef)
	return l, nil
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
