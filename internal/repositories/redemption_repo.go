package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nft-marketplace/backend/internal/models"
)

// Fulfillment status of a stored redemption
const (
	RedemptionStatusPending   = "pending"
	RedemptionStatusForwarded = "forwarded"
)

// RedemptionRepo keeps delivery details off-chain after the redeem
// transaction confirms.
type RedemptionRepo struct {
	pool *pgxpool.Pool
}

func NewRedemptionRepo(pool *pgxpool.Pool) *RedemptionRepo {
	return &RedemptionRepo{pool: pool}
}

// PersistRedemptionDetails stores the record. A listing is redeemed once, so
// a retry for the same listing overwrites the earlier attempt.
func (r *RedemptionRepo) PersistRedemptionDetails(ctx context.Context, rec models.RedemptionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO redemptions (id, listing_id, owner, size, shipping, tx_hash, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (listing_id) DO UPDATE
		SET owner = EXCLUDED.owner, size = EXCLUDED.size, shipping = EXCLUDED.shipping,
		    tx_hash = EXCLUDED.tx_hash
	`, rec.ID, int64(rec.ListingID), rec.Owner, rec.Size, rec.Shipping, rec.TxHash, RedemptionStatusPending)
	if err != nil {
		return fmt.Errorf("insert redemption for listing %d: %w", rec.ListingID, err)
	}
	return nil
}

func (r *RedemptionRepo) GetByListing(ctx context.Context, listingID uint64) (*models.RedemptionRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, listing_id, owner, size, shipping, tx_hash, created_at
		FROM redemptions WHERE listing_id = $1
	`, int64(listingID))
	rec, err := scanRedemption(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: redemption for listing %d", models.ErrNotFound, listingID)
	}
	return rec, err
}

// ListPending returns records not yet handed to fulfillment, oldest first.
func (r *RedemptionRepo) ListPending(ctx context.Context, limit int) ([]models.RedemptionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, listing_id, owner, size, shipping, tx_hash, created_at
		FROM redemptions WHERE status = $1
		ORDER BY created_at ASC LIMIT $2
	`, RedemptionStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RedemptionRecord
	for rows.Next() {
		rec, err := scanRedemption(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// MarkForwarded records that fulfillment accepted the redemption.
func (r *RedemptionRepo) MarkForwarded(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE redemptions SET status = $2, forwarded_at = now()
		WHERE id = $1 AND status = $3
	`, id, RedemptionStatusForwarded, RedemptionStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: pending redemption %s", models.ErrNotFound, id)
	}
	return nil
}

func scanRedemption(row pgx.Row) (*models.RedemptionRecord, error) {
	var (
		rec       models.RedemptionRecord
		listingID int64
	)
	if err := row.Scan(&rec.ID, &listingID, &rec.Owner, &rec.Size, &rec.Shipping, &rec.TxHash, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.ListingID = uint64(listingID)
	return &rec, nil
}
