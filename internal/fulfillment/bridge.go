package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nft-marketplace/backend/internal/events"
	"github.com/nft-marketplace/backend/internal/models"
	"go.uber.org/zap"
)

const sweepBatch = 50

// Store holds redemption records awaiting fulfillment.
// *repositories.RedemptionRepo satisfies it.
type Store interface {
	ListPending(ctx context.Context, limit int) ([]models.RedemptionRecord, error)
	MarkForwarded(ctx context.Context, id uuid.UUID) error
}

// Bridge hands confirmed redemptions to the fulfillment webhook. Records stay
// pending until the webhook answers 2xx, so a failed post is retried on the
// next sweep.
type Bridge struct {
	store      Store
	webhookURL string
	client     *http.Client
	publisher  events.Publisher
	log        *zap.Logger

	mu sync.Mutex // one sweep at a time
}

func NewBridge(store Store, webhookURL string, timeout time.Duration, publisher events.Publisher, log *zap.Logger) *Bridge {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Bridge{
		store:      store,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		publisher:  publisher,
		log:        log,
	}
}

// Handle reacts to market events; a confirmed redemption triggers a sweep.
func (b *Bridge) Handle(ctx context.Context) func(events.Event) {
	return func(event events.Event) {
		if event.Type != events.EventRedemptionConfirmed {
			return
		}
		b.log.Info("redemption confirmed, sweeping", zap.Any("listing_id", event.Payload["listing_id"]))
		if _, err := b.Sweep(ctx); err != nil {
			b.log.Warn("sweep failed", zap.Error(err))
		}
	}
}

// Sweep forwards every pending record and returns how many were accepted.
func (b *Bridge) Sweep(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending, err := b.store.ListPending(ctx, sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	forwarded := 0
	for _, rec := range pending {
		if err := b.forward(ctx, rec); err != nil {
			b.log.Warn("forward failed",
				zap.String("id", rec.ID.String()),
				zap.Uint64("listing_id", rec.ListingID),
				zap.Error(err),
			)
			continue
		}
		if err := b.store.MarkForwarded(ctx, rec.ID); err != nil {
			b.log.Warn("mark forwarded failed", zap.String("id", rec.ID.String()), zap.Error(err))
			continue
		}
		forwarded++
		if b.publisher != nil {
			_ = b.publisher.Publish(ctx, events.StreamMarket, events.New(events.EventRedemptionForwarded, map[string]any{
				"listing_id": rec.ListingID,
				"owner":      rec.Owner,
			}))
		}
	}
	return forwarded, nil
}

func (b *Bridge) forward(ctx context.Context, rec models.RedemptionRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", rec.ID.String())

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
