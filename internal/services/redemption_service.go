package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/nft-marketplace/backend/internal/events"
	"github.com/nft-marketplace/backend/internal/listings"
	"github.com/nft-marketplace/backend/internal/metrics"
	"github.com/nft-marketplace/backend/internal/models"
	"github.com/nft-marketplace/backend/internal/redemption"
	"github.com/nft-marketplace/backend/internal/txexec"
	"github.com/nft-marketplace/backend/internal/wallet"
	"go.uber.org/zap"
)

// RedemptionService manages redemption workflows for the connected account.
// Workflows opened by an account are dropped when the wallet switches away
// from it.
type RedemptionService struct {
	session   *wallet.Session
	repo      *listings.Repository
	store     *redemption.Store
	executor  TxExecutor
	persister redemption.Persister
	auditor   Auditor
	publisher events.Publisher
	metrics   *metrics.Market
	log       *zap.Logger
}

func NewRedemptionService(
	session *wallet.Session,
	repo *listings.Repository,
	store *redemption.Store,
	executor TxExecutor,
	persister redemption.Persister,
	auditor Auditor,
	publisher events.Publisher,
	m *metrics.Market,
	log *zap.Logger,
) *RedemptionService {
	s := &RedemptionService{
		session:   session,
		repo:      repo,
		store:     store,
		executor:  executor,
		persister: persister,
		auditor:   auditor,
		publisher: publisher,
		metrics:   m,
		log:       log,
	}
	session.Subscribe(s.onWalletChange)
	return s
}

// Start opens a workflow after a fresh read of the listing.
func (s *RedemptionService) Start(ctx context.Context, listingID uint64) (models.RedemptionDraft, error) {
	address := s.session.CurrentAddress()
	listing, err := s.repo.Listing(ctx, listingID)
	if err != nil {
		return models.RedemptionDraft{}, err
	}

	w, err := redemption.Begin(listing, address, redemption.Deps{
		Redeemer:  s.executor,
		Persister: s.persister,
		Log:       s.log,
		Metrics:   s.metrics,
	})
	if err != nil {
		s.log.Info("redemption refused", zap.Uint64("listing_id", listingID), zap.String("address", address), zap.Error(err))
		return models.RedemptionDraft{}, err
	}
	s.store.Put(w)

	draft := w.Draft()
	s.audit(ctx, address, "redemption_started", listingID, map[string]any{"draft_id": draft.ID.String()})
	return draft, nil
}

func (s *RedemptionService) Draft(id uuid.UUID) (models.RedemptionDraft, error) {
	w, err := s.workflow(id)
	if err != nil {
		return models.RedemptionDraft{}, err
	}
	return w.Draft(), nil
}

func (s *RedemptionService) SelectSize(id uuid.UUID, size string) (models.RedemptionDraft, error) {
	return s.apply(id, func(w *redemption.Workflow) error { return w.SelectSize(size) })
}

func (s *RedemptionService) SetShipping(id uuid.UUID, addr models.ShippingAddress) (models.RedemptionDraft, error) {
	return s.apply(id, func(w *redemption.Workflow) error { return w.SetShipping(addr) })
}

func (s *RedemptionService) Next(id uuid.UUID) (models.RedemptionDraft, error) {
	return s.apply(id, (*redemption.Workflow).Next)
}

func (s *RedemptionService) Back(id uuid.UUID) (models.RedemptionDraft, error) {
	return s.apply(id, (*redemption.Workflow).Back)
}

// Confirm submits the redeem transaction. On success the listings are
// reloaded so the redeemed flag shows.
func (s *RedemptionService) Confirm(ctx context.Context, id uuid.UUID) (models.RedemptionDraft, txexec.Result, error) {
	w, err := s.workflow(id)
	if err != nil {
		return models.RedemptionDraft{}, txexec.Result{}, err
	}
	before := w.Draft()

	res, err := w.Confirm(ctx)
	draft := w.Draft()
	if errors.Is(err, models.ErrValidationFailed) {
		return draft, res, err
	}
	if draft.Step != models.StepConfirmed {
		s.publish(ctx, events.New(events.EventTxFailed, map[string]any{
			"action":     string(txexec.ActionRedeem),
			"listing_id": before.ListingID,
			"kind":       txexec.KindName(err),
			"error":      errString(err),
		}))
		return draft, res, err
	}

	s.audit(ctx, before.Owner, "redemption_confirmed", before.ListingID, map[string]any{
		"draft_id": before.ID.String(),
		"tx_hash":  res.Hash,
	})
	s.publish(ctx, events.New(events.EventRedemptionConfirmed, map[string]any{
		"draft_id":   before.ID.String(),
		"listing_id": before.ListingID,
		"owner":      before.Owner,
		"tx_hash":    res.Hash,
	}))
	if _, rerr := s.repo.Refresh(ctx, listings.All()); rerr != nil {
		s.log.Warn("refresh after redemption failed", zap.Error(rerr))
	}
	return draft, res, err
}

// RetryPersist re-attempts storing details of a confirmed redemption.
func (s *RedemptionService) RetryPersist(ctx context.Context, id uuid.UUID) (models.RedemptionDraft, error) {
	w, err := s.workflow(id)
	if err != nil {
		return models.RedemptionDraft{}, err
	}
	if err := w.Persist(ctx); err != nil {
		return w.Draft(), err
	}
	return w.Draft(), nil
}

func (s *RedemptionService) Abandon(id uuid.UUID) error {
	if _, err := s.workflow(id); err != nil {
		return err
	}
	return s.store.Abandon(id)
}

// workflow looks up a workflow owned by the connected account. Workflows of
// other accounts are reported as missing.
func (s *RedemptionService) workflow(id uuid.UUID) (*redemption.Workflow, error) {
	w, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if w.Draft().Owner != s.session.CurrentAddress() {
		return nil, fmt.Errorf("%w: redemption %s", models.ErrNotFound, id)
	}
	return w, nil
}

func (s *RedemptionService) apply(id uuid.UUID, fn func(*redemption.Workflow) error) (models.RedemptionDraft, error) {
	w, err := s.workflow(id)
	if err != nil {
		return models.RedemptionDraft{}, err
	}
	err = fn(w)
	return w.Draft(), err
}

func (s *RedemptionService) onWalletChange(change wallet.Change) {
	if change.Previous == "" {
		return
	}
	if n := s.store.AbandonOwner(change.Previous); n > 0 {
		s.log.Info("abandoned redemptions of previous account",
			zap.String("address", change.Previous),
			zap.Int("count", n),
		)
	}
}

func (s *RedemptionService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.StreamMarket, event); err != nil {
		s.log.Warn("publish failed", zap.String("type", event.Type), zap.Error(err))
	}
}

func (s *RedemptionService) audit(ctx context.Context, actor, action string, listingID uint64, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Log(ctx, models.AuditLog{
		ActorAddress: actor,
		ActorType:    "wallet",
		Action:       action,
		EntityType:   "listing",
		EntityID:     strconv.FormatUint(listingID, 10),
		Meta:         meta,
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
