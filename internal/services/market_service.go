package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nft-marketplace/backend/internal/chain"
	"github.com/nft-marketplace/backend/internal/events"
	"github.com/nft-marketplace/backend/internal/ipfs"
	"github.com/nft-marketplace/backend/internal/listings"
	"github.com/nft-marketplace/backend/internal/metrics"
	"github.com/nft-marketplace/backend/internal/models"
	"github.com/nft-marketplace/backend/internal/txexec"
	"github.com/nft-marketplace/backend/internal/wallet"
	"go.uber.org/zap"
)

// TxExecutor runs contract actions. *txexec.Executor satisfies it.
type TxExecutor interface {
	Execute(ctx context.Context, action txexec.Action, params txexec.Params) (txexec.Result, error)
}

// Uploader pins image bytes. *ipfs.PinataClient satisfies it.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// SizeReader reads stored size preferences. *chain.Marketplace satisfies it.
type SizeReader interface {
	SizePreferences(ctx context.Context, listingID uint64) (models.SizePreferences, bool, error)
}

// Auditor records user actions. *repositories.AuditRepo satisfies it.
type Auditor interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// HistoryReader lists recorded actions for an entity.
// *repositories.AuditRepo satisfies it.
type HistoryReader interface {
	GetByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]models.AuditLog, error)
}

// ListParams describes an existing NFT to put on sale.
type ListParams struct {
	NFTContract string
	TokenID     string
	Price       string
	ImageRef    string
}

// MarketService ties the wallet session, listing repository and executor
// together. Every successful mutation is followed by a full refresh.
type MarketService struct {
	session   *wallet.Session
	repo      *listings.Repository
	executor  TxExecutor
	sizes     SizeReader
	uploader  Uploader
	auditor   Auditor
	publisher events.Publisher
	metrics   *metrics.Market
	log       *zap.Logger
}

func NewMarketService(
	session *wallet.Session,
	repo *listings.Repository,
	executor TxExecutor,
	sizes SizeReader,
	uploader Uploader,
	auditor Auditor,
	publisher events.Publisher,
	m *metrics.Market,
	log *zap.Logger,
) *MarketService {
	s := &MarketService{
		session:   session,
		repo:      repo,
		executor:  executor,
		sizes:     sizes,
		uploader:  uploader,
		auditor:   auditor,
		publisher: publisher,
		metrics:   m,
		log:       log,
	}
	session.Subscribe(s.onWalletChange)
	return s
}

// Connect runs the wallet handshake and reloads listings for the new
// account. A failed reload keeps the last snapshot and does not fail the
// connection.
func (s *MarketService) Connect(ctx context.Context) (string, error) {
	address, err := s.session.Connect(ctx)
	if err != nil {
		return "", err
	}
	if _, err := s.refresh(ctx, listings.All()); err != nil {
		s.log.Warn("refresh after connect failed", zap.Error(err))
	}
	return address, nil
}

func (s *MarketService) Disconnect() {
	s.session.Disconnect()
}

// CurrentAddress is the lower-cased connected account, or "".
func (s *MarketService) CurrentAddress() string {
	return s.session.CurrentAddress()
}

// Balance is the balance known from the last connect.
func (s *MarketService) Balance() (string, bool) {
	b, ok := s.session.Balance()
	if !ok {
		return "", false
	}
	return chain.FormatEther(b), true
}

// Listings returns a filtered view. With fresh set the contract is scanned
// again first; otherwise the last snapshot answers.
func (s *MarketService) Listings(ctx context.Context, filter listings.Filter, fresh bool) ([]models.Listing, error) {
	if !fresh {
		return s.repo.View(filter), nil
	}
	return s.refresh(ctx, filter)
}

// Snapshot is the last committed listing snapshot, or nil before the first
// successful refresh.
func (s *MarketService) Snapshot() *listings.Snapshot {
	return s.repo.Snapshot()
}

// Classify tags each listing relative to the connected account.
func (s *MarketService) Classify(items []models.Listing) map[uint64]listings.Class {
	address := s.session.CurrentAddress()
	out := make(map[uint64]listings.Class, len(items))
	for _, l := range items {
		out[l.ID] = listings.Classify(l, address)
	}
	return out
}

// Listing reads one listing fresh from the source.
func (s *MarketService) Listing(ctx context.Context, id uint64) (models.Listing, error) {
	return s.repo.Listing(ctx, id)
}

// Buy purchases a listing at its current price. The price comes from the
// last snapshot and the balance is read again, so the funds check never
// needs a submission.
func (s *MarketService) Buy(ctx context.Context, id uint64) (txexec.Result, error) {
	l, ok := s.repo.Get(id)
	if !ok {
		var err error
		if l, err = s.repo.Listing(ctx, id); err != nil {
			return txexec.Result{}, err
		}
	}
	if l.Sold {
		return txexec.Result{}, fmt.Errorf("%w: listing %d is already sold", models.ErrValidationFailed, id)
	}
	if err := s.session.RefreshBalance(ctx); err != nil {
		s.log.Warn("balance refresh failed, using last known", zap.Error(err))
	}
	return s.mutate(ctx, txexec.ActionBuy, txexec.Params{ListingID: id, PriceWei: l.PriceWei}, id)
}

func (s *MarketService) List(ctx context.Context, p ListParams) (txexec.Result, error) {
	ref := p.ImageRef
	if ipfs.IsBareCID(ref) {
		ref = ipfs.URI(ref)
	}
	return s.mutate(ctx, txexec.ActionList, txexec.Params{
		NFTContract: p.NFTContract,
		TokenID:     p.TokenID,
		Price:       p.Price,
		ImageRef:    ref,
	}, 0)
}

// CreateAndList pins the image and mints a new listing pointing at it. The
// price is validated before anything is uploaded.
func (s *MarketService) CreateAndList(ctx context.Context, filename string, image []byte, price string) (txexec.Result, string, error) {
	if _, err := chain.ParseEther(price); err != nil {
		return txexec.Result{}, "", err
	}
	if s.session.CurrentAddress() == "" {
		return txexec.Result{}, "", fmt.Errorf("%w: no wallet connected", models.ErrConnectionRejected)
	}
	if s.uploader == nil {
		return txexec.Result{}, "", fmt.Errorf("%w: pinning service not configured", models.ErrUploadFailed)
	}

	cid, err := s.uploader.Upload(ctx, filename, image)
	s.metrics.ObserveUpload(err)
	if err != nil {
		return txexec.Result{}, "", err
	}

	res, err := s.mutate(ctx, txexec.ActionCreateAndList, txexec.Params{Price: price, ImageRef: ipfs.URI(cid)}, 0)
	return res, cid, err
}

func (s *MarketService) Relist(ctx context.Context, id uint64, price string) (txexec.Result, error) {
	return s.mutate(ctx, txexec.ActionRelist, txexec.Params{ListingID: id, Price: price}, id)
}

// SizePreferences returns the stored sizes for a listing, if any were saved.
func (s *MarketService) SizePreferences(ctx context.Context, id uint64) (models.SizePreferences, bool, error) {
	if s.sizes == nil {
		return models.SizePreferences{}, false, nil
	}
	prefs, ok, err := s.sizes.SizePreferences(ctx, id)
	if err != nil {
		return models.SizePreferences{}, false, fmt.Errorf("%w: %v", models.ErrRepositoryUnavailable, err)
	}
	return prefs, ok, nil
}

func (s *MarketService) SetSizePreferences(ctx context.Context, id uint64, prefs models.SizePreferences) (txexec.Result, error) {
	return s.mutate(ctx, txexec.ActionSetSizePreferences, txexec.Params{
		ListingID:   id,
		ShirtSize:   prefs.ShirtSize,
		TrouserSize: prefs.TrouserSize,
	}, id)
}

// History returns the recorded actions on a listing, newest first. It is
// empty when the auditor keeps no history.
func (s *MarketService) History(ctx context.Context, id uint64, limit, offset int) ([]models.AuditLog, error) {
	reader, ok := s.auditor.(HistoryReader)
	if !ok {
		return []models.AuditLog{}, nil
	}
	entries, err := reader.GetByEntity(ctx, "listing", strconv.FormatUint(id, 10), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRepositoryUnavailable, err)
	}
	return entries, nil
}

// Refresh rescans the contract.
func (s *MarketService) Refresh(ctx context.Context) ([]models.Listing, error) {
	return s.refresh(ctx, listings.All())
}

func (s *MarketService) mutate(ctx context.Context, action txexec.Action, params txexec.Params, listingID uint64) (txexec.Result, error) {
	actor := s.session.CurrentAddress()
	res, err := s.executor.Execute(ctx, action, params)
	if err != nil {
		s.publish(ctx, events.New(events.EventTxFailed, map[string]any{
			"action":     string(action),
			"listing_id": listingID,
			"kind":       txexec.KindName(err),
			"error":      err.Error(),
		}))
		return res, err
	}

	s.audit(ctx, actor, string(action), listingID, map[string]any{"tx_hash": res.Hash, "block": res.Block})
	s.publish(ctx, events.New(events.EventTxConfirmed, map[string]any{
		"action":     string(action),
		"listing_id": listingID,
		"hash":       res.Hash,
		"block":      res.Block,
	}))

	if _, err := s.refresh(ctx, listings.All()); err != nil {
		s.log.Warn("refresh after transaction failed", zap.String("action", string(action)), zap.Error(err))
	}
	return res, nil
}

func (s *MarketService) refresh(ctx context.Context, filter listings.Filter) ([]models.Listing, error) {
	items, err := s.repo.Refresh(ctx, filter)
	if err != nil {
		return nil, err
	}
	snap := s.repo.Snapshot()
	s.publish(ctx, events.New(events.EventListingsRefreshed, map[string]any{
		"token": snap.Token,
		"total": len(snap.Listings),
	}))
	return items, nil
}

func (s *MarketService) onWalletChange(change wallet.Change) {
	ctx := context.Background()
	s.publish(ctx, events.New(events.EventWalletChanged, map[string]any{
		"previous": change.Previous,
		"address":  change.Current,
	}))
	if s.auditor != nil {
		_ = s.auditor.Log(ctx, models.AuditLog{
			ActorAddress: change.Current,
			ActorType:    "wallet",
			Action:       "wallet_changed",
			EntityType:   "wallet",
			EntityID:     change.Current,
			Meta:         map[string]any{"previous": change.Previous},
		})
	}
}

func (s *MarketService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.StreamMarket, event); err != nil {
		s.log.Warn("publish failed", zap.String("type", event.Type), zap.Error(err))
	}
}

func (s *MarketService) audit(ctx context.Context, actor, action string, listingID uint64, meta map[string]any) {
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
