package listings

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nft-marketplace/backend/internal/metrics"
	"github.com/nft-marketplace/backend/internal/models"
	"go.uber.org/zap"
)

// pageSize is the batch read from a PagedSource.
const pageSize = 100

// Snapshot is an immutable result of one complete scan.
type Snapshot struct {
	Listings    []models.Listing
	Token       uint64
	RefreshedAt time.Time
}

// Repository caches the last complete scan of a Source.
type Repository struct {
	source  Source
	log     *zap.Logger
	metrics *metrics.Market

	current atomic.Pointer[Snapshot]
	tokens  atomic.Uint64
}

func NewRepository(source Source, log *zap.Logger, m *metrics.Market) *Repository {
	r := &Repository{source: source, log: log, metrics: m}
	r.current.Store(&Snapshot{})
	return r
}

// Refresh scans every listing index in order and commits the result. Any
// read failure aborts the scan and leaves the previous snapshot in place. A
// scan that finishes after a newer one has committed answers from the newer
// snapshot.
func (r *Repository) Refresh(ctx context.Context, filter Filter) ([]models.Listing, error) {
	token := r.tokens.Add(1)
	start := time.Now()

	items, err := r.scan(ctx)
	if err != nil {
		r.metrics.ObserveRefresh(err, time.Since(start), 0, 0)
		r.log.Warn("listing refresh failed", zap.Uint64("token", token), zap.Error(err))
		return nil, err
	}

	next := &Snapshot{Listings: items, Token: token, RefreshedAt: time.Now()}
	for {
		prev := r.current.Load()
		if prev.Token > token {
			r.log.Debug("discarding stale refresh",
				zap.Uint64("token", token),
				zap.Uint64("committed", prev.Token),
			)
			return filter.Apply(prev.Listings), nil
		}
		if r.current.CompareAndSwap(prev, next) {
			break
		}
	}

	available := Available().Apply(items)
	r.metrics.ObserveRefresh(nil, time.Since(start), len(available), len(items)-len(available))
	r.log.Info("listings refreshed",
		zap.Uint64("token", token),
		zap.Int("total", len(items)),
		zap.Int("available", len(available)),
	)
	return filter.Apply(items), nil
}

func (r *Repository) scan(ctx context.Context) ([]models.Listing, error) {
	count, err := r.source.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read listing count: %v", models.ErrRepositoryUnavailable, err)
	}

	if paged, ok := r.source.(PagedSource); ok {
		return scanPages(ctx, paged, count)
	}

	items := make([]models.Listing, 0, count)
	for i := uint64(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrRepositoryUnavailable, err)
		}
		l, err := r.source.Get(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("%w: read listing %d: %v", models.ErrRepositoryUnavailable, i, err)
		}
		l.ID = i
		items = append(items, l)
	}
	return items, nil
}

// scanPages reads count listings in pages. Ids must run 0..count-1 without
// gaps; a gap fails the scan like any other read error.
func scanPages(ctx context.Context, src PagedSource, count uint64) ([]models.Listing, error) {
	items := make([]models.Listing, 0, count)
	for next := uint64(0); next < count; {
		page, err := src.Range(ctx, next, pageSize)
		if err != nil {
			return nil, fmt.Errorf("%w: read listings from %d: %v", models.ErrRepositoryUnavailable, next, err)
		}
		if len(page) == 0 {
			return nil, fmt.Errorf("%w: listing %d missing", models.ErrRepositoryUnavailable, next)
		}
		for _, l := range page {
			if next == count {
				break
			}
			if l.ID != next {
				return nil, fmt.Errorf("%w: listing %d missing", models.ErrRepositoryUnavailable, next)
			}
			items = append(items, l)
			next++
		}
	}
	return items, nil
}

// Snapshot returns the last committed scan, possibly empty.
func (r *Repository) Snapshot() *Snapshot {
	return r.current.Load()
}

// View applies filter to the last committed scan without touching the source.
func (r *Repository) View(filter Filter) []models.Listing {
	return filter.Apply(r.current.Load().Listings)
}

// Get returns one listing from the last committed scan.
func (r *Repository) Get(id uint64) (models.Listing, bool) {
	items := r.current.Load().Listings
	if id >= uint64(len(items)) {
		return models.Listing{}, false
	}
	return items[id], true
}

// Listing performs a single fresh read of one index.
func (r *Repository) Listing(ctx context.Context, id uint64) (models.Listing, error) {
	count, err := r.source.Count(ctx)
	if err != nil {
		return models.Listing{}, fmt.Errorf("%w: read listing count: %v", models.ErrRepositoryUnavailable, err)
	}
	if id >= count {
		return models.Listing{}, fmt.Errorf("%w: listing %d", models.ErrNotFound, id)
	}
	l, err := r.source.Get(ctx, id)
	if err != nil {
		return models.Listing{}, fmt.Errorf("%w: read listing %d: %v", models.ErrRepositoryUnavailable, id, err)
	}
	l.ID = id
	return l, nil
}
