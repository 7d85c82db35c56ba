package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nft-marketplace/backend/internal/events"
	"github.com/nft-marketplace/backend/internal/listings"
	"github.com/nft-marketplace/backend/internal/metrics"
	"github.com/nft-marketplace/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisCursorNext = "indexer:cursor:next"

// Store is the listing mirror. *repositories.ListingIndexRepo satisfies it.
type Store interface {
	Upsert(ctx context.Context, l models.Listing) error
	OpenIDs(ctx context.Context) ([]uint64, error)
}

// Cursor remembers the first listing index not yet mirrored.
type Cursor interface {
	Load(ctx context.Context) (uint64, error)
	Save(ctx context.Context, next uint64) error
}

// RedisCursor keeps the cursor in a single redis key.
type RedisCursor struct {
	rdb *redis.Client
	key string
}

func NewRedisCursor(rdb *redis.Client) *RedisCursor {
	return &RedisCursor{rdb: rdb, key: redisCursorNext}
}

func (c *RedisCursor) Load(ctx context.Context) (uint64, error) {
	v, err := c.rdb.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}

func (c *RedisCursor) Save(ctx context.Context, next uint64) error {
	return c.rdb.Set(ctx, c.key, strconv.FormatUint(next, 10), 0).Err()
}

// Stats summarises one poll cycle.
type Stats struct {
	Added   int
	Updated int
	Next    uint64
}

// Indexer mirrors contract listings into the store. New listings are picked
// up from the cursor; listings that can still change are re-read every tick.
type Indexer struct {
	source    listings.Source
	store     Store
	cursor    Cursor
	publisher events.Publisher
	metrics   *metrics.Market
	log       *zap.Logger
}

func New(source listings.Source, store Store, cursor Cursor, publisher events.Publisher, m *metrics.Market, log *zap.Logger) *Indexer {
	return &Indexer{source: source, store: store, cursor: cursor, publisher: publisher, metrics: m, log: log}
}

// Tick runs one poll cycle. The cursor only advances past listings that were
// stored, so a failed cycle is picked up again on the next tick.
func (ix *Indexer) Tick(ctx context.Context) (Stats, error) {
	next, err := ix.cursor.Load(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load cursor: %w", err)
	}
	stats := Stats{Next: next}

	// Re-read open listings before adding new ones so the two sets never overlap.
	open, err := ix.store.OpenIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("open listings: %w", err)
	}
	for _, id := range open {
		if id >= next {
			continue
		}
		if err := ix.mirror(ctx, id); err != nil {
			return stats, err
		}
		stats.Updated++
	}

	count, err := ix.source.Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: listing count: %v", models.ErrRepositoryUnavailable, err)
	}
	for id := next; id < count; id++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := ix.mirror(ctx, id); err != nil {
			return stats, err
		}
		stats.Added++
		stats.Next = id + 1
		if err := ix.cursor.Save(ctx, stats.Next); err != nil {
			return stats, fmt.Errorf("save cursor: %w", err)
		}
	}
	ix.metrics.SetIndexerCursor(stats.Next)

	if stats.Added > 0 || stats.Updated > 0 {
		ix.log.Info("indexed listings",
			zap.Int("added", stats.Added),
			zap.Int("updated", stats.Updated),
			zap.Uint64("next", stats.Next),
		)
		if ix.publisher != nil {
			_ = ix.publisher.Publish(ctx, events.StreamMarket, events.New(events.EventListingsRefreshed, map[string]any{
				"source": "indexer",
				"added":  stats.Added,
				"total":  stats.Next,
			}))
		}
	}
	return stats, nil
}

func (ix *Indexer) mirror(ctx context.Context, id uint64) error {
	l, err := ix.source.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: read listing %d: %v", models.ErrRepositoryUnavailable, id, err)
	}
	l.ID = id
	if err := ix.store.Upsert(ctx, l); err != nil {
		return fmt.Errorf("store listing %d: %w", id, err)
	}
	return nil
}
