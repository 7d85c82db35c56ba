package indexer

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/nft-marketplace/backend/internal/events"
	"github.com/nft-marketplace/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type chainSource struct {
	items []models.Listing
	fail  map[uint64]bool
	reads []uint64
}

func (s *chainSource) Count(ctx context.Context) (uint64, error) { return uint64(len(s.items)), nil }

func (s *chainSource) Get(ctx context.Context, index uint64) (models.Listing, error) {
	s.reads = append(s.reads, index)
	if s.fail[index] {
		return models.Listing{}, errors.New("rpc down")
	}
	return s.items[index], nil
}

type memStore struct{ rows map[uint64]models.Listing }

func (m *memStore) Upsert(ctx context.Context, l models.Listing) error {
	m.rows[l.ID] = l
	return nil
}

func (m *memStore) OpenIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	for id := uint64(0); id < uint64(len(m.rows)); id++ {
		if l, ok := m.rows[id]; ok && !l.Redeemed {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type memCursor struct{ next uint64 }

func (c *memCursor) Load(ctx context.Context) (uint64, error) { return c.next, nil }
func (c *memCursor) Save(ctx context.Context, next uint64) error {
	c.next = next
	return nil
}

func listing(sold, redeemed bool) models.Listing {
	return models.Listing{PriceWei: big.NewInt(1), Buyer: models.ZeroAddress, Sold: sold, Redeemed: redeemed}
}

func TestTickAddsThenRefreshesOpenListings(t *testing.T) {
	src := &chainSource{items: []models.Listing{listing(false, false), listing(true, true)}}
	store := &memStore{rows: map[uint64]models.Listing{}}
	cursor := &memCursor{}
	bus := events.NewBus()
	var got []events.Event
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Subscribe(ctx, events.StreamMarket, func(e events.Event) { got = append(got, e) }))

	ix := New(src, store, cursor, bus, nil, zap.NewNop())

	stats, err := ix.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Added: 2, Next: 2}, stats)
	assert.Equal(t, uint64(2), cursor.next)
	require.Len(t, got, 1)

	// listing 0 sells, a third listing appears
	src.items[0].Sold = true
	src.items = append(src.items, listing(false, false))
	src.reads = nil

	stats, err = ix.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Added: 1, Updated: 1, Next: 3}, stats)
	assert.Equal(t, []uint64{0, 2}, src.reads, "redeemed listing 1 is not re-read")
	assert.True(t, store.rows[0].Sold)
}

func TestTickStopsCursorAtFailure(t *testing.T) {
	src := &chainSource{
		items: []models.Listing{listing(false, false), listing(false, false), listing(false, false)},
		fail:  map[uint64]bool{1: true},
	}
	store := &memStore{rows: map[uint64]models.Listing{}}
	cursor := &memCursor{}
	ix := New(src, store, cursor, nil, nil, zap.NewNop())

	stats, err := ix.Tick(context.Background())
	require.ErrorIs(t, err, models.ErrRepositoryUnavailable)
	assert.Equal(t, uint64(1), stats.Next)
	assert.Equal(t, uint64(1), cursor.next)

	delete(src.fail, 1)
	stats, err = ix.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Next)
	assert.Len(t, store.rows, 3)
}
