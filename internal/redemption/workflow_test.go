package redemption

import (
	"context"
	"errors"
	"testing"
	"unsafe"

	"github.com/nft-marketplace/backend/internal/models"
	"github.com/nft-marketplace/backend/internal/txexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const owner = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

type fakeRedeemer struct {
	err   error
	calls []txexec.Params
}

func (r *fakeRedeemer) Execute(ctx context.Context, action txexec.Action, params txexec.Params) (txexec.Result, error) {
	r.calls = append(r.calls, params)
	if r.err != nil {
		return txexec.Result{}, r.err
	}
	return txexec.Result{Hash: "0xabc", Block: 5}, nil
}

type fakePersister struct {
	err     error
	records []models.RedemptionRecord
}

func (p *fakePersister) PersistRedemptionDetails(ctx context.Context, record models.RedemptionRecord) error {
	if p.err != nil {
		return p.err
	}
	p.records = append(p.records, record)
	return nil
}

func ownedListing() models.Listing {
	return models.Listing{ID: 7, Sold: true, Buyer: owner}
}

func validShipping() models.ShippingAddress {
	return models.ShippingAddress{
		Name:       "Ada Lovelace",
		Street:     "12 Analytical Way",
		City:       "London",
		Region:     "Greater London",
		PostalCode: "N1 9GU",
		Country:    "UK",
		Email:      "ada@example.org",
	}
}

func begin(t *testing.T, r *fakeRedeemer, p *fakePersister) *Workflow {
	t.Helper()
	w, err := Begin(ownedListing(), "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", Deps{Redeemer: r, Persister: p, Log: zap.NewNop()})
	require.NoError(t, err)
	return w
}

func toPayment(t *testing.T, w *Workflow) {
	t.Helper()
	require.NoError(t, w.SelectSize("m"))
	require.NoError(t, w.Next())
	require.NoError(t, w.SetShipping(validShipping()))
	require.NoError(t, w.Next())
	require.Equal(t, models.StepPayment, w.Draft().Step)
}

func TestBeginEligibility(t *testing.T) {
	tests := []struct {
		name    string
		listing models.Listing
		address string
	}{
		{"redeemed", models.Listing{Sold: true, Buyer: owner, Redeemed: true}, owner},
		{"redeemed other buyer", models.Listing{Sold: true, Buyer: "0xbb", Redeemed: true}, owner},
		{"unsold", models.Listing{Buyer: models.ZeroAddress}, owner},
		{"other buyer", models.Listing{Sold: true, Buyer: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"}, owner},
		{"no wallet", models.Listing{Sold: true, Buyer: owner}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Begin(tt.listing, tt.address, Deps{})
			require.ErrorIs(t, err, models.ErrNotEligible)
			assert.Nil(t, w)
		})
	}

	w, err := Begin(ownedListing(), owner, Deps{})
	require.NoError(t, err)
	assert.Equal(t, models.StepSizeSelect, w.Draft().Step)
}

func TestNextWithoutSizeStays(t *testing.T) {
	w := begin(t, &fakeRedeemer{}, &fakePersister{})

	err := w.Next()
	require.ErrorIs(t, err, models.ErrValidationFailed)
	assert.Equal(t, models.StepSizeSelect, w.Draft().Step)

	require.ErrorIs(t, w.SelectSize("XXXL"), models.ErrValidationFailed)
	require.ErrorIs(t, w.Next(), models.ErrValidationFailed)
	assert.Equal(t, models.StepSizeSelect, w.Draft().Step)
}

func TestShippingValidation(t *testing.T) {
	w := begin(t, &fakeRedeemer{}, &fakePersister{})
	require.NoError(t, w.SelectSize("L"))
	require.NoError(t, w.Next())

	bad := validShipping()
	bad.Email = "ada@example"
	require.NoError(t, w.SetShipping(bad))
	require.ErrorIs(t, w.Next(), models.ErrValidationFailed)
	assert.Equal(t, models.StepShipping, w.Draft().Step)

	bad = validShipping()
	bad.City = "  "
	require.NoError(t, w.SetShipping(bad))
	err := w.Next()
	require.ErrorIs(t, err, models.ErrValidationFailed)
	assert.Contains(t, err.Error(), "city")

	noPhone := validShipping()
	noPhone.Phone = ""
	require.NoError(t, w.SetShipping(noPhone))
	require.NoError(t, w.Next())
	assert.Equal(t, models.StepPayment, w.Draft().Step)
}

func TestBackPreservesValues(t *testing.T) {
	w := begin(t, &fakeRedeemer{}, &fakePersister{})
	toPayment(t, w)

	require.NoError(t, w.Back())
	d := w.Draft()
	assert.Equal(t, models.StepShipping, d.Step)
	assert.Equal(t, "ada@example.org", d.Shipping.Email)

	require.NoError(t, w.Back())
	d = w.Draft()
	assert.Equal(t, models.StepSizeSelect, d.Step)
	assert.Equal(t, "M", d.Size)

	require.ErrorIs(t, w.Back(), models.ErrValidationFailed)
}

func TestConfirmFailureStaysInPayment(t *testing.T) {
	r := &fakeRedeemer{err: &txexec.Error{Kind: models.ErrTxRejected, Action: txexec.ActionRedeem}}
	p := &fakePersister{}
	w := begin(t, r, p)
	toPayment(t, w)

	_, err := w.Confirm(context.Background())
	require.ErrorIs(t, err, models.ErrTxRejected)
	d := w.Draft()
	assert.Equal(t, models.StepPayment, d.Step)
	assert.Equal(t, "M", d.Size)
	assert.Empty(t, p.records)
}

func TestConfirmSuccess(t *testing.T) {
	r := &fakeRedeemer{}
	p := &fakePersister{}
	w := begin(t, r, p)
	toPayment(t, w)

	res, err := w.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xabc", res.Hash)
	require.Len(t, r.calls, 1)
	assert.Equal(t, uint64(7), r.calls[0].ListingID)

	require.Len(t, p.records, 1)
	assert.Equal(t, "M", p.records[0].Size)
	assert.Equal(t, "London", p.records[0].Shipping.City)
	assert.Equal(t, owner, p.records[0].Owner)

	d := w.Draft()
	assert.Equal(t, models.StepConfirmed, d.Step)
	assert.Empty(t, d.Size)
	assert.Equal(t, models.ShippingAddress{}, d.Shipping)

	require.ErrorIs(t, w.Next(), models.ErrValidationFailed)
	require.ErrorIs(t, w.Back(), models.ErrValidationFailed)
	_, err = w.Confirm(context.Background())
	require.ErrorIs(t, err, models.ErrValidationFailed)
	assert.Len(t, r.calls, 1)
}

func TestConfirmOnlyFromPayment(t *testing.T) {
	r := &fakeRedeemer{}
	w := begin(t, r, &fakePersister{})

	_, err := w.Confirm(context.Background())
	require.ErrorIs(t, err, models.ErrValidationFailed)
	assert.Empty(t, r.calls)
}

func TestPersistRetry(t *testing.T) {
	p := &fakePersister{err: errors.New("db down")}
	w := begin(t, &fakeRedeemer{}, p)
	toPayment(t, w)

	_, err := w.Confirm(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.StepConfirmed, w.Draft().Step)
	rec, ok := w.Record()
	require.True(t, ok)
	assert.Equal(t, "0xabc", rec.TxHash)

	p.err = nil
	require.NoError(t, w.Persist(context.Background()))
	_, ok = w.Record()
	assert.False(t, ok)
	assert.Len(t, p.records, 1)
}

func TestStore(t *testing.T) {
	s := NewStore()
	w1 := begin(t, &fakeRedeemer{}, nil)
	w2 := begin(t, &fakeRedeemer{}, nil)

	s.Put(w1)
	s.Put(w2)
	assert.Equal(t, 1, s.Len(), "one workflow per listing")

	_, err := s.Get(w1.ID())
	require.ErrorIs(t, err, models.ErrNotFound)
	got, err := s.Get(w2.ID())
	require.NoError(t, err)
	assert.Same(t, w2, got)

	assert.Equal(t, 1, s.AbandonOwner("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"))
	assert.Equal(t, 0, s.Len())
	require.ErrorIs(t, s.Abandon(w2.ID()), models.ErrNotFound)
}

// aliased returns a string sharing memory with buf, the way a zero-copy
// HTTP framework hands out request values.
func aliased(buf []byte) string {
	return unsafe.String(&buf[0], len(buf))
}

func TestDraftDoesNotAliasInput(t *testing.T) {
	w := begin(t, &fakeRedeemer{}, &fakePersister{})

	sizeBuf := []byte("XL")
	require.NoError(t, w.SelectSize(aliased(sizeBuf)))
	require.NoError(t, w.Next())

	addr := validShipping()
	zipBuf := []byte("N1 9GU")
	addr.PostalCode = aliased(zipBuf)
	require.NoError(t, w.SetShipping(addr))

	copy(sizeBuf, "Ad")
	copy(zipBuf, "zzzzzz")

	d := w.Draft()
	assert.Equal(t, "XL", d.Size)
	assert.Equal(t, "N1 9GU", d.Shipping.PostalCode)
}
