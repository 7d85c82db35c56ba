package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRefresh(t *testing.T) {
	m := newMarket()

	m.ObserveRefresh(nil, time.Second, 3, 2)
	m.ObserveRefresh(errors.New("rpc"), time.Second, 0, 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.refreshes.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.refreshes.WithLabelValues("error")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.listings.WithLabelValues("available")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.listings.WithLabelValues("sold")))
}

func TestObserveTx(t *testing.T) {
	m := newMarket()

	m.ObserveTx("buy", "", 2*time.Second)
	m.ObserveTx("buy", "insufficient_funds", 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.transactions.WithLabelValues("buy", "confirmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transactions.WithLabelValues("buy", "insufficient_funds")))
}

func TestNilMarketIsNoop(t *testing.T) {
	var m *Market
	m.ObserveRefresh(nil, 0, 0, 0)
	m.ObserveTx("buy", "", 0)
	m.ObserveUpload(nil)
	m.ObserveRequest("GET", "/", 200, 0)
	m.ObserveRedemptionStep("shipping")
	m.SetIndexerCursor(1)
}
