package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("test")

	c.RecordFeedMessage("tick")
	c.RecordFeedMessage("tick")
	c.RecordFeedMessage("malformed")
	c.RecordTrade("buy")
	c.RecordRejection("buy", "insufficient_cash")
	c.RecordPersistFailure("balance")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ticksTotal.WithLabelValues("tick")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ticksTotal.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tradesTotal.WithLabelValues("buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejectionsTotal.WithLabelValues("buy", "insufficient_cash")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.persistFailures.WithLabelValues("balance")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.RecordPrice(decimal.RequireFromString("65000.1"), 1700000000)
	c.SetFeedConnected(true)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "test_feed_last_price 65000.1"), body)
	assert.True(t, strings.Contains(body, "test_feed_connected 1"), body)
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordFeedMessage("tick")
		c.RecordPrice(decimal.NewFromInt(1), 1)
		c.SetFeedConnected(true)
		c.RecordTrade("sell")
		c.RecordRejection("sell", "x")
		c.RecordPersistFailure("history")
		c.RecordBalances(decimal.Zero, decimal.Zero)
	})
	assert.Nil(t, c.Registry())
}
