package web

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/events"
	"github.com/vadiminshakov/papertrader/internal/metrics"
)

var testPair = domain.Pair{From: "BTC", To: "USD"}

type stubLedger struct {
	snap domain.BalanceSnapshot
}

func (s stubLedger) Snapshot() domain.BalanceSnapshot { return s.snap }

type stubFeed struct {
	snap domain.PriceSnapshot
	ok   bool
}

func (s stubFeed) LatestPrice() (domain.PriceSnapshot, bool) { return s.snap, s.ok }

func newTestServer() *Server {
	s := NewServer("", testPair, zap.NewNop())
	s.Prices = events.NewBroadcaster[domain.PriceTick](8)
	s.Balances = events.NewBroadcaster[domain.BalanceSnapshot](8)
	return s
}

// readEvent reads lines until a full SSE event (terminated by a blank line)
// and returns its event name and data.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()

	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if name != "" || data != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func openStream(t *testing.T, url string) *bufio.Reader {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	return bufio.NewReader(resp.Body)
}

func waitSubscribers(t *testing.T, n func() int) {
	t.Helper()
	require.Eventually(t, func() bool { return n() > 0 }, time.Second, 10*time.Millisecond)
}

func TestServer_Index(t *testing.T) {
	s := newTestServer()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/balance/stream")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_BalanceStream(t *testing.T) {
	s := newTestServer()
	s.Ledger = stubLedger{snap: domain.BalanceSnapshot{Pair: "BTC_USD", Cash: "20000", Asset: "0"}}

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	reader := openStream(t, srv.URL+"/balance/stream")

	name, data := readEvent(t, reader)
	assert.Equal(t, "balance", name)
	assert.JSONEq(t, `{"ts":"0001-01-01T00:00:00Z","pair":"BTC_USD","cash":"20000","asset":"0"}`, data)

	waitSubscribers(t, s.Balances.Subscribers)
	s.Balances.Publish(domain.BalanceSnapshot{Pair: "BTC_USD", Cash: "19000", Asset: "0.02", Price: "50000", TotalValue: "20000"})

	name, data = readEvent(t, reader)
	assert.Equal(t, "balance", name)
	assert.Contains(t, data, `"cash":"19000"`)
	assert.Contains(t, data, `"total_value":"20000"`)
}

func TestServer_PriceStream(t *testing.T) {
	s := newTestServer()
	observed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s.Feed = stubFeed{snap: domain.PriceSnapshot{Price: decimal.RequireFromString("65000.1"), ObservedAt: observed}, ok: true}

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	reader := openStream(t, srv.URL+"/price/stream")

	name, data := readEvent(t, reader)
	assert.Equal(t, "price", name)
	assert.JSONEq(t, `{"ts":"2024-06-01T10:00:00Z","pair":"BTC_USD","price":"65000.1"}`, data)

	waitSubscribers(t, s.Prices.Subscribers)
	s.Prices.Publish(domain.PriceTick{Timestamp: observed, Pair: "BTC_USD", Price: "65001"})

	_, data = readEvent(t, reader)
	assert.Contains(t, data, `"price":"65001"`)
}

func TestServer_PriceStreamWithoutPrice(t *testing.T) {
	s := newTestServer()
	s.Feed = stubFeed{}
	s.heartbeat = 20 * time.Millisecond

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	reader := openStream(t, srv.URL+"/price/stream")

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": ping\n", line)
}

func TestServer_StreamsUnavailable(t *testing.T) {
	s := NewServer("", testPair, nil)

	for _, path := range []string{"/price/stream", "/balance/stream"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestServer_StreamUnsubscribesOnDisconnect(t *testing.T) {
	s := newTestServer()

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/balance/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	waitSubscribers(t, s.Balances.Subscribers)
	cancel()
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	assert.Eventually(t, func() bool { return s.Balances.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer()
	collector := metrics.NewCollector("test")
	collector.RecordTrade("buy")
	s.Metrics = collector.Handler()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_engine_trades_total{kind="buy"} 1`)
}

func TestServer_StartStopsOnCancel(t *testing.T) {
	s := newTestServer()
	s.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
