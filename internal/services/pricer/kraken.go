package pricer

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/events"
	"github.com/vadiminshakov/papertrader/internal/metrics"
	"github.com/vadiminshakov/papertrader/pkg/retrier"
)

// DefaultKrakenURL public Kraken WebSocket endpoint.
const DefaultKrakenURL = "wss://ws.kraken.com/"

const (
	handshakeTimeout = 10 * time.Second
	closeGracePeriod = time.Second
	maxLoggedPayload = 256
)

// KrakenFeed streams ticker updates for one pair and keeps the latest price.
// It does not reconnect: once the connection ends, LatestPrice keeps
// returning the last accepted snapshot.
type KrakenFeed struct {
	url     string
	pair    domain.Pair
	logger  *zap.Logger
	dialer  *websocket.Dialer
	retrier *retrier.Retrier
	cell    *Cell
	ticks   *events.PriceBroadcaster
	metrics *metrics.Collector
	now     func() time.Time

	malformedLog rate.Sometimes

	mu         sync.Mutex
	conn       *websocket.Conn
	cancelDial context.CancelFunc
	closed     bool
}

// Option configures a KrakenFeed.
type Option func(*KrakenFeed)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *KrakenFeed) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(f *KrakenFeed) {
		if d != nil {
			f.dialer = d
		}
	}
}

// WithRetrier sets the retry policy of the initial dial.
func WithRetrier(r *retrier.Retrier) Option {
	return func(f *KrakenFeed) {
		if r != nil {
			f.retrier = r
		}
	}
}

// WithTicks publishes every accepted price to b.
func WithTicks(b *events.PriceBroadcaster) Option {
	return func(f *KrakenFeed) {
		f.ticks = b
	}
}

// WithMetrics records feed metrics into c.
func WithMetrics(c *metrics.Collector) Option {
	return func(f *KrakenFeed) {
		f.metrics = c
	}
}

// WithClock overrides the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(f *KrakenFeed) {
		if now != nil {
			f.now = now
		}
	}
}

// NewKrakenFeed creates a feed for pair. An empty url selects DefaultKrakenURL.
func NewKrakenFeed(url string, pair domain.Pair, opts ...Option) *KrakenFeed {
	if url == "" {
		url = DefaultKrakenURL
	}

	f := &KrakenFeed{
		url:          url,
		pair:         pair,
		logger:       zap.NewNop(),
		dialer:       &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
		cell:         &Cell{},
		now:          time.Now,
		malformedLog: rate.Sometimes{First: 5, Interval: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.retrier == nil {
		f.retrier = retrier.New(retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			f.logger.Warn("feed dial failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}))
	}

	return f
}

// Run connects, subscribes to the ticker channel and processes messages until
// the connection ends. It returns nil when stopped through Close or ctx.
func (f *KrakenFeed) Run(ctx context.Context) error {
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	f.mu.Lock()
	f.cancelDial = cancel
	f.mu.Unlock()

	conn, err := f.connect(dialCtx)
	if err != nil {
		if f.isClosed() || ctx.Err() != nil {
			return nil
		}
		return err
	}
	if conn == nil {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		_ = f.Close()
	})
	defer stop()

	f.metrics.SetFeedConnected(true)
	defer f.metrics.SetFeedConnected(false)

	return f.receive(conn)
}

func (f *KrakenFeed) connect(ctx context.Context) (*websocket.Conn, error) {
	if f.isClosed() {
		return nil, nil
	}

	conn, err := retrier.DoWithData(f.retrier, ctx, func(ctx context.Context) (*websocket.Conn, error) {
		conn, resp, err := f.dialer.DialContext(ctx, f.url, nil)
		if err != nil {
			// the venue answered but refused the upgrade, retrying will not help
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, retrier.Permanent(errors.Wrapf(err, "dial %s: status %d", f.url, resp.StatusCode))
			}
			return nil, errors.Wrapf(err, "dial %s", f.url)
		}
		return conn, nil
	})
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		conn.Close()
		return nil, nil
	}
	f.conn = conn
	f.mu.Unlock()

	if err := conn.WriteJSON(newSubscribeRequest(f.pair)); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "send ticker subscription")
	}

	f.logger.Info("feed connection established",
		zap.String("url", f.url),
		zap.String("pair", f.pair.WSName()))

	return conn, nil
}

func (f *KrakenFeed) receive(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if f.isClosed() {
				f.logger.Info("feed connection closed")
				return nil
			}
			f.logger.Error("feed connection lost, prices will go stale", zap.Error(err))
			_ = f.Close()
			return errors.Wrap(err, "read feed message")
		}

		_ = f.HandleMessage(raw)
	}
}

// HandleMessage processes one raw message. Ticker payloads replace the latest
// price; control events are logged. Malformed payloads are logged, discarded
// and reported as domain.ErrMalformedFeedMessage.
func (f *KrakenFeed) HandleMessage(raw []byte) error {
	kind, price, event, err := parseMessage(raw)
	if err != nil {
		f.metrics.RecordFeedMessage("malformed")
		f.malformedLog.Do(func() {
			f.logger.Warn("discarding malformed feed message",
				zap.ByteString("payload", truncate(raw, maxLoggedPayload)),
				zap.Error(err))
		})
		return err
	}

	if kind == messageControl {
		f.metrics.RecordFeedMessage("control")
		f.handleControl(event)
		return nil
	}

	snapshot := domain.PriceSnapshot{Price: price, ObservedAt: f.now().UTC()}
	f.cell.Set(snapshot)

	f.metrics.RecordFeedMessage("tick")
	f.metrics.RecordPrice(price, float64(snapshot.ObservedAt.UnixNano())/1e9)
	f.ticks.Publish(domain.PriceTick{
		Timestamp: snapshot.ObservedAt,
		Pair:      f.pair.String(),
		Price:     price.String(),
	})
	f.logger.Debug("price updated", zap.String("price", price.String()))

	return nil
}

func (f *KrakenFeed) handleControl(event controlEvent) {
	switch {
	case event.Event == "error" || event.Status == "error":
		f.logger.Warn("feed reported an error",
			zap.String("event", event.Event),
			zap.String("error", event.ErrorMessage))
	case event.Event == "heartbeat":
	default:
		f.logger.Debug("feed control event",
			zap.String("event", event.Event),
			zap.String("status", event.Status))
	}
}

// LatestPrice returns the latest accepted price, false before the first tick.
func (f *KrakenFeed) LatestPrice() (domain.PriceSnapshot, bool) {
	return f.cell.LatestPrice()
}

// Cell exposes the shared price cell.
func (f *KrakenFeed) Cell() *Cell {
	return f.cell
}

// Close terminates the connection. It is idempotent and safe to call from
// any goroutine; a feed closed before Run never connects.
func (f *KrakenFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	if f.cancelDial != nil {
		f.cancelDial()
	}

	if f.conn == nil {
		return nil
	}

	// WriteControl may run concurrently with the reader
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	writeErr := f.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	closeErr := f.conn.Close()
	if writeErr != nil && !errors.Is(writeErr, websocket.ErrCloseSent) {
		f.logger.Debug("feed close frame not sent", zap.Error(writeErr))
	}

	return closeErr
}

func (f *KrakenFeed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func truncate(raw []byte, n int) []byte {
	if len(raw) <= n {
		return raw
	}
	return raw[:n]
}
