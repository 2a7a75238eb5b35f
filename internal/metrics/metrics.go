// Package metrics provides paper trader metrics collection.
// It wraps Prometheus collectors to expose feed health, trade outcomes
// and ledger durability.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Collector provides paper trader metrics collection.
// All methods are safe on a nil receiver so components can run without metrics.
type Collector struct {
	registry *prometheus.Registry

	// Feed metrics
	ticksTotal    *prometheus.CounterVec
	lastPrice     prometheus.Gauge
	lastTickTime  prometheus.Gauge
	feedConnected prometheus.Gauge

	// Trade metrics
	tradesTotal     *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec

	// Ledger metrics
	persistFailures *prometheus.CounterVec
	cashBalance     prometheus.Gauge
	assetBalance    prometheus.Gauge
}

// NewCollector creates a new collector registered in its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "papertrader"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Total number of feed messages by outcome (tick, control, malformed)",
		},
		[]string{"result"},
	)

	c.lastPrice = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "last_price",
		Help:      "Latest accepted price",
	})

	c.lastTickTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "last_tick_timestamp_seconds",
		Help:      "Unix time of the latest accepted tick",
	})

	c.feedConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "connected",
		Help:      "1 while the streaming connection is open",
	})

	c.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_total",
			Help:      "Total number of executed trades",
		},
		[]string{"kind"},
	)

	c.rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rejections_total",
			Help:      "Total number of rejected trade requests by reason",
		},
		[]string{"operation", "reason"},
	)

	c.persistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "persist_failures_total",
			Help:      "Total number of failed ledger writes",
		},
		[]string{"target"},
	)

	c.cashBalance = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "cash_balance",
		Help:      "Current cash balance",
	})

	c.assetBalance = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "asset_balance",
		Help:      "Current asset balance",
	})

	c.registry.MustRegister(
		c.ticksTotal,
		c.lastPrice,
		c.lastTickTime,
		c.feedConnected,
		c.tradesTotal,
		c.rejectionsTotal,
		c.persistFailures,
		c.cashBalance,
		c.assetBalance,
	)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler returns an HTTP handler serving the exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordFeedMessage counts a feed message by result.
func (c *Collector) RecordFeedMessage(result string) {
	if c == nil {
		return
	}
	c.ticksTotal.WithLabelValues(result).Inc()
}

// RecordPrice stores the latest accepted price and its unix time.
func (c *Collector) RecordPrice(price decimal.Decimal, unix float64) {
	if c == nil {
		return
	}
	c.lastPrice.Set(price.InexactFloat64())
	c.lastTickTime.Set(unix)
}

// SetFeedConnected flips the connection gauge.
func (c *Collector) SetFeedConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.feedConnected.Set(1)
		return
	}
	c.feedConnected.Set(0)
}

// RecordTrade counts an executed trade.
func (c *Collector) RecordTrade(kind string) {
	if c == nil {
		return
	}
	c.tradesTotal.WithLabelValues(kind).Inc()
}

// RecordRejection counts a rejected request.
func (c *Collector) RecordRejection(operation, reason string) {
	if c == nil {
		return
	}
	c.rejectionsTotal.WithLabelValues(operation, reason).Inc()
}

// RecordPersistFailure counts a failed write to target.
func (c *Collector) RecordPersistFailure(target string) {
	if c == nil {
		return
	}
	c.persistFailures.WithLabelValues(target).Inc()
}

// RecordBalances stores the current balances.
func (c *Collector) RecordBalances(cash, asset decimal.Decimal) {
	if c == nil {
		return
	}
	c.cashBalance.Set(cash.InexactFloat64())
	c.assetBalance.Set(asset.InexactFloat64())
}
