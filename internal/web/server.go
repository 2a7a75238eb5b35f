package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/events"
)

const heartbeatInterval = 30 * time.Second

type balanceSource interface {
	Snapshot() domain.BalanceSnapshot
}

type priceSource interface {
	LatestPrice() (domain.PriceSnapshot, bool)
}

// Server exposes HTTP endpoints serving the HTML UI, SSE streams and metrics.
type Server struct {
	Addr     string
	Pair     domain.Pair
	Prices   *events.PriceBroadcaster
	Balances *events.BalanceBroadcaster
	Ledger   balanceSource
	Feed     priceSource
	Metrics  http.Handler

	logger    *zap.Logger
	heartbeat time.Duration
}

// NewServer creates a new web server instance.
func NewServer(addr string, pair domain.Pair, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Pair: pair, logger: logger, heartbeat: heartbeatInterval}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/price/stream", s.handlePriceStream)
	mux.HandleFunc("/balance/stream", s.handleBalanceStream)
	if s.Metrics != nil {
		mux.Handle("/metrics", s.Metrics)
	}
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dashboard listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handlePriceStream(w http.ResponseWriter, r *http.Request) {
	if s.Prices == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "price feed not available")
		return
	}

	var initial []domain.PriceTick
	if s.Feed != nil {
		if snap, ok := s.Feed.LatestPrice(); ok {
			initial = append(initial, domain.PriceTick{
				Timestamp: snap.ObservedAt,
				Pair:      s.Pair.String(),
				Price:     snap.Price.String(),
			})
		}
	}

	ch := s.Prices.Subscribe()
	defer s.Prices.Unsubscribe(ch)

	stream(s, w, r, "price", initial, ch)
}

func (s *Server) handleBalanceStream(w http.ResponseWriter, r *http.Request) {
	if s.Balances == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "ledger not available")
		return
	}

	var initial []domain.BalanceSnapshot
	if s.Ledger != nil {
		initial = append(initial, s.Ledger.Snapshot())
	}

	ch := s.Balances.Subscribe()
	defer s.Balances.Unsubscribe(ch)

	stream(s, w, r, "balance", initial, ch)
}

// stream writes initial and then every event from ch as SSE until the client
// goes away or ch is closed.
func stream[T any](s *Server, w http.ResponseWriter, r *http.Request, event string, initial []T, ch <-chan T) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(v T) bool {
		payload, err := json.Marshal(v)
		if err != nil {
			s.logger.Warn("encode stream event", zap.String("event", event), zap.Error(err))
			return true
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for _, v := range initial {
		if !send(v) {
			return
		}
	}

	// send a comment heartbeat so proxies keep connection
	interval := s.heartbeat
	if interval <= 0 {
		interval = heartbeatInterval
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case v, ok := <-ch:
			if !ok || !send(v) {
				return
			}
		}
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Paper Trader</title>
  <link href="https://fonts.googleapis.com/css2?family=Press+Start+2P&family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root { --bg:#ffffff; --ink:#111111; --ink-mid:#4d4d4d; --panel:#f6f6f6; }
    * { box-sizing:border-box; }
    body {
      margin:0;
      min-height:100vh;
      display:flex;
      align-items:center;
      justify-content:center;
      padding:2rem;
      background:var(--bg);
      color:var(--ink);
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    #app {
      width:min(900px, 96vw);
      background:var(--panel);
      border:3px solid var(--ink);
      padding:2rem;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:flex;
      flex-direction:column;
      gap:1.5rem;
    }
    header { display:flex; justify-content:space-between; align-items:flex-start; gap:1rem; }
    .eyebrow {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.55rem;
      text-transform:uppercase;
      letter-spacing:.2em;
      margin:0;
    }
    .status {
      font-size:.65rem;
      text-transform:uppercase;
      letter-spacing:.1em;
      border:2px solid var(--ink);
      padding:.4rem .9rem;
      background:#ffffff;
    }
    .grid { display:grid; grid-template-columns:repeat(auto-fit, minmax(200px, 1fr)); gap:1rem; }
    .card {
      border:3px solid var(--ink);
      padding:1.2rem;
      background:#fff;
      box-shadow:6px 6px 0 rgba(0,0,0,.12);
    }
    .card .label {
      font-size:.62rem;
      text-transform:uppercase;
      letter-spacing:.2em;
      color:var(--ink-mid);
    }
    .card .value { margin-top:.8rem; font-size:1.4rem; font-weight:700; }
    .updated { font-size:.6rem; color:var(--ink-mid); }
  </style>
</head>
<body>
  <div id="app">
    <header>
      <p class="eyebrow">paper trader <span id="pair"></span></p>
      <div id="sse-status" class="status">Connecting…</div>
    </header>
    <section class="grid">
      <div class="card"><div class="label">Price</div><div id="price" class="value">—</div></div>
      <div class="card"><div class="label">Cash</div><div id="cash" class="value">—</div></div>
      <div class="card"><div class="label">Asset</div><div id="asset" class="value">—</div></div>
      <div class="card"><div class="label">Total value</div><div id="total" class="value">—</div></div>
    </section>
    <div id="updated" class="updated">Waiting…</div>
  </div>
<script>
const statusEl = document.getElementById('sse-status');
const el = (id) => document.getElementById(id);

const formatTs = (ts) => {
  const date = new Date(ts);
  return Number.isNaN(date.getTime()) ? 'Waiting…' : date.toLocaleTimeString([], { hour12:false });
};

function connect(path, event, handle){
  const source = new EventSource(path);
  statusEl.textContent = 'Status: receiving data';
  source.addEventListener(event, (e) => {
    try{
      handle(JSON.parse(e.data));
    }catch(err){
      console.error('payload parse', err);
    }
  });
  source.addEventListener('error', () => {
    statusEl.textContent = 'Reconnecting…';
    source.close();
    setTimeout(() => connect(path, event, handle), 2000);
  });
}

connect('/price/stream', 'price', (tick) => {
  el('pair').textContent = tick.pair;
  el('price').textContent = tick.price;
  el('updated').textContent = 'Price at ' + formatTs(tick.ts);
});

connect('/balance/stream', 'balance', (snap) => {
  el('pair').textContent = snap.pair;
  el('cash').textContent = snap.cash;
  el('asset').textContent = snap.asset;
  if(snap.total_value){
    el('total').textContent = snap.total_value;
  }
});
</script>
</body>
</html>`
