package pricer

import (
	"sync"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// Cell holds the latest price snapshot. One writer (the feed loop) and any
// number of readers share it; reads and writes go through the same lock.
type Cell struct {
	mu     sync.Mutex
	latest domain.PriceSnapshot
	set    bool
}

// Set replaces the latest snapshot.
func (c *Cell) Set(snapshot domain.PriceSnapshot) {
	c.mu.Lock()
	c.latest = snapshot
	c.set = true
	c.mu.Unlock()
}

// LatestPrice returns a copy of the latest snapshot, false until the first Set.
func (c *Cell) LatestPrice() (domain.PriceSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.set
}
