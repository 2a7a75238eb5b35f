package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot latest known price with the moment it was observed.
type PriceSnapshot struct {
	Price      decimal.Decimal
	ObservedAt time.Time
}

// Age returns how old the snapshot is relative to now.
func (p PriceSnapshot) Age(now time.Time) time.Duration {
	if p.ObservedAt.IsZero() {
		return 0
	}
	return now.Sub(p.ObservedAt)
}

// StaleAt reports whether the snapshot is older than maxAge at now.
// A non-positive maxAge never marks a snapshot stale.
func (p PriceSnapshot) StaleAt(now time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && p.Age(now) > maxAge
}
