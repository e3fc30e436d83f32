// Package metrics holds the gateway's runtime counters. Everything is
// atomic so concurrent message handlers can update freely; the stats
// endpoint reads a point-in-time snapshot.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics is the process-wide counter set.
type Metrics struct {
	start time.Time

	Messages         atomic.Uint64
	RateLimited      atomic.Uint64
	EchoesDropped    atomic.Uint64
	Errors           atomic.Uint64
	TruncatedReplies atomic.Uint64

	costMicros atomic.Uint64 // total cost stored as microdollars
}

func New() *Metrics {
	return &Metrics{start: time.Now()}
}

// Uptime returns the elapsed time since process start.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.start)
}

// AddCost accumulates a backend invocation's cost in USD.
func (m *Metrics) AddCost(usd float64) {
	m.costMicros.Add(uint64(usd * 1e6))
}

// TotalCostUSD returns the cumulative backend cost.
func (m *Metrics) TotalCostUSD() float64 {
	return float64(m.costMicros.Load()) / 1e6
}
