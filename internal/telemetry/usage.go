// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"fmt"
	"sync"
	"time"
)

// DefaultRatePer1K is the flat estimated price in dollars per 1000 tokens.
const DefaultRatePer1K = 0.0015

// =============================================================================
// USAGE COUNTER
// =============================================================================

// UsageCounter accumulates tokens consumed and the estimated cost. It is
// safe for concurrent use; a zero value is not usable, call NewUsageCounter.
type UsageCounter struct {
	mu       sync.Mutex
	rate     float64
	tokens   int
	cost     float64
	requests int
	since    time.Time
}

// Snapshot is a copy of the counter's totals.
type Snapshot struct {
	Tokens    int       `json:"tokens"`
	Cost      float64   `json:"cost"`
	Requests  int       `json:"requests"`
	RatePer1K float64   `json:"rate_per_1k"`
	Since     time.Time `json:"since"`
}

// NewUsageCounter creates a counter priced at ratePer1K dollars per 1000
// tokens. A non-positive rate selects DefaultRatePer1K.
func NewUsageCounter(ratePer1K float64) *UsageCounter {
	if ratePer1K <= 0 {
		ratePer1K = DefaultRatePer1K
	}
	return &UsageCounter{
		rate:  ratePer1K,
		since: time.Now(),
	}
}

// =============================================================================
// RECORDING
// =============================================================================

// Record adds totalTokens to the counter and returns the cost added.
// Non-positive counts are ignored.
func (u *UsageCounter) Record(totalTokens int) float64 {
	if totalTokens <= 0 {
		return 0
	}
	delta := float64(totalTokens) / 1000 * u.rate

	u.mu.Lock()
	defer u.mu.Unlock()

	u.tokens += totalTokens
	u.cost += delta
	u.requests++
	return delta
}

// Estimate returns what totalTokens would cost without recording it.
func (u *UsageCounter) Estimate(totalTokens int) float64 {
	if totalTokens <= 0 {
		return 0
	}
	return float64(totalTokens) / 1000 * u.rate
}

// Reset zeroes the totals.
func (u *UsageCounter) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.tokens = 0
	u.cost = 0
	u.requests = 0
	u.since = time.Now()
}

// =============================================================================
// QUERIES
// =============================================================================

// Tokens returns the total tokens recorded.
func (u *UsageCounter) Tokens() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tokens
}

// Cost returns the total estimated cost in dollars.
func (u *UsageCounter) Cost() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cost
}

// Snapshot returns a consistent copy of all totals.
func (u *UsageCounter) Snapshot() Snapshot {
	u.mu.Lock()
	defer u.mu.Unlock()
	return Snapshot{
		Tokens:    u.tokens,
		Cost:      u.cost,
		Requests:  u.requests,
		RatePer1K: u.rate,
		Since:     u.since,
	}
}

// String formats the snapshot for the status line.
func (s Snapshot) String() string {
	return fmt.Sprintf("%d tokens across %d requests, est. $%.4f", s.Tokens, s.Requests, s.Cost)
}
