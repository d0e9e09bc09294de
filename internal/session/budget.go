package session

import "time"

// budgetWindow is the rolling interrupt-budget window. It slides from the
// first delivery after a reset, not from the top of the clock hour.
const budgetWindow = time.Hour

// InterruptBudget is a rolling hourly cap on delivered insights. The
// window starts when the first unit is consumed and resets wholesale once
// a full hour has passed since then.
type InterruptBudget struct {
	limit       int
	used        int
	windowStart time.Time
}

func NewInterruptBudget(limit int) *InterruptBudget {
	return &InterruptBudget{limit: limit}
}

func (b *InterruptBudget) rollover(now time.Time) {
	if !b.windowStart.IsZero() && now.Sub(b.windowStart) >= budgetWindow {
		b.used = 0
		b.windowStart = time.Time{}
	}
}

// Allow reports whether one more delivery fits in the current window.
func (b *InterruptBudget) Allow(now time.Time) bool {
	b.rollover(now)
	return b.used < b.limit
}

// Consume spends one unit of budget.
func (b *InterruptBudget) Consume(now time.Time) {
	b.rollover(now)
	if b.windowStart.IsZero() {
		b.windowStart = now
	}
	b.used++
}

// Used reports how many units the current window has spent.
func (b *InterruptBudget) Used(now time.Time) int {
	b.rollover(now)
	return b.used
}
