package session

import (
	"time"

	"github.com/attune-ai/attune/internal/domain"
)

// Engagement estimation thresholds. The estimator reads nothing but input
// cadence: it has no idea what the user is doing, only how hard they are
// typing and how long they have been quiet.
const (
	// DeepTypingRate is the smoothed chars-per-second above which the user
	// counts as locked in.
	DeepTypingRate = 4.0
	// IdleAfter is how long without input before a warm session reads as
	// idle.
	IdleAfter = 3 * time.Minute
	// AwayAfter is how long without input before the session reads as
	// abandoned.
	AwayAfter = 15 * time.Minute

	// rateSmoothing is the EMA weight of the newest typing-rate sample.
	rateSmoothing = 0.4
)

// Estimator is a leaky estimate of the user's attentional state, updated
// on every activity ping and decayed by elapsed silence. It is session
// memory only and is never persisted.
type Estimator struct {
	rate         float64
	lastActivity time.Time
}

// Record folds one activity sample into the typing-rate estimate. chars is
// how many characters arrived since the previous sample.
func (e *Estimator) Record(chars int, at time.Time) {
	if e.lastActivity.IsZero() {
		e.lastActivity = at
		e.rate = 0
		return
	}
	dt := at.Sub(e.lastActivity).Seconds()
	if dt <= 0 {
		dt = 1
	}
	sample := float64(chars) / dt
	e.rate = rateSmoothing*sample + (1-rateSmoothing)*e.rate
	e.lastActivity = at
}

// Level reads the current engagement level. Elapsed silence dominates the
// typing rate: a furious typist who stopped ten minutes ago is idle, not
// deep.
func (e *Estimator) Level(now time.Time) domain.EngagementLevel {
	if e.lastActivity.IsZero() {
		return domain.EngagementActive
	}
	elapsed := now.Sub(e.lastActivity)
	switch {
	case elapsed >= AwayAfter:
		return domain.EngagementAway
	case elapsed >= IdleAfter:
		return domain.EngagementIdle
	case e.rate >= DeepTypingRate:
		return domain.EngagementDeep
	}
	return domain.EngagementActive
}

// IdleFor is how long the user has been silent.
func (e *Estimator) IdleFor(now time.Time) time.Duration {
	if e.lastActivity.IsZero() {
		return 0
	}
	return now.Sub(e.lastActivity)
}
