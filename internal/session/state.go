package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/attune-ai/attune/internal/domain"
)

// StatsDelta is the engagement bookkeeping a session accumulates for one
// insight category before it is flushed to durable storage on close.
type StatsDelta struct {
	Shown   int
	Engaged int
}

// State is everything the engine holds in memory for one active session:
// the pending insight queue, the engagement estimator, the interrupt
// budget, delivery counters and the host-controlled settings. None of it
// survives a process restart, and it is not shareable across server
// instances without an external store.
type State struct {
	ID          uuid.UUID
	ProfileID   uuid.UUID
	WorkspaceID uuid.UUID
	StartedAt   time.Time

	mu         sync.Mutex
	settings   domain.SessionSettings
	engagement Estimator
	budget     *InterruptBudget

	queue           []*domain.QueuedInsight
	delivered       int
	lastDeliveredAt time.Time
	lastDeliveredBy map[domain.InsightType]time.Time

	topic         string
	topicCounts   map[string]int
	messages      int
	lengthFlagged bool

	statsDelta map[domain.InsightType]*StatsDelta
}

func newState(profileID, workspaceID uuid.UUID, settings domain.SessionSettings, budgetLimit int, now time.Time) *State {
	if settings.MaxInterruptsPerHour > 0 {
		budgetLimit = settings.MaxInterruptsPerHour
	}
	return &State{
		ID:              uuid.New(),
		ProfileID:       profileID,
		WorkspaceID:     workspaceID,
		StartedAt:       now,
		settings:        settings,
		budget:          NewInterruptBudget(budgetLimit),
		lastDeliveredBy: make(map[domain.InsightType]time.Time),
		topicCounts:     make(map[string]int),
		statsDelta:      make(map[domain.InsightType]*StatsDelta),
	}
}

func (s *State) Settings() domain.SessionSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings replaces the session switches. A new hourly cap re-arms
// the budget limit without forgetting what is already spent.
func (s *State) UpdateSettings(settings domain.SessionSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	if settings.MaxInterruptsPerHour > 0 {
		s.budget.limit = settings.MaxInterruptsPerHour
	}
}

// RecordActivity feeds one input sample to the engagement estimator and
// optionally notes the live conversation topic.
func (s *State) RecordActivity(chars int, topic string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engagement.Record(chars, at)
	if topic != "" {
		s.topic = topic
	}
}

// RecordMessage notes one user message and its extracted topics.
func (s *State) RecordMessage(chars int, topics []string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages++
	s.engagement.Record(chars, at)
	for _, t := range topics {
		s.topicCounts[t]++
	}
}

func (s *State) Messages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages
}

// Topic is the most recently declared conversation topic.
func (s *State) Topic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

// TopTopics returns the session's most mentioned extracted topics.
func (s *State) TopTopics(limit int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	topics := make([]string, 0, len(s.topicCounts))
	for t := range s.topicCounts {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if s.topicCounts[topics[i]] != s.topicCounts[topics[j]] {
			return s.topicCounts[topics[i]] > s.topicCounts[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > limit {
		topics = topics[:limit]
	}
	return topics
}

// NoteLongSession marks the session as flagged for unusual length and
// reports whether this call was the first to do so. The flag never
// clears; one nudge per session is enough.
func (s *State) NoteLongSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lengthFlagged {
		return false
	}
	s.lengthFlagged = true
	return true
}

// Level reads the live engagement estimate.
func (s *State) Level(now time.Time) domain.EngagementLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engagement.Level(now)
}

// IdleFor is how long the session has gone without input.
func (s *State) IdleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engagement.IdleFor(now)
}

// BudgetAllows reports whether the interrupt budget has room.
func (s *State) BudgetAllows(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget.Allow(now)
}

// BudgetUsed reports spent budget in the current window.
func (s *State) BudgetUsed(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget.Used(now)
}

// Enqueue adds a pending insight, pruning to capacity. Expired entries go
// first, lowest priority first; if everything pending is fresh, the
// lowest-priority entry makes room.
func (s *State) Enqueue(q *domain.QueuedInsight, capacity int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.queue[:0]
	for _, existing := range s.queue {
		if existing.State == domain.StatePending && existing.ExpiredAt(now) {
			_ = existing.TransitionTo(domain.StateExpired, now)
			continue
		}
		kept = append(kept, existing)
	}
	s.queue = kept

	s.queue = append(s.queue, q)
	if pending := s.pendingLocked(); len(pending) > capacity {
		victim := pending[0]
		for _, candidate := range pending[1:] {
			if candidate.Priority < victim.Priority {
				victim = candidate
			}
		}
		_ = victim.TransitionTo(domain.StateDismissed, now)
	}
}

func (s *State) pendingLocked() []*domain.QueuedInsight {
	var pending []*domain.QueuedInsight
	for _, q := range s.queue {
		if q.State == domain.StatePending {
			pending = append(pending, q)
		}
	}
	return pending
}

// Pending snapshots the queue's undelivered entries.
func (s *State) Pending() []*domain.QueuedInsight {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.QueuedInsight(nil), s.pendingLocked()...)
}

// Find returns the queued insight with the given id.
func (s *State) Find(id uuid.UUID) (*domain.QueuedInsight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.queue {
		if q.ID == id {
			return q, true
		}
	}
	return nil, false
}

// MarkDelivered spends budget and updates delivery bookkeeping for one
// surfaced insight.
func (s *State) MarkDelivered(q *domain.QueuedInsight, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget.Consume(now)
	s.delivered++
	s.lastDeliveredAt = now
	s.lastDeliveredBy[q.Type] = now
	s.deltaLocked(q.Type).Shown++
}

// MarkEngaged counts a positive reaction for relevance learning.
func (s *State) MarkEngaged(t domain.InsightType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deltaLocked(t).Engaged++
}

func (s *State) deltaLocked(t domain.InsightType) *StatsDelta {
	d, ok := s.statsDelta[t]
	if !ok {
		d = &StatsDelta{}
		s.statsDelta[t] = d
	}
	return d
}

// Delivered reports how many insights this session has surfaced.
func (s *State) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

// LastDeliveredAt is when the session last surfaced anything.
func (s *State) LastDeliveredAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDeliveredAt
}

// LastDeliveredOf is when the session last surfaced the given category.
func (s *State) LastDeliveredOf(t domain.InsightType) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.lastDeliveredBy[t]
	return at, ok
}

// DrainStats hands out the accumulated engagement deltas and resets them,
// so a flush never double-counts.
func (s *State) DrainStats() map[domain.InsightType]StatsDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.InsightType]StatsDelta, len(s.statsDelta))
	for t, d := range s.statsDelta {
		out[t] = *d
	}
	s.statsDelta = make(map[domain.InsightType]*StatsDelta)
	return out
}
