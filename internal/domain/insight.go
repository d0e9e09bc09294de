package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsightType is the category of a proactive insight.
type InsightType string

const (
	// InsightContradiction flags stored beliefs that conflict with fresh
	// evidence.
	InsightContradiction InsightType = "contradiction"
	// InsightClarify asks to firm up a low-confidence belief the engine
	// keeps needing.
	InsightClarify InsightType = "clarify"
	// InsightNextStep suggests a concrete continuation of a tracked goal.
	InsightNextStep InsightType = "next_step"
	// InsightRecall resurfaces something the user said a while ago that
	// is relevant again.
	InsightRecall InsightType = "recall"
)

func ValidInsightType(t InsightType) bool {
	switch t {
	case InsightContradiction, InsightClarify, InsightNextStep, InsightRecall:
		return true
	}
	return false
}

func AllInsightTypes() []InsightType {
	return []InsightType{InsightContradiction, InsightClarify, InsightNextStep, InsightRecall}
}

// BasePriority is the starting score per category before per-insight
// modifiers. Contradictions outrank everything: acting on a wrong belief
// costs more than a missed suggestion.
func (t InsightType) BasePriority() int {
	switch t {
	case InsightContradiction:
		return 9
	case InsightClarify:
		return 7
	case InsightNextStep:
		return 5
	case InsightRecall:
		return 3
	}
	return 1
}

// TTL is how long a pending insight of this category stays deliverable.
func (t InsightType) TTL() time.Duration {
	switch t {
	case InsightContradiction:
		return 24 * time.Hour
	case InsightRecall:
		return 72 * time.Hour
	}
	return 48 * time.Hour
}

// InsightTrigger is the delivery moment an insight is allowed to use.
type InsightTrigger string

const (
	// TriggerSessionStart delivers in the opening moments of a session.
	TriggerSessionStart InsightTrigger = "session_start"
	// TriggerIdle delivers after the user has gone quiet mid-session.
	TriggerIdle InsightTrigger = "idle"
	// TriggerContextual delivers when the conversation touches the
	// insight's topic.
	TriggerContextual InsightTrigger = "contextual"
	// TriggerExplicit delivers only when the user asks what the engine
	// has for them.
	TriggerExplicit InsightTrigger = "explicit"
)

func ValidInsightTrigger(t InsightTrigger) bool {
	switch t {
	case TriggerSessionStart, TriggerIdle, TriggerContextual, TriggerExplicit:
		return true
	}
	return false
}

// InsightState is the lifecycle position of a queued insight.
type InsightState string

const (
	// StatePending sits in the queue waiting for a delivery moment.
	StatePending InsightState = "pending"
	// StateDelivered has been surfaced and awaits a reaction.
	StateDelivered InsightState = "delivered"
	// StateEngaged was expanded or acted on. Terminal.
	StateEngaged InsightState = "engaged"
	// StateDismissed was explicitly waved away. Terminal.
	StateDismissed InsightState = "dismissed"
	// StateIgnored was delivered and never interacted with. Terminal.
	StateIgnored InsightState = "ignored"
	// StateExpired aged out of the queue before delivery. Terminal.
	StateExpired InsightState = "expired"
)

// insightTransitions is the full set of legal state moves. Anything not
// listed is a bug in the caller, not a negotiable edge.
var insightTransitions = map[InsightState][]InsightState{
	StatePending:   {StateDelivered, StateExpired, StateDismissed},
	StateDelivered: {StateEngaged, StateDismissed, StateIgnored},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to InsightState) bool {
	for _, allowed := range insightTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the state ends the insight's lifecycle.
func (s InsightState) Terminal() bool {
	return len(insightTransitions[s]) == 0
}

// EngagementType is how the user reacted to a delivered insight.
type EngagementType string

const (
	EngagementExpand  EngagementType = "expand"
	EngagementAct     EngagementType = "act"
	EngagementDismiss EngagementType = "dismiss"
	EngagementIgnore  EngagementType = "ignore"
)

func ValidEngagementType(t EngagementType) bool {
	switch t {
	case EngagementExpand, EngagementAct, EngagementDismiss, EngagementIgnore:
		return true
	}
	return false
}

// Positive reports whether the reaction counts as engagement for
// relevance learning.
func (t EngagementType) Positive() bool {
	return t == EngagementExpand || t == EngagementAct
}

// StateFor maps a reaction to the resulting insight state.
func (t EngagementType) StateFor() InsightState {
	switch t {
	case EngagementExpand, EngagementAct:
		return StateEngaged
	case EngagementDismiss:
		return StateDismissed
	}
	return StateIgnored
}

// QueuedInsight is one candidate interruption: what to say, when it is
// allowed to be said, and what happened to it.
type QueuedInsight struct {
	ID        uuid.UUID   `json:"id"`
	ProfileID uuid.UUID   `json:"profile_id"`
	SessionID uuid.UUID   `json:"session_id"`
	Type      InsightType `json:"type"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	// Action is a concrete suggested step, when the insight has one.
	// Actionable insights score higher.
	Action string `json:"action,omitempty"`
	// Priority is the computed 1-10 delivery score.
	Priority int `json:"priority"`
	// Confidence is the effective confidence of the belief behind the
	// insight at generation time.
	Confidence float64 `json:"confidence"`
	// Triggers are the delivery moments this insight may use. Explicit
	// requests bypass this list.
	Triggers []InsightTrigger `json:"triggers"`
	// ContextTags match against live conversation topics for the
	// contextual trigger.
	ContextTags []string `json:"context_tags,omitempty"`
	// MinIdleSeconds is how long the user must have been quiet before the
	// idle trigger may fire for this insight.
	MinIdleSeconds int            `json:"min_idle_seconds,omitempty"`
	State          InsightState   `json:"state"`
	Engagement     EngagementType `json:"engagement,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
}

// TransitionTo validates and applies a state change, stamping the
// relevant timestamp.
func (q *QueuedInsight) TransitionTo(to InsightState, now time.Time) error {
	if !CanTransition(q.State, to) {
		return fmt.Errorf("insight %s: illegal transition %s -> %s", q.ID, q.State, to)
	}
	q.State = to
	switch to {
	case StateDelivered:
		q.DeliveredAt = &now
	case StateEngaged, StateDismissed, StateIgnored, StateExpired:
		q.ResolvedAt = &now
	}
	return nil
}

// ExpiredAt reports whether the insight's TTL has lapsed.
func (q *QueuedInsight) ExpiredAt(now time.Time) bool {
	return !q.ExpiresAt.IsZero() && !now.Before(q.ExpiresAt)
}

// AllowsTrigger reports whether the insight may deliver on the given
// moment. Explicit requests are always allowed.
func (q *QueuedInsight) AllowsTrigger(t InsightTrigger) bool {
	if t == TriggerExplicit {
		return true
	}
	for _, allowed := range q.Triggers {
		if allowed == t {
			return true
		}
	}
	return false
}

// InsightCategoryStats is the durable per-profile engagement history for
// one insight category. It is the only cross-session relevance signal.
type InsightCategoryStats struct {
	ProfileID   uuid.UUID   `json:"profile_id"`
	Type        InsightType `json:"type"`
	Shown       int         `json:"shown"`
	Engaged     int         `json:"engaged"`
	RatingSum   float64     `json:"rating_sum"`
	RatingCount int         `json:"rating_count"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// EngagementRate is the fraction of shown insights the user engaged with.
// With no history it returns 0.5 so new categories start neutral.
func (s InsightCategoryStats) EngagementRate() float64 {
	if s.Shown == 0 {
		return 0.5
	}
	return float64(s.Engaged) / float64(s.Shown)
}

// AvgRating is the mean explicit rating on a 1-5 scale, neutral when the
// user has never rated this category.
func (s InsightCategoryStats) AvgRating() float64 {
	if s.RatingCount == 0 {
		return 3.0
	}
	return s.RatingSum / float64(s.RatingCount)
}
