package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attune-ai/attune/internal/domain"
	"github.com/attune-ai/attune/internal/session"
)

// Delivery pacing constants
const (
	// MaxQueuedInsights caps a session's pending queue.
	MaxQueuedInsights = 20
	// DefaultMaxPerSession is the session-total delivery cap.
	DefaultMaxPerSession = 5
	// MinDeliveryInterval is the shortest gap between two deliveries.
	MinDeliveryInterval = 5 * time.Minute
	// NoveltyWindow is how recently a category must have been delivered
	// to count as repetitive when scoring a new insight of the same kind.
	NoveltyWindow = 30 * time.Minute
	// QuietModePriorityFloor is the minimum priority that gets through
	// quiet mode.
	QuietModePriorityFloor = 7
)

// Priority score modifiers, applied to the category base and clamped 1-10.
const (
	goalAlignmentBonus   = 1
	highConfidenceBonus  = 1
	lowConfidencePenalty = 1
	actionabilityBonus   = 1
	noveltyPenalty       = 2
	ratingBonus          = 1
)

var (
	ErrSessionGone     = errors.New("session not active")
	ErrInsightNotFound = errors.New("insight not found in session queue")
)

// InsightCandidate is what a pattern detector hands the queue. Numeric
// fields outside range are clamped, not rejected: detectors feed soft
// scoring, not strict invariants.
type InsightCandidate struct {
	Type           domain.InsightType
	Title          string
	Body           string
	Action         string
	Confidence     float64
	Triggers       []domain.InsightTrigger
	ContextTags    []string
	MinIdleSeconds int
}

// InsightService owns queueing, gating and delivery of proactive
// insights. Queue state lives on the session; the only durable writes are
// the per-category engagement counters that feed relevance ranking.
type InsightService struct {
	hub        *session.Hub
	dimensions domain.DimensionStore
	stats      domain.InsightStatsStore
	logger     *zap.Logger
}

func NewInsightService(hub *session.Hub, dimensions domain.DimensionStore, stats domain.InsightStatsStore, logger *zap.Logger) *InsightService {
	return &InsightService{hub: hub, dimensions: dimensions, stats: stats, logger: logger}
}

// Queue scores and enqueues a candidate insight on a session. The queue
// prunes itself to capacity, cheapest entries first.
func (s *InsightService) Queue(ctx context.Context, sess *session.State, c InsightCandidate) (*domain.QueuedInsight, error) {
	if !domain.ValidInsightType(c.Type) {
		return nil, fmt.Errorf("invalid insight type %q", c.Type)
	}
	for _, t := range c.Triggers {
		if !domain.ValidInsightTrigger(t) {
			return nil, fmt.Errorf("invalid insight trigger %q", t)
		}
	}
	if len(c.Triggers) == 0 {
		c.Triggers = []domain.InsightTrigger{domain.TriggerExplicit}
	}
	c.Confidence = clampUnit(c.Confidence)
	if c.MinIdleSeconds < 0 {
		c.MinIdleSeconds = 0
	}

	now := time.Now().UTC()
	q := &domain.QueuedInsight{
		ID:             uuid.New(),
		ProfileID:      sess.ProfileID,
		SessionID:      sess.ID,
		Type:           c.Type,
		Title:          c.Title,
		Body:           c.Body,
		Action:         c.Action,
		Priority:       s.scorePriority(ctx, sess, c, now),
		Confidence:     c.Confidence,
		Triggers:       c.Triggers,
		ContextTags:    c.ContextTags,
		MinIdleSeconds: c.MinIdleSeconds,
		State:          domain.StatePending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(c.Type.TTL()),
	}
	sess.Enqueue(q, MaxQueuedInsights, now)

	s.logger.Debug("insight queued",
		zap.String("session_id", sess.ID.String()),
		zap.String("type", string(q.Type)),
		zap.Int("priority", q.Priority))
	return q, nil
}

// scorePriority is the bounded weighted sum behind a fresh insight's 1-10
// delivery score. Every lookup is best-effort: a failed read costs the
// bonus, never the insight.
func (s *InsightService) scorePriority(ctx context.Context, sess *session.State, c InsightCandidate, now time.Time) int {
	score := c.Type.BasePriority()

	if s.alignsWithGoals(ctx, sess.ProfileID, c.ContextTags) {
		score += goalAlignmentBonus
	}
	switch {
	case c.Confidence >= 0.7:
		score += highConfidenceBonus
	case c.Confidence > 0 && c.Confidence < 0.4:
		score -= lowConfidencePenalty
	}
	if c.Action != "" {
		score += actionabilityBonus
	}
	if at, ok := sess.LastDeliveredOf(c.Type); ok && now.Sub(at) < NoveltyWindow {
		score -= noveltyPenalty
	}
	if s.stats != nil {
		if all, err := s.stats.ListByProfile(ctx, sess.ProfileID); err == nil {
			for _, st := range all {
				if st.Type != c.Type || st.RatingCount == 0 {
					continue
				}
				if avg := st.AvgRating(); avg >= 4 {
					score += ratingBonus
				} else if avg <= 2 {
					score -= ratingBonus
				}
			}
		}
	}

	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

func (s *InsightService) alignsWithGoals(ctx context.Context, profileID uuid.UUID, tags []string) bool {
	if len(tags) == 0 || s.dimensions == nil {
		return false
	}
	score, err := s.dimensions.Get(ctx, profileID, domain.DomainGoals)
	if err != nil {
		return false
	}
	goals, ok := score.Value.(domain.GoalsValue)
	if !ok {
		return false
	}
	for _, goal := range goals.Active {
		text := strings.ToLower(goal.Text)
		for _, tag := range tags {
			if tag != "" && strings.Contains(text, strings.ToLower(tag)) {
				return true
			}
		}
	}
	return false
}

// Next is the sole consume entry point for the queue. It walks the gate
// chain in order, then filters and ranks what is left; the winner is
// marked delivered and charged against the interrupt budget. A nil
// insight with a nil error means "nothing right now", which is the common
// case and not a failure.
func (s *InsightService) Next(ctx context.Context, sess *session.State, trigger domain.InsightTrigger, topic string, idleSeconds float64) (*domain.QueuedInsight, error) {
	if !domain.ValidInsightTrigger(trigger) {
		return nil, fmt.Errorf("invalid insight trigger %q", trigger)
	}
	now := time.Now().UTC()
	settings := sess.Settings()

	// Gate chain: first refusal wins.
	switch {
	case !settings.InsightsEnabled:
		return nil, nil
	case settings.ActiveConversation:
		return nil, nil
	case settings.FocusMode:
		return nil, nil
	case !s.canSurface(sess, settings, now):
		return nil, nil
	case sess.Delivered() >= maxPerSession(settings):
		return nil, nil
	case !sess.LastDeliveredAt().IsZero() && now.Sub(sess.LastDeliveredAt()) < MinDeliveryInterval:
		return nil, nil
	case !settings.TriggerEnabled(trigger):
		return nil, nil
	}

	if topic == "" {
		topic = sess.Topic()
	}
	if idleSeconds <= 0 {
		idleSeconds = sess.IdleFor(now).Seconds()
	}

	var best *domain.QueuedInsight
	var bestRate float64
	rates := s.engagementRates(ctx, sess)
	for _, q := range sess.Pending() {
		if !s.deliverable(q, settings, trigger, topic, idleSeconds, now) {
			continue
		}
		rate := rates[q.Type]
		if best == nil || q.Priority > best.Priority ||
			(q.Priority == best.Priority && rate > bestRate) {
			best = q
			bestRate = rate
		}
	}
	if best == nil {
		return nil, nil
	}

	if err := best.TransitionTo(domain.StateDelivered, now); err != nil {
		return nil, err
	}
	sess.MarkDelivered(best, now)

	s.logger.Info("insight delivered",
		zap.String("session_id", sess.ID.String()),
		zap.String("insight_id", best.ID.String()),
		zap.String("type", string(best.Type)),
		zap.String("trigger", string(trigger)))
	return best, nil
}

// canSurface is the engagement-side gate: a surface to put it on, a user
// who may be interrupted, and budget left to spend.
func (s *InsightService) canSurface(sess *session.State, settings domain.SessionSettings, now time.Time) bool {
	if !settings.BubbleMode {
		return false
	}
	if sess.Level(now) == domain.EngagementDeep {
		return false
	}
	return sess.BudgetAllows(now)
}

func (s *InsightService) deliverable(q *domain.QueuedInsight, settings domain.SessionSettings, trigger domain.InsightTrigger, topic string, idleSeconds float64, now time.Time) bool {
	if q.ExpiredAt(now) {
		return false
	}
	if settings.TypeMuted(q.Type) {
		return false
	}
	if settings.QuietMode && q.Priority < QuietModePriorityFloor {
		return false
	}
	if !q.AllowsTrigger(trigger) {
		return false
	}
	switch trigger {
	case domain.TriggerIdle:
		if idleSeconds < float64(q.MinIdleSeconds) {
			return false
		}
	case domain.TriggerContextual:
		if !topicMatches(q.ContextTags, topic) {
			return false
		}
	}
	return true
}

// topicMatches is a substring match of any context tag against the live
// topic, case-insensitive.
func topicMatches(tags []string, topic string) bool {
	if topic == "" {
		return false
	}
	lower := strings.ToLower(topic)
	for _, tag := range tags {
		if tag != "" && strings.Contains(lower, strings.ToLower(tag)) {
			return true
		}
	}
	return false
}

// engagementRates merges durable per-category history with this session's
// unflushed deltas. Categories without history rank at the 0.5 neutral
// default.
func (s *InsightService) engagementRates(ctx context.Context, sess *session.State) map[domain.InsightType]float64 {
	rates := make(map[domain.InsightType]float64, 4)
	for _, t := range domain.AllInsightTypes() {
		rates[t] = 0.5
	}
	if s.stats == nil {
		return rates
	}
	all, err := s.stats.ListByProfile(ctx, sess.ProfileID)
	if err != nil {
		s.logger.Warn("engagement history unavailable, ranking on defaults", zap.Error(err))
		return rates
	}
	for _, st := range all {
		rates[st.Type] = st.EngagementRate()
	}
	return rates
}

// RecordEngagement applies the user's reaction to a delivered insight.
// Expanding or acting counts as engagement and feeds future ranking;
// dismissing or ignoring only closes the lifecycle.
func (s *InsightService) RecordEngagement(ctx context.Context, sess *session.State, insightID uuid.UUID, reaction domain.EngagementType) (*domain.QueuedInsight, error) {
	if !domain.ValidEngagementType(reaction) {
		return nil, fmt.Errorf("invalid engagement type %q", reaction)
	}
	q, ok := sess.Find(insightID)
	if !ok {
		return nil, ErrInsightNotFound
	}
	now := time.Now().UTC()
	if err := q.TransitionTo(reaction.StateFor(), now); err != nil {
		return nil, err
	}
	q.Engagement = reaction
	if reaction.Positive() {
		sess.MarkEngaged(q.Type)
	}
	return q, nil
}

// RecordRating stores an explicit 1-5 relevance rating for a category.
func (s *InsightService) RecordRating(ctx context.Context, profileID uuid.UUID, t domain.InsightType, rating float64) error {
	if !domain.ValidInsightType(t) {
		return fmt.Errorf("invalid insight type %q", t)
	}
	if rating < 1 {
		rating = 1
	}
	if rating > 5 {
		rating = 5
	}
	return s.stats.AddRating(ctx, profileID, t, rating)
}

// FlushStats persists a session's accumulated shown/engaged counters.
// Called on session close; safe to call more than once.
func (s *InsightService) FlushStats(ctx context.Context, sess *session.State) error {
	deltas := sess.DrainStats()
	for t, d := range deltas {
		if d.Shown == 0 && d.Engaged == 0 {
			continue
		}
		if err := s.stats.Bump(ctx, sess.ProfileID, t, d.Shown, d.Engaged); err != nil {
			return fmt.Errorf("flush %s stats: %w", t, err)
		}
	}
	return nil
}

func maxPerSession(settings domain.SessionSettings) int {
	if settings.MaxPerSession > 0 {
		return settings.MaxPerSession
	}
	return DefaultMaxPerSession
}
