package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/attune-ai/attune/internal/domain"
	"github.com/attune-ai/attune/internal/session"
)

// Pattern detection thresholds
const (
	// AbsenceThreshold is how long a gap between sessions reads as a
	// notable return rather than a normal rhythm.
	AbsenceThreshold = 14 * 24 * time.Hour
	// DriftMinMessages is how much of a session must pass before topic
	// drift is worth pointing out.
	DriftMinMessages = 5
	// LengthAnomalyMinSessions is how many closed sessions the running
	// average needs before a session can be judged against it.
	LengthAnomalyMinSessions = 3
	// LengthAnomalyFactor is how far past the running average a session
	// must run to count as unusually long.
	LengthAnomalyFactor = 2.0
	// lengthAnomalyFloor keeps short sessions out of anomaly judgments
	// even when the running average is tiny.
	lengthAnomalyFloor = 30 * time.Minute
	// gapClarifyIdleSeconds paces clarify insights to quiet moments.
	gapClarifyIdleSeconds = 120
)

// PatternService turns behavioral pattern breaks into candidate insights.
// Detectors are best-effort producers: they queue candidates and let the
// delivery gate apply every pacing rule. A detector that cannot read what
// it needs produces nothing.
type PatternService struct {
	dimensions domain.DimensionStore
	insights   *InsightService
	logger     *zap.Logger
}

func NewPatternService(dimensions domain.DimensionStore, insights *InsightService, logger *zap.Logger) *PatternService {
	return &PatternService{dimensions: dimensions, insights: insights, logger: logger}
}

// OnSessionStart runs the session-opening detectors: a long absence worth
// acknowledging and decisions left hanging last time.
func (s *PatternService) OnSessionStart(ctx context.Context, sess *session.State, profile *domain.Profile) {
	s.detectAbsenceReturn(ctx, sess, profile)
	s.detectOpenLoops(ctx, sess)
}

func (s *PatternService) detectAbsenceReturn(ctx context.Context, sess *session.State, profile *domain.Profile) {
	if profile.LastSessionAt == nil {
		return
	}
	gone := time.Since(*profile.LastSessionAt)
	if gone < AbsenceThreshold {
		return
	}

	candidate := InsightCandidate{
		Type:       domain.InsightRecall,
		Title:      "Picking back up",
		Body:       fmt.Sprintf("It's been about %d days. Want a recap of where things stood?", int(gone.Hours()/24)),
		Action:     "Summarize the last conversation",
		Confidence: 0.8,
		Triggers:   []domain.InsightTrigger{domain.TriggerSessionStart, domain.TriggerExplicit},
	}
	if _, err := s.insights.Queue(ctx, sess, candidate); err != nil {
		s.logger.Warn("absence-return insight not queued", zap.Error(err))
	}
}

// detectOpenLoops resurfaces decisions the user mentioned but never
// resolved, as far as the friction belief remembers.
func (s *PatternService) detectOpenLoops(ctx context.Context, sess *session.State) {
	score, err := s.dimensions.Get(ctx, sess.ProfileID, domain.DomainDecisionFriction)
	if err != nil {
		return
	}
	friction, ok := score.Value.(domain.DecisionFrictionValue)
	if !ok || len(friction.OpenLoops) == 0 {
		return
	}

	loop := friction.OpenLoops[len(friction.OpenLoops)-1]
	candidate := InsightCandidate{
		Type:           domain.InsightNextStep,
		Title:          "An open decision",
		Body:           fmt.Sprintf("Last time you were weighing: %q. Did you land on anything?", loop),
		Action:         "Walk through the options",
		Confidence:     score.EffectiveConfidence(time.Now().UTC()),
		Triggers:       []domain.InsightTrigger{domain.TriggerIdle, domain.TriggerExplicit},
		ContextTags:    keywordTags(loop),
		MinIdleSeconds: 60,
	}
	if _, err := s.insights.Queue(ctx, sess, candidate); err != nil {
		s.logger.Warn("open-loop insight not queued", zap.Error(err))
	}
}

// OnMessage runs the mid-session detectors: a session running far past
// the profile's usual length, and a conversation that never touches any
// tracked goal once it has real length.
func (s *PatternService) OnMessage(ctx context.Context, sess *session.State) {
	s.detectSessionLength(ctx, sess, time.Now().UTC())

	if sess.Messages() < DriftMinMessages {
		return
	}
	score, err := s.dimensions.Get(ctx, sess.ProfileID, domain.DomainGoals)
	if err != nil {
		return
	}
	goals, ok := score.Value.(domain.GoalsValue)
	if !ok || len(goals.Active) == 0 {
		return
	}

	sessionTopics := sess.TopTopics(10)
	if len(sessionTopics) == 0 || goalsOverlap(goals, sessionTopics) {
		return
	}

	top := goals.Active[0]
	candidate := InsightCandidate{
		Type:           domain.InsightRecall,
		Title:          "Off the usual track",
		Body:           fmt.Sprintf("You've been focused elsewhere today. Still working toward %q?", top.Text),
		Confidence:     score.EffectiveConfidence(time.Now().UTC()),
		Triggers:       []domain.InsightTrigger{domain.TriggerIdle, domain.TriggerExplicit},
		ContextTags:    keywordTags(top.Text),
		MinIdleSeconds: 120,
	}
	if _, err := s.insights.Queue(ctx, sess, candidate); err != nil {
		s.logger.Warn("drift insight not queued", zap.Error(err))
	}
}

// detectSessionLength flags a session running well past the profile's
// running average, at most once per session. The comparison uses the
// stored average from closed sessions; a profile without enough measured
// sessions has no baseline and stays quiet.
func (s *PatternService) detectSessionLength(ctx context.Context, sess *session.State, now time.Time) {
	score, err := s.dimensions.Get(ctx, sess.ProfileID, domain.DomainBehavioralPatterns)
	if err != nil {
		return
	}
	patterns, ok := score.Value.(domain.BehavioralPatternsValue)
	if !ok || patterns.SessionsSeen < LengthAnomalyMinSessions || patterns.AvgSessionMinutes <= 0 {
		return
	}

	elapsed := now.Sub(sess.StartedAt)
	if elapsed < lengthAnomalyFloor || elapsed.Minutes() < patterns.AvgSessionMinutes*LengthAnomalyFactor {
		return
	}
	if !sess.NoteLongSession() {
		return
	}

	candidate := InsightCandidate{
		Type:           domain.InsightNextStep,
		Title:          "Longer haul than usual",
		Body:           fmt.Sprintf("You're about %d minutes in, past your usual %d. Want a checkpoint of where things stand?", int(elapsed.Minutes()), int(patterns.AvgSessionMinutes)),
		Action:         "Summarize progress so far",
		Confidence:     score.EffectiveConfidence(now),
		Triggers:       []domain.InsightTrigger{domain.TriggerIdle, domain.TriggerExplicit},
		MinIdleSeconds: 60,
	}
	if _, err := s.insights.Queue(ctx, sess, candidate); err != nil {
		s.logger.Warn("session-length insight not queued", zap.Error(err))
	}
}

// OnSessionClose folds the finished session's length into the profile's
// running average so future length judgments have a baseline. The update
// refines the stored value without touching its confidence or decay
// clock; only a profile with no behavioral belief at all gets a fresh
// session-derived one.
func (s *PatternService) OnSessionClose(ctx context.Context, sess *session.State, now time.Time) {
	minutes := now.Sub(sess.StartedAt).Minutes()
	if minutes <= 0 {
		return
	}

	score, err := s.dimensions.Get(ctx, sess.ProfileID, domain.DomainBehavioralPatterns)
	switch {
	case isNotFound(err):
		score = &domain.DimensionScore{
			ProfileID:   sess.ProfileID,
			Domain:      domain.DomainBehavioralPatterns,
			Value:       domain.BehavioralPatternsValue{},
			Confidence:  domain.RoundConfidence(MergeSources([]domain.EvidenceSource{domain.SourceSessionDerived})),
			DecayRate:   domain.DomainBehavioralPatterns.Tier().DecayRate(),
			Sources:     []domain.EvidenceSource{domain.SourceSessionDerived},
			LastUpdated: now,
		}
	case err != nil:
		s.logger.Warn("session-length average not updated", zap.Error(err))
		return
	}

	value, _ := score.Value.(domain.BehavioralPatternsValue)
	seen := value.SessionsSeen
	value.AvgSessionMinutes = (value.AvgSessionMinutes*float64(seen) + minutes) / float64(seen+1)
	value.SessionsSeen = seen + 1
	score.Value = value

	if err := s.dimensions.Upsert(ctx, score); err != nil {
		s.logger.Warn("session-length average not updated", zap.Error(err))
	}
}

// OnReflectionGaps turns the worst post-reflection confidence gap into a
// clarify candidate, delivered only in quiet moments.
func (s *PatternService) OnReflectionGaps(ctx context.Context, sess *session.State, gaps []ElicitationGap) {
	if len(gaps) == 0 {
		return
	}
	worst := gaps[0]
	candidate := InsightCandidate{
		Type:           domain.InsightClarify,
		Title:          "Help me calibrate",
		Body:           clarifyPrompt(worst.Domain),
		Confidence:     worst.Confidence,
		Triggers:       []domain.InsightTrigger{domain.TriggerIdle, domain.TriggerExplicit},
		MinIdleSeconds: gapClarifyIdleSeconds,
	}
	if _, err := s.insights.Queue(ctx, sess, candidate); err != nil {
		s.logger.Warn("clarify insight not queued", zap.Error(err))
	}
}

func clarifyPrompt(d domain.BeliefDomain) string {
	switch d {
	case domain.DomainCommunicationStyle:
		return "I'm still guessing at how you like answers shaped. Short or detailed?"
	case domain.DomainExpertise:
		return "I'm not sure how technical to get with you. Too deep, too shallow, or about right?"
	case domain.DomainGoals:
		return "I don't have a clear picture of what you're working toward. Anything I should track?"
	}
	return "I'm still forming a picture of how you work. Anything I should know?"
}

func goalsOverlap(goals domain.GoalsValue, topics []string) bool {
	for _, goal := range goals.Active {
		text := strings.ToLower(goal.Text)
		for _, topic := range topics {
			if strings.Contains(text, strings.ToLower(topic)) {
				return true
			}
		}
	}
	return false
}

// keywordTags pulls matchable words out of free text for contextual
// triggering.
func keywordTags(text string) []string {
	var tags []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?\"'")
		if len(word) >= 4 {
			tags = append(tags, word)
		}
		if len(tags) == 5 {
			break
		}
	}
	return tags
}
