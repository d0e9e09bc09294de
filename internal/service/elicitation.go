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
)

// Elicitation pacing constants
const (
	// OnboardingQuestionCap is the lifetime limit on scheduled onboarding
	// questions. Past it the engine relies entirely on inference.
	OnboardingQuestionCap = 4
	// GapAskWindow is the minimum spacing between gap-triggered questions.
	GapAskWindow = 7 * 24 * time.Hour
)

var ErrQuestionNotOpen = errors.New("no open question with that id")

// onboardingCatalog is the static question set, ordered by nothing; the
// selector ranks at ask time. Question ids are stable across releases
// because asked-history is keyed on them.
var onboardingCatalog = []domain.Question{
	{
		ID: "name", Domain: domain.DomainIdentity, Phase: domain.PhaseEarly, Priority: 8,
		Prompt:  "By the way, what should I call you?",
		FactKey: "name",
		SkipWhen: func(known domain.KnownFacts) bool {
			return known["name"] != ""
		},
	},
	{
		ID: "role", Domain: domain.DomainIdentity, Phase: domain.PhaseEarly, Priority: 6,
		Prompt:  "What kind of work do you mostly use me for?",
		FactKey: "role",
		SkipWhen: func(known domain.KnownFacts) bool {
			return known["role"] != ""
		},
	},
	{
		ID: "primary_goal", Domain: domain.DomainGoals, Phase: domain.PhaseEarly, Priority: 7,
		Prompt:  "Is there something bigger you're working toward that I should keep in mind?",
		FactKey: "primary_goal",
	},
	{
		ID: "verbosity", Domain: domain.DomainCommunicationStyle, Phase: domain.PhaseMid, Priority: 7,
		Prompt:  "Do you prefer short answers or detailed ones?",
		FactKey: "verbosity",
		SkipWhen: func(known domain.KnownFacts) bool {
			return known["verbosity"] != ""
		},
	},
	{
		ID: "format", Domain: domain.DomainCommunicationStyle, Phase: domain.PhaseMid, Priority: 5,
		Prompt:  "Do you like answers as plain prose or structured with bullets?",
		FactKey: "format",
	},
	{
		ID: "expertise_level", Domain: domain.DomainExpertise, Phase: domain.PhaseMid, Priority: 6,
		Prompt:  "How technical should I get by default?",
		FactKey: "expertise_level",
	},
	{
		ID: "decision_support", Domain: domain.DomainDecisionFriction, Phase: domain.PhaseLate, Priority: 4,
		Prompt:  "When you're weighing a decision, do you want me to push for a recommendation or lay out the options?",
		FactKey: "decision_support",
	},
	{
		ID: "cognitive_approach", Domain: domain.DomainCognitiveStyle, Phase: domain.PhaseLate, Priority: 5,
		Prompt:  "Do you think better from first principles or from concrete examples?",
		FactKey: "cognitive_approach",
	},
}

// gapQuestions covers the gap-triggered path with one question per
// domain, distinct ids from the onboarding set.
var gapQuestions = map[domain.BeliefDomain]domain.Question{
	domain.DomainIdentity: {
		ID: "gap_identity", Domain: domain.DomainIdentity, Priority: 5,
		Prompt: "I realize I know very little about you. Anything worth telling me?", FactKey: "about",
	},
	domain.DomainGoals: {
		ID: "gap_goals", Domain: domain.DomainGoals, Priority: 5,
		Prompt: "What's the main thing you're trying to get done these days?", FactKey: "primary_goal",
	},
	domain.DomainCommunicationStyle: {
		ID: "gap_communication", Domain: domain.DomainCommunicationStyle, Priority: 5,
		Prompt: "Is the way I answer working for you, or should I change something?", FactKey: "verbosity",
	},
	domain.DomainExpertise: {
		ID: "gap_expertise", Domain: domain.DomainExpertise, Priority: 5,
		Prompt: "Am I pitching explanations at the right level for you?", FactKey: "expertise_level",
	},
	domain.DomainDecisionFriction: {
		ID: "gap_decisions", Domain: domain.DomainDecisionFriction, Priority: 4,
		Prompt: "Would it help if I was more opinionated when you're deciding something?", FactKey: "decision_support",
	},
	domain.DomainCognitiveStyle: {
		ID: "gap_cognitive", Domain: domain.DomainCognitiveStyle, Priority: 4,
		Prompt: "When something's complicated, do you want the theory first or an example first?", FactKey: "cognitive_approach",
	},
}

// AskDecision is the selector's verdict for one request.
type AskDecision struct {
	Ask      bool                      `json:"ask"`
	Question *domain.Question          `json:"-"`
	Trigger  domain.ElicitationTrigger `json:"trigger,omitempty"`
	Reason   string                    `json:"reason,omitempty"`
}

// ElicitationService decides whether to spend one of the few direct
// questions the engine ever gets to ask, and records what came back.
// Asked facts land as ELICITED dimension updates that outrank any
// inference.
type ElicitationService struct {
	responses  domain.ElicitationStore
	dimensions domain.DimensionStore
	logger     *zap.Logger
}

func NewElicitationService(responses domain.ElicitationStore, dimensions domain.DimensionStore, logger *zap.Logger) *ElicitationService {
	return &ElicitationService{responses: responses, dimensions: dimensions, logger: logger}
}

// ShouldAsk applies the pacing rules in order; the first failing rule
// short-circuits. It reads only; MarkAsked commits the decision.
func (s *ElicitationService) ShouldAsk(ctx context.Context, profile *domain.Profile, sessionID *uuid.UUID) (*AskDecision, error) {
	phase, ok := domain.PhaseForSession(profile.SessionCount)
	if !ok {
		return &AskDecision{Reason: "first session, never ask"}, nil
	}

	history, err := s.responses.ListByProfile(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("load elicitation history: %w", err)
	}

	if sessionID != nil {
		for _, r := range history {
			if r.SessionID != nil && *r.SessionID == *sessionID {
				return &AskDecision{Reason: "already asked this session"}, nil
			}
		}
	}

	asked := make(map[string]bool, len(history))
	onboardingAsked := 0
	var lastGapAsk time.Time
	for _, r := range history {
		asked[r.QuestionID] = true
		switch r.Trigger {
		case domain.TriggerOnboarding:
			onboardingAsked++
		case domain.TriggerGap:
			if r.AskedAt.After(lastGapAsk) {
				lastGapAsk = r.AskedAt
			}
		}
	}

	scores, err := s.dimensions.ListByProfile(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("load dimension scores: %w", err)
	}
	now := time.Now().UTC()
	confidence := make(map[domain.BeliefDomain]float64, 8)
	for _, d := range domain.AllBeliefDomains() {
		confidence[d] = 0
	}
	for i := range scores {
		confidence[scores[i].Domain] = scores[i].EffectiveConfidence(now)
	}
	known := s.knownFacts(history, scores)

	if onboardingAsked < OnboardingQuestionCap {
		if q := pickOnboarding(phase, asked, confidence, known); q != nil {
			return &AskDecision{Ask: true, Question: q, Trigger: domain.TriggerOnboarding}, nil
		}
		return &AskDecision{Reason: "no phase-appropriate gap to ask about"}, nil
	}

	// Post-onboarding, the gap path asks about the single weakest domain,
	// rarely, and only when the gap is significant.
	if !lastGapAsk.IsZero() && now.Sub(lastGapAsk) < GapAskWindow {
		return &AskDecision{Reason: "gap question asked within the window"}, nil
	}
	weakest, conf := weakestDomain(confidence)
	if conf >= domain.SignificantGapThreshold {
		return &AskDecision{Reason: "no significant gap"}, nil
	}
	q, ok := gapQuestions[weakest]
	if !ok || asked[q.ID] {
		return &AskDecision{Reason: "no unasked question for the weakest domain"}, nil
	}
	return &AskDecision{Ask: true, Question: &q, Trigger: domain.TriggerGap}, nil
}

func pickOnboarding(phase domain.ElicitationPhase, asked map[string]bool, confidence map[domain.BeliefDomain]float64, known domain.KnownFacts) *domain.Question {
	var best *domain.Question
	for i := range onboardingCatalog {
		q := &onboardingCatalog[i]
		if !phase.Allows(q.Phase) || asked[q.ID] {
			continue
		}
		if confidence[q.Domain] >= domain.ActWithUncertaintyThreshold {
			continue
		}
		if q.SkipWhen != nil && q.SkipWhen(known) {
			continue
		}
		if best == nil || q.Priority > best.Priority ||
			(q.Priority == best.Priority && q.ID < best.ID) {
			best = q
		}
	}
	return best
}

func weakestDomain(confidence map[domain.BeliefDomain]float64) (domain.BeliefDomain, float64) {
	domains := domain.AllBeliefDomains()
	weakest := domains[0]
	low := confidence[weakest]
	for _, d := range domains[1:] {
		if confidence[d] < low {
			weakest, low = d, confidence[d]
		}
	}
	return weakest, low
}

// knownFacts flattens answered questions and explicitly stated beliefs
// into the fact map skip predicates read.
func (s *ElicitationService) knownFacts(history []domain.ElicitationResponse, scores []domain.DimensionScore) domain.KnownFacts {
	known := domain.KnownFacts{}
	for _, r := range history {
		if r.Answered() && r.FactKey != "" {
			known[r.FactKey] = r.FactValue
		}
	}
	for i := range scores {
		score := &scores[i]
		if !score.HasSource(domain.SourceExplicitPKV) && !score.HasSource(domain.SourceElicited) {
			continue
		}
		switch v := score.Value.(type) {
		case domain.IdentityValue:
			if v.Name != "" {
				known["name"] = v.Name
			}
			if v.Role != "" {
				known["role"] = v.Role
			}
		case domain.CommunicationStyleValue:
			known["verbosity"] = string(v.Verbosity)
			known["format"] = string(v.Format)
		case domain.ExpertiseValue:
			known["expertise_level"] = string(v.Level)
		}
	}
	return known
}

// MarkAsked records that a question went out. The unique (profile,
// question) index in the store is what makes "asked at most once" hold
// even across racing requests.
func (s *ElicitationService) MarkAsked(ctx context.Context, profile *domain.Profile, q *domain.Question, sessionID *uuid.UUID, trigger domain.ElicitationTrigger) (*domain.ElicitationResponse, error) {
	r := &domain.ElicitationResponse{
		ProfileID:  profile.ID,
		QuestionID: q.ID,
		Domain:     q.Domain,
		Phase:      q.Phase,
		Trigger:    trigger,
		SessionID:  sessionID,
		FactKey:    q.FactKey,
		AskedAt:    time.Now().UTC(),
	}
	if err := s.responses.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("record asked question: %w", err)
	}
	return r, nil
}

// RecordAnswer stores the user's answer and applies the extracted fact to
// the matching belief at full certainty. Direct answers are the one
// evidence source exempt from the inference ceiling.
func (s *ElicitationService) RecordAnswer(ctx context.Context, profileID, responseID uuid.UUID, answer string) (*domain.ElicitationResponse, error) {
	r, err := s.responses.GetByID(ctx, responseID, profileID)
	if err != nil {
		return nil, err
	}
	if r.AnsweredAt != nil || r.Skipped {
		return nil, ErrQuestionNotOpen
	}

	now := time.Now().UTC()
	answer = strings.TrimSpace(answer)
	factValue := normalizeFact(r.FactKey, answer)
	if err := s.responses.Resolve(ctx, r.ID, answer, r.FactKey, factValue, now); err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}
	r.Answer = answer
	r.FactValue = factValue
	r.AnsweredAt = &now

	if err := s.applyFact(ctx, profileID, r.Domain, r.FactKey, factValue, now); err != nil {
		// The answer is recorded; a belief-write failure is recoverable on
		// the next reflection, so do not fail the user's response.
		s.logger.Warn("elicited fact not applied to belief",
			zap.String("profile_id", profileID.String()),
			zap.String("question_id", r.QuestionID),
			zap.Error(err))
	}
	return r, nil
}

// RecordSkip closes a question the user waved off.
func (s *ElicitationService) RecordSkip(ctx context.Context, profileID, responseID uuid.UUID) error {
	r, err := s.responses.GetByID(ctx, responseID, profileID)
	if err != nil {
		return err
	}
	if r.AnsweredAt != nil || r.Skipped {
		return ErrQuestionNotOpen
	}
	return s.responses.MarkSkipped(ctx, r.ID, time.Now().UTC())
}

// applyFact upserts the answered fact into the question's domain with
// source ELICITED, overriding whatever inference had there.
func (s *ElicitationService) applyFact(ctx context.Context, profileID uuid.UUID, d domain.BeliefDomain, factKey, factValue string, now time.Time) error {
	if factValue == "" {
		return nil
	}
	existing, err := s.dimensions.Get(ctx, profileID, d)
	if err != nil && !isNotFound(err) {
		return err
	}

	value := elicitedValue(d, factKey, factValue, existing)
	if value == nil {
		return nil
	}
	score := &domain.DimensionScore{
		ProfileID:   profileID,
		Domain:      d,
		Value:       value,
		Confidence:  domain.SourceElicited.BaseConfidence(),
		DecayRate:   d.Tier().DecayRate(),
		Sources:     []domain.EvidenceSource{domain.SourceElicited},
		LastUpdated: now,
	}
	if existing != nil {
		score.ID = existing.ID
		score.CreatedAt = existing.CreatedAt
		// Keep the inference trail alongside the direct answer.
		for _, src := range existing.Sources {
			if src != domain.SourceElicited {
				score.Sources = append(score.Sources, src)
			}
		}
	}
	return s.dimensions.Upsert(ctx, score)
}

// elicitedValue folds one answered fact into the domain's value shape,
// preserving whatever else the existing belief holds.
func elicitedValue(d domain.BeliefDomain, factKey, factValue string, existing *domain.DimensionScore) domain.DimensionValue {
	now := time.Now().UTC()
	switch d {
	case domain.DomainIdentity:
		v := domain.IdentityValue{}
		if existing != nil {
			if prev, ok := existing.Value.(domain.IdentityValue); ok {
				v = prev
			}
		}
		switch factKey {
		case "name":
			v.Name = factValue
		case "role", "about":
			v.Role = factValue
		}
		return v
	case domain.DomainGoals:
		v := domain.GoalsValue{}
		if existing != nil {
			if prev, ok := existing.Value.(domain.GoalsValue); ok {
				v = prev
			}
		}
		v.Active = append([]domain.TrackedGoal{{
			Text: factValue, Mentions: 1, FirstSeen: now, LastSeen: now,
		}}, v.Active...)
		if len(v.Active) > MaxTrackedGoals {
			v.Active = v.Active[:MaxTrackedGoals]
		}
		return v
	case domain.DomainCommunicationStyle:
		v := domain.CommunicationStyleValue{
			Verbosity: domain.VerbosityBalanced,
			Tone:      domain.ToneNeutral,
			Format:    domain.FormatProse,
		}
		if existing != nil {
			if prev, ok := existing.Value.(domain.CommunicationStyleValue); ok {
				v = prev
			}
		}
		switch factKey {
		case "verbosity":
			if parsed, ok := parseVerbosity(factValue); ok {
				v.Verbosity = parsed
			}
		case "format":
			if parsed, ok := parseFormat(factValue); ok {
				v.Format = parsed
			}
		}
		return v
	case domain.DomainExpertise:
		v := domain.ExpertiseValue{Level: domain.ExpertiseIntermediate}
		if existing != nil {
			if prev, ok := existing.Value.(domain.ExpertiseValue); ok {
				v = prev
			}
		}
		if parsed, ok := parseExpertise(factValue); ok {
			v.Level = parsed
		}
		return v
	case domain.DomainDecisionFriction:
		v := domain.DecisionFrictionValue{Level: domain.FrictionModerate}
		if existing != nil {
			if prev, ok := existing.Value.(domain.DecisionFrictionValue); ok {
				v = prev
			}
		}
		return v
	case domain.DomainCognitiveStyle:
		return domain.CognitiveStyleValue{Approach: factValue, Assumed: false}
	}
	return nil
}

// normalizeFact maps a free-text answer onto the enum vocabulary where
// the fact key has one. Unmappable answers keep their text.
func normalizeFact(factKey, answer string) string {
	lower := strings.ToLower(strings.TrimRight(strings.TrimSpace(answer), ".,!? "))
	switch factKey {
	case "verbosity":
		switch {
		case strings.Contains(lower, "short") || strings.Contains(lower, "concise") || strings.Contains(lower, "brief"):
			return string(domain.VerbosityConcise)
		case strings.Contains(lower, "detail") || strings.Contains(lower, "long") || strings.Contains(lower, "thorough"):
			return string(domain.VerbosityDetailed)
		}
	case "format":
		switch {
		case strings.Contains(lower, "bullet") || strings.Contains(lower, "structur") || strings.Contains(lower, "list"):
			return string(domain.FormatStructured)
		case strings.Contains(lower, "prose") || strings.Contains(lower, "paragraph"):
			return string(domain.FormatProse)
		}
	case "expertise_level":
		switch {
		case strings.Contains(lower, "expert"):
			return string(domain.ExpertiseExpert)
		case strings.Contains(lower, "advanc") || strings.Contains(lower, "very technical"):
			return string(domain.ExpertiseAdvanced)
		case strings.Contains(lower, "beginner") || strings.Contains(lower, "novice") || strings.Contains(lower, "simple"):
			return string(domain.ExpertiseNovice)
		}
	}
	return lower
}

// OnboardingCatalogSize is exported for pacing-aware callers and tests.
func OnboardingCatalogSize() int {
	return len(onboardingCatalog)
}
