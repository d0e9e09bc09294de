package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attune-ai/attune/internal/domain"
)

// BehaviorAdapters are the knobs the chat pipeline can turn without
// understanding the belief model behind them.
type BehaviorAdapters struct {
	// SuggestedMode is the response mode the user reaches for most.
	SuggestedMode domain.ResponseMode `json:"suggested_mode"`
	// VerbosityMultiplier scales target response length. 1.0 is neutral.
	VerbosityMultiplier float64 `json:"verbosity_multiplier"`
	// ProactivityLevel is low, normal or high.
	ProactivityLevel string `json:"proactivity_level"`
	// AutonomyLevel is how much the assistant should just act versus
	// check in: guided, balanced or autonomous.
	AutonomyLevel string `json:"autonomy_level"`
}

// PersonalizationContext is the summary the chat pipeline reads before
// answering. An unknown or thin profile yields the neutral context; the
// pipeline never needs to care which.
type PersonalizationContext struct {
	ShouldPersonalize bool             `json:"should_personalize"`
	Summary           string           `json:"summary"`
	Adapters          BehaviorAdapters `json:"adapters"`
}

func neutralContext() *PersonalizationContext {
	return &PersonalizationContext{
		Adapters: BehaviorAdapters{
			SuggestedMode:       domain.ModeBalanced,
			VerbosityMultiplier: 1.0,
			ProactivityLevel:    "normal",
			AutonomyLevel:       "balanced",
		},
	}
}

// ContextService renders the belief state into something the chat
// pipeline can act on.
type ContextService struct {
	profiles   domain.ProfileStore
	dimensions domain.DimensionStore
	logger     *zap.Logger
}

func NewContextService(profiles domain.ProfileStore, dimensions domain.DimensionStore, logger *zap.Logger) *ContextService {
	return &ContextService{profiles: profiles, dimensions: dimensions, logger: logger}
}

// Personalization builds the context summary for one profile. Beliefs
// below the ask-before-acting floor are ignored entirely: a guess that
// weak must not shape behavior.
func (s *ContextService) Personalization(ctx context.Context, profileID, workspaceID uuid.UUID) (*PersonalizationContext, error) {
	profile, err := s.profiles.GetByID(ctx, profileID, workspaceID)
	if err != nil {
		if isNotFound(err) {
			return neutralContext(), nil
		}
		return nil, err
	}
	if !profile.PrivacyTier.AllowsDurableSignals() {
		return neutralContext(), nil
	}

	scores, err := s.dimensions.ListByProfile(ctx, profileID)
	if err != nil {
		s.logger.Warn("beliefs unavailable, answering neutrally", zap.Error(err))
		return neutralContext(), nil
	}

	now := time.Now().UTC()
	usable := make(map[domain.BeliefDomain]*domain.DimensionScore)
	for i := range scores {
		score := &scores[i]
		if score.EffectiveConfidence(now) >= domain.AskBeforeActingThreshold {
			usable[score.Domain] = score
		}
	}
	if len(usable) == 0 {
		return neutralContext(), nil
	}

	out := neutralContext()
	out.ShouldPersonalize = true
	out.Summary = buildSummary(usable)
	applyAdapters(&out.Adapters, usable)
	return out, nil
}

// Gaps reports the domains currently below the acting threshold, weakest
// first, for callers that want to know what the engine does not know.
func (s *ContextService) Gaps(ctx context.Context, profileID, workspaceID uuid.UUID) ([]ElicitationGap, error) {
	if _, err := s.profiles.GetByID(ctx, profileID, workspaceID); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	scores, err := s.dimensions.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load dimension scores: %w", err)
	}
	existing := make(map[domain.BeliefDomain]*domain.DimensionScore, len(scores))
	for i := range scores {
		existing[scores[i].Domain] = &scores[i]
	}
	return collectGaps(existing, time.Now().UTC()), nil
}

func buildSummary(usable map[domain.BeliefDomain]*domain.DimensionScore) string {
	var parts []string

	if score, ok := usable[domain.DomainIdentity]; ok {
		if v, ok := score.Value.(domain.IdentityValue); ok {
			switch {
			case v.Name != "" && v.Role != "":
				parts = append(parts, fmt.Sprintf("%s, works on %s", v.Name, v.Role))
			case v.Name != "":
				parts = append(parts, fmt.Sprintf("goes by %s", v.Name))
			case v.Role != "":
				parts = append(parts, fmt.Sprintf("works on %s", v.Role))
			}
		}
	}
	if score, ok := usable[domain.DomainCommunicationStyle]; ok {
		if v, ok := score.Value.(domain.CommunicationStyleValue); ok {
			parts = append(parts, fmt.Sprintf("prefers %s, %s answers", v.Verbosity, v.Format))
		}
	}
	if score, ok := usable[domain.DomainExpertise]; ok {
		if v, ok := score.Value.(domain.ExpertiseValue); ok {
			line := fmt.Sprintf("%s level", v.Level)
			if len(v.Topics) > 0 {
				line += " (" + strings.Join(v.Topics, ", ") + ")"
			}
			parts = append(parts, line)
		}
	}
	if score, ok := usable[domain.DomainGoals]; ok {
		if v, ok := score.Value.(domain.GoalsValue); ok && len(v.Active) > 0 {
			parts = append(parts, fmt.Sprintf("working toward: %s", v.Active[0].Text))
		}
	}
	if score, ok := usable[domain.DomainRelationshipState]; ok {
		if v, ok := score.Value.(domain.RelationshipStateValue); ok {
			parts = append(parts, fmt.Sprintf("%s relationship over %d sessions", v.Stage, v.Sessions))
		}
	}

	return strings.Join(parts, "; ")
}

func applyAdapters(a *BehaviorAdapters, usable map[domain.BeliefDomain]*domain.DimensionScore) {
	if score, ok := usable[domain.DomainCommunicationStyle]; ok {
		if v, ok := score.Value.(domain.CommunicationStyleValue); ok {
			switch v.Verbosity {
			case domain.VerbosityConcise:
				a.VerbosityMultiplier = 0.6
			case domain.VerbosityDetailed:
				a.VerbosityMultiplier = 1.5
			}
		}
	}
	if score, ok := usable[domain.DomainBehavioralPatterns]; ok {
		if v, ok := score.Value.(domain.BehavioralPatternsValue); ok {
			best, bestShare := a.SuggestedMode, 0.0
			for mode, share := range v.ModeShares {
				if share > bestShare {
					best, bestShare = mode, share
				}
			}
			a.SuggestedMode = best
		}
	}
	if score, ok := usable[domain.DomainRelationshipState]; ok {
		if v, ok := score.Value.(domain.RelationshipStateValue); ok {
			switch {
			case v.Trust >= 0.6:
				a.ProactivityLevel = "high"
			case v.Trust < 0.3:
				a.ProactivityLevel = "low"
			}
		}
	}
	if score, ok := usable[domain.DomainExpertise]; ok {
		if v, ok := score.Value.(domain.ExpertiseValue); ok {
			switch v.Level {
			case domain.ExpertiseExpert, domain.ExpertiseAdvanced:
				a.AutonomyLevel = "autonomous"
			case domain.ExpertiseNovice:
				a.AutonomyLevel = "guided"
			}
		}
	}
}
