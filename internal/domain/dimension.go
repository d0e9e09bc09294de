package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// BeliefDomain is one independent axis of the user model. Domains never
// share confidence: strong evidence about expertise says nothing about
// goals.
type BeliefDomain string

const (
	DomainIdentity           BeliefDomain = "identity"
	DomainGoals              BeliefDomain = "goals"
	DomainCommunicationStyle BeliefDomain = "communication_style"
	DomainExpertise          BeliefDomain = "expertise"
	DomainBehavioralPatterns BeliefDomain = "behavioral_patterns"
	DomainRelationshipState  BeliefDomain = "relationship_state"
	DomainDecisionFriction   BeliefDomain = "decision_friction"
	DomainCognitiveStyle     BeliefDomain = "cognitive_style"
)

// AllBeliefDomains returns every domain in stable order.
func AllBeliefDomains() []BeliefDomain {
	return []BeliefDomain{
		DomainIdentity,
		DomainGoals,
		DomainCommunicationStyle,
		DomainExpertise,
		DomainBehavioralPatterns,
		DomainRelationshipState,
		DomainDecisionFriction,
		DomainCognitiveStyle,
	}
}

func ValidBeliefDomain(d BeliefDomain) bool {
	switch d {
	case DomainIdentity, DomainGoals, DomainCommunicationStyle, DomainExpertise,
		DomainBehavioralPatterns, DomainRelationshipState, DomainDecisionFriction,
		DomainCognitiveStyle:
		return true
	}
	return false
}

// DomainTier buckets belief domains by how fast their evidence goes stale.
type DomainTier string

const (
	// TierFoundation covers slow-moving facts: who the user is and how the
	// working relationship has developed.
	TierFoundation DomainTier = "foundation"
	// TierPreference covers tastes and skills that drift over weeks.
	TierPreference DomainTier = "preference"
	// TierDynamics covers recent behavior that is only meaningful fresh.
	TierDynamics DomainTier = "dynamics"
)

// Monthly confidence decay per tier. Decay compounds continuously, so a
// dynamics belief untouched for a month keeps 90% of its confidence.
const (
	FoundationDecayRate = 0.02
	PreferenceDecayRate = 0.05
	DynamicsDecayRate   = 0.10
)

func (d BeliefDomain) Tier() DomainTier {
	switch d {
	case DomainIdentity, DomainRelationshipState:
		return TierFoundation
	case DomainBehavioralPatterns, DomainDecisionFriction:
		return TierDynamics
	}
	return TierPreference
}

func (t DomainTier) DecayRate() float64 {
	switch t {
	case TierFoundation:
		return FoundationDecayRate
	case TierDynamics:
		return DynamicsDecayRate
	}
	return PreferenceDecayRate
}

// EvidenceSource records the kind of evidence a belief rests on. The base
// confidence of a source is the confidence a single piece of such evidence
// contributes before merging.
type EvidenceSource string

const (
	// SourceExplicitPKV is a preference the user stated in so many words.
	SourceExplicitPKV EvidenceSource = "EXPLICIT_PKV"
	// SourceElicited is a direct answer to a question the engine asked. It
	// is the only source that may carry full certainty.
	SourceElicited EvidenceSource = "ELICITED"
	// SourceBehavioralRepeated is a pattern observed across many messages.
	SourceBehavioralRepeated EvidenceSource = "BEHAVIORAL_REPEATED"
	// SourceBehavioralSingle is a pattern seen once or twice.
	SourceBehavioralSingle EvidenceSource = "BEHAVIORAL_SINGLE"
	// SourceSessionDerived is aggregated from session structure rather
	// than message content.
	SourceSessionDerived EvidenceSource = "SESSION_DERIVED"
	// SourceDefaultAssumed is a placeholder the engine filled in itself.
	SourceDefaultAssumed EvidenceSource = "DEFAULT_ASSUMED"
)

func (s EvidenceSource) BaseConfidence() float64 {
	switch s {
	case SourceExplicitPKV:
		return 0.9
	case SourceElicited:
		return 1.0
	case SourceBehavioralRepeated:
		return 0.55
	case SourceBehavioralSingle:
		return 0.35
	case SourceSessionDerived:
		return 0.5
	case SourceDefaultAssumed:
		return 0.15
	}
	return 0
}

// Inference reports whether the source is probabilistic. Non-inference
// sources (direct answers) are exempt from the sub-certainty cap.
func (s EvidenceSource) Inference() bool {
	return s != SourceElicited
}

// Confidence thresholds used when acting on a belief. Merged inference
// confidence lives in [0, 0.95) and skews low: a lone explicit statement
// merges to ~0.43, repeated behavior alone to ~0.26. The thresholds are
// calibrated to that range, not to raw source confidences.
const (
	// ActWithUncertaintyThreshold is the floor below which the engine
	// treats a domain as a knowledge gap worth asking about.
	ActWithUncertaintyThreshold = 0.45
	// AskBeforeActingThreshold is the floor below which a belief must not
	// silently shape behavior at all.
	AskBeforeActingThreshold = 0.25
	// SignificantGapThreshold marks domains weak enough for gap-triggered
	// elicitation. Stricter than the act threshold: only truly thin
	// domains earn an unprompted question.
	SignificantGapThreshold = 0.30
)

// RoundConfidence normalizes a confidence to two decimals, the precision
// everything downstream stores and compares at.
func RoundConfidence(c float64) float64 {
	return math.Round(c*100) / 100
}

// DimensionScore is the engine's current belief for one profile in one
// domain: a structured value, how sure we are of it, and where that
// certainty came from.
type DimensionScore struct {
	ID        uuid.UUID      `json:"id"`
	ProfileID uuid.UUID      `json:"profile_id"`
	Domain    BeliefDomain   `json:"domain"`
	Value     DimensionValue `json:"value"`
	// Confidence is the stored (undecayed) confidence as of LastUpdated.
	Confidence  float64          `json:"confidence"`
	DecayRate   float64          `json:"decay_rate"`
	Sources     []EvidenceSource `json:"sources"`
	LastUpdated time.Time        `json:"last_updated"`
	CreatedAt   time.Time        `json:"created_at"`
}

// EffectiveConfidence is the stored confidence decayed to now. The stored
// row is untouched; staleness is applied on read.
func (s *DimensionScore) EffectiveConfidence(now time.Time) float64 {
	return DecayConfidence(s.Confidence, s.DecayRate, s.LastUpdated, now)
}

// HasSource reports whether the belief rests at least partly on src.
func (s *DimensionScore) HasSource(src EvidenceSource) bool {
	for _, have := range s.Sources {
		if have == src {
			return true
		}
	}
	return false
}

// DecayConfidence applies exponential staleness decay to a confidence.
// rate is the fraction lost per 30 days. Elapsed time at or below zero
// returns the confidence unchanged.
func DecayConfidence(confidence, rate float64, lastUpdated, now time.Time) float64 {
	elapsed := now.Sub(lastUpdated)
	if elapsed <= 0 {
		return confidence
	}
	months := elapsed.Hours() / 24 / 30
	decayed := confidence * math.Pow(1-rate, months)
	if decayed < 0 {
		return 0
	}
	return decayed
}
