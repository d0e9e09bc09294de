package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DimensionValue is the structured belief payload for one domain. Each
// domain has exactly one value shape; DecodeDimensionValue restores the
// concrete type from storage.
type DimensionValue interface {
	BeliefDomain() BeliefDomain
}

// IdentityValue captures who the user is, as far as they have told us or
// let us infer.
type IdentityValue struct {
	Name        string   `json:"name,omitempty"`
	Role        string   `json:"role,omitempty"`
	Descriptors []string `json:"descriptors,omitempty"`
}

func (IdentityValue) BeliefDomain() BeliefDomain { return DomainIdentity }

// TrackedGoal is one goal the user keeps coming back to.
type TrackedGoal struct {
	Text      string    `json:"text"`
	Mentions  int       `json:"mentions"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

type GoalsValue struct {
	Active []TrackedGoal `json:"active"`
}

func (GoalsValue) BeliefDomain() BeliefDomain { return DomainGoals }

// Verbosity is the response length the user prefers.
type Verbosity string

const (
	VerbosityConcise  Verbosity = "concise"
	VerbosityBalanced Verbosity = "balanced"
	VerbosityDetailed Verbosity = "detailed"
)

// MessageFormat is the answer structure the user responds best to.
type MessageFormat string

const (
	FormatProse      MessageFormat = "prose"
	FormatStructured MessageFormat = "structured"
)

type CommunicationStyleValue struct {
	Verbosity Verbosity     `json:"verbosity"`
	Tone      Tone          `json:"tone"`
	Format    MessageFormat `json:"format"`
}

func (CommunicationStyleValue) BeliefDomain() BeliefDomain { return DomainCommunicationStyle }

// ExpertiseLevel is the user's overall technical depth.
type ExpertiseLevel string

const (
	ExpertiseNovice       ExpertiseLevel = "novice"
	ExpertiseIntermediate ExpertiseLevel = "intermediate"
	ExpertiseAdvanced     ExpertiseLevel = "advanced"
	ExpertiseExpert       ExpertiseLevel = "expert"
)

type ExpertiseValue struct {
	Level  ExpertiseLevel `json:"level"`
	Topics []string       `json:"topics,omitempty"`
}

func (ExpertiseValue) BeliefDomain() BeliefDomain { return DomainExpertise }

// BehavioralPatternsValue summarizes how the user works the assistant:
// which answer modes they reach for, how much they type, and how long
// their sessions usually run.
type BehavioralPatternsValue struct {
	ModeShares     map[ResponseMode]float64 `json:"mode_shares,omitempty"`
	AvgWordsPerMsg float64                  `json:"avg_words_per_msg"`
	MessagesSeen   int                      `json:"messages_seen"`
	// AvgSessionMinutes is a running mean over closed sessions, folded in
	// at session close rather than by reflection.
	AvgSessionMinutes float64 `json:"avg_session_minutes,omitempty"`
	SessionsSeen      int     `json:"sessions_seen,omitempty"`
}

func (BehavioralPatternsValue) BeliefDomain() BeliefDomain { return DomainBehavioralPatterns }

// RelationshipStage is how established the working relationship is.
type RelationshipStage string

const (
	RelationshipNew         RelationshipStage = "new"
	RelationshipDeveloping  RelationshipStage = "developing"
	RelationshipEstablished RelationshipStage = "established"
)

type RelationshipStateValue struct {
	Stage RelationshipStage `json:"stage"`
	// Trust grows with returning sessions and positive feedback, shrinks
	// with corrections. Bounded 0..1.
	Trust    float64 `json:"trust"`
	Sessions int     `json:"sessions"`
}

func (RelationshipStateValue) BeliefDomain() BeliefDomain { return DomainRelationshipState }

// FrictionLevel is how much the user hesitates on decisions.
type FrictionLevel string

const (
	FrictionLow      FrictionLevel = "low"
	FrictionModerate FrictionLevel = "moderate"
	FrictionHigh     FrictionLevel = "high"
)

type DecisionFrictionValue struct {
	Level FrictionLevel `json:"level"`
	// OpenLoops are decisions mentioned but, as far as we saw, never
	// resolved.
	OpenLoops []string `json:"open_loops,omitempty"`
}

func (DecisionFrictionValue) BeliefDomain() BeliefDomain { return DomainDecisionFriction }

// CognitiveStyleValue describes how the user prefers to take in reasoning.
// No extractor produces evidence for this domain yet, so profiles carry the
// assumed default until an elicited answer overrides it.
type CognitiveStyleValue struct {
	Approach string `json:"approach"`
	Assumed  bool   `json:"assumed"`
}

func (CognitiveStyleValue) BeliefDomain() BeliefDomain { return DomainCognitiveStyle }

// DefaultCognitiveStyle is the placeholder belief every profile starts
// with in the cognitive_style domain.
func DefaultCognitiveStyle() CognitiveStyleValue {
	return CognitiveStyleValue{Approach: "balanced", Assumed: true}
}

// DecodeDimensionValue unmarshals a stored value payload into the concrete
// type for its domain.
func DecodeDimensionValue(domain BeliefDomain, raw []byte) (DimensionValue, error) {
	var (
		v   DimensionValue
		err error
	)
	switch domain {
	case DomainIdentity:
		var dst IdentityValue
		err = json.Unmarshal(raw, &dst)
		v = dst
	case DomainGoals:
		var dst GoalsValue
		err = json.Unmarshal(raw, &dst)
		v = dst
	case DomainCommunicationStyle:
		var dst CommunicationStyleValue
		err = json.Unmarshal(raw, &dst)
		v = dst
	case DomainExpertise:
		var dst ExpertiseValue
		err = json.Unmarshal(raw, &dst)
		v = dst
	case DomainBehavioralPatterns:
		var dst BehavioralPatternsValue
		err = json.Unmarshal(raw, &dst)
		v = dst
	case DomainRelationshipState:
		var dst RelationshipStateValue
		err = json.Unmarshal(raw, &dst)
		v = dst
	case DomainDecisionFriction:
		var dst DecisionFrictionValue
		err = json.Unmarshal(raw, &dst)
		v = dst
	case DomainCognitiveStyle:
		var dst CognitiveStyleValue
		err = json.Unmarshal(raw, &dst)
		v = dst
	default:
		return nil, fmt.Errorf("decode dimension value: unknown domain %q", domain)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s value: %w", domain, err)
	}
	return v, nil
}
