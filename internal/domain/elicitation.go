package domain

import (
	"time"

	"github.com/google/uuid"
)

// ElicitationPhase buckets the relationship age so questions land when
// they feel natural rather than interrogative.
type ElicitationPhase string

const (
	// PhaseEarly is sessions 2-3: low-stakes orientation questions only.
	PhaseEarly ElicitationPhase = "early"
	// PhaseMid is sessions 4-6: working-preference questions.
	PhaseMid ElicitationPhase = "mid"
	// PhaseLate is sessions 7+: reflective questions about goals and
	// thinking style.
	PhaseLate ElicitationPhase = "late"
)

// PhaseForSession maps a session count to the phase whose questions are
// appropriate. Session 1 has no phase: the engine never asks anything in a
// first session.
func PhaseForSession(sessionCount int) (ElicitationPhase, bool) {
	switch {
	case sessionCount < 2:
		return "", false
	case sessionCount <= 3:
		return PhaseEarly, true
	case sessionCount <= 6:
		return PhaseMid, true
	}
	return PhaseLate, true
}

// Allows reports whether a question tagged for phase p may be asked at the
// given session phase. Earlier-phase questions stay askable later; the
// reverse never holds.
func (p ElicitationPhase) Allows(q ElicitationPhase) bool {
	rank := map[ElicitationPhase]int{PhaseEarly: 0, PhaseMid: 1, PhaseLate: 2}
	return rank[q] <= rank[p]
}

// KnownFacts is what the engine already believes, keyed by fact key, used
// to decide whether a question is still worth asking.
type KnownFacts map[string]string

// Question is one entry in the static elicitation catalog.
type Question struct {
	ID     string
	Domain BeliefDomain
	Phase  ElicitationPhase
	// Priority orders candidates within a phase; higher asks first.
	Priority int
	Prompt   string
	// FactKey is where an answer lands in the profile's known facts.
	FactKey string
	// SkipWhen reports that the answer is already known and the question
	// would feel redundant.
	SkipWhen func(known KnownFacts) bool
}

// ElicitationTrigger records which path caused a question to be asked.
type ElicitationTrigger string

const (
	// TriggerOnboarding is the scheduled early-relationship path.
	TriggerOnboarding ElicitationTrigger = "onboarding"
	// TriggerGap is the low-confidence-domain path.
	TriggerGap ElicitationTrigger = "gap"
)

// ElicitationResponse is the durable record of one asked question: when
// and why it was asked, and what (if anything) came back.
type ElicitationResponse struct {
	ID         uuid.UUID          `json:"id"`
	ProfileID  uuid.UUID          `json:"profile_id"`
	QuestionID string             `json:"question_id"`
	Domain     BeliefDomain       `json:"domain"`
	Phase      ElicitationPhase   `json:"phase"`
	Trigger    ElicitationTrigger `json:"trigger"`
	SessionID  *uuid.UUID         `json:"session_id,omitempty"`
	Skipped    bool               `json:"skipped"`
	Answer     string             `json:"answer,omitempty"`
	FactKey    string             `json:"fact_key,omitempty"`
	FactValue  string             `json:"fact_value,omitempty"`
	AskedAt    time.Time          `json:"asked_at"`
	AnsweredAt *time.Time         `json:"answered_at,omitempty"`
}

// Answered reports whether the user actually responded (not skipped, not
// still open).
func (r *ElicitationResponse) Answered() bool {
	return r.AnsweredAt != nil && !r.Skipped
}
