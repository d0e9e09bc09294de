package domain

import (
	"time"

	"github.com/google/uuid"
)

// SignalType identifies what kind of observation a signal carries.
type SignalType string

const (
	SignalMessageStyle       SignalType = "message_style"
	SignalExplicitPreference SignalType = "explicit_preference"
	SignalFeedback           SignalType = "feedback"
	SignalQuestionComplexity SignalType = "question_complexity"
	SignalGoalReference      SignalType = "goal_reference"
	SignalDecisionMention    SignalType = "decision_mention"
	SignalModeSelection      SignalType = "mode_selection"
)

func ValidSignalType(t SignalType) bool {
	switch t {
	case SignalMessageStyle, SignalExplicitPreference, SignalFeedback,
		SignalQuestionComplexity, SignalGoalReference, SignalDecisionMention,
		SignalModeSelection:
		return true
	}
	return false
}

// SignalCategory groups signal types by the kind of evidence they provide.
// Inference rollups aggregate per category, not per raw type.
type SignalCategory string

const (
	CategoryStyle      SignalCategory = "style"
	CategoryPreference SignalCategory = "preference"
	CategoryFeedback   SignalCategory = "feedback"
	CategoryExpertise  SignalCategory = "expertise"
	CategoryGoal       SignalCategory = "goal"
	CategoryDecision   SignalCategory = "decision"
	CategoryBehavior   SignalCategory = "behavior"
)

func (t SignalType) Category() SignalCategory {
	switch t {
	case SignalMessageStyle:
		return CategoryStyle
	case SignalExplicitPreference:
		return CategoryPreference
	case SignalFeedback:
		return CategoryFeedback
	case SignalQuestionComplexity:
		return CategoryExpertise
	case SignalGoalReference:
		return CategoryGoal
	case SignalDecisionMention:
		return CategoryDecision
	case SignalModeSelection:
		return CategoryBehavior
	}
	return CategoryBehavior
}

// Tone is the register detected in a user message.
type Tone string

const (
	ToneCasual     Tone = "casual"
	ToneNeutral    Tone = "neutral"
	ToneFormal     Tone = "formal"
	ToneFrustrated Tone = "frustrated"
)

// FeedbackKind is the polarity of an explicit reaction to assistant output.
type FeedbackKind string

const (
	FeedbackCorrection  FeedbackKind = "correction"
	FeedbackPraise      FeedbackKind = "praise"
	FeedbackFrustration FeedbackKind = "frustration"
)

// ResponseMode is the assistant answer mode the user picked for a message.
type ResponseMode string

const (
	ModeQuick    ResponseMode = "quick"
	ModeBalanced ResponseMode = "balanced"
	ModeThorough ResponseMode = "thorough"
)

func ValidResponseMode(m ResponseMode) bool {
	switch m {
	case ModeQuick, ModeBalanced, ModeThorough:
		return true
	}
	return false
}

// SignalPayload holds the type-specific measurement of a signal. Fields are
// populated per signal type and omitted otherwise; the whole struct is
// stored as one JSONB column.
type SignalPayload struct {
	// message_style
	WordCount        int  `json:"word_count,omitempty"`
	SentenceCount    int  `json:"sentence_count,omitempty"`
	QuestionMarks    int  `json:"question_marks,omitempty"`
	ExclamationMarks int  `json:"exclamation_marks,omitempty"`
	HasCodeBlock     bool `json:"has_code_block,omitempty"`
	HasBullets       bool `json:"has_bullets,omitempty"`
	Tone             Tone `json:"tone,omitempty"`

	// explicit_preference
	PreferenceKey   string `json:"preference_key,omitempty"`
	PreferenceValue string `json:"preference_value,omitempty"`

	// feedback
	FeedbackKind FeedbackKind `json:"feedback_kind,omitempty"`

	// question_complexity
	Complexity     float64  `json:"complexity,omitempty"`
	TechnicalTerms int      `json:"technical_terms,omitempty"`
	Topics         []string `json:"topics,omitempty"`

	// goal_reference and decision_mention
	Excerpt  string `json:"excerpt,omitempty"`
	Deferred bool   `json:"deferred,omitempty"`

	// mode_selection
	Mode ResponseMode `json:"mode,omitempty"`
}

// Signal is a single observation extracted from one user message. Signals
// are append-only: inference reads them in batches and marks them processed,
// it never mutates the observation itself.
type Signal struct {
	ID          uuid.UUID      `json:"id"`
	ProfileID   uuid.UUID      `json:"profile_id"`
	WorkspaceID uuid.UUID      `json:"workspace_id"`
	Type        SignalType     `json:"type"`
	Category    SignalCategory `json:"category"`
	// Strength is how diagnostic this single observation is, 0..1. An
	// explicit "call me Sam" is near 1; one terse message is weak.
	Strength  float64       `json:"strength"`
	Payload   SignalPayload `json:"payload"`
	SessionID *uuid.UUID    `json:"session_id,omitempty"`
	MessageID *uuid.UUID    `json:"message_id,omitempty"`
	Processed bool          `json:"processed"`
	CreatedAt time.Time     `json:"created_at"`
}
