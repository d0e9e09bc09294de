package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type WorkspaceStore interface {
	Create(ctx context.Context, w *Workspace) error
	GetByID(ctx context.Context, id uuid.UUID) (*Workspace, error)
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Workspace, error)
}

type ProfileStore interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*Profile, error)
	GetByExternalID(ctx context.Context, externalID string, workspaceID uuid.UUID) (*Profile, error)
	UpdatePrivacyTier(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID, tier PrivacyTier) error

	// Session bookkeeping
	RecordSessionStart(ctx context.Context, id uuid.UUID, at time.Time) error
	AddSignalCount(ctx context.Context, id uuid.UUID, delta int) error

	// Reflection bookkeeping. MarkReflected only wins when the stored
	// last_reflection_at still matches observed; a false return means
	// another runner got there first.
	MarkReflected(ctx context.Context, id uuid.UUID, observed *time.Time, ranAt, next time.Time) (bool, error)
	ListReflectionCandidates(ctx context.Context, limit int) ([]Profile, error)
}

type SignalStore interface {
	Insert(ctx context.Context, s *Signal) error
	InsertBatch(ctx context.Context, signals []*Signal) error
	ListUnprocessed(ctx context.Context, profileID uuid.UUID, limit int) ([]Signal, error)
	CountUnprocessed(ctx context.Context, profileID uuid.UUID) (int, error)
	MarkProcessed(ctx context.Context, ids []uuid.UUID) error
	DeleteByProfile(ctx context.Context, profileID uuid.UUID) (int64, error)
}

type DimensionStore interface {
	Upsert(ctx context.Context, s *DimensionScore) error
	Get(ctx context.Context, profileID uuid.UUID, d BeliefDomain) (*DimensionScore, error)
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]DimensionScore, error)
	DeleteByProfile(ctx context.Context, profileID uuid.UUID) (int64, error)
}

type ElicitationStore interface {
	Create(ctx context.Context, r *ElicitationResponse) error
	GetByID(ctx context.Context, id uuid.UUID, profileID uuid.UUID) (*ElicitationResponse, error)
	// Resolve records the user's answer to an open question.
	Resolve(ctx context.Context, id uuid.UUID, answer, factKey, factValue string, answeredAt time.Time) error
	MarkSkipped(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]ElicitationResponse, error)
	DeleteByProfile(ctx context.Context, profileID uuid.UUID) (int64, error)
}

type InsightStatsStore interface {
	// Bump adds shown/engaged counts for one category, creating the row
	// on first use.
	Bump(ctx context.Context, profileID uuid.UUID, t InsightType, shown, engaged int) error
	AddRating(ctx context.Context, profileID uuid.UUID, t InsightType, rating float64) error
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]InsightCategoryStats, error)
	DeleteByProfile(ctx context.Context, profileID uuid.UUID) (int64, error)
}

// UserMessage is the raw input handed to the classifier. The engine never
// stores the text itself, only the signals extracted from it.
type UserMessage struct {
	Text      string       `json:"text"`
	SessionID *uuid.UUID   `json:"session_id,omitempty"`
	MessageID *uuid.UUID   `json:"message_id,omitempty"`
	Mode      ResponseMode `json:"mode,omitempty"`
	SentAt    time.Time    `json:"sent_at"`
}

// MessageClassifier turns one user message into zero or more signals.
// Returned signals carry type, category, strength and payload; the caller
// stamps profile and workspace ownership. Implementations may call out to
// a model, so everything takes a context.
type MessageClassifier interface {
	Classify(ctx context.Context, msg UserMessage) ([]Signal, error)
	// Topics extracts coarse subject tags used for contextual insight
	// matching.
	Topics(ctx context.Context, text string) ([]string, error)
}
