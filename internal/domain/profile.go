package domain

import (
	"time"

	"github.com/google/uuid"
)

// PrivacyTier controls how much of a user's behavior the engine is allowed
// to observe and retain.
type PrivacyTier string

const (
	// PrivacyTierA keeps everything session-scoped: no signals are stored
	// and no durable beliefs are inferred.
	PrivacyTierA PrivacyTier = "A"
	// PrivacyTierB stores behavioral signals and runs inference, but
	// excludes identity facts unless the user states them explicitly.
	PrivacyTierB PrivacyTier = "B"
	// PrivacyTierC is full personalization.
	PrivacyTierC PrivacyTier = "C"
)

func ValidPrivacyTier(t PrivacyTier) bool {
	switch t {
	case PrivacyTierA, PrivacyTierB, PrivacyTierC:
		return true
	}
	return false
}

// AllowsDurableSignals reports whether observed behavior may be persisted
// beyond the current session.
func (t PrivacyTier) AllowsDurableSignals() bool {
	return t == PrivacyTierB || t == PrivacyTierC
}

// AllowsIdentityInference reports whether identity facts may be inferred
// from behavior rather than stated explicitly.
func (t PrivacyTier) AllowsIdentityInference() bool {
	return t == PrivacyTierC
}

// Profile is the durable per-user record inside a workspace. Everything the
// engine believes about a user hangs off this row.
type Profile struct {
	ID               uuid.UUID   `json:"id"`
	WorkspaceID      uuid.UUID   `json:"workspace_id"`
	ExternalUserID   string      `json:"external_user_id"`
	PrivacyTier      PrivacyTier `json:"privacy_tier"`
	SessionCount     int         `json:"session_count"`
	SignalCount      int         `json:"signal_count"`
	LastReflectionAt *time.Time  `json:"last_reflection_at,omitempty"`
	NextReflectionAt *time.Time  `json:"next_reflection_at,omitempty"`
	LastSessionAt    *time.Time  `json:"last_session_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
