package domain

// EngagementLevel is the live read of how present the user is right now.
// Delivery rules key off it: deep work is never interrupted.
type EngagementLevel string

const (
	// EngagementDeep means rapid, dense back-and-forth. Do not interrupt.
	EngagementDeep EngagementLevel = "deep"
	// EngagementActive is normal conversational rhythm.
	EngagementActive EngagementLevel = "active"
	// EngagementIdle means the user has gone quiet but the session is
	// still warm.
	EngagementIdle EngagementLevel = "idle"
	// EngagementAway means the session looks abandoned.
	EngagementAway EngagementLevel = "away"
)

// Interruptible reports whether proactive delivery is acceptable at this
// engagement level. Idle is the sweet spot; active tolerates contextual
// nudges; deep and away never interrupt.
func (l EngagementLevel) Interruptible() bool {
	return l == EngagementActive || l == EngagementIdle
}

// SessionSettings are the per-session delivery switches the host
// application controls. They are not persisted; every session starts from
// defaults.
type SessionSettings struct {
	// InsightsEnabled gates all proactive delivery for the session.
	InsightsEnabled bool `json:"insights_enabled"`
	// BubbleMode is the ambient-notification surface. With it off there is
	// nowhere to put an insight, so nothing is surfaced.
	BubbleMode bool `json:"bubble_mode"`
	// QuietMode lets only high-priority insights through.
	QuietMode bool `json:"quiet_mode"`
	// FocusMode is an explicit do-not-disturb the user switched on.
	FocusMode bool `json:"focus_mode"`
	// ActiveConversation marks a live exchange in progress. A live
	// exchange is never interrupted.
	ActiveConversation bool `json:"active_conversation"`
	// MutedTypes are categories the user muted for this session.
	MutedTypes []InsightType `json:"muted_types,omitempty"`
	// EnabledTriggers restricts delivery moments. Empty means all.
	EnabledTriggers []InsightTrigger `json:"enabled_triggers,omitempty"`
	// MaxInterruptsPerHour overrides the default interrupt budget when
	// positive.
	MaxInterruptsPerHour int `json:"max_interrupts_per_hour,omitempty"`
	// MaxPerSession overrides the session-total delivery cap when
	// positive.
	MaxPerSession int `json:"max_per_session,omitempty"`
}

func DefaultSessionSettings() SessionSettings {
	return SessionSettings{InsightsEnabled: true, BubbleMode: true}
}

// TypeMuted reports whether the given category is muted this session.
func (s SessionSettings) TypeMuted(t InsightType) bool {
	for _, muted := range s.MutedTypes {
		if muted == t {
			return true
		}
	}
	return false
}

// TriggerEnabled reports whether the user accepts deliveries on the given
// moment. An empty list means every trigger is acceptable.
func (s SessionSettings) TriggerEnabled(t InsightTrigger) bool {
	if len(s.EnabledTriggers) == 0 {
		return true
	}
	for _, enabled := range s.EnabledTriggers {
		if enabled == t {
			return true
		}
	}
	return false
}
