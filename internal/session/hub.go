package session

import (
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/attune-ai/attune/internal/domain"
)

const (
	// DefaultTTL evicts sessions that stop touching the hub. A TTL well
	// past the away threshold keeps brief tab-aways alive.
	DefaultTTL = 2 * time.Hour
	// DefaultInterruptsPerHour is the interrupt budget for sessions that
	// do not override it.
	DefaultInterruptsPerHour = 3

	cleanupInterval = 10 * time.Minute
)

// Hub owns all active session state for one process, keyed by session id
// with TTL eviction. It is injected into every service that needs live
// session state; nothing in the engine reaches for a package-level
// singleton. State held here is process-local: behind multiple stateless
// server instances each process sees only its own sessions.
type Hub struct {
	cache  *gocache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewHub(ttl time.Duration, logger *zap.Logger) *Hub {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Hub{
		cache:  gocache.New(ttl, cleanupInterval),
		ttl:    ttl,
		logger: logger,
	}
}

// Open creates and registers a fresh session for a profile.
func (h *Hub) Open(profileID, workspaceID uuid.UUID, settings domain.SessionSettings) *State {
	state := newState(profileID, workspaceID, settings, DefaultInterruptsPerHour, time.Now().UTC())
	h.cache.Set(state.ID.String(), state, h.ttl)
	h.logger.Debug("session opened",
		zap.String("session_id", state.ID.String()),
		zap.String("profile_id", profileID.String()))
	return state
}

// Get returns the live state for a session id, refreshing its TTL.
func (h *Hub) Get(id uuid.UUID) (*State, bool) {
	v, ok := h.cache.Get(id.String())
	if !ok {
		return nil, false
	}
	state := v.(*State)
	h.cache.Set(id.String(), state, h.ttl)
	return state, true
}

// Close removes a session and returns its final state so the caller can
// flush counters. Closing an unknown or already-evicted session returns
// false.
func (h *Hub) Close(id uuid.UUID) (*State, bool) {
	v, ok := h.cache.Get(id.String())
	if !ok {
		return nil, false
	}
	h.cache.Delete(id.String())
	h.logger.Debug("session closed", zap.String("session_id", id.String()))
	return v.(*State), true
}

// Active reports how many sessions the hub currently holds.
func (h *Hub) Active() int {
	return h.cache.ItemCount()
}
