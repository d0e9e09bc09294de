package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attune-ai/attune/internal/domain"
)

func TestHub_OpenGetClose(t *testing.T) {
	hub := NewHub(time.Minute, zap.NewNop())

	state := hub.Open(uuid.New(), uuid.New(), domain.DefaultSessionSettings())
	if state.ID == uuid.Nil {
		t.Fatal("open should assign a session id")
	}
	if hub.Active() != 1 {
		t.Fatalf("active = %d, want 1", hub.Active())
	}

	got, ok := hub.Get(state.ID)
	if !ok || got != state {
		t.Fatal("get should return the same state instance")
	}

	closed, ok := hub.Close(state.ID)
	if !ok || closed != state {
		t.Fatal("close should return the state for flushing")
	}
	if _, ok := hub.Get(state.ID); ok {
		t.Error("closed session should be gone")
	}
	if _, ok := hub.Close(state.ID); ok {
		t.Error("double close should report missing")
	}
}

func TestHub_TTLEviction(t *testing.T) {
	hub := NewHub(20*time.Millisecond, zap.NewNop())
	state := hub.Open(uuid.New(), uuid.New(), domain.DefaultSessionSettings())

	time.Sleep(40 * time.Millisecond)
	if _, ok := hub.Get(state.ID); ok {
		t.Error("session should age out after the TTL")
	}
}

func TestState_QueueCapacityPruning(t *testing.T) {
	now := time.Now().UTC()
	state := newState(uuid.New(), uuid.New(), domain.DefaultSessionSettings(), 3, now)

	// An expired entry goes first when over capacity.
	expired := &domain.QueuedInsight{
		ID:        uuid.New(),
		Type:      domain.InsightRecall,
		Priority:  9,
		State:     domain.StatePending,
		ExpiresAt: now.Add(-time.Minute),
	}
	state.Enqueue(expired, 2, now)
	for i, priority := range []int{5, 3} {
		state.Enqueue(&domain.QueuedInsight{
			ID:        uuid.New(),
			Type:      domain.InsightNextStep,
			Priority:  priority,
			State:     domain.StatePending,
			ExpiresAt: now.Add(time.Hour),
		}, 2, now.Add(time.Duration(i+1)*time.Second))
	}

	pending := state.Pending()
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if expired.State != domain.StateExpired {
		t.Errorf("expired entry state = %v, want expired", expired.State)
	}

	// With nothing expired, the lowest-priority pending entry makes room.
	low := pending[1]
	state.Enqueue(&domain.QueuedInsight{
		ID:        uuid.New(),
		Type:      domain.InsightContradiction,
		Priority:  9,
		State:     domain.StatePending,
		ExpiresAt: now.Add(time.Hour),
	}, 2, now.Add(5*time.Second))

	if low.State != domain.StateDismissed {
		t.Errorf("lowest-priority entry state = %v, want dismissed", low.State)
	}
	if got := len(state.Pending()); got != 2 {
		t.Errorf("pending after pruning = %d, want 2", got)
	}
}

func TestState_DrainStatsResets(t *testing.T) {
	now := time.Now().UTC()
	state := newState(uuid.New(), uuid.New(), domain.DefaultSessionSettings(), 3, now)

	q := &domain.QueuedInsight{ID: uuid.New(), Type: domain.InsightClarify, State: domain.StatePending, ExpiresAt: now.Add(time.Hour)}
	state.Enqueue(q, 20, now)
	state.MarkDelivered(q, now)
	state.MarkEngaged(q.Type)

	first := state.DrainStats()
	if d := first[domain.InsightClarify]; d.Shown != 1 || d.Engaged != 1 {
		t.Errorf("delta = %+v, want shown 1 engaged 1", d)
	}
	if second := state.DrainStats(); len(second) != 0 {
		t.Error("second drain should be empty")
	}
}
