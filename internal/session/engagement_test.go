package session

import (
	"testing"
	"time"

	"github.com/attune-ai/attune/internal/domain"
)

func TestEstimator_FreshSessionIsActive(t *testing.T) {
	var e Estimator
	if got := e.Level(time.Now()); got != domain.EngagementActive {
		t.Errorf("level with no samples = %v, want active", got)
	}
}

func TestEstimator_SustainedFastTypingIsDeep(t *testing.T) {
	var e Estimator
	now := time.Now()

	// ~8 chars/sec across several samples.
	for i := 0; i < 6; i++ {
		e.Record(40, now.Add(time.Duration(i)*5*time.Second))
	}
	at := now.Add(30 * time.Second)
	if got := e.Level(at); got != domain.EngagementDeep {
		t.Errorf("level after sustained fast typing = %v, want deep", got)
	}
}

func TestEstimator_ModerateTypingIsActive(t *testing.T) {
	var e Estimator
	now := time.Now()

	for i := 0; i < 6; i++ {
		e.Record(10, now.Add(time.Duration(i)*10*time.Second))
	}
	if got := e.Level(now.Add(time.Minute)); got != domain.EngagementActive {
		t.Errorf("level = %v, want active", got)
	}
}

func TestEstimator_SilenceDegradesToIdleThenAway(t *testing.T) {
	var e Estimator
	now := time.Now()
	for i := 0; i < 6; i++ {
		e.Record(40, now.Add(time.Duration(i)*5*time.Second))
	}
	last := now.Add(25 * time.Second)

	if got := e.Level(last.Add(IdleAfter + time.Second)); got != domain.EngagementIdle {
		t.Errorf("level after idle threshold = %v, want idle (silence beats typing rate)", got)
	}
	if got := e.Level(last.Add(AwayAfter + time.Second)); got != domain.EngagementAway {
		t.Errorf("level after away threshold = %v, want away", got)
	}
}

func TestInterruptible(t *testing.T) {
	cases := map[domain.EngagementLevel]bool{
		domain.EngagementDeep:   false,
		domain.EngagementActive: true,
		domain.EngagementIdle:   true,
		domain.EngagementAway:   false,
	}
	for level, want := range cases {
		if got := level.Interruptible(); got != want {
			t.Errorf("%s.Interruptible() = %v, want %v", level, got, want)
		}
	}
}
