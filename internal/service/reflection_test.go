package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/attune-ai/attune/internal/domain"
)

func newReflectionFixture() (*ReflectionService, *mockProfileStore, *mockSignalStore, *mockDimensionStore) {
	profiles := newMockProfileStore()
	signals := newMockSignalStore()
	dimensions := newMockDimensionStore()
	svc := NewReflectionService(profiles, signals, dimensions, zap.NewNop())
	return svc, profiles, signals, dimensions
}

func prefSignal(profileID uuid.UUID, key, value string) *domain.Signal {
	return &domain.Signal{
		ID:        uuid.New(),
		ProfileID: profileID,
		Type:      domain.SignalExplicitPreference,
		Category:  domain.CategoryPreference,
		Strength:  0.9,
		Payload:   domain.SignalPayload{PreferenceKey: key, PreferenceValue: value},
		CreatedAt: time.Now().UTC(),
	}
}

func TestEligible(t *testing.T) {
	svc, _, _, _ := newReflectionFixture()
	now := time.Now().UTC()
	recent := now.Add(-1 * time.Hour)
	stale := now.Add(-30 * time.Hour)
	due := now.Add(-1 * time.Minute)
	future := now.Add(6 * time.Hour)

	tests := []struct {
		name        string
		profile     domain.Profile
		unprocessed int
		want        bool
	}{
		{
			name:    "tier A never eligible",
			profile: domain.Profile{PrivacyTier: domain.PrivacyTierA},
			// Even a huge backlog cannot admit a session-only profile.
			unprocessed: 100,
			want:        false,
		},
		{
			name:        "signal backlog",
			profile:     domain.Profile{PrivacyTier: domain.PrivacyTierB, LastReflectionAt: &recent},
			unprocessed: 10,
			want:        true,
		},
		{
			name:        "backlog just under threshold",
			profile:     domain.Profile{PrivacyTier: domain.PrivacyTierB, LastReflectionAt: &recent, NextReflectionAt: &future},
			unprocessed: 9,
			want:        false,
		},
		{
			name:        "scheduled reflection due",
			profile:     domain.Profile{PrivacyTier: domain.PrivacyTierB, LastReflectionAt: &recent, NextReflectionAt: &due},
			unprocessed: 0,
			want:        true,
		},
		{
			name:        "stale with pending signals",
			profile:     domain.Profile{PrivacyTier: domain.PrivacyTierC, LastReflectionAt: &stale, NextReflectionAt: &future},
			unprocessed: 1,
			want:        true,
		},
		{
			name:        "stale but nothing pending",
			profile:     domain.Profile{PrivacyTier: domain.PrivacyTierC, LastReflectionAt: &stale, NextReflectionAt: &future},
			unprocessed: 0,
			want:        false,
		},
		{
			name:        "first reflection bootstrap",
			profile:     domain.Profile{PrivacyTier: domain.PrivacyTierB},
			unprocessed: 3,
			want:        true,
		},
		{
			name:        "bootstrap needs three signals",
			profile:     domain.Profile{PrivacyTier: domain.PrivacyTierB},
			unprocessed: 2,
			want:        false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := svc.Eligible(&tt.profile, tt.unprocessed, now)
			if got != tt.want {
				t.Errorf("Eligible() = %v (%s), want %v", got, reason, tt.want)
			}
		})
	}
}

func TestRun_NotEligibleIsNoop(t *testing.T) {
	svc, profiles, signals, _ := newReflectionFixture()
	recent := time.Now().UTC().Add(-1 * time.Hour)
	profile := profiles.add(&domain.Profile{
		WorkspaceID:      uuid.New(),
		PrivacyTier:      domain.PrivacyTierB,
		LastReflectionAt: &recent,
	})
	_ = signals.Insert(context.Background(), prefSignal(profile.ID, "verbosity", "detailed"))

	outcome, err := svc.Run(context.Background(), profile.ID, profile.WorkspaceID, false)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if outcome.Ran {
		t.Fatalf("Run() ran with one pending signal an hour after the last pass, reason %q", outcome.Reason)
	}
	if n, _ := signals.CountUnprocessed(context.Background(), profile.ID); n != 1 {
		t.Errorf("noop pass consumed signals: %d unprocessed left", n)
	}
}

func TestRun_BootstrapPass(t *testing.T) {
	svc, profiles, signals, dimensions := newReflectionFixture()
	profile := profiles.add(&domain.Profile{
		WorkspaceID:  uuid.New(),
		PrivacyTier:  domain.PrivacyTierB,
		SessionCount: 2,
	})
	for i := 0; i < 3; i++ {
		_ = signals.Insert(context.Background(), prefSignal(profile.ID, "verbosity", "detailed"))
	}

	outcome, err := svc.Run(context.Background(), profile.ID, profile.WorkspaceID, false)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !outcome.Ran {
		t.Fatalf("bootstrap profile with 3 signals did not reflect: %s", outcome.Reason)
	}
	if outcome.SignalsProcessed != 3 {
		t.Errorf("SignalsProcessed = %d, want 3", outcome.SignalsProcessed)
	}

	score, err := dimensions.Get(context.Background(), profile.ID, domain.DomainCommunicationStyle)
	if err != nil {
		t.Fatalf("communication_style not written: %v", err)
	}
	style, ok := score.Value.(domain.CommunicationStyleValue)
	if !ok {
		t.Fatalf("communication_style value is %T", score.Value)
	}
	if style.Verbosity != domain.VerbosityDetailed {
		t.Errorf("Verbosity = %s, want detailed", style.Verbosity)
	}
	if !score.HasSource(domain.SourceExplicitPKV) {
		t.Errorf("sources = %v, want EXPLICIT_PKV", score.Sources)
	}

	if n, _ := signals.CountUnprocessed(context.Background(), profile.ID); n != 0 {
		t.Errorf("%d signals left unprocessed after a pass", n)
	}
	stored, _ := profiles.GetByID(context.Background(), profile.ID, profile.WorkspaceID)
	if stored.LastReflectionAt == nil || stored.NextReflectionAt == nil {
		t.Error("reflection bookkeeping not stamped on the profile")
	}
}

func TestRun_SecondPassIsNoop(t *testing.T) {
	svc, profiles, signals, _ := newReflectionFixture()
	profile := profiles.add(&domain.Profile{
		WorkspaceID: uuid.New(),
		PrivacyTier: domain.PrivacyTierB,
	})
	for i := 0; i < 3; i++ {
		_ = signals.Insert(context.Background(), prefSignal(profile.ID, "verbosity", "concise"))
	}

	first, err := svc.Run(context.Background(), profile.ID, profile.WorkspaceID, false)
	if err != nil || !first.Ran {
		t.Fatalf("first pass: ran=%v err=%v", first.Ran, err)
	}
	second, err := svc.Run(context.Background(), profile.ID, profile.WorkspaceID, false)
	if err != nil {
		t.Fatalf("second pass error: %v", err)
	}
	if second.Ran {
		t.Error("back-to-back pass ran with nothing pending")
	}
}

func TestRun_TierA_ForceDoesNotOverridePrivacy(t *testing.T) {
	svc, profiles, signals, dimensions := newReflectionFixture()
	profile := profiles.add(&domain.Profile{
		WorkspaceID: uuid.New(),
		PrivacyTier: domain.PrivacyTierA,
	})
	for i := 0; i < 5; i++ {
		_ = signals.Insert(context.Background(), prefSignal(profile.ID, "verbosity", "detailed"))
	}

	outcome, err := svc.Run(context.Background(), profile.ID, profile.WorkspaceID, true)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if outcome.Ran {
		t.Fatal("forced run inferred durable beliefs for a tier A profile")
	}
	if got, _ := dimensions.ListByProfile(context.Background(), profile.ID); len(got) != 0 {
		t.Errorf("tier A profile has %d dimension scores", len(got))
	}
}

func TestRun_StrongerStandingBeliefSurvives(t *testing.T) {
	svc, profiles, signals, dimensions := newReflectionFixture()
	profile := profiles.add(&domain.Profile{
		WorkspaceID: uuid.New(),
		PrivacyTier: domain.PrivacyTierB,
	})
	now := time.Now().UTC()
	// An elicited answer at full certainty, still fresh.
	_ = dimensions.Upsert(context.Background(), &domain.DimensionScore{
		ProfileID:   profile.ID,
		Domain:      domain.DomainCommunicationStyle,
		Value:       domain.CommunicationStyleValue{Verbosity: domain.VerbosityConcise, Tone: domain.ToneNeutral, Format: domain.FormatProse},
		Confidence:  1.0,
		DecayRate:   domain.PreferenceDecayRate,
		Sources:     []domain.EvidenceSource{domain.SourceElicited},
		LastUpdated: now,
	})
	for i := 0; i < 3; i++ {
		_ = signals.Insert(context.Background(), prefSignal(profile.ID, "verbosity", "detailed"))
	}

	outcome, err := svc.Run(context.Background(), profile.ID, profile.WorkspaceID, false)
	if err != nil || !outcome.Ran {
		t.Fatalf("pass: ran=%v err=%v", outcome != nil && outcome.Ran, err)
	}
	if outcome.DomainsDecayed == 0 {
		t.Error("kept belief was not rebased")
	}

	score, err := dimensions.Get(context.Background(), profile.ID, domain.DomainCommunicationStyle)
	if err != nil {
		t.Fatal(err)
	}
	style := score.Value.(domain.CommunicationStyleValue)
	if style.Verbosity != domain.VerbosityConcise {
		t.Errorf("weaker batch overwrote the elicited belief: verbosity = %s", style.Verbosity)
	}
}

func TestRun_ReportsGapsWeakestFirst(t *testing.T) {
	svc, profiles, signals, _ := newReflectionFixture()
	profile := profiles.add(&domain.Profile{
		WorkspaceID: uuid.New(),
		PrivacyTier: domain.PrivacyTierB,
	})
	for i := 0; i < 3; i++ {
		_ = signals.Insert(context.Background(), prefSignal(profile.ID, "verbosity", "detailed"))
	}

	outcome, err := svc.Run(context.Background(), profile.ID, profile.WorkspaceID, false)
	if err != nil || !outcome.Ran {
		t.Fatalf("pass: err=%v", err)
	}
	if len(outcome.Gaps) == 0 {
		t.Fatal("a nearly empty profile reported no gaps")
	}
	for i := 1; i < len(outcome.Gaps); i++ {
		if outcome.Gaps[i].Priority > outcome.Gaps[i-1].Priority {
			t.Fatalf("gaps not sorted by priority: %v", outcome.Gaps)
		}
	}
	for _, gap := range outcome.Gaps {
		if gap.Confidence >= domain.ActWithUncertaintyThreshold {
			t.Errorf("gap %s reported at confidence %v, above the acting floor", gap.Domain, gap.Confidence)
		}
	}
}

func TestSweep_OneFailureDoesNotAbort(t *testing.T) {
	svc, profiles, signals, _ := newReflectionFixture()
	workspace := uuid.New()
	healthy := profiles.add(&domain.Profile{WorkspaceID: workspace, PrivacyTier: domain.PrivacyTierB})
	broken := profiles.add(&domain.Profile{WorkspaceID: workspace, PrivacyTier: domain.PrivacyTierB})
	profiles.failGet[broken.ID] = true
	for i := 0; i < 3; i++ {
		_ = signals.Insert(context.Background(), prefSignal(healthy.ID, "verbosity", "concise"))
		_ = signals.Insert(context.Background(), prefSignal(broken.ID, "verbosity", "concise"))
	}

	result, err := svc.Sweep(context.Background(), 10)
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if result.Processed != 2 {
		t.Errorf("Processed = %d, want 2", result.Processed)
	}
	if result.Succeeded != 1 {
		t.Errorf("Succeeded = %d, want 1", result.Succeeded)
	}
	if result.Failed != 1 || len(result.Errors) != 1 {
		t.Errorf("Failed = %d, Errors = %v, want one failure", result.Failed, result.Errors)
	}
}

func TestSweeper_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))

	svc, _, _, _ := newReflectionFixture()
	if err := svc.StartSweeper("@every 1h", 10); err != nil {
		t.Fatalf("StartSweeper() error: %v", err)
	}
	svc.StopSweeper()
}

func TestStartSweeper_RejectsBadSchedule(t *testing.T) {
	svc, _, _, _ := newReflectionFixture()
	if err := svc.StartSweeper("not a schedule", 10); err == nil {
		svc.StopSweeper()
		t.Fatal("StartSweeper accepted a malformed schedule")
	}
}
