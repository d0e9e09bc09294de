package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attune-ai/attune/internal/domain"
)

func newElicitationFixture() (*ElicitationService, *mockElicitationStore, *mockDimensionStore) {
	responses := newMockElicitationStore()
	dimensions := newMockDimensionStore()
	return NewElicitationService(responses, dimensions, zap.NewNop()), responses, dimensions
}

func elicitationProfile(sessions int) *domain.Profile {
	return &domain.Profile{
		ID:           uuid.New(),
		WorkspaceID:  uuid.New(),
		PrivacyTier:  domain.PrivacyTierC,
		SessionCount: sessions,
	}
}

func TestShouldAsk_NeverInFirstSession(t *testing.T) {
	svc, _, _ := newElicitationFixture()
	decision, err := svc.ShouldAsk(context.Background(), elicitationProfile(1), nil)
	if err != nil {
		t.Fatalf("ShouldAsk() error: %v", err)
	}
	if decision.Ask {
		t.Fatalf("asked %q in the first session", decision.Question.ID)
	}
}

func TestShouldAsk_PicksHighestPriorityEarlyQuestion(t *testing.T) {
	svc, _, _ := newElicitationFixture()
	decision, err := svc.ShouldAsk(context.Background(), elicitationProfile(2), nil)
	if err != nil {
		t.Fatalf("ShouldAsk() error: %v", err)
	}
	if !decision.Ask {
		t.Fatalf("session 2 with an empty profile asked nothing: %s", decision.Reason)
	}
	if decision.Question.ID != "name" {
		t.Errorf("question = %s, want name (highest-priority early question)", decision.Question.ID)
	}
	if decision.Trigger != domain.TriggerOnboarding {
		t.Errorf("trigger = %s, want onboarding", decision.Trigger)
	}
}

func TestShouldAsk_MidPhaseUnlocksWorkingPreferences(t *testing.T) {
	svc, responses, _ := newElicitationFixture()
	profile := elicitationProfile(4)
	// The early questions were all asked already.
	for _, id := range []string{"name", "role", "primary_goal"} {
		_ = responses.Create(context.Background(), &domain.ElicitationResponse{
			ProfileID: profile.ID, QuestionID: id,
			Trigger: domain.TriggerOnboarding, AskedAt: time.Now().UTC().Add(-48 * time.Hour),
		})
	}

	decision, err := svc.ShouldAsk(context.Background(), profile, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Ask {
		t.Fatalf("mid phase asked nothing: %s", decision.Reason)
	}
	if decision.Question.ID != "verbosity" {
		t.Errorf("question = %s, want verbosity (highest-priority mid question)", decision.Question.ID)
	}
}

func TestShouldAsk_OnePerSession(t *testing.T) {
	svc, _, _ := newElicitationFixture()
	profile := elicitationProfile(2)
	sessionID := uuid.New()

	decision, err := svc.ShouldAsk(context.Background(), profile, &sessionID)
	if err != nil || !decision.Ask {
		t.Fatalf("first ask: %+v, %v", decision, err)
	}
	if _, err := svc.MarkAsked(context.Background(), profile, decision.Question, &sessionID, decision.Trigger); err != nil {
		t.Fatal(err)
	}

	again, err := svc.ShouldAsk(context.Background(), profile, &sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Ask {
		t.Fatalf("asked twice in one session: %s", again.Question.ID)
	}
}

func TestShouldAsk_SkipsKnownFacts(t *testing.T) {
	svc, _, dimensions := newElicitationFixture()
	profile := elicitationProfile(2)
	// The user already told us their name; asking again would grate.
	_ = dimensions.Upsert(context.Background(), &domain.DimensionScore{
		ProfileID:   profile.ID,
		Domain:      domain.DomainIdentity,
		Value:       domain.IdentityValue{Name: "Sam"},
		Confidence:  0.43,
		Sources:     []domain.EvidenceSource{domain.SourceExplicitPKV},
		LastUpdated: time.Now().UTC(),
	})

	decision, err := svc.ShouldAsk(context.Background(), profile, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Ask {
		t.Fatalf("asked nothing: %s", decision.Reason)
	}
	if decision.Question.ID == "name" {
		t.Error("asked for a name the user already gave")
	}
}

func TestShouldAsk_SkipsConfidentDomains(t *testing.T) {
	svc, _, dimensions := newElicitationFixture()
	profile := elicitationProfile(2)
	_ = dimensions.Upsert(context.Background(), &domain.DimensionScore{
		ProfileID:   profile.ID,
		Domain:      domain.DomainIdentity,
		Value:       domain.IdentityValue{Role: "data engineering"},
		Confidence:  0.6,
		Sources:     []domain.EvidenceSource{domain.SourceBehavioralRepeated},
		LastUpdated: time.Now().UTC(),
	})

	decision, err := svc.ShouldAsk(context.Background(), profile, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Ask {
		t.Fatalf("asked nothing: %s", decision.Reason)
	}
	if decision.Question.Domain == domain.DomainIdentity {
		t.Errorf("asked %s about a domain already above the uncertainty floor", decision.Question.ID)
	}
}

func TestShouldAsk_GapPathAfterOnboardingCap(t *testing.T) {
	svc, responses, _ := newElicitationFixture()
	profile := elicitationProfile(8)
	for i, id := range []string{"name", "role", "primary_goal", "verbosity"} {
		_ = responses.Create(context.Background(), &domain.ElicitationResponse{
			ProfileID: profile.ID, QuestionID: id,
			Trigger: domain.TriggerOnboarding,
			AskedAt: time.Now().UTC().Add(-time.Duration(30-i) * 24 * time.Hour),
		})
	}

	decision, err := svc.ShouldAsk(context.Background(), profile, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Ask {
		t.Fatalf("gap path asked nothing: %s", decision.Reason)
	}
	if decision.Trigger != domain.TriggerGap {
		t.Errorf("trigger = %s, want gap", decision.Trigger)
	}
	if decision.Question.ID != "gap_identity" {
		t.Errorf("question = %s, want gap_identity for the weakest domain", decision.Question.ID)
	}
}

func TestShouldAsk_GapWindowHolds(t *testing.T) {
	svc, responses, _ := newElicitationFixture()
	profile := elicitationProfile(8)
	for _, id := range []string{"name", "role", "primary_goal", "verbosity"} {
		_ = responses.Create(context.Background(), &domain.ElicitationResponse{
			ProfileID: profile.ID, QuestionID: id,
			Trigger: domain.TriggerOnboarding, AskedAt: time.Now().UTC().Add(-60 * 24 * time.Hour),
		})
	}
	// A gap question went out two days ago; the week is not up.
	_ = responses.Create(context.Background(), &domain.ElicitationResponse{
		ProfileID: profile.ID, QuestionID: "gap_goals",
		Trigger: domain.TriggerGap, AskedAt: time.Now().UTC().Add(-48 * time.Hour),
	})

	decision, err := svc.ShouldAsk(context.Background(), profile, nil)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Ask {
		t.Fatalf("gap question %s asked inside the spacing window", decision.Question.ID)
	}
}

func TestRecordAnswer_NormalizesAndAppliesFact(t *testing.T) {
	svc, _, dimensions := newElicitationFixture()
	profile := elicitationProfile(4)
	ctx := context.Background()

	var verbosity *domain.Question
	for i := range onboardingCatalog {
		if onboardingCatalog[i].ID == "verbosity" {
			verbosity = &onboardingCatalog[i]
		}
	}
	asked, err := svc.MarkAsked(ctx, profile, verbosity, nil, domain.TriggerOnboarding)
	if err != nil {
		t.Fatal(err)
	}

	answered, err := svc.RecordAnswer(ctx, profile.ID, asked.ID, "Short ones, please.")
	if err != nil {
		t.Fatalf("RecordAnswer() error: %v", err)
	}
	if answered.FactValue != string(domain.VerbosityConcise) {
		t.Errorf("FactValue = %q, want %q", answered.FactValue, domain.VerbosityConcise)
	}
	if !answered.Answered() {
		t.Error("response not marked answered")
	}

	score, err := dimensions.Get(ctx, profile.ID, domain.DomainCommunicationStyle)
	if err != nil {
		t.Fatalf("belief not written: %v", err)
	}
	if score.Confidence != 1.0 {
		t.Errorf("elicited confidence = %v, want 1.0", score.Confidence)
	}
	if !score.HasSource(domain.SourceElicited) {
		t.Errorf("sources = %v, want ELICITED", score.Sources)
	}
	style := score.Value.(domain.CommunicationStyleValue)
	if style.Verbosity != domain.VerbosityConcise {
		t.Errorf("Verbosity = %s, want concise", style.Verbosity)
	}

	// The question is closed now.
	if _, err := svc.RecordAnswer(ctx, profile.ID, asked.ID, "detailed actually"); !errors.Is(err, ErrQuestionNotOpen) {
		t.Errorf("second answer error = %v, want ErrQuestionNotOpen", err)
	}
}

func TestRecordAnswer_KeepsInferenceTrail(t *testing.T) {
	svc, _, dimensions := newElicitationFixture()
	profile := elicitationProfile(4)
	ctx := context.Background()
	_ = dimensions.Upsert(ctx, &domain.DimensionScore{
		ProfileID:   profile.ID,
		Domain:      domain.DomainCommunicationStyle,
		Value:       domain.CommunicationStyleValue{Verbosity: domain.VerbosityBalanced, Tone: domain.ToneCasual, Format: domain.FormatProse},
		Confidence:  0.26,
		Sources:     []domain.EvidenceSource{domain.SourceBehavioralRepeated},
		LastUpdated: time.Now().UTC(),
	})

	var verbosity *domain.Question
	for i := range onboardingCatalog {
		if onboardingCatalog[i].ID == "verbosity" {
			verbosity = &onboardingCatalog[i]
		}
	}
	asked, err := svc.MarkAsked(ctx, profile, verbosity, nil, domain.TriggerOnboarding)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordAnswer(ctx, profile.ID, asked.ID, "give me all the detail"); err != nil {
		t.Fatal(err)
	}

	score, _ := dimensions.Get(ctx, profile.ID, domain.DomainCommunicationStyle)
	if !score.HasSource(domain.SourceElicited) || !score.HasSource(domain.SourceBehavioralRepeated) {
		t.Errorf("sources = %v, want the behavioral trail kept alongside ELICITED", score.Sources)
	}
	style := score.Value.(domain.CommunicationStyleValue)
	if style.Verbosity != domain.VerbosityDetailed {
		t.Errorf("Verbosity = %s, want detailed", style.Verbosity)
	}
	if style.Tone != domain.ToneCasual {
		t.Errorf("Tone = %s, answered fact overwrote an unrelated field", style.Tone)
	}
}

func TestRecordSkip(t *testing.T) {
	svc, _, _ := newElicitationFixture()
	profile := elicitationProfile(2)
	ctx := context.Background()

	asked, err := svc.MarkAsked(ctx, profile, &onboardingCatalog[0], nil, domain.TriggerOnboarding)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.RecordSkip(ctx, profile.ID, asked.ID); err != nil {
		t.Fatalf("RecordSkip() error: %v", err)
	}
	if _, err := svc.RecordAnswer(ctx, profile.ID, asked.ID, "Sam"); !errors.Is(err, ErrQuestionNotOpen) {
		t.Errorf("answer after skip error = %v, want ErrQuestionNotOpen", err)
	}
	if err := svc.RecordSkip(ctx, profile.ID, asked.ID); !errors.Is(err, ErrQuestionNotOpen) {
		t.Errorf("double skip error = %v, want ErrQuestionNotOpen", err)
	}
}

func TestNormalizeFact(t *testing.T) {
	tests := []struct {
		factKey string
		answer  string
		want    string
	}{
		{"verbosity", "Short answers please", "concise"},
		{"verbosity", "I like thorough explanations.", "detailed"},
		{"format", "bullets!", "structured"},
		{"format", "plain paragraphs", "prose"},
		{"expertise_level", "I'm pretty much an expert", "expert"},
		{"expertise_level", "keep it simple", "novice"},
		{"primary_goal", "Ship the Q3 launch", "ship the q3 launch"},
	}
	for _, tt := range tests {
		if got := normalizeFact(tt.factKey, tt.answer); got != tt.want {
			t.Errorf("normalizeFact(%q, %q) = %q, want %q", tt.factKey, tt.answer, got, tt.want)
		}
	}
}
