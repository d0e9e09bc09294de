package domain

import (
	"testing"
	"time"
)

func TestDomainTiers(t *testing.T) {
	tests := []struct {
		domain BeliefDomain
		want   DomainTier
	}{
		{DomainIdentity, TierFoundation},
		{DomainRelationshipState, TierFoundation},
		{DomainGoals, TierPreference},
		{DomainCommunicationStyle, TierPreference},
		{DomainExpertise, TierPreference},
		{DomainCognitiveStyle, TierPreference},
		{DomainBehavioralPatterns, TierDynamics},
		{DomainDecisionFriction, TierDynamics},
	}

	for _, tt := range tests {
		t.Run(string(tt.domain), func(t *testing.T) {
			if got := tt.domain.Tier(); got != tt.want {
				t.Errorf("%s.Tier() = %v, want %v", tt.domain, got, tt.want)
			}
		})
	}
}

func TestTierDecayRates(t *testing.T) {
	tests := []struct {
		tier DomainTier
		want float64
	}{
		{TierFoundation, 0.02},
		{TierPreference, 0.05},
		{TierDynamics, 0.10},
	}

	for _, tt := range tests {
		if got := tt.tier.DecayRate(); got != tt.want {
			t.Errorf("%s.DecayRate() = %v, want %v", tt.tier, got, tt.want)
		}
	}
}

func TestActionThresholds(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"ActWithUncertainty", ActWithUncertaintyThreshold, 0.45},
		{"AskBeforeActing", AskBeforeActingThreshold, 0.25},
		{"SignificantGap", SignificantGapThreshold, 0.30},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if !(AskBeforeActingThreshold < SignificantGapThreshold && SignificantGapThreshold < ActWithUncertaintyThreshold) {
		t.Error("thresholds must order silent-floor < gap < uncertainty")
	}
}

func TestAllBeliefDomains(t *testing.T) {
	domains := AllBeliefDomains()
	if len(domains) != 8 {
		t.Fatalf("AllBeliefDomains() returned %d domains, want 8", len(domains))
	}
	seen := make(map[BeliefDomain]bool)
	for _, d := range domains {
		if !ValidBeliefDomain(d) {
			t.Errorf("AllBeliefDomains() contains invalid domain %q", d)
		}
		if seen[d] {
			t.Errorf("duplicate domain %q", d)
		}
		seen[d] = true
	}
}

func TestValidBeliefDomain(t *testing.T) {
	if ValidBeliefDomain("identity") != true {
		t.Error("ValidBeliefDomain(identity) = false, want true")
	}
	for _, bad := range []BeliefDomain{"", "Identity", "mood", "IDENTITY"} {
		if ValidBeliefDomain(bad) {
			t.Errorf("ValidBeliefDomain(%q) = true, want false", bad)
		}
	}
}

func TestDecayConfidence_NoElapsedTime(t *testing.T) {
	now := time.Now()
	got := DecayConfidence(0.8, DynamicsDecayRate, now, now)
	if got != 0.8 {
		t.Errorf("DecayConfidence with zero elapsed = %v, want 0.8", got)
	}

	// Clock skew: updated in the future must not inflate confidence.
	got = DecayConfidence(0.8, DynamicsDecayRate, now.Add(time.Hour), now)
	if got != 0.8 {
		t.Errorf("DecayConfidence with future timestamp = %v, want 0.8", got)
	}
}

func TestDecayConfidence_OneMonth(t *testing.T) {
	now := time.Now()
	monthAgo := now.Add(-30 * 24 * time.Hour)

	tests := []struct {
		name string
		rate float64
		want float64
	}{
		{"foundation keeps 98%", FoundationDecayRate, 0.98},
		{"preference keeps 95%", PreferenceDecayRate, 0.95},
		{"dynamics keeps 90%", DynamicsDecayRate, 0.90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecayConfidence(1.0, tt.rate, monthAgo, now)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("DecayConfidence(1.0, %v, -30d) = %v, want %v", tt.rate, got, tt.want)
			}
		})
	}
}

func TestDecayConfidence_Monotonic(t *testing.T) {
	now := time.Now()
	prev := 1.0
	for days := 0; days <= 720; days += 30 {
		got := DecayConfidence(1.0, DynamicsDecayRate, now.Add(-time.Duration(days)*24*time.Hour), now)
		if got > prev {
			t.Fatalf("decay increased over time: %v days elapsed gave %v > %v", days, got, prev)
		}
		if got < 0 {
			t.Fatalf("decay went negative: %v at %v days", got, days)
		}
		prev = got
	}
}

func TestEffectiveConfidence(t *testing.T) {
	now := time.Now()
	score := DimensionScore{
		Domain:      DomainBehavioralPatterns,
		Confidence:  0.6,
		DecayRate:   DynamicsDecayRate,
		LastUpdated: now.Add(-30 * 24 * time.Hour),
	}
	got := score.EffectiveConfidence(now)
	want := 0.54
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("EffectiveConfidence after a month = %v, want %v", got, want)
	}
}

func TestEvidenceSourceBaseConfidence(t *testing.T) {
	tests := []struct {
		source EvidenceSource
		want   float64
	}{
		{SourceElicited, 1.0},
		{SourceExplicitPKV, 0.9},
		{SourceBehavioralRepeated, 0.55},
		{SourceSessionDerived, 0.5},
		{SourceBehavioralSingle, 0.35},
		{SourceDefaultAssumed, 0.15},
		{EvidenceSource("bogus"), 0},
	}

	for _, tt := range tests {
		if got := tt.source.BaseConfidence(); got != tt.want {
			t.Errorf("%s.BaseConfidence() = %v, want %v", tt.source, got, tt.want)
		}
	}
}

func TestEvidenceSourceInference(t *testing.T) {
	if SourceElicited.Inference() {
		t.Error("elicited answers are not inference")
	}
	for _, src := range []EvidenceSource{
		SourceExplicitPKV, SourceBehavioralRepeated, SourceBehavioralSingle,
		SourceSessionDerived, SourceDefaultAssumed,
	} {
		if !src.Inference() {
			t.Errorf("%s.Inference() = false, want true", src)
		}
	}
}

func TestRoundConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.123, 0.12},
		{0.125, 0.13},
		{0.9499, 0.94},
		{0, 0},
		{1, 1},
	}
	for _, tt := range tests {
		if got := RoundConfidence(tt.in); got != tt.want {
			t.Errorf("RoundConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHasSource(t *testing.T) {
	score := DimensionScore{Sources: []EvidenceSource{SourceBehavioralRepeated, SourceExplicitPKV}}
	if !score.HasSource(SourceExplicitPKV) {
		t.Error("HasSource(EXPLICIT_PKV) = false, want true")
	}
	if score.HasSource(SourceElicited) {
		t.Error("HasSource(ELICITED) = true, want false")
	}
}
