package domain

import (
	"encoding/json"
	"testing"
)

func TestDecodeDimensionValue(t *testing.T) {
	raw, err := json.Marshal(CommunicationStyleValue{
		Verbosity: VerbosityConcise,
		Tone:      ToneCasual,
		Format:    FormatStructured,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	v, err := DecodeDimensionValue(DomainCommunicationStyle, raw)
	if err != nil {
		t.Fatalf("DecodeDimensionValue returned error: %v", err)
	}
	style, ok := v.(CommunicationStyleValue)
	if !ok {
		t.Fatalf("decoded value has type %T, want CommunicationStyleValue", v)
	}
	if style.Verbosity != VerbosityConcise || style.Format != FormatStructured {
		t.Errorf("decoded value = %+v, lost fields", style)
	}
	if v.BeliefDomain() != DomainCommunicationStyle {
		t.Errorf("BeliefDomain() = %v, want communication_style", v.BeliefDomain())
	}
}

func TestDecodeDimensionValue_UnknownDomain(t *testing.T) {
	if _, err := DecodeDimensionValue("mood", []byte("{}")); err == nil {
		t.Error("unknown domain should error")
	}
}

func TestDecodeDimensionValue_EveryDomainHasShape(t *testing.T) {
	for _, d := range AllBeliefDomains() {
		v, err := DecodeDimensionValue(d, []byte("{}"))
		if err != nil {
			t.Errorf("DecodeDimensionValue(%s, {}) error: %v", d, err)
			continue
		}
		if v.BeliefDomain() != d {
			t.Errorf("decoded %s value reports domain %s", d, v.BeliefDomain())
		}
	}
}

func TestDefaultCognitiveStyle(t *testing.T) {
	v := DefaultCognitiveStyle()
	if !v.Assumed {
		t.Error("default cognitive style must be marked assumed")
	}
	if v.Approach == "" {
		t.Error("default cognitive style needs a concrete approach")
	}
}
