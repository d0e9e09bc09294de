package classifier

import (
	"context"
	"reflect"
	"testing"

	"github.com/attune-ai/attune/internal/domain"
)

func classify(t *testing.T, text string) []domain.Signal {
	t.Helper()
	signals, err := NewHeuristic().Classify(context.Background(), domain.UserMessage{Text: text})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	return signals
}

func findSignal(signals []domain.Signal, t domain.SignalType) (domain.Signal, bool) {
	for _, s := range signals {
		if s.Type == t {
			return s, true
		}
	}
	return domain.Signal{}, false
}

func TestClassify_AlwaysEmitsStyleSignal(t *testing.T) {
	for _, text := range []string{"", "   ", "hello", "???!!!", "a perfectly ordinary message."} {
		signals := classify(t, text)
		if len(signals) == 0 {
			t.Fatalf("Classify(%q) produced no signals", text)
		}
		style, ok := findSignal(signals, domain.SignalMessageStyle)
		if !ok {
			t.Fatalf("Classify(%q) missing style signal", text)
		}
		if style.Category != domain.CategoryStyle {
			t.Errorf("style signal category = %v", style.Category)
		}
	}
}

func TestClassify_EmptyMessageMinimalSignal(t *testing.T) {
	signals := classify(t, "")
	if len(signals) != 1 {
		t.Fatalf("empty message produced %d signals, want 1", len(signals))
	}
	p := signals[0].Payload
	if p.WordCount != 0 || p.SentenceCount != 0 {
		t.Errorf("empty message payload = %+v, want zero counts", p)
	}
	if p.Tone != domain.ToneNeutral {
		t.Errorf("empty message tone = %v, want neutral", p.Tone)
	}
}

func TestClassify_StyleCounts(t *testing.T) {
	signals := classify(t, "First sentence here. Second one! Third?\n- a bullet\n- another")
	style, _ := findSignal(signals, domain.SignalMessageStyle)
	p := style.Payload
	if p.SentenceCount != 3 {
		t.Errorf("SentenceCount = %d, want 3", p.SentenceCount)
	}
	if p.QuestionMarks != 1 {
		t.Errorf("QuestionMarks = %d, want 1", p.QuestionMarks)
	}
	if !p.HasBullets {
		t.Error("HasBullets = false, want true")
	}
	if p.HasCodeBlock {
		t.Error("HasCodeBlock = true, want false")
	}
}

func TestClassify_ExplicitPreference(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantKey   string
		wantValue string
	}{
		{"call me", "Please call me Sam from now on.", "name", "sam"},
		{"my name is", "my name is Priya", "name", "priya"},
		{"concise", "Keep it short, I skim.", "verbosity", "concise"},
		{"detailed", "I prefer detailed explanations.", "verbosity", "detailed"},
		{"bullets", "use bullet points please", "format", "structured"},
		{"formal", "Could you be more formal with me", "tone", "formal"},
		{"generic", "I prefer examples over theory", "preference", "examples over theory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals := classify(t, tt.text)
			pref, ok := findSignal(signals, domain.SignalExplicitPreference)
			if !ok {
				t.Fatalf("no preference signal from %q", tt.text)
			}
			if pref.Payload.PreferenceKey != tt.wantKey {
				t.Errorf("key = %q, want %q", pref.Payload.PreferenceKey, tt.wantKey)
			}
			if pref.Payload.PreferenceValue != tt.wantValue {
				t.Errorf("value = %q, want %q", pref.Payload.PreferenceValue, tt.wantValue)
			}
			if pref.Strength < 0.8 {
				t.Errorf("explicit preference strength = %v, should be strong", pref.Strength)
			}
		})
	}
}

func TestClassify_Feedback(t *testing.T) {
	tests := []struct {
		text string
		kind domain.FeedbackKind
	}{
		{"No, that's wrong. The config lives in etc.", domain.FeedbackCorrection},
		{"Actually, I meant the staging cluster.", domain.FeedbackCorrection},
		{"ugh, this is so frustrating", domain.FeedbackFrustration},
		{"it still doesn't work after all that", domain.FeedbackFrustration},
		{"Perfect, thanks!", domain.FeedbackPraise},
		{"that worked, well done", domain.FeedbackPraise},
	}

	for _, tt := range tests {
		signals := classify(t, tt.text)
		fb, ok := findSignal(signals, domain.SignalFeedback)
		if !ok {
			t.Errorf("no feedback signal from %q", tt.text)
			continue
		}
		if fb.Payload.FeedbackKind != tt.kind {
			t.Errorf("feedback from %q = %v, want %v", tt.text, fb.Payload.FeedbackKind, tt.kind)
		}
	}
}

func TestClassify_FeedbackPrecedence(t *testing.T) {
	// A correction that ends politely is still a correction.
	signals := classify(t, "No, that's not right, but thanks for trying.")
	fb, ok := findSignal(signals, domain.SignalFeedback)
	if !ok {
		t.Fatal("no feedback signal")
	}
	if fb.Payload.FeedbackKind != domain.FeedbackCorrection {
		t.Errorf("feedback = %v, want correction to outrank praise", fb.Payload.FeedbackKind)
	}
}

func TestClassify_GoalReference(t *testing.T) {
	signals := classify(t, "I'm trying to ship the billing migration before the quarter ends.")
	goal, ok := findSignal(signals, domain.SignalGoalReference)
	if !ok {
		t.Fatal("no goal signal")
	}
	if goal.Payload.Excerpt == "" {
		t.Error("goal excerpt is empty")
	}
	if goal.Category != domain.CategoryGoal {
		t.Errorf("goal category = %v", goal.Category)
	}
}

func TestClassify_DecisionMention(t *testing.T) {
	signals := classify(t, "I can't decide between Postgres and SQLite for this. Maybe later.")
	dec, ok := findSignal(signals, domain.SignalDecisionMention)
	if !ok {
		t.Fatal("no decision signal")
	}
	if dec.Payload.Excerpt == "" {
		t.Error("decision excerpt is empty")
	}
	if !dec.Payload.Deferred {
		t.Error("Deferred = false, want true for a punted decision")
	}

	signals = classify(t, "Should I use channels or a mutex here?")
	if _, ok := findSignal(signals, domain.SignalDecisionMention); !ok {
		t.Error("no decision signal for should-I-or question")
	}
}

func TestClassify_QuestionComplexity(t *testing.T) {
	statements := classify(t, "The deploy finished without problems.")
	if _, ok := findSignal(statements, domain.SignalQuestionComplexity); ok {
		t.Error("complexity signal fired for a non-question")
	}

	simple := classify(t, "What time is it?")
	simpleSig, ok := findSignal(simple, domain.SignalQuestionComplexity)
	if !ok {
		t.Fatal("no complexity signal for a question")
	}

	hard := classify(t, "Given the replication lag tradeoffs, should the cache invalidation "+
		"protocol use a write-through queue or async fan-out, assuming the database shard count doubles?")
	hardSig, ok := findSignal(hard, domain.SignalQuestionComplexity)
	if !ok {
		t.Fatal("no complexity signal for a technical question")
	}

	if hardSig.Payload.Complexity <= simpleSig.Payload.Complexity {
		t.Errorf("technical question complexity %v not above simple question %v",
			hardSig.Payload.Complexity, simpleSig.Payload.Complexity)
	}
	if hardSig.Payload.TechnicalTerms < 3 {
		t.Errorf("TechnicalTerms = %d, want at least 3", hardSig.Payload.TechnicalTerms)
	}
}

func TestClassify_ModeSelection(t *testing.T) {
	h := NewHeuristic()
	signals, err := h.Classify(context.Background(), domain.UserMessage{
		Text: "walk me through the design",
		Mode: domain.ModeThorough,
	})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	mode, ok := findSignal(signals, domain.SignalModeSelection)
	if !ok {
		t.Fatal("no mode signal when mode metadata present")
	}
	if mode.Payload.Mode != domain.ModeThorough {
		t.Errorf("mode = %v, want thorough", mode.Payload.Mode)
	}

	signals, _ = h.Classify(context.Background(), domain.UserMessage{Text: "hello"})
	if _, ok := findSignal(signals, domain.SignalModeSelection); ok {
		t.Error("mode signal fired without mode metadata")
	}
}

func TestClassify_MultipleSignalsOneMessage(t *testing.T) {
	text := "No, that's wrong. I'm trying to cut our deploy time, and I prefer bullet points."
	signals := classify(t, text)

	for _, want := range []domain.SignalType{
		domain.SignalMessageStyle,
		domain.SignalFeedback,
		domain.SignalGoalReference,
		domain.SignalExplicitPreference,
	} {
		if _, ok := findSignal(signals, want); !ok {
			t.Errorf("missing %s signal from compound message", want)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	text := "Given the schema migration, should I shard the database or add a cache? My goal is to keep latency low."
	first := classify(t, text)
	for i := 0; i < 5; i++ {
		again := classify(t, text)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("classification differs across runs:\n%+v\nvs\n%+v", first, again)
		}
	}
}

func TestTopics(t *testing.T) {
	h := NewHeuristic()
	topics, err := h.Topics(context.Background(), "The billing migration needs a billing cutover plan before the migration freeze.")
	if err != nil {
		t.Fatalf("Topics returned error: %v", err)
	}
	if len(topics) == 0 || len(topics) > maxTopics {
		t.Fatalf("Topics returned %d entries", len(topics))
	}
	if topics[0] != "billing" && topics[0] != "migration" {
		t.Errorf("top topic = %q, want a repeated word first", topics[0])
	}

	empty, err := h.Topics(context.Background(), "a an the of")
	if err != nil {
		t.Fatalf("Topics returned error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("stopword-only text produced topics %v", empty)
	}
}

func TestDetectTone(t *testing.T) {
	tests := []struct {
		text string
		want domain.Tone
	}{
		{"hey, gonna need that config again", domain.ToneCasual},
		{"Could you please review the attached proposal. I would appreciate your feedback.", domain.ToneFormal},
		{"ugh this is so annoying", domain.ToneFrustrated},
		{"The report covers last week.", domain.ToneNeutral},
	}
	for _, tt := range tests {
		if got := detectTone(tt.text); got != tt.want {
			t.Errorf("detectTone(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestNewClassifierProvider(t *testing.T) {
	if _, err := NewClassifier(ProviderHeuristic); err != nil {
		t.Errorf("heuristic provider: %v", err)
	}
	if _, err := NewClassifier(""); err != nil {
		t.Errorf("default provider: %v", err)
	}
	if _, err := NewClassifier(ProviderMock); err != nil {
		t.Errorf("mock provider: %v", err)
	}
	if _, err := NewClassifier("gpt"); err == nil {
		t.Error("unknown provider should error")
	}
}
