package classifier

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/attune-ai/attune/internal/domain"
)

// Signal strengths by pattern class. Style is deliberately weak: one
// message says almost nothing, averages say a lot.
const (
	styleStrength      = 0.25
	preferenceStrength = 0.9
	feedbackStrength   = 0.65
	goalStrength       = 0.6
	decisionStrength   = 0.6
	complexityStrength = 0.5
	modeStrength       = 0.4

	maxExcerptLen = 120
	maxTopics     = 5
)

// Heuristic is the default lexicon-based classifier. It is deterministic,
// never errors, and never touches storage or the network, so extraction
// stays independently testable and safe to run inline with chat.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Classify extracts signals from one message. Every message yields at
// least the style signal, even empty input; pattern signals stack on top.
func (h *Heuristic) Classify(_ context.Context, msg domain.UserMessage) ([]domain.Signal, error) {
	text := strings.TrimSpace(msg.Text)
	lower := strings.ToLower(text)

	signals := []domain.Signal{h.styleSignal(text, msg)}

	if s, ok := h.preferenceSignal(text, msg); ok {
		signals = append(signals, s)
	}
	if s, ok := h.feedbackSignal(text, msg); ok {
		signals = append(signals, s)
	}
	if s, ok := h.goalSignal(text, msg); ok {
		signals = append(signals, s)
	}
	if s, ok := h.decisionSignal(text, msg); ok {
		signals = append(signals, s)
	}
	if s, ok := h.complexitySignal(text, lower, msg); ok {
		signals = append(signals, s)
	}
	if domain.ValidResponseMode(msg.Mode) {
		signals = append(signals, newSignal(domain.SignalModeSelection, modeStrength, domain.SignalPayload{
			Mode: msg.Mode,
		}, msg))
	}

	return signals, nil
}

// Topics returns up to five coarse subject tags for contextual matching.
func (h *Heuristic) Topics(_ context.Context, text string) ([]string, error) {
	return extractTopics(text), nil
}

func newSignal(t domain.SignalType, strength float64, payload domain.SignalPayload, msg domain.UserMessage) domain.Signal {
	return domain.Signal{
		Type:      t,
		Category:  t.Category(),
		Strength:  strength,
		Payload:   payload,
		SessionID: msg.SessionID,
		MessageID: msg.MessageID,
	}
}

func (h *Heuristic) styleSignal(text string, msg domain.UserMessage) domain.Signal {
	words := strings.Fields(text)
	return newSignal(domain.SignalMessageStyle, styleStrength, domain.SignalPayload{
		WordCount:        len(words),
		SentenceCount:    countSentences(text),
		QuestionMarks:    strings.Count(text, "?"),
		ExclamationMarks: strings.Count(text, "!"),
		HasCodeBlock:     codeFencePattern.MatchString(text),
		HasBullets:       bulletPattern.MatchString(text),
		Tone:             detectTone(text),
	}, msg)
}

func (h *Heuristic) preferenceSignal(text string, msg domain.UserMessage) (domain.Signal, bool) {
	for _, rule := range preferenceRules {
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := rule.value
		if value == "" && len(m) > 1 {
			value = clip(strings.TrimSpace(m[1]), maxExcerptLen)
		}
		if value == "" {
			continue
		}
		return newSignal(domain.SignalExplicitPreference, preferenceStrength, domain.SignalPayload{
			PreferenceKey:   rule.key,
			PreferenceValue: strings.ToLower(strings.TrimRight(value, ".,!? ")),
		}, msg), true
	}
	return domain.Signal{}, false
}

// feedbackSignal detects reactions to prior assistant output. Corrections
// outrank frustration outrank praise when several read true at once.
func (h *Heuristic) feedbackSignal(text string, msg domain.UserMessage) (domain.Signal, bool) {
	kind, ok := detectFeedback(text)
	if !ok {
		return domain.Signal{}, false
	}
	return newSignal(domain.SignalFeedback, feedbackStrength, domain.SignalPayload{
		FeedbackKind: kind,
	}, msg), true
}

func detectFeedback(text string) (domain.FeedbackKind, bool) {
	for _, re := range correctionPatterns {
		if re.MatchString(text) {
			return domain.FeedbackCorrection, true
		}
	}
	for _, re := range frustrationPatterns {
		if re.MatchString(text) {
			return domain.FeedbackFrustration, true
		}
	}
	for _, re := range praisePatterns {
		if re.MatchString(text) {
			return domain.FeedbackPraise, true
		}
	}
	return "", false
}

func (h *Heuristic) goalSignal(text string, msg domain.UserMessage) (domain.Signal, bool) {
	for _, re := range goalPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return newSignal(domain.SignalGoalReference, goalStrength, domain.SignalPayload{
			Excerpt: clip(strings.TrimSpace(m[1]), maxExcerptLen),
		}, msg), true
	}
	return domain.Signal{}, false
}

func (h *Heuristic) decisionSignal(text string, msg domain.UserMessage) (domain.Signal, bool) {
	for _, re := range decisionPatterns {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		return newSignal(domain.SignalDecisionMention, decisionStrength, domain.SignalPayload{
			Excerpt:  clip(sentenceAround(text, loc[0]), maxExcerptLen),
			Deferred: deferralPattern.MatchString(text),
		}, msg), true
	}
	return domain.Signal{}, false
}

// complexitySignal fires only for interrogative messages and grades how
// demanding the question is from length, vocabulary and structure.
func (h *Heuristic) complexitySignal(text, lower string, msg domain.UserMessage) (domain.Signal, bool) {
	if !strings.Contains(text, "?") {
		return domain.Signal{}, false
	}

	terms := countTechnicalTerms(lower)
	score := 0.2
	score += 0.15 * float64(min(terms, 3))
	if codeFencePattern.MatchString(text) {
		score += 0.2
	}
	if connectivePattern.MatchString(text) {
		score += 0.15
	}
	if len(strings.Fields(text)) > 40 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}

	return newSignal(domain.SignalQuestionComplexity, complexityStrength, domain.SignalPayload{
		Complexity:     score,
		TechnicalTerms: terms,
		Topics:         extractTopics(text),
	}, msg), true
}

func detectTone(text string) domain.Tone {
	for _, re := range frustrationPatterns {
		if re.MatchString(text) {
			return domain.ToneFrustrated
		}
	}
	if strings.Count(text, "!") >= 3 {
		return domain.ToneFrustrated
	}
	for _, re := range casualMarkers {
		if re.MatchString(text) {
			return domain.ToneCasual
		}
	}
	for _, re := range formalMarkers {
		if re.MatchString(text) {
			return domain.ToneFormal
		}
	}
	return domain.ToneNeutral
}

func countSentences(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	count := 0
	inTerminator := false
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if !inTerminator {
				count++
			}
			inTerminator = true
		} else {
			inTerminator = false
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

func countTechnicalTerms(lower string) int {
	count := 0
	for _, term := range technicalTerms {
		if containsWord(lower, term) {
			count++
		}
	}
	return count
}

// containsWord reports whether lower contains term bounded by non-letter
// runes, without regex per term.
func containsWord(lower, term string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || !isWordRune(rune(lower[start-1]))
		afterOK := end == len(lower) || !isWordRune(rune(lower[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func extractTopics(text string) []string {
	counts := make(map[string]int)
	for _, raw := range strings.Fields(strings.ToLower(text)) {
		word := strings.TrimFunc(raw, func(r rune) bool { return !isWordRune(r) })
		if len(word) < 4 || stopwords[word] {
			continue
		}
		counts[word]++
	}
	if len(counts) == 0 {
		return nil
	}

	topics := make([]string, 0, len(counts))
	for word := range counts {
		topics = append(topics, word)
	}
	sort.Slice(topics, func(i, j int) bool {
		if counts[topics[i]] != counts[topics[j]] {
			return counts[topics[i]] > counts[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return topics
}

// sentenceAround returns the sentence containing byte offset pos.
func sentenceAround(text string, pos int) string {
	start := 0
	for i := pos - 1; i >= 0; i-- {
		if text[i] == '.' || text[i] == '!' || text[i] == '?' || text[i] == '\n' {
			start = i + 1
			break
		}
	}
	end := len(text)
	for i := pos; i < len(text); i++ {
		if text[i] == '.' || text[i] == '!' || text[i] == '?' || text[i] == '\n' {
			end = i + 1
			break
		}
	}
	return strings.TrimSpace(text[start:end])
}

// clip truncates to at most max bytes on a rune boundary, preferring a
// word boundary.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	end := 0
	for i := range s {
		if i > max {
			break
		}
		end = i
	}
	clipped := s[:end]
	if i := strings.LastIndex(clipped, " "); i > max/2 {
		clipped = clipped[:i]
	}
	return clipped
}
