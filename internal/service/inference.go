package service

import (
	"sort"
	"strings"
	"time"

	"github.com/attune-ai/attune/internal/domain"
)

// Inference evidence minimums
const (
	// MinStyleSignals is how many style observations behavioral
	// communication inference needs before it trusts the average.
	MinStyleSignals = 3
	// MinComplexitySignals is the same bar for expertise inference.
	MinComplexitySignals = 3
	// MinRepeatedEvidence is the count at which behavior counts as a
	// repeated pattern rather than a one-off.
	MinRepeatedEvidence = 2

	// MaxTrackedGoals bounds the goal list a profile carries.
	MaxTrackedGoals = 5
	// MaxOpenLoops bounds remembered unresolved decisions.
	MaxOpenLoops = 5
)

// signalRollup aggregates one unprocessed-signal batch into the
// domain-specific tallies the inference rules read. Built once per
// reflection pass.
type signalRollup struct {
	total int

	// style
	styleCount  int
	wordSum     int
	sentenceSum int
	bulletMsgs  int
	codeMsgs    int
	toneCounts  map[domain.Tone]int

	// explicit preferences, last statement wins per key
	prefs     map[string]string
	prefCount int

	// feedback
	feedback map[domain.FeedbackKind]int

	// question complexity
	complexitySum   float64
	complexityCount int
	topicCounts     map[string]int

	// goals and decisions
	goalMentions  map[string]int
	goalOrder     []string
	decisions     []string
	deferredCount int

	// mode selection
	modeCounts map[domain.ResponseMode]int
	modeTotal  int
}

func buildRollup(signals []domain.Signal) *signalRollup {
	r := &signalRollup{
		toneCounts:   make(map[domain.Tone]int),
		prefs:        make(map[string]string),
		feedback:     make(map[domain.FeedbackKind]int),
		topicCounts:  make(map[string]int),
		goalMentions: make(map[string]int),
		modeCounts:   make(map[domain.ResponseMode]int),
	}

	for _, s := range signals {
		r.total++
		p := s.Payload
		switch s.Type {
		case domain.SignalMessageStyle:
			r.styleCount++
			r.wordSum += p.WordCount
			r.sentenceSum += p.SentenceCount
			if p.HasBullets {
				r.bulletMsgs++
			}
			if p.HasCodeBlock {
				r.codeMsgs++
			}
			if p.Tone != "" {
				r.toneCounts[p.Tone]++
			}
		case domain.SignalExplicitPreference:
			if p.PreferenceKey != "" {
				r.prefs[p.PreferenceKey] = p.PreferenceValue
				r.prefCount++
			}
		case domain.SignalFeedback:
			r.feedback[p.FeedbackKind]++
		case domain.SignalQuestionComplexity:
			r.complexityCount++
			r.complexitySum += p.Complexity
			for _, topic := range p.Topics {
				r.topicCounts[topic]++
			}
		case domain.SignalGoalReference:
			key := normalizeGoal(p.Excerpt)
			if key == "" {
				break
			}
			if _, seen := r.goalMentions[key]; !seen {
				r.goalOrder = append(r.goalOrder, key)
			}
			r.goalMentions[key]++
		case domain.SignalDecisionMention:
			if p.Excerpt != "" {
				r.decisions = append(r.decisions, p.Excerpt)
			}
			if p.Deferred {
				r.deferredCount++
			}
		case domain.SignalModeSelection:
			r.modeCounts[p.Mode]++
			r.modeTotal++
		}
	}
	return r
}

func (r *signalRollup) avgWords() float64 {
	if r.styleCount == 0 {
		return 0
	}
	return float64(r.wordSum) / float64(r.styleCount)
}

func (r *signalRollup) avgComplexity() float64 {
	if r.complexityCount == 0 {
		return 0
	}
	return r.complexitySum / float64(r.complexityCount)
}

// dominantTone returns the most frequent non-frustrated tone. Frustration
// is a reaction, not a register the user wants mirrored back.
func (r *signalRollup) dominantTone() domain.Tone {
	best := domain.ToneNeutral
	bestCount := 0
	for _, tone := range []domain.Tone{domain.ToneCasual, domain.ToneNeutral, domain.ToneFormal} {
		if c := r.toneCounts[tone]; c > bestCount {
			best, bestCount = tone, c
		}
	}
	return best
}

func (r *signalRollup) topTopics(limit int) []string {
	topics := make([]string, 0, len(r.topicCounts))
	for topic := range r.topicCounts {
		topics = append(topics, topic)
	}
	sort.Slice(topics, func(i, j int) bool {
		if r.topicCounts[topics[i]] != r.topicCounts[topics[j]] {
			return r.topicCounts[topics[i]] > r.topicCounts[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > limit {
		topics = topics[:limit]
	}
	return topics
}

func normalizeGoal(excerpt string) string {
	return strings.Join(strings.Fields(strings.ToLower(excerpt)), " ")
}

// inferredBelief is one domain's outcome for a pass. A nil Value means the
// batch carried no usable evidence for the domain.
type inferredBelief struct {
	Value      domain.DimensionValue
	Confidence float64
	Sources    []domain.EvidenceSource
}

// inferenceInput is everything a dimension rule may read. Rules are pure:
// same input, same belief.
type inferenceInput struct {
	rollup       *signalRollup
	sessionCount int
	tier         domain.PrivacyTier
	existing     *domain.DimensionScore
	now          time.Time
}

// inferAll runs every registered dimension rule and returns an entry for
// all eight domains, evidence or not.
func inferAll(signals []domain.Signal, sessionCount int, tier domain.PrivacyTier, existing map[domain.BeliefDomain]*domain.DimensionScore, now time.Time) map[domain.BeliefDomain]inferredBelief {
	rollup := buildRollup(signals)
	out := make(map[domain.BeliefDomain]inferredBelief, len(dimensionRules))

	for _, d := range domain.AllBeliefDomains() {
		rule, ok := dimensionRules[d]
		if !ok {
			out[d] = inferredBelief{}
			continue
		}
		in := inferenceInput{
			rollup:       rollup,
			sessionCount: sessionCount,
			tier:         tier,
			existing:     existing[d],
			now:          now,
		}
		value, sources, ok := rule(in)
		if !ok || value == nil {
			out[d] = inferredBelief{}
			continue
		}
		out[d] = inferredBelief{
			Value:      value,
			Confidence: domain.RoundConfidence(MergeSources(sources)),
			Sources:    dedupeSources(sources),
		}
	}
	return out
}

func dedupeSources(sources []domain.EvidenceSource) []domain.EvidenceSource {
	seen := make(map[domain.EvidenceSource]bool, len(sources))
	out := make([]domain.EvidenceSource, 0, len(sources))
	for _, src := range sources {
		if seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}
