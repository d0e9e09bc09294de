package service

import (
	"sort"

	"github.com/attune-ai/attune/internal/domain"
)

// dimensionRule computes one domain's value from a pass input. Returning
// false means the batch had nothing usable for this domain.
type dimensionRule func(in inferenceInput) (domain.DimensionValue, []domain.EvidenceSource, bool)

// dimensionRules is the inference registry. Every belief domain registers
// its update rule here; adding a domain is adding an entry, nothing else.
var dimensionRules = map[domain.BeliefDomain]dimensionRule{
	domain.DomainIdentity:           inferIdentity,
	domain.DomainGoals:              inferGoals,
	domain.DomainCommunicationStyle: inferCommunicationStyle,
	domain.DomainExpertise:          inferExpertise,
	domain.DomainBehavioralPatterns: inferBehavioralPatterns,
	domain.DomainRelationshipState:  inferRelationshipState,
	domain.DomainDecisionFriction:   inferDecisionFriction,
	domain.DomainCognitiveStyle:     inferCognitiveStyle,
}

// inferIdentity keeps whatever the profile already holds and overlays
// explicit statements. Behavioral descriptors are tier C only: quieter
// privacy tiers get identity exclusively from the user's own words.
func inferIdentity(in inferenceInput) (domain.DimensionValue, []domain.EvidenceSource, bool) {
	value := domain.IdentityValue{}
	if in.existing != nil {
		if prev, ok := in.existing.Value.(domain.IdentityValue); ok {
			value = prev
		}
	}

	var sources []domain.EvidenceSource
	if name, ok := in.rollup.prefs["name"]; ok && name != "" {
		value.Name = name
		sources = append(sources, domain.SourceExplicitPKV)
	}
	if role, ok := in.rollup.prefs["role"]; ok && role != "" {
		value.Role = role
		sources = append(sources, domain.SourceExplicitPKV)
	}

	if in.tier.AllowsIdentityInference() && in.rollup.complexityCount >= MinComplexitySignals {
		if topics := in.rollup.topTopics(3); len(topics) > 0 {
			value.Descriptors = topics
			sources = append(sources, domain.SourceBehavioralSingle)
		}
	}

	if len(sources) == 0 {
		return nil, nil, false
	}
	return value, sources, true
}

func inferGoals(in inferenceInput) (domain.DimensionValue, []domain.EvidenceSource, bool) {
	if len(in.rollup.goalOrder) == 0 {
		return nil, nil, false
	}

	value := domain.GoalsValue{}
	if in.existing != nil {
		if prev, ok := in.existing.Value.(domain.GoalsValue); ok {
			value.Active = append(value.Active, prev.Active...)
		}
	}

	var sources []domain.EvidenceSource
	for _, key := range in.rollup.goalOrder {
		batchMentions := in.rollup.goalMentions[key]
		idx := -1
		for i := range value.Active {
			if normalizeGoal(value.Active[i].Text) == key {
				idx = i
				break
			}
		}
		if idx >= 0 {
			value.Active[idx].Mentions += batchMentions
			value.Active[idx].LastSeen = in.now
		} else {
			value.Active = append(value.Active, domain.TrackedGoal{
				Text:      key,
				Mentions:  batchMentions,
				FirstSeen: in.now,
				LastSeen:  in.now,
			})
			idx = len(value.Active) - 1
		}
		if value.Active[idx].Mentions >= MinRepeatedEvidence {
			sources = append(sources, domain.SourceBehavioralRepeated)
		} else {
			sources = append(sources, domain.SourceBehavioralSingle)
		}
	}

	sort.SliceStable(value.Active, func(i, j int) bool {
		if value.Active[i].Mentions != value.Active[j].Mentions {
			return value.Active[i].Mentions > value.Active[j].Mentions
		}
		if !value.Active[i].LastSeen.Equal(value.Active[j].LastSeen) {
			return value.Active[i].LastSeen.After(value.Active[j].LastSeen)
		}
		return value.Active[i].Text < value.Active[j].Text
	})
	if len(value.Active) > MaxTrackedGoals {
		value.Active = value.Active[:MaxTrackedGoals]
	}

	return value, sources, true
}

// inferCommunicationStyle prefers the user's stated preferences; behavioral
// reading of their own writing style applies only when the batch has no
// explicit statement and enough style samples to average.
func inferCommunicationStyle(in inferenceInput) (domain.DimensionValue, []domain.EvidenceSource, bool) {
	value := domain.CommunicationStyleValue{
		Verbosity: domain.VerbosityBalanced,
		Tone:      domain.ToneNeutral,
		Format:    domain.FormatProse,
	}
	if in.existing != nil {
		if prev, ok := in.existing.Value.(domain.CommunicationStyleValue); ok {
			value = prev
		}
	}

	var sources []domain.EvidenceSource
	if v, ok := in.rollup.prefs["verbosity"]; ok {
		if parsed, ok := parseVerbosity(v); ok {
			value.Verbosity = parsed
			sources = append(sources, domain.SourceExplicitPKV)
		}
	}
	if f, ok := in.rollup.prefs["format"]; ok {
		if parsed, ok := parseFormat(f); ok {
			value.Format = parsed
			sources = append(sources, domain.SourceExplicitPKV)
		}
	}
	if tone, ok := in.rollup.prefs["tone"]; ok {
		if parsed, ok := parseTone(tone); ok {
			value.Tone = parsed
			sources = append(sources, domain.SourceExplicitPKV)
		}
	}
	if len(sources) > 0 {
		return value, sources, true
	}

	if in.rollup.styleCount < MinStyleSignals {
		return nil, nil, false
	}

	avg := in.rollup.avgWords()
	switch {
	case avg < 25:
		value.Verbosity = domain.VerbosityConcise
	case avg > 75:
		value.Verbosity = domain.VerbosityDetailed
	default:
		value.Verbosity = domain.VerbosityBalanced
	}
	if in.rollup.bulletMsgs*3 >= in.rollup.styleCount {
		value.Format = domain.FormatStructured
	} else {
		value.Format = domain.FormatProse
	}
	value.Tone = in.rollup.dominantTone()

	return value, []domain.EvidenceSource{domain.SourceBehavioralRepeated}, true
}

func inferExpertise(in inferenceInput) (domain.DimensionValue, []domain.EvidenceSource, bool) {
	if in.rollup.complexityCount < MinComplexitySignals {
		return nil, nil, false
	}

	avg := in.rollup.avgComplexity()
	value := domain.ExpertiseValue{Topics: in.rollup.topTopics(5)}
	switch {
	case avg >= 0.7:
		value.Level = domain.ExpertiseExpert
	case avg >= 0.5:
		value.Level = domain.ExpertiseAdvanced
	case avg >= 0.3:
		value.Level = domain.ExpertiseIntermediate
	default:
		value.Level = domain.ExpertiseNovice
	}

	sources := []domain.EvidenceSource{domain.SourceBehavioralRepeated}
	if in.rollup.codeMsgs > 0 {
		sources = append(sources, domain.SourceBehavioralSingle)
	}
	return value, sources, true
}

// inferBehavioralPatterns is pure frequency counting: mode histogram over
// the batch plus average message length.
func inferBehavioralPatterns(in inferenceInput) (domain.DimensionValue, []domain.EvidenceSource, bool) {
	if in.rollup.styleCount == 0 && in.rollup.modeTotal == 0 {
		return nil, nil, false
	}

	value := domain.BehavioralPatternsValue{
		AvgWordsPerMsg: in.rollup.avgWords(),
		MessagesSeen:   in.rollup.styleCount,
	}
	if in.existing != nil {
		if prev, ok := in.existing.Value.(domain.BehavioralPatternsValue); ok {
			value.MessagesSeen += prev.MessagesSeen
			// Session-length telemetry is maintained at session close, not
			// from signals; a reflection pass must not zero it.
			value.AvgSessionMinutes = prev.AvgSessionMinutes
			value.SessionsSeen = prev.SessionsSeen
		}
	}
	if in.rollup.modeTotal > 0 {
		value.ModeShares = make(map[domain.ResponseMode]float64, len(in.rollup.modeCounts))
		for mode, count := range in.rollup.modeCounts {
			value.ModeShares[mode] = float64(count) / float64(in.rollup.modeTotal)
		}
	}

	sources := []domain.EvidenceSource{domain.SourceSessionDerived}
	if in.rollup.modeTotal >= MinStyleSignals {
		sources = append(sources, domain.SourceBehavioralRepeated)
	}
	return value, sources, true
}

// inferRelationshipState derives trust monotonically from returning
// sessions, capped well short of certainty.
func inferRelationshipState(in inferenceInput) (domain.DimensionValue, []domain.EvidenceSource, bool) {
	trust := 0.15 + 0.05*float64(in.sessionCount)
	if trust > 0.85 {
		trust = 0.85
	}

	stage := domain.RelationshipNew
	switch {
	case in.sessionCount >= 8:
		stage = domain.RelationshipEstablished
	case in.sessionCount >= 3:
		stage = domain.RelationshipDeveloping
	}

	value := domain.RelationshipStateValue{
		Stage:    stage,
		Trust:    trust,
		Sessions: in.sessionCount,
	}
	return value, []domain.EvidenceSource{domain.SourceSessionDerived}, true
}

func inferDecisionFriction(in inferenceInput) (domain.DimensionValue, []domain.EvidenceSource, bool) {
	if len(in.rollup.decisions) == 0 {
		return nil, nil, false
	}

	score := len(in.rollup.decisions) + in.rollup.deferredCount
	level := domain.FrictionLow
	switch {
	case score >= 4:
		level = domain.FrictionHigh
	case score >= 2:
		level = domain.FrictionModerate
	}

	loops := []string{}
	if in.existing != nil {
		if prev, ok := in.existing.Value.(domain.DecisionFrictionValue); ok {
			loops = append(loops, prev.OpenLoops...)
		}
	}
	loops = append(loops, in.rollup.decisions...)
	if len(loops) > MaxOpenLoops {
		loops = loops[len(loops)-MaxOpenLoops:]
	}

	sources := []domain.EvidenceSource{domain.SourceBehavioralSingle}
	if len(in.rollup.decisions) >= MinRepeatedEvidence {
		sources = []domain.EvidenceSource{domain.SourceBehavioralRepeated}
	}
	return domain.DecisionFrictionValue{Level: level, OpenLoops: loops}, sources, true
}

// inferCognitiveStyle has no signal source yet. It pins the assumed
// default at floor confidence every pass; an elicited answer outranks it
// and survives the persistence rule untouched.
func inferCognitiveStyle(in inferenceInput) (domain.DimensionValue, []domain.EvidenceSource, bool) {
	return domain.DefaultCognitiveStyle(), []domain.EvidenceSource{domain.SourceDefaultAssumed}, true
}

func parseVerbosity(s string) (domain.Verbosity, bool) {
	switch domain.Verbosity(s) {
	case domain.VerbosityConcise, domain.VerbosityBalanced, domain.VerbosityDetailed:
		return domain.Verbosity(s), true
	}
	return "", false
}

func parseFormat(s string) (domain.MessageFormat, bool) {
	switch domain.MessageFormat(s) {
	case domain.FormatProse, domain.FormatStructured:
		return domain.MessageFormat(s), true
	}
	return "", false
}

func parseExpertise(s string) (domain.ExpertiseLevel, bool) {
	switch domain.ExpertiseLevel(s) {
	case domain.ExpertiseNovice, domain.ExpertiseIntermediate, domain.ExpertiseAdvanced, domain.ExpertiseExpert:
		return domain.ExpertiseLevel(s), true
	}
	return "", false
}

func parseTone(s string) (domain.Tone, bool) {
	switch domain.Tone(s) {
	case domain.ToneCasual, domain.ToneNeutral, domain.ToneFormal:
		return domain.Tone(s), true
	}
	return "", false
}
