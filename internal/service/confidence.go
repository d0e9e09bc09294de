package service

import (
	"math"
	"sort"

	"github.com/attune-ai/attune/internal/domain"
)

const (
	// MergeCeiling is the supremum of merged inference confidence. Merge
	// approaches it as evidence accumulates but never reaches it: stacked
	// inference alone must stay short of certainty.
	MergeCeiling = 0.95
	// mergeWeightTotal is the limit of the geometric weight series
	// 1 + 1/2 + 1/4 + ... that merged sums are normalized against.
	mergeWeightTotal = 2.0
)

// MergeConfidences fuses independent evidence confidences into one score
// with diminishing returns. Evidence is sorted descending and each item
// contributes half the weight of the one before it, so strong evidence
// dominates and weak corroboration nudges. No evidence merges to 0, and
// adding evidence never lowers the result.
func MergeConfidences(confidences []float64) float64 {
	if len(confidences) == 0 {
		return 0
	}

	sorted := make([]float64, len(confidences))
	copy(sorted, confidences)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	sum := 0.0
	weight := 1.0
	for _, c := range sorted {
		sum += clampUnit(c) * weight
		weight /= 2
	}
	return MergeCeiling * sum / mergeWeightTotal
}

// MergeSources is MergeConfidences over the base confidences of the
// evidence sources used in one inference pass.
func MergeSources(sources []domain.EvidenceSource) float64 {
	confidences := make([]float64, 0, len(sources))
	for _, src := range sources {
		confidences = append(confidences, src.BaseConfidence())
	}
	return MergeConfidences(confidences)
}

// GapPriority scores how urgently a low-confidence domain needs an
// elicitation question. The weaker the belief, the higher the boost.
func GapPriority(confidence float64) float64 {
	return 1 - clampUnit(confidence)
}

func clampUnit(c float64) float64 {
	if c < 0 || math.IsNaN(c) {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
