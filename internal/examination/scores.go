package examination

import "math"

// Derived score bounds are display-only client estimates; the server
// remains authoritative for grading.
//
// One floor rule is applied everywhere: a question's minimum is the sum
// of its non-positive option scores. For weighted multiple choice the
// displayed floor is clamped at zero (a candidate can never go negative
// on the attempt), while claim choice keeps the negative floor because
// picking the incorrect claim genuinely costs points.

func positiveScoreSum(options []*Option) float64 {
	sum := 0.0
	for _, o := range options {
		if o.Score > 0 {
			sum += o.Score
		}
	}
	return sum
}

func nonPositiveScoreSum(options []*Option) float64 {
	sum := 0.0
	for _, o := range options {
		if o.Score <= 0 {
			sum += o.Score
		}
	}
	return sum
}

// RecomputeScoreBounds refreshes DerivedMaxScore/DerivedMinScore for the
// option-scored question types. Other types keep their server-provided
// values.
func (q *SectionQuestion) RecomputeScoreBounds() {
	switch q.Type() {
	case TypeWeightedChoice:
		q.DerivedMaxScore = roundToTwo(positiveScoreSum(q.Options))
		min := nonPositiveScoreSum(q.Options)
		if min < 0 {
			min = 0
		}
		q.DerivedMinScore = min
	case TypeClaimChoice:
		q.DerivedMaxScore = roundToTwo(positiveScoreSum(q.Options))
		q.DerivedMinScore = roundToTwo(nonPositiveScoreSum(q.Options))
	}
}

// MaxScore sums the derived maxima of the section's questions, skipping
// selection-evaluated ones, rounded to at most two decimals.
func (s *Section) MaxScore() float64 {
	if s == nil || len(s.Questions) == 0 {
		return 0
	}
	sum := 0.0
	for _, q := range s.Questions {
		if q.Question.Type == "" || q.EvaluationType == "Selection" {
			continue
		}
		sum += q.DerivedMaxScore
	}
	return roundToTwo(sum)
}

func roundToTwo(v float64) float64 {
	if v == math.Trunc(v) {
		return v
	}
	return math.Round(v*100) / 100
}
