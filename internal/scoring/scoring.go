// Package scoring contains the pure score computation for assessments.
// Every function here is deterministic over its inputs so finalize can be
// re-run idempotently.
package scoring

import "github.com/evalhub/assess-go-api/internal/models"

// McqInput pairs one recorded answer with its manifest entry.
type McqInput struct {
	Answered  bool
	IsCorrect bool
	Points    float64
}

// CodingInput is one coding question's best recorded score.
type CodingInput struct {
	BestScore float64
}

// ScoreMcq totals MCQ points. Correct answers earn the question's points,
// incorrect ones subtract points*negativeValue when negative marking is on.
// The penalty for a single question is floored at that question's own point
// value. Unanswered questions contribute nothing.
func ScoreMcq(inputs []McqInput, negativeMarking bool, negativeValue float64) float64 {
	total := 0.0
	for _, in := range inputs {
		if !in.Answered {
			continue
		}
		if in.IsCorrect {
			total += in.Points
			continue
		}
		if !negativeMarking {
			continue
		}
		penalty := in.Points * negativeValue
		if penalty > in.Points {
			penalty = in.Points
		}
		total -= penalty
	}
	return total
}

// ScoreCoding totals the best attempt score per coding question.
func ScoreCoding(inputs []CodingInput) float64 {
	total := 0.0
	for _, in := range inputs {
		total += in.BestScore
	}
	return total
}

// AttemptScore computes the score of a single coding attempt. When any test
// case declares explicit points the passed cases' points are summed, scaled
// to the question's manifest points; otherwise the score is proportional to
// passed/total.
func AttemptScore(cases []models.TestCase, passed []bool, questionPoints float64) float64 {
	if len(cases) == 0 || len(passed) != len(cases) {
		return 0
	}

	weightedTotal := 0.0
	for _, tc := range cases {
		weightedTotal += tc.Points
	}

	if weightedTotal > 0 {
		earned := 0.0
		for i, tc := range cases {
			if passed[i] {
				earned += tc.Points
			}
		}
		return earned / weightedTotal * questionPoints
	}

	passedCount := 0
	for _, ok := range passed {
		if ok {
			passedCount++
		}
	}
	return float64(passedCount) / float64(len(cases)) * questionPoints
}

// Percentage returns total/max*100, or 0 when max is 0. The value is not
// clamped; negative marking can legitimately drive it below zero.
func Percentage(total, max float64) float64 {
	if max == 0 {
		return 0
	}
	return total / max * 100
}

// Grade buckets a percentage into a letter grade.
func Grade(percentage float64) string {
	switch {
	case percentage >= 95:
		return "A+"
	case percentage >= 90:
		return "A"
	case percentage >= 85:
		return "B+"
	case percentage >= 80:
		return "B"
	case percentage >= 75:
		return "C+"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}
