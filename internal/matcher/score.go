package matcher

import "math"

// Score thresholds callers apply after scoring.
const (
	DefaultMinScore         = 0.45 // live ingestion
	DefaultBackfillMinScore = 0.25
)

const (
	gradeProximityBase  = 0.65
	gradeFalloffPerStep = 0.2
	gradeWindow         = 3.0
	bothUngradedCredit  = 0.15
	slabStatusMatch     = 0.25
	slabbedVsRawPenalty = 0.10
	signedPenalty       = 0.10
)

// Score rates how well a candidate's parsed signals fit the target, in [0, 1].
func Score(targetGrade *float64, targetSlabbed bool, s Signals) float64 {
	score := 0.0

	switch {
	case targetGrade != nil && s.Grade != nil:
		diff := math.Min(math.Abs(*targetGrade-*s.Grade), gradeWindow)
		score += math.Max(0, gradeProximityBase-diff*gradeFalloffPerStep)
	case targetGrade == nil && s.Grade == nil:
		score += bothUngradedCredit
	}

	if targetSlabbed == s.Slabbed() {
		score += slabStatusMatch
	} else if targetSlabbed && s.IsRaw {
		score -= slabbedVsRawPenalty
	}

	if s.IsSigned {
		score -= signedPenalty
	}

	return math.Max(0, math.Min(1, score))
}
