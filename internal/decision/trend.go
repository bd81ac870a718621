package decision

import (
	"math"

	"github.com/sells-group/fmv-cli/internal/curve"
)

// TrendLabel describes recent price direction.
type TrendLabel string

const (
	TrendRising       TrendLabel = "rising"
	TrendFalling      TrendLabel = "falling"
	TrendFlat         TrendLabel = "flat"
	TrendInsufficient TrendLabel = "insufficient"
)

const (
	trendMinSales  = 8
	trendWindow    = 5
	trendMinPrior  = 3
	trendThreshold = 8.0 // percent
)

// Trend compares the median of the five most recent sales with the median
// of the five before them. prices must be newest first; non-positive values
// are ignored. pct is the change in percent, rounded to one decimal, and is
// nil when the label is TrendInsufficient.
func Trend(prices []float64) (TrendLabel, *float64) {
	var vals []float64
	for _, p := range prices {
		if p > 0 {
			vals = append(vals, p)
		}
	}
	if len(vals) < trendMinSales {
		return TrendInsufficient, nil
	}

	recent := vals[:trendWindow]
	prior := vals[trendWindow:min(len(vals), 2*trendWindow)]
	if len(prior) < trendMinPrior {
		return TrendInsufficient, nil
	}

	recentMed, _ := curve.UpperMedian(recent)
	priorMed, _ := curve.UpperMedian(prior)
	if priorMed <= 0 {
		return TrendInsufficient, nil
	}

	pct := (recentMed - priorMed) / priorMed * 100
	rounded := math.Round(pct*10) / 10
	switch {
	case pct >= trendThreshold:
		return TrendRising, &rounded
	case pct <= -trendThreshold:
		return TrendFalling, &rounded
	default:
		return TrendFlat, &rounded
	}
}
