package curve

import (
	"math"
	"slices"
)

// Median returns the middle value of vals, averaging the middle pair when the
// count is even. ok is false for an empty input.
func Median(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	s := slices.Clone(vals)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2], true
	}
	return (s[n/2-1] + s[n/2]) / 2, true
}

// UpperMedian returns the element at index n/2 of the sorted values, i.e. the
// upper of the two middle values when the count is even.
func UpperMedian(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	s := slices.Clone(vals)
	slices.Sort(s)
	return s[len(s)/2], true
}

// Round2 rounds to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
