// Package curve estimates a market price at a given grade from graded sales.
package curve

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Point is one sold comp as seen by the estimator.
type Point struct {
	Grade     *float64 // nil when the listing carried no grade
	Price     float64
	Certified bool // graded by a recognized grading house
}

const (
	// minCertifiedForSlab is how many certified points a slabbed target needs
	// before raw evidence is dropped from the fit.
	minCertifiedForSlab = 3
	minFitPoints        = 2
	localWindow         = 1.5
	minLocalPoints      = 3
)

// Bandwidth returns the kernel bandwidth for a target grade. Price moves more
// sharply per grade step near the top of the scale, so the kernel narrows.
func Bandwidth(targetGrade float64) float64 {
	switch {
	case targetGrade >= 9.0:
		return 0.22
	case targetGrade >= 8.0:
		return 0.35
	default:
		return 0.60
	}
}

type gradedPrice struct {
	grade float64
	price float64
}

// Estimate fits price at targetGrade as the kernel-weighted geometric mean of
// the usable points. ok is false when the evidence is insufficient: no target
// grade, or fewer than two points with a grade and a positive price.
func Estimate(points []Point, targetGrade *float64, slabbed bool) (float64, bool) {
	if targetGrade == nil {
		return 0, false
	}
	tg := *targetGrade

	use := points
	if slabbed {
		var certified []Point
		for _, p := range points {
			if p.Certified {
				certified = append(certified, p)
			}
		}
		if len(certified) >= minCertifiedForSlab {
			use = certified
		}
	}

	var pts []gradedPrice
	for _, p := range use {
		if p.Grade == nil || p.Price <= 0 || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			continue
		}
		pts = append(pts, gradedPrice{grade: *p.Grade, price: p.Price})
	}
	if len(pts) < minFitPoints {
		return 0, false
	}

	var local []gradedPrice
	for _, p := range pts {
		if math.Abs(p.grade-tg) <= localWindow {
			local = append(local, p)
		}
	}
	if len(local) >= minLocalPoints {
		pts = local
	}

	bw := Bandwidth(tg)
	logs := make([]float64, len(pts))
	weights := make([]float64, len(pts))
	wsum := 0.0
	for i, p := range pts {
		logs[i] = math.Log(p.price)
		weights[i] = math.Exp(-math.Abs(p.grade-tg) / bw)
		wsum += weights[i]
	}
	if wsum <= 0 || math.IsNaN(wsum) {
		return 0, false
	}

	return math.Exp(stat.Mean(logs, weights)), true
}
