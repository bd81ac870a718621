package curve

import (
	"math"
	"sort"
)

// Pricing methods recorded on a Result.
const (
	MethodGradeCurve     = "grade_curve"
	MethodMedianFallback = "median_fallback"
)

// Guardrail names recorded on a Result when a floor raised the price.
const (
	GuardHigherGrade   = "higher_grade_floor"
	GuardInterpolation = "slab_interpolation_floor"
	GuardSlabMedian    = "slab_median_floor"
	GuardRawPremium    = "raw_premium_floor"
)

const (
	fitMarkup          = 1.05
	highGradeThreshold = 9.0
	higherGradeMin     = 0.1
	higherGradeMax     = 0.4
	higherGradeShare   = 0.80
	slabBand           = 0.5
	minSlabBuckets     = 2
	rawSlabPremium     = 1.05
	gradeEpsilon       = 1e-9
)

// Result is a guarded market price.
type Result struct {
	Price      float64  `json:"price"`
	Method     string   `json:"method"`
	Fit        *float64 `json:"fit,omitempty"` // raw curve value before markup
	Guardrails []string `json:"guardrails,omitempty"`
}

// Price turns sold evidence into a market price at targetGrade. It fits the
// grade curve (marked up 5%), falls back to the unweighted median of every
// positive price when the curve is insufficient, then raises the value to any
// applicable floor. ok is false only when no positive price exists at all.
func Price(points []Point, targetGrade *float64, slabbed bool) (Result, bool) {
	var prices []float64
	var usable []Point
	for _, p := range points {
		if p.Price > 0 && !math.IsNaN(p.Price) && !math.IsInf(p.Price, 0) {
			prices = append(prices, p.Price)
			usable = append(usable, p)
		}
	}
	if len(prices) == 0 {
		return Result{}, false
	}

	var res Result
	if fit, ok := Estimate(usable, targetGrade, slabbed); ok {
		res.Method = MethodGradeCurve
		res.Fit = &fit
		res.Price = Round2(fit * fitMarkup)
	} else {
		med, _ := Median(prices)
		res.Method = MethodMedianFallback
		res.Price = Round2(med)
	}

	if targetGrade == nil {
		return res, true
	}
	tg := *targetGrade

	if tg >= highGradeThreshold {
		best := 0.0
		for _, p := range usable {
			if p.Grade == nil {
				continue
			}
			g := *p.Grade
			if g >= tg+higherGradeMin-gradeEpsilon && g <= tg+higherGradeMax+gradeEpsilon {
				best = math.Max(best, p.Price)
			}
		}
		if best > 0 {
			res.raise(best*higherGradeShare, GuardHigherGrade)
		}
	}

	if slabbed {
		res.applySlabFloors(usable, tg)
	}

	return res, true
}

// applySlabFloors keeps a slabbed valuation anchored to nearby certified
// sales and never below comparable raw sales.
func (r *Result) applySlabFloors(points []Point, tg float64) {
	// Best realized sale per certified grade.
	buckets := make(map[float64]float64)
	for _, p := range points {
		if !p.Certified || p.Grade == nil {
			continue
		}
		buckets[*p.Grade] = math.Max(buckets[*p.Grade], p.Price)
	}
	grades := make([]float64, 0, len(buckets))
	for g := range buckets {
		grades = append(grades, g)
	}
	sort.Float64s(grades)

	below, above := -1.0, -1.0
	for _, g := range grades {
		if g <= tg {
			below = g
		}
		if g >= tg && above < 0 {
			above = g
		}
	}
	if below >= 0 && above >= 0 && above > below {
		t := (tg - below) / (above - below)
		pb, pa := buckets[below], buckets[above]
		r.raise(pb+t*(pa-pb), GuardInterpolation)
	}

	var near []float64
	for _, g := range grades {
		if math.Abs(g-tg) <= slabBand+gradeEpsilon {
			near = append(near, buckets[g])
		}
	}
	if len(near) >= minSlabBuckets {
		med, _ := Median(near)
		r.raise(med, GuardSlabMedian)
	}

	bestRaw := 0.0
	for _, p := range points {
		if p.Certified || p.Grade == nil {
			continue
		}
		if math.Abs(*p.Grade-tg) <= slabBand+gradeEpsilon {
			bestRaw = math.Max(bestRaw, p.Price)
		}
	}
	if bestRaw > 0 {
		r.raise(bestRaw*rawSlabPremium, GuardRawPremium)
	}
}

func (r *Result) raise(floor float64, guard string) {
	floor = Round2(floor)
	if floor > r.Price {
		r.Price = floor
		r.Guardrails = append(r.Guardrails, guard)
	}
}
