// Package valuation turns an item's stored comps into a Valuation with
// ranked evidence, and re-prices the inventory in batch.
package valuation

import (
	"math"
	"sort"

	"github.com/sells-group/fmv-cli/internal/curve"
	"github.com/sells-group/fmv-cli/internal/matcher"
	"github.com/sells-group/fmv-cli/internal/model"
)

// Default evidence caps.
const (
	DefaultMaxSold   = 160
	DefaultMaxActive = 20
)

// Price multipliers applied to the universal market price.
const (
	QualifiedDiscount = 0.60
	QuickSaleFactor   = 0.90
	PremiumFactor     = 1.15
)

// Limits caps how many comps feed one valuation.
type Limits struct {
	MaxSold   int `yaml:"max_sold" mapstructure:"max_sold"`
	MaxActive int `yaml:"max_active" mapstructure:"max_active"`
}

func (l Limits) withDefaults() Limits {
	if l.MaxSold <= 0 {
		l.MaxSold = DefaultMaxSold
	}
	if l.MaxActive <= 0 {
		l.MaxActive = DefaultMaxActive
	}
	return l
}

// Outcome is the result of aggregating one item. Valuation is nil when the
// item has no usable sold comp; the stored valuation must then be removed.
type Outcome struct {
	Valuation *model.Valuation
	Evidence  []model.EvidenceLink
	Pricing   curve.Result
	// Basis is the deduplicated sold set, in evidence rank order.
	Basis []model.Comp
}

// Aggregate prices item from its sold and active comps. It is pure: the
// caller stamps RunID and UpdatedAt before persisting.
func Aggregate(item model.Item, sold, active []model.Comp, limits Limits) Outcome {
	limits = limits.withDefaults()

	basis := DedupeSold(capComps(rankSold(sold), limits.MaxSold))

	var prices []float64
	points := make([]curve.Point, 0, len(basis))
	for _, c := range basis {
		points = append(points, curve.Point{Grade: c.GradeNumeric, Price: c.Price, Certified: c.IsCertified()})
		if c.Price > 0 {
			prices = append(prices, c.Price)
		}
	}

	out := Outcome{Basis: basis}
	if len(prices) == 0 {
		return out
	}

	res, ok := curve.Price(points, item.GradeNumeric, item.IsSlabbed())
	if !ok {
		return out
	}
	out.Pricing = res

	universal := res.Price
	qm := 1.0
	if item.Qualified {
		qm = QualifiedDiscount
	}

	v := &model.Valuation{
		ItemID:               item.ID,
		UniversalMarketPrice: universal,
		QualifiedMarketPrice: curve.Round2(universal * QualifiedDiscount),
		MarketPrice:          curve.Round2(universal * qm),
		QuickSale:            curve.Round2(universal * QuickSaleFactor * qm),
		PremiumPrice:         curve.Round2(universal * PremiumFactor * qm),
		Confidence:           model.ConfidenceFromCount(len(prices)),
		BasisCount:           len(prices),
		Method:               res.Method,
	}

	var activePrices []float64
	for _, c := range capComps(rankActive(active), limits.MaxActive) {
		if c.Price > 0 {
			activePrices = append(activePrices, c.Price)
		}
	}
	if med, ok := curve.Median(activePrices); ok {
		anchor := curve.Round2(med)
		v.ActiveAnchorPrice = &anchor
	}
	v.ActiveCount = len(activePrices)

	out.Valuation = v
	out.Evidence = make([]model.EvidenceLink, len(basis))
	for i, c := range basis {
		out.Evidence[i] = model.EvidenceLink{ItemID: item.ID, CompID: c.ID, Rank: i + 1, UsedInFMV: true}
	}
	return out
}

// rankSold orders sold comps by score, then most recent sale, then id.
func rankSold(comps []model.Comp) []model.Comp {
	out := make([]model.Comp, len(comps))
	copy(out, comps)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if a.SoldDate != b.SoldDate {
			return a.SoldDate > b.SoldDate
		}
		return a.ID < b.ID
	})
	return out
}

func rankActive(comps []model.Comp) []model.Comp {
	out := make([]model.Comp, len(comps))
	copy(out, comps)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MatchScore != out[j].MatchScore {
			return out[i].MatchScore > out[j].MatchScore
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func capComps(comps []model.Comp, n int) []model.Comp {
	if len(comps) > n {
		return comps[:n]
	}
	return comps
}

type soldKey struct {
	title string
	cents int64
	date  string
}

// DedupeSold drops repeated sales of the same listing: same normalized
// title, same price to the cent, same sale date. First occurrence wins.
func DedupeSold(comps []model.Comp) []model.Comp {
	seen := make(map[soldKey]bool, len(comps))
	out := make([]model.Comp, 0, len(comps))
	for _, c := range comps {
		k := soldKey{matcher.Normalize(c.Title), int64(math.Round(c.Price * 100)), c.SoldDate}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}
