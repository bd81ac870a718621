package valuation

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/fmv-cli/internal/model"
)

// DefaultActiveEvidence caps the live listings shown next to a valuation.
const DefaultActiveEvidence = 40

type activeKey struct {
	title   string
	cents   int64
	grade   float64
	company string
	raw     bool
}

func keyOf(c model.Comp) activeKey {
	g := -1.0
	if c.GradeNumeric != nil {
		g = *c.GradeNumeric
	}
	return activeKey{
		title:   strings.ToLower(strings.TrimSpace(c.Title)),
		cents:   int64(math.Round(c.Price * 100)),
		grade:   g,
		company: strings.ToLower(strings.TrimSpace(c.GradeCompany)),
		raw:     c.IsRaw,
	}
}

// better reports whether a should be kept over b for the same listing.
func better(a, b model.Comp) bool {
	if a.MatchScore != b.MatchScore {
		return a.MatchScore > b.MatchScore
	}
	return a.ID > b.ID
}

// ActiveEvidence collapses relisted live asks (same title, price, grade,
// grading house and raw flag) to the best-scored copy, ordered by score then
// newest, capped at limit (DefaultActiveEvidence when limit <= 0). Comps
// without a positive price are dropped.
func ActiveEvidence(active []model.Comp, limit int) []model.Comp {
	if limit <= 0 {
		limit = DefaultActiveEvidence
	}

	best := make(map[activeKey]model.Comp)
	for _, c := range active {
		if c.Price <= 0 {
			continue
		}
		k := keyOf(c)
		if cur, ok := best[k]; !ok || better(c, cur) {
			best[k] = c
		}
	}

	out := make([]model.Comp, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return capComps(out, limit)
}
