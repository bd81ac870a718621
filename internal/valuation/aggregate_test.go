package valuation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fmv-cli/internal/curve"
	"github.com/sells-group/fmv-cli/internal/model"
)

func fptr(v float64) *float64 { return &v }

func sold(id int64, title string, price, score float64, date string) model.Comp {
	return model.Comp{ID: id, ItemID: 1, Kind: model.ListingSold, Title: title, Price: price, MatchScore: score, SoldDate: date}
}

func active(id int64, title string, price, score float64) model.Comp {
	return model.Comp{ID: id, ItemID: 1, Kind: model.ListingActive, Title: title, Price: price, MatchScore: score}
}

func TestAggregate_NoSoldEvidence(t *testing.T) {
	t.Parallel()

	item := model.Item{ID: 1, Title: "Hulk", Issue: "181"}
	tests := []struct {
		name string
		sold []model.Comp
	}{
		{"none", nil},
		{"non-positive only", []model.Comp{sold(1, "hulk 181", 0, 0.9, ""), sold(2, "hulk 181 cgc", -5, 0.8, "")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := Aggregate(item, tt.sold, []model.Comp{active(9, "hulk 181", 100, 0.5)}, Limits{})
			assert.Nil(t, out.Valuation)
			assert.Empty(t, out.Evidence)
		})
	}
}

func TestAggregate_MedianFallbackPricing(t *testing.T) {
	t.Parallel()

	item := model.Item{ID: 1, Title: "Hulk", Issue: "181"}
	out := Aggregate(item,
		[]model.Comp{
			sold(1, "Hulk 181 a", 100, 0.5, "2024-01-01"),
			sold(2, "Hulk 181 b", 200, 0.5, "2024-01-02"),
			sold(3, "Hulk 181 c", 300, 0.5, "2024-01-03"),
		},
		[]model.Comp{active(4, "x", 50, 0.5), active(5, "y", 70, 0.5), active(6, "z", 0, 0.9)},
		Limits{},
	)
	require.NotNil(t, out.Valuation)
	v := out.Valuation
	assert.Equal(t, curve.MethodMedianFallback, v.Method)
	assert.Equal(t, 200.0, v.UniversalMarketPrice)
	assert.Equal(t, 120.0, v.QualifiedMarketPrice)
	assert.Equal(t, 200.0, v.MarketPrice)
	assert.Equal(t, 180.0, v.QuickSale)
	assert.Equal(t, 230.0, v.PremiumPrice)
	assert.Equal(t, model.ConfidenceMedium, v.Confidence)
	assert.Equal(t, 3, v.BasisCount)
	require.NotNil(t, v.ActiveAnchorPrice)
	assert.Equal(t, 60.0, *v.ActiveAnchorPrice)
	assert.Equal(t, 2, v.ActiveCount)
	assert.Equal(t, int64(1), v.ItemID)
}

func TestAggregate_QualifiedDiscount(t *testing.T) {
	t.Parallel()

	item := model.Item{ID: 1, Title: "Hulk", Issue: "181", Qualified: true}
	out := Aggregate(item, []model.Comp{
		sold(1, "a", 150, 0.5, ""),
		sold(2, "b", 250, 0.5, ""),
	}, nil, Limits{})
	require.NotNil(t, out.Valuation)
	v := out.Valuation
	assert.Equal(t, 200.0, v.UniversalMarketPrice)
	assert.Equal(t, 120.0, v.QualifiedMarketPrice)
	assert.Equal(t, 120.0, v.MarketPrice)
	assert.Equal(t, 108.0, v.QuickSale)
	assert.Equal(t, 138.0, v.PremiumPrice)
	assert.Equal(t, model.ConfidenceLow, v.Confidence)
	assert.Nil(t, v.ActiveAnchorPrice)
	assert.Zero(t, v.ActiveCount)
}

func TestAggregate_GradeCurve(t *testing.T) {
	t.Parallel()

	item := model.Item{ID: 1, Title: "Hulk", Issue: "181", GradeNumeric: fptr(8.0)}
	comps := []model.Comp{
		{ID: 1, Kind: model.ListingSold, Title: "a", Price: 400, GradeNumeric: fptr(8.0), MatchScore: 0.9},
		{ID: 2, Kind: model.ListingSold, Title: "b", Price: 400, GradeNumeric: fptr(8.0), MatchScore: 0.9},
	}
	out := Aggregate(item, comps, nil, Limits{})
	require.NotNil(t, out.Valuation)
	assert.Equal(t, curve.MethodGradeCurve, out.Valuation.Method)
	assert.InDelta(t, 420.0, out.Valuation.UniversalMarketPrice, 0.01)
}

func TestAggregate_EvidenceRankAndDedupe(t *testing.T) {
	t.Parallel()

	item := model.Item{ID: 1, Title: "Hulk", Issue: "181"}
	comps := []model.Comp{
		sold(1, "Hulk #181!", 100, 0.5, "2024-01-01"),
		sold(2, "hulk 181", 100.001, 0.5, "2024-01-01"), // same sale as 1
		sold(3, "Hulk 181 CGC", 300, 0.9, "2023-06-01"),
		sold(4, "Hulk 181 newer", 200, 0.5, "2024-03-01"),
		sold(5, "hulk 181", 100, 0.5, "2024-02-01"), // different date
	}
	out := Aggregate(item, comps, nil, Limits{})
	require.NotNil(t, out.Valuation)

	ids := make([]int64, len(out.Evidence))
	for i, l := range out.Evidence {
		ids[i] = l.CompID
		assert.Equal(t, i+1, l.Rank)
		assert.True(t, l.UsedInFMV)
		assert.Equal(t, int64(1), l.ItemID)
	}
	assert.Equal(t, []int64{3, 4, 5, 1}, ids)
	assert.Equal(t, 4, out.Valuation.BasisCount)
	assert.Len(t, out.Basis, 4)
}

func TestAggregate_CapsSoldAndActive(t *testing.T) {
	t.Parallel()

	item := model.Item{ID: 1, Title: "Hulk", Issue: "181"}
	comps := []model.Comp{
		sold(1, "a", 10, 0.1, ""),
		sold(2, "b", 100, 0.9, ""),
		sold(3, "c", 300, 0.8, ""),
	}
	acts := []model.Comp{active(4, "a", 1000, 0.1), active(5, "b", 20, 0.9), active(6, "c", 40, 0.8)}
	out := Aggregate(item, comps, acts, Limits{MaxSold: 2, MaxActive: 2})
	require.NotNil(t, out.Valuation)
	assert.Equal(t, 2, out.Valuation.BasisCount)
	assert.Equal(t, 200.0, out.Valuation.UniversalMarketPrice)
	assert.Equal(t, 30.0, *out.Valuation.ActiveAnchorPrice)
	assert.Equal(t, 2, out.Valuation.ActiveCount)
}

func TestAggregate_HighConfidence(t *testing.T) {
	t.Parallel()

	item := model.Item{ID: 1, Title: "Hulk", Issue: "181"}
	var comps []model.Comp
	for i := 1; i <= 8; i++ {
		comps = append(comps, sold(int64(i), "hulk "+string(rune('a'+i)), float64(100+i), 0.5, ""))
	}
	out := Aggregate(item, comps, nil, Limits{})
	require.NotNil(t, out.Valuation)
	assert.Equal(t, model.ConfidenceHigh, out.Valuation.Confidence)
}

func TestAggregate_Idempotent(t *testing.T) {
	t.Parallel()

	item := model.Item{ID: 1, Title: "Hulk", Issue: "181", GradeNumeric: fptr(9.0), CertID: "123"}
	comps := []model.Comp{
		{ID: 1, Kind: model.ListingSold, Title: "a", Price: 900, GradeNumeric: fptr(9.0), GradeCompany: "CGC", MatchScore: 0.9, SoldDate: "2024-01-01"},
		{ID: 2, Kind: model.ListingSold, Title: "b", Price: 1000, GradeNumeric: fptr(9.2), GradeCompany: "CGC", MatchScore: 0.7},
		{ID: 3, Kind: model.ListingSold, Title: "c", Price: 700, GradeNumeric: fptr(8.5), GradeCompany: "CGC", MatchScore: 0.7, SoldDate: "2024-02-01"},
	}
	acts := []model.Comp{active(4, "x", 1100, 0.8)}

	first := Aggregate(item, comps, acts, Limits{})
	second := Aggregate(item, comps, acts, Limits{})
	assert.Equal(t, first, second)
}

func TestDedupeSold_KeepsFirst(t *testing.T) {
	t.Parallel()

	out := DedupeSold([]model.Comp{
		sold(1, "X-Men 94", 50, 0.5, "2024-01-01"),
		sold(2, "x men 94", 50, 0.9, "2024-01-01"),
	})
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].ID)
}

func TestActiveEvidence(t *testing.T) {
	t.Parallel()

	g := fptr(9.0)
	comps := []model.Comp{
		{ID: 1, Title: "Hulk 181 CGC 9.0", Price: 1000, GradeNumeric: g, GradeCompany: "CGC", MatchScore: 0.7},
		{ID: 2, Title: " hulk 181 cgc 9.0 ", Price: 1000, GradeNumeric: g, GradeCompany: "cgc", MatchScore: 0.9},
		{ID: 3, Title: "Hulk 181 CGC 9.0", Price: 1000, GradeNumeric: g, GradeCompany: "CGC", MatchScore: 0.9},
		{ID: 4, Title: "Hulk 181 raw", Price: 300, IsRaw: true, MatchScore: 0.5},
		{ID: 5, Title: "Hulk 181 raw", Price: 300, MatchScore: 0.5},
		{ID: 6, Title: "Hulk 181 free", Price: 0, MatchScore: 1},
	}

	out := ActiveEvidence(comps, 0)
	ids := make([]int64, len(out))
	for i, c := range out {
		ids[i] = c.ID
	}
	assert.Equal(t, []int64{3, 5, 4}, ids)

	assert.Len(t, ActiveEvidence(comps, 1), 1)
}
