package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fmv-cli/internal/model"
)

func TestEvaluate(t *testing.T) {
	m := newTestMatcher(t)
	target := Target{Title: "Amazing Spider-Man", Issue: "20", Year: ptrInt(1965), Grade: ptrFloat64(9.0), Slabbed: true}
	opts := EvaluateOptions{ItemID: 7, MinScore: DefaultMinScore}

	t.Run("parsed", func(t *testing.T) {
		res := m.Evaluate(target, Listing{
			Kind:     model.ListingSold,
			Title:    "Amazing Spider-Man #20 CGC 9.0 1965",
			URL:      "https://ebay.com/itm/1",
			Price:    ptrFloat64(1200),
			Shipping: 8,
			SoldDate: "2026-09-01",
		}, opts)
		require.True(t, res.Parsed())
		assert.Nil(t, res.Rejection)

		c := res.Comp
		assert.Equal(t, int64(7), c.ItemID)
		assert.Equal(t, "ebay", c.Source)
		assert.Equal(t, model.ListingSold, c.Kind)
		assert.Equal(t, "20", c.Issue)
		assert.Equal(t, "CGC", c.GradeCompany)
		require.NotNil(t, c.GradeNumeric)
		assert.InDelta(t, 9.0, *c.GradeNumeric, 1e-9)
		assert.InDelta(t, 0.90, c.MatchScore, 1e-9)
		assert.Equal(t, "2026-09-01", c.SoldDate)
	})

	t.Run("active listings drop sold date", func(t *testing.T) {
		res := m.Evaluate(target, Listing{
			Kind:     model.ListingActive,
			Title:    "Amazing Spider-Man #20 CGC 9.0",
			Price:    ptrFloat64(1500),
			SoldDate: "2026-09-01",
		}, opts)
		require.True(t, res.Parsed())
		assert.Empty(t, res.Comp.SoldDate)
	})

	tests := []struct {
		name    string
		listing Listing
		reason  RejectReason
	}{
		{"missing title", Listing{Price: ptrFloat64(10)}, ReasonMissingTitle},
		{"not admitted", Listing{Title: "Amazing Spider-Man 20 facsimile", Price: ptrFloat64(10)}, ReasonExcludedTerm},
		{"low score", Listing{Title: "Amazing Spider-Man 20 raw 2.0 signed", Price: ptrFloat64(10)}, ReasonLowScore},
		{"missing price", Listing{Title: "Amazing Spider-Man 20 CGC 9.0"}, ReasonMissingPrice},
		{"zero price", Listing{Title: "Amazing Spider-Man 20 CGC 9.0", Price: ptrFloat64(0)}, ReasonNonPositivePrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Evaluate(target, tt.listing, opts)
			assert.False(t, res.Parsed())
			require.NotNil(t, res.Rejection)
			assert.Equal(t, tt.reason, res.Rejection.Reason)
		})
	}

	t.Run("duplicate", func(t *testing.T) {
		d := NewDeduper()
		o := opts
		o.Deduper = d
		l := Listing{Title: "Amazing Spider-Man #20 CGC 9.0", URL: "u1", Price: ptrFloat64(900)}

		assert.True(t, m.Evaluate(target, l, o).Parsed())
		res := m.Evaluate(target, l, o)
		require.NotNil(t, res.Rejection)
		assert.Equal(t, ReasonDuplicate, res.Rejection.Reason)
	})
}
