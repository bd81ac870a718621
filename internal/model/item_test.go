package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemGradeClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item Item
		want GradeClass
	}{
		{"certified", Item{CertID: "4012345001"}, GradeClassSlabbed},
		{"certified with thread", Item{CertID: "4012345001", CommunityURL: "https://forum/t/1"}, GradeClassSlabbed},
		{"community graded", Item{CommunityURL: "https://forum/t/1"}, GradeClassRawCommunity},
		{"blank cert", Item{CertID: "   "}, GradeClassRawNoCommunity},
		{"nothing", Item{}, GradeClassRawNoCommunity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.item.GradeClass())
			assert.Equal(t, tt.want == GradeClassSlabbed, tt.item.IsSlabbed())
		})
	}
}

func TestItemIsSold(t *testing.T) {
	t.Parallel()

	price := 120.0
	assert.True(t, Item{Status: ItemStatusSold}.IsSold())
	assert.True(t, Item{Status: ItemStatusUnlisted, SoldPrice: &price}.IsSold())
	assert.False(t, Item{Status: ItemStatusDrafted}.IsSold())
}

func TestItemKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ext:M-42", Item{ExternalID: " M-42 ", Title: "X-Men"}.Key())
	assert.Equal(t, "row:7:x-men:94:", Item{SourceRow: 7, Title: " X-Men ", Issue: "94"}.Key())
	assert.NotEqual(t,
		Item{SourceRow: 7, Title: "X-Men", Issue: "94"}.Key(),
		Item{SourceRow: 8, Title: "X-Men", Issue: "94"}.Key(),
	)
}

func TestIssueSortKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		issue string
		want  *int
	}{
		{"20", intPtr(20)},
		{"20A", intPtr(20)},
		{" 129 ", intPtr(129)},
		{"Annual 3", nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := IssueSortKey(tt.issue)
		if tt.want == nil {
			assert.Nil(t, got, tt.issue)
			continue
		}
		require.NotNil(t, got, tt.issue)
		assert.Equal(t, *tt.want, *got)
	}
}

func TestConfidenceFromCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ConfidenceLow, ConfidenceFromCount(0))
	assert.Equal(t, ConfidenceLow, ConfidenceFromCount(2))
	assert.Equal(t, ConfidenceMedium, ConfidenceFromCount(3))
	assert.Equal(t, ConfidenceMedium, ConfidenceFromCount(7))
	assert.Equal(t, ConfidenceHigh, ConfidenceFromCount(8))
}

func TestCompIsCertified(t *testing.T) {
	t.Parallel()

	assert.True(t, Comp{GradeCompany: CompanyCGC}.IsCertified())
	assert.True(t, Comp{GradeCompany: CompanyCBCS}.IsCertified())
	assert.False(t, Comp{IsRaw: true}.IsCertified())
}

func intPtr(v int) *int { return &v }
