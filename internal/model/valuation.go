package model

import "time"

// Confidence is the evidence-count tier of a valuation.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConfidenceFromCount maps a sold-comp count to a confidence tier.
func ConfidenceFromCount(n int) Confidence {
	switch {
	case n >= 8:
		return ConfidenceHigh
	case n >= 3:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Valuation is the stored price estimate for one item. At most one exists per item.
type Valuation struct {
	ItemID               int64      `json:"item_id"`
	UniversalMarketPrice float64    `json:"universal_market_price"`
	QualifiedMarketPrice float64    `json:"qualified_market_price"`
	MarketPrice          float64    `json:"market_price"`
	QuickSale            float64    `json:"quick_sale"`
	PremiumPrice         float64    `json:"premium_price"`
	ActiveAnchorPrice    *float64   `json:"active_anchor_price,omitempty"`
	ActiveCount          int        `json:"active_count"`
	Confidence           Confidence `json:"confidence"`
	BasisCount           int        `json:"basis_count"`
	Method               string     `json:"method"`
	RunID                string     `json:"run_id,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// EvidenceLink records that a comp backed an item's valuation.
type EvidenceLink struct {
	ItemID    int64 `json:"item_id"`
	CompID    int64 `json:"comp_id"`
	Rank      int   `json:"rank"`
	UsedInFMV bool  `json:"used_in_fmv"`
}

// ItemValuation joins an item with its (optional) valuation for read paths.
type ItemValuation struct {
	Item      Item       `json:"item"`
	Valuation *Valuation `json:"valuation,omitempty"`
}
