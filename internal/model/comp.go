package model

import "encoding/json"

// ListingKind distinguishes completed sales from live asks.
type ListingKind string

const (
	ListingSold   ListingKind = "sold"
	ListingActive ListingKind = "active"
)

// Grading houses recognized as certified evidence.
const (
	CompanyCGC  = "CGC"
	CompanyCBCS = "CBCS"
)

// Comp is one observed marketplace listing attached to an inventory item.
type Comp struct {
	ID           int64           `json:"id"`
	ItemID       int64           `json:"item_id"`
	Source       string          `json:"source"`
	Kind         ListingKind     `json:"listing_kind"`
	Title        string          `json:"title"`
	Issue        string          `json:"issue,omitempty"`
	Price        float64         `json:"price"`
	Shipping     float64         `json:"shipping"`
	GradeNumeric *float64        `json:"grade_numeric,omitempty"`
	GradeCompany string          `json:"grade_company,omitempty"`
	IsRaw        bool            `json:"is_raw"`
	IsSigned     bool            `json:"is_signed"`
	MatchScore   float64         `json:"match_score"`
	SoldDate     string          `json:"sold_date,omitempty"` // YYYY-MM-DD
	URL          string          `json:"url,omitempty"`
	RawPayload   json.RawMessage `json:"raw_payload,omitempty"`
}

// IsCertified reports whether the comp was graded by a recognized house.
func (c Comp) IsCertified() bool {
	return c.GradeCompany == CompanyCGC || c.GradeCompany == CompanyCBCS
}
