// Package decision turns a valuation into a sell plan: what to do with a
// book, what to ask for it and where to list it. Everything here is pure and
// safe for concurrent use.
package decision

import (
	"math"

	"github.com/sells-group/fmv-cli/internal/curve"
	"github.com/sells-group/fmv-cli/internal/model"
)

// Action is the recommended next step for an item.
type Action string

const (
	ActionAlreadySold       Action = "already_sold"
	ActionListNowSlabbed    Action = "list_now_slabbed"
	ActionSlabCandidate     Action = "slab_candidate"
	ActionSellRawNow        Action = "sell_raw_now"
	ActionGetCommunityGrade Action = "get_community_grade"
	ActionNeedsComps        Action = "needs_comps"
)

// Channel hints.
const (
	ChannelMajorAuction    = "heritage_or_major_auction"
	ChannelFixedPriceOffer = "ebay_fixed_price_offers"
	ChannelCrossPost       = "ebay_or_facebook_groups"
	ChannelFixedPrice      = "ebay"
	ChannelPrepCommunity   = "prep_community_then_ebay"
)

// Assumptions are the seller economics. They are used as given; a negative
// fee or a rate above 1 produces correspondingly odd numbers.
type Assumptions struct {
	PlatformFeeRate    float64 `json:"platform_fee_rate" yaml:"platform_fee_rate" mapstructure:"platform_fee_rate"`
	AvgShipCost        float64 `json:"avg_ship_cost" yaml:"avg_ship_cost" mapstructure:"avg_ship_cost"`
	CertCost           float64 `json:"cert_cost" yaml:"cert_cost" mapstructure:"cert_cost"`
	CertShipInsureCost float64 `json:"cert_ship_insure_cost" yaml:"cert_ship_insure_cost" mapstructure:"cert_ship_insure_cost"`
	TimePenaltyRate    float64 `json:"time_penalty_rate" yaml:"time_penalty_rate" mapstructure:"time_penalty_rate"`
	MinLiftDollars     float64 `json:"min_lift_dollars" yaml:"min_lift_dollars" mapstructure:"min_lift_dollars"`
	MinLiftPct         float64 `json:"min_lift_pct" yaml:"min_lift_pct" mapstructure:"min_lift_pct"`
}

// DefaultAssumptions returns the stock seller economics.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		PlatformFeeRate:    0.13,
		AvgShipCost:        15,
		CertCost:           45,
		CertShipInsureCost: 20,
		TimePenaltyRate:    0.05,
		MinLiftDollars:     150,
		MinLiftPct:         0.20,
	}
}

// AssumptionFields lists the names Set accepts, in declaration order.
var AssumptionFields = []string{
	"platform_fee_rate",
	"avg_ship_cost",
	"cert_cost",
	"cert_ship_insure_cost",
	"time_penalty_rate",
	"min_lift_dollars",
	"min_lift_pct",
}

// Set overrides one assumption by its snake_case name and reports whether
// the name was known.
func (a *Assumptions) Set(name string, v float64) bool {
	switch name {
	case "platform_fee_rate":
		a.PlatformFeeRate = v
	case "avg_ship_cost":
		a.AvgShipCost = v
	case "cert_cost":
		a.CertCost = v
	case "cert_ship_insure_cost":
		a.CertShipInsureCost = v
	case "time_penalty_rate":
		a.TimePenaltyRate = v
	case "min_lift_dollars":
		a.MinLiftDollars = v
	case "min_lift_pct":
		a.MinLiftPct = v
	default:
		return false
	}
	return true
}

// Decision is the per-item plan. Pricing fields are nil when they do not
// apply to the action.
type Decision struct {
	ItemID       int64            `json:"item_id"`
	Title        string           `json:"title"`
	Issue        string           `json:"issue"`
	Year         *int             `json:"year,omitempty"`
	GradeNumeric *float64         `json:"grade_numeric,omitempty"`
	GradeClass   model.GradeClass `json:"grade_class"`
	Status       model.ItemStatus `json:"status"`
	Qualified    bool             `json:"qualified"`

	MarketPrice          *float64         `json:"market_price,omitempty"`
	UniversalMarketPrice *float64         `json:"universal_market_price,omitempty"`
	QualifiedMarketPrice *float64         `json:"qualified_market_price,omitempty"`
	ActiveAnchorPrice    *float64         `json:"active_anchor_price,omitempty"`
	ActiveCount          int              `json:"active_count"`
	Confidence           model.Confidence `json:"confidence,omitempty"`
	BasisCount           int              `json:"basis_count"`

	Action      Action   `json:"action"`
	NetRaw      *float64 `json:"net_raw,omitempty"`
	NetSlabbed  *float64 `json:"net_slabbed,omitempty"`
	SlabLift    *float64 `json:"slab_lift,omitempty"`
	SlabLiftPct *float64 `json:"slab_lift_pct,omitempty"` // percent, one decimal
	TargetPrice *float64 `json:"target_price,omitempty"`
	FloorPrice  *float64 `json:"floor_price,omitempty"`
	AnchorPrice *float64 `json:"anchor_price,omitempty"`
	ChannelHint string   `json:"channel_hint,omitempty"`

	Trend    TrendLabel `json:"trend"`
	TrendPct *float64   `json:"trend_pct,omitempty"`
}

// Decide evaluates one item against its (possibly missing) valuation.
func Decide(item model.Item, v *model.Valuation, a Assumptions) Decision {
	d := Decision{
		ItemID:       item.ID,
		Title:        item.Title,
		Issue:        item.Issue,
		Year:         item.Year,
		GradeNumeric: item.GradeNumeric,
		GradeClass:   item.GradeClass(),
		Status:       item.Status,
		Qualified:    item.Qualified,
		Trend:        TrendInsufficient,
	}
	if v != nil {
		d.MarketPrice = ptr(v.MarketPrice)
		d.UniversalMarketPrice = ptr(v.UniversalMarketPrice)
		d.QualifiedMarketPrice = ptr(v.QualifiedMarketPrice)
		d.ActiveAnchorPrice = v.ActiveAnchorPrice
		d.ActiveCount = v.ActiveCount
		d.Confidence = v.Confidence
		d.BasisCount = v.BasisCount
	}

	if item.IsSold() {
		d.Action = ActionAlreadySold
		return d
	}

	if d.MarketPrice == nil {
		if d.GradeClass == model.GradeClassRawNoCommunity {
			d.Action = ActionGetCommunityGrade
			d.ChannelHint = ChannelPrepCommunity
		} else {
			d.Action = ActionNeedsComps
			d.ChannelHint = ChannelFixedPriceOffer
		}
		return d
	}
	market := *d.MarketPrice

	d.TargetPrice = ptr(curve.Round2(market * AskMultiplier(d.GradeClass, d.Confidence, market, d.ActiveCount)))
	d.FloorPrice = ptr(curve.Round2(market * floorShare(d.Confidence)))
	d.AnchorPrice = ptr(Anchor(market, d.ActiveAnchorPrice))
	d.ChannelHint = Channel(market)

	if d.GradeClass == model.GradeClassSlabbed {
		d.Action = ActionListNowSlabbed
		return d
	}

	netRaw := market*(1-a.PlatformFeeRate) - a.AvgShipCost
	gross := market * SlabMultiplier(item.GradeNumeric, item.Qualified)
	netSlabbed := gross*(1-a.PlatformFeeRate) - a.AvgShipCost - a.CertCost - a.CertShipInsureCost - gross*a.TimePenaltyRate
	lift := netSlabbed - netRaw
	liftPct := 0.0
	if netRaw > 0 {
		liftPct = lift / netRaw
	}

	d.NetRaw = ptr(curve.Round2(netRaw))
	d.NetSlabbed = ptr(curve.Round2(netSlabbed))
	d.SlabLift = ptr(curve.Round2(lift))
	d.SlabLiftPct = ptr(math.Round(liftPct*1000) / 10)

	switch {
	case lift >= a.MinLiftDollars && liftPct >= a.MinLiftPct:
		d.Action = ActionSlabCandidate
	case d.GradeClass == model.GradeClassRawNoCommunity:
		d.Action = ActionGetCommunityGrade
	default:
		d.Action = ActionSellRawNow
	}
	return d
}

// SlabMultiplier is the expected price uplift from certifying a raw book.
// Qualified books gain nothing; otherwise the uplift grows with grade.
func SlabMultiplier(grade *float64, qualified bool) float64 {
	if qualified {
		return 1.0
	}
	g := 0.0
	if grade != nil {
		g = *grade
	}
	switch {
	case g >= 8.0:
		return 1.35
	case g >= 6.0:
		return 1.25
	case g >= 4.0:
		return 1.15
	default:
		return 1.05
	}
}

// AskMultiplier scales market price to a list price from the book's grade
// class, valuation confidence, price level and live competition.
func AskMultiplier(class model.GradeClass, conf model.Confidence, market float64, activeCount int) float64 {
	m := 1.05
	if class == model.GradeClassSlabbed {
		m += 0.03
	}
	switch conf {
	case model.ConfidenceHigh:
		m += 0.02
	case model.ConfidenceLow:
		m -= 0.02
	}
	switch {
	case market >= 1000:
		m += 0.03
	case market >= 300:
		m += 0.01
	}
	switch {
	case activeCount >= 8:
		m += 0.01
	case activeCount == 0:
		m -= 0.01
	}
	return math.Max(1.03, math.Min(1.18, m))
}

func floorShare(conf model.Confidence) float64 {
	if conf == model.ConfidenceHigh {
		return 0.92
	}
	return 0.88
}

// Anchor is the ceiling reference: a markup over market price, raised to the
// live-listing anchor when that is higher.
func Anchor(market float64, activeAnchor *float64) float64 {
	mult := 1.2
	if market >= 500 {
		mult = 1.3
	}
	anchor := curve.Round2(market * mult)
	if activeAnchor != nil {
		anchor = curve.Round2(math.Max(anchor, *activeAnchor))
	}
	return anchor
}

// Channel picks a sales venue by price level.
func Channel(market float64) string {
	switch {
	case market >= 2500:
		return ChannelMajorAuction
	case market >= 500:
		return ChannelFixedPriceOffer
	case market >= 150:
		return ChannelCrossPost
	default:
		return ChannelFixedPrice
	}
}

func ptr(v float64) *float64 { return &v }
