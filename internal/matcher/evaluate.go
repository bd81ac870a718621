package matcher

import (
	"encoding/json"
	"strings"

	"github.com/sells-group/fmv-cli/internal/model"
)

// Record-level rejection reasons, in addition to the admission reasons.
const (
	ReasonMissingTitle     RejectReason = "missing_title"
	ReasonDuplicate        RejectReason = "duplicate"
	ReasonLowScore         RejectReason = "low_score"
	ReasonMissingPrice     RejectReason = "missing_price"
	ReasonNonPositivePrice RejectReason = "non_positive_price"
)

// Listing is a candidate marketplace record as handed over by ingestion.
type Listing struct {
	Kind     model.ListingKind `json:"listing_kind"`
	Title    string            `json:"title"`
	URL      string            `json:"url,omitempty"`
	Price    *float64          `json:"price,omitempty"`
	Shipping float64           `json:"shipping"`
	SoldDate string            `json:"sold_date,omitempty"`
	// RawText is extra free text (description, CSV row dump) that is searched
	// for grade signals along with the title.
	RawText string          `json:"raw_text,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Result is either a parsed comp or a rejection. Exactly one of Comp and
// Rejection is set.
type Result struct {
	Comp      *model.Comp `json:"comp,omitempty"`
	Rejection *Admission  `json:"rejection,omitempty"`
}

// Parsed reports whether the listing became a comp.
func (r Result) Parsed() bool { return r.Comp != nil }

func reject(reason RejectReason, detail string) Result {
	a := rejected(reason, detail)
	return Result{Rejection: &a}
}

// EvaluateOptions tunes Evaluate.
type EvaluateOptions struct {
	ItemID   int64
	Source   string
	MinScore float64
	// Deduper, when set, rejects listings already seen for the same item.
	Deduper *Deduper
}

// Evaluate turns a listing into a scored comp for target, or says why not.
func (m *Matcher) Evaluate(target Target, l Listing, opts EvaluateOptions) Result {
	title := strings.TrimSpace(l.Title)
	if title == "" {
		return reject(ReasonMissingTitle, "")
	}

	if a := m.Admit(target, title); !a.Admitted {
		return Result{Rejection: &a}
	}

	if opts.Deduper != nil && !opts.Deduper.Add(l.Kind, l.URL, title) {
		return reject(ReasonDuplicate, l.URL)
	}

	signals := ParseSignals(strings.TrimSpace(title + " " + l.RawText))
	score := Score(target.Grade, target.Slabbed, signals)
	if score < opts.MinScore {
		return reject(ReasonLowScore, "")
	}

	if l.Price == nil {
		return reject(ReasonMissingPrice, "")
	}
	if *l.Price <= 0 {
		return reject(ReasonNonPositivePrice, "")
	}

	kind := l.Kind
	if kind == "" {
		kind = model.ListingSold
	}
	soldDate := l.SoldDate
	if kind != model.ListingSold {
		soldDate = ""
	}
	source := opts.Source
	if source == "" {
		source = "ebay"
	}

	return Result{Comp: &model.Comp{
		ItemID:       opts.ItemID,
		Source:       source,
		Kind:         kind,
		Title:        title,
		Issue:        strings.TrimSpace(target.Issue),
		Price:        *l.Price,
		Shipping:     l.Shipping,
		GradeNumeric: signals.Grade,
		GradeCompany: signals.Company,
		IsRaw:        signals.IsRaw,
		IsSigned:     signals.IsSigned,
		MatchScore:   score,
		SoldDate:     soldDate,
		URL:          strings.TrimSpace(l.URL),
		RawPayload:   l.Payload,
	}}
}
