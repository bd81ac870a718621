package ingest

import (
	"encoding/json"
	"strings"

	"github.com/sells-group/fmv-cli/internal/matcher"
	"github.com/sells-group/fmv-cli/internal/model"
	"github.com/sells-group/fmv-cli/internal/store"
)

// Row-level rejection reasons.
const (
	ReasonMissingTitle = "missing_title"
	ReasonMissingPrice = "missing_price"
	ReasonMissingMatch = "missing_match"
	ReasonNoItem       = "no_matching_item"
)

// Rejected records a row that was dropped and why. Row is the 1-based sheet
// row, counting the header as row 1.
type Rejected struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Inventory column names, in lookup order.
var (
	colTitle     = []string{"title"}
	colIssue     = []string{"number", "issue"}
	colYear      = []string{"year"}
	colGrade     = []string{"grade"}
	colCert      = []string{"CGC", "cert", "cert_id"}
	colExternal  = []string{"marvel_id", "external_id"}
	colCommunity = []string{"community url", "community_url"}
	colQualified = []string{"qualified"}
	colSoldPrice = []string{"Sold Price", "sold_price"}
	colSoldDate  = []string{"Sold Date", "sold_date", "date"}
)

// ParseInventory maps inventory sheet rows to items. Rows without a title
// are rejected; a row with a sold price is imported as sold.
func ParseInventory(t *Table) ([]model.Item, []Rejected) {
	var items []model.Item
	var rejected []Rejected
	for i, row := range t.Rows {
		sheetRow := i + 2
		title := t.Get(row, colTitle...)
		if title == "" {
			rejected = append(rejected, Rejected{Row: sheetRow, Reason: ReasonMissingTitle})
			continue
		}

		issue := t.Get(row, colIssue...)
		it := model.Item{
			ExternalID:   t.Get(row, colExternal...),
			SourceRow:    sheetRow,
			Title:        title,
			Issue:        issue,
			IssueSort:    model.IssueSortKey(issue),
			Year:         ParseInt(t.Get(row, colYear...)),
			GradeNumeric: ParsePrice(t.Get(row, colGrade...)),
			CertID:       t.Get(row, colCert...),
			CommunityURL: t.Get(row, colCommunity...),
			Qualified:    Boolish(t.Get(row, colQualified...)),
			Status:       model.ItemStatusUnlisted,
			SoldPrice:    ParsePrice(t.Get(row, colSoldPrice...)),
			SoldDate:     ParseDate(t.Get(row, colSoldDate...)),
		}
		if SoldIDMissing(it.ExternalID) {
			it.ExternalID = ""
		}
		if it.SoldPrice != nil {
			it.Status = model.ItemStatusSold
		}
		items = append(items, it)
	}
	return items, rejected
}

// Sale is one sold-marking instruction.
type Sale struct {
	Row   int             `json:"row"`
	Match store.SoldMatch `json:"match"`
	Price float64         `json:"price"`
	Date  string          `json:"date,omitempty"`
}

// ParseSales maps a sales export to sold-marking instructions. The catalog
// id is preferred; otherwise both title and issue are required.
func ParseSales(t *Table) ([]Sale, []Rejected) {
	var sales []Sale
	var rejected []Rejected
	for i, row := range t.Rows {
		sheetRow := i + 2
		price := ParsePrice(t.Get(row, colSoldPrice...))
		if price == nil {
			rejected = append(rejected, Rejected{Row: sheetRow, Reason: ReasonMissingPrice})
			continue
		}

		s := Sale{Row: sheetRow, Price: *price, Date: ParseDate(t.Get(row, colSoldDate...))}
		if id := t.Get(row, colExternal...); !SoldIDMissing(id) {
			s.Match.ExternalID = id
		} else {
			s.Match.Title = t.Get(row, colTitle...)
			s.Match.Issue = t.Get(row, colIssue...)
			if s.Match.Title == "" || s.Match.Issue == "" {
				rejected = append(rejected, Rejected{Row: sheetRow, Reason: ReasonMissingMatch})
				continue
			}
		}
		sales = append(sales, s)
	}
	return sales, rejected
}

// CompRow is a comp export row: the listing plus the item it claims to be.
type CompRow struct {
	Row     int             `json:"row"`
	Title   string          `json:"title"` // item title column, may be blank
	Issue   string          `json:"issue"`
	Listing matcher.Listing `json:"listing"`
}

var (
	colListingTitle = []string{"listing_title", "listing title", "title"}
	colItemTitle    = []string{"item_title", "item title", "series"}
	colPrice        = []string{"Sold Price", "sold_price", "price"}
	colShipping     = []string{"shipping", "shipping_cost"}
	colKind         = []string{"listing_kind", "listing_type", "type"}
	colURL          = []string{"url", "link"}
	colDescription  = []string{"description", "subtitle", "condition"}
)

// ParseComps maps a comp export to candidate listings. Price problems are
// left to the matcher, which rejects them with its own reasons; only rows
// without any title are dropped here.
func ParseComps(t *Table) ([]CompRow, []Rejected) {
	var out []CompRow
	var rejected []Rejected
	for i, row := range t.Rows {
		sheetRow := i + 2
		title := t.Get(row, colListingTitle...)
		if title == "" {
			rejected = append(rejected, Rejected{Row: sheetRow, Reason: ReasonMissingTitle})
			continue
		}

		kind := model.ListingSold
		if strings.EqualFold(t.Get(row, colKind...), string(model.ListingActive)) {
			kind = model.ListingActive
		}
		shipping := 0.0
		if p := ParsePrice(t.Get(row, colShipping...)); p != nil {
			shipping = *p
		}

		rec := t.Record(row)
		payload, _ := json.Marshal(rec)

		out = append(out, CompRow{
			Row:   sheetRow,
			Title: t.Get(row, colItemTitle...),
			Issue: t.Get(row, colIssue...),
			Listing: matcher.Listing{
				Kind:     kind,
				Title:    title,
				URL:      t.Get(row, colURL...),
				Price:    ParsePrice(t.Get(row, colPrice...)),
				Shipping: shipping,
				SoldDate: ParseDate(t.Get(row, colSoldDate...)),
				RawText:  t.Get(row, colDescription...),
				Payload:  payload,
			},
		})
	}
	return out, rejected
}
