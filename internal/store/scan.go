package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fmv-cli/internal/model"
)

const itemColumns = `i.id, i.external_id, i.source_row, i.title, i.issue, i.issue_sort, i.year,
	i.grade_numeric, i.cert_id, i.community_url, i.qualified, i.status, i.sold_price, i.sold_date,
	i.created_at`

const compColumns = `c.id, c.item_id, c.source, c.listing_kind, c.title, c.issue, c.price, c.shipping,
	c.grade_numeric, c.grade_company, c.is_raw, c.is_signed, c.match_score, c.sold_date, c.url,
	c.raw_payload`

const valuationColumns = `v.item_id, v.universal_market_price, v.qualified_market_price,
	v.market_price, v.quick_sale, v.premium_price, v.active_anchor_price, v.active_count,
	v.confidence, v.basis_count, v.method, v.run_id, v.updated_at`

// scannable is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

type itemScan struct {
	it                                    model.Item
	ext, issue, cert, community, soldDate sql.NullString
	sourceRow, issueSort, year            sql.NullInt64
	grade, soldPrice                      sql.NullFloat64
	status                                string
}

func (s *itemScan) dest() []any {
	return []any{
		&s.it.ID, &s.ext, &s.sourceRow, &s.it.Title, &s.issue, &s.issueSort, &s.year,
		&s.grade, &s.cert, &s.community, &s.it.Qualified, &s.status, &s.soldPrice, &s.soldDate,
		&s.it.CreatedAt,
	}
}

func (s *itemScan) item() *model.Item {
	it := s.it
	it.ExternalID = s.ext.String
	it.SourceRow = int(s.sourceRow.Int64)
	it.Issue = s.issue.String
	it.IssueSort = intPtr(s.issueSort)
	it.Year = intPtr(s.year)
	it.GradeNumeric = floatPtr(s.grade)
	it.CertID = s.cert.String
	it.CommunityURL = s.community.String
	it.Status = model.ItemStatus(s.status)
	it.SoldPrice = floatPtr(s.soldPrice)
	it.SoldDate = s.soldDate.String
	return &it
}

func scanItem(row scannable) (*model.Item, error) {
	var s itemScan
	if err := row.Scan(s.dest()...); err != nil {
		return nil, err
	}
	return s.item(), nil
}

type compScan struct {
	c                             model.Comp
	kind                          string
	issue, company, soldDate, url sql.NullString
	grade                         sql.NullFloat64
	payload                       []byte
}

func (s *compScan) dest() []any {
	return []any{
		&s.c.ID, &s.c.ItemID, &s.c.Source, &s.kind, &s.c.Title, &s.issue, &s.c.Price, &s.c.Shipping,
		&s.grade, &s.company, &s.c.IsRaw, &s.c.IsSigned, &s.c.MatchScore, &s.soldDate, &s.url,
		&s.payload,
	}
}

func (s *compScan) comp() *model.Comp {
	c := s.c
	c.Kind = model.ListingKind(s.kind)
	c.Issue = s.issue.String
	c.GradeNumeric = floatPtr(s.grade)
	c.GradeCompany = s.company.String
	c.SoldDate = s.soldDate.String
	c.URL = s.url.String
	if len(s.payload) > 0 {
		c.RawPayload = json.RawMessage(append([]byte(nil), s.payload...))
	}
	return &c
}

func scanComp(row scannable) (*model.Comp, error) {
	var s compScan
	if err := row.Scan(s.dest()...); err != nil {
		return nil, err
	}
	return s.comp(), nil
}

// valuationScan reads valuation columns that may all be NULL (LEFT JOIN).
type valuationScan struct {
	itemID, activeCount, basisCount                      sql.NullInt64
	universal, qualified, market, quick, premium, anchor sql.NullFloat64
	confidence, method, runID                            sql.NullString
	updatedAt                                            sql.NullTime
}

func (s *valuationScan) dest() []any {
	return []any{
		&s.itemID, &s.universal, &s.qualified, &s.market, &s.quick, &s.premium, &s.anchor,
		&s.activeCount, &s.confidence, &s.basisCount, &s.method, &s.runID, &s.updatedAt,
	}
}

func (s *valuationScan) valuation() *model.Valuation {
	if !s.itemID.Valid {
		return nil
	}
	return &model.Valuation{
		ItemID:               s.itemID.Int64,
		UniversalMarketPrice: s.universal.Float64,
		QualifiedMarketPrice: s.qualified.Float64,
		MarketPrice:          s.market.Float64,
		QuickSale:            s.quick.Float64,
		PremiumPrice:         s.premium.Float64,
		ActiveAnchorPrice:    floatPtr(s.anchor),
		ActiveCount:          int(s.activeCount.Int64),
		Confidence:           model.Confidence(s.confidence.String),
		BasisCount:           int(s.basisCount.Int64),
		Method:               s.method.String,
		RunID:                s.runID.String,
		UpdatedAt:            s.updatedAt.Time,
	}
}

func scanValuation(row scannable) (*model.Valuation, error) {
	var s valuationScan
	if err := row.Scan(s.dest()...); err != nil {
		return nil, err
	}
	return s.valuation(), nil
}

func scanItemValuation(row scannable) (*model.ItemValuation, error) {
	var is itemScan
	var vs valuationScan
	if err := row.Scan(append(is.dest(), vs.dest()...)...); err != nil {
		return nil, err
	}
	return &model.ItemValuation{Item: *is.item(), Valuation: vs.valuation()}, nil
}

// rowIterator is the common surface of *sql.Rows and pgx.Rows.
type rowIterator interface {
	scannable
	Next() bool
	Err() error
}

func scanEvidence(rows rowIterator, dialect string) ([]EvidenceComp, error) {
	var out []EvidenceComp
	for rows.Next() {
		var ec EvidenceComp
		var cs compScan
		dest := append([]any{&ec.Link.ItemID, &ec.Link.CompID, &ec.Link.Rank, &ec.Link.UsedInFMV}, cs.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrapf(err, "%s: scan evidence", dialect)
		}
		ec.Comp = *cs.comp()
		out = append(out, ec)
	}
	return out, eris.Wrapf(rows.Err(), "%s: evidence iterate", dialect)
}

func scanStrings(rows rowIterator, op string) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, eris.Wrap(err, op)
		}
		out = append(out, s)
	}
	return out, eris.Wrap(rows.Err(), op)
}

func scanPriceHistory(rows rowIterator, out map[int64][]float64, op string) error {
	for rows.Next() {
		var id int64
		var price float64
		if err := rows.Scan(&id, &price); err != nil {
			return eris.Wrap(err, op)
		}
		out[id] = append(out[id], price)
	}
	return eris.Wrap(rows.Err(), op)
}

// itemArgs are the item columns after item_key, in insert order.
func itemArgs(it model.Item) []any {
	status := it.Status
	if status == "" {
		status = model.ItemStatusUnlisted
	}
	issueSort := it.IssueSort
	if issueSort == nil {
		issueSort = model.IssueSortKey(it.Issue)
	}
	return []any{
		nullString(it.ExternalID), it.SourceRow, it.Title, nullString(it.Issue),
		nullInt(issueSort), nullInt(it.Year), nullFloat(it.GradeNumeric), nullString(it.CertID),
		nullString(it.CommunityURL), it.Qualified, string(status), nullFloat(it.SoldPrice),
		nullString(it.SoldDate),
	}
}

func compArgs(c model.Comp) []any {
	return []any{
		c.ItemID, c.Source, string(c.Kind), c.Title, nullString(c.Issue), c.Price, c.Shipping,
		nullFloat(c.GradeNumeric), nullString(c.GradeCompany), c.IsRaw, c.IsSigned, c.MatchScore,
		nullString(c.SoldDate), nullString(c.URL), nullString(string(c.RawPayload)),
	}
}

func valuationArgs(v model.Valuation) []any {
	updated := v.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return []any{
		v.ItemID, v.UniversalMarketPrice, v.QualifiedMarketPrice, v.MarketPrice, v.QuickSale,
		v.PremiumPrice, nullFloat(v.ActiveAnchorPrice), v.ActiveCount, string(v.Confidence),
		v.BasisCount, v.Method, nullString(v.RunID), updated,
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
