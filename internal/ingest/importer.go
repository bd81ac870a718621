package ingest

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fmv-cli/internal/matcher"
	"github.com/sells-group/fmv-cli/internal/model"
	"github.com/sells-group/fmv-cli/internal/store"
)

// Report summarizes one import.
type Report struct {
	File     string     `json:"file"`
	Parsed   int        `json:"parsed"`
	Written  int64      `json:"written"`
	Rejected []Rejected `json:"rejected,omitempty"`
}

// RejectedByReason counts rejections per reason.
func (r Report) RejectedByReason() map[string]int {
	out := make(map[string]int)
	for _, rj := range r.Rejected {
		out[rj.Reason]++
	}
	return out
}

func (r Report) log(kind string) {
	for _, rj := range r.Rejected {
		zap.L().Debug("row rejected",
			zap.String("import", kind),
			zap.Int("row", rj.Row),
			zap.String("reason", rj.Reason),
			zap.String("detail", rj.Detail),
		)
	}
	zap.L().Info("import complete",
		zap.String("import", kind),
		zap.String("file", r.File),
		zap.Int("parsed", r.Parsed),
		zap.Int64("written", r.Written),
		zap.Int("rejected", len(r.Rejected)),
	)
}

// Importer writes parsed files through a store.
type Importer struct {
	store   store.Store
	matcher *matcher.Matcher
}

// NewImporter creates an Importer.
func NewImporter(st store.Store, m *matcher.Matcher) *Importer {
	return &Importer{store: st, matcher: m}
}

// Inventory upserts every titled row of an inventory sheet.
func (im *Importer) Inventory(ctx context.Context, path string, opts ReadOptions) (Report, error) {
	t, err := ReadTable(ctx, path, opts)
	if err != nil {
		return Report{}, err
	}
	if !t.Has(colTitle...) {
		return Report{}, eris.Errorf("ingest: %s has no title column (have %v)", path, t.Header)
	}

	items, rejected := ParseInventory(t)
	rep := Report{File: path, Parsed: len(items), Rejected: rejected}
	n, err := im.store.UpsertItems(ctx, items)
	if err != nil {
		return rep, eris.Wrap(err, "ingest: upsert items")
	}
	rep.Written = n
	rep.log("inventory")
	return rep, nil
}

// Sales marks items sold from a sales export. Written counts updated items.
func (im *Importer) Sales(ctx context.Context, path string, opts ReadOptions) (Report, error) {
	t, err := ReadTable(ctx, path, opts)
	if err != nil {
		return Report{}, err
	}

	sales, rejected := ParseSales(t)
	rep := Report{File: path, Parsed: len(sales), Rejected: rejected}
	for _, s := range sales {
		n, err := im.store.MarkSold(ctx, s.Match, s.Price, s.Date)
		if err != nil {
			return rep, eris.Wrapf(err, "ingest: mark sold row %d", s.Row)
		}
		if n == 0 {
			rep.Rejected = append(rep.Rejected, Rejected{Row: s.Row, Reason: ReasonNoItem})
		}
		rep.Written += n
	}
	rep.log("sales")
	return rep, nil
}

// CompOptions configures a comp import.
type CompOptions struct {
	Read ReadOptions
	// ItemID attaches every row to one item instead of matching rows to
	// items by their title and issue columns.
	ItemID   int64
	MinScore float64
	Source   string
}

type itemKey struct {
	title string
	issue string
}

func keyFor(title, issue string) itemKey {
	return itemKey{matcher.Normalize(title), strings.ToLower(strings.TrimSpace(issue))}
}

// Comps admits, scores and stores comp rows. Listings already stored for an
// item are skipped as duplicates.
func (im *Importer) Comps(ctx context.Context, path string, opts CompOptions) (Report, error) {
	t, err := ReadTable(ctx, path, opts.Read)
	if err != nil {
		return Report{}, err
	}

	var items []model.Item
	if opts.ItemID > 0 {
		it, err := im.store.GetItem(ctx, opts.ItemID)
		if err != nil {
			return Report{}, eris.Wrap(err, "ingest: load item")
		}
		items = []model.Item{*it}
	} else {
		items, err = im.store.ListItems(ctx, store.ItemFilter{})
		if err != nil {
			return Report{}, eris.Wrap(err, "ingest: list items")
		}
	}

	byKey := make(map[itemKey][]model.Item)
	for _, it := range items {
		k := keyFor(it.Title, it.Issue)
		byKey[k] = append(byKey[k], it)
	}

	dedupers := make(map[int64]*matcher.Deduper)
	deduperFor := func(itemID int64) (*matcher.Deduper, error) {
		if d, ok := dedupers[itemID]; ok {
			return d, nil
		}
		d := matcher.NewDeduper()
		for _, kind := range []model.ListingKind{model.ListingSold, model.ListingActive} {
			existing, err := im.store.ListComps(ctx, itemID, kind)
			if err != nil {
				return nil, eris.Wrap(err, "ingest: load existing comps")
			}
			for _, c := range existing {
				d.Add(c.Kind, c.URL, c.Title)
			}
		}
		dedupers[itemID] = d
		return d, nil
	}

	rows, rejected := ParseComps(t)
	rep := Report{File: path, Rejected: rejected}
	var comps []model.Comp
	for _, row := range rows {
		targets := items
		if opts.ItemID == 0 {
			targets = byKey[keyFor(row.Title, row.Issue)]
		}
		if len(targets) == 0 {
			rep.Rejected = append(rep.Rejected, Rejected{Row: row.Row, Reason: ReasonNoItem, Detail: row.Title})
			continue
		}

		for _, it := range targets {
			dd, err := deduperFor(it.ID)
			if err != nil {
				return rep, err
			}
			target := matcher.Target{
				Title:   it.Title,
				Issue:   it.Issue,
				Year:    it.Year,
				Grade:   it.GradeNumeric,
				Slabbed: it.IsSlabbed(),
			}
			res := im.matcher.Evaluate(target, row.Listing, matcher.EvaluateOptions{
				ItemID:   it.ID,
				Source:   opts.Source,
				MinScore: opts.MinScore,
				Deduper:  dd,
			})
			if !res.Parsed() {
				rep.Rejected = append(rep.Rejected, Rejected{
					Row:    row.Row,
					Reason: string(res.Rejection.Reason),
					Detail: res.Rejection.Detail,
				})
				continue
			}
			comps = append(comps, *res.Comp)
		}
	}

	rep.Parsed = len(comps)
	n, err := im.store.InsertComps(ctx, comps)
	if err != nil {
		return rep, eris.Wrap(err, "ingest: insert comps")
	}
	rep.Written = n
	rep.log("comps")
	return rep, nil
}
