// Package store persists inventory items, marketplace comps, valuations and
// their evidence links. SQLite is the embedded default; Postgres serves
// shared deployments.
package store

import (
	"context"
	"errors"

	"github.com/sells-group/fmv-cli/internal/model"
)

// ErrNotFound is returned (wrapped) when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ItemFilter specifies criteria for listing items.
type ItemFilter struct {
	ItemID   int64              `json:"item_id,omitempty"`
	Statuses []model.ItemStatus `json:"statuses,omitempty"`
	// Unsold restricts to unlisted or drafted items without a sold price.
	Unsold bool `json:"unsold,omitempty"`
	Limit  int  `json:"limit,omitempty"` // 0 = no limit
	Offset int  `json:"offset,omitempty"`
}

// SoldMatch selects the items a sale applies to: by catalog id when set,
// otherwise by exact title and issue.
type SoldMatch struct {
	ExternalID string `json:"external_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Issue      string `json:"issue,omitempty"`
}

// EvidenceComp is an evidence link joined with its comp.
type EvidenceComp struct {
	Link model.EvidenceLink `json:"link"`
	Comp model.Comp         `json:"comp"`
}

// Store defines the persistence interface.
type Store interface {
	// Items
	UpsertItems(ctx context.Context, items []model.Item) (int64, error)
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]model.Item, error)
	MarkSold(ctx context.Context, match SoldMatch, price float64, soldDate string) (int64, error)
	ListTitles(ctx context.Context) ([]string, error)

	// Comps (append-only)
	InsertComps(ctx context.Context, comps []model.Comp) (int64, error)
	ListComps(ctx context.Context, itemID int64, kind model.ListingKind) ([]model.Comp, error)
	// SoldPriceHistory returns sold comp prices per item, newest sale first.
	// Undated comps follow dated ones in reverse insert order.
	SoldPriceHistory(ctx context.Context, itemIDs []int64) (map[int64][]float64, error)

	// Valuations. SaveValuation replaces the item's valuation and evidence in
	// one transaction; DeleteValuation removes both.
	SaveValuation(ctx context.Context, v model.Valuation, links []model.EvidenceLink) error
	DeleteValuation(ctx context.Context, itemID int64) error
	GetValuation(ctx context.Context, itemID int64) (*model.Valuation, error)
	ListItemValuations(ctx context.Context, filter ItemFilter) ([]model.ItemValuation, error)
	ListEvidence(ctx context.Context, itemID int64) ([]EvidenceComp, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// unsoldStatuses are the statuses eligible for the decision queue.
var unsoldStatuses = []model.ItemStatus{model.ItemStatusUnlisted, model.ItemStatusDrafted}

func statusStrings(statuses []model.ItemStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// itemWhere renders the WHERE clause for filter. ph renders the n-th (1-based)
// bind placeholder for the dialect.
func itemWhere(filter ItemFilter, ph func(n int) string) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return ph(len(args))
	}

	if filter.ItemID > 0 {
		where += " AND i.id = " + bind(filter.ItemID)
	}
	statuses := filter.Statuses
	if filter.Unsold {
		statuses = unsoldStatuses
		where += " AND i.sold_price IS NULL"
	}
	if len(statuses) > 0 {
		where += " AND i.status IN ("
		for n, s := range statusStrings(statuses) {
			if n > 0 {
				where += ", "
			}
			where += bind(s)
		}
		where += ")"
	}
	return where, args
}

// pageClause appends LIMIT/OFFSET. unbounded is the dialect's LIMIT clause
// for "no limit" when only an offset is given.
func pageClause(filter ItemFilter, args []any, ph func(n int) string, unbounded string) (string, []any) {
	clause := ""
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		clause += " LIMIT " + ph(len(args))
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			clause += unbounded
		}
		args = append(args, filter.Offset)
		clause += " OFFSET " + ph(len(args))
	}
	return clause, args
}
