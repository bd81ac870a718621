package decision

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fmv-cli/internal/model"
	"github.com/sells-group/fmv-cli/internal/store"
)

// Sort orders for the queue.
const (
	SortPriority = "priority"
	SortFMVDesc  = "fmv_desc"
)

// Queue size limits.
const (
	DefaultQueueLimit = 300
	MaxQueueLimit     = 1000
)

var actionPriority = map[Action]int{
	ActionListNowSlabbed:    1,
	ActionSlabCandidate:     2,
	ActionSellRawNow:        3,
	ActionGetCommunityGrade: 4,
	ActionNeedsComps:        5,
}

func priorityOf(a Action) int {
	if p, ok := actionPriority[a]; ok {
		return p
	}
	return 99
}

// QueueOptions filters, orders and pages the decision queue.
type QueueOptions struct {
	Action       Action             `json:"action,omitempty"`
	GradeClasses []model.GradeClass `json:"grade_classes,omitempty"`
	MinMarket    float64            `json:"min_market,omitempty"`
	SortBy       string             `json:"sort_by,omitempty"`
	Limit        int                `json:"limit,omitempty"`
	Offset       int                `json:"offset,omitempty"`
}

// ParseGradeClasses splits a comma-separated class list, dropping blanks.
func ParseGradeClasses(s string) []model.GradeClass {
	var out []model.GradeClass
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, model.GradeClass(p))
		}
	}
	return out
}

func (o QueueOptions) limit() int {
	switch {
	case o.Limit <= 0:
		return DefaultQueueLimit
	case o.Limit > MaxQueueLimit:
		return MaxQueueLimit
	default:
		return o.Limit
	}
}

func marketOf(d Decision) float64 {
	if d.MarketPrice == nil {
		return 0
	}
	return *d.MarketPrice
}

// Queue filters and ranks decisions. By default items are grouped by action
// priority with higher market price first inside a group; SortFMVDesc makes
// price the primary key. The input slice is not modified.
func Queue(decisions []Decision, opts QueueOptions) []Decision {
	classes := make(map[model.GradeClass]bool, len(opts.GradeClasses))
	for _, c := range opts.GradeClasses {
		classes[c] = true
	}

	out := make([]Decision, 0, len(decisions))
	for _, d := range decisions {
		if opts.Action != "" && d.Action != opts.Action {
			continue
		}
		if len(classes) > 0 && !classes[d.GradeClass] {
			continue
		}
		if marketOf(d) < opts.MinMarket {
			continue
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priorityOf(out[i].Action), priorityOf(out[j].Action)
		mi, mj := marketOf(out[i]), marketOf(out[j])
		if opts.SortBy == SortFMVDesc {
			if mi != mj {
				return mi > mj
			}
			return pi < pj
		}
		if pi != pj {
			return pi < pj
		}
		return mi > mj
	})

	if opts.Offset >= len(out) {
		return []Decision{}
	}
	out = out[max(opts.Offset, 0):]
	if n := opts.limit(); len(out) > n {
		out = out[:n]
	}
	return out
}

// Build decides every row and attaches its price trend from history
// (sold prices per item, newest first).
func Build(rows []model.ItemValuation, history map[int64][]float64, a Assumptions) []Decision {
	out := make([]Decision, len(rows))
	for i, r := range rows {
		d := Decide(r.Item, r.Valuation, a)
		d.Trend, d.TrendPct = Trend(history[r.Item.ID])
		out[i] = d
	}
	return out
}

// LoadQueue reads every unsold item with its valuation and sold history
// from st and returns the ranked queue.
func LoadQueue(ctx context.Context, st store.Store, a Assumptions, opts QueueOptions) ([]Decision, error) {
	rows, err := st.ListItemValuations(ctx, store.ItemFilter{Unsold: true})
	if err != nil {
		return nil, eris.Wrap(err, "decision: load items")
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.Item.ID
	}
	history, err := st.SoldPriceHistory(ctx, ids)
	if err != nil {
		return nil, eris.Wrap(err, "decision: load sold history")
	}

	return Queue(Build(rows, history, a), opts), nil
}
