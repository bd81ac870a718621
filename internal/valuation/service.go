package valuation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fmv-cli/internal/model"
	"github.com/sells-group/fmv-cli/internal/resilience"
	"github.com/sells-group/fmv-cli/internal/store"
)

// Options configures a Service.
type Options struct {
	Limits      Limits
	Concurrency int
	Retry       resilience.RetryConfig
}

// Service prices items against a store.
type Service struct {
	store       store.Store
	limits      Limits
	concurrency int
	retry       resilience.RetryConfig
	now         func() time.Time
}

// NewService creates a Service. Concurrency below 1 runs one item at a time.
func NewService(st store.Store, opts Options) *Service {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Service{
		store:       st,
		limits:      opts.Limits.withDefaults(),
		concurrency: opts.Concurrency,
		retry:       opts.Retry,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Summary counts the outcomes of a batch run.
type Summary struct {
	RunID   string `json:"run_id"`
	Items   int    `json:"items"`
	Valued  int64  `json:"valued"`
	Cleared int64  `json:"cleared"`
	Failed  int64  `json:"failed"`
}

// ValueItem re-prices one item and persists the result under a fresh run id.
func (s *Service) ValueItem(ctx context.Context, itemID int64) (*Outcome, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: load item")
	}
	return s.value(ctx, *item, uuid.NewString())
}

// ValueAll re-prices every item matching filter with bounded concurrency.
// A failing item is logged and counted; it does not stop the batch.
func (s *Service) ValueAll(ctx context.Context, filter store.ItemFilter) (Summary, error) {
	items, err := s.store.ListItems(ctx, filter)
	if err != nil {
		return Summary{}, eris.Wrap(err, "valuation: list items")
	}

	sum := Summary{RunID: uuid.NewString(), Items: len(items)}
	if len(items) == 0 {
		zap.L().Info("no items to value")
		return sum, nil
	}

	zap.L().Info("valuing items",
		zap.String("run_id", sum.RunID),
		zap.Int("items", len(items)),
		zap.Int("concurrency", s.concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var valued, cleared, failed atomic.Int64
	for _, item := range items {
		g.Go(func() error {
			log := zap.L().With(zap.Int64("item_id", item.ID), zap.String("title", item.Title))

			out, err := s.value(gctx, item, sum.RunID)
			if err != nil {
				failed.Add(1)
				log.Error("valuation failed", zap.Error(err))
				return nil
			}
			if out.Valuation == nil {
				cleared.Add(1)
				log.Debug("no sold evidence, valuation cleared")
				return nil
			}
			valued.Add(1)
			log.Debug("item valued",
				zap.Float64("market_price", out.Valuation.MarketPrice),
				zap.String("confidence", string(out.Valuation.Confidence)),
				zap.Int("basis_count", out.Valuation.BasisCount),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return sum, eris.Wrap(err, "valuation: batch")
	}
	if err := ctx.Err(); err != nil {
		return sum, eris.Wrap(err, "valuation: batch")
	}

	sum.Valued, sum.Cleared, sum.Failed = valued.Load(), cleared.Load(), failed.Load()
	zap.L().Info("valuation complete",
		zap.String("run_id", sum.RunID),
		zap.Int64("valued", sum.Valued),
		zap.Int64("cleared", sum.Cleared),
		zap.Int64("failed", sum.Failed),
	)
	return sum, nil
}

func (s *Service) value(ctx context.Context, item model.Item, runID string) (*Outcome, error) {
	sold, err := s.store.ListComps(ctx, item.ID, model.ListingSold)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: load sold comps")
	}
	active, err := s.store.ListComps(ctx, item.ID, model.ListingActive)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: load active comps")
	}

	out := Aggregate(item, sold, active, s.limits)

	retry := s.retry
	retry.OnRetry = resilience.RetryLogger("save_valuation", zap.Int64("item_id", item.ID))

	if out.Valuation == nil {
		err = resilience.Do(ctx, retry, func(ctx context.Context) error {
			return s.store.DeleteValuation(ctx, item.ID)
		})
		return &out, eris.Wrapf(err, "valuation: clear item %d", item.ID)
	}

	out.Valuation.RunID = runID
	out.Valuation.UpdatedAt = s.now()
	err = resilience.Do(ctx, retry, func(ctx context.Context) error {
		return s.store.SaveValuation(ctx, *out.Valuation, out.Evidence)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "valuation: save item %d", item.ID)
	}
	return &out, nil
}

// EvidenceView is everything the presentation layer shows behind a price.
type EvidenceView struct {
	Item        model.Item           `json:"item"`
	Valuation   *model.Valuation     `json:"valuation,omitempty"`
	Sold        []store.EvidenceComp `json:"sold"`
	Active      []model.Comp         `json:"active"`
	SoldCount   int                  `json:"sold_count"`
	ActiveCount int                  `json:"active_count"`
}

// Evidence loads the ranked sold evidence behind an item's stored valuation
// along with its deduplicated live listings.
func (s *Service) Evidence(ctx context.Context, itemID int64) (*EvidenceView, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: load item")
	}
	v, err := s.store.GetValuation(ctx, itemID)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: load valuation")
	}
	links, err := s.store.ListEvidence(ctx, itemID)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: load evidence")
	}

	var sold []store.EvidenceComp
	for _, l := range links {
		if l.Comp.Kind == model.ListingSold {
			sold = append(sold, l)
		}
	}

	active, err := s.store.ListComps(ctx, itemID, model.ListingActive)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: load active comps")
	}
	ranked := ActiveEvidence(active, DefaultActiveEvidence)

	return &EvidenceView{
		Item:        *item,
		Valuation:   v,
		Sold:        sold,
		Active:      ranked,
		SoldCount:   len(sold),
		ActiveCount: len(ranked),
	}, nil
}
