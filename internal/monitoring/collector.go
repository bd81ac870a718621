// Package monitoring watches valuation health: how much of the unsold
// inventory is priced, how fresh the prices are and how much of it rests on
// thin evidence.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fmv-cli/internal/model"
	"github.com/sells-group/fmv-cli/internal/store"
)

// Snapshot is a point-in-time view of valuation coverage.
type Snapshot struct {
	UnsoldItems       int                      `json:"unsold_items"`
	Valued            int                      `json:"valued"`
	Unvalued          int                      `json:"unvalued"`
	Coverage          float64                  `json:"coverage"` // valued / unsold
	Stale             int                      `json:"stale"`
	LowConfidence     int                      `json:"low_confidence"`
	LowConfidenceRate float64                  `json:"low_confidence_rate"` // low / valued
	ByGradeClass      map[model.GradeClass]int `json:"by_grade_class"`
	MarketTotal       float64                  `json:"market_total"`

	LatestRunID string     `json:"latest_run_id,omitempty"`
	LatestRunAt *time.Time `json:"latest_run_at,omitempty"`

	StaleAfterHours int       `json:"stale_after_hours"`
	CollectedAt     time.Time `json:"collected_at"`
}

// Collector gathers snapshots from the store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// Collect summarizes the unsold inventory. Valuations last written more than
// staleAfterHours ago count as stale; zero disables the staleness check.
func (c *Collector) Collect(ctx context.Context, staleAfterHours int) (*Snapshot, error) {
	now := c.now()
	snap := &Snapshot{
		ByGradeClass:    make(map[model.GradeClass]int),
		StaleAfterHours: staleAfterHours,
		CollectedAt:     now,
	}

	rows, err := c.store.ListItemValuations(ctx, store.ItemFilter{Unsold: true})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list item valuations")
	}

	cutoff := now.Add(-time.Duration(staleAfterHours) * time.Hour)
	for _, r := range rows {
		snap.UnsoldItems++
		snap.ByGradeClass[r.Item.GradeClass()]++

		v := r.Valuation
		if v == nil {
			snap.Unvalued++
			continue
		}
		snap.Valued++
		snap.MarketTotal += v.MarketPrice
		if v.Confidence == model.ConfidenceLow {
			snap.LowConfidence++
		}
		if staleAfterHours > 0 && v.UpdatedAt.Before(cutoff) {
			snap.Stale++
		}
		if snap.LatestRunAt == nil || v.UpdatedAt.After(*snap.LatestRunAt) {
			at := v.UpdatedAt
			snap.LatestRunAt = &at
			snap.LatestRunID = v.RunID
		}
	}

	if snap.UnsoldItems > 0 {
		snap.Coverage = float64(snap.Valued) / float64(snap.UnsoldItems)
	}
	if snap.Valued > 0 {
		snap.LowConfidenceRate = float64(snap.LowConfidence) / float64(snap.Valued)
	}
	return snap, nil
}
