package main

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fmv-cli/internal/decision"
	"github.com/sells-group/fmv-cli/internal/matcher"
	"github.com/sells-group/fmv-cli/internal/resilience"
	"github.com/sells-group/fmv-cli/internal/store"
	"github.com/sells-group/fmv-cli/internal/valuation"
)

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "fmv.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// initMatcher builds a matcher from the configured vocabulary file, or the
// built-in vocabulary when none is set.
func initMatcher() (*matcher.Matcher, error) {
	vocab := matcher.DefaultVocabulary()
	if p := cfg.Matcher.VocabularyPath; p != "" {
		v, err := matcher.LoadVocabulary(p)
		if err != nil {
			return nil, err
		}
		vocab = v
	}
	idx, err := matcher.NewSeriesIndex(vocab)
	if err != nil {
		return nil, eris.Wrap(err, "build series index")
	}
	return matcher.New(idx, cfg.Matcher.ColocationWindow), nil
}

func newValuationService(st store.Store, concurrency int) *valuation.Service {
	if concurrency <= 0 {
		concurrency = cfg.Batch.MaxConcurrentItems
	}
	return valuation.NewService(st, valuation.Options{
		Limits: valuation.Limits{
			MaxSold:   cfg.Valuation.MaxSold,
			MaxActive: cfg.Valuation.MaxActive,
		},
		Concurrency: concurrency,
		Retry: resilience.FromRetryConfig(
			cfg.Retry.MaxAttempts,
			cfg.Retry.InitialBackoffMs,
			cfg.Retry.MaxBackoffMs,
		),
	})
}

func configAssumptions() decision.Assumptions {
	return decision.Assumptions(cfg.Assumptions)
}

func parseItemID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, eris.Errorf("invalid item id %q", s)
	}
	return id, nil
}
