package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fmv-cli/internal/db"
	"github.com/sells-group/fmv-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists the per-item read queries the batch valuation
// and decision paths run once per item.
var preparedStatements = map[string]string{
	"get_item":      `SELECT ` + itemColumns + ` FROM items i WHERE i.id = $1`,
	"list_comps":    `SELECT ` + compColumns + ` FROM comps c WHERE c.item_id = $1 AND c.listing_kind = $2 ORDER BY c.id`,
	"get_valuation": `SELECT ` + valuationColumns + ` FROM valuations v WHERE v.item_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS items (
	id            BIGSERIAL PRIMARY KEY,
	item_key      TEXT NOT NULL UNIQUE,
	external_id   TEXT,
	source_row    INTEGER,
	title         TEXT NOT NULL,
	issue         TEXT,
	issue_sort    INTEGER,
	year          INTEGER,
	grade_numeric DOUBLE PRECISION,
	cert_id       TEXT,
	community_url TEXT,
	qualified     BOOLEAN NOT NULL DEFAULT false,
	status        TEXT NOT NULL DEFAULT 'unlisted',
	sold_price    DOUBLE PRECISION,
	sold_date     TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS comps (
	id            BIGSERIAL PRIMARY KEY,
	item_id       BIGINT NOT NULL REFERENCES items(id),
	source        TEXT NOT NULL,
	listing_kind  TEXT NOT NULL,
	title         TEXT NOT NULL,
	issue         TEXT,
	price         DOUBLE PRECISION NOT NULL,
	shipping      DOUBLE PRECISION NOT NULL DEFAULT 0,
	grade_numeric DOUBLE PRECISION,
	grade_company TEXT,
	is_raw        BOOLEAN NOT NULL DEFAULT false,
	is_signed     BOOLEAN NOT NULL DEFAULT false,
	match_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	sold_date     TEXT,
	url           TEXT,
	raw_payload   JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS valuations (
	item_id                BIGINT PRIMARY KEY REFERENCES items(id),
	universal_market_price DOUBLE PRECISION NOT NULL,
	qualified_market_price DOUBLE PRECISION NOT NULL,
	market_price           DOUBLE PRECISION NOT NULL,
	quick_sale             DOUBLE PRECISION NOT NULL,
	premium_price          DOUBLE PRECISION NOT NULL,
	active_anchor_price    DOUBLE PRECISION,
	active_count           INTEGER NOT NULL DEFAULT 0,
	confidence             TEXT NOT NULL,
	basis_count            INTEGER NOT NULL,
	method                 TEXT NOT NULL,
	run_id                 TEXT,
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS evidence_links (
	item_id     BIGINT NOT NULL REFERENCES items(id),
	comp_id     BIGINT NOT NULL REFERENCES comps(id),
	rank        INTEGER NOT NULL,
	used_in_fmv BOOLEAN NOT NULL DEFAULT true,
	PRIMARY KEY (item_id, comp_id)
);

CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
CREATE INDEX IF NOT EXISTS idx_items_external_id ON items(external_id);
CREATE INDEX IF NOT EXISTS idx_comps_item_kind ON comps(item_id, listing_kind);
CREATE INDEX IF NOT EXISTS idx_evidence_links_rank ON evidence_links(item_id, rank);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func pgPH(n int) string { return fmt.Sprintf("$%d", n) }

var itemUpsertColumns = []string{
	"item_key", "external_id", "source_row", "title", "issue", "issue_sort", "year",
	"grade_numeric", "cert_id", "community_url", "qualified", "status", "sold_price",
	"sold_date", "updated_at",
}

// UpsertItems stages the rows with COPY and merges them on item_key.
func (s *PostgresStore) UpsertItems(ctx context.Context, items []model.Item) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, len(items))
	for i, it := range items {
		row := append([]any{it.Key()}, itemArgs(it)...)
		rows[i] = append(row, now)
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "items",
		Columns:      itemUpsertColumns,
		ConflictKeys: []string{"item_key"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert items")
}

func (s *PostgresStore) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	it, err := scanItem(s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: item %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get item %d", id)
	}
	return it, nil
}

func (s *PostgresStore) ListItems(ctx context.Context, filter ItemFilter) ([]model.Item, error) {
	where, args := itemWhere(filter, pgPH)
	page, args := pageClause(filter, args, pgPH, "")
	query := `SELECT ` + itemColumns + ` FROM items i` + where +
		` ORDER BY lower(i.title), i.issue_sort NULLS FIRST, i.id` + page

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list items")
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan item")
		}
		items = append(items, *it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list items iterate")
}

func (s *PostgresStore) MarkSold(ctx context.Context, match SoldMatch, price float64, soldDate string) (int64, error) {
	query := `UPDATE items SET status = $1, sold_price = $2, sold_date = $3, updated_at = $4`
	args := []any{string(model.ItemStatusSold), price, nullString(soldDate), time.Now().UTC()}

	switch {
	case match.ExternalID != "":
		query += ` WHERE external_id = $5`
		args = append(args, match.ExternalID)
	case match.Title != "" && match.Issue != "":
		query += ` WHERE title = $5 AND issue = $6`
		args = append(args, match.Title, match.Issue)
	default:
		return 0, eris.New("postgres: mark sold: empty match")
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: mark sold")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListTitles(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t FROM (
			SELECT DISTINCT TRIM(title) AS t FROM items
			WHERE status IN ('unlisted', 'drafted')
			  AND sold_price IS NULL
			  AND TRIM(title) <> ''
		) titles
		ORDER BY lower(t), t`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list titles")
	}
	defer rows.Close()
	return scanStrings(rows, "postgres: list titles")
}

var compCopyColumns = []string{
	"item_id", "source", "listing_kind", "title", "issue", "price", "shipping", "grade_numeric",
	"grade_company", "is_raw", "is_signed", "match_score", "sold_date", "url", "raw_payload",
}

// InsertComps appends comps with COPY. Comp IDs are not populated.
func (s *PostgresStore) InsertComps(ctx context.Context, comps []model.Comp) (int64, error) {
	rows := make([][]any, len(comps))
	for i, c := range comps {
		rows[i] = compArgs(c)
	}
	n, err := db.CopyFrom(ctx, s.pool, "comps", compCopyColumns, rows)
	return n, eris.Wrap(err, "postgres: insert comps")
}

func (s *PostgresStore) ListComps(ctx context.Context, itemID int64, kind model.ListingKind) ([]model.Comp, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+compColumns+` FROM comps c WHERE c.item_id = $1 AND c.listing_kind = $2 ORDER BY c.id`,
		itemID, string(kind),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list comps for item %d", itemID)
	}
	defer rows.Close()

	var comps []model.Comp
	for rows.Next() {
		c, err := scanComp(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan comp")
		}
		comps = append(comps, *c)
	}
	return comps, eris.Wrap(rows.Err(), "postgres: list comps iterate")
}

func (s *PostgresStore) SoldPriceHistory(ctx context.Context, itemIDs []int64) (map[int64][]float64, error) {
	out := make(map[int64][]float64)
	if len(itemIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT item_id, price FROM comps
		 WHERE listing_kind = 'sold' AND item_id = ANY($1)
		 ORDER BY item_id, sold_date DESC NULLS LAST, id DESC`,
		itemIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: sold price history")
	}
	defer rows.Close()
	return out, scanPriceHistory(rows, out, "postgres: sold price history")
}

const pgUpsertValuation = `
INSERT INTO valuations (
	item_id, universal_market_price, qualified_market_price, market_price, quick_sale,
	premium_price, active_anchor_price, active_count, confidence, basis_count, method,
	run_id, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (item_id) DO UPDATE SET
	universal_market_price = EXCLUDED.universal_market_price,
	qualified_market_price = EXCLUDED.qualified_market_price,
	market_price = EXCLUDED.market_price,
	quick_sale = EXCLUDED.quick_sale,
	premium_price = EXCLUDED.premium_price,
	active_anchor_price = EXCLUDED.active_anchor_price,
	active_count = EXCLUDED.active_count,
	confidence = EXCLUDED.confidence,
	basis_count = EXCLUDED.basis_count,
	method = EXCLUDED.method,
	run_id = EXCLUDED.run_id,
	updated_at = EXCLUDED.updated_at`

var evidenceCopyColumns = []string{"item_id", "comp_id", "rank", "used_in_fmv"}

func (s *PostgresStore) SaveValuation(ctx context.Context, v model.Valuation, links []model.EvidenceLink) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save valuation")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, pgUpsertValuation, valuationArgs(v)...); err != nil {
		return eris.Wrapf(err, "postgres: upsert valuation %d", v.ItemID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM evidence_links WHERE item_id = $1`, v.ItemID); err != nil {
		return eris.Wrapf(err, "postgres: clear evidence %d", v.ItemID)
	}

	// COPY has no ON CONFLICT; keep the first link per comp.
	seen := make(map[int64]bool, len(links))
	rows := make([][]any, 0, len(links))
	for _, l := range links {
		if seen[l.CompID] {
			continue
		}
		seen[l.CompID] = true
		rows = append(rows, []any{v.ItemID, l.CompID, l.Rank, l.UsedInFMV})
	}
	if _, err := db.CopyFrom(ctx, tx, "evidence_links", evidenceCopyColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: insert evidence %d", v.ItemID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit save valuation")
}

func (s *PostgresStore) DeleteValuation(ctx context.Context, itemID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin delete valuation")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM evidence_links WHERE item_id = $1`, itemID); err != nil {
		return eris.Wrapf(err, "postgres: delete evidence %d", itemID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM valuations WHERE item_id = $1`, itemID); err != nil {
		return eris.Wrapf(err, "postgres: delete valuation %d", itemID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit delete valuation")
}

func (s *PostgresStore) GetValuation(ctx context.Context, itemID int64) (*model.Valuation, error) {
	v, err := scanValuation(s.pool.QueryRow(ctx,
		`SELECT `+valuationColumns+` FROM valuations v WHERE v.item_id = $1`, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get valuation %d", itemID)
	}
	return v, nil
}

func (s *PostgresStore) ListItemValuations(ctx context.Context, filter ItemFilter) ([]model.ItemValuation, error) {
	where, args := itemWhere(filter, pgPH)
	page, args := pageClause(filter, args, pgPH, "")
	query := `SELECT ` + itemColumns + `, ` + valuationColumns + `
		FROM items i LEFT JOIN valuations v ON v.item_id = i.id` + where +
		` ORDER BY lower(i.title), i.issue_sort NULLS FIRST, i.id` + page

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list item valuations")
	}
	defer rows.Close()

	var out []model.ItemValuation
	for rows.Next() {
		iv, err := scanItemValuation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan item valuation")
		}
		out = append(out, *iv)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list item valuations iterate")
}

func (s *PostgresStore) ListEvidence(ctx context.Context, itemID int64) ([]EvidenceComp, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.item_id, e.comp_id, e.rank, e.used_in_fmv, `+compColumns+`
		 FROM evidence_links e JOIN comps c ON c.id = e.comp_id
		 WHERE e.item_id = $1
		 ORDER BY e.rank`,
		itemID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list evidence %d", itemID)
	}
	defer rows.Close()
	return scanEvidence(rows, "postgres")
}
