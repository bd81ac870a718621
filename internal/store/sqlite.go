package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fmv-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS items (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	item_key      TEXT NOT NULL UNIQUE,
	external_id   TEXT,
	source_row    INTEGER,
	title         TEXT NOT NULL,
	issue         TEXT,
	issue_sort    INTEGER,
	year          INTEGER,
	grade_numeric REAL,
	cert_id       TEXT,
	community_url TEXT,
	qualified     INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'unlisted',
	sold_price    REAL,
	sold_date     TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS comps (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id       INTEGER NOT NULL REFERENCES items(id),
	source        TEXT NOT NULL,
	listing_kind  TEXT NOT NULL,
	title         TEXT NOT NULL,
	issue         TEXT,
	price         REAL NOT NULL,
	shipping      REAL NOT NULL DEFAULT 0,
	grade_numeric REAL,
	grade_company TEXT,
	is_raw        INTEGER NOT NULL DEFAULT 0,
	is_signed     INTEGER NOT NULL DEFAULT 0,
	match_score   REAL NOT NULL DEFAULT 0,
	sold_date     TEXT,
	url           TEXT,
	raw_payload   TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS valuations (
	item_id                INTEGER PRIMARY KEY REFERENCES items(id),
	universal_market_price REAL NOT NULL,
	qualified_market_price REAL NOT NULL,
	market_price           REAL NOT NULL,
	quick_sale             REAL NOT NULL,
	premium_price          REAL NOT NULL,
	active_anchor_price    REAL,
	active_count           INTEGER NOT NULL DEFAULT 0,
	confidence             TEXT NOT NULL,
	basis_count            INTEGER NOT NULL,
	method                 TEXT NOT NULL,
	run_id                 TEXT,
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS evidence_links (
	item_id     INTEGER NOT NULL REFERENCES items(id),
	comp_id     INTEGER NOT NULL REFERENCES comps(id),
	rank        INTEGER NOT NULL,
	used_in_fmv INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (item_id, comp_id)
);

CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
CREATE INDEX IF NOT EXISTS idx_items_external_id ON items(external_id);
CREATE INDEX IF NOT EXISTS idx_comps_item_kind ON comps(item_id, listing_kind);
CREATE INDEX IF NOT EXISTS idx_evidence_links_rank ON evidence_links(item_id, rank);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqlitePH(int) string { return "?" }

const sqliteUpsertItem = `
INSERT INTO items (
	item_key, external_id, source_row, title, issue, issue_sort, year, grade_numeric,
	cert_id, community_url, qualified, status, sold_price, sold_date, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(item_key) DO UPDATE SET
	external_id = excluded.external_id,
	source_row = excluded.source_row,
	title = excluded.title,
	issue = excluded.issue,
	issue_sort = excluded.issue_sort,
	year = excluded.year,
	grade_numeric = excluded.grade_numeric,
	cert_id = excluded.cert_id,
	community_url = excluded.community_url,
	qualified = excluded.qualified,
	status = excluded.status,
	sold_price = excluded.sold_price,
	sold_date = excluded.sold_date,
	updated_at = excluded.updated_at`

func (s *SQLiteStore) UpsertItems(ctx context.Context, items []model.Item) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert items")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertItem)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert item")
	}
	defer stmt.Close()

	var n int64
	for _, it := range items {
		args := append([]any{it.Key()}, itemArgs(it)...)
		args = append(args, now, now)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert item %q", it.Title)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert items")
	}
	return n, nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = ?`, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: item %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get item %d", id)
	}
	return it, nil
}

func (s *SQLiteStore) ListItems(ctx context.Context, filter ItemFilter) ([]model.Item, error) {
	where, args := itemWhere(filter, sqlitePH)
	page, args := pageClause(filter, args, sqlitePH, " LIMIT -1")
	query := `SELECT ` + itemColumns + ` FROM items i` + where +
		` ORDER BY i.title COLLATE NOCASE, i.issue_sort, i.id` + page

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list items")
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan item")
		}
		items = append(items, *it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list items iterate")
}

func (s *SQLiteStore) MarkSold(ctx context.Context, match SoldMatch, price float64, soldDate string) (int64, error) {
	query := `UPDATE items SET status = ?, sold_price = ?, sold_date = ?, updated_at = ?`
	args := []any{string(model.ItemStatusSold), price, nullString(soldDate), time.Now().UTC()}

	switch {
	case match.ExternalID != "":
		query += ` WHERE external_id = ?`
		args = append(args, match.ExternalID)
	case match.Title != "" && match.Issue != "":
		query += ` WHERE title = ? AND issue = ?`
		args = append(args, match.Title, match.Issue)
	default:
		return 0, eris.New("sqlite: mark sold: empty match")
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: mark sold")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) ListTitles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT TRIM(title) AS t FROM items
		WHERE status IN ('unlisted', 'drafted')
		  AND sold_price IS NULL
		  AND TRIM(title) <> ''
		ORDER BY t COLLATE NOCASE ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list titles")
	}
	defer rows.Close()
	return scanStrings(rows, "sqlite: list titles")
}

const sqliteInsertComp = `
INSERT INTO comps (
	item_id, source, listing_kind, title, issue, price, shipping, grade_numeric,
	grade_company, is_raw, is_signed, match_score, sold_date, url, raw_payload
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertComps appends comps in one transaction and sets their IDs.
func (s *SQLiteStore) InsertComps(ctx context.Context, comps []model.Comp) (int64, error) {
	if len(comps) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert comps")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsertComp)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert comp")
	}
	defer stmt.Close()

	for i := range comps {
		res, err := stmt.ExecContext(ctx, compArgs(comps[i])...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert comp for item %d", comps[i].ItemID)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: comp id")
		}
		comps[i].ID = id
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert comps")
	}
	return int64(len(comps)), nil
}

func (s *SQLiteStore) ListComps(ctx context.Context, itemID int64, kind model.ListingKind) ([]model.Comp, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+compColumns+` FROM comps c WHERE c.item_id = ? AND c.listing_kind = ? ORDER BY c.id`,
		itemID, string(kind),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list comps for item %d", itemID)
	}
	defer rows.Close()

	var comps []model.Comp
	for rows.Next() {
		c, err := scanComp(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan comp")
		}
		comps = append(comps, *c)
	}
	return comps, eris.Wrap(rows.Err(), "sqlite: list comps iterate")
}

func (s *SQLiteStore) SoldPriceHistory(ctx context.Context, itemIDs []int64) (map[int64][]float64, error) {
	out := make(map[int64][]float64)
	if len(itemIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(itemIDs))
	for i, id := range itemIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(itemIDs)), ",")

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, price FROM comps
		 WHERE listing_kind = 'sold' AND item_id IN (`+placeholders+`)
		 ORDER BY item_id, sold_date DESC NULLS LAST, id DESC`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: sold price history")
	}
	defer rows.Close()
	return out, scanPriceHistory(rows, out, "sqlite: sold price history")
}

const sqliteUpsertValuation = `
INSERT INTO valuations (
	item_id, universal_market_price, qualified_market_price, market_price, quick_sale,
	premium_price, active_anchor_price, active_count, confidence, basis_count, method,
	run_id, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(item_id) DO UPDATE SET
	universal_market_price = excluded.universal_market_price,
	qualified_market_price = excluded.qualified_market_price,
	market_price = excluded.market_price,
	quick_sale = excluded.quick_sale,
	premium_price = excluded.premium_price,
	active_anchor_price = excluded.active_anchor_price,
	active_count = excluded.active_count,
	confidence = excluded.confidence,
	basis_count = excluded.basis_count,
	method = excluded.method,
	run_id = excluded.run_id,
	updated_at = excluded.updated_at`

func (s *SQLiteStore) SaveValuation(ctx context.Context, v model.Valuation, links []model.EvidenceLink) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save valuation")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, sqliteUpsertValuation, valuationArgs(v)...); err != nil {
		return eris.Wrapf(err, "sqlite: upsert valuation %d", v.ItemID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM evidence_links WHERE item_id = ?`, v.ItemID); err != nil {
		return eris.Wrapf(err, "sqlite: clear evidence %d", v.ItemID)
	}

	if len(links) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR IGNORE INTO evidence_links (item_id, comp_id, rank, used_in_fmv) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare evidence insert")
		}
		defer stmt.Close()
		for _, l := range links {
			if _, err := stmt.ExecContext(ctx, v.ItemID, l.CompID, l.Rank, l.UsedInFMV); err != nil {
				return eris.Wrapf(err, "sqlite: insert evidence %d/%d", v.ItemID, l.CompID)
			}
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save valuation")
}

func (s *SQLiteStore) DeleteValuation(ctx context.Context, itemID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin delete valuation")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM evidence_links WHERE item_id = ?`, itemID); err != nil {
		return eris.Wrapf(err, "sqlite: delete evidence %d", itemID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM valuations WHERE item_id = ?`, itemID); err != nil {
		return eris.Wrapf(err, "sqlite: delete valuation %d", itemID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete valuation")
}

func (s *SQLiteStore) GetValuation(ctx context.Context, itemID int64) (*model.Valuation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+valuationColumns+` FROM valuations v WHERE v.item_id = ?`, itemID)
	v, err := scanValuation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get valuation %d", itemID)
	}
	return v, nil
}

func (s *SQLiteStore) ListItemValuations(ctx context.Context, filter ItemFilter) ([]model.ItemValuation, error) {
	where, args := itemWhere(filter, sqlitePH)
	page, args := pageClause(filter, args, sqlitePH, " LIMIT -1")
	query := `SELECT ` + itemColumns + `, ` + valuationColumns + `
		FROM items i LEFT JOIN valuations v ON v.item_id = i.id` + where +
		` ORDER BY i.title COLLATE NOCASE, i.issue_sort, i.id` + page

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list item valuations")
	}
	defer rows.Close()

	var out []model.ItemValuation
	for rows.Next() {
		iv, err := scanItemValuation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan item valuation")
		}
		out = append(out, *iv)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list item valuations iterate")
}

func (s *SQLiteStore) ListEvidence(ctx context.Context, itemID int64) ([]EvidenceComp, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.item_id, e.comp_id, e.rank, e.used_in_fmv, `+compColumns+`
		 FROM evidence_links e JOIN comps c ON c.id = e.comp_id
		 WHERE e.item_id = ?
		 ORDER BY e.rank`,
		itemID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list evidence %d", itemID)
	}
	defer rows.Close()
	return scanEvidence(rows, "sqlite")
}
