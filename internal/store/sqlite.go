package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/gap-analysis/internal/model"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS strategies (
	site_id    TEXT PRIMARY KEY,
	config     TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS own_pages (
	site_id  TEXT NOT NULL,
	url      TEXT NOT NULL,
	title    TEXT NOT NULL DEFAULT '',
	text     TEXT NOT NULL DEFAULT '',
	headings TEXT,
	PRIMARY KEY (site_id, url)
);

CREATE TABLE IF NOT EXISTS performance (
	site_id     TEXT NOT NULL,
	query       TEXT NOT NULL,
	rank        REAL NOT NULL DEFAULT 0,
	impressions INTEGER NOT NULL DEFAULT 0,
	clicks      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (site_id, query)
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	site_id    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	started_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_events (
	run_id  TEXT NOT NULL,
	seq     INTEGER NOT NULL,
	phase   TEXT NOT NULL,
	status  TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	at      DATETIME NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS page_cache (
	url        TEXT PRIMARY KEY,
	page       TEXT NOT NULL,
	fetched_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_site_id ON runs(site_id);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Strategy and site inputs

func (s *SQLiteStore) GetStrategy(ctx context.Context, siteID string) (*model.StrategyConfig, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT config FROM strategies WHERE site_id = ?`, siteID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get strategy %s", siteID)
	}
	var sc model.StrategyConfig
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal strategy")
	}
	return &sc, nil
}

func (s *SQLiteStore) PutStrategy(ctx context.Context, sc model.StrategyConfig) error {
	if sc.SiteID == "" {
		return eris.New("sqlite: put strategy: site_id is required")
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal strategy")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO strategies (site_id, config, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(site_id) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		sc.SiteID, string(raw), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put strategy %s", sc.SiteID)
}

func (s *SQLiteStore) GetOwnPages(ctx context.Context, siteID string) ([]model.PageRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, title, text, headings FROM own_pages WHERE site_id = ? ORDER BY url`,
		siteID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get own pages %s", siteID)
	}
	defer rows.Close() //nolint:errcheck

	var pages []model.PageRef
	for rows.Next() {
		var p model.PageRef
		var headings sql.NullString
		if err := rows.Scan(&p.URL, &p.Title, &p.Text, &headings); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan own page")
		}
		if headings.Valid && headings.String != "" {
			if err := json.Unmarshal([]byte(headings.String), &p.Headings); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal headings")
			}
		}
		pages = append(pages, p)
	}
	return pages, eris.Wrap(rows.Err(), "sqlite: own pages iterate")
}

func (s *SQLiteStore) PutOwnPages(ctx context.Context, siteID string, pages []model.PageRef) (int, error) {
	n := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO own_pages (site_id, url, title, text, headings) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(site_id, url) DO UPDATE SET
			   title = excluded.title, text = excluded.text, headings = excluded.headings`,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare own page upsert")
		}
		defer stmt.Close() //nolint:errcheck

		for _, p := range pages {
			if p.URL == "" {
				continue
			}
			headings, err := marshalHeadings(p.Headings)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, siteID, p.URL, p.Title, p.Text, headings); err != nil {
				return eris.Wrapf(err, "sqlite: upsert own page %s", p.URL)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) GetQueries(ctx context.Context, siteID string) ([]model.PerformanceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT query, rank, impressions, clicks FROM performance WHERE site_id = ? ORDER BY impressions DESC, query`,
		siteID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get queries %s", siteID)
	}
	defer rows.Close() //nolint:errcheck

	var recs []model.PerformanceRecord
	for rows.Next() {
		var r model.PerformanceRecord
		if err := rows.Scan(&r.Query, &r.Rank, &r.Impressions, &r.Clicks); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan performance")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: performance iterate")
}

func (s *SQLiteStore) PutPerformance(ctx context.Context, siteID string, recs []model.PerformanceRecord) (int, error) {
	n := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO performance (site_id, query, rank, impressions, clicks) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(site_id, query) DO UPDATE SET
			   rank = excluded.rank, impressions = excluded.impressions, clicks = excluded.clicks`,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare performance upsert")
		}
		defer stmt.Close() //nolint:errcheck

		for _, r := range recs {
			if r.Query == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, siteID, r.Query, r.Rank, r.Impressions, r.Clicks); err != nil {
				return eris.Wrapf(err, "sqlite: upsert performance %q", r.Query)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Runs

func (s *SQLiteStore) CreateRun(ctx context.Context, runID, siteID string) (*model.Run, error) {
	if runID == "" {
		runID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, site_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, siteID, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        runID,
		SiteID:    siteID,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) SaveResult(ctx context.Context, result *model.AnalysisResult) error {
	if result == nil {
		return eris.New("sqlite: save result: nil result")
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), time.Now().UTC(), result.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save result %s", result.RunID)
	}
	return checkRowsAffected(res, "run", result.RunID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, site_id, status, result, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("run", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, site_id, status, NULL, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SiteID != "" {
		query += ` AND site_id = ?`
		args = append(args, filter.SiteID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// Phases

func (s *SQLiteStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert phase for run %s", runID)
	}

	return &model.RunPhase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal phase result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE run_phases SET status = ?, result = ? WHERE id = ?`,
		string(result.Status), string(resultJSON), phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete phase %s", phaseID)
	}
	return checkRowsAffected(res, "phase", phaseID)
}

func (s *SQLiteStore) ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, name, status, result, started_at FROM run_phases WHERE run_id = ? ORDER BY started_at, rowid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list phases %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var phases []model.RunPhase
	for rows.Next() {
		var p model.RunPhase
		var resultJSON sql.NullString
		if err := rows.Scan(&p.ID, &p.RunID, &p.Name, &p.Status, &resultJSON, &p.StartedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan phase")
		}
		if resultJSON.Valid {
			p.Result = &model.PhaseResult{}
			if err := json.Unmarshal([]byte(resultJSON.String), p.Result); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal phase result")
			}
		}
		phases = append(phases, p)
	}
	return phases, eris.Wrap(rows.Err(), "sqlite: list phases iterate")
}

// Progress events

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev model.ProgressEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_events (run_id, seq, phase, status, message, at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.Seq, ev.Phase, string(ev.Status), ev.Message, ev.At.UTC(),
	)
	return eris.Wrapf(err, "sqlite: append event %s/%d", ev.RunID, ev.Seq)
}

func (s *SQLiteStore) ListEvents(ctx context.Context, runID string, afterSeq int) ([]model.ProgressEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, phase, status, message, at FROM run_events WHERE run_id = ? AND seq > ? ORDER BY seq`,
		runID, afterSeq,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list events %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var events []model.ProgressEvent
	for rows.Next() {
		var ev model.ProgressEvent
		if err := rows.Scan(&ev.RunID, &ev.Seq, &ev.Phase, &ev.Status, &ev.Message, &ev.At); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

// Page cache

func (s *SQLiteStore) GetCachedPage(ctx context.Context, url string) (*model.PageText, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT page FROM page_cache WHERE url = ? AND expires_at > ?`,
		url, time.Now().UTC(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached page")
	}
	var page model.PageText
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached page")
	}
	return &page, nil
}

func (s *SQLiteStore) SetCachedPage(ctx context.Context, url string, page model.PageText, ttl time.Duration) error {
	now := time.Now().UTC()
	raw, err := json.Marshal(page)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal page")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO page_cache (url, page, fetched_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET page = excluded.page, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		url, string(raw), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached page")
}

func (s *SQLiteStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM page_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired pages")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func marshalHeadings(h []model.Heading) (any, error) {
	if len(h) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(h)
	if err != nil {
		return nil, eris.Wrap(err, "marshal headings")
	}
	return string(raw), nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.SiteID, &r.Status, &resultJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if resultJSON.Valid {
		r.Result = &model.AnalysisResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
