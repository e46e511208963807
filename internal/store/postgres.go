package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/gap-analysis/internal/db"
	"github.com/sells-group/gap-analysis/internal/model"
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

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"get_strategy":      `SELECT config FROM strategies WHERE site_id = $1`,
	"insert_run":        `INSERT INTO runs (id, site_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"get_run":           `SELECT id, site_id, status, result, error, created_at, updated_at FROM runs WHERE id = $1`,
	"insert_phase":      `INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
	"complete_phase":    `UPDATE run_phases SET status = $1, result = $2 WHERE id = $3`,
	"append_event":      `INSERT INTO run_events (run_id, seq, phase, status, message, at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"get_cached_page":   `SELECT page FROM page_cache WHERE url = $1 AND expires_at > now()`,
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
CREATE TABLE IF NOT EXISTS strategies (
	site_id    TEXT PRIMARY KEY,
	config     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS own_pages (
	site_id  TEXT NOT NULL,
	url      TEXT NOT NULL,
	title    TEXT NOT NULL DEFAULT '',
	text     TEXT NOT NULL DEFAULT '',
	headings JSONB,
	PRIMARY KEY (site_id, url)
);

CREATE TABLE IF NOT EXISTS performance (
	site_id     TEXT NOT NULL,
	query       TEXT NOT NULL,
	rank        DOUBLE PRECISION NOT NULL DEFAULT 0,
	impressions INTEGER NOT NULL DEFAULT 0,
	clicks      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (site_id, query)
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	site_id    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_events (
	run_id  TEXT NOT NULL,
	seq     INTEGER NOT NULL,
	phase   TEXT NOT NULL,
	status  TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS page_cache (
	url        TEXT PRIMARY KEY,
	page       JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_site_id ON runs(site_id);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
`

var (
	ownPageUpsert = db.UpsertConfig{
		Table:        "own_pages",
		Columns:      []string{"site_id", "url", "title", "text", "headings"},
		ConflictKeys: []string{"site_id", "url"},
	}
	performanceUpsert = db.UpsertConfig{
		Table:        "performance",
		Columns:      []string{"site_id", "query", "rank", "impressions", "clicks"},
		ConflictKeys: []string{"site_id", "query"},
	}
)

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
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

// Strategy and site inputs

func (s *PostgresStore) GetStrategy(ctx context.Context, siteID string) (*model.StrategyConfig, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT config FROM strategies WHERE site_id = $1`, siteID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get strategy %s", siteID)
	}
	var sc model.StrategyConfig
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal strategy")
	}
	return &sc, nil
}

func (s *PostgresStore) PutStrategy(ctx context.Context, sc model.StrategyConfig) error {
	if sc.SiteID == "" {
		return eris.New("postgres: put strategy: site_id is required")
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal strategy")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO strategies (site_id, config, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (site_id) DO UPDATE SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at`,
		sc.SiteID, raw, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put strategy %s", sc.SiteID)
}

func (s *PostgresStore) GetOwnPages(ctx context.Context, siteID string) ([]model.PageRef, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT url, title, text, headings FROM own_pages WHERE site_id = $1 ORDER BY url`,
		siteID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get own pages %s", siteID)
	}
	defer rows.Close()

	var pages []model.PageRef
	for rows.Next() {
		var p model.PageRef
		var headings *[]byte
		if err := rows.Scan(&p.URL, &p.Title, &p.Text, &headings); err != nil {
			return nil, eris.Wrap(err, "postgres: scan own page")
		}
		if headings != nil {
			if err := json.Unmarshal(*headings, &p.Headings); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal headings")
			}
		}
		pages = append(pages, p)
	}
	return pages, eris.Wrap(rows.Err(), "postgres: own pages iterate")
}

func (s *PostgresStore) PutOwnPages(ctx context.Context, siteID string, pages []model.PageRef) (int, error) {
	rows := make([][]any, 0, len(pages))
	for _, p := range pages {
		if p.URL == "" {
			continue
		}
		var headings []byte
		if len(p.Headings) > 0 {
			raw, err := json.Marshal(p.Headings)
			if err != nil {
				return 0, eris.Wrap(err, "postgres: marshal headings")
			}
			headings = raw
		}
		rows = append(rows, []any{siteID, p.URL, p.Title, p.Text, headings})
	}
	n, err := db.BulkUpsert(ctx, s.pool, ownPageUpsert, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: put own pages %s", siteID)
	}
	return int(n), nil
}

func (s *PostgresStore) GetQueries(ctx context.Context, siteID string) ([]model.PerformanceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT query, rank, impressions, clicks FROM performance WHERE site_id = $1 ORDER BY impressions DESC, query`,
		siteID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get queries %s", siteID)
	}
	defer rows.Close()

	var recs []model.PerformanceRecord
	for rows.Next() {
		var r model.PerformanceRecord
		if err := rows.Scan(&r.Query, &r.Rank, &r.Impressions, &r.Clicks); err != nil {
			return nil, eris.Wrap(err, "postgres: scan performance")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: performance iterate")
}

func (s *PostgresStore) PutPerformance(ctx context.Context, siteID string, recs []model.PerformanceRecord) (int, error) {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		if r.Query == "" {
			continue
		}
		rows = append(rows, []any{siteID, r.Query, r.Rank, r.Impressions, r.Clicks})
	}
	n, err := db.BulkUpsert(ctx, s.pool, performanceUpsert, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: put performance %s", siteID)
	}
	return int(n), nil
}

// Runs

func (s *PostgresStore) CreateRun(ctx context.Context, runID, siteID string) (*model.Run, error) {
	if runID == "" {
		runID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, site_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		runID, siteID, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        runID,
		SiteID:    siteID,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("run", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("run", runID)
	}
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, result *model.AnalysisResult) error {
	if result == nil {
		return eris.New("postgres: save result: nil result")
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, updated_at = $2 WHERE id = $3`,
		resultJSON, time.Now().UTC(), result.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save result %s", result.RunID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("run", result.RunID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx,
		`SELECT id, site_id, status, result, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(notFound("run", runID), "postgres: get run")
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, site_id, status, NULL::jsonb, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.SiteID != "" {
		query += fmt.Sprintf(` AND site_id = $%d`, argIdx)
		args = append(args, filter.SiteID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// Phases

func (s *PostgresStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, runID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert phase for run %s", runID)
	}

	return &model.RunPhase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal phase result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE run_phases SET status = $1, result = $2 WHERE id = $3`,
		string(result.Status), resultJSON, phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete phase %s", phaseID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("phase", phaseID)
	}
	return nil
}

func (s *PostgresStore) ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, name, status, result, started_at FROM run_phases WHERE run_id = $1 ORDER BY started_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list phases %s", runID)
	}
	defer rows.Close()

	var phases []model.RunPhase
	for rows.Next() {
		var p model.RunPhase
		var status string
		var resultNull *[]byte
		if err := rows.Scan(&p.ID, &p.RunID, &p.Name, &status, &resultNull, &p.StartedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan phase")
		}
		p.Status = model.PhaseStatus(status)
		if resultNull != nil {
			p.Result = &model.PhaseResult{}
			if err := json.Unmarshal(*resultNull, p.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal phase result")
			}
		}
		phases = append(phases, p)
	}
	return phases, eris.Wrap(rows.Err(), "postgres: list phases iterate")
}

// Progress events

func (s *PostgresStore) AppendEvent(ctx context.Context, ev model.ProgressEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_events (run_id, seq, phase, status, message, at) VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.RunID, ev.Seq, ev.Phase, string(ev.Status), ev.Message, ev.At.UTC(),
	)
	return eris.Wrapf(err, "postgres: append event %s/%d", ev.RunID, ev.Seq)
}

func (s *PostgresStore) ListEvents(ctx context.Context, runID string, afterSeq int) ([]model.ProgressEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, seq, phase, status, message, at FROM run_events WHERE run_id = $1 AND seq > $2 ORDER BY seq`,
		runID, afterSeq,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list events %s", runID)
	}
	defer rows.Close()

	var events []model.ProgressEvent
	for rows.Next() {
		var ev model.ProgressEvent
		var status string
		if err := rows.Scan(&ev.RunID, &ev.Seq, &ev.Phase, &status, &ev.Message, &ev.At); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		ev.Status = model.ProgressStatus(status)
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

// Page cache

func (s *PostgresStore) GetCachedPage(ctx context.Context, url string) (*model.PageText, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT page FROM page_cache WHERE url = $1 AND expires_at > now()`,
		url,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached page")
	}
	var page model.PageText
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached page")
	}
	return &page, nil
}

func (s *PostgresStore) SetCachedPage(ctx context.Context, url string, page model.PageText, ttl time.Duration) error {
	now := time.Now().UTC()
	raw, err := json.Marshal(page)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal page")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO page_cache (url, page, fetched_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (url) DO UPDATE SET page = EXCLUDED.page, fetched_at = EXCLUDED.fetched_at, expires_at = EXCLUDED.expires_at`,
		url, raw, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached page")
}

func (s *PostgresStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM page_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired pages")
	}
	return int(tag.RowsAffected()), nil
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var resultNull *[]byte

	if err := row.Scan(&r.ID, &r.SiteID, &status, &resultNull, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if resultNull != nil {
		r.Result = &model.AnalysisResult{}
		if err := json.Unmarshal(*resultNull, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}
