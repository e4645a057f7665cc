package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/campleads/internal/model"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(5)
	minConns := int32(1)
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS search_jobs (
	id           BIGSERIAL PRIMARY KEY,
	wojewodztwo  VARCHAR(100),
	city         VARCHAR(255),
	camp_type    VARCHAR(100) NOT NULL,
	category     VARCHAR(255) NOT NULL,
	method       VARCHAR(20) NOT NULL DEFAULT 'ALL',
	query_notes  TEXT,
	requested_by VARCHAR(255),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS search_job_runs (
	id          BIGSERIAL PRIMARY KEY,
	job_id      BIGINT NOT NULL,
	status      VARCHAR(20) NOT NULL DEFAULT 'RUNNING',
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ,
	logs        TEXT
);

CREATE TABLE IF NOT EXISTS raw_leads (
	id                BIGSERIAL PRIMARY KEY,
	organization_name VARCHAR(255),
	category          VARCHAR(255),
	city              VARCHAR(255),
	phone_raw         VARCHAR(100),
	phone_normalized  VARCHAR(20),
	email             VARCHAR(255),
	website_url       TEXT,
	social_url        TEXT,
	source_method     VARCHAR(50),
	ai_raw_summary    TEXT,
	status            VARCHAR(20) NOT NULL DEFAULT 'NEW',
	verified          BOOLEAN NOT NULL DEFAULT false,
	"group"           VARCHAR(100),
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_raw_leads_phone_normalized ON raw_leads(phone_normalized);
CREATE INDEX IF NOT EXISTS idx_raw_leads_status ON raw_leads(status);
CREATE INDEX IF NOT EXISTS idx_search_job_runs_job_id ON search_job_runs(job_id);
CREATE INDEX IF NOT EXISTS idx_search_job_runs_status ON search_job_runs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job model.SearchJob) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO search_jobs (wojewodztwo, city, camp_type, category, method, query_notes, requested_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		nullable(job.Wojewodztwo), nullable(job.City), job.CampType, job.Category, string(job.Method),
		nullable(job.QueryNotes), nullable(job.RequestedBy), time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert job")
	}
	return id, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id int64) (*model.SearchJob, error) {
	job, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM search_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get job %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %d", id)
	}
	return job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, limit int) ([]model.SearchJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM search_jobs ORDER BY created_at DESC, id DESC LIMIT $1`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.SearchJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs")
}

func (s *PostgresStore) CreateRun(ctx context.Context, jobID int64) (*model.SearchJobRun, error) {
	run := &model.SearchJobRun{
		JobID:     jobID,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO search_job_runs (job_id, status, started_at, logs) VALUES ($1, $2, $3, '') RETURNING id`,
		jobID, string(run.Status), run.StartedAt,
	).Scan(&run.ID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID int64, status model.RunStatus, logs string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE search_job_runs SET status = $1, finished_at = $2, logs = $3 WHERE id = $4`,
		string(status), time.Now().UTC(), logs, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %d", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: finish run %d", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID int64) (*model.SearchJobRun, error) {
	run, err := scanPostgresRun(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM search_job_runs WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %d", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %d", runID)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.SearchJobRun, error) {
	query := `SELECT ` + runColumns + ` FROM search_job_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.JobID > 0 {
		query += fmt.Sprintf(` AND job_id = $%d`, argIdx)
		args = append(args, filter.JobID)
		argIdx++
	}
	query += ` ORDER BY started_at DESC, id DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))
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

	var runs []model.SearchJobRun
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

func scanPostgresRun(row scanner) (*model.SearchJobRun, error) {
	var r model.SearchJobRun
	var status string
	if err := row.Scan(&r.ID, &r.JobID, &status, &r.StartedAt, &r.FinishedAt, &r.Logs); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	return &r, nil
}

func (s *PostgresStore) FindLeadIDByPhone(ctx context.Context, phone string) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM raw_leads WHERE phone_normalized = $1 LIMIT 1`, phone,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrap(err, "postgres: find lead by phone")
	}
	return id, true, nil
}

func (s *PostgresStore) InsertLead(ctx context.Context, lead model.RawLead) (int64, error) {
	status := lead.Status
	if status == "" {
		status = model.LeadStatusNew
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO raw_leads (organization_name, category, city, phone_raw, phone_normalized, email,
			website_url, social_url, source_method, ai_raw_summary, status, verified, "group", created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
		nullable(lead.OrganizationName), nullable(lead.Category), nullable(lead.City),
		nullable(lead.PhoneRaw), lead.PhoneNormalized, nullable(lead.Email),
		nullable(lead.WebsiteURL), nullable(lead.SocialURL), string(lead.SourceMethod),
		nullable(lead.AIRawSummary), string(status), lead.Verified, nullable(lead.Group), time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, eris.Wrapf(ErrDuplicatePhone, "postgres: insert lead %s", lead.PhoneNormalized)
		}
		return 0, eris.Wrap(err, "postgres: insert lead")
	}
	return id, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id int64) (*model.RawLead, error) {
	lead, err := scanLead(s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM raw_leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get lead %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %d", id)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.RawLead, error) {
	query := `SELECT ` + leadColumns + ` FROM raw_leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.SourceMethod != "" {
		query += fmt.Sprintf(` AND source_method = $%d`, argIdx)
		args = append(args, string(filter.SourceMethod))
		argIdx++
	}
	if filter.City != "" {
		query += fmt.Sprintf(` AND city = $%d`, argIdx)
		args = append(args, filter.City)
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.RawLead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads")
}

func (s *PostgresStore) UpdateLeadReview(ctx context.Context, id int64, review model.LeadReview) error {
	set := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf(`%s = $%d`, col, len(args)))
	}

	if review.Category != nil {
		add("category", *review.Category)
	}
	if review.City != nil {
		add("city", *review.City)
	}
	if review.Group != nil {
		add(`"group"`, nullable(*review.Group))
	}
	if review.Verified != nil {
		add("verified", *review.Verified)
	}
	if review.Status != "" {
		add("status", string(review.Status))
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE raw_leads SET %s WHERE id = $%d`, joinComma(set), len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update lead %d", id)
	}
	return nil
}
