package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/campleads/internal/model"
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
	// Pragmas are per connection and SQLite has a single writer.
	db.SetMaxOpenConns(1)
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
CREATE TABLE IF NOT EXISTS search_jobs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	wojewodztwo  TEXT,
	city         TEXT,
	camp_type    TEXT NOT NULL,
	category     TEXT NOT NULL,
	method       TEXT NOT NULL DEFAULT 'ALL',
	query_notes  TEXT,
	requested_by TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS search_job_runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id      INTEGER NOT NULL,
	status      TEXT NOT NULL DEFAULT 'RUNNING',
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME,
	logs        TEXT
);

CREATE TABLE IF NOT EXISTS raw_leads (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	organization_name TEXT,
	category          TEXT,
	city              TEXT,
	phone_raw         TEXT,
	phone_normalized  TEXT,
	email             TEXT,
	website_url       TEXT,
	social_url        TEXT,
	source_method     TEXT,
	ai_raw_summary    TEXT,
	status            TEXT NOT NULL DEFAULT 'NEW',
	verified          BOOLEAN NOT NULL DEFAULT 0,
	"group"           TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_raw_leads_phone_normalized ON raw_leads(phone_normalized);
CREATE INDEX IF NOT EXISTS idx_raw_leads_status ON raw_leads(status);
CREATE INDEX IF NOT EXISTS idx_search_job_runs_job_id ON search_job_runs(job_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job model.SearchJob) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO search_jobs (wojewodztwo, city, camp_type, category, method, query_notes, requested_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullable(job.Wojewodztwo), nullable(job.City), job.CampType, job.Category, string(job.Method),
		nullable(job.QueryNotes), nullable(job.RequestedBy), time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert job")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: insert job id")
}

func (s *SQLiteStore) GetJob(ctx context.Context, id int64) (*model.SearchJob, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM search_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get job %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %d", id)
	}
	return job, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, limit int) ([]model.SearchJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM search_jobs ORDER BY created_at DESC, id DESC LIMIT ?`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close() //nolint:errcheck

	var jobs []model.SearchJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, jobID int64) (*model.SearchJobRun, error) {
	run := &model.SearchJobRun{
		JobID:     jobID,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO search_job_runs (job_id, status, started_at, logs) VALUES (?, ?, ?, '')`,
		jobID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	if run.ID, err = res.LastInsertId(); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run id")
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID int64, status model.RunStatus, logs string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE search_job_runs SET status = ?, finished_at = ?, logs = ? WHERE id = ?`,
		string(status), time.Now().UTC(), logs, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %d", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID int64) (*model.SearchJobRun, error) {
	run, err := scanSQLiteRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM search_job_runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %d", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %d", runID)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.SearchJobRun, error) {
	query := `SELECT ` + runColumns + ` FROM search_job_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.JobID > 0 {
		query += ` AND job_id = ?`
		args = append(args, filter.JobID)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.SearchJobRun
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

func scanSQLiteRun(row scanner) (*model.SearchJobRun, error) {
	var r model.SearchJobRun
	var status string
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &r.JobID, &status, &r.StartedAt, &finished, &r.Logs); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

func (s *SQLiteStore) FindLeadIDByPhone(ctx context.Context, phone string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM raw_leads WHERE phone_normalized = ? LIMIT 1`, phone,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: find lead by phone")
	}
	return id, true, nil
}

func (s *SQLiteStore) InsertLead(ctx context.Context, lead model.RawLead) (int64, error) {
	status := lead.Status
	if status == "" {
		status = model.LeadStatusNew
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_leads (organization_name, category, city, phone_raw, phone_normalized, email,
			website_url, social_url, source_method, ai_raw_summary, status, verified, "group", created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullable(lead.OrganizationName), nullable(lead.Category), nullable(lead.City),
		nullable(lead.PhoneRaw), lead.PhoneNormalized, nullable(lead.Email),
		nullable(lead.WebsiteURL), nullable(lead.SocialURL), string(lead.SourceMethod),
		nullable(lead.AIRawSummary), string(status), lead.Verified, nullable(lead.Group), time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, eris.Wrapf(ErrDuplicatePhone, "sqlite: insert lead %s", lead.PhoneNormalized)
		}
		return 0, eris.Wrap(err, "sqlite: insert lead")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: insert lead id")
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) GetLead(ctx context.Context, id int64) (*model.RawLead, error) {
	lead, err := scanLead(s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM raw_leads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get lead %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %d", id)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.RawLead, error) {
	query := `SELECT ` + leadColumns + ` FROM raw_leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SourceMethod != "" {
		query += ` AND source_method = ?`
		args = append(args, string(filter.SourceMethod))
	}
	if filter.City != "" {
		query += ` AND city = ?`
		args = append(args, filter.City)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.RawLead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads")
}

func (s *SQLiteStore) UpdateLeadReview(ctx context.Context, id int64, review model.LeadReview) error {
	var set []string
	var args []any
	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
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
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE raw_leads SET %s WHERE id = ?`, joinComma(set)), args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %d", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %d", entity, id)
	}
	return nil
}
