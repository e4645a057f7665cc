// Package store persists search jobs, their runs, and quarantined raw leads.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sells-group/campleads/internal/model"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicatePhone is returned when a lead with the same normalized
	// phone already exists.
	ErrDuplicatePhone = errors.New("store: duplicate phone")
)

// DefaultListLimit applies when a filter leaves Limit at zero.
const DefaultListLimit = 20

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	JobID  int64           `json:"job_id,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// LeadFilter specifies criteria for listing raw leads.
type LeadFilter struct {
	Status       model.LeadStatus   `json:"status,omitempty"`
	SourceMethod model.SourceMethod `json:"source_method,omitempty"`
	City         string             `json:"city,omitempty"`
	Limit        int                `json:"limit,omitempty"`
	Offset       int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the acquisition pipeline.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, job model.SearchJob) (int64, error)
	GetJob(ctx context.Context, id int64) (*model.SearchJob, error)
	ListJobs(ctx context.Context, limit int) ([]model.SearchJob, error)

	// Runs
	CreateRun(ctx context.Context, jobID int64) (*model.SearchJobRun, error)
	FinishRun(ctx context.Context, runID int64, status model.RunStatus, logs string) error
	GetRun(ctx context.Context, runID int64) (*model.SearchJobRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.SearchJobRun, error)

	// Leads
	FindLeadIDByPhone(ctx context.Context, phone string) (int64, bool, error)
	InsertLead(ctx context.Context, lead model.RawLead) (int64, error)
	GetLead(ctx context.Context, id int64) (*model.RawLead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.RawLead, error)
	UpdateLeadReview(ctx context.Context, id int64, review model.LeadReview) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock's pool
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

const jobColumns = `id, COALESCE(wojewodztwo, ''), COALESCE(city, ''), camp_type, category, method, ` +
	`COALESCE(query_notes, ''), COALESCE(requested_by, ''), created_at`

const runColumns = `id, job_id, status, started_at, finished_at, COALESCE(logs, '')`

const leadColumns = `id, COALESCE(organization_name, ''), COALESCE(category, ''), COALESCE(city, ''), ` +
	`COALESCE(phone_raw, ''), COALESCE(phone_normalized, ''), COALESCE(email, ''), COALESCE(website_url, ''), ` +
	`COALESCE(social_url, ''), COALESCE(source_method, ''), COALESCE(ai_raw_summary, ''), status, verified, ` +
	`COALESCE("group", ''), created_at`

// scanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.SearchJob, error) {
	var j model.SearchJob
	var method string
	if err := row.Scan(&j.ID, &j.Wojewodztwo, &j.City, &j.CampType, &j.Category, &method,
		&j.QueryNotes, &j.RequestedBy, &j.CreatedAt); err != nil {
		return nil, err
	}
	j.Method = model.Method(method)
	return &j, nil
}

func scanLead(row scanner) (*model.RawLead, error) {
	var l model.RawLead
	var source, status string
	if err := row.Scan(&l.ID, &l.OrganizationName, &l.Category, &l.City,
		&l.PhoneRaw, &l.PhoneNormalized, &l.Email, &l.WebsiteURL,
		&l.SocialURL, &source, &l.AIRawSummary, &status, &l.Verified,
		&l.Group, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.SourceMethod = model.SourceMethod(source)
	l.Status = model.LeadStatus(status)
	return &l, nil
}

func joinComma(parts []string) string {
	return strings.Join(parts, ", ")
}
