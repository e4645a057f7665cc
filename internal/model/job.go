// Package model defines the records shared by the lead acquisition pipeline,
// its stores, and its command surfaces.
package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Method selects which query families a search job runs.
type Method string

const (
	MethodAll           Method = "ALL"
	MethodSearchEngine  Method = "SEARCH_ENGINE"
	MethodSocialProfile Method = "SOCIAL_PROFILE"
)

// ParseMethod converts user input into a Method. Empty input means MethodAll.
// The legacy names GOOGLE and FACEBOOK are accepted for jobs saved before the
// rename.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(MethodAll):
		return MethodAll, nil
	case string(MethodSearchEngine), "GOOGLE":
		return MethodSearchEngine, nil
	case string(MethodSocialProfile), "FACEBOOK":
		return MethodSocialProfile, nil
	default:
		return "", eris.Errorf("model: unknown search method %q", s)
	}
}

// RunStatus represents the lifecycle state of a search job run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusDone    RunStatus = "DONE"
	RunStatusFailed  RunStatus = "FAILED"
	RunStatusStopped RunStatus = "STOPPED"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusDone, RunStatusFailed, RunStatusStopped:
		return true
	default:
		return false
	}
}

// SearchJob is a saved set of acquisition parameters. The pipeline reads it
// and never mutates it.
type SearchJob struct {
	ID          int64     `json:"id" yaml:"-"`
	Wojewodztwo string    `json:"wojewodztwo,omitempty" yaml:"wojewodztwo"`
	City        string    `json:"city,omitempty" yaml:"city"`
	CampType    string    `json:"camp_type" yaml:"camp_type"`
	Category    string    `json:"category" yaml:"category"`
	Method      Method    `json:"method" yaml:"method"`
	QueryNotes  string    `json:"query_notes,omitempty" yaml:"query_notes"`
	RequestedBy string    `json:"requested_by,omitempty" yaml:"requested_by"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// SearchJobRun is one execution of the pipeline. JobID is 0 for ad-hoc runs.
type SearchJobRun struct {
	ID         int64      `json:"id"`
	JobID      int64      `json:"job_id"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Logs       string     `json:"logs"`
}

// Normalize trims the job's text fields, fills in the default camp type, and
// canonicalizes the method. A job without a category is rejected.
func (j *SearchJob) Normalize(defaultCampType string) error {
	j.Wojewodztwo = strings.TrimSpace(j.Wojewodztwo)
	j.City = strings.TrimSpace(j.City)
	j.CampType = strings.TrimSpace(j.CampType)
	j.Category = strings.TrimSpace(j.Category)
	j.QueryNotes = strings.TrimSpace(j.QueryNotes)
	j.RequestedBy = strings.TrimSpace(j.RequestedBy)

	if j.Category == "" {
		return eris.New("model: search job needs a category")
	}
	if j.CampType == "" {
		j.CampType = defaultCampType
	}

	m, err := ParseMethod(string(j.Method))
	if err != nil {
		return err
	}
	j.Method = m
	return nil
}
