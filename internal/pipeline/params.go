package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campleads/internal/model"
	"github.com/sells-group/campleads/internal/store"
)

// ErrMissingJobParameters is returned when neither a saved job nor an ad-hoc
// category was supplied. No run row is created in that case.
var ErrMissingJobParameters = errors.New("pipeline: missing job parameters (job id or category)")

// Params selects what a run searches for: a saved job by ID, or ad-hoc
// parameters when JobID is zero.
type Params struct {
	JobID       int64
	Wojewodztwo string
	City        string
	CampType    string
	Category    string
	Method      model.Method
}

// JobGetter loads saved jobs.
type JobGetter interface {
	GetJob(ctx context.Context, id int64) (*model.SearchJob, error)
}

// Resolve turns run parameters into the job snapshot the run works from.
// Ad-hoc runs need a category; their camp type falls back to
// defaultCampType and their job ID is 0.
func Resolve(ctx context.Context, jobs JobGetter, p Params, defaultCampType string) (*model.SearchJob, error) {
	if p.JobID > 0 {
		job, err := jobs.GetJob(ctx, p.JobID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrMissingJobParameters, "job %d not found", p.JobID)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: load job %d", p.JobID)
		}
		if job.Method == "" {
			job.Method = model.MethodAll
		}
		return job, nil
	}

	category := strings.TrimSpace(p.Category)
	if category == "" {
		return nil, ErrMissingJobParameters
	}

	campType := strings.TrimSpace(p.CampType)
	if campType == "" {
		campType = defaultCampType
	}
	method := p.Method
	if method == "" {
		method = model.MethodAll
	}

	return &model.SearchJob{
		Wojewodztwo: strings.TrimSpace(p.Wojewodztwo),
		City:        strings.TrimSpace(p.City),
		CampType:    campType,
		Category:    category,
		Method:      method,
	}, nil
}
