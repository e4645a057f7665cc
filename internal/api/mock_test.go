package api

import (
	"context"
	"sync"

	"github.com/sells-group/campleads/internal/leads"
	"github.com/sells-group/campleads/internal/model"
	"github.com/sells-group/campleads/internal/pipeline"
	"github.com/sells-group/campleads/internal/store"
)

type fakeStore struct {
	mu         sync.Mutex
	jobs       []model.SearchJob
	runs       map[int64]*model.SearchJobRun
	leads      []model.RawLead
	leadFilter store.LeadFilter
	runFilter  store.RunFilter
	err        error
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: map[int64]*model.SearchJobRun{}}
}

func (f *fakeStore) CreateJob(_ context.Context, job model.SearchJob) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	job.ID = int64(len(f.jobs) + 1)
	f.jobs = append(f.jobs, job)
	return job.ID, nil
}

func (f *fakeStore) GetJob(_ context.Context, id int64) (*model.SearchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ID == id {
			cp := j
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListJobs(_ context.Context, _ int) ([]model.SearchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs, f.err
}

func (f *fakeStore) GetRun(_ context.Context, id int64) (*model.SearchJobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) ListRuns(_ context.Context, filter store.RunFilter) ([]model.SearchJobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runFilter = filter
	var out []model.SearchJobRun
	for _, r := range f.runs {
		out = append(out, *r)
	}
	return out, f.err
}

func (f *fakeStore) ListLeads(_ context.Context, filter store.LeadFilter) ([]model.RawLead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leadFilter = filter
	return f.leads, f.err
}

type fakeImporter struct {
	outcome leads.Outcome
	err     error
	got     []model.LeadInput
	sources []model.SourceMethod
}

func (f *fakeImporter) Import(_ context.Context, in model.LeadInput, source model.SourceMethod) (leads.Outcome, error) {
	f.got = append(f.got, in)
	f.sources = append(f.sources, source)
	return f.outcome, f.err
}

// blockingRunner reports each run on started and holds it until ctx ends.
type blockingRunner struct {
	started chan pipeline.Params
}

func (b *blockingRunner) Run(ctx context.Context, p pipeline.Params) (*model.SearchJobRun, error) {
	b.started <- p
	<-ctx.Done()
	return &model.SearchJobRun{ID: 1, Status: model.RunStatusStopped}, nil
}
