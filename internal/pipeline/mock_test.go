package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campleads/internal/model"
	"github.com/sells-group/campleads/internal/store"
	"github.com/sells-group/campleads/pkg/serpapi"
)

// mockStore is an in-memory Store plus lead storage for the importer.
type mockStore struct {
	mu        sync.Mutex
	jobs      map[int64]*model.SearchJob
	runs      map[int64]*model.SearchJobRun
	finishes  []model.RunStatus
	leads     []model.RawLead
	createErr error
	finishErr error
	insertErr error
	nextRunID int64
}

func newMockStore() *mockStore {
	return &mockStore{
		jobs: map[int64]*model.SearchJob{},
		runs: map[int64]*model.SearchJobRun{},
	}
}

func (m *mockStore) GetJob(_ context.Context, id int64) (*model.SearchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "job %d", id)
	}
	cp := *j
	return &cp, nil
}

func (m *mockStore) CreateRun(_ context.Context, jobID int64) (*model.SearchJobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextRunID++
	r := &model.SearchJobRun{ID: m.nextRunID, JobID: jobID, Status: model.RunStatusRunning, StartedAt: time.Now()}
	m.runs[r.ID] = r
	cp := *r
	return &cp, nil
}

func (m *mockStore) FinishRun(_ context.Context, runID int64, status model.RunStatus, logs string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishes = append(m.finishes, status)
	if m.finishErr != nil {
		return m.finishErr
	}
	r, ok := m.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	r.Status = status
	r.FinishedAt = &now
	r.Logs = logs
	return nil
}

func (m *mockStore) FindLeadIDByPhone(_ context.Context, phone string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.PhoneNormalized == phone {
			return l.ID, true, nil
		}
	}
	return 0, false, nil
}

func (m *mockStore) InsertLead(_ context.Context, lead model.RawLead) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	lead.ID = int64(len(m.leads) + 1)
	m.leads = append(m.leads, lead)
	return lead.ID, nil
}

// mockSearcher serves canned results per query.
type mockSearcher struct {
	results map[string][]serpapi.ResultItem
	errs    map[string]error
	pingErr error
	queries []string
	onCall  func(query string)
}

func (m *mockSearcher) Search(_ context.Context, query string) ([]serpapi.ResultItem, error) {
	m.queries = append(m.queries, query)
	if m.onCall != nil {
		m.onCall(query)
	}
	if err := m.errs[query]; err != nil {
		return nil, err
	}
	return m.results[query], nil
}

func (m *mockSearcher) Ping(context.Context) error { return m.pingErr }

// mockProfiles serves canned profile text per id.
type mockProfiles struct {
	texts map[string]string
	errs  map[string]error
	ids   []string
}

func (m *mockProfiles) FetchText(_ context.Context, id string) (string, error) {
	m.ids = append(m.ids, id)
	if err := m.errs[id]; err != nil {
		return "", err
	}
	return m.texts[id], nil
}

// mockExtractor delegates to fn.
type mockExtractor struct {
	model    string
	checkErr error
	fn       func(text string) (model.Candidate, error)
	texts    []string
}

func (m *mockExtractor) Extract(_ context.Context, text string) (model.Candidate, error) {
	m.texts = append(m.texts, text)
	return m.fn(text)
}

func (m *mockExtractor) Model() string { return m.model }

func (m *mockExtractor) Check() (string, error) {
	if m.checkErr != nil {
		return "", m.checkErr
	}
	return m.model, nil
}
