package leads

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campleads/internal/ai"
	"github.com/sells-group/campleads/internal/model"
	"github.com/sells-group/campleads/internal/store"
)

// memStore is an in-memory LeadStore and ReviewStore.
type memStore struct {
	mu        sync.Mutex
	leads     []model.RawLead
	findErr   error
	insertErr error
	reviews   map[int64]model.LeadReview
	finds     int
	inserts   int
}

func (m *memStore) FindLeadIDByPhone(_ context.Context, phone string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if m.findErr != nil {
		return 0, false, m.findErr
	}
	for _, l := range m.leads {
		if l.PhoneNormalized == phone {
			return l.ID, true, nil
		}
	}
	return 0, false, nil
}

func (m *memStore) InsertLead(_ context.Context, lead model.RawLead) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	lead.ID = int64(len(m.leads) + 1)
	m.leads = append(m.leads, lead)
	return lead.ID, nil
}

func (m *memStore) GetLead(_ context.Context, id int64) (*model.RawLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.ID == id {
			cp := l
			return &cp, nil
		}
	}
	return nil, eris.Wrapf(store.ErrNotFound, "lead %d", id)
}

func (m *memStore) UpdateLeadReview(_ context.Context, id int64, review model.LeadReview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reviews == nil {
		m.reviews = map[int64]model.LeadReview{}
	}
	m.reviews[id] = review
	return nil
}

// fakeReviewer returns fixed suggestions and records the text it saw.
type fakeReviewer struct {
	suggestion ai.Suggestion
	verdict    ai.Verdict
	catErr     error
	verErr     error
	texts      []string
}

func (f *fakeReviewer) Categorize(_ context.Context, text string) (ai.Suggestion, error) {
	f.texts = append(f.texts, text)
	return f.suggestion, f.catErr
}

func (f *fakeReviewer) Verify(_ context.Context, text string) (ai.Verdict, error) {
	f.texts = append(f.texts, text)
	return f.verdict, f.verErr
}
