package leads

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campleads/internal/ai"
	"github.com/sells-group/campleads/internal/model"
	"github.com/sells-group/campleads/internal/store"
)

func boolPtr(b bool) *bool { return &b }

func TestCategorize_AppliesChanges(t *testing.T) {
	ms := &memStore{leads: []model.RawLead{{
		ID:           1,
		City:         "Warszawa",
		Category:     "",
		AIRawSummary: "Półkolonie jeździeckie w Józefowie",
	}}}
	rv := &fakeReviewer{
		suggestion: ai.Suggestion{Category: "jeździeckie", City: "Józefów"},
		verdict:    ai.Verdict{IsReal: boolPtr(true), Reason: "strona istnieje"},
	}

	res, err := NewCategorizer(ms, rv).Categorize(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.LeadID)

	review := ms.reviews[1]
	assert.Equal(t, model.LeadStatusCategorized, review.Status)
	require.NotNil(t, review.City)
	assert.Equal(t, "Józefów", *review.City)
	require.NotNil(t, review.Category)
	assert.Equal(t, "jeździeckie", *review.Category)
	require.NotNil(t, review.Verified)
	assert.True(t, *review.Verified)

	assert.Equal(t, []string{"Półkolonie jeździeckie w Józefowie", "Półkolonie jeździeckie w Józefowie"}, rv.texts)
}

func TestCategorize_KeepsUnchangedAndEmpty(t *testing.T) {
	ms := &memStore{leads: []model.RawLead{{
		ID:               2,
		OrganizationName: "Obóz Orlik",
		Category:         "sportowe",
		City:             "Kraków",
		WebsiteURL:       "https://orlik.pl",
	}}}
	rv := &fakeReviewer{
		suggestion: ai.Suggestion{Category: "sportowe", City: ""},
		verdict:    ai.Verdict{Reason: "brak danych"},
	}

	_, err := NewCategorizer(ms, rv).Categorize(context.Background(), 2)
	require.NoError(t, err)

	review := ms.reviews[2]
	assert.Nil(t, review.City)
	assert.Nil(t, review.Category)
	assert.Nil(t, review.Verified)
	assert.Equal(t, model.LeadStatusCategorized, review.Status)

	assert.Equal(t, "Obóz Orlik \nsportowe \nKraków \nhttps://orlik.pl", rv.texts[0])
}

func TestCategorize_NotFound(t *testing.T) {
	_, err := NewCategorizer(&memStore{}, &fakeReviewer{}).Categorize(context.Background(), 9)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCategorize_ModelFailure(t *testing.T) {
	ms := &memStore{leads: []model.RawLead{{ID: 3, AIRawSummary: "x"}}}

	_, err := NewCategorizer(ms, &fakeReviewer{catErr: ai.ErrNotJSON}).Categorize(context.Background(), 3)
	assert.ErrorIs(t, err, ai.ErrNotJSON)

	_, err = NewCategorizer(ms, &fakeReviewer{verErr: errors.New("timeout")}).Categorize(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify lead 3")
	assert.Empty(t, ms.reviews)
}
