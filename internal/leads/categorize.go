package leads

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campleads/internal/ai"
	"github.com/sells-group/campleads/internal/model"
)

// ReviewStore is the persistence the categorizer needs.
type ReviewStore interface {
	GetLead(ctx context.Context, id int64) (*model.RawLead, error)
	UpdateLeadReview(ctx context.Context, id int64, review model.LeadReview) error
}

// Reviewer suggests fields and judges realness for a lead's text.
type Reviewer interface {
	Categorize(ctx context.Context, text string) (ai.Suggestion, error)
	Verify(ctx context.Context, text string) (ai.Verdict, error)
}

// Categorizer reviews a single raw lead with the model.
type Categorizer struct {
	store    ReviewStore
	reviewer Reviewer
}

// NewCategorizer creates a Categorizer.
func NewCategorizer(s ReviewStore, r Reviewer) *Categorizer {
	return &Categorizer{store: s, reviewer: r}
}

// CategorizeResult reports what a review changed.
type CategorizeResult struct {
	LeadID     int64            `json:"lead_id"`
	Suggestion ai.Suggestion    `json:"suggestion"`
	Verdict    ai.Verdict       `json:"verdict"`
	Review     model.LeadReview `json:"-"`
}

// Categorize asks for a category/city suggestion and a realness verdict,
// applies non-empty changed fields, and marks the lead CATEGORIZED. The
// verified flag only changes when the verdict carries a boolean.
func (c *Categorizer) Categorize(ctx context.Context, leadID int64) (*CategorizeResult, error) {
	lead, err := c.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	text := reviewText(lead)

	suggestion, err := c.reviewer.Categorize(ctx, text)
	if err != nil {
		return nil, eris.Wrapf(err, "leads: categorize lead %d", leadID)
	}
	verdict, err := c.reviewer.Verify(ctx, text)
	if err != nil {
		return nil, eris.Wrapf(err, "leads: verify lead %d", leadID)
	}

	review := model.LeadReview{Status: model.LeadStatusCategorized}
	if v := strings.TrimSpace(suggestion.City); v != "" && v != lead.City {
		review.City = &v
	}
	if v := strings.TrimSpace(suggestion.Category); v != "" && v != lead.Category {
		review.Category = &v
	}
	if verdict.IsReal != nil {
		review.Verified = verdict.IsReal
	}

	if err := c.store.UpdateLeadReview(ctx, leadID, review); err != nil {
		return nil, err
	}

	zap.L().Info("lead categorized",
		zap.Int64("lead_id", leadID),
		zap.Bool("city_changed", review.City != nil),
		zap.Bool("category_changed", review.Category != nil),
		zap.String("reason", verdict.Reason),
	)

	return &CategorizeResult{
		LeadID:     leadID,
		Suggestion: suggestion,
		Verdict:    verdict,
		Review:     review,
	}, nil
}

// reviewText prefers the stored evidence and falls back to the lead's own
// fields.
func reviewText(l *model.RawLead) string {
	if l.AIRawSummary != "" {
		return l.AIRawSummary
	}
	var parts []string
	for _, p := range []string{l.OrganizationName, l.Category, l.City, l.WebsiteURL, l.SocialURL} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " \n")
}
