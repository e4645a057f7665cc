// Package leads commits extracted candidates to the raw lead quarantine and
// reviews individual leads afterward.
package leads

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/campleads/internal/model"
	"github.com/sells-group/campleads/internal/store"
)

// Reason explains why a candidate was not inserted.
type Reason string

const (
	ReasonMissingPhone   Reason = "MISSING_PHONE"
	ReasonDuplicatePhone Reason = "DUPLICATE_PHONE"
)

// Outcome is the result of importing one candidate.
type Outcome struct {
	Inserted bool   `json:"inserted"`
	ID       int64  `json:"id,omitempty"`
	Reason   Reason `json:"reason,omitempty"`
}

// String renders the outcome the way run logs record it.
func (o Outcome) String() string {
	if o.Inserted {
		return "inserted"
	}
	return string(o.Reason)
}

// LeadStore is the persistence the importer needs.
type LeadStore interface {
	FindLeadIDByPhone(ctx context.Context, phone string) (int64, bool, error)
	InsertLead(ctx context.Context, lead model.RawLead) (int64, error)
}

// Importer deduplicates candidates by normalized phone and inserts new ones.
type Importer struct {
	store LeadStore
}

// NewImporter creates an Importer.
func NewImporter(s LeadStore) *Importer {
	return &Importer{store: s}
}

// Import normalizes the phone, rejects missing or already known numbers, and
// inserts a NEW unverified lead otherwise. A uniqueness violation raised by
// the store is reported as a duplicate, which covers concurrent runs racing
// past the existence check. Only storage failures return an error.
func (im *Importer) Import(ctx context.Context, in model.LeadInput, source model.SourceMethod) (Outcome, error) {
	phone := NormalizePhone(in.PhoneRaw)
	if phone == "" {
		return Outcome{Reason: ReasonMissingPhone}, nil
	}

	if _, found, err := im.store.FindLeadIDByPhone(ctx, phone); err != nil {
		return Outcome{}, err
	} else if found {
		return Outcome{Reason: ReasonDuplicatePhone}, nil
	}

	id, err := im.store.InsertLead(ctx, model.RawLead{
		OrganizationName: in.OrganizationName,
		Category:         in.Category,
		City:             in.City,
		PhoneRaw:         in.PhoneRaw,
		PhoneNormalized:  phone,
		Email:            in.Email,
		WebsiteURL:       in.WebsiteURL,
		SocialURL:        in.SocialURL,
		SourceMethod:     source,
		AIRawSummary:     in.AIRawSummary,
		Status:           model.LeadStatusNew,
		Verified:         false,
	})
	if errors.Is(err, store.ErrDuplicatePhone) {
		zap.L().Debug("leads: insert lost dedup race", zap.String("phone", phone))
		return Outcome{Reason: ReasonDuplicatePhone}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Inserted: true, ID: id}, nil
}
