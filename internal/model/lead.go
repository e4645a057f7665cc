package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// LeadStatus is the quarantine workflow state of a raw lead.
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "NEW"
	LeadStatusCategorized LeadStatus = "CATEGORIZED"
)

// SourceMethod records how a raw lead was acquired.
type SourceMethod string

const (
	SourceGoogleDork      SourceMethod = "GOOGLE_DORK"
	SourceFacebookProfile SourceMethod = "FACEBOOK_PROFILE"
)

// RawLead is a quarantined candidate contact record awaiting review.
type RawLead struct {
	ID               int64        `json:"id"`
	OrganizationName string       `json:"organization_name,omitempty"`
	Category         string       `json:"category,omitempty"`
	City             string       `json:"city,omitempty"`
	PhoneRaw         string       `json:"phone_raw,omitempty"`
	PhoneNormalized  string       `json:"phone_normalized"`
	Email            string       `json:"email,omitempty"`
	WebsiteURL       string       `json:"website_url,omitempty"`
	SocialURL        string       `json:"social_url,omitempty"`
	SourceMethod     SourceMethod `json:"source_method"`
	AIRawSummary     string       `json:"ai_raw_summary,omitempty"`
	Status           LeadStatus   `json:"status"`
	Verified         bool         `json:"verified"`
	Group            string       `json:"group,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Candidate is the structured record the extraction model returns for a
// piece of evidence text. Unknown fields are empty strings.
type Candidate struct {
	OrganizationName string `json:"organization_name"`
	Category         string `json:"category"`
	City             string `json:"city"`
	PhoneRaw         string `json:"phone_raw"`
	Email            string `json:"email"`
	WebsiteURL       string `json:"website_url"`
	SocialURL        string `json:"social_url"`
}

// UnmarshalJSON reads each field with LooseString, so a reply such as
// {"phone_raw":600100200} still yields a usable candidate.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*c = Candidate{
		OrganizationName: LooseString(fields["organization_name"]),
		Category:         LooseString(fields["category"]),
		City:             LooseString(fields["city"]),
		PhoneRaw:         LooseString(fields["phone_raw"]),
		Email:            LooseString(fields["email"]),
		WebsiteURL:       LooseString(fields["website_url"]),
		SocialURL:        LooseString(fields["social_url"]),
	}
	return nil
}

// LooseString reads a JSON scalar as text. Strings come back as-is and
// numbers in their literal form; null, booleans, objects and arrays yield "".
func LooseString(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	}
	return ""
}

// LeadInput is what the importer accepts, from the pipeline or from a
// manually submitted lead.
type LeadInput struct {
	OrganizationName string `json:"organization_name"`
	Category         string `json:"category"`
	City             string `json:"city"`
	PhoneRaw         string `json:"phone_raw"`
	Email            string `json:"email"`
	WebsiteURL       string `json:"website_url"`
	SocialURL        string `json:"social_url"`
	AIRawSummary     string `json:"ai_raw_summary"`
}

// LeadInputFromCandidate copies the extracted fields into an importer input.
func LeadInputFromCandidate(c Candidate, evidence string) LeadInput {
	return LeadInput{
		OrganizationName: c.OrganizationName,
		Category:         c.Category,
		City:             c.City,
		PhoneRaw:         c.PhoneRaw,
		Email:            c.Email,
		WebsiteURL:       c.WebsiteURL,
		SocialURL:        c.SocialURL,
		AIRawSummary:     evidence,
	}
}

// LeadReview holds the fields a review pass may change on a raw lead. Nil
// pointers are left untouched.
type LeadReview struct {
	Category *string
	City     *string
	Group    *string
	Verified *bool
	Status   LeadStatus
}
