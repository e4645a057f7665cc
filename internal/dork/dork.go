// Package dork builds the search-engine queries a search job runs.
package dork

import (
	"strings"

	"github.com/sells-group/campleads/internal/model"
)

// socialSite scopes a query to the social network's public indexable pages.
const socialSite = "site:facebook.com"

// intents are appended to the phrase set, one per query, in this order.
var intents = []string{"telefon", "zapisy", "wolne miejsca"}

// Params are the job fields that shape the queries.
type Params struct {
	City     string
	CampType string
	Category string
	Method   model.Method
}

// Build returns the ordered query list for p. For MethodAll the search-engine
// family comes first, followed by the social-profile family.
func Build(p Params) []string {
	phrases := []string{quote(p.CampType)}
	if strings.TrimSpace(p.City) != "" {
		phrases = append(phrases, quote(p.City))
	}
	if strings.TrimSpace(p.Category) != "" {
		phrases = append(phrases, quote(p.Category))
	}
	base := strings.Join(phrases, " ")

	search := make([]string, 0, len(intents))
	social := make([]string, 0, len(intents))
	for _, intent := range intents {
		search = append(search, base+" "+quote(intent))
		social = append(social, socialSite+" "+base+" "+quote(intent))
	}

	switch p.Method {
	case model.MethodSocialProfile:
		return social
	case model.MethodSearchEngine:
		return search
	default:
		return append(search, social...)
	}
}

func quote(s string) string {
	return `"` + s + `"`
}
