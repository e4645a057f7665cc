// Package profile decides whether a search result points at an individual
// social-network profile and, if so, turns the profile lookup payload into
// evidence text for extraction.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/campleads/pkg/serpapi"
)

const (
	// MaxStrings caps how many string leaves are collected from a payload.
	MaxStrings = 30
	// MaxDepth is the deepest nesting level whose strings are collected.
	MaxDepth = 4
	// MaxTextRunes caps the flattened text length.
	MaxTextRunes = 6000
)

// nonProfileSegments are first path segments that denote listings, media or
// navigation pages rather than an individual profile.
var nonProfileSegments = map[string]bool{
	"pages":       true,
	"groups":      true,
	"events":      true,
	"watch":       true,
	"marketplace": true,
	"share":       true,
	"reel":        true,
	"photo":       true,
	"photos":      true,
	"stories":     true,
	"story":       true,
	"hashtag":     true,
	"search":      true,
	"posts":       true,
	"permalink":   true,
	"pg":          true,
	"p":           true,
}

// ExtractID returns the profile identifier for a Facebook URL, or "" when the
// link is not confidently an individual profile.
func ExtractID(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "facebook.com" && !strings.HasSuffix(host, ".facebook.com") {
		return ""
	}

	if strings.HasPrefix(u.Path, "/profile.php") {
		return strings.TrimSpace(u.Query().Get("id"))
	}

	var first string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			first = seg
			break
		}
	}
	if first == "" || nonProfileSegments[strings.ToLower(first)] {
		return ""
	}
	return first
}

// Flatten walks a JSON payload depth-first in document order and joins its
// distinct trimmed string leaves with newlines. At most MaxStrings leaves are
// collected, only down to MaxDepth, and the result is cut at MaxTextRunes.
// It returns "" when nothing usable was found.
func Flatten(payload []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var collected []string
	if err := walk(dec, 0, &collected); err != nil {
		return "", eris.Wrap(err, "profile: decode payload")
	}

	seen := make(map[string]bool, len(collected))
	unique := make([]string, 0, len(collected))
	for _, s := range collected {
		if seen[s] {
			continue
		}
		seen[s] = true
		unique = append(unique, s)
	}

	text := strings.Join(unique, "\n")
	if r := []rune(text); len(r) > MaxTextRunes {
		text = string(r[:MaxTextRunes])
	}
	return strings.TrimSpace(text), nil
}

// walk consumes exactly one JSON value from dec.
func walk(dec *json.Decoder, depth int, out *[]string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case string:
		if depth <= MaxDepth && len(*out) < MaxStrings {
			if s := strings.TrimSpace(norm.NFC.String(v)); s != "" {
				*out = append(*out, s)
			}
		}
	case json.Delim:
		switch v {
		case '{':
			for dec.More() {
				if _, err := dec.Token(); err != nil { // key
					return err
				}
				if err := walk(dec, depth+1, out); err != nil {
					return err
				}
			}
		case '[':
			for dec.More() {
				if err := walk(dec, depth+1, out); err != nil {
					return err
				}
			}
		}
		if _, err := dec.Token(); err != nil { // closing delimiter
			return err
		}
	}
	return nil
}

// Enricher fetches profile text through the profile lookup capability.
type Enricher struct {
	client serpapi.Client
}

// NewEnricher creates an Enricher.
func NewEnricher(client serpapi.Client) *Enricher {
	return &Enricher{client: client}
}

// FetchText looks up profileID and returns its flattened text, or "" when the
// profile carries no usable strings. Upstream failures surface as
// *serpapi.APIError.
func (e *Enricher) FetchText(ctx context.Context, profileID string) (string, error) {
	payload, err := e.client.FacebookProfile(ctx, profileID)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return "", nil
	}
	text, err := Flatten(payload)
	if err != nil && !eris.Is(err, io.EOF) {
		return "", err
	}
	return text, nil
}
