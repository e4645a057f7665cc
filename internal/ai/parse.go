package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrEmptyResponse is returned when the model reply is blank.
	ErrEmptyResponse = errors.New("ai: model returned empty response")
	// ErrNotJSON is returned when no JSON object can be recovered from the reply.
	ErrNotJSON = errors.New("ai: model response not JSON")
)

// ParseJSON decodes a model reply into out. The reply is trimmed, a single
// surrounding code fence is removed, and the text is decoded directly. When
// that fails, the span from the first "{" to the last "}" is decoded instead.
// A top-level array contributes its first object.
func ParseJSON(reply string, out any) error {
	text := strings.TrimSpace(reply)
	if text == "" {
		return ErrEmptyResponse
	}

	text = stripFence(text)

	if !json.Valid([]byte(text)) {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end < start {
			return ErrNotJSON
		}
		text = text[start : end+1]
	}

	switch text[0] {
	case '{':
		return decode([]byte(text), out)
	case '[':
		return decodeFirstObject([]byte(text), out)
	}
	// A bare scalar carries no fields; out keeps its zero value.
	return nil
}

// decodeFirstObject decodes the first object element of a JSON array into out.
// An array without objects leaves out untouched.
func decodeFirstObject(data []byte, out any) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return eris.Wrapf(ErrNotJSON, "decode: %v", err)
	}
	for _, item := range items {
		if bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) {
			return decode(item, out)
		}
	}
	return nil
}

func decode(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrapf(ErrNotJSON, "decode: %v", err)
	}
	return nil
}

// looseBool accepts a JSON boolean or a string strconv.ParseBool understands.
func looseBool(raw json.RawMessage) *bool {
	switch v := scalar(raw).(type) {
	case bool:
		return &v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return &b
		}
	}
	return nil
}

// looseFloat accepts a JSON number or a numeric string.
func looseFloat(raw json.RawMessage) *float64 {
	var s string
	switch v := scalar(raw).(type) {
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
	default:
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func scalar(raw json.RawMessage) any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

func stripFence(text string) string {
	if !strings.HasSuffix(text, "```") {
		return text
	}
	switch {
	case strings.HasPrefix(text, "```json"):
		return strings.TrimSpace(slice(text, 7, 3))
	case strings.HasPrefix(text, "```"):
		return strings.TrimSpace(slice(text, 3, 3))
	}
	return text
}

// slice drops head bytes from the front and tail bytes from the back, yielding
// "" when they overlap.
func slice(s string, head, tail int) string {
	if head >= len(s)-tail {
		return ""
	}
	return s[head : len(s)-tail]
}
