package ai

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cityCategory struct {
	Category string `json:"category"`
	City     string `json:"city"`
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  cityCategory
	}{
		{"plain", `{"category":"jeździectwo","city":"Warszawa"}`, cityCategory{"jeździectwo", "Warszawa"}},
		{"json fence", "```json\n{\"category\":\"sport\",\"city\":\"Gdańsk\"}\n```", cityCategory{"sport", "Gdańsk"}},
		{"bare fence", "```\n{\"city\":\"Łódź\"}\n```", cityCategory{City: "Łódź"}},
		{"surrounding whitespace", "  \n{\"city\":\"Opole\"}\n\t", cityCategory{City: "Opole"}},
		{"leading prose", "Oto wynik:\n{\"category\":\"plastyczne\",\"city\":\"Kraków\"}", cityCategory{"plastyczne", "Kraków"}},
		{"prose on both sides", "Wynik: {\"city\":\"Sopot\"} mam nadzieję, że pomogłem", cityCategory{City: "Sopot"}},
		{"fence with trailing prose", "```json\n{\"city\":\"Toruń\"}\n```\nDaj znać.", cityCategory{City: "Toruń"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got cityCategory
			require.NoError(t, ParseJSON(tt.reply, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseJSON_Empty(t *testing.T) {
	for _, reply := range []string{"", "   ", "\n\t"} {
		var got cityCategory
		err := ParseJSON(reply, &got)
		assert.ErrorIs(t, err, ErrEmptyResponse)
	}
}

func TestParseJSON_NoObject(t *testing.T) {
	var got cityCategory
	err := ParseJSON("Nie znalazłem danych kontaktowych.", &got)
	assert.ErrorIs(t, err, ErrNotJSON)
}

func TestParseJSON_BrokenSalvage(t *testing.T) {
	var got cityCategory
	err := ParseJSON("wynik: {\"city\": Warszawa}", &got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotJSON))
}

func TestParseJSON_FenceOnly(t *testing.T) {
	var got cityCategory
	err := ParseJSON("```json```", &got)
	assert.ErrorIs(t, err, ErrNotJSON)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json {\"a\":1} ```"))
	assert.Equal(t, `{"a":1}`, stripFence("```{\"a\":1}```"))
	assert.Equal(t, "", stripFence("```"))
	assert.Equal(t, `{"a":1}`, stripFence(`{"a":1}`))
	assert.Equal(t, "```json {", stripFence("```json {"))
}

func TestParseJSON_TopLevelArray(t *testing.T) {
	var got cityCategory
	require.NoError(t, ParseJSON(`[1, {"category":"sportowe","city":"Lublin"}, {"city":"Radom"}]`, &got))
	assert.Equal(t, cityCategory{"sportowe", "Lublin"}, got)
}

func TestParseJSON_ValidJSONWithoutObject(t *testing.T) {
	for _, reply := range []string{`[]`, `["brak"]`, `null`, `"brak danych"`, `42`} {
		var got cityCategory
		require.NoError(t, ParseJSON(reply, &got), reply)
		assert.Equal(t, cityCategory{}, got, reply)
	}
}

func TestLooseBool(t *testing.T) {
	tests := []struct {
		raw  string
		want *bool
	}{
		{`true`, boolPtr(true)},
		{`false`, boolPtr(false)},
		{`"true"`, boolPtr(true)},
		{`" FALSE "`, boolPtr(false)},
		{`"może"`, nil},
		{`1`, nil},
		{`null`, nil},
		{``, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, looseBool(json.RawMessage(tt.raw)), tt.raw)
	}
}

func TestLooseFloat(t *testing.T) {
	got := looseFloat(json.RawMessage(`0.75`))
	require.NotNil(t, got)
	assert.InDelta(t, 0.75, *got, 0.0001)

	got = looseFloat(json.RawMessage(`"0.4"`))
	require.NotNil(t, got)
	assert.InDelta(t, 0.4, *got, 0.0001)

	assert.Nil(t, looseFloat(json.RawMessage(`"wysoka"`)))
	assert.Nil(t, looseFloat(json.RawMessage(`true`)))
	assert.Nil(t, looseFloat(nil))
}

func boolPtr(b bool) *bool { return &b }
