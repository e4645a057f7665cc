package ai

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campleads/internal/model"
)

const extractPrompt = "Wyciągnij dane kontaktowe z tekstu. Zwróć WYŁĄCZNIE poprawny JSON w formacie: " +
	`{"organization_name":"","category":"","city":"","phone_raw":"","email":"","website_url":"","social_url":""}. ` +
	"Jeśli brak pola, pozostaw pusty string. Tekst wejściowy: "

const categorizePrompt = `Sprawdź poniższy tekst i zasugeruj najlepszą wartość dla pól "category" (kategoria) i "city" (miejscowość).
Jeśli nie potrafisz zdecydować, pozostaw pusty string dla danego pola.
Zwróć WYŁĄCZNIE JSON w formacie: {"category":"","city":""}.
Tekst: `

const verifyPrompt = `Sprawdź, czy poniższe informacje o organizatorze wyglądają na prawdziwe (czy organizator istnieje i dane kontaktowe są prawdopodobne).
Zwróć WYŁĄCZNIE JSON w postaci: {"is_real": true|false, "confidence": 0-1, "reason":"krótki opis"}.
Tekst: `

// Suggestion is the categorization reply.
type Suggestion struct {
	Category string `json:"category"`
	City     string `json:"city"`
}

// Verdict is the realness verification reply. IsReal is nil when the model
// did not answer with a boolean.
type Verdict struct {
	IsReal     *bool    `json:"is_real"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
}

func (s *Suggestion) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*s = Suggestion{
		Category: model.LooseString(fields["category"]),
		City:     model.LooseString(fields["city"]),
	}
	return nil
}

// UnmarshalJSON tolerates "true" and "0.8" written as strings.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*v = Verdict{
		IsReal:     looseBool(fields["is_real"]),
		Confidence: looseFloat(fields["confidence"]),
		Reason:     model.LooseString(fields["reason"]),
	}
	return nil
}

// Client runs the lead prompts against a Generator.
type Client struct {
	gen Generator
}

// NewClient creates a Client.
func NewClient(gen Generator) *Client {
	return &Client{gen: gen}
}

// Model returns the identifier of the model behind the client.
func (c *Client) Model() string { return c.gen.Model() }

// Check reports the model name used for subsequent calls.
func (c *Client) Check() (string, error) {
	if c.gen == nil {
		return "", eris.New("ai: no generator configured")
	}
	name := c.gen.Model()
	if name == "" {
		return "", eris.New("ai: generator has no model name")
	}
	return name, nil
}

// Extract pulls contact details out of evidence text.
func (c *Client) Extract(ctx context.Context, text string) (model.Candidate, error) {
	var out model.Candidate
	err := c.ask(ctx, extractPrompt+text, &out)
	return out, err
}

// Categorize suggests a category and city for the text.
func (c *Client) Categorize(ctx context.Context, text string) (Suggestion, error) {
	var out Suggestion
	err := c.ask(ctx, categorizePrompt+text, &out)
	return out, err
}

// Verify asks whether the organizer described by text looks real.
func (c *Client) Verify(ctx context.Context, text string) (Verdict, error) {
	var out Verdict
	err := c.ask(ctx, verifyPrompt+text, &out)
	return out, err
}

func (c *Client) ask(ctx context.Context, prompt string, out any) error {
	reply, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	return ParseJSON(reply, out)
}
