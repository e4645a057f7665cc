// Package serpapi is a client for the SerpApi search and Facebook profile
// engines.
package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://serpapi.com"
	maxBackoff     = 30 * time.Second
)

// Client performs SerpApi operations.
type Client interface {
	Search(ctx context.Context, query string) ([]ResultItem, error)
	FacebookProfile(ctx context.Context, profileID string) (json.RawMessage, error)
	Ping(ctx context.Context) error
}

// ResultItem is a single organic search result.
type ResultItem struct {
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Link    string `json:"link,omitempty"`
}

type searchResponse struct {
	OrganicResults []ResultItem `json:"organic_results"`
}

// APIError is returned when an upstream call does not succeed. StatusCode is
// 0 when the request never produced a response.
type APIError struct {
	Engine     string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("serpapi: %s request failed: %v", e.Engine, e.Err)
	}
	return fmt.Sprintf("serpapi: %s error: %d", e.Engine, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLocale sets the interface language and country (hl/gl).
func WithLocale(hl, gl string) Option {
	return func(c *httpClient) {
		c.hl = hl
		c.gl = gl
	}
}

// WithNum sets the number of results requested per search.
func WithNum(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.num = n
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or negative disables
// the limiter.
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithRetry retries transport failures, 408, 429 and 5xx responses up to
// maxAttempts total tries with exponential backoff starting at base.
func WithRetry(maxAttempts int, base time.Duration) Option {
	return func(c *httpClient) {
		if maxAttempts > 0 {
			c.attempts = maxAttempts
		}
		if base > 0 {
			c.retryBase = base
		}
	}
}

type httpClient struct {
	apiKey    string
	baseURL   string
	hl        string
	gl        string
	num       int
	http      *http.Client
	limiter   *rate.Limiter
	attempts  int
	retryBase time.Duration
}

// NewClient creates a SerpApi client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		hl:      "pl",
		gl:      "pl",
		num:     10,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		attempts:  1,
		retryBase: time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string) ([]ResultItem, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(c.num))
	params.Set("hl", c.hl)
	params.Set("gl", c.gl)

	var resp searchResponse
	if err := c.get(ctx, "google", params, &resp); err != nil {
		return nil, err
	}
	return resp.OrganicResults, nil
}

// FacebookProfile returns the raw profile payload. Key order is preserved
// so callers can walk it deterministically.
func (c *httpClient) FacebookProfile(ctx context.Context, profileID string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("engine", "facebook_profile")
	params.Set("profile_id", profileID)

	var resp json.RawMessage
	if err := c.get(ctx, "facebook_profile", params, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Ping issues a minimal search to confirm the key and endpoint work.
func (c *httpClient) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", "site:google.com")
	return c.get(ctx, "google", params, nil)
}

func (c *httpClient) get(ctx context.Context, engine string, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)

	var (
		body []byte
		err  error
	)
	for attempt := range c.attempts {
		if attempt > 0 {
			zap.L().Warn("serpapi: retrying request",
				zap.String("engine", engine),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if !c.backoff(ctx, attempt-1) {
				break
			}
		}
		body, err = c.once(ctx, engine, params)
		if err == nil || ctx.Err() != nil || !retryable(err) {
			break
		}
	}
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "serpapi: unmarshal %s response", engine)
	}
	return nil
}

func (c *httpClient) once(ctx context.Context, engine string, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &APIError{Engine: engine, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Engine: engine, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Engine: engine, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Engine: engine, StatusCode: resp.StatusCode, Err: eris.New(truncate(string(body), 200))}
	}
	return body, nil
}

// retryable reports whether err is a transport failure or a status the
// vendor documents as temporary.
func retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case 0,
		http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// backoff sleeps before retry attempt+1 with exponential growth and up to
// 50% jitter. It returns false if ctx ended first.
func (c *httpClient) backoff(ctx context.Context, attempt int) bool {
	d := time.Duration(float64(c.retryBase) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
