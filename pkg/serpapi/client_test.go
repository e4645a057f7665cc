package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/search.json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "google", q.Get("engine"))
		assert.Equal(t, `"Półkolonie" "telefon"`, q.Get("q"))
		assert.Equal(t, "test-key", q.Get("api_key"))
		assert.Equal(t, "10", q.Get("num"))
		assert.Equal(t, "pl", q.Get("hl"))
		assert.Equal(t, "pl", q.Get("gl"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic_results": []map[string]string{
				{"title": "Stajnia", "snippet": "tel. 600 100 200", "link": "https://stajnia.pl"},
				{"title": "Bez linku"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	items, err := client.Search(context.Background(), `"Półkolonie" "telefon"`)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Stajnia", items[0].Title)
	assert.Equal(t, "tel. 600 100 200", items[0].Snippet)
	assert.Equal(t, "https://stajnia.pl", items[0].Link)
	assert.Empty(t, items[1].Link)
}

func TestSearch_NoOrganicResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"search_metadata":{"status":"Success"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	items, err := client.Search(context.Background(), "q")

	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSearch_CustomLocaleAndNum(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en", r.URL.Query().Get("hl"))
		assert.Equal(t, "us", r.URL.Query().Get("gl"))
		assert.Equal(t, "20", r.URL.Query().Get("num"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithLocale("en", "us"), WithNum(20))
	_, err := client.Search(context.Background(), "q")
	require.NoError(t, err)
}

func TestSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid API key"}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	items, err := client.Search(context.Background(), "q")

	require.Error(t, err)
	assert.Nil(t, items)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "401")
}

func TestSearch_TransportErrorIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	base := srv.URL
	srv.Close()

	client := NewClient("k", WithBaseURL(base), WithHTTPClient(&http.Client{Timeout: time.Second}))
	_, err := client.Search(context.Background(), "q")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.StatusCode)
}

func TestFacebookProfile_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "facebook_profile", q.Get("engine"))
		assert.Equal(t, "janekowalski", q.Get("profile_id"))
		_, _ = w.Write([]byte(`{"profile_results":{"name":"Jan Kowalski","phone":"600 100 200"}}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL))
	data, err := client.FacebookProfile(context.Background(), "janekowalski")

	require.NoError(t, err)
	var decoded struct {
		ProfileResults map[string]string `json:"profile_results"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Jan Kowalski", decoded.ProfileResults["name"])
}

func TestFacebookProfile_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL))
	_, err := client.FacebookProfile(context.Background(), "x")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "facebook_profile", apiErr.Engine)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "site:google.com", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	require.NoError(t, NewClient("k", WithBaseURL(srv.URL)).Ping(context.Background()))
}

func TestSearch_RateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(0.001))
	_, err := client.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Search(ctx, "second")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
}

func TestSearch_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"organic_results":[{"title":"ok"}]}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRetry(3, time.Millisecond))
	items, err := client.Search(context.Background(), "q")

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearch_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRetry(2, time.Millisecond))
	_, err := client.Search(context.Background(), "q")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearch_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRetry(5, time.Millisecond))
	_, err := client.Search(context.Background(), "q")

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&APIError{StatusCode: 0}))
	assert.True(t, retryable(&APIError{StatusCode: http.StatusBadGateway}))
	assert.False(t, retryable(&APIError{StatusCode: http.StatusNotFound}))
	assert.False(t, retryable(errors.New("plain")))
}
