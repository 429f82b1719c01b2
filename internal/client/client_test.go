package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhejian/shortlink/internal/model"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	assert.Equal(t, "http://localhost:8080", client.serverURL)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestClient_Shorten(t *testing.T) {
	t.Run("successful creation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/shorten", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req model.ShortenRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "https://example.com", req.LongURL)
			assert.Equal(t, "promo", req.CustomAlias)

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(model.ShortenResponse{Short: "http://localhost:8080/promo"})
		}))
		defer server.Close()

		resp, err := NewClient(server.URL).Shorten(context.Background(), "https://example.com", "promo")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080/promo", resp.Short)
	})

	t.Run("omits an empty alias", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var raw map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
			assert.NotContains(t, raw, "custom_alias")

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(model.ShortenResponse{Short: "http://localhost:8080/1"})
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Shorten(context.Background(), "https://example.com", "")
		require.NoError(t, err)
	})

	t.Run("alias taken", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(model.ErrorResponse{Error: "alias taken"})
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Shorten(context.Background(), "https://example.com", "promo")
		assert.ErrorIs(t, err, ErrAliasTaken)
	})

	t.Run("bad request carries the server message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(model.ErrorResponse{Error: "invalid url"})
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Shorten(context.Background(), "nope", "")

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "server returned status 400: invalid url", err.Error())
	})

	t.Run("invalid JSON response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Shorten(context.Background(), "https://example.com", "")
		assert.ErrorContains(t, err, "failed to decode response")
	})

	t.Run("unreachable server", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		_, err := NewClient(server.URL).Shorten(context.Background(), "https://example.com", "")
		assert.ErrorContains(t, err, "failed to make request")
	})
}

func TestClient_Stats(t *testing.T) {
	t.Run("returns metadata", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/stats/21", r.URL.Path)

			json.NewEncoder(w).Encode(model.StatsResponse{
				Short:     "http://localhost:8080/21",
				LongURL:   "https://example.com",
				CreatedAt: "2024-03-01T12:00:00Z",
				Clicks:    5,
			})
		}))
		defer server.Close()

		stats, err := NewClient(server.URL).Stats(context.Background(), "21")
		require.NoError(t, err)
		assert.Equal(t, int64(5), stats.Clicks)
		assert.Equal(t, "https://example.com", stats.LongURL)
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(model.ErrorResponse{Error: "not found"})
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Stats(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("server error without body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Stats(context.Background(), "abc")
		assert.EqualError(t, err, "server returned status 500")
	})
}
