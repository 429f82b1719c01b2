package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zhejian/shortlink/internal/api"
	"github.com/zhejian/shortlink/internal/model"
	"github.com/zhejian/shortlink/internal/service"
)

const shortBase = "http://localhost:8080"

func init() {
	gin.SetMode(gin.TestMode)
}

// MockLinkService mocks the service layer
type MockLinkService struct {
	mock.Mock
}

func (m *MockLinkService) Create(ctx context.Context, longURL, customAlias string) (string, error) {
	args := m.Called(ctx, longURL, customAlias)
	return args.String(0), args.Error(1)
}

func (m *MockLinkService) Resolve(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

func (m *MockLinkService) Stats(ctx context.Context, code string) (*model.Link, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Link), args.Error(1)
}

// MockPinger serves as both the store and the cache for health checks
type MockPinger struct {
	shouldFail bool
}

func (m *MockPinger) Ping(ctx context.Context) error {
	if m.shouldFail {
		return assert.AnError
	}
	return nil
}

func newRouter(svc service.LinkServiceInterface, db api.DBInterface, cache api.CacheInterface) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewHandler(svc, db, cache, logger, shortBase+"/").SetupRouter()
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		db         *MockPinger
		cache      api.CacheInterface
		wantCode   int
		wantStatus string
		wantDB     string
		wantCache  string
	}{
		{"all dependencies healthy", &MockPinger{}, &MockPinger{}, http.StatusOK, "ok", "up", "up"},
		{"cache down", &MockPinger{}, &MockPinger{shouldFail: true}, http.StatusServiceUnavailable, "degraded", "up", "down"},
		{"database down", &MockPinger{shouldFail: true}, &MockPinger{}, http.StatusServiceUnavailable, "degraded", "down", "up"},
		{"cache disabled", &MockPinger{}, nil, http.StatusOK, "ok", "up", "disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(new(MockLinkService), tt.db, tt.cache)

			w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.wantStatus, body["status"])
			deps := body["dependencies"].(map[string]any)
			assert.Equal(t, tt.wantDB, deps["database"])
			assert.Equal(t, tt.wantCache, deps["cache"])
		})
	}
}

func TestHandler_APIShorten(t *testing.T) {
	t.Run("creates a generated code", func(t *testing.T) {
		svc := new(MockLinkService)
		svc.On("Create", mock.Anything, "https://example.com", "").Return("1", nil)
		router := newRouter(svc, &MockPinger{}, nil)

		w := serve(router, jsonRequest(t, http.MethodPost, "/api/shorten",
			map[string]string{"long_url": "https://example.com"}))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "http://localhost:8080/1", decodeBody(t, w)["short"])
		svc.AssertExpectations(t)
	})

	t.Run("creates a custom alias", func(t *testing.T) {
		svc := new(MockLinkService)
		svc.On("Create", mock.Anything, "https://example.com/sale", "promo").Return("promo", nil)
		router := newRouter(svc, &MockPinger{}, nil)

		w := serve(router, jsonRequest(t, http.MethodPost, "/api/shorten",
			map[string]string{"long_url": "https://example.com/sale", "custom_alias": "promo"}))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "http://localhost:8080/promo", decodeBody(t, w)["short"])
	})

	errorCases := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"invalid url", service.ErrInvalidURL, http.StatusBadRequest, "invalid url"},
		{"alias taken", service.ErrAliasTaken, http.StatusConflict, "alias taken"},
		{"invalid alias", service.ErrInvalidAlias, http.StatusBadRequest, "invalid alias"},
		{"unexpected failure", errors.New("connection reset"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockLinkService)
			svc.On("Create", mock.Anything, "https://example.com", "x").Return("", tc.err)
			router := newRouter(svc, &MockPinger{}, nil)

			w := serve(router, jsonRequest(t, http.MethodPost, "/api/shorten",
				map[string]string{"long_url": "https://example.com", "custom_alias": "x"}))

			assert.Equal(t, tc.wantCode, w.Code)
			assert.Equal(t, tc.wantBody, decodeBody(t, w)["error"])
		})
	}

	t.Run("malformed body is an invalid url", func(t *testing.T) {
		svc := new(MockLinkService)
		router := newRouter(svc, &MockPinger{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := serve(router, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid url", decodeBody(t, w)["error"])
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandler_APIStats(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns metadata", func(t *testing.T) {
		svc := new(MockLinkService)
		svc.On("Stats", mock.Anything, "promo").Return(&model.Link{
			ID: 7, LongURL: "https://example.com/sale", CustomAlias: "promo", CreatedAt: created, Clicks: 3,
		}, nil)
		router := newRouter(svc, &MockPinger{}, nil)

		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/stats/promo", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "http://localhost:8080/promo", body["short"])
		assert.Equal(t, "https://example.com/sale", body["long_url"])
		assert.Equal(t, "promo", body["custom_alias"])
		assert.Equal(t, "2024-03-01T12:00:00Z", body["created_at"])
		assert.Equal(t, float64(3), body["clicks"])
	})

	t.Run("omits an empty alias", func(t *testing.T) {
		svc := new(MockLinkService)
		svc.On("Stats", mock.Anything, "21").Return(&model.Link{
			ID: 125, LongURL: "https://example.com", CreatedAt: created,
		}, nil)
		router := newRouter(svc, &MockPinger{}, nil)

		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/stats/21", nil))

		body := decodeBody(t, w)
		assert.Equal(t, "http://localhost:8080/21", body["short"])
		assert.NotContains(t, body, "custom_alias")
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockLinkService)
		svc.On("Stats", mock.Anything, "nope").Return(nil, service.ErrNotFound)
		router := newRouter(svc, &MockPinger{}, nil)

		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/stats/nope", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not found", decodeBody(t, w)["error"])
	})

	t.Run("store failure", func(t *testing.T) {
		svc := new(MockLinkService)
		svc.On("Stats", mock.Anything, "abc").Return(nil, errors.New("timeout"))
		router := newRouter(svc, &MockPinger{}, nil)

		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/stats/abc", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal error", decodeBody(t, w)["error"])
	})
}

func TestHandler_Redirect(t *testing.T) {
	t.Run("redirects with 302", func(t *testing.T) {
		svc := new(MockLinkService)
		svc.On("Resolve", mock.Anything, "21").Return("https://example.com/page", nil)
		router := newRouter(svc, &MockPinger{}, nil)

		w := serve(router, httptest.NewRequest(http.MethodGet, "/21", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://example.com/page", w.Header().Get("Location"))
		svc.AssertExpectations(t)
	})

	t.Run("renders the 404 page with the code", func(t *testing.T) {
		svc := new(MockLinkService)
		svc.On("Resolve", mock.Anything, "doesnotexist").Return("", service.ErrNotFound)
		router := newRouter(svc, &MockPinger{}, nil)

		w := serve(router, httptest.NewRequest(http.MethodGet, "/doesnotexist", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "doesnotexist")
	})

	t.Run("renders the error page on failure", func(t *testing.T) {
		svc := new(MockLinkService)
		svc.On("Resolve", mock.Anything, "abc").Return("", errors.New("db down"))
		router := newRouter(svc, &MockPinger{}, nil)

		w := serve(router, httptest.NewRequest(http.MethodGet, "/abc", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "Something went wrong")
	})
}

func TestHandler_Form(t *testing.T) {
	t.Run("renders the empty form", func(t *testing.T) {
		router := newRouter(new(MockLinkService), &MockPinger{}, nil)

		w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `name="long_url"`)
		assert.NotContains(t, w.Body.String(), "short-link")
	})

	t.Run("trims fields and renders the short link", func(t *testing.T) {
		svc := new(MockLinkService)
		svc.On("Create", mock.Anything, "https://example.com", "").Return("1", nil)
		router := newRouter(svc, &MockPinger{}, nil)

		w := serve(router, formRequest(url.Values{
			"long_url":     {"  https://example.com  "},
			"custom_alias": {"   "},
		}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "http://localhost:8080/1")
		assert.Contains(t, w.Body.String(), "Short URL created!")
		svc.AssertExpectations(t)
	})

	flashCases := []struct {
		name string
		err  error
		want string
	}{
		{"invalid url", service.ErrInvalidURL, "Please enter a valid URL (include http:// or https://)"},
		{"alias taken", service.ErrAliasTaken, "This custom alias is already taken. Choose another."},
		{"invalid alias", service.ErrInvalidAlias, "Custom aliases may use letters"},
	}
	for _, tc := range flashCases {
		t.Run("flashes "+tc.name+" across the redirect", func(t *testing.T) {
			svc := new(MockLinkService)
			svc.On("Create", mock.Anything, "https://example.com", "promo").Return("", tc.err)
			router := newRouter(svc, &MockPinger{}, nil)

			w := serve(router, formRequest(url.Values{
				"long_url":     {"https://example.com"},
				"custom_alias": {"promo"},
			}))
			require.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/", w.Header().Get("Location"))
			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)

			// Follow the redirect with the flash cookie
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(cookies[0])
			w = serve(router, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tc.want)
			assert.Contains(t, w.Body.String(), `class="flash error"`)

			cleared := w.Result().Cookies()
			require.Len(t, cleared, 1)
			assert.Negative(t, cleared[0].MaxAge)
		})
	}

	t.Run("ignores a corrupt flash cookie", func(t *testing.T) {
		router := newRouter(new(MockLinkService), &MockPinger{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "shortlink_flash", Value: "!!!"})
		w := serve(router, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), `class="flash`)
	})

	t.Run("renders the error page on failure", func(t *testing.T) {
		svc := new(MockLinkService)
		svc.On("Create", mock.Anything, "https://example.com", "").Return("", errors.New("db down"))
		router := newRouter(svc, &MockPinger{}, nil)

		w := serve(router, formRequest(url.Values{"long_url": {"https://example.com"}}))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandler_StatsPage(t *testing.T) {
	t.Run("shows clicks and the requested short link", func(t *testing.T) {
		svc := new(MockLinkService)
		svc.On("Stats", mock.Anything, "promo").Return(&model.Link{
			ID: 1, LongURL: "https://example.com/sale", CustomAlias: "promo",
			CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), Clicks: 42,
		}, nil)
		router := newRouter(svc, &MockPinger{}, nil)

		w := serve(router, httptest.NewRequest(http.MethodGet, "/stats/promo", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `<dd id="clicks">42</dd>`)
		assert.Contains(t, body, "http://localhost:8080/promo")
		assert.Contains(t, body, "2024-03-01 12:00:00 UTC")
	})

	t.Run("404 for unknown codes", func(t *testing.T) {
		svc := new(MockLinkService)
		svc.On("Stats", mock.Anything, "missing").Return(nil, service.ErrNotFound)
		router := newRouter(svc, &MockPinger{}, nil)

		w := serve(router, httptest.NewRequest(http.MethodGet, "/stats/missing", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "missing")
	})
}
