package api

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zhejian/shortlink/internal/model"
	"github.com/zhejian/shortlink/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler holds HTTP handlers and dependencies.
// It receives interfaces rather than concrete implementations for testability.
type Handler struct {
	links     service.LinkServiceInterface // Link shortening business logic
	db        DBInterface                  // Store for health checks
	cache     CacheInterface               // Cache for health checks, nil when caching is off
	logger    *slog.Logger
	shortBase string // e.g. "http://localhost:8080"
}

// DBInterface defines the store operations needed by the handler.
type DBInterface interface {
	Ping(ctx context.Context) error
}

// CacheInterface defines the cache operations needed by the handler.
type CacheInterface interface {
	Ping(ctx context.Context) error
}

// NewHandler creates a new handler instance with the provided dependencies.
// cache may be nil, in which case health reports it as disabled.
func NewHandler(links service.LinkServiceInterface, db DBInterface, cache CacheInterface, logger *slog.Logger, shortBase string) *Handler {
	return &Handler{
		links:     links,
		db:        db,
		cache:     cache,
		logger:    logger,
		shortBase: strings.TrimRight(shortBase, "/"),
	}
}

// RegisterRoutes registers all route definitions and the HTML templates on
// the given Gin engine. The caller adds middleware first so it runs in the
// correct order.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	r.GET("/health", h.healthCheck)

	api := r.Group("/api")
	{
		api.POST("/shorten", h.shorten)
		api.GET("/stats/:code", h.stats)
	}

	r.GET("/", h.index)
	r.POST("/", h.createFromForm)
	r.GET("/stats/:code", h.statsPage)

	// Catch-all short code route, static routes above take priority
	r.GET("/:code", h.redirect)
}

// SetupRouter returns a bare engine with recovery and all routes, used by tests.
func (h *Handler) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h.RegisterRoutes(r)
	return r
}

// healthCheck handles GET /health
// Response codes:
//   - 200 OK: All dependencies are healthy
//   - 503 Service Unavailable: One or more dependencies are down
func (h *Handler) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	status := "ok"
	code := http.StatusOK
	deps := gin.H{"cache": "disabled", "database": "up"}

	if h.cache != nil {
		deps["cache"] = "up"
		if err := h.cache.Ping(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			deps["cache"] = "down"
		}
	}
	if err := h.db.Ping(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		deps["database"] = "down"
	}

	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}

// shorten handles POST /api/shorten
// Response codes:
//   - 201 Created: {"short": "<short link>"}
//   - 400 Bad Request: invalid url or invalid alias
//   - 409 Conflict: alias taken
//   - 500 Internal Server Error: unexpected error
func (h *Handler) shorten(c *gin.Context) {
	ctx := c.Request.Context()
	var req model.ShortenRequest

	// An unreadable body carries no long_url
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body",
			slog.String("error", err.Error()),
			slog.String("path", c.Request.URL.Path))
		h.errorResponse(c, http.StatusBadRequest, "invalid url")
		return
	}

	code, err := h.links.Create(ctx, req.LongURL, req.CustomAlias)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			h.errorResponse(c, http.StatusBadRequest, "invalid url")
		case errors.Is(err, service.ErrAliasTaken):
			h.errorResponse(c, http.StatusConflict, "alias taken")
		case errors.Is(err, service.ErrInvalidAlias):
			h.errorResponse(c, http.StatusBadRequest, "invalid alias")
		default:
			h.logger.ErrorContext(ctx, "unexpected error creating short link",
				slog.String("error", err.Error()))
			h.errorResponse(c, http.StatusInternalServerError, "internal error")
		}
		return
	}

	c.JSON(http.StatusCreated, model.ShortenResponse{Short: h.shortLink(code)})
}

// stats handles GET /api/stats/:code
// Returns link metadata without counting a visit.
func (h *Handler) stats(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	link, err := h.links.Stats(ctx, code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.errorResponse(c, http.StatusNotFound, "not found")
			return
		}
		h.logger.ErrorContext(ctx, "unexpected error fetching stats",
			slog.String("error", err.Error()),
			slog.String("code", code))
		h.errorResponse(c, http.StatusInternalServerError, "internal error")
		return
	}

	c.JSON(http.StatusOK, model.StatsResponse{
		Short:       h.shortLink(link.ShortCode()),
		LongURL:     link.LongURL,
		CustomAlias: link.CustomAlias,
		CreatedAt:   link.CreatedAt.UTC().Format(time.RFC3339),
		Clicks:      link.Clicks,
	})
}

func (h *Handler) shortLink(code string) string {
	return h.shortBase + "/" + code
}

// errorResponse sends a JSON error body.
func (h *Handler) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, model.ErrorResponse{Error: message})
}
