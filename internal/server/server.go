package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/zhejian/shortlink/internal/api"
	"github.com/zhejian/shortlink/internal/config"
	"github.com/zhejian/shortlink/internal/events"
	"github.com/zhejian/shortlink/internal/middleware"
	"github.com/zhejian/shortlink/internal/observability"
	"github.com/zhejian/shortlink/internal/repository"
	"github.com/zhejian/shortlink/internal/service"
)

// Deps are the collaborators the router is built from.
type Deps struct {
	Store     repository.Store
	Cache     *redis.Client // nil disables caching
	Publisher events.Publisher
	Logger    *slog.Logger
	Registry  *prometheus.Registry // nil creates a private registry
}

// redisPinger adapts *redis.Client to api.CacheInterface.
type redisPinger struct{ client *redis.Client }

func (r *redisPinger) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NewRouter wires store, cache, service and handler and returns a configured
// Gin router. Useful for tests that don't need the full HTTP server.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	store := deps.Store
	var cachePinger api.CacheInterface
	if deps.Cache != nil {
		store = repository.NewCachedStore(deps.Store, deps.Cache, cfg.Cache.TTL, cfg.Cache.NegativeTTL)
		cachePinger = &redisPinger{client: deps.Cache}
	}

	links := service.NewLinkService(store, service.NewValidatorChecker(), deps.Publisher, deps.Logger)
	handler := api.NewHandler(links, deps.Store, cachePinger, deps.Logger, cfg.App.ShortBase())
	httpMetrics := middleware.NewHTTPMetrics(reg)

	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.Observability.ServiceName),
		middleware.RequestID(),
		middleware.Logging(deps.Logger),
		httpMetrics.Middleware(),
	)
	r.GET("/metrics", gin.WrapH(observability.MetricsHandler(reg)))
	handler.RegisterRoutes(r)

	return r
}

// NewServer returns the HTTP server for the router plus timeouts and address.
func NewServer(cfg *config.Config, deps Deps) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
}
