package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"StockMonitor/internal/model"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPeriod       = model.Period1mo
	ServiceVersion      = "1.0.0"
	ServiceName         = "stock-monitor"
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"

	// SeriesSourceContextKey holds the source that served the request's series.
	SeriesSourceContextKey = "series_source"

	// DefaultStatsWindow is how far back the health check counts attempts.
	DefaultStatsWindow = time.Hour
)

// StockService is the part of monitor.Service the handlers need.
type StockService interface {
	FetchSeries(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, error)
	ComputeIndicators(series *model.PriceSeries) (*model.IndicatorSet, error)
}

// SourceStats reports provider attempt outcomes, keyed by outcome name.
type SourceStats interface {
	OutcomeCounts(source string, since time.Time) (map[string]int, error)
}

// APIHandler serves the price and indicator endpoints.
type APIHandler struct {
	service     StockService
	sources     []string
	timeout     time.Duration
	origins     []string
	stats       SourceStats
	statsWindow time.Duration
}

// HandlerOption configures an APIHandler.
type HandlerOption func(*APIHandler)

// WithAllowedOrigins restricts CORS to the given origins. Empty allows all.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *APIHandler) { h.origins = origins }
}

// WithSourceStats adds per-source attempt counts over window to the health
// check.
func WithSourceStats(stats SourceStats, window time.Duration) HandlerOption {
	return func(h *APIHandler) {
		h.stats = stats
		if window > 0 {
			h.statsWindow = window
		}
	}
}

// NewAPIHandler creates a handler. sources is reported by the health check;
// timeout bounds each request's fetch and defaults to DefaultTimeout.
func NewAPIHandler(service StockService, sources []string, timeout time.Duration, opts ...HandlerOption) *APIHandler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	h := &APIHandler{
		service:     service,
		sources:     sources,
		timeout:     timeout,
		statsWindow: DefaultStatsWindow,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetupRoutes configures all API routes.
func (h *APIHandler) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(h.origins))

	api := router.Group("/api")
	api.GET("/stock/:symbol", h.GetStock)
	api.GET("/indicators/:symbol", h.GetIndicators)
	api.GET("/health", h.HealthCheck)

	return router
}
