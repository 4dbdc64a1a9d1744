package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guregu/null/v6"

	"StockMonitor/internal/model"
)

// StockResponse is the body of GET /api/stock/:symbol.
type StockResponse struct {
	Symbol    string       `json:"symbol"`
	Period    model.Period `json:"period"`
	Source    string       `json:"source"`
	FetchedAt time.Time    `json:"fetched_at"`
	Count     int          `json:"count"`
	Bars      []model.Bar  `json:"bars"`
}

// PriceSnapshot is the latest bar of a series.
type PriceSnapshot struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// IndicatorsResponse is the body of GET /api/indicators/:symbol. Undefined
// indicator values are rendered as null.
type IndicatorsResponse struct {
	Symbol     string                `json:"symbol"`
	Period     model.Period          `json:"period"`
	Source     string                `json:"source"`
	Timestamp  time.Time             `json:"timestamp"`
	Price      PriceSnapshot         `json:"price"`
	Indicators map[string]null.Float `json:"indicators"`
	Series     *model.IndicatorSet   `json:"series,omitempty"`
}

// GetStock handles GET /api/stock/:symbol?period=
func (h *APIHandler) GetStock(c *gin.Context) {
	series, ok := h.fetch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, StockResponse{
		Symbol:    series.Symbol,
		Period:    series.Period,
		Source:    series.Source,
		FetchedAt: series.FetchedAt,
		Count:     len(series.Bars),
		Bars:      series.Bars,
	})
}

// GetIndicators handles GET /api/indicators/:symbol?period=&full=
func (h *APIHandler) GetIndicators(c *gin.Context) {
	full, err := strconv.ParseBool(c.DefaultQuery("full", "false"))
	if err != nil {
		h.handleError(c, err, http.StatusBadRequest, "full must be a boolean")
		return
	}

	series, ok := h.fetch(c)
	if !ok {
		return
	}
	set, err := h.service.ComputeIndicators(series)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	last := series.Bars[len(series.Bars)-1]
	resp := IndicatorsResponse{
		Symbol:    series.Symbol,
		Period:    series.Period,
		Source:    series.Source,
		Timestamp: last.Time,
		Price: PriceSnapshot{
			Open:   last.Open,
			High:   last.High,
			Low:    last.Low,
			Close:  last.Close,
			Volume: last.Volume,
		},
		Indicators: set.Snapshot(set.Len() - 1),
	}
	if full {
		resp.Series = set
	}
	c.JSON(http.StatusOK, resp)
}

// HealthCheck handles GET /api/health. With source stats configured it also
// reports attempt outcomes per source over the stats window.
func (h *APIHandler) HealthCheck(c *gin.Context) {
	body := gin.H{
		"status":    "OK",
		"service":   ServiceName,
		"version":   ServiceVersion,
		"sources":   h.sources,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.stats != nil {
		since := time.Now().Add(-h.statsWindow)
		attempts := make(map[string]map[string]int, len(h.sources))
		for _, name := range h.sources {
			counts, err := h.stats.OutcomeCounts(name, since)
			if err != nil {
				log.Printf("[WARN] health: attempt counts for %s: %v", name, err)
				continue
			}
			attempts[name] = counts
		}
		body["attempts"] = attempts
		body["attempts_window"] = h.statsWindow.String()
	}
	c.JSON(http.StatusOK, body)
}

// fetch resolves the series named by the request, writing the error response
// itself when it fails.
func (h *APIHandler) fetch(c *gin.Context) (*model.PriceSeries, bool) {
	period, err := model.ParsePeriod(c.DefaultQuery("period", string(DefaultPeriod)))
	if err != nil {
		h.handleServiceError(c, err)
		return nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	series, err := h.service.FetchSeries(ctx, c.Param("symbol"), period)
	if err != nil {
		h.handleServiceError(c, err)
		return nil, false
	}
	if series.Len() == 0 {
		h.handleServiceError(c, model.ErrDataUnavailable)
		return nil, false
	}
	c.Set(SeriesSourceContextKey, series.Source)
	return series, true
}

// handleServiceError maps facade errors to HTTP statuses.
func (h *APIHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrDataUnavailable):
		h.handleError(c, err, http.StatusNotFound, "no data available for symbol")
	case errors.Is(err, model.ErrInvalidSymbol),
		errors.Is(err, model.ErrInvalidPeriod),
		errors.Is(err, model.ErrInsufficientData):
		h.handleError(c, err, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrTimeout):
		h.handleError(c, err, http.StatusGatewayTimeout, "upstream data sources timed out")
	default:
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
	}
}

// handleError logs the error and sends the JSON error body.
func (h *APIHandler) handleError(c *gin.Context, err error, statusCode int, userMessage string) {
	requestID := c.GetString(RequestIDContextKey)
	if requestID == "" {
		requestID = "unknown"
	}

	log.Printf("[ERROR] request_id=%s %s %s status=%d: %v",
		requestID, c.Request.Method, c.Request.URL.Path, statusCode, err)

	c.JSON(statusCode, gin.H{
		"error":      userMessage,
		"request_id": requestID,
	})
}
