package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"news-stock-explorer/internal/domain"
	"news-stock-explorer/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// defaultSummaryWindowDays is used when the caller omits start_date.
const defaultSummaryWindowDays = 90

// GetTickers returns the symbols the service tracks.
func (h *Handler) GetTickers(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-tickers")
	defer span.End()

	tickers, err := h.tickers.ListTickers(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickers": tickers})
}

// GetSummary returns the price, sentiment and model view for one ticker over
// a date window. Dates are YYYY-MM-DD; end_date defaults to today and
// start_date to 90 days before end_date.
func (h *Handler) GetSummary(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-summary")
	defer span.End()

	ticker := strings.ToUpper(strings.TrimSpace(c.Query("ticker")))
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker query parameter is required"})
		return
	}
	span.SetAttributes(attribute.String("ticker", ticker))

	to := domain.DateOf(time.Now().UTC())
	if raw := c.Query("end_date"); raw != "" {
		parsed, err := domain.ParseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date: " + raw})
			return
		}
		to = parsed
	}
	from := to.AddDate(0, 0, -defaultSummaryWindowDays)
	if raw := c.Query("start_date"); raw != "" {
		parsed, err := domain.ParseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date: " + raw})
			return
		}
		from = parsed
	}
	if from.After(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must not be after end_date"})
		return
	}

	summary, err := h.summaries.GetSummary(ctx, ticker, from, to)
	if err != nil {
		if errors.Is(err, service.ErrUnknownTicker) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(summary.PriceSeries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no price data for " + ticker + " in the requested window"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetModelMetrics returns the evaluation metrics of the active model, or 404
// when no model has been trained yet.
func (h *Handler) GetModelMetrics(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-model-metrics")
	defer span.End()

	metrics, err := h.metrics.Metrics(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if metrics == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no trained model available"})
		return
	}
	c.JSON(http.StatusOK, metrics)
}
