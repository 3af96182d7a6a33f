package handler

import (
	"context"
	"time"

	"news-stock-explorer/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type SummaryProvider interface {
	GetSummary(ctx context.Context, ticker string, from, to time.Time) (*domain.Summary, error)
}

type TickerLister interface {
	ListTickers(ctx context.Context) ([]domain.Ticker, error)
}

type ModelMetricsSource interface {
	Metrics(ctx context.Context) (*domain.ModelMetrics, error)
}

type Handler struct {
	tracer      trace.Tracer
	summaries   SummaryProvider
	tickers     TickerLister
	metrics     ModelMetricsSource
	mlTrainer   MLTrainingRunner
	invalidator ModelCacheInvalidator
	history     ModelHistorySource
}

func New(tracer trace.Tracer, summaries SummaryProvider, tickers TickerLister, metrics ModelMetricsSource) *Handler {
	return &Handler{
		tracer:    tracer,
		summaries: summaries,
		tickers:   tickers,
		metrics:   metrics,
	}
}

// SetMLTrainingRunner wires the on-demand training endpoint; without it the
// endpoint answers 503.
func (h *Handler) SetMLTrainingRunner(runner MLTrainingRunner, invalidator ModelCacheInvalidator) {
	h.mlTrainer = runner
	h.invalidator = invalidator
}

// SetModelHistory wires the model version listing endpoint; without it the
// endpoint answers 503.
func (h *Handler) SetModelHistory(history ModelHistorySource) {
	h.history = history
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)
	r.GET("/api/tickers", h.GetTickers)
	r.GET("/api/summary", h.GetSummary)
	r.GET("/api/model-metrics", h.GetModelMetrics)
	r.GET("/api/ml/models", h.ListModelVersions)
	r.POST("/api/ml/train", APIKeyAuth(apiKey), h.TriggerMLTraining)
}
