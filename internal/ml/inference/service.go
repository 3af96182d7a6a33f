// Package inference serves predictions from the active registered model:
// per-day positive-return probabilities over a price/news window and the
// summary insight derived from them.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"news-stock-explorer/internal/domain"
	"news-stock-explorer/internal/features"
	"news-stock-explorer/internal/ml/common"
	"news-stock-explorer/internal/ml/models/forest"
	"news-stock-explorer/internal/ml/models/logreg"

	"go.opentelemetry.io/otel/trace"
)

type ModelRegistry interface {
	GetActiveModel(ctx context.Context, modelKey string) (*domain.ModelVersion, error)
}

type predictor interface {
	PredictBatch(samples [][]float64) []float64
}

type Service struct {
	tracer   trace.Tracer
	registry ModelRegistry
	modelKey string

	mu      sync.Mutex
	loaded  bool
	model   predictor
	metrics *domain.ModelMetrics
}

func NewService(tracer trace.Tracer, registry ModelRegistry, modelKey string) *Service {
	if modelKey == "" {
		modelKey = common.ModelKeyLogReg
	}
	return &Service{tracer: tracer, registry: registry, modelKey: modelKey}
}

// Invalidate drops the cached model so the next call reloads from the
// registry. Called after a training run activates a new version.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.model = nil
	s.metrics = nil
}

// Predict recomputes features over the given window and scores each date
// with the active model. A missing model yields nil rather than an error so
// callers can degrade gracefully.
func (s *Service) Predict(ctx context.Context, prices []domain.PricePoint, articles []domain.Article) ([]domain.DailyProbability, error) {
	ctx, span := s.tracer.Start(ctx, "ml-inference.predict")
	defer span.End()

	model, _, err := s.activeModel(ctx)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, nil
	}

	rows := features.Build(prices, articles, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	samples := make([][]float64, len(rows))
	for i, r := range rows {
		samples[i] = common.FeatureVector(r)
	}
	probs := model.PredictBatch(samples)

	out := make([]domain.DailyProbability, len(rows))
	for i := range rows {
		out[i] = domain.DailyProbability{
			Date:               rows[i].Date,
			ProbPositiveReturn: common.Clamp01(probs[i]),
		}
	}
	return out, nil
}

// Metrics returns the evaluation metrics stored with the active model, or
// nil when no model is active.
func (s *Service) Metrics(ctx context.Context) (*domain.ModelMetrics, error) {
	ctx, span := s.tracer.Start(ctx, "ml-inference.metrics")
	defer span.End()

	_, metrics, err := s.activeModel(ctx)
	return metrics, err
}

// Insight summarizes the window's mean predicted probability against the
// model's baseline accuracy, with a band of 0.1 separating the positive,
// negative and neutral readings.
func (s *Service) Insight(ctx context.Context, prices []domain.PricePoint, articles []domain.Article) (*domain.ModelInsights, error) {
	probs, err := s.Predict(ctx, prices, articles)
	if err != nil || len(probs) == 0 {
		return nil, err
	}
	_, metrics, err := s.activeModel(ctx)
	if err != nil {
		return nil, err
	}

	mean := 0.0
	for _, p := range probs {
		mean += p.ProbPositiveReturn
	}
	mean /= float64(len(probs))

	baseline := 0.5
	if metrics != nil && metrics.BaselineAccuracy > 0 {
		baseline = metrics.BaselineAccuracy
	}

	var comment string
	switch {
	case mean > baseline+0.1:
		comment = fmt.Sprintf("During this period, sentiment was predictive of positive returns. The model suggests a %.1f%% average probability of positive 3-day returns, compared to a baseline of %.1f%%.", mean*100, baseline*100)
	case mean < baseline-0.1:
		comment = fmt.Sprintf("During this period, sentiment was predictive of negative returns. The model suggests a %.1f%% average probability of positive 3-day returns, compared to a baseline of %.1f%%.", mean*100, baseline*100)
	default:
		comment = fmt.Sprintf("During this period, sentiment showed modest predictive power. The model suggests a %.1f%% average probability of positive 3-day returns, similar to the baseline of %.1f%%.", mean*100, baseline*100)
	}

	return &domain.ModelInsights{
		MeanPositiveProb:     mean,
		BaselinePositiveRate: baseline,
		Comment:              comment,
	}, nil
}

func (s *Service) activeModel(ctx context.Context) (predictor, *domain.ModelMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.model, s.metrics, nil
	}

	active, err := s.registry.GetActiveModel(ctx, s.modelKey)
	if err != nil {
		return nil, nil, err
	}
	if active == nil {
		s.loaded = true
		return nil, nil, nil
	}

	model, err := decodeArtifact(active.ArtifactFormat, active.ArtifactBlob)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s artifact v%d: %w", s.modelKey, active.Version, err)
	}

	var metrics domain.ModelMetrics
	if err := json.Unmarshal([]byte(active.MetricsJSON), &metrics); err != nil {
		log.Printf("inference: invalid metrics json for %s v%d: %v", s.modelKey, active.Version, err)
	} else {
		s.metrics = &metrics
	}

	s.model = model
	s.loaded = true
	return s.model, s.metrics, nil
}

func decodeArtifact(format string, blob []byte) (predictor, error) {
	switch format {
	case common.ArtifactFormatLogReg:
		return logreg.UnmarshalBinary(blob)
	case common.ArtifactFormatForest:
		return forest.UnmarshalBinary(blob)
	default:
		return nil, fmt.Errorf("unknown artifact format %q", format)
	}
}
