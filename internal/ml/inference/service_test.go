package inference

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"news-stock-explorer/internal/domain"
	"news-stock-explorer/internal/ml/common"
	"news-stock-explorer/internal/ml/models/logreg"

	"go.opentelemetry.io/otel/trace/noop"
)

type fakeRegistry struct {
	active map[string]*domain.ModelVersion
	calls  int
}

func (f *fakeRegistry) GetActiveModel(ctx context.Context, modelKey string) (*domain.ModelVersion, error) {
	f.calls++
	return f.active[modelKey], nil
}

func trainedVersion(t *testing.T, baseline float64) *domain.ModelVersion {
	t.Helper()
	samples := make([][]float64, 0, 40)
	labels := make([]int, 0, 40)
	for i := 0; i < 20; i++ {
		samples = append(samples, []float64{-0.5 - float64(i)/40, -0.2, 0, 0.01})
		labels = append(labels, 0)
		samples = append(samples, []float64{0.5 + float64(i)/40, 0.2, 0, 0.01})
		labels = append(labels, 1)
	}
	model, err := logreg.Train(samples, labels, common.FeatureNames, logreg.DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train fixture model: %v", err)
	}
	blob, err := model.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal fixture model: %v", err)
	}
	metricsJSON, _ := json.Marshal(domain.ModelMetrics{
		ModelType:        common.ModelKeyLogReg,
		BaselineAccuracy: baseline,
		NTest:            100,
	})
	return &domain.ModelVersion{
		ModelKey:       common.ModelKeyLogReg,
		Version:        1,
		ArtifactFormat: common.ArtifactFormatLogReg,
		ArtifactBlob:   blob,
		MetricsJSON:    string(metricsJSON),
		IsActive:       true,
	}
}

func windowData(days int) ([]domain.PricePoint, []domain.Article) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	prices := make([]domain.PricePoint, days)
	close := 100.0
	for i := range prices {
		prices[i] = domain.PricePoint{
			Ticker: "AAPL", Date: start.AddDate(0, 0, i),
			Open: close, High: close, Low: close, Close: close, Volume: 500,
		}
		close *= 1.01
	}
	score := 0.8
	articles := []domain.Article{{
		Ticker:         "AAPL",
		PublishedAt:    start.Add(8 * time.Hour),
		IsRelevant:     true,
		SentimentScore: &score,
	}}
	return prices, articles
}

func TestPredictWithoutActiveModel(t *testing.T) {
	svc := NewService(noop.NewTracerProvider().Tracer("test"), &fakeRegistry{active: map[string]*domain.ModelVersion{}}, common.ModelKeyLogReg)

	prices, articles := windowData(10)
	probs, err := svc.Predict(context.Background(), prices, articles)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if probs != nil {
		t.Fatalf("expected nil probabilities without a model, got %d", len(probs))
	}
}

func TestPredictScoresEachLabeledDate(t *testing.T) {
	reg := &fakeRegistry{active: map[string]*domain.ModelVersion{
		common.ModelKeyLogReg: trainedVersion(t, 0.5),
	}}
	svc := NewService(noop.NewTracerProvider().Tracer("test"), reg, common.ModelKeyLogReg)

	prices, articles := windowData(10)
	probs, err := svc.Predict(context.Background(), prices, articles)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	// The forward horizon drops the last three dates.
	if len(probs) != 7 {
		t.Fatalf("expected 7 scored dates, got %d", len(probs))
	}
	for _, p := range probs {
		if p.ProbPositiveReturn < 0 || p.ProbPositiveReturn > 1 {
			t.Fatalf("probability %v out of range on %v", p.ProbPositiveReturn, p.Date)
		}
	}
}

func TestActiveModelCachedAcrossCalls(t *testing.T) {
	reg := &fakeRegistry{active: map[string]*domain.ModelVersion{
		common.ModelKeyLogReg: trainedVersion(t, 0.5),
	}}
	svc := NewService(noop.NewTracerProvider().Tracer("test"), reg, common.ModelKeyLogReg)

	prices, articles := windowData(10)
	for i := 0; i < 3; i++ {
		if _, err := svc.Predict(context.Background(), prices, articles); err != nil {
			t.Fatalf("predict failed: %v", err)
		}
	}
	if reg.calls != 1 {
		t.Fatalf("registry hit %d times, want 1", reg.calls)
	}

	svc.Invalidate()
	if _, err := svc.Predict(context.Background(), prices, articles); err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if reg.calls != 2 {
		t.Fatalf("registry hit %d times after invalidate, want 2", reg.calls)
	}
}

func TestMetricsFromActiveModel(t *testing.T) {
	reg := &fakeRegistry{active: map[string]*domain.ModelVersion{
		common.ModelKeyLogReg: trainedVersion(t, 0.61),
	}}
	svc := NewService(noop.NewTracerProvider().Tracer("test"), reg, common.ModelKeyLogReg)

	m, err := svc.Metrics(context.Background())
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}
	if m == nil || m.BaselineAccuracy != 0.61 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestInsightCommentBands(t *testing.T) {
	// High baseline forces the neutral or negative reading; a mid baseline
	// near the model's mean output produces the neutral comment.
	reg := &fakeRegistry{active: map[string]*domain.ModelVersion{
		common.ModelKeyLogReg: trainedVersion(t, 0.5),
	}}
	svc := NewService(noop.NewTracerProvider().Tracer("test"), reg, common.ModelKeyLogReg)

	prices, articles := windowData(10)
	insight, err := svc.Insight(context.Background(), prices, articles)
	if err != nil {
		t.Fatalf("insight failed: %v", err)
	}
	if insight == nil {
		t.Fatal("expected insight with active model")
	}
	if insight.BaselinePositiveRate != 0.5 {
		t.Fatalf("baseline = %v, want 0.5", insight.BaselinePositiveRate)
	}
	if insight.Comment == "" {
		t.Fatal("expected non-empty comment")
	}

	mean := insight.MeanPositiveProb
	switch {
	case mean > 0.6:
		if want := "predictive of positive returns"; !strings.Contains(insight.Comment, want) {
			t.Fatalf("comment %q should mention %q", insight.Comment, want)
		}
	case mean < 0.4:
		if want := "predictive of negative returns"; !strings.Contains(insight.Comment, want) {
			t.Fatalf("comment %q should mention %q", insight.Comment, want)
		}
	default:
		if want := "modest predictive power"; !strings.Contains(insight.Comment, want) {
			t.Fatalf("comment %q should mention %q", insight.Comment, want)
		}
	}
}

func TestInsightWithoutModel(t *testing.T) {
	svc := NewService(noop.NewTracerProvider().Tracer("test"), &fakeRegistry{active: map[string]*domain.ModelVersion{}}, "")

	prices, articles := windowData(10)
	insight, err := svc.Insight(context.Background(), prices, articles)
	if err != nil {
		t.Fatalf("insight failed: %v", err)
	}
	if insight != nil {
		t.Fatal("expected nil insight without a model")
	}
}
