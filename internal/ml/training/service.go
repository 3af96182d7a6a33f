// Package training orchestrates model training: it assembles the labeled
// feature table across tickers, splits it chronologically, fits both model
// families and records versioned artifacts with their evaluation metrics.
package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"news-stock-explorer/internal/domain"
	"news-stock-explorer/internal/features"
	"news-stock-explorer/internal/ml/common"
	"news-stock-explorer/internal/ml/eval"
	"news-stock-explorer/internal/ml/models/forest"
	"news-stock-explorer/internal/ml/models/logreg"

	"go.opentelemetry.io/otel/trace"
)

type TickerStore interface {
	ListTickers(ctx context.Context) ([]domain.Ticker, error)
}

type PriceStore interface {
	ListPrices(ctx context.Context, ticker string) ([]domain.PricePoint, error)
}

type ArticleStore interface {
	ListArticles(ctx context.Context, ticker string, relevantOnly bool) ([]domain.Article, error)
}

type ModelRegistry interface {
	NextVersion(ctx context.Context, modelKey string) (int, error)
	InsertModelVersion(ctx context.Context, model domain.ModelVersion) (*domain.ModelVersion, error)
	ActivateModel(ctx context.Context, modelKey string, version int) error
}

type Config struct {
	// TestFraction of rows (chronologically last) held out for evaluation.
	TestFraction float64
	// LabelThreshold a forward 3-day return must exceed to count as positive.
	LabelThreshold float64
	// PrimaryModel is the model key activated after a successful run.
	PrimaryModel string
}

type Service struct {
	tracer   trace.Tracer
	tickers  TickerStore
	prices   PriceStore
	articles ArticleStore
	registry ModelRegistry
	cfg      Config
}

type Result struct {
	ModelKey  string               `json:"model_key"`
	Version   int                  `json:"version"`
	Metrics   *domain.ModelMetrics `json:"metrics,omitempty"`
	Activated bool                 `json:"activated"`
}

func NewService(tracer trace.Tracer, tickers TickerStore, prices PriceStore, articles ArticleStore, registry ModelRegistry, cfg Config) *Service {
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = 0.2
	}
	if cfg.PrimaryModel == "" {
		cfg.PrimaryModel = common.ModelKeyLogReg
	}
	return &Service{tracer: tracer, tickers: tickers, prices: prices, articles: articles, registry: registry, cfg: cfg}
}

// RunTraining executes one full training run. Tickers with unusable data are
// skipped and logged; the run fails only when no ticker yields any labeled
// rows or persistence fails.
func (s *Service) RunTraining(ctx context.Context, now time.Time) ([]Result, error) {
	ctx, span := s.tracer.Start(ctx, "ml-training.run")
	defer span.End()

	rows, nTickers, err := s.collectRows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("no labeled feature rows across any ticker")
	}

	trainRows, testRows := features.Split(rows, s.cfg.TestFraction)
	trainX, trainY := common.Matrix(trainRows)
	testX, testY := common.Matrix(testRows)

	base := baseMetrics{
		trainRows:      trainRows,
		testRows:       testRows,
		trainY:         trainY,
		testY:          testY,
		nTickers:       nTickers,
		labelThreshold: s.cfg.LabelThreshold,
	}

	results := make([]Result, 0, 2)

	lrResult, err := s.trainLogistic(ctx, now, trainX, trainY, testX, base)
	if err != nil {
		return nil, err
	}
	results = append(results, lrResult)

	rfResult, err := s.trainForest(ctx, now, trainX, trainY, testX, base)
	if err != nil {
		return nil, err
	}
	results = append(results, rfResult)

	for i := range results {
		if results[i].ModelKey != s.cfg.PrimaryModel {
			continue
		}
		if err := s.registry.ActivateModel(ctx, results[i].ModelKey, results[i].Version); err != nil {
			return nil, fmt.Errorf("activate %s v%d: %w", results[i].ModelKey, results[i].Version, err)
		}
		results[i].Activated = true
	}
	return results, nil
}

func (s *Service) collectRows(ctx context.Context) ([]domain.FeatureRow, int, error) {
	tickers, err := s.tickers.ListTickers(ctx)
	if err != nil {
		return nil, 0, err
	}

	var rows []domain.FeatureRow
	contributing := 0
	for _, t := range tickers {
		prices, err := s.prices.ListPrices(ctx, t.Symbol)
		if err != nil {
			log.Printf("training: skipping %s: load prices: %v", t.Symbol, err)
			continue
		}
		articles, err := s.articles.ListArticles(ctx, t.Symbol, true)
		if err != nil {
			log.Printf("training: skipping %s: load articles: %v", t.Symbol, err)
			continue
		}
		outcome := features.ForTicker(t.Symbol, prices, articles, s.cfg.LabelThreshold)
		if outcome.Skipped() {
			log.Printf("training: skipping %s: %v", t.Symbol, outcome.Err)
			continue
		}
		rows = append(rows, outcome.Rows...)
		contributing++
	}
	return rows, contributing, nil
}

func (s *Service) trainLogistic(ctx context.Context, now time.Time, trainX [][]float64, trainY []int, testX [][]float64, base baseMetrics) (Result, error) {
	bestC := selectC(trainX, trainY, []float64{0.01, 0.1, 1.0, 10.0})
	threshold := tuneThreshold(trainX, trainY, bestC)

	opts := logreg.DefaultTrainOptions()
	opts.C = bestC
	model, err := logreg.Train(trainX, trainY, common.FeatureNames, opts)
	if err != nil {
		return Result{}, fmt.Errorf("train logistic regression: %w", err)
	}
	blob, err := model.MarshalBinary()
	if err != nil {
		return Result{}, fmt.Errorf("marshal logistic regression: %w", err)
	}

	metrics := base.assemble(common.ModelKeyLogReg, model.PredictBatch(trainX), model.PredictBatch(testX), threshold)
	metrics.BestC = &bestC

	hyperparams := map[string]any{
		"c":             bestC,
		"learning_rate": opts.LearningRate,
		"epochs":        opts.Epochs,
	}
	return s.persist(ctx, common.ModelKeyLogReg, common.ArtifactFormatLogReg, now, blob, hyperparams, metrics, base)
}

func (s *Service) trainForest(ctx context.Context, now time.Time, trainX [][]float64, trainY []int, testX [][]float64, base baseMetrics) (Result, error) {
	opts := forest.DefaultTrainOptions()
	model, err := forest.Train(trainX, trainY, common.FeatureNames, opts)
	if err != nil {
		return Result{}, fmt.Errorf("train random forest: %w", err)
	}
	blob, err := model.MarshalBinary()
	if err != nil {
		return Result{}, fmt.Errorf("marshal random forest: %w", err)
	}

	metrics := base.assemble(common.ModelKeyForest, model.PredictBatch(trainX), model.PredictBatch(testX), 0.5)

	hyperparams := map[string]any{
		"n_estimators":     opts.Trees,
		"max_depth":        opts.MaxDepth,
		"min_samples_leaf": opts.MinSamplesLeaf,
		"random_state":     opts.Seed,
	}
	return s.persist(ctx, common.ModelKeyForest, common.ArtifactFormatForest, now, blob, hyperparams, metrics, base)
}

func (s *Service) persist(
	ctx context.Context,
	modelKey string,
	artifactFormat string,
	now time.Time,
	blob []byte,
	hyperparams map[string]any,
	metrics *domain.ModelMetrics,
	base baseMetrics,
) (Result, error) {
	version, err := s.registry.NextVersion(ctx, modelKey)
	if err != nil {
		return Result{}, err
	}
	hyperJSON, _ := json.Marshal(hyperparams)
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return Result{}, fmt.Errorf("marshal metrics: %w", err)
	}

	trainedFrom, trainedTo := base.dataRange()
	inserted, err := s.registry.InsertModelVersion(ctx, domain.ModelVersion{
		ModelKey:          modelKey,
		Version:           version,
		FeatureSetVersion: features.FeatureSetVersion,
		TrainedFrom:       trainedFrom,
		TrainedTo:         trainedTo,
		TrainedAt:         now.UTC(),
		HyperparamsJSON:   string(hyperJSON),
		MetricsJSON:       string(metricsJSON),
		ArtifactFormat:    artifactFormat,
		ArtifactBlob:      blob,
		IsActive:          false,
	})
	if err != nil {
		return Result{}, fmt.Errorf("insert %s version: %w", modelKey, err)
	}
	return Result{ModelKey: modelKey, Version: inserted.Version, Metrics: metrics}, nil
}

// baseMetrics carries the split-level facts shared by both models' metric
// payloads.
type baseMetrics struct {
	trainRows      []domain.FeatureRow
	testRows       []domain.FeatureRow
	trainY         []int
	testY          []int
	nTickers       int
	labelThreshold float64
}

func (b baseMetrics) assemble(modelType string, trainProbs, testProbs []float64, threshold float64) *domain.ModelMetrics {
	trainPred := eval.Binarize(trainProbs, threshold)
	testPred := eval.Binarize(testProbs, threshold)

	m := &domain.ModelMetrics{
		ModelType:             modelType,
		TrainAccuracy:         eval.Accuracy(b.trainY, trainPred),
		TrainBalancedAccuracy: eval.BalancedAccuracy(b.trainY, trainPred),
		NTrain:                len(b.trainY),
		NTest:                 len(b.testY),
		ClassDistTrain:        eval.ClassDistribution(b.trainY),
		ClassDistTest:         eval.ClassDistribution(b.testY),
		NTickers:              b.nTickers,
		FeatureNames:          append([]string(nil), common.FeatureNames...),
		LabelThreshold:        b.labelThreshold,
	}
	thr := threshold
	m.DecisionThreshold = &thr

	if len(b.testY) > 0 {
		m.Accuracy = eval.Accuracy(b.testY, testPred)
		m.BaselineAccuracy = eval.BaselineAccuracy(b.testY)
		m.BalancedAccuracy = eval.BalancedAccuracy(b.testY, testPred)
		m.AUC = eval.AUC(b.testY, testProbs)
		m.RocAUC = m.AUC
		m.PrecisionPos, m.RecallPos, m.F1Pos = eval.PrecisionRecallF1(b.testY, testPred, 1)
		m.PrecisionNeg, m.RecallNeg, m.F1Neg = eval.PrecisionRecallF1(b.testY, testPred, 0)
		m.Confusion = eval.Confusion(b.testY, testPred)
	}

	if len(b.trainRows) > 0 {
		m.TrainStartDate = b.trainRows[0].Date.Format("2006-01-02")
		m.TrainEndDate = b.trainRows[len(b.trainRows)-1].Date.Format("2006-01-02")
	}
	if len(b.testRows) > 0 {
		m.TestStartDate = b.testRows[0].Date.Format("2006-01-02")
		m.TestEndDate = b.testRows[len(b.testRows)-1].Date.Format("2006-01-02")
	}
	return m
}

// dataRange spans the full labeled dataset, train plus test.
func (b baseMetrics) dataRange() (time.Time, time.Time) {
	var from, to time.Time
	if len(b.trainRows) > 0 {
		from = b.trainRows[0].Date
		to = b.trainRows[len(b.trainRows)-1].Date
	}
	if len(b.testRows) > 0 {
		if from.IsZero() {
			from = b.testRows[0].Date
		}
		to = b.testRows[len(b.testRows)-1].Date
	}
	return from, to
}
