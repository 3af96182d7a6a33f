package training

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"news-stock-explorer/internal/domain"
	"news-stock-explorer/internal/ml/common"

	"go.opentelemetry.io/otel/trace/noop"
)

type fakeStores struct {
	tickers   []domain.Ticker
	prices    map[string][]domain.PricePoint
	articles  map[string][]domain.Article
	priceErrs map[string]error
}

func (f *fakeStores) ListTickers(ctx context.Context) ([]domain.Ticker, error) {
	return f.tickers, nil
}

func (f *fakeStores) ListPrices(ctx context.Context, ticker string) ([]domain.PricePoint, error) {
	if err := f.priceErrs[ticker]; err != nil {
		return nil, err
	}
	return f.prices[ticker], nil
}

func (f *fakeStores) ListArticles(ctx context.Context, ticker string, relevantOnly bool) ([]domain.Article, error) {
	return f.articles[ticker], nil
}

type fakeRegistry struct {
	nextVersion map[string]int
	inserted    []domain.ModelVersion
	activated   map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{nextVersion: map[string]int{}, activated: map[string]int{}}
}

func (f *fakeRegistry) NextVersion(ctx context.Context, modelKey string) (int, error) {
	f.nextVersion[modelKey]++
	return f.nextVersion[modelKey], nil
}

func (f *fakeRegistry) InsertModelVersion(ctx context.Context, model domain.ModelVersion) (*domain.ModelVersion, error) {
	model.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, model)
	return &model, nil
}

func (f *fakeRegistry) ActivateModel(ctx context.Context, modelKey string, version int) error {
	f.activated[modelKey] = version
	return nil
}

// syntheticTicker builds a price series whose drift follows block-persistent
// sentiment, so the sentiment features genuinely predict forward returns.
func syntheticTicker(symbol string, days int) ([]domain.PricePoint, []domain.Article) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	close := 100.0
	prices := make([]domain.PricePoint, 0, days)
	articles := make([]domain.Article, 0, days)
	for i := 0; i < days; i++ {
		sentiment := 1.0
		if (i/6)%2 == 1 {
			sentiment = -1.0
		}
		date := start.AddDate(0, 0, i)
		prices = append(prices, domain.PricePoint{
			Ticker: symbol, Date: date,
			Open: close, High: close, Low: close, Close: close, Volume: 1000,
		})
		score := sentiment
		relevance := 0.9
		label := domain.SentimentPositive
		if sentiment < 0 {
			label = domain.SentimentNegative
		}
		articles = append(articles, domain.Article{
			Ticker:         symbol,
			PublishedAt:    date.Add(10 * time.Hour),
			Headline:       "daily note",
			URL:            symbol + "/" + date.Format("2006-01-02"),
			IsRelevant:     true,
			RelevanceScore: &relevance,
			SentimentScore: &score,
			SentimentLabel: &label,
		})
		close *= 1 + 0.02*sentiment
	}
	return prices, articles
}

func newFixture(days int) (*fakeStores, *fakeRegistry) {
	stores := &fakeStores{
		tickers:  []domain.Ticker{{Symbol: "AAPL"}, {Symbol: "MSFT"}, {Symbol: "EMPTY"}},
		prices:   map[string][]domain.PricePoint{},
		articles: map[string][]domain.Article{},
	}
	for _, sym := range []string{"AAPL", "MSFT"} {
		p, a := syntheticTicker(sym, days)
		stores.prices[sym] = p
		stores.articles[sym] = a
	}
	return stores, newFakeRegistry()
}

func TestRunTrainingPersistsBothModels(t *testing.T) {
	stores, reg := newFixture(80)
	svc := NewService(noop.NewTracerProvider().Tracer("test"), stores, stores, stores, reg, Config{
		TestFraction: 0.2,
		PrimaryModel: common.ModelKeyLogReg,
	})

	results, err := svc.RunTraining(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("training failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ModelKey != common.ModelKeyLogReg || results[1].ModelKey != common.ModelKeyForest {
		t.Fatalf("unexpected model keys: %s, %s", results[0].ModelKey, results[1].ModelKey)
	}
	if len(reg.inserted) != 2 {
		t.Fatalf("expected 2 inserted versions, got %d", len(reg.inserted))
	}

	// Both tickers contribute 77 labeled rows each; the horizon drops 3.
	m := results[0].Metrics
	if m.NTrain+m.NTest != 154 {
		t.Fatalf("n_train+n_test = %d, want 154", m.NTrain+m.NTest)
	}
	if m.NTest != 30 {
		t.Fatalf("n_test = %d, want 30", m.NTest)
	}
	if m.NTickers != 2 {
		t.Fatalf("n_tickers = %d, want 2", m.NTickers)
	}
	if m.BestC == nil {
		t.Fatal("logistic metrics should carry best_c")
	}
	if m.DecisionThreshold == nil {
		t.Fatal("logistic metrics should carry decision_threshold")
	}
	if m.TrainStartDate == "" || m.TestEndDate == "" {
		t.Fatalf("date range missing: %q..%q", m.TrainStartDate, m.TestEndDate)
	}

	rf := results[1].Metrics
	if rf.BestC != nil {
		t.Fatal("forest metrics should not carry best_c")
	}
	if rf.DecisionThreshold == nil || *rf.DecisionThreshold != 0.5 {
		t.Fatalf("forest threshold = %v, want 0.5", rf.DecisionThreshold)
	}
}

func TestRunTrainingReportsClassBalanceAndConfusion(t *testing.T) {
	stores, reg := newFixture(80)
	svc := NewService(noop.NewTracerProvider().Tracer("test"), stores, stores, stores, reg, Config{TestFraction: 0.2})

	results, err := svc.RunTraining(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("training failed: %v", err)
	}
	m := results[0].Metrics

	sum := func(d map[string]int) int {
		total := 0
		for _, n := range d {
			total += n
		}
		return total
	}
	if sum(m.ClassDistTrain) != m.NTrain {
		t.Fatalf("train class distribution sums to %d, want %d", sum(m.ClassDistTrain), m.NTrain)
	}
	if sum(m.ClassDistTest) != m.NTest {
		t.Fatalf("test class distribution sums to %d, want %d", sum(m.ClassDistTest), m.NTest)
	}
	if m.RocAUC != m.AUC {
		t.Fatal("roc_auc should alias auc")
	}
	c := m.Confusion
	if c.TN+c.FP+c.FN+c.TP != m.NTest {
		t.Fatalf("confusion counts sum to %d, want %d", c.TN+c.FP+c.FN+c.TP, m.NTest)
	}
}

func TestRunTrainingSkipsTickerWithStoreError(t *testing.T) {
	stores, reg := newFixture(60)
	stores.priceErrs = map[string]error{"AAPL": errors.New("connection reset")}
	svc := NewService(noop.NewTracerProvider().Tracer("test"), stores, stores, stores, reg, Config{TestFraction: 0.2})

	results, err := svc.RunTraining(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("training should survive a single failing ticker: %v", err)
	}
	if n := results[0].Metrics.NTickers; n != 1 {
		t.Fatalf("n_tickers = %d, want 1", n)
	}
}

func TestRunTrainingActivatesPrimaryOnly(t *testing.T) {
	stores, reg := newFixture(60)
	svc := NewService(noop.NewTracerProvider().Tracer("test"), stores, stores, stores, reg, Config{
		PrimaryModel: common.ModelKeyForest,
	})

	results, err := svc.RunTraining(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("training failed: %v", err)
	}
	if results[0].Activated {
		t.Fatal("logistic model should not be activated when forest is primary")
	}
	if !results[1].Activated {
		t.Fatal("forest model should be activated")
	}
	if v, ok := reg.activated[common.ModelKeyForest]; !ok || v != results[1].Version {
		t.Fatalf("activated version = %d, want %d", v, results[1].Version)
	}
	if _, ok := reg.activated[common.ModelKeyLogReg]; ok {
		t.Fatal("logistic model should not appear in activations")
	}
}

func TestRunTrainingFailsWithoutRows(t *testing.T) {
	stores := &fakeStores{
		tickers:  []domain.Ticker{{Symbol: "EMPTY"}},
		prices:   map[string][]domain.PricePoint{},
		articles: map[string][]domain.Article{},
	}
	svc := NewService(noop.NewTracerProvider().Tracer("test"), stores, stores, stores, newFakeRegistry(), Config{})

	if _, err := svc.RunTraining(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error when no ticker yields rows")
	}
}

func TestRunTrainingTinyDatasetHasNoTestMetrics(t *testing.T) {
	// 7 price days yield 4 labeled rows; int(4*0.2) leaves an empty test set.
	stores := &fakeStores{
		tickers:  []domain.Ticker{{Symbol: "AAPL"}},
		prices:   map[string][]domain.PricePoint{},
		articles: map[string][]domain.Article{},
	}
	p, a := syntheticTicker("AAPL", 7)
	stores.prices["AAPL"] = p
	stores.articles["AAPL"] = a

	svc := NewService(noop.NewTracerProvider().Tracer("test"), stores, stores, stores, newFakeRegistry(), Config{TestFraction: 0.2})
	results, err := svc.RunTraining(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("training failed: %v", err)
	}
	m := results[0].Metrics
	if m.NTest != 0 {
		t.Fatalf("n_test = %d, want 0", m.NTest)
	}
	if m.AUC != nil || m.RocAUC != nil {
		t.Fatal("auc should be null with no test rows")
	}
	if m.Accuracy != 0 || m.BalancedAccuracy != 0 {
		t.Fatal("test metrics should stay zero with no test rows")
	}
}

func TestMetricsJSONPreservesNullAUC(t *testing.T) {
	stores := &fakeStores{
		tickers:  []domain.Ticker{{Symbol: "AAPL"}},
		prices:   map[string][]domain.PricePoint{},
		articles: map[string][]domain.Article{},
	}
	p, a := syntheticTicker("AAPL", 7)
	stores.prices["AAPL"] = p
	stores.articles["AAPL"] = a

	reg := newFakeRegistry()
	svc := NewService(noop.NewTracerProvider().Tracer("test"), stores, stores, stores, reg, Config{TestFraction: 0.2})
	if _, err := svc.RunTraining(context.Background(), time.Now()); err != nil {
		t.Fatalf("training failed: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(reg.inserted[0].MetricsJSON), &payload); err != nil {
		t.Fatalf("metrics json invalid: %v", err)
	}
	if v, ok := payload["roc_auc"]; !ok || v != nil {
		t.Fatalf("roc_auc = %v, want explicit null", v)
	}
	if _, ok := payload["confusion_matrix"]; !ok {
		t.Fatal("confusion_matrix missing from payload")
	}
}
