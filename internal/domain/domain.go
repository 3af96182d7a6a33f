package domain

import "time"

// Ticker identifies one tradable instrument.
type Ticker struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`
}

// DefaultTickers seeds the watchlist on first startup.
var DefaultTickers = []Ticker{
	{Symbol: "AAPL", Name: "Apple Inc."},
	{Symbol: "MSFT", Name: "Microsoft Corporation"},
	{Symbol: "GOOGL", Name: "Alphabet Inc."},
	{Symbol: "AMZN", Name: "Amazon.com Inc."},
	{Symbol: "META", Name: "Meta Platforms Inc."},
	{Symbol: "TSLA", Name: "Tesla Inc."},
	{Symbol: "NVDA", Name: "NVIDIA Corporation"},
	{Symbol: "JPM", Name: "JPMorgan Chase & Co."},
	{Symbol: "V", Name: "Visa Inc."},
	{Symbol: "JNJ", Name: "Johnson & Johnson"},
}

// PricePoint is one daily OHLCV bar. Dates are calendar days stored at UTC
// midnight; there is at most one row per (ticker, date).
type PricePoint struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Article is a news article tied to a ticker. Sentiment fields stay nil until
// the enrichment step fills them, exactly once.
type Article struct {
	ID             int64     `json:"id"`
	Ticker         string    `json:"ticker"`
	PublishedAt    time.Time `json:"published_at"`
	Headline       string    `json:"headline"`
	Source         string    `json:"source"`
	URL            string    `json:"url,omitempty"`
	RawText        string    `json:"raw_text,omitempty"`
	IsRelevant     bool      `json:"is_relevant"`
	RelevanceScore *float64  `json:"relevance_score,omitempty"`
	SentimentScore *float64  `json:"sentiment_score,omitempty"`
	SentimentLabel *string   `json:"sentiment_label,omitempty"`
}

// FeatureRow is one (ticker, date) row of the training table. It is derived
// from prices and articles on every run and never persisted as a source of
// truth. Return1D is NaN on the first observation of a series.
type FeatureRow struct {
	Ticker                 string
	Date                   time.Time
	SentimentAvg           float64
	SentimentRollingMean3D float64
	Return1D               float64
	Volatility5D           float64
	Future3DReturn         float64
	Future3DReturnPositive int
}

// DailyProbability is one day of model output.
type DailyProbability struct {
	Date               time.Time `json:"date"`
	ProbPositiveReturn float64   `json:"prob_positive_return"`
}

// ModelInsights summarizes model output over a window in plain language.
type ModelInsights struct {
	MeanPositiveProb     float64 `json:"mean_positive_prob"`
	BaselinePositiveRate float64 `json:"baseline_positive_rate"`
	Comment              string  `json:"comment"`
}

// SentimentResult is one scored text from the sentiment analyzer.
type SentimentResult struct {
	Score float64
	Label string
}

const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

// ModelVersion is one persisted, immutable model artifact with its metrics.
// At most one version per model key is active for serving.
type ModelVersion struct {
	ID                int64
	ModelKey          string
	Version           int
	FeatureSetVersion string
	TrainedFrom       time.Time
	TrainedTo         time.Time
	TrainedAt         time.Time
	HyperparamsJSON   string
	MetricsJSON       string
	ArtifactFormat    string
	ArtifactBlob      []byte
	IsActive          bool
	ActivatedAt       *time.Time
	CreatedAt         time.Time
}

// SummaryPricePoint and SummarySentimentPoint are chart series entries of the
// summary payload.
type SummaryPricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

type SummarySentimentPoint struct {
	Date         time.Time `json:"date"`
	SentimentAvg float64   `json:"sentiment_avg"`
}

type SummaryArticle struct {
	Date           time.Time `json:"date"`
	Headline       string    `json:"headline"`
	Source         string    `json:"source"`
	URL            string    `json:"url,omitempty"`
	SentimentScore *float64  `json:"sentiment_score"`
	SentimentLabel *string   `json:"sentiment_label"`
}

// Summary is the per-ticker response assembled by the summary service.
type Summary struct {
	Ticker          string                  `json:"ticker"`
	StartDate       time.Time               `json:"start_date"`
	EndDate         time.Time               `json:"end_date"`
	NArticles       int                     `json:"n_articles"`
	AvgSentiment    float64                 `json:"avg_sentiment"`
	PriceSeries     []SummaryPricePoint     `json:"price_series"`
	SentimentSeries []SummarySentimentPoint `json:"sentiment_series"`
	Articles        []SummaryArticle        `json:"articles"`
	ModelInsights   *ModelInsights          `json:"model_insights,omitempty"`
}
