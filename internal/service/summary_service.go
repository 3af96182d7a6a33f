// Package service orchestrates the data plane: keeping price and news data
// fresh, enriching sentiment, and assembling ticker summaries.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"news-stock-explorer/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const summaryCacheTTL = 5 * time.Minute

// ErrUnknownTicker marks requests for symbols not present in the tickers
// table.
var ErrUnknownTicker = errors.New("unknown ticker")

type PriceProvider interface {
	FetchDailyPrices(ctx context.Context, ticker string, from, to time.Time) ([]domain.PricePoint, error)
}

type NewsProvider interface {
	FetchNews(ctx context.Context, ticker string, from, to time.Time) ([]domain.Article, error)
}

type PriceStore interface {
	UpsertPrices(ctx context.Context, prices []domain.PricePoint) error
	ListPricesInRange(ctx context.Context, ticker string, from, to time.Time) ([]domain.PricePoint, error)
	LatestPriceDate(ctx context.Context, ticker string) (*time.Time, error)
}

type ArticleStore interface {
	UpsertArticles(ctx context.Context, articles []domain.Article) error
	ListArticlesInRange(ctx context.Context, ticker string, from, to time.Time, relevantOnly bool) ([]domain.Article, error)
	ListArticlesNeedingSentiment(ctx context.Context, limit int) ([]domain.Article, error)
	UpdateArticleSentiment(ctx context.Context, id int64, score float64, label string) error
}

type TickerStore interface {
	GetTicker(ctx context.Context, symbol string) (*domain.Ticker, error)
	ListTickers(ctx context.Context) ([]domain.Ticker, error)
}

type SentimentAnalyzer interface {
	AnalyzeBatch(ctx context.Context, articles []domain.Article) []domain.SentimentResult
}

// InsightProvider is the inference service seen through the summary's needs.
type InsightProvider interface {
	Insight(ctx context.Context, prices []domain.PricePoint, articles []domain.Article) (*domain.ModelInsights, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type RefreshConfig struct {
	// MaxStalenessDays before stored prices are considered stale.
	MaxStalenessDays int
	// NewsMaxFetchDays caps how far back a news fetch may reach.
	NewsMaxFetchDays int
	// NewsOnlyRecentIfMissing skips news fetches for ranges ending further
	// back than NewsMaxFetchDays; the provider only serves recent articles
	// anyway.
	NewsOnlyRecentIfMissing bool
	// EnrichBatchSize bounds the synchronous enrichment pass after a news
	// fetch brings in new articles.
	EnrichBatchSize int
	// PriceGapToleranceDays is the longest run of missing dates inside an
	// otherwise covered window that is left alone. Weekends and holidays
	// show up as 2-4 day holes that no provider can fill.
	PriceGapToleranceDays int
}

type SummaryService struct {
	tracer        trace.Tracer
	priceProvider PriceProvider
	newsProvider  NewsProvider
	prices        PriceStore
	articles      ArticleStore
	tickers       TickerStore
	analyzer      SentimentAnalyzer
	insights      InsightProvider
	redis         RedisClient
	cfg           RefreshConfig

	// now is swappable for tests.
	now func() time.Time
}

func NewSummaryService(
	tracer trace.Tracer,
	priceProvider PriceProvider,
	newsProvider NewsProvider,
	prices PriceStore,
	articles ArticleStore,
	tickers TickerStore,
	analyzer SentimentAnalyzer,
	insights InsightProvider,
	redisClient RedisClient,
	cfg RefreshConfig,
) *SummaryService {
	if cfg.MaxStalenessDays <= 0 {
		cfg.MaxStalenessDays = 1
	}
	if cfg.NewsMaxFetchDays <= 0 {
		cfg.NewsMaxFetchDays = 2
	}
	if cfg.EnrichBatchSize <= 0 {
		cfg.EnrichBatchSize = 50
	}
	if cfg.PriceGapToleranceDays <= 0 {
		cfg.PriceGapToleranceDays = 3
	}
	return &SummaryService{
		tracer:        tracer,
		priceProvider: priceProvider,
		newsProvider:  newsProvider,
		prices:        prices,
		articles:      articles,
		tickers:       tickers,
		analyzer:      analyzer,
		insights:      insights,
		redis:         redisClient,
		cfg:           cfg,
		now:           time.Now,
	}
}

// GetSummary returns the assembled view for a ticker and window: price
// series, daily sentiment, articles and model insights. Data is refreshed
// from the providers first; news and insight failures degrade the summary
// instead of failing it.
func (s *SummaryService) GetSummary(ctx context.Context, ticker string, from, to time.Time) (*domain.Summary, error) {
	ctx, span := s.tracer.Start(ctx, "summary-service.get-summary")
	defer span.End()

	known, err := s.tickers.GetTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if known == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}

	from, to = domain.DateOf(from), domain.DateOf(to)
	if cached := s.getSummaryCache(ctx, ticker, from, to); cached != nil {
		return cached, nil
	}

	if err := s.EnsurePriceData(ctx, ticker, from, to); err != nil {
		log.Printf("summary: price refresh failed for %s: %v", ticker, err)
	}
	fetched, err := s.EnsureNewsData(ctx, ticker, from, to)
	if err != nil {
		log.Printf("summary: news refresh failed for %s: %v", ticker, err)
	}
	if fetched > 0 && s.analyzer != nil {
		if _, err := s.EnrichPendingSentiment(ctx, s.cfg.EnrichBatchSize); err != nil {
			log.Printf("summary: sentiment enrichment failed for %s: %v", ticker, err)
		}
	}

	prices, err := s.prices.ListPricesInRange(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}
	articles, err := s.articles.ListArticlesInRange(ctx, ticker, from, to, true)
	if err != nil {
		return nil, err
	}

	summary := s.assemble(ctx, *known, from, to, prices, articles)
	s.setSummaryCache(ctx, ticker, from, to, summary)
	return summary, nil
}

// EnsurePriceData brings the stored price series for [from, to] up to date:
// a full fetch when nothing is stored, a tail fetch when stale, and per-gap
// fetches when only holes remain.
func (s *SummaryService) EnsurePriceData(ctx context.Context, ticker string, from, to time.Time) error {
	ctx, span := s.tracer.Start(ctx, "summary-service.ensure-price-data")
	defer span.End()

	today := domain.DateOf(s.now().UTC())
	if to.After(today) {
		to = today
	}
	if from.After(today) {
		from = today.AddDate(-1, 0, 0)
	}
	if !from.Before(to) {
		from = to.AddDate(-1, 0, 0)
	}

	latest, err := s.prices.LatestPriceDate(ctx, ticker)
	if err != nil {
		return err
	}

	if latest == nil {
		return s.fetchAndStorePrices(ctx, ticker, from, to)
	}
	if latest.Before(to.AddDate(0, 0, -s.cfg.MaxStalenessDays)) {
		return s.fetchAndStorePrices(ctx, ticker, latest.AddDate(0, 0, 1), to)
	}

	// Recent enough overall; fill any holes inside the window.
	existing, err := s.prices.ListPricesInRange(ctx, ticker, from, to)
	if err != nil {
		return err
	}
	have := make(map[time.Time]bool, len(existing))
	for _, p := range existing {
		have[domain.DateOf(p.Date)] = true
	}
	for _, gap := range missingRanges(have, from, to) {
		if gap.days() <= s.cfg.PriceGapToleranceDays {
			continue
		}
		if err := s.fetchAndStorePrices(ctx, ticker, gap.start, gap.end); err != nil {
			return err
		}
	}
	return nil
}

// EnsureNewsData fetches news only when the window has no relevant articles
// AND ends recently enough for the provider to have anything. Returns how
// many articles were stored.
func (s *SummaryService) EnsureNewsData(ctx context.Context, ticker string, from, to time.Time) (int, error) {
	ctx, span := s.tracer.Start(ctx, "summary-service.ensure-news-data")
	defer span.End()

	existing, err := s.articles.ListArticlesInRange(ctx, ticker, from, to.AddDate(0, 0, 1), true)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	today := domain.DateOf(s.now().UTC())
	daysSinceEnd := int(today.Sub(to).Hours() / 24)
	if s.cfg.NewsOnlyRecentIfMissing && daysSinceEnd > s.cfg.NewsMaxFetchDays {
		return 0, nil
	}

	fetchEnd := to
	if fetchEnd.After(today) {
		fetchEnd = today
	}
	fetchStart := fetchEnd.AddDate(0, 0, -s.cfg.NewsMaxFetchDays)
	if fetchStart.After(fetchEnd) {
		return 0, nil
	}

	articles, err := s.newsProvider.FetchNews(ctx, ticker, fetchStart, fetchEnd)
	if err != nil {
		return 0, err
	}
	if len(articles) == 0 {
		return 0, nil
	}
	if err := s.articles.UpsertArticles(ctx, articles); err != nil {
		return 0, err
	}
	return len(articles), nil
}

// EnrichPendingSentiment scores the next batch of relevant articles still
// missing sentiment. Returns how many were updated.
func (s *SummaryService) EnrichPendingSentiment(ctx context.Context, batchSize int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "summary-service.enrich-sentiment")
	defer span.End()

	if s.analyzer == nil {
		return 0, nil
	}
	pending, err := s.articles.ListArticlesNeedingSentiment(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	results := s.analyzer.AnalyzeBatch(ctx, pending)
	enriched := 0
	for i, article := range pending {
		if i >= len(results) {
			break
		}
		if err := s.articles.UpdateArticleSentiment(ctx, article.ID, results[i].Score, results[i].Label); err != nil {
			return enriched, err
		}
		enriched++
	}
	return enriched, nil
}

func (s *SummaryService) assemble(ctx context.Context, ticker domain.Ticker, from, to time.Time, prices []domain.PricePoint, articles []domain.Article) *domain.Summary {
	summary := &domain.Summary{
		Ticker:    ticker.Symbol,
		StartDate: from,
		EndDate:   to,
		NArticles: len(articles),
	}

	for _, p := range prices {
		summary.PriceSeries = append(summary.PriceSeries, domain.SummaryPricePoint{
			Date:  p.Date,
			Close: p.Close,
		})
	}

	// Sentiment series is the plain daily mean; the headline average weights
	// by relevance.
	byDay := map[time.Time][]float64{}
	weightedSum, weightTotal := 0.0, 0.0
	for _, a := range articles {
		if a.SentimentScore == nil {
			continue
		}
		day := domain.DateOf(a.PublishedAt)
		byDay[day] = append(byDay[day], *a.SentimentScore)

		weight := 1.0
		if a.RelevanceScore != nil {
			weight = *a.RelevanceScore
		}
		weightedSum += *a.SentimentScore * weight
		weightTotal += weight
	}
	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	for _, day := range days {
		scores := byDay[day]
		sum := 0.0
		for _, v := range scores {
			sum += v
		}
		summary.SentimentSeries = append(summary.SentimentSeries, domain.SummarySentimentPoint{
			Date:         day,
			SentimentAvg: sum / float64(len(scores)),
		})
	}
	if weightTotal > 0 {
		summary.AvgSentiment = weightedSum / weightTotal
	}

	for _, a := range articles {
		summary.Articles = append(summary.Articles, domain.SummaryArticle{
			Date:           domain.DateOf(a.PublishedAt),
			Headline:       a.Headline,
			Source:         a.Source,
			URL:            a.URL,
			SentimentScore: a.SentimentScore,
			SentimentLabel: a.SentimentLabel,
		})
	}

	if s.insights != nil {
		insight, err := s.insights.Insight(ctx, prices, articles)
		if err != nil {
			log.Printf("summary: model insight failed for %s: %v", ticker.Symbol, err)
		} else {
			summary.ModelInsights = insight
		}
	}
	return summary
}

func (s *SummaryService) fetchAndStorePrices(ctx context.Context, ticker string, from, to time.Time) error {
	prices, err := s.priceProvider.FetchDailyPrices(ctx, ticker, from, to)
	if err != nil {
		return err
	}
	if len(prices) == 0 {
		return nil
	}
	return s.prices.UpsertPrices(ctx, prices)
}

type dateRange struct {
	start, end time.Time
}

func (r dateRange) days() int {
	return int(r.end.Sub(r.start).Hours()/24) + 1
}

// missingRanges finds maximal runs of dates in [from, to] absent from have.
func missingRanges(have map[time.Time]bool, from, to time.Time) []dateRange {
	var ranges []dateRange
	var open *time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !have[d] {
			if open == nil {
				start := d
				open = &start
			}
			continue
		}
		if open != nil {
			ranges = append(ranges, dateRange{start: *open, end: d.AddDate(0, 0, -1)})
			open = nil
		}
	}
	if open != nil {
		ranges = append(ranges, dateRange{start: *open, end: to})
	}
	return ranges
}

func (s *SummaryService) summaryCacheKey(ticker string, from, to time.Time) string {
	return fmt.Sprintf("summary:%s:%s:%s", ticker, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func (s *SummaryService) getSummaryCache(ctx context.Context, ticker string, from, to time.Time) *domain.Summary {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(ctx, s.summaryCacheKey(ticker, from, to)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		log.Printf("redis cache read error: %v", err)
		return nil
	}
	var summary domain.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil
	}
	return &summary
}

func (s *SummaryService) setSummaryCache(ctx context.Context, ticker string, from, to time.Time, summary *domain.Summary) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, s.summaryCacheKey(ticker, from, to), data, summaryCacheTTL).Err(); err != nil {
		log.Printf("redis cache write error: %v", err)
	}
}
