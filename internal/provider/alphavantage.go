package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"news-stock-explorer/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageProvider fetches ticker news from the NEWS_SENTIMENT endpoint.
// The endpoint only serves recent articles; historical ranges come back
// empty, which the refresh policy accounts for.
type AlphaVantageProvider struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	minRelevance float64
	tracer       trace.Tracer
	limiter      *RateLimiter
}

// NewAlphaVantageProvider creates a provider throttled to one call per
// minute, well inside the free tier's five.
func NewAlphaVantageProvider(tracer trace.Tracer, apiKey string, minRelevance float64) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		client:       &http.Client{Timeout: 30 * time.Second},
		baseURL:      alphaVantageBaseURL,
		apiKey:       apiKey,
		minRelevance: minRelevance,
		tracer:       tracer,
		limiter:      NewRateLimiter(1, time.Minute),
	}
}

type alphaVantageFeed struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	Feed         []struct {
		Title           string `json:"title"`
		URL             string `json:"url"`
		TimePublished   string `json:"time_published"`
		Summary         string `json:"summary"`
		Source          string `json:"source"`
		TickerSentiment []struct {
			Ticker         string `json:"ticker"`
			RelevanceScore string `json:"relevance_score"`
			SentimentLabel string `json:"ticker_sentiment_label"`
		} `json:"ticker_sentiment"`
	} `json:"feed"`
}

// Alpha Vantage labels mapped onto the [-1, 1] score scale.
var sentimentLabelScores = map[string]float64{
	"Bullish":          0.75,
	"Somewhat-Bullish": 0.4,
	"Neutral":          0.0,
	"Somewhat-Bearish": -0.4,
	"Bearish":          -0.75,
}

// FetchNews returns articles for a ticker published inside [from, to].
// Articles without a ticker-matched sentiment entry keep nil scores so the
// enrichment pipeline can fill them in later.
func (p *AlphaVantageProvider) FetchNews(ctx context.Context, ticker string, from, to time.Time) ([]domain.Article, error) {
	_, span := p.tracer.Start(ctx, "alphavantage.fetch-news")
	defer span.End()

	if p.apiKey == "" {
		return nil, fmt.Errorf("alpha vantage API key not configured")
	}

	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	params.Set("tickers", ticker)
	params.Set("apikey", p.apiKey)
	params.Set("limit", "1000")

	body, err := p.doRequest(ctx, p.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch news for %s: %w", ticker, err)
	}

	var raw alphaVantageFeed
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse news for %s: %w", ticker, err)
	}
	switch {
	case raw.ErrorMessage != "":
		return nil, fmt.Errorf("alpha vantage error for %s: %s", ticker, raw.ErrorMessage)
	case raw.Note != "":
		return nil, fmt.Errorf("alpha vantage rate limit for %s: %s", ticker, raw.Note)
	case raw.Information != "":
		return nil, fmt.Errorf("alpha vantage key issue for %s: %s", ticker, raw.Information)
	}

	fromDay, toDay := domain.DateOf(from), domain.DateOf(to)
	articles := make([]domain.Article, 0, len(raw.Feed))
	for _, item := range raw.Feed {
		publishedAt, err := domain.ParseTimestamp(item.TimePublished)
		if err != nil {
			continue
		}
		day := domain.DateOf(publishedAt)
		if day.Before(fromDay) || day.After(toDay) {
			continue
		}

		article := domain.Article{
			Ticker:      ticker,
			PublishedAt: publishedAt,
			Headline:    item.Title,
			Source:      item.Source,
			URL:         item.URL,
			RawText:     item.Summary,
		}
		for _, ts := range item.TickerSentiment {
			if ts.Ticker != ticker {
				continue
			}
			relevance, err := strconv.ParseFloat(ts.RelevanceScore, 64)
			if err != nil {
				relevance = 0
			}
			article.RelevanceScore = &relevance
			article.IsRelevant = relevance >= p.minRelevance
			if score, ok := sentimentLabelScores[ts.SentimentLabel]; ok {
				label := normalizeLabel(score)
				article.SentimentScore = &score
				article.SentimentLabel = &label
			}
			break
		}
		articles = append(articles, article)
	}
	return articles, nil
}

func (p *AlphaVantageProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("alpha vantage API error %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

func normalizeLabel(score float64) string {
	switch {
	case score > 0.1:
		return domain.SentimentPositive
	case score < -0.1:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}
