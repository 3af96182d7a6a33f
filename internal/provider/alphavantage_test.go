package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const alphaVantageFixture = `{
  "feed": [
    {
      "title": "Apple unveils new chip",
      "url": "https://example.com/a",
      "time_published": "20240102T093000",
      "summary": "Apple announced a new processor.",
      "source": "Newswire",
      "ticker_sentiment": [
        {"ticker": "AAPL", "relevance_score": "0.85", "ticker_sentiment_label": "Bullish"},
        {"ticker": "MSFT", "relevance_score": "0.10", "ticker_sentiment_label": "Neutral"}
      ]
    },
    {
      "title": "Market roundup",
      "url": "https://example.com/b",
      "time_published": "20240103T120000",
      "summary": "Stocks were mixed.",
      "source": "Newswire",
      "ticker_sentiment": [
        {"ticker": "AAPL", "relevance_score": "0.05", "ticker_sentiment_label": "Somewhat-Bearish"}
      ]
    },
    {
      "title": "Old story",
      "url": "https://example.com/c",
      "time_published": "20230601T080000",
      "summary": "Out of range.",
      "source": "Newswire",
      "ticker_sentiment": []
    }
  ]
}`

func newsProvider(t *testing.T, body string) *AlphaVantageProvider {
	t.Helper()
	provider := NewAlphaVantageProvider(trace.NewNoopTracerProvider().Tracer("test"), "test-key", 0.3)
	provider.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("function") != "NEWS_SENTIMENT" {
				t.Fatalf("unexpected function: %s", req.URL.Query().Get("function"))
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewReader([]byte(body))),
				Header:     make(http.Header),
			}, nil
		}),
	}
	provider.limiter = NewRateLimiter(10, time.Millisecond)
	return provider
}

func TestAlphaVantageFetchNews(t *testing.T) {
	t.Parallel()

	provider := newsProvider(t, alphaVantageFixture)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	articles, err := provider.FetchNews(context.Background(), "AAPL", from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The 2023 story falls outside the range.
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}

	first := articles[0]
	if !first.IsRelevant {
		t.Fatal("relevance 0.85 should clear the 0.3 floor")
	}
	if first.RelevanceScore == nil || *first.RelevanceScore != 0.85 {
		t.Fatalf("relevance = %v", first.RelevanceScore)
	}
	if first.SentimentScore == nil || *first.SentimentScore != 0.75 {
		t.Fatalf("bullish score = %v, want 0.75", first.SentimentScore)
	}
	if first.SentimentLabel == nil || *first.SentimentLabel != "Positive" {
		t.Fatalf("label = %v", first.SentimentLabel)
	}
	if first.PublishedAt.Year() != 2024 || first.PublishedAt.Hour() != 9 {
		t.Fatalf("published_at = %v", first.PublishedAt)
	}

	second := articles[1]
	if second.IsRelevant {
		t.Fatal("relevance 0.05 should fail the 0.3 floor")
	}
}

func TestAlphaVantageRateLimitNote(t *testing.T) {
	t.Parallel()

	provider := newsProvider(t, `{"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`)
	_, err := provider.FetchNews(context.Background(), "AAPL", time.Now().AddDate(0, 0, -5), time.Now())
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestAlphaVantageMissingKey(t *testing.T) {
	t.Parallel()

	provider := NewAlphaVantageProvider(trace.NewNoopTracerProvider().Tracer("test"), "", 0.3)
	if _, err := provider.FetchNews(context.Background(), "AAPL", time.Now(), time.Now()); err == nil {
		t.Fatal("expected error without API key")
	}
}
