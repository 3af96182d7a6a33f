package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"news-stock-explorer/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooProvider fetches daily OHLCV bars from the Yahoo Finance chart API.
type YahooProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewYahooProvider creates a provider limited to 30 requests per minute.
func NewYahooProvider(tracer trace.Tracer) *YahooProvider {
	return &YahooProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: yahooBaseURL,
		tracer:  tracer,
		limiter: NewRateLimiter(30, 2*time.Second),
	}
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDailyPrices returns daily bars for [from, to]. Half-formed rows with
// null fields, which Yahoo emits for halts and partial sessions, are skipped.
func (p *YahooProvider) FetchDailyPrices(ctx context.Context, ticker string, from, to time.Time) ([]domain.PricePoint, error) {
	_, span := p.tracer.Start(ctx, "yahoo.fetch-daily-prices")
	defer span.End()

	// The chart API's period2 is exclusive, so push it one day past the end.
	url := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=1d",
		p.baseURL, ticker, from.UTC().Unix(), to.UTC().AddDate(0, 0, 1).Unix())

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch prices for %s: %w", ticker, err)
	}

	var raw yahooChartResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse prices for %s: %w", ticker, err)
	}
	if raw.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo API error for %s: %s: %s", ticker, raw.Chart.Error.Code, raw.Chart.Error.Description)
	}
	if len(raw.Chart.Result) == 0 || len(raw.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := raw.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	prices := make([]domain.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) {
			break
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		var volume int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		prices = append(prices, domain.PricePoint{
			Ticker: ticker,
			Date:   domain.DateOf(time.Unix(ts, 0).UTC()),
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  *quote.Close[i],
			Volume: volume,
		})
	}
	return prices, nil
}

func (p *YahooProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "news-stock-explorer/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("yahoo API error %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}
