package features

import (
	"errors"
	"math"
	"sort"
	"time"

	"news-stock-explorer/internal/domain"

	"gonum.org/v1/gonum/stat"
)

// FeatureSetVersion is recorded with every trained model so that artifacts
// trained against a different feature layout are never served.
const FeatureSetVersion = "v1"

const (
	volatilityWindow       = 5
	sentimentRollingWindow = 3
	labelHorizonDays       = 3
)

// ErrNoRows signals that a ticker produced no usable feature rows, typically
// because fewer than four price observations exist.
var ErrNoRows = errors.New("no feature rows computable")

// BuildOutcome is the per-ticker result of feature computation. A ticker
// either contributes rows or is skipped with a recorded reason; the caller
// aggregates outcomes instead of relying on logging side effects.
type BuildOutcome struct {
	Ticker string
	Rows   []domain.FeatureRow
	Err    error
}

func (o BuildOutcome) Skipped() bool { return o.Err != nil }

// Build computes the feature/label table for one ticker.
//
// Features for date t use only data up to and including t. The label is the
// sign of the forward 3-day return (close[t+3]/close[t] - 1 compared against
// labelThreshold); rows whose label horizon runs past the series end are
// dropped, so the last three dates never appear in the output.
func Build(prices []domain.PricePoint, articles []domain.Article, labelThreshold float64) []domain.FeatureRow {
	series := normalizePrices(prices)
	n := len(series)
	if n <= labelHorizonDays {
		return nil
	}

	closes := make([]float64, n)
	for i, p := range series {
		closes[i] = p.Close
	}

	returns := dailyReturns(closes)
	sentiment := dailySentiment(articles)

	sentimentAvg := make([]float64, n)
	for i, p := range series {
		sentimentAvg[i] = sentiment[p.Date]
	}

	rows := make([]domain.FeatureRow, 0, n-labelHorizonDays)
	for i := 0; i < n-labelHorizonDays; i++ {
		future := closes[i+labelHorizonDays]/closes[i] - 1
		label := 0
		if future > labelThreshold {
			label = 1
		}
		rows = append(rows, domain.FeatureRow{
			Ticker:                 series[i].Ticker,
			Date:                   series[i].Date,
			SentimentAvg:           sentimentAvg[i],
			SentimentRollingMean3D: trailingMean(sentimentAvg, i, sentimentRollingWindow),
			Return1D:               returns[i],
			Volatility5D:           trailingStdDev(returns, i, volatilityWindow),
			Future3DReturn:         future,
			Future3DReturnPositive: label,
		})
	}
	return rows
}

// ForTicker wraps Build into a per-ticker outcome.
func ForTicker(ticker string, prices []domain.PricePoint, articles []domain.Article, labelThreshold float64) BuildOutcome {
	rows := Build(prices, articles, labelThreshold)
	if len(rows) == 0 {
		return BuildOutcome{Ticker: ticker, Err: ErrNoRows}
	}
	return BuildOutcome{Ticker: ticker, Rows: rows}
}

// normalizePrices sorts ascending by date and drops duplicate dates. Upsert
// semantics upstream guarantee at most one row per (ticker, date); duplicates
// here would mean the caller mixed snapshots, so the first occurrence wins.
func normalizePrices(in []domain.PricePoint) []domain.PricePoint {
	out := make([]domain.PricePoint, 0, len(in))
	seen := make(map[time.Time]struct{}, len(in))
	for _, p := range in {
		p.Date = domain.DateOf(p.Date)
		if _, dup := seen[p.Date]; dup {
			continue
		}
		seen[p.Date] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func dailyReturns(closes []float64) []float64 {
	returns := make([]float64, len(closes))
	for i := range closes {
		if i == 0 || closes[i-1] == 0 {
			returns[i] = math.NaN()
			continue
		}
		returns[i] = closes[i]/closes[i-1] - 1
	}
	return returns
}

// dailySentiment aggregates relevant, scored articles into one
// relevance-weighted mean per calendar date. Intraday timing is discarded.
func dailySentiment(articles []domain.Article) map[time.Time]float64 {
	weighted := make(map[time.Time]float64)
	weights := make(map[time.Time]float64)
	for _, a := range articles {
		if !a.IsRelevant || a.SentimentScore == nil {
			continue
		}
		weight := 1.0
		if a.RelevanceScore != nil {
			weight = *a.RelevanceScore
		}
		day := domain.DateOf(a.PublishedAt)
		weighted[day] += *a.SentimentScore * weight
		weights[day] += weight
	}

	out := make(map[time.Time]float64, len(weighted))
	for day, sum := range weighted {
		if w := weights[day]; w > 0 {
			out[day] = sum / w
		}
	}
	return out
}

// trailingMean averages the trailing window ending at idx, shrinking to a
// single observation at the start of the series.
func trailingMean(values []float64, idx, window int) float64 {
	start := idx - window + 1
	if start < 0 {
		start = 0
	}
	return stat.Mean(values[start:idx+1], nil)
}

// trailingStdDev is the sample standard deviation of the valid (non-NaN)
// values in the trailing window ending at idx. Fewer than two valid
// observations yields 0 so the earliest rows keep a defined volatility.
func trailingStdDev(values []float64, idx, window int) float64 {
	start := idx - window + 1
	if start < 0 {
		start = 0
	}
	valid := make([]float64, 0, window)
	for _, v := range values[start : idx+1] {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) < 2 {
		return 0
	}
	return stat.StdDev(valid, nil)
}
