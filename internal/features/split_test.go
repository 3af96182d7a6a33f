package features

import (
	"testing"
	"time"

	"news-stock-explorer/internal/domain"
)

func rowsOn(ticker string, dates ...string) []domain.FeatureRow {
	out := make([]domain.FeatureRow, len(dates))
	for i, d := range dates {
		out[i] = domain.FeatureRow{Ticker: ticker, Date: day(d)}
	}
	return out
}

func maxDate(rows []domain.FeatureRow) time.Time {
	var max time.Time
	for _, r := range rows {
		if r.Date.After(max) {
			max = r.Date
		}
	}
	return max
}

func TestSplitChronological(t *testing.T) {
	rows := append(
		rowsOn("AAPL", "2024-01-01", "2024-01-03", "2024-01-05", "2024-01-07"),
		rowsOn("MSFT", "2024-01-02", "2024-01-04", "2024-01-06", "2024-01-08", "2024-01-09", "2024-01-10")...,
	)

	train, test := Split(rows, 0.2)
	if len(train) != 8 || len(test) != 2 {
		t.Fatalf("split sizes = %d/%d, want 8/2", len(train), len(test))
	}

	trainMax := maxDate(train)
	for _, r := range test {
		if r.Date.Before(trainMax) {
			t.Fatalf("test row %v predates train max %v", r.Date, trainMax)
		}
	}
	if !test[0].Date.Equal(day("2024-01-09")) || !test[1].Date.Equal(day("2024-01-10")) {
		t.Fatalf("test set should hold the latest dates, got %v %v", test[0].Date, test[1].Date)
	}
}

func TestSplitTruncatesTestCount(t *testing.T) {
	rows := rowsOn("AAPL", "2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05")

	// int(5 * 0.3) = 1
	train, test := Split(rows, 0.3)
	if len(train) != 4 || len(test) != 1 {
		t.Fatalf("split sizes = %d/%d, want 4/1", len(train), len(test))
	}
}

func TestSplitZeroTest(t *testing.T) {
	rows := rowsOn("AAPL", "2024-01-01", "2024-01-02")

	train, test := Split(rows, 0.2)
	if len(train) != 2 || len(test) != 0 {
		t.Fatalf("split sizes = %d/%d, want 2/0", len(train), len(test))
	}
}

func TestSplitDoesNotMutateInput(t *testing.T) {
	rows := rowsOn("AAPL", "2024-01-03", "2024-01-01", "2024-01-02")
	Split(rows, 0.3)
	if !rows[0].Date.Equal(day("2024-01-03")) {
		t.Fatalf("input slice was reordered")
	}
}
