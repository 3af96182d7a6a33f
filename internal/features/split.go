package features

import (
	"sort"

	"news-stock-explorer/internal/domain"
)

// Split divides feature rows chronologically: rows are ordered by date across
// all tickers and the final testFraction of them becomes the test set. The
// cut is global, never per ticker, so no test observation predates a train
// observation from another ticker by construction of the sort.
func Split(rows []domain.FeatureRow, testFraction float64) (train, test []domain.FeatureRow) {
	sorted := make([]domain.FeatureRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	nTest := int(float64(len(sorted)) * testFraction)
	cut := len(sorted) - nTest
	return sorted[:cut], sorted[cut:]
}
