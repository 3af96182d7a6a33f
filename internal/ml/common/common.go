// Package common holds the feature layout and matrix plumbing shared by the
// model implementations and the training service.
package common

import (
	"math"

	"news-stock-explorer/internal/domain"
)

// Model keys identify trained artifact families in the registry.
const (
	ModelKeyLogReg = "logistic_regression"
	ModelKeyForest = "random_forest"
)

// Artifact formats stored alongside model blobs. A loader must refuse blobs
// whose format it does not recognize.
const (
	ArtifactFormatLogReg = "json/logreg-v1"
	ArtifactFormatForest = "json/forest-v1"
)

// FeatureNames is the canonical feature ordering. Every feature vector,
// artifact and metrics payload uses exactly this order.
var FeatureNames = []string{
	"sentiment_avg",
	"sentiment_rolling_mean_3d",
	"return_1d",
	"volatility_5d",
}

// FeatureVector projects a row onto the canonical ordering. NaN values
// (the first observation's return) are imputed to zero at this boundary so
// models never see them.
func FeatureVector(r domain.FeatureRow) []float64 {
	return []float64{
		zeroNaN(r.SentimentAvg),
		zeroNaN(r.SentimentRollingMean3D),
		zeroNaN(r.Return1D),
		zeroNaN(r.Volatility5D),
	}
}

// Matrix converts rows into a design matrix and label vector.
func Matrix(rows []domain.FeatureRow) ([][]float64, []int) {
	x := make([][]float64, len(rows))
	y := make([]int, len(rows))
	for i, r := range rows {
		x[i] = FeatureVector(r)
		y[i] = r.Future3DReturnPositive
	}
	return x, y
}

// Clamp01 bounds a probability to [0, 1].
func Clamp01(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
