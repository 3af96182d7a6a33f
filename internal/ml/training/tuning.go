package training

import (
	"news-stock-explorer/internal/ml/common"
	"news-stock-explorer/internal/ml/eval"
	"news-stock-explorer/internal/ml/models/logreg"
)

const cvFolds = 3

// selectC picks the regularization strength by forward-chaining cross
// validation: three validation windows of equal size at the tail of the
// training set, each trained on everything before it. Fold score is ROC-AUC
// when the window holds both classes, balanced accuracy at 0.5 otherwise.
// Ties keep the earliest candidate; too little data keeps the default.
func selectC(trainX [][]float64, trainY []int, candidates []float64) float64 {
	n := len(trainY)
	foldSize := n / (cvFolds + 1)
	if foldSize < 1 {
		return logreg.DefaultTrainOptions().C
	}

	bestC := candidates[0]
	bestScore := -1.0
	for _, c := range candidates {
		total, folds := 0.0, 0
		for fold := 0; fold < cvFolds; fold++ {
			valStart := n - (cvFolds-fold)*foldSize
			valEnd := valStart + foldSize
			if valStart < 1 {
				continue
			}

			opts := logreg.DefaultTrainOptions()
			opts.C = c
			model, err := logreg.Train(trainX[:valStart], trainY[:valStart], common.FeatureNames, opts)
			if err != nil {
				continue
			}
			probs := model.PredictBatch(trainX[valStart:valEnd])
			valY := trainY[valStart:valEnd]

			if auc := eval.AUC(valY, probs); auc != nil {
				total += *auc
			} else {
				total += eval.BalancedAccuracy(valY, eval.Binarize(probs, 0.5))
			}
			folds++
		}
		if folds == 0 {
			continue
		}
		if score := total / float64(folds); score > bestScore {
			bestScore = score
			bestC = c
		}
	}
	return bestC
}

// tuneThreshold searches the decision threshold on the chronologically last
// fifth of the training set, fitting a throwaway model on the rest and
// scanning 0.20 through 0.80 in 0.05 steps for the best balanced accuracy.
// The first threshold wins ties; degenerate holdouts keep 0.5.
func tuneThreshold(trainX [][]float64, trainY []int, c float64) float64 {
	const defaultThreshold = 0.5

	n := len(trainY)
	nVal := n / 5
	if nVal < 1 {
		nVal = 1
	}
	cut := n - nVal
	if cut < 1 || singleClass(trainY[:cut]) {
		return defaultThreshold
	}

	opts := logreg.DefaultTrainOptions()
	opts.C = c
	model, err := logreg.Train(trainX[:cut], trainY[:cut], common.FeatureNames, opts)
	if err != nil {
		return defaultThreshold
	}
	probs := model.PredictBatch(trainX[cut:])
	valY := trainY[cut:]

	best, bestScore := defaultThreshold, -1.0
	for i := 0; i <= 12; i++ {
		thr := 0.20 + 0.05*float64(i)
		score := eval.BalancedAccuracy(valY, eval.Binarize(probs, thr))
		if score > bestScore {
			bestScore = score
			best = thr
		}
	}
	return best
}

func singleClass(y []int) bool {
	if len(y) == 0 {
		return true
	}
	for _, v := range y[1:] {
		if v != y[0] {
			return false
		}
	}
	return true
}
