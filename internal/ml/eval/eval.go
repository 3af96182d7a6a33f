// Package eval implements the classification metrics used to score trained
// models: accuracy variants, per-class precision/recall/F1, confusion counts
// and rank-based ROC-AUC.
package eval

import (
	"fmt"
	"sort"

	"news-stock-explorer/internal/domain"
)

// Binarize thresholds probabilities into hard labels.
func Binarize(probs []float64, threshold float64) []int {
	out := make([]int, len(probs))
	for i, p := range probs {
		if p >= threshold {
			out[i] = 1
		}
	}
	return out
}

// Accuracy is the fraction of matching labels. Empty input scores 0.
func Accuracy(y, pred []int) float64 {
	if len(y) == 0 {
		return 0
	}
	correct := 0
	for i := range y {
		if y[i] == pred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

// BalancedAccuracy averages per-class recall over the classes present in y.
// With one class present it reduces to that class's recall, so a degenerate
// test set still scores sensibly.
func BalancedAccuracy(y, pred []int) float64 {
	if len(y) == 0 {
		return 0
	}
	var correct, total [2]int
	for i := range y {
		total[y[i]]++
		if y[i] == pred[i] {
			correct[y[i]]++
		}
	}
	sum, classes := 0.0, 0
	for c := 0; c < 2; c++ {
		if total[c] == 0 {
			continue
		}
		sum += float64(correct[c]) / float64(total[c])
		classes++
	}
	if classes == 0 {
		return 0
	}
	return sum / float64(classes)
}

// BaselineAccuracy is the accuracy of always predicting the majority class.
func BaselineAccuracy(y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	pos := 0
	for _, v := range y {
		if v == 1 {
			pos++
		}
	}
	neg := len(y) - pos
	if pos > neg {
		return float64(pos) / float64(len(y))
	}
	return float64(neg) / float64(len(y))
}

// PrecisionRecallF1 computes the three scores treating posLabel as the
// positive class. Undefined ratios (empty denominators) are reported as 0.
func PrecisionRecallF1(y, pred []int, posLabel int) (precision, recall, f1 float64) {
	var tp, fp, fn int
	for i := range y {
		switch {
		case pred[i] == posLabel && y[i] == posLabel:
			tp++
		case pred[i] == posLabel:
			fp++
		case y[i] == posLabel:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// Confusion counts outcomes with class 1 as positive.
func Confusion(y, pred []int) domain.ConfusionMatrix {
	var m domain.ConfusionMatrix
	for i := range y {
		switch {
		case y[i] == 1 && pred[i] == 1:
			m.TP++
		case y[i] == 1:
			m.FN++
		case pred[i] == 1:
			m.FP++
		default:
			m.TN++
		}
	}
	return m
}

// AUC computes ROC-AUC by the rank statistic: the average rank of positive
// scores, with ties sharing their mean rank. Returns nil when only one class
// is present, where the area is undefined.
func AUC(y []int, probs []float64) *float64 {
	n := len(y)
	pos := 0
	for _, v := range y {
		if v == 1 {
			pos++
		}
	}
	neg := n - pos
	if pos == 0 || neg == 0 {
		return nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[idx[j]] == probs[idx[i]] {
			j++
		}
		// 1-based ranks, ties share the mean rank of their run.
		mean := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = mean
		}
		i = j
	}

	rankSum := 0.0
	for i, v := range y {
		if v == 1 {
			rankSum += ranks[i]
		}
	}
	auc := (rankSum - float64(pos)*float64(pos+1)/2) / (float64(pos) * float64(neg))
	return &auc
}

// ClassDistribution counts labels keyed by their string form, matching how
// distributions are reported in metrics payloads.
func ClassDistribution(y []int) map[string]int {
	out := make(map[string]int)
	for _, v := range y {
		out[fmt.Sprintf("%d", v)]++
	}
	return out
}
