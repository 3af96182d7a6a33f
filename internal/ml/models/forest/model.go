// Package forest implements a random forest classifier: bootstrap-sampled
// CART trees with random feature subsets at each split, balanced class
// weights and a deep minimum leaf size to keep individual trees conservative.
package forest

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sort"
)

type TrainOptions struct {
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	Seed           int64
}

type node struct {
	Feature   int      `json:"feature,omitempty"`
	Threshold float64  `json:"threshold,omitempty"`
	Left      *node    `json:"left,omitempty"`
	Right     *node    `json:"right,omitempty"`
	Prob      *float64 `json:"prob,omitempty"`
}

type artifact struct {
	FeatureNames   []string `json:"feature_names"`
	Trees          []*node  `json:"trees"`
	MaxDepth       int      `json:"max_depth"`
	MinSamplesLeaf int      `json:"min_samples_leaf"`
	Seed           int64    `json:"seed"`
}

type Model struct {
	artifact artifact
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Trees:          200,
		MaxDepth:       4,
		MinSamplesLeaf: 50,
		Seed:           42,
	}
}

// Train grows the ensemble. Each tree sees a bootstrap resample of the
// training set and considers a random pair of features per split; class
// weights n/(2*n_class) enter both the gini criterion and leaf estimates.
func Train(samples [][]float64, labels []int, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(labels) {
		return nil, errors.New("invalid training dataset")
	}
	if len(samples[0]) == 0 {
		return nil, errors.New("empty feature vectors")
	}
	if opts.Trees <= 0 {
		opts.Trees = DefaultTrainOptions().Trees
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultTrainOptions().MaxDepth
	}
	if opts.MinSamplesLeaf <= 0 {
		opts.MinSamplesLeaf = DefaultTrainOptions().MinSamplesLeaf
	}
	if len(featureNames) != len(samples[0]) {
		featureNames = make([]string, len(samples[0]))
		for i := range featureNames {
			featureNames[i] = "f"
		}
	}

	weights := classWeights(labels)
	rng := rand.New(rand.NewSource(opts.Seed))

	trees := make([]*node, opts.Trees)
	for t := range trees {
		idx := bootstrap(rng, len(samples))
		trees[t] = growTree(rng, samples, labels, weights, idx, opts, 0)
	}

	return &Model{artifact: artifact{
		FeatureNames:   append([]string(nil), featureNames...),
		Trees:          trees,
		MaxDepth:       opts.MaxDepth,
		MinSamplesLeaf: opts.MinSamplesLeaf,
		Seed:           opts.Seed,
	}}, nil
}

func (m *Model) PredictProb(sample []float64) float64 {
	if m == nil || len(m.artifact.Trees) == 0 || len(sample) != len(m.artifact.FeatureNames) {
		return 0.5
	}
	sum := 0.0
	for _, t := range m.artifact.Trees {
		sum += predictTree(t, sample)
	}
	return sum / float64(len(m.artifact.Trees))
}

func (m *Model) PredictBatch(samples [][]float64) []float64 {
	out := make([]float64, len(samples))
	for i := range samples {
		out[i] = m.PredictProb(samples[i])
	}
	return out
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil || len(m.artifact.Trees) == 0 {
		return nil, errors.New("nil model")
	}
	return json.Marshal(m.artifact)
}

func UnmarshalBinary(blob []byte) (*Model, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a artifact
	if err := json.Unmarshal(blob, &a); err != nil {
		return nil, err
	}
	if len(a.Trees) == 0 || len(a.FeatureNames) == 0 {
		return nil, errors.New("invalid artifact")
	}
	return &Model{artifact: a}, nil
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.artifact.FeatureNames))
	copy(out, m.artifact.FeatureNames)
	return out
}

func classWeights(labels []int) [2]float64 {
	pos := 0
	for _, v := range labels {
		if v == 1 {
			pos++
		}
	}
	neg := len(labels) - pos
	n := float64(len(labels))
	var w [2]float64
	w[0], w[1] = 1, 1
	if neg > 0 {
		w[0] = n / (2 * float64(neg))
	}
	if pos > 0 {
		w[1] = n / (2 * float64(pos))
	}
	return w
}

func bootstrap(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}

func growTree(rng *rand.Rand, samples [][]float64, labels []int, weights [2]float64, idx []int, opts TrainOptions, depth int) *node {
	if depth >= opts.MaxDepth || len(idx) < 2*opts.MinSamplesLeaf || pure(labels, idx) {
		return leaf(labels, weights, idx)
	}

	feature, threshold, ok := bestSplit(rng, samples, labels, weights, idx, opts.MinSamplesLeaf)
	if !ok {
		return leaf(labels, weights, idx)
	}

	var left, right []int
	for _, i := range idx {
		if samples[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &node{
		Feature:   feature,
		Threshold: threshold,
		Left:      growTree(rng, samples, labels, weights, left, opts, depth+1),
		Right:     growTree(rng, samples, labels, weights, right, opts, depth+1),
	}
}

// bestSplit scans a random pair of candidate features and every boundary
// between distinct sorted values, keeping the split with the lowest weighted
// gini impurity whose children both satisfy the minimum leaf size.
func bestSplit(rng *rand.Rand, samples [][]float64, labels []int, weights [2]float64, idx []int, minLeaf int) (int, float64, bool) {
	featCount := len(samples[0])
	candidates := sampleFeatures(rng, featCount, 2)

	bestGini := -1.0
	bestFeature, bestThreshold := -1, 0.0

	order := make([]int, len(idx))
	for _, f := range candidates {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return samples[order[a]][f] < samples[order[b]][f] })

		for cut := minLeaf; cut <= len(order)-minLeaf; cut++ {
			lo, hi := samples[order[cut-1]][f], samples[order[cut]][f]
			if lo == hi {
				continue
			}
			g := splitGini(labels, weights, order, cut)
			if bestGini < 0 || g < bestGini {
				bestGini = g
				bestFeature = f
				bestThreshold = (lo + hi) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func splitGini(labels []int, weights [2]float64, order []int, cut int) float64 {
	gini := func(part []int) (float64, float64) {
		var wPos, wTotal float64
		for _, i := range part {
			w := weights[labels[i]]
			wTotal += w
			if labels[i] == 1 {
				wPos += w
			}
		}
		if wTotal == 0 {
			return 0, 0
		}
		p := wPos / wTotal
		return 2 * p * (1 - p), wTotal
	}

	gL, wL := gini(order[:cut])
	gR, wR := gini(order[cut:])
	return (gL*wL + gR*wR) / (wL + wR)
}

func sampleFeatures(rng *rand.Rand, featCount, k int) []int {
	if featCount <= k {
		out := make([]int, featCount)
		for i := range out {
			out[i] = i
		}
		return out
	}
	perm := rng.Perm(featCount)
	return perm[:k]
}

func pure(labels []int, idx []int) bool {
	for _, i := range idx[1:] {
		if labels[i] != labels[idx[0]] {
			return false
		}
	}
	return true
}

func leaf(labels []int, weights [2]float64, idx []int) *node {
	var wPos, wTotal float64
	for _, i := range idx {
		w := weights[labels[i]]
		wTotal += w
		if labels[i] == 1 {
			wPos += w
		}
	}
	p := 0.5
	if wTotal > 0 {
		p = wPos / wTotal
	}
	return &node{Prob: &p}
}

func predictTree(n *node, sample []float64) float64 {
	for n.Prob == nil {
		if sample[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return *n.Prob
}
