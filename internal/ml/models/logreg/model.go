// Package logreg implements L2-regularized logistic regression trained by
// full-batch gradient descent with balanced class weights, plus a JSON
// artifact round-trip for registry storage.
package logreg

import (
	"encoding/json"
	"errors"
	"math"
)

type TrainOptions struct {
	// C is the inverse regularization strength: smaller C, stronger penalty.
	C            float64
	LearningRate float64
	Epochs       int
}

type Artifact struct {
	FeatureNames []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Means        []float64 `json:"means"`
	Stds         []float64 `json:"stds"`
	C            float64   `json:"c"`
	LearningRate float64   `json:"learning_rate"`
	Epochs       int       `json:"epochs"`
}

type Model struct {
	artifact Artifact
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		C:            1.0,
		LearningRate: 0.1,
		Epochs:       800,
	}
}

// Train fits the classifier on samples with binary labels. Features are
// standardized against training statistics baked into the artifact, and each
// sample is weighted by n/(2*n_class) so the minority class carries equal
// total weight.
func Train(samples [][]float64, labels []int, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(labels) {
		return nil, errors.New("invalid training dataset")
	}
	if len(samples[0]) == 0 {
		return nil, errors.New("empty feature vectors")
	}
	if opts.C <= 0 {
		opts.C = DefaultTrainOptions().C
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = DefaultTrainOptions().LearningRate
	}
	if opts.Epochs <= 0 {
		opts.Epochs = DefaultTrainOptions().Epochs
	}

	featCount := len(samples[0])
	means := make([]float64, featCount)
	stds := make([]float64, featCount)
	for j := 0; j < featCount; j++ {
		for i := range samples {
			means[j] += samples[i][j]
		}
		means[j] /= float64(len(samples))
		for i := range samples {
			d := samples[i][j] - means[j]
			stds[j] += d * d
		}
		stds[j] = math.Sqrt(stds[j] / float64(len(samples)))
		if stds[j] == 0 {
			stds[j] = 1
		}
	}

	sampleWeights := balancedWeights(labels)
	weightSum := 0.0
	for _, w := range sampleWeights {
		weightSum += w
	}

	normalized := make([][]float64, len(samples))
	for i := range samples {
		normalized[i] = normalize(samples[i], means, stds)
	}

	weights := make([]float64, featCount)
	bias := 0.0

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		grads := make([]float64, featCount)
		gradBias := 0.0
		for i, x := range normalized {
			p := sigmoid(dot(weights, x) + bias)
			err := sampleWeights[i] * (p - float64(labels[i]))
			for j := range grads {
				grads[j] += err * x[j]
			}
			gradBias += err
		}
		// Penalty scales with 1/C; the bias term is not regularized.
		for j := range weights {
			grads[j] = grads[j]/weightSum + weights[j]/(opts.C*float64(len(samples)))
			weights[j] -= opts.LearningRate * grads[j]
		}
		bias -= opts.LearningRate * (gradBias / weightSum)
	}

	if len(featureNames) != featCount {
		featureNames = defaultFeatureNames(featCount)
	}

	return &Model{artifact: Artifact{
		FeatureNames: featureNames,
		Weights:      weights,
		Bias:         bias,
		Means:        means,
		Stds:         stds,
		C:            opts.C,
		LearningRate: opts.LearningRate,
		Epochs:       opts.Epochs,
	}}, nil
}

func (m *Model) PredictProb(sample []float64) float64 {
	if m == nil || len(sample) != len(m.artifact.Weights) {
		return 0.5
	}
	x := normalize(sample, m.artifact.Means, m.artifact.Stds)
	return sigmoid(dot(m.artifact.Weights, x) + m.artifact.Bias)
}

func (m *Model) PredictBatch(samples [][]float64) []float64 {
	probs := make([]float64, len(samples))
	for i := range samples {
		probs[i] = m.PredictProb(samples[i])
	}
	return probs
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	return json.Marshal(m.artifact)
}

func UnmarshalBinary(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	if len(a.Weights) == 0 || len(a.Weights) != len(a.Means) || len(a.Weights) != len(a.Stds) {
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

// balancedWeights assigns each sample n/(2*n_class) so both classes
// contribute equally to the loss regardless of imbalance.
func balancedWeights(labels []int) []float64 {
	pos := 0
	for _, v := range labels {
		if v == 1 {
			pos++
		}
	}
	neg := len(labels) - pos
	out := make([]float64, len(labels))
	n := float64(len(labels))
	for i, v := range labels {
		if v == 1 && pos > 0 {
			out[i] = n / (2 * float64(pos))
		} else if v == 0 && neg > 0 {
			out[i] = n / (2 * float64(neg))
		} else {
			out[i] = 1
		}
	}
	return out
}

func sigmoid(x float64) float64 {
	if x > 35 {
		return 1
	}
	if x < -35 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

func dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func normalize(in, means, stds []float64) []float64 {
	out := make([]float64, len(in))
	for i := range in {
		out[i] = (in[i] - means[i]) / stds[i]
	}
	return out
}

func defaultFeatureNames(n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = "f" + formatInt(i)
	}
	return out
}

func formatInt(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
