package logreg

import (
	"math"
	"testing"
)

func TestTrainPredictAndRoundTrip(t *testing.T) {
	samples, labels := separableData()
	model, err := Train(samples, labels, []string{"x1", "x2"}, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}

	pLow := model.PredictProb([]float64{-2, -2})
	pHigh := model.PredictProb([]float64{3, 3})
	if pLow >= 0.5 {
		t.Fatalf("expected low sample prob < 0.5, got %.4f", pLow)
	}
	if pHigh <= 0.5 {
		t.Fatalf("expected high sample prob > 0.5, got %.4f", pHigh)
	}

	blob, err := model.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	restored, err := UnmarshalBinary(blob)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if diff := math.Abs(restored.PredictProb([]float64{3, 3}) - pHigh); diff > 1e-6 {
		t.Fatalf("roundtrip changed prediction by %.8f", diff)
	}
}

func TestTrainBalancedWeightsLiftMinorityClass(t *testing.T) {
	// 90/10 imbalance with overlapping clusters. Balanced weighting should
	// keep the decision boundary between the clusters rather than collapsing
	// onto the majority class.
	samples := make([][]float64, 0, 100)
	labels := make([]int, 0, 100)
	for i := 0; i < 90; i++ {
		samples = append(samples, []float64{-1 - float64(i%10)/10, -1})
		labels = append(labels, 0)
	}
	for i := 0; i < 10; i++ {
		samples = append(samples, []float64{1 + float64(i)/10, 1})
		labels = append(labels, 1)
	}

	model, err := Train(samples, labels, []string{"x1", "x2"}, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if p := model.PredictProb([]float64{1.5, 1}); p <= 0.5 {
		t.Fatalf("minority-class sample prob = %.4f, want > 0.5", p)
	}
}

func TestTrainRegularizationShrinksWeights(t *testing.T) {
	samples, labels := separableData()

	loose, err := Train(samples, labels, nil, TrainOptions{C: 10.0})
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	tight, err := Train(samples, labels, nil, TrainOptions{C: 0.01})
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if norm(tight.artifact.Weights) >= norm(loose.artifact.Weights) {
		t.Fatalf("stronger penalty should shrink weights: %v vs %v",
			norm(tight.artifact.Weights), norm(loose.artifact.Weights))
	}
}

func TestTrainRejectsBadInput(t *testing.T) {
	if _, err := Train(nil, nil, nil, DefaultTrainOptions()); err == nil {
		t.Fatal("expected error for empty dataset")
	}
	if _, err := Train([][]float64{{1}}, []int{1, 0}, nil, DefaultTrainOptions()); err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestUnmarshalRejectsInvalid(t *testing.T) {
	if _, err := UnmarshalBinary(nil); err == nil {
		t.Fatal("expected error for empty blob")
	}
	if _, err := UnmarshalBinary([]byte(`{"weights":[1],"means":[1,2],"stds":[1]}`)); err == nil {
		t.Fatal("expected error for inconsistent artifact")
	}
}

func TestPredictProbDimensionMismatch(t *testing.T) {
	samples, labels := separableData()
	model, err := Train(samples, labels, nil, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if p := model.PredictProb([]float64{1}); p != 0.5 {
		t.Fatalf("mismatched sample should score 0.5, got %v", p)
	}
}

func norm(w []float64) float64 {
	s := 0.0
	for _, v := range w {
		s += v * v
	}
	return math.Sqrt(s)
}

func separableData() ([][]float64, []int) {
	samples := make([][]float64, 0, 80)
	labels := make([]int, 0, 80)
	for i := 0; i < 40; i++ {
		samples = append(samples, []float64{-1.5 - float64(i)/40, -1.0 - float64(i)/60})
		labels = append(labels, 0)
	}
	for i := 0; i < 40; i++ {
		samples = append(samples, []float64{1.0 + float64(i)/40, 1.4 + float64(i)/60})
		labels = append(labels, 1)
	}
	return samples, labels
}
