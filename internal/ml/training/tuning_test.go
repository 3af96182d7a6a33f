package training

import "testing"

func separable(n int) ([][]float64, []int) {
	x := make([][]float64, 0, n)
	y := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			x = append(x, []float64{-1 - float64(i%7)/10, -0.5, 0, 0.1})
			y = append(y, 0)
		} else {
			x = append(x, []float64{1 + float64(i%7)/10, 0.5, 0, 0.1})
			y = append(y, 1)
		}
	}
	return x, y
}

func TestSelectCReturnsCandidate(t *testing.T) {
	x, y := separable(60)
	candidates := []float64{0.01, 0.1, 1.0, 10.0}
	c := selectC(x, y, candidates)
	found := false
	for _, v := range candidates {
		if v == c {
			found = true
		}
	}
	if !found {
		t.Fatalf("selected C %v not among candidates", c)
	}
}

func TestSelectCTinyDatasetFallsBack(t *testing.T) {
	x, y := separable(3)
	if c := selectC(x, y, []float64{0.01, 0.1}); c != 1.0 {
		t.Fatalf("tiny dataset should keep default C, got %v", c)
	}
}

func TestTuneThresholdInRange(t *testing.T) {
	x, y := separable(60)
	thr := tuneThreshold(x, y, 1.0)
	if thr < 0.20 || thr > 0.80 {
		t.Fatalf("threshold %v outside scan range", thr)
	}
}

func TestTuneThresholdSingleClassFallsBack(t *testing.T) {
	x, _ := separable(20)
	y := make([]int, 20)
	if thr := tuneThreshold(x, y, 1.0); thr != 0.5 {
		t.Fatalf("single-class tuning should keep 0.5, got %v", thr)
	}
}
