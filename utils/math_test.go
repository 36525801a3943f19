package utils

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/RNN/params"
)

func TestColVectorSoftmaxSumsToOne(t *testing.T) {
	v := mat.NewDense(4, 1, []float64{1000, 999, -2, 0.5}) // large values: stability check
	p := ColVectorSoftmax(v)
	sum := 0.0
	for i := 0; i < 4; i++ {
		pi := p.At(i, 0)
		if pi < 0 || pi > 1 || math.IsNaN(pi) {
			t.Fatalf("prob[%d]=%v out of range", i, pi)
		}
		sum += pi
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("softmax sums to %v", sum)
	}
	if p.At(0, 0) <= p.At(1, 0) {
		t.Fatal("ordering not preserved")
	}
}

func TestCrossEntropyGradSumsToZero(t *testing.T) {
	logits := mat.NewDense(5, 1, []float64{0.1, -1.2, 3.0, 0.0, 0.7})
	loss, grad := CrossEntropyWithIndex(logits, 2)
	if loss <= 0 {
		t.Fatalf("loss should be positive, got %v", loss)
	}
	// softmax-minus-onehot gradient sums to zero
	sum := 0.0
	for i := 0; i < 5; i++ {
		sum += grad.At(i, 0)
	}
	if math.Abs(sum) > 1e-9 {
		t.Fatalf("grad sums to %v", sum)
	}
	if grad.At(2, 0) >= 0 {
		t.Fatal("gold entry should have negative gradient")
	}
}

func TestClipGradsCapsGlobalNorm(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{3, 0, 0, 4}) // norm 5
	b := mat.NewDense(1, 2, []float64{0, 12})      // norm 12 -> global 13
	ClipGrads(1.0, a, b)
	sumSq := 0.0
	for _, g := range []*mat.Dense{a, b} {
		r, c := g.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				sumSq += g.At(i, j) * g.At(i, j)
			}
		}
	}
	if norm := math.Sqrt(sumSq); math.Abs(norm-1.0) > 1e-9 {
		t.Fatalf("global norm after clip = %v", norm)
	}

	// under the threshold: untouched
	c := mat.NewDense(1, 1, []float64{0.5})
	ClipGrads(1.0, c)
	if c.At(0, 0) != 0.5 {
		t.Fatal("clip rescaled a small gradient")
	}
}

func TestLRScheduleWarmupAndDecay(t *testing.T) {
	oldCfg := params.Config
	defer func() { params.Config = oldCfg }()
	params.Config.WarmupSteps = 100
	params.Config.DecaySteps = 1000

	base := 0.01
	if lr := LRSchedule(50, base); math.Abs(lr-0.005) > 1e-12 {
		t.Fatalf("mid-warmup lr = %v", lr)
	}
	if lr := LRSchedule(100, base); math.Abs(lr-base) > 1e-12 {
		t.Fatalf("end-of-warmup lr = %v", lr)
	}
	// decays monotonically toward the 10% floor
	prev := LRSchedule(100, base)
	for _, s := range []int{200, 500, 900, 1100} {
		lr := LRSchedule(s, base)
		if lr > prev+1e-15 {
			t.Fatalf("lr rose during decay at step %d: %v > %v", s, lr, prev)
		}
		prev = lr
	}
	if lr := LRSchedule(100000, base); math.Abs(lr-0.1*base) > 1e-12 {
		t.Fatalf("floor lr = %v, want %v", lr, 0.1*base)
	}
}

func TestArgmax(t *testing.T) {
	v := mat.NewDense(4, 1, []float64{-1, 7, 3, 7})
	if got := Argmax(v); got != 1 {
		t.Fatalf("Argmax = %d, want 1 (first max wins)", got)
	}
}
