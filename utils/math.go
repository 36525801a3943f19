package utils

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/RNN/params"
)

// Matrix functions I'm going to use for the calculations in the program

// r = rows of matrix
// c = columns of matrix
// o = output
// m = matrix input number 1
// n = matrix input number 2

func Dot(m, n mat.Matrix) mat.Matrix {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func Apply(fn func(i, j int, v float64) float64, m mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(fn, m)
	return o
}

func Scale(s float64, m mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Scale(s, m)
	return o
}

func Multiply(m, n mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.MulElem(m, n)
	return o
}

func Add(m, n mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Add(m, n)
	return o
}

func Subtract(m, n mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Sub(m, n)
	return o
}

func ToDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(m)
}

// ---------- Elementwise activations ----------

func SigmoidApply(i, j int, x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func TanhApply(i, j int, x float64) float64 {
	return math.Tanh(x)
}

// SigmoidPrimeFromOut takes the sigmoid OUTPUT s and returns s*(1-s).
func SigmoidPrimeFromOut(s float64) float64 {
	return s * (1.0 - s)
}

// TanhPrimeFromOut takes the tanh OUTPUT t and returns 1-t^2.
func TanhPrimeFromOut(t float64) float64 {
	return 1.0 - t*t
}

// ---------- Softmax / loss ----------

// ColVectorSoftmax applies softmax across the single column of a (r x 1) vector.
// Used for logits -> probabilities in the CE loss.
func ColVectorSoftmax(v *mat.Dense) *mat.Dense {
	r, c := v.Dims()
	if c != 1 {
		panic("ColVectorSoftmax expects a (r x 1) column vector")
	}
	out := mat.NewDense(r, 1, nil)
	// stability: subtract max
	mx := v.At(0, 0)
	for i := 1; i < r; i++ {
		if v.At(i, 0) > mx {
			mx = v.At(i, 0)
		}
	}
	sum := 0.0
	for i := 0; i < r; i++ {
		e := math.Exp(v.At(i, 0) - mx)
		out.Set(i, 0, e)
		sum += e
	}
	for i := 0; i < r; i++ {
		out.Set(i, 0, out.At(i, 0)/sum)
	}
	return out
}

func CrossEntropyWithIndex(logits *mat.Dense, gold int) (float64, *mat.Dense) {
	r, c := logits.Dims()
	if c != 1 {
		panic("CrossEntropyWithIndex expects (r x 1) logits vector")
	}
	prob := ColVectorSoftmax(logits)
	if gold < 0 || gold >= r {
		gold = 0
	}
	loss := -math.Log(prob.At(gold, 0) + 1e-12)
	grad := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		grad.Set(i, 0, prob.At(i, 0))
	}
	grad.Set(gold, 0, grad.At(gold, 0)-1.0)
	return loss, grad
}

// Argmax over a (r x 1) column vector.
func Argmax(v *mat.Dense) int {
	r, c := v.Dims()
	if c != 1 {
		panic("Argmax expects a (r x 1) column vector")
	}
	best := 0
	bestVal := v.At(0, 0)
	for i := 1; i < r; i++ {
		if v.At(i, 0) > bestVal {
			best = i
			bestVal = v.At(i, 0)
		}
	}
	return best
}

func SampleFromProbs(probs *mat.Dense, topK int, topP float64) int {
	r, c := probs.Dims()
	if c != 1 {
		panic("sampleFromProbs expects column vector")
	}
	type kv struct {
		id  int
		val float64
	}
	arr := make([]kv, r)
	sum := 0.0
	for i := 0; i < r; i++ {
		p := probs.At(i, 0)
		arr[i] = kv{id: i, val: p}
		sum += p
	}
	// Normalize (just in case)
	for i := range arr {
		arr[i].val /= sum
	}

	// Sort descending by prob
	sort.Slice(arr, func(i, j int) bool { return arr[i].val > arr[j].val })

	// Apply top-k
	if topK > 0 && topK < len(arr) {
		arr = arr[:topK]
	}

	// Apply top-p (nucleus)
	if topP > 0 && topP < 1 {
		cum := 0.0
		cut := len(arr)
		for i, kv := range arr {
			cum += kv.val
			if cum >= topP {
				cut = i + 1
				break
			}
		}
		arr = arr[:cut]
	}

	// Renormalize after filtering
	sum = 0.0
	for _, kv := range arr {
		sum += kv.val
	}
	for i := range arr {
		arr[i].val /= sum
	}

	// Sample
	rnd := rand.Float64()
	cum := 0.0
	for _, kv := range arr {
		cum += kv.val
		if rnd < cum {
			return kv.id
		}
	}
	return arr[len(arr)-1].id // fallback
}

// ---------- Schedules / stability ----------

// LRSchedule: linear warmup to base LR, then cosine decay down to 10% of base.
func LRSchedule(step int, base float64) float64 {
	warm := params.Config.WarmupSteps
	if warm < 1 {
		warm = 1
	}
	if step < warm {
		return base * float64(step) / float64(warm)
	}
	decay := float64(params.Config.DecaySteps)
	if decay <= 0 {
		return base
	}
	progress := (float64(step) - float64(warm)) / decay
	if progress > 1 {
		progress = 1
	}
	floor := 0.1 * base
	return floor + 0.5*(base-floor)*(1.0+math.Cos(math.Pi*progress))
}

// ClipGrads rescales all grads together if their global L2 norm exceeds c.
func ClipGrads(c float64, grads ...*mat.Dense) {
	if c <= 0 {
		return
	}
	sumSq := 0.0
	for _, g := range grads {
		if g == nil {
			continue
		}
		r, cc := g.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < cc; j++ {
				v := g.At(i, j)
				sumSq += v * v
			}
		}
	}
	norm := math.Sqrt(sumSq)
	if norm <= c {
		return
	}
	scale := c / (norm + 1e-12)
	for _, g := range grads {
		if g == nil {
			continue
		}
		g.Scale(scale, g)
	}
}

// MatrixNorm returns the Frobenius norm (debug logging).
func MatrixNorm(m *mat.Dense) float64 {
	return mat.Norm(m, 2)
}

// PrintMatrix prints a Gonum matrix in a compact form.
func PrintMatrix(m mat.Matrix, name string) {
	r, c := m.Dims()
	fmt.Printf("Matrix %s (%dx%d):\n", name, r, c)
	fa := mat.Formatted(m, mat.Prefix("  "), mat.Squeeze())
	fmt.Printf("%v\n", fa)
}

// RandomArray fills a slice with uniform values in ±1/sqrt(v), the same
// fan-in scaling the rest of the project initializes weights with.
func RandomArray(size int, v float64) []float64 {
	min := -1.0 / math.Sqrt(v+1e-12)
	max := 1.0 / math.Sqrt(v+1e-12)
	out := make([]float64, size)
	for i := 0; i < size; i++ {
		out[i] = min + (max-min)*rand.Float64()
	}
	return out
}

// OneHot returns a (n x 1) column with a single 1 at idx.
func OneHot(n, idx int) *mat.Dense {
	v := make([]float64, n)
	if idx >= 0 && idx < n {
		v[idx] = 1.0
	}
	return mat.NewDense(n, 1, v)
}
