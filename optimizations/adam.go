package optimizations

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// p -= lr * (mhat/(sqrt(vhat)+eps) + wd * p) with bias correction (AdamW).
func AdamUpdateInPlace(
	p, g, m, v *mat.Dense,
	t int,
	lr, beta1, beta2, eps, weightDecay float64,
) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("adamUpdateInPlace: grad shape mismatch")
	}
	if mr, mc := m.Dims(); mr != pr || mc != pc {
		panic("adamUpdateInPlace: m shape mismatch")
	}
	if vr, vc := v.Dims(); vr != pr || vc != pc {
		panic("adamUpdateInPlace: v shape mismatch")
	}
	b1t := math.Pow(beta1, float64(t))
	b2t := math.Pow(beta2, float64(t))
	c1 := 1.0 / (1.0 - b1t)
	c2 := 1.0 / (1.0 - b2t)
	for i := 0; i < pr; i++ {
		for j := 0; j < pc; j++ {
			gij := g.At(i, j)
			mij := beta1*m.At(i, j) + (1.0-beta1)*gij
			vij := beta2*v.At(i, j) + (1.0-beta2)*gij*gij
			mhat := mij * c1
			vhat := vij * c2
			denom := math.Sqrt(vhat) + eps
			wdTerm := weightDecay * p.At(i, j)
			update := mhat/denom + wdTerm
			pij := p.At(i, j) - lr*update
			m.Set(i, j, mij)
			v.Set(i, j, vij)
			p.Set(i, j, pij)
		}
	}
}

// ------- Adam optimizer state, one per parameter matrix --------

// AdamState carries the running moments and step counter for a single
// parameter. The LSTM layers have a dozen parameter matrices each, so
// state lives next to the parameter instead of in package globals.
type AdamState struct {
	M, V *mat.Dense
	T    int
}

func NewAdamState(p *mat.Dense) *AdamState {
	r, c := p.Dims()
	return &AdamState{
		M: mat.NewDense(r, c, nil),
		V: mat.NewDense(r, c, nil),
	}
}

// Step applies one AdamW update of p along grad g.
func (s *AdamState) Step(p, g *mat.Dense, lr, beta1, beta2, eps, weightDecay float64) {
	if s.M == nil {
		r, c := p.Dims()
		s.M = mat.NewDense(r, c, nil)
		s.V = mat.NewDense(r, c, nil)
		s.T = 0
	}
	s.T++
	AdamUpdateInPlace(p, g, s.M, s.V, s.T, lr, beta1, beta2, eps, weightDecay)
}
