package seq2seq

import (
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/RNN/optimizations"
	"github.com/manningwu07/RNN/params"
	"github.com/manningwu07/RNN/utils"
)

// LSTM is one recurrent layer. Each gate carries an input weight, a
// recurrent weight and a bias: i/f/o are sigmoid gates, the c-gate
// (cell write) is tanh. States are column vectors, one timestep per Step.
type LSTM struct {
	InSize     int
	HiddenSize int

	Wix, Wih, Bi *mat.Dense // input gate
	Wfx, Wfh, Bf *mat.Dense // forget gate
	Wcx, Wch, Bc *mat.Dense // cell write
	Wox, Woh, Bo *mat.Dense // output gate

	opt []*optimizations.AdamState // parallel to Params(), lazy
}

// State is the (h, c) pair threaded through timesteps. The encoder's
// final State is the thought vector handed to the decoder.
type State struct {
	H *mat.Dense // (hidden x 1)
	C *mat.Dense // (hidden x 1)
}

func NewLSTM(inSize, hiddenSize int) *LSTM {
	fanIn := float64(inSize + hiddenSize)
	w := func(r, c int) *mat.Dense {
		return mat.NewDense(r, c, utils.RandomArray(r*c, fanIn))
	}
	b := func() *mat.Dense { return mat.NewDense(hiddenSize, 1, nil) }
	return &LSTM{
		InSize:     inSize,
		HiddenSize: hiddenSize,
		Wix:        w(hiddenSize, inSize), Wih: w(hiddenSize, hiddenSize), Bi: b(),
		Wfx:        w(hiddenSize, inSize), Wfh: w(hiddenSize, hiddenSize), Bf: b(),
		Wcx:        w(hiddenSize, inSize), Wch: w(hiddenSize, hiddenSize), Bc: b(),
		Wox:        w(hiddenSize, inSize), Woh: w(hiddenSize, hiddenSize), Bo: b(),
	}
}

func (l *LSTM) NewState() State {
	return State{
		H: mat.NewDense(l.HiddenSize, 1, nil),
		C: mat.NewDense(l.HiddenSize, 1, nil),
	}
}

// Params returns every parameter matrix in a fixed order. Grads from
// ZeroGrads follow the same order, as do the Adam states.
func (l *LSTM) Params() []*mat.Dense {
	return []*mat.Dense{
		l.Wix, l.Wih, l.Bi,
		l.Wfx, l.Wfh, l.Bf,
		l.Wcx, l.Wch, l.Bc,
		l.Wox, l.Woh, l.Bo,
	}
}

// LSTMGrads accumulates parameter gradients over a BPTT pass.
type LSTMGrads struct {
	Wix, Wih, Bi *mat.Dense
	Wfx, Wfh, Bf *mat.Dense
	Wcx, Wch, Bc *mat.Dense
	Wox, Woh, Bo *mat.Dense
}

func (l *LSTM) ZeroGrads() *LSTMGrads {
	z := func(p *mat.Dense) *mat.Dense {
		r, c := p.Dims()
		return mat.NewDense(r, c, nil)
	}
	return &LSTMGrads{
		Wix: z(l.Wix), Wih: z(l.Wih), Bi: z(l.Bi),
		Wfx: z(l.Wfx), Wfh: z(l.Wfh), Bf: z(l.Bf),
		Wcx: z(l.Wcx), Wch: z(l.Wch), Bc: z(l.Bc),
		Wox: z(l.Wox), Woh: z(l.Woh), Bo: z(l.Bo),
	}
}

func (g *LSTMGrads) List() []*mat.Dense {
	return []*mat.Dense{
		g.Wix, g.Wih, g.Bi,
		g.Wfx, g.Wfh, g.Bf,
		g.Wcx, g.Wch, g.Bc,
		g.Wox, g.Woh, g.Bo,
	}
}

// stepCache records one timestep's activations for BPTT.
type stepCache struct {
	x, hPrev, cPrev      *mat.Dense
	i, f, g, o, c, tanhC *mat.Dense
}

// Tape records a forward sequence so Backward can walk it in reverse.
type Tape struct {
	steps []stepCache
}

func (t *Tape) Len() int { return len(t.steps) }

// Step runs one timestep: x is an (InSize x 1) column (usually one-hot).
// When tape is non-nil the activations are recorded for backprop.
func (l *LSTM) Step(x *mat.Dense, st State, tape *Tape) State {
	if r, c := x.Dims(); r != l.InSize || c != 1 {
		panic("lstm: input must be (InSize x 1)")
	}
	gate := func(wx, wh, b *mat.Dense) *mat.Dense {
		pre := utils.ToDense(utils.Add(utils.Dot(wx, x), utils.Dot(wh, st.H)))
		return utils.ToDense(utils.Add(pre, b))
	}
	i := utils.ToDense(utils.Apply(utils.SigmoidApply, gate(l.Wix, l.Wih, l.Bi)))
	f := utils.ToDense(utils.Apply(utils.SigmoidApply, gate(l.Wfx, l.Wfh, l.Bf)))
	g := utils.ToDense(utils.Apply(utils.TanhApply, gate(l.Wcx, l.Wch, l.Bc)))
	o := utils.ToDense(utils.Apply(utils.SigmoidApply, gate(l.Wox, l.Woh, l.Bo)))

	// c = f∘cPrev + i∘g ; h = o∘tanh(c)
	c := utils.ToDense(utils.Add(utils.Multiply(f, st.C), utils.Multiply(i, g)))
	tanhC := utils.ToDense(utils.Apply(utils.TanhApply, c))
	h := utils.ToDense(utils.Multiply(o, tanhC))

	if tape != nil {
		tape.steps = append(tape.steps, stepCache{
			x: x, hPrev: st.H, cPrev: st.C,
			i: i, f: f, g: g, o: o, c: c, tanhC: tanhC,
		})
	}
	return State{H: h, C: c}
}

// Backward runs BPTT over a recorded tape.
//
// dhPerStep[t] is the loss gradient on the hidden output of step t (nil
// when that step feeds no loss directly — e.g. every encoder step).
// dhFinal/dcFinal seed the carried state gradient from whatever consumed
// the final state (the decoder, for an encoder tape). Either may be nil.
//
// Returns the accumulated parameter grads and the gradient on the
// initial state, which a preceding network continues from. Gradients on
// the inputs themselves are dropped: inputs are one-hot data, there is
// no embedding upstream to train.
func (l *LSTM) Backward(tape *Tape, dhPerStep []*mat.Dense, dhFinal, dcFinal *mat.Dense) (*LSTMGrads, State) {
	grads := l.ZeroGrads()
	H := l.HiddenSize

	dhNext := mat.NewDense(H, 1, nil)
	dcNext := mat.NewDense(H, 1, nil)
	if dhFinal != nil {
		dhNext.Copy(dhFinal)
	}
	if dcFinal != nil {
		dcNext.Copy(dcFinal)
	}

	for t := len(tape.steps) - 1; t >= 0; t-- {
		s := tape.steps[t]

		dh := mat.NewDense(H, 1, nil)
		dh.Copy(dhNext)
		if dhPerStep != nil && t < len(dhPerStep) && dhPerStep[t] != nil {
			dh.Add(dh, dhPerStep[t])
		}

		// h = o∘tanh(c)
		do := utils.ToDense(utils.Multiply(dh, s.tanhC))
		dc := mat.NewDense(H, 1, nil)
		for k := 0; k < H; k++ {
			tc := s.tanhC.At(k, 0)
			dc.Set(k, 0, dcNext.At(k, 0)+dh.At(k, 0)*s.o.At(k, 0)*utils.TanhPrimeFromOut(tc))
		}

		// c = f∘cPrev + i∘g
		di := utils.ToDense(utils.Multiply(dc, s.g))
		df := utils.ToDense(utils.Multiply(dc, s.cPrev))
		dg := utils.ToDense(utils.Multiply(dc, s.i))
		dcNext = utils.ToDense(utils.Multiply(dc, s.f))

		// through the gate nonlinearities to pre-activations
		dai := mat.NewDense(H, 1, nil)
		daf := mat.NewDense(H, 1, nil)
		dao := mat.NewDense(H, 1, nil)
		dag := mat.NewDense(H, 1, nil)
		for k := 0; k < H; k++ {
			dai.Set(k, 0, di.At(k, 0)*utils.SigmoidPrimeFromOut(s.i.At(k, 0)))
			daf.Set(k, 0, df.At(k, 0)*utils.SigmoidPrimeFromOut(s.f.At(k, 0)))
			dao.Set(k, 0, do.At(k, 0)*utils.SigmoidPrimeFromOut(s.o.At(k, 0)))
			dag.Set(k, 0, dg.At(k, 0)*utils.TanhPrimeFromOut(s.g.At(k, 0)))
		}

		// accumulate weight grads: dW += da xᵀ, dU += da hPrevᵀ, dB += da
		accum := func(wx, wh, b *mat.Dense, da *mat.Dense) {
			wx.Add(wx, utils.ToDense(utils.Dot(da, s.x.T())))
			wh.Add(wh, utils.ToDense(utils.Dot(da, s.hPrev.T())))
			b.Add(b, da)
		}
		accum(grads.Wix, grads.Wih, grads.Bi, dai)
		accum(grads.Wfx, grads.Wfh, grads.Bf, daf)
		accum(grads.Wcx, grads.Wch, grads.Bc, dag)
		accum(grads.Wox, grads.Woh, grads.Bo, dao)

		// carried hidden-state gradient
		dhPrev := utils.ToDense(utils.Dot(l.Wih.T(), dai))
		dhPrev.Add(dhPrev, utils.ToDense(utils.Dot(l.Wfh.T(), daf)))
		dhPrev.Add(dhPrev, utils.ToDense(utils.Dot(l.Wch.T(), dag)))
		dhPrev.Add(dhPrev, utils.ToDense(utils.Dot(l.Woh.T(), dao)))
		dhNext = dhPrev
	}

	return grads, State{H: dhNext, C: dcNext}
}

// Update applies one AdamW step per parameter.
func (l *LSTM) Update(g *LSTMGrads, lr float64) {
	ps := l.Params()
	gs := g.List()
	if l.opt == nil {
		l.opt = make([]*optimizations.AdamState, len(ps))
		for k := range ps {
			l.opt[k] = optimizations.NewAdamState(ps[k])
		}
	}
	cfg := params.Config
	for k := range ps {
		l.opt[k].Step(ps[k], gs[k], lr, cfg.AdamBeta1, cfg.AdamBeta2, cfg.AdamEps, cfg.WeightDecay)
	}
}
