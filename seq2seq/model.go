package seq2seq

import (
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/RNN/optimizations"
	"github.com/manningwu07/RNN/params"
	"github.com/manningwu07/RNN/utils"
)

// Model is the two-LSTM encoder/decoder with a dense softmax head.
// The encoder reads the source one-hot columns and its final (h, c)
// becomes the decoder's initial state; the decoder reads the
// marker-shifted target and the dense layer projects each hidden state
// to target-vocab logits.
type Model struct {
	Encoder *LSTM
	Decoder *LSTM

	Wd *mat.Dense // (|TgtVocab| x latent)
	Bd *mat.Dense // (|TgtVocab| x 1)

	optWd, optBd *optimizations.AdamState
}

func NewModel(srcVocabSize, tgtVocabSize, latentDim int) *Model {
	return &Model{
		Encoder: NewLSTM(srcVocabSize, latentDim),
		Decoder: NewLSTM(tgtVocabSize, latentDim),
		Wd:      mat.NewDense(tgtVocabSize, latentDim, utils.RandomArray(tgtVocabSize*latentDim, float64(latentDim))),
		Bd:      mat.NewDense(tgtVocabSize, 1, nil),
	}
}

// col extracts column t as a fresh (r x 1) vector.
func col(m *mat.Dense, t int) *mat.Dense {
	r, _ := m.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, m.At(i, t))
	}
	return out
}

// logits projects a decoder hidden state to target-vocab logits.
func (m *Model) logits(h *mat.Dense) *mat.Dense {
	return utils.ToDense(utils.Add(utils.Dot(m.Wd, h), m.Bd))
}

// TrainStep runs teacher forcing on one example and applies the AdamW
// updates. src is (|SrcVocab| x Ts) one-hot, decIn is (|TgtVocab| x Tt)
// one-hot, gold[t] is the id decIn column t should predict. Returns the
// summed cross-entropy and the number of predicted tokens.
func (m *Model) TrainStep(src, decIn *mat.Dense, gold []int, encLR, decLR, denseLR float64) (float64, int) {
	// ---- forward: encoder ----
	encTape := &Tape{}
	encState := m.Encoder.NewState()
	_, Ts := src.Dims()
	for t := 0; t < Ts; t++ {
		encState = m.Encoder.Step(col(src, t), encState, encTape)
	}

	// ---- forward: decoder with teacher forcing, loss per step ----
	decTape := &Tape{}
	decState := encState
	_, Tt := decIn.Dims()
	if len(gold) < Tt {
		panic("TrainStep: gold shorter than decoder input")
	}

	vocab, latent := m.Wd.Dims()
	dWd := mat.NewDense(vocab, latent, nil)
	dBd := mat.NewDense(vocab, 1, nil)
	dh := make([]*mat.Dense, Tt)

	totalLoss := 0.0
	for t := 0; t < Tt; t++ {
		decState = m.Decoder.Step(col(decIn, t), decState, decTape)
		h := decState.H
		loss, dLogits := utils.CrossEntropyWithIndex(m.logits(h), gold[t])
		totalLoss += loss

		// dense grads and the per-step hidden gradient
		dWd.Add(dWd, utils.ToDense(utils.Dot(dLogits, h.T())))
		dBd.Add(dBd, dLogits)
		dh[t] = utils.ToDense(utils.Dot(m.Wd.T(), dLogits))
	}

	// ---- backward: decoder BPTT, then encoder seeded by the carried
	// thought-vector gradient ----
	decGrads, d0 := m.Decoder.Backward(decTape, dh, nil, nil)
	encGrads, _ := m.Encoder.Backward(encTape, nil, d0.H, d0.C)

	if params.Config.GradClip > 0 {
		all := append(append(decGrads.List(), encGrads.List()...), dWd, dBd)
		utils.ClipGrads(params.Config.GradClip, all...)
	}

	m.Encoder.Update(encGrads, encLR)
	m.Decoder.Update(decGrads, decLR)
	m.updateDense(dWd, dBd, denseLR)

	return totalLoss, Tt
}

func (m *Model) updateDense(dWd, dBd *mat.Dense, lr float64) {
	if m.optWd == nil {
		m.optWd = optimizations.NewAdamState(m.Wd)
		m.optBd = optimizations.NewAdamState(m.Bd)
	}
	cfg := params.Config
	m.optWd.Step(m.Wd, dWd, lr, cfg.AdamBeta1, cfg.AdamBeta2, cfg.AdamEps, cfg.WeightDecay)
	m.optBd.Step(m.Bd, dBd, lr, cfg.AdamBeta1, cfg.AdamBeta2, cfg.AdamEps, 0.0)
}

// Loss is the forward-only teacher-forcing loss (validation).
func (m *Model) Loss(src, decIn *mat.Dense, gold []int) (float64, int) {
	encState := m.Encoder.NewState()
	_, Ts := src.Dims()
	for t := 0; t < Ts; t++ {
		encState = m.Encoder.Step(col(src, t), encState, nil)
	}
	decState := encState
	_, Tt := decIn.Dims()
	total := 0.0
	for t := 0; t < Tt; t++ {
		decState = m.Decoder.Step(col(decIn, t), decState, nil)
		loss, _ := utils.CrossEntropyWithIndex(m.logits(decState.H), gold[t])
		total += loss
	}
	return total, Tt
}
