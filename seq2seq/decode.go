package seq2seq

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/RNN/params"
	"github.com/manningwu07/RNN/utils"
)

// Inference splits the trained graph the way the tutorial setup does:
// EncodeSource is the standalone encoder, DecodeStep is one tick of the
// standalone decoder. The autoregressive loops below just wire the two.

// EncodeSource runs the encoder over a one-hot source tensor and returns
// the thought vector.
func (m *Model) EncodeSource(src *mat.Dense) State {
	st := m.Encoder.NewState()
	_, T := src.Dims()
	for t := 0; t < T; t++ {
		st = m.Encoder.Step(col(src, t), st, nil)
	}
	return st
}

// DecodeStep advances the decoder one tick: feeds one one-hot input
// column and the current state, returns the softmax distribution over
// the target vocabulary and the updated state.
func (m *Model) DecodeStep(x *mat.Dense, st State) (*mat.Dense, State) {
	next := m.Decoder.Step(x, st, nil)
	probs := utils.ColVectorSoftmax(m.logits(next.H))
	return probs, next
}

// GreedyDecode translates one vectorized source sentence: encode, then
// argmax one character at a time, feeding each prediction back in, until
// the end marker or MaxDecodeLen.
func GreedyDecode(m *Model, src *mat.Dense) string {
	return decode(m, src, func(probs *mat.Dense) int {
		return utils.Argmax(probs)
	})
}

// SampleDecode is the stochastic variant for the chat CLI: top-k/top-p
// sampling instead of argmax.
func SampleDecode(m *Model, src *mat.Dense, topK int, topP float64) string {
	return decode(m, src, func(probs *mat.Dense) int {
		return utils.SampleFromProbs(probs, topK, topP)
	})
}

func decode(m *Model, src *mat.Dense, pick func(*mat.Dense) int) string {
	st := m.EncodeSource(src)

	tgtSize := len(params.TgtVocab.IDToToken)
	startID := lookupTgt(params.StartChar)
	endID := lookupTgt(params.EndChar)

	var sb strings.Builder
	x := utils.OneHot(tgtSize, startID)
	maxLen := params.Config.MaxDecodeLen
	if maxLen <= 0 {
		maxLen = params.MaxTgtLen
	}
	for step := 0; step < maxLen; step++ {
		probs, next := m.DecodeStep(x, st)
		st = next
		id := pick(probs)
		if id == endID {
			break
		}
		// the GO marker is never part of the translation even if the
		// model emits it; it still gets fed back as the next input
		if id != startID && id >= 0 && id < tgtSize {
			sb.WriteString(params.TgtVocab.IDToToken[id])
		}
		x = utils.OneHot(tgtSize, id)
	}
	return sb.String()
}

func lookupTgt(tok string) int {
	if id, ok := params.TgtVocab.TokenToID[tok]; ok {
		return id
	}
	return 0
}
