package seq2seq

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/RNN/optimizations"
	"github.com/manningwu07/RNN/params"
)

// SaveModel persists the whole encoder/decoder (weights + Adam moments)
// to disk using gob. Every mat.Dense is flattened into []float64 + dims
// inside plain structs. Both vocabularies and the padded tensor widths
// ride along so a loaded model translates without the training corpus.

type lstmData struct {
	InSize, HiddenSize int

	// One entry per parameter, in LSTM.Params() order.
	Weights [][]float64
	Rows    []int
	Cols    []int

	// Adam moments, same order. Empty when the layer was never updated.
	AdamM [][]float64
	AdamV [][]float64
	AdamT []int
}

type modelData struct {
	LatentDim int

	Encoder lstmData
	Decoder lstmData

	// Dense head
	WdData   []float64
	WdR, WdC int
	BdData   []float64
	MWd, VWd []float64
	MBd, VBd []float64
	WdT, BdT int

	// Vocab + tensor widths
	SrcVocab  []string
	TgtVocab  []string
	MaxSrcLen int
	MaxTgtLen int
}

func flat(m *mat.Dense) []float64 {
	raw := mat.DenseCopyOf(m).RawMatrix()
	return append([]float64(nil), raw.Data...)
}

func packLSTM(l *LSTM) lstmData {
	ps := l.Params()
	d := lstmData{
		InSize:     l.InSize,
		HiddenSize: l.HiddenSize,
		Weights:    make([][]float64, len(ps)),
		Rows:       make([]int, len(ps)),
		Cols:       make([]int, len(ps)),
	}
	for k, p := range ps {
		r, c := p.Dims()
		d.Rows[k], d.Cols[k] = r, c
		d.Weights[k] = flat(p)
	}
	if l.opt != nil {
		d.AdamM = make([][]float64, len(ps))
		d.AdamV = make([][]float64, len(ps))
		d.AdamT = make([]int, len(ps))
		for k, s := range l.opt {
			d.AdamM[k] = flat(s.M)
			d.AdamV[k] = flat(s.V)
			d.AdamT[k] = s.T
		}
	}
	return d
}

func unpackLSTM(l *LSTM, d lstmData) error {
	ps := l.Params()
	if len(d.Weights) != len(ps) {
		return fmt.Errorf("LoadModel: lstm has %d params, file has %d", len(ps), len(d.Weights))
	}
	for k, p := range ps {
		r, c := p.Dims()
		if d.Rows[k] != r || d.Cols[k] != c {
			return fmt.Errorf("LoadModel: param %d is (%dx%d), file has (%dx%d)",
				k, r, c, d.Rows[k], d.Cols[k])
		}
		p.Copy(mat.NewDense(r, c, d.Weights[k]))
	}
	if len(d.AdamM) == len(ps) {
		l.opt = make([]*optimizations.AdamState, len(ps))
		for k := range ps {
			l.opt[k] = &optimizations.AdamState{
				M: mat.NewDense(d.Rows[k], d.Cols[k], d.AdamM[k]),
				V: mat.NewDense(d.Rows[k], d.Cols[k], d.AdamV[k]),
				T: d.AdamT[k],
			}
		}
	}
	return nil
}

func SaveModel(m *Model, filename string) error {
	data := modelData{
		LatentDim: m.Encoder.HiddenSize,
		Encoder:   packLSTM(m.Encoder),
		Decoder:   packLSTM(m.Decoder),
		MaxSrcLen: params.MaxSrcLen,
		MaxTgtLen: params.MaxTgtLen,
	}

	r, c := m.Wd.Dims()
	data.WdR, data.WdC = r, c
	data.WdData = flat(m.Wd)
	data.BdData = flat(m.Bd)
	if m.optWd != nil {
		data.MWd = flat(m.optWd.M)
		data.VWd = flat(m.optWd.V)
		data.WdT = m.optWd.T
		data.MBd = flat(m.optBd.M)
		data.VBd = flat(m.optBd.V)
		data.BdT = m.optBd.T
	}

	if len(params.SrcVocab.IDToToken) > 0 {
		data.SrcVocab = append([]string(nil), params.SrcVocab.IDToToken...)
	}
	if len(params.TgtVocab.IDToToken) > 0 {
		data.TgtVocab = append([]string(nil), params.TgtVocab.IDToToken...)
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}

// LoadModel rebuilds a model from a SaveModel blob and restores the
// vocab globals in params.
func LoadModel(filename string) (*Model, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	data := modelData{}
	dec := gob.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}

	if len(data.SrcVocab) == 0 || len(data.TgtVocab) == 0 {
		return nil, fmt.Errorf("LoadModel: %s carries no vocabularies", filename)
	}
	params.SrcVocab = rebuildVocab(data.SrcVocab)
	params.TgtVocab = rebuildVocab(data.TgtVocab)
	params.MaxSrcLen = data.MaxSrcLen
	params.MaxTgtLen = data.MaxTgtLen

	m := NewModel(len(data.SrcVocab), len(data.TgtVocab), data.LatentDim)
	if err := unpackLSTM(m.Encoder, data.Encoder); err != nil {
		return nil, err
	}
	if err := unpackLSTM(m.Decoder, data.Decoder); err != nil {
		return nil, err
	}

	if r, c := m.Wd.Dims(); r != data.WdR || c != data.WdC {
		return nil, fmt.Errorf("LoadModel: dense head is (%dx%d), file has (%dx%d)",
			r, c, data.WdR, data.WdC)
	}
	m.Wd.Copy(mat.NewDense(data.WdR, data.WdC, data.WdData))
	m.Bd.Copy(mat.NewDense(data.WdR, 1, data.BdData))
	if len(data.MWd) > 0 {
		m.optWd = &optimizations.AdamState{
			M: mat.NewDense(data.WdR, data.WdC, data.MWd),
			V: mat.NewDense(data.WdR, data.WdC, data.VWd),
			T: data.WdT,
		}
		m.optBd = &optimizations.AdamState{
			M: mat.NewDense(data.WdR, 1, data.MBd),
			V: mat.NewDense(data.WdR, 1, data.VBd),
			T: data.BdT,
		}
	}
	return m, nil
}

func rebuildVocab(toks []string) params.Vocabulary {
	tok2id := make(map[string]int, len(toks))
	for i, t := range toks {
		tok2id[t] = i
	}
	return params.Vocabulary{
		TokenToID: tok2id,
		IDToToken: append([]string(nil), toks...),
	}
}
