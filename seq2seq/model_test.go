package seq2seq

import (
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/RNN/params"
)

func testVocab(tokens ...string) params.Vocabulary {
	tok2id := make(map[string]int, len(tokens))
	for i, tk := range tokens {
		tok2id[tk] = i
	}
	return params.Vocabulary{TokenToID: tok2id, IDToToken: tokens}
}

// oneHotSeq builds a (n x T) one-hot matrix from ids.
func oneHotSeqT(n int, ids []int) *mat.Dense {
	out := mat.NewDense(n, len(ids), nil)
	for t, id := range ids {
		out.Set(id, t, 1.0)
	}
	return out
}

func TestTrainStepLossDecreases(t *testing.T) {
	rand.Seed(7)
	srcSize, tgtSize, latent := 5, 6, 16
	m := NewModel(srcSize, tgtSize, latent)

	// one fixed example, memorized over repeated steps
	src := oneHotSeqT(srcSize, []int{1, 3, 2, 4})
	decIn := oneHotSeqT(tgtSize, []int{0, 2, 3, 4}) // starts with the GO marker
	gold := []int{2, 3, 4, 1}                       // shifted by one, ends with EOS

	first, toks := m.Loss(src, decIn, gold)
	if toks != 4 {
		t.Fatalf("expected 4 predicted tokens, got %d", toks)
	}
	for step := 0; step < 60; step++ {
		m.TrainStep(src, decIn, gold, 0.01, 0.01, 0.01)
	}
	last, _ := m.Loss(src, decIn, gold)

	if last >= first {
		t.Fatalf("loss did not decrease: first=%.4f last=%.4f", first, last)
	}
	if last > first*0.8 {
		t.Fatalf("loss barely moved after 60 steps: first=%.4f last=%.4f", first, last)
	}
}

func TestGreedyDecodeTerminates(t *testing.T) {
	rand.Seed(11)
	oldTgt, oldCfg := params.TgtVocab, params.Config
	defer func() { params.TgtVocab, params.Config = oldTgt, oldCfg }()

	params.TgtVocab = testVocab(params.StartChar, params.EndChar, params.PadChar, "a", "b", "c")
	params.Config.MaxDecodeLen = 12

	srcSize := 4
	m := NewModel(srcSize, len(params.TgtVocab.IDToToken), 8)
	src := oneHotSeqT(srcSize, []int{0, 1, 2})

	out := GreedyDecode(m, src)
	// untrained model: anything goes, but the loop must respect the cap
	// and never emit the markers themselves
	if len([]rune(out)) > params.Config.MaxDecodeLen {
		t.Fatalf("decode exceeded MaxDecodeLen: %q", out)
	}
	if strings.Contains(out, params.EndChar) || strings.Contains(out, params.StartChar) {
		t.Fatalf("decode leaked a marker: %q", out)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rand.Seed(42)
	oldSrc, oldTgt := params.SrcVocab, params.TgtVocab
	oldMaxS, oldMaxT := params.MaxSrcLen, params.MaxTgtLen
	defer func() {
		params.SrcVocab, params.TgtVocab = oldSrc, oldTgt
		params.MaxSrcLen, params.MaxTgtLen = oldMaxS, oldMaxT
	}()

	params.SrcVocab = testVocab(params.PadChar, "h", "i")
	params.TgtVocab = testVocab(params.StartChar, params.EndChar, params.PadChar, "y", "o")
	params.MaxSrcLen = 5
	params.MaxTgtLen = 6

	m := NewModel(3, 5, 8)
	// touch the optimizer so Adam moments are in the blob too
	src := oneHotSeqT(3, []int{1, 2})
	decIn := oneHotSeqT(5, []int{0, 3, 4})
	m.TrainStep(src, decIn, []int{3, 4, 1}, 0.01, 0.01, 0.01)

	path := filepath.Join(t.TempDir(), "model.gob")
	if err := SaveModel(m, path); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}

	// clobber the globals to prove LoadModel restores them
	params.SrcVocab = params.Vocabulary{}
	params.TgtVocab = params.Vocabulary{}
	params.MaxSrcLen, params.MaxTgtLen = 0, 0

	m2, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if len(params.SrcVocab.IDToToken) != 3 || len(params.TgtVocab.IDToToken) != 5 {
		t.Fatalf("vocabs not restored: src=%d tgt=%d",
			len(params.SrcVocab.IDToToken), len(params.TgtVocab.IDToToken))
	}
	if params.MaxSrcLen != 5 || params.MaxTgtLen != 6 {
		t.Fatalf("tensor widths not restored: %d %d", params.MaxSrcLen, params.MaxTgtLen)
	}

	if !mat.EqualApprox(m.Encoder.Wix, m2.Encoder.Wix, 0) {
		t.Fatal("encoder Wix differs after round trip")
	}
	if !mat.EqualApprox(m.Decoder.Wch, m2.Decoder.Wch, 0) {
		t.Fatal("decoder Wch differs after round trip")
	}
	if !mat.EqualApprox(m.Wd, m2.Wd, 0) {
		t.Fatal("dense head differs after round trip")
	}

	// same input, same greedy output
	if got, want := GreedyDecode(m2, src), GreedyDecode(m, src); got != want {
		t.Fatalf("decode differs after round trip: %q vs %q", got, want)
	}

	// loss parity implies the Adam moments and weights both made it
	l1, _ := m.Loss(src, decIn, []int{3, 4, 1})
	l2, _ := m2.Loss(src, decIn, []int{3, 4, 1})
	if diff := l1 - l2; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("loss differs after round trip: %.12f vs %.12f", l1, l2)
	}
}
