package main

import (
	"math/rand"
	"os"
	"strings"
	"testing"

	"github.com/manningwu07/RNN/IO"
	"github.com/manningwu07/RNN/params"
	"github.com/manningwu07/RNN/seq2seq"
)

const tinyCorpus = "Go.\tVa !\n" +
	"Hi.\tSalut !\n" +
	"Run!\tCours !\n" +
	"Who?\tQui ?\n" +
	"Wow!\tOuah !\n" +
	"Stop!\tArrête !\n"

func shrinkConfig(t *testing.T) {
	old := params.Config
	t.Cleanup(func() { params.Config = old })
	params.Config.LatentDim = 8
	params.Config.MaxEpochs = 2
	params.Config.BatchSize = 4
	params.Config.Patience = 5
	params.Config.SaveEpochNumber = 1
	params.Config.MaxDecodeLen = 12
	params.Config.ValFrac = 0.34
	params.Config.WarmupSteps = 2
	params.Config.DecaySteps = 0
	params.Config.Subword = false
}

// End-to-end: load pairs, build vocabs, train two tiny epochs, save,
// reload, decode. Everything runs inside a temp working directory.
func TestRunTrainingEndToEnd(t *testing.T) {
	rand.Seed(1)
	shrinkConfig(t)
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(oldWD) })

	if err := os.WriteFile("pairs.txt", []byte(tinyCorpus), 0644); err != nil {
		t.Fatal(err)
	}
	if err := runTraining("pairs.txt", "models/seq2seq.gob"); err != nil {
		t.Fatalf("runTraining: %v", err)
	}

	if _, err := os.Stat("models/seq2seq.gob"); err != nil {
		t.Fatalf("model file missing: %v", err)
	}
	log, err := os.ReadFile("training_log.csv")
	if err != nil {
		t.Fatalf("training log missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(log)), "\n")
	if len(lines) < 2 { // header + at least one epoch
		t.Fatalf("training log too short: %q", string(log))
	}

	// the saved artifact must stand on its own: wipe globals, reload,
	// translate
	params.SrcVocab, params.TgtVocab = params.Vocabulary{}, params.Vocabulary{}
	model, err := seq2seq.LoadModel("models/seq2seq.gob")
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	out := seq2seq.GreedyDecode(model, IO.SourceTensor("Hi."))
	if len([]rune(out)) > params.Config.MaxDecodeLen {
		t.Fatalf("decode exceeded cap: %q", out)
	}
}

func TestEvaluatePairsRanges(t *testing.T) {
	rand.Seed(2)
	shrinkConfig(t)
	oldSrc, oldTgt := params.SrcVocab, params.TgtVocab
	oldMaxS, oldMaxT := params.MaxSrcLen, params.MaxTgtLen
	t.Cleanup(func() {
		params.SrcVocab, params.TgtVocab = oldSrc, oldTgt
		params.MaxSrcLen, params.MaxTgtLen = oldMaxS, oldMaxT
	})

	pairs := []IO.Pair{
		{Src: "ab", Tgt: "\tba\n"},
		{Src: "ba", Tgt: "\tab\n"},
	}
	IO.BuildVocabs(pairs)
	model := seq2seq.NewModel(
		len(params.SrcVocab.IDToToken),
		len(params.TgtVocab.IDToToken),
		params.Config.LatentDim,
	)

	loss, acc := EvaluatePairs(model, pairs)
	if loss <= 0 {
		t.Fatalf("untrained loss should be positive, got %v", loss)
	}
	if acc < 0 || acc > 1 {
		t.Fatalf("accuracy out of range: %v", acc)
	}
}
