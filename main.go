package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/manningwu07/RNN/IO"
	"github.com/manningwu07/RNN/params"
	"github.com/manningwu07/RNN/seq2seq"
)

func main() {
	rand.Seed(time.Now().UTC().UnixNano())

	dataPath := flag.String("data", "data/fra.txt", "tab-separated parallel corpus (source TAB target)")
	modelPath := flag.String("model", "models/seq2seq.gob", "model file to write (train) or read (translate/chat)")
	mode := flag.String("mode", "train", "train | translate | chat")
	text := flag.String("text", "", "sentence to translate when -mode=translate")
	epochs := flag.Int("epochs", 0, "override MaxEpochs (0 = config default)")
	maxPairs := flag.Int("pairs", 0, "override MaxPairs (0 = config default)")
	latent := flag.Int("latent", 0, "override LatentDim (0 = config default)")
	subword := flag.Bool("subword", false, "tokenize the source side with a trained BPE vocab instead of characters")
	flag.Parse()

	if *epochs > 0 {
		params.Config.MaxEpochs = *epochs
	}
	if *maxPairs > 0 {
		params.Config.MaxPairs = *maxPairs
	}
	if *latent > 0 {
		params.Config.LatentDim = *latent
	}
	params.Config.Subword = *subword

	switch *mode {
	case "train":
		if err := runTraining(*dataPath, *modelPath); err != nil {
			fmt.Println("train:", err)
			os.Exit(1)
		}
	case "translate":
		model, err := loadForInference(*modelPath)
		if err != nil {
			fmt.Println("translate:", err)
			os.Exit(1)
		}
		fmt.Println(seq2seq.GreedyDecode(model, IO.SourceTensor(*text)))
	case "chat":
		model, err := loadForInference(*modelPath)
		if err != nil {
			fmt.Println("chat:", err)
			os.Exit(1)
		}
		ChatCLI(model)
	default:
		fmt.Println("unknown -mode:", *mode)
		os.Exit(2)
	}
}

func runTraining(dataPath, modelPath string) error {
	t1 := time.Now()

	pairs, err := IO.LoadPairs(dataPath, params.Config.MaxPairs)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d sentence pairs.\n", len(pairs))

	if params.Config.Subword {
		srcCorpus := "models/src_corpus.txt"
		if err := IO.WriteSourceCorpus(pairs, srcCorpus); err != nil {
			return err
		}
		if err := IO.TrainOrLoadBPE(srcCorpus, "models/tokenizer.json", params.Config.SubwordVocab); err != nil {
			return err
		}
	}
	IO.BuildVocabs(pairs)
	fmt.Printf("SrcVocab: %d tokens  TgtVocab: %d chars  MaxSrcLen: %d  MaxTgtLen: %d\n",
		len(params.SrcVocab.IDToToken), len(params.TgtVocab.IDToToken),
		params.MaxSrcLen, params.MaxTgtLen)
	if err := IO.ExportVocabJSON("models/vocab.json"); err != nil {
		fmt.Println("vocab export:", err)
	}

	train, val := IO.SplitPairs(pairs, params.Config.ValFrac, 42)

	model := seq2seq.NewModel(
		len(params.SrcVocab.IDToToken),
		len(params.TgtVocab.IDToToken),
		params.Config.LatentDim,
	)
	model = TrainSeq2Seq(model, train, val)

	if err := seq2seq.SaveModel(model, modelPath); err != nil {
		return err
	}
	fmt.Printf("Saved model to %s (total time %v)\n", modelPath, time.Since(t1))

	// Reload and demo a few greedy decodes, the round trip the saved
	// artifact has to survive.
	reloaded, err := seq2seq.LoadModel(modelPath)
	if err != nil {
		return err
	}
	n := min(10, len(train))
	for i := 0; i < n; i++ {
		p := train[i]
		fmt.Println("-")
		fmt.Println("Input sentence:", p.Src)
		fmt.Println("Decoded sentence:", seq2seq.GreedyDecode(reloaded, IO.SourceTensor(p.Src)))
		fmt.Println("Gold sentence:", IO.UnwrapTarget(p.Tgt))
	}
	return nil
}

func loadForInference(modelPath string) (*seq2seq.Model, error) {
	model, err := seq2seq.LoadModel(modelPath)
	if err != nil {
		return nil, err
	}
	if params.Config.Subword {
		// the tokenizer must exist from training; this only reloads it
		if err := IO.TrainOrLoadBPE("", "models/tokenizer.json", params.Config.SubwordVocab); err != nil {
			return nil, err
		}
	}
	return model, nil
}
