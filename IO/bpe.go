package IO

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/bpe"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/manningwu07/RNN/params"
)

// Global tokenizer for the optional source-side subword mode.
var bpeTokenizer *tk.Tokenizer

// TrainOrLoadBPE trains a BPE tokenizer on the source side of the corpus
// (if tokPath doesn't exist yet) and loads it into memory. It also fills
// params.SrcVocab with TokenToID/IDToToken so the encoder's one-hot width
// comes from the subword vocab instead of the raw character set.
func TrainOrLoadBPE(corpusPath, tokPath string, vocabSize int) error {
	if fileExists(tokPath) {
		t, err := pretrained.FromFile(tokPath)
		if err != nil {
			return err
		}
		bpeTokenizer = t
		return fillSrcVocabFromTokenizer()
	}

	bpeModel, err := bpe.DefaultBPE()
	if err != nil {
		return err
	}
	t := tk.NewTokenizer(bpeModel)

	// Normalize to NFKC lower; the source side of the corpus is English
	t.WithNormalizer(normalizer.NewSequence([]normalizer.Normalizer{
		normalizer.NewNFKC(),
		normalizer.Lowercase(),
	}))
	// Whitespace pretokenizer is robust and simple
	t.WithPreTokenizer(pretokenizer.NewWhitespaceSplit())

	tr := bpe.NewBpeTrainer(0, vocabSize)
	tr.SpecialTokens = []tk.AddedToken{
		tk.NewAddedToken(params.PadChar, true),
		tk.NewAddedToken("<unk>", true),
	}

	if err := t.Train(tr, []string{corpusPath}); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(tokPath), 0o755); err != nil {
		return err
	}
	if err := t.Save(tokPath, false); err != nil {
		return err
	}
	bpeTokenizer = t
	return fillSrcVocabFromTokenizer()
}

func fillSrcVocabFromTokenizer() error {
	if bpeTokenizer == nil {
		return fmt.Errorf("tokenizer not initialized")
	}
	vocab := bpeTokenizer.GetVocab(true)
	// Build IDToToken in index order 0..N-1
	id2tok := make([]string, len(vocab))
	tok2id := make(map[string]int, len(vocab))
	for tok, id := range vocab {
		tok2id[tok] = id
		id2tok[id] = tok
	}
	params.SrcVocab = params.Vocabulary{TokenToID: tok2id, IDToToken: id2tok}
	return nil
}

// EncodeBPE encodes raw source text into subword ids.
func EncodeBPE(text string) ([]int, error) {
	if bpeTokenizer == nil {
		return nil, fmt.Errorf("tokenizer not initialized")
	}
	enc, err := bpeTokenizer.EncodeSingle(text)
	if err != nil {
		return nil, err
	}
	ids := enc.Ids
	out := make([]int, len(ids))
	for i, v := range ids {
		out[i] = int(v)
	}
	return out, nil
}

// WriteSourceCorpus dumps only the source side of the pairs to a file,
// so BPE training never sees target-language text.
func WriteSourceCorpus(pairs []Pair, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, p := range pairs {
		if _, err := w.WriteString(p.Src + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ExportVocabJSON dumps both vocabularies for inspection.
func ExportVocabJSON(path string) error {
	data := map[string]any{
		"SrcTokenToID": params.SrcVocab.TokenToID,
		"SrcIDToToken": params.SrcVocab.IDToToken,
		"TgtTokenToID": params.TgtVocab.TokenToID,
		"TgtIDToToken": params.TgtVocab.IDToToken,
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
