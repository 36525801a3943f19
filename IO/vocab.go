package IO

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/RNN/params"
)

// BuildVocabs scans the corpus and fills params.SrcVocab / params.TgtVocab
// with the sorted character sets of each side, plus the padded tensor
// widths MaxSrcLen / MaxTgtLen. The pad character (space) is always in
// both vocabularies; the wrapped targets carry the start/end markers in.
//
// In subword mode the source side is expected to have been filled by
// TrainOrLoadBPE already and only the target side is (re)built here.
func BuildVocabs(pairs []Pair) {
	if !params.Config.Subword {
		srcSet := map[rune]struct{}{[]rune(params.PadChar)[0]: {}}
		for _, p := range pairs {
			for _, r := range p.Src {
				srcSet[r] = struct{}{}
			}
		}
		params.SrcVocab = NewVocabulary(sortedRunes(srcSet))
	}

	tgtSet := map[rune]struct{}{[]rune(params.PadChar)[0]: {}}
	for _, p := range pairs {
		for _, r := range p.Tgt {
			tgtSet[r] = struct{}{}
		}
	}
	params.TgtVocab = NewVocabulary(sortedRunes(tgtSet))

	params.MaxSrcLen = 0
	params.MaxTgtLen = 0
	for _, p := range pairs {
		if n := len(SourceIDs(p.Src)); n > params.MaxSrcLen {
			params.MaxSrcLen = n
		}
		if n := len([]rune(p.Tgt)); n > params.MaxTgtLen {
			params.MaxTgtLen = n
		}
	}
}

func sortedRunes(set map[rune]struct{}) []string {
	runes := make([]rune, 0, len(set))
	for r := range set {
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	toks := make([]string, len(runes))
	for i, r := range runes {
		toks[i] = string(r)
	}
	return toks
}

func NewVocabulary(tokens []string) params.Vocabulary {
	tok2id := make(map[string]int, len(tokens))
	for i, t := range tokens {
		tok2id[t] = i
	}
	return params.Vocabulary{TokenToID: tok2id, IDToToken: tokens}
}

// VocabLookup maps unseen tokens to the pad character (id 0 fallback).
func VocabLookup(v params.Vocabulary, tok string) int {
	if id, ok := v.TokenToID[tok]; ok {
		return id
	}
	if id, ok := v.TokenToID[params.PadChar]; ok {
		return id
	}
	return 0
}

// SourceIDs tokenizes one source sentence into vocab ids: per-rune in
// character mode, BPE pieces in subword mode.
func SourceIDs(src string) []int {
	if params.Config.Subword {
		ids, err := EncodeBPE(src)
		if err == nil {
			return ids
		}
		// fall through to char lookup if the tokenizer isn't loaded
	}
	runes := []rune(src)
	ids := make([]int, len(runes))
	for i, r := range runes {
		ids[i] = VocabLookup(params.SrcVocab, string(r))
	}
	return ids
}

// SourceTensor one-hot encodes a source sentence into a
// (|SrcVocab| x MaxSrcLen) matrix, one timestep per column, space-padded.
func SourceTensor(src string) *mat.Dense {
	return oneHotSeq(params.SrcVocab, SourceIDs(src), params.MaxSrcLen)
}

// DecoderTensors builds the teacher-forcing pair for one wrapped target:
// the decoder input tensor (|TgtVocab| x MaxTgtLen) and the per-timestep
// gold ids, offset by one (input column t predicts targetIDs[t]).
// Padded positions predict the pad character.
func DecoderTensors(wrappedTgt string) (*mat.Dense, []int) {
	runes := []rune(wrappedTgt)
	ids := make([]int, len(runes))
	for i, r := range runes {
		ids[i] = VocabLookup(params.TgtVocab, string(r))
	}
	in := oneHotSeq(params.TgtVocab, ids, params.MaxTgtLen)

	padID := VocabLookup(params.TgtVocab, params.PadChar)
	gold := make([]int, params.MaxTgtLen)
	for t := 0; t < params.MaxTgtLen; t++ {
		if t+1 < len(ids) {
			gold[t] = ids[t+1]
		} else {
			gold[t] = padID
		}
	}
	return in, gold
}

// oneHotSeq lays out one-hot columns for ids, padding to T columns.
func oneHotSeq(v params.Vocabulary, ids []int, T int) *mat.Dense {
	n := len(v.IDToToken)
	if T < len(ids) {
		T = len(ids)
	}
	out := mat.NewDense(n, T, nil)
	padID := VocabLookup(v, params.PadChar)
	for t := 0; t < T; t++ {
		id := padID
		if t < len(ids) {
			id = ids[t]
		}
		if id >= 0 && id < n {
			out.Set(id, t, 1.0)
		}
	}
	return out
}

// UnwrapTarget strips the start/end markers off a wrapped target so
// greedy output can be compared against the gold text.
func UnwrapTarget(wrappedTgt string) string {
	s := strings.TrimPrefix(wrappedTgt, params.StartChar)
	return strings.TrimSuffix(s, params.EndChar)
}
