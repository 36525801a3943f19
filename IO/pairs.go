package IO

import (
	"bufio"
	"errors"
	"io"
	"math/rand"
	"os"
	"strings"

	"github.com/manningwu07/RNN/params"
)

// Pair is one parallel sentence. Tgt is already wrapped with the start
// (tab) and end (newline) markers, so the decoder side never has to
// special-case them later.
type Pair struct {
	Src string
	Tgt string
}

// LoadPairs reads a tab-separated parallel corpus: source TAB target,
// with any extra columns (attribution etc.) ignored. Lines without a
// tab are skipped. maxPairs caps how much of the file is read (0 = all).
func LoadPairs(path string, maxPairs int) ([]Pair, error) {
	lines, err := readLines(path, maxPairs)
	if err != nil {
		return nil, err
	}
	pairs := make([]Pair, 0, len(lines))
	for _, line := range lines {
		cols := strings.Split(line, "\t")
		if len(cols) < 2 {
			continue
		}
		src := cols[0]
		tgt := cols[1]
		if src == "" || tgt == "" {
			continue
		}
		pairs = append(pairs, Pair{
			Src: src,
			Tgt: params.StartChar + tgt + params.EndChar,
		})
	}
	if len(pairs) == 0 {
		return nil, errors.New("no tab-separated pairs found in " + path)
	}
	return pairs, nil
}

// SplitPairs shuffles deterministically and holds out valFrac for eval.
func SplitPairs(pairs []Pair, valFrac float64, seed int64) (train, val []Pair) {
	shuffled := make([]Pair, len(pairs))
	copy(shuffled, pairs)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	nVal := int(valFrac * float64(len(shuffled)))
	if nVal >= len(shuffled) {
		nVal = len(shuffled) - 1
	}
	if nVal < 0 {
		nVal = 0
	}
	return shuffled[nVal:], shuffled[:nVal]
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// readLines reads up to 'limit' lines (0 = no limit). Uses a large buffered reader.
func readLines(p string, limit int) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReaderSize(f, 1<<20) // 1MB
	out := make([]string, 0, 4096)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			// trim trailing newline
			if line[len(line)-1] == '\n' {
				line = line[:len(line)-1]
			}
			if line != "" {
				out = append(out, line)
			}
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}
