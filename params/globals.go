package params

// Vocab structs and globals
type Vocabulary struct {
	TokenToID map[string]int
	IDToToken []string
}

// Globals initialized on first LoadPairs/BuildVocabs call.
var (
	SrcVocab Vocabulary // source-side characters
	TgtVocab Vocabulary // target-side characters (includes \t start and \n end markers)

	// Longest source/wrapped-target sequence in the corpus; one-hot
	// tensors are padded to these widths.
	MaxSrcLen int
	MaxTgtLen int
)

// Start/end-of-sequence markers for the decoder side. Tab opens every
// target sequence, newline closes it; space pads both sides.
const (
	StartChar = "\t"
	EndChar   = "\n"
	PadChar   = " "
)

type TrainingConfig struct {
	// Core seq2seq parameters
	LatentDim int // LSTM hidden/cell width (both encoder and decoder)
	MaxPairs  int // cap on sentence pairs read from the corpus
	EncoderLR float64
	DecoderLR float64
	DenseLR   float64

	// Optimization/training wheel parameters
	WarmupSteps int     // linear warmup steps
	DecaySteps  int     // cosine decay steps after warmup (0 = none)
	AdamBeta1   float64 // default 0.9
	AdamBeta2   float64 // default 0.999
	AdamEps     float64 // default 1e-8

	MaxEpochs int     // maximum number of epochs
	Patience  int     // early stopping patience
	Epsilon   float64 // stop if loss < epsilon
	BatchSize int     // sampled examples per epoch
	ValFrac   float64 // fraction of pairs held out for validation

	// Decoding
	MaxDecodeLen int // hard cap on generated target length

	// Stability parameters
	GradClip    float64 // <=0 disables (default 1.0 is a good start)
	WeightDecay float64 // AdamW-style, e.g., 0.01; 0 disables
	Debug       bool    // enable periodic debug logs
	DebugEvery  int     // print every N optimizer steps

	SaveEpochNumber      int     // checkpoint every N epochs
	ImprovementThreshold float64 // min val-accuracy gain to count as a new best

	// Subword mode: tokenize the source side with a trained BPE vocab
	// instead of raw characters.
	Subword      bool
	SubwordVocab int // BPE vocab size when Subword is on
}

var Config = TrainingConfig{
	LatentDim: 256,
	MaxPairs:  10_000,
	EncoderLR: 0.001,
	DecoderLR: 0.001,
	DenseLR:   0.001,

	WarmupSteps: 2_000,
	DecaySteps:  500_000,
	AdamBeta1:   0.9,
	AdamBeta2:   0.999,
	AdamEps:     1e-8,

	MaxEpochs: 100,
	Patience:  15,
	Epsilon:   1e-4,
	BatchSize: 2048, // each example is one sentence pair
	ValFrac:   0.1,

	MaxDecodeLen: 80,

	GradClip:    1.0,
	WeightDecay: 0.0, // the tutorial-sized model overfits on purpose
	Debug:       false,
	DebugEvery:  1000,

	SaveEpochNumber:      10,
	ImprovementThreshold: 1e-4,

	Subword:      false,
	SubwordVocab: 4096,
}
