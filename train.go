package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/manningwu07/RNN/IO"
	"github.com/manningwu07/RNN/params"
	"github.com/manningwu07/RNN/seq2seq"
	"github.com/manningwu07/RNN/utils"
)

// TrainSeq2Seq runs the teacher-forcing training loop: every step samples
// one sentence pair, runs the encoder/decoder forward, backprops through
// both LSTMs and applies AdamW updates. Validation exact-match accuracy
// (greedy decode vs gold) drives checkpointing and early stopping.
func TrainSeq2Seq(model *seq2seq.Model, train, val []IO.Pair) *seq2seq.Model {
	var bestAccuracy float64 = -1.0
	var noImprovementCount int
	bestSaved := false

	fmt.Printf("Train pairs: %d  Val pairs: %d  SrcVocab: %d  TgtVocab: %d\n",
		len(train), len(val),
		len(params.SrcVocab.IDToToken), len(params.TgtVocab.IDToToken))

	// Create or truncate the log file
	logFile, err := os.Create("training_log.csv")
	if err != nil {
		fmt.Println("Error creating log file:", err)
		return model
	}
	defer logFile.Close()
	logWriter := csv.NewWriter(logFile)
	logWriter.Write([]string{"epoch", "accuracy", "train_tok_loss", "val_tok_loss"})
	defer logWriter.Flush()

	_ = os.MkdirAll("models", 0o755)

	adamStep := 0

	for e := 0; e < params.Config.MaxEpochs; e++ {
		var totalLoss float64
		var tokenCounter int

		start := time.Now()

		B := min(params.Config.BatchSize, 1000000000) // cap for safety
		for b := 0; b < B; b++ {
			p := train[rand.Intn(len(train))]
			src := IO.SourceTensor(p.Src)
			decIn, gold := IO.DecoderTensors(p.Tgt)

			adamStep++
			encLR := utils.LRSchedule(adamStep, params.Config.EncoderLR)
			decLR := utils.LRSchedule(adamStep, params.Config.DecoderLR)
			denseLR := utils.LRSchedule(adamStep, params.Config.DenseLR)

			loss, toks := model.TrainStep(src, decIn, gold, encLR, decLR, denseLR)
			totalLoss += loss
			tokenCounter += toks

			if params.Config.Debug && adamStep%params.Config.DebugEvery == 0 {
				fmt.Printf("step %d: enc.Wix norm=%.6g dec.Wix norm=%.6g Wd norm=%.6g\n",
					adamStep,
					utils.MatrixNorm(model.Encoder.Wix),
					utils.MatrixNorm(model.Decoder.Wix),
					utils.MatrixNorm(model.Wd))
			}
		}

		avgTokLoss := 0.0
		trainPPL := 0.0
		if tokenCounter > 0 {
			avgTokLoss = totalLoss / float64(tokenCounter)
			trainPPL = math.Exp(avgTokLoss)
		}

		valTokLoss, accuracy := EvaluatePairs(model, val)
		fmt.Printf(
			"Epoch %d - Acc: %.4f, TrainTokLoss: %.4f, TrainPPL: %.1f, ValTokLoss: %.4f, Time: %v\n",
			e, accuracy, avgTokLoss, trainPPL, valTokLoss, time.Since(start),
		)

		logWriter.Write([]string{
			strconv.Itoa(e),
			strconv.FormatFloat(accuracy, 'f', 6, 64),
			strconv.FormatFloat(avgTokLoss, 'f', 6, 64),
			strconv.FormatFloat(valTokLoss, 'f', 6, 64),
		})
		logWriter.Flush()

		// --- Early stopping logic based on loss improvement and accuracy checkpointing ---
		alreadySaved := false
		if accuracy > bestAccuracy+params.Config.ImprovementThreshold {
			bestAccuracy = accuracy
			if err := seq2seq.SaveModel(model, "models/best_model.gob"); err == nil {
				bestSaved = true
			}
			noImprovementCount = 0
			alreadySaved = true
		} else {
			noImprovementCount++
		}

		// Saves every X Epochs
		if (e+1)%params.Config.SaveEpochNumber == 0 && !alreadySaved {
			_ = seq2seq.SaveModel(model, "models/last_epoch.gob")
			fmt.Printf("Saved checkpoint at epoch %d\n", e+1)
		}

		if noImprovementCount >= params.Config.Patience {
			fmt.Println("\nStopping training early due to lack of improvement in accuracy.")
			break
		}

		// If the loss func is too small, stop training.
		if avgTokLoss < params.Config.Epsilon {
			fmt.Println("\nStopping training early due to loss being too small.")
			break
		}
	}

	// Hand back the best checkpoint when one exists; the live model has
	// drifted past it by up to Patience epochs.
	if bestSaved {
		if best, err := seq2seq.LoadModel("models/best_model.gob"); err == nil {
			return best
		}
	}
	return model
}

// evalDecodeLimit caps how many val pairs are greedy-decoded per epoch;
// decoding is the expensive half of eval.
const evalDecodeLimit = 200

// EvaluatePairs returns mean per-token teacher-forcing loss over the
// whole val set and exact-match greedy-decode accuracy over a capped
// prefix of it.
func EvaluatePairs(model *seq2seq.Model, val []IO.Pair) (float64, float64) {
	if len(val) == 0 {
		return 0, 0
	}

	lossSum := 0.0
	tokens := 0
	for _, p := range val {
		src := IO.SourceTensor(p.Src)
		decIn, gold := IO.DecoderTensors(p.Tgt)
		loss, toks := model.Loss(src, decIn, gold)
		lossSum += loss
		tokens += toks
	}

	correct, total := 0, 0
	for _, p := range val {
		if total >= evalDecodeLimit {
			break
		}
		got := seq2seq.GreedyDecode(model, IO.SourceTensor(p.Src))
		if got == IO.UnwrapTarget(p.Tgt) {
			correct++
		}
		total++
	}

	avgLoss := 0.0
	if tokens > 0 {
		avgLoss = lossSum / float64(tokens)
	}
	acc := 0.0
	if total > 0 {
		acc = float64(correct) / float64(total)
	}
	return avgLoss, acc
}
