// Command hierrnn trains and runs hierarchical session
// classifiers over utterance data.
package main

import (
	"flag"
	"math/rand"
	"time"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/essentials"
)

type args struct {
	Task string

	// Data files.
	Input      string
	Targets    string
	ValInput   string
	ValTargets string
	ValRatio   float64
	VocabPath  string
	Embeddings string
	Output     string
	OutDir     string

	// Architecture.
	Arch           string
	CRF            bool
	Classes        int
	EmbeddingSize  int
	TrainEmbedding bool

	UttrUnits      string
	UttrCell       string
	UttrDirection  string
	UttrPooling    string
	AttentionSize  int
	UttrActivation string
	UttrDropout    string

	FilterWidths  string
	NumFilters    int
	Stride        int
	Padding       string
	MaxPool       bool
	CNNActivation string
	UttrMaxLen    int

	FeatureSize    int
	FFNActivations string
	FFNDropout     string

	SessUnits      string
	SessCell       string
	SessDirection  string
	SessActivation string
	SessDropout    string
	ConnectInputs  bool

	// Training.
	Batch           int
	EvalBatch       int
	Epochs          float64
	CheckpointEvery int
	Optimizer       string
	LR              float64
	DecayFactor     float64
	DecayEvery      float64
	Clip            float64
	Seed            int64
}

func main() {
	var a args
	flag.StringVar(&a.Task, "task", "train", "task to run (train, eval, predict)")

	flag.StringVar(&a.Input, "input", "", "session input file")
	flag.StringVar(&a.Targets, "targets", "", "session target file")
	flag.StringVar(&a.ValInput, "val-input", "", "validation input file")
	flag.StringVar(&a.ValTargets, "val-targets", "", "validation target file")
	flag.Float64Var(&a.ValRatio, "val-ratio", 0,
		"validation fraction split off the training data when no validation files are given")
	flag.StringVar(&a.VocabPath, "vocab", "", "vocabulary file (one token per line)")
	flag.StringVar(&a.Embeddings, "embeddings", "", "pretrained embedding matrix file")
	flag.StringVar(&a.Output, "output", "", "prediction output file")
	flag.StringVar(&a.OutDir, "out", "out", "directory for the model and config")

	flag.StringVar(&a.Arch, "arch", "h-rnn-rnn",
		"architecture (h-rnn-rnn, h-rnn-cnn, h-rnn-ffn)")
	flag.BoolVar(&a.CRF, "crf", false, "use a chain-structured output")
	flag.IntVar(&a.Classes, "classes", 0, "number of classes")
	flag.IntVar(&a.EmbeddingSize, "embedding-size", 128, "token embedding size")
	flag.BoolVar(&a.TrainEmbedding, "train-embedding", true, "update the embedding table")

	flag.StringVar(&a.UttrUnits, "uttr-units", "64", "utterance layer sizes (comma list)")
	flag.StringVar(&a.UttrCell, "uttr-cell", "gru", "utterance cell type (rnn, lstm, gru)")
	flag.StringVar(&a.UttrDirection, "uttr-direction", "uni",
		"utterance direction (uni, bi)")
	flag.StringVar(&a.UttrPooling, "uttr-pooling", "last",
		"utterance pooling (last, mean, attn, attn_ctx)")
	flag.IntVar(&a.AttentionSize, "attention-size", 0, "context attention size")
	flag.StringVar(&a.UttrActivation, "uttr-activation", "tanh",
		"vanilla utterance cell activation")
	flag.StringVar(&a.UttrDropout, "uttr-dropout", "",
		"utterance keep probabilities (comma list)")

	flag.StringVar(&a.FilterWidths, "filter-widths", "3,4,5",
		"convolution filter widths (comma list)")
	flag.IntVar(&a.NumFilters, "num-filters", 64, "filters per width")
	flag.IntVar(&a.Stride, "stride", 1, "convolution stride")
	flag.StringVar(&a.Padding, "padding", "valid", "convolution padding (valid, same)")
	flag.BoolVar(&a.MaxPool, "max-pool", true, "max-over-time pooling after convolution")
	flag.StringVar(&a.CNNActivation, "cnn-activation", "relu", "convolution activation")
	flag.IntVar(&a.UttrMaxLen, "uttr-max-len", 0, "fixed padded utterance length")

	flag.IntVar(&a.FeatureSize, "feature-size", 0, "input feature vector size")
	flag.StringVar(&a.FFNActivations, "ffn-activations", "",
		"feed-forward activations (comma list)")
	flag.StringVar(&a.FFNDropout, "ffn-dropout", "",
		"feed-forward keep probabilities (comma list)")

	flag.StringVar(&a.SessUnits, "sess-units", "64", "session layer sizes (comma list)")
	flag.StringVar(&a.SessCell, "sess-cell", "gru", "session cell type (rnn, lstm, gru)")
	flag.StringVar(&a.SessDirection, "sess-direction", "uni", "session direction (uni, bi)")
	flag.StringVar(&a.SessActivation, "sess-activation", "tanh",
		"vanilla session cell activation")
	flag.StringVar(&a.SessDropout, "sess-dropout", "",
		"session keep probabilities (comma list)")
	flag.BoolVar(&a.ConnectInputs, "connect-inputs", false,
		"concatenate utterance encodings to session states before the output")

	flag.IntVar(&a.Batch, "batch", 16, "training batch size")
	flag.IntVar(&a.EvalBatch, "eval-batch", 64, "evaluation batch size")
	flag.Float64Var(&a.Epochs, "epochs", 10, "number of passes over the training data")
	flag.IntVar(&a.CheckpointEvery, "checkpoint-every", 100,
		"batches between checkpoints")
	flag.StringVar(&a.Optimizer, "optimizer", "adam",
		"optimizer (sgd, adam, momentum, rmsprop)")
	flag.Float64Var(&a.LR, "lr", 0.001, "learning rate")
	flag.Float64Var(&a.DecayFactor, "decay-factor", 1, "learning rate decay factor")
	flag.Float64Var(&a.DecayEvery, "decay-every", 0, "epochs between decay steps")
	flag.Float64Var(&a.Clip, "clip", 0, "gradient clipping threshold (0 disables)")
	flag.Int64Var(&a.Seed, "seed", 0, "random seed (0 uses the clock)")
	flag.Parse()

	if a.Seed == 0 {
		rand.Seed(time.Now().UnixNano())
	} else {
		rand.Seed(a.Seed)
	}

	var c anyvec.Creator = anyvec32.CurrentCreator()
	switch a.Task {
	case "train":
		train(c, &a)
	case "eval":
		evaluate(c, &a)
	case "predict":
		predict(c, &a)
	default:
		essentials.Die("unknown task:", a.Task)
	}
}
