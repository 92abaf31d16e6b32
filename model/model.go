package model

import (
	"fmt"

	hierrnn "github.com/efikarra/hierarchical-rnn"
	"github.com/efikarra/hierarchical-rnn/conv"
	"github.com/efikarra/hierarchical-rnn/rnn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// A Mode selects how a Model will be used.
//
// Dropout is active in ModeTrain and inert otherwise.
type Mode int

const (
	ModeTrain Mode = iota
	ModeEval
	ModeInfer
)

// A Model classifies every utterance of a session.
//
// An utterance encoder turns each utterance into one
// vector, a session-level recurrent net reads the vectors
// in order, and an output strategy turns the session
// states into per-utterance decisions.
type Model struct {
	Config *Config

	Uttr UttrEncoder
	Sess RecurrentNet
	Out  OutputStrategy
}

// New creates a randomly-initialized Model.
//
// If pretrained is non-nil, it is used as the embedding
// table instead of a random one; its row count must match
// the configured vocabulary size.
func New(cr anyvec.Creator, conf *Config, mode Mode, pretrained [][]float64) (*Model, error) {
	if err := conf.Validate(); err != nil {
		return nil, essentials.AddCtx("new model", err)
	}

	var emb *hierrnn.Embedding
	if conf.Arch == ArchRNN || conf.Arch == ArchCNN {
		if pretrained != nil {
			if len(pretrained) != conf.VocabSize {
				return nil, fmt.Errorf("new model: %d embedding rows for vocabulary of %d",
					len(pretrained), conf.VocabSize)
			}
			emb = hierrnn.NewEmbeddingPretrained(cr, pretrained, conf.TrainEmbedding)
		} else {
			emb = hierrnn.NewEmbedding(cr, conf.VocabSize, conf.EmbeddingSize)
		}
	}

	uttr, err := newUttrEncoder(cr, conf, mode, emb)
	if err != nil {
		return nil, essentials.AddCtx("new model", err)
	}

	sess, sessWidth, err := newRecurrentNet(cr, uttr.OutSize(), conf.SessUnits,
		conf.SessCell, conf.SessDirection, conf.SessActivation, conf.SessDropout,
		mode == ModeTrain)
	if err != nil {
		return nil, essentials.AddCtx("new model", err)
	}

	outWidth := sessWidth
	if conf.ConnectInputs {
		outWidth += uttr.OutSize()
	}
	var out OutputStrategy
	if conf.Chain {
		out = NewChainOutput(cr, outWidth, conf.NumClasses)
	} else {
		out = NewSoftmaxOutput(cr, outWidth, conf.NumClasses)
	}

	return &Model{Config: conf, Uttr: uttr, Sess: sess, Out: out}, nil
}

func newUttrEncoder(cr anyvec.Creator, conf *Config, mode Mode,
	emb *hierrnn.Embedding) (UttrEncoder, error) {
	switch conf.Arch {
	case ArchRNN:
		net, width, err := newRecurrentNet(cr, conf.EmbeddingSize, conf.UttrUnits,
			conf.UttrCell, conf.UttrDirection, conf.UttrActivation, conf.UttrDropout,
			mode == ModeTrain)
		if err != nil {
			return nil, err
		}
		var pool rnn.Pooler
		switch conf.UttrPooling {
		case PoolLast:
			pool = &rnn.LastPool{}
		case PoolMean:
			pool = &rnn.MeanPool{}
		case PoolAttention:
			pool = rnn.NewAttentionPool(cr, width)
		case PoolContextAttn:
			pool = rnn.NewContextAttentionPool(cr, width, conf.AttentionSize)
		}
		return &RNNEncoder{Embedding: emb, Net: net, Pool: pool, Width: width}, nil
	case ArchCNN:
		padding, err := conv.PaddingByName(conf.Padding)
		if err != nil {
			return nil, err
		}
		act, err := layerByName(conf.CNNActivation)
		if err != nil {
			return nil, err
		}
		convs := make([]*conv.Conv1D, len(conf.FilterWidths))
		for i, w := range conf.FilterWidths {
			convs[i] = conv.NewConv1D(cr, conf.EmbeddingSize, conf.NumFilters, w,
				conf.Stride, padding)
		}
		return &CNNEncoder{
			Embedding:  emb,
			Convs:      convs,
			Activation: act,
			MaxPool:    conf.CNNPool,
			SeqLen:     conf.UttrMaxLen,
		}, nil
	case ArchFFN:
		var net hierrnn.Net
		width := conf.FeatureSize
		for i, out := range conf.UttrUnits {
			act, err := layerByName(conf.FFNActivations[i])
			if err != nil {
				return nil, err
			}
			net = append(net, hierrnn.NewFC(cr, width, out), act)
			keep := 1.0
			if i < len(conf.FFNDropout) {
				keep = conf.FFNDropout[i]
			}
			net = append(net, &hierrnn.Dropout{
				Enabled:  mode == ModeTrain && keep < 1,
				KeepProb: keep,
			})
			width = out
		}
		return &FFNEncoder{Net: net, FeatureSize: conf.FeatureSize, Width: width}, nil
	}
	return nil, fmt.Errorf("unknown architecture: %s", conf.Arch)
}

// Apply computes the per-utterance class scores for a
// batch.
//
// The result is not differentiable; use Cost for training.
func (m *Model) Apply(b *Batch) anyseq.Seq {
	enc := m.Uttr.Encode(b)
	return m.logits(b, anydiff.NewConst(enc.Output()))
}

// Cost computes the training loss for a batch, whose
// Targets must be set.
func (m *Model) Cost(b *Batch) anydiff.Res {
	enc := m.Uttr.Encode(b)
	pool := anydiff.NewVar(enc.Output())
	loss := m.Out.Loss(m.logits(b, pool), b.Targets)
	v := anydiff.MergeVarSets(enc.Vars(), loss.Vars())
	v.Del(pool)
	return &costRes{In: enc, Pool: pool, Res: loss, V: v}
}

// Decode picks a label sequence for every session in the
// batch, with exactly one label per real utterance.
func (m *Model) Decode(b *Batch) [][]int {
	res := m.Out.Decode(m.Apply(b))
	for len(res) < b.Size() {
		res = append(res, []int{})
	}
	return res
}

// Probabilities computes per-utterance class
// distributions, or nil if the output strategy does not
// define per-position probabilities.
func (m *Model) Probabilities(b *Batch) [][][]float64 {
	res := m.Out.Probabilities(m.Apply(b))
	if res == nil {
		return nil
	}
	for len(res) < b.Size() {
		res = append(res, [][]float64{})
	}
	return res
}

// Parameters returns all of the model's parameters.
func (m *Model) Parameters() []*anydiff.Var {
	return hierrnn.AllParameters(m.Uttr, m.Sess, m.Out)
}

// logits runs the session net and output projection over
// the encoded utterance grid.
func (m *Model) logits(b *Batch, enc anydiff.Res) anyseq.Seq {
	cr := enc.Output().Creator()
	width := m.Uttr.OutSize()
	maxSess := b.MaxSession()

	var batches []*anyseq.ResBatch
	for j := 0; j < maxSess; j++ {
		present := make([]bool, b.Size())
		var rows []anydiff.Res
		for i, sessLen := range b.SessLens {
			if sessLen > j {
				present[i] = true
				slot := i*maxSess + j
				rows = append(rows, anydiff.Slice(enc, slot*width, (slot+1)*width))
			}
		}
		if len(rows) == 0 {
			break
		}
		batches = append(batches, &anyseq.ResBatch{
			Packed:  anydiff.Concat(rows...),
			Present: present,
		})
	}

	inSeq := anyseq.ResSeq(cr, batches)
	outSeq := anyseq.Pool(inSeq, func(inSeq anyseq.Seq) anyseq.Seq {
		res := m.Sess.Apply(inSeq)
		if m.Config.ConnectInputs {
			mixer := hierrnn.ConcatMixer{}
			res = anyseq.MapN(func(n int, v ...anydiff.Res) anydiff.Res {
				return mixer.Mix(v[0], v[1], n)
			}, res, inSeq)
		}
		return res
	})
	return m.Out.Apply(outSeq)
}

// costRes funnels the loss gradient back into the
// utterance encoder through a pool variable.
type costRes struct {
	In   anydiff.Res
	Pool *anydiff.Var
	Res  anydiff.Res
	V    anydiff.VarSet
}

func (c *costRes) Output() anyvec.Vector {
	return c.Res.Output()
}

func (c *costRes) Vars() anydiff.VarSet {
	return c.V
}

func (c *costRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	g[c.Pool] = c.Pool.Vector.Creator().MakeVector(c.Pool.Vector.Len())
	c.Res.Propagate(u, g)
	down := g[c.Pool]
	delete(g, c.Pool)
	if g.Intersects(c.In.Vars()) {
		c.In.Propagate(down, g)
	}
}
