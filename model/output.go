package model

import (
	"fmt"
	"math"

	hierrnn "github.com/efikarra/hierarchical-rnn"
	"github.com/efikarra/hierarchical-rnn/chain"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var s SoftmaxOutput
	serializer.RegisterTypedDeserializer(s.SerializerType(), DeserializeSoftmaxOutput)
	var c ChainOutput
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeChainOutput)
}

// An OutputStrategy turns session encodings into
// per-utterance class scores, losses, and decisions.
//
// Targets are indexed by session and position; only the
// positions present in the logits sequence are read.
// Decode returns exactly as many labels per session as
// the session has positions in the sequence.
type OutputStrategy interface {
	Apply(seq anyseq.Seq) anyseq.Seq
	Loss(logits anyseq.Seq, targets [][]int) anydiff.Res
	Decode(logits anyseq.Seq) [][]int
	Probabilities(logits anyseq.Seq) [][][]float64
	Parameters() []*anydiff.Var
}

// SoftmaxOutput classifies every position independently
// with a linear projection and a softmax.
type SoftmaxOutput struct {
	Proj       *hierrnn.FC
	NumClasses int
}

// DeserializeSoftmaxOutput deserializes a SoftmaxOutput.
func DeserializeSoftmaxOutput(d []byte) (*SoftmaxOutput, error) {
	var proj *hierrnn.FC
	if err := serializer.DeserializeAny(d, &proj); err != nil {
		return nil, essentials.AddCtx("deserialize SoftmaxOutput", err)
	}
	return &SoftmaxOutput{Proj: proj, NumClasses: proj.OutCount}, nil
}

// NewSoftmaxOutput creates a SoftmaxOutput projecting
// inSize-dimensional encodings onto numClasses scores.
func NewSoftmaxOutput(c anyvec.Creator, inSize, numClasses int) *SoftmaxOutput {
	return &SoftmaxOutput{
		Proj:       hierrnn.NewFC(c, inSize, numClasses),
		NumClasses: numClasses,
	}
}

// Apply projects every position onto class scores.
func (s *SoftmaxOutput) Apply(seq anyseq.Seq) anyseq.Seq {
	return anyseq.Map(seq, s.Proj.Apply)
}

// Loss computes the mean cross-entropy over exactly the
// positions present in the sequence.
//
// An empty sequence yields a zero loss.
func (s *SoftmaxOutput) Loss(logits anyseq.Seq, targets [][]int) anydiff.Res {
	c := logits.Creator()
	if len(logits.Output()) == 0 {
		return anydiff.NewConst(c.MakeVector(1))
	}

	var idx int
	var costCount int
	cost := hierrnn.DotCost{}
	allCosts := anyseq.Map(logits, func(a anydiff.Res, n int) anydiff.Res {
		present := logits.Output()[idx].Present
		desired := make([]float64, n*s.NumClasses)
		row := 0
		for i, p := range present {
			if !p {
				continue
			}
			desired[row*s.NumClasses+targets[i][idx]] = 1
			row++
		}
		idx++
		costCount += n
		desiredConst := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(desired)))
		logProbs := anydiff.LogSoftmax(a, s.NumClasses)
		return cost.Cost(desiredConst, logProbs, n)
	})

	sum := anydiff.Sum(anyseq.Sum(allCosts))
	return anydiff.Scale(sum, c.MakeNumeric(1/float64(costCount)))
}

// Decode picks the arg-max class at every position.
func (s *SoftmaxOutput) Decode(logits anyseq.Seq) [][]int {
	var res [][]int
	for _, seq := range anyseq.SeparateSeqs(logits.Output()) {
		labels := make([]int, len(seq))
		for t, vec := range seq {
			scores := vecFloats(vec)
			for i, x := range scores {
				if x > scores[labels[t]] {
					labels[t] = i
				}
			}
		}
		res = append(res, labels)
	}
	return res
}

// Probabilities computes the per-position softmax
// distributions.
func (s *SoftmaxOutput) Probabilities(logits anyseq.Seq) [][][]float64 {
	var res [][][]float64
	for _, seq := range anyseq.SeparateSeqs(logits.Output()) {
		probs := make([][]float64, len(seq))
		for t, vec := range seq {
			scores := vecFloats(vec)
			total := math.Inf(-1)
			for _, x := range scores {
				total = addLogs(total, x)
			}
			probs[t] = make([]float64, len(scores))
			for i, x := range scores {
				probs[t][i] = math.Exp(x - total)
			}
		}
		res = append(res, probs)
	}
	return res
}

// Parameters returns the projection parameters.
func (s *SoftmaxOutput) Parameters() []*anydiff.Var {
	return s.Proj.Parameters()
}

// SerializerType returns the unique ID used to serialize
// a SoftmaxOutput with the serializer package.
func (s *SoftmaxOutput) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/model.SoftmaxOutput"
}

// Serialize serializes the SoftmaxOutput.
func (s *SoftmaxOutput) Serialize() ([]byte, error) {
	return serializer.SerializeAny(s.Proj)
}

// ChainOutput scores positions with a linear projection
// and couples the decisions along each session with a
// learned transition matrix.
//
// Per-position probabilities are deliberately undefined:
// the chain normalizes over whole labelings, so
// Probabilities returns nil.
type ChainOutput struct {
	Proj  *hierrnn.FC
	Chain *chain.Chain
}

// DeserializeChainOutput deserializes a ChainOutput.
func DeserializeChainOutput(d []byte) (*ChainOutput, error) {
	var proj *hierrnn.FC
	var ch *chain.Chain
	if err := serializer.DeserializeAny(d, &proj, &ch); err != nil {
		return nil, essentials.AddCtx("deserialize ChainOutput", err)
	}
	return &ChainOutput{Proj: proj, Chain: ch}, nil
}

// NewChainOutput creates a ChainOutput projecting
// inSize-dimensional encodings onto numClasses scores.
func NewChainOutput(c anyvec.Creator, inSize, numClasses int) *ChainOutput {
	return &ChainOutput{
		Proj:  hierrnn.NewFC(c, inSize, numClasses),
		Chain: chain.NewChain(c, numClasses),
	}
}

// Apply projects every position onto class scores.
func (c *ChainOutput) Apply(seq anyseq.Seq) anyseq.Seq {
	return anyseq.Map(seq, c.Proj.Apply)
}

// Loss computes the negative mean joint log-likelihood of
// the sessions' label sequences.
func (c *ChainOutput) Loss(logits anyseq.Seq, targets [][]int) anydiff.Res {
	labels := make([][]int, len(targets))
	for i, seqLen := range seqLengths(logits) {
		labels[i] = targets[i][:seqLen]
	}
	return c.Chain.Cost(logits, labels)
}

// Decode runs the Viterbi algorithm over every session.
func (c *ChainOutput) Decode(logits anyseq.Seq) [][]int {
	return c.Chain.Decode(logits)
}

// Probabilities returns nil.
func (c *ChainOutput) Probabilities(logits anyseq.Seq) [][][]float64 {
	return nil
}

// Parameters returns the projection and transition
// parameters.
func (c *ChainOutput) Parameters() []*anydiff.Var {
	return append(c.Proj.Parameters(), c.Chain.Parameters()...)
}

// SerializerType returns the unique ID used to serialize
// a ChainOutput with the serializer package.
func (c *ChainOutput) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/model.ChainOutput"
}

// Serialize serializes the ChainOutput.
func (c *ChainOutput) Serialize() ([]byte, error) {
	return serializer.SerializeAny(c.Proj, c.Chain)
}

// seqLengths counts the timesteps each sequence is
// present for.
func seqLengths(seq anyseq.Seq) []int {
	out := seq.Output()
	if len(out) == 0 {
		return nil
	}
	res := make([]int, len(out[0].Present))
	for _, batch := range out {
		for i, p := range batch.Present {
			if p {
				res[i]++
			}
		}
	}
	return res
}

func vecFloats(v anyvec.Vector) []float64 {
	switch d := v.Data().(type) {
	case []float64:
		return d
	case []float32:
		s := make([]float64, len(d))
		for i, x := range d {
			s[i] = float64(x)
		}
		return s
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", d))
	}
}

// addLogs adds two numbers in the log domain.
func addLogs(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	} else if math.IsInf(b, -1) {
		return a
	}
	normalizer := math.Max(a, b)
	return math.Log(math.Exp(a-normalizer)+math.Exp(b-normalizer)) + normalizer
}
