package rnn

import (
	"math"

	hierrnn "github.com/efikarra/hierarchical-rnn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var l LastPool
	serializer.RegisterTypedDeserializer(l.SerializerType(), DeserializeLastPool)
	var m MeanPool
	serializer.RegisterTypedDeserializer(m.SerializerType(), DeserializeMeanPool)
	var a AttentionPool
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeAttentionPool)
	var c ContextAttentionPool
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeContextAttentionPool)
}

// A Pooler reduces the timesteps of a single sequence to
// one fixed-size vector.
//
// Each entry of steps is one timestep's output, all of
// the same length width.
// The result has length width as well.
// The steps slice is never empty.
type Pooler interface {
	Pool(steps []anydiff.Res, width int) anydiff.Res
}

// LastPool selects the final timestep.
type LastPool struct{}

// DeserializeLastPool deserializes a LastPool.
func DeserializeLastPool(d []byte) (*LastPool, error) {
	return &LastPool{}, nil
}

// Pool returns the last timestep.
func (l *LastPool) Pool(steps []anydiff.Res, width int) anydiff.Res {
	return steps[len(steps)-1]
}

// SerializerType returns the unique ID used to serialize
// a LastPool with the serializer package.
func (l *LastPool) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/rnn.LastPool"
}

// Serialize serializes the LastPool.
func (l *LastPool) Serialize() ([]byte, error) {
	return []byte{}, nil
}

// MeanPool averages the timesteps.
type MeanPool struct{}

// DeserializeMeanPool deserializes a MeanPool.
func DeserializeMeanPool(d []byte) (*MeanPool, error) {
	return &MeanPool{}, nil
}

// Pool averages the timesteps.
func (m *MeanPool) Pool(steps []anydiff.Res, width int) anydiff.Res {
	sum := steps[0]
	for _, x := range steps[1:] {
		sum = anydiff.Add(sum, x)
	}
	c := sum.Output().Creator()
	return anydiff.Scale(sum, c.MakeNumeric(1/float64(len(steps))))
}

// SerializerType returns the unique ID used to serialize
// a MeanPool with the serializer package.
func (m *MeanPool) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/rnn.MeanPool"
}

// Serialize serializes the MeanPool.
func (m *MeanPool) Serialize() ([]byte, error) {
	return []byte{}, nil
}

// AttentionPool computes a weighted average of the
// timesteps.
// The weight for a timestep is the softmax of the dot
// product between the timestep and a learned energy
// vector.
type AttentionPool struct {
	Energy *anydiff.Var
}

// DeserializeAttentionPool deserializes an AttentionPool.
func DeserializeAttentionPool(d []byte) (*AttentionPool, error) {
	var energy *anyvecsave.S
	if err := serializer.DeserializeAny(d, &energy); err != nil {
		return nil, essentials.AddCtx("deserialize AttentionPool", err)
	}
	return &AttentionPool{Energy: anydiff.NewVar(energy.Vector)}, nil
}

// NewAttentionPool creates a randomized AttentionPool for
// timesteps of the given width.
func NewAttentionPool(c anyvec.Creator, width int) *AttentionPool {
	energy := c.MakeVector(width)
	anyvec.Rand(energy, anyvec.Normal, nil)
	energy.Scale(c.MakeNumeric(1 / math.Sqrt(float64(width))))
	return &AttentionPool{Energy: anydiff.NewVar(energy)}
}

// Pool computes the attention-weighted average.
func (a *AttentionPool) Pool(steps []anydiff.Res, width int) anydiff.Res {
	joined := anydiff.Concat(steps...)
	return attentionAverage(joined, joined, a.Energy, len(steps), width, width)
}

// Parameters returns the energy vector.
func (a *AttentionPool) Parameters() []*anydiff.Var {
	return []*anydiff.Var{a.Energy}
}

// SerializerType returns the unique ID used to serialize
// an AttentionPool with the serializer package.
func (a *AttentionPool) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/rnn.AttentionPool"
}

// Serialize serializes the AttentionPool.
func (a *AttentionPool) Serialize() ([]byte, error) {
	return serializer.SerializeAny(&anyvecsave.S{Vector: a.Energy.Vector})
}

// ContextAttentionPool is like AttentionPool, but the
// attention scores come from projecting each timestep
// into an attention space with a tanh fully-connected
// layer before comparing it to a learned context vector.
type ContextAttentionPool struct {
	Proj    *hierrnn.FC
	Context *anydiff.Var
}

// DeserializeContextAttentionPool deserializes a
// ContextAttentionPool.
func DeserializeContextAttentionPool(d []byte) (*ContextAttentionPool, error) {
	var proj *hierrnn.FC
	var ctx *anyvecsave.S
	if err := serializer.DeserializeAny(d, &proj, &ctx); err != nil {
		return nil, essentials.AddCtx("deserialize ContextAttentionPool", err)
	}
	return &ContextAttentionPool{Proj: proj, Context: anydiff.NewVar(ctx.Vector)}, nil
}

// NewContextAttentionPool creates a randomized
// ContextAttentionPool for timesteps of the given width,
// scoring them in an attnSize-dimensional space.
func NewContextAttentionPool(c anyvec.Creator, width, attnSize int) *ContextAttentionPool {
	ctx := c.MakeVector(attnSize)
	anyvec.Rand(ctx, anyvec.Normal, nil)
	ctx.Scale(c.MakeNumeric(1 / math.Sqrt(float64(attnSize))))
	return &ContextAttentionPool{
		Proj:    hierrnn.NewFC(c, width, attnSize),
		Context: anydiff.NewVar(ctx),
	}
}

// Pool computes the attention-weighted average.
func (c *ContextAttentionPool) Pool(steps []anydiff.Res, width int) anydiff.Res {
	joined := anydiff.Concat(steps...)
	projected := anydiff.Tanh(c.Proj.Apply(joined, len(steps)))
	return attentionAverage(projected, joined, c.Context, len(steps),
		c.Context.Vector.Len(), width)
}

// Parameters returns the projection and context
// parameters.
func (c *ContextAttentionPool) Parameters() []*anydiff.Var {
	return append(c.Proj.Parameters(), c.Context)
}

// SerializerType returns the unique ID used to serialize
// a ContextAttentionPool with the serializer package.
func (c *ContextAttentionPool) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/rnn.ContextAttentionPool"
}

// Serialize serializes the ContextAttentionPool.
func (c *ContextAttentionPool) Serialize() ([]byte, error) {
	return serializer.SerializeAny(c.Proj, &anyvecsave.S{Vector: c.Context.Vector})
}

// attentionAverage scores the rows of keys against the
// energy vector, softmaxes the scores, and averages the
// rows of values by the resulting weights.
func attentionAverage(keys, values anydiff.Res, energy *anydiff.Var, rows, keyCols,
	width int) anydiff.Res {
	keyMat := &anydiff.Matrix{Data: keys, Rows: rows, Cols: keyCols}
	energyMat := &anydiff.Matrix{Data: energy, Rows: 1, Cols: keyCols}
	scores := anydiff.MatMul(false, true, keyMat, energyMat).Data
	weights := anydiff.Exp(anydiff.LogSoftmax(scores, rows))
	weightMat := &anydiff.Matrix{Data: weights, Rows: 1, Cols: rows}
	valueMat := &anydiff.Matrix{Data: values, Rows: rows, Cols: width}
	return anydiff.MatMul(false, false, weightMat, valueMat).Data
}

// PoolSeq applies a Pooler to every sequence in a batch,
// producing one packed vector with n*width components.
//
// The batch contains n sequences, each with timesteps of
// length width.
// Sequences may have different lengths; an empty sequence
// pools to a zero vector.
func PoolSeq(p Pooler, seqs anyseq.Seq, n, width int) anydiff.Res {
	c := seqs.Creator()
	if len(seqs.Output()) == 0 {
		return anydiff.NewConst(c.MakeVector(n * width))
	}
	return poolSeqs(seqs, func(in [][]anydiff.Res) anydiff.Res {
		res := make([]anydiff.Res, len(in))
		for i, steps := range in {
			if len(steps) == 0 {
				res[i] = anydiff.NewConst(c.MakeVector(width))
			} else {
				res[i] = p.Pool(steps, width)
			}
		}
		return anydiff.Concat(res...)
	})
}

type poolSeqsRes struct {
	In      anyseq.Seq
	Pools   []*anydiff.Var
	Lengths []int
	Res     anydiff.Res
}

// poolSeqs splits a sequence batch into per-sequence
// timestep lists, passes them through f, and arranges for
// back-propagation into the sequence batch.
func poolSeqs(seqs anyseq.Seq, f func(in [][]anydiff.Res) anydiff.Res) anydiff.Res {
	rawData := anyseq.SeparateSeqs(seqs.Output())
	pools := make([]*anydiff.Var, len(rawData))
	splitPools := make([][]anydiff.Res, len(rawData))
	lengths := make([]int, len(rawData))
	for i, raw := range rawData {
		pools[i] = anydiff.NewVar(seqs.Creator().Concat(raw...))
		splitPools[i] = splitRes(pools[i], len(raw))
		lengths[i] = len(raw)
	}
	return &poolSeqsRes{
		In:      seqs,
		Pools:   pools,
		Lengths: lengths,
		Res:     f(splitPools),
	}
}

func (p *poolSeqsRes) Output() anyvec.Vector {
	return p.Res.Output()
}

func (p *poolSeqsRes) Vars() anydiff.VarSet {
	return p.In.Vars()
}

func (p *poolSeqsRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	for _, pvar := range p.Pools {
		g[pvar] = pvar.Vector.Creator().MakeVector(pvar.Vector.Len())
	}
	p.Res.Propagate(u, g)
	downstream := make([][]anyvec.Vector, len(p.Pools))
	for i, pvar := range p.Pools {
		downstream[i] = splitVec(g[pvar], p.Lengths[i])
		delete(g, p.Pools[i])
	}
	joinedU := anyseq.ConstSeqList(u.Creator(), downstream).Output()
	p.In.Propagate(joinedU, g)
}

func splitVec(vec anyvec.Vector, parts int) []anyvec.Vector {
	if parts == 0 {
		return nil
	}
	res := make([]anyvec.Vector, parts)
	chunkSize := vec.Len() / parts
	for i := range res {
		res[i] = vec.Slice(i*chunkSize, (i+1)*chunkSize)
	}
	return res
}

func splitRes(res anydiff.Res, parts int) []anydiff.Res {
	if parts == 0 {
		return nil
	}
	reses := make([]anydiff.Res, parts)
	chunkSize := res.Output().Len() / parts
	for i := range reses {
		reses[i] = anydiff.Slice(res, i*chunkSize, (i+1)*chunkSize)
	}
	return reses
}
