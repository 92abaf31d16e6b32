package model

import (
	"errors"
	"fmt"

	hierrnn "github.com/efikarra/hierarchical-rnn"
	"github.com/efikarra/hierarchical-rnn/conv"
	"github.com/efikarra/hierarchical-rnn/rnn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var r RNNEncoder
	serializer.RegisterTypedDeserializer(r.SerializerType(), DeserializeRNNEncoder)
	var c CNNEncoder
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeCNNEncoder)
	var f FFNEncoder
	serializer.RegisterTypedDeserializer(f.SerializerType(), DeserializeFFNEncoder)
}

// An UttrEncoder turns the utterance grid of a Batch into
// one fixed-size vector per slot, row-major across the
// batch×session grid.
//
// Padding slots encode to zero vectors.
type UttrEncoder interface {
	Encode(b *Batch) anydiff.Res
	OutSize() int
	Parameters() []*anydiff.Var
}

// RNNEncoder embeds tokens and runs a recurrent net over
// each utterance, pooling the timesteps into one vector.
type RNNEncoder struct {
	Embedding *hierrnn.Embedding
	Net       RecurrentNet
	Pool      rnn.Pooler

	// Width is the recurrent net's per-timestep output
	// width, which is also the pooled vector size.
	Width int
}

// DeserializeRNNEncoder deserializes an RNNEncoder.
func DeserializeRNNEncoder(d []byte) (*RNNEncoder, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize RNNEncoder", err)
	}
	if len(slice) != 4 {
		return nil, errors.New("deserialize RNNEncoder: incorrect component count")
	}
	emb, ok1 := slice[0].(*hierrnn.Embedding)
	net, ok2 := slice[1].(RecurrentNet)
	pool, ok3 := slice[2].(rnn.Pooler)
	width, ok4 := slice[3].(serializer.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, errors.New("deserialize RNNEncoder: incorrect component types")
	}
	return &RNNEncoder{Embedding: emb, Net: net, Pool: pool, Width: int(width)}, nil
}

// Encode encodes the token grid.
func (r *RNNEncoder) Encode(b *Batch) anydiff.Res {
	cr := r.creator()
	n := b.Size() * b.MaxSession()
	seq := anyseq.ResSeq(cr, r.timesteps(b))
	return rnn.PoolSeq(r.Pool, r.Net.Apply(seq), n, r.Width)
}

// timesteps builds one embedded batch per token position,
// with utterances absent from every position at or past
// their length.
func (r *RNNEncoder) timesteps(b *Batch) []*anyseq.ResBatch {
	n := b.Size() * b.MaxSession()
	maxSess := b.MaxSession()
	var res []*anyseq.ResBatch
	for t := 0; true; t++ {
		present := make([]bool, n)
		var ids []int
		for i, lens := range b.UttrLens {
			for j, uttrLen := range lens {
				if uttrLen > t {
					present[i*maxSess+j] = true
					ids = append(ids, b.Tokens[i][j][t])
				}
			}
		}
		if len(ids) == 0 {
			break
		}
		res = append(res, &anyseq.ResBatch{
			Packed:  r.Embedding.Embed(ids),
			Present: present,
		})
	}
	return res
}

// OutSize returns the per-slot vector size.
func (r *RNNEncoder) OutSize() int {
	return r.Width
}

// Parameters returns the encoder's parameters.
func (r *RNNEncoder) Parameters() []*anydiff.Var {
	return hierrnn.AllParameters(r.Embedding, r.Net, r.Pool)
}

// SerializerType returns the unique ID used to serialize
// an RNNEncoder with the serializer package.
func (r *RNNEncoder) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/model.RNNEncoder"
}

// Serialize serializes the RNNEncoder.
func (r *RNNEncoder) Serialize() ([]byte, error) {
	pool, ok := r.Pool.(serializer.Serializer)
	if !ok {
		return nil, fmt.Errorf("not a serializer: %T", r.Pool)
	}
	return serializer.SerializeSlice([]serializer.Serializer{
		r.Embedding, r.Net, pool, serializer.Int(r.Width),
	})
}

func (r *RNNEncoder) creator() anyvec.Creator {
	return r.Embedding.Matrix.Vector.Creator()
}

// CNNEncoder embeds tokens, zero-masks embeddings past
// each utterance's length, and runs a bank of 1-D
// convolutions with per-filter max-over-time pooling (or
// flattening).
type CNNEncoder struct {
	Embedding  *hierrnn.Embedding
	Convs      []*conv.Conv1D
	Activation hierrnn.Layer
	MaxPool    bool

	// SeqLen fixes the padded utterance length.
	// It may be zero when MaxPool is set, in which case
	// each batch's own padded length is used.
	SeqLen int
}

// DeserializeCNNEncoder deserializes a CNNEncoder.
func DeserializeCNNEncoder(d []byte) (*CNNEncoder, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize CNNEncoder", err)
	}
	if len(slice) < 4 {
		return nil, errors.New("deserialize CNNEncoder: incorrect component count")
	}
	emb, ok1 := slice[0].(*hierrnn.Embedding)
	act, ok2 := slice[1].(hierrnn.Layer)
	maxPool, ok3 := slice[2].(serializer.Int)
	seqLen, ok4 := slice[3].(serializer.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, errors.New("deserialize CNNEncoder: incorrect component types")
	}
	res := &CNNEncoder{
		Embedding:  emb,
		Activation: act,
		MaxPool:    maxPool == 1,
		SeqLen:     int(seqLen),
	}
	for _, x := range slice[4:] {
		c, ok := x.(*conv.Conv1D)
		if !ok {
			return nil, errors.New("deserialize CNNEncoder: incorrect component types")
		}
		res.Convs = append(res.Convs, c)
	}
	return res, nil
}

// Encode encodes the token grid.
func (c *CNNEncoder) Encode(b *Batch) anydiff.Res {
	cr := c.Embedding.Matrix.Vector.Creator()
	n := b.Size() * b.MaxSession()
	seqLen := c.seqLen(b)

	embSize := c.Embedding.EmbSize
	ids := make([]int, 0, n*seqLen)
	mask := make([]float64, 0, n*seqLen*embSize)
	for i, lens := range b.UttrLens {
		for j, uttrLen := range lens {
			for t := 0; t < seqLen; t++ {
				var id int
				var maskVal float64
				if t < uttrLen {
					id = b.Tokens[i][j][t]
					maskVal = 1
				}
				ids = append(ids, id)
				for k := 0; k < embSize; k++ {
					mask = append(mask, maskVal)
				}
			}
		}
	}

	embedded := c.Embedding.Embed(ids)
	maskConst := anydiff.NewConst(cr.MakeVectorData(cr.MakeNumericList(mask)))
	masked := anydiff.Mul(embedded, maskConst)

	return anydiff.Pool(masked, func(masked anydiff.Res) anydiff.Res {
		outs := make([]anydiff.Res, len(c.Convs))
		depths := make([]int, len(c.Convs))
		for k, cv := range c.Convs {
			outLen := cv.OutLen(seqLen)
			out := cv.Apply(masked, seqLen, n)
			out = c.Activation.Apply(out, n)
			if c.MaxPool {
				out = conv.MaxOverTime(out, outLen, cv.FilterCount, n)
				depths[k] = cv.FilterCount
			} else {
				depths[k] = outLen * cv.FilterCount
			}
			outs[k] = out
		}
		if len(outs) == 1 {
			return outs[0]
		}
		return concatGrids(outs, depths, n)
	})
}

// OutSize returns the per-slot vector size.
//
// Without max pooling this depends on the fixed SeqLen.
func (c *CNNEncoder) OutSize() int {
	total := 0
	for _, cv := range c.Convs {
		if c.MaxPool {
			total += cv.FilterCount
		} else {
			total += cv.OutLen(c.SeqLen) * cv.FilterCount
		}
	}
	return total
}

// Parameters returns the encoder's parameters.
func (c *CNNEncoder) Parameters() []*anydiff.Var {
	objs := []interface{}{c.Embedding, c.Activation}
	for _, cv := range c.Convs {
		objs = append(objs, cv)
	}
	return hierrnn.AllParameters(objs...)
}

// SerializerType returns the unique ID used to serialize
// a CNNEncoder with the serializer package.
func (c *CNNEncoder) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/model.CNNEncoder"
}

// Serialize serializes the CNNEncoder.
func (c *CNNEncoder) Serialize() ([]byte, error) {
	act, ok := c.Activation.(serializer.Serializer)
	if !ok {
		return nil, fmt.Errorf("not a serializer: %T", c.Activation)
	}
	var maxPool serializer.Int
	if c.MaxPool {
		maxPool = 1
	}
	slice := []serializer.Serializer{
		c.Embedding, act, maxPool, serializer.Int(c.SeqLen),
	}
	for _, cv := range c.Convs {
		slice = append(slice, cv)
	}
	return serializer.SerializeSlice(slice)
}

func (c *CNNEncoder) seqLen(b *Batch) int {
	if c.SeqLen > 0 {
		return c.SeqLen
	}
	max := 0
	for _, lens := range b.UttrLens {
		for _, l := range lens {
			if l > max {
				max = l
			}
		}
	}
	return max
}

// FFNEncoder runs per-utterance feature vectors through a
// dense stack.
type FFNEncoder struct {
	Net         hierrnn.Net
	FeatureSize int
	Width       int
}

// DeserializeFFNEncoder deserializes an FFNEncoder.
func DeserializeFFNEncoder(d []byte) (*FFNEncoder, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize FFNEncoder", err)
	}
	if len(slice) != 3 {
		return nil, errors.New("deserialize FFNEncoder: incorrect component count")
	}
	net, ok1 := slice[0].(hierrnn.Net)
	featureSize, ok2 := slice[1].(serializer.Int)
	width, ok3 := slice[2].(serializer.Int)
	if !ok1 || !ok2 || !ok3 {
		return nil, errors.New("deserialize FFNEncoder: incorrect component types")
	}
	return &FFNEncoder{
		Net:         net,
		FeatureSize: int(featureSize),
		Width:       int(width),
	}, nil
}

// Encode encodes the feature grid.
func (f *FFNEncoder) Encode(b *Batch) anydiff.Res {
	cr := f.creator()
	n := b.Size() * b.MaxSession()
	features := make([]float64, n*f.FeatureSize)
	for i, lens := range b.UttrLens {
		for j := range lens {
			if j >= b.SessLens[i] {
				continue
			}
			slot := i*b.MaxSession() + j
			copy(features[slot*f.FeatureSize:], b.Features[i][j])
		}
	}
	in := anydiff.NewConst(cr.MakeVectorData(cr.MakeNumericList(features)))
	return f.Net.Apply(in, n)
}

// OutSize returns the per-slot vector size.
func (f *FFNEncoder) OutSize() int {
	return f.Width
}

// Parameters returns the encoder's parameters.
func (f *FFNEncoder) Parameters() []*anydiff.Var {
	return f.Net.Parameters()
}

// SerializerType returns the unique ID used to serialize
// an FFNEncoder with the serializer package.
func (f *FFNEncoder) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/model.FFNEncoder"
}

// Serialize serializes the FFNEncoder.
func (f *FFNEncoder) Serialize() ([]byte, error) {
	return serializer.SerializeSlice([]serializer.Serializer{
		f.Net, serializer.Int(f.FeatureSize), serializer.Int(f.Width),
	})
}

func (f *FFNEncoder) creator() anyvec.Creator {
	params := f.Net.Parameters()
	if len(params) == 0 {
		panic("parameterless feed-forward encoder")
	}
	return params[0].Vector.Creator()
}

// concatGrids joins per-slot rows from several packed
// grids into one packed grid.
type concatGridsRes struct {
	Ins   []anydiff.Res
	Pools []*anydiff.Var
	Res   anydiff.Res
	V     anydiff.VarSet
}

func concatGrids(ins []anydiff.Res, depths []int, n int) anydiff.Res {
	pools := make([]*anydiff.Var, len(ins))
	v := anydiff.VarSet{}
	for i, in := range ins {
		pools[i] = anydiff.NewVar(in.Output())
		v = anydiff.MergeVarSets(v, in.Vars())
	}
	var rows []anydiff.Res
	for s := 0; s < n; s++ {
		for k, pool := range pools {
			rows = append(rows, anydiff.Slice(pool, s*depths[k], (s+1)*depths[k]))
		}
	}
	return &concatGridsRes{
		Ins:   ins,
		Pools: pools,
		Res:   anydiff.Concat(rows...),
		V:     v,
	}
}

func (c *concatGridsRes) Output() anyvec.Vector {
	return c.Res.Output()
}

func (c *concatGridsRes) Vars() anydiff.VarSet {
	return c.V
}

func (c *concatGridsRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	for _, pool := range c.Pools {
		g[pool] = pool.Vector.Creator().MakeVector(pool.Vector.Len())
	}
	c.Res.Propagate(u, g)
	for i, pool := range c.Pools {
		down := g[pool]
		delete(g, pool)
		if g.Intersects(c.Ins[i].Vars()) {
			c.Ins[i].Propagate(down, g)
		}
	}
}
