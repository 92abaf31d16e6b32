package rnn

import (
	"errors"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/serializer"
)

func init() {
	var g GRU
	serializer.RegisterTypedDeserializer(g.SerializerType(), DeserializeGRU)
}

// GRU is a gated recurrent unit block.
//
// The state update for an input x and previous state s is
//
//	z := sigmoid(Wz*x + Uz*s + bz)
//	r := sigmoid(Wr*x + Ur*s + br)
//	h := tanh(Wh*x + Uh*(r*s) + bh)
//	out := (1-z)*s + z*h
type GRU struct {
	InCount  int
	OutCount int

	UpdateIn    *anydiff.Var
	UpdateState *anydiff.Var
	UpdateBias  *anydiff.Var

	ResetIn    *anydiff.Var
	ResetState *anydiff.Var
	ResetBias  *anydiff.Var

	CandIn    *anydiff.Var
	CandState *anydiff.Var
	CandBias  *anydiff.Var

	StartState *anydiff.Var
}

// DeserializeGRU deserializes a GRU.
func DeserializeGRU(d []byte) (*GRU, error) {
	vecs := make([]*anyvecsave.S, 10)
	dests := make([]interface{}, 10)
	for i := range vecs {
		dests[i] = &vecs[i]
	}
	if err := serializer.DeserializeAny(d, dests...); err != nil {
		return nil, err
	}
	outCount := vecs[2].Vector.Len()
	inCount := vecs[0].Vector.Len() / outCount
	if inCount*outCount != vecs[0].Vector.Len() {
		return nil, errors.New("incorrect GRU input matrix size")
	}
	return &GRU{
		InCount:     inCount,
		OutCount:    outCount,
		UpdateIn:    anydiff.NewVar(vecs[0].Vector),
		UpdateState: anydiff.NewVar(vecs[1].Vector),
		UpdateBias:  anydiff.NewVar(vecs[2].Vector),
		ResetIn:     anydiff.NewVar(vecs[3].Vector),
		ResetState:  anydiff.NewVar(vecs[4].Vector),
		ResetBias:   anydiff.NewVar(vecs[5].Vector),
		CandIn:      anydiff.NewVar(vecs[6].Vector),
		CandState:   anydiff.NewVar(vecs[7].Vector),
		CandBias:    anydiff.NewVar(vecs[8].Vector),
		StartState:  anydiff.NewVar(vecs[9].Vector),
	}, nil
}

// NewGRU creates a new, randomized GRU.
func NewGRU(c anyvec.Creator, in, out int) *GRU {
	res := NewGRUZero(c, in, out)
	inScale := c.MakeNumeric(1 / math.Sqrt(float64(in)))
	stateScale := c.MakeNumeric(1 / math.Sqrt(float64(out)))
	for _, v := range []*anydiff.Var{res.UpdateIn, res.ResetIn, res.CandIn} {
		anyvec.Rand(v.Vector, anyvec.Normal, nil)
		v.Vector.Scale(inScale)
	}
	for _, v := range []*anydiff.Var{res.UpdateState, res.ResetState, res.CandState} {
		anyvec.Rand(v.Vector, anyvec.Normal, nil)
		v.Vector.Scale(stateScale)
	}
	return res
}

// NewGRUZero creates a new, zero'd out GRU.
func NewGRUZero(c anyvec.Creator, in, out int) *GRU {
	return &GRU{
		InCount:     in,
		OutCount:    out,
		UpdateIn:    anydiff.NewVar(c.MakeVector(in * out)),
		UpdateState: anydiff.NewVar(c.MakeVector(out * out)),
		UpdateBias:  anydiff.NewVar(c.MakeVector(out)),
		ResetIn:     anydiff.NewVar(c.MakeVector(in * out)),
		ResetState:  anydiff.NewVar(c.MakeVector(out * out)),
		ResetBias:   anydiff.NewVar(c.MakeVector(out)),
		CandIn:      anydiff.NewVar(c.MakeVector(in * out)),
		CandState:   anydiff.NewVar(c.MakeVector(out * out)),
		CandBias:    anydiff.NewVar(c.MakeVector(out)),
		StartState:  anydiff.NewVar(c.MakeVector(out)),
	}
}

// Start generates an initial state.
func (g *GRU) Start(n int) State {
	return NewVecState(g.StartState.Vector, n)
}

// PropagateStart propagates through the start state.
func (g *GRU) PropagateStart(s StateGrad, gr anydiff.Grad) {
	s.(*VecState).PropagateStart(g.StartState, gr)
}

// Step performs one timestep.
func (g *GRU) Step(s State, in anyvec.Vector) Res {
	res := &gruRes{
		InPool:    anydiff.NewVar(in),
		StatePool: anydiff.NewVar(s.(*VecState).Vector),
		V:         anydiff.VarSet{},
	}
	res.V.Add(g.StartState)

	update := anydiff.Sigmoid(g.gate(res.InPool, res.StatePool, g.UpdateIn,
		g.UpdateState, g.UpdateBias))
	reset := anydiff.Sigmoid(g.gate(res.InPool, res.StatePool, g.ResetIn,
		g.ResetState, g.ResetBias))
	gated := anydiff.Mul(reset, res.StatePool)
	cand := anydiff.Tanh(g.gate(res.InPool, gated, g.CandIn, g.CandState, g.CandBias))

	res.Out = anydiff.Pool(update, func(update anydiff.Res) anydiff.Res {
		keep := anydiff.Mul(anydiff.Complement(update), res.StatePool)
		return anydiff.Add(keep, anydiff.Mul(update, cand))
	})
	res.OutState = &VecState{Vector: res.Out.Output(), PresentMap: s.Present()}
	res.V = anydiff.MergeVarSets(res.V, res.Out.Vars())

	return res
}

func (g *GRU) gate(in, state anydiff.Res, wIn, wState, bias *anydiff.Var) anydiff.Res {
	wi := applyWeights(g.InCount, g.OutCount, wIn, in)
	ws := applyWeights(g.OutCount, g.OutCount, wState, state)
	return anydiff.AddRepeated(anydiff.Add(wi, ws), bias)
}

// Parameters returns the block's parameters.
func (g *GRU) Parameters() []*anydiff.Var {
	return []*anydiff.Var{
		g.UpdateIn, g.UpdateState, g.UpdateBias,
		g.ResetIn, g.ResetState, g.ResetBias,
		g.CandIn, g.CandState, g.CandBias,
		g.StartState,
	}
}

// SerializerType returns the unique ID used to serialize
// a GRU with the serializer package.
func (g *GRU) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/rnn.GRU"
}

// Serialize serializes the GRU.
func (g *GRU) Serialize() ([]byte, error) {
	vars := g.Parameters()
	objs := make([]interface{}, len(vars))
	for i, v := range vars {
		objs[i] = &anyvecsave.S{Vector: v.Vector}
	}
	return serializer.SerializeAny(objs...)
}

type gruRes struct {
	InPool    *anydiff.Var
	StatePool *anydiff.Var
	OutState  State
	Out       anydiff.Res
	V         anydiff.VarSet
}

func (g *gruRes) State() State {
	return g.OutState
}

func (g *gruRes) Output() anyvec.Vector {
	return g.Out.Output()
}

func (g *gruRes) Vars() anydiff.VarSet {
	return g.V
}

func (g *gruRes) Propagate(u anyvec.Vector, s StateGrad, gr anydiff.Grad) (anyvec.Vector,
	StateGrad) {
	down := g.InPool.Vector.Creator().MakeVector(g.InPool.Vector.Len())
	downState := g.StatePool.Vector.Creator().MakeVector(g.StatePool.Vector.Len())
	gr[g.InPool] = down
	gr[g.StatePool] = downState
	if s != nil {
		u.Add(s.(*VecState).Vector)
	}
	g.Out.Propagate(u, gr)
	delete(gr, g.InPool)
	delete(gr, g.StatePool)
	return down, &VecState{
		Vector:     downState,
		PresentMap: g.OutState.Present(),
	}
}
