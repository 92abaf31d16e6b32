package rnn

import (
	hierrnn "github.com/efikarra/hierarchical-rnn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/serializer"
)

const lstmDefaultForgetBias = 1

func init() {
	var g LSTMGate
	serializer.RegisterTypedDeserializer(g.SerializerType(), DeserializeLSTMGate)
	var l LSTM
	serializer.RegisterTypedDeserializer(l.SerializerType(), DeserializeLSTM)
}

// LSTM is a long short-term memory block.
type LSTM struct {
	InValue   *LSTMGate
	In        *LSTMGate
	Remember  *LSTMGate
	Output    *LSTMGate
	InitState *anydiff.Var
}

// DeserializeLSTM deserializes an LSTM.
func DeserializeLSTM(d []byte) (*LSTM, error) {
	var inVal, in, rem, out *LSTMGate
	var initState *anyvecsave.S
	if err := serializer.DeserializeAny(d, &inVal, &in, &rem, &out, &initState); err != nil {
		return nil, err
	}
	return &LSTM{
		InValue:   inVal,
		In:        in,
		Remember:  rem,
		Output:    out,
		InitState: anydiff.NewVar(initState.Vector),
	}, nil
}

// NewLSTM creates a new, randomized LSTM whose remember
// gates are initially biased to remember things.
func NewLSTM(c anyvec.Creator, in, state int) *LSTM {
	return NewLSTMForgetBias(c, in, state, lstmDefaultForgetBias)
}

// NewLSTMForgetBias is like NewLSTM, but with an explicit
// initial bias for the remember gates.
func NewLSTMForgetBias(c anyvec.Creator, in, state int, forgetBias float64) *LSTM {
	res := &LSTM{
		InValue:   NewLSTMGate(c, in, state, hierrnn.Tanh),
		In:        NewLSTMGate(c, in, state, hierrnn.Sigmoid),
		Remember:  NewLSTMGate(c, in, state, hierrnn.Sigmoid),
		Output:    NewLSTMGate(c, in, state, hierrnn.Sigmoid),
		InitState: anydiff.NewVar(c.MakeVector(state)),
	}
	res.Remember.Biases.Vector.AddScalar(c.MakeNumeric(forgetBias))
	return res
}

// Start produces the initial state, which contains both
// the internal cell state and the last output.
func (l *LSTM) Start(n int) State {
	c := l.InitState.Vector.Creator()
	stateSize := l.InitState.Vector.Len()
	return &lstmState{
		Internal: NewVecState(l.InitState.Vector, n),
		LastOut:  NewVecState(c.MakeVector(stateSize), n),
	}
}

// PropagateStart propagates through the start state.
func (l *LSTM) PropagateStart(s StateGrad, g anydiff.Grad) {
	ls := s.(*lstmState)
	ls.Internal.PropagateStart(l.InitState, g)
}

// Step performs one timestep.
func (l *LSTM) Step(s State, in anyvec.Vector) Res {
	ls := s.(*lstmState)
	res := &lstmRes{
		InPool:       anydiff.NewVar(in),
		InternalPool: anydiff.NewVar(ls.Internal.Vector),
		LastOutPool:  anydiff.NewVar(ls.LastOut.Vector),
		V:            anydiff.VarSet{},
	}
	res.V.Add(l.InitState)

	n := s.Present().NumPresent()
	inValue := l.InValue.Apply(res.InPool, res.LastOutPool, res.InternalPool, n)
	inGate := l.In.Apply(res.InPool, res.LastOutPool, res.InternalPool, n)
	remember := l.Remember.Apply(res.InPool, res.LastOutPool, res.InternalPool, n)

	newInternal := anydiff.Add(
		anydiff.Mul(remember, res.InternalPool),
		anydiff.Mul(inGate, inValue),
	)
	res.Internal = newInternal
	res.Out = anydiff.Pool(newInternal, func(internal anydiff.Res) anydiff.Res {
		og := l.Output.Apply(res.InPool, res.LastOutPool, internal, n)
		return anydiff.Mul(og, anydiff.Tanh(internal))
	})

	res.V = anydiff.MergeVarSets(res.V, res.Out.Vars(), res.Internal.Vars())
	res.OutState = &lstmState{
		Internal: &VecState{Vector: res.Internal.Output(), PresentMap: s.Present()},
		LastOut:  &VecState{Vector: res.Out.Output(), PresentMap: s.Present()},
	}
	return res
}

// Parameters returns the block's parameters.
func (l *LSTM) Parameters() []*anydiff.Var {
	res := []*anydiff.Var{l.InitState}
	for _, g := range []*LSTMGate{l.InValue, l.In, l.Remember, l.Output} {
		res = append(res, g.Parameters()...)
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// an LSTM with the serializer package.
func (l *LSTM) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/rnn.LSTM"
}

// Serialize serializes the LSTM.
func (l *LSTM) Serialize() ([]byte, error) {
	return serializer.SerializeAny(l.InValue, l.In, l.Remember, l.Output,
		&anyvecsave.S{Vector: l.InitState.Vector})
}

// An LSTMGate computes a value based on the input, the
// previous output, and the internal state.
type LSTMGate struct {
	StateWeights *anydiff.Var
	InputWeights *anydiff.Var
	Peephole     *anydiff.Var
	Biases       *anydiff.Var
	Activation   hierrnn.Layer
}

// DeserializeLSTMGate deserializes an LSTMGate.
func DeserializeLSTMGate(d []byte) (*LSTMGate, error) {
	var sw, iw, p, b *anyvecsave.S
	var a hierrnn.Activation
	if err := serializer.DeserializeAny(d, &sw, &iw, &p, &b, &a); err != nil {
		return nil, err
	}
	return &LSTMGate{
		StateWeights: anydiff.NewVar(sw.Vector),
		InputWeights: anydiff.NewVar(iw.Vector),
		Peephole:     anydiff.NewVar(p.Vector),
		Biases:       anydiff.NewVar(b.Vector),
		Activation:   a,
	}, nil
}

// NewLSTMGate creates a randomized LSTM gate.
func NewLSTMGate(c anyvec.Creator, in, state int, activation hierrnn.Layer) *LSTMGate {
	// Reuse the vanilla randomization scheme.
	vn := NewVanilla(c, in, state, activation)
	return &LSTMGate{
		StateWeights: vn.StateWeights,
		InputWeights: vn.InputWeights,
		Peephole:     anydiff.NewVar(c.MakeVector(state)),
		Biases:       vn.Biases,
		Activation:   activation,
	}
}

// Apply applies the gate to a batch of inputs, previous
// outputs, and internal states.
func (l *LSTMGate) Apply(in, lastOut, internal anydiff.Res, n int) anydiff.Res {
	c := internal.Output().Creator()
	state := internal.Output().Len() / n
	inCount := in.Output().Len() / n
	wState := applyWeights(state, state, l.StateWeights, lastOut)
	wInput := applyWeights(inCount, state, l.InputWeights, in)
	peepRep := anydiff.AddRepeated(
		anydiff.NewConst(c.MakeVector(internal.Output().Len())), l.Peephole)
	peep := anydiff.Mul(internal, peepRep)
	sum := anydiff.Add(anydiff.Add(wState, wInput), peep)
	return l.Activation.Apply(anydiff.AddRepeated(sum, l.Biases), n)
}

// Parameters returns the gate's parameters.
func (l *LSTMGate) Parameters() []*anydiff.Var {
	return []*anydiff.Var{l.StateWeights, l.InputWeights, l.Peephole, l.Biases}
}

// SerializerType returns the unique ID used to serialize
// an LSTMGate with the serializer package.
func (l *LSTMGate) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/rnn.LSTMGate"
}

// Serialize serializes the gate.
func (l *LSTMGate) Serialize() ([]byte, error) {
	sw := &anyvecsave.S{Vector: l.StateWeights.Vector}
	iw := &anyvecsave.S{Vector: l.InputWeights.Vector}
	p := &anyvecsave.S{Vector: l.Peephole.Vector}
	b := &anyvecsave.S{Vector: l.Biases.Vector}
	return serializer.SerializeAny(sw, iw, p, b, l.Activation)
}

type lstmState struct {
	Internal *VecState
	LastOut  *VecState
}

func (l *lstmState) Present() PresentMap {
	return l.Internal.Present()
}

func (l *lstmState) Reduce(p PresentMap) State {
	return &lstmState{
		Internal: l.Internal.Reduce(p).(*VecState),
		LastOut:  l.LastOut.Reduce(p).(*VecState),
	}
}

func (l *lstmState) Expand(p PresentMap) StateGrad {
	return &lstmState{
		Internal: l.Internal.Expand(p).(*VecState),
		LastOut:  l.LastOut.Expand(p).(*VecState),
	}
}

type lstmRes struct {
	InPool       *anydiff.Var
	InternalPool *anydiff.Var
	LastOutPool  *anydiff.Var
	Internal     anydiff.Res
	Out          anydiff.Res
	OutState     State
	V            anydiff.VarSet
}

func (l *lstmRes) State() State {
	return l.OutState
}

func (l *lstmRes) Output() anyvec.Vector {
	return l.Out.Output()
}

func (l *lstmRes) Vars() anydiff.VarSet {
	return l.V
}

func (l *lstmRes) Propagate(u anyvec.Vector, s StateGrad, g anydiff.Grad) (anyvec.Vector,
	StateGrad) {
	c := u.Creator()
	downIn := c.MakeVector(l.InPool.Vector.Len())
	downInternal := c.MakeVector(l.InternalPool.Vector.Len())
	downLastOut := c.MakeVector(l.LastOutPool.Vector.Len())
	g[l.InPool] = downIn
	g[l.InternalPool] = downInternal
	g[l.LastOutPool] = downLastOut

	if s != nil {
		ls := s.(*lstmState)
		u.Add(ls.LastOut.Vector)
		l.Internal.Propagate(ls.Internal.Vector.Copy(), g)
	}
	l.Out.Propagate(u, g)

	delete(g, l.InPool)
	delete(g, l.InternalPool)
	delete(g, l.LastOutPool)

	pres := l.OutState.Present()
	return downIn, &lstmState{
		Internal: &VecState{Vector: downInternal, PresentMap: pres},
		LastOut:  &VecState{Vector: downLastOut, PresentMap: pres},
	}
}
