package rnn

import (
	"testing"

	hierrnn "github.com/efikarra/hierarchical-rnn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec/anyvec32"
)

func TestVanillaProp(t *testing.T) {
	block := NewVanilla(anyvec32.CurrentCreator(), 2, 3, hierrnn.Tanh)
	if len(block.Parameters()) != 4 {
		t.Errorf("expected 4 parameters, but got %d", len(block.Parameters()))
	}
	testBlockProp(t, block)
}

func TestLSTMProp(t *testing.T) {
	block := NewLSTM(anyvec32.CurrentCreator(), 2, 3)
	testBlockProp(t, block)
}

func TestGRUProp(t *testing.T) {
	block := NewGRU(anyvec32.CurrentCreator(), 2, 3)
	if len(block.Parameters()) != 10 {
		t.Errorf("expected 10 parameters, but got %d", len(block.Parameters()))
	}
	testBlockProp(t, block)
}

func TestStackProp(t *testing.T) {
	c := anyvec32.CurrentCreator()
	block := Stack{
		NewGRU(c, 2, 3),
		NewLSTM(c, 3, 2),
	}
	testBlockProp(t, block)
}

func TestBidirProp(t *testing.T) {
	c := anyvec32.CurrentCreator()
	b := &Bidir{
		Forward:  NewGRU(c, 2, 3),
		Backward: NewGRU(c, 2, 3),
		Mixer:    &hierrnn.ConcatMixer{},
	}
	inVars, seq := testSeq()
	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return b.Apply(seq)
		},
		V: append(inVars, b.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestGRUConvexCombination(t *testing.T) {
	// With zero'd weights, both gates are 1/2 and the
	// candidate is 0, so one step from a start state s
	// gives s/2.
	c := anyvec32.CurrentCreator()
	block := NewGRUZero(c, 2, 3)
	start := []float32{1, -2, 4}
	block.StartState.Vector.SetData(start)

	state := block.Start(1)
	res := block.Step(state, c.MakeVectorData(c.MakeNumericList([]float64{0, 0})))
	out := res.Output().Data().([]float32)
	for i, x := range start {
		expected := x / 2
		if diff := out[i] - expected; diff > 1e-4 || diff < -1e-4 {
			t.Errorf("output %d: expected %f but got %f", i, expected, out[i])
		}
	}
}

func testBlockProp(t *testing.T, block Block) {
	inVars, seq := testSeq()
	var params []*anydiff.Var
	if p, ok := block.(interface {
		Parameters() []*anydiff.Var
	}); ok {
		params = p.Parameters()
	}
	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return Map(seq, block)
		},
		V: append(inVars, params...),
	}
	checker.FullCheck(t)
}

func testSeq() ([]*anydiff.Var, anyseq.Seq) {
	inVars := []*anydiff.Var{
		anydiff.NewVar(anyvec32.MakeVectorData([]float32{
			1.000009682963246, 0.887353762043918,
			1.390648176281434, -0.709610839726816,
		})),
		anydiff.NewVar(anyvec32.MakeVectorData([]float32{
			1.46841279925354, -1.6971931951273,
		})),
		anydiff.NewVar(anyvec32.MakeVectorData([]float32{
			-1.567780854880226, 0.639114679829077,
		})),
	}
	seq := anyseq.ResSeq(anyvec32.CurrentCreator(), []*anyseq.ResBatch{
		{
			Packed:  inVars[0],
			Present: []bool{true, true, false},
		},
		{
			Packed:  inVars[1],
			Present: []bool{false, true, false},
		},
		{
			Packed:  inVars[2],
			Present: []bool{false, true, false},
		},
	})
	return inVars, seq
}
