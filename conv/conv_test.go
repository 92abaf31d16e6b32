package conv

import (
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec/anyvec32"
)

func TestConv1DOutput(t *testing.T) {
	c := &Conv1D{
		InDepth:     1,
		FilterCount: 1,
		FilterWidth: 2,
		Stride:      1,
		Padding:     Valid,
		Filters:     anydiff.NewVar(anyvec32.MakeVectorData([]float32{1, -1})),
		Biases:      anydiff.NewVar(anyvec32.MakeVectorData([]float32{0.5})),
	}
	in := anydiff.NewConst(anyvec32.MakeVectorData([]float32{1, 2, 4, 3}))

	actual := c.Apply(in, 4, 1).Output().Data().([]float32)
	expected := []float32{-0.5, -1.5, 1.5}
	assertClose(t, actual, expected)

	c.Padding = Same
	actual = c.Apply(in, 4, 1).Output().Data().([]float32)
	expected = []float32{-0.5, -1.5, 1.5, 3.5}
	assertClose(t, actual, expected)
}

func TestConv1DOutLen(t *testing.T) {
	c := &Conv1D{FilterWidth: 3, Stride: 2, Padding: Valid}
	lens := map[int]int{7: 3, 6: 2, 3: 1, 2: 0}
	for seqLen, expected := range lens {
		if actual := c.OutLen(seqLen); actual != expected {
			t.Errorf("valid length %d: expected %d but got %d", seqLen, expected, actual)
		}
	}
	c.Padding = Same
	lens = map[int]int{7: 4, 6: 3, 3: 2, 1: 1}
	for seqLen, expected := range lens {
		if actual := c.OutLen(seqLen); actual != expected {
			t.Errorf("same length %d: expected %d but got %d", seqLen, expected, actual)
		}
	}
}

func TestConv1DProp(t *testing.T) {
	for _, padding := range []Padding{Valid, Same} {
		c := NewConv1D(anyvec32.CurrentCreator(), 2, 3, 2, 1, padding)
		inVar := anydiff.NewVar(anyvec32.MakeVectorData([]float32{
			1, 2, -1, -3, 0.5, -0.5,
			2, -1, -1.5, 2, 1, 1,
		}))
		checker := &anydifftest.ResChecker{
			F: func() anydiff.Res {
				return c.Apply(inVar, 3, 2)
			},
			V: append([]*anydiff.Var{inVar}, c.Parameters()...),
		}
		checker.FullCheck(t)
	}
}

func TestMaxOverTimeOutput(t *testing.T) {
	in := anydiff.NewConst(anyvec32.MakeVectorData([]float32{
		1, -2, 3, 0, -1, 4,
		5, 1, 2, 2, 0, 3,
	}))
	actual := MaxOverTime(in, 3, 2, 2).Output().Data().([]float32)
	expected := []float32{3, 4, 5, 3}
	assertClose(t, actual, expected)
}

func TestMaxOverTimeProp(t *testing.T) {
	inVar := anydiff.NewVar(anyvec32.MakeVectorData([]float32{
		1, -2, 3, 0, -1, 4,
		5, 1, 2, 2, 0, 3,
	}))
	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return MaxOverTime(inVar, 3, 2, 2)
		},
		V: []*anydiff.Var{inVar},
	}
	checker.FullCheck(t)
}

func TestConv1DSerialize(t *testing.T) {
	c := NewConv1D(anyvec32.CurrentCreator(), 2, 3, 2, 1, Same)
	data, err := c.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	newC, err := DeserializeConv1D(data)
	if err != nil {
		t.Fatal(err)
	}
	if newC.InDepth != c.InDepth || newC.FilterCount != c.FilterCount ||
		newC.FilterWidth != c.FilterWidth || newC.Stride != c.Stride ||
		newC.Padding != c.Padding {
		t.Errorf("expected %v but got %v", c, newC)
	}
}

func assertClose(t *testing.T, actual, expected []float32) {
	if len(actual) != len(expected) {
		t.Fatalf("expected length %d but got %d", len(expected), len(actual))
	}
	for i, x := range expected {
		if diff := actual[i] - x; diff > 1e-3 || diff < -1e-3 {
			t.Errorf("output %d: expected %f but got %f", i, x, actual[i])
			return
		}
	}
}
