package model

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec/anyvec64"
)

func testCNNConfig() *Config {
	return &Config{
		Arch:       ArchCNN,
		NumClasses: 4,

		VocabSize:      10,
		EmbeddingSize:  4,
		TrainEmbedding: true,

		FilterWidths:  []int{2, 3},
		NumFilters:    3,
		Stride:        1,
		Padding:       "same",
		CNNPool:       true,
		CNNActivation: "relu",

		SessUnits:     []int{5},
		SessCell:      CellLSTM,
		SessDirection: DirectionUni,
	}
}

func testFFNConfig() *Config {
	return &Config{
		Arch:       ArchFFN,
		NumClasses: 4,

		FeatureSize:    3,
		UttrUnits:      []int{5},
		FFNActivations: []string{"tanh"},

		SessUnits:      []int{5},
		SessCell:       CellVanilla,
		SessDirection:  DirectionUni,
		SessActivation: "tanh",
	}
}

func testFeatureSamples() SampleList {
	return SampleList{
		{
			Features: [][]float64{{1, -1, 0.5}, {0, 2, -0.5}},
			Labels:   []int{0, 1},
		},
		{
			Features: [][]float64{{-1, 0, 1}},
			Labels:   []int{3},
		},
	}
}

func TestCNNModel(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	m, err := New(c, testCNNConfig(), ModeEval, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Uttr.OutSize() != 6 {
		t.Errorf("encoder output size is %d, want 6", m.Uttr.OutSize())
	}
	b := testModelBatch(t)

	enc := m.Uttr.Encode(b)
	expectedLen := b.Size() * b.MaxSession() * m.Uttr.OutSize()
	if enc.Output().Len() != expectedLen {
		t.Errorf("encoding length is %d, want %d", enc.Output().Len(), expectedLen)
	}

	cost := vecFloats(m.Cost(b).Output())[0]
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		t.Errorf("cost is not finite: %f", cost)
	}

	dec := m.Decode(b)
	for i, labels := range dec {
		if len(labels) != b.SessLens[i] {
			t.Errorf("session %d: %d labels, want %d", i, len(labels), b.SessLens[i])
		}
	}
}

func TestCNNModelProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	conf := testCNNConfig()
	conf.NumFilters = 2
	conf.FilterWidths = []int{2}
	conf.EmbeddingSize = 3
	conf.VocabSize = 8
	conf.SessUnits = []int{3}
	m, err := New(c, conf, ModeEval, nil)
	if err != nil {
		t.Fatal(err)
	}
	b := testModelBatch(t)
	ch := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return m.Cost(b)
		},
		V: m.Parameters(),
	}
	ch.FullCheck(t)
}

func TestCNNModelFlatten(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	conf := testCNNConfig()
	conf.CNNPool = false
	conf.UttrMaxLen = 4
	m, err := New(c, conf, ModeEval, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Same padding keeps the time dimension, so each of
	// the two filter banks emits 4*3 values.
	if m.Uttr.OutSize() != 24 {
		t.Errorf("encoder output size is %d, want 24", m.Uttr.OutSize())
	}
	b := testModelBatch(t)
	cost := vecFloats(m.Cost(b).Output())[0]
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		t.Errorf("cost is not finite: %f", cost)
	}
}

func TestFFNModel(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	m, err := New(c, testFFNConfig(), ModeEval, nil)
	if err != nil {
		t.Fatal(err)
	}
	samples := testFeatureSamples()
	b, err := NewBatch(samples)
	if err != nil {
		t.Fatal(err)
	}

	cost := vecFloats(m.Cost(b).Output())[0]
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		t.Errorf("cost is not finite: %f", cost)
	}
	dec := m.Decode(b)
	if len(dec[0]) != 2 || len(dec[1]) != 1 {
		t.Errorf("unexpected decode shape: %v", dec)
	}

	ch := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return m.Cost(b)
		},
		V: m.Parameters(),
	}
	ch.FullCheck(t)
}
