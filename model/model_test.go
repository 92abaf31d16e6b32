package model

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec/anyvec64"
)

func testModelConfig(chain bool) *Config {
	return &Config{
		Arch:       ArchRNN,
		Chain:      chain,
		NumClasses: 4,

		VocabSize:      10,
		EmbeddingSize:  6,
		TrainEmbedding: true,

		UttrUnits:     []int{8},
		UttrCell:      CellGRU,
		UttrDirection: DirectionUni,
		UttrPooling:   PoolLast,

		SessUnits:     []int{8},
		SessCell:      CellGRU,
		SessDirection: DirectionUni,
	}
}

func testModelSamples() SampleList {
	return SampleList{
		{Tokens: [][]int{{1, 2, 3}, {4, 5}}, Labels: []int{0, 1}},
		{Tokens: [][]int{{2}, {3, 4}, {5, 6, 7}}, Labels: []int{1, 2, 3}},
	}
}

func testModelBatch(t *testing.T) *Batch {
	t.Helper()
	b, err := NewBatch(testModelSamples())
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// TestCostMaskedAverage verifies that the independent
// softmax loss averages over exactly the real utterance
// positions.
func TestCostMaskedAverage(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	m, err := New(c, testModelConfig(false), ModeEval, nil)
	if err != nil {
		t.Fatal(err)
	}
	b := testModelBatch(t)

	cost := vecFloats(m.Cost(b).Output())[0]

	var total float64
	var count int
	for i, seq := range anyseq.SeparateSeqs(m.Apply(b).Output()) {
		for pos, vec := range seq {
			scores := vecFloats(vec)
			logSum := math.Inf(-1)
			for _, x := range scores {
				logSum = addLogs(logSum, x)
			}
			total += logSum - scores[b.Targets[i][pos]]
			count++
		}
	}
	if count != 5 {
		t.Fatalf("expected 5 scored positions but got %d", count)
	}
	if math.Abs(cost-total/5) > 1e-6 {
		t.Errorf("expected cost %f but got %f", total/5, cost)
	}
}

// TestZeroLengthSession verifies that an empty session is
// neutral: no panic, no loss contribution, and an empty
// decoded label list.
func TestZeroLengthSession(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	for _, chain := range []bool{false, true} {
		m, err := New(c, testModelConfig(chain), ModeEval, nil)
		if err != nil {
			t.Fatal(err)
		}
		full := SampleList{
			{Tokens: [][]int{{1, 2}, {3}}, Labels: []int{0, 1}},
			{Tokens: [][]int{}, Labels: []int{}},
		}
		withEmpty, err := NewBatch(full)
		if err != nil {
			t.Fatal(err)
		}
		withoutEmpty, err := NewBatch(full[:1])
		if err != nil {
			t.Fatal(err)
		}

		cost1 := vecFloats(m.Cost(withEmpty).Output())[0]
		cost2 := vecFloats(m.Cost(withoutEmpty).Output())[0]
		if math.IsNaN(cost1) || math.IsInf(cost1, 0) {
			t.Errorf("chain=%v: cost is not finite: %f", chain, cost1)
		}
		if !chain && math.Abs(cost1-cost2) > 1e-6 {
			t.Errorf("chain=%v: empty session changed the cost: %f vs %f",
				chain, cost1, cost2)
		}

		dec := m.Decode(withEmpty)
		if len(dec) != 2 || len(dec[0]) != 2 || len(dec[1]) != 0 {
			t.Errorf("chain=%v: unexpected decode shape: %v", chain, dec)
		}
	}
}

// TestPaddingContentInvariance verifies that token slots
// past the declared lengths never affect the loss.
func TestPaddingContentInvariance(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	m, err := New(c, testModelConfig(false), ModeEval, nil)
	if err != nil {
		t.Fatal(err)
	}
	b1 := testModelBatch(t)
	b2 := testModelBatch(t)
	b2.Tokens[0][1] = append(append([]int{}, b2.Tokens[0][1]...), 9, 9)
	b2.Tokens[1][0] = append(append([]int{}, b2.Tokens[1][0]...), 8)

	cost1 := vecFloats(m.Cost(b1).Output())[0]
	cost2 := vecFloats(m.Cost(b2).Output())[0]
	if math.Abs(cost1-cost2) > 1e-8 {
		t.Errorf("padding content changed the cost: %f vs %f", cost1, cost2)
	}
}

func TestRecurrentNetWidths(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	_, uniWidth, err := newRecurrentNet(c, 4, []int{8}, CellGRU, DirectionUni,
		"", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	_, biWidth, err := newRecurrentNet(c, 4, []int{8}, CellGRU, DirectionBi,
		"", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if uniWidth != 8 {
		t.Errorf("unidirectional width is %d, want 8", uniWidth)
	}
	if biWidth != 16 {
		t.Errorf("bidirectional width is %d, want 16", biWidth)
	}

	conf := testModelConfig(false)
	conf.UttrDirection = DirectionBi
	m, err := New(c, conf, ModeEval, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Uttr.OutSize() != 16 {
		t.Errorf("encoder output size is %d, want 16", m.Uttr.OutSize())
	}
}

func TestProbabilities(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	m, err := New(c, testModelConfig(false), ModeEval, nil)
	if err != nil {
		t.Fatal(err)
	}
	b := testModelBatch(t)
	probs := m.Probabilities(b)
	if len(probs) != 2 {
		t.Fatalf("expected 2 sessions but got %d", len(probs))
	}
	for i, sess := range probs {
		if len(sess) != b.SessLens[i] {
			t.Errorf("session %d: %d rows, want %d", i, len(sess), b.SessLens[i])
		}
		for _, dist := range sess {
			if len(dist) != 4 {
				t.Fatalf("distribution over %d classes, want 4", len(dist))
			}
			sum := 0.0
			for _, p := range dist {
				sum += p
			}
			if math.Abs(sum-1) > 1e-6 {
				t.Errorf("distribution sums to %f", sum)
			}
		}
	}

	chainModel, err := New(c, testModelConfig(true), ModeEval, nil)
	if err != nil {
		t.Fatal(err)
	}
	if chainModel.Probabilities(b) != nil {
		t.Error("chain outputs should not define probabilities")
	}
}

func TestDecodeLengths(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	for _, chain := range []bool{false, true} {
		m, err := New(c, testModelConfig(chain), ModeEval, nil)
		if err != nil {
			t.Fatal(err)
		}
		b := testModelBatch(t)
		dec := m.Decode(b)
		if len(dec) != b.Size() {
			t.Fatalf("chain=%v: %d label rows, want %d", chain, len(dec), b.Size())
		}
		for i, labels := range dec {
			if len(labels) != b.SessLens[i] {
				t.Errorf("chain=%v: session %d: %d labels, want %d",
					chain, i, len(labels), b.SessLens[i])
			}
			for _, l := range labels {
				if l < 0 || l >= 4 {
					t.Errorf("chain=%v: label %d out of range", chain, l)
				}
			}
		}
	}
}

func TestCostProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	for _, chain := range []bool{false, true} {
		conf := testModelConfig(chain)
		conf.UttrUnits = []int{4}
		conf.SessUnits = []int{4}
		conf.EmbeddingSize = 3
		conf.VocabSize = 8
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
}

func TestConnectInputs(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	conf := testModelConfig(false)
	conf.ConnectInputs = true
	m, err := New(c, conf, ModeEval, nil)
	if err != nil {
		t.Fatal(err)
	}
	b := testModelBatch(t)
	cost := vecFloats(m.Cost(b).Output())[0]
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		t.Errorf("cost is not finite: %f", cost)
	}

	ch := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return m.Cost(b)
		},
		V: m.Parameters(),
	}
	ch.FullCheck(t)
}
