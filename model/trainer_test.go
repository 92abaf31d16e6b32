package model

import (
	"testing"

	"github.com/unixpickle/anyvec/anyvec64"
)

func TestTrainerGradient(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	m, err := New(c, testModelConfig(false), ModeTrain, nil)
	if err != nil {
		t.Fatal(err)
	}
	tr := &Trainer{Model: m, Params: m.Parameters()}

	batch, err := tr.Fetch(testModelSamples())
	if err != nil {
		t.Fatal(err)
	}
	grad := tr.Gradient(batch)
	if tr.LastCost == nil {
		t.Error("LastCost was not set")
	}
	if len(grad) != len(tr.Params) {
		t.Fatalf("gradient has %d entries, want %d", len(grad), len(tr.Params))
	}
	var nonZero bool
	for _, vec := range grad {
		for _, x := range vec.Data().([]float64) {
			if x != 0 {
				nonZero = true
			}
		}
	}
	if !nonZero {
		t.Error("gradient is all zeros")
	}
}

func TestTrainerFetchNoLabels(t *testing.T) {
	tr := &Trainer{}
	samples := SampleList{{Tokens: [][]int{{1}}}}
	if _, err := tr.Fetch(samples); err == nil {
		t.Error("expected an error for unlabeled samples")
	}
}

func TestAccuracy(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	m, err := New(c, testModelConfig(false), ModeEval, nil)
	if err != nil {
		t.Fatal(err)
	}
	samples := testModelSamples()
	b, err := NewBatch(samples)
	if err != nil {
		t.Fatal(err)
	}

	// Relabel the samples with the model's own decisions.
	perfect := make(SampleList, len(samples))
	for i, labels := range m.Decode(b) {
		perfect[i] = Sample{Tokens: samples[i].Tokens, Labels: labels}
	}
	acc, err := Accuracy(m, perfect, 1)
	if err != nil {
		t.Fatal(err)
	}
	if acc != 1 {
		t.Errorf("accuracy is %f, want 1", acc)
	}

	// Relabel them with guaranteed-wrong labels.
	wrong := make(SampleList, len(samples))
	for i, labels := range m.Decode(b) {
		flipped := make([]int, len(labels))
		for j, l := range labels {
			flipped[j] = (l + 1) % 4
		}
		wrong[i] = Sample{Tokens: samples[i].Tokens, Labels: flipped}
	}
	acc, err = Accuracy(m, wrong, 0)
	if err != nil {
		t.Fatal(err)
	}
	if acc != 0 {
		t.Errorf("accuracy is %f, want 0", acc)
	}
}
