package model

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestModelSaveLoad(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	configs := map[string]*Config{
		"softmax": testModelConfig(false),
		"chain":   testModelConfig(true),
		"cnn":     testCNNConfig(),
	}
	for name, conf := range configs {
		m, err := New(c, conf, ModeEval, nil)
		if err != nil {
			t.Fatalf("%s: %s", name, err)
		}
		path := filepath.Join(t.TempDir(), "model")
		if err := SaveModel(path, m); err != nil {
			t.Fatalf("%s: %s", name, err)
		}
		loaded, err := LoadModel(path, ModeEval)
		if err != nil {
			t.Fatalf("%s: %s", name, err)
		}
		if loaded.Config.Arch != conf.Arch || loaded.Config.Chain != conf.Chain {
			t.Errorf("%s: configuration was not preserved", name)
		}

		b := testModelBatch(t)
		assertSeqsClose(t, name, m.Apply(b), loaded.Apply(b))
	}
}

func TestFFNModelSaveLoad(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	m, err := New(c, testFFNConfig(), ModeEval, nil)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "model")
	if err := SaveModel(path, m); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadModel(path, ModeInfer)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBatch(testFeatureSamples())
	if err != nil {
		t.Fatal(err)
	}
	assertSeqsClose(t, "ffn", m.Apply(b), loaded.Apply(b))
}

func assertSeqsClose(t *testing.T, name string, s1, s2 anyseq.Seq) {
	t.Helper()
	o1 := s1.Output()
	o2 := s2.Output()
	if len(o1) != len(o2) {
		t.Fatalf("%s: %d timesteps but got %d", name, len(o1), len(o2))
	}
	for i, b1 := range o1 {
		b2 := o2[i]
		for j, p := range b1.Present {
			if p != b2.Present[j] {
				t.Fatalf("%s: timestep %d: present maps differ", name, i)
			}
		}
		d1 := vecFloats(b1.Packed)
		d2 := vecFloats(b2.Packed)
		for j, x := range d1 {
			if math.Abs(x-d2[j]) > 1e-6 {
				t.Fatalf("%s: timestep %d: value %d is %f, want %f",
					name, i, j, d2[j], x)
			}
		}
	}
}
