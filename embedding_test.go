package hierrnn

import (
	"math"
	"testing"

	"github.com/unixpickle/anyvec/anyvec32"
)

func TestEmbeddingLookup(t *testing.T) {
	emb := NewEmbeddingPretrained(anyvec32.DefaultCreator{}, [][]float64{
		{1, 2},
		{3, 4},
		{5, 6},
	}, true)
	out := emb.Embed([]int{2, 0, 2}).Output().Data().([]float32)
	expected := []float32{5, 6, 1, 2, 5, 6}
	if len(out) != len(expected) {
		t.Fatalf("expected %d values but got %d", len(expected), len(out))
	}
	for i, x := range expected {
		if math.Abs(float64(out[i]-x)) > 1e-4 {
			t.Errorf("value %d: expected %f but got %f", i, x, out[i])
		}
	}
}

func TestEmbeddingFrozen(t *testing.T) {
	emb := NewEmbedding(anyvec32.DefaultCreator{}, 10, 4)
	if len(emb.Parameters()) != 1 {
		t.Errorf("expected 1 parameter, but got %d", len(emb.Parameters()))
	}
	emb.Trainable = false
	if len(emb.Parameters()) != 0 {
		t.Errorf("expected 0 parameters, but got %d", len(emb.Parameters()))
	}
}
