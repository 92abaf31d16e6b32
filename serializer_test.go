package hierrnn

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/serializer"
)

func TestActivationSerialize(t *testing.T) {
	a1 := Tanh
	a2 := LogSoftmax
	a3 := Sigmoid
	a4 := ReLU
	data, err := serializer.SerializeAny(a1, a2, a3, a4)
	if err != nil {
		t.Fatal(err)
	}
	var newA1, newA2, newA3, newA4 Activation
	err = serializer.DeserializeAny(data, &newA1, &newA2, &newA3, &newA4)
	if err != nil {
		t.Fatal(err)
	}
	for i, pair := range [][2]Activation{{a1, newA1}, {a2, newA2}, {a3, newA3}, {a4, newA4}} {
		if pair[0] != pair[1] {
			t.Errorf("activation %d changed", i)
		}
	}
}

func TestFCSerialize(t *testing.T) {
	fc := NewFC(anyvec32.DefaultCreator{}, 7, 5)
	data, err := serializer.SerializeAny(fc)
	if err != nil {
		t.Fatal(err)
	}
	var newFC *FC
	if err := serializer.DeserializeAny(data, &newFC); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(fc, newFC) {
		t.Fatal("incorrect result")
	}
}

func TestDropoutSerialize(t *testing.T) {
	do := &Dropout{Enabled: true, KeepProb: 0.335}
	data, err := serializer.SerializeAny(do)
	if err != nil {
		t.Fatal(err)
	}
	var do1 *Dropout
	if err := serializer.DeserializeAny(data, &do1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(do, do1) {
		t.Fatal("incorrect result")
	}
}

func TestNetSerialize(t *testing.T) {
	net := Net{NewFC(anyvec32.DefaultCreator{}, 3, 2), Tanh, LogSoftmax}
	data, err := serializer.SerializeAny(net)
	if err != nil {
		t.Fatal(err)
	}
	var net1 Net
	if err := serializer.DeserializeAny(data, &net1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(net, net1) {
		t.Fatal("networks not equal")
	}
}

func TestEmbeddingSerialize(t *testing.T) {
	emb := NewEmbeddingPretrained(anyvec32.DefaultCreator{}, [][]float64{
		{1, 2, 3},
		{-1, 0.5, 2},
	}, false)
	data, err := serializer.SerializeAny(emb)
	if err != nil {
		t.Fatal(err)
	}
	var emb1 *Embedding
	if err := serializer.DeserializeAny(data, &emb1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(emb, emb1) {
		t.Fatal("incorrect result")
	}
}
