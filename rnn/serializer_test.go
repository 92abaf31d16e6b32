package rnn

import (
	"reflect"
	"testing"

	hierrnn "github.com/efikarra/hierarchical-rnn"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/serializer"
)

func TestBlockSerialize(t *testing.T) {
	c := anyvec32.CurrentCreator()
	objs := map[string]serializer.Serializer{
		"Vanilla": NewVanilla(c, 3, 2, hierrnn.Tanh),
		"LSTM":    NewLSTM(c, 3, 2),
		"GRU":     NewGRU(c, 3, 2),
		"Bidir": &Bidir{
			Forward:  NewGRU(c, 3, 2),
			Backward: NewGRU(c, 3, 2),
			Mixer:    &hierrnn.ConcatMixer{},
		},
		"LayerBlock":       &LayerBlock{Layer: hierrnn.NewFC(c, 3, 2)},
		"AttentionPool":    NewAttentionPool(c, 3),
		"ContextAttention": NewContextAttentionPool(c, 3, 2),
		"LastPool":         &LastPool{},
		"MeanPool":         &MeanPool{},
	}
	for name, obj := range objs {
		t.Run(name, func(t *testing.T) {
			data, err := serializer.SerializeAny(obj)
			if err != nil {
				t.Fatal(err)
			}
			var newObj serializer.Serializer
			if err := serializer.DeserializeAny(data, &newObj); err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(obj, newObj) {
				t.Errorf("expected %v but got %v", obj, newObj)
			}
		})
	}
}
