// Package hierrnn provides the neural primitives shared
// by the hierarchical utterance classifier: feed-forward
// layers, activations, dropout, embedding tables, and
// cost functions.
package hierrnn

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var n Net
	serializer.RegisterTypedDeserializer(n.SerializerType(), DeserializeNet)
}

// A Parameterizer is anything with learnable variables.
//
// The parameters of a Parameterizer must be in the same
// order every time Parameters() is called.
type Parameterizer interface {
	Parameters() []*anydiff.Var
}

// A Layer is a composable, batched computation unit.
//
// The input to Apply packs batchSize equally-long vectors
// into a single vector, so the input's length must be
// divisible by the batch size.
type Layer interface {
	Apply(in anydiff.Res, batchSize int) anydiff.Res
}

// A Net applies a list of layers, one after another.
type Net []Layer

// DeserializeNet attempts to deserialize the network.
func DeserializeNet(d []byte) (Net, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Net", err)
	}
	res := make(Net, len(slice))
	for i, x := range slice {
		if layer, ok := x.(Layer); ok {
			res[i] = layer
		} else {
			return nil, fmt.Errorf("deserialize Net: not a Layer: %T", x)
		}
	}
	return res, nil
}

// Apply applies every layer in order.
// An empty Net returns its input unchanged.
func (n Net) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	for _, l := range n {
		in = l.Apply(in, batchSize)
	}
	return in
}

// Parameters returns the parameters of every layer that
// implements Parameterizer, ordered from the first layer
// onwards.
func (n Net) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, l := range n {
		if p, ok := l.(Parameterizer); ok {
			res = append(res, p.Parameters()...)
		}
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a Net with the serializer package.
func (n Net) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn.Net"
}

// Serialize serializes the Net, provided that every layer
// is a serializer.Serializer.
func (n Net) Serialize() ([]byte, error) {
	var sers []serializer.Serializer
	for _, l := range n {
		if s, ok := l.(serializer.Serializer); ok {
			sers = append(sers, s)
		} else {
			return nil, fmt.Errorf("serialize Net: not a Serializer: %T", l)
		}
	}
	return serializer.SerializeSlice(sers)
}

// AllParameters collects the parameters of every argument
// that implements Parameterizer.
func AllParameters(objs ...interface{}) []*anydiff.Var {
	var res []*anydiff.Var
	for _, o := range objs {
		if p, ok := o.(Parameterizer); ok {
			res = append(res, p.Parameters()...)
		}
	}
	return res
}
