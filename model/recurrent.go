package model

import (
	"fmt"

	hierrnn "github.com/efikarra/hierarchical-rnn"
	"github.com/efikarra/hierarchical-rnn/rnn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var r RecurrentNet
	serializer.RegisterTypedDeserializer(r.SerializerType(), DeserializeRecurrentNet)
}

// A RecurrentNet applies recurrent layers to a sequence
// batch in order.
//
// Layers are either rnn.Block values, mapped over the
// sequence, or *rnn.Bidir values, applied in both
// directions.
type RecurrentNet []interface{}

// DeserializeRecurrentNet deserializes a RecurrentNet.
func DeserializeRecurrentNet(d []byte) (RecurrentNet, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize RecurrentNet", err)
	}
	res := make(RecurrentNet, len(slice))
	for i, x := range slice {
		switch x.(type) {
		case rnn.Block, *rnn.Bidir:
			res[i] = x
		default:
			return nil, fmt.Errorf("deserialize RecurrentNet: not a recurrent layer: %T", x)
		}
	}
	return res, nil
}

// Apply runs the layers over the sequence batch.
func (r RecurrentNet) Apply(seq anyseq.Seq) anyseq.Seq {
	for _, layer := range r {
		switch layer := layer.(type) {
		case *rnn.Bidir:
			seq = layer.Apply(seq)
		case rnn.Block:
			seq = rnn.Map(seq, layer)
		default:
			panic(fmt.Sprintf("not a recurrent layer: %T", layer))
		}
	}
	return seq
}

// Parameters returns the parameters of every layer that
// implements hierrnn.Parameterizer.
func (r RecurrentNet) Parameters() []*anydiff.Var {
	return hierrnn.AllParameters(r...)
}

// SerializerType returns the unique ID used to serialize
// a RecurrentNet with the serializer package.
func (r RecurrentNet) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/model.RecurrentNet"
}

// Serialize serializes the RecurrentNet.
func (r RecurrentNet) Serialize() ([]byte, error) {
	var slice []serializer.Serializer
	for _, layer := range r {
		s, ok := layer.(serializer.Serializer)
		if !ok {
			return nil, fmt.Errorf("not a serializer: %T", layer)
		}
		slice = append(slice, s)
	}
	return serializer.SerializeSlice(slice)
}

// newRecurrentNet builds uni- or bidirectional recurrent
// layers with per-layer output dropout.
//
// It returns the net and its output width per timestep.
func newRecurrentNet(cr anyvec.Creator, inSize int, units []int, cell, direction,
	activation string, dropout []float64, train bool) (RecurrentNet, int, error) {
	var net RecurrentNet
	width := inSize
	for i, out := range units {
		switch direction {
		case DirectionUni:
			block, err := newCell(cr, cell, width, out, activation)
			if err != nil {
				return nil, 0, err
			}
			net = append(net, block)
			width = out
		case DirectionBi:
			forward, err := newCell(cr, cell, width, out, activation)
			if err != nil {
				return nil, 0, err
			}
			backward, err := newCell(cr, cell, width, out, activation)
			if err != nil {
				return nil, 0, err
			}
			net = append(net, &rnn.Bidir{
				Forward:  forward,
				Backward: backward,
				Mixer:    &hierrnn.ConcatMixer{},
			})
			width = 2 * out
		default:
			return nil, 0, fmt.Errorf("unknown direction: %s", direction)
		}

		keep := 1.0
		if i < len(dropout) {
			keep = dropout[i]
		}
		net = append(net, &rnn.LayerBlock{
			Layer: &hierrnn.Dropout{Enabled: train && keep < 1, KeepProb: keep},
		})
	}
	return net, width, nil
}

func newCell(cr anyvec.Creator, cell string, in, out int,
	activation string) (rnn.Block, error) {
	switch cell {
	case CellVanilla:
		act, err := layerByName(activation)
		if err != nil {
			return nil, err
		}
		return rnn.NewVanilla(cr, in, out, act), nil
	case CellLSTM:
		return rnn.NewLSTM(cr, in, out), nil
	case CellGRU:
		return rnn.NewGRU(cr, in, out), nil
	}
	return nil, fmt.Errorf("unknown cell type: %s", cell)
}
