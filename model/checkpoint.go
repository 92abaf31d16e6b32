package model

import (
	"encoding/json"
	"errors"

	hierrnn "github.com/efikarra/hierarchical-rnn"
	"github.com/efikarra/hierarchical-rnn/rnn"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var m Model
	serializer.RegisterTypedDeserializer(m.SerializerType(), DeserializeModel)
}

// DeserializeModel deserializes a Model.
//
// Dropout layers come back inert; SetMode re-enables them
// for training.
func DeserializeModel(d []byte) (*Model, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Model", err)
	}
	if len(slice) != 4 {
		return nil, errors.New("deserialize Model: incorrect component count")
	}
	confData, ok1 := slice[0].(serializer.Bytes)
	uttr, ok2 := slice[1].(UttrEncoder)
	sess, ok3 := slice[2].(RecurrentNet)
	out, ok4 := slice[3].(OutputStrategy)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, errors.New("deserialize Model: incorrect component types")
	}
	var conf Config
	if err := json.Unmarshal(confData, &conf); err != nil {
		return nil, essentials.AddCtx("deserialize Model", err)
	}
	res := &Model{Config: &conf, Uttr: uttr, Sess: sess, Out: out}
	res.SetMode(ModeEval)
	return res, nil
}

// SetMode switches the model between training and
// evaluation behavior.
func (m *Model) SetMode(mode Mode) {
	train := mode == ModeTrain
	switch uttr := m.Uttr.(type) {
	case *RNNEncoder:
		setNetMode(uttr.Net, train)
	case *FFNEncoder:
		for _, l := range uttr.Net {
			if d, ok := l.(*hierrnn.Dropout); ok {
				d.Enabled = train && d.KeepProb < 1
			}
		}
	}
	setNetMode(m.Sess, train)
}

func setNetMode(net RecurrentNet, train bool) {
	for _, b := range net {
		lb, ok := b.(*rnn.LayerBlock)
		if !ok {
			continue
		}
		if d, ok := lb.Layer.(*hierrnn.Dropout); ok {
			d.Enabled = train && d.KeepProb < 1
		}
	}
}

// SerializerType returns the unique ID used to serialize
// a Model with the serializer package.
func (m *Model) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/model.Model"
}

// Serialize serializes the Model along with its
// configuration.
func (m *Model) Serialize() ([]byte, error) {
	confData, err := json.Marshal(m.Config)
	if err != nil {
		return nil, essentials.AddCtx("serialize Model", err)
	}
	uttr, ok1 := m.Uttr.(serializer.Serializer)
	out, ok2 := m.Out.(serializer.Serializer)
	if !ok1 || !ok2 {
		return nil, errors.New("serialize Model: component is not a Serializer")
	}
	return serializer.SerializeSlice([]serializer.Serializer{
		serializer.Bytes(confData), uttr, m.Sess, out,
	})
}

// SaveModel writes the model to a file.
func SaveModel(path string, m *Model) error {
	if err := serializer.SaveAny(path, m); err != nil {
		return essentials.AddCtx("save model", err)
	}
	return nil
}

// LoadModel reads a model from a file and puts it in the
// given mode.
func LoadModel(path string, mode Mode) (*Model, error) {
	var m *Model
	if err := serializer.LoadAny(path, &m); err != nil {
		return nil, essentials.AddCtx("load model", err)
	}
	m.SetMode(mode)
	return m, nil
}
