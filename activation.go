package hierrnn

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Activation
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeActivation)
}

// An Activation is a standard activation function.
type Activation int

// These are the supported activation functions.
const (
	Tanh Activation = iota
	LogSoftmax
	Sigmoid
	ReLU
)

// ActivationByName looks up an activation by the name
// used in configuration files ("tanh", "sigmoid" or
// "relu").
func ActivationByName(name string) (Activation, error) {
	switch name {
	case "tanh":
		return Tanh, nil
	case "sigmoid":
		return Sigmoid, nil
	case "relu":
		return ReLU, nil
	default:
		return 0, fmt.Errorf("unknown activation: %s", name)
	}
}

// DeserializeActivation deserializes an Activation.
func DeserializeActivation(d []byte) (Activation, error) {
	if len(d) != 1 {
		return 0, fmt.Errorf("deserialize Activation: data length (%d) should be 1", len(d))
	}
	a := Activation(d[0])
	if a > ReLU {
		return 0, fmt.Errorf("deserialize Activation: unknown activation ID: %d", a)
	}
	return a, nil
}

// Apply applies the activation function.
func (a Activation) Apply(in anydiff.Res, n int) anydiff.Res {
	switch a {
	case Tanh:
		return anydiff.Tanh(in)
	case LogSoftmax:
		inLen := in.Output().Len()
		if inLen%n != 0 {
			panic("batch size must divide input length")
		}
		return anydiff.LogSoftmax(in, inLen/n)
	case Sigmoid:
		return anydiff.Sigmoid(in)
	case ReLU:
		return anydiff.ClipPos(in)
	default:
		panic(fmt.Sprintf("unknown activation: %d", a))
	}
}

// SerializerType returns the unique ID used to serialize
// an Activation with the serializer package.
func (a Activation) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn.Activation"
}

// Serialize serializes the Activation.
func (a Activation) Serialize() ([]byte, error) {
	return []byte{byte(a)}, nil
}
