// Package chain implements globally-normalized
// linear-chain sequence labeling on top of per-timestep
// class scores.
//
// A Chain owns a learned transition matrix.
// The joint score of a labeling is the sum of the
// per-timestep scores for the chosen classes plus the
// transition scores between consecutive choices.
// Likelihoods are normalized over all possible labelings
// via the forward algorithm in the log domain.
package chain

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var c Chain
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeChain)
}

// Chain scores label sequences with a transition matrix.
//
// Transitions has NumClasses*NumClasses components; the
// component at row i, column j is the score for moving
// from class i to class j.
type Chain struct {
	NumClasses  int
	Transitions *anydiff.Var
}

// DeserializeChain deserializes a Chain.
func DeserializeChain(d []byte) (*Chain, error) {
	var numClasses serializer.Int
	var trans *anyvecsave.S
	if err := serializer.DeserializeAny(d, &numClasses, &trans); err != nil {
		return nil, essentials.AddCtx("deserialize Chain", err)
	}
	return &Chain{
		NumClasses:  int(numClasses),
		Transitions: anydiff.NewVar(trans.Vector),
	}, nil
}

// NewChain creates a Chain with zero transition scores.
func NewChain(c anyvec.Creator, numClasses int) *Chain {
	return &Chain{
		NumClasses:  numClasses,
		Transitions: anydiff.NewVar(c.MakeVector(numClasses * numClasses)),
	}
}

// Parameters returns the transition matrix.
func (c *Chain) Parameters() []*anydiff.Var {
	return []*anydiff.Var{c.Transitions}
}

// SerializerType returns the unique ID used to serialize
// a Chain with the serializer package.
func (c *Chain) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/chain.Chain"
}

// Serialize serializes the Chain.
func (c *Chain) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(c.NumClasses),
		&anyvecsave.S{Vector: c.Transitions.Vector},
	)
}
