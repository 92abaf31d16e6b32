// Package rnn implements the recurrent machinery used by
// both levels of the hierarchical classifier: recurrent
// cells, stacks, bidirectional wrappers, and policies for
// pooling a variable-length sequence of hidden states
// into one vector.
package rnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A PresentMap indicates which sequences in a batch are
// present in a State.
// A true value indicates present.
type PresentMap []bool

// NumPresent counts the present sequences.
func (p PresentMap) NumPresent() int {
	var n int
	for _, x := range p {
		if x {
			n++
		}
	}
	return n
}

// A State stores a batch of internal Block states.
//
// Sequences in a batch may have different lengths, so a
// State tracks which sequences are still present.
// A present sequence has not yet terminated; an absent
// one has already ended and needs no state.
type State interface {
	// Present provides information about which sequences
	// have states in the batch.
	Present() PresentMap

	// Reduce creates a copy of the State with a new
	// PresentMap, dropping the states of sequences which
	// have ended.
	//
	// The PresentMap must be a subset of Present().
	Reduce(PresentMap) State
}

// A StateGrad is an upstream gradient for a State, used
// while back-propagating through a Block.
type StateGrad interface {
	// Present provides information about which sequences
	// have upstream gradients in the batch.
	Present() PresentMap

	// Expand inserts zero gradients as necessary so that the
	// result covers the passed PresentMap as well as the
	// current one.
	//
	// Expand is the inverse of State.Reduce().
	Expand(PresentMap) StateGrad
}

// A Block is a differentiable unit in an RNN.
// It receives an input/state batch and produces a batch
// of outputs and new states.
type Block interface {
	// Start produces the start state for a batch of n
	// sequences.
	Start(n int) State

	// PropagateStart back-propagates through the start
	// state.
	// After this is called, s should not be used again.
	PropagateStart(s StateGrad, g anydiff.Grad)

	// Step applies the block for a single timestep.
	Step(s State, in anyvec.Vector) Res
}

// A Res represents the output of a Block for one timestep
// and is used to back-propagate through the Block.
type Res interface {
	// State returns the output state batch.
	State() State

	// Output returns the Block outputs.
	Output() anyvec.Vector

	// Vars returns the variables upon which the output
	// depends, including variables from previous states.
	Vars() anydiff.VarSet

	// Propagate propagates the gradient for one timestep.
	// It takes an upstream vector u for the output, an
	// upstream StateGrad s for the output state, and the
	// gradient to which partials should be added.
	//
	// It returns a downstream vector for the input and a
	// StateGrad for the previous timestep.
	//
	// The upstream state s may be nil, indicating a zero
	// upstream; this is typical for the final timestep.
	//
	// All upstream objects may be modified.
	// The downstream input vector may be modified by the
	// caller, e.g. as scratch space.
	Propagate(u anyvec.Vector, s StateGrad, g anydiff.Grad) (anyvec.Vector, StateGrad)
}
