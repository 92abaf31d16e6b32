package hierrnn

import "github.com/unixpickle/anydiff"

// A Cost measures the error between actual and desired
// network outputs.
//
// Like a Layer, a Cost function is batched: it takes a
// packed batch of desired outputs and actual outputs, and
// produces a batch of costs.
type Cost interface {
	Cost(desired, actual anydiff.Res, n int) anydiff.Res
}

// DotCost computes the cost by taking the dot product of
// the desired and actual outputs, and then negating it.
//
// This is meant to be used with LogSoftmax outputs: the
// dot product of log-probabilities with the desired
// distribution is the (negated) cross-entropy.
type DotCost struct{}

// Cost takes the dot product of each actual output with
// each desired output and negates it.
func (d DotCost) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	comb := anydiff.Mul(desired, actual)
	dots := anydiff.SumCols(&anydiff.Matrix{
		Data: comb,
		Rows: n,
		Cols: comb.Output().Len() / n,
	})
	return anydiff.Scale(dots, dots.Output().Creator().MakeNumeric(-1))
}
