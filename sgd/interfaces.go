package sgd

import "github.com/unixpickle/anydiff"

// A Transformer transforms gradients.
//
// After its first call, a Transformer expects to see
// gradients of the same form (i.e. containing the same
// variables).
//
// A Transformer may modify its own input and return the
// same gradient as an output.
// However, a Transformer should not modify its input
// after Transform returns, and should not retain a
// reference to the input.
//
// A Transformer's output is only guaranteed to be valid
// until the next time Transform is called.
type Transformer interface {
	Transform(g anydiff.Grad) anydiff.Grad
}

// A Batch is an immutable, evaluated set of samples.
//
// Batches are obtained using a Fetcher and then used as
// arguments to a Gradienter.
type Batch interface{}

// A Fetcher turns sample lists into Batches.
type Fetcher interface {
	Fetch(s SampleList) (Batch, error)
}

// A Gradienter computes a gradient for a Batch.
//
// The same gradient instance may be re-used by successive
// calls to Gradient.
type Gradienter interface {
	Gradient(b Batch) anydiff.Grad
}

// A Rater determines the learning rate given the epoch
// number.
// An "epoch" is a full pass over the training set, so
// fractional epochs are possible.
type Rater interface {
	Rate(epoch float64) float64
}

// A SampleList represents a list of training samples.
type SampleList interface {
	// Len returns the number of samples.
	Len() int

	// Swap swaps two samples.
	Swap(i, j int)

	// Slice generates a shallow copy of a subset of the
	// list.
	Slice(i, j int) SampleList
}

// PostShuffler is used to notify a SampleList that it has
// been shuffled, allowing it to perform any sample
// re-ordering it likes.
type PostShuffler interface {
	PostShuffle()
}
