// Package sgd provides tools for training models with
// Stochastic Gradient Descent.
package sgd

// SGD performs stochastic gradient descent.
type SGD struct {
	// Fetcher evaluates mini-batches before they are fed
	// to Gradienter.
	Fetcher Fetcher

	// Gradienter computes the untransformed gradient for
	// each mini-batch.
	Gradienter Gradienter

	// Transformer, if non-nil, is used to transform each
	// gradient before the step.
	Transformer Transformer

	// Samples is the list of training samples.
	// It will be shuffled and re-shuffled as needed.
	//
	// The list may not be empty.
	Samples SampleList

	// Rater determines the learning rate for each step.
	Rater Rater

	// StatusFunc, if non-nil, is called before every
	// iteration with the next mini-batch.
	StatusFunc func(batch SampleList)

	// BatchSize is the mini-batch size.
	// If it is 0, the entire sample list is used at every
	// iteration.
	BatchSize int

	// NumProcessed keeps track of the number of samples
	// that have been passed to Gradienter so far.
	// It is used to compute the epoch for Rater.
	// Most of the time, this should be initialized to 0.
	NumProcessed int
}

// Run runs SGD until the stop channel is closed or the
// Fetcher fails.
func (s *SGD) Run(stop <-chan struct{}) error {
	if s.Samples.Len() == 0 {
		panic("cannot run SGD with empty sample list")
	}
	idx := s.Samples.Len()
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if idx >= s.Samples.Len() {
			Shuffle(s.Samples)
			idx = 0
		}
		batchSize := s.batchSize(s.Samples.Len() - idx)
		samples := s.Samples.Slice(idx, idx+batchSize)
		idx += batchSize

		if s.StatusFunc != nil {
			s.StatusFunc(samples)
		}

		batch, err := s.Fetcher.Fetch(samples)
		if err != nil {
			return err
		}
		grad := s.Gradienter.Gradient(batch)
		if s.Transformer != nil {
			grad = s.Transformer.Transform(grad)
		}

		epoch := float64(s.NumProcessed) / float64(s.Samples.Len())
		scaleGrad(grad, -s.Rater.Rate(epoch))
		grad.AddToVars()

		s.NumProcessed += batchSize
	}
}

func (s *SGD) batchSize(remaining int) int {
	if s.BatchSize == 0 || s.BatchSize > remaining {
		return remaining
	}
	return s.BatchSize
}
