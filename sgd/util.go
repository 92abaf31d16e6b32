package sgd

import (
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
)

// Shuffle shuffles a list of samples.
// If the list implements PostShuffler, then PostShuffle
// is called after the shuffle completes.
func Shuffle(s SampleList) {
	for i := 0; i < s.Len(); i++ {
		j := i + rand.Intn(s.Len()-i)
		s.Swap(i, j)
	}
	if p, ok := s.(PostShuffler); ok {
		p.PostShuffle()
	}
}

// A ConstRater is a Rater which always returns the same
// constant learning rate.
type ConstRater float64

// Rate returns float64(c).
func (c ConstRater) Rate(epoch float64) float64 {
	return float64(c)
}

// StepDecay is a Rater which multiplies the learning rate
// by a factor after every fixed number of epochs.
type StepDecay struct {
	// Initial is the learning rate during the first
	// interval.
	Initial float64

	// Factor is the per-interval multiplier.
	// It is typically less than 1.
	Factor float64

	// Every is the interval length in epochs.
	// If it is 0, the rate stays at Initial.
	Every float64
}

// Rate returns the decayed learning rate.
func (s *StepDecay) Rate(epoch float64) float64 {
	if s.Every == 0 {
		return s.Initial
	}
	return s.Initial * math.Pow(s.Factor, math.Floor(epoch/s.Every))
}

func copyGrad(g anydiff.Grad) anydiff.Grad {
	res := anydiff.Grad{}
	for v, x := range g {
		res[v] = x.Copy()
	}
	return res
}

func scaleGrad(g anydiff.Grad, s float64) {
	for _, v := range g {
		g.Scale(v.Creator().MakeNumeric(s))
		return
	}
}

func valueOrDefault(val, def float64) float64 {
	if val != 0 {
		return val
	}
	return def
}
