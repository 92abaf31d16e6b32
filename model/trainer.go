package model

import (
	"errors"

	"github.com/efikarra/hierarchical-rnn/sgd"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A Trainer computes gradients of a Model's cost over
// mini-batches of sessions.
type Trainer struct {
	Model *Model

	// Params specifies which parameters to find the
	// gradients for.
	Params []*anydiff.Var

	// After every gradient computation, LastCost is set to
	// the cost from the batch.
	LastCost anyvec.Numeric
}

// NewBatch pads a list of sessions into one Batch.
//
// The list may not be empty.
func NewBatch(samples SampleList) (*Batch, error) {
	if samples.Len() == 0 {
		return nil, errors.New("batch: empty sample list")
	}
	maxSess := 0
	for _, sample := range samples {
		if sample.Len() > maxSess {
			maxSess = sample.Len()
		}
	}

	b := &Batch{
		SessLens: make([]int, len(samples)),
		UttrLens: make([][]int, len(samples)),
	}
	tokenBased := samples[0].Tokens != nil
	if tokenBased {
		b.Tokens = make([][][]int, len(samples))
	} else {
		b.Features = make([][][]float64, len(samples))
	}
	hasTargets := true
	for _, sample := range samples {
		if sample.Labels == nil {
			hasTargets = false
		}
	}
	if hasTargets {
		b.Targets = make([][]int, len(samples))
	}

	for i, sample := range samples {
		sessLen := sample.Len()
		b.SessLens[i] = sessLen
		b.UttrLens[i] = make([]int, maxSess)
		if tokenBased {
			b.Tokens[i] = make([][]int, maxSess)
			for j := 0; j < maxSess; j++ {
				if j < sessLen {
					b.Tokens[i][j] = sample.Tokens[j]
					b.UttrLens[i][j] = len(sample.Tokens[j])
				} else {
					b.Tokens[i][j] = []int{}
				}
			}
		} else {
			b.Features[i] = make([][]float64, maxSess)
			for j := 0; j < sessLen; j++ {
				b.Features[i][j] = sample.Features[j]
				b.UttrLens[i][j] = 1
			}
		}
		if hasTargets {
			b.Targets[i] = sample.Labels
		}
	}
	if err := b.Check(hasTargets); err != nil {
		return nil, err
	}
	return b, nil
}

// Fetch pads a list of sessions into a single Batch with
// targets.
//
// The list may not be empty.
func (t *Trainer) Fetch(s sgd.SampleList) (sgd.Batch, error) {
	b, err := NewBatch(s.(SampleList))
	if err != nil {
		return nil, err
	}
	if b.Targets == nil {
		return nil, errors.New("batch: missing labels")
	}
	return b, nil
}

// TotalCost computes the cost for a batch.
func (t *Trainer) TotalCost(b *Batch) anydiff.Res {
	return t.Model.Cost(b)
}

// Gradient computes the gradient for the batch's cost.
//
// It also sets t.LastCost to the cost for the batch.
func (t *Trainer) Gradient(s sgd.Batch) anydiff.Grad {
	res := anydiff.NewGrad(t.Params...)

	cost := t.TotalCost(s.(*Batch))
	t.LastCost = anyvec.Sum(cost.Output())

	c := cost.Output().Creator()
	upstream := c.MakeVectorData(c.MakeNumericList([]float64{1}))
	cost.Propagate(upstream, res)

	return res
}
