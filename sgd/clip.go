package sgd

import (
	"fmt"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Clipper scales gradients whose global L2 norm exceeds
// a threshold back down to that threshold.
type Clipper struct {
	// Threshold is the maximum global norm.
	// If it is 0, Transform is a no-op.
	Threshold float64
}

// Transform clips the gradient in place.
func (c *Clipper) Transform(g anydiff.Grad) anydiff.Grad {
	if c.Threshold == 0 {
		return g
	}
	var sqNorm float64
	for _, v := range g {
		sqNorm += numericFloat(v.Dot(v))
	}
	norm := math.Sqrt(sqNorm)
	if norm > c.Threshold {
		scaleGrad(g, c.Threshold/norm)
	}
	return g
}

func numericFloat(n anyvec.Numeric) float64 {
	switch n := n.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", n))
	}
}
