package chain

import (
	"fmt"

	"github.com/unixpickle/anyvec"
)

// vectorToFloats reads a vector out as []float64.
func vectorToFloats(v anyvec.Vector) []float64 {
	switch d := v.Data().(type) {
	case []float64:
		return d
	case []float32:
		s := make([]float64, len(d))
		for i, x := range d {
			s[i] = float64(x)
		}
		return s
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", d))
	}
}

// vectorFromFloats packs []float64 data into a vector for
// the creator.
func vectorFromFloats(c anyvec.Creator, data []float64) anyvec.Vector {
	return c.MakeVectorData(c.MakeNumericList(data))
}
