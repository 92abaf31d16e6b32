package conv

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// MaxOverTime reduces each sequence in a batch to the
// per-component maximum across its timesteps.
//
// The input contains batch sequences of steps timesteps
// with depth components each; the output contains batch
// vectors of depth components.
//
// Only creators with []float32 or []float64 numeric lists
// are supported.
func MaxOverTime(in anydiff.Res, steps, depth, batch int) anydiff.Res {
	if in.Output().Len() != batch*steps*depth {
		panic("incorrect input size")
	}
	c := in.Output().Creator()
	if steps == 0 {
		return anydiff.NewConst(c.MakeVector(batch * depth))
	}

	res := &maxOverTimeRes{
		In:     in,
		MaxIdx: make([]int, batch*depth),
	}
	switch data := in.Output().Data().(type) {
	case []float32:
		out := make([]float32, batch*depth)
		for o := range out {
			idx := maxIndex32(data, o, steps, depth)
			out[o] = data[idx]
			res.MaxIdx[o] = idx
		}
		res.OutVec = c.MakeVectorData(out)
	case []float64:
		out := make([]float64, batch*depth)
		for o := range out {
			idx := maxIndex64(data, o, steps, depth)
			out[o] = data[idx]
			res.MaxIdx[o] = idx
		}
		res.OutVec = c.MakeVectorData(out)
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", data))
	}
	return res
}

func maxIndex32(in []float32, o, steps, depth int) int {
	b := o / depth
	d := o % depth
	bestIdx := b*steps*depth + d
	for t := 1; t < steps; t++ {
		idx := (b*steps+t)*depth + d
		if in[idx] > in[bestIdx] {
			bestIdx = idx
		}
	}
	return bestIdx
}

func maxIndex64(in []float64, o, steps, depth int) int {
	b := o / depth
	d := o % depth
	bestIdx := b*steps*depth + d
	for t := 1; t < steps; t++ {
		idx := (b*steps+t)*depth + d
		if in[idx] > in[bestIdx] {
			bestIdx = idx
		}
	}
	return bestIdx
}

type maxOverTimeRes struct {
	In     anydiff.Res
	OutVec anyvec.Vector
	MaxIdx []int
}

func (m *maxOverTimeRes) Output() anyvec.Vector {
	return m.OutVec
}

func (m *maxOverTimeRes) Vars() anydiff.VarSet {
	return m.In.Vars()
}

func (m *maxOverTimeRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	c := m.OutVec.Creator()
	inLen := m.In.Output().Len()
	switch uData := u.Data().(type) {
	case []float32:
		down := make([]float32, inLen)
		for i, idx := range m.MaxIdx {
			down[idx] += uData[i]
		}
		m.In.Propagate(c.MakeVectorData(down), g)
	case []float64:
		down := make([]float64, inLen)
		for i, idx := range m.MaxIdx {
			down[idx] += uData[i]
		}
		m.In.Propagate(c.MakeVectorData(down), g)
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", uData))
	}
}
