// Package conv provides one-dimensional convolutions over
// embedded token sequences.
package conv

import (
	"fmt"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var c Conv1D
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeConv1D)
}

// A Padding scheme decides how a sequence is extended
// before the filters slide over it.
type Padding int

const (
	// Valid applies filters only at positions fully
	// inside the sequence.
	Valid Padding = iota

	// Same zero-pads the sequence so that the output has
	// ceil(seqLen/stride) timesteps.
	Same
)

// PaddingByName returns the Padding for a configuration
// name, "valid" or "same".
func PaddingByName(name string) (Padding, error) {
	switch name {
	case "valid":
		return Valid, nil
	case "same":
		return Same, nil
	}
	return 0, fmt.Errorf("unknown padding: %s", name)
}

// Conv1D is a one-dimensional convolutional layer.
//
// It slides FilterCount filters of width FilterWidth
// across a sequence of InDepth-dimensional timesteps.
//
// Inputs and outputs are row-major depth-minor: an input
// contains batch sequences of seqLen timesteps, each
// timestep being InDepth contiguous components.
type Conv1D struct {
	InDepth     int
	FilterCount int
	FilterWidth int
	Stride      int
	Padding     Padding

	Filters *anydiff.Var
	Biases  *anydiff.Var
}

// DeserializeConv1D deserializes a Conv1D.
func DeserializeConv1D(d []byte) (*Conv1D, error) {
	var inD, fW, stride, padding serializer.Int
	var f, b *anyvecsave.S
	err := serializer.DeserializeAny(d, &inD, &fW, &stride, &padding, &f, &b)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Conv1D", err)
	}
	return &Conv1D{
		InDepth:     int(inD),
		FilterCount: b.Vector.Len(),
		FilterWidth: int(fW),
		Stride:      int(stride),
		Padding:     Padding(padding),

		Filters: anydiff.NewVar(f.Vector),
		Biases:  anydiff.NewVar(b.Vector),
	}, nil
}

// NewConv1D creates a randomized Conv1D.
func NewConv1D(c anyvec.Creator, inDepth, filterCount, filterWidth, stride int,
	padding Padding) *Conv1D {
	filters := c.MakeVector(filterCount * filterWidth * inDepth)
	anyvec.Rand(filters, anyvec.Normal, nil)
	filters.Scale(c.MakeNumeric(1 / math.Sqrt(float64(filterWidth*inDepth))))
	return &Conv1D{
		InDepth:     inDepth,
		FilterCount: filterCount,
		FilterWidth: filterWidth,
		Stride:      stride,
		Padding:     padding,

		Filters: anydiff.NewVar(filters),
		Biases:  anydiff.NewVar(c.MakeVector(filterCount)),
	}
}

// OutLen returns the number of output timesteps for a
// sequence of seqLen timesteps.
func (c *Conv1D) OutLen(seqLen int) int {
	if c.Padding == Same {
		return (seqLen + c.Stride - 1) / c.Stride
	}
	if seqLen < c.FilterWidth {
		return 0
	}
	return 1 + (seqLen-c.FilterWidth)/c.Stride
}

// Apply applies the filters to a batch of sequences, all
// of length seqLen.
//
// The output contains batch sequences of OutLen(seqLen)
// timesteps with FilterCount components each.
func (c *Conv1D) Apply(in anydiff.Res, seqLen, batch int) anydiff.Res {
	if in.Output().Len() != batch*seqLen*c.InDepth {
		panic("incorrect input size")
	}
	outLen := c.OutLen(seqLen)
	if outLen == 0 {
		return anydiff.NewConst(in.Output().Creator().MakeVector(0))
	}
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		windows := c.im2row(in, seqLen, batch, outLen)
		windowMat := &anydiff.Matrix{
			Data: windows,
			Rows: batch * outLen,
			Cols: c.FilterWidth * c.InDepth,
		}
		filterMat := &anydiff.Matrix{
			Data: c.Filters,
			Rows: c.FilterCount,
			Cols: c.FilterWidth * c.InDepth,
		}
		product := anydiff.MatMul(false, true, windowMat, filterMat)
		return anydiff.AddRepeated(product.Data, c.Biases)
	})
}

// im2row slices every filter window out of every sequence
// and joins them into one (batch*outLen)-row matrix.
func (c *Conv1D) im2row(in anydiff.Res, seqLen, batch, outLen int) anydiff.Res {
	cr := in.Output().Creator()
	d := c.InDepth
	left, right := c.padAmounts(seqLen)
	var rows []anydiff.Res
	for b := 0; b < batch; b++ {
		seq := anydiff.Slice(in, b*seqLen*d, (b+1)*seqLen*d)
		if left > 0 || right > 0 {
			parts := make([]anydiff.Res, 0, 3)
			if left > 0 {
				parts = append(parts, anydiff.NewConst(cr.MakeVector(left*d)))
			}
			parts = append(parts, seq)
			if right > 0 {
				parts = append(parts, anydiff.NewConst(cr.MakeVector(right*d)))
			}
			seq = anydiff.Concat(parts...)
		}
		for t := 0; t < outLen; t++ {
			start := t * c.Stride * d
			rows = append(rows, anydiff.Slice(seq, start, start+c.FilterWidth*d))
		}
	}
	return anydiff.Concat(rows...)
}

func (c *Conv1D) padAmounts(seqLen int) (left, right int) {
	if c.Padding != Same {
		return 0, 0
	}
	outLen := c.OutLen(seqLen)
	total := (outLen-1)*c.Stride + c.FilterWidth - seqLen
	if total < 0 {
		total = 0
	}
	return total / 2, total - total/2
}

// Parameters returns the filters and biases.
func (c *Conv1D) Parameters() []*anydiff.Var {
	return []*anydiff.Var{c.Filters, c.Biases}
}

// SerializerType returns the unique ID used to serialize
// a Conv1D with the serializer package.
func (c *Conv1D) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn/conv.Conv1D"
}

// Serialize serializes the Conv1D.
func (c *Conv1D) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(c.InDepth),
		serializer.Int(c.FilterWidth),
		serializer.Int(c.Stride),
		serializer.Int(c.Padding),
		&anyvecsave.S{Vector: c.Filters.Vector},
		&anyvecsave.S{Vector: c.Biases.Vector},
	)
}
