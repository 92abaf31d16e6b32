package hierrnn

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var e Embedding
	serializer.RegisterTypedDeserializer(e.SerializerType(), DeserializeEmbedding)
}

// An Embedding is a lookup table mapping token IDs to
// learned vectors.
//
// When Trainable is false the table is excluded from
// Parameters(), so an optimizer will never touch it.
// This is how pretrained embedding matrices are frozen.
type Embedding struct {
	VocabSize int
	EmbSize   int
	Trainable bool
	Matrix    *anydiff.Var
}

// DeserializeEmbedding deserializes an Embedding.
func DeserializeEmbedding(d []byte) (*Embedding, error) {
	var matrix *anyvecsave.S
	var vocabSize, embSize, trainable serializer.Int
	if err := serializer.DeserializeAny(d, &matrix, &vocabSize, &embSize, &trainable); err != nil {
		return nil, essentials.AddCtx("deserialize Embedding", err)
	}
	if int(vocabSize*embSize) != matrix.Vector.Len() {
		return nil, fmt.Errorf("deserialize Embedding: expected %d values but got %d",
			vocabSize*embSize, matrix.Vector.Len())
	}
	return &Embedding{
		VocabSize: int(vocabSize),
		EmbSize:   int(embSize),
		Trainable: trainable == 1,
		Matrix:    anydiff.NewVar(matrix.Vector),
	}, nil
}

// NewEmbedding creates a trainable Embedding with entries
// drawn uniformly from [-0.1, 0.1].
func NewEmbedding(c anyvec.Creator, vocabSize, embSize int) *Embedding {
	vec := c.MakeVector(vocabSize * embSize)
	anyvec.Rand(vec, anyvec.Uniform, nil)
	vec.Scale(c.MakeNumeric(0.2))
	vec.AddScalar(c.MakeNumeric(-0.1))
	return &Embedding{
		VocabSize: vocabSize,
		EmbSize:   embSize,
		Trainable: true,
		Matrix:    anydiff.NewVar(vec),
	}
}

// NewEmbeddingPretrained creates an Embedding whose table
// is initialized from the rows of a pretrained matrix.
func NewEmbeddingPretrained(c anyvec.Creator, rows [][]float64, trainable bool) *Embedding {
	if len(rows) == 0 {
		panic("pretrained matrix may not be empty")
	}
	embSize := len(rows[0])
	joined := make([]float64, 0, len(rows)*embSize)
	for _, row := range rows {
		if len(row) != embSize {
			panic("pretrained matrix rows must be equally long")
		}
		joined = append(joined, row...)
	}
	vec := c.MakeVectorData(c.MakeNumericList(joined))
	return &Embedding{
		VocabSize: len(rows),
		EmbSize:   embSize,
		Trainable: trainable,
		Matrix:    anydiff.NewVar(vec),
	}
}

// Embed looks up the vectors for a batch of token IDs and
// packs them into one result.
func (e *Embedding) Embed(ids []int) anydiff.Res {
	return anydiff.Pool(e.Matrix, func(m anydiff.Res) anydiff.Res {
		rows := make([]anydiff.Res, len(ids))
		for i, id := range ids {
			if id < 0 || id >= e.VocabSize {
				panic(fmt.Sprintf("token ID out of range: %d", id))
			}
			rows[i] = anydiff.Slice(m, id*e.EmbSize, (id+1)*e.EmbSize)
		}
		return anydiff.Concat(rows...)
	})
}

// Parameters returns the lookup table, or nothing when
// the table is frozen.
func (e *Embedding) Parameters() []*anydiff.Var {
	if !e.Trainable {
		return nil
	}
	return []*anydiff.Var{e.Matrix}
}

// SerializerType returns the unique ID used to serialize
// an Embedding with the serializer package.
func (e *Embedding) SerializerType() string {
	return "github.com/efikarra/hierarchical-rnn.Embedding"
}

// Serialize serializes the Embedding.
func (e *Embedding) Serialize() ([]byte, error) {
	trainable := serializer.Int(0)
	if e.Trainable {
		trainable = 1
	}
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: e.Matrix.Vector},
		serializer.Int(e.VocabSize),
		serializer.Int(e.EmbSize),
		trainable,
	)
}
