package chain

import (
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
)

// Decode returns the most likely labeling of every
// sequence in the batch, found with the Viterbi
// algorithm.
//
// Empty sequences decode to empty labelings.
func (c *Chain) Decode(seqs anyseq.Seq) [][]int {
	var res [][]int
	for _, seq := range anyseq.SeparateSeqs(seqs.Output()) {
		scores := make([][]float64, len(seq))
		for t, vec := range seq {
			scores[t] = vectorToFloats(vec)
		}
		res = append(res, c.BestPath(scores))
	}
	return res
}

// DecodeVecs is like Decode for one sequence given as raw
// per-timestep score vectors.
func (c *Chain) DecodeVecs(seq []anyvec.Vector) []int {
	scores := make([][]float64, len(seq))
	for t, vec := range seq {
		scores[t] = vectorToFloats(vec)
	}
	return c.BestPath(scores)
}

// BestPath returns the labeling with the highest joint
// score for one sequence of per-timestep class scores.
func (c *Chain) BestPath(scores [][]float64) []int {
	if len(scores) == 0 {
		return []int{}
	}
	n := c.NumClasses
	transF := vectorToFloats(c.Transitions.Vector)

	best := make([]float64, n)
	copy(best, scores[0])
	backPointers := make([][]int, len(scores))
	for t := 1; t < len(scores); t++ {
		newBest := make([]float64, n)
		pointers := make([]int, n)
		for j := 0; j < n; j++ {
			bestScore := best[0] + transF[j]
			bestPrev := 0
			for i := 1; i < n; i++ {
				score := best[i] + transF[i*n+j]
				if score > bestScore {
					bestScore = score
					bestPrev = i
				}
			}
			newBest[j] = bestScore + scores[t][j]
			pointers[j] = bestPrev
		}
		best = newBest
		backPointers[t] = pointers
	}

	last := 0
	for i, x := range best {
		if x > best[last] {
			last = i
		}
	}
	path := make([]int, len(scores))
	path[len(path)-1] = last
	for t := len(scores) - 1; t > 0; t-- {
		path[t-1] = backPointers[t][path[t]]
	}
	return path
}
