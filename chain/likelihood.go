package chain

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// logLikelihood computes the log likelihood of a label
// sequence given per-timestep class scores.
//
// There must be one label per timestep.
// For an empty sequence, the result is a constant zero.
func (c *Chain) logLikelihood(cr anyvec.Creator, steps []anydiff.Res, label []int) anydiff.Res {
	if len(steps) == 0 {
		return anydiff.NewConst(cr.MakeVector(1))
	}

	label = append([]int{}, label...)

	pathScore := anydiff.Slice(steps[0], label[0], label[0]+1)
	for t := 1; t < len(steps); t++ {
		transIdx := label[t-1]*c.NumClasses + label[t]
		pathScore = anydiff.Add(pathScore,
			anydiff.Slice(steps[t], label[t], label[t]+1))
		pathScore = anydiff.Add(pathScore,
			anydiff.Slice(c.Transitions, transIdx, transIdx+1))
	}

	alpha := steps[0]
	for t := 1; t < len(steps); t++ {
		alpha = newForwardStep(alpha, steps[t], c.Transitions, c.NumClasses)
	}

	return anydiff.Sub(pathScore, newLogSumExp(alpha))
}

// forwardStep advances the forward algorithm by one
// timestep in the log domain:
//
//	newAlpha[j] = score[j] + lse_i(alpha[i] + trans[i][j])
type forwardStep struct {
	OutVec     anyvec.Vector
	Alpha      anydiff.Res
	Score      anydiff.Res
	Trans      anydiff.Res
	NumClasses int
	V          anydiff.VarSet
}

func newForwardStep(alpha, score, trans anydiff.Res, numClasses int) *forwardStep {
	alphaF := vectorToFloats(alpha.Output())
	scoreF := vectorToFloats(score.Output())
	transF := vectorToFloats(trans.Output())
	newAlpha := make([]float64, numClasses)
	for j := range newAlpha {
		sum := math.Inf(-1)
		for i := 0; i < numClasses; i++ {
			sum = addLogs(sum, alphaF[i]+transF[i*numClasses+j])
		}
		newAlpha[j] = scoreF[j] + sum
	}
	v := anydiff.MergeVarSets(alpha.Vars(), score.Vars(), trans.Vars())
	return &forwardStep{
		OutVec:     vectorFromFloats(alpha.Output().Creator(), newAlpha),
		Alpha:      alpha,
		Score:      score,
		Trans:      trans,
		NumClasses: numClasses,
		V:          v,
	}
}

func (f *forwardStep) Output() anyvec.Vector {
	return f.OutVec
}

func (f *forwardStep) Vars() anydiff.VarSet {
	return f.V
}

func (f *forwardStep) Propagate(u anyvec.Vector, g anydiff.Grad) {
	upstream := vectorToFloats(u)
	alphaF := vectorToFloats(f.Alpha.Output())
	transF := vectorToFloats(f.Trans.Output())
	n := f.NumClasses

	alphaGrad := make([]float64, n)
	transGrad := make([]float64, n*n)
	for j := 0; j < n; j++ {
		denom := math.Inf(-1)
		for i := 0; i < n; i++ {
			denom = addLogs(denom, alphaF[i]+transF[i*n+j])
		}
		for i := 0; i < n; i++ {
			w := upstream[j] * math.Exp(alphaF[i]+transF[i*n+j]-denom)
			alphaGrad[i] += w
			transGrad[i*n+j] += w
		}
	}

	cr := f.OutVec.Creator()
	if g.Intersects(f.Score.Vars()) {
		f.Score.Propagate(vectorFromFloats(cr, upstream), g)
	}
	if g.Intersects(f.Alpha.Vars()) {
		f.Alpha.Propagate(vectorFromFloats(cr, alphaGrad), g)
	}
	if g.Intersects(f.Trans.Vars()) {
		f.Trans.Propagate(vectorFromFloats(cr, transGrad), g)
	}
}

// logSumExpRes reduces a log-domain vector to the log of
// its summed exponentials.
type logSumExpRes struct {
	OutVec anyvec.Vector
	In     anydiff.Res
}

func newLogSumExp(in anydiff.Res) anydiff.Res {
	v := vectorToFloats(in.Output())
	sum := math.Inf(-1)
	for _, x := range v {
		sum = addLogs(sum, x)
	}
	return &logSumExpRes{
		OutVec: vectorFromFloats(in.Output().Creator(), []float64{sum}),
		In:     in,
	}
}

func (l *logSumExpRes) Output() anyvec.Vector {
	return l.OutVec
}

func (l *logSumExpRes) Vars() anydiff.VarSet {
	return l.In.Vars()
}

func (l *logSumExpRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	upstream := vectorToFloats(u)[0]
	v := vectorToFloats(l.In.Output())
	total := vectorToFloats(l.OutVec)[0]
	downstream := make([]float64, len(v))
	for i, x := range v {
		downstream[i] = upstream * math.Exp(x-total)
	}
	l.In.Propagate(vectorFromFloats(l.OutVec.Creator(), downstream), g)
}

// addLogs adds two numbers in the log domain.
func addLogs(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	} else if math.IsInf(b, -1) {
		return a
	}
	normalizer := math.Max(a, b)
	exp1 := math.Exp(a - normalizer)
	exp2 := math.Exp(b - normalizer)
	return math.Log(exp1+exp2) + normalizer
}
