package chain

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
)

// Cost computes the negative mean log-likelihood of the
// label sequences under the chain.
//
// Each sequence in the batch carries NumClasses scores
// per timestep, and labels contains one class index per
// timestep of the corresponding sequence.
// The mean is taken over sequences; empty sequences
// contribute zero.
func (c *Chain) Cost(seqs anyseq.Seq, labels [][]int) anydiff.Res {
	cr := seqs.Creator()
	if len(seqs.Output()) == 0 {
		return anydiff.NewConst(cr.MakeVector(1))
	}
	scale := -1 / float64(len(labels))
	return anydiff.Scale(pool(seqs, func(in [][]anydiff.Res) anydiff.Res {
		var res []anydiff.Res
		for i, x := range in {
			res = append(res, c.logLikelihood(cr, x, labels[i]))
		}
		return anydiff.Sum(anydiff.Concat(res...))
	}), cr.MakeNumeric(scale))
}

type poolRes struct {
	In      anyseq.Seq
	Pools   []*anydiff.Var
	Lengths []int
	Res     anydiff.Res
	V       anydiff.VarSet
}

// pool splits a sequence batch into per-sequence timestep
// lists, passes them through f, and arranges for
// back-propagation into the sequence batch.
func pool(seqs anyseq.Seq, f func(in [][]anydiff.Res) anydiff.Res) anydiff.Res {
	rawData := anyseq.SeparateSeqs(seqs.Output())
	pools := make([]*anydiff.Var, len(rawData))
	splitPools := make([][]anydiff.Res, len(rawData))
	lengths := make([]int, len(rawData))
	for i, raw := range rawData {
		pools[i] = anydiff.NewVar(seqs.Creator().Concat(raw...))
		splitPools[i] = splitRes(pools[i], len(raw))
		lengths[i] = len(raw)
	}
	res := f(splitPools)
	v := anydiff.MergeVarSets(seqs.Vars(), res.Vars())
	for _, p := range pools {
		v.Del(p)
	}
	return &poolRes{
		In:      seqs,
		Pools:   pools,
		Lengths: lengths,
		Res:     res,
		V:       v,
	}
}

func (p *poolRes) Output() anyvec.Vector {
	return p.Res.Output()
}

func (p *poolRes) Vars() anydiff.VarSet {
	return p.V
}

func (p *poolRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	for _, pvar := range p.Pools {
		g[pvar] = pvar.Vector.Creator().MakeVector(pvar.Vector.Len())
	}
	p.Res.Propagate(u, g)
	downstream := make([][]anyvec.Vector, len(p.Pools))
	for i, pvar := range p.Pools {
		downstream[i] = splitVec(g[pvar], p.Lengths[i])
		delete(g, p.Pools[i])
	}
	if g.Intersects(p.In.Vars()) {
		joinedU := anyseq.ConstSeqList(u.Creator(), downstream).Output()
		p.In.Propagate(joinedU, g)
	}
}

func splitVec(vec anyvec.Vector, parts int) []anyvec.Vector {
	if parts == 0 {
		return nil
	}
	res := make([]anyvec.Vector, parts)
	chunkSize := vec.Len() / parts
	for i := range res {
		res[i] = vec.Slice(i*chunkSize, (i+1)*chunkSize)
	}
	return res
}

func splitRes(res anydiff.Res, parts int) []anydiff.Res {
	if parts == 0 {
		return nil
	}
	reses := make([]anydiff.Res, parts)
	chunkSize := res.Output().Len() / parts
	for i := range reses {
		reses[i] = anydiff.Slice(res, i*chunkSize, (i+1)*chunkSize)
	}
	return reses
}
