// Package bruteforce computes exact marginals and partition functions by
// enumerating every joint configuration. It is exponential in the number
// of variables and serves as the reference other inferencers are checked
// against.
package bruteforce

import (
	"fmt"
	"log/slog"

	"github.com/happyhackingspace/fgbp/algebra"
	"github.com/happyhackingspace/fgbp/fg"
)

// Inferencer is the exhaustive-enumeration inferencer.
type Inferencer struct {
	graph *fg.FactorGraph
	alg   algebra.Algebra

	all   fg.VarSet
	joint *fg.VarTensor // unnormalized, in alg
	logZ  float64
	ran   bool
}

var _ fg.Inferencer = (*Inferencer)(nil)

// New returns an inferencer over g that accumulates the joint in a.
func New(g *fg.FactorGraph, a algebra.Algebra) *Inferencer {
	return &Inferencer{graph: g, alg: a}
}

// Run enumerates the joint distribution.
func (inf *Inferencer) Run() {
	inf.all = fg.NewVarSet(inf.graph.Vars()...)
	n := inf.all.NumConfigs()
	inf.joint = fg.NewVarTensor(inf.alg, inf.all, inf.alg.Zero())
	for c := range n {
		score := inf.graph.LogUnnormalizedScore(inf.all.Config(c))
		inf.joint.Set(c, inf.alg.FromLogProb(score))
	}
	inf.logZ = inf.alg.ToLogProb(inf.joint.Sum())
	inf.ran = true
	slog.Debug("brute force enumerated joint", "vars", inf.all.Len(), "configs", n, "logZ", inf.logZ)
}

func (inf *Inferencer) mustRun() {
	if !inf.ran {
		panic(fmt.Errorf("%w: brute force read before Run", fg.ErrIllegalState))
	}
}

// belief returns the normalized marginal over vs in the working algebra.
func (inf *Inferencer) belief(vs fg.VarSet) *fg.VarTensor {
	inf.mustRun()
	t := inf.joint.Marginalize(vs)
	t.Normalize()
	return t
}

func (inf *Inferencer) Marginals(v *fg.Var) *fg.VarTensor {
	return inf.belief(fg.NewVarSet(v)).Convert(algebra.Real)
}

func (inf *Inferencer) LogMarginals(v *fg.Var) *fg.VarTensor {
	return inf.belief(fg.NewVarSet(v)).Convert(algebra.Log)
}

// FactorMarginals returns the belief over f's variables. Unlike belief
// propagation it is available for every factor, structured ones included.
func (inf *Inferencer) FactorMarginals(f fg.Factor) *fg.VarTensor {
	return inf.belief(f.Vars()).Convert(algebra.Real)
}

func (inf *Inferencer) Partition() float64 {
	inf.mustRun()
	return algebra.Real.FromLogProb(inf.logZ)
}

func (inf *Inferencer) LogPartition() float64 {
	inf.mustRun()
	return inf.logZ
}

// Joint returns log P over every configuration of all the graph's
// variables, in canonical VarSet order.
func (inf *Inferencer) Joint() *fg.VarTensor {
	inf.mustRun()
	t := inf.joint.Convert(algebra.Log)
	t.Normalize()
	return t
}
