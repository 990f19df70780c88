// Package bp implements loopy belief propagation over factor graphs,
// parameterized by the algebra messages are computed in.
package bp

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/happyhackingspace/fgbp/algebra"
	"github.com/happyhackingspace/fgbp/fg"
	"github.com/happyhackingspace/fgbp/internal/telemetry"
)

// ErrNotRun is the panic value when results are read before Run.
var ErrNotRun = fmt.Errorf("%w: belief propagation has not run", fg.ErrIllegalState)

// Status is the state of one run.
type Status int

const (
	NotStarted Status = iota
	Iterating
	Converged
	MaxItersReached
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case Iterating:
		return "ITERATING"
	case Converged:
		return "CONVERGED"
	case MaxItersReached:
		return "MAX_ITERS_REACHED"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// BeliefPropagation runs belief propagation over one graph. It owns its
// message buffers, so separate instances may run concurrently as long as
// they do not share a graph that is being mutated.
type BeliefPropagation struct {
	cfg   Config
	alg   algebra.Algebra
	graph *fg.FactorGraph
	bg    *fg.Bipartite

	// msgs[e] is the current message on edge e.
	msgs []*fg.VarTensor
	// pots[j] is factor j's table in alg, nil for global factors.
	pots          []*fg.VarTensor
	factorBeliefs []*fg.VarTensor

	status     Status
	iterations int
	delta      float64
	logZ       float64
}

var (
	_ fg.Inferencer    = (*BeliefPropagation)(nil)
	_ fg.MessageSource = (*BeliefPropagation)(nil)
)

// New validates cfg and prepares an inferencer over g.
func New(g *fg.FactorGraph, cfg Config) (*BeliefPropagation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := algebra.ForKind(cfg.Algebra)
	if err != nil {
		return nil, fmt.Errorf("bp: %w", err)
	}
	return &BeliefPropagation{cfg: cfg, alg: a, graph: g}, nil
}

// Config returns the configuration the inferencer runs with.
func (bp *BeliefPropagation) Config() Config { return bp.cfg }

// Run iterates the schedule until messages converge or MaxIterations
// sweeps have run. Non-convergence is reported through Status, not an
// error.
func (bp *BeliefPropagation) Run() {
	g := bp.graph
	bp.bg = g.Bipartite()
	bp.status = Iterating
	bp.iterations = 0
	bp.factorBeliefs = nil

	bp.pots = make([]*fg.VarTensor, g.NumFactors())
	for j, f := range g.Factors() {
		if _, ok := f.(fg.GlobalFactor); !ok {
			bp.pots[j] = fg.Potentials(f, bp.alg)
		}
	}

	bp.msgs = make([]*fg.VarTensor, bp.bg.NumEdges())
	for e := range bp.msgs {
		m := fg.NewVarTensor(bp.alg, fg.NewVarSet(bp.bg.Edge(e).Var), bp.alg.One())
		if bp.cfg.NormalizeMessages {
			m.Normalize()
		}
		bp.msgs[e] = m
	}

	var sched Scheduler
	switch bp.cfg.Schedule {
	case Random:
		sched = NewRandomSchedule(g, bp.cfg.Seed)
	default:
		sched = NewTreeLikeSchedule(g)
	}
	exactOneSweep := bp.cfg.Schedule == TreeLike && bp.cfg.UpdateOrder == Sequential && g.IsAcyclic()

	for bp.iterations < bp.cfg.MaxIterations {
		prev := bp.msgs
		if bp.cfg.UpdateOrder == Parallel {
			next := make([]*fg.VarTensor, len(prev))
			copy(next, prev)
			for _, it := range sched.Sweep() {
				bp.update(it, prev, next)
			}
			bp.msgs = next
		} else {
			prev = make([]*fg.VarTensor, len(bp.msgs))
			for e, m := range bp.msgs {
				prev[e] = m.Copy()
			}
			for _, it := range sched.Sweep() {
				bp.update(it, bp.msgs, bp.msgs)
			}
		}
		bp.iterations++

		bp.delta = 0
		for e, m := range bp.msgs {
			bp.delta = max(bp.delta, m.MaxAbsDiffLog(prev[e]))
		}
		slog.Debug("bp sweep", "iteration", bp.iterations, "delta", bp.delta)

		if exactOneSweep || bp.delta <= bp.cfg.ConvergenceThreshold {
			bp.status = Converged
			break
		}
	}
	if bp.status != Converged {
		bp.status = MaxItersReached
		slog.Debug("bp did not converge", "iterations", bp.iterations, "delta", bp.delta)
	}

	if bp.cfg.CacheFactorBeliefs {
		bp.factorBeliefs = make([]*fg.VarTensor, g.NumFactors())
		for j := range bp.factorBeliefs {
			if bp.pots[j] != nil {
				bp.factorBeliefs[j] = bp.factorBelief(j)
			}
		}
	}
	bp.logZ = -bp.betheFreeEnergy()

	telemetry.RecordRun(context.Background(), string(bp.cfg.Schedule), string(bp.cfg.UpdateOrder),
		bp.iterations, bp.status == Converged)
}

// update recomputes the messages of one schedule item from src into dst.
func (bp *BeliefPropagation) update(it Item, src, dst []*fg.VarTensor) {
	if it.isGlobal() {
		bp.updateGlobal(it.Factor, src, dst)
		return
	}
	e := it.Edge
	var m *fg.VarTensor
	if bp.bg.Edge(e).VarToFactor {
		m = bp.varToFactor(e, src)
	} else {
		m = bp.factorToVar(e, src)
	}
	dst[e] = bp.finish(m)
}

// varToFactor multiplies every message into the variable except the one
// coming back along e.
func (bp *BeliefPropagation) varToFactor(e int, src []*fg.VarTensor) *fg.VarTensor {
	v := bp.bg.Edge(e).Var
	m := fg.NewVarTensor(bp.alg, fg.NewVarSet(v), bp.alg.One())
	for _, in := range bp.bg.VarIn(v.ID()) {
		if in != bp.bg.Opposite(e) {
			m.Prod(src[in])
		}
	}
	return m
}

// factorToVar multiplies the factor table by every incoming message except
// the target's and sums out everything but the target.
func (bp *BeliefPropagation) factorToVar(e int, src []*fg.VarTensor) *fg.VarTensor {
	ed := bp.bg.Edge(e)
	j := ed.Factor.ID()
	prod := bp.pots[j].Copy()
	for _, in := range bp.bg.FactorIn(j) {
		if in != bp.bg.Opposite(e) {
			prod.Prod(src[in])
		}
	}
	return prod.Marginalize(fg.NewVarSet(ed.Var))
}

func (bp *BeliefPropagation) updateGlobal(j int, src, dst []*fg.VarTensor) {
	gf := bp.graph.Factor(j).(fg.GlobalFactor)
	ins := bp.bg.FactorIn(j)
	outs := bp.bg.FactorOut(j)
	in := make([]*fg.VarTensor, len(ins))
	out := make([]*fg.VarTensor, len(outs))
	for k, e := range ins {
		in[k] = src[e]
		out[k] = fg.NewVarTensor(bp.alg, fg.NewVarSet(bp.bg.Edge(e).Var), bp.alg.Zero())
	}
	gf.CreateMessages(in, out)
	for k, e := range outs {
		dst[e] = bp.finish(out[k])
	}
}

func (bp *BeliefPropagation) finish(m *fg.VarTensor) *fg.VarTensor {
	if bp.cfg.NormalizeMessages {
		m.Normalize()
	}
	m.Validate()
	return m
}

func (bp *BeliefPropagation) mustRun() {
	if bp.status == NotStarted {
		panic(ErrNotRun)
	}
}

// varBelief is the normalized product of every message into v, in alg.
func (bp *BeliefPropagation) varBelief(v *fg.Var) *fg.VarTensor {
	b, _ := bp.varBeliefSum(v)
	return b
}

// varBeliefSum also returns the sum of the product before normalization.
func (bp *BeliefPropagation) varBeliefSum(v *fg.Var) (*fg.VarTensor, float64) {
	b := fg.NewVarTensor(bp.alg, fg.NewVarSet(v), bp.alg.One())
	for _, in := range bp.bg.VarIn(v.ID()) {
		b.Prod(bp.msgs[in])
	}
	return b, b.Normalize()
}

// factorBelief is the normalized product of factor j's table and every
// message into it, in alg.
func (bp *BeliefPropagation) factorBelief(j int) *fg.VarTensor {
	b, _ := bp.factorBeliefSum(j)
	return b
}

func (bp *BeliefPropagation) factorBeliefSum(j int) (*fg.VarTensor, float64) {
	b := bp.pots[j].Copy()
	for _, in := range bp.bg.FactorIn(j) {
		b.Prod(bp.msgs[in])
	}
	return b, b.Normalize()
}

// Marginals returns P(v).
func (bp *BeliefPropagation) Marginals(v *fg.Var) *fg.VarTensor {
	bp.mustRun()
	return bp.varBelief(v).Convert(algebra.Real)
}

// LogMarginals returns log P(v).
func (bp *BeliefPropagation) LogMarginals(v *fg.Var) *fg.VarTensor {
	bp.mustRun()
	return bp.varBelief(v).Convert(algebra.Log)
}

// FactorMarginals returns the belief over f's configurations, or nil for a
// global factor, whose table is never materialized.
func (bp *BeliefPropagation) FactorMarginals(f fg.Factor) *fg.VarTensor {
	bp.mustRun()
	j := f.ID()
	if bp.pots[j] == nil {
		return nil
	}
	if bp.factorBeliefs != nil {
		return bp.factorBeliefs[j].Convert(algebra.Real)
	}
	return bp.factorBelief(j).Convert(algebra.Real)
}

func (bp *BeliefPropagation) Partition() float64 {
	return math.Exp(bp.LogPartition())
}

// LogPartition returns the Bethe approximation of log Z, exact when the
// graph is acyclic and the run converged.
func (bp *BeliefPropagation) LogPartition() float64 {
	bp.mustRun()
	return bp.logZ
}

// betheFreeEnergy returns
//
//	F = sum_f E_bf[log bf - log psi_f] - sum_v (deg(v)-1) sum_x bv(x) log bv(x)
//
// from the current beliefs. A belief with no mass means no configuration
// has nonzero score, so F is +Inf and Z is zero.
func (bp *BeliefPropagation) betheFreeEnergy() float64 {
	var energy float64
	for j, f := range bp.graph.Factors() {
		if gf, ok := f.(fg.GlobalFactor); ok {
			e := gf.ExpectedLogBelief(bp.FactorInMessages(f))
			if math.IsInf(e, 1) {
				return e
			}
			energy += e
			continue
		}
		b, sum := bp.factorBeliefSum(j)
		if sum == bp.alg.Zero() {
			return math.Inf(1)
		}
		for c := range b.Size() {
			lb := bp.alg.ToLogProb(b.Get(c))
			if math.IsInf(lb, -1) {
				continue
			}
			energy += math.Exp(lb) * (lb - bp.alg.ToLogProb(bp.pots[j].Get(c)))
		}
	}
	for i, v := range bp.graph.Vars() {
		b, sum := bp.varBeliefSum(v)
		if sum == bp.alg.Zero() {
			return math.Inf(1)
		}
		deg := len(bp.bg.VarIn(i))
		if deg == 1 {
			continue
		}
		var negEntropy float64
		for c := range b.Size() {
			lb := bp.alg.ToLogProb(b.Get(c))
			if !math.IsInf(lb, -1) {
				negEntropy += math.Exp(lb) * lb
			}
		}
		energy -= float64(deg-1) * negEntropy
	}
	return energy
}

// FactorInMessages returns copies of the messages into f, in f.Vars()
// order, or nil before Run.
func (bp *BeliefPropagation) FactorInMessages(f fg.Factor) []*fg.VarTensor {
	if bp.status == NotStarted {
		return nil
	}
	ins := bp.bg.FactorIn(f.ID())
	out := make([]*fg.VarTensor, len(ins))
	for k, e := range ins {
		out[k] = bp.msgs[e].Copy()
	}
	return out
}

// Messages returns a copy of every message, indexed by edge id of the
// graph's Bipartite().
func (bp *BeliefPropagation) Messages() []*fg.VarTensor {
	bp.mustRun()
	out := make([]*fg.VarTensor, len(bp.msgs))
	for e, m := range bp.msgs {
		out[e] = m.Copy()
	}
	return out
}

func (bp *BeliefPropagation) Status() Status   { return bp.status }
func (bp *BeliefPropagation) IsConverged() bool { return bp.status == Converged }
func (bp *BeliefPropagation) Iterations() int   { return bp.iterations }

// Delta returns the largest log-domain message change of the last sweep.
func (bp *BeliefPropagation) Delta() float64 { return bp.delta }
