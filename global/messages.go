// Package global implements structured factors over Boolean variables
// whose messages and beliefs come from dynamic programs: projective
// dependency trees, consecutive-sibling head automata and constituency
// trees. Every factor computes in the log domain internally and converts
// at its boundary to whatever algebra the caller passes messages in.
package global

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/happyhackingspace/fgbp/algebra"
	"github.com/happyhackingspace/fgbp/fg"
	"github.com/happyhackingspace/fgbp/internal/telemetry"
)

// MaxLogOdds caps the log-odds of a link whose incoming message gives its
// false state zero mass.
const MaxLogOdds = 300.0

var negativeBeliefs atomic.Int64

// NegativeBeliefCorrections returns how many times a belief-of-false came
// out negative through floating-point cancellation and was clamped to zero
// since the last reset.
func NegativeBeliefCorrections() int64 { return negativeBeliefs.Load() }

// ResetNegativeBeliefCorrections zeroes the correction counter.
func ResetNegativeBeliefCorrections() { negativeBeliefs.Store(0) }

// structure is a global factor over Boolean links that can sum over its
// valid structures given per-link log-odds.
type structure interface {
	fg.Factor
	// linkMarginals returns the log partition over all structures, each
	// weighted by exp(sum of the log-odds of its active links) times the
	// factor's own potential, and log P(link i active) for every link in
	// Vars() order. Links with -Inf log-odds must be excluded.
	linkMarginals(logOdds []float64) (logZ float64, logMarg []float64)
}

// linkInputs is the log-domain view of a factor's incoming messages.
type linkInputs struct {
	logTrue  []float64
	logFalse []float64
	logOdds  []float64
	// sumLogFalse is the log of the product of every false mass.
	sumLogFalse float64
	// empty is set when some message gives both states zero mass.
	empty bool
}

func readInputs(f structure, in []*fg.VarTensor) linkInputs {
	n := len(in)
	li := linkInputs{
		logTrue:  make([]float64, n),
		logFalse: make([]float64, n),
		logOdds:  make([]float64, n),
	}
	for i, m := range in {
		a := m.Algebra()
		lt := a.ToLogProb(m.Get(fg.True))
		lf := a.ToLogProb(m.Get(fg.False))
		switch {
		case math.IsInf(lt, -1):
			li.logOdds[i] = math.Inf(-1)
			if math.IsInf(lf, -1) {
				// No mass at all: treat the link as excluded with a
				// neutral false message.
				lf = 0
				li.empty = true
			}
		case math.IsInf(lf, -1):
			li.logOdds[i] = MaxLogOdds
			lf = lt - MaxLogOdds
			slog.Debug("capped log-odds of link with zero false mass",
				"factor", f.ID(), "var", f.Vars().Var(i).Name())
			telemetry.RecordOddsFloored(context.Background(), factorKind(f))
		default:
			li.logOdds[i] = lt - lf
		}
		li.logTrue[i] = lt
		li.logFalse[i] = lf
		li.sumLogFalse += lf
	}
	return li
}

// createMessages writes the outgoing message to every link. With Z the
// partition under the incoming messages, the belief of link i being true
// is Z*P(i) and of it being false Z - Z*P(i); dividing out the incoming
// message leaves the outgoing one.
func createMessages(f structure, in, out []*fg.VarTensor) {
	li := readInputs(f, in)
	logZ, logMarg := f.linkMarginals(li.logOdds)
	total := logZ + li.sumLogFalse

	for i, m := range out {
		a := m.Algebra()
		beliefTrue := total + logMarg[i]
		beliefFalse := algebra.LogSubtract(total, beliefTrue)
		if math.IsNaN(beliefFalse) {
			beliefFalse = math.Inf(-1)
			negativeBeliefs.Add(1)
			slog.Debug("clamped negative belief of false",
				"factor", f.ID(), "var", f.Vars().Var(i).Name(),
				"total", total, "true", beliefTrue)
			telemetry.RecordBeliefCorrection(context.Background(), factorKind(f))
		}

		if math.IsInf(li.logOdds[i], -1) {
			m.Set(fg.True, a.Zero())
		} else {
			m.Set(fg.True, a.FromLogProb(beliefTrue-li.logTrue[i]))
		}
		m.Set(fg.False, a.FromLogProb(beliefFalse-li.logFalse[i]))
	}
}

// expectedLogBelief returns E_b[log b - log psi]. Since b is psi times the
// incoming messages over Z, the potential cancels and only the expected
// log messages remain. It is +Inf when no structure has any mass.
func expectedLogBelief(f structure, in []*fg.VarTensor) float64 {
	li := readInputs(f, in)
	logZ, logMarg := f.linkMarginals(li.logOdds)
	if li.empty || math.IsInf(logZ, -1) {
		return math.Inf(1)
	}
	e := -(logZ + li.sumLogFalse)
	for i, lm := range logMarg {
		p := min(math.Exp(lm), 1)
		if p > 0 {
			e += p * li.logTrue[i]
		}
		if p < 1 {
			e += (1 - p) * li.logFalse[i]
		}
	}
	return e
}

// linkMarginalTensors returns P(link) as probability tensors, one per var.
func linkMarginalTensors(f structure, in []*fg.VarTensor) []*fg.VarTensor {
	li := readInputs(f, in)
	_, logMarg := f.linkMarginals(li.logOdds)
	vars := f.Vars()
	out := make([]*fg.VarTensor, len(logMarg))
	for i, lm := range logMarg {
		p := min(math.Exp(lm), 1)
		out[i] = fg.NewVarTensorFromValues(algebra.Real, fg.NewVarSet(vars.Var(i)), []float64{1 - p, p})
	}
	return out
}

func factorKind(f fg.Factor) string {
	switch f.(type) {
	case *ProjDepTreeFactor:
		return "proj_dep_tree"
	case *HeadAutomataFactor:
		return "head_automata"
	case *ConstituencyTreeFactor:
		return "constituency_tree"
	}
	return "unknown"
}

// activeLinks decodes a configuration over vars into a per-link flag.
func activeLinks(vars fg.VarSet, config int) []bool {
	states := vars.States(config)
	on := make([]bool, len(states))
	for i, s := range states {
		on[i] = s == fg.True
	}
	return on
}

func logAddTo(dst *float64, x float64) {
	*dst = algebra.LogAdd(*dst, x)
}

func negInfSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.Inf(-1)
	}
	return s
}
