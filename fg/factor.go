package fg

import (
	"math"

	"github.com/happyhackingspace/fgbp/algebra"
	"github.com/happyhackingspace/fgbp/feature"
)

// Factor is a non-negative function over the configurations of its
// variables.
type Factor interface {
	// ID returns the factor's index in its graph, or -1 before it is added.
	ID() int
	// SetID is called once by FactorGraph.AddFactor.
	SetID(id int)

	Vars() VarSet

	// Clamped returns the factor restricted to the configurations
	// consistent with cfg, over the variables cfg leaves free.
	Clamped(cfg *VarConfig) Factor

	// UpdateFromModel recomputes the potentials from model weights. It is a
	// no-op for factors without parameters.
	UpdateFromModel(m *feature.Model)

	// LogUnnormalizedScore returns the log potential of configuration
	// index config over Vars(). Configurations the factor forbids score
	// -Inf.
	LogUnnormalizedScore(config int) float64

	// AddExpectedPartials adds multiplier times the expected feature
	// counts under inf's belief about this factor into grad. It is a no-op
	// for factors without parameters.
	AddExpectedPartials(grad *feature.Model, inf Inferencer, multiplier float64)
}

// GlobalFactor is a structured factor whose messages come from a dynamic
// program instead of enumerating its table.
type GlobalFactor interface {
	Factor

	// CreateMessages fills out[i], the message to Vars().Var(i), from the
	// incoming messages in[i]. Both slices follow Vars() order and every
	// out tensor is preallocated in the algebra the caller computes in.
	// Implementations must be deterministic and free of side effects other
	// than writing out.
	CreateMessages(in, out []*VarTensor)

	// ExpectedLogBelief returns E_b[log b(x) - log psi(x)] where b is the
	// factor belief induced by in. Belief propagation uses it for the Bethe
	// free energy.
	ExpectedLogBelief(in []*VarTensor) float64
}

// DenseFactor is a factor that can hand out its full potential table.
type DenseFactor interface {
	Factor
	Tensor() *VarTensor
}

// Base carries the graph-assigned id. Embed it in factor implementations.
type Base struct {
	// id is the graph index plus one so the zero value means unassigned.
	id int
}

func (b *Base) ID() int { return b.id - 1 }

func (b *Base) SetID(id int) {
	if b.id != 0 && b.id != id+1 {
		illegalState("factor already has id %d, cannot reassign %d", b.id-1, id)
	}
	b.id = id + 1
}

// Potentials returns f's table in algebra a. Dense factors convert their
// tensor; anything else is enumerated through LogUnnormalizedScore.
func Potentials(f Factor, a algebra.Algebra) *VarTensor {
	if d, ok := f.(DenseFactor); ok {
		return d.Tensor().Convert(a)
	}
	vars := f.Vars()
	t := NewVarTensor(a, vars, a.Zero())
	for c := range t.values {
		t.values[c] = a.FromLogProb(f.LogUnnormalizedScore(c))
	}
	return t
}

// ClampByEnumeration implements Factor.Clamped for any factor by scoring
// every configuration. The result is an ExplicitFactor in the log domain.
func ClampByEnumeration(f Factor, cfg *VarConfig) Factor {
	full := NewVarTensor(algebra.Log, f.Vars(), math.Inf(-1))
	for c := range full.values {
		full.values[c] = f.LogUnnormalizedScore(c)
	}
	return NewExplicitFactorFromTensor(full.Clamp(cfg))
}
