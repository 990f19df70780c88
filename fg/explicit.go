package fg

import (
	"github.com/happyhackingspace/fgbp/algebra"
	"github.com/happyhackingspace/fgbp/feature"
)

// ExplicitFactor is a factor backed by a dense potential table.
type ExplicitFactor struct {
	Base
	*VarTensor
}

// NewExplicitFactor creates a factor over vars with every potential One in
// algebra a.
func NewExplicitFactor(a algebra.Algebra, vars VarSet) *ExplicitFactor {
	return &ExplicitFactor{VarTensor: NewVarTensor(a, vars, a.One())}
}

// NewExplicitFactorFromTensor wraps an existing table.
func NewExplicitFactorFromTensor(t *VarTensor) *ExplicitFactor {
	return &ExplicitFactor{VarTensor: t}
}

// Tensor returns the backing table.
func (f *ExplicitFactor) Tensor() *VarTensor { return f.VarTensor }

func (f *ExplicitFactor) Clamped(cfg *VarConfig) Factor {
	return NewExplicitFactorFromTensor(f.Clamp(cfg))
}

func (f *ExplicitFactor) UpdateFromModel(*feature.Model) {}

func (f *ExplicitFactor) LogUnnormalizedScore(config int) float64 {
	return f.alg.ToLogProb(f.values[config])
}

func (f *ExplicitFactor) AddExpectedPartials(*feature.Model, Inferencer, float64) {}

// SetStates sets the potential of the configuration given by one state per
// variable in canonical order.
func (f *ExplicitFactor) SetStates(states []int, v float64) {
	f.values[f.vars.Index(states)] = v
}

// SetAssignment sets the potential of a configuration given variable by
// variable, independent of canonical order.
func (f *ExplicitFactor) SetAssignment(cfg *VarConfig, v float64) {
	f.values[cfg.ConfigIndexOf(f.vars)] = v
}
