package fg

import (
	"math"
	"sync"

	"github.com/happyhackingspace/fgbp/algebra"
	"github.com/happyhackingspace/fgbp/feature"
)

// FeatureExtractor supplies the feature vector of one configuration of an
// exponential-family factor.
type FeatureExtractor interface {
	Features(f *ExpFamFactor, config int) feature.Vector
}

// FeatureFunc adapts a function to FeatureExtractor.
type FeatureFunc func(config int) feature.Vector

func (fn FeatureFunc) Features(_ *ExpFamFactor, config int) feature.Vector { return fn(config) }

// ObsFeatureExtractor conjoins a fixed vector of observation features with
// the factor configuration: observation feature i fires in configuration c
// as model feature c*NumObsFeatures + i.
type ObsFeatureExtractor struct {
	Obs            feature.Vector
	NumObsFeatures int
}

func (e ObsFeatureExtractor) Features(_ *ExpFamFactor, config int) feature.Vector {
	return e.Obs.Offset(config * e.NumObsFeatures)
}

// ExpFamFactor scores configuration c as exp(w · f(c)). Scores are computed
// on first use and cached per configuration until the next UpdateFromModel.
type ExpFamFactor struct {
	Base
	vars      VarSet
	extractor FeatureExtractor

	mu     sync.Mutex
	model  *feature.Model
	scores []float64
	cached []bool
}

// NewExpFamFactor creates an exponential-family factor over vars.
func NewExpFamFactor(vars VarSet, extractor FeatureExtractor) *ExpFamFactor {
	n := vars.NumConfigs()
	return &ExpFamFactor{
		vars:      vars,
		extractor: extractor,
		scores:    make([]float64, n),
		cached:    make([]bool, n),
	}
}

func (f *ExpFamFactor) Vars() VarSet { return f.vars }

// UpdateFromModel installs new weights and drops every cached score.
func (f *ExpFamFactor) UpdateFromModel(m *feature.Model) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = m
	clear(f.cached)
}

// Features returns the feature vector of configuration config.
func (f *ExpFamFactor) Features(config int) feature.Vector {
	return f.extractor.Features(f, config)
}

func (f *ExpFamFactor) LogUnnormalizedScore(config int) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scoreLocked(config)
}

func (f *ExpFamFactor) scoreLocked(config int) float64 {
	if f.model == nil {
		illegalState("factor %d scored before UpdateFromModel", f.ID())
	}
	if !f.cached[config] {
		f.scores[config] = f.model.Dot(f.extractor.Features(f, config))
		f.cached[config] = true
	}
	return f.scores[config]
}

// Tensor materializes every configuration's score as a log-domain table.
func (f *ExpFamFactor) Tensor() *VarTensor {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := NewVarTensor(algebra.Log, f.vars, math.Inf(-1))
	for c := range t.values {
		t.values[c] = f.scoreLocked(c)
	}
	return t
}

func (f *ExpFamFactor) Clamped(cfg *VarConfig) Factor {
	return NewExplicitFactorFromTensor(f.Tensor().Clamp(cfg))
}

// AddExpectedPartials adds multiplier * sum_c P(c) f(c) into grad, with
// P taken from inf's marginal over this factor.
func (f *ExpFamFactor) AddExpectedPartials(grad *feature.Model, inf Inferencer, multiplier float64) {
	marg := inf.FactorMarginals(f)
	if marg == nil {
		illegalState("inferencer has no marginals for factor %d", f.ID())
	}
	for c, p := range marg.Values() {
		if p == 0 {
			continue
		}
		grad.AddScaled(f.extractor.Features(f, c), multiplier*p)
	}
}
