package global

import (
	"fmt"
	"math"

	"github.com/happyhackingspace/fgbp/feature"
	"github.com/happyhackingspace/fgbp/fg"
)

// ConstituencyTreeFactor constrains its span variables to form a binary
// bracketing of an n-word sentence. Variable span_i_j covers words i..j-1;
// width-one spans and the full span belong to every tree.
type ConstituencyTreeFactor struct {
	fg.Base
	n     int
	vars  fg.VarSet
	spans [][]*fg.Var // [i][j], nil unless i < j

	starts []int
	ends   []int
}

// NewConstituencyTreeFactor creates the factor and its n(n+1)/2 span
// variables.
func NewConstituencyTreeFactor(n int, typ fg.VarType) *ConstituencyTreeFactor {
	if n < 1 {
		panic(fmt.Errorf("%w: constituency tree over %d words", fg.ErrIllegalState, n))
	}
	f := &ConstituencyTreeFactor{n: n, spans: make([][]*fg.Var, n+1)}
	var all []*fg.Var
	for i := 0; i <= n; i++ {
		f.spans[i] = make([]*fg.Var, n+1)
		for j := i + 1; j <= n; j++ {
			v := fg.NewBoolVar(typ, fmt.Sprintf("span_%d_%d", i, j))
			f.spans[i][j] = v
			all = append(all, v)
		}
	}
	f.vars = fg.NewVarSet(all...)
	f.starts = make([]int, f.vars.Len())
	f.ends = make([]int, f.vars.Len())
	for i := 0; i <= n; i++ {
		for j := i + 1; j <= n; j++ {
			p := f.vars.IndexOf(f.spans[i][j])
			f.starts[p] = i
			f.ends[p] = j
		}
	}
	return f
}

func (f *ConstituencyTreeFactor) Vars() fg.VarSet { return f.vars }

// Len returns the sentence length.
func (f *ConstituencyTreeFactor) Len() int { return f.n }

// SpanVar returns the variable for words i..j-1.
func (f *ConstituencyTreeFactor) SpanVar(i, j int) *fg.Var { return f.spans[i][j] }

func (f *ConstituencyTreeFactor) UpdateFromModel(*feature.Model) {}

func (f *ConstituencyTreeFactor) AddExpectedPartials(*feature.Model, fg.Inferencer, float64) {}

func (f *ConstituencyTreeFactor) Clamped(cfg *fg.VarConfig) fg.Factor {
	return fg.ClampByEnumeration(f, cfg)
}

// LogUnnormalizedScore is 0 when the active spans form a binary bracketing
// and -Inf otherwise.
func (f *ConstituencyTreeFactor) LogUnnormalizedScore(config int) float64 {
	on := activeLinks(f.vars, config)
	var active [][2]int
	for p, a := range on {
		if a {
			active = append(active, [2]int{f.starts[p], f.ends[p]})
		}
	}
	if !IsBinaryBracketing(f.n, active) {
		return math.Inf(-1)
	}
	return 0
}

// IsBinaryBracketing reports whether spans, given as [start, end) pairs,
// form a full binary tree over n words: the full span and every width-one
// span are present, no two spans cross, and there are exactly 2n-1 spans.
func IsBinaryBracketing(n int, spans [][2]int) bool {
	if len(spans) != 2*n-1 {
		return false
	}
	seen := make(map[[2]int]bool, len(spans))
	for _, s := range spans {
		seen[s] = true
	}
	if !seen[[2]int{0, n}] {
		return false
	}
	for i := range n {
		if !seen[[2]int{i, i + 1}] {
			return false
		}
	}
	for _, a := range spans {
		for _, b := range spans {
			if a[0] < b[0] && b[0] < a[1] && a[1] < b[1] {
				return false
			}
		}
	}
	return true
}

func (f *ConstituencyTreeFactor) CreateMessages(in, out []*fg.VarTensor) {
	createMessages(f, in, out)
}

func (f *ConstituencyTreeFactor) ExpectedLogBelief(in []*fg.VarTensor) float64 {
	return expectedLogBelief(f, in)
}

// SpanMarginals returns P(span) for every variable given incoming messages.
func (f *ConstituencyTreeFactor) SpanMarginals(in []*fg.VarTensor) []*fg.VarTensor {
	return linkMarginalTensors(f, in)
}

// linkMarginals runs CKY inside-outside over span log-weights.
func (f *ConstituencyTreeFactor) linkMarginals(logOdds []float64) (float64, []float64) {
	n := f.n
	w := make([][]float64, n+1)
	beta := make([][]float64, n+1)
	alpha := make([][]float64, n+1)
	for i := range w {
		w[i] = negInfSlice(n + 1)
		beta[i] = negInfSlice(n + 1)
		alpha[i] = negInfSlice(n + 1)
	}
	for p, lo := range logOdds {
		w[f.starts[p]][f.ends[p]] = lo
	}

	for i := range n {
		beta[i][i+1] = w[i][i+1]
	}
	for width := 2; width <= n; width++ {
		for i := 0; i+width <= n; i++ {
			j := i + width
			for k := i + 1; k < j; k++ {
				logAddTo(&beta[i][j], beta[i][k]+beta[k][j])
			}
			beta[i][j] += w[i][j]
		}
	}
	logZ := beta[0][n]

	logMarg := negInfSlice(len(logOdds))
	if math.IsInf(logZ, -1) {
		return logZ, logMarg
	}

	alpha[0][n] = 0
	for width := n; width >= 2; width-- {
		for i := 0; i+width <= n; i++ {
			j := i + width
			o := alpha[i][j] + w[i][j]
			for k := i + 1; k < j; k++ {
				logAddTo(&alpha[i][k], o+beta[k][j])
				logAddTo(&alpha[k][j], o+beta[i][k])
			}
		}
	}

	for p := range logOdds {
		i, j := f.starts[p], f.ends[p]
		logMarg[p] = beta[i][j] + alpha[i][j] - logZ
	}
	return logZ, logMarg
}
