package global

import (
	"fmt"
	"math"

	"github.com/happyhackingspace/fgbp/feature"
	"github.com/happyhackingspace/fgbp/fg"
)

// Wall is the head index of the artificial root.
const Wall = -1

// ProjDepTreeFactor constrains its link variables to form a projective
// dependency tree over an n-word sentence rooted at the wall. Variable
// link_h_m is true when word h (or the wall, h = -1) heads word m.
type ProjDepTreeFactor struct {
	fg.Base
	n          int
	singleRoot bool
	vars       fg.VarSet

	links [][]*fg.Var // [h+1][m], nil on the diagonal
	// heads and mods give, per position in Vars(), the chart indices of
	// the link's head and modifier (word i is chart position i+1).
	heads []int
	mods  []int
}

// NewProjDepTreeFactor creates the factor and its n*n link variables. With
// singleRoot set the wall takes exactly one child.
func NewProjDepTreeFactor(n int, typ fg.VarType, singleRoot bool) *ProjDepTreeFactor {
	if n < 1 {
		panic(fmt.Errorf("%w: dependency tree over %d words", fg.ErrIllegalState, n))
	}
	f := &ProjDepTreeFactor{
		n:          n,
		singleRoot: singleRoot,
		links:      make([][]*fg.Var, n+1),
	}
	var all []*fg.Var
	for h := Wall; h < n; h++ {
		f.links[h+1] = make([]*fg.Var, n)
		for m := range n {
			if h == m {
				continue
			}
			v := fg.NewBoolVar(typ, fmt.Sprintf("link_%d_%d", h, m))
			f.links[h+1][m] = v
			all = append(all, v)
		}
	}
	f.vars = fg.NewVarSet(all...)

	f.heads = make([]int, f.vars.Len())
	f.mods = make([]int, f.vars.Len())
	for h := Wall; h < n; h++ {
		for m := range n {
			if v := f.links[h+1][m]; v != nil {
				i := f.vars.IndexOf(v)
				f.heads[i] = h + 1
				f.mods[i] = m + 1
			}
		}
	}
	return f
}

func (f *ProjDepTreeFactor) Vars() fg.VarSet { return f.vars }

// Len returns the sentence length.
func (f *ProjDepTreeFactor) Len() int { return f.n }

// SingleRoot reports whether the wall is limited to one child.
func (f *ProjDepTreeFactor) SingleRoot() bool { return f.singleRoot }

// LinkVar returns the variable for head h (Wall for the root) and
// modifier m, or nil when h == m.
func (f *ProjDepTreeFactor) LinkVar(h, m int) *fg.Var {
	return f.links[h+1][m]
}

func (f *ProjDepTreeFactor) UpdateFromModel(*feature.Model) {}

func (f *ProjDepTreeFactor) AddExpectedPartials(*feature.Model, fg.Inferencer, float64) {}

func (f *ProjDepTreeFactor) Clamped(cfg *fg.VarConfig) fg.Factor {
	return fg.ClampByEnumeration(f, cfg)
}

// LogUnnormalizedScore is 0 for a configuration that forms a projective
// tree and -Inf otherwise.
func (f *ProjDepTreeFactor) LogUnnormalizedScore(config int) float64 {
	on := activeLinks(f.vars, config)
	parents := make([]int, f.n+1)
	for i := range parents {
		parents[i] = -1
	}
	for i, active := range on {
		if !active {
			continue
		}
		if parents[f.mods[i]] >= 0 {
			return math.Inf(-1)
		}
		parents[f.mods[i]] = f.heads[i]
	}
	if !IsProjectiveTree(parents, f.singleRoot) {
		return math.Inf(-1)
	}
	return 0
}

// IsProjectiveTree reports whether parents, indexed by chart position with
// position 0 the wall, describes a projective tree rooted at the wall.
// parents[0] is ignored; a word without a head fails.
func IsProjectiveTree(parents []int, singleRoot bool) bool {
	n := len(parents) - 1
	roots := 0
	for m := 1; m <= n; m++ {
		if parents[m] < 0 || parents[m] > n || parents[m] == m {
			return false
		}
		if parents[m] == 0 {
			roots++
		}
	}
	if singleRoot && roots != 1 {
		return false
	}
	// Every word must reach the wall.
	for m := 1; m <= n; m++ {
		k, steps := m, 0
		for k != 0 {
			k = parents[k]
			steps++
			if steps > n {
				return false
			}
		}
	}
	// No arc may cross a word its head does not dominate.
	for m := 1; m <= n; m++ {
		h := parents[m]
		lo, hi := min(h, m), max(h, m)
		for k := lo + 1; k < hi; k++ {
			if !dominates(parents, h, k) {
				return false
			}
		}
	}
	return true
}

func dominates(parents []int, h, k int) bool {
	for k != 0 {
		k = parents[k]
		if k == h {
			return true
		}
	}
	return h == 0
}

func (f *ProjDepTreeFactor) CreateMessages(in, out []*fg.VarTensor) {
	createMessages(f, in, out)
}

func (f *ProjDepTreeFactor) ExpectedLogBelief(in []*fg.VarTensor) float64 {
	return expectedLogBelief(f, in)
}

// LinkMarginals returns P(link) for every variable given incoming messages.
func (f *ProjDepTreeFactor) LinkMarginals(in []*fg.VarTensor) []*fg.VarTensor {
	return linkMarginalTensors(f, in)
}

func (f *ProjDepTreeFactor) linkMarginals(logOdds []float64) (float64, []float64) {
	w := make([][]float64, f.n+1)
	for h := range w {
		w[h] = negInfSlice(f.n + 1)
	}
	for i, lo := range logOdds {
		w[f.heads[i]][f.mods[i]] = lo
	}

	ch := insideOutside(w, f.singleRoot)
	logMarg := make([]float64, len(logOdds))
	for i := range logOdds {
		logMarg[i] = ch.arcLogMarginal(f.heads[i], f.mods[i])
	}
	return ch.logZ, logMarg
}
