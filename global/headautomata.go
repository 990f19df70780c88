package global

import (
	"fmt"
	"math"

	"github.com/happyhackingspace/fgbp/feature"
	"github.com/happyhackingspace/fgbp/fg"
)

// HeadAutomataFactor scores the sequence of children one head takes on one
// side. Its variables are the head's links on that side; the children it
// selects, read outward from the head, form a path
// START -> c1 -> c2 -> ... -> END and the factor's potential is the product
// of the consecutive-sibling scores along that path.
//
// Trellis states are 0 for START, k for the k-th closest link and K+1 for
// END.
type HeadAutomataFactor struct {
	fg.Base
	head  int
	right bool
	links []*fg.Var
	vars  fg.VarSet

	// pos[k] is the Vars() position of trellis state k, for 1 <= k <= K.
	pos []int
	// scores[a][b] is the log sibling score of moving from a to b.
	scores   [][]float64
	features map[[2]int]feature.Vector
}

// NewHeadAutomataFactor creates a factor over links, given nearest child
// first.
func NewHeadAutomataFactor(head int, right bool, links []*fg.Var) *HeadAutomataFactor {
	k := len(links)
	f := &HeadAutomataFactor{
		head:     head,
		right:    right,
		links:    links,
		vars:     fg.NewVarSet(links...),
		pos:      make([]int, k+1),
		scores:   make([][]float64, k+2),
		features: make(map[[2]int]feature.Vector),
	}
	for s, v := range links {
		f.pos[s+1] = f.vars.IndexOf(v)
	}
	for a := range f.scores {
		f.scores[a] = make([]float64, k+2)
	}
	return f
}

// HeadAutomataLinks returns the links of head on one side of tree, nearest
// child first, ready for NewHeadAutomataFactor.
func HeadAutomataLinks(tree *ProjDepTreeFactor, head int, right bool) []*fg.Var {
	var links []*fg.Var
	if right {
		for m := head + 1; m < tree.Len(); m++ {
			links = append(links, tree.LinkVar(head, m))
		}
		return links
	}
	for m := head - 1; m >= 0; m-- {
		links = append(links, tree.LinkVar(head, m))
	}
	return links
}

func (f *HeadAutomataFactor) Vars() fg.VarSet { return f.vars }

func (f *HeadAutomataFactor) Head() int   { return f.head }
func (f *HeadAutomataFactor) Right() bool { return f.right }

// NumLinks returns K, the number of candidate children.
func (f *HeadAutomataFactor) NumLinks() int { return len(f.links) }

// SetSiblingScore sets the log score of the path stepping from state a to
// state b, 0 <= a < b <= K+1.
func (f *HeadAutomataFactor) SetSiblingScore(a, b int, logScore float64) {
	f.checkPair(a, b)
	f.scores[a][b] = logScore
}

// SiblingScore returns the log score of stepping from a to b.
func (f *HeadAutomataFactor) SiblingScore(a, b int) float64 {
	f.checkPair(a, b)
	return f.scores[a][b]
}

// SetSiblingFeatures makes the score of stepping from a to b the model's
// dot product with v, recomputed on every UpdateFromModel.
func (f *HeadAutomataFactor) SetSiblingFeatures(a, b int, v feature.Vector) {
	f.checkPair(a, b)
	f.features[[2]int{a, b}] = v
}

func (f *HeadAutomataFactor) checkPair(a, b int) {
	if a < 0 || b <= a || b > len(f.links)+1 {
		panic(fmt.Errorf("%w: sibling pair (%d,%d) outside 0..%d", fg.ErrIllegalState, a, b, len(f.links)+1))
	}
}

func (f *HeadAutomataFactor) UpdateFromModel(m *feature.Model) {
	for ab, v := range f.features {
		f.scores[ab[0]][ab[1]] = m.Dot(v)
	}
}

func (f *HeadAutomataFactor) Clamped(cfg *fg.VarConfig) fg.Factor {
	return fg.ClampByEnumeration(f, cfg)
}

// LogUnnormalizedScore sums the sibling scores along the path the
// configuration selects.
func (f *HeadAutomataFactor) LogUnnormalizedScore(config int) float64 {
	on := activeLinks(f.vars, config)
	var s float64
	prev := 0
	for k := 1; k <= len(f.links); k++ {
		if on[f.pos[k]] {
			s += f.scores[prev][k]
			prev = k
		}
	}
	return s + f.scores[prev][len(f.links)+1]
}

func (f *HeadAutomataFactor) CreateMessages(in, out []*fg.VarTensor) {
	createMessages(f, in, out)
}

func (f *HeadAutomataFactor) ExpectedLogBelief(in []*fg.VarTensor) float64 {
	return expectedLogBelief(f, in)
}

// trellis lays out per-state log weights: the link's log-odds for a child
// state, zero for START and END.
func (f *HeadAutomataFactor) trellis(logOdds []float64) ([]float64, trellisResult) {
	k := len(f.links)
	states := make([]float64, k+2)
	for s := 1; s <= k; s++ {
		states[s] = logOdds[f.pos[s]]
	}
	return states, forwardBackward(states, f.scores)
}

func (f *HeadAutomataFactor) linkMarginals(logOdds []float64) (float64, []float64) {
	_, tr := f.trellis(logOdds)
	logMarg := make([]float64, len(logOdds))
	for s := 1; s <= len(f.links); s++ {
		logMarg[f.pos[s]] = tr.stateLogMarginal(s)
	}
	return tr.LogZ, logMarg
}

// AddExpectedPartials adds multiplier times the expected sibling features
// into grad. Pair marginals come from the trellis when inf exposes the
// factor's incoming messages, and from its dense factor belief otherwise.
func (f *HeadAutomataFactor) AddExpectedPartials(grad *feature.Model, inf fg.Inferencer, multiplier float64) {
	if len(f.features) == 0 {
		return
	}
	if src, ok := inf.(fg.MessageSource); ok {
		if in := src.FactorInMessages(f); in != nil {
			li := readInputs(f, in)
			states, tr := f.trellis(li.logOdds)
			for ab, v := range f.features {
				p := math.Exp(tr.transitionLogMarginal(states, f.scores, ab[0], ab[1]))
				if p > 0 {
					grad.AddScaled(v, multiplier*p)
				}
			}
			return
		}
	}

	marg := inf.FactorMarginals(f)
	if marg == nil {
		panic(fmt.Errorf("%w: no belief for head automaton %d", fg.ErrUnsupported, f.ID()))
	}
	end := len(f.links) + 1
	for c, p := range marg.Values() {
		if p == 0 {
			continue
		}
		on := activeLinks(f.vars, c)
		prev := 0
		for k := 1; k <= end; k++ {
			if k < end && !on[f.pos[k]] {
				continue
			}
			if v, ok := f.features[[2]int{prev, k}]; ok {
				grad.AddScaled(v, multiplier*p)
			}
			prev = k
		}
	}
}
