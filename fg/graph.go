package fg

import (
	"github.com/happyhackingspace/fgbp/algebra"
	"github.com/happyhackingspace/fgbp/feature"
)

// FactorGraph owns append-only lists of variables and factors. A variable's
// or factor's id is its index in the owning list.
//
// The bipartite adjacency is built on first access and dropped whenever a
// variable or factor is added: mutate the graph first, then run inference.
// A FactorGraph is not safe for concurrent mutation.
type FactorGraph struct {
	vars    []*Var
	factors []Factor

	bg *Bipartite
}

// New returns an empty graph.
func New() *FactorGraph {
	return &FactorGraph{}
}

// AddVar adds v if it is not already present. It panics if v already
// carries an id that does not match its slot in this graph.
func (g *FactorGraph) AddVar(v *Var) {
	id := v.ID()
	switch {
	case id < 0:
		v.id = len(g.vars) + 1
	case id < len(g.vars) && g.vars[id] == v:
		return
	case id == len(g.vars):
		// Same slot in a graph that shares this graph's prefix.
	default:
		illegalState("variable %s has id %d, cannot add at index %d", v.name, id, len(g.vars))
	}
	g.vars = append(g.vars, v)
	g.bg = nil
}

// AddFactor adds f and any of its variables not yet present.
func (g *FactorGraph) AddFactor(f Factor) {
	id := f.ID()
	if id >= 0 && id < len(g.factors) && g.factors[id] == f {
		return
	}
	if id >= 0 && id != len(g.factors) {
		illegalState("factor has id %d, cannot add at index %d", id, len(g.factors))
	}
	vars := f.Vars()
	for _, v := range vars.vars {
		g.AddVar(v)
	}
	if id < 0 {
		f.SetID(len(g.factors))
	}
	g.factors = append(g.factors, f)
	g.bg = nil
}

func (g *FactorGraph) NumVars() int    { return len(g.vars) }
func (g *FactorGraph) NumFactors() int { return len(g.factors) }

// Var returns the variable with id i.
func (g *FactorGraph) Var(i int) *Var { return g.vars[i] }

// Factor returns the factor with id i.
func (g *FactorGraph) Factor(i int) Factor { return g.factors[i] }

// Vars returns a copy of the variable list.
func (g *FactorGraph) Vars() []*Var { return append([]*Var(nil), g.vars...) }

// Factors returns a copy of the factor list.
func (g *FactorGraph) Factors() []Factor { return append([]Factor(nil), g.factors...) }

// VarByName returns the first variable named name, or nil.
func (g *FactorGraph) VarByName(name string) *Var {
	for _, v := range g.vars {
		if v.name == name {
			return v
		}
	}
	return nil
}

// Contains reports whether v belongs to this graph.
func (g *FactorGraph) Contains(v *Var) bool {
	id := v.ID()
	return id >= 0 && id < len(g.vars) && g.vars[id] == v
}

// NumEdges returns the number of directed message edges, twice the sum of
// the factor arities.
func (g *FactorGraph) NumEdges() int {
	return g.Bipartite().NumEdges()
}

// UpdateFromModel recomputes every parametric factor from m. It must finish
// before any inference run over this graph starts.
func (g *FactorGraph) UpdateFromModel(m *feature.Model) {
	for _, f := range g.factors {
		f.UpdateFromModel(m)
	}
}

// Clamped returns a new graph sharing this graph's variables and factors,
// plus one unary factor per variable in cfg that puts all its mass on the
// assigned state. The original factors keep their ids.
func (g *FactorGraph) Clamped(cfg *VarConfig) *FactorGraph {
	out := &FactorGraph{
		vars:    append([]*Var(nil), g.vars...),
		factors: append([]Factor(nil), g.factors...),
	}
	for _, v := range g.vars {
		s, ok := cfg.State(v)
		if !ok {
			continue
		}
		clamp := NewExplicitFactor(algebra.Real, NewVarSet(v))
		clamp.Fill(0)
		clamp.Set(s, 1)
		out.AddFactor(clamp)
	}
	return out
}

// LogUnnormalizedScore returns the sum of every factor's log score under
// a full assignment.
func (g *FactorGraph) LogUnnormalizedScore(cfg *VarConfig) float64 {
	var s float64
	for _, f := range g.factors {
		s += f.LogUnnormalizedScore(cfg.ConfigIndexOf(f.Vars()))
	}
	return s
}

// Bipartite returns the adjacency structure, building it if the graph
// changed since the last call.
func (g *FactorGraph) Bipartite() *Bipartite {
	if g.bg == nil {
		g.bg = newBipartite(g)
	}
	return g.bg
}
