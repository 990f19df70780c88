package fg

// Edge is one directed message edge between a variable and a factor.
type Edge struct {
	ID     int
	Var    *Var
	Factor Factor
	// Position is the index of Var in Factor.Vars().
	Position    int
	VarToFactor bool
}

// Bipartite is the variable/factor incidence structure of a graph. Node
// ids put variables first: variable i is node i, factor j is node
// NumVars()+j.
//
// Every incidence k (factor j, position p) owns two edges: 2k carries the
// factor-to-variable message and 2k+1 the variable-to-factor message.
type Bipartite struct {
	numVars    int
	numFactors int
	edges      []Edge

	varIn     [][]int
	varOut    [][]int
	factorIn  [][]int
	factorOut [][]int
}

func newBipartite(g *FactorGraph) *Bipartite {
	b := &Bipartite{
		numVars:    len(g.vars),
		numFactors: len(g.factors),
		varIn:      make([][]int, len(g.vars)),
		varOut:     make([][]int, len(g.vars)),
		factorIn:   make([][]int, len(g.factors)),
		factorOut:  make([][]int, len(g.factors)),
	}
	for j, f := range g.factors {
		for p, v := range f.Vars().vars {
			toVar := len(b.edges)
			b.edges = append(b.edges,
				Edge{ID: toVar, Var: v, Factor: f, Position: p},
				Edge{ID: toVar + 1, Var: v, Factor: f, Position: p, VarToFactor: true},
			)
			i := v.ID()
			b.varIn[i] = append(b.varIn[i], toVar)
			b.varOut[i] = append(b.varOut[i], toVar+1)
			b.factorIn[j] = append(b.factorIn[j], toVar+1)
			b.factorOut[j] = append(b.factorOut[j], toVar)
		}
	}
	return b
}

func (b *Bipartite) NumEdges() int   { return len(b.edges) }
func (b *Bipartite) NumVars() int    { return b.numVars }
func (b *Bipartite) NumFactors() int { return b.numFactors }
func (b *Bipartite) NumNodes() int   { return b.numVars + b.numFactors }

// Edge returns edge e.
func (b *Bipartite) Edge(e int) Edge { return b.edges[e] }

// Opposite returns the edge carrying the reverse message.
func (b *Bipartite) Opposite(e int) int { return e ^ 1 }

// VarIn lists the factor-to-variable edges into variable i.
func (b *Bipartite) VarIn(i int) []int { return b.varIn[i] }

// VarOut lists the variable-to-factor edges out of variable i.
func (b *Bipartite) VarOut(i int) []int { return b.varOut[i] }

// FactorIn lists the variable-to-factor edges into factor j, in Vars() order.
func (b *Bipartite) FactorIn(j int) []int { return b.factorIn[j] }

// FactorOut lists the factor-to-variable edges out of factor j, in Vars() order.
func (b *Bipartite) FactorOut(j int) []int { return b.factorOut[j] }

// IsVarNode reports whether node n is a variable.
func (b *Bipartite) IsVarNode(n int) bool { return n < b.numVars }

// OutEdges lists the edges leaving node n.
func (b *Bipartite) OutEdges(n int) []int {
	if b.IsVarNode(n) {
		return b.varOut[n]
	}
	return b.factorOut[n-b.numVars]
}

// Source returns the node an edge leaves.
func (b *Bipartite) Source(e int) int {
	ed := b.edges[e]
	if ed.VarToFactor {
		return ed.Var.ID()
	}
	return b.numVars + ed.Factor.ID()
}

// Target returns the node an edge enters.
func (b *Bipartite) Target(e int) int {
	return b.Source(e ^ 1)
}
