package fg

// Component is one connected component of the bipartite graph.
type Component struct {
	// Nodes holds bipartite node ids in increasing order.
	Nodes   []int
	Vars    []*Var
	Factors []Factor
	// NumIncidences counts the undirected variable/factor links.
	NumIncidences int
}

// IsTree reports whether the component is acyclic.
func (c Component) IsTree() bool {
	return c.NumIncidences == len(c.Nodes)-1
}

// ConnectedComponents partitions the graph's nodes into connected
// components, ordered by their smallest node id.
func (g *FactorGraph) ConnectedComponents() []Component {
	b := g.Bipartite()
	n := b.NumNodes()

	parent := make([]int, n)
	rank := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(u int) int {
		for parent[u] != u {
			parent[u] = parent[parent[u]]
			u = parent[u]
		}
		return u
	}
	union := func(u, v int) {
		ru, rv := find(u), find(v)
		if ru == rv {
			return
		}
		switch {
		case rank[ru] < rank[rv]:
			parent[ru] = rv
		case rank[ru] > rank[rv]:
			parent[rv] = ru
		default:
			parent[rv] = ru
			rank[ru]++
		}
	}

	for e := 0; e < b.NumEdges(); e += 2 {
		union(b.Source(e), b.Target(e))
	}

	index := make(map[int]int)
	var comps []Component
	for node := range n {
		root := find(node)
		ci, ok := index[root]
		if !ok {
			ci = len(comps)
			index[root] = ci
			comps = append(comps, Component{})
		}
		c := &comps[ci]
		c.Nodes = append(c.Nodes, node)
		if b.IsVarNode(node) {
			c.Vars = append(c.Vars, g.vars[node])
		} else {
			c.Factors = append(c.Factors, g.factors[node-b.numVars])
		}
	}
	for e := 0; e < b.NumEdges(); e += 2 {
		comps[index[find(b.Source(e))]].NumIncidences++
	}
	return comps
}

// IsAcyclic reports whether every component is a tree.
func (g *FactorGraph) IsAcyclic() bool {
	for _, c := range g.ConnectedComponents() {
		if !c.IsTree() {
			return false
		}
	}
	return true
}
