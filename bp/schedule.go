package bp

import (
	"cmp"
	"math/rand/v2"
	"slices"

	"github.com/happyhackingspace/fgbp/fg"
)

// Item is one step of a schedule: either a single directed edge, or a
// global factor that recomputes all of its outgoing messages at once.
type Item struct {
	Edge   int // -1 for a global factor item
	Factor int // global factor id, or -1
}

func (it Item) isGlobal() bool { return it.Edge < 0 }

// Scheduler produces the order of one sweep.
type Scheduler interface {
	Sweep() []Item
}

// collapse replaces the outgoing edges of each global factor with one item
// placed where the first of them appears, per pass.
func collapse(bg *fg.Bipartite, edges []int) []Item {
	items := make([]Item, 0, len(edges))
	seen := make(map[int]bool)
	for _, e := range edges {
		ed := bg.Edge(e)
		if _, ok := ed.Factor.(fg.GlobalFactor); ok && !ed.VarToFactor {
			id := ed.Factor.ID()
			if !seen[id] {
				seen[id] = true
				items = append(items, Item{Edge: -1, Factor: id})
			}
			continue
		}
		items = append(items, Item{Edge: e, Factor: -1})
	}
	return items
}

// TreeLikeSchedule orders nodes breadth-first from the lowest node of each
// connected component. The upward pass sends every message that moves
// toward the root, deepest sender first; the downward pass sends the rest,
// shallowest sender first. On an acyclic component one sweep delivers
// exact messages.
type TreeLikeSchedule struct {
	items []Item
}

// NewTreeLikeSchedule builds the schedule for g.
func NewTreeLikeSchedule(g *fg.FactorGraph) *TreeLikeSchedule {
	bg := g.Bipartite()
	order := bfsOrder(bg)

	var up, down []int
	for e := range bg.NumEdges() {
		if order[bg.Target(e)] < order[bg.Source(e)] {
			up = append(up, e)
		} else {
			down = append(down, e)
		}
	}
	slices.SortStableFunc(up, func(a, b int) int {
		return cmp.Compare(order[bg.Source(b)], order[bg.Source(a)])
	})
	slices.SortStableFunc(down, func(a, b int) int {
		return cmp.Compare(order[bg.Source(a)], order[bg.Source(b)])
	})

	items := collapse(bg, up)
	items = append(items, collapse(bg, down)...)
	return &TreeLikeSchedule{items: items}
}

func (s *TreeLikeSchedule) Sweep() []Item { return s.items }

// bfsOrder numbers every node by breadth-first visit, one component after
// another.
func bfsOrder(bg *fg.Bipartite) []int {
	n := bg.NumNodes()
	order := make([]int, n)
	for i := range order {
		order[i] = -1
	}
	next := 0
	queue := make([]int, 0, n)
	for root := range n {
		if order[root] >= 0 {
			continue
		}
		order[root] = next
		next++
		queue = append(queue[:0], root)
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			for _, e := range bg.OutEdges(u) {
				v := bg.Target(e)
				if order[v] < 0 {
					order[v] = next
					next++
					queue = append(queue, v)
				}
			}
		}
	}
	return order
}

// RandomSchedule visits every edge once per sweep in a seeded random order.
type RandomSchedule struct {
	items []Item
	rng   *rand.Rand
}

// NewRandomSchedule builds the schedule for g. Equal seeds give equal
// sweep sequences.
func NewRandomSchedule(g *fg.FactorGraph, seed int64) *RandomSchedule {
	bg := g.Bipartite()
	edges := make([]int, bg.NumEdges())
	for e := range edges {
		edges[e] = e
	}
	return &RandomSchedule{
		items: collapse(bg, edges),
		rng:   rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15)),
	}
}

func (s *RandomSchedule) Sweep() []Item {
	out := slices.Clone(s.items)
	s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
