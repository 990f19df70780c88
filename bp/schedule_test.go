package bp

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/fgbp/fg"
)

func TestTreeLikeScheduleCoversEveryEdgeOnce(t *testing.T) {
	g, _ := chainGraph()
	items := NewTreeLikeSchedule(g).Sweep()
	require.Len(t, items, g.NumEdges())

	var edges []int
	for _, it := range items {
		require.False(t, it.isGlobal())
		edges = append(edges, it.Edge)
	}
	slices.Sort(edges)
	for e := range g.NumEdges() {
		assert.Equal(t, e, edges[e])
	}
}

func incoming(bg *fg.Bipartite, node int) []int {
	if bg.IsVarNode(node) {
		return bg.VarIn(node)
	}
	return bg.FactorIn(node - bg.NumVars())
}

func TestTreeLikeScheduleRespectsDependencies(t *testing.T) {
	g, _ := chainGraph()
	bg := g.Bipartite()
	items := NewTreeLikeSchedule(g).Sweep()

	// On a tree every message is sent after all the messages it is
	// computed from.
	sent := make(map[int]bool)
	for _, it := range items {
		e := it.Edge
		for _, in := range incoming(bg, bg.Source(e)) {
			if in != bg.Opposite(e) {
				assert.True(t, sent[in], "edge %d sent before its input %d", e, in)
			}
		}
		sent[e] = true
	}
}

func TestRandomScheduleIsPermutation(t *testing.T) {
	g := triangle()
	s := NewRandomSchedule(g, 3)
	a := s.Sweep()
	b := s.Sweep()
	require.Len(t, a, g.NumEdges())
	require.Len(t, b, g.NumEdges())
	assert.ElementsMatch(t, a, b)

	again := NewRandomSchedule(g, 3).Sweep()
	assert.Equal(t, a, again)
}
