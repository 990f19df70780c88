package bp

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/fgbp/algebra"
	"github.com/happyhackingspace/fgbp/bruteforce"
	"github.com/happyhackingspace/fgbp/fg"
)

func setPair(f *fg.ExplicitFactor, a, b *fg.Var, table map[[2]int]float64) {
	for st, v := range table {
		cfg := fg.NewVarConfig()
		cfg.Put(a, st[0])
		cfg.Put(b, st[1])
		f.SetAssignment(cfg, v)
	}
}

// chainGraph builds three tag variables with emission and transition
// factors. Its partition function is 0.5933.
func chainGraph() (*fg.FactorGraph, []*fg.Var) {
	g := fg.New()
	tags := make([]*fg.Var, 3)
	for i := range tags {
		tags[i] = fg.NewVar(fg.Predicted, 2, fmt.Sprintf("t%d", i), []string{"N", "V"})
	}

	emit := [][]float64{{0.1, 0.9}, {0.3, 0.7}, {0.5, 0.5}}
	for i, e := range emit {
		f := fg.NewExplicitFactor(algebra.Real, fg.NewVarSet(tags[i]))
		f.Set(0, e[0])
		f.Set(1, e[1])
		g.AddFactor(f)
	}

	tran0 := fg.NewExplicitFactor(algebra.Real, fg.NewVarSet(tags[0], tags[1]))
	setPair(tran0, tags[0], tags[1], map[[2]int]float64{{0, 0}: 0.2, {1, 0}: 0.3, {0, 1}: 0.4, {1, 1}: 0.5})
	g.AddFactor(tran0)

	tran1 := fg.NewExplicitFactor(algebra.Real, fg.NewVarSet(tags[1], tags[2]))
	setPair(tran1, tags[1], tags[2], map[[2]int]float64{{0, 0}: 1.2, {1, 0}: 1.3, {0, 1}: 1.4, {1, 1}: 1.5})
	g.AddFactor(tran1)

	return g, tags
}

func runBP(t *testing.T, g *fg.FactorGraph, cfg Config) *BeliefPropagation {
	t.Helper()
	inf, err := New(g, cfg)
	require.NoError(t, err)
	inf.Run()
	return inf
}

func TestChainMarginals(t *testing.T) {
	for _, kind := range []algebra.Kind{algebra.KindReal, algebra.KindLog, algebra.KindLogTable} {
		for _, normalize := range []bool{true, false} {
			t.Run(fmt.Sprintf("%s/normalize=%v", kind, normalize), func(t *testing.T) {
				g, tags := chainGraph()
				cfg := DefaultConfig()
				cfg.Algebra = kind
				cfg.NormalizeMessages = normalize

				inf := runBP(t, g, cfg)
				assert.True(t, inf.IsConverged())
				assert.Equal(t, Converged, inf.Status())
				assert.Equal(t, 1, inf.Iterations())

				assert.InDelta(t, 0.5933, inf.Partition(), 1e-6)
				assert.InDelta(t, math.Log(0.5933), inf.LogPartition(), 1e-6)
				want := []float64{0.9207820664082252, 0.8093713129951122, 0.5362379908983652}
				for i, v := range tags {
					m := inf.Marginals(v)
					assert.InDelta(t, want[i], m.Get(1), 1e-6, "P(%s=V)", v.Name())
					assert.InDelta(t, 1-want[i], m.Get(0), 1e-6)

					lm := inf.LogMarginals(v)
					assert.InDelta(t, math.Log(want[i]), lm.Get(1), 1e-6)
				}
			})
		}
	}
}

func TestChainFactorMarginals(t *testing.T) {
	g, _ := chainGraph()
	for _, cache := range []bool{true, false} {
		cfg := DefaultConfig()
		cfg.CacheFactorBeliefs = cache
		inf := runBP(t, g, cfg)

		oracle := bruteforce.New(g, algebra.Log)
		oracle.Run()
		for _, f := range g.Factors() {
			got := inf.FactorMarginals(f)
			require.NotNil(t, got)
			want := oracle.FactorMarginals(f)
			assert.InDeltaSlice(t, want.Values(), got.Values(), 1e-10)
		}
	}
}

// randomTree builds a bipartite-acyclic graph mixing unary, pairwise and
// ternary factors, two connected components and an isolated variable.
func randomTree(rng *rand.Rand) *fg.FactorGraph {
	g := fg.New()
	vars := make([]*fg.Var, 10)
	for i := range vars {
		states := 2
		if i < 5 {
			states = 3
		}
		vars[i] = fg.NewVar(fg.Predicted, states, fmt.Sprintf("v%d", i), nil)
	}
	randomFactor := func(vs ...*fg.Var) {
		f := fg.NewExplicitFactor(algebra.Real, fg.NewVarSet(vs...))
		for c := range f.Size() {
			f.Set(c, 0.1+rng.Float64()*2)
		}
		g.AddFactor(f)
	}
	for _, v := range vars[:9] {
		randomFactor(v)
	}
	randomFactor(vars[0], vars[1])
	randomFactor(vars[0], vars[2])
	randomFactor(vars[1], vars[3])
	randomFactor(vars[1], vars[4])
	randomFactor(vars[2], vars[5])
	randomFactor(vars[5], vars[6], vars[7])
	g.AddVar(vars[9])
	return g
}

func TestTreeMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := range 3 {
		g := randomTree(rng)
		require.True(t, g.IsAcyclic())

		oracle := bruteforce.New(g, algebra.Log)
		oracle.Run()

		for _, kind := range []algebra.Kind{algebra.KindReal, algebra.KindLog} {
			cfg := DefaultConfig()
			cfg.Algebra = kind
			inf := runBP(t, g, cfg)
			tol := 1e-10
			if kind == algebra.KindReal {
				tol = 1e-6
			}

			assert.InDelta(t, oracle.LogPartition(), inf.LogPartition(), tol, "trial %d %s", trial, kind)
			for _, v := range g.Vars() {
				assert.InDeltaSlice(t, oracle.Marginals(v).Values(), inf.Marginals(v).Values(), tol,
					"trial %d %s %s", trial, kind, v.Name())
			}
		}
	}
}

func TestParallelTreeConvergesToExact(t *testing.T) {
	g, tags := chainGraph()
	cfg := DefaultConfig()
	cfg.UpdateOrder = Parallel
	cfg.ConvergenceThreshold = 0

	inf := runBP(t, g, cfg)
	require.True(t, inf.IsConverged())
	assert.Greater(t, inf.Iterations(), 1)
	assert.InDelta(t, 0.9207820664082252, inf.Marginals(tags[0]).Get(1), 1e-10)
	assert.InDelta(t, 0.5933, inf.Partition(), 1e-10)
}

func TestClampEmptyIsIdentity(t *testing.T) {
	g, tags := chainGraph()
	base := runBP(t, g, DefaultConfig())
	clamped := runBP(t, g.Clamped(fg.NewVarConfig()), DefaultConfig())

	assert.InDelta(t, base.LogPartition(), clamped.LogPartition(), 1e-12)
	for _, v := range tags {
		assert.InDeltaSlice(t, base.Marginals(v).Values(), clamped.Marginals(v).Values(), 1e-12)
	}
}

func TestClampAll(t *testing.T) {
	g, tags := chainGraph()
	cfg := fg.NewVarConfig()
	cfg.Put(tags[0], 1)
	cfg.Put(tags[1], 0)
	cfg.Put(tags[2], 1)

	for _, kind := range []algebra.Kind{algebra.KindReal, algebra.KindLog} {
		bcfg := DefaultConfig()
		bcfg.Algebra = kind
		inf := runBP(t, g.Clamped(cfg), bcfg)

		assert.InDelta(t, 0.9*0.3*0.5*0.3*1.4, inf.Partition(), 1e-10)
		assert.InDelta(t, g.LogUnnormalizedScore(cfg), inf.LogPartition(), 1e-10)
		for _, v := range tags {
			s, _ := cfg.State(v)
			assert.InDelta(t, 1.0, inf.Marginals(v).Get(s), 1e-12)
		}
	}
}

// triangle builds a loopy graph of three binary variables.
func triangle() *fg.FactorGraph {
	g := fg.New()
	a := fg.NewBoolVar(fg.Predicted, "a")
	b := fg.NewBoolVar(fg.Predicted, "b")
	c := fg.NewBoolVar(fg.Predicted, "c")
	pair := func(x, y *fg.Var, same, diff float64) {
		f := fg.NewExplicitFactor(algebra.Real, fg.NewVarSet(x, y))
		setPair(f, x, y, map[[2]int]float64{{0, 0}: same, {1, 1}: same, {0, 1}: diff, {1, 0}: diff})
		g.AddFactor(f)
	}
	unary := fg.NewExplicitFactor(algebra.Real, fg.NewVarSet(a))
	unary.Set(0, 0.3)
	unary.Set(1, 0.7)
	g.AddFactor(unary)
	pair(a, b, 1.5, 1)
	pair(b, c, 1.2, 1)
	pair(a, c, 1, 1.3)
	return g
}

func TestLoopyConvergenceMonotone(t *testing.T) {
	prev := math.MaxInt
	for _, threshold := range []float64{1e-12, 1e-8, 1e-4, 1e-2, 1} {
		cfg := DefaultConfig()
		cfg.UpdateOrder = Parallel
		cfg.MaxIterations = 1000
		cfg.ConvergenceThreshold = threshold

		inf := runBP(t, triangle(), cfg)
		require.True(t, inf.IsConverged(), "threshold %g", threshold)
		assert.LessOrEqual(t, inf.Delta(), threshold)
		assert.LessOrEqual(t, inf.Iterations(), prev, "threshold %g", threshold)
		prev = inf.Iterations()
	}
}

func TestLoopyGraphIsApproximate(t *testing.T) {
	g := triangle()
	require.False(t, g.IsAcyclic())

	cfg := DefaultConfig()
	cfg.MaxIterations = 500
	inf := runBP(t, g, cfg)
	require.True(t, inf.IsConverged())
	assert.Greater(t, inf.Iterations(), 1)

	oracle := bruteforce.New(g, algebra.Log)
	oracle.Run()
	for _, v := range g.Vars() {
		assert.InDeltaSlice(t, oracle.Marginals(v).Values(), inf.Marginals(v).Values(), 0.05)
	}
}

func TestMaxIterationsReached(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UpdateOrder = Parallel
	cfg.MaxIterations = 2
	cfg.ConvergenceThreshold = 0

	inf := runBP(t, triangle(), cfg)
	assert.False(t, inf.IsConverged())
	assert.Equal(t, MaxItersReached, inf.Status())
	assert.Equal(t, 2, inf.Iterations())
	assert.NotPanics(t, func() { inf.Marginals(inf.graph.Var(0)) })
}

func TestRandomScheduleIsSeeded(t *testing.T) {
	g := triangle()
	cfg := DefaultConfig()
	cfg.Schedule = Random
	cfg.Seed = 42
	cfg.MaxIterations = 500

	first := runBP(t, g, cfg)
	second := runBP(t, g, cfg)
	require.True(t, first.IsConverged())
	assert.Equal(t, first.Iterations(), second.Iterations())
	m1, m2 := first.Messages(), second.Messages()
	require.Len(t, m2, len(m1))
	for e := range m1 {
		assert.Equal(t, m1[e].Values(), m2[e].Values(), "edge %d", e)
	}
}

func TestRandomScheduleOnTree(t *testing.T) {
	g, tags := chainGraph()
	cfg := DefaultConfig()
	cfg.Schedule = Random
	cfg.ConvergenceThreshold = 1e-12

	inf := runBP(t, g, cfg)
	require.True(t, inf.IsConverged())
	assert.InDelta(t, 0.9207820664082252, inf.Marginals(tags[0]).Get(1), 1e-9)
	assert.InDelta(t, 0.5933, inf.Partition(), 1e-9)
}

func TestReadBeforeRunPanics(t *testing.T) {
	g, tags := chainGraph()
	inf, err := New(g, DefaultConfig())
	require.NoError(t, err)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrNotRun))
		assert.True(t, errors.Is(err, fg.ErrIllegalState))
	}()
	inf.LogMarginals(tags[0])
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	g, _ := chainGraph()
	cfg := DefaultConfig()
	cfg.MaxIterations = 0
	_, err := New(g, cfg)
	require.Error(t, err)
}

func TestNaNMessagePanics(t *testing.T) {
	g := fg.New()
	a := fg.NewBoolVar(fg.Predicted, "a")
	f := fg.NewExplicitFactor(algebra.Real, fg.NewVarSet(a))
	f.Set(0, math.NaN())
	g.AddFactor(f)

	inf, err := New(g, DefaultConfig())
	require.NoError(t, err)
	assert.Panics(t, inf.Run)
}

func TestIsolatedVariable(t *testing.T) {
	g := fg.New()
	v := fg.NewVar(fg.Latent, 4, "lonely", nil)
	g.AddVar(v)

	inf := runBP(t, g, DefaultConfig())
	assert.InDelta(t, math.Log(4), inf.LogPartition(), 1e-12)
	assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25, 0.25}, inf.Marginals(v).Values(), 1e-12)
}

func TestImpossibleGraphHasZeroPartition(t *testing.T) {
	// a alone with no mass, then a and b each forced on by their unaries
	// while their pair factor forbids both on.
	single := func() *fg.FactorGraph {
		g := fg.New()
		a := fg.NewBoolVar(fg.Predicted, "a")
		g.AddFactor(fg.NewExplicitFactorFromTensor(
			fg.NewVarTensorFromValues(algebra.Real, fg.NewVarSet(a), []float64{0, 0})))
		return g
	}
	pair := func() *fg.FactorGraph {
		g := fg.New()
		a := fg.NewBoolVar(fg.Predicted, "a")
		b := fg.NewBoolVar(fg.Predicted, "b")
		for _, v := range []*fg.Var{a, b} {
			g.AddFactor(fg.NewExplicitFactorFromTensor(
				fg.NewVarTensorFromValues(algebra.Real, fg.NewVarSet(v), []float64{0, 1})))
		}
		g.AddFactor(fg.NewExplicitFactorFromTensor(
			fg.NewVarTensorFromValues(algebra.Real, fg.NewVarSet(a, b), []float64{1, 1, 1, 0})))
		return g
	}

	for name, build := range map[string]func() *fg.FactorGraph{"single": single, "pair": pair} {
		for _, kind := range []algebra.Kind{algebra.KindReal, algebra.KindLog} {
			for _, normalize := range []bool{true, false} {
				t.Run(fmt.Sprintf("%s/%s/normalize=%v", name, kind, normalize), func(t *testing.T) {
					g := build()
					oracle := bruteforce.New(g, algebra.Log)
					oracle.Run()
					require.True(t, math.IsInf(oracle.LogPartition(), -1))

					cfg := DefaultConfig()
					cfg.Algebra = kind
					cfg.NormalizeMessages = normalize
					inf := runBP(t, g, cfg)
					assert.True(t, math.IsInf(inf.LogPartition(), -1))
					assert.Zero(t, inf.Partition())
					for _, v := range g.Vars() {
						for _, p := range inf.Marginals(v).Values() {
							assert.False(t, math.IsNaN(p))
						}
					}
				})
			}
		}
	}
}
