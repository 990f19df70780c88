package fgbp

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/fgbp/algebra"
	"github.com/happyhackingspace/fgbp/bp"
	"github.com/happyhackingspace/fgbp/feature"
	"github.com/happyhackingspace/fgbp/fg"
	"github.com/happyhackingspace/fgbp/global"
)

func chain() *fg.FactorGraph {
	g := fg.New()
	tags := make([]*fg.Var, 3)
	for i := range tags {
		tags[i] = fg.NewVar(fg.Predicted, 2, fmt.Sprintf("t%d", i), []string{"N", "V"})
	}
	for i, e := range [][]float64{{0.1, 0.9}, {0.3, 0.7}, {0.5, 0.5}} {
		g.AddFactor(fg.NewExplicitFactorFromTensor(
			fg.NewVarTensorFromValues(algebra.Real, fg.NewVarSet(tags[i]), e)))
	}
	g.AddFactor(fg.NewExplicitFactorFromTensor(
		fg.NewVarTensorFromValues(algebra.Real, fg.NewVarSet(tags[0], tags[1]), []float64{0.2, 0.4, 0.3, 0.5})))
	g.AddFactor(fg.NewExplicitFactorFromTensor(
		fg.NewVarTensorFromValues(algebra.Real, fg.NewVarSet(tags[1], tags[2]), []float64{1.2, 1.4, 1.3, 1.5})))
	return g
}

// loop adds a factor tying the ends of the chain together.
func loop() *fg.FactorGraph {
	g := chain()
	a, c := g.VarByName("t0"), g.VarByName("t2")
	g.AddFactor(fg.NewExplicitFactorFromTensor(
		fg.NewVarTensorFromValues(algebra.Real, fg.NewVarSet(a, c), []float64{2, 1, 1, 2})))
	return g
}

func dependencyTree(n int) *fg.FactorGraph {
	g := fg.New()
	g.AddFactor(global.NewProjDepTreeFactor(n, fg.Predicted, true))
	return g
}

func TestInfer(t *testing.T) {
	res, err := Infer(chain(), bp.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, "CONVERGED", res.Status)
	assert.Equal(t, 1, res.Iterations)
	assert.InDelta(t, math.Log(0.5933), res.LogPartition, 1e-9)
	assert.InDelta(t, 0.9207820664082252, res.Marginals["t0"]["V"], 1e-9)
	assert.InDelta(t, 1-0.9207820664082252, res.Marginals["t0"]["N"], 1e-9)
	assert.Len(t, res.Marginals, 3)
}

func TestInferRejectsInvalidConfig(t *testing.T) {
	cfg := bp.DefaultConfig()
	cfg.MaxIterations = 0
	_, err := Infer(chain(), cfg)
	assert.Error(t, err)
	_, err = InferAll(context.Background(), []*fg.FactorGraph{chain()}, cfg, 1)
	assert.Error(t, err)
}

func TestInferAllKeepsOrder(t *testing.T) {
	graphs := []*fg.FactorGraph{chain(), dependencyTree(2), dependencyTree(3), chain(), dependencyTree(4)}
	want := []float64{math.Log(0.5933), math.Log(2), math.Log(7), math.Log(0.5933), math.Log(30)}

	for _, workers := range []int{0, 1, 3} {
		results, err := InferAll(context.Background(), graphs, bp.DefaultConfig(), workers)
		require.NoError(t, err)
		require.Len(t, results, len(graphs))
		for i, res := range results {
			assert.InDelta(t, want[i], res.LogPartition, 1e-9, "graph %d", i)
		}
	}
}

func TestInferAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := InferAll(ctx, []*fg.FactorGraph{chain(), chain()}, bp.DefaultConfig(), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckExactOnTrees(t *testing.T) {
	for _, g := range []*fg.FactorGraph{chain(), dependencyTree(3)} {
		r, err := Check(g, bp.DefaultConfig())
		require.NoError(t, err)
		assert.True(t, r.Converged)
		assert.Less(t, r.MaxMarginalError, 1e-9)
		assert.Less(t, r.LogPartitionError, 1e-9)
	}
}

func TestCheckReportsLoopyError(t *testing.T) {
	cfg := bp.DefaultConfig()
	cfg.MaxIterations = 500
	r, err := Check(loop(), cfg)
	require.NoError(t, err)
	assert.True(t, r.Converged)
	assert.Greater(t, r.MaxMarginalError, 0.0)
	assert.Less(t, r.MaxMarginalError, 0.1)
	assert.NotEmpty(t, r.WorstVar)
	assert.InDelta(t, math.Abs(r.ExactLogPartition-r.BPLogPartition), r.LogPartitionError, 1e-15)
}

func TestCheckImpossibleGraph(t *testing.T) {
	g := fg.New()
	a := fg.NewBoolVar(fg.Predicted, "a")
	g.AddFactor(fg.NewExplicitFactorFromTensor(
		fg.NewVarTensorFromValues(algebra.Real, fg.NewVarSet(a), []float64{0, 0})))

	r, err := Check(g, bp.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, math.IsInf(r.ExactLogPartition, -1))
	assert.True(t, math.IsInf(r.BPLogPartition, -1))
	assert.Zero(t, r.LogPartitionError)
	assert.True(t, r.Within(1e-6))
}

func TestCheckResultWithin(t *testing.T) {
	for _, tc := range []struct {
		name string
		r    CheckResult
		want bool
	}{
		{"exact", CheckResult{}, true},
		{"marginal", CheckResult{MaxMarginalError: 0.1}, false},
		{"partition", CheckResult{LogPartitionError: math.Inf(1)}, false},
		{"nan", CheckResult{LogPartitionError: math.NaN()}, false},
	} {
		assert.Equal(t, tc.want, tc.r.Within(1e-6), tc.name)
	}
	assert.Zero(t, logPartitionError(math.Inf(-1), math.Inf(-1)))
	assert.True(t, math.IsInf(logPartitionError(math.Inf(-1), 0), 1))
}

func TestCheckRejectsLargeGraphs(t *testing.T) {
	g := fg.New()
	for i := range 23 {
		g.AddVar(fg.NewBoolVar(fg.Predicted, fmt.Sprintf("v%d", i)))
	}
	_, err := Check(g, bp.DefaultConfig())
	assert.Error(t, err)
}

func TestExpectedFeatures(t *testing.T) {
	g := fg.New()
	a := fg.NewBoolVar(fg.Predicted, "a")
	on := feature.NewVector([]int{0}, []float64{1})
	g.AddFactor(fg.NewExpFamFactor(fg.NewVarSet(a), fg.FeatureFunc(func(c int) feature.Vector {
		if c == fg.True {
			return on
		}
		return feature.Vector{}
	})))

	model := &feature.Model{Weights: []float64{math.Log(3)}}
	grad, err := ExpectedFeatures(g, model, bp.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, grad.Weights, 1)
	assert.InDelta(t, 0.75, grad.Weights[0], 1e-12)
}
