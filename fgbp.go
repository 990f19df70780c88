// Package fgbp runs belief propagation over factor graphs that mix dense
// factors with structured ones (dependency trees, head automata,
// constituency trees).
//
//	g := fg.New()
//	tree := global.NewProjDepTreeFactor(3, fg.Predicted, true)
//	g.AddFactor(tree)
//	res, _ := fgbp.Infer(g, bp.DefaultConfig())
//	fmt.Println(res.Marginals["link_-1_0"]["TRUE"]) // P(word 0 is the root)
package fgbp

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/happyhackingspace/fgbp/bp"
	"github.com/happyhackingspace/fgbp/feature"
	"github.com/happyhackingspace/fgbp/fg"
	"github.com/happyhackingspace/fgbp/internal/telemetry"
)

// Result holds the outcome of inference over one graph.
type Result struct {
	// Marginals maps variable name to state name to probability.
	Marginals    map[string]map[string]float64 `json:"marginals"`
	LogPartition float64                       `json:"log_partition"`
	Iterations   int                           `json:"iterations"`
	Converged    bool                          `json:"converged"`
	Status       string                        `json:"status"`
}

// Infer runs belief propagation over g.
func Infer(g *fg.FactorGraph, cfg bp.Config) (*Result, error) {
	inf, err := run(g, cfg)
	if err != nil {
		return nil, err
	}
	return newResult(g, inf), nil
}

func run(g *fg.FactorGraph, cfg bp.Config) (*bp.BeliefPropagation, error) {
	inf, err := bp.New(g, cfg)
	if err != nil {
		return nil, fmt.Errorf("fgbp: %w", err)
	}
	inf.Run()
	return inf, nil
}

func newResult(g *fg.FactorGraph, inf *bp.BeliefPropagation) *Result {
	r := &Result{
		Marginals:    make(map[string]map[string]float64, g.NumVars()),
		LogPartition: inf.LogPartition(),
		Iterations:   inf.Iterations(),
		Converged:    inf.IsConverged(),
		Status:       inf.Status().String(),
	}
	for _, v := range g.Vars() {
		m := inf.Marginals(v)
		states := make(map[string]float64, v.NumStates())
		for s := range v.NumStates() {
			states[v.StateName(s)] = m.Get(s)
		}
		r.Marginals[v.Name()] = states
	}
	return r
}

// InferAll runs Infer over every graph with at most workers running at
// once (GOMAXPROCS when workers < 1). Results follow the order of graphs.
// The graphs must not share variables or factors. Cancelling ctx stops
// graphs that have not started.
func InferAll(ctx context.Context, graphs []*fg.FactorGraph, cfg bp.Config, workers int) ([]*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fgbp: %w", err)
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, len(graphs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, g := range graphs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, span := telemetry.StartInferSpan(ctx, i, g.NumVars(), g.NumFactors())
			defer span.End()

			res, err := Infer(g, cfg)
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("graph %d: %w", i, err)
			}
			telemetry.SetInferResult(span, res.Iterations, res.Converged, res.LogPartition)
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	slog.Debug("Inferred graphs", "graphs", len(graphs), "workers", workers)
	return results, nil
}

// ExpectedFeatures runs belief propagation over g and returns the expected
// feature counts of every parametric factor, sized like model. Observed
// counts minus these is the log-likelihood gradient.
func ExpectedFeatures(g *fg.FactorGraph, model *feature.Model, cfg bp.Config) (*feature.Model, error) {
	g.UpdateFromModel(model)
	inf, err := run(g, cfg)
	if err != nil {
		return nil, err
	}
	grad := feature.NewModel(model.NumParams())
	grad.Features = model.Features
	for _, f := range g.Factors() {
		f.AddExpectedPartials(grad, inf, 1)
	}
	return grad, nil
}
