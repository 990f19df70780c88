package fgbp

import (
	"fmt"
	"math"

	"github.com/happyhackingspace/fgbp/algebra"
	"github.com/happyhackingspace/fgbp/bp"
	"github.com/happyhackingspace/fgbp/bruteforce"
	"github.com/happyhackingspace/fgbp/fg"
)

// maxCheckConfigs bounds the joint configurations Check will enumerate.
const maxCheckConfigs = 1 << 22

// CheckResult compares belief propagation against exact enumeration.
type CheckResult struct {
	// MaxMarginalError is the largest absolute difference between any
	// variable's BP and exact marginal, and WorstVar the variable it
	// occurs at.
	MaxMarginalError  float64 `json:"max_marginal_error"`
	WorstVar          string  `json:"worst_var,omitempty"`
	LogPartitionError float64 `json:"log_partition_error"`
	ExactLogPartition float64 `json:"exact_log_partition"`
	BPLogPartition    float64 `json:"bp_log_partition"`
	Converged         bool    `json:"converged"`
	Iterations        int     `json:"iterations"`
}

// Within reports whether both errors are at most tolerance. A NaN error is
// never within tolerance.
func (r *CheckResult) Within(tolerance float64) bool {
	return r.MaxMarginalError <= tolerance && r.LogPartitionError <= tolerance
}

// logPartitionError is |exact - bp|, zero when both are the same infinity.
func logPartitionError(exact, got float64) float64 {
	if exact == got {
		return 0
	}
	return math.Abs(exact - got)
}

// Check runs belief propagation and brute force over g and reports how far
// apart they are. On acyclic graphs both errors should be at rounding
// level.
func Check(g *fg.FactorGraph, cfg bp.Config) (*CheckResult, error) {
	n := 1
	for _, v := range g.Vars() {
		n *= v.NumStates()
		if n > maxCheckConfigs {
			return nil, fmt.Errorf("fgbp: graph too large to enumerate (more than %d configurations)", maxCheckConfigs)
		}
	}

	inf, err := run(g, cfg)
	if err != nil {
		return nil, err
	}
	alg, err := algebra.ForKind(cfg.Algebra)
	if err != nil {
		return nil, fmt.Errorf("fgbp: %w", err)
	}
	exact := bruteforce.New(g, alg)
	exact.Run()

	r := &CheckResult{
		ExactLogPartition: exact.LogPartition(),
		BPLogPartition:    inf.LogPartition(),
		Converged:         inf.IsConverged(),
		Iterations:        inf.Iterations(),
	}
	r.LogPartitionError = logPartitionError(r.ExactLogPartition, r.BPLogPartition)
	for _, v := range g.Vars() {
		got, want := inf.Marginals(v), exact.Marginals(v)
		for s := range v.NumStates() {
			if d := math.Abs(got.Get(s) - want.Get(s)); d > r.MaxMarginalError {
				r.MaxMarginalError = d
				r.WorstVar = v.Name()
			}
		}
	}
	return r, nil
}
