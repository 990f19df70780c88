package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/fgbp"
	"github.com/happyhackingspace/fgbp/fg"
)

type namedResult struct {
	Graph string `json:"graph"`
	*fgbp.Result
	LogPartition logProb `json:"log_partition"`
}

// logProb encodes a log probability, writing null for log 0.
type logProb float64

func (p logProb) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(p), -1) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(p))
}

func (p *logProb) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = logProb(math.Inf(-1))
		return nil
	}
	return json.Unmarshal(data, (*float64)(p))
}

func (c *CLI) newInferCommand() *cobra.Command {
	var opts inferOptions
	var workers int

	cmd := &cobra.Command{
		Use:   "infer [graph-file...]",
		Short: "Compute marginals and the log partition function of factor graphs",
		Example: `  # Run belief propagation over a graph description
  fgbp infer chain.yaml

  # Read the description from stdin
  cat tree.json | fgbp infer

  # Several graphs on four workers, real-valued messages
  fgbp infer a.yaml b.yaml c.yaml --workers 4 --algebra real

  # Score exp-fam factors with trained weights
  fgbp infer sentence.yaml --model weights.cbor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			graphs, names, err := opts.loadGraphs(cmd, args)
			if err != nil {
				return err
			}

			fgs := make([]*fg.FactorGraph, len(graphs))
			for i, g := range graphs {
				fgs[i] = g.FactorGraph
			}

			start := time.Now()
			results, err := fgbp.InferAll(cmd.Context(), fgs, cfg, workers)
			if err != nil {
				return err
			}
			slog.Debug("Inference completed", "graphs", len(results), "duration", time.Since(start))

			out := make([]namedResult, len(results))
			for i, r := range results {
				if !r.Converged {
					slog.Warn("Belief propagation did not converge", "graph", names[i], "iterations", r.Iterations)
				}
				out[i] = namedResult{Graph: names[i], Result: r, LogPartition: logProb(r.LogPartition)}
			}
			var output []byte
			if len(out) == 1 {
				output, err = json.MarshalIndent(out[0], "", "  ")
			} else {
				output, err = json.MarshalIndent(out, "", "  ")
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVar(&workers, "workers", 0, "Graphs inferred in parallel (default: GOMAXPROCS)")
	return cmd
}
