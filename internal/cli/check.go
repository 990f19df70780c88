package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/fgbp"
)

func (c *CLI) newCheckCommand() *cobra.Command {
	var opts inferOptions
	var tolerance float64

	cmd := &cobra.Command{
		Use:   "check [graph-file...]",
		Short: "Compare belief propagation against exact enumeration",
		Example: `  fgbp check chain.yaml
  fgbp check loopy.yaml --max-iters 500 --tolerance 0.05`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			graphs, names, err := opts.loadGraphs(cmd, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			fmt.Fprintf(out, "%-24s  %12s  %12s  %9s  %5s  %s\n", "graph", "marg-err", "logZ-err", "converged", "iters", "worst")
			for i, g := range graphs {
				start := time.Now()
				r, err := fgbp.Check(g.FactorGraph, cfg)
				if err != nil {
					return fmt.Errorf("%s: %w", names[i], err)
				}
				slog.Debug("Check completed", "graph", names[i], "duration", time.Since(start))

				fmt.Fprintf(out, "%-24s  %12.3g  %12.3g  %9v  %5d  %s\n",
					names[i], r.MaxMarginalError, r.LogPartitionError, r.Converged, r.Iterations, r.WorstVar)
				if !r.Within(tolerance) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d graphs exceed tolerance %g", failed, len(graphs), tolerance)
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().Float64Var(&tolerance, "tolerance", 1e-6, "Largest acceptable marginal or log partition error")
	return cmd
}
