package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/fgbp"
	"github.com/happyhackingspace/fgbp/feature"
)

func (c *CLI) newPartialsCommand() *cobra.Command {
	var opts inferOptions

	cmd := &cobra.Command{
		Use:   "partials <outfile> [graph-file...]",
		Short: "Write the expected feature counts of the graphs' parametric factors",
		Args:  cobra.MinimumNArgs(1),
		Example: `  fgbp partials expected.json sentence.yaml --model weights.json
  fgbp partials expected.cbor s1.yaml s2.yaml --model weights.cbor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath := args[0]
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			graphs, names, err := opts.loadGraphs(cmd, args[1:])
			if err != nil {
				return err
			}

			start := time.Now()
			var total *feature.Model
			for i, g := range graphs {
				grad, err := fgbp.ExpectedFeatures(g.FactorGraph, g.Model, cfg)
				if err != nil {
					return fmt.Errorf("%s: %w", names[i], err)
				}
				if total == nil {
					total = grad
					continue
				}
				total.Grow(grad.NumParams())
				for k, w := range grad.Weights {
					total.Weights[k] += w
				}
			}
			slog.Debug("Expected features computed", "graphs", len(graphs), "duration", time.Since(start))

			if err := feature.SaveModel(total, outPath); err != nil {
				return err
			}
			slog.Info("Expected features saved", "path", outPath, "params", total.NumParams())
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}
