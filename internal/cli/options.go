package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/fgbp/algebra"
	"github.com/happyhackingspace/fgbp/bp"
	"github.com/happyhackingspace/fgbp/feature"
	"github.com/happyhackingspace/fgbp/internal/graphfile"
)

// inferOptions are the flags shared by every command that runs inference.
// Flags given on the command line override the config file.
type inferOptions struct {
	configPath string
	modelPath  string
	algebra    string
	maxIters   int
	schedule   string
	order      string
	threshold  float64
	seed       int64
}

func (o *inferOptions) register(cmd *cobra.Command) {
	def := bp.DefaultConfig()
	cmd.Flags().StringVar(&o.configPath, "config", "", "Path to a YAML or JSON belief propagation config")
	cmd.Flags().StringVar(&o.modelPath, "model", "", "Path to feature weights (.json or .cbor)")
	cmd.Flags().StringVar(&o.algebra, "algebra", string(def.Algebra), "Message algebra: real, log or log-table")
	cmd.Flags().IntVar(&o.maxIters, "max-iters", def.MaxIterations, "Maximum number of sweeps")
	cmd.Flags().StringVar(&o.schedule, "schedule", string(def.Schedule), "Message schedule: tree-like or random")
	cmd.Flags().StringVar(&o.order, "order", string(def.UpdateOrder), "Update order: sequential or parallel")
	cmd.Flags().Float64Var(&o.threshold, "threshold", def.ConvergenceThreshold, "Convergence threshold on message change")
	cmd.Flags().Int64Var(&o.seed, "seed", def.Seed, "Seed for the random schedule")
}

// config loads the config file and applies the flags the user set.
func (o *inferOptions) config(cmd *cobra.Command) (bp.Config, error) {
	cfg, err := bp.LoadConfig(o.configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("algebra") {
		cfg.Algebra = algebra.Kind(o.algebra)
	}
	if flags.Changed("max-iters") {
		cfg.MaxIterations = o.maxIters
	}
	if flags.Changed("schedule") {
		cfg.Schedule = bp.ScheduleKind(o.schedule)
	}
	if flags.Changed("order") {
		cfg.UpdateOrder = bp.UpdateOrder(o.order)
	}
	if flags.Changed("threshold") {
		cfg.ConvergenceThreshold = o.threshold
	}
	if flags.Changed("seed") {
		cfg.Seed = o.seed
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	slog.Debug("Inference config", "algebra", cfg.Algebra, "schedule", cfg.Schedule,
		"order", cfg.UpdateOrder, "max_iters", cfg.MaxIterations)
	return cfg, nil
}

// model loads the weights file, or returns an empty model all graphs of
// one invocation share so their feature indices agree.
func (o *inferOptions) model() (*feature.Model, error) {
	if o.modelPath == "" {
		return &feature.Model{Features: feature.NewAlphabet()}, nil
	}
	m, err := feature.LoadModel(o.modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	slog.Debug("Model loaded", "path", o.modelPath, "params", m.NumParams())
	return m, nil
}

// loadGraphs reads every path, or stdin when paths is empty. The second
// result names each graph for output.
func (o *inferOptions) loadGraphs(cmd *cobra.Command, paths []string) ([]*graphfile.Graph, []string, error) {
	model, err := o.model()
	if err != nil {
		return nil, nil, err
	}

	if len(paths) == 0 {
		if isStdinTerminal() {
			return nil, nil, fmt.Errorf("no graph file given and stdin is a terminal")
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, nil, fmt.Errorf("read stdin: %w", err)
		}
		g, err := graphfile.Parse(data, model)
		if err != nil {
			return nil, nil, err
		}
		return []*graphfile.Graph{g}, []string{"stdin"}, nil
	}

	graphs := make([]*graphfile.Graph, len(paths))
	for i, path := range paths {
		if graphs[i], err = graphfile.Load(path, model); err != nil {
			return nil, nil, err
		}
	}
	return graphs, paths, nil
}

func isStdinTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
