package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// DefaultRepo is the GitHub repository `fgbp up` fetches releases from.
const DefaultRepo = "happyhackingspace/fgbp"

// CLI encapsulates the command-line interface with its dependencies.
type CLI struct {
	version     string
	repo        string
	verbose     bool
	silent      bool
	initialized bool
	rootCmd     *cobra.Command
}

// Option configures a CLI.
type Option func(*CLI)

// WithRepo sets the owner/name of the GitHub repository releases come from.
func WithRepo(repo string) Option {
	return func(c *CLI) {
		if repo != "" {
			c.repo = repo
		}
	}
}

// New creates a new CLI instance with the given version string.
func New(version string, opts ...Option) *CLI {
	c := &CLI{version: version, repo: DefaultRepo}
	for _, opt := range opts {
		opt(c)
	}
	c.setupCommands()
	return c
}

// setupCommands initializes all CLI commands and their configurations.
func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:     "fgbp",
		Short:   "Belief propagation over factor graphs with structured NLP factors",
		Version: c.version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.initApp()
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	c.rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose/debug output")
	c.rootCmd.PersistentFlags().BoolVarP(&c.silent, "silent", "s", false, "Suppress all logging")

	c.rootCmd.AddCommand(c.newInferCommand())
	c.rootCmd.AddCommand(c.newCheckCommand())
	c.rootCmd.AddCommand(c.newPartialsCommand())
	c.rootCmd.AddCommand(c.newUpCommand())
}

// Run executes the CLI and returns any error.
func (c *CLI) Run() error {
	return c.rootCmd.Execute()
}

// initApp initializes logging.
func (c *CLI) initApp() {
	if c.initialized {
		return
	}
	c.initialized = true

	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	if c.silent {
		level = slog.Level(100)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
