package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

type upOptions struct {
	check      bool
	prerelease bool
}

func (c *CLI) newUpCommand() *cobra.Command {
	var opts upOptions

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Self-update to the latest release",
		Example: `  fgbp up
  fgbp up --check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.selfUpdate(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.check, "check", false, "Only report whether a newer release exists")
	cmd.Flags().BoolVar(&opts.prerelease, "prerelease", false, "Consider pre-releases")
	return cmd
}

// currentVersion returns the running version as a semver string. Development
// builds compare older than every release.
func currentVersion(version string) string {
	v := strings.TrimPrefix(version, "v")
	if v == "" || v == "dev" {
		return "0.0.0"
	}
	return v
}

func (c *CLI) selfUpdate(ctx context.Context, out io.Writer, opts upOptions) error {
	updater, err := selfupdate.NewUpdater(selfupdate.Config{Prerelease: opts.prerelease})
	if err != nil {
		return err
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(c.repo))
	if err != nil {
		return fmt.Errorf("detect latest version of %s: %w", c.repo, err)
	}
	if !found {
		return fmt.Errorf("no release found for %s", c.repo)
	}

	if latest.LessOrEqual(currentVersion(c.version)) {
		fmt.Fprintf(out, "Already up to date (%s)\n", c.version)
		return nil
	}
	if opts.check {
		fmt.Fprintf(out, "%s is available (running %s)\n", latest.Version(), c.version)
		return nil
	}

	slog.Info("Updating", "repo", c.repo, "from", c.version, "to", latest.Version())

	exe, err := os.Executable()
	if err != nil {
		return err
	}
	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	fmt.Fprintf(out, "Updated to %s\n", latest.Version())
	return nil
}
