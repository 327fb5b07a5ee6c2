package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-trace-query/internal/config"
	"github.com/l3aro/go-trace-query/internal/healthcheck"
)

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run health checks on configuration and environment",
		Long: `Checks the configuration, the cache directory, the C grammar and the
Go toolchain used to load Go packages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// An invalid config is reported by the checks, not returned.
			cfg, err := a.loadConfig()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), failStyle.Render("✗ config: "+err.Error()))
				return &ExitError{Code: 1}
			}

			path := a.configPath
			if path == "" {
				path = config.EffectivePath()
			}
			result, err := healthcheck.Check(cmd.Context(), cfg, path)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			displayDoctorResult(cmd, result)
			if !result.OK() {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}
}

func displayDoctorResult(cmd *cobra.Command, result *healthcheck.HealthCheckResult) {
	out := cmd.OutOrStdout()
	if result.EffectivePath == "" {
		fmt.Fprintln(out, dimStyle.Render("Using built-in defaults (no config file)"))
	} else {
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("Using config: %s (%s)", result.EffectivePath, result.EffectiveScope)))
	}
	fmt.Fprintln(out)

	for _, c := range result.Checks {
		fmt.Fprintf(out, "%s %-14s %s\n", statusIcon(c.Status), c.Name, c.Detail)
	}
}

func statusIcon(status healthcheck.Status) string {
	switch status {
	case healthcheck.StatusOK:
		return okStyle.Render("✓")
	case healthcheck.StatusWarn:
		return warnStyle.Render("!")
	case healthcheck.StatusFail:
		return failStyle.Render("✗")
	default:
		return "?"
	}
}
