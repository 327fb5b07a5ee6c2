package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-trace-query/internal/config"
	"github.com/l3aro/go-trace-query/internal/healthcheck"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize tcq configuration interactively",
		Long: `Guides you through setting up tcq configuration step by step and
runs the health checks on the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd)
		},
	}
}

// initAnswers holds the form values as strings, the way huh inputs bind them.
type initAnswers struct {
	tracepoint   string
	goTracepoint string
	noReturn     string
	start        string
	final        string
	minTrips     string
	cacheEnabled bool
	location     string
}

func defaultAnswers() initAnswers {
	def := config.DefaultConfig()
	return initAnswers{
		tracepoint:   def.TracepointFunc,
		goTracepoint: def.GoTracepointFunc,
		noReturn:     strings.Join(def.NoReturnFuncs, ", "),
		start:        def.StartLabel,
		final:        def.FinalLabel,
		minTrips:     strconv.Itoa(def.MinTripCount),
		cacheEnabled: def.CacheEnabled,
		location:     "project",
	}
}

// config turns the answers into a validated configuration.
func (ans initAnswers) config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.TracepointFunc = strings.TrimSpace(ans.tracepoint)
	cfg.GoTracepointFunc = strings.TrimSpace(ans.goTracepoint)
	cfg.NoReturnFuncs = nil
	for _, f := range strings.Split(ans.noReturn, ",") {
		if f = strings.TrimSpace(f); f != "" {
			cfg.NoReturnFuncs = append(cfg.NoReturnFuncs, f)
		}
	}
	cfg.StartLabel = strings.TrimSpace(ans.start)
	cfg.FinalLabel = strings.TrimSpace(ans.final)
	n, err := strconv.Atoi(strings.TrimSpace(ans.minTrips))
	if err != nil {
		return nil, fmt.Errorf("min trip count: %w", err)
	}
	cfg.MinTripCount = n
	cfg.CacheEnabled = ans.cacheEnabled

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (ans initAnswers) path() string {
	if ans.location == "global" {
		return config.GlobalConfigFilePath()
	}
	return config.ProjectConfigFilePath()
}

func validateTripCount(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 2 {
		return fmt.Errorf("enter a whole number of at least 2")
	}
	return nil
}

func notEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func runInit(cmd *cobra.Command) error {
	ans := defaultAnswers()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("C tracepoint function").
				Description("Calls like name(\"label\") mark tracepoints").
				Value(&ans.tracepoint).
				Validate(notEmpty),
			huh.NewInput().
				Title("Go tracepoint function").
				Description("Function name, optionally package qualified").
				Value(&ans.goTracepoint).
				Validate(notEmpty),
			huh.NewInput().
				Title("C functions that never return").
				Description("Comma separated").
				Value(&ans.noReturn),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Default start tracepoint").
				Value(&ans.start).
				Validate(notEmpty),
			huh.NewInput().
				Title("Default final tracepoint").
				Value(&ans.final).
				Validate(notEmpty),
			huh.NewInput().
				Title("Minimum trip count for bounded loops").
				Value(&ans.minTrips).
				Validate(validateTripCount),
			huh.NewConfirm().
				Title("Cache built C graphs?").
				Affirmative("Yes").
				Negative("No").
				Value(&ans.cacheEnabled),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Project (./.tcq/config.yaml)", "project"),
					huh.NewOption("Global (~/.tcq/config.yaml)", "global"),
				).
				Value(&ans.location),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	cfg, err := ans.config()
	if err != nil {
		return err
	}
	configPath := ans.path()

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		confirm := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := confirm.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to: %s\n\n", configPath)

	result, err := healthcheck.Check(cmd.Context(), cfg, configPath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	displayDoctorResult(cmd, result)
	return nil
}
