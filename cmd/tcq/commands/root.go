// Package commands provides the CLI commands for tcq.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-trace-query/internal/config"
	"github.com/l3aro/go-trace-query/internal/log"
)

// ExitFailure is the exit status for errors other than a failed check. It
// lies above every outcome mask so the two never collide.
const ExitFailure = 64

// ExitError carries a process exit status out of a command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// app holds the state shared by all commands of one invocation.
type app struct {
	configPath string
	verbose    bool
	jsonLog    bool

	cfg    *config.Config
	logger log.Logger
}

// setup loads the configuration and configures logging.
func (a *app) setup() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg
	a.logger = log.Configure(a.verbose || cfg.Verbose, a.jsonLog || cfg.LogJSON)
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath != "" {
		return config.LoadFromFile(a.configPath)
	}
	return config.Load()
}

// NewRootCmd builds the tcq command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tcq",
		Short: "tcq - trace reachability and loop checks",
		Long: `tcq builds an interprocedural control flow graph of a program and checks
that a final tracepoint is always reached from a start tracepoint without
passing through an unbounded loop.

Commands:
  check       Check a start/final tracepoint pair
  graph       Export the program graph as YAML or JSON
  labels      List tracepoints
  loops       List certified bounded loops
  init        Create a configuration file interactively
  doctor      Run environment health checks

Inputs are C files or directories, Go package patterns, or graph files.

Use "tcq [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file path (default: project then global config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "V", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&a.jsonLog, "log-json", false, "Write logs as JSON lines")

	root.AddCommand(
		newCheckCmd(a),
		newGraphCmd(a),
		newLabelsCmd(a),
		newLoopsCmd(a),
		newInitCmd(a),
		newDoctorCmd(a),
	)
	return root
}

// Execute runs the tcq command tree.
func Execute() error {
	return NewRootCmd().Execute()
}
