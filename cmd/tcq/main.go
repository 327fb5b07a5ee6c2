// Package main implements the trace check query CLI (tcq). It builds
// interprocedural graphs from C sources, Go packages or graph files and
// answers tracepoint reachability and loop queries over them.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/l3aro/go-trace-query/cmd/tcq/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	root := commands.NewRootCmd()
	root.Version = version
	if buildTime != "" {
		root.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
	}
	root.SetVersionTemplate("tcq version {{.Version}}\n")

	if err := root.Execute(); err != nil {
		var exit *commands.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitFailure)
	}
}
