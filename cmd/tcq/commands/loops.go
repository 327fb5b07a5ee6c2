package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-trace-query/pkg/graph"
)

type loopEntry struct {
	Vertices []graph.Vertex `json:"vertices"`
	Names    []string       `json:"names"`
}

func newLoopsCmd(a *app) *cobra.Command {
	var (
		input      inputFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "loops [path...]",
		Short: "List the cycles certified as bounded loops",
		Long: `Lists every cycle the frontend certified as a bounded loop. A cycle
found during a check that matches one of these, up to rotation, is not
reported as an unbounded loop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			p, err := a.loadProgram(cmd.Context(), args, &input)
			if err != nil {
				return err
			}

			var entries []loopEntry
			for _, loop := range p.bounded.Loops() {
				e := loopEntry{Vertices: loop}
				for _, v := range loop {
					e.Names = append(e.Names, p.graph.Name(v))
				}
				entries = append(entries, e)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				if entries == nil {
					entries = []loopEntry{}
				}
				data, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling JSON: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, warnStyle.Render("no bounded loops certified"))
				return nil
			}
			for i, e := range entries {
				fmt.Fprintf(out, "%s %s\n", titleStyle.Render(fmt.Sprintf("loop %d:", i+1)), strings.Join(e.Names, " -> "))
			}
			return nil
		},
	}

	input.register(cmd)
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}
