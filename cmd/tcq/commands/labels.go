package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-trace-query/pkg/graph"
)

type labelEntry struct {
	Name   string       `json:"name"`
	Vertex graph.Vertex `json:"vertex"`
	At     string       `json:"at"`
}

func sortedLabels(p *program) []labelEntry {
	out := make([]labelEntry, 0, len(p.labels))
	for name, v := range p.labels {
		out = append(out, labelEntry{Name: name, Vertex: v, At: p.graph.Name(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func newLabelsCmd(a *app) *cobra.Command {
	var (
		input      inputFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "labels [path...]",
		Short: "List tracepoints and the vertices they mark",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			p, err := a.loadProgram(cmd.Context(), args, &input)
			if err != nil {
				return err
			}
			labels := sortedLabels(p)

			if jsonOutput {
				data, err := json.MarshalIndent(labels, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling JSON: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			if len(labels) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render("no tracepoints found"))
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, l := range labels {
				fmt.Fprintf(w, "%s\t%d\t%s\n", l.Name, l.Vertex, l.At)
			}
			return w.Flush()
		},
	}

	input.register(cmd)
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}
