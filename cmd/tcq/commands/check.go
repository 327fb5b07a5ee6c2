package commands

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-trace-query/pkg/trace"
)

// factText explains each outcome fact for human output.
var factText = map[string]string{
	"start_not_found":   "no tracepoint with the start name",
	"final_not_found":   "no tracepoint with the final name",
	"final_unreachable": "final cannot be reached from start",
	"loop_found":        "an unbounded loop lies on a path from start to final",
	"final_avoidable":   "some path from start ends without reaching final",
}

type checkReport struct {
	RunID    string        `json:"run_id"`
	Kind     string        `json:"kind"`
	Start    string        `json:"start"`
	Final    string        `json:"final"`
	Success  bool          `json:"success"`
	Mask     uint8         `json:"mask"`
	Facts    []string      `json:"facts"`
	Outcome  trace.Outcome `json:"outcome"`
	Vertices int           `json:"vertices"`
	Edges    int           `json:"edges"`
	Cached   bool          `json:"cached"`
}

func newCheckCmd(a *app) *cobra.Command {
	var (
		input      inputFlags
		start      string
		final      string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "check [path...]",
		Short: "Check that final is always reached from start without unbounded loops",
		Long: `Builds the program graph and checks a start/final tracepoint pair.

The exit status is the outcome mask, 0 on success:
  1   start tracepoint not found
  2   final tracepoint not found
  4   final unreachable from start
  8   unbounded loop on the way to final
  16  final avoidable from start`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			if start == "" {
				start = a.cfg.StartLabel
			}
			if final == "" {
				final = a.cfg.FinalLabel
			}

			p, err := a.loadProgram(cmd.Context(), args, &input)
			if err != nil {
				return err
			}

			outcome := trace.Analyze(p.graph, p.labels, p.bounded, start, final)
			a.logger.Debug("check finished", "start", start, "final", final, "outcome", outcome)

			report := checkReport{
				RunID:    uuid.NewString(),
				Kind:     p.kind.String(),
				Start:    start,
				Final:    final,
				Success:  outcome.Success(),
				Mask:     outcome.Mask(),
				Facts:    outcome.Facts(),
				Outcome:  outcome,
				Vertices: p.graph.Len(),
				Edges:    p.graph.EdgeCount(),
				Cached:   p.cached,
			}
			if report.Facts == nil {
				report.Facts = []string{}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling JSON: %w", err)
				}
				fmt.Fprintln(out, string(data))
			} else {
				fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("check %s -> %s", start, final)))
				if report.Success {
					fmt.Fprintf(out, "  %s %s\n", okStyle.Render("✓ ok"), "final is always reached without unbounded loops")
				}
				for _, fact := range report.Facts {
					fmt.Fprintf(out, "  %s %s\n", failStyle.Render("✗ "+fact), factText[fact])
				}
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("  %d vertices, %d edges, %d bounded loops",
					report.Vertices, report.Edges, p.bounded.Len())))
			}

			if !report.Success {
				return &ExitError{Code: int(report.Mask)}
			}
			return nil
		},
	}

	input.register(cmd)
	cmd.Flags().StringVarP(&start, "start", "s", "", "Start tracepoint (default from config)")
	cmd.Flags().StringVarP(&final, "final", "f", "", "Final tracepoint (default from config)")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}
