package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-trace-query/pkg/graphfile"
)

func newGraphCmd(a *app) *cobra.Command {
	var (
		input  inputFlags
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "graph [path...]",
		Short: "Export the program graph as YAML or JSON",
		Long: `Builds the program graph and writes it as a graph document that
check, labels and loops accept back as input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			p, err := a.loadProgram(cmd.Context(), args, &input)
			if err != nil {
				return err
			}
			doc := p.document()

			if output != "" {
				if err := graphfile.Save(output, doc); err != nil {
					return err
				}
				a.logger.Info("graph written", "path", output)
				return nil
			}

			f, err := graphfile.ParseFormat(format)
			if err != nil {
				return err
			}
			data, err := graphfile.Marshal(doc, f)
			if err != nil {
				return fmt.Errorf("encoding graph: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	input.register(cmd)
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file; the extension picks the format")
	return cmd
}
