package main

import (
	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-topology-go/internal/graph"
)

func newGraphCmd(a *app) *cobra.Command {
	var (
		outputFormat string
		cluster      bool
		showLevels   bool
	)

	cmd := &cobra.Command{
		Use:   "graph [spec]",
		Short: "Generate a dependency graph of the composed resources",
		Long: `Generate a DOT or Mermaid graph of the composed resources.

The output can be rendered with Graphviz:
    wetwire-topology graph topology.yaml | dot -Tpng -o topology.png

Examples:
    wetwire-topology graph topology.yaml
    wetwire-topology graph topology.yaml -c              # cluster by service
    wetwire-topology graph topology.yaml -f mermaid      # mermaid format`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := graph.ParseFormat(outputFormat)
			if err != nil {
				return err
			}

			c, err := a.compose(args)
			if err != nil {
				return err
			}

			gen := &graph.Generator{
				Format:           format,
				ClusterByService: cluster,
				ShowLevels:       showLevels,
			}
			return gen.Generate(c.Descriptors, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVarP(&cluster, "cluster", "c", false, "Cluster resources by AWS service")
	cmd.Flags().BoolVarP(&showLevels, "levels", "l", false, "Annotate nodes with their apply wave")

	return cmd
}
