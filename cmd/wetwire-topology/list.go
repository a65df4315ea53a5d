package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-topology-go"
	"github.com/lex00/wetwire-topology-go/internal/template"
)

func newListCmd(a *app) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "list [spec]",
		Short: "List composed resources",
		Long: `List composes the topology and displays every resource with its
CloudFormation type and apply wave. Resources in the same wave are
provisioned concurrently.

Examples:
    wetwire-topology list topology.yaml
    wetwire-topology list topology.yaml --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(a, args, outputFormat, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func runList(a *app, args []string, format string, w io.Writer) error {
	c, err := a.compose(args)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	levels, err := c.Descriptors.Levels()
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	listResult := wetwire.ListResult{
		Resources: make([]wetwire.ListResource, 0, c.Descriptors.Len()),
	}
	for level, ids := range levels {
		for _, id := range ids {
			d, _ := c.Descriptors.Get(id)
			cfType, err := template.CFResourceType(d.Kind)
			if err != nil {
				return err
			}
			listResult.Resources = append(listResult.Resources, wetwire.ListResource{
				Name:  id,
				Type:  cfType,
				Level: level,
			})
		}
	}

	sort.Slice(listResult.Resources, func(i, j int) bool {
		return listResult.Resources[i].Name < listResult.Resources[j].Name
	})

	return outputListResult(listResult, format, w)
}

func outputListResult(result wetwire.ListResult, format string, w io.Writer) error {
	switch format {
	case "json":
		return writeJSON(w, result)

	case "text":
		if len(result.Resources) == 0 {
			fmt.Fprintln(w, "No resources found.")
			return nil
		}

		fmt.Fprintf(w, "Composed resources (%d):\n\n", len(result.Resources))
		for _, res := range result.Resources {
			fmt.Fprintf(w, "  %s: %s (wave %d)\n", res.Name, res.Type, res.Level)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", format)
}
