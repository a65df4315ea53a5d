package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-topology-go"
	"github.com/lex00/wetwire-topology-go/internal/optimizer"
)

// isValidCategory reports whether category is accepted by --category.
func isValidCategory(category string) bool {
	if category == "all" {
		return true
	}
	for _, c := range optimizer.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// newOptimizeCmd creates the "optimize" subcommand.
func newOptimizeCmd(a *app) *cobra.Command {
	var (
		outputFormat string
		category     string
	)

	cmd := &cobra.Command{
		Use:   "optimize [spec]",
		Short: "Suggest improvements to the composed resources",
		Long: `Optimize analyzes the composed resources and suggests improvements
for security, cost, performance, and reliability.

Categories:
    security     - Encryption, public access, authorization
    cost         - NAT gateway count, lifecycle rules, memory sizing
    performance  - Function architecture and memory
    reliability  - Tracing, reserved concurrency

Examples:
    wetwire-topology optimize topology.yaml
    wetwire-topology optimize topology.yaml --category security
    wetwire-topology optimize topology.yaml -f json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isValidCategory(category) {
				return fmt.Errorf("invalid category: %s (valid: all, %s)", category, strings.Join(optimizer.Categories, ", "))
			}
			return runOptimize(a, args, outputFormat, category, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringVarP(&category, "category", "c", "all", "Category: all, security, cost, performance, or reliability")

	return cmd
}

func runOptimize(a *app, args []string, format, category string, w io.Writer) error {
	c, err := a.compose(args)
	if err != nil {
		return fmt.Errorf("optimize failed: %w", err)
	}

	optResult, err := optimizer.Optimize(c.Descriptors, optimizer.Options{Category: category})
	if err != nil {
		return fmt.Errorf("optimize failed: %w", err)
	}

	return outputOptimizeResult(optResult.Output(), c.Descriptors.Len(), format, w)
}

func outputOptimizeResult(result wetwire.OptimizeResult, resources int, format string, w io.Writer) error {
	switch format {
	case "json":
		return writeJSON(w, result)

	case "text":
		if len(result.Suggestions) == 0 {
			fmt.Fprintf(w, "Analyzed %d resources. No optimization suggestions.\n", resources)
			return nil
		}

		fmt.Fprintf(w, "Analyzed %d resources. Found %d suggestions:\n\n", resources, result.Summary.Total)

		byCat := map[string][]wetwire.OptimizeSuggestion{}
		for _, s := range result.Suggestions {
			byCat[s.Category] = append(byCat[s.Category], s)
		}

		for _, cat := range optimizer.Categories {
			suggestions := byCat[cat]
			if len(suggestions) == 0 {
				continue
			}

			fmt.Fprintf(w, "=== %s (%d) ===\n", capitalize(cat), len(suggestions))
			for _, s := range suggestions {
				fmt.Fprintf(w, "\n[%s] %s (%s)\n", s.Severity, s.Title, s.Rule)
				fmt.Fprintf(w, "  Resource: %s\n", s.Resource)
				fmt.Fprintf(w, "  %s\n", s.Description)
				fmt.Fprintf(w, "  Suggestion: %s\n", s.Suggestion)
			}
			fmt.Fprintln(w)
		}

		fmt.Fprintf(w, "Summary: %d security, %d cost, %d performance, %d reliability\n",
			result.Summary.Security, result.Summary.Cost,
			result.Summary.Performance, result.Summary.Reliability)
		return nil
	}
	return fmt.Errorf("unknown format: %s", format)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
