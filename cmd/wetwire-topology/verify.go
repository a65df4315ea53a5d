package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-topology-go"
	"github.com/lex00/wetwire-topology-go/internal/differ"
	"github.com/lex00/wetwire-topology-go/internal/template"
)

func newVerifyCmd(a *app) *cobra.Command {
	var (
		outputFormat string
		against      string
		ignoreOrder  bool
	)

	cmd := &cobra.Command{
		Use:   "verify [spec]",
		Short: "Check that composition is deterministic",
		Long: `Verify composes the spec twice and compares the rendered templates.
Any difference fails the command.

With --against, the rendered template is instead compared with a
previously built template file (JSON or YAML).

Examples:
    wetwire-topology verify topology.yaml
    wetwire-topology verify topology.yaml --against template.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(a, args, against, differ.Options{IgnoreOrder: ignoreOrder}, outputFormat, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringVar(&against, "against", "", "Compare with this template file instead of a second composition")
	cmd.Flags().BoolVar(&ignoreOrder, "ignore-order", false, "Ignore list order when comparing")

	return cmd
}

func runVerify(a *app, args []string, against string, opts differ.Options, format string, w io.Writer) error {
	current, currentJSON, err := renderOnce(a, args)
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	var (
		baseline     *wetwire.Template
		baselineJSON []byte
	)
	if against != "" {
		baseline, err = differ.LoadTemplate(against)
	} else {
		baseline, baselineJSON, err = renderOnce(a, args)
	}
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	diff, err := differ.Compare(baseline, current, opts)
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	result := wetwire.VerifyResult{
		Success: diff.Identical(),
		Against: against,
		Diff:    diff.Diff,
		Summary: diff.Summary,
	}
	// Two compositions must also render byte for byte the same.
	if against == "" && !bytes.Equal(currentJSON, baselineJSON) {
		a.log().Warn("rendered templates are not byte-identical")
		result.Success = false
	}
	return outputVerifyResult(result, format, w)
}

func renderOnce(a *app, args []string) (*wetwire.Template, []byte, error) {
	c, err := a.compose(args)
	if err != nil {
		return nil, nil, err
	}
	t, err := template.FromComposition(c).Build()
	if err != nil {
		return nil, nil, err
	}
	data, err := template.ToJSON(t)
	if err != nil {
		return nil, nil, err
	}
	return t, data, nil
}

func outputVerifyResult(result wetwire.VerifyResult, format string, w io.Writer) error {
	switch format {
	case "json":
		if err := writeJSON(w, result); err != nil {
			return err
		}

	case "text":
		if result.Success {
			fmt.Fprintln(w, "Templates match.")
			return nil
		}

		fmt.Fprintf(w, "Templates differ: %d added, %d removed, %d modified\n",
			result.Summary.Added, result.Summary.Removed, result.Summary.Modified)
		for _, e := range result.Diff.Added {
			fmt.Fprintf(w, "  + %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Removed {
			fmt.Fprintf(w, "  - %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Modified {
			fmt.Fprintf(w, "  ~ %s (%s)\n", e.Resource, e.Type)
			for _, change := range e.Changes {
				fmt.Fprintf(w, "      %s\n", change)
			}
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		return &exitError{code: 1}
	}
	return nil
}
