package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	wetwire "github.com/lex00/wetwire-topology-go"
	speclint "github.com/lex00/wetwire-topology-go/internal/lint"
	"github.com/lex00/wetwire-topology-go/internal/validation"
)

// newValidateCmd creates the "validate" subcommand.
func newValidateCmd(a *app) *cobra.Command {
	var (
		outputFormat string
		workDir      string
	)

	cmd := &cobra.Command{
		Use:   "validate [spec]",
		Short: "Compose the spec and check the rendered template",
		Long: `Validate composes the topology and checks it.

Checks performed:
  - Spec lint: the rules listed by "wetwire-topology lint"
  - cfn-lint: schema and best-practice checks of the rendered template

Examples:
    wetwire-topology validate topology.yaml
    wetwire-topology validate topology.yaml --format json
    wetwire-topology validate topology.yaml --keep ./out`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(a, args, outputFormat, workDir, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringVar(&workDir, "keep", "", "Keep the rendered template in this directory")

	return cmd
}

func runValidate(a *app, args []string, format, workDir string, w io.Writer) error {
	c, err := a.compose(args)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	res, err := validation.Validate(c, workDir, speclint.Options{})
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if res.TemplatePath != "" {
		a.log().Info("template written", zap.String("path", res.TemplatePath))
	}

	return outputValidateResult(res.Summary(), format, w)
}

func outputValidateResult(result wetwire.ValidateResult, format string, w io.Writer) error {
	switch format {
	case "json":
		if err := writeJSON(w, result); err != nil {
			return err
		}

	case "text":
		if result.Success {
			fmt.Fprintf(w, "Validation passed: %d resources OK\n", result.Resources)
			for _, warnMsg := range result.Warnings {
				fmt.Fprintf(w, "  WARNING: %s\n", warnMsg)
			}
			return nil
		}

		fmt.Fprintln(w, "Validation FAILED:")
		for _, errMsg := range result.Errors {
			fmt.Fprintf(w, "  ERROR: %s\n", errMsg)
		}
		for _, warnMsg := range result.Warnings {
			fmt.Fprintf(w, "  WARNING: %s\n", warnMsg)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		return &exitError{code: 1}
	}
	return nil
}
