package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-topology-go"
	speclint "github.com/lex00/wetwire-topology-go/internal/lint"
	"github.com/lex00/wetwire-topology-go/internal/spec"
)

func newLintCmd(a *app) *cobra.Command {
	var (
		outputFormat string
		rules        []string
	)

	cmd := &cobra.Command{
		Use:   "lint [spec]",
		Short: "Check a topology spec for issues",
		Long: `Lint checks a topology spec for risky or inconsistent settings.

Rules:
    WTT001: Network spans a single availability zone
    WTT002: Ingress open to the whole internet
    WTT003: No flow log destination configured
    WTT004: Flow log retention shorter than 30 days
    WTT005: Literal secret in a compute environment binding
    WTT006: Environment binding names an undeclared parameter
    WTT007: Deprecated function runtime
    WTT008: Function timeout exceeds the API integration limit
    WTT009: Wildcard CORS origin on an authorized API
    WTT010: Function code object version not pinned
    WTT011: KMS key without the decrypt capability

Exit status is 2 when issues are found.

Examples:
    wetwire-topology lint topology.yaml
    wetwire-topology lint topology.yaml --rules WTT001,WTT002 -f json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(a, args, outputFormat, rules, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringSliceVar(&rules, "rules", nil, "Only run these rule IDs")

	return cmd
}

func runLint(a *app, args []string, format string, rules []string, w io.Writer) error {
	opts := speclint.Options{EnabledRules: rules}
	if a.settings.EnvFile != "" {
		opts.EnvFiles = []string{a.settings.EnvFile}
	}

	var res speclint.Result
	if len(args) == 0 {
		res = speclint.Lint(spec.Default(), "", opts)
	} else {
		var err error
		res, err = speclint.LintFile(args[0], opts)
		if err != nil {
			return fmt.Errorf("lint failed: %w", err)
		}
	}

	result := wetwire.LintResult{Success: len(res.Issues) == 0}
	for _, issue := range res.Issues {
		result.Issues = append(result.Issues, wetwire.LintIssue{
			File:     issue.File,
			Line:     issue.Line,
			Column:   issue.Column,
			Severity: speclint.SeverityName(issue.Severity),
			Message:  issue.Message,
			Rule:     issue.Rule,
		})
	}

	return outputLintResult(result, format, w)
}

func outputLintResult(result wetwire.LintResult, format string, w io.Writer) error {
	switch format {
	case "json":
		if err := writeJSON(w, result); err != nil {
			return err
		}

	case "text":
		if result.Success {
			fmt.Fprintln(w, "No issues found.")
			return nil
		}

		for _, issue := range result.Issues {
			if issue.File != "" {
				fmt.Fprintf(w, "%s:%d:%d: %s: %s [%s]\n",
					issue.File, issue.Line, issue.Column,
					issue.Severity, issue.Message, issue.Rule)
			} else {
				fmt.Fprintf(w, "%s: %s [%s]\n", issue.Severity, issue.Message, issue.Rule)
			}
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		return &exitError{code: 2}
	}
	return nil
}
