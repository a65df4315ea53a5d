// Package validation checks a composed topology before it is applied.
//
// Two passes run:
//   - spec lint: the rules in internal/lint
//   - cfn-lint-go: the rendered CloudFormation template (library dependency)
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lex00/cfn-lint-go/pkg/lint"

	wetwire "github.com/lex00/wetwire-topology-go"
	speclint "github.com/lex00/wetwire-topology-go/internal/lint"
	"github.com/lex00/wetwire-topology-go/internal/orchestrator"
	"github.com/lex00/wetwire-topology-go/internal/template"
)

// CfnLintResult contains the result of running cfn-lint.
type CfnLintResult struct {
	Passed        bool     `json:"passed"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Informational []string `json:"informational"`
}

// TotalIssues returns the total number of issues found.
func (r CfnLintResult) TotalIssues() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Informational)
}

// ValidationResult contains all validation results for a composition.
type ValidationResult struct {
	Resources     int              `json:"resources"`
	LintIssues    []speclint.Issue `json:"lint_issues,omitempty"`
	TemplatePath  string           `json:"template_path,omitempty"`
	CfnLintResult *CfnLintResult   `json:"cfn_lint_result"`
}

// Passed reports whether nothing at error severity was found.
func (r *ValidationResult) Passed() bool {
	for _, issue := range r.LintIssues {
		if issue.Severity == speclint.SeverityError {
			return false
		}
	}
	return r.CfnLintResult == nil || r.CfnLintResult.Passed
}

// Summary converts the result into the CLI's JSON shape.
func (r *ValidationResult) Summary() wetwire.ValidateResult {
	out := wetwire.ValidateResult{Success: r.Passed(), Resources: r.Resources}
	for _, issue := range r.LintIssues {
		msg := fmt.Sprintf("%s: %s", issue.Rule, issue.Message)
		if issue.Severity == speclint.SeverityError {
			out.Errors = append(out.Errors, msg)
		} else {
			out.Warnings = append(out.Warnings, msg)
		}
	}
	if r.CfnLintResult != nil {
		out.Errors = append(out.Errors, r.CfnLintResult.Errors...)
		out.Warnings = append(out.Warnings, r.CfnLintResult.Warnings...)
	}
	return out
}

// RunCfnLint runs cfn-lint-go on the given template file.
func RunCfnLint(templatePath string) (*CfnLintResult, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Template file not found: %s", templatePath)},
		}, nil
	}

	linter := lint.New(lint.Options{})
	matches, err := linter.LintFile(templatePath)
	if err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Linter error: %v", err)},
		}, nil
	}

	result := &CfnLintResult{
		Errors:        []string{},
		Warnings:      []string{},
		Informational: []string{},
	}

	for _, match := range matches {
		formatted := formatMatch(match)

		switch match.Level {
		case "Error":
			result.Errors = append(result.Errors, formatted)
		case "Warning":
			result.Warnings = append(result.Warnings, formatted)
		default:
			result.Informational = append(result.Informational, formatted)
		}
	}

	// Warnings are acceptable.
	result.Passed = len(result.Errors) == 0
	return result, nil
}

// formatMatch formats a cfn-lint-go match for display.
func formatMatch(match lint.Match) string {
	pathStr := ""
	if len(match.Location.Path) > 0 {
		parts := make([]string, len(match.Location.Path))
		for i, p := range match.Location.Path {
			parts[i] = fmt.Sprintf("%v", p)
		}
		pathStr = strings.Join(parts, "/")
	}

	if pathStr != "" {
		return fmt.Sprintf("%s: %s (at %s)", match.Rule.ID, match.Message, pathStr)
	}
	return fmt.Sprintf("%s: %s", match.Rule.ID, match.Message)
}

// WriteTemplate renders t as YAML into dir and returns the file path.
func WriteTemplate(t *wetwire.Template, dir string) (string, error) {
	data, err := template.ToYAML(t)
	if err != nil {
		return "", fmt.Errorf("rendering template: %w", err)
	}
	path := filepath.Join(dir, "template.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing template: %w", err)
	}
	return path, nil
}

// Validate lints the spec behind c and runs cfn-lint on its rendered
// template. The template is written to workDir, or to a temporary directory
// removed afterwards when workDir is empty.
func Validate(c *orchestrator.Composition, workDir string, opts speclint.Options) (*ValidationResult, error) {
	result := &ValidationResult{
		Resources:  c.Descriptors.Len(),
		LintIssues: speclint.Lint(c.Spec, "", opts).Issues,
	}

	tmpl, err := template.FromComposition(c).Build()
	if err != nil {
		return nil, fmt.Errorf("building template: %w", err)
	}

	dir := workDir
	if dir == "" {
		dir, err = os.MkdirTemp("", "wetwire-topology-validate-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)
	}

	path, err := WriteTemplate(tmpl, dir)
	if err != nil {
		return nil, err
	}
	if workDir != "" {
		result.TemplatePath = path
	}

	cfn, err := RunCfnLint(path)
	if err != nil {
		return nil, fmt.Errorf("running cfn-lint: %w", err)
	}
	result.CfnLintResult = cfn
	return result, nil
}
