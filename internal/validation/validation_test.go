package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lex00/cfn-lint-go/pkg/lint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	speclint "github.com/lex00/wetwire-topology-go/internal/lint"
	"github.com/lex00/wetwire-topology-go/internal/orchestrator"
	"github.com/lex00/wetwire-topology-go/internal/spec"
	"github.com/lex00/wetwire-topology-go/internal/template"
)

func TestCfnLintResult_TotalIssues(t *testing.T) {
	tests := []struct {
		name     string
		result   CfnLintResult
		expected int
	}{
		{name: "empty result", result: CfnLintResult{}, expected: 0},
		{name: "errors only", result: CfnLintResult{Errors: []string{"e1", "e2"}}, expected: 2},
		{
			name: "mixed issues",
			result: CfnLintResult{
				Errors:        []string{"e1"},
				Warnings:      []string{"w1", "w2"},
				Informational: []string{"i1"},
			},
			expected: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.TotalIssues())
		})
	}
}

func TestFormatMatch(t *testing.T) {
	tests := []struct {
		name     string
		match    lint.Match
		expected string
	}{
		{
			name: "simple match",
			match: lint.Match{
				Rule:    lint.MatchRule{ID: "E1234"},
				Message: "Something is wrong",
			},
			expected: "E1234: Something is wrong",
		},
		{
			name: "match with path",
			match: lint.Match{
				Rule:    lint.MatchRule{ID: "W5678"},
				Message: "Warning message",
				Location: lint.MatchLocation{
					Path: []any{"Resources", "NatGatewayA", "Properties"},
				},
			},
			expected: "W5678: Warning message (at Resources/NatGatewayA/Properties)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatMatch(tt.match))
		})
	}
}

func TestRunCfnLint_FileNotFound(t *testing.T) {
	result, err := RunCfnLint("/nonexistent/template.yaml")
	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Template file not found")
}

func TestWriteTemplate(t *testing.T) {
	c, err := orchestrator.New().Compose(spec.Default())
	require.NoError(t, err)
	tmpl, err := template.FromComposition(c).Build()
	require.NoError(t, err)

	path, err := WriteTemplate(tmpl, t.TempDir())
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "AWS::EC2::NatGateway")
	assert.Equal(t, "template.yaml", filepath.Base(path))
}

func TestValidate_Composition(t *testing.T) {
	c, err := orchestrator.New().Compose(spec.Default())
	require.NoError(t, err)

	dir := t.TempDir()
	result, err := Validate(c, dir, speclint.Options{})
	require.NoError(t, err)

	assert.Equal(t, c.Descriptors.Len(), result.Resources)
	assert.Equal(t, filepath.Join(dir, "template.yaml"), result.TemplatePath)
	require.NotNil(t, result.CfnLintResult)
	assert.NotEmpty(t, result.LintIssues)

	summary := result.Summary()
	assert.Equal(t, result.Passed(), summary.Success)
	assert.Equal(t, c.Descriptors.Len(), summary.Resources)
}

func TestValidationResult_Passed(t *testing.T) {
	tests := []struct {
		name   string
		result ValidationResult
		want   bool
	}{
		{name: "clean", result: ValidationResult{CfnLintResult: &CfnLintResult{Passed: true}}, want: true},
		{
			name: "lint warning only",
			result: ValidationResult{
				LintIssues:    []speclint.Issue{{Rule: "WTT010", Severity: speclint.SeverityInfo}},
				CfnLintResult: &CfnLintResult{Passed: true},
			},
			want: true,
		},
		{
			name: "lint error",
			result: ValidationResult{
				LintIssues:    []speclint.Issue{{Rule: "WTT005", Severity: speclint.SeverityError}},
				CfnLintResult: &CfnLintResult{Passed: true},
			},
			want: false,
		},
		{name: "cfn-lint error", result: ValidationResult{CfnLintResult: &CfnLintResult{Passed: false}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Passed())
		})
	}
}
