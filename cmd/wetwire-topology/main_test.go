package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wetwire "github.com/lex00/wetwire-topology-go"
	"github.com/lex00/wetwire-topology-go/internal/spec"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("WETWIRE_TOPOLOGY_STATE_DB", filepath.Join(t.TempDir(), "state.db"))
	t.Setenv("WETWIRE_TOPOLOGY_LOG_LEVEL", "error")

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeDefaultSpec(t *testing.T) string {
	t.Helper()
	data, err := spec.Marshal(spec.Default())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func exitCode(err error) int {
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	return -1
}

func TestBuild(t *testing.T) {
	out, err := execute(t, "build")
	require.NoError(t, err)

	var tmpl wetwire.Template
	require.NoError(t, json.Unmarshal([]byte(out), &tmpl))
	assert.Equal(t, "AWS::EC2::VPC", tmpl.Resources["Vpc"].Type)
	assert.Equal(t, "AWS::Lambda::Function", tmpl.Resources["LambdaFunction"].Type)
	assert.Contains(t, tmpl.Outputs, "ApiInvokeUrl")
}

func TestBuild_FromFileAsYAML(t *testing.T) {
	path := writeDefaultSpec(t)
	outFile := filepath.Join(t.TempDir(), "template.yaml")

	_, err := execute(t, "build", path, "-f", "yaml", "-o", outFile)
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "AWSTemplateFormatVersion")
	assert.Contains(t, string(data), "AWS::EC2::NatGateway")
}

func TestBuild_UnknownFormat(t *testing.T) {
	_, err := execute(t, "build", "-f", "toml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestBuild_MissingSpec(t *testing.T) {
	_, err := execute(t, "build", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestList_JSON(t *testing.T) {
	out, err := execute(t, "list", "-f", "json")
	require.NoError(t, err)

	var result wetwire.ListResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotEmpty(t, result.Resources)

	byName := map[string]wetwire.ListResource{}
	for i, r := range result.Resources {
		if i > 0 {
			assert.Less(t, result.Resources[i-1].Name, r.Name)
		}
		byName[r.Name] = r
	}
	assert.Equal(t, 0, byName["Vpc"].Level)
	assert.Greater(t, byName["NatGatewayA"].Level, byName["PublicSubnetA"].Level)
	assert.Equal(t, "AWS::ApiGateway::RestApi", byName["RestApi"].Type)
}

func TestGraph(t *testing.T) {
	out, err := execute(t, "graph", "-f", "mermaid")
	require.NoError(t, err)
	assert.Contains(t, out, "Vpc")

	_, err = execute(t, "graph", "-f", "svg")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	out, err := execute(t, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Templates match.")
}

func TestVerify_AgainstFile(t *testing.T) {
	dir := t.TempDir()
	baseline := filepath.Join(dir, "template.json")
	_, err := execute(t, "build", "-o", baseline)
	require.NoError(t, err)

	out, err := execute(t, "verify", "--against", baseline, "-f", "json")
	require.NoError(t, err)
	var result wetwire.VerifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success)

	g := spec.Default()
	g.Compute.MemoryMB = 1024
	data, err := spec.Marshal(g)
	require.NoError(t, err)
	changed := filepath.Join(dir, "changed.yaml")
	require.NoError(t, os.WriteFile(changed, data, 0o644))

	out, err = execute(t, "verify", changed, "--against", baseline)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "~ LambdaFunction (AWS::Lambda::Function)")
	assert.Contains(t, out, "Properties.MemorySize modified")
}

func TestLint_ExitsTwoOnIssues(t *testing.T) {
	out, err := execute(t, "lint", "-f", "json")
	assert.Equal(t, 2, exitCode(err))

	var result wetwire.LintResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.False(t, result.Success)

	rules := map[string]bool{}
	for _, issue := range result.Issues {
		rules[issue.Rule] = true
	}
	assert.True(t, rules["WTT007"])
	assert.True(t, rules["WTT010"])
}

func TestLint_RuleFilter(t *testing.T) {
	path := writeDefaultSpec(t)
	out, err := execute(t, "lint", path, "--rules", "WTT001,WTT002")
	require.NoError(t, err)
	assert.Contains(t, out, "No issues found.")
}

func TestOptimize_JSON(t *testing.T) {
	out, err := execute(t, "optimize", "-f", "json", "-c", "cost")
	require.NoError(t, err)

	var result wetwire.OptimizeResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	for _, s := range result.Suggestions {
		assert.Equal(t, "cost", s.Category)
	}
	assert.Equal(t, result.Summary.Total, result.Summary.Cost)
}

func TestOptimize_InvalidCategory(t *testing.T) {
	_, err := execute(t, "optimize", "-c", "speed")
	assert.ErrorContains(t, err, "invalid category")
}

func TestManifest(t *testing.T) {
	out, err := execute(t, "manifest", "-n", "infra")
	require.NoError(t, err)
	assert.Contains(t, out, "kind: VPC")
	assert.Contains(t, out, "namespace: infra")
	assert.Contains(t, out, "---")
}

func TestApply_DryRunThenOutputs(t *testing.T) {
	db := filepath.Join(t.TempDir(), "state.db")

	out, err := execute(t, "apply", "--dry-run", "--state-db", db, "-f", "json")
	require.NoError(t, err)

	var applied wetwire.ApplyResult
	require.NoError(t, json.Unmarshal([]byte(out), &applied))
	require.True(t, applied.Success, applied.Error)
	assert.NotEmpty(t, applied.RunID)
	assert.Contains(t, applied.Outputs["ComputeArn"], ":ap-northeast-1:")

	out, err = execute(t, "outputs", "--state-db", db, "-f", "json")
	require.NoError(t, err)

	var recorded wetwire.ApplyResult
	require.NoError(t, json.Unmarshal([]byte(out), &recorded))
	assert.Equal(t, applied.RunID, recorded.RunID)
	assert.Equal(t, applied.Outputs, recorded.Outputs)
}

func TestApply_RegionOverride(t *testing.T) {
	db := filepath.Join(t.TempDir(), "state.db")
	out, err := execute(t, "apply", "--dry-run", "--state-db", db, "--region", "eu-west-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Apply succeeded")
	assert.Contains(t, out, "execute-api.eu-west-1.amazonaws.com")
}

func TestApply_ComposeFailure(t *testing.T) {
	db := filepath.Join(t.TempDir(), "state.db")
	out, err := execute(t, "apply", "--dry-run", "--state-db", db, "--region", "xx-nowhere-1")
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "Apply FAILED in stage network")
}

func TestOutputs_NoRun(t *testing.T) {
	_, err := execute(t, "outputs", "--state-db", filepath.Join(t.TempDir(), "state.db"))
	assert.ErrorContains(t, err, "no successful run")
}

func TestZones(t *testing.T) {
	out, err := execute(t, "zones", "--region", "ap-northeast-1")
	require.NoError(t, err)
	assert.Contains(t, out, "ap-northeast-1a ap-northeast-1c ap-northeast-1d")

	_, err = execute(t, "zones", "--region", "xx-nowhere-1")
	assert.Error(t, err)

	_, err = execute(t, "zones", "--refresh")
	assert.ErrorContains(t, err, "--refresh needs --region")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "wetwire-topology ")
}
