package differ

import (
	"os"
	"path/filepath"
	"testing"

	wetwire "github.com/lex00/wetwire-topology-go"
	"github.com/lex00/wetwire-topology-go/intrinsics"
)

func TestCompare(t *testing.T) {
	t1 := &wetwire.Template{
		Resources: map[string]wetwire.ResourceDef{
			"Vpc":       {Type: "AWS::EC2::VPC", Properties: map[string]any{"CidrBlock": "10.0.0.0/16"}},
			"FlowLogA":  {Type: "AWS::EC2::FlowLog", Properties: map[string]any{"TrafficType": "ALL"}},
			"SubnetOld": {Type: "AWS::EC2::Subnet", Properties: map[string]any{"CidrBlock": "10.0.0.0/24"}},
		},
	}

	t2 := &wetwire.Template{
		Resources: map[string]wetwire.ResourceDef{
			"Vpc":       {Type: "AWS::EC2::VPC", Properties: map[string]any{"CidrBlock": "10.1.0.0/16"}},
			"FlowLogA":  {Type: "AWS::EC2::FlowLog", Properties: map[string]any{"TrafficType": "ALL"}},
			"SubnetNew": {Type: "AWS::EC2::Subnet", Properties: map[string]any{"CidrBlock": "10.1.0.0/24"}},
		},
	}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if len(result.Diff.Removed) != 1 {
		t.Errorf("Removed = %d, want 1", len(result.Diff.Removed))
	} else if result.Diff.Removed[0].Resource != "SubnetOld" {
		t.Errorf("Removed[0].Resource = %s, want SubnetOld", result.Diff.Removed[0].Resource)
	}

	if len(result.Diff.Added) != 1 {
		t.Errorf("Added = %d, want 1", len(result.Diff.Added))
	} else if result.Diff.Added[0].Type != "AWS::EC2::Subnet" {
		t.Errorf("Added[0].Type = %s, want AWS::EC2::Subnet", result.Diff.Added[0].Type)
	}

	if len(result.Diff.Modified) != 1 {
		t.Fatalf("Modified = %d, want 1", len(result.Diff.Modified))
	}
	mod := result.Diff.Modified[0]
	if mod.Resource != "Vpc" {
		t.Errorf("Modified[0].Resource = %s, want Vpc", mod.Resource)
	}
	if len(mod.Changes) != 1 || mod.Changes[0] != "Properties.CidrBlock modified" {
		t.Errorf("Modified[0].Changes = %v", mod.Changes)
	}

	if result.Summary.Total != 3 {
		t.Errorf("Summary.Total = %d, want 3", result.Summary.Total)
	}
	if result.Identical() {
		t.Error("Identical() = true, want false")
	}
}

func TestCompareIdentical(t *testing.T) {
	template := &wetwire.Template{
		Resources: map[string]wetwire.ResourceDef{
			"Vpc": {Type: "AWS::EC2::VPC", Properties: map[string]any{"CidrBlock": "10.0.0.0/16"}},
		},
	}

	result, err := Compare(template, template, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !result.Identical() {
		t.Errorf("Summary.Total = %d, want 0 for identical templates", result.Summary.Total)
	}
}

func TestCompareEmpty(t *testing.T) {
	t1 := &wetwire.Template{Resources: map[string]wetwire.ResourceDef{}}
	t2 := &wetwire.Template{Resources: map[string]wetwire.ResourceDef{}}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Summary.Total != 0 {
		t.Errorf("Summary.Total = %d, want 0", result.Summary.Total)
	}
}

func TestCompareTypeChange(t *testing.T) {
	t1 := &wetwire.Template{
		Resources: map[string]wetwire.ResourceDef{
			"Gateway": {Type: "AWS::EC2::InternetGateway"},
		},
	}
	t2 := &wetwire.Template{
		Resources: map[string]wetwire.ResourceDef{
			"Gateway": {Type: "AWS::EC2::NatGateway"},
		},
	}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(result.Diff.Modified) != 1 {
		t.Fatalf("Modified = %d, want 1", len(result.Diff.Modified))
	}
	if got := result.Diff.Modified[0].Changes; len(got) != 1 || got[0] != "Type modified" {
		t.Errorf("Changes = %v, want [Type modified]", got)
	}
}

func TestCompareIntrinsicsAgainstDecoded(t *testing.T) {
	built := &wetwire.Template{
		Resources: map[string]wetwire.ResourceDef{
			"Subnet": {Type: "AWS::EC2::Subnet", Properties: map[string]any{
				"VpcId": intrinsics.Ref{LogicalName: "Vpc"},
			}},
		},
	}
	decoded := &wetwire.Template{
		Resources: map[string]wetwire.ResourceDef{
			"Subnet": {Type: "AWS::EC2::Subnet", Properties: map[string]any{
				"VpcId": map[string]any{"Ref": "Vpc"},
			}},
		},
	}

	result, err := Compare(built, decoded, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !result.Identical() {
		t.Errorf("expected intrinsic and decoded forms to match, got %+v", result.Diff)
	}
}

func TestCompareOutputs(t *testing.T) {
	t1 := &wetwire.Template{
		Resources: map[string]wetwire.ResourceDef{},
		Outputs: map[string]wetwire.Output{
			"NetworkId": {Value: map[string]any{"Ref": "Vpc"}},
		},
	}
	t2 := &wetwire.Template{
		Resources: map[string]wetwire.ResourceDef{},
		Outputs: map[string]wetwire.Output{
			"NetworkId": {Value: map[string]any{"Ref": "Vpc"}, Export: &wetwire.Export{Name: "poc-network"}},
			"ApiUrl":    {Value: "https://example"},
		},
	}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(result.Diff.Added) != 1 || result.Diff.Added[0].Resource != "Outputs.ApiUrl" {
		t.Errorf("Added = %+v, want Outputs.ApiUrl", result.Diff.Added)
	}
	if len(result.Diff.Modified) != 1 || result.Diff.Modified[0].Changes[0] != "Export added" {
		t.Errorf("Modified = %+v, want Export added", result.Diff.Modified)
	}
}

func TestCompareProperties(t *testing.T) {
	tests := []struct {
		name    string
		props1  map[string]any
		props2  map[string]any
		opts    Options
		wantLen int
	}{
		{
			name:    "identical",
			props1:  map[string]any{"Key": "value"},
			props2:  map[string]any{"Key": "value"},
			wantLen: 0,
		},
		{
			name:    "added property",
			props1:  map[string]any{},
			props2:  map[string]any{"Key": "value"},
			wantLen: 1,
		},
		{
			name:    "removed property",
			props1:  map[string]any{"Key": "value"},
			props2:  map[string]any{},
			wantLen: 1,
		},
		{
			name:    "nested modification",
			props1:  map[string]any{"Outer": map[string]any{"A": "1", "B": "2"}},
			props2:  map[string]any{"Outer": map[string]any{"A": "1", "B": "3"}},
			wantLen: 1,
		},
		{
			name:    "reordered list",
			props1:  map[string]any{"Zones": []any{"a", "c"}},
			props2:  map[string]any{"Zones": []any{"c", "a"}},
			wantLen: 1,
		},
		{
			name:    "reordered list ignoring order",
			props1:  map[string]any{"Zones": []any{"a", "c"}},
			props2:  map[string]any{"Zones": []any{"c", "a"}},
			opts:    Options{IgnoreOrder: true},
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := compareProperties("", tt.props1, tt.props2, tt.opts)
			if len(changes) != tt.wantLen {
				t.Errorf("compareProperties() returned %v, want %d changes", changes, tt.wantLen)
			}
		})
	}
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "a.json")
	yamlPath := filepath.Join(dir, "b.yaml")

	jsonDoc := `{"AWSTemplateFormatVersion":"2010-09-09","Resources":{"Vpc":{"Type":"AWS::EC2::VPC","Properties":{"CidrBlock":"10.0.0.0/16"}}}}`
	yamlDoc := "AWSTemplateFormatVersion: \"2010-09-09\"\nResources:\n  Vpc:\n    Type: AWS::EC2::VPC\n    Properties:\n      CidrBlock: 10.0.0.0/16\n"
	if err := os.WriteFile(jsonPath, []byte(jsonDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(yamlPath, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := CompareFiles(jsonPath, yamlPath, Options{})
	if err != nil {
		t.Fatalf("CompareFiles() error = %v", err)
	}
	if !result.Identical() {
		t.Errorf("expected JSON and YAML forms to match, got %+v", result.Diff)
	}

	if _, err := CompareFiles(jsonPath, filepath.Join(dir, "missing.json"), Options{}); err == nil {
		t.Error("expected error for missing file")
	}
}
