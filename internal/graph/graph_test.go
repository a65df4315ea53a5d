package graph

import (
	"strings"
	"testing"

	"github.com/lex00/wetwire-topology-go/internal/descriptor"
)

func sampleSet() *descriptor.Set {
	set := descriptor.NewSet()
	set.MustAdd(descriptor.Descriptor{ID: "Vpc", Kind: descriptor.KindVPC})
	set.MustAdd(descriptor.Descriptor{ID: "InternetGateway", Kind: descriptor.KindInternetGateway})
	set.MustAdd(descriptor.Descriptor{ID: "Role", Kind: descriptor.KindRole})
	set.MustAdd(descriptor.Descriptor{
		ID:   "Subnet",
		Kind: descriptor.KindSubnet,
		Props: map[string]any{
			"VpcId": descriptor.Ref{ID: "Vpc"},
		},
		DependsOn: []string{"InternetGateway"},
	})
	set.MustAdd(descriptor.Descriptor{
		ID:   "Function",
		Kind: descriptor.KindFunction,
		Props: map[string]any{
			"Role": descriptor.Attr{ID: "Role", Name: "Arn"},
		},
	})
	return set
}

func TestGenerator_Generate_SimpleGraph(t *testing.T) {
	gen := &Generator{}
	var sb strings.Builder
	if err := gen.Generate(sampleSet(), &sb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := sb.String()
	if !strings.Contains(output, "digraph") {
		t.Error("expected digraph declaration")
	}
	for _, want := range []string{"Vpc", "Subnet", "AWS::EC2::Subnet", "AWS::Lambda::Function"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output", want)
		}
	}
	if !strings.Contains(output, "->") {
		t.Error("expected edges")
	}
}

func TestGenerator_Generate_EdgeStyles(t *testing.T) {
	out, err := (&Generator{}).GenerateString(sampleSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Attr references are blue, DependsOn-only edges dashed.
	if !strings.Contains(out, "blue") {
		t.Error("expected blue color for attribute edge")
	}
	if !strings.Contains(out, "dashed") {
		t.Error("expected dashed style for explicit dependency")
	}
}

func TestGenerator_Generate_ClusterByService(t *testing.T) {
	out, err := (&Generator{ClusterByService: true}).GenerateString(sampleSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(out, "cluster_ec2") {
		t.Error("expected cluster for ec2 descriptors")
	}
	// iam and lambda each have one member.
	if strings.Contains(out, "cluster_iam") || strings.Contains(out, "cluster_lambda") {
		t.Error("single-member services should not be clustered")
	}
}

func TestGenerator_Generate_Levels(t *testing.T) {
	out, err := (&Generator{ShowLevels: true}).GenerateString(sampleSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "level 0") || !strings.Contains(out, "level 1") {
		t.Errorf("expected level annotations, got:\n%s", out)
	}
}

func TestGenerator_Generate_Mermaid(t *testing.T) {
	out, err := (&Generator{Format: FormatMermaid}).GenerateString(sampleSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "flowchart") && !strings.Contains(out, "graph") {
		t.Errorf("expected mermaid header, got:\n%s", out)
	}
}

func TestGenerator_Generate_Deterministic(t *testing.T) {
	gen := &Generator{ClusterByService: true}
	first, err := gen.GenerateString(sampleSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for range 5 {
		again, err := gen.GenerateString(sampleSet())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatal("graph output differs between runs")
		}
	}
}

func TestGenerator_Generate_UnresolvedReference(t *testing.T) {
	set := descriptor.NewSet()
	set.MustAdd(descriptor.Descriptor{
		ID:    "Subnet",
		Kind:  descriptor.KindSubnet,
		Props: map[string]any{"VpcId": descriptor.Ref{ID: "Missing"}},
	})
	if _, err := (&Generator{}).GenerateString(set); err == nil {
		t.Fatal("expected error for unresolved reference")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatDOT, false},
		{"dot", FormatDOT, false},
		{"mermaid", FormatMermaid, false},
		{"svg", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
