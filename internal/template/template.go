// Package template renders a descriptor arena as a CloudFormation template.
package template

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	wetwire "github.com/lex00/wetwire-topology-go"
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/orchestrator"
	"github.com/lex00/wetwire-topology-go/intrinsics"
)

// FormatVersion is the only CloudFormation template format version.
const FormatVersion = "2010-09-09"

// cfServices maps descriptor service prefixes to CloudFormation namespaces.
var cfServices = map[string]string{
	"ec2":        "EC2",
	"logs":       "Logs",
	"s3":         "S3",
	"iam":        "IAM",
	"lambda":     "Lambda",
	"apigateway": "ApiGateway",
}

// Builder constructs CloudFormation templates from a descriptor arena.
type Builder struct {
	set         *descriptor.Set
	outputs     []orchestrator.Output
	description string
}

// NewBuilder creates a template builder for set.
func NewBuilder(set *descriptor.Set) *Builder {
	return &Builder{set: set}
}

// FromComposition creates a builder for a composed topology, including its
// outputs.
func FromComposition(c *orchestrator.Composition) *Builder {
	b := NewBuilder(c.Descriptors)
	b.outputs = c.Outputs
	b.description = fmt.Sprintf("%s %s network topology", c.Spec.Project, c.Spec.Environment)
	return b
}

// WithOutputs sets the template outputs.
func (b *Builder) WithOutputs(outputs []orchestrator.Output) *Builder {
	b.outputs = outputs
	return b
}

// WithDescription sets the template description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.description = desc
	return b
}

// Build constructs the CloudFormation template.
func (b *Builder) Build() (*wetwire.Template, error) {
	// Ordering also checks that every reference resolves.
	order, err := b.set.Order()
	if err != nil {
		return nil, err
	}

	t := &wetwire.Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              b.description,
		Resources:                make(map[string]wetwire.ResourceDef, len(order)),
	}

	for _, id := range order {
		d, _ := b.set.Get(id)
		resourceType, err := CFResourceType(d.Kind)
		if err != nil {
			return nil, err
		}

		props, ok := transformValue(d.Props).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("serializing %s: properties are not an object", id)
		}

		var dependsOn []string
		if len(d.DependsOn) > 0 {
			dependsOn = append(dependsOn, d.DependsOn...)
			sort.Strings(dependsOn)
		}

		t.Resources[id] = wetwire.ResourceDef{
			Type:       resourceType,
			Properties: props,
			DependsOn:  dependsOn,
		}
	}

	if len(b.outputs) > 0 {
		t.Outputs = make(map[string]wetwire.Output, len(b.outputs))
		for _, o := range b.outputs {
			out := wetwire.Output{
				Description: o.Description,
				Value:       transformValue(o.Value),
			}
			if o.Export != "" {
				out.Export = &wetwire.Export{Name: o.Export}
			}
			t.Outputs[o.Name] = out
		}
	}

	return t, nil
}

// CFResourceType maps a descriptor kind to its CloudFormation type, e.g.
// "ec2.VPC" → "AWS::EC2::VPC".
func CFResourceType(k descriptor.Kind) (string, error) {
	svc := k.Service()
	ns, ok := cfServices[svc]
	if !ok || len(k) <= len(svc)+1 {
		return "", fmt.Errorf("unknown resource kind: %s", k)
	}
	return "AWS::" + ns + "::" + string(k[len(svc)+1:]), nil
}

// transformValue replaces symbolic values with intrinsic functions.
func transformValue(value any) any {
	switch v := value.(type) {
	case descriptor.Ref:
		return intrinsics.Ref{LogicalName: v.ID}
	case descriptor.Attr:
		return intrinsics.GetAtt{LogicalName: v.ID, Attribute: v.Name}
	case descriptor.Pseudo:
		if p, ok := intrinsics.Pseudo(string(v)); ok {
			return p
		}
		return intrinsics.Ref{LogicalName: string(v)}
	case descriptor.Concat:
		parts := make([]any, len(v))
		for i, part := range v {
			parts[i] = transformValue(part)
		}
		return intrinsics.Join{Delimiter: "", Values: parts}
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = transformValue(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = transformValue(val)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = val
		}
		return out
	}
	return value
}

// ToJSON serializes the template to indented JSON.
func ToJSON(t *wetwire.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML. The template passes through JSON
// first so intrinsic functions take their CloudFormation shape.
func ToYAML(t *wetwire.Template) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}
