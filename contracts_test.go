package wetwire_topology

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_JSON(t *testing.T) {
	tmpl := Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Resources: map[string]ResourceDef{
			"Vpc": {Type: "AWS::EC2::VPC", Properties: map[string]any{"CidrBlock": "10.0.0.0/16"}},
		},
		Outputs: map[string]Output{
			"NetworkId": {Value: map[string]any{"Ref": "Vpc"}, Export: &Export{Name: "net"}},
		},
	}

	data, err := json.Marshal(tmpl)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"AWSTemplateFormatVersion": "2010-09-09",
		"Resources": {"Vpc": {"Type": "AWS::EC2::VPC", "Properties": {"CidrBlock": "10.0.0.0/16"}}},
		"Outputs": {"NetworkId": {"Value": {"Ref": "Vpc"}, "Export": {"Name": "net"}}}
	}`, string(data))
}

func TestResults_OmitEmpty(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{
			name:     "validate success",
			value:    ValidateResult{Success: true, Resources: 3},
			expected: `{"success":true,"resources":3}`,
		},
		{
			name:     "apply failure",
			value:    ApplyResult{Error: "boom", Stage: "apply"},
			expected: `{"success":false,"error":"boom","stage":"apply"}`,
		},
		{
			name:     "list",
			value:    ListResult{Resources: []ListResource{{Name: "Vpc", Type: "AWS::EC2::VPC"}}},
			expected: `{"resources":[{"name":"Vpc","type":"AWS::EC2::VPC","level":0}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}
