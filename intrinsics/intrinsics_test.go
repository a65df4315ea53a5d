package intrinsics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntrinsics_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"ref", Ref{LogicalName: "Vpc"}, `{"Ref": "Vpc"}`},
		{"getatt", GetAtt{LogicalName: "LambdaExecutionRole", Attribute: "Arn"}, `{"Fn::GetAtt": ["LambdaExecutionRole", "Arn"]}`},
		{"sub", Sub{String: "${AWS::Region}-bucket"}, `{"Fn::Sub": "${AWS::Region}-bucket"}`},
		{"join", Join{Delimiter: "", Values: []any{"a", "b"}}, `{"Fn::Join": ["", ["a", "b"]]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestPseudo(t *testing.T) {
	for _, name := range []string{"AWS::AccountId", "AWS::Partition", "AWS::Region", "AWS::URLSuffix"} {
		t.Run(name, func(t *testing.T) {
			p, ok := Pseudo(name)
			require.True(t, ok)
			data, err := json.Marshal(p)
			require.NoError(t, err)
			assert.JSONEq(t, `{"Ref": "`+name+`"}`, string(data))
		})
	}

	_, ok := Pseudo("AWS::StackName")
	assert.False(t, ok)
}
