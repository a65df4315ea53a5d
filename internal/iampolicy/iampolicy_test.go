package iampolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssumeRole(t *testing.T) {
	doc := AssumeRole("lambda.amazonaws.com")

	assert.Equal(t, map[string]any{
		"Version": "2012-10-17",
		"Statement": []any{
			map[string]any{
				"Effect":    "Allow",
				"Principal": map[string]any{"Service": "lambda.amazonaws.com"},
				"Action":    "sts:AssumeRole",
			},
		},
	}, doc)
}

func TestDocument_Actions(t *testing.T) {
	doc := Document(
		Allow([]string{"logs:PutLogEvents", "logs:CreateLogStream"}, "arn:aws:logs:*:*:*"),
		Allow([]string{"ec2:CreateNetworkInterface"}, "*"),
		Allow([]string{"logs:CreateLogStream"}, "a", "b"),
	)

	stmts := doc["Statement"].([]any)
	assert.Equal(t, "*", stmts[1].(map[string]any)["Resource"])
	assert.Equal(t, []any{"a", "b"}, stmts[2].(map[string]any)["Resource"])
	assert.Equal(t, []string{"ec2:CreateNetworkInterface", "logs:CreateLogStream", "logs:PutLogEvents"}, Actions(doc))
}

func TestInline(t *testing.T) {
	p := Inline("flow-logs", Document())
	assert.Equal(t, "flow-logs", p["PolicyName"])
	assert.Equal(t, []any{}, p["PolicyDocument"].(map[string]any)["Statement"])
}
