// Package intrinsics provides the CloudFormation intrinsic functions used when
// rendering descriptors as a template.
//
// The types re-export cloudformation-schema-go so that callers depend on one
// import path:
//
//	Ref{LogicalName: "Vpc"}                    → {"Ref": "Vpc"}
//	GetAtt{LogicalName: "Role", Attribute: "Arn"} → {"Fn::GetAtt": ["Role", "Arn"]}
//	Join{Delimiter: "", Values: []any{"a", "b"}}  → {"Fn::Join": ["", ["a", "b"]]}
package intrinsics

import (
	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

type (
	// Ref represents a CloudFormation Ref intrinsic function.
	Ref = intrinsics.Ref

	// GetAtt represents a CloudFormation Fn::GetAtt intrinsic function.
	GetAtt = intrinsics.GetAtt

	// Sub represents a CloudFormation Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// Join represents a CloudFormation Fn::Join intrinsic function.
	Join = intrinsics.Join
)
