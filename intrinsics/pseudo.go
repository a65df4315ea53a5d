package intrinsics

import (
	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

// Pseudo-parameters resolved by CloudFormation for the current stack.
var (
	AWS_ACCOUNT_ID = intrinsics.AWS_ACCOUNT_ID
	AWS_PARTITION  = intrinsics.AWS_PARTITION
	AWS_REGION     = intrinsics.AWS_REGION
	AWS_URL_SUFFIX = intrinsics.AWS_URL_SUFFIX
)

var pseudoParams = map[string]any{
	"AWS::AccountId": AWS_ACCOUNT_ID,
	"AWS::Partition": AWS_PARTITION,
	"AWS::Region":    AWS_REGION,
	"AWS::URLSuffix": AWS_URL_SUFFIX,
}

// Pseudo returns the pseudo-parameter named name, e.g. "AWS::Region".
func Pseudo(name string) (any, bool) {
	p, ok := pseudoParams[name]
	return p, ok
}
