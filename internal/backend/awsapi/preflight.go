package awsapi

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// ssmBatch is the most names GetParameters accepts per call.
const ssmBatch = 10

// SSMAPI looks up parameters the compute resource is granted read access to.
type SSMAPI interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// KMSAPI looks up the key the compute resource decrypts with.
type KMSAPI interface {
	DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
}

// Preflight checks that secrets referenced by the compute resource exist
// before anything is provisioned.
type Preflight struct {
	ssm SSMAPI
	kms KMSAPI
}

// NewPreflight returns a Preflight over the given clients.
func NewPreflight(s SSMAPI, k KMSAPI) *Preflight {
	return &Preflight{ssm: s, kms: k}
}

// Check reports missing parameters or an unusable key as a ConfigurationError.
func (p *Preflight) Check(ctx context.Context, parameters []string, keyArn string) error {
	var missing []string
	for start := 0; start < len(parameters); start += ssmBatch {
		end := min(start+ssmBatch, len(parameters))
		out, err := p.ssm.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          parameters[start:end],
			WithDecryption: aws.Bool(false),
		})
		if err != nil {
			return fmt.Errorf("GetParameters: %w", err)
		}
		missing = append(missing, out.InvalidParameters...)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return topoerr.Configf("parameters not found: %s", strings.Join(missing, ", "))
	}

	if keyArn == "" {
		return nil
	}
	out, err := p.kms.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(keyArn)})
	if err != nil {
		if errorCode(err) == "NotFoundException" {
			return topoerr.Configf("kms key %s not found", keyArn)
		}
		return fmt.Errorf("DescribeKey: %w", err)
	}
	if out.KeyMetadata == nil || out.KeyMetadata.KeyState != kmstypes.KeyStateEnabled {
		state := "unknown"
		if out.KeyMetadata != nil {
			state = string(out.KeyMetadata.KeyState)
		}
		return topoerr.Configf("kms key %s is %s", keyArn, state)
	}
	return nil
}
