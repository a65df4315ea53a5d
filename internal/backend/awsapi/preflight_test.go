package awsapi

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

type mockSSMAPI struct {
	getParametersFunc func(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

func (m *mockSSMAPI) GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	return m.getParametersFunc(ctx, params, optFns...)
}

type mockKMSAPI struct {
	describeKeyFunc func(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
}

func (m *mockKMSAPI) DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
	return m.describeKeyFunc(ctx, params, optFns...)
}

func keyIn(state kmstypes.KeyState) *mockKMSAPI {
	return &mockKMSAPI{
		describeKeyFunc: func(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
			return &kms.DescribeKeyOutput{KeyMetadata: &kmstypes.KeyMetadata{KeyState: state}}, nil
		},
	}
}

func TestPreflight_Check(t *testing.T) {
	var batches [][]string
	ssmAPI := &mockSSMAPI{
		getParametersFunc: func(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
			batches = append(batches, params.Names)
			var invalid []string
			for _, n := range params.Names {
				if n == "/demo/missing" {
					invalid = append(invalid, n)
				}
			}
			return &ssm.GetParametersOutput{InvalidParameters: invalid}, nil
		},
	}

	t.Run("all present", func(t *testing.T) {
		batches = nil
		names := make([]string, 12)
		for i := range names {
			names[i] = "/demo/param"
		}
		require.NoError(t, NewPreflight(ssmAPI, keyIn(kmstypes.KeyStateEnabled)).Check(context.Background(), names, "arn:aws:kms:ap-northeast-1:111122223333:key/abc"))
		assert.Len(t, batches, 2)
	})

	t.Run("missing parameter", func(t *testing.T) {
		err := NewPreflight(ssmAPI, keyIn(kmstypes.KeyStateEnabled)).Check(context.Background(), []string{"/demo/db", "/demo/missing"}, "")
		assert.ErrorIs(t, err, topoerr.ErrConfiguration)
		assert.ErrorContains(t, err, "/demo/missing")
	})

	t.Run("disabled key", func(t *testing.T) {
		err := NewPreflight(ssmAPI, keyIn(kmstypes.KeyStateDisabled)).Check(context.Background(), nil, "arn:aws:kms:ap-northeast-1:111122223333:key/abc")
		assert.ErrorIs(t, err, topoerr.ErrConfiguration)
		assert.ErrorContains(t, err, "Disabled")
	})

	t.Run("key not found", func(t *testing.T) {
		kmsAPI := &mockKMSAPI{
			describeKeyFunc: func(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
				return nil, apiError("NotFoundException", "key does not exist")
			},
		}
		err := NewPreflight(ssmAPI, kmsAPI).Check(context.Background(), nil, "arn:aws:kms:ap-northeast-1:111122223333:key/gone")
		assert.ErrorIs(t, err, topoerr.ErrConfiguration)
	})
}
