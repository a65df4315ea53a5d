package compute

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/wetwire-topology-go/internal/azselect"
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/iampolicy"
	"github.com/lex00/wetwire-topology-go/internal/network"
	"github.com/lex00/wetwire-topology-go/internal/security"
	"github.com/lex00/wetwire-topology-go/internal/spec"
	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

var testNaming = spec.Naming{Project: "acme", Environment: "dev"}

func buildNetwork(t *testing.T, block string) *network.Network {
	t.Helper()
	n, err := network.Build(spec.NetworkSpec{
		CIDR:                  block,
		ZoneCount:             2,
		PublicPrefixLength:    24,
		ProtectedPrefixLength: 24,
	}, "eu-west-1", testNaming, azselect.NewCatalog())
	require.NoError(t, err)
	return n
}

func buildGroup(t *testing.T, n *network.Network) *security.Group {
	t.Helper()
	g, err := security.Build(n, spec.SecuritySpec{}, testNaming)
	require.NoError(t, err)
	return g
}

func workerSpec() spec.ComputeSpec {
	return spec.ComputeSpec{
		Name:           "worker",
		Handler:        "main.handler",
		Runtime:        "python3.12",
		MemoryMB:       256,
		TimeoutSeconds: 30,
		Code:           spec.CodeLocation{Bucket: "artifacts", Key: "worker.zip", Version: "3"},
		Environment:    map[string]string{"DB_PASSWORD": "/worker/db/password"},
		Parameters:     []string{"/worker/db/password"},
		Capabilities:   []string{"write-logs", "read-parameters"},
	}
}

func TestBuild_VPCBound(t *testing.T) {
	n := buildNetwork(t, "10.0.0.0/16")
	g := buildGroup(t, n)

	r, err := Build(n, n.ProtectedSubnets(), []*security.Group{g}, workerSpec(), testNaming)
	require.NoError(t, err)

	assert.Equal(t, []Capability{ManageNetworkInterfaces, ReadParameters, WriteLogs}, r.Capabilities)
	assert.Equal(t, []string{"ProtectedSubnetA", "ProtectedSubnetB"}, r.SubnetIDs)
	assert.Equal(t, "acme-dev-worker", r.FunctionName)

	fn, ok := r.Descriptors().Get(FunctionID)
	require.True(t, ok)
	assert.Equal(t, descriptor.Attr{ID: RoleID, Name: "Arn"}, fn.Props["Role"])
	assert.Equal(t, map[string]any{"S3Bucket": "artifacts", "S3Key": "worker.zip", "S3ObjectVersion": "3"}, fn.Props["Code"])
	assert.Equal(t, map[string]any{
		"SubnetIds":        []any{descriptor.Ref{ID: "ProtectedSubnetA"}, descriptor.Ref{ID: "ProtectedSubnetB"}},
		"SecurityGroupIds": []any{descriptor.Attr{ID: security.GroupID, Name: "GroupId"}},
	}, fn.Props["VpcConfig"])
	assert.Equal(t, []string{"LambdaExecutionRole", "LambdaSecurityGroup", "ProtectedSubnetA", "ProtectedSubnetB"}, fn.Dependencies())

	role, ok := r.Descriptors().Get(RoleID)
	require.True(t, ok)
	policy := role.Props["Policies"].([]any)[0].(map[string]any)["PolicyDocument"].(map[string]any)
	assert.Equal(t, []string{
		"ec2:CreateNetworkInterface",
		"ec2:DeleteNetworkInterface",
		"ec2:DescribeNetworkInterfaces",
		"logs:CreateLogGroup",
		"logs:CreateLogStream",
		"logs:PutLogEvents",
		"ssm:GetParameter",
		"ssm:GetParameters",
	}, iampolicy.Actions(policy))
	assert.NotContains(t, iampolicy.Actions(policy), "kms:Decrypt")
}

func TestBuild_EnvironmentDetachedFromSpec(t *testing.T) {
	n := buildNetwork(t, "10.0.0.0/16")
	s := workerSpec()

	r, err := Build(n, nil, nil, s, testNaming)
	require.NoError(t, err)

	s.Environment["DB_PASSWORD"] = "/other/password"
	s.Environment["EXTRA"] = "1"

	assert.Equal(t, map[string]string{"DB_PASSWORD": "/worker/db/password"}, r.Environment)
	fn, _ := r.Descriptors().Get(FunctionID)
	assert.Equal(t, map[string]any{"Variables": map[string]any{"DB_PASSWORD": "/worker/db/password"}}, fn.Props["Environment"])
}

func TestBuild_WithoutNetwork(t *testing.T) {
	n := buildNetwork(t, "10.0.0.0/16")
	s := workerSpec()
	s.Capabilities = []string{"decrypt"}
	s.KMSKeyArn = "arn:aws:kms:eu-west-1:111122223333:key/abc"

	r, err := Build(n, nil, nil, s, testNaming)
	require.NoError(t, err)
	assert.False(t, r.VPCBound())
	assert.Equal(t, []Capability{Decrypt}, r.Capabilities)

	fn, _ := r.Descriptors().Get(FunctionID)
	assert.NotContains(t, fn.Props, "VpcConfig")
	assert.Equal(t, s.KMSKeyArn, fn.Props["KmsKeyArn"])
}

func TestBuild_CrossNetworkBinding(t *testing.T) {
	a := buildNetwork(t, "10.0.0.0/16")
	b := buildNetwork(t, "10.1.0.0/16")
	groupOnB := buildGroup(t, b)

	_, err := Build(a, a.ProtectedSubnets(), []*security.Group{groupOnB}, workerSpec(), testNaming)
	require.Error(t, err)
	assert.True(t, errors.Is(err, topoerr.ErrConfiguration))
	assert.Contains(t, err.Error(), "cross-network binding")

	// Subnets from B while composing over A.
	_, err = Build(a, b.ProtectedSubnets(), []*security.Group{buildGroup(t, a)}, workerSpec(), testNaming)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cross-network binding")
}

func TestBuild_Errors(t *testing.T) {
	n := buildNetwork(t, "10.0.0.0/16")
	g := buildGroup(t, n)

	tests := []struct {
		name    string
		subnets []network.Subnet
		mutate  func(*spec.ComputeSpec)
	}{
		{"public subnet", n.PublicSubnets(), func(s *spec.ComputeSpec) {}},
		{"unknown capability", n.ProtectedSubnets(), func(s *spec.ComputeSpec) { s.Capabilities = []string{"admin"} }},
		{"memory too low", n.ProtectedSubnets(), func(s *spec.ComputeSpec) { s.MemoryMB = 64 }},
		{"timeout too long", n.ProtectedSubnets(), func(s *spec.ComputeSpec) { s.TimeoutSeconds = 901 }},
		{"no handler", n.ProtectedSubnets(), func(s *spec.ComputeSpec) { s.Handler = "" }},
		{"no code key", n.ProtectedSubnets(), func(s *spec.ComputeSpec) { s.Code.Key = "" }},
		{"bad env key", n.ProtectedSubnets(), func(s *spec.ComputeSpec) { s.Environment = map[string]string{"1BAD": "x"} }},
		{"empty name", n.ProtectedSubnets(), func(s *spec.ComputeSpec) { s.Name = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := workerSpec()
			tt.mutate(&s)
			_, err := Build(n, tt.subnets, []*security.Group{g}, s, testNaming)
			require.Error(t, err)
			assert.True(t, errors.Is(err, topoerr.ErrConfiguration))
		})
	}
}

func TestExport(t *testing.T) {
	assert.Equal(t, "acme-dev-worker-Arn", Export(testNaming, "worker"))
}
