package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/orchestrator"
	"github.com/lex00/wetwire-topology-go/internal/spec"
)

func render(t *testing.T) *Bundle {
	t.Helper()
	g := spec.Default()
	c, err := orchestrator.New().Compose(g)
	require.NoError(t, err)
	b, err := Render(c.Descriptors, g.Naming(), "infra")
	require.NoError(t, err)
	return b
}

func find(b *Bundle, name string) *Object {
	for i := range b.Objects {
		if b.Objects[i].Metadata.Name == name {
			return &b.Objects[i]
		}
	}
	return nil
}

func TestRender_Network(t *testing.T) {
	b := render(t)
	prefix := spec.Default().Naming().Prefix()

	vpc := find(b, prefix+"-vpc")
	require.NotNil(t, vpc)
	assert.Equal(t, EC2Group, vpc.APIVersion)
	assert.Equal(t, "VPC", vpc.Kind)
	assert.Equal(t, "infra", vpc.Metadata.Namespace)
	assert.Equal(t, "Vpc", vpc.Metadata.Labels["wetwire.io/logical-id"])

	igw := find(b, prefix+"-internet-gateway")
	require.NotNil(t, igw)
	assert.Equal(t, map[string]any{"from": map[string]any{"name": prefix + "-vpc"}}, igw.Spec["vpcRef"])

	rtb := find(b, prefix+"-protected-route-table-a")
	require.NotNil(t, rtb)
	routes := rtb.Spec["routes"].([]any)
	require.Len(t, routes, 1)
	route := routes[0].(map[string]any)
	assert.Equal(t, "0.0.0.0/0", route["destinationCIDRBlock"])
	assert.Equal(t, map[string]any{"from": map[string]any{"name": prefix + "-nat-gateway-a"}}, route["natGatewayRef"])

	subnet := find(b, prefix+"-protected-subnet-a")
	require.NotNil(t, subnet)
	assert.Len(t, subnet.Spec["routeTableRefs"], 1)

	for _, o := range b.Objects {
		assert.NotEqual(t, "Route", o.Kind)
		assert.NotContains(t, o.Metadata.Name, "association")
		assert.NotContains(t, o.Metadata.Name, "attachment")
	}
}

func TestRender_SecurityAndRoles(t *testing.T) {
	b := render(t)
	prefix := spec.Default().Naming().Prefix()

	sg := find(b, prefix+"-lambda-security-group")
	require.NotNil(t, sg)
	require.NotEmpty(t, sg.Spec["ingressRules"])

	role := find(b, prefix+"-lambda-execution-role")
	require.NotNil(t, role)
	assert.Equal(t, IAMGroup, role.APIVersion)
	trust := role.Spec["assumeRolePolicyDocument"].(string)
	assert.Contains(t, trust, "lambda.amazonaws.com")
}

func TestRender_SkipsUnsupportedKinds(t *testing.T) {
	b := render(t)
	assert.Contains(t, b.Skipped, "LambdaFunction")
	assert.Contains(t, b.Skipped, "RestApi")
	assert.Contains(t, b.Skipped, "FlowLogGroup")
	assert.NotContains(t, b.Skipped, "Vpc")
}

func TestRender_FoldRequiresOwner(t *testing.T) {
	set := descriptor.NewSet()
	require.NoError(t, set.Add(descriptor.Descriptor{
		ID:   "Orphan",
		Kind: descriptor.KindRoute,
		Props: map[string]any{
			"RouteTableId":         "rtb-literal",
			"DestinationCidrBlock": "0.0.0.0/0",
		},
	}))
	_, err := Render(set, spec.Naming{Project: "p", Environment: "e"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Orphan")
}

func TestBundle_Marshal(t *testing.T) {
	b := render(t)
	out, err := b.Marshal()
	require.NoError(t, err)

	docs := strings.Split(string(out), "---\n")
	assert.Len(t, docs, len(b.Objects))
	assert.True(t, strings.HasPrefix(docs[0], "apiVersion: "+EC2Group))
	assert.Contains(t, docs[0], "kind: VPC")
}
