package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/wetwire-topology-go/internal/azselect"
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/network"
	"github.com/lex00/wetwire-topology-go/internal/spec"
	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

var testNaming = spec.Naming{Project: "acme", Environment: "dev"}

func testNetwork(t *testing.T) *network.Network {
	t.Helper()
	n, err := network.Build(spec.NetworkSpec{
		CIDR:                  "10.0.0.0/16",
		ZoneCount:             2,
		PublicPrefixLength:    24,
		ProtectedPrefixLength: 24,
	}, "eu-west-1", testNaming, azselect.NewCatalog())
	require.NoError(t, err)
	return n
}

func TestBuild(t *testing.T) {
	n := testNetwork(t)
	g, err := Build(n, spec.SecuritySpec{
		Ingress: []spec.IngressRule{
			{CIDR: "10.0.0.0/16", Protocol: "tcp", Port: 443, Description: "https"},
			{PrefixList: "pl-0123456789abcdef0", Protocol: "tcp", Port: 5432},
			{CIDR: "192.168.0.0/24", Protocol: "-1"},
		},
	}, testNaming)
	require.NoError(t, err)

	assert.Equal(t, n.Key, g.NetworkKey)
	require.Len(t, g.Ingress, 3)
	assert.Equal(t, SourceCIDR, g.Ingress[0].SourceKind)
	assert.Equal(t, SourcePrefixList, g.Ingress[1].SourceKind)

	d, ok := g.Descriptors().Get(GroupID)
	require.True(t, ok)
	assert.Equal(t, "acme-dev-lambda-sg", d.Props["GroupName"])
	assert.Equal(t, spec.DefaultSGDescription, d.Props["GroupDescription"])
	assert.Equal(t, descriptor.Ref{ID: network.VpcID}, d.Props["VpcId"])

	ingress := d.Props["SecurityGroupIngress"].([]any)
	assert.Equal(t, map[string]any{
		"IpProtocol": "tcp", "FromPort": 443, "ToPort": 443, "CidrIp": "10.0.0.0/16", "Description": "https",
	}, ingress[0])
	assert.Equal(t, "pl-0123456789abcdef0", ingress[1].(map[string]any)["SourcePrefixListId"])
	assert.NotContains(t, ingress[2].(map[string]any), "FromPort")

	assert.Equal(t, []any{map[string]any{"IpProtocol": "-1", "CidrIp": "0.0.0.0/0"}}, d.Props["SecurityGroupEgress"])
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		rule spec.IngressRule
	}{
		{"empty source", spec.IngressRule{Protocol: "tcp", Port: 443}},
		{"malformed cidr", spec.IngressRule{CIDR: "10.0.0/16", Protocol: "tcp", Port: 443}},
		{"host bits", spec.IngressRule{CIDR: "10.0.0.1/16", Protocol: "tcp", Port: 443}},
		{"malformed prefix list", spec.IngressRule{PrefixList: "pl-xyz", Protocol: "tcp", Port: 443}},
		{"both sources", spec.IngressRule{CIDR: "10.0.0.0/16", PrefixList: "pl-0123456789abcdef0", Protocol: "tcp", Port: 443}},
		{"bad port", spec.IngressRule{CIDR: "10.0.0.0/16", Protocol: "tcp", Port: 70000}},
		{"bad protocol", spec.IngressRule{CIDR: "10.0.0.0/16", Protocol: "sctp", Port: 1}},
	}

	n := testNetwork(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(n, spec.SecuritySpec{Ingress: []spec.IngressRule{tt.rule}}, testNaming)
			require.Error(t, err)
			assert.True(t, errors.Is(err, topoerr.ErrConfiguration))
		})
	}
}
