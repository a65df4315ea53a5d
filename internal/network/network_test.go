package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/wetwire-topology-go/internal/azselect"
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/spec"
	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

var testNaming = spec.Naming{Project: "c-elect-meg-cloud", Environment: "poc"}

func referenceSpec() spec.NetworkSpec {
	return spec.NetworkSpec{
		CIDR:      "172.16.0.0/16",
		ZoneCount: 2,
		Zones: []spec.ZoneSpec{
			{Public: "172.16.0.0/24", Protected: "172.16.2.0/24"},
			{Public: "172.16.1.0/24", Protected: "172.16.3.0/24"},
		},
	}
}

func TestBuild_ReferenceScenario(t *testing.T) {
	n, err := Build(referenceSpec(), "ap-northeast-1", testNaming, azselect.NewCatalog())
	require.NoError(t, err)

	set := n.Descriptors()
	assert.Len(t, set.OfKind(descriptor.KindNatGateway), 2)
	assert.Len(t, set.OfKind(descriptor.KindSubnet), 4)
	assert.Len(t, set.OfKind(descriptor.KindRouteTable), 3)
	assert.Len(t, set.OfKind(descriptor.KindEIP), 2)
	assert.Len(t, set.OfKind(descriptor.KindInternetGateway), 1)

	assert.Equal(t, []string{"172.16.0.0/24", "172.16.1.0/24"}, cidrs(n.PublicSubnets()))
	assert.Equal(t, []string{"172.16.2.0/24", "172.16.3.0/24"}, cidrs(n.ProtectedSubnets()))
	assert.Equal(t, "ap-northeast-1a", n.Slots[0].Zone)
	assert.Equal(t, "ap-northeast-1c", n.Slots[1].Zone)

	// One shared public route table, default route to the internet gateway.
	assert.Equal(t, []string{"PublicSubnetA", "PublicSubnetB"}, n.PublicRouteTable.Subnets)
	require.Len(t, n.PublicRouteTable.Routes, 1)
	assert.Equal(t, InternetGatewayID, n.PublicRouteTable.Routes[0].Target)

	route, ok := set.Get(PublicDefaultRouteID)
	require.True(t, ok)
	assert.Equal(t, descriptor.Ref{ID: InternetGatewayID}, route.Props["GatewayId"])
	assert.Equal(t, DefaultRoute, route.Props["DestinationCidrBlock"])

	require.NoError(t, set.Check())
	_, err = set.Order()
	require.NoError(t, err)
}

func TestBuild_SameZoneNatPairing(t *testing.T) {
	s := spec.NetworkSpec{
		CIDR:                  "10.0.0.0/16",
		ZoneCount:             3,
		PublicPrefixLength:    24,
		ProtectedPrefixLength: 20,
	}
	n, err := Build(s, "us-east-1", testNaming, azselect.NewCatalog())
	require.NoError(t, err)
	set := n.Descriptors()

	for _, slot := range n.Slots {
		require.Len(t, slot.RouteTable.Routes, 1)
		assert.Equal(t, slot.NatGateway.ID, slot.RouteTable.Routes[0].Target)
		assert.Equal(t, []string{slot.Protected.ID}, slot.RouteTable.Subnets)
		assert.Equal(t, slot.Public.ID, slot.NatGateway.SubnetID)
		assert.Equal(t, slot.Zone, slot.Public.Zone)
		assert.Equal(t, slot.Zone, slot.Protected.Zone)

		x := Letter(slot.Ordinal)
		route, ok := set.Get("ProtectedDefaultRoute" + x)
		require.True(t, ok)
		assert.Equal(t, descriptor.Ref{ID: "NatGateway" + x}, route.Props["NatGatewayId"])
		assert.Equal(t, descriptor.Ref{ID: "ProtectedRouteTable" + x}, route.Props["RouteTableId"])

		nat, ok := set.Get("NatGateway" + x)
		require.True(t, ok)
		assert.Equal(t, descriptor.Attr{ID: "NatEip" + x, Name: "AllocationId"}, nat.Props["AllocationId"])
		assert.Equal(t, descriptor.Ref{ID: "PublicSubnet" + x}, nat.Props["SubnetId"])
	}

	assert.Equal(t, []string{"10.0.0.0/24", "10.0.1.0/24", "10.0.2.0/24"}, cidrs(n.PublicSubnets()))
	assert.Equal(t, []string{"10.0.16.0/20", "10.0.32.0/20", "10.0.48.0/20"}, cidrs(n.ProtectedSubnets()))
}

func TestBuild_Tags(t *testing.T) {
	n, err := Build(referenceSpec(), "ap-northeast-1", testNaming, azselect.NewCatalog())
	require.NoError(t, err)

	tests := []struct {
		id   string
		name string
	}{
		{"PublicSubnetA", "c-elect-meg-cloud-poc-pub-natgw-1a"},
		{"ProtectedSubnetB", "c-elect-meg-cloud-poc-prot-lambda-1c"},
		{"NatEipB", "c-elect-meg-cloud-poc-natgw-1c-eip"},
		{"ProtectedRouteTableA", "c-elect-meg-cloud-poc-protected-rtb-1a"},
		{"PublicRouteTable", "c-elect-meg-cloud-poc-public-rtb"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			d, ok := n.Descriptors().Get(tt.id)
			require.True(t, ok)
			tags := d.Props["Tags"].([]any)
			assert.Equal(t, map[string]any{"Key": "Name", "Value": tt.name}, tags[2])
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*spec.NetworkSpec)
		region string
		want   error
	}{
		{"zone count exceeds region", func(s *spec.NetworkSpec) {
			s.ZoneCount = 3
			s.Zones = append(s.Zones, spec.ZoneSpec{Public: "172.16.4.0/24", Protected: "172.16.5.0/24"})
		}, "us-west-1", topoerr.ErrConfiguration},
		{"zero zones", func(s *spec.NetworkSpec) { s.ZoneCount = 0 }, "ap-northeast-1", topoerr.ErrConfiguration},
		{"zone list mismatch", func(s *spec.NetworkSpec) { s.ZoneCount = 1 }, "ap-northeast-1", topoerr.ErrConfiguration},
		{"malformed parent", func(s *spec.NetworkSpec) { s.CIDR = "172.16.0.0/33" }, "ap-northeast-1", topoerr.ErrConfiguration},
		{"overlapping blocks", func(s *spec.NetworkSpec) { s.Zones[1].Protected = "172.16.2.128/25" }, "ap-northeast-1", topoerr.ErrAddressSpaceExhausted},
		{"block outside parent", func(s *spec.NetworkSpec) { s.Zones[0].Public = "10.0.0.0/24" }, "ap-northeast-1", topoerr.ErrAddressSpaceExhausted},
		{"prefix lengths do not fit", func(s *spec.NetworkSpec) {
			s.Zones = nil
			s.PublicPrefixLength = 17
			s.ProtectedPrefixLength = 17
		}, "ap-northeast-1", topoerr.ErrAddressSpaceExhausted},
		{"no blocks and no prefix lengths", func(s *spec.NetworkSpec) { s.Zones = nil }, "ap-northeast-1", topoerr.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := referenceSpec()
			tt.mutate(&s)
			_, err := Build(s, tt.region, testNaming, azselect.NewCatalog())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestBuild_EmptyZoneName(t *testing.T) {
	c := azselect.NewCatalog()
	c.Set("ap-northeast-1", []string{"", "ap-northeast-1c"})

	var err error
	require.NotPanics(t, func() {
		_, err = Build(referenceSpec(), "ap-northeast-1", testNaming, c)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, topoerr.ErrConfiguration), "got %v", err)
}

func TestBuild_Deterministic(t *testing.T) {
	a, err := Build(referenceSpec(), "ap-northeast-1", testNaming, azselect.NewCatalog())
	require.NoError(t, err)
	b, err := Build(referenceSpec(), "ap-northeast-1", testNaming, azselect.NewCatalog())
	require.NoError(t, err)

	assert.Equal(t, a.Key, b.Key)
	assert.Equal(t, a.Descriptors().Descriptors(), b.Descriptors().Descriptors())
	assert.Equal(t, a.Slots, b.Slots)

	other := referenceSpec()
	other.CIDR = "172.17.0.0/16"
	other.Zones = []spec.ZoneSpec{
		{Public: "172.17.0.0/24", Protected: "172.17.2.0/24"},
		{Public: "172.17.1.0/24", Protected: "172.17.3.0/24"},
	}
	c, err := Build(other, "ap-northeast-1", testNaming, azselect.NewCatalog())
	require.NoError(t, err)
	assert.NotEqual(t, a.Key, c.Key)
}

func cidrs(subnets []Subnet) []string {
	out := make([]string, len(subnets))
	for i, s := range subnets {
		out[i] = s.CIDR
	}
	return out
}
