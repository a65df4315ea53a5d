package descriptor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

func networkSet(t *testing.T) *Set {
	t.Helper()
	s := NewSet()
	require.NoError(t, s.Add(Descriptor{ID: "Vpc", Kind: KindVPC, Props: map[string]any{"CidrBlock": "172.16.0.0/16"}}))
	require.NoError(t, s.Add(Descriptor{ID: "InternetGateway", Kind: KindInternetGateway}))
	require.NoError(t, s.Add(Descriptor{ID: "InternetGatewayAttachment", Kind: KindVPCGatewayAttachment, Props: map[string]any{
		"VpcId":             Ref{ID: "Vpc"},
		"InternetGatewayId": Ref{ID: "InternetGateway"},
	}}))
	require.NoError(t, s.Add(Descriptor{ID: "PublicSubnetA", Kind: KindSubnet, Props: map[string]any{"VpcId": Ref{ID: "Vpc"}}}))
	require.NoError(t, s.Add(Descriptor{ID: "NatEipA", Kind: KindEIP, DependsOn: []string{"InternetGatewayAttachment"}}))
	require.NoError(t, s.Add(Descriptor{ID: "NatGatewayA", Kind: KindNatGateway, Props: map[string]any{
		"SubnetId":     Ref{ID: "PublicSubnetA"},
		"AllocationId": Attr{ID: "NatEipA", Name: "AllocationId"},
	}}))
	return s
}

func TestSet_AddDuplicate(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Add(Descriptor{ID: "Vpc", Kind: KindVPC}))

	err := s.Add(Descriptor{ID: "Vpc", Kind: KindVPC})
	assert.True(t, errors.Is(err, topoerr.ErrConfiguration))

	err = s.Add(Descriptor{Kind: KindVPC})
	assert.True(t, errors.Is(err, topoerr.ErrConfiguration))
}

func TestSet_Order(t *testing.T) {
	s := networkSet(t)

	order, err := s.Order()
	require.NoError(t, err)
	require.Len(t, order, 6)

	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}

	assert.Less(t, pos["Vpc"], pos["PublicSubnetA"])
	assert.Less(t, pos["InternetGatewayAttachment"], pos["NatEipA"])
	assert.Less(t, pos["NatEipA"], pos["NatGatewayA"])
	assert.Less(t, pos["PublicSubnetA"], pos["NatGatewayA"])

	again, err := s.Order()
	require.NoError(t, err)
	assert.Equal(t, order, again)
}

func TestSet_Levels(t *testing.T) {
	s := networkSet(t)

	levels, err := s.Levels()
	require.NoError(t, err)

	assert.Equal(t, []string{"InternetGateway", "Vpc"}, levels[0])
	assert.Equal(t, []string{"InternetGatewayAttachment", "PublicSubnetA"}, levels[1])
	assert.Equal(t, []string{"NatEipA"}, levels[2])
	assert.Equal(t, []string{"NatGatewayA"}, levels[3])
}

func TestSet_Cycle(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Add(Descriptor{ID: "A", Kind: KindRole, Props: map[string]any{"x": Ref{ID: "B"}}}))
	require.NoError(t, s.Add(Descriptor{ID: "B", Kind: KindRole, Props: map[string]any{"x": Ref{ID: "A"}}}))

	_, err := s.Order()
	require.Error(t, err)
	assert.True(t, errors.Is(err, topoerr.ErrDependencyUnresolved))
	assert.Contains(t, err.Error(), "circular dependency detected")
}

func TestSet_CheckUndefined(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Add(Descriptor{ID: "Route", Kind: KindRoute, Props: map[string]any{
		"NatGatewayId": Ref{ID: "NatGatewayZ"},
	}}))

	err := s.Check()
	require.Error(t, err)
	assert.True(t, errors.Is(err, topoerr.ErrDependencyUnresolved))
	assert.Contains(t, err.Error(), "NatGatewayZ")
}

func TestSet_Merge(t *testing.T) {
	a := NewSet()
	a.MustAdd(Descriptor{ID: "Vpc", Kind: KindVPC})
	b := NewSet()
	b.MustAdd(Descriptor{ID: "SecurityGroup", Kind: KindSecurityGroup})

	require.NoError(t, a.Merge(b))
	assert.Equal(t, []string{"SecurityGroup", "Vpc"}, a.IDs())

	err := a.Merge(b)
	assert.True(t, errors.Is(err, topoerr.ErrConfiguration))
}

func TestDescriptor_Dependencies(t *testing.T) {
	d := Descriptor{
		ID:        "Function",
		Kind:      KindFunction,
		DependsOn: []string{"Role"},
		Props: map[string]any{
			"Role": Attr{ID: "Role", Name: "Arn"},
			"VpcConfig": map[string]any{
				"SubnetIds":        []any{Ref{ID: "ProtectedSubnetB"}, Ref{ID: "ProtectedSubnetA"}},
				"SecurityGroupIds": []any{Attr{ID: "SecurityGroup", Name: "GroupId"}},
			},
			"Uri": Concat{"arn:", Attr{ID: "Function", Name: "Arn"}},
		},
	}

	assert.Equal(t, []string{"ProtectedSubnetA", "ProtectedSubnetB", "Role", "SecurityGroup"}, d.Dependencies())
}

func TestKind_Service(t *testing.T) {
	assert.Equal(t, "ec2", KindVPC.Service())
	assert.Equal(t, "apigateway", KindRestApi.Service())
	assert.Equal(t, "custom", Kind("custom").Service())
}
