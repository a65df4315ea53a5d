// Package network builds the VPC topology: per-zone public and protected
// subnets, one NAT gateway per zone, a protected route table per zone and one
// shared public route table routed to the internet gateway.
package network

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lex00/wetwire-topology-go/internal/azselect"
	"github.com/lex00/wetwire-topology-go/internal/cidr"
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/spec"
	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// Fixed logical ids of the network-wide descriptors.
const (
	VpcID                       = "Vpc"
	InternetGatewayID           = "InternetGateway"
	InternetGatewayAttachmentID = "InternetGatewayAttachment"
	PublicRouteTableID          = "PublicRouteTable"
	PublicDefaultRouteID        = "PublicDefaultRoute"

	// DefaultRoute is the destination of every default route.
	DefaultRoute = "0.0.0.0/0"

	maxZones = 26
)

// Visibility distinguishes internet-routed subnets from NAT-routed ones.
type Visibility string

const (
	Public    Visibility = "public"
	Protected Visibility = "protected"
)

// Subnet is one zone-bound slice of the network. NetworkKey is a back-reference
// to the owning network, not ownership.
type Subnet struct {
	ID         string
	CIDR       string
	Zone       string
	Visibility Visibility
	NetworkKey string
}

// Route is one destination → next hop rule.
type Route struct {
	ID          string
	Destination string
	Target      string
}

// RouteTable holds routes and the subnets associated with it.
type RouteTable struct {
	ID         string
	NetworkKey string
	Routes     []Route
	Subnets    []string
}

// NatGateway is the egress point of one zone.
type NatGateway struct {
	ID       string
	SubnetID string
	EipID    string
}

// Slot groups everything built for one availability zone.
type Slot struct {
	Ordinal    int
	Zone       string
	Public     Subnet
	Protected  Subnet
	NatGateway NatGateway
	RouteTable RouteTable
}

// Network is the built topology. It is immutable once returned.
type Network struct {
	ID                string
	Key               string
	CIDR              string
	Region            string
	InternetGatewayID string
	PublicRouteTable  RouteTable
	Slots             []Slot

	descriptors *descriptor.Set
}

// Descriptors returns the network's descriptor arena.
func (n *Network) Descriptors() *descriptor.Set {
	return n.descriptors
}

// PublicSubnets returns the public subnet of every slot, in slot order.
func (n *Network) PublicSubnets() []Subnet {
	out := make([]Subnet, len(n.Slots))
	for i, s := range n.Slots {
		out[i] = s.Public
	}
	return out
}

// ProtectedSubnets returns the protected subnet of every slot, in slot order.
func (n *Network) ProtectedSubnets() []Subnet {
	out := make([]Subnet, len(n.Slots))
	for i, s := range n.Slots {
		out[i] = s.Protected
	}
	return out
}

// NatGateways returns the NAT gateway of every slot, in slot order.
func (n *Network) NatGateways() []NatGateway {
	out := make([]NatGateway, len(n.Slots))
	for i, s := range n.Slots {
		out[i] = s.NatGateway
	}
	return out
}

// ProtectedRouteTables returns the protected route table of every slot.
func (n *Network) ProtectedRouteTables() []RouteTable {
	out := make([]RouteTable, len(n.Slots))
	for i, s := range n.Slots {
		out[i] = s.RouteTable
	}
	return out
}

// Letter returns the slot letter used in logical ids: 'A' for ordinal 0.
func Letter(k int) string {
	return string(rune('A' + k))
}

// Build derives the network for s in region. Zones are taken from sel. Subnet
// blocks are either the explicit per-zone blocks of s or, when none are given,
// allocated in order from the prefix lengths: every public block first, then
// every protected block.
func Build(s spec.NetworkSpec, region string, naming spec.Naming, sel azselect.Selector) (*Network, error) {
	if s.ZoneCount <= 0 {
		return nil, topoerr.Configf("zone count must be positive, got %d", s.ZoneCount)
	}
	if s.ZoneCount > maxZones {
		return nil, topoerr.Configf("zone count %d exceeds %d", s.ZoneCount, maxZones)
	}

	zones := make([]string, s.ZoneCount)
	for k := range zones {
		z, err := sel.Select(region, k)
		if err != nil {
			return nil, err
		}
		zones[k] = z
	}

	parent, err := cidr.Parse(s.CIDR)
	if err != nil {
		return nil, err
	}
	public, protected, err := subnetBlocks(s, parent)
	if err != nil {
		return nil, err
	}

	n := &Network{
		ID:                VpcID,
		CIDR:              parent.String(),
		Region:            region,
		InternetGatewayID: InternetGatewayID,
	}
	n.Key = networkKey(region, parent, zones, public, protected)

	n.descriptors = descriptor.NewSet()
	n.descriptors.MustAdd(descriptor.Descriptor{
		ID:   VpcID,
		Kind: descriptor.KindVPC,
		Props: map[string]any{
			"CidrBlock":          n.CIDR,
			"EnableDnsSupport":   true,
			"EnableDnsHostnames": true,
			"Tags":               naming.Tags("vpc"),
		},
	})
	n.descriptors.MustAdd(descriptor.Descriptor{
		ID:    InternetGatewayID,
		Kind:  descriptor.KindInternetGateway,
		Props: map[string]any{"Tags": naming.Tags("igw")},
	})
	n.descriptors.MustAdd(descriptor.Descriptor{
		ID:   InternetGatewayAttachmentID,
		Kind: descriptor.KindVPCGatewayAttachment,
		Props: map[string]any{
			"VpcId":             descriptor.Ref{ID: VpcID},
			"InternetGatewayId": descriptor.Ref{ID: InternetGatewayID},
		},
	})
	n.descriptors.MustAdd(descriptor.Descriptor{
		ID:   PublicRouteTableID,
		Kind: descriptor.KindRouteTable,
		Props: map[string]any{
			"VpcId": descriptor.Ref{ID: VpcID},
			"Tags":  naming.Tags("public-rtb"),
		},
	})
	n.descriptors.MustAdd(descriptor.Descriptor{
		ID:   PublicDefaultRouteID,
		Kind: descriptor.KindRoute,
		Props: map[string]any{
			"RouteTableId":         descriptor.Ref{ID: PublicRouteTableID},
			"DestinationCidrBlock": DefaultRoute,
			"GatewayId":            descriptor.Ref{ID: InternetGatewayID},
		},
		DependsOn: []string{InternetGatewayAttachmentID},
	})

	// Slots share nothing but read-only inputs, so each is built on its own
	// goroutine and merged in ordinal order.
	slots := make([]Slot, s.ZoneCount)
	fragments := make([]*descriptor.Set, s.ZoneCount)
	var g errgroup.Group
	for k := range slots {
		g.Go(func() error {
			slot, frag, err := buildSlot(k, zones[k], public[k], protected[k], n.Key, naming)
			if err != nil {
				return err
			}
			slots[k] = slot
			fragments[k] = frag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n.PublicRouteTable = RouteTable{
		ID:         PublicRouteTableID,
		NetworkKey: n.Key,
		Routes:     []Route{{ID: PublicDefaultRouteID, Destination: DefaultRoute, Target: InternetGatewayID}},
	}
	for k, frag := range fragments {
		if err := n.descriptors.Merge(frag); err != nil {
			return nil, err
		}
		n.PublicRouteTable.Subnets = append(n.PublicRouteTable.Subnets, slots[k].Public.ID)
	}
	n.Slots = slots

	if err := n.descriptors.Check(); err != nil {
		return nil, err
	}
	return n, nil
}

func buildSlot(k int, zone string, public, protected netip.Prefix, key string, naming spec.Naming) (Slot, *descriptor.Set, error) {
	x := Letter(k)
	suffix := azselect.Label(zone)
	if suffix == "" {
		return Slot{}, nil, topoerr.Configf("slot %s has no availability zone", x)
	}

	var (
		publicID     = "PublicSubnet" + x
		publicAssoc  = publicID + "RouteTableAssociation"
		eipID        = "NatEip" + x
		natID        = "NatGateway" + x
		protectedID  = "ProtectedSubnet" + x
		routeTableID = "ProtectedRouteTable" + x
		routeID      = "ProtectedDefaultRoute" + x
		protAssoc    = protectedID + "RouteTableAssociation"
	)

	set := descriptor.NewSet()

	steps := []descriptor.Descriptor{
		{
			ID:   publicID,
			Kind: descriptor.KindSubnet,
			Props: map[string]any{
				"VpcId":               descriptor.Ref{ID: VpcID},
				"CidrBlock":           public.String(),
				"AvailabilityZone":    zone,
				"MapPublicIpOnLaunch": false,
				"Tags":                naming.Tags("pub-natgw-" + suffix),
			},
		},
		{
			ID:   publicAssoc,
			Kind: descriptor.KindSubnetRouteTableAssociation,
			Props: map[string]any{
				"SubnetId":     descriptor.Ref{ID: publicID},
				"RouteTableId": descriptor.Ref{ID: PublicRouteTableID},
			},
		},
		{
			ID:   eipID,
			Kind: descriptor.KindEIP,
			Props: map[string]any{
				"Domain": "vpc",
				"Tags":   naming.Tags("natgw-" + suffix + "-eip"),
			},
			DependsOn: []string{InternetGatewayAttachmentID},
		},
		{
			ID:   natID,
			Kind: descriptor.KindNatGateway,
			Props: map[string]any{
				"SubnetId":     descriptor.Ref{ID: publicID},
				"AllocationId": descriptor.Attr{ID: eipID, Name: "AllocationId"},
				"Tags":         naming.Tags("natgw-" + suffix),
			},
		},
		{
			ID:   protectedID,
			Kind: descriptor.KindSubnet,
			Props: map[string]any{
				"VpcId":               descriptor.Ref{ID: VpcID},
				"CidrBlock":           protected.String(),
				"AvailabilityZone":    zone,
				"MapPublicIpOnLaunch": false,
				"Tags":                naming.Tags("prot-lambda-" + suffix),
			},
		},
		{
			ID:   routeTableID,
			Kind: descriptor.KindRouteTable,
			Props: map[string]any{
				"VpcId": descriptor.Ref{ID: VpcID},
				"Tags":  naming.Tags("protected-rtb-" + suffix),
			},
		},
		{
			ID:   routeID,
			Kind: descriptor.KindRoute,
			Props: map[string]any{
				"RouteTableId":         descriptor.Ref{ID: routeTableID},
				"DestinationCidrBlock": DefaultRoute,
				"NatGatewayId":         descriptor.Ref{ID: natID},
			},
		},
		{
			ID:   protAssoc,
			Kind: descriptor.KindSubnetRouteTableAssociation,
			Props: map[string]any{
				"SubnetId":     descriptor.Ref{ID: protectedID},
				"RouteTableId": descriptor.Ref{ID: routeTableID},
			},
		},
	}
	for _, d := range steps {
		if err := set.Add(d); err != nil {
			return Slot{}, nil, err
		}
	}

	slot := Slot{
		Ordinal: k,
		Zone:    zone,
		Public: Subnet{
			ID: publicID, CIDR: public.String(), Zone: zone, Visibility: Public, NetworkKey: key,
		},
		Protected: Subnet{
			ID: protectedID, CIDR: protected.String(), Zone: zone, Visibility: Protected, NetworkKey: key,
		},
		NatGateway: NatGateway{ID: natID, SubnetID: publicID, EipID: eipID},
		RouteTable: RouteTable{
			ID:         routeTableID,
			NetworkKey: key,
			Routes:     []Route{{ID: routeID, Destination: DefaultRoute, Target: natID}},
			Subnets:    []string{protectedID},
		},
	}
	return slot, set, nil
}

// subnetBlocks returns the public and protected block of every slot.
func subnetBlocks(s spec.NetworkSpec, parent netip.Prefix) (public, protected []netip.Prefix, err error) {
	if len(s.Zones) > 0 {
		if len(s.Zones) != s.ZoneCount {
			return nil, nil, topoerr.Configf("zone count is %d but %d zone blocks are listed", s.ZoneCount, len(s.Zones))
		}
		public = make([]netip.Prefix, s.ZoneCount)
		protected = make([]netip.Prefix, s.ZoneCount)
		for k, z := range s.Zones {
			if public[k], err = cidr.Parse(z.Public); err != nil {
				return nil, nil, err
			}
			if protected[k], err = cidr.Parse(z.Protected); err != nil {
				return nil, nil, err
			}
		}
		all := append(append([]netip.Prefix(nil), public...), protected...)
		if err := cidr.Validate(parent, all); err != nil {
			return nil, nil, err
		}
		return public, protected, nil
	}

	if s.PublicPrefixLength == 0 || s.ProtectedPrefixLength == 0 {
		return nil, nil, topoerr.Configf("network needs either explicit zone blocks or both prefix lengths")
	}
	sizes := make([]int, 0, 2*s.ZoneCount)
	for range s.ZoneCount {
		sizes = append(sizes, s.PublicPrefixLength)
	}
	for range s.ZoneCount {
		sizes = append(sizes, s.ProtectedPrefixLength)
	}
	blocks, err := cidr.Allocate(parent, sizes)
	if err != nil {
		return nil, nil, err
	}
	return blocks[:s.ZoneCount], blocks[s.ZoneCount:], nil
}

// networkKey identifies one network instance by what it was built from.
func networkKey(region string, parent netip.Prefix, zones []string, public, protected []netip.Prefix) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s", region, parent)
	for k := range zones {
		fmt.Fprintf(&b, "|%s=%s,%s", zones[k], public[k], protected[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return VpcID + "/" + hex.EncodeToString(sum[:6])
}
