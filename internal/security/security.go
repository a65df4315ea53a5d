// Package security builds the compute security group for a network.
package security

import (
	"regexp"

	"github.com/lex00/wetwire-topology-go/internal/cidr"
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/network"
	"github.com/lex00/wetwire-topology-go/internal/spec"
	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// GroupID is the logical id of the security group.
const GroupID = "LambdaSecurityGroup"

// Source kinds of an ingress rule.
const (
	SourceCIDR       = "cidr"
	SourcePrefixList = "prefix-list"
)

var prefixListPattern = regexp.MustCompile(`^pl-[0-9a-f]{8,17}$`)

// Rule is one ingress or egress entry.
type Rule struct {
	SourceKind  string
	Source      string
	Protocol    string
	Port        int
	Description string
}

// Group is the built security group. It references its network by key and
// does not own it.
type Group struct {
	ID          string
	NetworkID   string
	NetworkKey  string
	Ingress     []Rule
	Egress      []Rule
	descriptors *descriptor.Set
}

// Descriptors returns the group's descriptor arena.
func (g *Group) Descriptors() *descriptor.Set {
	return g.descriptors
}

// Build creates the security group scoped to n. Ingress rules keep the order
// given. Egress is open.
func Build(n *network.Network, s spec.SecuritySpec, naming spec.Naming) (*Group, error) {
	g := &Group{
		ID:         GroupID,
		NetworkID:  n.ID,
		NetworkKey: n.Key,
		Egress:     []Rule{{SourceKind: SourceCIDR, Source: network.DefaultRoute, Protocol: "-1"}},
	}

	ingress := make([]any, 0, len(s.Ingress))
	for i, r := range s.Ingress {
		rule, err := parseRule(r)
		if err != nil {
			return nil, topoerr.Configf("ingress rule %d: %v", i, err)
		}
		g.Ingress = append(g.Ingress, rule)
		ingress = append(ingress, ruleProps(rule))
	}

	egress := make([]any, len(g.Egress))
	for i, r := range g.Egress {
		egress[i] = ruleProps(r)
	}

	description := s.Description
	if description == "" {
		description = spec.DefaultSGDescription
	}

	g.descriptors = descriptor.NewSet()
	g.descriptors.MustAdd(descriptor.Descriptor{
		ID:   GroupID,
		Kind: descriptor.KindSecurityGroup,
		Props: map[string]any{
			"GroupName":            naming.Name("lambda-sg"),
			"GroupDescription":     description,
			"VpcId":                descriptor.Ref{ID: n.ID},
			"SecurityGroupIngress": ingress,
			"SecurityGroupEgress":  egress,
			"Tags":                 naming.Tags("lambda-sg"),
		},
	})
	return g, nil
}

func parseRule(r spec.IngressRule) (Rule, error) {
	rule := Rule{Protocol: r.Protocol, Port: r.Port, Description: r.Description}

	switch {
	case r.CIDR != "" && r.PrefixList != "":
		return Rule{}, topoerr.Configf("rule names both a CIDR and a prefix list")
	case r.CIDR != "":
		p, err := cidr.Parse(r.CIDR)
		if err != nil {
			return Rule{}, err
		}
		rule.SourceKind, rule.Source = SourceCIDR, p.String()
	case r.PrefixList != "":
		if !prefixListPattern.MatchString(r.PrefixList) {
			return Rule{}, topoerr.Configf("malformed prefix list id %q", r.PrefixList)
		}
		rule.SourceKind, rule.Source = SourcePrefixList, r.PrefixList
	default:
		return Rule{}, topoerr.Configf("rule has an empty source")
	}

	switch rule.Protocol {
	case "tcp", "udp":
		if rule.Port < 0 || rule.Port > 65535 {
			return Rule{}, topoerr.Configf("port %d out of range", rule.Port)
		}
	case "icmp":
		if rule.Port < -1 || rule.Port > 255 {
			return Rule{}, topoerr.Configf("icmp type %d out of range", rule.Port)
		}
	case "-1":
		rule.Port = 0
	default:
		return Rule{}, topoerr.Configf("unsupported protocol %q", rule.Protocol)
	}
	return rule, nil
}

func ruleProps(r Rule) map[string]any {
	m := map[string]any{"IpProtocol": r.Protocol}
	switch r.Protocol {
	case "tcp", "udp":
		m["FromPort"], m["ToPort"] = r.Port, r.Port
	case "icmp":
		m["FromPort"], m["ToPort"] = r.Port, -1
	}
	if r.SourceKind == SourcePrefixList {
		m["SourcePrefixListId"] = r.Source
	} else {
		m["CidrIp"] = r.Source
	}
	if r.Description != "" {
		m["Description"] = r.Description
	}
	return m
}
