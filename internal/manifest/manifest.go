// Package manifest renders the network, security and IAM descriptors as
// custom resources for the AWS Controllers for Kubernetes (ACK).
//
// Cross-resource references become ACK "from" references between the
// generated objects, so the cluster resolves them in its own order. Routes are
// folded into their route table, route-table associations into their subnet,
// and the gateway attachment into the internet gateway.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/spec"
)

// ACK API groups.
const (
	EC2Group = "ec2.services.k8s.aws/v1alpha1"
	IAMGroup = "iam.services.k8s.aws/v1alpha1"
)

// Object is one ACK custom resource.
type Object struct {
	metav1.TypeMeta `json:",inline"`
	Metadata        metav1.ObjectMeta `json:"metadata"`
	Spec            map[string]any    `json:"spec"`
}

// Bundle is the rendered manifest set.
type Bundle struct {
	Objects []Object
	// Skipped lists logical ids with no ACK counterpart here.
	Skipped []string
}

type renderer struct {
	set       *descriptor.Set
	naming    spec.Naming
	namespace string
	objects   map[string]*Object
}

// Render converts set into ACK objects in namespace.
func Render(set *descriptor.Set, naming spec.Naming, namespace string) (*Bundle, error) {
	r := &renderer{set: set, naming: naming, namespace: namespace, objects: make(map[string]*Object)}
	b := &Bundle{}

	order, err := set.Order()
	if err != nil {
		return nil, err
	}
	for _, id := range order {
		d, _ := set.Get(id)
		handled, err := r.render(d)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		if !handled {
			b.Skipped = append(b.Skipped, id)
		}
	}

	for _, id := range order {
		if obj, ok := r.objects[id]; ok {
			b.Objects = append(b.Objects, *obj)
		}
	}
	sort.Strings(b.Skipped)
	return b, nil
}

func (r *renderer) add(d descriptor.Descriptor, group, kind string, s map[string]any) {
	r.objects[d.ID] = &Object{
		TypeMeta: metav1.TypeMeta{APIVersion: group, Kind: kind},
		Metadata: metav1.ObjectMeta{
			Name:      r.name(d.ID),
			Namespace: r.namespace,
			Labels: map[string]string{
				"app.kubernetes.io/part-of":    r.naming.Prefix(),
				"wetwire.io/logical-id":        d.ID,
				"wetwire.io/environment":       r.naming.Environment,
				"app.kubernetes.io/managed-by": "wetwire-topology",
			},
		},
		Spec: s,
	}
}

func (r *renderer) render(d descriptor.Descriptor) (bool, error) {
	p := d.Props
	switch d.Kind {
	case descriptor.KindVPC:
		r.add(d, EC2Group, "VPC", map[string]any{
			"cidrBlocks":         []any{p["CidrBlock"]},
			"enableDNSSupport":   p["EnableDnsSupport"],
			"enableDNSHostnames": p["EnableDnsHostnames"],
			"tags":               tags(p),
		})
	case descriptor.KindInternetGateway:
		r.add(d, EC2Group, "InternetGateway", map[string]any{"tags": tags(p)})
	case descriptor.KindVPCGatewayAttachment:
		igw, err := r.owner(p["InternetGatewayId"])
		if err != nil {
			return false, err
		}
		igw.Spec["vpcRef"] = r.ref(p["VpcId"])
	case descriptor.KindSubnet:
		r.add(d, EC2Group, "Subnet", map[string]any{
			"vpcRef":              r.ref(p["VpcId"]),
			"cidrBlock":           p["CidrBlock"],
			"availabilityZone":    p["AvailabilityZone"],
			"mapPublicIPOnLaunch": p["MapPublicIpOnLaunch"],
			"tags":                tags(p),
		})
	case descriptor.KindEIP:
		r.add(d, EC2Group, "ElasticIPAddress", map[string]any{"tags": tags(p)})
	case descriptor.KindNatGateway:
		r.add(d, EC2Group, "NATGateway", map[string]any{
			"subnetRef":     r.ref(p["SubnetId"]),
			"allocationRef": r.ref(p["AllocationId"]),
			"tags":          tags(p),
		})
	case descriptor.KindRouteTable:
		r.add(d, EC2Group, "RouteTable", map[string]any{
			"vpcRef": r.ref(p["VpcId"]),
			"routes": []any{},
			"tags":   tags(p),
		})
	case descriptor.KindRoute:
		table, err := r.owner(p["RouteTableId"])
		if err != nil {
			return false, err
		}
		route := map[string]any{"destinationCIDRBlock": p["DestinationCidrBlock"]}
		if gw, ok := p["GatewayId"]; ok {
			route["gatewayRef"] = r.ref(gw)
		}
		if nat, ok := p["NatGatewayId"]; ok {
			route["natGatewayRef"] = r.ref(nat)
		}
		table.Spec["routes"] = append(table.Spec["routes"].([]any), route)
	case descriptor.KindSubnetRouteTableAssociation:
		subnet, err := r.owner(p["SubnetId"])
		if err != nil {
			return false, err
		}
		refs, _ := subnet.Spec["routeTableRefs"].([]any)
		subnet.Spec["routeTableRefs"] = append(refs, r.ref(p["RouteTableId"]))
	case descriptor.KindSecurityGroup:
		r.add(d, EC2Group, "SecurityGroup", map[string]any{
			"name":         p["GroupName"],
			"description":  p["GroupDescription"],
			"vpcRef":       r.ref(p["VpcId"]),
			"ingressRules": rules(p["SecurityGroupIngress"]),
			"egressRules":  rules(p["SecurityGroupEgress"]),
			"tags":         tags(p),
		})
	case descriptor.KindRole:
		trust, err := policyJSON(p["AssumeRolePolicyDocument"])
		if err != nil {
			return false, err
		}
		inline := map[string]any{}
		if pols, ok := p["Policies"].([]any); ok {
			for _, pol := range pols {
				m, _ := pol.(map[string]any)
				doc, err := policyJSON(m["PolicyDocument"])
				if err != nil {
					return false, err
				}
				inline[fmt.Sprint(m["PolicyName"])] = doc
			}
		}
		r.add(d, IAMGroup, "Role", map[string]any{
			"name":                     p["RoleName"],
			"assumeRolePolicyDocument": trust,
			"inlinePolicies":           inline,
			"tags":                     tags(p),
		})
	default:
		return false, nil
	}
	return true, nil
}

// owner returns the already rendered object a folded descriptor belongs to.
func (r *renderer) owner(v any) (*Object, error) {
	id, ok := refID(v)
	if !ok {
		return nil, fmt.Errorf("expected a reference, got %s", descriptor.Symbolic(v))
	}
	obj, ok := r.objects[id]
	if !ok {
		return nil, fmt.Errorf("%s is not rendered", id)
	}
	return obj, nil
}

func refID(v any) (string, bool) {
	switch t := v.(type) {
	case descriptor.Ref:
		return t.ID, true
	case descriptor.Attr:
		return t.ID, true
	}
	return "", false
}

func (r *renderer) ref(v any) map[string]any {
	id, ok := refID(v)
	if !ok {
		return nil
	}
	return map[string]any{"from": map[string]any{"name": r.name(id)}}
}

// name turns a logical id into a DNS-1123 object name, e.g.
// "PublicSubnetA" → "<prefix>-public-subnet-a".
func (r *renderer) name(id string) string {
	var sb strings.Builder
	for i, c := range id {
		if unicode.IsUpper(c) && i > 0 {
			sb.WriteByte('-')
		}
		sb.WriteRune(unicode.ToLower(c))
	}
	return r.naming.Prefix() + "-" + sb.String()
}

func tags(p map[string]any) []any {
	list, _ := p["Tags"].([]any)
	out := make([]any, 0, len(list))
	for _, t := range list {
		m, _ := t.(map[string]any)
		out = append(out, map[string]any{"key": m["Key"], "value": m["Value"]})
	}
	return out
}

func rules(v any) []any {
	list, _ := v.([]any)
	out := make([]any, 0, len(list))
	for _, item := range list {
		m, _ := item.(map[string]any)
		rule := map[string]any{"ipProtocol": m["IpProtocol"]}
		if from, ok := m["FromPort"]; ok {
			rule["fromPort"] = from
		}
		if to, ok := m["ToPort"]; ok {
			rule["toPort"] = to
		}
		if cidr, ok := m["CidrIp"]; ok {
			rule["ipRanges"] = []any{map[string]any{"cidrIP": cidr, "description": m["Description"]}}
		}
		if pl, ok := m["SourcePrefixListId"]; ok {
			rule["prefixListIDs"] = []any{map[string]any{"prefixListID": pl, "description": m["Description"]}}
		}
		out = append(out, rule)
	}
	return out
}

// policyJSON encodes a policy document. Symbolic ARNs are written in their
// ${...} form; the cluster-side controller does not resolve them.
func policyJSON(doc any) (string, error) {
	data, err := json.Marshal(symbolic(doc))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func symbolic(v any) any {
	switch t := v.(type) {
	case descriptor.Ref, descriptor.Attr, descriptor.Pseudo, descriptor.Concat:
		return descriptor.Symbolic(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = symbolic(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = symbolic(val)
		}
		return out
	}
	return v
}

// Marshal writes the objects as a multi-document YAML stream.
func (b *Bundle) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	for i, obj := range b.Objects {
		data, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s: %w", obj.Kind, obj.Metadata.Name, err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}
