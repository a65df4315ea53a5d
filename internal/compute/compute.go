// Package compute builds the handler function and its execution role.
package compute

import (
	"maps"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/iampolicy"
	"github.com/lex00/wetwire-topology-go/internal/network"
	"github.com/lex00/wetwire-topology-go/internal/security"
	"github.com/lex00/wetwire-topology-go/internal/spec"
	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// Logical ids of the compute descriptors.
const (
	FunctionID = "LambdaFunction"
	RoleID     = "LambdaExecutionRole"
)

// Limits accepted by the function service.
const (
	MinMemoryMB       = 128
	MaxMemoryMB       = 10240
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 900
)

// Capability is a named group of IAM actions granted to the execution role.
type Capability string

// Known capabilities.
const (
	ReadParameters          Capability = "read-parameters"
	Decrypt                 Capability = "decrypt"
	WriteLogs               Capability = "write-logs"
	ManageNetworkInterfaces Capability = "manage-network-interfaces"
)

// Capabilities lists every known capability.
var Capabilities = []Capability{Decrypt, ManageNetworkInterfaces, ReadParameters, WriteLogs}

var (
	namePattern   = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)
	envKeyPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
)

// Resource is the built compute resource. Subnets and groups are references
// into the network's and security group's arenas.
type Resource struct {
	ID               string
	RoleID           string
	Name             string
	FunctionName     string
	NetworkKey       string
	SubnetIDs        []string
	SecurityGroupIDs []string
	Capabilities     []Capability
	Environment      map[string]string
	MemoryMB         int
	TimeoutSeconds   int

	descriptors *descriptor.Set
}

// Descriptors returns the compute arena.
func (r *Resource) Descriptors() *descriptor.Set {
	return r.descriptors
}

// VPCBound reports whether the function runs inside the network.
func (r *Resource) VPCBound() bool {
	return len(r.SubnetIDs) > 0
}

// Build creates the function bound to subnets and groups. Every subnet must be a
// protected subnet of n and every group must be scoped to n; anything else is a
// cross-network binding. The role's capability set is exactly the requested
// capabilities plus manage-network-interfaces when subnets are bound.
func Build(n *network.Network, subnets []network.Subnet, groups []*security.Group, s spec.ComputeSpec, naming spec.Naming) (*Resource, error) {
	if err := validate(s); err != nil {
		return nil, err
	}
	if err := checkBinding(n, subnets, groups); err != nil {
		return nil, err
	}

	caps, err := capabilitySet(s.Capabilities, len(subnets) > 0)
	if err != nil {
		return nil, err
	}

	r := &Resource{
		ID:             FunctionID,
		RoleID:         RoleID,
		Name:           s.Name,
		FunctionName:   naming.Name(s.Name),
		NetworkKey:     n.Key,
		Capabilities:   caps,
		Environment:    maps.Clone(s.Environment),
		MemoryMB:       s.MemoryMB,
		TimeoutSeconds: s.TimeoutSeconds,
	}
	for _, sn := range subnets {
		r.SubnetIDs = append(r.SubnetIDs, sn.ID)
	}
	for _, g := range groups {
		r.SecurityGroupIDs = append(r.SecurityGroupIDs, g.ID)
	}

	r.descriptors = descriptor.NewSet()
	r.descriptors.MustAdd(descriptor.Descriptor{
		ID:   RoleID,
		Kind: descriptor.KindRole,
		Props: map[string]any{
			"RoleName":                 naming.Name(s.Name + "-role"),
			"AssumeRolePolicyDocument": iampolicy.AssumeRole("lambda.amazonaws.com"),
			"Policies": []any{
				iampolicy.Inline(naming.Name(s.Name+"-policy"), iampolicy.Document(statements(caps, s, r.FunctionName)...)),
			},
			"Tags": naming.Tags(s.Name + "-role"),
		},
	})
	r.descriptors.MustAdd(descriptor.Descriptor{
		ID:    FunctionID,
		Kind:  descriptor.KindFunction,
		Props: functionProps(r, s, naming),
	})
	return r, nil
}

func functionProps(r *Resource, s spec.ComputeSpec, naming spec.Naming) map[string]any {
	code := map[string]any{"S3Bucket": s.Code.Bucket, "S3Key": s.Code.Key}
	if s.Code.Version != "" {
		code["S3ObjectVersion"] = s.Code.Version
	}

	props := map[string]any{
		"FunctionName": r.FunctionName,
		"Handler":      s.Handler,
		"Runtime":      s.Runtime,
		"MemorySize":   s.MemoryMB,
		"Timeout":      s.TimeoutSeconds,
		"Role":         descriptor.Attr{ID: RoleID, Name: "Arn"},
		"Code":         code,
		"Tags":         naming.Tags(s.Name),
	}

	if len(s.Environment) > 0 {
		vars := make(map[string]any, len(s.Environment))
		for k, v := range s.Environment {
			vars[k] = v
		}
		props["Environment"] = map[string]any{"Variables": vars}
	}
	if len(s.Layers) > 0 {
		layers := make([]any, len(s.Layers))
		for i, l := range s.Layers {
			layers[i] = l
		}
		props["Layers"] = layers
	}
	if s.KMSKeyArn != "" {
		props["KmsKeyArn"] = s.KMSKeyArn
	}
	if r.VPCBound() {
		subnetIDs := make([]any, len(r.SubnetIDs))
		for i, id := range r.SubnetIDs {
			subnetIDs[i] = descriptor.Ref{ID: id}
		}
		groupIDs := make([]any, len(r.SecurityGroupIDs))
		for i, id := range r.SecurityGroupIDs {
			groupIDs[i] = descriptor.Attr{ID: id, Name: "GroupId"}
		}
		props["VpcConfig"] = map[string]any{"SubnetIds": subnetIDs, "SecurityGroupIds": groupIDs}
	}
	return props
}

func validate(s spec.ComputeSpec) error {
	switch {
	case !namePattern.MatchString(s.Name):
		return topoerr.Configf("compute name %q is empty or malformed", s.Name)
	case s.Handler == "":
		return topoerr.Configf("compute %s has no handler", s.Name)
	case s.Runtime == "":
		return topoerr.Configf("compute %s has no runtime", s.Name)
	case s.Code.Bucket == "" || s.Code.Key == "":
		return topoerr.Configf("compute %s has no code location", s.Name)
	case s.MemoryMB < MinMemoryMB || s.MemoryMB > MaxMemoryMB:
		return topoerr.Configf("memory %d MB outside %d..%d", s.MemoryMB, MinMemoryMB, MaxMemoryMB)
	case s.TimeoutSeconds < MinTimeoutSeconds || s.TimeoutSeconds > MaxTimeoutSeconds:
		return topoerr.Configf("timeout %ds outside %d..%d", s.TimeoutSeconds, MinTimeoutSeconds, MaxTimeoutSeconds)
	}
	for k := range s.Environment {
		if !envKeyPattern.MatchString(k) {
			return topoerr.Configf("environment key %q is not a valid variable name", k)
		}
	}
	for _, l := range s.Layers {
		if strings.TrimSpace(l) == "" {
			return topoerr.Configf("compute %s lists an empty layer", s.Name)
		}
	}
	for _, p := range s.Parameters {
		if strings.TrimSpace(p) == "" {
			return topoerr.Configf("compute %s lists an empty parameter name", s.Name)
		}
	}
	return nil
}

func checkBinding(n *network.Network, subnets []network.Subnet, groups []*security.Group) error {
	if len(subnets) == 0 && len(groups) > 0 {
		return topoerr.Configf("security groups given without subnets")
	}
	if len(subnets) > 0 && len(groups) == 0 {
		return topoerr.Configf("subnets given without a security group")
	}

	owned := make(map[string]network.Visibility)
	for _, sn := range n.ProtectedSubnets() {
		owned[sn.ID] = sn.Visibility
	}
	for _, sn := range n.PublicSubnets() {
		owned[sn.ID] = sn.Visibility
	}

	for _, sn := range subnets {
		vis, ok := owned[sn.ID]
		if !ok || sn.NetworkKey != n.Key {
			return topoerr.Configf("cross-network binding: subnet %s does not belong to network %s", sn.ID, n.Key)
		}
		if vis != network.Protected {
			return topoerr.Configf("subnet %s is %s; compute binds to protected subnets only", sn.ID, vis)
		}
	}
	for _, g := range groups {
		if g.NetworkKey != n.Key {
			return topoerr.Configf("cross-network binding: security group %s is scoped to %s, subnets to %s", g.ID, g.NetworkKey, n.Key)
		}
	}
	return nil
}

func capabilitySet(requested []string, vpcBound bool) ([]Capability, error) {
	set := make(map[Capability]bool)
	for _, c := range requested {
		capability := Capability(c)
		if !slices.Contains(Capabilities, capability) {
			return nil, topoerr.Configf("unknown capability %q", c)
		}
		set[capability] = true
	}
	if vpcBound {
		set[ManageNetworkInterfaces] = true
	}

	out := make([]Capability, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func statements(caps []Capability, s spec.ComputeSpec, functionName string) []iampolicy.Statement {
	var out []iampolicy.Statement
	for _, c := range caps {
		switch c {
		case ReadParameters:
			out = append(out, iampolicy.Allow([]string{"ssm:GetParameter", "ssm:GetParameters"}, parameterArns(s.Parameters)...))
		case Decrypt:
			var key any = "*"
			if s.KMSKeyArn != "" {
				key = s.KMSKeyArn
			}
			out = append(out, iampolicy.Allow([]string{"kms:Decrypt"}, key))
		case WriteLogs:
			out = append(out,
				iampolicy.Allow([]string{"logs:CreateLogGroup"}, logsArn("*")),
				iampolicy.Allow([]string{"logs:CreateLogStream", "logs:PutLogEvents"}, logsArn("log-group:/aws/lambda/"+functionName+":*")),
			)
		case ManageNetworkInterfaces:
			out = append(out, iampolicy.Allow([]string{
				"ec2:CreateNetworkInterface",
				"ec2:DescribeNetworkInterfaces",
				"ec2:DeleteNetworkInterface",
			}, "*"))
		}
	}
	return out
}

func logsArn(resource string) descriptor.Concat {
	return descriptor.Concat{"arn:", descriptor.Partition, ":logs:", descriptor.Region, ":", descriptor.AccountID, ":" + resource}
}

func parameterArns(params []string) []any {
	if len(params) == 0 {
		return []any{"*"}
	}
	sorted := append([]string(nil), params...)
	sort.Strings(sorted)
	out := make([]any, len(sorted))
	for i, p := range sorted {
		out[i] = descriptor.Concat{"arn:", descriptor.Partition, ":ssm:", descriptor.Region, ":", descriptor.AccountID, ":parameter/" + strings.TrimPrefix(p, "/")}
	}
	return out
}

// Export is the name the function ARN is exported under.
func Export(naming spec.Naming, name string) string {
	return naming.Name(name + "-Arn")
}
