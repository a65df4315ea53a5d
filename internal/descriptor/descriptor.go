// Package descriptor holds the arena of resource descriptors produced by composition.
//
// Descriptors are keyed by a stable logical id. Properties reference other
// descriptors symbolically (Ref, Attr) rather than by pointer, so the arena never
// contains ownership cycles and can be ordered, rendered, or applied as a graph.
package descriptor

import (
	"sort"
)

// Kind is the resource family of a descriptor, in "service.Type" form.
type Kind string

// Resource kinds produced by the composition stages.
const (
	KindVPC                         Kind = "ec2.VPC"
	KindInternetGateway             Kind = "ec2.InternetGateway"
	KindVPCGatewayAttachment        Kind = "ec2.VPCGatewayAttachment"
	KindSubnet                      Kind = "ec2.Subnet"
	KindEIP                         Kind = "ec2.EIP"
	KindNatGateway                  Kind = "ec2.NatGateway"
	KindRouteTable                  Kind = "ec2.RouteTable"
	KindRoute                       Kind = "ec2.Route"
	KindSubnetRouteTableAssociation Kind = "ec2.SubnetRouteTableAssociation"
	KindSecurityGroup               Kind = "ec2.SecurityGroup"
	KindFlowLog                     Kind = "ec2.FlowLog"
	KindLogGroup                    Kind = "logs.LogGroup"
	KindBucket                      Kind = "s3.Bucket"
	KindRole                        Kind = "iam.Role"
	KindFunction                    Kind = "lambda.Function"
	KindPermission                  Kind = "lambda.Permission"
	KindRestApi                     Kind = "apigateway.RestApi"
	KindApiResource                 Kind = "apigateway.Resource"
	KindMethod                      Kind = "apigateway.Method"
	KindAuthorizer                  Kind = "apigateway.Authorizer"
	KindDeployment                  Kind = "apigateway.Deployment"
)

// Service returns the service prefix of the kind, e.g. "ec2".
func (k Kind) Service() string {
	for i := 0; i < len(k); i++ {
		if k[i] == '.' {
			return string(k[:i])
		}
	}
	return string(k)
}

// Ref refers to the primary physical identifier of another descriptor.
type Ref struct {
	ID string
}

// Attr refers to a named attribute of another descriptor (e.g. "Arn").
type Attr struct {
	ID   string
	Name string
}

// Pseudo is an account- or partition-level value known only to the backend.
type Pseudo string

// Pseudo values.
const (
	AccountID Pseudo = "AWS::AccountId"
	Partition Pseudo = "AWS::Partition"
	Region    Pseudo = "AWS::Region"
	URLSuffix Pseudo = "AWS::URLSuffix"
)

// Concat joins its resolved parts into one string.
type Concat []any

// Descriptor is one resource in the arena.
type Descriptor struct {
	ID        string
	Kind      Kind
	Props     map[string]any
	DependsOn []string
}

// Dependencies returns the sorted, de-duplicated logical ids this descriptor
// references through its properties or explicit DependsOn entries.
func (d Descriptor) Dependencies() []string {
	seen := make(map[string]bool)
	for _, dep := range d.DependsOn {
		seen[dep] = true
	}
	collectRefs(d.Props, seen)
	delete(seen, d.ID)

	deps := make([]string, 0, len(seen))
	for id := range seen {
		deps = append(deps, id)
	}
	sort.Strings(deps)
	return deps
}

// AttrRefs returns "id.Attr" pairs referenced through Attr values, used to style
// graph edges.
func (d Descriptor) AttrRefs() map[string]bool {
	refs := make(map[string]bool)
	walk(d.Props, func(v any) {
		if a, ok := v.(Attr); ok {
			refs[a.ID] = true
		}
	})
	return refs
}

func collectRefs(v any, seen map[string]bool) {
	walk(v, func(v any) {
		switch r := v.(type) {
		case Ref:
			seen[r.ID] = true
		case Attr:
			seen[r.ID] = true
		}
	})
}

func walk(v any, visit func(any)) {
	visit(v)
	switch t := v.(type) {
	case map[string]any:
		for _, val := range t {
			walk(val, visit)
		}
	case []any:
		for _, val := range t {
			walk(val, visit)
		}
	case Concat:
		for _, val := range t {
			walk(val, visit)
		}
	}
}

// Tag builds a Key/Value tag entry.
func Tag(key, value string) map[string]any {
	return map[string]any{"Key": key, "Value": value}
}
