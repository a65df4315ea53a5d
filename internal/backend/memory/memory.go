// Package memory is an in-process Provisioner that fabricates physical
// identifiers. It backs dry runs and tests.
package memory

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/lex00/wetwire-topology-go/internal/backend"
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
)

// DefaultEnvironment is used when New is given a zero Environment.
var DefaultEnvironment = backend.Environment{
	AccountID: "123456789012",
	Partition: "aws",
	Region:    "us-east-1",
	URLSuffix: "amazonaws.com",
}

var idPrefix = map[descriptor.Kind]string{
	descriptor.KindVPC:                         "vpc-",
	descriptor.KindInternetGateway:             "igw-",
	descriptor.KindVPCGatewayAttachment:        "igw-attach-",
	descriptor.KindSubnet:                      "subnet-",
	descriptor.KindEIP:                         "eipalloc-",
	descriptor.KindNatGateway:                  "nat-",
	descriptor.KindRouteTable:                  "rtb-",
	descriptor.KindRoute:                       "r-",
	descriptor.KindSubnetRouteTableAssociation: "rtbassoc-",
	descriptor.KindSecurityGroup:               "sg-",
	descriptor.KindFlowLog:                     "fl-",
	descriptor.KindRestApi:                     "",
	descriptor.KindApiResource:                 "",
	descriptor.KindAuthorizer:                  "",
	descriptor.KindDeployment:                  "",
	descriptor.KindPermission:                  "perm-",
}

// Provisioner records every call and answers with deterministic identifiers.
type Provisioner struct {
	env backend.Environment

	mu     sync.Mutex
	calls  []descriptor.Descriptor
	failOn map[string]error
}

// New returns a Provisioner for env.
func New(env backend.Environment) *Provisioner {
	if env == (backend.Environment{}) {
		env = DefaultEnvironment
	}
	return &Provisioner{env: env, failOn: make(map[string]error)}
}

// FailOn makes Provision return err for the descriptor with logical id id.
func (p *Provisioner) FailOn(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOn[id] = err
}

// Calls returns the descriptors received so far, in call order.
func (p *Provisioner) Calls() []descriptor.Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]descriptor.Descriptor(nil), p.calls...)
}

// Environment implements backend.Provisioner.
func (p *Provisioner) Environment(ctx context.Context) (backend.Environment, error) {
	return p.env, nil
}

// Provision implements backend.Provisioner.
func (p *Provisioner) Provision(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	if err := ctx.Err(); err != nil {
		return backend.Record{}, err
	}

	p.mu.Lock()
	p.calls = append(p.calls, d)
	err := p.failOn[d.ID]
	p.mu.Unlock()
	if err != nil {
		return backend.Record{}, err
	}

	if sym := firstSymbolic(d.Props); sym != nil {
		return backend.Record{}, fmt.Errorf("unresolved value %s", descriptor.Symbolic(sym))
	}
	return p.record(d), nil
}

func (p *Provisioner) record(d descriptor.Descriptor) backend.Record {
	sum := sha1.Sum([]byte(string(d.Kind) + "/" + d.ID))
	hash := hex.EncodeToString(sum[:])[:17]
	name, _ := d.Props[nameProp(d.Kind)].(string)

	prefix, ok := idPrefix[d.Kind]
	physical := prefix + hash
	if !ok || prefix == "" {
		physical = hash[:10]
	}

	arn := func(service, resource string) string {
		return fmt.Sprintf("arn:%s:%s:%s:%s:%s", p.env.Partition, service, p.env.Region, p.env.AccountID, resource)
	}

	attrs := map[string]string{}
	switch d.Kind {
	case descriptor.KindEIP:
		attrs["AllocationId"] = physical
		attrs["PublicIp"] = fmt.Sprintf("203.0.113.%d", sum[0]%250+1)
	case descriptor.KindSecurityGroup:
		attrs["GroupId"] = physical
	case descriptor.KindLogGroup:
		physical = name
		attrs["Arn"] = arn("logs", "log-group:"+name+":*")
	case descriptor.KindBucket:
		physical = name
		attrs["Arn"] = fmt.Sprintf("arn:%s:s3:::%s", p.env.Partition, name)
	case descriptor.KindRole:
		physical = name
		attrs["Arn"] = fmt.Sprintf("arn:%s:iam::%s:role/%s", p.env.Partition, p.env.AccountID, name)
	case descriptor.KindFunction:
		physical = name
		attrs["Arn"] = arn("lambda", "function:"+name)
	case descriptor.KindRestApi:
		attrs["RootResourceId"] = hash[10:16]
	}
	return backend.Record{PhysicalID: physical, Attributes: attrs}
}

func nameProp(k descriptor.Kind) string {
	switch k {
	case descriptor.KindLogGroup:
		return "LogGroupName"
	case descriptor.KindBucket:
		return "BucketName"
	case descriptor.KindRole:
		return "RoleName"
	case descriptor.KindFunction:
		return "FunctionName"
	}
	return "Name"
}

func firstSymbolic(v any) any {
	switch t := v.(type) {
	case descriptor.Ref, descriptor.Attr, descriptor.Pseudo, descriptor.Concat:
		return t
	case map[string]any:
		for _, val := range t {
			if s := firstSymbolic(val); s != nil {
				return s
			}
		}
	case []any:
		for _, val := range t {
			if s := firstSymbolic(val); s != nil {
				return s
			}
		}
	}
	return nil
}
