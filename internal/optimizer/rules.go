package optimizer

import (
	"fmt"
	"strings"

	"github.com/lex00/wetwire-topology-go/internal/descriptor"
)

var rulesByKind = map[descriptor.Kind][]ResourceRule{
	descriptor.KindBucket:   bucketRules,
	descriptor.KindFunction: functionRules,
	descriptor.KindRole:     roleRules,
	descriptor.KindLogGroup: logGroupRules,
	descriptor.KindMethod:   methodRules,
}

var bucketRules = []ResourceRule{
	{
		Rule: Rule{
			ID:         "OPT-S3-001",
			Category:   "security",
			Severity:   "high",
			Title:      "Enable bucket encryption",
			Suggestion: "Add BucketEncryption with SSE-S3 or SSE-KMS.",
		},
		Check: missing("BucketEncryption", "bucket stores objects unencrypted at rest"),
	},
	{
		Rule: Rule{
			ID:         "OPT-S3-002",
			Category:   "security",
			Severity:   "high",
			Title:      "Block public access",
			Suggestion: "Add PublicAccessBlockConfiguration with all four settings true.",
		},
		Check: missing("PublicAccessBlockConfiguration", "bucket can be made public by an ACL or policy"),
	},
	{
		Rule: Rule{
			ID:         "OPT-S3-003",
			Category:   "reliability",
			Severity:   "medium",
			Title:      "Enable versioning",
			Suggestion: "Add VersioningConfiguration with Status Enabled.",
		},
		Check: missing("VersioningConfiguration", "deleted or overwritten log objects cannot be recovered"),
	},
	{
		Rule: Rule{
			ID:         "OPT-S3-004",
			Category:   "cost",
			Severity:   "low",
			Title:      "Add lifecycle rules",
			Suggestion: "Transition to an archive storage class and expire old objects.",
		},
		Check: missing("LifecycleConfiguration", "objects stay in the standard storage class forever"),
	},
}

var functionRules = []ResourceRule{
	{
		Rule: Rule{
			ID:         "OPT-LAM-001",
			Category:   "performance",
			Severity:   "medium",
			Title:      "Raise handler memory",
			Suggestion: "Give VPC-bound handlers at least 256 MB; CPU scales with memory.",
		},
		Check: func(d descriptor.Descriptor, _ *descriptor.Set) *Finding {
			mem, ok := d.Props["MemorySize"].(int)
			if !ok || mem >= 256 {
				return nil
			}
			return &Finding{Description: fmt.Sprintf("handler runs with %d MB", mem)}
		},
	},
	{
		Rule: Rule{
			ID:         "OPT-LAM-002",
			Category:   "cost",
			Severity:   "low",
			Title:      "Run on arm64",
			Suggestion: "Set Architectures to [arm64] if the handler has no native x86 dependencies.",
		},
		Check: missing("Architectures", "handler runs on x86_64"),
	},
	{
		Rule: Rule{
			ID:         "OPT-LAM-003",
			Category:   "performance",
			Severity:   "low",
			Title:      "Enable tracing",
			Suggestion: "Set TracingConfig Mode to Active to see time spent in the VPC and downstream calls.",
		},
		Check: missing("TracingConfig", "handler invocations are not traced"),
	},
	{
		Rule: Rule{
			ID:         "OPT-LAM-004",
			Category:   "reliability",
			Severity:   "low",
			Title:      "Reserve concurrency",
			Suggestion: "Set ReservedConcurrentExecutions so a traffic spike cannot exhaust the account limit.",
		},
		Check: missing("ReservedConcurrentExecutions", "handler shares the account concurrency pool"),
	},
}

var roleRules = []ResourceRule{
	{
		Rule: Rule{
			ID:         "OPT-IAM-001",
			Category:   "security",
			Severity:   "high",
			Title:      "Scope wildcard resources",
			Suggestion: "Replace Resource \"*\" with the ARNs the role needs.",
		},
		Check: func(d descriptor.Descriptor, _ *descriptor.Set) *Finding {
			actions := wildcardActions(d.Props["Policies"])
			if len(actions) == 0 {
				return nil
			}
			return &Finding{Description: fmt.Sprintf("%s granted on every resource", strings.Join(actions, ", "))}
		},
	},
}

var logGroupRules = []ResourceRule{
	{
		Rule: Rule{
			ID:         "OPT-LOG-001",
			Category:   "security",
			Severity:   "low",
			Title:      "Encrypt the log group with a customer key",
			Suggestion: "Set KmsKeyId to a key whose policy admits the logs service.",
		},
		Check: missing("KmsKeyId", "log group uses the service-owned key"),
	},
}

var methodRules = []ResourceRule{
	{
		Rule: Rule{
			ID:         "OPT-API-001",
			Category:   "security",
			Severity:   "high",
			Title:      "Require authorization",
			Suggestion: "Configure an authorizer for the API.",
		},
		Check: func(d descriptor.Descriptor, _ *descriptor.Set) *Finding {
			// Browsers send preflight requests without credentials.
			if d.Props["HttpMethod"] == "OPTIONS" || d.Props["AuthorizationType"] != "NONE" {
				return nil
			}
			return &Finding{Description: fmt.Sprintf("%v is callable without credentials", d.Props["HttpMethod"])}
		},
	},
}

var setRules = []SetRule{
	{
		Rule: Rule{
			ID:         "OPT-NET-001",
			Category:   "cost",
			Severity:   "low",
			Title:      "Share a NAT gateway outside production",
			Suggestion: "Non-production environments can route every zone through one NAT gateway.",
		},
		Check: func(set *descriptor.Set) *Finding {
			nats := set.OfKind(descriptor.KindNatGateway)
			if len(nats) < 2 {
				return nil
			}
			return &Finding{
				Resource:    vpcID(set),
				Description: fmt.Sprintf("%d NAT gateways are billed hourly", len(nats)),
			}
		},
	},
	{
		Rule: Rule{
			ID:         "OPT-NET-002",
			Category:   "cost",
			Severity:   "medium",
			Title:      "Add VPC endpoints",
			Suggestion: "Add an S3 gateway endpoint and SSM interface endpoints so handler traffic bypasses NAT.",
		},
		Check: func(set *descriptor.Set) *Finding {
			if len(set.OfKind(descriptor.KindNatGateway)) == 0 {
				return nil
			}
			for _, fn := range set.OfKind(descriptor.KindFunction) {
				if _, ok := fn.Props["VpcConfig"]; ok {
					return &Finding{
						Resource:    vpcID(set),
						Description: fmt.Sprintf("%s reaches AWS APIs through NAT data processing", fn.ID),
					}
				}
			}
			return nil
		},
	},
}

// missing returns a check that hits when prop is absent.
func missing(prop, description string) func(descriptor.Descriptor, *descriptor.Set) *Finding {
	return func(d descriptor.Descriptor, _ *descriptor.Set) *Finding {
		if _, ok := d.Props[prop]; ok {
			return nil
		}
		return &Finding{Description: description}
	}
}

func vpcID(set *descriptor.Set) string {
	if vpcs := set.OfKind(descriptor.KindVPC); len(vpcs) > 0 {
		return vpcs[0].ID
	}
	return ""
}

// wildcardActions lists actions allowed on "*" in inline policies. EC2
// network-interface actions do not support resource-level scoping and are
// skipped.
func wildcardActions(policies any) []string {
	var out []string
	list, _ := policies.([]any)
	for _, p := range list {
		pol, _ := p.(map[string]any)
		doc, _ := pol["PolicyDocument"].(map[string]any)
		stmts, _ := doc["Statement"].([]any)
		for _, s := range stmts {
			st, _ := s.(map[string]any)
			if st["Effect"] != "Allow" || !hasWildcard(st["Resource"]) {
				continue
			}
			for _, a := range actionList(st["Action"]) {
				if !strings.HasPrefix(a, "ec2:") {
					out = append(out, a)
				}
			}
		}
	}
	return out
}

func hasWildcard(v any) bool {
	switch r := v.(type) {
	case string:
		return r == "*"
	case []any:
		for _, item := range r {
			if item == "*" {
				return true
			}
		}
	}
	return false
}

func actionList(v any) []string {
	switch a := v.(type) {
	case string:
		return []string{a}
	case []any:
		out := make([]string, 0, len(a))
		for _, item := range a {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
