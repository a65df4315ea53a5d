// Package flowlog attaches traffic-log sinks to a built network.
package flowlog

import (
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/iampolicy"
	"github.com/lex00/wetwire-topology-go/internal/network"
	"github.com/lex00/wetwire-topology-go/internal/spec"
	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// Sink kinds.
const (
	LogGroup    = "log-group"
	ObjectStore = "object-store"
)

// Logical ids of the flow-log descriptors.
const (
	LogGroupID        = "FlowLogGroup"
	LogGroupRoleID    = "FlowLogRole"
	LogGroupFlowLogID = "FlowLogToLogGroup"
	BucketID          = "FlowLogBucket"
	BucketFlowLogID   = "FlowLogToBucket"
)

// TrafficType captures accepted and rejected traffic.
const TrafficType = "ALL"

// retentionDays are the retention periods a log group accepts.
var retentionDays = []int{1, 3, 5, 7, 14, 30, 60, 90, 120, 150, 180, 365, 400, 545, 731, 1096, 1827, 2192, 2557, 2922, 3288, 3653}

// Binding is one flow log attached to the network.
type Binding struct {
	Kind      string
	FlowLogID string
	SinkID    string
}

// Result is the output of Attach.
type Result struct {
	Bindings    []Binding
	Descriptors *descriptor.Set
}

// Attach builds one flow-log binding per destination. Destinations are
// independent: each is built on its own goroutine and the results are merged
// in input order.
func Attach(n *network.Network, dests []spec.FlowLogDestination, naming spec.Naming) (*Result, error) {
	seen := make(map[string]bool, len(dests))
	for _, d := range dests {
		if d.Kind != LogGroup && d.Kind != ObjectStore {
			return nil, topoerr.Configf("unknown flow-log destination kind %q", d.Kind)
		}
		if seen[d.Kind] {
			return nil, topoerr.Configf("flow-log destination %q listed twice", d.Kind)
		}
		seen[d.Kind] = true
	}

	bindings := make([]Binding, len(dests))
	fragments := make([]*descriptor.Set, len(dests))
	var g errgroup.Group
	for i, d := range dests {
		g.Go(func() error {
			var (
				b   Binding
				set *descriptor.Set
				err error
			)
			switch d.Kind {
			case LogGroup:
				b, set, err = logGroupSink(n, d, naming)
			case ObjectStore:
				b, set, err = objectStoreSink(n, d, naming)
			}
			if err != nil {
				return err
			}
			bindings[i], fragments[i] = b, set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{Bindings: bindings, Descriptors: descriptor.NewSet()}
	for _, frag := range fragments {
		if err := out.Descriptors.Merge(frag); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func logGroupSink(n *network.Network, d spec.FlowLogDestination, naming spec.Naming) (Binding, *descriptor.Set, error) {
	if !slices.Contains(retentionDays, d.RetentionDays) {
		return Binding{}, nil, topoerr.Configf("log-group retention of %d days is not a supported period", d.RetentionDays)
	}

	logGroupArn := descriptor.Attr{ID: LogGroupID, Name: "Arn"}
	set := descriptor.NewSet()
	set.MustAdd(descriptor.Descriptor{
		ID:   LogGroupID,
		Kind: descriptor.KindLogGroup,
		Props: map[string]any{
			"LogGroupName":    "/aws/vpc/flowlogs/" + naming.Name("vpc"),
			"RetentionInDays": d.RetentionDays,
			"Tags":            naming.Tags("vpc-flowlogs"),
		},
	})
	set.MustAdd(descriptor.Descriptor{
		ID:   LogGroupRoleID,
		Kind: descriptor.KindRole,
		Props: map[string]any{
			"RoleName":                 "VPCFlowLogsRoleForCWLogs-" + naming.Prefix(),
			"AssumeRolePolicyDocument": iampolicy.AssumeRole("vpc-flow-logs.amazonaws.com"),
			"Policies": []any{
				iampolicy.Inline("flowlogs-to-cloudwatch", iampolicy.Document(
					iampolicy.Allow([]string{
						"logs:CreateLogGroup",
						"logs:CreateLogStream",
						"logs:PutLogEvents",
						"logs:DescribeLogGroups",
						"logs:DescribeLogStreams",
					}, logGroupArn),
				)),
			},
			"Tags": naming.Tags("vpc-flowlogs-role"),
		},
	})
	set.MustAdd(descriptor.Descriptor{
		ID:   LogGroupFlowLogID,
		Kind: descriptor.KindFlowLog,
		Props: map[string]any{
			"ResourceId":               descriptor.Ref{ID: n.ID},
			"ResourceType":             "VPC",
			"TrafficType":              TrafficType,
			"LogDestinationType":       "cloud-watch-logs",
			"LogGroupName":             descriptor.Ref{ID: LogGroupID},
			"DeliverLogsPermissionArn": descriptor.Attr{ID: LogGroupRoleID, Name: "Arn"},
			"Tags":                     naming.Tags("vpc-flowlog-cwl"),
		},
	})
	return Binding{Kind: LogGroup, FlowLogID: LogGroupFlowLogID, SinkID: LogGroupID}, set, nil
}

func objectStoreSink(n *network.Network, d spec.FlowLogDestination, naming spec.Naming) (Binding, *descriptor.Set, error) {
	if d.TransitionDays <= 0 {
		return Binding{}, nil, topoerr.Configf("object-store transition must be positive, got %d days", d.TransitionDays)
	}
	if d.ExpirationDays <= d.TransitionDays {
		return Binding{}, nil, topoerr.Configf("object-store expiration (%d days) must come after transition (%d days)", d.ExpirationDays, d.TransitionDays)
	}

	set := descriptor.NewSet()
	set.MustAdd(descriptor.Descriptor{
		ID:   BucketID,
		Kind: descriptor.KindBucket,
		Props: map[string]any{
			"BucketName": naming.Name("vpc-flowlogs"),
			"BucketEncryption": map[string]any{
				"ServerSideEncryptionConfiguration": []any{
					map[string]any{
						"ServerSideEncryptionByDefault": map[string]any{"SSEAlgorithm": "AES256"},
					},
				},
			},
			"PublicAccessBlockConfiguration": map[string]any{
				"BlockPublicAcls":       true,
				"BlockPublicPolicy":     true,
				"IgnorePublicAcls":      true,
				"RestrictPublicBuckets": true,
			},
			"LifecycleConfiguration": map[string]any{
				"Rules": []any{
					map[string]any{
						"Id":     "flowlogs-archive",
						"Status": "Enabled",
						"Transitions": []any{
							map[string]any{"StorageClass": "GLACIER", "TransitionInDays": d.TransitionDays},
						},
						"ExpirationInDays": d.ExpirationDays,
					},
				},
			},
			"Tags": naming.Tags("vpc-flowlogs"),
		},
	})
	set.MustAdd(descriptor.Descriptor{
		ID:   BucketFlowLogID,
		Kind: descriptor.KindFlowLog,
		Props: map[string]any{
			"ResourceId":         descriptor.Ref{ID: n.ID},
			"ResourceType":       "VPC",
			"TrafficType":        TrafficType,
			"LogDestinationType": "s3",
			"LogDestination":     descriptor.Attr{ID: BucketID, Name: "Arn"},
			"Tags":               naming.Tags("vpc-flowlog-s3"),
		},
	})
	return Binding{Kind: ObjectStore, FlowLogID: BucketFlowLogID, SinkID: BucketID}, set, nil
}
