// Package orchestrator composes a GlobalSpec into a descriptor arena and
// applies it.
//
// Composition runs the stages in a fixed order:
//
//	network → flow-logs → security → compute → api
//
// Every stage is a pure builder over the output of the previous ones. The first
// failing stage aborts the composition and is named in the returned error.
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lex00/wetwire-topology-go/internal/api"
	"github.com/lex00/wetwire-topology-go/internal/azselect"
	"github.com/lex00/wetwire-topology-go/internal/backend"
	"github.com/lex00/wetwire-topology-go/internal/compute"
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/flowlog"
	"github.com/lex00/wetwire-topology-go/internal/metrics"
	"github.com/lex00/wetwire-topology-go/internal/network"
	"github.com/lex00/wetwire-topology-go/internal/security"
	"github.com/lex00/wetwire-topology-go/internal/spec"
	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// Stage names, as reported by topoerr.StageOf.
const (
	StageValidate = "validate"
	StageNetwork  = "network"
	StageFlowLogs = "flow-logs"
	StageSecurity = "security"
	StageCompute  = "compute"
	StageApi      = "api"
	StageAssemble = "assemble"
	StageApply    = "apply"
	StageOutputs  = "outputs"
)

// Output names.
const (
	OutputNetworkID       = "NetworkId"
	OutputSecurityGroupID = "SecurityGroupId"
	OutputComputeID       = "ComputeId"
	OutputComputeArn      = "ComputeArn"
	OutputApiInvokeURL    = "ApiInvokeUrl"
)

// Output is one value handed to downstream consumers. Value is symbolic until
// the composition is applied.
type Output struct {
	Name        string
	Description string
	Value       any
	Export      string
}

// Composition is the result of Compose.
type Composition struct {
	Spec        *spec.GlobalSpec
	Network     *network.Network
	FlowLogs    *flowlog.Result
	Security    *security.Group
	Compute     *compute.Resource
	Api         *api.Front
	Descriptors *descriptor.Set
	Outputs     []Output
}

// Orchestrator runs the composition stages.
type Orchestrator struct {
	selector    azselect.Selector
	logger      *zap.Logger
	metrics     *metrics.Metrics
	concurrency int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSelector sets the zone selector. The built-in catalog is used otherwise.
func WithSelector(s azselect.Selector) Option {
	return func(o *Orchestrator) { o.selector = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithConcurrency bounds the descriptors applied at once within a level.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.concurrency = n }
}

// New returns an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		selector:    azselect.NewCatalog(),
		logger:      zap.NewNop(),
		concurrency: backend.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) stage(name string, fn func() error) error {
	start := time.Now()
	o.logger.Debug("stage started", zap.String("stage", name))

	err := fn()
	elapsed := time.Since(start)
	o.metrics.ObserveStage(name, elapsed, err)
	if err != nil {
		o.logger.Error("stage failed", zap.String("stage", name), zap.Duration("duration", elapsed), zap.Error(err))
		return topoerr.InStage(name, err)
	}
	o.logger.Debug("stage finished", zap.String("stage", name), zap.Duration("duration", elapsed))
	return nil
}

// Compose builds the whole topology for g. Composing equal specs yields equal
// compositions.
func (o *Orchestrator) Compose(g *spec.GlobalSpec) (*Composition, error) {
	if g == nil {
		return nil, topoerr.InStage(StageValidate, topoerr.Configf("no spec"))
	}
	naming := g.Naming()
	c := &Composition{Spec: g}
	var apiSet *descriptor.Set

	steps := []struct {
		name string
		fn   func() error
	}{
		{StageValidate, g.Validate},
		{StageNetwork, func() (err error) {
			c.Network, err = network.Build(g.Network, g.Region, naming, o.selector)
			return err
		}},
		{StageFlowLogs, func() (err error) {
			c.FlowLogs, err = flowlog.Attach(c.Network, g.FlowLogs, naming)
			return err
		}},
		{StageSecurity, func() (err error) {
			c.Security, err = security.Build(c.Network, g.Security, naming)
			return err
		}},
		{StageCompute, func() (err error) {
			c.Compute, err = compute.Build(c.Network, c.Network.ProtectedSubnets(), []*security.Group{c.Security}, g.Compute, naming)
			return err
		}},
		{StageApi, func() error {
			front, err := api.Build(c.Compute, g.Api.Authorizer, g.Api)
			if err != nil {
				return err
			}
			c.Api = front
			apiSet, err = front.Render(c.Compute, g.Api.RequestTemplates, naming)
			return err
		}},
		{StageAssemble, func() error { return assemble(c, apiSet) }},
	}

	for _, s := range steps {
		if err := o.stage(s.name, s.fn); err != nil {
			return nil, err
		}
	}

	o.logger.Info("composed topology",
		zap.String("project", g.Project),
		zap.String("environment", g.Environment),
		zap.String("region", g.Region),
		zap.Int("descriptors", c.Descriptors.Len()),
	)
	return c, nil
}

func assemble(c *Composition, apiSet *descriptor.Set) error {
	g := c.Spec
	set := descriptor.NewSet()
	for _, part := range []*descriptor.Set{
		c.Network.Descriptors(),
		c.FlowLogs.Descriptors,
		c.Security.Descriptors(),
		c.Compute.Descriptors(),
		apiSet,
	} {
		if err := set.Merge(part); err != nil {
			return err
		}
	}
	if _, err := set.Order(); err != nil {
		return err
	}

	c.Descriptors = set
	c.Outputs = []Output{
		{Name: OutputNetworkID, Description: "Network identifier", Value: descriptor.Ref{ID: c.Network.ID}},
		{Name: OutputSecurityGroupID, Description: "Compute security group", Value: descriptor.Attr{ID: c.Security.ID, Name: "GroupId"}},
		{Name: OutputComputeID, Description: "Compute resource name", Value: descriptor.Ref{ID: c.Compute.ID}},
		{
			Name:        OutputComputeArn,
			Description: "Compute resource ARN",
			Value:       descriptor.Attr{ID: c.Compute.ID, Name: "Arn"},
			Export:      compute.Export(g.Naming(), c.Compute.Name),
		},
		{Name: OutputApiInvokeURL, Description: "API invoke endpoint", Value: c.Api.Endpoint()},
	}
	return nil
}

// Result is the outcome of Apply.
type Result struct {
	State   *backend.State
	Outputs map[string]string
}

// Apply provisions the composition through p and resolves its outputs. On
// failure the returned Result still holds the partial state.
func (o *Orchestrator) Apply(ctx context.Context, c *Composition, p backend.Provisioner) (*Result, error) {
	applier := backend.NewApplier(p,
		backend.WithLogger(o.logger),
		backend.WithMetrics(o.metrics),
		backend.WithConcurrency(o.concurrency),
	)

	res := &Result{}
	err := o.stage(StageApply, func() (err error) {
		res.State, err = applier.Apply(ctx, c.Descriptors)
		return err
	})
	if err != nil {
		return res, err
	}

	err = o.stage(StageOutputs, func() error {
		res.Outputs = make(map[string]string, len(c.Outputs))
		for _, out := range c.Outputs {
			v, err := descriptor.Resolve(out.Value, res.State)
			if err != nil {
				return err
			}
			s, _ := v.(string)
			if s == "" {
				return topoerr.Unresolvedf("output %s resolved to an empty value", out.Name)
			}
			res.Outputs[out.Name] = s
		}
		return nil
	})
	return res, err
}
