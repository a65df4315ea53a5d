package backend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/metrics"
	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// DefaultConcurrency bounds the calls in flight within one level.
const DefaultConcurrency = 4

// Applier provisions an arena in dependency order.
type Applier struct {
	provisioner Provisioner
	logger      *zap.Logger
	metrics     *metrics.Metrics
	concurrency int
}

// Option configures an Applier.
type Option func(*Applier)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Applier) { a.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Applier) { a.metrics = m }
}

// WithConcurrency sets how many descriptors of one level are provisioned at
// once. Values below 1 mean one at a time.
func WithConcurrency(n int) Option {
	return func(a *Applier) {
		if n < 1 {
			n = 1
		}
		a.concurrency = n
	}
}

// NewApplier returns an Applier over p.
func NewApplier(p Provisioner, opts ...Option) *Applier {
	a := &Applier{
		provisioner: p,
		logger:      zap.NewNop(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply provisions every descriptor of set. Descriptors of one level run
// concurrently; a level starts only when the previous one has finished. The
// first failure cancels the rest of its level and stops the apply. Nothing
// already provisioned is rolled back. The returned state holds the records
// provisioned so far, also on failure.
func (a *Applier) Apply(ctx context.Context, set *descriptor.Set) (*State, error) {
	levels, err := set.Levels()
	if err != nil {
		return nil, err
	}

	env, err := a.provisioner.Environment(ctx)
	if err != nil {
		return nil, topoerr.ApplyFailed("environment", err)
	}
	state := NewState(env)

	a.logger.Info("applying descriptors",
		zap.Int("descriptors", set.Len()),
		zap.Int("levels", len(levels)),
		zap.String("region", env.Region),
	)

	for i, level := range levels {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.concurrency)
		for _, id := range level {
			d, _ := set.Get(id)
			g.Go(func() error {
				return a.provision(gctx, d, state)
			})
		}
		if err := g.Wait(); err != nil {
			a.logger.Error("apply stopped", zap.Int("level", i), zap.Error(err))
			return state, err
		}
	}

	a.logger.Info("apply finished", zap.Int("provisioned", len(state.Applied())))
	return state, nil
}

func (a *Applier) provision(ctx context.Context, d descriptor.Descriptor, state *State) error {
	if err := ctx.Err(); err != nil {
		return topoerr.ApplyFailed(d.ID, err)
	}

	props, err := descriptor.ResolveProps(d.Props, state)
	if err != nil {
		return fmt.Errorf("%s: %w", d.ID, err)
	}
	resolved := descriptor.Descriptor{ID: d.ID, Kind: d.Kind, Props: props, DependsOn: d.DependsOn}

	start := time.Now()
	rec, err := a.provisioner.Provision(ctx, resolved)
	elapsed := time.Since(start)
	a.metrics.ObserveProvision(string(d.Kind), elapsed, err)
	if err != nil {
		a.logger.Warn("provision failed",
			zap.String("logical_id", d.ID),
			zap.String("kind", string(d.Kind)),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return topoerr.ApplyFailed(d.ID, err)
	}

	state.Put(d.ID, rec)
	a.logger.Info("provisioned",
		zap.String("logical_id", d.ID),
		zap.String("kind", string(d.Kind)),
		zap.String("physical_id", rec.PhysicalID),
		zap.Duration("duration", elapsed),
	)
	return nil
}
