package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	wetwire "github.com/lex00/wetwire-topology-go"
	"github.com/lex00/wetwire-topology-go/internal/backend"
	"github.com/lex00/wetwire-topology-go/internal/backend/awsapi"
	"github.com/lex00/wetwire-topology-go/internal/backend/memory"
	"github.com/lex00/wetwire-topology-go/internal/orchestrator"
	"github.com/lex00/wetwire-topology-go/internal/spec"
	"github.com/lex00/wetwire-topology-go/internal/state"
	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

type applyOptions struct {
	profile     string
	region      string
	stateDB     string
	dryRun      bool
	concurrency int
	format      string
}

func newApplyCmd(a *app) *cobra.Command {
	var opts applyOptions

	cmd := &cobra.Command{
		Use:   "apply [spec]",
		Short: "Provision the topology through the AWS APIs",
		Long: `Apply composes the topology and provisions it wave by wave through the
AWS service APIs. Referenced SSM parameters and the KMS key are checked
before anything is created. Every run is recorded in the local state
database together with its outputs.

--dry-run provisions against an in-process backend that fabricates
identifiers, so the full apply path can be exercised without credentials.

Examples:
    wetwire-topology apply topology.yaml --profile prod
    wetwire-topology apply topology.yaml --dry-run -f json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runApply(ctx, a, args, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.profile, "profile", "", "AWS shared config profile")
	cmd.Flags().StringVar(&opts.region, "region", "", "Override the spec region")
	cmd.Flags().StringVar(&opts.stateDB, "state-db", "", "State database path (default from WETWIRE_TOPOLOGY_STATE_DB)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Provision against the in-process backend")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "Descriptors provisioned in parallel per wave")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")

	return cmd
}

func runApply(ctx context.Context, a *app, args []string, opts applyOptions, w io.Writer) error {
	settings := a.settings.Merge(opts.profile, opts.region)
	if opts.stateDB != "" {
		settings.StateDB = opts.stateDB
	}

	g, err := a.loadSpec(args)
	if err != nil {
		return err
	}
	if settings.Region != "" {
		g.Region = settings.Region
	}

	var (
		provisioner backend.Provisioner
		preflight   *awsapi.Preflight
	)
	if opts.dryRun {
		env := memory.DefaultEnvironment
		env.Region = g.Region
		provisioner = memory.New(env)
	} else {
		cfg, err := awsapi.LoadConfig(ctx, settings.Profile, g.Region)
		if err != nil {
			return err
		}
		if err := a.catalog.Refresh(ctx, ec2.NewFromConfig(cfg), g.Region); err != nil {
			a.log().Warn("using the static zone catalog", zap.Error(err))
		}
		digest, err := g.Digest()
		if err != nil {
			return err
		}
		provisioner = awsapi.NewFromConfig(cfg,
			awsapi.WithLogger(a.log()),
			awsapi.WithTokenSeed(g.Project+"/"+g.Environment+"/"+digest),
		)
		preflight = awsapi.NewPreflightFromConfig(cfg)
	}

	orch := orchestrator.New(
		orchestrator.WithLogger(a.log()),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithSelector(a.catalog),
		orchestrator.WithConcurrency(opts.concurrency),
	)
	c, err := orch.Compose(g)
	if err != nil {
		return outputApplyResult(failedApply("", err), opts.format, w)
	}

	if preflight != nil {
		if err := preflight.Check(ctx, g.Compute.Parameters, g.Compute.KMSKeyArn); err != nil {
			return outputApplyResult(failedApply("", topoerr.InStage("preflight", err)), opts.format, w)
		}
	}

	result, err := applyAndRecord(ctx, a, settings.StateDB, g, c, orch, provisioner)
	if err != nil {
		return err
	}
	return outputApplyResult(result, opts.format, w)
}

// applyAndRecord applies c and records the run. The returned error covers
// the state database only; apply failures are reported in the result.
func applyAndRecord(ctx context.Context, a *app, dbPath string, g *spec.GlobalSpec, c *orchestrator.Composition, orch *orchestrator.Orchestrator, p backend.Provisioner) (wetwire.ApplyResult, error) {
	store, err := state.Open(dbPath)
	if err != nil {
		return wetwire.ApplyResult{}, err
	}
	defer store.Close()

	digest, err := g.Digest()
	if err != nil {
		return wetwire.ApplyResult{}, err
	}
	run, err := store.Begin(ctx, g.Project, g.Environment, g.Region, digest)
	if err != nil {
		return wetwire.ApplyResult{}, err
	}
	log := a.log().With(zap.String("run_id", run.ID))
	log.Info("apply started", zap.Int("descriptors", c.Descriptors.Len()))

	res, applyErr := orch.Apply(ctx, c, p)
	// The run is recorded even when the caller gave up.
	if err := store.Finish(context.WithoutCancel(ctx), run.ID, res.Resources(c.Descriptors), res.Outputs, applyErr); err != nil {
		return wetwire.ApplyResult{}, err
	}

	if applyErr != nil {
		log.Error("apply failed", zap.Error(applyErr))
		return failedApply(run.ID, applyErr), nil
	}
	log.Info("apply finished", zap.Int("outputs", len(res.Outputs)))
	return wetwire.ApplyResult{Success: true, RunID: run.ID, Outputs: res.Outputs}, nil
}

func failedApply(runID string, err error) wetwire.ApplyResult {
	return wetwire.ApplyResult{
		RunID: runID,
		Error: err.Error(),
		Stage: topoerr.StageOf(err),
	}
}

func outputApplyResult(result wetwire.ApplyResult, format string, w io.Writer) error {
	switch format {
	case "json":
		if err := writeJSON(w, result); err != nil {
			return err
		}

	case "text":
		if !result.Success {
			fmt.Fprintf(w, "Apply FAILED")
			if result.Stage != "" {
				fmt.Fprintf(w, " in stage %s", result.Stage)
			}
			fmt.Fprintf(w, ": %s\n", result.Error)
			break
		}
		fmt.Fprintf(w, "Apply succeeded (run %s)\n", result.RunID)
		printOutputs(w, result.Outputs)

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		return &exitError{code: 1}
	}
	return nil
}

func printOutputs(w io.Writer, outputs map[string]string) {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %s\n", name, outputs[name])
	}
}
