package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lex00/wetwire-topology-go/internal/azselect"
	"github.com/lex00/wetwire-topology-go/internal/logging"
	"github.com/lex00/wetwire-topology-go/internal/metrics"
	"github.com/lex00/wetwire-topology-go/internal/orchestrator"
	"github.com/lex00/wetwire-topology-go/internal/spec"
)

// app carries what every subcommand shares: settings, logger, metrics and
// the zone catalog.
type app struct {
	flags struct {
		logLevel    string
		logFormat   string
		metricsFile string
		envFile     string
	}

	settings spec.Settings
	logger   *zap.Logger
	metrics  *metrics.Metrics
	catalog  *azselect.Catalog
}

func (a *app) init(cmd *cobra.Command) error {
	s, err := spec.LoadSettings()
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}
	if a.flags.logLevel != "" {
		s.LogLevel = a.flags.logLevel
	}
	if a.flags.logFormat != "" {
		s.LogFormat = a.flags.logFormat
	}
	if a.flags.metricsFile != "" {
		s.MetricsFile = a.flags.metricsFile
	}
	if a.flags.envFile != "" {
		s.EnvFile = a.flags.envFile
	}
	a.settings = s

	a.logger, err = logging.NewWithWriter(cmd.ErrOrStderr(), s.LogLevel, s.LogFormat)
	if err != nil {
		return err
	}
	a.metrics = metrics.New()
	a.catalog = azselect.NewCatalog()
	return nil
}

func (a *app) close() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err := a.metrics.WriteFile(a.settings.MetricsFile); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// loadSpec loads the spec named by args, or the default topology when args is
// empty.
func (a *app) loadSpec(args []string) (*spec.GlobalSpec, error) {
	if len(args) == 0 {
		a.log().Debug("no spec given, using the default topology")
		return spec.Default(), nil
	}
	var envFiles []string
	if a.settings.EnvFile != "" {
		envFiles = []string{a.settings.EnvFile}
	}
	return spec.Load(args[0], spec.LoadOptions{EnvFiles: envFiles})
}

func (a *app) orchestrator() *orchestrator.Orchestrator {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(a.log()),
		orchestrator.WithMetrics(a.metrics),
	}
	if a.catalog != nil {
		opts = append(opts, orchestrator.WithSelector(a.catalog))
	}
	return orchestrator.New(opts...)
}

// compose loads and composes the spec named by args.
func (a *app) compose(args []string) (*orchestrator.Composition, error) {
	g, err := a.loadSpec(args)
	if err != nil {
		return nil, err
	}
	return a.orchestrator().Compose(g)
}

func (a *app) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

