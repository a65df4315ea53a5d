// Command wetwire-topology composes a network topology spec into AWS
// resources.
//
// Usage:
//
//	wetwire-topology build topology.yaml      Render a CloudFormation template
//	wetwire-topology lint topology.yaml       Check the spec for issues
//	wetwire-topology apply topology.yaml      Provision through the AWS APIs
//	wetwire-topology version                  Show version
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "wetwire-topology",
		Short: "Compose AWS network topologies from a YAML spec",
		Long: `wetwire-topology composes a VPC with zone-redundant public and protected
subnets, NAT gateways, flow logs, a Lambda function and a REST API front
from a single YAML spec.

The composed resources can be rendered as a CloudFormation template:

    wetwire-topology build topology.yaml

or provisioned directly:

    wetwire-topology apply topology.yaml --profile prod

Commands that take a spec fall back to the built-in default topology when
no path is given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from WETWIRE_TOPOLOGY_LOG_LEVEL or info)")
	flags.StringVar(&a.flags.logFormat, "log-format", "", "Log format: console or json")
	flags.StringVar(&a.flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	flags.StringVar(&a.flags.envFile, "env-file", "", "Load ${VAR} values from this .env file (default .env)")

	rootCmd.AddCommand(
		newBuildCmd(a),
		newGraphCmd(a),
		newValidateCmd(a),
		newLintCmd(a),
		newOptimizeCmd(a),
		newListCmd(a),
		newVerifyCmd(a),
		newManifestCmd(a),
		newApplyCmd(a),
		newOutputsCmd(a),
		newZonesCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// exitError ends the process with code without printing anything further.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wetwire-topology %s\n", getVersion())
		},
	}
}
