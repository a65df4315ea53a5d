package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-topology-go/internal/manifest"
)

func newManifestCmd(a *app) *cobra.Command {
	var (
		namespace  string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "manifest [spec]",
		Short: "Emit ACK Kubernetes manifests for the network",
		Long: `Manifest renders the network, security group and IAM roles as
AWS Controllers for Kubernetes (ACK) custom resources.

Resources without an ACK counterpart in the ec2 and iam controllers are
skipped and listed on stderr.

Examples:
    wetwire-topology manifest topology.yaml | kubectl apply -f -
    wetwire-topology manifest topology.yaml -n infra -o network.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifest(a, args, namespace, outputFile, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "Namespace of the emitted objects")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runManifest(a *app, args []string, namespace, outputFile string, w, errw io.Writer) error {
	c, err := a.compose(args)
	if err != nil {
		return fmt.Errorf("manifest failed: %w", err)
	}

	bundle, err := manifest.Render(c.Descriptors, c.Spec.Naming(), namespace)
	if err != nil {
		return fmt.Errorf("manifest failed: %w", err)
	}
	for _, id := range bundle.Skipped {
		fmt.Fprintf(errw, "skipped %s: no ACK resource\n", id)
	}

	data, err := bundle.Marshal()
	if err != nil {
		return err
	}
	if outputFile == "" {
		_, err = w.Write(data)
		return err
	}
	return os.WriteFile(outputFile, data, 0644)
}
