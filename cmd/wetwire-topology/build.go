package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-topology-go"
	"github.com/lex00/wetwire-topology-go/internal/template"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		outputFormat string
		outputFile   string
	)

	cmd := &cobra.Command{
		Use:   "build [spec]",
		Short: "Render a CloudFormation template from a topology spec",
		Long: `Build composes the topology spec and prints the CloudFormation template.

Examples:
    wetwire-topology build topology.yaml
    wetwire-topology build topology.yaml -o template.json
    wetwire-topology build topology.yaml --format yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(a, args, outputFormat, outputFile, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runBuild(a *app, args []string, format, outputFile string, w io.Writer) error {
	result := buildTemplate(a, args)
	if !result.Success {
		for _, e := range result.Errors {
			a.log().Error(e)
		}
		return fmt.Errorf("build failed")
	}

	data, err := renderTemplate(&result.Template, format)
	if err != nil {
		return err
	}

	if outputFile == "" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	return os.WriteFile(outputFile, data, 0644)
}

func buildTemplate(a *app, args []string) wetwire.BuildResult {
	c, err := a.compose(args)
	if err != nil {
		return wetwire.BuildResult{Errors: []string{err.Error()}}
	}

	tmpl, err := template.FromComposition(c).Build()
	if err != nil {
		return wetwire.BuildResult{Errors: []string{err.Error()}}
	}

	return wetwire.BuildResult{
		Success:   true,
		Template:  *tmpl,
		Resources: c.Descriptors.IDs(),
	}
}

func renderTemplate(t *wetwire.Template, format string) ([]byte, error) {
	switch format {
	case "json":
		return template.ToJSON(t)
	case "yaml":
		return template.ToYAML(t)
	}
	return nil, fmt.Errorf("unknown format: %s", format)
}
