package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-topology-go"
	"github.com/lex00/wetwire-topology-go/internal/state"
)

func newOutputsCmd(a *app) *cobra.Command {
	var (
		stateDB      string
		runID        string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "outputs [spec]",
		Short: "Show the outputs of the last successful apply",
		Long: `Outputs reads the state database and prints the outputs recorded by
the most recent successful apply of the spec's project and environment.

Examples:
    wetwire-topology outputs topology.yaml
    wetwire-topology outputs --run 6b0c... -f json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutputs(cmd.Context(), a, args, stateDB, runID, outputFormat, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&stateDB, "state-db", "", "State database path (default from WETWIRE_TOPOLOGY_STATE_DB)")
	cmd.Flags().StringVar(&runID, "run", "", "Show this run instead of the latest")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func runOutputs(ctx context.Context, a *app, args []string, dbPath, runID, format string, w io.Writer) error {
	if dbPath == "" {
		dbPath = a.settings.StateDB
	}
	store, err := state.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var run *state.Run
	if runID != "" {
		run, err = store.Get(ctx, runID)
	} else {
		g, lerr := a.loadSpec(args)
		if lerr != nil {
			return lerr
		}
		run, err = store.Latest(ctx, g.Project, g.Environment)
	}
	if err != nil {
		return err
	}

	outputs, err := store.Outputs(ctx, run.ID)
	if err != nil {
		return err
	}

	result := wetwire.ApplyResult{
		Success: run.Status == state.StatusSucceeded,
		RunID:   run.ID,
		Outputs: outputs,
		Error:   run.Error,
	}

	switch format {
	case "json":
		return writeJSON(w, result)
	case "text":
		fmt.Fprintf(w, "Run %s (%s-%s, %s, %s)\n", run.ID, run.Project, run.Environment, run.Region, run.Status)
		printOutputs(w, outputs)
		return nil
	}
	return fmt.Errorf("unknown format: %s", format)
}
