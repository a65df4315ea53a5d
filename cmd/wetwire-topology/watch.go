package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	speclint "github.com/lex00/wetwire-topology-go/internal/lint"
)

// newWatchCmd creates the "watch" subcommand for recomposing on spec changes.
func newWatchCmd(a *app) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <spec>",
		Short: "Recompose the topology whenever the spec changes",
		Long: `Watch monitors a spec file and, on every change:

- lints the spec
- recomposes the topology if lint reports no errors (unless --lint-only)
- writes the rendered template when --output is set

Rapid successive saves are debounced.

Examples:
    wetwire-topology watch topology.yaml
    wetwire-topology watch topology.yaml --lint-only
    wetwire-topology watch topology.yaml -o template.json --debounce 1s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, a, args[0], opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.lintOnly, "lint-only", false, "Only run lint, skip composition")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")
	cmd.Flags().StringVarP(&opts.outputFormat, "format", "f", "json", "Output format for the template: json or yaml")
	cmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "Write the template to this file on every successful run")

	return cmd
}

type watchOptions struct {
	lintOnly     bool
	debounce     time.Duration
	outputFormat string
	outputFile   string
}

// runWatch monitors path until ctx is done.
func runWatch(ctx context.Context, a *app, path string, opts watchOptions, w io.Writer) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", abs, err)
	}
	fmt.Fprintf(w, "Watching: %s\n", abs)

	fmt.Fprintln(w, "Running initial lint/compose...")
	runWatchCycle(a, abs, opts, w)

	var debounceTimer *time.Timer
	rebuildChan := make(chan struct{}, 1)

	fmt.Fprintln(w, "\nWatching for changes... (Ctrl+C to stop)")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(opts.debounce, func() {
				select {
				case rebuildChan <- struct{}{}:
				default:
				}
			})

		case <-rebuildChan:
			fmt.Fprintf(w, "\n[%s] Change detected, recomposing...\n", time.Now().Format("15:04:05"))
			runWatchCycle(a, abs, opts, w)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "Watch error: %v\n", err)

		case <-ctx.Done():
			fmt.Fprintln(w, "\nStopping watch...")
			return nil
		}
	}
}

// runWatchCycle lints and recomposes path. It reports whether the cycle
// succeeded.
func runWatchCycle(a *app, path string, opts watchOptions, w io.Writer) bool {
	res, err := speclint.LintFile(path, speclint.Options{})
	if err != nil {
		fmt.Fprintf(w, "Lint error: %v\n", err)
		return false
	}

	hasErrors := false
	for _, issue := range res.Issues {
		severity := speclint.SeverityName(issue.Severity)
		if issue.Severity == speclint.SeverityError {
			hasErrors = true
		}
		fmt.Fprintf(w, "%s:%d:%d: %s: %s [%s]\n",
			issue.File, issue.Line, issue.Column, severity, issue.Message, issue.Rule)
	}
	if hasErrors {
		fmt.Fprintln(w, "Lint failed, skipping composition")
		return false
	}
	fmt.Fprintln(w, "Lint passed")

	if opts.lintOnly {
		return true
	}

	result := buildTemplate(a, []string{path})
	if !result.Success {
		for _, e := range result.Errors {
			fmt.Fprintf(w, "Compose error: %s\n", e)
		}
		return false
	}

	if opts.outputFile == "" {
		fmt.Fprintf(w, "Composed %d resources\n", len(result.Resources))
		return true
	}

	data, err := renderTemplate(&result.Template, opts.outputFormat)
	if err != nil {
		fmt.Fprintf(w, "Output error: %v\n", err)
		return false
	}
	if err := os.WriteFile(opts.outputFile, data, 0644); err != nil {
		fmt.Fprintf(w, "Failed to write output: %v\n", err)
		return false
	}
	fmt.Fprintf(w, "Composed %d resources, wrote %s\n", len(result.Resources), opts.outputFile)
	return true
}
