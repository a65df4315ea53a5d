package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lex00/wetwire-topology-go/internal/spec"
)

func TestNewWatchCmd(t *testing.T) {
	cmd := newWatchCmd(&app{})

	if cmd.Use != "watch <spec>" {
		t.Errorf("Use = %q, want 'watch <spec>'", cmd.Use)
	}
	if cmd.Short == "" {
		t.Error("Short description should not be empty")
	}
	if cmd.Flags().Lookup("lint-only") == nil {
		t.Error("missing --lint-only flag")
	}
	if cmd.Flags().Lookup("debounce") == nil {
		t.Error("missing --debounce flag")
	}
}

func TestDebounceDefault(t *testing.T) {
	cmd := newWatchCmd(&app{})

	flag := cmd.Flags().Lookup("debounce")
	if flag == nil {
		t.Fatal("missing --debounce flag")
	}
	if flag.DefValue != "500ms" {
		t.Errorf("debounce default = %q, want '500ms'", flag.DefValue)
	}
}

func TestRunWatchCycle(t *testing.T) {
	dir := t.TempDir()
	data, err := spec.Marshal(spec.Default())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "topology.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "template.json")
	var buf bytes.Buffer
	ok := runWatchCycle(&app{}, path, watchOptions{
		debounce:     10 * time.Millisecond,
		outputFormat: "json",
		outputFile:   out,
	}, &buf)
	if !ok {
		t.Fatalf("runWatchCycle() = false, output:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "Lint passed") {
		t.Errorf("output missing lint status:\n%s", buf.String())
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("template not written: %v", err)
	}
}

func TestRunWatchCycle_LintError(t *testing.T) {
	g := spec.Default()
	g.Compute.KMSKeyArn = "arn:aws:kms:ap-northeast-1:111122223333:key/abc"
	g.Compute.Capabilities = []string{"read-parameters", "write-logs"}
	data, err := spec.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "topology.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if runWatchCycle(&app{}, path, watchOptions{outputFormat: "json"}, &buf) {
		t.Fatal("runWatchCycle() = true, want false")
	}
	if !strings.Contains(buf.String(), "WTT011") {
		t.Errorf("output missing WTT011:\n%s", buf.String())
	}
}
