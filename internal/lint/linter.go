// Package lint checks topology specs for choices that compose cleanly but are
// likely mistakes in production.
package lint

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	corelint "github.com/lex00/wetwire-core-go/lint"
	"gopkg.in/yaml.v3"

	"github.com/lex00/wetwire-topology-go/internal/spec"
)

// Type aliases for the core lint package.
type (
	// Issue is an alias for corelint.Issue.
	Issue = corelint.Issue
	// Severity is an alias for corelint.Severity.
	Severity = corelint.Severity
)

// Severity constants.
const (
	SeverityError   = corelint.SeverityError
	SeverityWarning = corelint.SeverityWarning
	SeverityInfo    = corelint.SeverityInfo
)

// SeverityName returns the lowercase name used in CLI output.
func SeverityName(s Severity) string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	}
	return "info"
}

// Result contains the outcome of linting.
type Result struct {
	Success bool
	Issues  []Issue
}

// Options configures the linter.
type Options struct {
	// Rules to enable. If empty, all rules are enabled.
	EnabledRules []string
	// EnvFiles are passed to spec.Load by LintFile.
	EnvFiles []string
}

// Lint runs the rules against an already loaded spec. file is only used for
// reporting.
func Lint(g *spec.GlobalSpec, file string, opts Options) Result {
	return lint(g, file, nil, opts)
}

// LintFile loads the spec at path and lints it, reporting line and column of
// each finding.
func LintFile(path string, opts Options) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading spec: %w", err)
	}

	g, err := spec.Load(path, spec.LoadOptions{EnvFiles: opts.EnvFiles})
	if err != nil {
		return Result{}, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Result{}, fmt.Errorf("parsing spec: %w", err)
	}
	return lint(g, path, indexPositions(&root), opts), nil
}

func lint(g *spec.GlobalSpec, file string, positions map[string]position, opts Options) Result {
	var issues []Issue
	for _, rule := range getRules(opts) {
		for _, f := range rule.Check(g) {
			pos := lookup(positions, f.Path)
			issues = append(issues, Issue{
				Rule:       rule.ID(),
				Message:    f.Message,
				Suggestion: f.Suggestion,
				File:       file,
				Line:       pos.line,
				Column:     pos.column,
				Severity:   f.Severity,
			})
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Line != issues[j].Line {
			return issues[i].Line < issues[j].Line
		}
		return issues[i].Rule < issues[j].Rule
	})

	return Result{
		Success: len(issues) == 0,
		Issues:  issues,
	}
}

// getRules returns the rules to use based on options.
func getRules(opts Options) []Rule {
	all := AllRules()
	if len(opts.EnabledRules) == 0 {
		return all
	}

	enabled := make(map[string]bool)
	for _, id := range opts.EnabledRules {
		enabled[id] = true
	}

	var filtered []Rule
	for _, r := range all {
		if enabled[r.ID()] {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

type position struct {
	line, column int
}

// indexPositions maps dotted paths such as "security.ingress[0].cidr" to the
// position of the value in the document.
func indexPositions(root *yaml.Node) map[string]position {
	out := make(map[string]position)
	var walk func(n *yaml.Node, path string)
	walk = func(n *yaml.Node, path string) {
		switch n.Kind {
		case yaml.DocumentNode:
			for _, c := range n.Content {
				walk(c, path)
			}
			return
		case yaml.MappingNode:
			for i := 0; i+1 < len(n.Content); i += 2 {
				key, val := n.Content[i], n.Content[i+1]
				p := key.Value
				if path != "" {
					p = path + "." + key.Value
				}
				out[p] = position{key.Line, key.Column}
				walk(val, p)
			}
		case yaml.SequenceNode:
			for i, c := range n.Content {
				p := path + "[" + strconv.Itoa(i) + "]"
				out[p] = position{c.Line, c.Column}
				walk(c, p)
			}
		}
	}
	walk(root, "")
	return out
}

// lookup finds the position of path, falling back to its closest ancestor
// present in the document. Defaulted fields have no position of their own.
func lookup(positions map[string]position, path string) position {
	for path != "" {
		if pos, ok := positions[path]; ok {
			return pos
		}
		path = parent(path)
	}
	return position{}
}

func parent(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[:i]
		case '[':
			return path[:i]
		}
	}
	return ""
}
