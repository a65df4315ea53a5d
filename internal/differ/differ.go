// Package differ provides semantic comparison of CloudFormation templates.
package differ

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"

	"gopkg.in/yaml.v3"

	wetwire "github.com/lex00/wetwire-topology-go"
)

// Options configures the differ.
type Options struct {
	// IgnoreOrder ignores array element order in comparisons
	IgnoreOrder bool
}

// Result contains the difference between two templates.
type Result struct {
	Diff    wetwire.TemplateDiff
	Summary wetwire.DiffSummary
}

// Identical reports whether the templates matched.
func (r *Result) Identical() bool {
	return r.Summary.Total == 0
}

// Compare compares two CloudFormation templates and returns differences.
// Outputs are compared as entries named "Outputs.<name>".
func Compare(template1, template2 *wetwire.Template, opts Options) (*Result, error) {
	// Intrinsic functions compare by their JSON form, so a rendered template
	// and one loaded from disk are comparable.
	res1, out1, err := normalize(template1)
	if err != nil {
		return nil, err
	}
	res2, out2, err := normalize(template2)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	compareSection(result, "", res1, res2, opts)
	compareSection(result, "Outputs.", out1, out2, opts)

	sortEntries(result.Diff.Added)
	sortEntries(result.Diff.Removed)
	sortEntries(result.Diff.Modified)

	result.Summary = wetwire.DiffSummary{
		Added:    len(result.Diff.Added),
		Removed:  len(result.Diff.Removed),
		Modified: len(result.Diff.Modified),
	}
	result.Summary.Total = result.Summary.Added + result.Summary.Removed + result.Summary.Modified
	return result, nil
}

func compareSection(result *Result, prefix string, s1, s2 map[string]map[string]any, opts Options) {
	for name, def := range s2 {
		if _, exists := s1[name]; !exists {
			result.Diff.Added = append(result.Diff.Added, wetwire.DiffEntry{Resource: prefix + name, Type: typeOf(def)})
		}
	}
	for name, def := range s1 {
		if _, exists := s2[name]; !exists {
			result.Diff.Removed = append(result.Diff.Removed, wetwire.DiffEntry{Resource: prefix + name, Type: typeOf(def)})
		}
	}
	for name, def1 := range s1 {
		def2, exists := s2[name]
		if !exists {
			continue
		}
		if changes := compareProperties("", def1, def2, opts); len(changes) > 0 {
			result.Diff.Modified = append(result.Diff.Modified, wetwire.DiffEntry{
				Resource: prefix + name,
				Type:     typeOf(def1),
				Changes:  changes,
			})
		}
	}
}

func typeOf(def map[string]any) string {
	s, _ := def["Type"].(string)
	return s
}

// normalize converts resources and outputs into plain JSON values.
func normalize(t *wetwire.Template) (resources, outputs map[string]map[string]any, err error) {
	data, err := json.Marshal(struct {
		Resources map[string]wetwire.ResourceDef `json:"Resources"`
		Outputs   map[string]wetwire.Output      `json:"Outputs"`
	}{t.Resources, t.Outputs})
	if err != nil {
		return nil, nil, fmt.Errorf("encoding template: %w", err)
	}
	var doc struct {
		Resources map[string]map[string]any `json:"Resources"`
		Outputs   map[string]map[string]any `json:"Outputs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decoding template: %w", err)
	}
	return doc.Resources, doc.Outputs, nil
}

// CompareFiles compares two template files.
func CompareFiles(file1, file2 string, opts Options) (*Result, error) {
	t1, err := LoadTemplate(file1)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file1, err)
	}

	t2, err := LoadTemplate(file2)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file2, err)
	}

	return Compare(t1, t2, opts)
}

// LoadTemplate loads a CloudFormation template from a JSON or YAML file.
func LoadTemplate(path string) (*wetwire.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var template wetwire.Template
	if err := json.Unmarshal(data, &template); err != nil {
		if err := yaml.Unmarshal(data, &template); err != nil {
			return nil, fmt.Errorf("failed to parse as JSON or YAML: %w", err)
		}
	}
	return &template, nil
}

// compareProperties recursively compares maps and reports changed paths.
func compareProperties(prefix string, props1, props2 map[string]any, opts Options) []string {
	var changes []string

	for key, val2 := range props2 {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		val1, exists := props1[key]
		if !exists {
			changes = append(changes, fmt.Sprintf("%s added", path))
			continue
		}
		m1, ok1 := val1.(map[string]any)
		m2, ok2 := val2.(map[string]any)
		if ok1 && ok2 {
			changes = append(changes, compareProperties(path, m1, m2, opts)...)
			continue
		}
		if !deepEqual(val1, val2, opts) {
			changes = append(changes, fmt.Sprintf("%s modified", path))
		}
	}

	for key := range props1 {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if _, exists := props2[key]; !exists {
			changes = append(changes, fmt.Sprintf("%s removed", path))
		}
	}

	sort.Strings(changes)
	return changes
}

// deepEqual compares two values deeply, optionally ignoring order.
func deepEqual(a, b any, opts Options) bool {
	if opts.IgnoreOrder {
		a = normalizeValue(a)
		b = normalizeValue(b)
	}
	return reflect.DeepEqual(a, b)
}

// normalizeValue sorts slices by the JSON encoding of their elements.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []any:
		result := make([]any, len(val))
		keys := make([]string, len(val))
		for i, item := range val {
			result[i] = normalizeValue(item)
		}
		idx := make([]int, len(val))
		for i := range idx {
			idx[i] = i
			b, _ := json.Marshal(result[i])
			keys[i] = string(b)
		}
		sort.SliceStable(idx, func(i, j int) bool { return keys[idx[i]] < keys[idx[j]] })
		sorted := make([]any, len(val))
		for i, k := range idx {
			sorted[i] = result[k]
		}
		return sorted
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[k] = normalizeValue(v)
		}
		return result
	default:
		return v
	}
}

// sortEntries sorts diff entries by resource name.
func sortEntries(entries []wetwire.DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Resource < entries[j].Resource
	})
}
