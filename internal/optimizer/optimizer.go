// Package optimizer proposes security, cost, performance and reliability
// improvements for a composed descriptor set.
package optimizer

import (
	"fmt"
	"sort"

	wetwire "github.com/lex00/wetwire-topology-go"
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
)

// Categories accepted by Options.Category besides "all".
var Categories = []string{"security", "cost", "performance", "reliability"}

// Options configures the optimizer.
type Options struct {
	// Category filters suggestions: "all", "security", "cost", "performance", "reliability"
	Category string
}

// Result contains optimization suggestions.
type Result struct {
	Suggestions []wetwire.OptimizeSuggestion
	Summary     wetwire.OptimizeSummary
}

// Optimize analyzes set and returns suggestions sorted by resource and rule.
func Optimize(set *descriptor.Set, opts Options) (*Result, error) {
	category := opts.Category
	if category == "" {
		category = "all"
	}
	if category != "all" && !validCategory(category) {
		return nil, fmt.Errorf("unknown category %q", category)
	}

	result := &Result{}
	for _, d := range set.Descriptors() {
		result.Suggestions = append(result.Suggestions, analyzeResource(d, set, category)...)
	}
	for _, rule := range setRules {
		if category != "all" && rule.Category != category {
			continue
		}
		if s := rule.Check(set); s != nil {
			result.Suggestions = append(result.Suggestions, suggestion(rule.Rule, *s))
		}
	}

	sort.SliceStable(result.Suggestions, func(i, j int) bool {
		a, b := result.Suggestions[i], result.Suggestions[j]
		if a.Resource != b.Resource {
			return a.Resource < b.Resource
		}
		return a.Rule < b.Rule
	})

	result.Summary = calculateSummary(result.Suggestions)
	return result, nil
}

// Output converts the result to its JSON form.
func (r *Result) Output() wetwire.OptimizeResult {
	return wetwire.OptimizeResult{Suggestions: r.Suggestions, Summary: r.Summary}
}

func validCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// analyzeResource applies the rules for d's kind.
func analyzeResource(d descriptor.Descriptor, set *descriptor.Set, category string) []wetwire.OptimizeSuggestion {
	var suggestions []wetwire.OptimizeSuggestion
	for _, rule := range rulesByKind[d.Kind] {
		if category != "all" && rule.Category != category {
			continue
		}
		if finding := rule.Check(d, set); finding != nil {
			finding.Resource = d.ID
			suggestions = append(suggestions, suggestion(rule.Rule, *finding))
		}
	}
	return suggestions
}

func suggestion(r Rule, f Finding) wetwire.OptimizeSuggestion {
	return wetwire.OptimizeSuggestion{
		Rule:        r.ID,
		Resource:    f.Resource,
		Category:    r.Category,
		Severity:    r.Severity,
		Title:       r.Title,
		Description: f.Description,
		Suggestion:  r.Suggestion,
	}
}

// calculateSummary tallies suggestions by category.
func calculateSummary(suggestions []wetwire.OptimizeSuggestion) wetwire.OptimizeSummary {
	summary := wetwire.OptimizeSummary{}
	for _, s := range suggestions {
		switch s.Category {
		case "security":
			summary.Security++
		case "cost":
			summary.Cost++
		case "performance":
			summary.Performance++
		case "reliability":
			summary.Reliability++
		}
		summary.Total++
	}
	return summary
}

// Rule describes an optimization.
type Rule struct {
	ID         string
	Category   string
	Severity   string
	Title      string
	Suggestion string
}

// Finding is a rule hit.
type Finding struct {
	Resource    string
	Description string
}

// ResourceRule checks one descriptor.
type ResourceRule struct {
	Rule
	Check func(d descriptor.Descriptor, set *descriptor.Set) *Finding
}

// SetRule checks the set as a whole.
type SetRule struct {
	Rule
	Check func(set *descriptor.Set) *Finding
}
