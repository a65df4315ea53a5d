package descriptor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// Set is an arena of descriptors keyed by logical id.
type Set struct {
	items map[string]Descriptor
}

// NewSet creates an empty arena.
func NewSet() *Set {
	return &Set{items: make(map[string]Descriptor)}
}

// Add inserts d. Logical ids are unique within a set.
func (s *Set) Add(d Descriptor) error {
	if d.ID == "" {
		return topoerr.Configf("descriptor of kind %s has no logical id", d.Kind)
	}
	if _, exists := s.items[d.ID]; exists {
		return topoerr.Configf("duplicate logical id %q", d.ID)
	}
	if d.Props == nil {
		d.Props = map[string]any{}
	}
	s.items[d.ID] = d
	return nil
}

// MustAdd is Add for builders that construct ids from fixed tables.
func (s *Set) MustAdd(d Descriptor) {
	if err := s.Add(d); err != nil {
		panic(err)
	}
}

// Merge adds every descriptor of other to s.
func (s *Set) Merge(other *Set) error {
	if other == nil {
		return nil
	}
	for _, id := range other.IDs() {
		if err := s.Add(other.items[id]); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the descriptor with the given id.
func (s *Set) Get(id string) (Descriptor, bool) {
	d, ok := s.items[id]
	return d, ok
}

// Len returns the number of descriptors.
func (s *Set) Len() int {
	return len(s.items)
}

// IDs returns all logical ids in sorted order.
func (s *Set) IDs() []string {
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Descriptors returns all descriptors sorted by logical id.
func (s *Set) Descriptors() []Descriptor {
	ids := s.IDs()
	out := make([]Descriptor, len(ids))
	for i, id := range ids {
		out[i] = s.items[id]
	}
	return out
}

// OfKind returns the descriptors of kind k sorted by logical id.
func (s *Set) OfKind(k Kind) []Descriptor {
	var out []Descriptor
	for _, d := range s.Descriptors() {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}

// Check verifies that every reference names a descriptor in the set.
func (s *Set) Check() error {
	for _, d := range s.Descriptors() {
		for _, dep := range d.Dependencies() {
			if _, ok := s.items[dep]; !ok {
				return topoerr.Unresolvedf("%s references undefined %q", d.ID, dep)
			}
		}
	}
	return nil
}

// Order returns logical ids in dependency order. Ties are broken by id so the
// order is stable across runs.
func (s *Set) Order() ([]string, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}

	dependents := make(map[string][]string)
	inDegree := make(map[string]int)
	for id := range s.items {
		inDegree[id] = 0
	}
	for id, d := range s.items {
		for _, dep := range d.Dependencies() {
			dependents[dep] = append(dependents[dep], id)
			inDegree[id]++
		}
	}

	var queue []string
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, next := range dependents[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(s.items) {
		return nil, s.detectCycle()
	}
	return result, nil
}

// Levels groups the dependency order into waves. Every descriptor in a wave
// depends only on descriptors in earlier waves.
func (s *Set) Levels() ([][]string, error) {
	order, err := s.Order()
	if err != nil {
		return nil, err
	}

	depth := make(map[string]int, len(order))
	maxDepth := 0
	for _, id := range order {
		level := 0
		for _, dep := range s.items[id].Dependencies() {
			if depth[dep]+1 > level {
				level = depth[dep] + 1
			}
		}
		depth[id] = level
		if level > maxDepth {
			maxDepth = level
		}
	}

	levels := make([][]string, maxDepth+1)
	for _, id := range order {
		levels[depth[id]] = append(levels[depth[id]], id)
	}
	for _, l := range levels {
		sort.Strings(l)
	}
	return levels, nil
}

func (s *Set) detectCycle() error {
	visited := make(map[string]bool)
	path := make(map[string]bool)

	var cycle []string
	var findCycle func(node string) bool
	findCycle = func(node string) bool {
		visited[node] = true
		path[node] = true

		for _, dep := range s.items[node].Dependencies() {
			if !visited[dep] {
				if findCycle(dep) {
					cycle = append([]string{node}, cycle...)
					return true
				}
			} else if path[dep] {
				cycle = append([]string{dep, node}, cycle...)
				return true
			}
		}

		path[node] = false
		return false
	}

	for _, id := range s.IDs() {
		if !visited[id] && findCycle(id) {
			break
		}
	}

	if len(cycle) > 0 {
		return topoerr.Unresolvedf("circular dependency detected: %s", strings.Join(cycle, " → "))
	}
	return topoerr.Unresolvedf("circular dependency detected")
}

// String summarizes the set for logs.
func (s *Set) String() string {
	counts := make(map[Kind]int)
	for _, d := range s.items {
		counts[d.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for k, n := range counts {
		kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
	}
	sort.Strings(kinds)
	return strings.Join(kinds, " ")
}
