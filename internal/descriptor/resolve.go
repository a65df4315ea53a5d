package descriptor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// Lookup supplies concrete values for symbolic references.
type Lookup interface {
	Physical(id string) (string, bool)
	Attribute(id, name string) (string, bool)
	Pseudo(p Pseudo) (string, bool)
}

// Resolve replaces every symbolic reference in v with its concrete value.
// Unknown references are DependencyUnresolved.
func Resolve(v any, l Lookup) (any, error) {
	switch t := v.(type) {
	case Ref:
		id, ok := l.Physical(t.ID)
		if !ok || id == "" {
			return nil, topoerr.Unresolvedf("no physical id for %q", t.ID)
		}
		return id, nil
	case Attr:
		val, ok := l.Attribute(t.ID, t.Name)
		if !ok || val == "" {
			return nil, topoerr.Unresolvedf("no attribute %s.%s", t.ID, t.Name)
		}
		return val, nil
	case Pseudo:
		val, ok := l.Pseudo(t)
		if !ok || val == "" {
			return nil, topoerr.Unresolvedf("no value for %s", string(t))
		}
		return val, nil
	case Concat:
		var sb strings.Builder
		for _, part := range t {
			r, err := Resolve(part, l)
			if err != nil {
				return nil, err
			}
			sb.WriteString(fmt.Sprint(r))
		}
		return sb.String(), nil
	case map[string]any:
		return ResolveProps(t, l)
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			r, err := Resolve(elem, l)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

// ResolveProps resolves a property map into a new map.
func ResolveProps(props map[string]any, l Lookup) (map[string]any, error) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(props))
	for _, k := range keys {
		r, err := Resolve(props[k], l)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = r
	}
	return out, nil
}

// Symbolic renders v for humans, e.g. "${PublicSubnetA}" for a Ref.
func Symbolic(v any) string {
	switch t := v.(type) {
	case Ref:
		return "${" + t.ID + "}"
	case Attr:
		return "${" + t.ID + "." + t.Name + "}"
	case Pseudo:
		return "${" + string(t) + "}"
	case Concat:
		var sb strings.Builder
		for _, part := range t {
			sb.WriteString(Symbolic(part))
		}
		return sb.String()
	default:
		return fmt.Sprint(v)
	}
}
