package orchestrator

import (
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/state"
)

// Resources lists what each applied logical id of set resolved to, for the
// run history.
func (r *Result) Resources(set *descriptor.Set) []state.Resource {
	if r == nil || r.State == nil {
		return nil
	}
	var out []state.Resource
	for _, id := range r.State.IDs() {
		rec, _ := r.State.Get(id)
		d, _ := set.Get(id)
		out = append(out, state.Resource{
			LogicalID:  id,
			Kind:       string(d.Kind),
			PhysicalID: rec.PhysicalID,
			Attributes: rec.Attributes,
		})
	}
	return out
}
