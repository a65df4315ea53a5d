// Package backend applies a descriptor arena through a Provisioner.
//
// The Applier walks the arena level by level in dependency order. Before a
// descriptor is handed to the Provisioner its symbolic properties are resolved
// against the records of everything provisioned so far, so the Provisioner
// only ever sees concrete values.
package backend

import (
	"context"
	"sort"
	"sync"

	"github.com/lex00/wetwire-topology-go/internal/descriptor"
)

// Environment carries the account-level values behind descriptor.Pseudo.
type Environment struct {
	AccountID string
	Partition string
	Region    string
	URLSuffix string
}

// Record is what the backend reports for one provisioned descriptor.
type Record struct {
	PhysicalID string
	Attributes map[string]string
}

// Provisioner turns one resolved descriptor into a live resource.
type Provisioner interface {
	// Environment returns the account, partition and region being provisioned into.
	Environment(ctx context.Context) (Environment, error)
	// Provision creates the resource for d. d.Props holds concrete values only.
	Provision(ctx context.Context, d descriptor.Descriptor) (Record, error)
}

// State accumulates records while applying. It satisfies descriptor.Lookup.
type State struct {
	mu      sync.RWMutex
	env     Environment
	records map[string]Record
	order   []string
}

// NewState returns an empty state for env.
func NewState(env Environment) *State {
	return &State{env: env, records: make(map[string]Record)}
}

// Put stores the record of id.
func (s *State) Put(id string, r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		s.order = append(s.order, id)
	}
	s.records[id] = r
}

// Get returns the record of id.
func (s *State) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

// Physical implements descriptor.Lookup.
func (s *State) Physical(id string) (string, bool) {
	r, ok := s.Get(id)
	if !ok || r.PhysicalID == "" {
		return "", false
	}
	return r.PhysicalID, true
}

// Attribute implements descriptor.Lookup.
func (s *State) Attribute(id, name string) (string, bool) {
	r, ok := s.Get(id)
	if !ok {
		return "", false
	}
	v, ok := r.Attributes[name]
	return v, ok
}

// Pseudo implements descriptor.Lookup.
func (s *State) Pseudo(p descriptor.Pseudo) (string, bool) {
	var v string
	switch p {
	case descriptor.AccountID:
		v = s.env.AccountID
	case descriptor.Partition:
		v = s.env.Partition
	case descriptor.Region:
		v = s.env.Region
	case descriptor.URLSuffix:
		v = s.env.URLSuffix
	}
	return v, v != ""
}

// Environment returns the environment the state was built for.
func (s *State) Environment() Environment {
	return s.env
}

// Applied returns the ids in the order they were provisioned.
func (s *State) Applied() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Records returns a copy of all records keyed by logical id.
func (s *State) Records() map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

// IDs returns the provisioned ids, sorted.
func (s *State) IDs() []string {
	ids := s.Applied()
	sort.Strings(ids)
	return ids
}
