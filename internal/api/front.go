// Package api composes the HTTP front door over a compute resource.
//
// A Front collects path → method → integration entries. It starts in Draft and
// becomes Composed once a non-OPTIONS method is attached. Attaching a method
// that contradicts an existing entry fails and leaves the Front unchanged.
package api

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lex00/wetwire-topology-go/internal/spec"
	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// State of a Front.
type State int

const (
	Draft State = iota
	Composed
)

func (s State) String() string {
	if s == Composed {
		return "Composed"
	}
	return "Draft"
}

// AuthMode is how a method authenticates callers.
type AuthMode string

const (
	// AuthNone leaves the method open.
	AuthNone AuthMode = "NONE"
	// AuthManagedIdentity checks tokens against an external identity pool.
	AuthManagedIdentity AuthMode = "COGNITO_USER_POOLS"
)

// IntegrationKind is the backend of a method.
type IntegrationKind string

const (
	// Proxy passes the request through to the compute resource.
	Proxy IntegrationKind = "AWS_PROXY"
	// Mock answers from a static template without invoking anything.
	Mock IntegrationKind = "MOCK"
)

// Integration names what a method calls.
type Integration struct {
	Kind   IntegrationKind
	Target string
}

// Method is one verb on a path.
type Method struct {
	Verb         string
	Auth         AuthMode
	AuthorizerID string
	Integration  Integration
}

// Authorizer references an external identity pool. The provider ARN is opaque.
type Authorizer struct {
	ID          string
	Name        string
	ProviderARN string
}

var pathPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Front is an API under construction.
type Front struct {
	ID         string
	Name       string
	Stage      string
	CORS       spec.CORSSpec
	Authorizer *Authorizer

	state  State
	routes map[string]map[string]Method
}

// NewFront returns an empty Front in Draft.
func NewFront(id, name, stage string, cors spec.CORSSpec, authorizer *Authorizer) *Front {
	return &Front{
		ID:         id,
		Name:       name,
		Stage:      stage,
		CORS:       cors,
		Authorizer: authorizer,
		routes:     make(map[string]map[string]Method),
	}
}

// State returns the current state.
func (f *Front) State() State {
	return f.state
}

// AttachMethod adds m under path. Re-attaching an identical method is a no-op.
func (f *Front) AttachMethod(path string, m Method) error {
	if !pathPattern.MatchString(path) {
		return topoerr.Configf("path %q must be a single segment of letters, digits, '.', '_' or '-'", path)
	}
	m.Verb = strings.ToUpper(m.Verb)
	if err := f.checkMethod(m); err != nil {
		return topoerr.Configf("%s /%s: %v", m.Verb, path, err)
	}

	if existing, ok := f.routes[path][m.Verb]; ok {
		if existing == m {
			return nil
		}
		if existing.Auth != m.Auth {
			return topoerr.Configf("%s /%s is already attached with authorization %s, refusing %s", m.Verb, path, existing.Auth, m.Auth)
		}
		return topoerr.Configf("%s /%s is already attached to a different integration", m.Verb, path)
	}

	if f.routes[path] == nil {
		for other := range f.routes {
			if pascal(other) == pascal(path) {
				return topoerr.Configf("path %q renders to the same resource as %q", path, other)
			}
		}
		f.routes[path] = make(map[string]Method)
	}
	f.routes[path][m.Verb] = m
	if m.Verb != "OPTIONS" {
		f.state = Composed
	}
	return nil
}

func (f *Front) checkMethod(m Method) error {
	switch m.Verb {
	case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "ANY":
	case "OPTIONS":
		if m.Integration.Kind != Mock || m.Auth != AuthNone {
			return fmt.Errorf("preflight must be an unauthenticated mock")
		}
		return nil
	default:
		return fmt.Errorf("unsupported method")
	}

	switch m.Auth {
	case AuthNone:
		if m.AuthorizerID != "" {
			return fmt.Errorf("authorizer %s given with authorization NONE", m.AuthorizerID)
		}
	case AuthManagedIdentity:
		if f.Authorizer == nil || m.AuthorizerID != f.Authorizer.ID {
			return fmt.Errorf("authorization %s needs the front's authorizer", m.Auth)
		}
	default:
		return fmt.Errorf("unknown authorization mode %q", m.Auth)
	}
	if m.Integration.Kind == Proxy && m.Integration.Target == "" {
		return fmt.Errorf("proxy integration has no target")
	}
	return nil
}

// Method returns the method attached to path and verb.
func (f *Front) Method(path, verb string) (Method, bool) {
	m, ok := f.routes[path][strings.ToUpper(verb)]
	return m, ok
}

// Paths returns the attached paths, sorted.
func (f *Front) Paths() []string {
	paths := make([]string, 0, len(f.routes))
	for p := range f.routes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Verbs returns the verbs attached to path, sorted.
func (f *Front) Verbs(path string) []string {
	verbs := make([]string, 0, len(f.routes[path]))
	for v := range f.routes[path] {
		verbs = append(verbs, v)
	}
	sort.Strings(verbs)
	return verbs
}

// Preflight header names.
const (
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
	HeaderAllowMethods = "Access-Control-Allow-Methods"
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
)

// Preflight returns the static headers answered by OPTIONS.
func Preflight(cors spec.CORSSpec) map[string]string {
	return map[string]string{
		HeaderAllowHeaders: strings.Join(cors.AllowHeaders, ","),
		HeaderAllowMethods: strings.Join(cors.AllowMethods, ","),
		HeaderAllowOrigin:  strings.Join(cors.AllowOrigins, ","),
	}
}
