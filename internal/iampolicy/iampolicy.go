// Package iampolicy builds IAM policy documents as descriptor property values.
//
// Documents are plain maps and slices so that symbolic references inside
// Resource entries (descriptor.Attr, descriptor.Concat) stay visible to the
// dependency walk.
package iampolicy

import "sort"

// Version is the policy language version.
const Version = "2012-10-17"

// Statement is one Allow or Deny statement.
type Statement struct {
	Sid       string
	Effect    string
	Principal any
	Action    []string
	Resource  []any
}

// Allow returns an Allow statement for actions on resources.
func Allow(actions []string, resources ...any) Statement {
	return Statement{Effect: "Allow", Action: actions, Resource: resources}
}

// ServicePrincipal is a service principal such as "lambda.amazonaws.com".
func ServicePrincipal(service string) map[string]any {
	return map[string]any{"Service": service}
}

// Document renders statements as a policy document.
func Document(statements ...Statement) map[string]any {
	out := make([]any, len(statements))
	for i, s := range statements {
		out[i] = s.props()
	}
	return map[string]any{"Version": Version, "Statement": out}
}

// AssumeRole returns the trust policy letting service assume a role.
func AssumeRole(service string) map[string]any {
	return Document(Statement{
		Effect:    "Allow",
		Principal: ServicePrincipal(service),
		Action:    []string{"sts:AssumeRole"},
	})
}

// Inline wraps a document as an entry of a role's Policies list.
func Inline(name string, doc map[string]any) map[string]any {
	return map[string]any{"PolicyName": name, "PolicyDocument": doc}
}

func (s Statement) props() map[string]any {
	m := map[string]any{"Effect": s.Effect}
	if s.Sid != "" {
		m["Sid"] = s.Sid
	}
	if s.Principal != nil {
		m["Principal"] = s.Principal
	}
	if len(s.Action) == 1 {
		m["Action"] = s.Action[0]
	} else if len(s.Action) > 1 {
		m["Action"] = toAny(s.Action)
	}
	if len(s.Resource) == 1 {
		m["Resource"] = s.Resource[0]
	} else if len(s.Resource) > 1 {
		m["Resource"] = s.Resource
	}
	return m
}

// Actions returns every action named in doc, sorted and de-duplicated.
func Actions(doc map[string]any) []string {
	seen := make(map[string]bool)
	stmts, _ := doc["Statement"].([]any)
	for _, st := range stmts {
		m, ok := st.(map[string]any)
		if !ok {
			continue
		}
		switch a := m["Action"].(type) {
		case string:
			seen[a] = true
		case []any:
			for _, v := range a {
				if s, ok := v.(string); ok {
					seen[s] = true
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
