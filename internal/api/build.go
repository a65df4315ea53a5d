package api

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/lex00/wetwire-topology-go/internal/compute"
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/spec"
	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// Logical ids of the API descriptors.
const (
	RestApiID       = "RestApi"
	AuthorizerID    = "ApiAuthorizer"
	PermissionID    = "ApiInvokePermission"
	DeploymentID    = "ApiDeployment"
	identitySource  = "method.request.header.Authorization"
	invokeNamespace = ":lambda:path/2015-03-31/functions/"
)

// Build composes a Front over c with a single path: GET proxied to the
// function, guarded by authorizer when one is given, and an OPTIONS preflight.
func Build(c *compute.Resource, authorizer *spec.AuthorizerSpec, s spec.ApiSpec) (*Front, error) {
	if s.Name == "" || s.Stage == "" {
		return nil, topoerr.Configf("api needs a name and a stage")
	}

	var auth *Authorizer
	getMethod := Method{Verb: "GET", Auth: AuthNone, Integration: Integration{Kind: Proxy, Target: c.ID}}
	if authorizer != nil {
		if strings.TrimSpace(authorizer.ProviderARN) == "" {
			return nil, topoerr.Configf("authorizer %q has an empty identity pool reference", authorizer.Name)
		}
		auth = &Authorizer{ID: AuthorizerID, Name: authorizer.Name, ProviderARN: authorizer.ProviderARN}
		getMethod.Auth = AuthManagedIdentity
		getMethod.AuthorizerID = AuthorizerID
	}

	f := NewFront(RestApiID, s.Name, s.Stage, s.CORS, auth)
	if err := f.AttachMethod(s.Path, getMethod); err != nil {
		return nil, err
	}
	if err := f.AttachMethod(s.Path, Method{Verb: "OPTIONS", Auth: AuthNone, Integration: Integration{Kind: Mock}}); err != nil {
		return nil, err
	}
	return f, nil
}

// Render turns a Composed front into descriptors. requestTemplates apply to
// proxy integrations.
func (f *Front) Render(c *compute.Resource, requestTemplates map[string]string, naming spec.Naming) (*descriptor.Set, error) {
	if f.state != Composed {
		return nil, topoerr.Configf("api %s is still a draft: no method besides OPTIONS is attached", f.Name)
	}

	set := descriptor.NewSet()
	set.MustAdd(descriptor.Descriptor{
		ID:   f.ID,
		Kind: descriptor.KindRestApi,
		Props: map[string]any{
			"Name":                  f.Name,
			"EndpointConfiguration": map[string]any{"Types": []any{"REGIONAL"}},
			"Tags":                  naming.Tags("api"),
		},
	})

	if f.Authorizer != nil {
		set.MustAdd(descriptor.Descriptor{
			ID:   f.Authorizer.ID,
			Kind: descriptor.KindAuthorizer,
			Props: map[string]any{
				"Name":           f.Authorizer.Name,
				"Type":           string(AuthManagedIdentity),
				"RestApiId":      descriptor.Ref{ID: f.ID},
				"ProviderARNs":   []any{f.Authorizer.ProviderARN},
				"IdentitySource": identitySource,
			},
		})
	}

	var methodIDs []string
	for _, path := range f.Paths() {
		resourceID := "ApiResource" + pascal(path)
		if err := set.Add(descriptor.Descriptor{
			ID:   resourceID,
			Kind: descriptor.KindApiResource,
			Props: map[string]any{
				"RestApiId": descriptor.Ref{ID: f.ID},
				"ParentId":  descriptor.Attr{ID: f.ID, Name: "RootResourceId"},
				"PathPart":  path,
			},
		}); err != nil {
			return nil, fmt.Errorf("path /%s: %w", path, err)
		}

		for _, verb := range f.Verbs(path) {
			m := f.routes[path][verb]
			id := "ApiMethod" + pascal(path) + pascal(strings.ToLower(verb))
			props := map[string]any{
				"RestApiId":         descriptor.Ref{ID: f.ID},
				"ResourceId":        descriptor.Ref{ID: resourceID},
				"HttpMethod":        verb,
				"AuthorizationType": string(m.Auth),
			}
			if m.Auth == AuthManagedIdentity {
				props["AuthorizerId"] = descriptor.Ref{ID: m.AuthorizerID}
			}
			switch m.Integration.Kind {
			case Proxy:
				props["Integration"] = proxyIntegration(c, requestTemplates)
				if err := set.Add(invokePermission(PermissionID+pascal(path)+pascal(strings.ToLower(verb)), f.ID, c.ID, verb, path)); err != nil {
					return nil, fmt.Errorf("%s /%s: %w", verb, path, err)
				}
			case Mock:
				props["Integration"], props["MethodResponses"] = preflightIntegration(f.CORS)
			}
			if err := set.Add(descriptor.Descriptor{ID: id, Kind: descriptor.KindMethod, Props: props}); err != nil {
				return nil, fmt.Errorf("%s /%s: %w", verb, path, err)
			}
			methodIDs = append(methodIDs, id)
		}
	}

	set.MustAdd(descriptor.Descriptor{
		ID:   DeploymentID,
		Kind: descriptor.KindDeployment,
		Props: map[string]any{
			"RestApiId": descriptor.Ref{ID: f.ID},
			"StageName": f.Stage,
		},
		DependsOn: methodIDs,
	})
	return set, nil
}

// Endpoint is the invoke URL of the deployed stage.
func (f *Front) Endpoint() descriptor.Concat {
	return descriptor.Concat{
		"https://", descriptor.Ref{ID: f.ID}, ".execute-api.", descriptor.Region, ".", descriptor.URLSuffix, "/" + f.Stage + "/",
	}
}

func invokePermission(id, apiID, functionID, verb, path string) descriptor.Descriptor {
	return descriptor.Descriptor{
		ID:   id,
		Kind: descriptor.KindPermission,
		Props: map[string]any{
			"FunctionName": descriptor.Ref{ID: functionID},
			"Action":       "lambda:InvokeFunction",
			"Principal":    "apigateway.amazonaws.com",
			"SourceArn": descriptor.Concat{
				"arn:", descriptor.Partition, ":execute-api:", descriptor.Region, ":", descriptor.AccountID, ":",
				descriptor.Ref{ID: apiID}, "/*/" + verb + "/" + path,
			},
		},
	}
}

func proxyIntegration(c *compute.Resource, requestTemplates map[string]string) map[string]any {
	integration := map[string]any{
		"Type":                  string(Proxy),
		"IntegrationHttpMethod": "POST",
		"Uri": descriptor.Concat{
			"arn:", descriptor.Partition, ":apigateway:", descriptor.Region, invokeNamespace,
			descriptor.Attr{ID: c.ID, Name: "Arn"}, "/invocations",
		},
	}
	if len(requestTemplates) > 0 {
		templates := make(map[string]any, len(requestTemplates))
		for k, v := range requestTemplates {
			templates[k] = v
		}
		integration["RequestTemplates"] = templates
	}
	return integration
}

func preflightIntegration(cors spec.CORSSpec) (map[string]any, []any) {
	headers := Preflight(cors)
	responseParams := make(map[string]any, len(headers))
	declared := make(map[string]any, len(headers))
	for h, v := range headers {
		key := "method.response.header." + h
		responseParams[key] = "'" + v + "'"
		declared[key] = true
	}

	integration := map[string]any{
		"Type":             string(Mock),
		"RequestTemplates": map[string]any{"application/json": `{"statusCode": 200}`},
		"IntegrationResponses": []any{
			map[string]any{
				"StatusCode":         "200",
				"ResponseParameters": responseParams,
				"ResponseTemplates":  map[string]any{"application/json": ""},
			},
		},
	}
	responses := []any{
		map[string]any{"StatusCode": "200", "ResponseParameters": declared},
	}
	return integration, responses
}

// pascal turns "flow-data" into "FlowData".
func pascal(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
