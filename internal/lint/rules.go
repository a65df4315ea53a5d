// Rules:
//
//	WTT001: Spread the network over at least two zones
//	WTT002: Ingress open to the whole internet
//	WTT003: Network without flow logs
//	WTT004: Flow-log retention shorter than 30 days
//	WTT005: Secret-looking environment variable with a literal value
//	WTT006: Environment binding names an undeclared parameter
//	WTT007: Deprecated runtime
//	WTT008: Handler timeout longer than the API integration timeout
//	WTT009: Wildcard CORS origin on an authorized API
//	WTT010: Handler code not pinned to an object version
//	WTT011: Encryption key configured without the decrypt capability
package lint

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/lex00/wetwire-topology-go/internal/spec"
)

// Rule is a single spec check.
type Rule interface {
	ID() string
	Description() string
	Check(g *spec.GlobalSpec) []Finding
}

// Finding is a rule hit before it is located in the source file.
type Finding struct {
	// Path is the dotted field path, e.g. "compute.timeoutSeconds".
	Path       string
	Message    string
	Suggestion string
	Severity   Severity
}

// AllRules returns every rule in ID order.
func AllRules() []Rule {
	return []Rule{
		SingleZone{},
		OpenIngress{},
		NoFlowLogs{},
		ShortRetention{},
		LiteralSecret{},
		UndeclaredParameter{},
		DeprecatedRuntime{},
		TimeoutExceedsIntegration{},
		WildcardCORSWithAuth{},
		UnpinnedCode{},
		KeyWithoutDecrypt{},
	}
}

// SingleZone flags networks whose handler and NAT live in one zone.
type SingleZone struct{}

func (SingleZone) ID() string          { return "WTT001" }
func (SingleZone) Description() string { return "Spread the network over at least two zones" }

func (r SingleZone) Check(g *spec.GlobalSpec) []Finding {
	if g.Network.ZoneCount >= 2 {
		return nil
	}
	return []Finding{{
		Path:       "network.zoneCount",
		Message:    fmt.Sprintf("network uses %d zone; a zone outage takes down the handler and its NAT", g.Network.ZoneCount),
		Suggestion: "zoneCount: 2",
		Severity:   SeverityWarning,
	}}
}

// OpenIngress flags ingress from 0.0.0.0/0 or ::/0.
type OpenIngress struct{}

func (OpenIngress) ID() string          { return "WTT002" }
func (OpenIngress) Description() string { return "Ingress open to the whole internet" }

func (r OpenIngress) Check(g *spec.GlobalSpec) []Finding {
	var out []Finding
	for i, rule := range g.Security.Ingress {
		if rule.CIDR != "0.0.0.0/0" && rule.CIDR != "::/0" {
			continue
		}
		out = append(out, Finding{
			Path:       fmt.Sprintf("security.ingress[%d].cidr", i),
			Message:    fmt.Sprintf("ingress %s/%d is open to %s", rule.Protocol, rule.Port, rule.CIDR),
			Suggestion: "cidr: " + g.Network.CIDR,
			Severity:   SeverityWarning,
		})
	}
	return out
}

// NoFlowLogs flags networks without any traffic-log sink.
type NoFlowLogs struct{}

func (NoFlowLogs) ID() string          { return "WTT003" }
func (NoFlowLogs) Description() string { return "Network without flow logs" }

func (r NoFlowLogs) Check(g *spec.GlobalSpec) []Finding {
	if len(g.FlowLogs) > 0 {
		return nil
	}
	return []Finding{{
		Path:       "network",
		Message:    "no flow-log destination; rejected traffic will not be recorded",
		Suggestion: "flowLogs: [{kind: log-group}]",
		Severity:   SeverityWarning,
	}}
}

// ShortRetention flags log-group sinks kept for less than a month.
type ShortRetention struct{}

func (ShortRetention) ID() string          { return "WTT004" }
func (ShortRetention) Description() string { return "Flow-log retention shorter than 30 days" }

func (r ShortRetention) Check(g *spec.GlobalSpec) []Finding {
	var out []Finding
	for i, d := range g.FlowLogs {
		if d.Kind != "log-group" || d.RetentionDays >= 30 {
			continue
		}
		out = append(out, Finding{
			Path:     fmt.Sprintf("flowLogs[%d].retentionDays", i),
			Message:  fmt.Sprintf("flow logs are kept for %d days", d.RetentionDays),
			Severity: SeverityInfo,
		})
	}
	return out
}

var secretKey = regexp.MustCompile(`(?i)(password|passwd|secret|token|private_?key|api_?key)`)

// LiteralSecret flags secret-looking variables whose value is not a
// parameter path.
type LiteralSecret struct{}

func (LiteralSecret) ID() string { return "WTT005" }
func (LiteralSecret) Description() string {
	return "Secret-looking environment variable with a literal value"
}

func (r LiteralSecret) Check(g *spec.GlobalSpec) []Finding {
	var out []Finding
	for _, k := range sortedKeys(g.Compute.Environment) {
		v := g.Compute.Environment[k]
		if !secretKey.MatchString(k) || strings.HasPrefix(v, "/") {
			continue
		}
		out = append(out, Finding{
			Path:       "compute.environment." + k,
			Message:    fmt.Sprintf("%s holds a literal value; it will be visible in the function configuration", k),
			Suggestion: "store it as a SecureString parameter and bind its name",
			Severity:   SeverityError,
		})
	}
	return out
}

// UndeclaredParameter flags bindings to parameters missing from
// compute.parameters. Those are neither preflighted nor granted.
type UndeclaredParameter struct{}

func (UndeclaredParameter) ID() string { return "WTT006" }
func (UndeclaredParameter) Description() string {
	return "Environment binding names an undeclared parameter"
}

func (r UndeclaredParameter) Check(g *spec.GlobalSpec) []Finding {
	var out []Finding
	for _, k := range sortedKeys(g.Compute.Environment) {
		v := g.Compute.Environment[k]
		if !strings.HasPrefix(v, "/") || slices.Contains(g.Compute.Parameters, v) {
			continue
		}
		out = append(out, Finding{
			Path:       "compute.environment." + k,
			Message:    fmt.Sprintf("%s names parameter %s, which is not listed in compute.parameters", k, v),
			Suggestion: "- " + v,
			Severity:   SeverityWarning,
		})
	}
	return out
}

// deprecatedRuntimes lists runtimes Lambda no longer patches.
var deprecatedRuntimes = map[string]bool{
	"python2.7":  true,
	"python3.6":  true,
	"python3.7":  true,
	"python3.8":  true,
	"python3.9":  true,
	"nodejs12.x": true,
	"nodejs14.x": true,
	"nodejs16.x": true,
	"nodejs18.x": true,
	"go1.x":      true,
	"ruby2.7":    true,
	"java8":      true,
	"dotnet6":    true,
}

// DeprecatedRuntime flags end-of-life runtimes.
type DeprecatedRuntime struct{}

func (DeprecatedRuntime) ID() string          { return "WTT007" }
func (DeprecatedRuntime) Description() string { return "Deprecated runtime" }

func (r DeprecatedRuntime) Check(g *spec.GlobalSpec) []Finding {
	if !deprecatedRuntimes[g.Compute.Runtime] {
		return nil
	}
	return []Finding{{
		Path:       "compute.runtime",
		Message:    fmt.Sprintf("runtime %s is deprecated", g.Compute.Runtime),
		Suggestion: "runtime: python3.12",
		Severity:   SeverityWarning,
	}}
}

// IntegrationTimeoutSeconds is the API front's integration timeout.
const IntegrationTimeoutSeconds = 29

// TimeoutExceedsIntegration flags handlers that can outlive the API call.
type TimeoutExceedsIntegration struct{}

func (TimeoutExceedsIntegration) ID() string { return "WTT008" }
func (TimeoutExceedsIntegration) Description() string {
	return "Handler timeout longer than the API integration timeout"
}

func (r TimeoutExceedsIntegration) Check(g *spec.GlobalSpec) []Finding {
	if g.Compute.TimeoutSeconds <= IntegrationTimeoutSeconds {
		return nil
	}
	return []Finding{{
		Path: "compute.timeoutSeconds",
		Message: fmt.Sprintf("handler may run %ds but the API gives up after %ds",
			g.Compute.TimeoutSeconds, IntegrationTimeoutSeconds),
		Suggestion: fmt.Sprintf("timeoutSeconds: %d", IntegrationTimeoutSeconds),
		Severity:   SeverityWarning,
	}}
}

// WildcardCORSWithAuth flags "*" origins in front of an authorizer.
type WildcardCORSWithAuth struct{}

func (WildcardCORSWithAuth) ID() string { return "WTT009" }
func (WildcardCORSWithAuth) Description() string {
	return "Wildcard CORS origin on an authorized API"
}

func (r WildcardCORSWithAuth) Check(g *spec.GlobalSpec) []Finding {
	if g.Api.Authorizer == nil || !slices.Contains(g.Api.CORS.AllowOrigins, "*") {
		return nil
	}
	return []Finding{{
		Path:       "api.cors.allowOrigins",
		Message:    "authorized API accepts requests from any origin",
		Suggestion: "list the browser origins that call the API",
		Severity:   SeverityWarning,
	}}
}

// UnpinnedCode flags code locations without an object version.
type UnpinnedCode struct{}

func (UnpinnedCode) ID() string          { return "WTT010" }
func (UnpinnedCode) Description() string { return "Handler code not pinned to an object version" }

func (r UnpinnedCode) Check(g *spec.GlobalSpec) []Finding {
	if g.Compute.Code.Version != "" {
		return nil
	}
	return []Finding{{
		Path:     "compute.code",
		Message:  fmt.Sprintf("s3://%s/%s is deployed without a version; reapplying may pick up a different archive", g.Compute.Code.Bucket, g.Compute.Code.Key),
		Severity: SeverityInfo,
	}}
}

// KeyWithoutDecrypt flags a KMS key the handler has no permission to use.
type KeyWithoutDecrypt struct{}

func (KeyWithoutDecrypt) ID() string { return "WTT011" }
func (KeyWithoutDecrypt) Description() string {
	return "Encryption key configured without the decrypt capability"
}

func (r KeyWithoutDecrypt) Check(g *spec.GlobalSpec) []Finding {
	if g.Compute.KMSKeyArn == "" || slices.Contains(g.Compute.Capabilities, "decrypt") {
		return nil
	}
	return []Finding{{
		Path:       "compute.kmsKeyArn",
		Message:    "kmsKeyArn is set but the handler lacks the decrypt capability",
		Suggestion: "capabilities: [decrypt]",
		Severity:   SeverityError,
	}}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
