// Package spec defines the declarative topology description consumed by the
// orchestrator, and loads it from YAML.
package spec

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// GlobalSpec is the whole topology: one network with its flow logs, one
// security group, one compute resource and one API front.
type GlobalSpec struct {
	Project     string               `yaml:"project"`
	Environment string               `yaml:"environment"`
	Region      string               `yaml:"region"`
	Network     NetworkSpec          `yaml:"network"`
	FlowLogs    []FlowLogDestination `yaml:"flowLogs,omitempty"`
	Security    SecuritySpec         `yaml:"security"`
	Compute     ComputeSpec          `yaml:"compute"`
	Api         ApiSpec              `yaml:"api"`
}

// NetworkSpec describes the VPC. Zone blocks are either listed explicitly in
// Zones or derived from the prefix lengths.
type NetworkSpec struct {
	CIDR                  string     `yaml:"cidr"`
	ZoneCount             int        `yaml:"zoneCount"`
	Zones                 []ZoneSpec `yaml:"zones,omitempty"`
	PublicPrefixLength    int        `yaml:"publicPrefixLength,omitempty"`
	ProtectedPrefixLength int        `yaml:"protectedPrefixLength,omitempty"`
}

// ZoneSpec holds the explicit subnet blocks of one zone slot.
type ZoneSpec struct {
	Public    string `yaml:"public"`
	Protected string `yaml:"protected"`
}

// FlowLogDestination is one traffic-log sink.
type FlowLogDestination struct {
	Kind           string `yaml:"kind"`
	RetentionDays  int    `yaml:"retentionDays,omitempty"`
	TransitionDays int    `yaml:"transitionDays,omitempty"`
	ExpirationDays int    `yaml:"expirationDays,omitempty"`
}

// SecuritySpec describes the compute security group.
type SecuritySpec struct {
	Description string        `yaml:"description,omitempty"`
	Ingress     []IngressRule `yaml:"ingress,omitempty"`
}

// IngressRule admits traffic from exactly one of CIDR or PrefixList.
type IngressRule struct {
	CIDR        string `yaml:"cidr,omitempty"`
	PrefixList  string `yaml:"prefixList,omitempty"`
	Protocol    string `yaml:"protocol,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// ComputeSpec describes the handler.
type ComputeSpec struct {
	Name           string            `yaml:"name"`
	Handler        string            `yaml:"handler"`
	Runtime        string            `yaml:"runtime,omitempty"`
	MemoryMB       int               `yaml:"memoryMB,omitempty"`
	TimeoutSeconds int               `yaml:"timeoutSeconds,omitempty"`
	Code           CodeLocation      `yaml:"code"`
	Layers         []string          `yaml:"layers,omitempty"`
	Environment    map[string]string `yaml:"environment,omitempty"`
	Parameters     []string          `yaml:"parameters,omitempty"`
	Capabilities   []string          `yaml:"capabilities,omitempty"`
	KMSKeyArn      string            `yaml:"kmsKeyArn,omitempty"`
}

// CodeLocation points at the packaged handler archive.
type CodeLocation struct {
	Bucket  string `yaml:"bucket"`
	Key     string `yaml:"key"`
	Version string `yaml:"version,omitempty"`
}

// ApiSpec describes the HTTP front door.
type ApiSpec struct {
	Name             string            `yaml:"name,omitempty"`
	Stage            string            `yaml:"stage,omitempty"`
	Path             string            `yaml:"path,omitempty"`
	Authorizer       *AuthorizerSpec   `yaml:"authorizer,omitempty"`
	CORS             CORSSpec          `yaml:"cors,omitempty"`
	RequestTemplates map[string]string `yaml:"requestTemplates,omitempty"`
}

// AuthorizerSpec references an external identity pool.
type AuthorizerSpec struct {
	Name        string `yaml:"name,omitempty"`
	ProviderARN string `yaml:"providerArn"`
}

// CORSSpec is the preflight policy.
type CORSSpec struct {
	AllowOrigins []string `yaml:"allowOrigins,omitempty"`
	AllowMethods []string `yaml:"allowMethods,omitempty"`
	AllowHeaders []string `yaml:"allowHeaders,omitempty"`
}

var (
	namePattern   = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)
	regionPattern = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d$`)
)

// Validate checks the fields every stage relies on. Stage-specific checks are
// made by the stages themselves.
func (g *GlobalSpec) Validate() error {
	if !namePattern.MatchString(g.Project) {
		return topoerr.Configf("project %q must be lowercase alphanumerics and dashes", g.Project)
	}
	if !namePattern.MatchString(g.Environment) {
		return topoerr.Configf("environment %q must be lowercase alphanumerics and dashes", g.Environment)
	}
	if !regionPattern.MatchString(g.Region) {
		return topoerr.Configf("region %q is not a valid region name", g.Region)
	}
	return nil
}

// Naming returns the naming scheme for the spec.
func (g *GlobalSpec) Naming() Naming {
	return Naming{Project: g.Project, Environment: g.Environment}
}

// Digest is a stable fingerprint of the spec contents.
func (g *GlobalSpec) Digest() (string, error) {
	data, err := yaml.Marshal(g)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
