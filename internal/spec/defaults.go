package spec

// CORS defaults match the usual browser preflight policy: any origin, every
// method, and the standard request headers.
var (
	AllOrigins     = []string{"*"}
	AllMethods     = []string{"OPTIONS", "GET", "PUT", "POST", "DELETE", "PATCH", "HEAD"}
	DefaultHeaders = []string{"Content-Type", "X-Amz-Date", "Authorization", "X-Api-Key", "X-Amz-Security-Token", "X-Amz-User-Agent"}
)

// Default values applied when a field is left empty.
const (
	DefaultZoneCount      = 2
	DefaultRuntime        = "python3.9"
	DefaultMemoryMB       = 256
	DefaultTimeoutSeconds = 30
	DefaultStage          = "dev"
	DefaultPath           = "data"
	DefaultRetentionDays  = 90
	DefaultTransitionDays = 365
	DefaultExpirationDays = 1825
	DefaultIngressPort    = 443
	DefaultIngressProto   = "tcp"
	DefaultSGDescription  = "Security group for Lambda functions"
)

// ApplyDefaults fills empty optional fields in place.
func (g *GlobalSpec) ApplyDefaults() {
	if g.Network.ZoneCount == 0 {
		if len(g.Network.Zones) > 0 {
			g.Network.ZoneCount = len(g.Network.Zones)
		} else {
			g.Network.ZoneCount = DefaultZoneCount
		}
	}

	for i := range g.FlowLogs {
		d := &g.FlowLogs[i]
		switch d.Kind {
		case "log-group":
			if d.RetentionDays == 0 {
				d.RetentionDays = DefaultRetentionDays
			}
		case "object-store":
			if d.TransitionDays == 0 {
				d.TransitionDays = DefaultTransitionDays
			}
			if d.ExpirationDays == 0 {
				d.ExpirationDays = DefaultExpirationDays
			}
		}
	}

	if g.Security.Description == "" {
		g.Security.Description = DefaultSGDescription
	}
	for i := range g.Security.Ingress {
		r := &g.Security.Ingress[i]
		if r.Protocol == "" {
			r.Protocol = DefaultIngressProto
		}
		if r.Port == 0 && (r.Protocol == "tcp" || r.Protocol == "udp") {
			r.Port = DefaultIngressPort
		}
	}

	c := &g.Compute
	if c.Runtime == "" {
		c.Runtime = DefaultRuntime
	}
	if c.MemoryMB == 0 {
		c.MemoryMB = DefaultMemoryMB
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}

	a := &g.Api
	if a.Name == "" {
		a.Name = g.Naming().Name("api")
	}
	if a.Stage == "" {
		a.Stage = DefaultStage
	}
	if a.Path == "" {
		a.Path = DefaultPath
	}
	if len(a.CORS.AllowOrigins) == 0 {
		a.CORS.AllowOrigins = append([]string(nil), AllOrigins...)
	}
	if len(a.CORS.AllowMethods) == 0 {
		a.CORS.AllowMethods = append([]string(nil), AllMethods...)
	}
	if len(a.CORS.AllowHeaders) == 0 {
		a.CORS.AllowHeaders = append([]string(nil), DefaultHeaders...)
	}
	if len(a.RequestTemplates) == 0 {
		a.RequestTemplates = map[string]string{"application/json": `{ "statusCode": "200" }`}
	}
	if a.Authorizer != nil && a.Authorizer.Name == "" {
		a.Authorizer.Name = g.Naming().Name("authorizer")
	}
}

// Default returns the reference deployment: a two-zone 172.16.0.0/16 network
// with both flow-log sinks, HTTPS ingress from inside the network, a VPC-bound
// handler reading its connection settings from parameters, and a GET endpoint.
func Default() *GlobalSpec {
	g := &GlobalSpec{
		Project:     "c-elect-meg-cloud",
		Environment: "poc",
		Region:      "ap-northeast-1",
		Network: NetworkSpec{
			CIDR:      "172.16.0.0/16",
			ZoneCount: 2,
			Zones: []ZoneSpec{
				{Public: "172.16.0.0/24", Protected: "172.16.2.0/24"},
				{Public: "172.16.1.0/24", Protected: "172.16.3.0/24"},
			},
		},
		FlowLogs: []FlowLogDestination{
			{Kind: "log-group", RetentionDays: 90},
			{Kind: "object-store", TransitionDays: 365, ExpirationDays: 1825},
		},
		Security: SecuritySpec{
			Ingress: []IngressRule{
				{CIDR: "172.16.0.0/16", Protocol: "tcp", Port: 443, Description: "HTTPS from inside the network"},
			},
		},
		Compute: ComputeSpec{
			Name:    "snowflake-connect",
			Handler: "lambda_function.lambda_handler",
			Code: CodeLocation{
				Bucket: "wireless-sensing-poc-lambda-archive-ap-northeast-1",
				Key:    "lambda_for_snowflake_connect/lambda_function.zip",
			},
			Environment: map[string]string{
				"SNOWFLAKE_ACCOUNT":  "/snowflake/account",
				"SNOWFLAKE_DATABASE": "/snowflake/database",
				"SNOWFLAKE_PASSWORD": "/snowflake/password",
				"SNOWFLAKE_SCHEMA":   "/snowflake/schema",
				"SNOWFLAKE_USER":     "/snowflake/user",
			},
			Parameters: []string{
				"/snowflake/account",
				"/snowflake/database",
				"/snowflake/password",
				"/snowflake/schema",
				"/snowflake/user",
			},
			Capabilities: []string{"read-parameters", "decrypt", "write-logs"},
		},
		Api: ApiSpec{
			Name:  "myRestApi",
			Stage: "dev",
			Path:  "data",
		},
	}
	g.ApplyDefaults()
	return g
}
