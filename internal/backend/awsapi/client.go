// Package awsapi provisions descriptors against live AWS accounts through
// aws-sdk-go-v2.
//
// Each service is reached through a narrow interface so tests can substitute
// mocks. Calls to one service share a circuit breaker: once a service keeps
// failing, the remaining descriptors of that service fail fast instead of
// queuing behind SDK retries.
package awsapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/lex00/wetwire-topology-go/internal/backend"
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
)

// Defaults for waiters and breakers.
const (
	DefaultWaitTimeout     = 10 * time.Minute
	DefaultRetryMaxAttempt = 5
	breakerTrip            = 5
)

var tokenNamespace = uuid.MustParse("6f3a0c52-5d0e-4b8e-9a55-0b7f2f4c1d20")

// Clients bundles the service APIs the Provisioner talks to.
type Clients struct {
	EC2        EC2API
	Logs       LogsAPI
	S3         S3API
	IAM        IAMAPI
	Lambda     LambdaAPI
	APIGateway APIGatewayAPI
	STS        STSAPI
}

// Provisioner implements backend.Provisioner against AWS.
type Provisioner struct {
	clients     Clients
	region      string
	seed        string
	waitTimeout time.Duration
	retryDelay  time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	env      *backend.Environment
	breakers map[string]*gobreaker.CircuitBreaker
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provisioner) { p.logger = l }
}

// WithTokenSeed sets the seed for idempotency tokens. Two applies with the same
// seed send the same client token for the same logical id.
func WithTokenSeed(seed string) Option {
	return func(p *Provisioner) { p.seed = seed }
}

// WithWaitTimeout bounds how long a waiter polls for a resource to become
// available.
func WithWaitTimeout(d time.Duration) Option {
	return func(p *Provisioner) { p.waitTimeout = d }
}

// WithRetryDelay sets the base delay between attempts when a freshly created
// role is not yet assumable.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Provisioner) { p.retryDelay = d }
}

// New returns a Provisioner over the given clients.
func New(c Clients, region string, opts ...Option) *Provisioner {
	p := &Provisioner{
		clients:     c,
		region:      region,
		waitTimeout: DefaultWaitTimeout,
		retryDelay:  2 * time.Second,
		logger:      zap.NewNop(),
		breakers:    make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LoadConfig loads an AWS config with optional profile and region overrides.
// Throttled calls back off adaptively.
func LoadConfig(ctx context.Context, profile, region string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRetryMode(aws.RetryModeAdaptive),
		config.WithRetryMaxAttempts(DefaultRetryMaxAttempt),
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// NewFromConfig builds a Provisioner with SDK clients for cfg.
func NewFromConfig(cfg aws.Config, opts ...Option) *Provisioner {
	return New(Clients{
		EC2:        ec2.NewFromConfig(cfg),
		Logs:       cloudwatchlogs.NewFromConfig(cfg),
		S3:         s3.NewFromConfig(cfg),
		IAM:        iam.NewFromConfig(cfg),
		Lambda:     lambda.NewFromConfig(cfg),
		APIGateway: apigateway.NewFromConfig(cfg),
		STS:        sts.NewFromConfig(cfg),
	}, cfg.Region, opts...)
}

// NewPreflightFromConfig builds a Preflight with SDK clients for cfg.
func NewPreflightFromConfig(cfg aws.Config) *Preflight {
	return NewPreflight(ssm.NewFromConfig(cfg), kms.NewFromConfig(cfg))
}

// Environment implements backend.Provisioner. The caller identity is looked up
// once and cached.
func (p *Provisioner) Environment(ctx context.Context) (backend.Environment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.env != nil {
		return *p.env, nil
	}

	out, err := p.clients.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return backend.Environment{}, fmt.Errorf("GetCallerIdentity: %w", err)
	}

	partition := "aws"
	if parts := strings.SplitN(aws.ToString(out.Arn), ":", 3); len(parts) == 3 && parts[1] != "" {
		partition = parts[1]
	}
	env := backend.Environment{
		AccountID: aws.ToString(out.Account),
		Partition: partition,
		Region:    p.region,
		URLSuffix: urlSuffix(partition),
	}
	p.env = &env
	return env, nil
}

func urlSuffix(partition string) string {
	if partition == "aws-cn" {
		return "amazonaws.com.cn"
	}
	return "amazonaws.com"
}

// Provision implements backend.Provisioner.
func (p *Provisioner) Provision(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	create, ok := p.handlers()[d.Kind]
	if !ok {
		return backend.Record{}, fmt.Errorf("no provisioner for kind %s", d.Kind)
	}

	out, err := p.breaker(d.Kind.Service()).Execute(func() (interface{}, error) {
		return create(ctx, d)
	})
	if err != nil {
		return backend.Record{}, err
	}
	return out.(backend.Record), nil
}

type handler func(ctx context.Context, d descriptor.Descriptor) (backend.Record, error)

func (p *Provisioner) handlers() map[descriptor.Kind]handler {
	return map[descriptor.Kind]handler{
		descriptor.KindVPC:                         p.createVPC,
		descriptor.KindInternetGateway:             p.createInternetGateway,
		descriptor.KindVPCGatewayAttachment:        p.attachInternetGateway,
		descriptor.KindSubnet:                      p.createSubnet,
		descriptor.KindEIP:                         p.allocateAddress,
		descriptor.KindNatGateway:                  p.createNatGateway,
		descriptor.KindRouteTable:                  p.createRouteTable,
		descriptor.KindRoute:                       p.createRoute,
		descriptor.KindSubnetRouteTableAssociation: p.associateRouteTable,
		descriptor.KindSecurityGroup:               p.createSecurityGroup,
		descriptor.KindFlowLog:                     p.createFlowLog,
		descriptor.KindLogGroup:                    p.createLogGroup,
		descriptor.KindBucket:                      p.createBucket,
		descriptor.KindRole:                        p.createRole,
		descriptor.KindFunction:                    p.createFunction,
		descriptor.KindPermission:                  p.addPermission,
		descriptor.KindRestApi:                     p.createRestApi,
		descriptor.KindAuthorizer:                  p.createAuthorizer,
		descriptor.KindApiResource:                 p.createResource,
		descriptor.KindMethod:                      p.putMethod,
		descriptor.KindDeployment:                  p.createDeployment,
	}
}

func (p *Provisioner) breaker(service string) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cb, ok := p.breakers[service]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("circuit breaker state changed",
				zap.String("service", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	p.breakers[service] = cb
	return cb
}

// clientToken derives a stable idempotency token for a logical id.
func (p *Provisioner) clientToken(id string) *string {
	return aws.String(uuid.NewSHA1(tokenNamespace, []byte(p.seed+"/"+id)).String())
}

var duplicateCodes = map[string]bool{
	"EntityAlreadyExists":            true,
	"ResourceAlreadyExistsException": true,
	"BucketAlreadyOwnedByYou":        true,
	"ResourceConflictException":      true,
	"InvalidPermission.Duplicate":    true,
	"ConflictException":              true,
	"Resource.AlreadyAssociated":     true,
	"RouteAlreadyExists":             true,
	"InvalidGroup.Duplicate":         true,
	"FlowLogAlreadyExists":           true,
}

// alreadyExists reports whether err is the service saying the resource exists.
func alreadyExists(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return duplicateCodes[apiErr.ErrorCode()]
	}
	return false
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
