package awsapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigateway/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"

	"github.com/lex00/wetwire-topology-go/internal/backend"
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
)

// LogsAPI is the subset of CloudWatch Logs used for flow-log sinks.
type LogsAPI interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
}

// S3API is the subset of S3 used for flow-log buckets.
type S3API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketEncryption(ctx context.Context, params *s3.PutBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.PutBucketEncryptionOutput, error)
	PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error)
	PutBucketLifecycleConfiguration(ctx context.Context, params *s3.PutBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error)
	PutBucketTagging(ctx context.Context, params *s3.PutBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.PutBucketTaggingOutput, error)
}

// IAMAPI is the subset of IAM used for service roles.
type IAMAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

// LambdaAPI is the subset of Lambda used for the compute resource.
type LambdaAPI interface {
	CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	AddPermission(ctx context.Context, params *lambda.AddPermissionInput, optFns ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error)
}

// APIGatewayAPI is the subset of API Gateway used for the HTTP front.
type APIGatewayAPI interface {
	CreateRestApi(ctx context.Context, params *apigateway.CreateRestApiInput, optFns ...func(*apigateway.Options)) (*apigateway.CreateRestApiOutput, error)
	CreateAuthorizer(ctx context.Context, params *apigateway.CreateAuthorizerInput, optFns ...func(*apigateway.Options)) (*apigateway.CreateAuthorizerOutput, error)
	CreateResource(ctx context.Context, params *apigateway.CreateResourceInput, optFns ...func(*apigateway.Options)) (*apigateway.CreateResourceOutput, error)
	PutMethod(ctx context.Context, params *apigateway.PutMethodInput, optFns ...func(*apigateway.Options)) (*apigateway.PutMethodOutput, error)
	PutMethodResponse(ctx context.Context, params *apigateway.PutMethodResponseInput, optFns ...func(*apigateway.Options)) (*apigateway.PutMethodResponseOutput, error)
	PutIntegration(ctx context.Context, params *apigateway.PutIntegrationInput, optFns ...func(*apigateway.Options)) (*apigateway.PutIntegrationOutput, error)
	PutIntegrationResponse(ctx context.Context, params *apigateway.PutIntegrationResponseInput, optFns ...func(*apigateway.Options)) (*apigateway.PutIntegrationResponseOutput, error)
	CreateDeployment(ctx context.Context, params *apigateway.CreateDeploymentInput, optFns ...func(*apigateway.Options)) (*apigateway.CreateDeploymentOutput, error)
}

// STSAPI resolves the caller's account.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func (p *Provisioner) createLogGroup(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	name := str(d.Props, "LogGroupName")
	_, err := p.clients.Logs.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(name),
		Tags:         tagMap(d.Props),
	})
	if err != nil && !alreadyExists(err) {
		return backend.Record{}, fmt.Errorf("CreateLogGroup: %w", err)
	}

	if days := int32Ptr(d.Props, "RetentionInDays"); days != nil {
		if _, err := p.clients.Logs.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
			LogGroupName:    aws.String(name),
			RetentionInDays: days,
		}); err != nil {
			return backend.Record{}, fmt.Errorf("PutRetentionPolicy: %w", err)
		}
	}

	out, err := p.clients.Logs.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(name),
	})
	if err != nil {
		return backend.Record{}, fmt.Errorf("DescribeLogGroups: %w", err)
	}
	for _, g := range out.LogGroups {
		if aws.ToString(g.LogGroupName) == name {
			return backend.Record{PhysicalID: name, Attributes: map[string]string{"Arn": aws.ToString(g.Arn)}}, nil
		}
	}
	return backend.Record{}, fmt.Errorf("log group %s not found after create", name)
}

func (p *Provisioner) createBucket(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	env, err := p.Environment(ctx)
	if err != nil {
		return backend.Record{}, err
	}
	name := str(d.Props, "BucketName")

	in := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if p.region != "" && p.region != "us-east-1" {
		in.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(p.region),
		}
	}
	if _, err := p.clients.S3.CreateBucket(ctx, in); err != nil && !alreadyExists(err) {
		return backend.Record{}, fmt.Errorf("CreateBucket: %w", err)
	}

	if enc := object(d.Props, "BucketEncryption"); enc != nil {
		if _, err := p.clients.S3.PutBucketEncryption(ctx, &s3.PutBucketEncryptionInput{
			Bucket:                            aws.String(name),
			ServerSideEncryptionConfiguration: encryption(enc),
		}); err != nil {
			return backend.Record{}, fmt.Errorf("PutBucketEncryption: %w", err)
		}
	}

	if pab := object(d.Props, "PublicAccessBlockConfiguration"); pab != nil {
		if _, err := p.clients.S3.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
			Bucket: aws.String(name),
			PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
				BlockPublicAcls:       aws.Bool(boolVal(pab, "BlockPublicAcls")),
				BlockPublicPolicy:     aws.Bool(boolVal(pab, "BlockPublicPolicy")),
				IgnorePublicAcls:      aws.Bool(boolVal(pab, "IgnorePublicAcls")),
				RestrictPublicBuckets: aws.Bool(boolVal(pab, "RestrictPublicBuckets")),
			},
		}); err != nil {
			return backend.Record{}, fmt.Errorf("PutPublicAccessBlock: %w", err)
		}
	}

	if lc := object(d.Props, "LifecycleConfiguration"); lc != nil {
		if _, err := p.clients.S3.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
			Bucket:                 aws.String(name),
			LifecycleConfiguration: lifecycle(lc),
		}); err != nil {
			return backend.Record{}, fmt.Errorf("PutBucketLifecycleConfiguration: %w", err)
		}
	}

	if ts := tags(d.Props); len(ts) > 0 {
		set := make([]s3types.Tag, len(ts))
		for i, t := range ts {
			set[i] = s3types.Tag{Key: aws.String(t.key), Value: aws.String(t.value)}
		}
		if _, err := p.clients.S3.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
			Bucket:  aws.String(name),
			Tagging: &s3types.Tagging{TagSet: set},
		}); err != nil {
			return backend.Record{}, fmt.Errorf("PutBucketTagging: %w", err)
		}
	}

	return backend.Record{PhysicalID: name, Attributes: map[string]string{
		"Arn": fmt.Sprintf("arn:%s:s3:::%s", env.Partition, name),
	}}, nil
}

func encryption(enc map[string]any) *s3types.ServerSideEncryptionConfiguration {
	cfg := &s3types.ServerSideEncryptionConfiguration{}
	for _, r := range list(enc, "ServerSideEncryptionConfiguration") {
		rule, _ := r.(map[string]any)
		def := object(rule, "ServerSideEncryptionByDefault")
		cfg.Rules = append(cfg.Rules, s3types.ServerSideEncryptionRule{
			ApplyServerSideEncryptionByDefault: &s3types.ServerSideEncryptionByDefault{
				SSEAlgorithm: s3types.ServerSideEncryption(str(def, "SSEAlgorithm")),
			},
		})
	}
	return cfg
}

func lifecycle(lc map[string]any) *s3types.BucketLifecycleConfiguration {
	cfg := &s3types.BucketLifecycleConfiguration{}
	for _, r := range list(lc, "Rules") {
		m, _ := r.(map[string]any)
		rule := s3types.LifecycleRule{
			ID:     strPtr(m, "Id"),
			Status: s3types.ExpirationStatus(str(m, "Status")),
			Filter: &s3types.LifecycleRuleFilter{Prefix: aws.String("")},
		}
		for _, t := range list(m, "Transitions") {
			tm, _ := t.(map[string]any)
			rule.Transitions = append(rule.Transitions, s3types.Transition{
				Days:         int32Ptr(tm, "TransitionInDays"),
				StorageClass: s3types.TransitionStorageClass(str(tm, "StorageClass")),
			})
		}
		if days := int32Ptr(m, "ExpirationInDays"); days != nil {
			rule.Expiration = &s3types.LifecycleExpiration{Days: days}
		}
		cfg.Rules = append(cfg.Rules, rule)
	}
	return cfg
}

func (p *Provisioner) createRole(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	name := str(d.Props, "RoleName")
	trust, err := jsonDoc(d.Props["AssumeRolePolicyDocument"])
	if err != nil {
		return backend.Record{}, err
	}

	var roleTags []iamtypes.Tag
	for _, t := range tags(d.Props) {
		roleTags = append(roleTags, iamtypes.Tag{Key: aws.String(t.key), Value: aws.String(t.value)})
	}

	var arn string
	out, err := p.clients.IAM.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trust),
		Tags:                     roleTags,
	})
	switch {
	case err == nil:
		arn = aws.ToString(out.Role.Arn)
	case alreadyExists(err):
		got, gerr := p.clients.IAM.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
		if gerr != nil {
			return backend.Record{}, fmt.Errorf("GetRole: %w", gerr)
		}
		arn = aws.ToString(got.Role.Arn)
	default:
		return backend.Record{}, fmt.Errorf("CreateRole: %w", err)
	}

	for _, pol := range list(d.Props, "Policies") {
		m, _ := pol.(map[string]any)
		doc, err := jsonDoc(m["PolicyDocument"])
		if err != nil {
			return backend.Record{}, err
		}
		if _, err := p.clients.IAM.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
			RoleName:       aws.String(name),
			PolicyName:     strPtr(m, "PolicyName"),
			PolicyDocument: aws.String(doc),
		}); err != nil {
			return backend.Record{}, fmt.Errorf("PutRolePolicy: %w", err)
		}
	}
	return backend.Record{PhysicalID: name, Attributes: map[string]string{"Arn": arn}}, nil
}

// roleAttempts bounds retries while a new execution role propagates.
const roleAttempts = 5

func (p *Provisioner) createFunction(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	name := str(d.Props, "FunctionName")
	in := &lambda.CreateFunctionInput{
		FunctionName: aws.String(name),
		Handler:      strPtr(d.Props, "Handler"),
		Runtime:      lambdatypes.Runtime(str(d.Props, "Runtime")),
		Role:         strPtr(d.Props, "Role"),
		MemorySize:   int32Ptr(d.Props, "MemorySize"),
		Timeout:      int32Ptr(d.Props, "Timeout"),
		KMSKeyArn:    strPtr(d.Props, "KmsKeyArn"),
		Layers:       stringList(d.Props, "Layers"),
		Tags:         tagMap(d.Props),
	}
	if code := object(d.Props, "Code"); code != nil {
		in.Code = &lambdatypes.FunctionCode{
			S3Bucket:        strPtr(code, "S3Bucket"),
			S3Key:           strPtr(code, "S3Key"),
			S3ObjectVersion: strPtr(code, "S3ObjectVersion"),
		}
	}
	if env := object(d.Props, "Environment"); env != nil {
		in.Environment = &lambdatypes.Environment{Variables: stringMap(object(env, "Variables"))}
	}
	if vpc := object(d.Props, "VpcConfig"); vpc != nil {
		in.VpcConfig = &lambdatypes.VpcConfig{
			SubnetIds:        stringList(vpc, "SubnetIds"),
			SecurityGroupIds: stringList(vpc, "SecurityGroupIds"),
		}
	}

	arn, err := p.createFunctionWithRetry(ctx, in)
	if err != nil {
		return backend.Record{}, err
	}

	waiter := lambda.NewFunctionActiveV2Waiter(p.clients.Lambda)
	if err := waiter.Wait(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)}, p.waitTimeout); err != nil {
		return backend.Record{}, fmt.Errorf("waiting for function %s: %w", name, err)
	}
	return backend.Record{PhysicalID: name, Attributes: map[string]string{"Arn": arn}}, nil
}

func (p *Provisioner) createFunctionWithRetry(ctx context.Context, in *lambda.CreateFunctionInput) (string, error) {
	for attempt := 1; ; attempt++ {
		out, err := p.clients.Lambda.CreateFunction(ctx, in)
		if err == nil {
			return aws.ToString(out.FunctionArn), nil
		}
		if alreadyExists(err) {
			got, gerr := p.clients.Lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: in.FunctionName})
			if gerr != nil {
				return "", fmt.Errorf("GetFunction: %w", gerr)
			}
			return aws.ToString(got.Configuration.FunctionArn), nil
		}
		if !rolePropagating(err) || attempt == roleAttempts {
			return "", fmt.Errorf("CreateFunction: %w", err)
		}

		p.logger.Debug("execution role not assumable yet, retrying",
			zap.String("function", aws.ToString(in.FunctionName)),
			zap.Int("attempt", attempt),
		)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * p.retryDelay):
		}
	}
}

func rolePropagating(err error) bool {
	return errorCode(err) == "InvalidParameterValueException" && strings.Contains(err.Error(), "cannot be assumed")
}

func (p *Provisioner) addPermission(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	_, err := p.clients.Lambda.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: strPtr(d.Props, "FunctionName"),
		StatementId:  aws.String(d.ID),
		Action:       strPtr(d.Props, "Action"),
		Principal:    strPtr(d.Props, "Principal"),
		SourceArn:    strPtr(d.Props, "SourceArn"),
	})
	if err != nil && !alreadyExists(err) {
		return backend.Record{}, fmt.Errorf("AddPermission: %w", err)
	}
	return backend.Record{PhysicalID: d.ID}, nil
}

func (p *Provisioner) createRestApi(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	in := &apigateway.CreateRestApiInput{
		Name: strPtr(d.Props, "Name"),
		Tags: tagMap(d.Props),
	}
	if ec := object(d.Props, "EndpointConfiguration"); ec != nil {
		cfg := &apigwtypes.EndpointConfiguration{}
		for _, t := range stringList(ec, "Types") {
			cfg.Types = append(cfg.Types, apigwtypes.EndpointType(t))
		}
		in.EndpointConfiguration = cfg
	}
	out, err := p.clients.APIGateway.CreateRestApi(ctx, in)
	if err != nil {
		return backend.Record{}, fmt.Errorf("CreateRestApi: %w", err)
	}
	return backend.Record{PhysicalID: aws.ToString(out.Id), Attributes: map[string]string{
		"RootResourceId": aws.ToString(out.RootResourceId),
	}}, nil
}

func (p *Provisioner) createAuthorizer(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	out, err := p.clients.APIGateway.CreateAuthorizer(ctx, &apigateway.CreateAuthorizerInput{
		RestApiId:      strPtr(d.Props, "RestApiId"),
		Name:           strPtr(d.Props, "Name"),
		Type:           apigwtypes.AuthorizerType(str(d.Props, "Type")),
		ProviderARNs:   stringList(d.Props, "ProviderARNs"),
		IdentitySource: strPtr(d.Props, "IdentitySource"),
	})
	if err != nil {
		return backend.Record{}, fmt.Errorf("CreateAuthorizer: %w", err)
	}
	return backend.Record{PhysicalID: aws.ToString(out.Id)}, nil
}

func (p *Provisioner) createResource(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	out, err := p.clients.APIGateway.CreateResource(ctx, &apigateway.CreateResourceInput{
		RestApiId: strPtr(d.Props, "RestApiId"),
		ParentId:  strPtr(d.Props, "ParentId"),
		PathPart:  strPtr(d.Props, "PathPart"),
	})
	if err != nil {
		return backend.Record{}, fmt.Errorf("CreateResource: %w", err)
	}
	return backend.Record{PhysicalID: aws.ToString(out.Id)}, nil
}

// putMethod issues the method, its integration and their responses. The
// integration response needs the method response to exist first.
func (p *Provisioner) putMethod(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	api, resource, verb := str(d.Props, "RestApiId"), str(d.Props, "ResourceId"), str(d.Props, "HttpMethod")
	a, r, v := aws.String(api), aws.String(resource), aws.String(verb)

	if _, err := p.clients.APIGateway.PutMethod(ctx, &apigateway.PutMethodInput{
		RestApiId:         a,
		ResourceId:        r,
		HttpMethod:        v,
		AuthorizationType: strPtr(d.Props, "AuthorizationType"),
		AuthorizerId:      strPtr(d.Props, "AuthorizerId"),
	}); err != nil && !alreadyExists(err) {
		return backend.Record{}, fmt.Errorf("PutMethod: %w", err)
	}

	for _, mr := range list(d.Props, "MethodResponses") {
		m, _ := mr.(map[string]any)
		if _, err := p.clients.APIGateway.PutMethodResponse(ctx, &apigateway.PutMethodResponseInput{
			RestApiId:          a,
			ResourceId:         r,
			HttpMethod:         v,
			StatusCode:         strPtr(m, "StatusCode"),
			ResponseParameters: boolMap(object(m, "ResponseParameters")),
		}); err != nil && !alreadyExists(err) {
			return backend.Record{}, fmt.Errorf("PutMethodResponse: %w", err)
		}
	}

	if integ := object(d.Props, "Integration"); integ != nil {
		if _, err := p.clients.APIGateway.PutIntegration(ctx, &apigateway.PutIntegrationInput{
			RestApiId:             a,
			ResourceId:            r,
			HttpMethod:            v,
			Type:                  apigwtypes.IntegrationType(str(integ, "Type")),
			IntegrationHttpMethod: strPtr(integ, "IntegrationHttpMethod"),
			Uri:                   strPtr(integ, "Uri"),
			RequestTemplates:      stringMap(object(integ, "RequestTemplates")),
		}); err != nil {
			return backend.Record{}, fmt.Errorf("PutIntegration: %w", err)
		}

		for _, ir := range list(integ, "IntegrationResponses") {
			m, _ := ir.(map[string]any)
			if _, err := p.clients.APIGateway.PutIntegrationResponse(ctx, &apigateway.PutIntegrationResponseInput{
				RestApiId:          a,
				ResourceId:         r,
				HttpMethod:         v,
				StatusCode:         strPtr(m, "StatusCode"),
				ResponseParameters: stringMap(object(m, "ResponseParameters")),
				ResponseTemplates:  stringMap(object(m, "ResponseTemplates")),
			}); err != nil {
				return backend.Record{}, fmt.Errorf("PutIntegrationResponse: %w", err)
			}
		}
	}
	return backend.Record{PhysicalID: api + "/" + resource + "/" + verb}, nil
}

func (p *Provisioner) createDeployment(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	out, err := p.clients.APIGateway.CreateDeployment(ctx, &apigateway.CreateDeploymentInput{
		RestApiId: strPtr(d.Props, "RestApiId"),
		StageName: strPtr(d.Props, "StageName"),
	})
	if err != nil {
		return backend.Record{}, fmt.Errorf("CreateDeployment: %w", err)
	}
	return backend.Record{PhysicalID: aws.ToString(out.Id)}, nil
}
