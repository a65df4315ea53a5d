package awsapi

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/lex00/wetwire-topology-go/internal/backend"
	"github.com/lex00/wetwire-topology-go/internal/descriptor"
)

// EC2API is the subset of the EC2 client used for networking descriptors.
type EC2API interface {
	CreateVpc(ctx context.Context, params *ec2.CreateVpcInput, optFns ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error)
	ModifyVpcAttribute(ctx context.Context, params *ec2.ModifyVpcAttributeInput, optFns ...func(*ec2.Options)) (*ec2.ModifyVpcAttributeOutput, error)
	CreateInternetGateway(ctx context.Context, params *ec2.CreateInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.CreateInternetGatewayOutput, error)
	AttachInternetGateway(ctx context.Context, params *ec2.AttachInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.AttachInternetGatewayOutput, error)
	CreateSubnet(ctx context.Context, params *ec2.CreateSubnetInput, optFns ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error)
	ModifySubnetAttribute(ctx context.Context, params *ec2.ModifySubnetAttributeInput, optFns ...func(*ec2.Options)) (*ec2.ModifySubnetAttributeOutput, error)
	AllocateAddress(ctx context.Context, params *ec2.AllocateAddressInput, optFns ...func(*ec2.Options)) (*ec2.AllocateAddressOutput, error)
	CreateNatGateway(ctx context.Context, params *ec2.CreateNatGatewayInput, optFns ...func(*ec2.Options)) (*ec2.CreateNatGatewayOutput, error)
	DescribeNatGateways(ctx context.Context, params *ec2.DescribeNatGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error)
	CreateRouteTable(ctx context.Context, params *ec2.CreateRouteTableInput, optFns ...func(*ec2.Options)) (*ec2.CreateRouteTableOutput, error)
	CreateRoute(ctx context.Context, params *ec2.CreateRouteInput, optFns ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error)
	AssociateRouteTable(ctx context.Context, params *ec2.AssociateRouteTableInput, optFns ...func(*ec2.Options)) (*ec2.AssociateRouteTableOutput, error)
	CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	AuthorizeSecurityGroupEgress(ctx context.Context, params *ec2.AuthorizeSecurityGroupEgressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupEgressOutput, error)
	CreateFlowLogs(ctx context.Context, params *ec2.CreateFlowLogsInput, optFns ...func(*ec2.Options)) (*ec2.CreateFlowLogsOutput, error)
}

func tagSpec(rt types.ResourceType, p map[string]any) []types.TagSpecification {
	ts := tags(p)
	if len(ts) == 0 {
		return nil
	}
	out := make([]types.Tag, len(ts))
	for i, t := range ts {
		out[i] = types.Tag{Key: aws.String(t.key), Value: aws.String(t.value)}
	}
	return []types.TagSpecification{{ResourceType: rt, Tags: out}}
}

func (p *Provisioner) createVPC(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	out, err := p.clients.EC2.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         strPtr(d.Props, "CidrBlock"),
		TagSpecifications: tagSpec(types.ResourceTypeVpc, d.Props),
	})
	if err != nil {
		return backend.Record{}, fmt.Errorf("CreateVpc: %w", err)
	}
	id := aws.ToString(out.Vpc.VpcId)

	if boolVal(d.Props, "EnableDnsSupport") {
		if _, err := p.clients.EC2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
			VpcId:            aws.String(id),
			EnableDnsSupport: &types.AttributeBooleanValue{Value: aws.Bool(true)},
		}); err != nil {
			return backend.Record{}, fmt.Errorf("ModifyVpcAttribute: %w", err)
		}
	}
	if boolVal(d.Props, "EnableDnsHostnames") {
		if _, err := p.clients.EC2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
			VpcId:              aws.String(id),
			EnableDnsHostnames: &types.AttributeBooleanValue{Value: aws.Bool(true)},
		}); err != nil {
			return backend.Record{}, fmt.Errorf("ModifyVpcAttribute: %w", err)
		}
	}
	return backend.Record{PhysicalID: id, Attributes: map[string]string{"CidrBlock": str(d.Props, "CidrBlock")}}, nil
}

func (p *Provisioner) createInternetGateway(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	out, err := p.clients.EC2.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
		TagSpecifications: tagSpec(types.ResourceTypeInternetGateway, d.Props),
	})
	if err != nil {
		return backend.Record{}, fmt.Errorf("CreateInternetGateway: %w", err)
	}
	return backend.Record{PhysicalID: aws.ToString(out.InternetGateway.InternetGatewayId)}, nil
}

func (p *Provisioner) attachInternetGateway(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	igw, vpc := str(d.Props, "InternetGatewayId"), str(d.Props, "VpcId")
	_, err := p.clients.EC2.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(igw),
		VpcId:             aws.String(vpc),
	})
	if err != nil && !alreadyExists(err) {
		return backend.Record{}, fmt.Errorf("AttachInternetGateway: %w", err)
	}
	return backend.Record{PhysicalID: igw + "|" + vpc}, nil
}

func (p *Provisioner) createSubnet(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	out, err := p.clients.EC2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:             strPtr(d.Props, "VpcId"),
		CidrBlock:         strPtr(d.Props, "CidrBlock"),
		AvailabilityZone:  strPtr(d.Props, "AvailabilityZone"),
		TagSpecifications: tagSpec(types.ResourceTypeSubnet, d.Props),
	})
	if err != nil {
		return backend.Record{}, fmt.Errorf("CreateSubnet: %w", err)
	}
	id := aws.ToString(out.Subnet.SubnetId)

	if boolVal(d.Props, "MapPublicIpOnLaunch") {
		if _, err := p.clients.EC2.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            aws.String(id),
			MapPublicIpOnLaunch: &types.AttributeBooleanValue{Value: aws.Bool(true)},
		}); err != nil {
			return backend.Record{}, fmt.Errorf("ModifySubnetAttribute: %w", err)
		}
	}
	return backend.Record{PhysicalID: id, Attributes: map[string]string{
		"AvailabilityZone": aws.ToString(out.Subnet.AvailabilityZone),
	}}, nil
}

func (p *Provisioner) allocateAddress(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	out, err := p.clients.EC2.AllocateAddress(ctx, &ec2.AllocateAddressInput{
		Domain:            types.DomainTypeVpc,
		TagSpecifications: tagSpec(types.ResourceTypeElasticIp, d.Props),
	})
	if err != nil {
		return backend.Record{}, fmt.Errorf("AllocateAddress: %w", err)
	}
	id := aws.ToString(out.AllocationId)
	return backend.Record{PhysicalID: id, Attributes: map[string]string{
		"AllocationId": id,
		"PublicIp":     aws.ToString(out.PublicIp),
	}}, nil
}

func (p *Provisioner) createNatGateway(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	out, err := p.clients.EC2.CreateNatGateway(ctx, &ec2.CreateNatGatewayInput{
		SubnetId:          strPtr(d.Props, "SubnetId"),
		AllocationId:      strPtr(d.Props, "AllocationId"),
		ClientToken:       p.clientToken(d.ID),
		TagSpecifications: tagSpec(types.ResourceTypeNatgateway, d.Props),
	})
	if err != nil {
		return backend.Record{}, fmt.Errorf("CreateNatGateway: %w", err)
	}
	id := aws.ToString(out.NatGateway.NatGatewayId)

	waiter := ec2.NewNatGatewayAvailableWaiter(p.clients.EC2)
	if err := waiter.Wait(ctx, &ec2.DescribeNatGatewaysInput{NatGatewayIds: []string{id}}, p.waitTimeout); err != nil {
		return backend.Record{}, fmt.Errorf("waiting for NAT gateway %s: %w", id, err)
	}
	return backend.Record{PhysicalID: id}, nil
}

func (p *Provisioner) createRouteTable(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	out, err := p.clients.EC2.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId:             strPtr(d.Props, "VpcId"),
		TagSpecifications: tagSpec(types.ResourceTypeRouteTable, d.Props),
	})
	if err != nil {
		return backend.Record{}, fmt.Errorf("CreateRouteTable: %w", err)
	}
	return backend.Record{PhysicalID: aws.ToString(out.RouteTable.RouteTableId)}, nil
}

func (p *Provisioner) createRoute(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	table, dest := str(d.Props, "RouteTableId"), str(d.Props, "DestinationCidrBlock")
	_, err := p.clients.EC2.CreateRoute(ctx, &ec2.CreateRouteInput{
		RouteTableId:         aws.String(table),
		DestinationCidrBlock: aws.String(dest),
		GatewayId:            strPtr(d.Props, "GatewayId"),
		NatGatewayId:         strPtr(d.Props, "NatGatewayId"),
	})
	if err != nil && !alreadyExists(err) {
		return backend.Record{}, fmt.Errorf("CreateRoute: %w", err)
	}
	return backend.Record{PhysicalID: table + "|" + dest}, nil
}

func (p *Provisioner) associateRouteTable(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	out, err := p.clients.EC2.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: strPtr(d.Props, "RouteTableId"),
		SubnetId:     strPtr(d.Props, "SubnetId"),
	})
	if err != nil {
		return backend.Record{}, fmt.Errorf("AssociateRouteTable: %w", err)
	}
	return backend.Record{PhysicalID: aws.ToString(out.AssociationId)}, nil
}

func (p *Provisioner) createSecurityGroup(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	out, err := p.clients.EC2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         strPtr(d.Props, "GroupName"),
		Description:       strPtr(d.Props, "GroupDescription"),
		VpcId:             strPtr(d.Props, "VpcId"),
		TagSpecifications: tagSpec(types.ResourceTypeSecurityGroup, d.Props),
	})
	if err != nil {
		return backend.Record{}, fmt.Errorf("CreateSecurityGroup: %w", err)
	}
	id := aws.ToString(out.GroupId)

	if perms := permissions(list(d.Props, "SecurityGroupIngress")); len(perms) > 0 {
		_, err := p.clients.EC2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(id),
			IpPermissions: perms,
		})
		if err != nil && !alreadyExists(err) {
			return backend.Record{}, fmt.Errorf("AuthorizeSecurityGroupIngress: %w", err)
		}
	}
	// A new group already allows all egress; re-authorizing it reports a duplicate.
	if perms := permissions(list(d.Props, "SecurityGroupEgress")); len(perms) > 0 {
		_, err := p.clients.EC2.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       aws.String(id),
			IpPermissions: perms,
		})
		if err != nil && !alreadyExists(err) {
			return backend.Record{}, fmt.Errorf("AuthorizeSecurityGroupEgress: %w", err)
		}
	}
	return backend.Record{PhysicalID: id, Attributes: map[string]string{"GroupId": id}}, nil
}

func permissions(rules []any) []types.IpPermission {
	var out []types.IpPermission
	for _, r := range rules {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		perm := types.IpPermission{
			IpProtocol: strPtr(m, "IpProtocol"),
			FromPort:   int32Ptr(m, "FromPort"),
			ToPort:     int32Ptr(m, "ToPort"),
		}
		if pl := str(m, "SourcePrefixListId"); pl != "" {
			perm.PrefixListIds = []types.PrefixListId{{PrefixListId: aws.String(pl), Description: strPtr(m, "Description")}}
		} else {
			perm.IpRanges = []types.IpRange{{CidrIp: strPtr(m, "CidrIp"), Description: strPtr(m, "Description")}}
		}
		out = append(out, perm)
	}
	return out
}

func (p *Provisioner) createFlowLog(ctx context.Context, d descriptor.Descriptor) (backend.Record, error) {
	out, err := p.clients.EC2.CreateFlowLogs(ctx, &ec2.CreateFlowLogsInput{
		ResourceIds:              []string{str(d.Props, "ResourceId")},
		ResourceType:             types.FlowLogsResourceType(str(d.Props, "ResourceType")),
		TrafficType:              types.TrafficType(str(d.Props, "TrafficType")),
		LogDestinationType:       types.LogDestinationType(str(d.Props, "LogDestinationType")),
		LogGroupName:             strPtr(d.Props, "LogGroupName"),
		DeliverLogsPermissionArn: strPtr(d.Props, "DeliverLogsPermissionArn"),
		LogDestination:           strPtr(d.Props, "LogDestination"),
		ClientToken:              p.clientToken(d.ID),
		TagSpecifications:        tagSpec(types.ResourceTypeVpcFlowLog, d.Props),
	})
	if err != nil {
		return backend.Record{}, fmt.Errorf("CreateFlowLogs: %w", err)
	}
	if len(out.Unsuccessful) > 0 {
		u := out.Unsuccessful[0]
		msg := "unknown error"
		if u.Error != nil {
			msg = aws.ToString(u.Error.Code) + ": " + aws.ToString(u.Error.Message)
		}
		return backend.Record{}, fmt.Errorf("CreateFlowLogs: %s", msg)
	}
	if len(out.FlowLogIds) == 0 {
		return backend.Record{}, fmt.Errorf("CreateFlowLogs: no flow log id returned")
	}
	return backend.Record{PhysicalID: out.FlowLogIds[0]}, nil
}
