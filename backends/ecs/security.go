package ecs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/netbench/harness/api"
)

// allowAllPermissions is the only ingress rule the harness ever emits: every
// protocol and port from any IPv4 or IPv6 source. Egress keeps the VPC
// default allow-all rule.
func allowAllPermissions() []ec2types.IpPermission {
	return []ec2types.IpPermission{
		{
			IpProtocol: aws.String("-1"),
			IpRanges: []ec2types.IpRange{
				{CidrIp: aws.String("0.0.0.0/0"), Description: aws.String("netbench allow all")},
			},
			Ipv6Ranges: []ec2types.Ipv6Range{
				{CidrIpv6: aws.String("::/0"), Description: aws.String("netbench allow all")},
			},
		},
	}
}

// createSecurityGroup creates the role's security group in the harness VPC.
func (p *Provisioner) createSecurityGroup(ctx context.Context, role api.Role, network api.NetworkRef) (string, error) {
	name := p.securityGroupName(role)

	tags := awsTags(p.tagSet(role), func(k, v string) ec2types.Tag {
		return ec2types.Tag{Key: aws.String(k), Value: aws.String(v)}
	})
	tags = append(tags, ec2types.Tag{Key: aws.String("Name"), Value: aws.String(name)})

	out, err := p.aws.EC2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String(fmt.Sprintf("netbench %s role, all traffic allowed", role)),
		VpcId:       aws.String(network.VPCID),
		TagSpecifications: []ec2types.TagSpecification{
			{ResourceType: ec2types.ResourceTypeSecurityGroup, Tags: tags},
		},
	})
	if err != nil {
		return "", p.fail(role, "security-group", err)
	}
	groupID := aws.ToString(out.GroupId)
	p.track(role, "security-group", groupID)

	_, err = p.aws.EC2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(groupID),
		IpPermissions: allowAllPermissions(),
	})
	if err != nil {
		return "", p.fail(role, "security-group-ingress", err)
	}
	return groupID, nil
}
