package ecs

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/netbench/harness/api"
)

// launchService starts the persistent server service: one task on the
// role's capacity provider, registered into the discovery service.
func (p *Provisioner) launchService(ctx context.Context, spec api.RoleSpec, dep Deployment, disc discovery) (string, error) {
	role := spec.Role

	tags := awsTags(p.tagSet(role), func(k, v string) ecstypes.Tag {
		return ecstypes.Tag{Key: aws.String(k), Value: aws.String(v)}
	})

	out, err := p.aws.ECS.CreateService(ctx, &awsecs.CreateServiceInput{
		ServiceName:    aws.String(ServiceName(role)),
		Cluster:        aws.String(dep.ClusterARN),
		TaskDefinition: aws.String(dep.TaskDefinitionARN),
		DesiredCount:   aws.Int32(1),
		CapacityProviderStrategy: []ecstypes.CapacityProviderStrategyItem{
			{CapacityProvider: aws.String(dep.CapacityProvider), Weight: 1},
		},
		ServiceRegistries: []ecstypes.ServiceRegistry{
			{RegistryArn: aws.String(disc.ServiceARN)},
		},
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        spec.Network.SubnetIDs,
				SecurityGroups: []string{dep.SecurityGroupID},
			},
		},
		Tags: tags,
	})
	if err != nil {
		return "", p.fail(role, "service", err)
	}
	serviceARN := aws.ToString(out.Service.ServiceArn)
	p.track(role, "service", serviceARN)
	return serviceARN, nil
}
