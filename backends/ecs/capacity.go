package ecs

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/netbench/harness/api"
)

// Scale-to-one pool: nothing runs until the harness asks for it and the
// pool never grows beyond a single instance.
const (
	asgMinSize         = 0
	asgDesiredCapacity = 1
	asgMaxSize         = 1
)

// capacity is the compute bound to one role.
type capacity struct {
	ClusterARN          string
	ClusterName         string
	AutoScalingGroupARN string
	CapacityProvider    string
}

// provisionCapacity creates the role's cluster and binds an autoscaled pool
// of ARM container hosts to it through a capacity provider.
func (p *Provisioner) provisionCapacity(ctx context.Context, spec api.RoleSpec, securityGroupID string) (capacity, error) {
	role := spec.Role
	clusterName := p.name(role, "cluster")

	ecsTags := awsTags(p.tagSet(role), func(k, v string) ecstypes.Tag {
		return ecstypes.Tag{Key: aws.String(k), Value: aws.String(v)}
	})

	clusterOut, err := p.aws.ECS.CreateCluster(ctx, &awsecs.CreateClusterInput{
		ClusterName: aws.String(clusterName),
		Tags:        ecsTags,
	})
	if err != nil {
		return capacity{}, p.fail(role, "cluster", err)
	}
	pool := capacity{
		ClusterARN:  aws.ToString(clusterOut.Cluster.ClusterArn),
		ClusterName: clusterName,
	}
	p.track(role, "cluster", pool.ClusterARN)

	amiID, err := p.resolveARMImage(ctx, role)
	if err != nil {
		return capacity{}, err
	}

	profileARN, err := p.createInstanceProfile(ctx, role)
	if err != nil {
		return capacity{}, err
	}

	templateID, err := p.createLaunchTemplate(ctx, spec, amiID, profileARN, securityGroupID, clusterName)
	if err != nil {
		return capacity{}, err
	}

	pool.AutoScalingGroupARN, err = p.createAutoScalingGroup(ctx, role, templateID, spec.Network)
	if err != nil {
		return capacity{}, err
	}

	providerName := p.name(role, "asg-provider")
	providerOut, err := p.aws.ECS.CreateCapacityProvider(ctx, &awsecs.CreateCapacityProviderInput{
		Name: aws.String(providerName),
		AutoScalingGroupProvider: &ecstypes.AutoScalingGroupProvider{
			AutoScalingGroupArn: aws.String(pool.AutoScalingGroupARN),
			ManagedScaling: &ecstypes.ManagedScaling{
				Status:         ecstypes.ManagedScalingStatusEnabled,
				TargetCapacity: aws.Int32(100),
			},
			ManagedTerminationProtection: ecstypes.ManagedTerminationProtectionDisabled,
		},
		Tags: ecsTags,
	})
	if err != nil {
		return capacity{}, p.fail(role, "capacity-provider", err)
	}
	pool.CapacityProvider = aws.ToString(providerOut.CapacityProvider.Name)
	if pool.CapacityProvider == "" {
		pool.CapacityProvider = providerName
	}
	p.track(role, "capacity-provider", aws.ToString(providerOut.CapacityProvider.CapacityProviderArn))

	_, err = p.aws.ECS.PutClusterCapacityProviders(ctx, &awsecs.PutClusterCapacityProvidersInput{
		Cluster:                         aws.String(clusterName),
		CapacityProviders:               []string{pool.CapacityProvider},
		DefaultCapacityProviderStrategy: []ecstypes.CapacityProviderStrategyItem{},
	})
	if err != nil {
		return capacity{}, p.fail(role, "cluster-capacity-providers", err)
	}

	p.logger.Info().
		Str("role", string(role)).
		Str("cluster", pool.ClusterARN).
		Str("provider", pool.CapacityProvider).
		Str("instanceType", spec.InstanceType).
		Msg("capacity provisioned")
	return pool, nil
}

// resolveARMImage looks up the ARM64 ECS-optimized AMI.
func (p *Provisioner) resolveARMImage(ctx context.Context, role api.Role) (string, error) {
	out, err := p.aws.SSM.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(ARMECSOptimizedAMIParameter),
	})
	if err != nil {
		return "", p.fail(role, "machine-image", err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", p.fail(role, "machine-image", fmt.Errorf("parameter %s has no value", ARMECSOptimizedAMIParameter))
	}
	return aws.ToString(out.Parameter.Value), nil
}

// createInstanceProfile creates the container-host role and its instance profile.
func (p *Provisioner) createInstanceProfile(ctx context.Context, role api.Role) (string, error) {
	roleName := p.name(role, "instance-role")
	if _, err := p.createRole(ctx, role, roleName, "ec2.amazonaws.com", ecsInstanceRolePolicyARN); err != nil {
		return "", err
	}

	profileName := p.name(role, "instance-profile")
	out, err := p.aws.IAM.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
	})
	if err != nil {
		return "", p.fail(role, "instance-profile", err)
	}
	profileARN := aws.ToString(out.InstanceProfile.Arn)
	p.track(role, "instance-profile", profileARN)

	if _, err := p.aws.IAM.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
		RoleName:            aws.String(roleName),
	}); err != nil {
		return "", p.fail(role, "instance-profile", err)
	}
	return profileARN, nil
}

// hostUserData joins the container host to the role's cluster.
func hostUserData(clusterName string) string {
	script := fmt.Sprintf("#!/bin/bash\necho ECS_CLUSTER=%s >> /etc/ecs/ecs.config\n", clusterName)
	return base64.StdEncoding.EncodeToString([]byte(script))
}

func (p *Provisioner) createLaunchTemplate(ctx context.Context, spec api.RoleSpec, amiID, profileARN, securityGroupID, clusterName string) (string, error) {
	role := spec.Role
	tags := awsTags(p.tagSet(role), func(k, v string) ec2types.Tag {
		return ec2types.Tag{Key: aws.String(k), Value: aws.String(v)}
	})

	out, err := p.aws.EC2.CreateLaunchTemplate(ctx, &ec2.CreateLaunchTemplateInput{
		LaunchTemplateName: aws.String(p.name(role, "launch-template")),
		LaunchTemplateData: &ec2types.RequestLaunchTemplateData{
			ImageId:          aws.String(amiID),
			InstanceType:     ec2types.InstanceType(spec.InstanceType),
			SecurityGroupIds: []string{securityGroupID},
			IamInstanceProfile: &ec2types.LaunchTemplateIamInstanceProfileSpecificationRequest{
				Arn: aws.String(profileARN),
			},
			UserData: aws.String(hostUserData(clusterName)),
		},
		TagSpecifications: []ec2types.TagSpecification{
			{ResourceType: ec2types.ResourceTypeLaunchTemplate, Tags: tags},
		},
	})
	if err != nil {
		return "", p.fail(role, "launch-template", err)
	}
	templateID := aws.ToString(out.LaunchTemplate.LaunchTemplateId)
	p.track(role, "launch-template", templateID)
	return templateID, nil
}

func (p *Provisioner) createAutoScalingGroup(ctx context.Context, role api.Role, templateID string, network api.NetworkRef) (string, error) {
	asgName := p.name(role, "asg")

	tags := awsTags(p.tagSet(role), func(k, v string) astypes.Tag {
		return astypes.Tag{Key: aws.String(k), Value: aws.String(v), PropagateAtLaunch: aws.Bool(true)}
	})

	_, err := p.aws.AutoScaling.CreateAutoScalingGroup(ctx, &autoscaling.CreateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(asgName),
		MinSize:              aws.Int32(asgMinSize),
		MaxSize:              aws.Int32(asgMaxSize),
		DesiredCapacity:      aws.Int32(asgDesiredCapacity),
		LaunchTemplate: &astypes.LaunchTemplateSpecification{
			LaunchTemplateId: aws.String(templateID),
			Version:          aws.String("$Latest"),
		},
		VPCZoneIdentifier: aws.String(strings.Join(network.SubnetIDs, ",")),
		Tags:              tags,
	})
	if err != nil {
		return "", p.fail(role, "asg", err)
	}

	desc, err := p.aws.AutoScaling.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{asgName},
	})
	if err != nil {
		return "", p.fail(role, "asg", err)
	}
	if len(desc.AutoScalingGroups) == 0 {
		return "", p.fail(role, "asg", fmt.Errorf("auto scaling group %s not found after creation", asgName))
	}
	asgARN := aws.ToString(desc.AutoScalingGroups[0].AutoScalingGroupARN)
	p.track(role, "asg", asgARN)
	return asgARN, nil
}
