package ecs

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/netbench/harness/api"
)

// ContainerSpecFor derives the container of a role from its spec. The result
// depends only on the spec, so building the same spec twice yields equal
// container specs.
func ContainerSpecFor(spec api.RoleSpec) (api.ContainerSpec, error) {
	if err := spec.Validate(); err != nil {
		return api.ContainerSpec{}, err
	}
	port := strconv.Itoa(BenchPort)

	env := api.Env{
		{Name: "SCENARIO", Value: spec.Scenario},
		{Name: "PORT", Value: port},
	}
	// Validate guarantees a client spec carries the peer address.
	if spec.Role == api.RoleClient {
		for _, kv := range []api.EnvVar{
			{Name: "DNS_ADDRESS", Value: spec.PeerAddress + DNSSuffix},
			{Name: "SERVER_PORT", Value: port},
			{Name: "S3_BUCKET", Value: spec.Bucket.Name},
		} {
			var err error
			if env, err = env.With(kv.Name, kv.Value); err != nil {
				return api.ContainerSpec{}, err
			}
		}
	}

	return api.ContainerSpec{
		Name:           ContainerName(spec.Role),
		Image:          spec.ImageRef,
		Env:            env,
		MemoryLimitMiB: MemoryLimitMiB,
		Port: api.PortMapping{
			ContainerPort: BenchPort,
			HostPort:      BenchPort,
			Protocol:      string(ecstypes.TransportProtocolUdp),
		},
		LogStreamPrefix: LogStreamPrefix(spec.Role),
	}, nil
}

// containerDefinition converts a container spec into its ECS form.
func (p *Provisioner) containerDefinition(c api.ContainerSpec, logGroup string) ecstypes.ContainerDefinition {
	envVars := make([]ecstypes.KeyValuePair, 0, len(c.Env))
	for _, e := range c.Env {
		envVars = append(envVars, ecstypes.KeyValuePair{
			Name:  aws.String(e.Name),
			Value: aws.String(e.Value),
		})
	}

	return ecstypes.ContainerDefinition{
		Name:        aws.String(c.Name),
		Image:       aws.String(c.Image),
		Essential:   aws.Bool(true),
		Memory:      aws.Int32(c.MemoryLimitMiB),
		Environment: envVars,
		PortMappings: []ecstypes.PortMapping{
			{
				ContainerPort: aws.Int32(c.Port.ContainerPort),
				HostPort:      aws.Int32(c.Port.HostPort),
				Protocol:      ecstypes.TransportProtocol(c.Port.Protocol),
			},
		},
		LogConfiguration: &ecstypes.LogConfiguration{
			LogDriver: ecstypes.LogDriverAwslogs,
			Options: map[string]string{
				"awslogs-group":         logGroup,
				"awslogs-region":        p.config.Region,
				"awslogs-stream-prefix": c.LogStreamPrefix,
			},
		},
	}
}

// registerTaskDefinition creates the role's task definition together with
// its log group and IAM roles, and grants the task role write access to the
// result bucket.
func (p *Provisioner) registerTaskDefinition(ctx context.Context, spec api.RoleSpec, container api.ContainerSpec) (string, error) {
	role := spec.Role

	logGroup, err := p.ensureLogGroup(ctx, role)
	if err != nil {
		return "", err
	}

	taskRoleName := p.name(role, "task-role")
	taskRoleARN, err := p.createRole(ctx, role, taskRoleName, "ecs-tasks.amazonaws.com")
	if err != nil {
		return "", err
	}
	if err := p.grantBucketWrite(ctx, role, taskRoleName, spec.Bucket); err != nil {
		return "", err
	}

	executionRoleARN, err := p.createRole(ctx, role, p.name(role, "execution-role"), "ecs-tasks.amazonaws.com", ecsTaskExecutionRolePolicyARN)
	if err != nil {
		return "", err
	}

	tags := awsTags(p.tagSet(role), func(k, v string) ecstypes.Tag {
		return ecstypes.Tag{Key: aws.String(k), Value: aws.String(v)}
	})

	result, err := p.aws.ECS.RegisterTaskDefinition(ctx, &awsecs.RegisterTaskDefinitionInput{
		Family:                  aws.String(p.name(role, "task")),
		RequiresCompatibilities: []ecstypes.Compatibility{ecstypes.CompatibilityEc2},
		NetworkMode:             ecstypes.NetworkModeAwsvpc,
		ContainerDefinitions:    []ecstypes.ContainerDefinition{p.containerDefinition(container, logGroup)},
		TaskRoleArn:             aws.String(taskRoleARN),
		ExecutionRoleArn:        aws.String(executionRoleARN),
		Tags:                    tags,
	})
	if err != nil {
		return "", p.fail(role, "task-definition", err)
	}
	taskDefARN := aws.ToString(result.TaskDefinition.TaskDefinitionArn)
	p.track(role, "task-definition", taskDefARN)
	return taskDefARN, nil
}

// ensureLogGroup creates the awslogs group of a role. An existing group is reused.
func (p *Provisioner) ensureLogGroup(ctx context.Context, role api.Role) (string, error) {
	name := p.logGroupName(role)
	_, err := p.aws.CloudWatch.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(name),
		Tags:         p.tagSet(role).AsMap(),
	})
	switch {
	case err == nil:
		p.track(role, "log-group", name)
	case isAlreadyExists(err):
		p.logger.Debug().Str("logGroup", name).Msg("log group already exists")
	default:
		return "", p.fail(role, "log-group", err)
	}
	return name, nil
}
