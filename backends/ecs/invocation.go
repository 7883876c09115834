package ecs

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// IntegrationPattern selects how a workflow driver waits on a task.
type IntegrationPattern string

// IntegrationRunJob waits for the task to run to completion.
const IntegrationRunJob IntegrationPattern = "RUN_JOB"

// RunTaskInvocation is the client's run-to-completion unit of work. The
// harness never runs it; an external workflow driver does, either as a Step
// Functions task state or through RunTaskInput.
type RunTaskInvocation struct {
	Name               string              `json:"name" yaml:"name"`
	ClusterARN         string              `json:"clusterArn" yaml:"clusterArn"`
	TaskDefinitionARN  string              `json:"taskDefinitionArn" yaml:"taskDefinitionArn"`
	Subnets            []string            `json:"subnets" yaml:"subnets"`
	SecurityGroups     []string            `json:"securityGroups" yaml:"securityGroups"`
	IntegrationPattern IntegrationPattern  `json:"integrationPattern" yaml:"integrationPattern"`
	LaunchType         ecstypes.LaunchType `json:"launchType" yaml:"launchType"`
}

func newRunTaskInvocation(dep Deployment, subnets []string) RunTaskInvocation {
	return RunTaskInvocation{
		Name:               ClientInvocationName,
		ClusterARN:         dep.ClusterARN,
		TaskDefinitionARN:  dep.TaskDefinitionARN,
		Subnets:            append([]string(nil), subnets...),
		SecurityGroups:     []string{dep.SecurityGroupID},
		IntegrationPattern: IntegrationRunJob,
		LaunchType:         ecstypes.LaunchTypeEc2,
	}
}

// Resource returns the Step Functions service integration ARN.
func (inv RunTaskInvocation) Resource() string {
	if inv.IntegrationPattern == IntegrationRunJob {
		return "arn:aws:states:::ecs:runTask.sync"
	}
	return "arn:aws:states:::ecs:runTask"
}

type stateNetworkConfiguration struct {
	AwsvpcConfiguration struct {
		Subnets        []string `json:"Subnets"`
		SecurityGroups []string `json:"SecurityGroups"`
	} `json:"AwsvpcConfiguration"`
}

type stateParameters struct {
	Cluster              string                    `json:"Cluster"`
	TaskDefinition       string                    `json:"TaskDefinition"`
	LaunchType           string                    `json:"LaunchType"`
	NetworkConfiguration stateNetworkConfiguration `json:"NetworkConfiguration"`
}

type taskState struct {
	Type       string          `json:"Type"`
	Comment    string          `json:"Comment,omitempty"`
	Resource   string          `json:"Resource"`
	Parameters stateParameters `json:"Parameters"`
	End        bool            `json:"End"`
}

// StateDefinition renders the invocation as an Amazon States Language task state.
func (inv RunTaskInvocation) StateDefinition() ([]byte, error) {
	st := taskState{
		Type:     "Task",
		Comment:  inv.Name,
		Resource: inv.Resource(),
		Parameters: stateParameters{
			Cluster:        inv.ClusterARN,
			TaskDefinition: inv.TaskDefinitionARN,
			LaunchType:     string(inv.LaunchType),
		},
		End: true,
	}
	st.Parameters.NetworkConfiguration.AwsvpcConfiguration.Subnets = inv.Subnets
	st.Parameters.NetworkConfiguration.AwsvpcConfiguration.SecurityGroups = inv.SecurityGroups
	return json.MarshalIndent(st, "", "  ")
}

// RunTaskInput returns the equivalent direct ECS RunTask request.
func (inv RunTaskInvocation) RunTaskInput() *awsecs.RunTaskInput {
	return &awsecs.RunTaskInput{
		Cluster:        aws.String(inv.ClusterARN),
		TaskDefinition: aws.String(inv.TaskDefinitionARN),
		LaunchType:     inv.LaunchType,
		Count:          aws.Int32(1),
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        inv.Subnets,
				SecurityGroups: inv.SecurityGroups,
			},
		},
	}
}
