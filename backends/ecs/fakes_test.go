package ecs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/servicediscovery"
	sdtypes "github.com/aws/aws-sdk-go-v2/service/servicediscovery/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	core "github.com/netbench/harness/backends/core"
)

const testAccount = "123456789012"

// fakeCloud records every AWS call in order and keeps the request inputs
// for later inspection. Calls listed in fail return the mapped error.
type fakeCloud struct {
	mu     sync.Mutex
	calls  []string
	inputs map[string][]any
	fail   map[string]error

	// pendingOps is the number of GetOperation polls answered with PENDING
	// before the namespace operation succeeds.
	pendingOps int
	noImages   bool
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{inputs: make(map[string][]any), fail: make(map[string]error)}
}

func (f *fakeCloud) record(call string, in any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.inputs[call] = append(f.inputs[call], in)
	return f.fail[call]
}

func (f *fakeCloud) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCloud) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs[call])
}

// input returns the i-th recorded input of a call.
func input[T any](t *testing.T, f *fakeCloud, call string, i int) T {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	ins := f.inputs[call]
	if i >= len(ins) {
		t.Fatalf("call %s recorded %d times, want index %d", call, len(ins), i)
	}
	v, ok := ins[i].(T)
	if !ok {
		t.Fatalf("call %s input has type %T", call, ins[i])
	}
	return v
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code + " (injected)"}
}

func (f *fakeCloud) clients() *AWSClients {
	return &AWSClients{
		ECS:              fakeECS{f},
		EC2:              fakeEC2{f},
		AutoScaling:      fakeAutoScaling{f},
		IAM:              fakeIAM{f},
		SSM:              fakeSSM{f},
		ServiceDiscovery: fakeServiceDiscovery{f},
		CloudWatch:       fakeLogs{f},
		S3:               fakeS3{f},
		ECR:              fakeECR{f},
	}
}

type fakeECS struct{ f *fakeCloud }

func (e fakeECS) CreateCluster(_ context.Context, in *awsecs.CreateClusterInput, _ ...func(*awsecs.Options)) (*awsecs.CreateClusterOutput, error) {
	if err := e.f.record("ecs.CreateCluster", in); err != nil {
		return nil, err
	}
	name := aws.ToString(in.ClusterName)
	return &awsecs.CreateClusterOutput{Cluster: &ecstypes.Cluster{
		ClusterName: aws.String(name),
		ClusterArn:  aws.String(fmt.Sprintf("arn:aws:ecs:us-west-2:%s:cluster/%s", testAccount, name)),
	}}, nil
}

func (e fakeECS) CreateCapacityProvider(_ context.Context, in *awsecs.CreateCapacityProviderInput, _ ...func(*awsecs.Options)) (*awsecs.CreateCapacityProviderOutput, error) {
	if err := e.f.record("ecs.CreateCapacityProvider", in); err != nil {
		return nil, err
	}
	name := aws.ToString(in.Name)
	return &awsecs.CreateCapacityProviderOutput{CapacityProvider: &ecstypes.CapacityProvider{
		Name:                aws.String(name),
		CapacityProviderArn: aws.String(fmt.Sprintf("arn:aws:ecs:us-west-2:%s:capacity-provider/%s", testAccount, name)),
	}}, nil
}

func (e fakeECS) PutClusterCapacityProviders(_ context.Context, in *awsecs.PutClusterCapacityProvidersInput, _ ...func(*awsecs.Options)) (*awsecs.PutClusterCapacityProvidersOutput, error) {
	if err := e.f.record("ecs.PutClusterCapacityProviders", in); err != nil {
		return nil, err
	}
	return &awsecs.PutClusterCapacityProvidersOutput{}, nil
}

func (e fakeECS) RegisterTaskDefinition(_ context.Context, in *awsecs.RegisterTaskDefinitionInput, _ ...func(*awsecs.Options)) (*awsecs.RegisterTaskDefinitionOutput, error) {
	if err := e.f.record("ecs.RegisterTaskDefinition", in); err != nil {
		return nil, err
	}
	family := aws.ToString(in.Family)
	return &awsecs.RegisterTaskDefinitionOutput{TaskDefinition: &ecstypes.TaskDefinition{
		Family:            aws.String(family),
		TaskDefinitionArn: aws.String(fmt.Sprintf("arn:aws:ecs:us-west-2:%s:task-definition/%s:1", testAccount, family)),
	}}, nil
}

func (e fakeECS) CreateService(_ context.Context, in *awsecs.CreateServiceInput, _ ...func(*awsecs.Options)) (*awsecs.CreateServiceOutput, error) {
	if err := e.f.record("ecs.CreateService", in); err != nil {
		return nil, err
	}
	name := aws.ToString(in.ServiceName)
	return &awsecs.CreateServiceOutput{Service: &ecstypes.Service{
		ServiceName: aws.String(name),
		ServiceArn:  aws.String(fmt.Sprintf("arn:aws:ecs:us-west-2:%s:service/%s", testAccount, name)),
	}}, nil
}

type fakeEC2 struct{ f *fakeCloud }

func (e fakeEC2) CreateSecurityGroup(_ context.Context, in *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	if err := e.f.record("ec2.CreateSecurityGroup", in); err != nil {
		return nil, err
	}
	return &ec2.CreateSecurityGroupOutput{GroupId: aws.String("sg-" + aws.ToString(in.GroupName))}, nil
}

func (e fakeEC2) AuthorizeSecurityGroupIngress(_ context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	if err := e.f.record("ec2.AuthorizeSecurityGroupIngress", in); err != nil {
		return nil, err
	}
	return &ec2.AuthorizeSecurityGroupIngressOutput{Return: aws.Bool(true)}, nil
}

func (e fakeEC2) CreateLaunchTemplate(_ context.Context, in *ec2.CreateLaunchTemplateInput, _ ...func(*ec2.Options)) (*ec2.CreateLaunchTemplateOutput, error) {
	if err := e.f.record("ec2.CreateLaunchTemplate", in); err != nil {
		return nil, err
	}
	return &ec2.CreateLaunchTemplateOutput{LaunchTemplate: &ec2types.LaunchTemplate{
		LaunchTemplateId:   aws.String("lt-" + aws.ToString(in.LaunchTemplateName)),
		LaunchTemplateName: in.LaunchTemplateName,
	}}, nil
}

type fakeAutoScaling struct{ f *fakeCloud }

func (a fakeAutoScaling) CreateAutoScalingGroup(_ context.Context, in *autoscaling.CreateAutoScalingGroupInput, _ ...func(*autoscaling.Options)) (*autoscaling.CreateAutoScalingGroupOutput, error) {
	if err := a.f.record("autoscaling.CreateAutoScalingGroup", in); err != nil {
		return nil, err
	}
	return &autoscaling.CreateAutoScalingGroupOutput{}, nil
}

func (a fakeAutoScaling) DescribeAutoScalingGroups(_ context.Context, in *autoscaling.DescribeAutoScalingGroupsInput, _ ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	if err := a.f.record("autoscaling.DescribeAutoScalingGroups", in); err != nil {
		return nil, err
	}
	var groups []astypes.AutoScalingGroup
	for _, name := range in.AutoScalingGroupNames {
		groups = append(groups, astypes.AutoScalingGroup{
			AutoScalingGroupName: aws.String(name),
			AutoScalingGroupARN:  aws.String(fmt.Sprintf("arn:aws:autoscaling:us-west-2:%s:autoScalingGroup:1:autoScalingGroupName/%s", testAccount, name)),
		})
	}
	return &autoscaling.DescribeAutoScalingGroupsOutput{AutoScalingGroups: groups}, nil
}

type fakeIAM struct{ f *fakeCloud }

func (i fakeIAM) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	if err := i.f.record("iam.CreateRole", in); err != nil {
		return nil, err
	}
	name := aws.ToString(in.RoleName)
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{
		RoleName: aws.String(name),
		Arn:      aws.String(fmt.Sprintf("arn:aws:iam::%s:role/%s", testAccount, name)),
	}}, nil
}

func (i fakeIAM) AttachRolePolicy(_ context.Context, in *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	if err := i.f.record("iam.AttachRolePolicy", in); err != nil {
		return nil, err
	}
	return &iam.AttachRolePolicyOutput{}, nil
}

func (i fakeIAM) PutRolePolicy(_ context.Context, in *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	if err := i.f.record("iam.PutRolePolicy", in); err != nil {
		return nil, err
	}
	return &iam.PutRolePolicyOutput{}, nil
}

func (i fakeIAM) CreateInstanceProfile(_ context.Context, in *iam.CreateInstanceProfileInput, _ ...func(*iam.Options)) (*iam.CreateInstanceProfileOutput, error) {
	if err := i.f.record("iam.CreateInstanceProfile", in); err != nil {
		return nil, err
	}
	name := aws.ToString(in.InstanceProfileName)
	return &iam.CreateInstanceProfileOutput{InstanceProfile: &iamtypes.InstanceProfile{
		InstanceProfileName: aws.String(name),
		Arn:                 aws.String(fmt.Sprintf("arn:aws:iam::%s:instance-profile/%s", testAccount, name)),
	}}, nil
}

func (i fakeIAM) AddRoleToInstanceProfile(_ context.Context, in *iam.AddRoleToInstanceProfileInput, _ ...func(*iam.Options)) (*iam.AddRoleToInstanceProfileOutput, error) {
	if err := i.f.record("iam.AddRoleToInstanceProfile", in); err != nil {
		return nil, err
	}
	return &iam.AddRoleToInstanceProfileOutput{}, nil
}

type fakeSSM struct{ f *fakeCloud }

func (s fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if err := s.f.record("ssm.GetParameter", in); err != nil {
		return nil, err
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{
		Name:  in.Name,
		Value: aws.String("ami-0arm64ecs"),
	}}, nil
}

type fakeServiceDiscovery struct{ f *fakeCloud }

func (s fakeServiceDiscovery) CreatePrivateDnsNamespace(_ context.Context, in *servicediscovery.CreatePrivateDnsNamespaceInput, _ ...func(*servicediscovery.Options)) (*servicediscovery.CreatePrivateDnsNamespaceOutput, error) {
	if err := s.f.record("servicediscovery.CreatePrivateDnsNamespace", in); err != nil {
		return nil, err
	}
	if err := checkRequestToken(in.CreatorRequestId); err != nil {
		return nil, err
	}
	return &servicediscovery.CreatePrivateDnsNamespaceOutput{OperationId: aws.String("op-" + aws.ToString(in.Name))}, nil
}

func (s fakeServiceDiscovery) GetOperation(_ context.Context, in *servicediscovery.GetOperationInput, _ ...func(*servicediscovery.Options)) (*servicediscovery.GetOperationOutput, error) {
	if err := s.f.record("servicediscovery.GetOperation", in); err != nil {
		return nil, err
	}
	s.f.mu.Lock()
	pending := s.f.pendingOps > 0
	if pending {
		s.f.pendingOps--
	}
	s.f.mu.Unlock()

	op := &sdtypes.Operation{Id: in.OperationId, Status: sdtypes.OperationStatusSuccess}
	if pending {
		op.Status = sdtypes.OperationStatusPending
	} else {
		op.Targets = map[string]string{string(sdtypes.OperationTargetTypeNamespace): "ns-0001"}
	}
	return &servicediscovery.GetOperationOutput{Operation: op}, nil
}

func (s fakeServiceDiscovery) CreateService(_ context.Context, in *servicediscovery.CreateServiceInput, _ ...func(*servicediscovery.Options)) (*servicediscovery.CreateServiceOutput, error) {
	if err := s.f.record("servicediscovery.CreateService", in); err != nil {
		return nil, err
	}
	if err := checkRequestToken(in.CreatorRequestId); err != nil {
		return nil, err
	}
	name := aws.ToString(in.Name)
	return &servicediscovery.CreateServiceOutput{Service: &sdtypes.Service{
		Id:          aws.String("srv-0001"),
		Name:        aws.String(name),
		NamespaceId: in.NamespaceId,
		Arn:         aws.String(fmt.Sprintf("arn:aws:servicediscovery:us-west-2:%s:service/srv-0001", testAccount)),
	}}, nil
}

// checkRequestToken mirrors the Cloud Map length limit on CreatorRequestId.
func checkRequestToken(token *string) error {
	if len(aws.ToString(token)) > 64 {
		return apiError("InvalidInput")
	}
	return nil
}

type fakeLogs struct{ f *fakeCloud }

func (l fakeLogs) CreateLogGroup(_ context.Context, in *cloudwatchlogs.CreateLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	if err := l.f.record("logs.CreateLogGroup", in); err != nil {
		return nil, err
	}
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

type fakeS3 struct{ f *fakeCloud }

func (s fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if err := s.f.record("s3.HeadBucket", in); err != nil {
		return nil, err
	}
	return &s3.HeadBucketOutput{}, nil
}

type fakeECR struct{ f *fakeCloud }

func (e fakeECR) DescribeImages(_ context.Context, in *ecr.DescribeImagesInput, _ ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error) {
	if err := e.f.record("ecr.DescribeImages", in); err != nil {
		return nil, err
	}
	if e.f.noImages {
		return &ecr.DescribeImagesOutput{}, nil
	}
	return &ecr.DescribeImagesOutput{ImageDetails: []ecrtypes.ImageDetail{
		{RegistryId: in.RegistryId, RepositoryName: in.RepositoryName},
	}}, nil
}

func testConfig() Config {
	return Config{
		Region:             "us-west-2",
		StackName:          "bench",
		VPCID:              "vpc-0abc",
		Subnets:            []string{"subnet-a", "subnet-b"},
		Bucket:             "bench-bucket",
		Image:              testAccount + ".dkr.ecr.us-west-2.amazonaws.com/netbench:latest",
		Scenario:           "echo",
		ServerInstanceType: "m6g.large",
		ClientInstanceType: "m6g.large",
		VerifyBucket:       true,
		VerifyImage:        true,
		OperationTimeout:   time.Second,
	}
}

// newTestProvisioner returns a provisioner backed by a fresh fake cloud.
func newTestProvisioner(t *testing.T, cfg Config) (*Provisioner, *fakeCloud) {
	t.Helper()
	cloud := newFakeCloud()
	p := NewProvisioner(cfg, cloud.clients(), core.NewResourceRegistry(""), zerolog.Nop())
	p.pollInterval = time.Millisecond
	return p, cloud
}
