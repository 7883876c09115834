package ecs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/netbench/harness/api"
)

// Managed policies attached to the roles the harness creates.
const (
	ecsInstanceRolePolicyARN      = "arn:aws:iam::aws:policy/service-role/AmazonEC2ContainerServiceforEC2Role"
	ecsTaskExecutionRolePolicyARN = "arn:aws:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy"
)

// bucketWriteActions mirrors the write grant of an S3 bucket: object puts,
// deletes, tagging, retention and multipart aborts.
var bucketWriteActions = []string{
	"s3:DeleteObject*",
	"s3:PutObject",
	"s3:PutObjectLegalHold",
	"s3:PutObjectRetention",
	"s3:PutObjectTagging",
	"s3:PutObjectVersionTagging",
	"s3:Abort*",
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
}

func (d policyDocument) encode() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode policy document: %w", err)
	}
	return string(data), nil
}

// assumeRolePolicy lets an AWS service principal assume a role.
func assumeRolePolicy(service string) (string, error) {
	return policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": service},
			Action:    []string{"sts:AssumeRole"},
		}},
	}.encode()
}

// bucketWritePolicy grants write access to the objects of a bucket.
func bucketWritePolicy(bucket api.BucketRef) (string, error) {
	return policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:   "Allow",
			Action:   bucketWriteActions,
			Resource: []string{bucket.ARN(), bucket.ARN() + "/*"},
		}},
	}.encode()
}

// createRole creates an IAM role trusted by service and attaches the given
// managed policies. It returns the role ARN.
func (p *Provisioner) createRole(ctx context.Context, role api.Role, name, service string, managedPolicies ...string) (string, error) {
	tags := awsTags(p.tagSet(role), func(k, v string) iamtypes.Tag {
		return iamtypes.Tag{Key: aws.String(k), Value: aws.String(v)}
	})

	trust, err := assumeRolePolicy(service)
	if err != nil {
		return "", p.fail(role, "iam-role", err)
	}
	out, err := p.aws.IAM.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trust),
		Tags:                     tags,
	})
	if err != nil {
		return "", p.fail(role, "iam-role", err)
	}
	arn := aws.ToString(out.Role.Arn)
	p.track(role, "iam-role", arn)

	for _, policyARN := range managedPolicies {
		if _, err := p.aws.IAM.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(name),
			PolicyArn: aws.String(policyARN),
		}); err != nil {
			return "", p.fail(role, "iam-role-policy", err)
		}
	}
	return arn, nil
}

// grantBucketWrite attaches the bucket write policy to a role.
func (p *Provisioner) grantBucketWrite(ctx context.Context, role api.Role, roleName string, bucket api.BucketRef) error {
	doc, err := bucketWritePolicy(bucket)
	if err != nil {
		return p.fail(role, "bucket-grant", err)
	}
	_, err = p.aws.IAM.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String("bucket-write"),
		PolicyDocument: aws.String(doc),
	})
	if err != nil {
		return p.fail(role, "bucket-grant", err)
	}
	return nil
}
