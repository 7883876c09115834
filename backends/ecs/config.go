package ecs

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/netbench/harness/api"
)

// Config holds provisioner configuration.
type Config struct {
	Region             string
	EndpointURL        string // Custom endpoint URL for simulator mode
	StackName          string // Prefix for every named resource
	VPCID              string
	Subnets            []string
	Bucket             string
	Image              string
	Scenario           string
	ServerInstanceType string
	ClientInstanceType string
	VerifyBucket       bool          // HeadBucket before provisioning
	VerifyImage        bool          // DescribeImages before provisioning (ECR images only)
	OperationTimeout   time.Duration // Cloud Map namespace creation
}

// ConfigFromEnv loads configuration from environment variables.
func ConfigFromEnv() Config {
	return Config{
		Region:             envOrDefault("AWS_REGION", "us-west-2"),
		EndpointURL:        os.Getenv("NETBENCH_ENDPOINT_URL"),
		StackName:          envOrDefault("NETBENCH_STACK", "netbench"),
		VPCID:              os.Getenv("NETBENCH_VPC_ID"),
		Subnets:            splitCSV(os.Getenv("NETBENCH_SUBNETS")),
		Bucket:             os.Getenv("NETBENCH_BUCKET"),
		Image:              os.Getenv("NETBENCH_IMAGE"),
		Scenario:           os.Getenv("NETBENCH_SCENARIO"),
		ServerInstanceType: envOrDefault("NETBENCH_SERVER_INSTANCE_TYPE", "m6g.large"),
		ClientInstanceType: envOrDefault("NETBENCH_CLIENT_INSTANCE_TYPE", "m6g.large"),
		VerifyBucket:       os.Getenv("NETBENCH_VERIFY_BUCKET") != "false",
		VerifyImage:        os.Getenv("NETBENCH_VERIFY_IMAGE") != "false",
		OperationTimeout:   envDuration("NETBENCH_OPERATION_TIMEOUT", 5*time.Minute),
	}
}

// Validate checks required configuration.
func (c Config) Validate() error {
	if c.StackName == "" {
		return fmt.Errorf("stack name is required")
	}
	if c.VPCID == "" {
		return fmt.Errorf("VPC id is required")
	}
	if len(c.Subnets) == 0 {
		return fmt.Errorf("at least one subnet is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket name is required")
	}
	if c.Image == "" {
		return fmt.Errorf("image reference is required")
	}
	if c.Scenario == "" {
		return fmt.Errorf("scenario is required")
	}
	if c.ServerInstanceType == "" || c.ClientInstanceType == "" {
		return fmt.Errorf("server and client instance types are required")
	}
	return nil
}

// HarnessRequest converts the configuration into provisioning inputs.
func (c Config) HarnessRequest() HarnessRequest {
	return HarnessRequest{
		Shared: api.Shared{
			Network:  api.NetworkRef{VPCID: c.VPCID, SubnetIDs: c.Subnets},
			Bucket:   api.BucketRef{Name: c.Bucket},
			Scenario: c.Scenario,
			ImageRef: c.Image,
		},
		ServerInstanceType: c.ServerInstanceType,
		ClientInstanceType: c.ClientInstanceType,
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
