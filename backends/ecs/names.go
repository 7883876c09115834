package ecs

import (
	"fmt"

	"github.com/netbench/harness/api"
)

// Fixed harness facts shared by both roles.
const (
	BenchPort      = 3000
	MemoryLimitMiB = 2048

	// DiscoveryServiceName is the Cloud Map service name of the server. It is
	// pinned so the client can be configured without a post-creation lookup
	// of the generated record name; it is a placeholder, not production naming.
	DiscoveryServiceName = "ec2serviceserverCloudmapSrv-UEyneXTpp1nx"

	// DNSSuffix completes the discovery address into a resolvable name. It
	// must equal "." + NamespaceName(api.RoleServer).
	DNSSuffix = ".serverecs.com"

	// ARMECSOptimizedAMIParameter is the public SSM parameter holding the
	// recommended ARM64 ECS-optimized Amazon Linux 2 image.
	ARMECSOptimizedAMIParameter = "/aws/service/ecs/optimized-ami/amazon-linux-2/arm64/recommended/image_id"

	// ClientInvocationName names the run-to-completion client task state.
	ClientInvocationName = "client-run-task"
)

// NamespaceName returns the private DNS namespace name of a role.
func NamespaceName(role api.Role) string {
	return string(role) + "ecs.com"
}

// ContainerName returns the name of a role's single container.
func ContainerName(role api.Role) string {
	return string(role) + "-driver"
}

// LogStreamPrefix returns the awslogs stream prefix of a role.
func LogStreamPrefix(role api.Role) string {
	return string(role) + "-ecs-task"
}

// ServiceName returns the ECS service name of a role.
func ServiceName(role api.Role) string {
	return "ec2service-" + string(role)
}

func (p *Provisioner) name(role api.Role, suffix string) string {
	return fmt.Sprintf("%s-%s-%s", p.config.StackName, role, suffix)
}

func (p *Provisioner) securityGroupName(role api.Role) string {
	return fmt.Sprintf("%s-%secs-service-sg", p.config.StackName, role)
}

func (p *Provisioner) logGroupName(role api.Role) string {
	return fmt.Sprintf("/%s/%s", p.config.StackName, role)
}
