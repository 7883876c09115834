package ecs

import (
	"context"
	"fmt"

	"github.com/netbench/harness/api"
)

// Topology is the result of building one role. It is either a
// *ServerTopology or a *ClientTopology.
type Topology interface {
	Role() api.Role
	Base() Deployment
	isTopology()
}

// Deployment holds what every role build produces.
type Deployment struct {
	Role              api.Role          `json:"role" yaml:"role"`
	ClusterARN        string            `json:"clusterArn" yaml:"clusterArn"`
	CapacityProvider  string            `json:"capacityProvider" yaml:"capacityProvider"`
	TaskDefinitionARN string            `json:"taskDefinitionArn" yaml:"taskDefinitionArn"`
	SecurityGroupID   string            `json:"securityGroupId" yaml:"securityGroupId"`
	Container         api.ContainerSpec `json:"container" yaml:"container"`
}

// ServerTopology is a built server role.
type ServerTopology struct {
	Deployment          `yaml:",inline"`
	DiscoveryAddress    string `json:"discoveryAddress" yaml:"discoveryAddress"`
	NamespaceID         string `json:"namespaceId" yaml:"namespaceId"`
	DiscoveryServiceARN string `json:"discoveryServiceArn" yaml:"discoveryServiceArn"`
	ServiceARN          string `json:"serviceArn" yaml:"serviceArn"`
}

// ClientTopology is a built client role.
type ClientTopology struct {
	Deployment `yaml:",inline"`
	Invocation RunTaskInvocation `json:"invocation" yaml:"invocation"`
}

func (t *ServerTopology) Role() api.Role   { return api.RoleServer }
func (t *ServerTopology) Base() Deployment { return t.Deployment }
func (t *ServerTopology) isTopology()      {}

// DNSName is the name the client resolves to reach the server.
func (t *ServerTopology) DNSName() string {
	return t.DiscoveryAddress + DNSSuffix
}

func (t *ClientTopology) Role() api.Role   { return api.RoleClient }
func (t *ClientTopology) Base() Deployment { return t.Deployment }
func (t *ClientTopology) isTopology()      {}

// Build provisions one role and returns its topology.
func (p *Provisioner) Build(ctx context.Context, spec api.RoleSpec) (Topology, error) {
	switch spec.Role {
	case api.RoleServer:
		t, err := p.BuildServer(ctx, spec)
		if err != nil {
			return nil, err
		}
		return t, nil
	case api.RoleClient:
		t, err := p.BuildClient(ctx, spec)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, &api.InvalidParameterError{Message: fmt.Sprintf("unknown role %q (expected server or client)", spec.Role)}
}

// BuildServer provisions the server role: security group, capacity, task
// definition, service discovery and the persistent service.
func (p *Provisioner) BuildServer(ctx context.Context, spec api.RoleSpec) (*ServerTopology, error) {
	if spec.Role != api.RoleServer {
		return nil, &api.InvalidParameterError{Message: fmt.Sprintf("BuildServer called with %s spec", spec.Role)}
	}
	dep, err := p.buildDeployment(ctx, spec)
	if err != nil {
		return nil, err
	}

	disc, err := p.bindServiceDiscovery(ctx, spec.Role, spec.Network)
	if err != nil {
		return nil, err
	}

	// The address is known at this point, but a server without its service
	// is not a topology: a launch failure discards it.
	serviceARN, err := p.launchService(ctx, spec, dep, disc)
	if err != nil {
		return nil, err
	}

	p.logger.Info().Str("role", string(spec.Role)).Str("service", serviceARN).Str("address", disc.Address).Msg("server topology ready")
	return &ServerTopology{
		Deployment:          dep,
		DiscoveryAddress:    disc.Address,
		NamespaceID:         disc.NamespaceID,
		DiscoveryServiceARN: disc.ServiceARN,
		ServiceARN:          serviceARN,
	}, nil
}

// BuildClient provisions the client role and defines, without running, its
// run-to-completion task invocation.
func (p *Provisioner) BuildClient(ctx context.Context, spec api.RoleSpec) (*ClientTopology, error) {
	if spec.Role != api.RoleClient {
		return nil, &api.InvalidParameterError{Message: fmt.Sprintf("BuildClient called with %s spec", spec.Role)}
	}
	dep, err := p.buildDeployment(ctx, spec)
	if err != nil {
		return nil, err
	}

	inv := newRunTaskInvocation(dep, spec.Network.SubnetIDs)
	p.logger.Info().Str("role", string(spec.Role)).Str("invocation", inv.Name).Msg("client topology ready")
	return &ClientTopology{Deployment: dep, Invocation: inv}, nil
}

// buildDeployment runs the steps shared by both roles. The container spec is
// derived first so contract violations surface before any resource exists.
func (p *Provisioner) buildDeployment(ctx context.Context, spec api.RoleSpec) (Deployment, error) {
	container, err := ContainerSpecFor(spec)
	if err != nil {
		return Deployment{}, err
	}

	log := p.logger.With().Str("role", string(spec.Role)).Logger()
	log.Info().Str("instanceType", spec.InstanceType).Str("scenario", spec.Scenario).Msg("building role")

	sgID, err := p.createSecurityGroup(ctx, spec.Role, spec.Network)
	if err != nil {
		return Deployment{}, err
	}

	pool, err := p.provisionCapacity(ctx, spec, sgID)
	if err != nil {
		return Deployment{}, err
	}

	taskDefARN, err := p.registerTaskDefinition(ctx, spec, container)
	if err != nil {
		return Deployment{}, err
	}
	log.Info().Str("taskDefinition", taskDefARN).Msg("task definition registered")

	return Deployment{
		Role:              spec.Role,
		ClusterARN:        pool.ClusterARN,
		CapacityProvider:  pool.CapacityProvider,
		TaskDefinitionARN: taskDefARN,
		SecurityGroupID:   sgID,
		Container:         container,
	}, nil
}
