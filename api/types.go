package api

import (
	"fmt"
	"strings"
)

// Role is one of the two fixed participants of the benchmark harness.
type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
)

// ParseRole converts a role name into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleServer, RoleClient:
		return r, nil
	}
	return "", &InvalidParameterError{Message: fmt.Sprintf("unknown role %q (expected server or client)", s)}
}

// Valid reports whether r is server or client.
func (r Role) Valid() bool {
	return r == RoleServer || r == RoleClient
}

func (r Role) String() string {
	return string(r)
}

// NetworkRef is an opaque handle on an existing VPC.
type NetworkRef struct {
	VPCID     string   `json:"vpcId" yaml:"vpcId"`
	SubnetIDs []string `json:"subnetIds" yaml:"subnetIds"`
}

// BucketRef is an opaque handle on an existing S3 bucket.
type BucketRef struct {
	Name string `json:"name" yaml:"name"`
}

// ARN returns the bucket ARN.
func (b BucketRef) ARN() string {
	return "arn:aws:s3:::" + b.Name
}

// Shared holds the inputs both roles are built from.
type Shared struct {
	Network  NetworkRef
	Bucket   BucketRef
	Scenario string
	ImageRef string
}

// RoleSpec is the validated input of a single role build.
// Construct it with NewRoleSpec.
type RoleSpec struct {
	Role         Role
	InstanceType string
	Network      NetworkRef
	Bucket       BucketRef
	Scenario     string
	ImageRef     string
	PeerAddress  string // server discovery address, client only
}

// NewRoleSpec validates the inputs of a role build. A client spec requires
// the server's discovery address as peerAddress; a server spec must not
// carry one.
func NewRoleSpec(role Role, instanceType string, shared Shared, peerAddress string) (RoleSpec, error) {
	spec := RoleSpec{
		Role:         role,
		InstanceType: instanceType,
		Network:      shared.Network,
		Bucket:       shared.Bucket,
		Scenario:     shared.Scenario,
		ImageRef:     shared.ImageRef,
		PeerAddress:  peerAddress,
	}
	if err := spec.Validate(); err != nil {
		return RoleSpec{}, err
	}
	return spec, nil
}

// WithPeer returns a copy of a client spec addressed at peerAddress.
func (s RoleSpec) WithPeer(peerAddress string) (RoleSpec, error) {
	s.PeerAddress = peerAddress
	if err := s.Validate(); err != nil {
		return RoleSpec{}, err
	}
	return s, nil
}

// Validate checks the role contract.
func (s RoleSpec) Validate() error {
	if !s.Role.Valid() {
		return &InvalidParameterError{Message: fmt.Sprintf("unknown role %q (expected server or client)", s.Role)}
	}
	var missing []string
	if s.InstanceType == "" {
		missing = append(missing, "instance type")
	}
	if s.Network.VPCID == "" {
		missing = append(missing, "vpc id")
	}
	if len(s.Network.SubnetIDs) == 0 {
		missing = append(missing, "subnets")
	}
	if s.Bucket.Name == "" {
		missing = append(missing, "bucket")
	}
	if s.Scenario == "" {
		missing = append(missing, "scenario")
	}
	if s.ImageRef == "" {
		missing = append(missing, "image")
	}
	if len(missing) > 0 {
		return &InvalidParameterError{Message: fmt.Sprintf("%s spec is missing %s", s.Role, strings.Join(missing, ", "))}
	}

	switch s.Role {
	case RoleClient:
		if s.PeerAddress == "" {
			return &InvalidParameterError{Message: "client spec requires the server discovery address"}
		}
	case RoleServer:
		if s.PeerAddress != "" {
			return &InvalidParameterError{Message: "server spec must not carry a peer address"}
		}
	}
	return nil
}

// EnvVar is a single container environment entry.
type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Env is an ordered environment mapping with unique keys.
type Env []EnvVar

// With returns a copy of e extended with name=value. Duplicate keys are rejected.
func (e Env) With(name, value string) (Env, error) {
	if _, ok := e.Get(name); ok {
		return nil, fmt.Errorf("duplicate environment key %q", name)
	}
	out := make(Env, len(e), len(e)+1)
	copy(out, e)
	return append(out, EnvVar{Name: name, Value: value}), nil
}

// Get returns the value for name.
func (e Env) Get(name string) (string, bool) {
	for _, v := range e {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// Keys returns the keys in insertion order.
func (e Env) Keys() []string {
	keys := make([]string, len(e))
	for i, v := range e {
		keys[i] = v.Name
	}
	return keys
}

// Map returns the environment as a plain map.
func (e Env) Map() map[string]string {
	m := make(map[string]string, len(e))
	for _, v := range e {
		m[v.Name] = v.Value
	}
	return m
}

// PortMapping maps a container port to a host port.
type PortMapping struct {
	ContainerPort int32  `json:"containerPort" yaml:"containerPort"`
	HostPort      int32  `json:"hostPort" yaml:"hostPort"`
	Protocol      string `json:"protocol" yaml:"protocol"`
}

// ContainerSpec describes the single container of a role's task.
// It is derived from a RoleSpec and never modified afterwards.
type ContainerSpec struct {
	Name            string      `json:"name" yaml:"name"`
	Image           string      `json:"image" yaml:"image"`
	Env             Env         `json:"env" yaml:"env"`
	MemoryLimitMiB  int32       `json:"memoryLimitMiB" yaml:"memoryLimitMiB"`
	Port            PortMapping `json:"port" yaml:"port"`
	LogStreamPrefix string      `json:"logStreamPrefix" yaml:"logStreamPrefix"`
}
