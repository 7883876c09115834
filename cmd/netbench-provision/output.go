package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/netbench/harness/api"
	"github.com/netbench/harness/backends/ecs"
)

type outputFormat string

const (
	formatYAML outputFormat = "yaml"
	formatJSON outputFormat = "json"
)

func parseFormat(s string) (outputFormat, error) {
	switch outputFormat(s) {
	case formatYAML, formatJSON:
		return outputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (expected yaml or json)", s)
}

type serverOutput struct {
	DiscoveryAddress string            `json:"discoveryAddress" yaml:"discoveryAddress"`
	DNSName          string            `json:"dnsName" yaml:"dnsName"`
	ClusterARN       string            `json:"clusterArn" yaml:"clusterArn"`
	ServiceARN       string            `json:"serviceArn" yaml:"serviceArn"`
	Container        api.ContainerSpec `json:"container" yaml:"container"`
}

type clientOutput struct {
	ClusterARN      string                `json:"clusterArn" yaml:"clusterArn"`
	Invocation      ecs.RunTaskInvocation `json:"invocation" yaml:"invocation"`
	StateDefinition string                `json:"stateDefinition" yaml:"stateDefinition"`
	Container       api.ContainerSpec     `json:"container" yaml:"container"`
}

type harnessOutput struct {
	RunID  string       `json:"runId" yaml:"runId"`
	Server serverOutput `json:"server" yaml:"server"`
	Client clientOutput `json:"client" yaml:"client"`
}

func newHarnessOutput(h *ecs.Harness) (harnessOutput, error) {
	state, err := h.Client.Invocation.StateDefinition()
	if err != nil {
		return harnessOutput{}, err
	}
	return harnessOutput{
		RunID: h.RunID,
		Server: serverOutput{
			DiscoveryAddress: h.Server.DiscoveryAddress,
			DNSName:          h.Server.DNSName(),
			ClusterARN:       h.Server.ClusterARN,
			ServiceARN:       h.Server.ServiceARN,
			Container:        h.Server.Container,
		},
		Client: clientOutput{
			ClusterARN:      h.Client.ClusterARN,
			Invocation:      h.Client.Invocation,
			StateDefinition: string(state),
			Container:       h.Client.Container,
		},
	}, nil
}

// plan derives both container specs without touching AWS. The client is
// addressed at the pinned discovery service name.
func plan(req ecs.HarnessRequest) (map[api.Role]api.ContainerSpec, error) {
	server, err := api.NewRoleSpec(api.RoleServer, req.ServerInstanceType, req.Shared, "")
	if err != nil {
		return nil, err
	}
	client, err := api.NewRoleSpec(api.RoleClient, req.ClientInstanceType, req.Shared, ecs.DiscoveryServiceName)
	if err != nil {
		return nil, err
	}

	specs := make(map[api.Role]api.ContainerSpec, 2)
	for _, spec := range []api.RoleSpec{server, client} {
		c, err := ecs.ContainerSpecFor(spec)
		if err != nil {
			return nil, err
		}
		specs[spec.Role] = c
	}
	return specs, nil
}

// planFor narrows plan to a single role when role is set.
func planFor(req ecs.HarnessRequest, role string) (map[api.Role]api.ContainerSpec, error) {
	var only api.Role
	if role != "" {
		r, err := api.ParseRole(role)
		if err != nil {
			return nil, err
		}
		only = r
	}
	specs, err := plan(req)
	if err != nil {
		return nil, err
	}
	if only == "" {
		return specs, nil
	}
	return map[api.Role]api.ContainerSpec{only: specs[only]}, nil
}

func render(w io.Writer, format outputFormat, v any) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
