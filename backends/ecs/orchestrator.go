package ecs

import (
	"context"

	"github.com/netbench/harness/api"
)

// HarnessRequest describes a two-role harness.
type HarnessRequest struct {
	Shared             api.Shared
	ServerInstanceType string
	ClientInstanceType string
}

// Harness is a provisioned server and client pair.
type Harness struct {
	RunID  string          `json:"runId" yaml:"runId"`
	Server *ServerTopology `json:"server" yaml:"server"`
	Client *ClientTopology `json:"client" yaml:"client"`
}

// ProvisionHarness builds the server, then the client wired to the server's
// discovery address. A server failure stops the run before any client
// resource is created.
func (p *Provisioner) ProvisionHarness(ctx context.Context, req HarnessRequest) (*Harness, error) {
	serverSpec, err := api.NewRoleSpec(api.RoleServer, req.ServerInstanceType, req.Shared, "")
	if err != nil {
		return nil, err
	}
	// The client is validated against a placeholder peer so a bad client
	// input fails before the server is built.
	clientTemplate, err := api.NewRoleSpec(api.RoleClient, req.ClientInstanceType, req.Shared, DiscoveryServiceName)
	if err != nil {
		return nil, err
	}

	if err := p.preflight(ctx, req.Shared); err != nil {
		return nil, err
	}

	server, err := p.BuildServer(ctx, serverSpec)
	if err != nil {
		return nil, err
	}

	clientSpec, err := clientTemplate.WithPeer(server.DiscoveryAddress)
	if err != nil {
		return nil, err
	}
	client, err := p.BuildClient(ctx, clientSpec)
	if err != nil {
		return nil, err
	}

	p.logger.Info().Str("server", server.DNSName()).Str("invocation", client.Invocation.Name).Int("resources", p.ledger.Len()).Msg("harness provisioned")
	return &Harness{RunID: p.runID, Server: server, Client: client}, nil
}
