package ecs

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/servicediscovery"
	sdtypes "github.com/aws/aws-sdk-go-v2/service/servicediscovery/types"
	"github.com/netbench/harness/api"
)

// discovery is the Cloud Map state of the server role.
type discovery struct {
	NamespaceID string
	ServiceARN  string
	Address     string // discovery service name, resolvable under DNSSuffix
}

// maxRequestTokenLen is the Cloud Map limit on CreatorRequestId.
const maxRequestTokenLen = 64

// requestToken returns the idempotency token for one Cloud Map create call
// of the run. Resource names are left out to stay within maxRequestTokenLen.
func (p *Provisioner) requestToken(role api.Role, kind string) string {
	token := p.runID + "-" + string(role) + "-" + kind
	if len(token) > maxRequestTokenLen {
		token = token[len(token)-maxRequestTokenLen:]
	}
	return token
}

// bindServiceDiscovery creates the role's private DNS namespace and the
// A-record discovery service the ECS service registers into.
func (p *Provisioner) bindServiceDiscovery(ctx context.Context, role api.Role, network api.NetworkRef) (discovery, error) {
	tags := awsTags(p.tagSet(role), func(k, v string) sdtypes.Tag {
		return sdtypes.Tag{Key: aws.String(k), Value: aws.String(v)}
	})

	nsName := NamespaceName(role)
	nsOut, err := p.aws.ServiceDiscovery.CreatePrivateDnsNamespace(ctx, &servicediscovery.CreatePrivateDnsNamespaceInput{
		Name:             aws.String(nsName),
		Vpc:              aws.String(network.VPCID),
		CreatorRequestId: aws.String(p.requestToken(role, "ns")),
		Description:      aws.String(fmt.Sprintf("netbench %s discovery", role)),
		Tags:             tags,
	})
	if err != nil {
		return discovery{}, p.fail(role, "namespace", err)
	}

	namespaceID, err := p.waitForNamespace(ctx, aws.ToString(nsOut.OperationId))
	if err != nil {
		return discovery{}, p.fail(role, "namespace", err)
	}
	p.track(role, "namespace", namespaceID)

	svcOut, err := p.aws.ServiceDiscovery.CreateService(ctx, &servicediscovery.CreateServiceInput{
		Name:             aws.String(DiscoveryServiceName),
		NamespaceId:      aws.String(namespaceID),
		CreatorRequestId: aws.String(p.requestToken(role, "svc")),
		DnsConfig: &sdtypes.DnsConfig{
			DnsRecords: []sdtypes.DnsRecord{
				{Type: sdtypes.RecordTypeA, TTL: aws.Int64(60)},
			},
			RoutingPolicy: sdtypes.RoutingPolicyMultivalue,
		},
		HealthCheckCustomConfig: &sdtypes.HealthCheckCustomConfig{},
		Tags:                    tags,
	})
	if err != nil {
		return discovery{}, p.fail(role, "discovery-service", err)
	}
	d := discovery{
		NamespaceID: namespaceID,
		ServiceARN:  aws.ToString(svcOut.Service.Arn),
		Address:     aws.ToString(svcOut.Service.Name),
	}
	if d.Address == "" {
		d.Address = DiscoveryServiceName
	}
	p.track(role, "discovery-service", d.ServiceARN)

	p.logger.Info().
		Str("role", string(role)).
		Str("namespace", nsName).
		Str("address", d.Address+DNSSuffix).
		Msg("service discovery bound")
	return d, nil
}

// waitForNamespace polls a Cloud Map operation until it finishes and
// returns the id of the created namespace.
func (p *Provisioner) waitForNamespace(ctx context.Context, operationID string) (string, error) {
	timeout := time.After(p.config.OperationTimeout)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		out, err := p.aws.ServiceDiscovery.GetOperation(ctx, &servicediscovery.GetOperationInput{
			OperationId: aws.String(operationID),
		})
		if err != nil {
			return "", err
		}
		if op := out.Operation; op != nil {
			switch op.Status {
			case sdtypes.OperationStatusSuccess:
				id := op.Targets[string(sdtypes.OperationTargetTypeNamespace)]
				if id == "" {
					return "", fmt.Errorf("operation %s succeeded without a namespace target", operationID)
				}
				return id, nil
			case sdtypes.OperationStatusFail:
				return "", fmt.Errorf("operation %s failed: %s", operationID, aws.ToString(op.ErrorMessage))
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeout:
			return "", fmt.Errorf("timeout waiting for operation %s", operationID)
		case <-ticker.C:
		}
	}
}
