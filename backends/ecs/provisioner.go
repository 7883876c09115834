package ecs

import (
	"errors"
	"time"

	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/netbench/harness/api"
	core "github.com/netbench/harness/backends/core"
	"github.com/rs/zerolog"
)

// Provisioner builds harness roles on ECS.
type Provisioner struct {
	config       Config
	aws          *AWSClients
	ledger       *core.ResourceRegistry
	logger       zerolog.Logger
	runID        string
	instanceID   string
	startedAt    time.Time
	pollInterval time.Duration
}

// NewProvisioner creates a provisioner. Every resource it creates is
// registered in ledger and tagged with a fresh run id.
func NewProvisioner(config Config, awsClients *AWSClients, ledger *core.ResourceRegistry, logger zerolog.Logger) *Provisioner {
	if ledger == nil {
		ledger = core.NewResourceRegistry("")
	}
	if config.OperationTimeout <= 0 {
		config.OperationTimeout = 5 * time.Minute
	}
	pollInterval := 2 * time.Second
	if config.EndpointURL != "" {
		pollInterval = 100 * time.Millisecond
	}
	runID := uuid.NewString()
	return &Provisioner{
		config:       config,
		aws:          awsClients,
		ledger:       ledger,
		logger:       logger.With().Str("run", runID).Logger(),
		runID:        runID,
		instanceID:   core.DefaultInstanceID(),
		startedAt:    time.Now(),
		pollInterval: pollInterval,
	}
}

// RunID identifies the resources created by this provisioner.
func (p *Provisioner) RunID() string {
	return p.runID
}

// Ledger returns the registry of created resources.
func (p *Provisioner) Ledger() *core.ResourceRegistry {
	return p.ledger
}

// track records a created resource.
func (p *Provisioner) track(role api.Role, resourceType, id string) {
	p.ledger.Register(core.ResourceEntry{
		Role:         string(role),
		ResourceType: resourceType,
		ResourceID:   id,
		RunID:        p.runID,
		CreatedAt:    time.Now(),
	})
	p.logger.Debug().Str("role", string(role)).Str("type", resourceType).Str("id", id).Msg("created resource")
}

// fail wraps an upstream error for the given build step.
func (p *Provisioner) fail(role api.Role, step string, err error) error {
	pe := &api.ProvisionError{Role: role, Step: step, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		pe.Code = apiErr.ErrorCode()
	}
	p.logger.Error().Err(err).Str("role", string(role)).Str("step", step).Str("code", pe.Code).Msg("provisioning failed")
	return pe
}

// isAlreadyExists reports whether err is an AWS "already exists" error.
func isAlreadyExists(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "ResourceAlreadyExistsException", "EntityAlreadyExists", "InvalidGroup.Duplicate", "NamespaceAlreadyExists":
		return true
	}
	return false
}

// tagSet returns the tags applied to every resource of a role.
func (p *Provisioner) tagSet(role api.Role) core.TagSet {
	return core.TagSet{
		RunID:      p.runID,
		Role:       string(role),
		Stack:      p.config.StackName,
		InstanceID: p.instanceID,
		CreatedAt:  p.startedAt,
	}
}

// awsTags converts a tag set into an SDK-specific tag slice.
func awsTags[T any](ts core.TagSet, mk func(key, value string) T) []T {
	var tags []T
	ts.Each(func(k, v string) {
		tags = append(tags, mk(k, v))
	})
	return tags
}
