package api

import "fmt"

// InvalidParameterError indicates a role spec that violates the harness
// contract. It is always returned before any cloud resource is created.
type InvalidParameterError struct {
	Message string
}

func (e *InvalidParameterError) Error() string {
	return e.Message
}

// ProvisionError wraps an upstream failure while creating a resource for a role.
type ProvisionError struct {
	Role Role
	Step string // "security-group", "cluster", "service", ...
	Code string // AWS error code, when the SDK reported one
	Err  error
}

func (e *ProvisionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provision %s %s: %s: %v", e.Role, e.Step, e.Code, e.Err)
	}
	return fmt.Sprintf("provision %s %s: %v", e.Role, e.Step, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}
