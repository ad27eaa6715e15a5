// Package models defines the shared error wrappers for the intervention pipeline.
package models

import "fmt"

// ExternalCallError reports a collaborator failure or timeout, tagged with the
// component that made the call. The core surfaces it without retrying.
type ExternalCallError struct {
	Component string
	Err       error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("external call from %s failed: %v", e.Component, e.Err)
}

func (e *ExternalCallError) Unwrap() error { return e.Err }

// NewExternalCallError wraps an error from an external collaborator.
func NewExternalCallError(component string, err error) *ExternalCallError {
	return &ExternalCallError{Component: component, Err: err}
}

// PipelineError wraps any downstream failure with the name of the failing
// component. The orchestrator is the only producer, and the only place that
// converts it into a user-facing response.
type PipelineError struct {
	Component string
	Err       error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at %s: %v", e.Component, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError wraps a component failure with trace context.
func NewPipelineError(component string, err error) *PipelineError {
	return &PipelineError{Component: component, Err: err}
}
