package service

import (
	"errors"
	"fmt"
)

// ValidationError is a bad request from the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Kind, e.ID)
}

// Stage names a step of the source workflow.
type Stage string

const (
	StageValidating             Stage = "validating"
	StageResolvingDefinition    Stage = "resolving_definition"
	StageCreatingExternalSource Stage = "creating_external_source"
	StageDiscoveringSchema      Stage = "discovering_schema"
	StageCreatingConnection     Stage = "creating_connection"
	StagePersistingLink         Stage = "persisting_link"
	StageDone                   Stage = "done"

	StageEnumeratingConnections Stage = "enumerating_connections"
	StageDeletingConnections    Stage = "deleting_connections"
	StageDeletingSource         Stage = "deleting_source"
)

// Failure stages reported to clients.
const (
	FailedValidation             = "validation"
	FailedExternalSourceCreation = "external_source_creation"
	FailedSchemaDiscovery        = "schema_discovery"
	FailedConnectionCreation     = "connection_creation"
	FailedPersistingLink         = "persisting_link"
)

// WorkflowError records the stage at which a workflow stopped.
type WorkflowError struct {
	Stage string
	Err   error
}

func Failed(stage string, err error) *WorkflowError {
	return &WorkflowError{Stage: stage, Err: err}
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
