package domain

import (
	"fmt"
	"strings"
)

// FieldError names one offending input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed or missing input with field-level detail.
type ValidationError struct {
	Fields []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError from field/message pairs.
func NewValidationError(fields ...FieldError) ValidationError {
	return ValidationError{Fields: fields}
}

// ForbiddenError reports a capability check failure. Never silently degraded
// to a partial view.
type ForbiddenError struct {
	ActorID    string
	Capability Capability
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s lacks capability %s", e.ActorID, e.Capability)
}

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InvalidTransitionError reports a state machine rule violation. It carries
// both states so callers can show a precise message.
type InvalidTransitionError struct {
	From RequestStatus
	To   RequestStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// ConflictError reports an optimistic concurrency collision: the caller's
// read was stale. The caller may retry; the engine never auto-retries.
type ConflictError struct {
	RequestID int64
	Expected  uint64
	Actual    uint64
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("request #%d version conflict: expected %d, have %d", e.RequestID, e.Expected, e.Actual)
}

// ReferencedError reports a rejected delete because dependents still point at
// the record.
type ReferencedError struct {
	Entity EntityType
	ID     string
	By     string
}

func (e ReferencedError) Error() string {
	return fmt.Sprintf("%s %s still referenced by %s", e.Entity, e.ID, e.By)
}

// AttachmentRejectedError reports an attachment refused by the blob layer
// (disallowed MIME type or size over the ceiling).
type AttachmentRejectedError struct {
	ContentType string
	SizeBytes   int64
	Reason      string
}

func (e AttachmentRejectedError) Error() string {
	return "attachment rejected: " + e.Reason
}
